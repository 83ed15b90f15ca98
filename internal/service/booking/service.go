package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
	"github.com/cleanly/booking-api/internal/service/event"
	"github.com/cleanly/booking-api/internal/service/idempotency"
	"github.com/cleanly/booking-api/internal/service/payment"
	apperrors "github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/metrics"
)

// Confirmation sources, used as a metric label.
const (
	SourceClient  = "client"
	SourceWebhook = "webhook"
)

type Deps struct {
	Tx        repository.Transactor
	Bookings  repository.BookingRepository
	Services  repository.ServiceRepository
	Addresses repository.AddressRepository
	Ledger    *idempotency.Service
	Gateway   payment.Gateway
	Events    event.Emitter
	Currency  string
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

type Service struct {
	tx        repository.Transactor
	bookings  repository.BookingRepository
	services  repository.ServiceRepository
	addresses repository.AddressRepository
	ledger    *idempotency.Service
	gateway   payment.Gateway
	events    event.Emitter
	currency  string
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.Currency == "" {
		d.Currency = payment.DefaultCurrency
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNop()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Service{
		tx:        d.Tx,
		bookings:  d.Bookings,
		services:  d.Services,
		addresses: d.Addresses,
		ledger:    d.Ledger,
		gateway:   d.Gateway,
		events:    d.Events,
		currency:  strings.ToLower(d.Currency),
		metrics:   d.Metrics,
		log:       d.Logger,
		now:       time.Now,
	}
}

// Create books the requested services for the actor. With an idempotency key,
// a repeated request returns the booking created by the first one and
// created=false.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateBookingRequest, idempotencyKey string) (*model.Booking, bool, error) {
	key := idempotency.NormalizeKey(idempotencyKey)

	if key != "" {
		res, err := s.ledger.Lookup(ctx, key, model.ResourceTypeBooking)
		if err != nil {
			return nil, false, err
		}
		if res.Existing {
			return s.replay(ctx, actor, res.ResourceID)
		}
	}

	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		return nil, false, apperrors.Validation("scheduled_at must be a valid RFC3339 timestamp")
	}
	if len(req.Items) == 0 {
		return nil, false, apperrors.Validation("items must contain at least one service")
	}

	addr, err := s.resolveAddress(ctx, actor.UserID, req)
	if err != nil {
		return nil, false, err
	}

	items, total, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, false, err
	}

	intent, err := s.gateway.CreateIntent(ctx, total, s.currency, map[string]string{
		"customer_id": actor.UserID.String(),
	})
	if err != nil {
		return nil, false, apperrors.Internal(err)
	}

	now := s.now()
	b := &model.Booking{
		Base:            model.NewBase(now),
		CustomerID:      actor.UserID,
		Status:          model.BookingStatusPending,
		ScheduledAt:     scheduledAt.UTC(),
		Address:         addr.display,
		AddressID:       addr.id,
		CustomerNotes:   trimmedOrNil(req.CustomerNotes),
		TotalPriceCents: total,
		PaymentIntentID: &intent.ID,
		ClientSecret:    intent.ClientSecret,
		Items:           items,
	}
	for _, it := range b.Items {
		it.BookingID = b.ID
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.bookings.Create(ctx, b); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		if err := s.events.Emit(ctx, event.AggregateBooking, b.ID, model.EventBookingCreated, event.NewBookingPayload(b)); err != nil {
			return err
		}
		return s.ledger.Bind(ctx, key, model.ResourceTypeBooking, b.ID)
	})
	if errors.Is(err, idempotency.ErrAlreadyBound) {
		// A concurrent request with the same key won; answer with its booking.
		res, lookupErr := s.ledger.Lookup(ctx, key, model.ResourceTypeBooking)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if !res.Existing {
			return nil, false, apperrors.Conflict("idempotency key is being used by another request", err)
		}
		return s.replay(ctx, actor, res.ResourceID)
	}
	if err != nil {
		return nil, false, err
	}

	s.metrics.BookingsCreated.WithLabelValues(s.gateway.Name()).Inc()
	s.log.FromContext(ctx).Info("booking created",
		"booking_id", b.ID.String(),
		"customer_id", actor.UserID.String(),
		"total_price_cents", total,
	)

	created, err := s.load(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *Service) replay(ctx context.Context, actor model.Actor, bookingID uuid.UUID) (*model.Booking, bool, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get booking: %w", err)
	}
	if b == nil || b.CustomerID != actor.UserID {
		return nil, false, apperrors.Conflict("idempotency key already used for another user", nil)
	}
	s.metrics.IdempotentReplays.Inc()
	return b, false, nil
}

func (s *Service) priceItems(ctx context.Context, reqItems []model.BookingItemRequest) ([]*model.BookingItem, int64, error) {
	ids := make([]uuid.UUID, 0, len(reqItems))
	for _, it := range reqItems {
		ids = append(ids, it.ServiceID)
	}

	services, err := s.services.ListActiveByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load services: %w", err)
	}
	catalog := model.IndexServices(services)

	var total int64
	items := make([]*model.BookingItem, 0, len(reqItems))
	for _, it := range reqItems {
		svc, ok := catalog[it.ServiceID]
		if !ok {
			return nil, 0, apperrors.Validationf("unknown or inactive service: %s", it.ServiceID)
		}
		quantity := it.Quantity
		if quantity < 1 {
			quantity = 1
		}
		if quantity > model.MaxItemQuantity {
			return nil, 0, apperrors.Validationf("quantity must not exceed %d", model.MaxItemQuantity)
		}
		price, ok := mulCents(svc.BasePriceCents, int64(quantity))
		if !ok {
			return nil, 0, apperrors.Validation("booking total is too large")
		}
		if total, ok = addCents(total, price); !ok {
			return nil, 0, apperrors.Validation("booking total is too large")
		}
		items = append(items, &model.BookingItem{
			ID:          uuid.New(),
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Quantity:    quantity,
			PriceCents:  price,
		})
	}
	return items, total, nil
}

func mulCents(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, false
	}
	return a * b, true
}

func addCents(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// Get returns one of the actor's bookings.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != actor.UserID {
		return nil, apperrors.NotFound("Booking")
	}
	return b, nil
}

// List returns the actor's bookings, latest scheduled first.
func (s *Service) List(ctx context.Context, actor model.Actor) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByCustomer(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, nil
}

// ConfirmPayment asks the gateway whether the booking was paid and confirms it
// if so. Bookings that are no longer PENDING are returned unchanged.
func (s *Service) ConfirmPayment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Booking, error) {
	b, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BookingStatusPending {
		s.metrics.PaymentConfirmations.WithLabelValues(SourceClient, "noop").Inc()
		return b, nil
	}

	intentID := ""
	if b.PaymentIntentID != nil {
		intentID = *b.PaymentIntentID
	}
	paid, err := s.gateway.IsSucceeded(ctx, intentID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !paid {
		s.metrics.PaymentConfirmations.WithLabelValues(SourceClient, "unpaid").Inc()
		return b, nil
	}

	var confirmed bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to lock booking: %w", err)
		}
		confirmed, err = s.confirmLocked(ctx, row)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentConfirmations.WithLabelValues(SourceClient, confirmationResult(confirmed)).Inc()
	return s.load(ctx, id)
}

// ConfirmByPaymentIntent confirms the PENDING booking holding intentID. Unknown
// intents and bookings in any other status are left alone.
func (s *Service) ConfirmByPaymentIntent(ctx context.Context, intentID string) (bool, error) {
	if intentID == "" {
		return false, nil
	}

	var confirmed bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := s.bookings.GetByPaymentIntentForUpdate(ctx, intentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock booking: %w", err)
		}
		confirmed, err = s.confirmLocked(ctx, row)
		return err
	})
	if err != nil {
		return false, err
	}

	s.metrics.PaymentConfirmations.WithLabelValues(SourceWebhook, confirmationResult(confirmed)).Inc()
	return confirmed, nil
}

func confirmationResult(confirmed bool) string {
	if confirmed {
		return "confirmed"
	}
	return "noop"
}

// confirmLocked moves a locked PENDING booking to CONFIRMED.
func (s *Service) confirmLocked(ctx context.Context, row *model.Booking) (bool, error) {
	if row.Status != model.BookingStatusPending {
		return false, nil
	}

	row.Status = model.BookingStatusConfirmed
	row.UpdatedAt = s.now()
	if err := s.bookings.UpdateStatus(ctx, row); err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}
	if err := s.events.Emit(ctx, event.AggregateBooking, row.ID, model.EventBookingConfirmed, event.NewBookingPayload(row)); err != nil {
		return false, err
	}

	s.log.FromContext(ctx).Info("booking confirmed", "booking_id", row.ID.String())
	return true, nil
}

// Cancel cancels a PENDING or CONFIRMED booking. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Booking, error) {
	var cancelled bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := s.bookings.GetForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Booking")
		}
		if err != nil {
			return fmt.Errorf("failed to lock booking: %w", err)
		}
		if row.CustomerID != actor.UserID {
			return apperrors.NotFound("Booking")
		}

		switch row.Status {
		case model.BookingStatusCancelled:
			return nil
		case model.BookingStatusPending, model.BookingStatusConfirmed:
		default:
			return apperrors.InvalidState("booking cannot be cancelled in its current status")
		}

		now := s.now()
		row.Status = model.BookingStatusCancelled
		row.CancelledAt = &now
		row.UpdatedAt = now
		if err := s.bookings.UpdateStatus(ctx, row); err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		cancelled = true
		return s.events.Emit(ctx, event.AggregateBooking, row.ID, model.EventBookingCancelled, event.NewBookingPayload(row))
	})
	if err != nil {
		return nil, err
	}

	if cancelled {
		s.metrics.BookingCancellations.Inc()
		s.log.FromContext(ctx).Info("booking cancelled", "booking_id", id.String())
	}
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, err := s.bookings.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Booking")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

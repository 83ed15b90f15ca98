package booking_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository/memory"
	"github.com/cleanly/booking-api/internal/service/booking"
	"github.com/cleanly/booking-api/internal/service/event"
	"github.com/cleanly/booking-api/internal/service/idempotency"
	"github.com/cleanly/booking-api/internal/service/payment"
	apperrors "github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/metrics"
)

type unpaidGateway struct{ *payment.DummyGateway }

func (unpaidGateway) IsSucceeded(ctx context.Context, intentID string) (bool, error) {
	return false, nil
}

type fixture struct {
	store    *memory.Store
	svc      *booking.Service
	customer model.Actor
	standard model.Service
	deep     model.Service
	inactive model.Service
}

func newFixture(t *testing.T, gw payment.Gateway) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		customer: model.Actor{UserID: uuid.New(), Role: model.RoleCustomer},
		standard: model.Service{Base: model.Base{ID: uuid.New()}, Name: "Standard clean", BasePriceCents: 12000, Active: true},
		deep:     model.Service{Base: model.Base{ID: uuid.New()}, Name: "Deep clean", BasePriceCents: 25000, Active: true},
		inactive: model.Service{Base: model.Base{ID: uuid.New()}, Name: "Window wash", BasePriceCents: 5000, Active: false},
	}
	store.AddService(f.standard)
	store.AddService(f.deep)
	store.AddService(f.inactive)

	if gw == nil {
		gw = payment.NewDummyGateway()
	}
	f.svc = booking.NewService(booking.Deps{
		Tx:        store,
		Bookings:  store.Bookings(),
		Services:  store.Services(),
		Addresses: store.Addresses(),
		Ledger:    idempotency.NewService(store.Idempotency(), idempotency.DefaultTTL),
		Gateway:   gw,
		Events:    event.NewEventService(store.Outbox()),
	})
	return f
}

func strPtr(s string) *string { return &s }

func (f *fixture) request() *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		ScheduledAt: "2026-05-01T09:00:00Z",
		Address:     strPtr("  12 Main St  "),
		Items: []model.BookingItemRequest{
			{ServiceID: f.standard.ID, Quantity: 2},
			{ServiceID: f.deep.ID, Quantity: 1},
		},
	}
}

func TestCreateScenarioTotals(t *testing.T) {
	f := newFixture(t, nil)

	b, created, err := f.svc.Create(context.Background(), f.customer, f.request(), "")
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.EqualValues(t, 49000, b.TotalPriceCents)
	assert.Equal(t, "12 Main St", b.Address)
	require.Len(t, b.Items, 2)
	assert.EqualValues(t, 24000, b.Items[0].PriceCents)
	assert.Equal(t, "Standard clean", b.Items[0].ServiceName)
	assert.EqualValues(t, 25000, b.Items[1].PriceCents)
	require.NotNil(t, b.PaymentIntentID)
	assert.Contains(t, *b.PaymentIntentID, "dummy_")
	assert.Nil(t, b.Job)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingCreated, events[0].EventType)
}

func TestCreateQuantityFloorsAtOne(t *testing.T) {
	f := newFixture(t, nil)
	req := f.request()
	req.Items = []model.BookingItemRequest{{ServiceID: f.deep.ID, Quantity: 0}}

	b, _, err := f.svc.Create(context.Background(), f.customer, req, "")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Items[0].Quantity)
	assert.EqualValues(t, 25000, b.TotalPriceCents)
}

func TestCreateRejectsOversizedQuantity(t *testing.T) {
	f := newFixture(t, nil)
	pricey := model.Service{Base: model.Base{ID: uuid.New()}, Name: "Estate clean", BasePriceCents: math.MaxInt64 / 2, Active: true}
	f.store.AddService(pricey)

	tests := []struct {
		name  string
		items []model.BookingItemRequest
	}{
		{"quantity above limit", []model.BookingItemRequest{{ServiceID: f.standard.ID, Quantity: 1 << 60}}},
		{"line price overflows", []model.BookingItemRequest{{ServiceID: pricey.ID, Quantity: 3}}},
		{"total overflows", []model.BookingItemRequest{
			{ServiceID: pricey.ID, Quantity: 1},
			{ServiceID: pricey.ID, Quantity: 1},
			{ServiceID: f.deep.ID, Quantity: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request()
			req.Items = tt.items

			_, _, err := f.svc.Create(context.Background(), f.customer, req, "")
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "got %v", err)
		})
	}
	assert.Zero(t, f.store.CountBookings())
}

func TestCreateAcceptsMaxQuantity(t *testing.T) {
	f := newFixture(t, nil)
	req := f.request()
	req.Items = []model.BookingItemRequest{{ServiceID: f.standard.ID, Quantity: model.MaxItemQuantity}}

	b, _, err := f.svc.Create(context.Background(), f.customer, req, "")
	require.NoError(t, err)
	assert.EqualValues(t, 12000*model.MaxItemQuantity, b.TotalPriceCents)
}

func TestPriceSnapshotSurvivesCatalogChange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, f.customer, f.request(), "")
	require.NoError(t, err)

	raised := f.standard
	raised.BasePriceCents = 99999
	f.store.AddService(raised)

	again, err := f.svc.Get(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 49000, again.TotalPriceCents)
	assert.EqualValues(t, 24000, again.Items[0].PriceCents)
}

func TestCreateRejectsInactiveServiceWithoutPersisting(t *testing.T) {
	f := newFixture(t, nil)
	req := f.request()
	req.Items = append(req.Items, model.BookingItemRequest{ServiceID: f.inactive.ID, Quantity: 1})

	_, _, err := f.svc.Create(context.Background(), f.customer, req, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Zero(t, f.store.CountBookings())
	assert.Empty(t, f.store.OutboxEvents())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := map[string]func(r *model.CreateBookingRequest){
		"bad scheduled_at": func(r *model.CreateBookingRequest) { r.ScheduledAt = "tomorrow" },
		"no items":         func(r *model.CreateBookingRequest) { r.Items = nil },
		"no address":       func(r *model.CreateBookingRequest) { r.Address = strPtr("   ") },
		"unknown service": func(r *model.CreateBookingRequest) {
			r.Items = []model.BookingItemRequest{{ServiceID: uuid.New(), Quantity: 1}}
		},
		"foreign saved address": func(r *model.CreateBookingRequest) {
			id := uuid.New()
			r.AddressID = &id
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := f.request()
			mutate(req)
			_, _, err := f.svc.Create(ctx, f.customer, req, "")
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "got %v", err)
		})
	}
	assert.Zero(t, f.store.CountBookings())
}

func TestAddressResolutionOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	saved := model.Address{
		Base:       model.Base{ID: uuid.New()},
		UserID:     f.customer.UserID,
		Line1:      "1 Saved Rd",
		City:       strPtr("Springfield"),
		PostalCode: strPtr(" "),
	}
	f.store.AddAddress(saved)

	t.Run("saved address wins", func(t *testing.T) {
		req := f.request()
		req.AddressID = &saved.ID
		req.AddressLine1 = strPtr("ignored")
		b, _, err := f.svc.Create(ctx, f.customer, req, "")
		require.NoError(t, err)
		assert.Equal(t, "1 Saved Rd, Springfield", b.Address)
		require.NotNil(t, b.AddressID)
		assert.Equal(t, saved.ID, *b.AddressID)
	})

	t.Run("discrete lines before free text", func(t *testing.T) {
		req := f.request()
		req.AddressLine1 = strPtr(" 5 Elm St ")
		req.AddressLine2 = strPtr("Apt 2")
		req.City = strPtr("Shelbyville")
		req.Country = strPtr("US")
		b, _, err := f.svc.Create(ctx, f.customer, req, "")
		require.NoError(t, err)
		assert.Equal(t, "5 Elm St, Apt 2, Shelbyville, US", b.Address)
		assert.Nil(t, b.AddressID)
	})

	t.Run("saved address of another user", func(t *testing.T) {
		other := model.Actor{UserID: uuid.New(), Role: model.RoleCustomer}
		req := f.request()
		req.AddressID = &saved.ID
		_, _, err := f.svc.Create(ctx, other, req, "")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})
}

func TestIdempotentCreate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, created, err := f.svc.Create(ctx, f.customer, f.request(), " key-1 ")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.Create(ctx, f.customer, f.request(), "key-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.store.CountBookings())
}

func TestIdempotencyKeyOfAnotherCustomerConflicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, _, err := f.svc.Create(ctx, f.customer, f.request(), "shared")
	require.NoError(t, err)

	other := model.Actor{UserID: uuid.New(), Role: model.RoleCustomer}
	_, _, err = f.svc.Create(ctx, other, f.request(), "shared")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, 1, f.store.CountBookings())
}

func TestExpiredIdempotencyKeyCreatesNewBooking(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, _, err := f.svc.Create(ctx, f.customer, f.request(), "k")
	require.NoError(t, err)

	f.store.Idempotency().Expire("k", model.ResourceTypeBooking, time.Now().Add(-time.Minute))

	second, created, err := f.svc.Create(ctx, f.customer, f.request(), "k")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestConcurrentCreateWithSameKeyYieldsOneBooking(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 8
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, _, err := f.svc.Create(ctx, f.customer, f.request(), "race")
			errs[i] = err
			if b != nil {
				ids[i] = b.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.store.CountBookings())
}

func TestDummyConfirmTwice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, f.customer, f.request(), "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		confirmed, err := f.svc.ConfirmPayment(ctx, f.customer, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)
	}

	var confirmations int
	for _, e := range f.store.OutboxEvents() {
		if e.EventType == model.EventBookingConfirmed {
			confirmations++
		}
	}
	assert.Equal(t, 1, confirmations)
}

type cancelOnCheckGateway struct {
	*payment.DummyGateway
	onCheck func()
}

func (g *cancelOnCheckGateway) IsSucceeded(ctx context.Context, intentID string) (bool, error) {
	g.onCheck()
	return true, nil
}

func TestConfirmAfterConcurrentCancelCountsNoop(t *testing.T) {
	gw := &cancelOnCheckGateway{DummyGateway: payment.NewDummyGateway()}
	f := newFixture(t, gw)
	m := metrics.NewMetrics("test", "", prometheus.NewRegistry())
	svc := booking.NewService(booking.Deps{
		Tx:        f.store,
		Bookings:  f.store.Bookings(),
		Services:  f.store.Services(),
		Addresses: f.store.Addresses(),
		Ledger:    idempotency.NewService(f.store.Idempotency(), idempotency.DefaultTTL),
		Gateway:   gw,
		Events:    event.NewEventService(f.store.Outbox()),
		Metrics:   m,
	})
	ctx := context.Background()

	b, _, err := svc.Create(ctx, f.customer, f.request(), "")
	require.NoError(t, err)
	gw.onCheck = func() {
		_, err := svc.Cancel(ctx, f.customer, b.ID)
		require.NoError(t, err)
	}

	got, err := svc.ConfirmPayment(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	assert.Zero(t, testutil.ToFloat64(m.PaymentConfirmations.WithLabelValues(booking.SourceClient, "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentConfirmations.WithLabelValues(booking.SourceClient, "noop")))
}

func TestConfirmUnpaidStaysPending(t *testing.T) {
	f := newFixture(t, unpaidGateway{payment.NewDummyGateway()})
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, f.customer, f.request(), "")
	require.NoError(t, err)

	got, err := f.svc.ConfirmPayment(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, got.Status)
}

func TestOwnershipMismatchIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, f.customer, f.request(), "")
	require.NoError(t, err)

	stranger := model.Actor{UserID: uuid.New(), Role: model.RoleCustomer}
	_, err = f.svc.Get(ctx, stranger, b.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = f.svc.ConfirmPayment(ctx, stranger, b.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = f.svc.Cancel(ctx, stranger, b.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	got, err := f.svc.Get(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, got.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, f.customer, f.request(), "")
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, f.customer, b.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	again, err := f.svc.Cancel(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, again.Status)
	assert.Equal(t, cancelled.CancelledAt.Unix(), again.CancelledAt.Unix())

	afterConfirm, err := f.svc.ConfirmPayment(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, afterConfirm.Status)
}

func TestConfirmByPaymentIntent(t *testing.T) {
	f := newFixture(t, unpaidGateway{payment.NewDummyGateway()})
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, f.customer, f.request(), "")
	require.NoError(t, err)

	ok, err := f.svc.ConfirmByPaymentIntent(ctx, "pi_unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.ConfirmByPaymentIntent(ctx, *b.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.ConfirmByPaymentIntent(ctx, *b.PaymentIntentID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := f.svc.Get(ctx, f.customer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)
}

func TestListOrderedByScheduleDesc(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	early := f.request()
	early.ScheduledAt = "2026-04-01T09:00:00Z"
	late := f.request()
	late.ScheduledAt = "2026-06-01T09:00:00Z"

	_, _, err := f.svc.Create(ctx, f.customer, early, "")
	require.NoError(t, err)
	_, _, err = f.svc.Create(ctx, f.customer, late, "")
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].ScheduledAt.After(list[1].ScheduledAt))

	empty, err := f.svc.List(ctx, model.Actor{UserID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

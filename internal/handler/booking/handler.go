package booking

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/handler"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/pkg/httputil"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type BookingService interface {
	Create(ctx context.Context, actor model.Actor, req *model.CreateBookingRequest, idempotencyKey string) (*model.Booking, bool, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Booking, error)
	List(ctx context.Context, actor model.Actor) ([]*model.Booking, error)
	ConfirmPayment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Booking, error)
	Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Booking, error)
}

type Handler struct {
	service BookingService
}

func NewHandler(service BookingService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the booking endpoints; mw guards every route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	bookings := r.Group("/bookings", mw...)
	{
		bookings.GET("", h.ListBookings)
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/confirm-payment", h.ConfirmPayment)
		bookings.PATCH("/:id/cancel", h.CancelBooking)
	}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req model.CreateBookingRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	booking, created, err := h.service.Create(c.Request.Context(), actor, &req, c.GetHeader(HeaderIdempotencyKey))
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.RespondWithStatus(c, status, booking)
}

func (h *Handler) ListBookings(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		c.Error(err)
		return
	}

	bookings, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, bookings)
}

func (h *Handler) GetBooking(c *gin.Context) {
	h.withBooking(c, h.service.Get)
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	h.withBooking(c, h.service.ConfirmPayment)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	h.withBooking(c, h.service.Cancel)
}

type bookingOp func(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Booking, error)

func (h *Handler) withBooking(c *gin.Context, op bookingOp) {
	actor, err := handler.Actor(c)
	if err != nil {
		c.Error(err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	booking, err := op(c.Request.Context(), actor, id)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, booking)
}

package job

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/handler"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/pkg/httputil"
)

type JobService interface {
	PickUp(ctx context.Context, actor model.Actor, bookingID uuid.UUID) (*model.Job, error)
	Update(ctx context.Context, actor model.Actor, jobID uuid.UUID, req *model.UpdateJobRequest) (*model.Job, error)
	List(ctx context.Context, actor model.Actor) ([]*model.Job, error)
	Available(ctx context.Context) ([]*model.Booking, error)
}

type Handler struct {
	service JobService
}

func NewHandler(service JobService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	jobs := r.Group("/jobs", mw...)
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/available", h.AvailableJobs)
		jobs.POST("", h.PickUpJob)
		jobs.PATCH("/:id", h.UpdateJob)
	}
}

func (h *Handler) ListJobs(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		c.Error(err)
		return
	}

	jobs, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, jobs)
}

func (h *Handler) AvailableJobs(c *gin.Context) {
	bookings, err := h.service.Available(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, bookings)
}

func (h *Handler) PickUpJob(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req model.PickUpJobRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	job, err := h.service.PickUp(c.Request.Context(), actor, req.BookingID)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, job)
}

func (h *Handler) UpdateJob(c *gin.Context) {
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

	var req model.UpdateJobRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	job, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, job)
}

package provider

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/handler"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/pkg/httputil"
)

// Eligibility is derived from the profile so the response carries the status
// that decided it.
type VerificationService interface {
	Profile(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error)
}

type Handler struct {
	service VerificationService
}

func NewHandler(service VerificationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	provider := r.Group("/provider", mw...)
	{
		provider.GET("/eligibility", h.Eligibility)
		provider.GET("/profile", h.Profile)
	}
}

func (h *Handler) Eligibility(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		c.Error(err)
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), actor.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, model.EligibilityResponse{
		Eligible:           profile.VerificationStatus == model.VerificationVerified,
		VerificationStatus: profile.VerificationStatus,
	})
}

func (h *Handler) Profile(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		c.Error(err)
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), actor.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, profile)
}

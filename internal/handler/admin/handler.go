package admin

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/handler"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/pkg/httputil"
)

type VerificationService interface {
	SetStatus(ctx context.Context, userID uuid.UUID, status model.VerificationStatus, reason *string) (*model.ProviderProfile, error)
}

type Handler struct {
	service VerificationService
}

func NewHandler(service VerificationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	admin := r.Group("/admin", mw...)
	{
		admin.POST("/providers/:id/verify", h.VerifyProvider)
	}
}

func (h *Handler) VerifyProvider(c *gin.Context) {
	userID, err := handler.ParseID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req model.VerifyProviderRequest
	if err := handler.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	status := model.VerificationStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	profile, err := h.service.SetStatus(c.Request.Context(), userID, status, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, profile)
}

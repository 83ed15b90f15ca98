package webhook

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/cleanly/booking-api/internal/service/payment"
	"github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/httputil"
	"github.com/cleanly/booking-api/pkg/logger"
)

const HeaderStripeSignature = "Stripe-Signature"

type Confirmer interface {
	ConfirmByPaymentIntent(ctx context.Context, intentID string) (bool, error)
}

type Verifier interface {
	Configured() bool
	SucceededIntent(payload []byte, signature string) (string, error)
}

type Handler struct {
	confirmer Confirmer
	verifier  Verifier
	enabled   bool
	log       *logger.Logger
}

// NewHandler builds the Stripe webhook handler. When enabled is false the
// endpoint acknowledges deliveries without acting on them.
func NewHandler(confirmer Confirmer, verifier Verifier, enabled bool, log *logger.Logger) *Handler {
	return &Handler{
		confirmer: confirmer,
		verifier:  verifier,
		enabled:   enabled,
		log:       log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	webhooks := r.Group("/webhooks", mw...)
	{
		webhooks.POST("/stripe", h.Stripe)
	}
}

type ack struct {
	Received bool `json:"received"`
}

func (h *Handler) Stripe(c *gin.Context) {
	log := h.log.FromContext(c.Request.Context())

	if !h.enabled {
		httputil.RespondWithSuccess(c, ack{Received: true})
		return
	}
	if !h.verifier.Configured() {
		log.Warn("stripe webhook secret not set, ignoring delivery")
		httputil.RespondWithSuccess(c, ack{Received: true})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(errors.Validation("unreadable request body"))
		return
	}

	intentID, err := h.verifier.SucceededIntent(payload, c.GetHeader(HeaderStripeSignature))
	if err != nil {
		if stderrors.Is(err, payment.ErrInvalidSignature) {
			c.Error(errors.Validation("webhook signature verification failed"))
			return
		}
		c.Error(errors.Validation("malformed webhook event"))
		return
	}

	if intentID != "" {
		confirmed, err := h.confirmer.ConfirmByPaymentIntent(c.Request.Context(), intentID)
		if err != nil {
			c.Error(err)
			return
		}
		log.Info("stripe payment_intent.succeeded handled", "payment_intent_id", intentID, "confirmed", confirmed)
	}

	httputil.RespondWithSuccess(c, ack{Received: true})
}

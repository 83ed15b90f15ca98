package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const eventPaymentIntentSucceeded = "payment_intent.succeeded"

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookVerifier authenticates Stripe webhook deliveries.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Configured reports whether a signing secret is set.
func (v *WebhookVerifier) Configured() bool {
	return v.secret != ""
}

// SucceededIntent verifies the payload and, for payment_intent.succeeded
// events, returns the intent id. Other event types yield "".
func (v *WebhookVerifier) SucceededIntent(payload []byte, signature string) (string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if string(event.Type) != eventPaymentIntentSucceeded {
		return "", nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", fmt.Errorf("failed to decode payment intent: %w", err)
	}
	return pi.ID, nil
}

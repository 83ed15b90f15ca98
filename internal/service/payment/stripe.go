package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/cleanly/booking-api/pkg/circuitbreaker"
	"github.com/cleanly/booking-api/pkg/logger"
)

// IntentsClient is the slice of the Stripe API the gateway uses.
// *paymentintent.Client satisfies it.
type IntentsClient interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// NewStripeClient builds a PaymentIntents client for secretKey.
func NewStripeClient(secretKey string) IntentsClient {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return sc.PaymentIntents
}

type StripeGateway struct {
	intents IntentsClient
	cb      *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

func NewStripeGateway(intents IntentsClient, breakerTimeout time.Duration, log *logger.Logger) *StripeGateway {
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StripeGateway{
		intents: intents,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:                "stripe",
			Interval:            time.Minute,
			Timeout:             breakerTimeout,
			ConsecutiveFailures: 5,
			OnStateChange: func(name, from, to string) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			},
		}),
		log: log,
	}
}

func (g *StripeGateway) Name() string {
	return ProviderStripe
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	var pi *stripe.PaymentIntent
	err := g.cb.Execute(func() error {
		var err error
		pi, err = g.intents.New(params)
		return err
	})
	if err != nil {
		g.log.FromContext(ctx).Error(err, "failed to create payment intent", "amount_cents", amountCents)
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	intent := &Intent{ID: pi.ID}
	if pi.ClientSecret != "" {
		secret := pi.ClientSecret
		intent.ClientSecret = &secret
	}
	return intent, nil
}

// IsSucceeded retrieves the intent and checks its status. Ids that were never
// issued by Stripe are reported unpaid without a network call.
func (g *StripeGateway) IsSucceeded(ctx context.Context, intentID string) (bool, error) {
	if intentID == "" || strings.HasPrefix(intentID, dummyIntentPrefix) {
		return false, nil
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	var pi *stripe.PaymentIntent
	err := g.cb.Execute(func() error {
		var err error
		pi, err = g.intents.Get(intentID, params)
		return err
	})
	if err != nil {
		g.log.FromContext(ctx).Error(err, "failed to retrieve payment intent", "payment_intent_id", intentID)
		return false, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/metrics"
)

const (
	ProviderDummy  = "dummy"
	ProviderStripe = "stripe"

	DefaultCurrency = "usd"
)

// Intent is an opened payment intent. ClientSecret is nil when the backend
// needs no client-side confirmation.
type Intent struct {
	ID           string
	ClientSecret *string
}

// Gateway opens payment intents and reports whether they were paid.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	IsSucceeded(ctx context.Context, intentID string) (bool, error)
}

type Config struct {
	Provider            string
	Currency            string
	StripeSecretKey     string
	StripeWebhookSecret string
	BreakerTimeout      time.Duration
}

// New selects the gateway named by cfg.Provider. It is called once at startup.
func New(cfg Config, log *logger.Logger, m *metrics.Metrics) (Gateway, error) {
	var gw Gateway
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderDummy:
		gw = NewDummyGateway()
	case ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("payment provider %q requires a secret key", ProviderStripe)
		}
		gw = NewStripeGateway(NewStripeClient(cfg.StripeSecretKey), cfg.BreakerTimeout, log)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}

	if m != nil {
		gw = Instrument(gw, m)
	}
	return gw, nil
}

type instrumented struct {
	Gateway
	m *metrics.Metrics
}

// Instrument records gateway call latency.
func Instrument(gw Gateway, m *metrics.Metrics) Gateway {
	return &instrumented{Gateway: gw, m: m}
}

func (g *instrumented) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	start := time.Now()
	defer func() {
		g.m.GatewayLatency.WithLabelValues(g.Name(), "create_intent").Observe(time.Since(start).Seconds())
	}()
	return g.Gateway.CreateIntent(ctx, amountCents, currency, metadata)
}

func (g *instrumented) IsSucceeded(ctx context.Context, intentID string) (bool, error) {
	start := time.Now()
	defer func() {
		g.m.GatewayLatency.WithLabelValues(g.Name(), "is_succeeded").Observe(time.Since(start).Seconds())
	}()
	return g.Gateway.IsSucceeded(ctx, intentID)
}

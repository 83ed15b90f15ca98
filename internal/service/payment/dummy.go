package payment

import (
	"context"

	"github.com/google/uuid"
)

const dummyIntentPrefix = "dummy_"

// DummyGateway accepts every payment. Used for local development and demos.
type DummyGateway struct{}

func NewDummyGateway() *DummyGateway {
	return &DummyGateway{}
}

func (g *DummyGateway) Name() string {
	return ProviderDummy
}

func (g *DummyGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	return &Intent{ID: dummyIntentPrefix + uuid.NewString()}, nil
}

func (g *DummyGateway) IsSucceeded(ctx context.Context, intentID string) (bool, error) {
	return true, nil
}

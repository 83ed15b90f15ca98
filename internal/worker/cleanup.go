package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cleanly/booking-api/internal/repository"
	"github.com/cleanly/booking-api/pkg/logger"
)

// KeyCleaner deletes expired idempotency records.
type KeyCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// CleanupWorker prunes expired idempotency keys and published outbox events.
// Lookups already ignore expired keys, so a missed run only costs space.
type CleanupWorker struct {
	keys            KeyCleaner
	outbox          repository.OutboxRepository
	outboxRetention time.Duration
	interval        time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewCleanupWorker(keys KeyCleaner, outbox repository.OutboxRepository, outboxRetention, interval time.Duration, log *logger.Logger) *CleanupWorker {
	return &CleanupWorker{
		keys:            keys,
		outbox:          outbox,
		outboxRetention: outboxRetention,
		interval:        interval,
		logger:          log,
		now:             time.Now,
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error(err, "cleanup run failed")
			}
		}
	}
}

func (w *CleanupWorker) RunOnce(ctx context.Context) error {
	keys, err := w.keys.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup idempotency keys: %w", err)
	}

	cutoff := w.now().Add(-w.outboxRetention)
	events, err := w.outbox.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	w.logger.Info("cleanup finished", "idempotency_keys", keys, "outbox_events", events, "outbox_cutoff", cutoff)
	return nil
}

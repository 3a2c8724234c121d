package store

import (
	"context"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
)

// Purger is implemented by backends that can drop expired cookies eagerly.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired cookies from a long-lived store.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	logger   *logging.ChanneledLogger
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(purger Purger, interval time.Duration, logger *logging.ChanneledLogger) *Sweeper {
	return &Sweeper{
		purger:   purger,
		interval: interval,
		logger:   logger,
	}
}

// Start sweeps on every tick until ctx ends.
func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Storage().Debug("State sweeper started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Storage().Debug("State sweeper stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one purge and returns how many cookies were removed.
func (w *Sweeper) Sweep(ctx context.Context) int64 {
	start := time.Now()
	purged, err := w.purger.PurgeExpired(ctx)
	if err != nil {
		w.logger.Storage().Warn("State sweep failed", "error", err.Error())
		return 0
	}
	if purged > 0 {
		w.logger.Storage().Info("Purged expired cookies", "count", purged, "duration", time.Since(start))
	}
	return purged
}

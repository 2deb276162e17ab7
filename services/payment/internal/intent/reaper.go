package intent

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Reaper periodically purges expired intents. Expiry is also enforced on
// every take, the reaper only bounds how long dead intents linger.
type Reaper struct {
	store    Sweeper
	interval time.Duration
	logger   *slog.Logger
}

func NewReaper(store Sweeper, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{store: store, interval: interval, logger: logger.With("component", "intent_reaper")}
}

// Run blocks until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.store.Sweep(ctx)
	if err != nil {
		r.logger.Warn("intent_sweep_error", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("intent_sweep", "purged", n)
	}
}

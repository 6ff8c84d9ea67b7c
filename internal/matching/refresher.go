package matching

import (
	"context"
	"log/slog"
	"time"
)

// Refresher periodically recomputes all job matches so role changes from
// catalog seeding reach every candidate
type Refresher struct {
	service  *Service
	interval time.Duration
	workers  int
}

// NewRefresher creates a new match refresh worker
func NewRefresher(service *Service, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &Refresher{
		service:  service,
		interval: interval,
		workers:  4,
	}
}

// Start begins the refresh worker in a goroutine
func (r *Refresher) Start(ctx context.Context) {
	go r.run(ctx)
}

// run is the main loop for the refresh worker
func (r *Refresher) run(ctx context.Context) {
	slog.Info("match refresher started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("match refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	slog.Debug("running match refresh cycle")

	start := time.Now()
	n, err := r.service.RecomputeAll(ctx, r.workers)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to refresh job matches", "error", err)
		}
		return
	}

	slog.Info("job matches refreshed", "candidates", n, "duration", time.Since(start))
}

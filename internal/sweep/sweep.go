// Package sweep removes processed events that have aged past the retention
// window. Subject state and the detection log are never touched.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"pathfinder/internal/platform/metrics"
)

// EventPurger deletes processed events received before the cutoff and
// reports how many rows went away.
type EventPurger interface {
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper runs retention cleanup on a ticker.
type Sweeper struct {
	events    EventPurger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	retention time.Duration
	interval  time.Duration
}

type Option func(*Sweeper)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func New(events EventPurger, retention, interval time.Duration, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		events:    events,
		logger:    logger,
		retention: retention,
		interval:  interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run purges on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepAt(ctx, time.Now()); err != nil {
				s.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
			}
		}
	}
}

// SweepAt purges processed events older than the retention window relative
// to the given time. Exported for testability; the ticker passes wall-clock
// time.
func (s *Sweeper) SweepAt(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-s.retention)
	purged, err := s.events.PurgeProcessedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		s.logger.InfoContext(ctx, "purged processed events",
			"count", purged,
			"cutoff", cutoff,
		)
		s.metrics.AddPurged(purged)
	}
	return nil
}

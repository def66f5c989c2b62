// Package processor drains stored events that ingestion left unprocessed.
// In deferred mode it is the only component that classifies; in immediate
// mode it doubles as a retry loop for events whose classification failed.
package processor

import (
	"context"
	"log/slog"
	"time"

	"pathfinder/internal/ingest/models"
)

// EventSource lists stored events awaiting classification.
type EventSource interface {
	ListUnprocessed(ctx context.Context, limit int) ([]*models.ChangeEvent, error)
}

// Pipeline runs the classify-record-notify sequence for one stored event.
type Pipeline interface {
	ProcessStored(ctx context.Context, event *models.ChangeEvent) (classification, level string, err error)
}

// Processor polls the event store and feeds pending events through the
// pipeline. Events whose classification fails stay unprocessed and are
// retried on the next poll.
type Processor struct {
	events    EventSource
	pipeline  Pipeline
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type Option func(*Processor)

func WithInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func New(events EventSource, pipeline Pipeline, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		events:    events,
		pipeline:  pipeline,
		logger:    logger,
		interval:  30 * time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Drain(ctx); err != nil {
				p.logger.ErrorContext(ctx, "processor drain failed", "error", err)
			}
		}
	}
}

// Drain processes one batch of pending events. A per-event failure is logged
// and skipped so one poisoned event cannot stall the rest of the batch.
func (p *Processor) Drain(ctx context.Context) error {
	events, err := p.events.ListUnprocessed(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	p.logger.InfoContext(ctx, "draining pending events", "count", len(events))

	for _, event := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		classification, level, err := p.pipeline.ProcessStored(ctx, event)
		if err != nil {
			p.logger.ErrorContext(ctx, "event processing failed",
				"event_id", event.ID,
				"subject_id", event.SubjectID,
				"error", err,
			)
			continue
		}
		p.logger.InfoContext(ctx, "event processed",
			"event_id", event.ID,
			"classification", classification,
			"seniority_level", level,
		)
	}
	return nil
}

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pathfinder/internal/detection/models"
	"pathfinder/internal/platform/metrics"
)

// DetectionMarker flips the digest flag after a successful immediate
// notification so the batched sweep does not re-notify the same detection.
type DetectionMarker interface {
	MarkIncludedInDigest(ctx context.Context, ids []uuid.UUID) error
}

// Dispatcher runs notifications as in-process asynchronous tasks. Dispatch
// never blocks the caller and never surfaces a failure to it: a notification
// outage must not make webhook ingestion appear to fail. Failed deliveries
// are logged and abandoned; the digest sweep picks the detection up later.
type Dispatcher struct {
	notifier   Notifier
	detections DetectionMarker
	logger     *slog.Logger
	metrics    *metrics.Metrics
	timeout    time.Duration
	tasks      chan *models.DetectionRecord
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithBuffer sets the task queue capacity.
func WithBuffer(size int) DispatcherOption {
	return func(d *Dispatcher) {
		d.tasks = make(chan *models.DetectionRecord, size)
	}
}

// NewDispatcher constructs a Dispatcher. Run must be started for dispatched
// tasks to be delivered.
func NewDispatcher(notifier Notifier, detections DetectionMarker, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier:   notifier,
		detections: detections,
		logger:     logger,
		timeout:    10 * time.Second,
		tasks:      make(chan *models.DetectionRecord, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch enqueues one detection for delivery. A full queue drops the task
// with a log line rather than blocking the ingestion request; the dropped
// detection remains eligible for the digest sweep.
func (d *Dispatcher) Dispatch(record *models.DetectionRecord) {
	select {
	case d.tasks <- record:
	default:
		d.logger.Warn("notification queue full, leaving detection for digest sweep",
			"detection_id", record.ID,
		)
		d.metrics.IncNotification("dropped")
	}
}

// Run consumes dispatched tasks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record := <-d.tasks:
			d.deliver(ctx, record)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, record *models.DetectionRecord) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.notifier.SendDetectionAlert(attemptCtx, record); err != nil {
		// Failure is terminal here; the detection record stays correct and
		// uncovered, so the digest sweep will include it.
		d.logger.ErrorContext(ctx, "notification delivery failed",
			"detection_id", record.ID,
			"subject_id", record.SubjectID,
			"error", err.Error(),
		)
		d.metrics.IncNotification("failed")
		return
	}

	if err := d.detections.MarkIncludedInDigest(attemptCtx, []uuid.UUID{record.ID}); err != nil {
		// Delivered but not marked: the sweep may re-notify once. Preferable
		// to the inverse, which would silently drop the detection.
		d.logger.ErrorContext(ctx, "failed to mark detection as notified",
			"detection_id", record.ID,
			"error", err.Error(),
		)
	}
	d.metrics.IncNotification("delivered")
}

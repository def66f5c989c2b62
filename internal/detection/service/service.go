package service

import (
	"context"
	"log/slog"
	"time"

	"pathfinder/internal/classify"
	"pathfinder/internal/detection/models"
	"pathfinder/internal/detection/store"
	ingestmodels "pathfinder/internal/ingest/models"
	"pathfinder/internal/platform/metrics"
	dErrors "pathfinder/pkg/domain-errors"
)

// Recorder owns all writes to SubjectState and the detection log. It is
// invoked only for senior verdicts.
type Recorder struct {
	states     store.StateStore
	detections store.DetectionStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New constructs a Recorder.
func New(states store.StateStore, detections store.DetectionStore, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{states: states, detections: detections, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record upserts the subject's current state and appends one detection
// record. Re-detections of an already-senior subject append a new row; the
// detection log is a history, not a flag. The record is durable before this
// returns, so notification can safely follow.
func (r *Recorder) Record(ctx context.Context, change ingestmodels.Change, verdict classify.Verdict, rulesVersion string) (*models.DetectionRecord, error) {
	now := time.Now()

	state := &models.SubjectState{
		SubjectID:       change.SubjectID,
		DisplayName:     change.DisplayName,
		CurrentTitle:    change.NewValue,
		CurrentLevel:    verdict.Level,
		FirstDetectedAt: now,
		LastSeenAt:      now,
	}
	if err := r.states.Upsert(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to upsert subject state")
	}

	record := &models.DetectionRecord{
		SubjectID:    change.SubjectID,
		DisplayName:  change.DisplayName,
		Title:        change.NewValue,
		Level:        verdict.Level,
		DetectedAt:   now,
		RulesVersion: rulesVersion,
	}
	if err := r.detections.Append(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append detection")
	}

	r.logger.InfoContext(ctx, "senior detection recorded",
		"detection_id", record.ID,
		"subject_id", change.SubjectID,
		"level", verdict.Level,
	)
	r.metrics.IncDetection(verdict.Level)

	return record, nil
}

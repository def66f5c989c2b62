package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pathfinder/internal/classify"
	detmodels "pathfinder/internal/detection/models"
	"pathfinder/internal/ingest/cache"
	"pathfinder/internal/ingest/models"
	"pathfinder/internal/ingest/store"
	"pathfinder/internal/platform/config"
	"pathfinder/internal/platform/metrics"
	dErrors "pathfinder/pkg/domain-errors"
)

// Status is the terminal outcome of one ingestion attempt.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusDuplicate Status = "duplicate"
	StatusSkipped   Status = "skipped"
)

// Classification outcomes reported to the webhook source.
const (
	ClassificationSenior    = "senior"
	ClassificationNotSenior = "not_senior"
	ClassificationPending   = "pending"
)

// Result summarizes one ingestion attempt.
type Result struct {
	Status         Status
	Reason         string
	EventID        int64
	Classification string
	Level          string
}

// Recorder persists senior verdicts; implemented by the detection service.
type Recorder interface {
	Record(ctx context.Context, change models.Change, verdict classify.Verdict, rulesVersion string) (*detmodels.DetectionRecord, error)
}

// Dispatcher hands a recorded detection to the isolated notification path.
type Dispatcher interface {
	Dispatch(record *detmodels.DetectionRecord)
}

// Service is the intake gate: it normalizes webhook payloads, enforces
// idempotency, and drives the classify/record/notify pipeline.
type Service struct {
	events     store.EventStore
	classifier classify.Classifier
	recorder   Recorder
	dispatcher Dispatcher
	mode       config.ProcessingMode
	cache      cache.FingerprintCache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithCache enables the fingerprint fast path.
func WithCache(c cache.FingerprintCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the intake service.
func New(events store.EventStore, classifier classify.Classifier, recorder Recorder, dispatcher Dispatcher, mode config.ProcessingMode, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		events:     events,
		classifier: classifier,
		recorder:   recorder,
		dispatcher: dispatcher,
		mode:       mode,
		logger:     logger,
		tracer:     otel.Tracer("pathfinder/ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest runs one webhook payload through the pipeline. Skip and duplicate
// outcomes are not errors; an error return means classification or
// persistence failed and the attempt should surface as a request failure.
func (s *Service) Ingest(ctx context.Context, payload models.WebhookPayload) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.webhook")
	defer span.End()

	start := time.Now()
	result, err := s.ingest(ctx, payload)
	if s.metrics != nil {
		s.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	span.SetAttributes(
		attribute.String("ingest.status", string(result.Status)),
		attribute.String("ingest.classification", result.Classification),
	)
	s.metrics.IncIngested(string(result.Status))
	return result, nil
}

func (s *Service) ingest(ctx context.Context, payload models.WebhookPayload) (Result, error) {
	change, reason := models.Normalize(payload)
	if reason != "" {
		s.logger.InfoContext(ctx, "event skipped", "reason", reason)
		return Result{Status: StatusSkipped, Reason: reason}, nil
	}

	fingerprint := change.Fingerprint()

	// Fast path: the cache answers most replays without a store round trip.
	// Its answer is advisory only.
	if s.cache != nil && s.cache.Seen(ctx, fingerprint) {
		s.logger.InfoContext(ctx, "duplicate event (cache)", "subject_id", change.SubjectID)
		return Result{Status: StatusDuplicate}, nil
	}

	if _, err := s.events.FindByFingerprint(ctx, fingerprint); err == nil {
		s.logger.InfoContext(ctx, "duplicate event", "subject_id", change.SubjectID)
		return Result{Status: StatusDuplicate}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "fingerprint lookup failed")
	}

	event := &models.ChangeEvent{
		SubjectID:   change.SubjectID,
		DisplayName: change.DisplayName,
		FieldName:   change.FieldName,
		NewValue:    change.NewValue,
		OldValue:    change.OldValue,
		Fingerprint: fingerprint,
		ReceivedAt:  time.Now(),
	}
	if err := s.events.Insert(ctx, event); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent delivery won the insert race.
			return Result{Status: StatusDuplicate}, nil
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store event")
	}

	if s.cache != nil {
		s.cache.Remember(ctx, fingerprint)
	}

	s.logger.InfoContext(ctx, "event accepted",
		"event_id", event.ID,
		"subject_id", change.SubjectID,
	)

	if s.mode == config.ModeDeferred {
		return Result{
			Status:         StatusAccepted,
			EventID:        event.ID,
			Classification: ClassificationPending,
		}, nil
	}

	classification, level, err := s.ProcessStored(ctx, event)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Status:         StatusAccepted,
		EventID:        event.ID,
		Classification: classification,
		Level:          level,
	}, nil
}

// ProcessStored classifies one stored event, records a detection on a senior
// verdict, and marks the event processed. It is shared by the immediate path
// and the deferred processor. A classification failure leaves the event
// unprocessed, eligible for operator-driven reprocessing.
func (s *Service) ProcessStored(ctx context.Context, event *models.ChangeEvent) (string, string, error) {
	change := event.Change()

	verdict, err := s.classifier.Classify(ctx, change.NewValue)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "classification failed")
	}

	if !verdict.IsSenior {
		if err := s.markProcessed(ctx, event); err != nil {
			return "", "", err
		}
		return ClassificationNotSenior, "", nil
	}

	record, err := s.recorder.Record(ctx, change, verdict, s.classifier.RulesVersion())
	if err != nil {
		return "", "", err
	}

	// The detection is durable; processing status reflects classification,
	// not notification.
	if err := s.markProcessed(ctx, event); err != nil {
		return "", "", err
	}

	s.dispatcher.Dispatch(record)

	return ClassificationSenior, verdict.Level, nil
}

func (s *Service) markProcessed(ctx context.Context, event *models.ChangeEvent) error {
	if err := s.events.MarkProcessed(ctx, event.ID, time.Now()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark event processed")
	}
	return nil
}

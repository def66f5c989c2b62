// Package digest batches detections that no immediate alert covered into a
// single email and Teams summary.
package digest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"pathfinder/internal/detection/models"
	dErrors "pathfinder/pkg/domain-errors"
)

// DetectionSource provides the detections awaiting digest coverage.
type DetectionSource interface {
	ListPendingDigest(ctx context.Context) ([]*models.DetectionRecord, error)
	MarkIncludedInDigest(ctx context.Context, ids []uuid.UUID) error
}

// Notifier delivers the assembled digest over the outbound channels.
type Notifier interface {
	SendEmailDigest(ctx context.Context, records []*models.DetectionRecord) error
	SendTeamsDigest(ctx context.Context, records []*models.DetectionRecord) error
}

// Service assembles and sends the pending-detections digest.
type Service struct {
	detections DetectionSource
	notifier   Notifier
	logger     *slog.Logger
}

func New(detections DetectionSource, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{detections: detections, notifier: notifier, logger: logger}
}

// Run sends one digest covering every pending detection. Detections are
// marked covered only after the email digest goes out; a Teams failure is
// logged but does not roll the marking back, matching the email channel as
// the channel of record.
func (s *Service) Run(ctx context.Context) error {
	pending, err := s.detections.ListPendingDigest(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending detections")
	}
	if len(pending) == 0 {
		s.logger.InfoContext(ctx, "no pending detections, skipping digest")
		return nil
	}

	if err := s.notifier.SendEmailDigest(ctx, pending); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to send email digest")
	}

	ids := make([]uuid.UUID, len(pending))
	for i, record := range pending {
		ids[i] = record.ID
	}
	if err := s.detections.MarkIncludedInDigest(ctx, ids); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark detections covered")
	}

	if err := s.notifier.SendTeamsDigest(ctx, pending); err != nil {
		s.logger.ErrorContext(ctx, "teams digest failed", "error", err, "count", len(pending))
	}

	s.logger.InfoContext(ctx, "digest sent", "count", len(pending))
	return nil
}

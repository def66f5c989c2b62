package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pathfinder/internal/detection/models"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// StateStore persists per-subject current state. Upsert conflict resolution
// happens at the store so concurrent writers need no application locks.
type StateStore interface {
	// Upsert creates the row on first detection or refreshes it on
	// re-detection. FirstDetectedAt is never overwritten once set.
	Upsert(ctx context.Context, state *models.SubjectState) error
	// Find returns the state for a subject or ErrNotFound.
	Find(ctx context.Context, subjectID string) (*models.SubjectState, error)
}

// DetectionStore persists the append-only detection log.
type DetectionStore interface {
	Append(ctx context.Context, record *models.DetectionRecord) error
	Find(ctx context.Context, id uuid.UUID) (*models.DetectionRecord, error)
	// ListPendingDigest returns detections not yet covered by any
	// notification, oldest first.
	ListPendingDigest(ctx context.Context) ([]*models.DetectionRecord, error)
	// MarkIncludedInDigest flips the digest flag for the given detections.
	MarkIncludedInDigest(ctx context.Context, ids []uuid.UUID) error
	// ListDetectedBetween returns detections in [from, to), oldest first.
	ListDetectedBetween(ctx context.Context, from, to time.Time) ([]*models.DetectionRecord, error)
	// CountByLevelBetween aggregates detections per seniority level in [from, to).
	CountByLevelBetween(ctx context.Context, from, to time.Time) (map[string]int, error)
}

package store

import (
	"context"
	"errors"
	"time"

	"pathfinder/internal/ingest/models"
)

// ErrNotFound indicates the requested event does not exist.
var ErrNotFound = errors.New("event not found")

// ErrDuplicate indicates an insert collided with an existing fingerprint.
// Callers treat it as the duplicate outcome, never as a failure.
var ErrDuplicate = errors.New("duplicate fingerprint")

// EventStore persists raw change events. The fingerprint uniqueness
// constraint lives here; it is the correctness backstop for deduplication
// under concurrent deliveries.
type EventStore interface {
	// Insert stores a new event and assigns its ID. Returns ErrDuplicate if
	// the fingerprint is already present.
	Insert(ctx context.Context, event *models.ChangeEvent) error
	// FindByFingerprint returns the stored event or ErrNotFound.
	FindByFingerprint(ctx context.Context, fingerprint string) (*models.ChangeEvent, error)
	// MarkProcessed flips the processed flag; it is the only mutation events
	// ever receive.
	MarkProcessed(ctx context.Context, id int64, at time.Time) error
	// ListUnprocessed returns up to limit events awaiting classification,
	// oldest first.
	ListUnprocessed(ctx context.Context, limit int) ([]*models.ChangeEvent, error)
	// PurgeProcessedBefore deletes processed events received before cutoff
	// and reports how many were removed.
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

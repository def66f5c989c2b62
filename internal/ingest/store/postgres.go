package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"pathfinder/internal/ingest/models"
)

// PostgresEventStore persists events in the events_raw table. The unique
// index on idempotency_key arbitrates concurrent duplicate inserts.
type PostgresEventStore struct {
	db *sql.DB
}

func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) Insert(ctx context.Context, event *models.ChangeEvent) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO events_raw (
			user_id, username, profile_field, value, old_value,
			idempotency_key, processed, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		event.SubjectID,
		event.DisplayName,
		event.FieldName,
		event.NewValue,
		nullString(event.OldValue),
		event.Fingerprint,
		event.ReceivedAt,
	).Scan(&event.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// DO NOTHING swallowed the conflicting insert.
		return ErrDuplicate
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) FindByFingerprint(ctx context.Context, fingerprint string) (*models.ChangeEvent, error) {
	query := `
		SELECT id, user_id, username, profile_field, value, old_value,
		       idempotency_key, processed, processed_at, received_at
		FROM events_raw
		WHERE idempotency_key = $1
	`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find event by fingerprint: %w", err)
	}
	return event, nil
}

func (s *PostgresEventStore) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE events_raw SET processed = TRUE, processed_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresEventStore) ListUnprocessed(ctx context.Context, limit int) ([]*models.ChangeEvent, error) {
	query := `
		SELECT id, user_id, username, profile_field, value, old_value,
		       idempotency_key, processed, processed_at, received_at
		FROM events_raw
		WHERE processed = FALSE
		ORDER BY id
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*models.ChangeEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unprocessed event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *PostgresEventStore) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM events_raw WHERE processed = TRUE AND received_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.ChangeEvent, error) {
	var (
		event       models.ChangeEvent
		oldValue    sql.NullString
		processedAt sql.NullTime
	)
	err := row.Scan(
		&event.ID,
		&event.SubjectID,
		&event.DisplayName,
		&event.FieldName,
		&event.NewValue,
		&oldValue,
		&event.Fingerprint,
		&event.Processed,
		&processedAt,
		&event.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}
	if oldValue.Valid {
		event.OldValue = &oldValue.String
	}
	if processedAt.Valid {
		event.ProcessedAt = &processedAt.Time
	}
	return &event, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pathfinder/internal/detection/models"
)

// PostgresStateStore persists subject state in the user_state table.
type PostgresStateStore struct {
	db *sql.DB
}

func NewPostgresStateStore(db *sql.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

// Upsert relies on ON CONFLICT to arbitrate concurrent writers:
// last-writer-wins for the mutable columns while first_detected_at is
// deliberately absent from the update list.
func (s *PostgresStateStore) Upsert(ctx context.Context, state *models.SubjectState) error {
	query := `
		INSERT INTO user_state (
			user_id, username, title, seniority_level,
			country, company, joined_at, first_detected_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			title = EXCLUDED.title,
			seniority_level = EXCLUDED.seniority_level,
			country = COALESCE(EXCLUDED.country, user_state.country),
			company = COALESCE(EXCLUDED.company, user_state.company),
			last_seen_at = EXCLUDED.last_seen_at
	`
	_, err := s.db.ExecContext(ctx, query,
		state.SubjectID,
		state.DisplayName,
		state.CurrentTitle,
		state.CurrentLevel,
		nullString(state.Country),
		nullString(state.Company),
		nullTime(state.JoinedAt),
		state.FirstDetectedAt,
		state.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subject state: %w", err)
	}
	return nil
}

func (s *PostgresStateStore) Find(ctx context.Context, subjectID string) (*models.SubjectState, error) {
	query := `
		SELECT user_id, username, title, seniority_level,
		       country, company, joined_at, first_detected_at, last_seen_at
		FROM user_state
		WHERE user_id = $1
	`
	var (
		state    models.SubjectState
		country  sql.NullString
		company  sql.NullString
		joinedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, subjectID).Scan(
		&state.SubjectID,
		&state.DisplayName,
		&state.CurrentTitle,
		&state.CurrentLevel,
		&country,
		&company,
		&joinedAt,
		&state.FirstDetectedAt,
		&state.LastSeenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subject state: %w", err)
	}
	if country.Valid {
		state.Country = &country.String
	}
	if company.Valid {
		state.Company = &company.String
	}
	if joinedAt.Valid {
		state.JoinedAt = &joinedAt.Time
	}
	return &state, nil
}

// PostgresDetectionStore persists the detection log in the detections table.
type PostgresDetectionStore struct {
	db *sql.DB
}

func NewPostgresDetectionStore(db *sql.DB) *PostgresDetectionStore {
	return &PostgresDetectionStore{db: db}
}

func (s *PostgresDetectionStore) Append(ctx context.Context, record *models.DetectionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.DetectedAt.IsZero() {
		record.DetectedAt = time.Now()
	}

	query := `
		INSERT INTO detections (
			id, user_id, username, title, seniority_level,
			country, company, detected_at, rules_version, included_in_digest
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.SubjectID,
		record.DisplayName,
		record.Title,
		record.Level,
		nullString(record.Country),
		nullString(record.Company),
		record.DetectedAt,
		record.RulesVersion,
		record.IncludedInDigest,
	)
	if err != nil {
		return fmt.Errorf("append detection: %w", err)
	}
	return nil
}

func (s *PostgresDetectionStore) Find(ctx context.Context, id uuid.UUID) (*models.DetectionRecord, error) {
	record, err := scanDetection(s.db.QueryRowContext(ctx, selectDetection+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find detection: %w", err)
	}
	return record, nil
}

func (s *PostgresDetectionStore) ListPendingDigest(ctx context.Context) ([]*models.DetectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectDetection+` WHERE included_in_digest = FALSE ORDER BY detected_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending digest: %w", err)
	}
	return collectDetections(rows)
}

func (s *PostgresDetectionStore) MarkIncludedInDigest(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE detections SET included_in_digest = TRUE WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("mark included in digest: %w", err)
	}
	return nil
}

func (s *PostgresDetectionStore) ListDetectedBetween(ctx context.Context, from, to time.Time) ([]*models.DetectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectDetection+` WHERE detected_at >= $1 AND detected_at < $2 ORDER BY detected_at`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list detections between: %w", err)
	}
	return collectDetections(rows)
}

func (s *PostgresDetectionStore) CountByLevelBetween(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seniority_level, COUNT(*)
		FROM detections
		WHERE detected_at >= $1 AND detected_at < $2
		GROUP BY seniority_level
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("count detections by level: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("scan level count: %w", err)
		}
		counts[level] = count
	}
	return counts, rows.Err()
}

const selectDetection = `
	SELECT id, user_id, username, title, seniority_level,
	       country, company, detected_at, rules_version, included_in_digest
	FROM detections`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(row rowScanner) (*models.DetectionRecord, error) {
	var (
		record  models.DetectionRecord
		country sql.NullString
		company sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&record.SubjectID,
		&record.DisplayName,
		&record.Title,
		&record.Level,
		&country,
		&company,
		&record.DetectedAt,
		&record.RulesVersion,
		&record.IncludedInDigest,
	)
	if err != nil {
		return nil, err
	}
	if country.Valid {
		record.Country = &country.String
	}
	if company.Valid {
		record.Company = &company.String
	}
	return &record, nil
}

func collectDetections(rows *sql.Rows) ([]*models.DetectionRecord, error) {
	defer rows.Close()

	var records []*models.DetectionRecord
	for rows.Next() {
		record, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

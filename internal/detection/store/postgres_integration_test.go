//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pathfinder/internal/detection/models"
	"pathfinder/internal/detection/store"
	"pathfinder/pkg/testutil/containers"
)

type PostgresDetectionSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	states     *store.PostgresStateStore
	detections *store.PostgresDetectionStore
}

func TestPostgresDetectionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresDetectionSuite))
}

func (s *PostgresDetectionSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.states = store.NewPostgresStateStore(s.postgres.DB)
	s.detections = store.NewPostgresDetectionStore(s.postgres.DB)
}

func (s *PostgresDetectionSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "detections", "user_state")
	s.Require().NoError(err)
}

func newTestState(subjectID string, detectedAt time.Time) *models.SubjectState {
	return &models.SubjectState{
		SubjectID:       subjectID,
		DisplayName:     "Test User",
		CurrentTitle:    "VP of Engineering",
		CurrentLevel:    "vp",
		FirstDetectedAt: detectedAt,
		LastSeenAt:      detectedAt,
	}
}

func newTestDetection(subjectID, level string, detectedAt time.Time) *models.DetectionRecord {
	return &models.DetectionRecord{
		ID:           uuid.New(),
		SubjectID:    subjectID,
		DisplayName:  "Test User",
		Title:        "VP of Engineering",
		Level:        level,
		DetectedAt:   detectedAt,
		RulesVersion: "v1",
	}
}

// TestFirstDetectedAtIsWriteOnce verifies that repeated upserts refresh every
// mutable column while the original first_detected_at survives.
func (s *PostgresDetectionSuite) TestFirstDetectedAtIsWriteOnce() {
	ctx := context.Background()
	first := time.Now().Add(-24 * time.Hour).Truncate(time.Millisecond)

	s.Require().NoError(s.states.Upsert(ctx, newTestState("u1", first)))

	later := time.Now().Truncate(time.Millisecond)
	updated := newTestState("u1", later)
	updated.CurrentTitle = "Chief Technology Officer"
	updated.CurrentLevel = "csuite"
	s.Require().NoError(s.states.Upsert(ctx, updated))

	found, err := s.states.Find(ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Chief Technology Officer", found.CurrentTitle)
	s.Equal("csuite", found.CurrentLevel)
	s.WithinDuration(first, found.FirstDetectedAt, time.Second)
	s.WithinDuration(later, found.LastSeenAt, time.Second)
}

// TestUpsertPreservesEnrichment verifies that an upsert carrying no country or
// company does not blank out values a previous write established.
func (s *PostgresDetectionSuite) TestUpsertPreservesEnrichment() {
	ctx := context.Background()
	now := time.Now()

	country := "Germany"
	company := "Acme GmbH"
	enriched := newTestState("u1", now)
	enriched.Country = &country
	enriched.Company = &company
	s.Require().NoError(s.states.Upsert(ctx, enriched))

	bare := newTestState("u1", now.Add(time.Hour))
	s.Require().NoError(s.states.Upsert(ctx, bare))

	found, err := s.states.Find(ctx, "u1")
	s.Require().NoError(err)
	s.Require().NotNil(found.Country)
	s.Equal("Germany", *found.Country)
	s.Require().NotNil(found.Company)
	s.Equal("Acme GmbH", *found.Company)
}

func (s *PostgresDetectionSuite) TestConcurrentUpsertSameSubject() {
	ctx := context.Background()
	const goroutines = 50
	origin := time.Now().Truncate(time.Millisecond)

	var wg sync.WaitGroup
	var upsertErrors atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			state := newTestState("u-race", origin)
			state.LastSeenAt = origin.Add(time.Duration(idx) * time.Millisecond)
			if err := s.states.Upsert(ctx, state); err != nil {
				upsertErrors.Add(1)
			}
		}(i)
	}

	wg.Wait()

	s.Equal(int32(0), upsertErrors.Load(), "all upserts should succeed")

	found, err := s.states.Find(ctx, "u-race")
	s.Require().NoError(err)
	s.WithinDuration(origin, found.FirstDetectedAt, time.Second)
}

func (s *PostgresDetectionSuite) TestStateNotFound() {
	_, err := s.states.Find(context.Background(), "ghost")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresDetectionSuite) TestAppendAndFindDetection() {
	ctx := context.Background()

	record := newTestDetection("u1", "vp", time.Now())
	s.Require().NoError(s.detections.Append(ctx, record))

	found, err := s.detections.Find(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal("u1", found.SubjectID)
	s.Equal("vp", found.Level)
	s.Equal("v1", found.RulesVersion)
	s.False(found.IncludedInDigest)
}

func (s *PostgresDetectionSuite) TestRepeatDetectionsAppend() {
	ctx := context.Background()
	now := time.Now()

	// The same subject detected twice produces two rows.
	s.Require().NoError(s.detections.Append(ctx, newTestDetection("u1", "vp", now)))
	s.Require().NoError(s.detections.Append(ctx, newTestDetection("u1", "csuite", now.Add(time.Minute))))

	pending, err := s.detections.ListPendingDigest(ctx)
	s.Require().NoError(err)
	s.Len(pending, 2)
}

func (s *PostgresDetectionSuite) TestMarkIncludedInDigest() {
	ctx := context.Background()
	now := time.Now()

	first := newTestDetection("u1", "vp", now)
	second := newTestDetection("u2", "csuite", now)
	third := newTestDetection("u3", "director", now)
	for _, record := range []*models.DetectionRecord{first, second, third} {
		s.Require().NoError(s.detections.Append(ctx, record))
	}

	err := s.detections.MarkIncludedInDigest(ctx, []uuid.UUID{first.ID, second.ID})
	s.Require().NoError(err)

	pending, err := s.detections.ListPendingDigest(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(third.ID, pending[0].ID)
}

func (s *PostgresDetectionSuite) TestMarkIncludedInDigestEmpty() {
	s.NoError(s.detections.MarkIncludedInDigest(context.Background(), nil))
}

func (s *PostgresDetectionSuite) TestListDetectedBetween() {
	ctx := context.Background()
	base := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)

	inside := newTestDetection("u1", "vp", base)
	before := newTestDetection("u2", "vp", base.Add(-48*time.Hour))
	after := newTestDetection("u3", "vp", base.Add(48*time.Hour))
	for _, record := range []*models.DetectionRecord{inside, before, after} {
		s.Require().NoError(s.detections.Append(ctx, record))
	}

	records, err := s.detections.ListDetectedBetween(ctx, base.Add(-24*time.Hour), base.Add(24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(inside.ID, records[0].ID)
}

func (s *PostgresDetectionSuite) TestCountByLevelBetween() {
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.detections.Append(ctx, newTestDetection("u1", "vp", base)))
	s.Require().NoError(s.detections.Append(ctx, newTestDetection("u2", "vp", base.Add(time.Hour))))
	s.Require().NoError(s.detections.Append(ctx, newTestDetection("u3", "csuite", base.Add(2*time.Hour))))

	counts, err := s.detections.CountByLevelBetween(ctx, base, base.AddDate(0, 1, 0))
	s.Require().NoError(err)
	s.Equal(map[string]int{"vp": 2, "csuite": 1}, counts)
}

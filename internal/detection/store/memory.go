package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pathfinder/internal/detection/models"
)

// InMemoryStateStore keeps subject state in process memory.
type InMemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]*models.SubjectState
}

func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{states: make(map[string]*models.SubjectState)}
}

func (s *InMemoryStateStore) Upsert(_ context.Context, state *models.SubjectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.states[state.SubjectID]
	if ok {
		// Write-once field survives every re-detection.
		state.FirstDetectedAt = existing.FirstDetectedAt
	}
	stored := *state
	s.states[state.SubjectID] = &stored
	return nil
}

func (s *InMemoryStateStore) Find(_ context.Context, subjectID string) (*models.SubjectState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *state
	return &copied, nil
}

// InMemoryDetectionStore keeps the detection log in process memory.
type InMemoryDetectionStore struct {
	mu      sync.RWMutex
	records []*models.DetectionRecord
}

func NewInMemoryDetectionStore() *InMemoryDetectionStore {
	return &InMemoryDetectionStore{}
}

func (s *InMemoryDetectionStore) Append(_ context.Context, record *models.DetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.DetectedAt.IsZero() {
		record.DetectedAt = time.Now()
	}
	stored := *record
	s.records = append(s.records, &stored)
	return nil
}

func (s *InMemoryDetectionStore) Find(_ context.Context, id uuid.UUID) (*models.DetectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.ID == id {
			copied := *record
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryDetectionStore) ListPendingDigest(_ context.Context) ([]*models.DetectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.DetectionRecord
	for _, record := range s.records {
		if !record.IncludedInDigest {
			copied := *record
			pending = append(pending, &copied)
		}
	}
	sortByDetectedAt(pending)
	return pending, nil
}

func (s *InMemoryDetectionStore) MarkIncludedInDigest(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for _, record := range s.records {
		if marked[record.ID] {
			record.IncludedInDigest = true
		}
	}
	return nil
}

func (s *InMemoryDetectionStore) ListDetectedBetween(_ context.Context, from, to time.Time) ([]*models.DetectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.DetectionRecord
	for _, record := range s.records {
		if !record.DetectedAt.Before(from) && record.DetectedAt.Before(to) {
			copied := *record
			matched = append(matched, &copied)
		}
	}
	sortByDetectedAt(matched)
	return matched, nil
}

func (s *InMemoryDetectionStore) CountByLevelBetween(ctx context.Context, from, to time.Time) (map[string]int, error) {
	records, err := s.ListDetectedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, record := range records {
		counts[record.Level]++
	}
	return counts, nil
}

func sortByDetectedAt(records []*models.DetectionRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].DetectedAt.Before(records[j].DetectedAt)
	})
}

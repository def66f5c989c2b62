package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pathfinder/internal/ingest/models"
)

// InMemoryEventStore keeps events in process memory. Used by unit tests and
// local runs without a database.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.ChangeEvent
	byFP   map[string]int64
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		nextID: 1,
		byID:   make(map[int64]*models.ChangeEvent),
		byFP:   make(map[string]int64),
	}
}

func (s *InMemoryEventStore) Insert(_ context.Context, event *models.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byFP[event.Fingerprint]; exists {
		return ErrDuplicate
	}

	event.ID = s.nextID
	s.nextID++
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	stored := *event
	s.byID[event.ID] = &stored
	s.byFP[event.Fingerprint] = event.ID
	return nil
}

func (s *InMemoryEventStore) FindByFingerprint(_ context.Context, fingerprint string) (*models.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byFP[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.byID[id]
	return &copied, nil
}

func (s *InMemoryEventStore) MarkProcessed(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	event.Processed = true
	event.ProcessedAt = &at
	return nil
}

func (s *InMemoryEventStore) ListUnprocessed(_ context.Context, limit int) ([]*models.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.ChangeEvent
	for _, event := range s.byID {
		if !event.Processed {
			copied := *event
			pending = append(pending, &copied)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *InMemoryEventStore) PurgeProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, event := range s.byID {
		if event.Processed && event.ReceivedAt.Before(cutoff) {
			delete(s.byFP, event.Fingerprint)
			delete(s.byID, id)
			purged++
		}
	}
	return purged, nil
}

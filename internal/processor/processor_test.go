package processor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/ingest/models"
	"pathfinder/internal/ingest/store"
)

type stubPipeline struct {
	calls  int
	failOn map[int64]error
}

func (p *stubPipeline) ProcessStored(_ context.Context, event *models.ChangeEvent) (string, string, error) {
	p.calls++
	if err, ok := p.failOn[event.ID]; ok {
		return "", "", err
	}
	return "senior", "vp", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func storedEvent(t *testing.T, events *store.InMemoryEventStore, subjectID, title string) *models.ChangeEvent {
	t.Helper()
	change := models.Change{SubjectID: subjectID, FieldName: models.JobTitleField, NewValue: title}
	event := &models.ChangeEvent{
		SubjectID:   change.SubjectID,
		FieldName:   change.FieldName,
		NewValue:    change.NewValue,
		Fingerprint: change.Fingerprint(),
		ReceivedAt:  time.Now(),
	}
	require.NoError(t, events.Insert(context.Background(), event))
	return event
}

func TestDrainProcessesPendingEvents(t *testing.T) {
	events := store.NewInMemoryEventStore()
	storedEvent(t, events, "u1", "VP of Engineering")
	storedEvent(t, events, "u2", "CTO")

	pipeline := &stubPipeline{}
	p := New(events, pipeline, testLogger())

	require.NoError(t, p.Drain(context.Background()))
	assert.Equal(t, 2, pipeline.calls)
}

func TestDrainEmptyStoreIsNoop(t *testing.T) {
	pipeline := &stubPipeline{}
	p := New(store.NewInMemoryEventStore(), pipeline, testLogger())

	require.NoError(t, p.Drain(context.Background()))
	assert.Zero(t, pipeline.calls)
}

func TestDrainSkipsFailingEvent(t *testing.T) {
	events := store.NewInMemoryEventStore()
	poisoned := storedEvent(t, events, "u1", "VP of Engineering")
	storedEvent(t, events, "u2", "CTO")

	pipeline := &stubPipeline{failOn: map[int64]error{poisoned.ID: errors.New("rule engine down")}}
	p := New(events, pipeline, testLogger())

	require.NoError(t, p.Drain(context.Background()))
	assert.Equal(t, 2, pipeline.calls, "failure on one event must not stall the batch")
}

func TestDrainHonorsBatchSize(t *testing.T) {
	events := store.NewInMemoryEventStore()
	for i, title := range []string{"VP A", "VP B", "VP C"} {
		storedEvent(t, events, "u-batch", title+string(rune('0'+i)))
	}

	pipeline := &stubPipeline{}
	p := New(events, pipeline, testLogger(), WithBatchSize(2))

	require.NoError(t, p.Drain(context.Background()))
	assert.Equal(t, 2, pipeline.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	p := New(store.NewInMemoryEventStore(), &stubPipeline{}, testLogger(), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

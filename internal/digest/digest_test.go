package digest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/detection/models"
	"pathfinder/internal/detection/store"
	dErrors "pathfinder/pkg/domain-errors"
)

type stubNotifier struct {
	emailCalls int
	teamsCalls int
	emailSize  int
	emailErr   error
	teamsErr   error
}

func (n *stubNotifier) SendEmailDigest(_ context.Context, records []*models.DetectionRecord) error {
	n.emailCalls++
	n.emailSize = len(records)
	return n.emailErr
}

func (n *stubNotifier) SendTeamsDigest(_ context.Context, records []*models.DetectionRecord) error {
	n.teamsCalls++
	return n.teamsErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func appendDetection(t *testing.T, detections *store.InMemoryDetectionStore, subjectID string) *models.DetectionRecord {
	t.Helper()
	record := &models.DetectionRecord{
		ID:           uuid.New(),
		SubjectID:    subjectID,
		DisplayName:  "User " + subjectID,
		Title:        "VP of Engineering",
		Level:        "vp",
		DetectedAt:   time.Now(),
		RulesVersion: "v1",
	}
	require.NoError(t, detections.Append(context.Background(), record))
	return record
}

func TestRunSendsDigestAndMarksCovered(t *testing.T) {
	detections := store.NewInMemoryDetectionStore()
	appendDetection(t, detections, "u1")
	appendDetection(t, detections, "u2")

	notifier := &stubNotifier{}
	svc := New(detections, notifier, testLogger())

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, 1, notifier.emailCalls)
	assert.Equal(t, 2, notifier.emailSize)
	assert.Equal(t, 1, notifier.teamsCalls)

	pending, err := detections.ListPendingDigest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunNoPendingIsNoop(t *testing.T) {
	notifier := &stubNotifier{}
	svc := New(store.NewInMemoryDetectionStore(), notifier, testLogger())

	require.NoError(t, svc.Run(context.Background()))
	assert.Zero(t, notifier.emailCalls)
	assert.Zero(t, notifier.teamsCalls)
}

func TestRunEmailFailureLeavesDetectionsPending(t *testing.T) {
	detections := store.NewInMemoryDetectionStore()
	appendDetection(t, detections, "u1")

	notifier := &stubNotifier{emailErr: errors.New("control room unreachable")}
	svc := New(detections, notifier, testLogger())

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	// Failed digests stay pending for the next run.
	pending, listErr := detections.ListPendingDigest(context.Background())
	require.NoError(t, listErr)
	assert.Len(t, pending, 1)
	assert.Zero(t, notifier.teamsCalls)
}

func TestRunTeamsFailureDoesNotFailDigest(t *testing.T) {
	detections := store.NewInMemoryDetectionStore()
	appendDetection(t, detections, "u1")

	notifier := &stubNotifier{teamsErr: errors.New("webhook rejected")}
	svc := New(detections, notifier, testLogger())

	require.NoError(t, svc.Run(context.Background()))

	pending, err := detections.ListPendingDigest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

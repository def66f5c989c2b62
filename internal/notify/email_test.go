package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/detection/models"
)

func TestBuildAlertHTML(t *testing.T) {
	body, err := BuildAlertHTML(&models.DetectionRecord{
		DisplayName: "Alice",
		Title:       "VP of Engineering",
		Level:       "vp",
		DetectedAt:  time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Alice")
	assert.Contains(t, body, "VP of Engineering")
	assert.Contains(t, body, "VP")
}

func TestBuildAlertHTMLEscapesMarkup(t *testing.T) {
	body, err := BuildAlertHTML(&models.DetectionRecord{
		DisplayName: "<script>alert(1)</script>",
		Title:       "CEO",
		Level:       "csuite",
		DetectedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestBuildDigestHTML(t *testing.T) {
	records := []*models.DetectionRecord{
		{DisplayName: "Alice", Title: "CEO", Level: "csuite", DetectedAt: time.Now()},
		{DisplayName: "Bob", Title: "SVP Engineering", Level: "vp", DetectedAt: time.Now()},
	}
	body, err := BuildDigestHTML(records)
	require.NoError(t, err)
	assert.Contains(t, body, "Alice")
	assert.Contains(t, body, "Bob")
	assert.Contains(t, body, "Total detections:</strong> 2")
}

func TestBuildTeamsDigest(t *testing.T) {
	msg := BuildTeamsDigest([]*models.DetectionRecord{
		{DisplayName: "Alice", Title: "CEO", Level: "csuite", DetectedAt: time.Now()},
	})
	assert.Contains(t, msg, "**Alice**")
	assert.Contains(t, msg, "CSUITE")
	assert.Contains(t, msg, "Total detections:** 1")
}

func TestBuildersHandleMissingFields(t *testing.T) {
	body, err := BuildAlertHTML(&models.DetectionRecord{DetectedAt: time.Now()})
	require.NoError(t, err)
	assert.Contains(t, body, "N/A")

	msg := BuildTeamsDigest([]*models.DetectionRecord{{DetectedAt: time.Now()}})
	assert.Contains(t, msg, "N/A")
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SubjectState is the current known state for one subject, one row per
// subject. FirstDetectedAt is write-once; every subsequent senior verdict
// only refreshes the remaining fields.
type SubjectState struct {
	SubjectID       string
	DisplayName     string
	CurrentTitle    string
	CurrentLevel    string
	Country         *string
	Company         *string
	JoinedAt        *time.Time
	FirstDetectedAt time.Time
	LastSeenAt      time.Time
}

// DetectionRecord is one immutable senior-verdict occurrence. Records are
// append-only; the only permitted mutation is the IncludedInDigest flip,
// performed exactly once by either the immediate notifier or a digest sweep.
type DetectionRecord struct {
	ID               uuid.UUID
	SubjectID        string
	DisplayName      string
	Title            string
	Level            string
	Country          *string
	Company          *string
	DetectedAt       time.Time
	RulesVersion     string
	IncludedInDigest bool
}

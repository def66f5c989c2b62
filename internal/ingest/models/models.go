package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// JobTitleField is the only profile field with downstream meaning.
const JobTitleField = "Job Title"

// Skip reasons returned to the webhook source for uninteresting payloads.
const (
	ReasonNoJobTitleOnRegistration = "no_job_title_on_registration"
	ReasonNotJobTitle              = "not_job_title"
	ReasonUnsupportedEventType     = "unsupported_event_type"
)

// WebhookPayload is the union of the two upstream shapes. The community
// platform is inconsistent about key casing, so both spellings are decoded
// and reconciled during normalization.
type WebhookPayload struct {
	Event string `json:"event"`
	Type  string `json:"type"`

	// Profile-update shape.
	UserID        string  `json:"userId"`
	UserIDSnake   string  `json:"user_id"`
	Username      string  `json:"username"`
	ProfileField  string  `json:"profileField"`
	ProfileSnake  string  `json:"profile_field"`
	Value         string  `json:"value"`
	OldValue      *string `json:"oldValue"`
	OldValueSnake *string `json:"old_value"`

	// Registration shape.
	User     *RegisteredUser `json:"user"`
	JobTitle string          `json:"jobTitle"`
}

// RegisteredUser carries the nested user object on registration events.
type RegisteredUser struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	DisplayName   string `json:"displayName"`
	JobTitle      string `json:"jobTitle"`
	JobTitleSnake string `json:"job_title"`
}

// Change is the canonical change record both upstream shapes normalize into.
type Change struct {
	SubjectID   string
	DisplayName string
	FieldName   string
	NewValue    string
	OldValue    *string
}

// Fingerprint returns the hex-encoded SHA-256 digest over the
// (subject, field, new value) tuple. Two updates that set the same title
// back to a previously seen value collapse to one fingerprint; that is the
// intended dedupe granularity.
func (c Change) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.SubjectID + "|" + c.FieldName + "|" + c.NewValue))
	return hex.EncodeToString(sum[:])
}

// ChangeEvent is the persisted form of a Change, immutable except for the
// processed flag.
type ChangeEvent struct {
	ID          int64
	SubjectID   string
	DisplayName string
	FieldName   string
	NewValue    string
	OldValue    *string
	Fingerprint string
	Processed   bool
	ProcessedAt *time.Time
	ReceivedAt  time.Time
}

// Change reconstructs the canonical change from a stored event, used by the
// deferred processor.
func (e *ChangeEvent) Change() Change {
	return Change{
		SubjectID:   e.SubjectID,
		DisplayName: e.DisplayName,
		FieldName:   e.FieldName,
		NewValue:    e.NewValue,
		OldValue:    e.OldValue,
	}
}

// Normalize maps a raw payload onto the canonical change. A non-empty skip
// reason means the payload is recognized but carries nothing to process.
func Normalize(p WebhookPayload) (Change, string) {
	switch eventKind(p) {
	case kindRegistered:
		return normalizeRegistration(p)
	case kindProfileUpdated:
		return normalizeProfileUpdate(p)
	default:
		return Change{}, ReasonUnsupportedEventType
	}
}

type kind int

const (
	kindUnknown kind = iota
	kindRegistered
	kindProfileUpdated
)

func eventKind(p WebhookPayload) kind {
	event := p.Event
	if event == "" {
		event = p.Type
	}
	switch event {
	case "Registered", "integration.UserRegistered":
		return kindRegistered
	case "ProfileUpdated", "integration.UserProfileUpdated":
		return kindProfileUpdated
	default:
		return kindUnknown
	}
}

func normalizeRegistration(p WebhookPayload) (Change, string) {
	subjectID := firstNonEmpty(p.UserID, p.UserIDSnake)
	displayName := p.Username
	jobTitle := p.JobTitle
	if p.User != nil {
		subjectID = firstNonEmpty(subjectID, p.User.ID, p.User.UserID)
		displayName = firstNonEmpty(displayName, p.User.Username, p.User.DisplayName)
		jobTitle = firstNonEmpty(jobTitle, p.User.JobTitle, p.User.JobTitleSnake)
	}

	if strings.TrimSpace(jobTitle) == "" {
		return Change{}, ReasonNoJobTitleOnRegistration
	}

	// Registration carries no prior value.
	return Change{
		SubjectID:   subjectID,
		DisplayName: displayName,
		FieldName:   JobTitleField,
		NewValue:    jobTitle,
	}, ""
}

func normalizeProfileUpdate(p WebhookPayload) (Change, string) {
	field := firstNonEmpty(p.ProfileField, p.ProfileSnake)
	if field != JobTitleField {
		return Change{}, ReasonNotJobTitle
	}

	oldValue := p.OldValue
	if oldValue == nil {
		oldValue = p.OldValueSnake
	}

	return Change{
		SubjectID:   firstNonEmpty(p.UserID, p.UserIDSnake),
		DisplayName: p.Username,
		FieldName:   field,
		NewValue:    p.Value,
		OldValue:    oldValue,
	}, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

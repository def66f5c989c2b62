package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProfileUpdate(t *testing.T) {
	old := "Engineering Manager"
	change, reason := Normalize(WebhookPayload{
		Event:        "ProfileUpdated",
		UserID:       "u1",
		Username:     "Alice",
		ProfileField: "Job Title",
		Value:        "VP of Engineering",
		OldValue:     &old,
	})

	require.Empty(t, reason)
	assert.Equal(t, "u1", change.SubjectID)
	assert.Equal(t, "Alice", change.DisplayName)
	assert.Equal(t, JobTitleField, change.FieldName)
	assert.Equal(t, "VP of Engineering", change.NewValue)
	require.NotNil(t, change.OldValue)
	assert.Equal(t, old, *change.OldValue)
}

func TestNormalizeProfileUpdateOtherField(t *testing.T) {
	_, reason := Normalize(WebhookPayload{
		Event:        "ProfileUpdated",
		UserID:       "u1",
		ProfileField: "Location",
		Value:        "NYC",
	})
	assert.Equal(t, ReasonNotJobTitle, reason)
}

func TestNormalizeRegistration(t *testing.T) {
	change, reason := Normalize(WebhookPayload{
		Event: "Registered",
		User: &RegisteredUser{
			ID:       "u7",
			Username: "Bob",
			JobTitle: "Chief Technology Officer",
		},
	})

	require.Empty(t, reason)
	assert.Equal(t, "u7", change.SubjectID)
	assert.Equal(t, "Bob", change.DisplayName)
	assert.Equal(t, JobTitleField, change.FieldName)
	assert.Equal(t, "Chief Technology Officer", change.NewValue)
	assert.Nil(t, change.OldValue)
}

func TestNormalizeRegistrationWithoutJobTitle(t *testing.T) {
	_, reason := Normalize(WebhookPayload{
		Event: "Registered",
		User:  &RegisteredUser{ID: "u7", Username: "Bob"},
	})
	assert.Equal(t, ReasonNoJobTitleOnRegistration, reason)

	_, reason = Normalize(WebhookPayload{
		Event: "Registered",
		User:  &RegisteredUser{ID: "u7", JobTitle: "   "},
	})
	assert.Equal(t, ReasonNoJobTitleOnRegistration, reason)
}

func TestNormalizeUnsupportedEvent(t *testing.T) {
	_, reason := Normalize(WebhookPayload{Event: "TopicCreated"})
	assert.Equal(t, ReasonUnsupportedEventType, reason)

	_, reason = Normalize(WebhookPayload{})
	assert.Equal(t, ReasonUnsupportedEventType, reason)
}

func TestNormalizeAlternateCasings(t *testing.T) {
	raw := `{
		"type": "integration.UserProfileUpdated",
		"user_id": "u3",
		"username": "Cleo",
		"profile_field": "Job Title",
		"value": "SVP Engineering",
		"old_value": "VP Engineering"
	}`
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	change, reason := Normalize(p)
	require.Empty(t, reason)
	assert.Equal(t, "u3", change.SubjectID)
	assert.Equal(t, "SVP Engineering", change.NewValue)
	require.NotNil(t, change.OldValue)
	assert.Equal(t, "VP Engineering", *change.OldValue)
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Change{SubjectID: "u1", FieldName: JobTitleField, NewValue: "CEO"}
	b := Change{SubjectID: "u1", FieldName: JobTitleField, NewValue: "CEO"}
	c := Change{SubjectID: "u2", FieldName: JobTitleField, NewValue: "CEO"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFingerprintIgnoresOldValue(t *testing.T) {
	old := "CFO"
	a := Change{SubjectID: "u1", FieldName: JobTitleField, NewValue: "CEO"}
	b := Change{SubjectID: "u1", FieldName: JobTitleField, NewValue: "CEO", OldValue: &old}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

package controlroom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/platform/config"
)

func testConfig(authURL, deployURL string) config.ControlRoomConfig {
	return config.ControlRoomConfig{
		URL:          deployURL,
		AuthEndpoint: authURL,
		Username:     "pathfinder-svc",
		APIKey:       "secret",
		Timeout:      time.Second,
	}
}

func TestAuthenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pathfinder-svc", req.Username)
		assert.Equal(t, "secret", req.APIKey)
		assert.False(t, req.MultipleLogin)

		_, _ = w.Write([]byte(`{"token": "tok-123"}`))
	}))
	defer server.Close()

	c := New(testConfig(server.URL, ""))
	token, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestAuthenticateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(testConfig(server.URL, ""))
	_, err := c.Authenticate(context.Background())
	assert.Error(t, err)
}

func TestAuthenticateEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(testConfig(server.URL, ""))
	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty token")
}

func TestDeployFormatsInputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/automations/deploy", r.URL.Path)
		assert.Equal(t, "tok-123", r.Header.Get("X-Authorization"))

		var req deployRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 42, req.BotID)
		assert.Equal(t, PriorityHigh, req.AutomationPriority)
		require.Contains(t, req.BotInput, "emailSubject")
		assert.Equal(t, "STRING", req.BotInput["emailSubject"].Type)
		assert.Equal(t, "hello", req.BotInput["emailSubject"].String)

		_, _ = w.Write([]byte(`{"deploymentId": "dep-7"}`))
	}))
	defer server.Close()

	c := New(testConfig("", server.URL))
	id, err := c.Deploy(context.Background(), "tok-123", 42, "Alert",
		map[string]string{"emailSubject": "hello"}, PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, "dep-7", id)
}

func TestDeployFallsBackToAutomationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"automationId": "auto-9"}`))
	}))
	defer server.Close()

	c := New(testConfig("", server.URL))
	id, err := c.Deploy(context.Background(), "tok", 1, "Alert", nil, PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, "auto-9", id)
}

func TestDeployNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream broke"))
	}))
	defer server.Close()

	c := New(testConfig("", server.URL))
	_, err := c.Deploy(context.Background(), "tok", 1, "Alert", nil, PriorityHigh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

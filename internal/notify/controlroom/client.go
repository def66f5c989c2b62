// Package controlroom is the outbound boundary to the external automation
// service that actually delivers notifications.
package controlroom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"pathfinder/internal/platform/config"
)

// Priorities accepted by the deploy endpoint.
const (
	PriorityHigh   = "PRIORITY_HIGH"
	PriorityMedium = "PRIORITY_MEDIUM"
)

// Client authenticates against the control room and deploys automations.
// Every call carries the caller's context; the HTTP client enforces the
// configured bounded timeout on top of it.
type Client struct {
	cfg    config.ControlRoomConfig
	client *http.Client
}

// New builds a control room client from configuration.
func New(cfg config.ControlRoomConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type authRequest struct {
	Username      string `json:"username"`
	APIKey        string `json:"apiKey"`
	MultipleLogin bool   `json:"multipleLogin"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges the configured credentials for a session token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	body, err := json.Marshal(authRequest{
		Username:      c.cfg.Username,
		APIKey:        c.cfg.APIKey,
		MultipleLogin: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("control room auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("control room auth failed: status %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if auth.Token == "" {
		return "", fmt.Errorf("control room auth returned empty token")
	}
	return auth.Token, nil
}

type botInput struct {
	Type   string `json:"type"`
	String string `json:"string"`
}

type deployRequest struct {
	BotID              int                 `json:"botId"`
	AutomationName     string              `json:"automationName"`
	Description        string              `json:"description"`
	BotInput           map[string]botInput `json:"botInput"`
	AutomationPriority string              `json:"automationPriority"`
	RunElevated        bool                `json:"runElevated"`
	HideBotAgentUI     bool                `json:"hideBotAgentUi"`
}

type deployResponse struct {
	DeploymentID string `json:"deploymentId"`
	AutomationID string `json:"automationId"`
}

// Deploy triggers one automation with STRING-typed inputs and returns the
// deployment identifier.
func (c *Client) Deploy(ctx context.Context, token string, botID int, name string, inputs map[string]string, priority string) (string, error) {
	formatted := make(map[string]botInput, len(inputs))
	for key, value := range inputs {
		formatted[key] = botInput{Type: "STRING", String: value}
	}

	body, err := json.Marshal(deployRequest{
		BotID:              botID,
		AutomationName:     name,
		Description:        "Deployed by pathfinder - " + name,
		BotInput:           formatted,
		AutomationPriority: priority,
	})
	if err != nil {
		return "", fmt.Errorf("marshal deploy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v3/automations/deploy", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build deploy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Authorization", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deploy automation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("deploy automation failed: status %d: %s", resp.StatusCode, detail)
	}

	var deployed deployResponse
	if err := json.NewDecoder(resp.Body).Decode(&deployed); err != nil {
		return "", fmt.Errorf("decode deploy response: %w", err)
	}
	if deployed.DeploymentID != "" {
		return deployed.DeploymentID, nil
	}
	return deployed.AutomationID, nil
}

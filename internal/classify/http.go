package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClassifier calls the rule engine over HTTP. The engine answers with a
// single-element result set.
type HTTPClassifier struct {
	baseURL      string
	client       *http.Client
	rulesVersion string
}

// NewHTTPClassifier builds a classifier against the given rule engine URL.
func NewHTTPClassifier(baseURL string, timeout time.Duration, rulesVersion string) *HTTPClassifier {
	if rulesVersion == "" {
		rulesVersion = "v1"
	}
	return &HTTPClassifier{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: timeout},
		rulesVersion: rulesVersion,
	}
}

type classifyRequest struct {
	Title string `json:"title"`
}

type classifyResponse struct {
	IsSenior       bool   `json:"is_senior"`
	SeniorityLevel string `json:"seniority_level"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, title string) (Verdict, error) {
	body, err := json.Marshal(classifyRequest{Title: title})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("call rule engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("rule engine returned status %d", resp.StatusCode)
	}

	var results []classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Verdict{}, fmt.Errorf("decode classify response: %w", err)
	}
	if len(results) != 1 {
		return Verdict{}, fmt.Errorf("rule engine returned %d results, want 1", len(results))
	}

	return Verdict{
		IsSenior: results[0].IsSenior,
		Level:    results[0].SeniorityLevel,
	}, nil
}

func (c *HTTPClassifier) RulesVersion() string {
	return c.rulesVersion
}

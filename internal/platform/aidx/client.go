// Package aidx is the boundary to the external differential-diagnosis
// model. The model is a black box: it takes a complaint plus vital signs
// and returns a ranked list of diagnosis candidates. Probabilities are
// carried structurally end to end; the display string is derived only at
// the presentation boundary via FormatSuggestion.
package aidx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rhuis/rhuis/internal/platform/errs"
)

// Suggestion is one ranked diagnosis candidate. Probability is in [0,1].
type Suggestion struct {
	Name        string  `json:"diagnosis"`
	Probability float64 `json:"probability"`
}

// FormatSuggestion renders a candidate for display and for the verbatim
// ai_approved diagnosis text, e.g. "Influenza (42.0%)".
func FormatSuggestion(s Suggestion) string {
	return fmt.Sprintf("%s (%.1f%%)", s.Name, s.Probability*100)
}

// Request carries the complaint and vitals sent to the model.
type Request struct {
	Complaint    string   `json:"complaint"`
	Age          *int     `json:"age,omitempty"`
	SystolicBP   *int     `json:"systolic_bp,omitempty"`
	DiastolicBP  *int     `json:"diastolic_bp,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	HeartRateBPM *int     `json:"heart_rate_bpm,omitempty"`
	RespRateCPM  *int     `json:"resp_rate_cpm,omitempty"`
}

type response struct {
	Top3  []Suggestion `json:"top3"`
	Error string       `json:"error,omitempty"`
}

// Config holds the adapter's connection settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// DefaultConfig returns conservative adapter settings.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		Retries:    2,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Client calls the diagnosis suggestion service.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Suggest returns the ranked candidates for a complaint. Network and 5xx
// failures surface as errs.Transient so the caller may retry the whole
// operation; a model-reported error is terminal.
func (c *Client) Suggest(ctx context.Context, req Request) ([]Suggestion, error) {
	if req.Complaint == "" {
		return nil, errs.Validation("complaint is required", map[string]string{
			"complaint": "must not be empty",
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal suggestion request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 && c.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, errs.Transient(ctx.Err())
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		suggestions, retryable, err := c.doSuggest(ctx, body)
		if err == nil {
			return suggestions, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doSuggest(ctx context.Context, body []byte) ([]Suggestion, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/suggest", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build suggestion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, errs.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, errs.Transient(fmt.Errorf("diagnosis service returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("diagnosis service returned %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decode suggestion response: %w", err)
	}
	if out.Error != "" {
		return nil, false, fmt.Errorf("diagnosis service error: %s", out.Error)
	}
	return out.Top3, false, nil
}

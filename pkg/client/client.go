// Package client is a small SDK for submitting traces to a running
// trace service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client submits traces with an API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the service at baseURL.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// TraceRecord mirrors the wire shape of a stored trace.
type TraceRecord struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Task        string          `json:"task"`
	Context     json.RawMessage `json:"context"`
	ModelOutput json.RawMessage `json:"model_output"`
	Metadata    json.RawMessage `json:"metadata"`
}

// Trace records one tool invocation. The id and timestamp are
// generated client-side so retried submissions stay idempotent.
// Metadata may be nil.
func (c *Client) Trace(ctx context.Context, task string, contextData, modelOutput, metadata any) (*TraceRecord, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	payload := map[string]any{
		"id":           uuid.New().String(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"task":         task,
		"context":      contextData,
		"model_output": modelOutput,
		"metadata":     metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/traces", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit trace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return nil, fmt.Errorf("trace rejected: %s", apiErr.Error)
	}

	var stored TraceRecord
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &stored, nil
}

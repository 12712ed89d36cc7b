package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response from the pipeline backend. Detail
// carries the server-provided message when the body was parseable, the
// HTTP status text otherwise.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the pipeline backend over HTTP+JSON.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the given base URL. A zero timeout falls
// back to 30s so a wedged backend cannot hang a tea.Cmd forever.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// StartProcessing begins a new session with the given configuration.
func (c *Client) StartProcessing(ctx context.Context, cfg SessionConfig) (StatusSnapshot, error) {
	var snap StatusSnapshot
	err := c.doJSON(ctx, http.MethodPost, "/start-processing", cfg, &snap)
	return snap, err
}

// Status fetches the current pipeline status snapshot.
func (c *Client) Status(ctx context.Context) (StatusSnapshot, error) {
	var snap StatusSnapshot
	err := c.doJSON(ctx, http.MethodGet, "/processing-status", nil, &snap)
	return snap, err
}

// SubmitDecision resolves a pending decision with the chosen type and
// description category ids.
func (c *Client) SubmitDecision(ctx context.Context, decisionID string, payload DecisionPayload) (StatusSnapshot, error) {
	var snap StatusSnapshot
	err := c.doJSON(ctx, http.MethodPost, "/submit-decision/"+url.PathEscape(decisionID), payload, &snap)
	return snap, err
}

// SkipOffer discards the offer behind a pending decision.
func (c *Client) SkipOffer(ctx context.Context, decisionID string) (StatusSnapshot, error) {
	var snap StatusSnapshot
	err := c.doJSON(ctx, http.MethodPost, "/skip-offer/"+url.PathEscape(decisionID), nil, &snap)
	return snap, err
}

// SubmitToOzon submits the prepared items to the marketplace. The
// response is a minimal ack; the task id may only appear in a later
// status snapshot.
func (c *Client) SubmitToOzon(ctx context.Context) (SubmitResult, error) {
	var res SubmitResult
	err := c.doJSON(ctx, http.MethodPost, "/submit-to-ozon", nil, &res)
	return res, err
}

// TaskInfo fetches marketplace-side detail for a submission task. The
// shape is backend-defined, so it is returned raw.
func (c *Client) TaskInfo(ctx context.Context, taskID string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, http.MethodGet, "/ozon-task-info/"+url.PathEscape(taskID), nil, &raw)
	return raw, err
}

// ResetSession clears the backend session state.
func (c *Client) ResetSession(ctx context.Context) (StatusSnapshot, error) {
	var snap StatusSnapshot
	err := c.doJSON(ctx, http.MethodPost, "/reset-session-state", nil, &snap)
	return snap, err
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := http.StatusText(resp.StatusCode)
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Detail != "" {
			detail = eb.Detail
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

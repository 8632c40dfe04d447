// Package gateway is the HTTP client for the external 3D generation service.
// The service is asynchronous: Submit returns an opaque task id, GetStatus is
// polled until the task reaches a terminal status.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"arforge/internal/models"
)

// Client is the concrete gateway over the service's JSON API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Gateway is the boundary consumed by the submission and polling steps.
type Gateway interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	GetStatus(ctx context.Context, taskID string) (*StatusResult, error)
}

var _ Gateway = (*Client)(nil)

// SubmitRequest carries the product metadata the service generates from.
type SubmitRequest struct {
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// StatusResult is the parsed outcome of one status poll. Raw preserves the
// verbatim payload for the audit trail.
type StatusResult struct {
	TaskID     string
	Status     models.TaskStatus
	RawStatus  string
	Progress   int
	ModelURL   string
	PreviewURL string
	Error      string
	Raw        json.RawMessage
}

// envelope is the service's top-level response wrapper. A non-zero code is an
// application-level error, distinct from transport failures.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submitData struct {
	TaskID string `json:"task_id"`
}

type statusData struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Result   struct {
		ModelURL string `json:"model_url"`
		ImageURL string `json:"image_url"`
	} `json:"result"`
	Error string `json:"error"`
}

// ErrServiceError marks application-level failures reported inside a 2xx
// envelope.
var ErrServiceError = errors.New("generation service error")

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Submit starts a generation task and returns the service-assigned task id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	env, _, err := c.do(ctx, http.MethodPost, "/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var data submitData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if data.TaskID == "" {
		return "", fmt.Errorf("submit response missing task_id")
	}
	return data.TaskID, nil
}

// GetStatus queries the current status of a task. The returned Raw field is
// the verbatim response body, persisted on every poll.
func (c *Client) GetStatus(ctx context.Context, taskID string) (*StatusResult, error) {
	env, raw, err := c.do(ctx, http.MethodGet, "/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}

	var data statusData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode status response for task %s: %w", taskID, err)
	}

	return &StatusResult{
		TaskID:     taskID,
		Status:     models.ParseTaskStatus(data.Status),
		RawStatus:  data.Status,
		Progress:   models.ClampProgress(data.Progress),
		ModelURL:   data.Result.ModelURL,
		PreviewURL: data.Result.ImageURL,
		Error:      data.Error,
		Raw:        raw,
	}, nil
}

// do issues one authenticated request and unwraps the response envelope.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*envelope, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response for %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, truncate(raw, 256))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode response envelope for %s %s: %w", method, path, err)
	}
	if env.Code != 0 {
		return nil, nil, fmt.Errorf("%w: code=%d message=%q", ErrServiceError, env.Code, env.Message)
	}
	return &env, raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Package apiclient talks to the dashboard REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/guard"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is a thin JSON client for the dashboard API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New builds a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken swaps the bearer token, e.g. after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	Session domain.Session `json:"session"`
	Auth    struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"auth"`
}

// Login exchanges credentials for a session and token. The token is kept for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Auth.Token
	return &out, nil
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Session returns the server's view of the current session.
func (c *Client) Session(ctx context.Context) (*domain.Session, error) {
	var out domain.Session
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Navigation asks the server guard about path.
func (c *Client) Navigation(ctx context.Context, path string) (guard.Decision, error) {
	var out guard.Decision
	err := c.do(ctx, http.MethodGet, "/api/navigation?path="+url.QueryEscape(path), nil, &out)
	return out, err
}

// ListResources returns raw documents of a collection.
func (c *Client) ListResources(ctx context.Context, kind domain.ResourceKind, limit, offset int) ([]json.RawMessage, error) {
	path := kind.APIPath()
	if path == "" {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	target := "/api" + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var out []json.RawMessage
	if err := c.do(ctx, http.MethodGet, target, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TaskUpdate is the PATCH body for a warehouse task.
type TaskUpdate struct {
	Status     domain.TaskStatus `json:"status,omitempty"`
	AssignedTo *string           `json:"assignedTo,omitempty"`
	StartedAt  *time.Time        `json:"startedAt,omitempty"`
}

// UpdateTask patches a pick or packing task.
func (c *Client) UpdateTask(ctx context.Context, kind domain.TaskKind, id string, update TaskUpdate) (*domain.WarehouseTask, error) {
	var out domain.WarehouseTask
	target := "/api" + kind.APIPath() + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, target, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// envelope is the success shape: {"data": ...}.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// errorFromResponse extracts a message from {"error":{"message"}}, then {"message"},
// then the trimmed body, then the status text.
func errorFromResponse(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var structured struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &structured) == nil {
		if structured.Error != nil && structured.Error.Message != "" {
			apiErr.Code = structured.Error.Code
			apiErr.Message = structured.Error.Message
			return apiErr
		}
		if structured.Message != "" {
			apiErr.Message = structured.Message
			return apiErr
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !json.Valid(body) {
		apiErr.Message = text
		return apiErr
	}
	apiErr.Message = http.StatusText(status)
	return apiErr
}

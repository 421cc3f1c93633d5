// Package remote is the consumer side of live sessions: an HTTP client for
// the session API and a poller that mirrors session state locally.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smartpreach/smartpreach-server/internal/model"
)

const (
	apiPath               = "/api/live-session"
	defaultRequestTimeout = 10 * time.Second
)

var ErrSessionNotFound = errors.New("live session not found")

// APIError is a non-2xx answer from the session API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("session api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("session api: %d: %s", e.Status, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Updates is a sparse change set keyed by column name. A nil value clears
// a nullable column.
type Updates map[string]any

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionResponse struct {
	Success   bool               `json:"success"`
	SessionID string             `json:"sessionId"`
	Session   *model.LiveSession `json:"session"`
}

func (c *Client) Create(ctx context.Context, presentationID *int64) (*model.LiveSession, error) {
	body := map[string]any{}
	if presentationID != nil {
		body["presentationId"] = *presentationID
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, apiPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil {
		return nil, errors.New("session api: create returned no session")
	}
	return resp.Session, nil
}

// Get returns ErrSessionNotFound once the session has ended or expired.
func (c *Client) Get(ctx context.Context, sessionID string) (*model.LiveSession, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, apiPath+"?sessionId="+url.QueryEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil {
		return nil, ErrSessionNotFound
	}
	return resp.Session, nil
}

// Update sends a sparse change. ifUpdatedAt, when set, makes the server
// reject the change if the session moved on since that version.
func (c *Client) Update(ctx context.Context, sessionID string, updates Updates, ifUpdatedAt *int64) (*model.LiveSession, error) {
	body := map[string]any{
		"sessionId": sessionID,
		"updates":   updates,
	}
	if ifUpdatedAt != nil {
		body["ifUpdatedAt"] = *ifUpdatedAt
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPut, apiPath, body, &resp); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, apiPath+"?sessionId="+url.QueryEscape(sessionID), nil, nil)
}

func (c *Client) RemoteURL(sessionID string) string {
	return c.baseURL + "/remote/" + url.PathEscape(sessionID)
}

func (c *Client) QRURL(sessionID string) string {
	return c.baseURL + apiPath + "/qr?sessionId=" + url.QueryEscape(sessionID)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
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
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrSessionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: errBody.Code, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

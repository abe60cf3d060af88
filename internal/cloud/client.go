// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/relay-tui/internal/convo"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is the base URL for the Relay API.
	DefaultBaseURL = "https://api.relay.sh"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the retry budget for transient CRUD failures.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize limits non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streams are bounded by their
	// request context instead.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates no authorization token is available.
	ErrNotConfigured = errors.New("relay API token not configured")

	// ErrAuthFailed indicates an invalid or expired token.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// APIError represents a structured error response from the Relay API.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("relay API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("relay API error (HTTP %d): %s", e.Status, e.Message)
}

// RateLimitError carries the server-requested retry delay.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
	}
	return "rate limited"
}

// Is allows RateLimitError to match ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// StreamError is a stream failure that preserves partial content received
// before the error. Already-assembled parts are never discarded.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// apiErrorResponse is the error body shape.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

// TokenSource supplies the bearer token for each request. The session
// provider lives outside this package; the client only consumes it.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource around a fixed token string.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return "", ErrNotConfigured
	}
	return s, nil
}

// =============================================================================
// CLIENT
// =============================================================================

// Client communicates with the Relay API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	streaming  *http.Client
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
}

// NewClient creates a client. The token source is consulted at every
// request; requests fail with ErrNotConfigured when it yields nothing.
func NewClient(tokens TokenSource) *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		tokens:     tokens,
		httpClient: sharedHTTPClient,
		streaming:  sharedStreamingClient,
		// Outbound request throttle: bursty UI actions (rapid sends,
		// refreshes) must not hammer the API.
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		maxRetries: DefaultMaxRetries,
		userAgent:  "relay-tui",
	}
}

// WithBaseURL overrides the API base URL. Used for self-hosted deployments
// and tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	return c
}

// WithMaxRetries overrides the CRUD retry budget.
func (c *Client) WithMaxRetries(n int) *Client {
	if n >= 0 {
		c.maxRetries = n
	}
	return c
}

// IsConfigured reports whether a token is currently available.
func (c *Client) IsConfigured() bool {
	if c == nil || c.tokens == nil {
		return false
	}
	_, err := c.tokens.Token()
	return err == nil
}

// setHeaders applies authorization and standard headers.
func (c *Client) setHeaders(req *http.Request) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// doJSON performs a request with retries and decodes the JSON response
// into out (when out is non-nil). 4xx failures are not retried.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if err := c.setHeaders(req); err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusNoContent {
			if readErr != nil {
				lastErr = readErr
				continue
			}
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
			return nil
		}

		apiErr := c.handleErrorResponse(resp, respBody)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return apiErr
		}
		lastErr = apiErr
	}

	if lastErr != nil {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return errors.New("max retries exceeded")
}

// handleErrorResponse maps an HTTP error to the package taxonomy.
func (c *Client) handleErrorResponse(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return parseRetryAfter(resp)
	}

	var apiResp apiErrorResponse
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Error.Message != "" {
		return &APIError{
			Code:    apiResp.Error.Code,
			Message: apiResp.Error.Message,
			Status:  resp.StatusCode,
		}
	}
	return &APIError{
		Message: strings.TrimSpace(string(body)),
		Status:  resp.StatusCode,
	}
}

// parseRetryAfter reads the Retry-After header as seconds or HTTP date.
func parseRetryAfter(resp *http.Response) error {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return ErrRateLimited
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Duration(seconds) * time.Second}
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Until(t)}
	}
	return ErrRateLimited
}

// calculateBackoff returns the delay before the given retry attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// =============================================================================
// CONVERSATION CRUD
// =============================================================================

// conversationPayload is the wire shape of a conversation.
type conversationPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p conversationPayload) toConversation() convo.Conversation {
	return convo.Conversation{
		ID:        p.ID,
		Title:     p.Title,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// CreateConversation creates a conversation server-side.
func (c *Client) CreateConversation(ctx context.Context, title string) (convo.Conversation, error) {
	var resp conversationPayload
	err := c.doJSON(ctx, http.MethodPost, "/v1/conversations", map[string]string{"title": title}, &resp)
	if err != nil {
		return convo.Conversation{}, err
	}
	return resp.toConversation(), nil
}

// ListConversations fetches all conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]convo.Conversation, error) {
	var resp struct {
		Conversations []conversationPayload `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/conversations", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]convo.Conversation, 0, len(resp.Conversations))
	for _, p := range resp.Conversations {
		out = append(out, p.toConversation())
	}
	return out, nil
}

// DeleteConversation deletes a conversation and its messages server-side.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/conversations/"+id, nil, nil)
}

// Messages fetches the persisted message history of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]convo.StoredMessage, error) {
	var resp struct {
		Messages []convo.StoredMessage `json:"messages"`
	}
	path := "/v1/conversations/" + conversationID + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// =============================================================================
// FILE UPLOAD
// =============================================================================

// FileRef identifies an uploaded file.
type FileRef struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// UploadFile uploads a file scoped to a conversation and returns its ref.
func (c *Client) UploadFile(ctx context.Context, conversationID, name string, r io.Reader) (FileRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return FileRef{}, fmt.Errorf("failed to read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return FileRef{}, fmt.Errorf("failed to finalize upload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return FileRef{}, err
	}

	path := "/v1/conversations/" + conversationID + "/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.setHeaders(req); err != nil {
		return FileRef{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FileRef{}, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return FileRef{}, c.handleErrorResponse(resp, body)
	}

	var ref FileRef
	if err := json.Unmarshal(body, &ref); err != nil {
		return FileRef{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return ref, nil
}

// Package remote is the HTTP client for the task/event server.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries bounds 429 retries per request.
	MaxRetries = 3

	// DefaultBackoff is the initial backoff when a 429 carries no Retry-After.
	DefaultBackoff = 1 * time.Second
)

// TokenSource yields the bearer token for each attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// HTTPClient wraps http.Client with authentication and retry logic.
// Every attempt carries:
// - Authorization: Bearer <token>
// - X-Correlation-ID: <uuid>
//
// Retries:
// - 401 Unauthorized: invalidate the token, retry once
// - 429 Too Many Requests: respect Retry-After, exponential backoff
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	backoff    time.Duration
}

// NewHTTPClient creates an authenticated client for baseURL.
func NewHTTPClient(baseURL string, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		backoff:    DefaultBackoff,
	}
}

// BaseURL returns the server root the client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Do executes req with auth headers and retry handling.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	correlationID := uuid.New().String()

	logger := log.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()

	return c.doWithRetry(ctx, req, &logger, correlationID, 0, false)
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, retryCount int, reauthed bool) (*http.Response, error) {
	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}

	reqClone.Header.Set("X-Correlation-ID", correlationID)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth token: %w", err)
	}
	reqClone.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", retryCount).
		Msg("HTTP request completed")

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if reauthed {
			logger.Warn().Msg("401 Unauthorized after token refresh, giving up")
			return resp, nil
		}
		resp.Body.Close()
		logger.Warn().Msg("401 Unauthorized - invalidating token and retrying")
		c.tokens.Invalidate()
		return c.doWithRetry(ctx, req, logger, correlationID, retryCount, true)

	case http.StatusTooManyRequests:
		return c.handleRateLimit(ctx, req, resp, logger, correlationID, retryCount, reauthed)

	default:
		return resp, nil
	}
}

func (c *HTTPClient) handleRateLimit(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, retryCount int, reauthed bool) (*http.Response, error) {
	resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
	if retryCount >= MaxRetries {
		logger.Warn().Msg("Rate limited - max retries exceeded")
		return nil, ErrRateLimited{RetryAfter: int(retryAfter.Seconds())}
	}
	if retryAfter == 0 {
		retryAfter = c.backoff * time.Duration(1<<retryCount)
	}

	logger.Warn().
		Dur("retryAfter", retryAfter).
		Int("retryCount", retryCount).
		Msg("Rate limited - backing off")

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return c.doWithRetry(ctx, req, logger, correlationID, retryCount+1, reauthed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cloneRequest copies req so its body can be re-sent on retry.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}

	for k, v := range req.Header {
		if k == "Authorization" {
			continue
		}
		reqClone.Header[k] = v
	}

	return reqClone, nil
}

// parseRetryAfter accepts integer seconds or an HTTP-date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client is an HTTP client with a base URL, a token header and retry logic.
type Client struct {
	baseURL     string
	tokenHeader string
	token       string
	headers     map[string]string
	baseDelay   time.Duration
	maxWait     time.Duration
	maxRetries  int
	httpClient  *http.Client
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // internal: Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithToken sends token in the given header on every request.
func WithToken(header, token string) Option {
	return func(c *Client) {
		c.tokenHeader = header
		c.token = token
	}
}

// WithHeaders sends extra headers on every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		c.headers = h
	}
}

// WithMaxRetries sets how many times a 429 or 5xx response is retried.
// Zero sends each request once. Default: 3.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = n
	}
}

// WithMaxWait caps any single wait between attempts, including one asked
// for by Retry-After. Default: 10s.
func WithMaxWait(d time.Duration) Option {
	return func(c *Client) {
		c.maxWait = d
	}
}

// WithBaseDelay sets the first retry delay; later retries double it.
// Default: 1s.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		baseDelay:  time.Second,
		maxWait:    10 * time.Second,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const defaultMaxRetries = 3

// PostJSON marshals body, POSTs it to path and, when dest is non-nil,
// unmarshals the response into dest. Returns *APIError for non-2xx
// responses. Retries on 429 (honoring Retry-After up to the max wait) and
// 5xx with exponential backoff. Waits end early when ctx is done.
func (c *Client) PostJSON(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: marshal: %w", err)
	}
	fullURL := c.baseURL + path

	var lastErr *APIError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		if c.tokenHeader != "" {
			req.Header.Set(c.tokenHeader, c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if dest == nil || len(respBody) == 0 {
				return nil
			}
			return json.Unmarshal(respBody, dest)
		}

		bodyStr := string(respBody)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}

		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}

		return apiErr
	}

	return lastErr
}

// backoffDelay returns the wait duration before a retry attempt, never
// more than maxWait.
func (c *Client) backoffDelay(attempt int, lastErr *APIError) time.Duration {
	// base, 2*base, 4*base
	d := c.baseDelay * time.Duration(1<<(attempt-1))
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			d = time.Duration(secs) * time.Second
		}
	}
	if c.maxWait > 0 && d > c.maxWait {
		d = c.maxWait
	}
	return d
}

// Package linearapi is a thin client for the Linear GraphQL API.
package linearapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shurcooL/graphql"
)

const (
	// DefaultEndpoint is the default Linear API GraphQL endpoint.
	DefaultEndpoint = "https://api.linear.app/graphql"

	defaultTimeout = 30 * time.Second
	// Linear reports rate limiting as a GraphQL error with this extension code.
	rateLimitedCode = "RATELIMITED"
)

var (
	// ErrRateLimited matches any *RateLimitError through errors.Is.
	ErrRateLimited = errors.New("rate limited")
	// ErrOperationFailed is returned when a mutation reports success=false.
	ErrOperationFailed = errors.New("operation failed")
)

// RateLimitError is returned when Linear rejects a request for exceeding its rate limit.
type RateLimitError struct {
	StatusCode int
	// RetryAfter is the server's suggested wait, zero when not provided.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("linear api rate limited (status %d, retry after %s)", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("linear api rate limited (status %d)", e.StatusCode)
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsRateLimited reports whether err signals a Linear rate limit.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	// GraphQL errors surface as plain strings from the graphql package.
	msg := err.Error()
	return strings.Contains(msg, rateLimitedCode) || strings.Contains(strings.ToLower(msg), "rate limit exceeded")
}

// ClientConfig contains configuration for creating a new Linear API client.
type ClientConfig struct {
	// Token is the Linear API key for authentication.
	Token string
	// Endpoint is the GraphQL API endpoint (defaults to Linear's production endpoint).
	Endpoint string
	// HTTPClient is an optional custom HTTP client (useful for testing).
	HTTPClient *http.Client
	// Timeout is the HTTP request timeout (defaults to 30s).
	Timeout time.Duration
}

// Client is a client for interacting with the Linear GraphQL API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	client     *graphql.Client
}

// NewClient creates a new Linear API client with the provided configuration.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient.Transport = &authTransport{
		Token: cfg.Token,
		Base:  &rateLimitTransport{Base: base},
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		token:      cfg.Token,
		client:     graphql.NewClient(endpoint, httpClient),
	}
}

// NewClientWithToken creates a new Linear API client with just a token (convenience method).
func NewClientWithToken(token string) *Client {
	return NewClient(ClientConfig{Token: token})
}

// Endpoint returns the GraphQL endpoint being used.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// authTransport adds the Authorization header to requests.
type authTransport struct {
	Token string
	Base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", t.Token)
	if t.Base == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	return t.Base.RoundTrip(req)
}

// rateLimitTransport turns rate-limit responses into *RateLimitError so callers
// can tell them apart from other failures.
type rateLimitTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.Base.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusBadRequest:
		// Linear answers some rate-limited requests with 400 and a RATELIMITED error code.
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if hasRateLimitCode(body) {
			return nil, &RateLimitError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}

// hasRateLimitCode reports whether a GraphQL error body carries the RATELIMITED code.
func hasRateLimitCode(body []byte) bool {
	var payload struct {
		Errors []struct {
			Extensions struct {
				Code string `json:"code"`
			} `json:"extensions"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	for _, e := range payload.Errors {
		if e.Extensions.Code == rateLimitedCode {
			return true
		}
	}
	return false
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// parseTime safely parses an RFC3339 time string, returning zero time on error.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Package github provides a client for the GitHub GraphQL API.
//
// This package handles all remote interactions for the sync engine: issue
// creation and updates, label and issue-type lookup, Projects v2 membership
// and field writes, and sub-issue linking. Same-shaped mutations are
// collapsed into single compound documents by the batch builder so a sync
// run makes one network round-trip per phase.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// API configuration constants.
const (
	// DefaultEndpoint is the GitHub GraphQL API URL.
	DefaultEndpoint = "https://api.github.com/graphql"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited requests.
	MaxRetries = 3
)

// Sentinel errors for classified transport failures.
var (
	// ErrAuthentication indicates the token was rejected.
	ErrAuthentication = errors.New("authentication failed (check your GitHub token)")

	// ErrRateLimited indicates the API rate limit was hit. The client retries
	// with exponential backoff before surfacing this.
	ErrRateLimited = errors.New("GitHub API rate limit exceeded")
)

// GraphQLErrors is the set of error messages returned in a GraphQL response
// body. A response can carry both data and errors; batch callers inspect the
// individual errors, everything else treats the set as one failure.
type GraphQLErrors struct {
	Errors []ResponseError
}

// ResponseError is a single GraphQL error. Path identifies the aliased
// sub-operation the error applies to, when the server provides one.
type ResponseError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

func (e *GraphQLErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, re := range e.Errors {
		msgs[i] = re.Message
	}
	return "GraphQL errors: " + strings.Join(msgs, "; ")
}

// Client provides methods to interact with the GitHub GraphQL API.
type Client struct {
	Token      string       // GitHub personal access token
	Endpoint   string       // API URL (default: https://api.github.com/graphql)
	HTTPClient *http.Client // Optional custom HTTP client
}

// NewClient creates a new GitHub GraphQL client.
func NewClient(token string) *Client {
	return &Client{
		Token:    token,
		Endpoint: DefaultEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithEndpoint returns a new client with a custom endpoint (for testing or
// GitHub Enterprise).
func (c *Client) WithEndpoint(endpoint string) *Client {
	return &Client{
		Token:      c.Token,
		Endpoint:   endpoint,
		HTTPClient: c.HTTPClient,
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		Endpoint:   c.Endpoint,
		HTTPClient: httpClient,
	}
}

// response is the raw decoded GraphQL response. Data is left raw; batch
// callers decode it into an alias-keyed map to demultiplex.
type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []ResponseError `json:"errors"`
}

// execute posts a GraphQL document and returns the raw response. Rate-limited
// requests are retried with exponential backoff; other failures are permanent.
// GraphQL-level errors are not treated as failures here since the server may
// return partial data alongside them.
func (c *Client) execute(ctx context.Context, document string, variables map[string]any) (*response, error) {
	reqBody, err := json.Marshal(map[string]any{
		"query":     document,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var resp *response
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := c.HTTPClient.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("request failed: %w", err))
		}
		defer func() { _ = httpResp.Body.Close() }()

		const maxResponseSize = 50 * 1024 * 1024
		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("reading response: %w", err))
		}

		switch {
		case httpResp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(ErrAuthentication)
		case httpResp.StatusCode == http.StatusTooManyRequests,
			httpResp.StatusCode == http.StatusForbidden && httpResp.Header.Get("X-RateLimit-Remaining") == "0":
			return ErrRateLimited
		case httpResp.StatusCode < 200 || httpResp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("GitHub API error (status %d): %s", httpResp.StatusCode, string(body)))
		}

		var decoded response
		if err := json.Unmarshal(body, &decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("parsing response: %w", err))
		}
		resp = &decoded
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// do posts a GraphQL document, fails on any GraphQL-level error, and decodes
// the data object into out. Callers that need partial data with per-operation
// errors use execute directly.
func (c *Client) do(ctx context.Context, document string, variables map[string]any, out any) error {
	resp, err := c.execute(ctx, document, variables)
	if err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return &GraphQLErrors{Errors: resp.Errors}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

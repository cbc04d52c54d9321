package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout caps every request to the tracking system. There is no
// retry on transient failure; a timed-out fetch is reported and the caller
// moves on.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when the system reports HTTP 404 for a resource.
// For audit queries this means "no history yet", which callers treat as an
// empty success rather than a failure.
var ErrNotFound = errors.New("lifecycle: not found")

// APIError is a non-success response from the tracking system.
type APIError struct {
	Status int
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("lifecycle: %s returned %d: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("lifecycle: %s returned %d", e.URL, e.Status)
}

// Client talks to one lifecycle tracking system. Each client is bound to a
// single endpoint and credential at construction; source and target systems
// get independent clients.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient builds a client for the system at baseURL, authenticating every
// request with the given bearer token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the endpoint the client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get issues an authenticated GET and decodes the JSON response into out.
// A nil out discards the body. 404 maps to ErrNotFound; other non-2xx
// statuses map to *APIError with a body snippet for diagnostics.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("lifecycle: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lifecycle: request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, URL: u, Body: bodySnippet(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("lifecycle: read response from %s: %w", u, err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("lifecycle: decode response from %s: %w", u, err)
	}
	return nil
}

// bodySnippet reads up to 512 bytes of a response body for error messages.
func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

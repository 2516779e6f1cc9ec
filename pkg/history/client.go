// Package history talks to the chat-DB REST endpoints: fetching the stored
// transcript on startup and clearing it on request.
package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zoe12378/chat-DB/pkg/wire"
)

// Client fetches and clears room history over HTTP. The zero value is not
// usable; construct with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a history client for the given server origin, for example
// "http://localhost:5000".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid server url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("server url %q must use http or https", baseURL)
	}
	c := &Client{
		baseURL:    u.String(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns the stored messages, oldest first, exactly as the server
// ordered them. Failures are not retried; the caller decides whether an empty
// transcript is acceptable.
func (c *Client) Fetch(ctx context.Context) ([]wire.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_history", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build history request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "history request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("history request returned %s", resp.Status)
	}
	var messages []wire.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, errors.Wrap(err, "failed to decode history response")
	}
	return messages, nil
}

type clearResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Clear asks the server to drop the stored transcript. The server reports the
// outcome in the response body as well as the HTTP status; both are checked.
func (c *Client) Clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/clear_history", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build clear request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "clear request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body clearResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("clear request returned %s", resp.Status)
		}
		return errors.Wrap(err, "failed to decode clear response")
	}
	if resp.StatusCode != http.StatusOK || body.Status != "success" {
		if body.Message != "" {
			return errors.Errorf("server refused to clear history: %s", body.Message)
		}
		return errors.Errorf("clear request returned %s", resp.Status)
	}
	return nil
}

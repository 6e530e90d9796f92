// Package source provides the concrete city data sources.
// This file contains the shared JSON-over-HTTP client plumbing.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client wraps an http.Client with the settings the public APIs need.
// A single Client is shared by all sources so connections are pooled
// and TLS state is reused.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient returns a Client sending userAgent on every request. Both
// wttr.in and nominatim require a User-Agent for usage tracking.
func NewClient(userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  userAgent,
	}
}

// GetJSON performs a GET against url and decodes the JSON response body
// into out. Non-2xx statuses are errors.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

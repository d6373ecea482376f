package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBodySize limits how much of an error response body is kept (1KB)
const maxErrorBodySize = 1024

// Client is an HTTP client for the platform REST API, scoped to one project.
type Client struct {
	BaseURL    string
	APIKey     string
	Project    string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey, project string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Project: project,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// GetFlag retrieves a single flag with its per-environment configuration.
func (c *Client) GetFlag(ctx context.Context, key string) (*Flag, error) {
	var flag Flag
	path := "/flags/" + url.PathEscape(c.Project) + "/" + url.PathEscape(key)
	if err := c.get(ctx, path, nil, &flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

// ListFlags retrieves the first page (up to 100) of the project's flags.
func (c *Client) ListFlags(ctx context.Context) ([]Flag, error) {
	q := url.Values{}
	q.Set("limit", "100")

	var result struct {
		Items []Flag `json:"items"`
	}
	if err := c.get(ctx, "/flags/"+url.PathEscape(c.Project), q, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// The platform expects the raw access token, without a Bearer prefix.
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package catalog

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
)

const apiKeyHeader = "X-API-Key"

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the print-on-demand catalog's quoting, product, search, and
// ordering endpoints.
type Client struct {
	base   *url.URL
	apiKey string
	client HTTPClient
}

// NewClient constructs a catalog client.
func NewClient(baseURL, apiKey string, client HTTPClient) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("catalog: base URL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("catalog: API key is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse base URL: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: parsed, apiKey: apiKey, client: client}, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	var buf bytes.Buffer
	if payload != nil {
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(payload); err != nil {
			return nil, fmt.Errorf("catalog: encode payload: %w", err)
		}
	}
	return c.newRequest(ctx, method, endpoint, &buf)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) resolve(endpoint string) string {
	if endpoint == "" {
		return c.base.String()
	}
	trimmed := strings.TrimPrefix(endpoint, "/")
	if c.base.Path != "" && c.base.Path != "/" {
		joined := *c.base
		joined.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + trimmed
		joined.RawQuery = ""
		return joined.String()
	}
	ref := &url.URL{Path: trimmed}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()

	type errorPayload struct {
		Outcome string `json:"outcome"`
		Message string `json:"message"`
	}
	var payload errorPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
			return fmt.Errorf("catalog: upstream error (%s): %s", strings.TrimSpace(payload.Outcome), payload.Message)
		}
	}
	if len(body) > 0 {
		return fmt.Errorf("catalog: upstream error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("catalog: upstream error (%d): %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

package rates

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

const defaultFetchTimeout = 5 * time.Second

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client fetches USD-based exchange rates from the currency API. The API is
// best-effort; callers are expected to fall back to the embedded table when a
// fetch fails.
type Client struct {
	base   *url.URL
	client HTTPClient
}

// NewClient constructs a rate client against the given base URL.
func NewClient(baseURL string, client HTTPClient) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("rates: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("rates: parse base URL: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Client{base: parsed, client: client}, nil
}

type latestResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// FetchLatest retrieves the current USD-based rate table.
func (c *Client) FetchLatest(ctx context.Context) (map[string]float64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/latest/USD")
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates: fetch latest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("rates: decode latest: %w", err)
	}
	if payload.Result != "" && !strings.EqualFold(payload.Result, "success") {
		return nil, fmt.Errorf("rates: upstream result %q", payload.Result)
	}
	if len(payload.Rates) == 0 {
		return nil, errors.New("rates: upstream returned no rates")
	}

	out := make(map[string]float64, len(payload.Rates))
	for code, rate := range payload.Rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || rate <= 0 {
			continue
		}
		out[code] = rate
	}
	if out["USD"] == 0 {
		out["USD"] = 1
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	trimmed := strings.TrimPrefix(endpoint, "/")
	ref := &url.URL{Path: trimmed}
	urlStr := c.base.ResolveReference(ref).String()
	if !strings.HasSuffix(c.base.Path, "/") && c.base.Path != "" {
		// ResolveReference drops the last base path segment without a
		// trailing slash, so join explicitly instead.
		joined := *c.base
		joined.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + trimmed
		urlStr = joined.String()
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("rates: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
	if len(body) > 0 {
		return fmt.Errorf("rates: upstream error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("rates: upstream error (%d): %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

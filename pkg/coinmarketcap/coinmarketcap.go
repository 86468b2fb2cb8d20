// Package coinmarketcap is a minimal client for the CoinMarketCap Pro API.
package coinmarketcap

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

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL       = "https://pro-api.coinmarketcap.com/v1"
	defaultTimeout       = 10 * time.Second
	maxResponseSizeBytes = 2 << 20
)

var ErrNotConfigured = errors.New("coinmarketcap api key not configured")

type Config struct {
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://pro-api.coinmarketcap.com/v1"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	// The basic plan caps bursts at 30 calls per minute.
	RateLimit float64 `envconfig:"RATE_LIMIT" split_words:"true" default:"0.5"`
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid coinmarketcap base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 0.5
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 3),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Quotes returns the latest market quotes for the given symbols.
func (c *Client) Quotes(ctx context.Context, symbols ...string) (map[string]any, error) {
	if len(symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return c.get(ctx, "/cryptocurrency/quotes/latest", url.Values{
		"symbol": {strings.Join(upper, ",")},
	})
}

// Listings returns the top cryptocurrencies ranked by market cap.
func (c *Client) Listings(ctx context.Context, limit int) (map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.get(ctx, "/cryptocurrency/listings/latest", url.Values{
		"limit":   {fmt.Sprint(limit)},
		"convert": {"USD"},
	})
}

// GlobalMetrics returns aggregate market statistics.
func (c *Client) GlobalMetrics(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/global-metrics/quotes/latest", nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build coinmarketcap request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute coinmarketcap request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read coinmarketcap response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("coinmarketcap http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode coinmarketcap response: %w", err)
	}
	return parsed, nil
}

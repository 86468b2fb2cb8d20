// Package etherscan is a minimal client for the Etherscan account API.
package etherscan

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
	defaultBaseURL       = "https://api.etherscan.io/api"
	defaultTimeout       = 10 * time.Second
	maxResponseSizeBytes = 2 << 20
)

var ErrNotConfigured = errors.New("etherscan api key not configured")

type Config struct {
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.etherscan.io/api"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	// Free tier allows 5 calls per second.
	RateLimit float64 `envconfig:"RATE_LIMIT" split_words:"true" default:"5"`
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
		return nil, fmt.Errorf("invalid etherscan base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Configured reports whether an API key is present. Calls without one fail
// with ErrNotConfigured instead of burning a request.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Envelope is Etherscan's uniform response wrapper. Status "1" means OK;
// "0" carries the reason in Message.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Balance fetches the current wei balance of an address.
func (c *Client) Balance(ctx context.Context, address string) (*Envelope, error) {
	return c.get(ctx, url.Values{
		"module":  {"account"},
		"action":  {"balance"},
		"address": {address},
		"tag":     {"latest"},
	})
}

// Transactions lists the most recent normal transactions for an address.
func (c *Client) Transactions(ctx context.Context, address string, limit int) (*Envelope, error) {
	if limit <= 0 {
		limit = 100
	}
	return c.get(ctx, url.Values{
		"module":  {"account"},
		"action":  {"txlist"},
		"address": {address},
		"page":    {"1"},
		"offset":  {fmt.Sprint(limit)},
		"sort":    {"desc"},
	})
}

// TokenTransfers lists recent ERC-20 transfer events for an address.
func (c *Client) TokenTransfers(ctx context.Context, address string, limit int) (*Envelope, error) {
	if limit <= 0 {
		limit = 100
	}
	return c.get(ctx, url.Values{
		"module":  {"account"},
		"action":  {"tokentx"},
		"address": {address},
		"page":    {"1"},
		"offset":  {fmt.Sprint(limit)},
		"sort":    {"desc"},
	})
}

func (c *Client) get(ctx context.Context, params url.Values) (*Envelope, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build etherscan request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute etherscan request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read etherscan response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("etherscan http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode etherscan response: %w", err)
	}
	if env.Status == "0" && env.Message != "" && !strings.EqualFold(env.Message, "No transactions found") {
		return nil, fmt.Errorf("etherscan error: %s", env.Message)
	}
	return &env, nil
}

// Package defillama is a client for the public DefiLlama APIs. No API key
// is required; the hosts split TVL, stablecoin, and yield data.
package defillama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL        = "https://api.llama.fi"
	defaultStablecoinsURL = "https://stablecoins.llama.fi"
	defaultYieldsURL      = "https://yields.llama.fi"
	defaultTimeout        = 10 * time.Second
	maxResponseSizeBytes  = 4 << 20
)

type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.llama.fi"`
	StablecoinsURL string        `envconfig:"STABLECOINS_URL" split_words:"true" default:"https://stablecoins.llama.fi"`
	YieldsURL      string        `envconfig:"YIELDS_URL" split_words:"true" default:"https://yields.llama.fi"`
	Timeout        time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	RateLimit      float64       `envconfig:"RATE_LIMIT" split_words:"true" default:"5"`
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
	baseURL        string
	stablecoinsURL string
	yieldsURL      string
	httpClient     *http.Client
	limiter        *rate.Limiter
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	normalize := func(raw, fallback string) (string, error) {
		u := strings.TrimRight(strings.TrimSpace(raw), "/")
		if u == "" {
			u = fallback
		}
		if _, err := url.ParseRequestURI(u); err != nil {
			return "", fmt.Errorf("invalid defillama url %q: %w", raw, err)
		}
		return u, nil
	}

	baseURL, err := normalize(cfg.BaseURL, defaultBaseURL)
	if err != nil {
		return nil, err
	}
	stablecoinsURL, err := normalize(cfg.StablecoinsURL, defaultStablecoinsURL)
	if err != nil {
		return nil, err
	}
	yieldsURL, err := normalize(cfg.YieldsURL, defaultYieldsURL)
	if err != nil {
		return nil, err
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
		baseURL:        baseURL,
		stablecoinsURL: stablecoinsURL,
		yieldsURL:      yieldsURL,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(rps), 2),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Configured always holds; the public API needs no key.
func (c *Client) Configured() bool {
	return true
}

// Protocol returns one protocol's TVL profile by slug, e.g. "uniswap-v3".
func (c *Client) Protocol(ctx context.Context, slug string) (map[string]any, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return nil, fmt.Errorf("protocol slug is required")
	}
	var out map[string]any
	err := c.get(ctx, c.baseURL+"/protocol/"+url.PathEscape(slug), &out)
	return out, err
}

// ProtocolTVL returns the current TVL of a protocol as a bare number.
func (c *Client) ProtocolTVL(ctx context.Context, slug string) (float64, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return 0, fmt.Errorf("protocol slug is required")
	}
	var tvl float64
	err := c.get(ctx, c.baseURL+"/tvl/"+url.PathEscape(slug), &tvl)
	return tvl, err
}

// Chains returns per-chain TVL for all tracked chains.
func (c *Client) Chains(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	err := c.get(ctx, c.baseURL+"/v2/chains", &out)
	return out, err
}

// DexOverview returns aggregate DEX volume, optionally scoped to a chain.
func (c *Client) DexOverview(ctx context.Context, chain string) (map[string]any, error) {
	endpoint := c.baseURL + "/overview/dexs"
	if chain = strings.TrimSpace(strings.ToLower(chain)); chain != "" {
		endpoint += "/" + url.PathEscape(chain)
	}
	var out map[string]any
	err := c.get(ctx, endpoint, &out)
	return out, err
}

// Stablecoins returns circulating stablecoin supply data.
func (c *Client) Stablecoins(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, c.stablecoinsURL+"/stablecoins", &out)
	return out, err
}

// YieldPools returns tracked yield pools with their current APY.
func (c *Client) YieldPools(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, c.yieldsURL+"/pools", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build defillama request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute defillama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read defillama response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("defillama http status=%d body=%s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode defillama response: %w", err)
	}
	return nil
}

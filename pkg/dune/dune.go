// Package dune is a client for the Dune Analytics API. Saved queries run
// asynchronously: an execute call returns an execution id which is then
// polled until the result set is ready.
package dune

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
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL       = "https://api.dune.com/api/v1"
	defaultTimeout       = 10 * time.Second
	maxResponseSizeBytes = 4 << 20

	stateCompleted = "QUERY_STATE_COMPLETED"
	stateFailed    = "QUERY_STATE_FAILED"
)

var (
	ErrNotConfigured  = errors.New("dune api key not configured")
	ErrQueryFailed    = errors.New("dune query failed")
	ErrQueryUnsettled = errors.New("dune query did not complete in time")
)

type Config struct {
	APIKey    string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL   string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.dune.com/api/v1"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	RateLimit float64       `envconfig:"RATE_LIMIT" split_words:"true" default:"2"`
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
		return nil, fmt.Errorf("invalid dune base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 2
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 2),
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

// QueryResult is the settled result set of one execution.
type QueryResult struct {
	ExecutionID string           `json:"execution_id"`
	State       string           `json:"state"`
	Rows        []map[string]any `json:"-"`
	Metadata    map[string]any   `json:"-"`
}

type resultEnvelope struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Result      struct {
		Rows     []map[string]any `json:"rows"`
		Metadata map[string]any   `json:"metadata"`
	} `json:"result"`
}

// Execute starts a saved query and returns its execution id.
func (c *Client) Execute(ctx context.Context, queryID int, params map[string]any) (string, error) {
	body := map[string]any{}
	if len(params) > 0 {
		body["query_parameters"] = params
	}
	var out struct {
		ExecutionID string `json:"execution_id"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/query/%d/execute", queryID), body, &out); err != nil {
		return "", err
	}
	if out.ExecutionID == "" {
		return "", fmt.Errorf("%w: empty execution id", ErrQueryFailed)
	}
	return out.ExecutionID, nil
}

// Results fetches the current state of an execution.
func (c *Client) Results(ctx context.Context, executionID string) (*QueryResult, error) {
	var env resultEnvelope
	if err := c.do(ctx, http.MethodGet, "/execution/"+url.PathEscape(executionID)+"/results", nil, &env); err != nil {
		return nil, err
	}
	return &QueryResult{
		ExecutionID: env.ExecutionID,
		State:       env.State,
		Rows:        env.Result.Rows,
		Metadata:    env.Result.Metadata,
	}, nil
}

// RunQuery executes a saved query and polls with backoff until it settles
// or ctx expires.
func (c *Client) RunQuery(ctx context.Context, queryID int, params map[string]any) (*QueryResult, error) {
	executionID, err := c.Execute(ctx, queryID, params)
	if err != nil {
		return nil, err
	}

	backoff := 500 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrQueryUnsettled, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 4*time.Second {
			backoff *= 2
		}

		res, err := c.Results(ctx, executionID)
		if err != nil {
			return nil, err
		}
		switch res.State {
		case stateCompleted:
			return res, nil
		case stateFailed:
			return nil, fmt.Errorf("%w: execution %s", ErrQueryFailed, executionID)
		}
	}
}

// DexPairs returns the top DEX trading pairs on a chain.
func (c *Client) DexPairs(ctx context.Context, chain string, limit int) (*QueryResult, error) {
	if chain = strings.TrimSpace(strings.ToLower(chain)); chain == "" {
		chain = "ethereum"
	}
	if limit <= 0 {
		limit = 100
	}
	path := "/dex/pairs/" + url.PathEscape(chain) + "?" + url.Values{
		"sort_by": {"one_day_volume desc"},
		"limit":   {fmt.Sprint(limit)},
	}.Encode()

	var env resultEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return &QueryResult{
		ExecutionID: env.ExecutionID,
		State:       env.State,
		Rows:        env.Result.Rows,
		Metadata:    env.Result.Metadata,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal dune request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build dune request: %w", err)
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute dune request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read dune response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("dune http status=%d body=%s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode dune response: %w", err)
	}
	return nil
}

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/chainquery/chainquery/agent/contract"
	intentx "github.com/chainquery/chainquery/agent/intent"
)

const defaultToolTimeout = 10 * time.Second

// Config controls dispatch deadlines.
type Config struct {
	ToolTimeout time.Duration `envconfig:"TOOL_TIMEOUT" split_words:"true" default:"10s"`
}

// Registry resolves a source identifier to its tool implementation.
type Registry interface {
	Lookup(source string) (contractx.Tool, bool)
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithToolTimeout overrides the deadline for one named source. Provider
// SLAs differ, so a slow-but-valuable source can get extra headroom.
func WithToolTimeout(source string, timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.perTool[source] = timeout
		}
	}
}

// Dispatcher fans a request out to every selected tool in parallel, each
// under its own deadline, and joins the complete result set. One slow or
// failing tool never blocks or fails the others, so total wall-clock time
// is bounded by the largest per-tool deadline, not the sum.
type Dispatcher struct {
	registry Registry
	timeout  time.Duration
	perTool  map[string]time.Duration
}

func NewDispatcher(cfg Config, registry Registry, opts ...Option) *Dispatcher {
	timeout := cfg.ToolTimeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	d := &Dispatcher{
		registry: registry,
		timeout:  timeout,
		perTool:  make(map[string]time.Duration, 4),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

type indexedResult struct {
	idx int
	res contractx.ToolResult
}

// Dispatch invokes every selected tool concurrently and returns one result
// per selection, in selection order, successes and failures both. When ctx
// is cancelled before all tools finish, in-flight calls are left to run out
// their own deadlines and their slots are reported as timed out; results
// arriving after the join are discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, req contractx.ToolRequest, selections []intentx.Selection) []contractx.ToolResult {
	results := make([]contractx.ToolResult, len(selections))
	// Buffered to len(selections) so abandoned goroutines can still send
	// after an early return and terminate instead of leaking.
	done := make(chan indexedResult, len(selections))

	for i, sel := range selections {
		tool, ok := d.registry.Lookup(sel.Source)
		if !ok {
			done <- indexedResult{i, failedResult(sel.Source, time.Now(), 0, fmt.Sprintf("unknown source %q", sel.Source))}
			continue
		}

		go func(i int, source string, tool contractx.Tool) {
			started := time.Now()

			// Detached from the request context: tools are idempotent
			// reads, so in-flight calls run out their own deadline and
			// their late results are simply ignored.
			toolCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeoutFor(source))
			defer cancel()

			res, err := tool.Invoke(toolCtx, req)
			latency := time.Since(started)
			if err != nil {
				res = failedResult(source, started, latency, err.Error())
			} else {
				res.Source = source
				res.InvokedAt = started.UTC()
				res.Latency = latency
			}
			done <- indexedResult{i, res}
		}(i, sel.Source, tool)
	}

	finished := make([]bool, len(selections))
	for range selections {
		select {
		case r := <-done:
			results[r.idx] = r.res
			finished[r.idx] = true
		case <-ctx.Done():
			now := time.Now()
			for i := range selections {
				if !finished[i] {
					results[i] = failedResult(selections[i].Source, now, 0, "dispatch deadline exceeded")
				}
			}
			log.Warn().Str("query", req.Query).Msg("dispatch cut short by request deadline")
			return results
		}
	}
	return results
}

func (d *Dispatcher) timeoutFor(source string) time.Duration {
	if t, ok := d.perTool[source]; ok {
		return t
	}
	return d.timeout
}

func failedResult(source string, at time.Time, latency time.Duration, detail string) contractx.ToolResult {
	return contractx.ToolResult{
		Source:    source,
		Success:   false,
		InvokedAt: at.UTC(),
		Latency:   latency,
		Error:     detail,
	}
}

package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/chainquery/chainquery/agent/contract"
	intentx "github.com/chainquery/chainquery/agent/intent"
)

type fakeRegistry map[string]contractx.Tool

func (r fakeRegistry) Lookup(source string) (contractx.Tool, bool) {
	t, ok := r[source]
	return t, ok
}

// fakeTool completes after delay or reports a timeout failure when its
// context expires first, the way a well-behaved adapter does.
type fakeTool struct {
	source string
	delay  time.Duration
	err    error
}

func (f *fakeTool) Name() string { return f.source }

func (f *fakeTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return contractx.ToolResult{Source: f.source, Success: false, Error: "timeout"}, nil
	}
	if f.err != nil {
		return contractx.ToolResult{}, f.err
	}
	return contractx.ToolResult{
		Source:  f.source,
		Success: true,
		Payload: map[string]any{"source": f.source},
	}, nil
}

func selections(sources ...string) []intentx.Selection {
	out := make([]intentx.Selection, 0, len(sources))
	for _, s := range sources {
		out = append(out, intentx.Selection{Source: s, Weight: 1, Trigger: s})
	}
	return out
}

func TestDispatchFanOutLatencyBound(t *testing.T) {
	t.Parallel()

	reg := fakeRegistry{
		"fast1": &fakeTool{source: "fast1", delay: 10 * time.Millisecond},
		"fast2": &fakeTool{source: "fast2", delay: 10 * time.Millisecond},
		"slow":  &fakeTool{source: "slow", delay: 5 * time.Second},
	}
	d := NewDispatcher(Config{ToolTimeout: 150 * time.Millisecond}, reg)

	started := time.Now()
	results := d.Dispatch(context.Background(), contractx.ToolRequest{Query: "q"}, selections("fast1", "slow", "fast2"))
	elapsed := time.Since(started)

	if elapsed > time.Second {
		t.Fatalf("dispatch took %v, expected roughly the per-tool deadline", elapsed)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || !results[2].Success {
		t.Fatalf("fast tools should succeed: %+v", results)
	}
	if results[1].Success {
		t.Fatal("slow tool should have timed out")
	}
	if results[1].Source != "slow" {
		t.Fatalf("results must keep selection order, got %q at index 1", results[1].Source)
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	t.Parallel()

	reg := fakeRegistry{
		"a": &fakeTool{source: "a"},
		"b": &fakeTool{source: "b", err: errors.New("upstream 500")},
		"c": &fakeTool{source: "c"},
		"d": &fakeTool{source: "d"},
	}
	d := NewDispatcher(Config{}, reg)

	results := d.Dispatch(context.Background(), contractx.ToolRequest{Query: "q"}, selections("a", "b", "c", "d"))

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected 3 successes, got %d", succeeded)
	}
	if results[1].Success {
		t.Fatal("failed tool must be reported as failure")
	}
	if results[1].Error == "" {
		t.Fatal("failure must carry error detail")
	}
	if results[0].InvokedAt.IsZero() || results[0].Latency < 0 {
		t.Fatalf("successful result missing invocation metadata: %+v", results[0])
	}
}

func TestDispatchAllFail(t *testing.T) {
	t.Parallel()

	reg := fakeRegistry{
		"a": &fakeTool{source: "a", err: errors.New("down")},
		"b": &fakeTool{source: "b", err: errors.New("down")},
	}
	d := NewDispatcher(Config{}, reg)

	results := d.Dispatch(context.Background(), contractx.ToolRequest{Query: "q"}, selections("a", "b"))
	for _, r := range results {
		if r.Success {
			t.Fatalf("expected every tool to fail, got %+v", r)
		}
	}
}

func TestDispatchUnknownSource(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(Config{}, fakeRegistry{})
	results := d.Dispatch(context.Background(), contractx.ToolRequest{Query: "q"}, selections("ghost"))

	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected one failed result, got %+v", results)
	}
}

func TestDispatchRequestDeadlineCutsJoin(t *testing.T) {
	t.Parallel()

	reg := fakeRegistry{
		"fast": &fakeTool{source: "fast", delay: 5 * time.Millisecond},
		"slow": &fakeTool{source: "slow", delay: 5 * time.Second},
	}
	// Per-tool deadline is generous; the request-level context expires first.
	d := NewDispatcher(Config{ToolTimeout: 10 * time.Second}, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	results := d.Dispatch(ctx, contractx.ToolRequest{Query: "q"}, selections("fast", "slow"))
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("dispatch did not honor request deadline, took %v", elapsed)
	}

	if !results[0].Success {
		t.Fatalf("fast tool should have finished before the deadline: %+v", results[0])
	}
	if results[1].Success || results[1].Error == "" {
		t.Fatalf("unfinished slot must be a timeout failure, got %+v", results[1])
	}
}

func TestPerToolTimeoutOverride(t *testing.T) {
	t.Parallel()

	reg := fakeRegistry{
		"patient": &fakeTool{source: "patient", delay: 120 * time.Millisecond},
	}
	d := NewDispatcher(Config{ToolTimeout: 50 * time.Millisecond}, reg,
		WithToolTimeout("patient", 500*time.Millisecond))

	results := d.Dispatch(context.Background(), contractx.ToolRequest{Query: "q"}, selections("patient"))
	if !results[0].Success {
		t.Fatalf("override deadline should have let the tool finish: %+v", results[0])
	}
}

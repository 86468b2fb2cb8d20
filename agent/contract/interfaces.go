package contract

import (
	"context"

	sessionx "github.com/chainquery/chainquery/agent/session"
)

// Tool is the uniform contract every data-provider adapter implements. An
// adapter must honor the context deadline: if it cannot complete in time it
// returns a timeout-flavored failure in the result, never blocks past it.
// Provider-level failures go into ToolResult.Error with a nil error; a
// non-nil error is reserved for contract misuse and is folded into a failed
// result by the dispatcher either way.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, req ToolRequest) (ToolResult, error)
}

// SynthesisRequest carries everything the reasoning service needs to produce
// an answer: the current query, the merged dataset, and the session's recent
// turns for conversational continuity.
type SynthesisRequest struct {
	Query       string          `json:"query"`
	Address     string          `json:"address,omitempty"`
	TimeRange   TimeRange       `json:"time_range"`
	Data        MergedDataset   `json:"data"`
	Citations   []Citation      `json:"citations"`
	RecentTurns []sessionx.Turn `json:"recent_turns,omitempty"`
}

// Reasoner is the single opaque call out to the external language-model
// service.
type Reasoner interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (string, error)
}

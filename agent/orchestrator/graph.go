package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/chainquery/chainquery/agent/contract"
	intentx "github.com/chainquery/chainquery/agent/intent"
	mergex "github.com/chainquery/chainquery/agent/merge"
	reasonx "github.com/chainquery/chainquery/agent/reason"
	sessionx "github.com/chainquery/chainquery/agent/session"
)

type graphState struct {
	req       Request
	timeRange contractx.TimeRange
	sessionID string
	recent    []sessionx.Turn
	started   time.Time
	deadline  time.Time

	selections []intentx.Selection
	results    []contractx.ToolResult
	dataset    contractx.MergedDataset
	citations  []contractx.Citation
	answer     string
}

func (s *Service) compileResearchGraph(ctx context.Context) (compose.Runnable[Request, contractx.ResearchResponse], error) {
	graph := compose.NewGraph[Request, contractx.ResearchResponse]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, req Request) (*graphState, error) {
			return s.validateRequest(req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("resolve_session",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			in.sessionID, in.recent, _ = s.store.Resolve(in.req.SessionID)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_session: %w", err)
	}

	if err := graph.AddLambdaNode("greeting_reply",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (contractx.ResearchResponse, error) {
			in.answer = intentx.GreetingResponse(in.req.Query)
			in.dataset.DataQualityScore = 1
			s.recordTurns(in)
			return s.finalize(in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node greeting_reply: %w", err)
	}

	if err := graph.AddLambdaNode("classify",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			in.selections = s.classifier.Classify(in.req.Query, in.req.Address, in.req.DataSources)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_tools",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			dctx, cancel := context.WithDeadline(ctx, in.deadline)
			defer cancel()
			in.results = s.dispatcher.Dispatch(dctx, contractx.ToolRequest{
				Query:     in.req.Query,
				Address:   in.req.Address,
				TimeRange: in.timeRange,
				SessionID: in.sessionID,
			}, in.selections)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_tools: %w", err)
	}

	if err := graph.AddLambdaNode("merge_results",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			in.dataset, in.citations = mergex.Merge(in.selections, in.results)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node merge_results: %w", err)
	}

	if err := graph.AddLambdaNode("synthesize",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			sctx, cancel := context.WithDeadline(ctx, in.deadline)
			defer cancel()
			in.answer = s.synthesize(sctx, in)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node synthesize: %w", err)
	}

	if err := graph.AddLambdaNode("record_and_finalize",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (contractx.ResearchResponse, error) {
			s.recordTurns(in)
			return s.finalize(in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_and_finalize: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *graphState) (string, error) {
			if intentx.IsGreeting(in.req.Query) {
				return "greeting_reply", nil
			}
			return "classify", nil
		},
		map[string]bool{
			"greeting_reply": true,
			"classify":       true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_request"); err != nil {
		return nil, fmt.Errorf("add edge start->validate: %w", err)
	}
	if err := graph.AddEdge("validate_request", "resolve_session"); err != nil {
		return nil, fmt.Errorf("add edge validate->resolve: %w", err)
	}
	if err := graph.AddBranch("resolve_session", branch); err != nil {
		return nil, fmt.Errorf("add research branch: %w", err)
	}
	if err := graph.AddEdge("greeting_reply", compose.END); err != nil {
		return nil, fmt.Errorf("add edge greeting->end: %w", err)
	}

	edges := [][2]string{
		{"classify", "dispatch_tools"},
		{"dispatch_tools", "merge_results"},
		{"merge_results", "synthesize"},
		{"synthesize", "record_and_finalize"},
		{"record_and_finalize", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.research"))
	if err != nil {
		return nil, fmt.Errorf("compile research graph: %w", err)
	}
	return runner, nil
}

var knownSources = map[string]bool{
	contractx.SourceDune:          true,
	contractx.SourceEtherscan:     true,
	contractx.SourceCoinMarketCap: true,
	contractx.SourceDefiLlama:     true,
}

func (s *Service) validateRequest(req Request) (*graphState, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", contractx.ErrInvalidInput)
	}
	req.Address = strings.TrimSpace(req.Address)
	if err := contractx.ValidateAddress(req.Address); err != nil {
		return nil, err
	}
	timeRange, err := contractx.ParseTimeRange(req.TimeRange)
	if err != nil {
		return nil, err
	}
	for _, source := range req.DataSources {
		if !knownSources[strings.ToLower(strings.TrimSpace(source))] {
			return nil, fmt.Errorf("%w: unknown data source %q", contractx.ErrInvalidInput, source)
		}
	}
	started := s.now()
	return &graphState{
		req:       req,
		timeRange: timeRange,
		started:   started,
		deadline:  started.Add(s.timeout),
	}, nil
}

// synthesize produces the answer text, falling back to a templated answer
// built from the dataset when there is nothing to synthesize from or the
// reasoning call fails. Both are degraded-success paths, never errors.
func (s *Service) synthesize(ctx context.Context, in *graphState) string {
	synthReq := contractx.SynthesisRequest{
		Query:       in.req.Query,
		Address:     in.req.Address,
		TimeRange:   in.timeRange,
		Data:        in.dataset,
		Citations:   in.citations,
		RecentTurns: in.recent,
	}

	if in.dataset.NoData {
		return reasonx.FallbackAnswer(synthReq)
	}

	answer, err := s.reasoner.Synthesize(ctx, synthReq)
	if err != nil {
		log.Warn().Err(err).Str("session_id", in.sessionID).Msg("synthesis failed, using fallback answer")
		return reasonx.FallbackAnswer(synthReq)
	}
	return answer
}

func (s *Service) recordTurns(in *graphState) {
	now := s.now().UTC()
	s.store.Append(in.sessionID,
		sessionx.Turn{Role: sessionx.RoleUser, Content: in.req.Query, CreatedAt: now},
		sessionx.Turn{Role: sessionx.RoleAssistant, Content: in.answer, CreatedAt: now},
	)
}

func (s *Service) finalize(in *graphState) contractx.ResearchResponse {
	return contractx.ResearchResponse{
		Success:       true,
		Answer:        in.answer,
		Data:          in.dataset,
		Citations:     in.citations,
		SessionID:     in.sessionID,
		ExecutionTime: s.now().Sub(in.started).Seconds(),
	}
}

// Package orchestrator sequences one research request end to end:
// classify, dispatch, merge, synthesize, record, respond.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/chainquery/chainquery/agent/contract"
	dispatchx "github.com/chainquery/chainquery/agent/dispatch"
	intentx "github.com/chainquery/chainquery/agent/intent"
	sessionx "github.com/chainquery/chainquery/agent/session"
)

const defaultRequestTimeout = 30 * time.Second

// Config controls the global per-request deadline.
type Config struct {
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" split_words:"true" default:"30s"`
}

// Request is one research question as received from the HTTP surface.
type Request struct {
	Query       string
	Address     string
	TimeRange   string
	SessionID   string
	DataSources []string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the service's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	classifier *intentx.Classifier
	dispatcher *dispatchx.Dispatcher
	store      *sessionx.Store
	reasoner   contractx.Reasoner

	runner  compose.Runnable[Request, contractx.ResearchResponse]
	timeout time.Duration
	now     func() time.Time
}

func New(
	cfg Config,
	classifier *intentx.Classifier,
	dispatcher *dispatchx.Dispatcher,
	store *sessionx.Store,
	reasoner contractx.Reasoner,
	opts ...Option,
) (*Service, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if reasoner == nil {
		return nil, errors.New("reasoner is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Service{
		classifier: classifier,
		dispatcher: dispatcher,
		store:      store,
		reasoner:   reasoner,
		timeout:    timeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	runner, err := s.compileResearchGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.runner = runner

	return s, nil
}

// Research answers one question under the global deadline. Everything past
// input validation degrades instead of failing: partial provider outages
// lower the quality score, a synthesis failure falls back to a templated
// answer, and an exceeded deadline returns whatever was gathered so far.
func (s *Service) Research(ctx context.Context, req Request) (contractx.ResearchResponse, error) {
	// The graph itself always runs to completion; only the blocking nodes
	// (dispatch, synthesize) observe the deadline. Cancelling the runner's
	// context would abort between nodes and turn a cut-short request into
	// an error instead of a degraded response.
	out, err := s.runner.Invoke(context.WithoutCancel(ctx), req)
	if err != nil {
		return contractx.ResearchResponse{}, fmt.Errorf("research: %w", err)
	}
	return out, nil
}

// Sessions exposes the session store for the HTTP surface.
func (s *Service) Sessions() *sessionx.Store {
	return s.store
}

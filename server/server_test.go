package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/chainquery/chainquery/agent/contract"
	dispatchx "github.com/chainquery/chainquery/agent/dispatch"
	intentx "github.com/chainquery/chainquery/agent/intent"
	orchestratorx "github.com/chainquery/chainquery/agent/orchestrator"
	sessionx "github.com/chainquery/chainquery/agent/session"
)

type fakeTool struct {
	source string
}

func (f *fakeTool) Name() string { return f.source }

func (f *fakeTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	return contractx.ToolResult{
		Source:  f.source,
		Success: true,
		Payload: map[string]any{"tvl_usd": 3.5e9},
	}, nil
}

type fakeRegistry map[string]contractx.Tool

func (r fakeRegistry) Lookup(source string) (contractx.Tool, bool) {
	t, ok := r[source]
	return t, ok
}

type fakeReasoner struct{}

func (fakeReasoner) Synthesize(ctx context.Context, req contractx.SynthesisRequest) (string, error) {
	return "synthesized answer", nil
}

type fakeHealth map[string]string

func (f fakeHealth) Services() map[string]string { return f }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := fakeRegistry{}
	for _, src := range []string{
		contractx.SourceCoinMarketCap,
		contractx.SourceDune,
		contractx.SourceDefiLlama,
		contractx.SourceEtherscan,
	} {
		reg[src] = &fakeTool{source: src}
	}

	svc, err := orchestratorx.New(
		orchestratorx.Config{RequestTimeout: 5 * time.Second},
		intentx.NewClassifier(),
		dispatchx.NewDispatcher(dispatchx.Config{ToolTimeout: time.Second}, reg),
		sessionx.NewStore(sessionx.Config{}),
		fakeReasoner{},
	)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	srv, err := New(Config{}, svc, fakeHealth{"defillama": "active", "dune": "unavailable"})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q", body.Status)
	}
	if body.Services["dune"] != "unavailable" || body.Services["defillama"] != "active" {
		t.Fatalf("services = %v", body.Services)
	}
}

func TestResearchEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/research", map[string]any{
		"query": "What is the TVL of Uniswap V3?",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp contractx.ResearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Answer != "synthesized answer" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.SessionID == "" {
		t.Fatal("expected session id in response")
	}
	if len(resp.Citations) == 0 {
		t.Fatal("expected citations")
	}
}

func TestResearchEndpointRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/research", map[string]any{
		"query":   "price of eth",
		"address": "nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad address: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/research", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status = %d", rec2.Code)
	}
}

func TestConversationLifecycle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/research", map[string]any{
		"query": "uniswap tvl please",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("research status = %d", rec.Code)
	}
	var resp contractx.ResearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	path := fmt.Sprintf("/api/conversation/%s", resp.SessionID)
	rec = doJSON(t, srv.Handler(), http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("conversation status = %d", rec.Code)
	}
	var view sessionx.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.MessageCount != 2 || len(view.Turns) != 2 {
		t.Fatalf("expected recorded exchange, got %+v", view)
	}
	if view.Turns[0].Role != sessionx.RoleUser || view.Turns[1].Role != sessionx.RoleAssistant {
		t.Fatalf("unexpected turn roles %+v", view.Turns)
	}

	rec = doJSON(t, srv.Handler(), http.MethodDelete, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/research", map[string]any{
			"query": "bitcoin price",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("research status = %d", rec.Code)
		}
	}

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status = %d", rec.Code)
	}
	var body struct {
		Total    int                `json:"total"`
		Sessions []sessionx.Summary `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || len(body.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %+v", body)
	}
	for _, s := range body.Sessions {
		if s.MessageCount != 2 {
			t.Fatalf("expected 2 turns per session, got %+v", s)
		}
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/conversation/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

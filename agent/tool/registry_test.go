package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	contractx "github.com/chainquery/chainquery/agent/contract"
	llamax "github.com/chainquery/chainquery/pkg/defillama"
	etherscanx "github.com/chainquery/chainquery/pkg/etherscan"
)

type stubTool struct {
	name       string
	configured bool
}

func (s *stubTool) Name() string { return s.name }

func (s *stubTool) Configured() bool { return s.configured }

func (s *stubTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	return contractx.ToolResult{Source: s.name, Success: true}, nil
}

func TestRegistryLookupAndOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(
		&stubTool{name: "alpha", configured: true},
		&stubTool{name: "beta", configured: true},
	)

	if _, ok := reg.Lookup("alpha"); !ok {
		t.Fatal("expected alpha to resolve")
	}
	if _, ok := reg.Lookup("ghost"); ok {
		t.Fatal("unknown source must not resolve")
	}
	if got := reg.Sources(); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Fatalf("sources = %v", got)
	}
}

func TestRegistryServicesHealth(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(
		&stubTool{name: "keyed", configured: false},
		&stubTool{name: "open", configured: true},
	)

	services := reg.Services()
	if services["keyed"] != statusUnavailable {
		t.Fatalf("keyed = %q, want unavailable", services["keyed"])
	}
	if services["open"] != statusActive {
		t.Fatalf("open = %q, want active", services["open"])
	}
}

func TestDefiLlamaToolProtocolTVL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tvl/uniswap-v3":
			w.Write([]byte(`3500000000`))
		case "/protocol/uniswap-v3":
			w.Write([]byte(`{"name":"Uniswap V3","category":"Dexes","chains":["Ethereum"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := llamax.NewClient(llamax.Config{BaseURL: srv.URL, RateLimit: 1000})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	llamaTool := NewDefiLlamaTool(client)

	res, err := llamaTool.Invoke(context.Background(), contractx.ToolRequest{Query: "What is the TVL of Uniswap V3?"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	payload, ok := res.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type %T", res.Payload)
	}
	if payload["protocol"] != "uniswap-v3" {
		t.Fatalf("protocol = %v", payload["protocol"])
	}
	if payload["tvl_usd"] != 3.5e9 {
		t.Fatalf("tvl_usd = %v", payload["tvl_usd"])
	}
}

func TestEtherscanToolRequiresAddress(t *testing.T) {
	t.Parallel()

	client, err := etherscanx.NewClient(etherscanx.Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	esTool := NewEtherscanTool(client)

	res, err := esTool.Invoke(context.Background(), contractx.ToolRequest{Query: "recent transactions"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure without an address")
	}
	if res.Error == "" {
		t.Fatal("failure must carry a reason")
	}
}

func TestDetectSymbols(t *testing.T) {
	t.Parallel()

	got := detectSymbols("compare bitcoin and eth performance")
	if !reflect.DeepEqual(got, []string{"BTC", "ETH"}) {
		t.Fatalf("symbols = %v", got)
	}
	if got := detectSymbols("tokens linked to gaming"); len(got) != 0 {
		t.Fatalf("substring leak: %v", got)
	}
	// Name and ticker of the same coin collapse to one symbol.
	if got := detectSymbols("bitcoin btc outlook"); !reflect.DeepEqual(got, []string{"BTC"}) {
		t.Fatalf("dedup failed: %v", got)
	}
}

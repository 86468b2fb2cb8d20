package tool

import (
	"context"
	"strings"

	contractx "github.com/chainquery/chainquery/agent/contract"
	llamax "github.com/chainquery/chainquery/pkg/defillama"
)

// protocolSlugs maps protocol mentions to DefiLlama slugs. Longer phrases
// come first so "uniswap v3" wins over the bare "uniswap".
var protocolSlugs = []struct {
	keyword string
	slug    string
}{
	{"uniswap v3", "uniswap-v3"},
	{"uniswap v2", "uniswap-v2"},
	{"uniswap", "uniswap"},
	{"aave", "aave"},
	{"lido", "lido"},
	{"curve", "curve-dex"},
	{"compound", "compound-finance"},
	{"maker", "makerdao"},
	{"pancakeswap", "pancakeswap"},
	{"sushiswap", "sushi"},
}

type DefiLlamaTool struct {
	client *llamax.Client
}

func NewDefiLlamaTool(client *llamax.Client) *DefiLlamaTool {
	return &DefiLlamaTool{client: client}
}

func (t *DefiLlamaTool) Name() string { return contractx.SourceDefiLlama }

func (t *DefiLlamaTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	qlower := strings.ToLower(req.Query)

	if slug := detectProtocol(qlower); slug != "" {
		tvl, err := t.client.ProtocolTVL(ctx, slug)
		if err != nil {
			return failure(contractx.SourceDefiLlama, err), nil
		}
		payload := map[string]any{
			"query_type": "protocol_tvl",
			"protocol":   slug,
			"tvl_usd":    tvl,
		}
		// Full profile is best-effort extra context on top of the number.
		if profile, err := t.client.Protocol(ctx, slug); err == nil {
			payload["profile"] = map[string]any{
				"name":     profile["name"],
				"category": profile["category"],
				"chains":   profile["chains"],
			}
		}
		return success(contractx.SourceDefiLlama, payload), nil
	}

	switch {
	case strings.Contains(qlower, "stablecoin"):
		out, err := t.client.Stablecoins(ctx)
		if err != nil {
			return failure(contractx.SourceDefiLlama, err), nil
		}
		return success(contractx.SourceDefiLlama, map[string]any{"query_type": "stablecoins", "data": out}), nil
	case strings.Contains(qlower, "yield") || strings.Contains(qlower, "apy"):
		out, err := t.client.YieldPools(ctx)
		if err != nil {
			return failure(contractx.SourceDefiLlama, err), nil
		}
		return success(contractx.SourceDefiLlama, map[string]any{"query_type": "yields", "data": out}), nil
	case strings.Contains(qlower, "dex") || strings.Contains(qlower, "volume"):
		out, err := t.client.DexOverview(ctx, "")
		if err != nil {
			return failure(contractx.SourceDefiLlama, err), nil
		}
		return success(contractx.SourceDefiLlama, map[string]any{"query_type": "dex_overview", "data": out}), nil
	}

	chains, err := t.client.Chains(ctx)
	if err != nil {
		return failure(contractx.SourceDefiLlama, err), nil
	}
	return success(contractx.SourceDefiLlama, map[string]any{"query_type": "chain_tvl", "chains": chains}), nil
}

func detectProtocol(qlower string) string {
	for _, p := range protocolSlugs {
		if strings.Contains(qlower, p.keyword) {
			return p.slug
		}
	}
	return ""
}

package tool

import (
	"context"
	"strings"

	contractx "github.com/chainquery/chainquery/agent/contract"
	cmcx "github.com/chainquery/chainquery/pkg/coinmarketcap"
)

// symbolAliases maps common coin names in query text to ticker symbols.
var symbolAliases = []struct {
	keyword string
	symbol  string
}{
	{"bitcoin", "BTC"}, {"btc", "BTC"},
	{"ethereum", "ETH"}, {"eth", "ETH"},
	{"solana", "SOL"}, {"sol", "SOL"},
	{"cardano", "ADA"}, {"ada", "ADA"},
	{"ripple", "XRP"}, {"xrp", "XRP"},
	{"dogecoin", "DOGE"}, {"doge", "DOGE"},
	{"polygon", "MATIC"}, {"matic", "MATIC"},
	{"chainlink", "LINK"}, {"link", "LINK"},
}

type CoinMarketCapTool struct {
	client *cmcx.Client
}

func NewCoinMarketCapTool(client *cmcx.Client) *CoinMarketCapTool {
	return &CoinMarketCapTool{client: client}
}

func (t *CoinMarketCapTool) Name() string { return contractx.SourceCoinMarketCap }

func (t *CoinMarketCapTool) Configured() bool { return t.client.Configured() }

func (t *CoinMarketCapTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	qlower := strings.ToLower(req.Query)

	if symbols := detectSymbols(qlower); len(symbols) > 0 {
		out, err := t.client.Quotes(ctx, symbols...)
		if err != nil {
			return failure(contractx.SourceCoinMarketCap, err), nil
		}
		return success(contractx.SourceCoinMarketCap, map[string]any{
			"query_type": "quotes",
			"symbols":    symbols,
			"data":       out,
		}), nil
	}

	if strings.Contains(qlower, "global") || strings.Contains(qlower, "dominance") || strings.Contains(qlower, "total market") {
		out, err := t.client.GlobalMetrics(ctx)
		if err != nil {
			return failure(contractx.SourceCoinMarketCap, err), nil
		}
		return success(contractx.SourceCoinMarketCap, map[string]any{
			"query_type": "global_metrics",
			"data":       out,
		}), nil
	}

	out, err := t.client.Listings(ctx, 10)
	if err != nil {
		return failure(contractx.SourceCoinMarketCap, err), nil
	}
	return success(contractx.SourceCoinMarketCap, map[string]any{
		"query_type": "listings",
		"data":       out,
	}), nil
}

// detectSymbols extracts ticker symbols mentioned in a lowercased query,
// deduplicated, in alias-table order.
func detectSymbols(qlower string) []string {
	seen := make(map[string]bool, 4)
	var out []string
	for _, a := range symbolAliases {
		if seen[a.symbol] {
			continue
		}
		if containsWord(qlower, a.keyword) {
			seen[a.symbol] = true
			out = append(out, a.symbol)
		}
	}
	return out
}

// containsWord matches kw on word boundaries so "link" does not fire on
// "linked".
func containsWord(q, kw string) bool {
	idx := 0
	for {
		i := strings.Index(q[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isAlnum(q[start-1])
		afterOK := end == len(q) || !isAlnum(q[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

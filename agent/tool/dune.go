package tool

import (
	"context"
	"strings"

	contractx "github.com/chainquery/chainquery/agent/contract"
	dunex "github.com/chainquery/chainquery/pkg/dune"
)

// Saved query ids per analytics category. Overridable so deployments can
// point at their own saved queries.
var defaultDuneQueries = map[string]int{
	"volume": 1234567,
	"defi":   1234569,
	"nft":    1234570,
	"whale":  1234571,
	"gas":    1234572,
}

// Match order is fixed so a query hitting several categories always runs
// the same saved query.
var duneQueryOrder = []string{"volume", "whale", "gas", "nft", "defi"}

type DuneTool struct {
	client  *dunex.Client
	queries map[string]int
}

func NewDuneTool(client *dunex.Client) *DuneTool {
	return &DuneTool{client: client, queries: defaultDuneQueries}
}

func (t *DuneTool) Name() string { return contractx.SourceDune }

func (t *DuneTool) Configured() bool { return t.client.Configured() }

func (t *DuneTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	qlower := strings.ToLower(req.Query)

	if strings.Contains(qlower, "dex") || strings.Contains(qlower, "swap") || strings.Contains(qlower, "pair") {
		res, err := t.client.DexPairs(ctx, "ethereum", 100)
		if err != nil {
			return failure(contractx.SourceDune, err), nil
		}
		return success(contractx.SourceDune, map[string]any{
			"query_type": "dex_pairs",
			"chain":      "ethereum",
			"rows":       res.Rows,
			"metadata":   res.Metadata,
		}), nil
	}

	queryID := t.queries["volume"]
	for _, pattern := range duneQueryOrder {
		if strings.Contains(qlower, pattern) {
			queryID = t.queries[pattern]
			break
		}
	}

	params := map[string]any{"time_range": string(req.TimeRange)}
	if req.Address != "" {
		params["address"] = req.Address
	}

	res, err := t.client.RunQuery(ctx, queryID, params)
	if err != nil {
		return failure(contractx.SourceDune, err), nil
	}
	return success(contractx.SourceDune, map[string]any{
		"query_id": queryID,
		"rows":     res.Rows,
		"metadata": res.Metadata,
	}), nil
}

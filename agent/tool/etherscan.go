package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	contractx "github.com/chainquery/chainquery/agent/contract"
	etherscanx "github.com/chainquery/chainquery/pkg/etherscan"
)

type EtherscanTool struct {
	client *etherscanx.Client
}

func NewEtherscanTool(client *etherscanx.Client) *EtherscanTool {
	return &EtherscanTool{client: client}
}

func (t *EtherscanTool) Name() string { return contractx.SourceEtherscan }

func (t *EtherscanTool) Configured() bool { return t.client.Configured() }

func (t *EtherscanTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	if req.Address == "" {
		return failure(contractx.SourceEtherscan, errors.New("wallet address required for on-chain analysis")), nil
	}

	qlower := strings.ToLower(req.Query)
	var (
		env    *etherscanx.Envelope
		action string
		err    error
	)
	switch {
	case strings.Contains(qlower, "balance"):
		action = "balance"
		env, err = t.client.Balance(ctx, req.Address)
	case strings.Contains(qlower, "token"):
		action = "token_transfers"
		env, err = t.client.TokenTransfers(ctx, req.Address, 100)
	default:
		action = "transactions"
		env, err = t.client.Transactions(ctx, req.Address, 100)
	}
	if err != nil {
		return failure(contractx.SourceEtherscan, err), nil
	}

	var result any
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			result = string(env.Result)
		}
	}
	return success(contractx.SourceEtherscan, map[string]any{
		"action":  action,
		"address": req.Address,
		"result":  result,
	}), nil
}

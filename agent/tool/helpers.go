package tool

import (
	contractx "github.com/chainquery/chainquery/agent/contract"
)

func success(source string, payload any) contractx.ToolResult {
	return contractx.ToolResult{
		Source:  source,
		Success: true,
		Payload: payload,
	}
}

func failure(source string, err error) contractx.ToolResult {
	return contractx.ToolResult{
		Source:  source,
		Success: false,
		Error:   err.Error(),
	}
}

package contract

import "errors"

// Tool failure and no-data are not error values: a failed provider is
// carried in ToolResult.Success and an empty merge in MergedDataset.NoData,
// both of which still produce a successful response.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrReasoningFailure = errors.New("reasoning call failed")
)

package merge

import (
	contractx "github.com/chainquery/chainquery/agent/contract"
	intentx "github.com/chainquery/chainquery/agent/intent"
)

// Merge reconciles one request's tool results into a single dataset plus
// its provenance list. Sources cover disjoint domains, so the merge is a
// normalized union keyed by source, never a field-level reconciliation.
// The quality score is recomputed from the result set on every call.
func Merge(selections []intentx.Selection, results []contractx.ToolResult) (contractx.MergedDataset, []contractx.Citation) {
	triggers := make(map[string]string, len(selections))
	for _, sel := range selections {
		triggers[sel.Source] = sel.Trigger
	}

	dataset := contractx.MergedDataset{
		Data:        make(contractx.SourceData, 0, len(results)),
		SourcesUsed: make([]string, 0, len(results)),
	}
	citations := make([]contractx.Citation, 0, len(results))

	for _, res := range results {
		if !res.Success {
			continue
		}
		dataset.Data = append(dataset.Data, contractx.SourceEntry{
			Source:  res.Source,
			Payload: res.Payload,
		})
		dataset.SourcesUsed = append(dataset.SourcesUsed, res.Source)
		citations = append(citations, contractx.Citation{
			Source:       res.Source,
			Timestamp:    res.InvokedAt,
			QueryContext: triggers[res.Source],
		})
	}

	if len(results) > 0 {
		dataset.DataQualityScore = float64(len(dataset.SourcesUsed)) / float64(len(results))
	}
	// An explicit marker so downstream stages can tell "no data found"
	// apart from a bug that produced an empty map.
	dataset.NoData = len(dataset.SourcesUsed) == 0

	return dataset, citations
}

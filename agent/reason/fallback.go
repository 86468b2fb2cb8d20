package reason

import (
	"fmt"
	"sort"
	"strings"

	contractx "github.com/chainquery/chainquery/agent/contract"
)

// FallbackAnswer builds a templated answer directly from the merged dataset
// when the synthesis call fails or times out. The caller still gets the raw
// data and citations, so the answer only needs to frame them.
func FallbackAnswer(req contractx.SynthesisRequest) string {
	if req.Data.NoData {
		return "I could not retrieve data from any provider for this question right now. " +
			"Please try again shortly, or rephrase the question (for example, name a specific protocol, token, or wallet address)."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I gathered data from %s but could not complete the full analysis. ", humanJoin(req.Data.SourcesUsed))
	b.WriteString("Here is what came back:\n")
	for _, entry := range req.Data.Data {
		fmt.Fprintf(&b, "- %s: %s\n", entry.Source, summarizePayload(entry.Payload))
	}
	fmt.Fprintf(&b, "Data completeness for this request was %.0f%%.", req.Data.DataQualityScore*100)
	return b.String()
}

func humanJoin(items []string) string {
	switch len(items) {
	case 0:
		return "no sources"
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

// summarizePayload gives a one-line sketch of a provider payload without
// dumping the whole structure into the answer.
func summarizePayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "no detail returned"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return "empty result"
		}
		sort.Strings(keys)
		return fmt.Sprintf("result with fields %s", strings.Join(keys, ", "))
	case []any:
		return fmt.Sprintf("%d records", len(v))
	case string:
		if len(v) > 120 {
			return v[:120] + "..."
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

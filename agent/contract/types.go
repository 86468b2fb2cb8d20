package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimeRange is the analysis window a research request is scoped to.
type TimeRange string

const (
	TimeRange1D  TimeRange = "1d"
	TimeRange7D  TimeRange = "7d"
	TimeRange30D TimeRange = "30d"
	TimeRange90D TimeRange = "90d"
	TimeRange1Y  TimeRange = "1y"

	DefaultTimeRange = TimeRange7D
)

// Source identifiers for the built-in data providers.
const (
	SourceDune          = "dune"
	SourceEtherscan     = "etherscan"
	SourceCoinMarketCap = "coinmarketcap"
	SourceDefiLlama     = "defillama"
)

// ParseTimeRange validates a caller-supplied time range. Empty input maps to
// the default window.
func ParseTimeRange(raw string) (TimeRange, error) {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if trimmed == "" {
		return DefaultTimeRange, nil
	}
	switch TimeRange(trimmed) {
	case TimeRange1D, TimeRange7D, TimeRange30D, TimeRange90D, TimeRange1Y:
		return TimeRange(trimmed), nil
	default:
		return "", fmt.Errorf("%w: unrecognized time_range %q", ErrInvalidInput, raw)
	}
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAddress checks the hex-prefixed 40-character wallet address format.
// An empty address is valid (address is optional on requests).
func ValidateAddress(address string) error {
	if address == "" {
		return nil
	}
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: malformed address %q", ErrInvalidInput, address)
	}
	return nil
}

// ToolRequest is the uniform input every provider adapter receives. Tools are
// stateless; SessionID rides along for correlation in logs only.
type ToolRequest struct {
	Query     string    `json:"query"`
	Address   string    `json:"address,omitempty"`
	TimeRange TimeRange `json:"time_range,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// ToolResult is the uniform output of one provider invocation. Provider
// failures are data, not errors: Success=false with Error set. The payload is
// provider-shaped and opaque beyond being JSON-serializable. Latency and
// InvokedAt are stamped by the dispatcher.
type ToolResult struct {
	Source    string        `json:"source"`
	Success   bool          `json:"success"`
	Payload   any           `json:"payload,omitempty"`
	Latency   time.Duration `json:"latency"`
	InvokedAt time.Time     `json:"invoked_at"`
	Error     string        `json:"error,omitempty"`
}

// Citation records which source contributed data to an answer and why it was
// consulted.
type Citation struct {
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
	QueryContext string    `json:"query_context"`
}

// SourceEntry is one source's contribution inside a MergedDataset.
type SourceEntry struct {
	Source  string
	Payload any
}

// SourceData preserves invocation order while marshaling as a JSON object
// keyed by source identifier. Map iteration order would otherwise leak into
// responses; merging the same results twice must produce identical bytes.
type SourceData []SourceEntry

func (s SourceData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Source)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			return nil, err
		}
		buf.Write(payload)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *SourceData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make(SourceData, 0, len(raw))
	for source, payload := range raw {
		var value any
		if err := json.Unmarshal(payload, &value); err != nil {
			return err
		}
		entries = append(entries, SourceEntry{Source: source, Payload: value})
	}
	*s = entries
	return nil
}

// MergedDataset is the normalized union of one request's successful tool
// outputs. NoData distinguishes "nothing was found" from an accidentally
// empty mapping.
type MergedDataset struct {
	Data             SourceData `json:"data"`
	SourcesUsed      []string   `json:"sources_used"`
	DataQualityScore float64    `json:"data_quality_score"`
	NoData           bool       `json:"no_data"`
}

// Get returns the payload contributed by source, if any.
func (d MergedDataset) Get(source string) (any, bool) {
	for _, entry := range d.Data {
		if entry.Source == source {
			return entry.Payload, true
		}
	}
	return nil, false
}

// ResearchResponse is the structured result of one research request. It is
// returned to the caller and folded into a conversation Turn; it is never
// persisted whole.
type ResearchResponse struct {
	Success       bool          `json:"success"`
	Answer        string        `json:"answer"`
	Data          MergedDataset `json:"data"`
	Citations     []Citation    `json:"citations"`
	SessionID     string        `json:"session_id"`
	ExecutionTime float64       `json:"execution_time"`
}

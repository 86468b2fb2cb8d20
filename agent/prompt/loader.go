package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/research.txt
var researchRaw string

// ResearchPrompt returns the trimmed synthesis system prompt. The embed is
// compile-time, so this is safe to call concurrently.
func ResearchPrompt() string {
	return strings.TrimSpace(researchRaw)
}

package intent

import (
	"sort"
	"strings"
)

// Selection is one provider the classifier deems relevant, tagged with its
// relevance weight and the query snippet that triggered it.
type Selection struct {
	Source  string  `json:"source"`
	Weight  float64 `json:"weight"`
	Trigger string  `json:"trigger"`
}

// Classifier selects the providers worth invoking for a query. It is a
// deterministic keyword matcher over a static rule table; identical input
// always yields the same selection in the same order.
type Classifier struct {
	rules    []rule
	fallback []string
}

func NewClassifier() *Classifier {
	return &Classifier{
		rules:    ruleTable,
		fallback: fallbackSources,
	}
}

// Classify returns the ordered provider selection for a query. An address
// always activates the on-chain explorer regardless of keyword match.
// allowed, when non-empty, restricts selection to the named sources. When
// nothing matches, the broad-coverage fallback pair is selected so the
// system degrades to "something" rather than "nothing".
func (c *Classifier) Classify(query, address string, allowed []string) []Selection {
	qlower := strings.ToLower(query)
	hits := make(map[string]*Selection, 4)

	for _, r := range c.rules {
		if r.AddressRequired && address == "" {
			continue
		}
		for _, kw := range r.Keywords {
			if !containsKeyword(qlower, kw) {
				continue
			}
			for _, src := range r.Sources {
				if sel, ok := hits[src]; ok {
					sel.Weight++
				} else {
					hits[src] = &Selection{Source: src, Weight: 1, Trigger: kw}
				}
			}
		}
	}

	if address != "" {
		for _, r := range c.rules {
			if !r.AddressRequired {
				continue
			}
			for _, src := range r.Sources {
				if sel, ok := hits[src]; ok {
					sel.Weight++
				} else {
					hits[src] = &Selection{Source: src, Weight: 1, Trigger: "address"}
				}
			}
		}
	}

	out := make([]Selection, 0, len(hits))
	for _, sel := range hits {
		if permitted(sel.Source, allowed) {
			out = append(out, *sel)
		}
	}

	if len(out) == 0 {
		for _, src := range c.fallback {
			if permitted(src, allowed) {
				out = append(out, Selection{Source: src, Weight: 0, Trigger: "default coverage"})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank(out[i].Source) < priorityRank(out[j].Source)
	})
	return out
}

// containsKeyword matches kw as a whole word (or phrase) inside q, so that
// "eth" does not fire on "methodology".
func containsKeyword(q, kw string) bool {
	idx := 0
	for {
		i := strings.Index(q[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordChar(q[start-1])
		afterOK := end == len(q) || !isWordChar(q[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func permitted(source string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), source) {
			return true
		}
	}
	return false
}

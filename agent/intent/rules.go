package intent

import (
	contractx "github.com/chainquery/chainquery/agent/contract"
)

// RulesVersion is bumped whenever the rule table changes, so selection
// behavior differences between deployments are attributable.
const RulesVersion = 1

// rule maps one keyword category to the sources it activates. The table is
// immutable after startup; classification never mutates it.
type rule struct {
	Category string
	Keywords []string
	Sources  []string
	// AddressRequired gates the rule on an address being present, so a
	// source that cannot answer without one is never selected to fail.
	AddressRequired bool
}

// ruleTable is ordered: earlier categories contribute their sources first,
// and within a request the final ordering is fixed by providerPriority.
var ruleTable = []rule{
	{
		Category: "market",
		Keywords: []string{
			"price", "market", "market cap", "volume", "bitcoin", "btc",
			"ethereum", "eth", "token", "coin", "rank", "dominance",
		},
		Sources: []string{contractx.SourceCoinMarketCap},
	},
	{
		Category: "analytics",
		Keywords: []string{
			"analysis", "analytics", "dex", "swap", "trading", "whale",
			"trend", "performance", "investment", "invest", "metrics",
		},
		Sources: []string{contractx.SourceDune},
	},
	{
		Category: "defi",
		Keywords: []string{
			"tvl", "defi", "protocol", "yield", "apy", "stablecoin",
			"fees", "revenue", "bridge", "liquidity", "uniswap", "aave",
			"curve", "lido", "compound", "maker",
		},
		Sources: []string{contractx.SourceDefiLlama},
	},
	{
		Category: "onchain",
		Keywords: []string{
			"transaction", "transactions", "wallet", "address", "gas",
			"transfer", "balance", "network", "activity", "block",
		},
		Sources:         []string{contractx.SourceEtherscan},
		AddressRequired: true,
	},
}

// providerPriority fixes the invocation order of selected sources. Ties and
// multi-category matches always resolve the same way for identical input.
var providerPriority = []string{
	contractx.SourceCoinMarketCap,
	contractx.SourceDune,
	contractx.SourceDefiLlama,
	contractx.SourceEtherscan,
}

// fallbackSources is the degraded default when no category matches: the two
// broadest-coverage, lowest-latency providers, both usable without an
// address or an API key.
var fallbackSources = []string{
	contractx.SourceCoinMarketCap,
	contractx.SourceDefiLlama,
}

func priorityRank(source string) int {
	for i, s := range providerPriority {
		if s == source {
			return i
		}
	}
	return len(providerPriority)
}

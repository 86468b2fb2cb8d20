package intent

import (
	"hash/fnv"
	"strings"
)

// Small-talk handling: greetings are answered directly without burning
// provider calls or a synthesis round trip.

var greetingWords = []string{
	"hi", "hello", "hey", "hiya", "howdy", "greetings",
	"good morning", "good afternoon", "good evening",
	"yo", "sup", "thanks", "thank you", "bye", "goodbye",
}

var greetingPhrases = []string{
	"how are you",
	"how's it going",
	"what's up",
	"whats up",
	"nice to meet you",
}

// IsGreeting reports whether the query is a greeting or casual opener
// rather than a research question.
func IsGreeting(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, g := range greetingWords {
		if q == g || strings.HasPrefix(q, g+" ") || strings.HasPrefix(q, g+",") || strings.HasPrefix(q, g+"!") {
			return true
		}
	}
	for _, p := range greetingPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

var greetingResponses = []string{
	"Hello! I can help you research crypto markets, DeFi protocols, and on-chain activity. What would you like to look into?",
	"Hi there! Ask me about token prices, protocol TVL, DEX volumes, or any wallet address and I'll pull the data together for you.",
	"Hey! I have live access to market data, DeFi analytics, and blockchain explorers. What are you curious about today?",
	"Greetings! Whether it's market trends, protocol research, or transaction history, I can dig into the data for you. Where should we start?",
}

// GreetingResponse picks a reply for a greeting. The pick is a stable hash
// of the query so identical input gets an identical answer.
func GreetingResponse(query string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return greetingResponses[h.Sum32()%uint32(len(greetingResponses))]
}

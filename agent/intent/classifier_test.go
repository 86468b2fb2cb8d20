package intent

import (
	"reflect"
	"testing"

	contractx "github.com/chainquery/chainquery/agent/contract"
)

func sources(sels []Selection) []string {
	out := make([]string, 0, len(sels))
	for _, s := range sels {
		out = append(out, s.Source)
	}
	return out
}

func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	query := "analyze ethereum trading volume and protocol fees"

	first := c.Classify(query, "", nil)
	for i := 0; i < 20; i++ {
		again := c.Classify(query, "", nil)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("selection not deterministic: %v vs %v", first, again)
		}
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	// Hits defi, analytics, and market categories; order must follow the
	// fixed provider priority regardless of keyword order in the query.
	got := sources(c.Classify("uniswap tvl and dex volume price analysis", "", nil))
	want := []string{
		contractx.SourceCoinMarketCap,
		contractx.SourceDune,
		contractx.SourceDefiLlama,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestClassifyTVLQuery(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	sels := c.Classify("What is the TVL of Uniswap V3?", "", nil)

	found := false
	for _, s := range sels {
		if s.Source == contractx.SourceEtherscan {
			t.Fatal("explorer must not be selected without an address")
		}
		if s.Source == contractx.SourceDefiLlama {
			found = true
			if s.Trigger == "" {
				t.Fatal("expected a trigger snippet on the TVL selection")
			}
		}
	}
	if !found {
		t.Fatalf("expected TVL provider in selection, got %v", sources(sels))
	}
}

func TestClassifyAddressActivatesExplorer(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	sels := c.Classify("what is the price of eth", "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", nil)

	var explorer *Selection
	for i := range sels {
		if sels[i].Source == contractx.SourceEtherscan {
			explorer = &sels[i]
		}
	}
	if explorer == nil {
		t.Fatalf("address presence must activate explorer, got %v", sources(sels))
	}
	if explorer.Trigger != "address" {
		t.Fatalf("expected trigger %q, got %q", "address", explorer.Trigger)
	}
	// Explorer carries the lowest priority, so it comes last.
	if sels[len(sels)-1].Source != contractx.SourceEtherscan {
		t.Fatalf("expected explorer last, got %v", sources(sels))
	}
}

func TestClassifyFallbackOnNoMatch(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	got := sources(c.Classify("tell me something interesting", "", nil))
	want := []string{contractx.SourceCoinMarketCap, contractx.SourceDefiLlama}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected fallback pair %v, got %v", want, got)
	}
}

func TestClassifyRespectsAllowedFilter(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	got := sources(c.Classify("uniswap tvl and eth price", "", []string{"defillama"}))
	want := []string{contractx.SourceDefiLlama}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected filtered selection %v, got %v", want, got)
	}
}

func TestKeywordWholeWordMatch(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	// "methodology" must not fire the "eth" keyword.
	got := sources(c.Classify("explain your methodology", "", nil))
	want := []string{contractx.SourceCoinMarketCap, contractx.SourceDefiLlama}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("substring leak: got %v, want fallback %v", got, want)
	}
}

func TestClassifyWeightsAccumulate(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	sels := c.Classify("bitcoin price and market cap", "", nil)
	if len(sels) == 0 {
		t.Fatal("expected at least one selection")
	}
	if sels[0].Source != contractx.SourceCoinMarketCap {
		t.Fatalf("expected market provider first, got %q", sels[0].Source)
	}
	if sels[0].Weight < 2 {
		t.Fatalf("expected accumulated weight >= 2, got %v", sels[0].Weight)
	}
}

func TestIsGreeting(t *testing.T) {
	t.Parallel()

	for _, q := range []string{"hi", "Hello!", "hey there", "good morning", "how are you doing?", "what's up"} {
		if !IsGreeting(q) {
			t.Errorf("expected greeting: %q", q)
		}
	}
	for _, q := range []string{"", "what is the TVL of Aave?", "bitcoin price", "history of ethereum"} {
		if IsGreeting(q) {
			t.Errorf("unexpected greeting: %q", q)
		}
	}
}

func TestGreetingResponseStable(t *testing.T) {
	t.Parallel()

	first := GreetingResponse("hello")
	for i := 0; i < 10; i++ {
		if got := GreetingResponse("hello"); got != first {
			t.Fatalf("greeting response not stable: %q vs %q", got, first)
		}
	}
	if first == "" {
		t.Fatal("expected non-empty greeting response")
	}
}

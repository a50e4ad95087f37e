package agent

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/models"
)

type stubLookup struct {
	quote *models.SymbolQuote
	err   error
	calls int
}

func (s *stubLookup) LookupSymbol(_ context.Context, symbol string) (*models.SymbolQuote, error) {
	s.calls++
	return s.quote, s.err
}

func testHoldings() []models.Holding {
	return []models.Holding{
		{ID: "h1", Symbol: "AAPL", Name: "Apple Inc"},
		{ID: "h2", Symbol: "GOOGL", Name: "Alphabet Inc"},
		{ID: "h3", Symbol: "BTC", Name: "Bitcoin"},
		{ID: "h4", Symbol: "HIMS", Name: "Hims and Hers Health"},
	}
}

func TestFindMatches_ExactSymbol(t *testing.T) {
	m := NewMatcher(nil, common.NewSilentLogger())

	result, err := m.FindMatches(context.Background(), "aapl", testHoldings())
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if result.SuggestedAction != models.SuggestAddToExisting {
		t.Errorf("suggested action = %q, want add_to_existing", result.SuggestedAction)
	}
	if result.BestMatch == nil || result.BestMatch.Confidence != 1.0 {
		t.Errorf("best match = %+v, want AAPL at 1.0", result.BestMatch)
	}
	if result.BestMatch.HoldingID != "h1" {
		t.Errorf("holding id = %q, want h1", result.BestMatch.HoldingID)
	}
}

func TestFindMatches_ExactBeatsFuzzy(t *testing.T) {
	// GOOG is one edit away from both GOOGL and an exact match candidate.
	holdings := append(testHoldings(), models.Holding{ID: "h5", Symbol: "GOOG", Name: "Alphabet Class C"})
	m := NewMatcher(nil, common.NewSilentLogger())

	result, err := m.FindMatches(context.Background(), "GOOG", holdings)
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if result.SuggestedAction != models.SuggestAddToExisting {
		t.Fatalf("suggested action = %q, want add_to_existing", result.SuggestedAction)
	}
	if result.BestMatch.Symbol != "GOOG" || result.BestMatch.Confidence != 1.0 {
		t.Errorf("exact match lost to fuzzy: %+v", result.BestMatch)
	}
}

func TestFindMatches_AliasTable(t *testing.T) {
	m := NewMatcher(nil, common.NewSilentLogger())

	result, err := m.FindMatches(context.Background(), "BITCOIN", testHoldings())
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if result.SuggestedAction != models.SuggestAddToExisting {
		t.Fatalf("suggested action = %q, want add_to_existing", result.SuggestedAction)
	}
	if result.BestMatch.Symbol != "BTC" || result.BestMatch.Confidence != 0.9 {
		t.Errorf("best match = %+v, want BTC at 0.9", result.BestMatch)
	}
}

func TestFindMatches_NameOverlap(t *testing.T) {
	m := NewMatcher(nil, common.NewSilentLogger())

	result, err := m.FindMatches(context.Background(), "Apple", testHoldings())
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if result.SuggestedAction != models.SuggestAddToExisting {
		t.Fatalf("suggested action = %q, want add_to_existing", result.SuggestedAction)
	}
	if result.BestMatch.Symbol != "AAPL" {
		t.Errorf("best match = %+v, want AAPL", result.BestMatch)
	}
}

func TestFindMatches_Idempotent(t *testing.T) {
	m := NewMatcher(nil, common.NewSilentLogger())
	holdings := testHoldings()

	first, err := m.FindMatches(context.Background(), "GOGL", holdings)
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	second, err := m.FindMatches(context.Background(), "GOGL", holdings)
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if first.SuggestedAction != second.SuggestedAction {
		t.Errorf("suggested action drifted: %q vs %q", first.SuggestedAction, second.SuggestedAction)
	}
	if !reflect.DeepEqual(first.Matches, second.Matches) {
		t.Errorf("match ordering drifted:\n%+v\n%+v", first.Matches, second.Matches)
	}
}

func TestFindMatches_UnknownSymbolUsesLookup(t *testing.T) {
	lookup := &stubLookup{quote: &models.SymbolQuote{
		Symbol: "META", Name: "Meta Platforms", Price: 300, Currency: "USD", Confidence: 0.95,
	}}
	m := NewMatcher(lookup, common.NewSilentLogger())

	result, err := m.FindMatches(context.Background(), "META", testHoldings())
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if result.SuggestedAction != models.SuggestCreateNew {
		t.Errorf("suggested action = %q, want create_new", result.SuggestedAction)
	}
	if result.Lookup == nil || result.Lookup.Name != "Meta Platforms" {
		t.Errorf("lookup metadata not attached: %+v", result.Lookup)
	}
	if lookup.calls != 1 {
		t.Errorf("lookup calls = %d, want 1", lookup.calls)
	}
}

func TestFindMatches_LookupFailureStillCreates(t *testing.T) {
	lookup := &stubLookup{err: errors.New("provider down")}
	m := NewMatcher(lookup, common.NewSilentLogger())

	result, err := m.FindMatches(context.Background(), "ZZZZ", testHoldings())
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if result.SuggestedAction != models.SuggestCreateNew {
		t.Errorf("suggested action = %q, want create_new", result.SuggestedAction)
	}
	if result.Lookup != nil {
		t.Errorf("lookup metadata should be absent, got %+v", result.Lookup)
	}
}

func TestSimilarityRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"GOOGL", "GOOGL", 1.0},
		{"GOOGL", "GOOG", 0.8},
		{"AAPL", "MSFT", 0.0},
	}
	for _, tc := range cases {
		if got := similarityRatio(tc.a, tc.b); got != tc.want {
			t.Errorf("similarityRatio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

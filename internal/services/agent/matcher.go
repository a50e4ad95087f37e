package agent

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// Matcher resolves a free-text symbol against the current holdings before a
// mutation is attempted. It works through tiers of decreasing certainty and
// stops at the first one that produces a usable result; a symbol nothing in
// the portfolio resembles is passed to the external lookup client, and the
// matcher never blocks creation of a genuinely new holding.
type Matcher struct {
	lookup interfaces.LookupClient
	logger *common.Logger
}

// symbolAliases maps well known alternate spellings that a pure edit-distance
// comparison scores too low.
var symbolAliases = map[string]string{
	"BTC":      "BITCOIN",
	"BITCOIN":  "BTC",
	"ETH":      "ETHEREUM",
	"ETHEREUM": "ETH",
	"GOOG":     "GOOGL",
	"GOOGL":    "GOOG",
}

const (
	matchSurfaceThreshold = 0.7
	matchAutoThreshold    = 0.8
	aliasConfidence       = 0.9
)

func NewMatcher(lookup interfaces.LookupClient, logger *common.Logger) *Matcher {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}
	return &Matcher{lookup: lookup, logger: logger}
}

var _ interfaces.MatcherService = (*Matcher)(nil)

// FindMatches runs the tiered match. Ordering of the returned candidates is
// deterministic: confidence descending, then symbol ascending.
func (m *Matcher) FindMatches(ctx context.Context, symbol string, holdings []models.Holding) (*models.HoldingMatches, error) {
	query := strings.ToUpper(strings.TrimSpace(symbol))
	if query == "" {
		return &models.HoldingMatches{SuggestedAction: models.SuggestCreateNew}, nil
	}

	// Tier 1: exact symbol match wins outright.
	for i := range holdings {
		if strings.ToUpper(holdings[i].Symbol) == query {
			best := models.MatchResult{
				Symbol:     holdings[i].Symbol,
				Name:       holdings[i].Name,
				Confidence: 1.0,
				HoldingID:  holdings[i].ID,
			}
			return &models.HoldingMatches{
				SuggestedAction: models.SuggestAddToExisting,
				BestMatch:       &best,
				Matches:         []models.MatchResult{best},
			}, nil
		}
	}

	// Tier 2: edit-distance similarity plus the alias table.
	var candidates []models.MatchResult
	for i := range holdings {
		held := strings.ToUpper(holdings[i].Symbol)
		score := similarityRatio(query, held)
		if alias, ok := symbolAliases[query]; ok && alias == held {
			if score < aliasConfidence {
				score = aliasConfidence
			}
		}
		if score > matchSurfaceThreshold {
			candidates = append(candidates, models.MatchResult{
				Symbol:     holdings[i].Symbol,
				Name:       holdings[i].Name,
				Confidence: score,
				HoldingID:  holdings[i].ID,
			})
		}
	}
	if result := resolveCandidates(candidates); result != nil {
		return result, nil
	}

	// Tier 3: name overlap.
	candidates = candidates[:0]
	for i := range holdings {
		score := nameOverlap(query, holdings[i].Name)
		if score > matchSurfaceThreshold {
			candidates = append(candidates, models.MatchResult{
				Symbol:     holdings[i].Symbol,
				Name:       holdings[i].Name,
				Confidence: score,
				HoldingID:  holdings[i].ID,
			})
		}
	}
	if result := resolveCandidates(candidates); result != nil {
		return result, nil
	}

	// Tier 4: nothing held resembles the symbol, so treat it as new and
	// attach whatever metadata the lookup provider knows.
	out := &models.HoldingMatches{SuggestedAction: models.SuggestCreateNew}
	if m.lookup != nil {
		quote, err := m.lookup.LookupSymbol(ctx, query)
		if err != nil {
			m.logger.Warn().Err(err).Str("symbol", query).Msg("Symbol lookup failed")
		} else if quote != nil {
			out.Lookup = quote
		}
	}
	return out, nil
}

// resolveCandidates applies the shared auto-select/clarify policy. Returns
// nil when the tier produced nothing usable.
func resolveCandidates(candidates []models.MatchResult) *models.HoldingMatches {
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})
	if len(candidates) == 1 && candidates[0].Confidence > matchAutoThreshold {
		return &models.HoldingMatches{
			SuggestedAction: models.SuggestAddToExisting,
			BestMatch:       &candidates[0],
			Matches:         candidates,
		}
	}
	return &models.HoldingMatches{
		SuggestedAction: models.SuggestClarify,
		BestMatch:       &candidates[0],
		Matches:         candidates,
	}
}

// similarityRatio is (longer - distance) / longer over uppercased symbols.
func similarityRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(longer-dist) / float64(longer)
}

// nameOverlap scores the query against a display name. Substring containment
// is near-certain; otherwise shared words are scored proportionally, capped
// so a word-overlap match can never auto-select over a symbol match.
func nameOverlap(query, name string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		return 0
	}
	if strings.Contains(n, q) || strings.Contains(q, n) {
		return 0.9
	}
	qWords := strings.Fields(q)
	nWords := strings.Fields(n)
	if len(qWords) == 0 || len(nWords) == 0 {
		return 0
	}
	nSet := make(map[string]bool, len(nWords))
	for _, w := range nWords {
		nSet[w] = true
	}
	common := 0
	for _, w := range qWords {
		if nSet[w] {
			common++
		}
	}
	if common == 0 {
		return 0
	}
	max := len(qWords)
	if len(nWords) > max {
		max = len(nWords)
	}
	score := float64(common) / float64(max)
	if score > 0.8 {
		score = 0.8
	}
	return score
}

package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/praveensg/folioagent/internal/models"
)

// Fast-path handling for common read-only questions. These short-circuit
// before intent recognition, so a summary request never costs an LLM call.

// targetAllocations are the reference weights used when answering gap
// questions. They are advisory output only, never enforced.
var targetAllocations = map[string]float64{
	models.CategoryEquity: 0.60,
	models.CategoryCrypto: 0.10,
	models.CategoryDebt:   0.20,
	models.CategoryCash:   0.10,
}

// tryFastPath answers summary, biggest-holding, and allocation-gap questions
// directly from the holdings snapshot. Returns nil when the message is not a
// recognized read-only question.
func tryFastPath(input string, holdings []models.Holding, displayCurrency string) *models.AgentResponse {
	lower := strings.ToLower(input)

	switch {
	case containsAny(lower, "summary", "overview", "how is my portfolio", "how's my portfolio", "portfolio doing"):
		return answer(portfolioSummary(holdings, displayCurrency))
	case containsAny(lower, "biggest holding", "largest holding", "biggest position", "largest position"):
		return answer(biggestHolding(holdings, displayCurrency))
	case containsAny(lower, "allocation gap", "allocation gaps", "underweight", "overweight", "rebalance"):
		return answer(allocationGaps(holdings, displayCurrency))
	}
	return nil
}

func answer(msg string) *models.AgentResponse {
	return &models.AgentResponse{
		Action:     models.AgentActionAnswer,
		Message:    msg,
		Confidence: 1.0,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func holdingValue(h *models.Holding, currency string) float64 {
	switch strings.ToUpper(currency) {
	case models.CurrencyUSD:
		return h.ValueUSD
	case models.CurrencyINR:
		return h.ValueINR
	default:
		return h.ValueSGD
	}
}

func portfolioSummary(holdings []models.Holding, currency string) string {
	if len(holdings) == 0 {
		return "Your portfolio is empty. Try adding a holding, for example: add 100 shares of META at $300."
	}
	total := 0.0
	byCategory := map[string]float64{}
	for i := range holdings {
		v := holdingValue(&holdings[i], currency)
		total += v
		byCategory[holdings[i].Category] += v
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You hold %d positions worth %.2f %s in total.", len(holdings), models.Round2(total), strings.ToUpper(currency))
	if total > 0 {
		for _, cat := range models.Categories {
			if v := byCategory[cat]; v > 0 {
				fmt.Fprintf(&b, " %s: %.2f (%.0f%%).", cat, models.Round2(v), v/total*100)
			}
		}
	}
	return b.String()
}

func biggestHolding(holdings []models.Holding, currency string) string {
	if len(holdings) == 0 {
		return "Your portfolio is empty, so there is no biggest holding yet."
	}
	best := 0
	for i := range holdings {
		if holdingValue(&holdings[i], currency) > holdingValue(&holdings[best], currency) {
			best = i
		}
	}
	h := holdings[best]
	return fmt.Sprintf("Your biggest holding is %s (%s) at %.2f %s.",
		h.Symbol, h.Name, models.Round2(holdingValue(&h, currency)), strings.ToUpper(currency))
}

func allocationGaps(holdings []models.Holding, currency string) string {
	if len(holdings) == 0 {
		return "Your portfolio is empty, so allocation cannot be assessed yet."
	}
	total := 0.0
	byCategory := map[string]float64{}
	for i := range holdings {
		v := holdingValue(&holdings[i], currency)
		total += v
		byCategory[holdings[i].Category] += v
	}
	if total <= 0 {
		return "Your holdings have no recorded value, so allocation cannot be assessed."
	}

	type gap struct {
		category string
		delta    float64
	}
	var gaps []gap
	for _, cat := range models.Categories {
		actual := byCategory[cat] / total
		gaps = append(gaps, gap{category: cat, delta: actual - targetAllocations[cat]})
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].delta < gaps[j].delta })

	var b strings.Builder
	b.WriteString("Against a 60/20/10/10 equity/debt/crypto/cash reference:")
	for _, g := range gaps {
		switch {
		case g.delta < -0.02:
			fmt.Fprintf(&b, " %s is underweight by %.0f%%.", g.category, -g.delta*100)
		case g.delta > 0.02:
			fmt.Fprintf(&b, " %s is overweight by %.0f%%.", g.category, g.delta*100)
		}
	}
	if b.Len() == len("Against a 60/20/10/10 equity/debt/crypto/cash reference:") {
		b.WriteString(" allocations are within 2% of target.")
	}
	return b.String()
}

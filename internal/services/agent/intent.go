package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/praveensg/folioagent/internal/models"
)

// Tier 1 intent recognition: an ordered list of (regex, extractor) pairs.
// The first matching pattern wins and its confidence is derived from how
// much of the input the match consumed. Anything these patterns cannot
// resolve falls through to the LLM tier.

// companyTickers normalizes common company names to their ticker symbols
// before entity extraction.
var companyTickers = map[string]string{
	"meta":      "META",
	"facebook":  "META",
	"apple":     "AAPL",
	"google":    "GOOGL",
	"alphabet":  "GOOGL",
	"microsoft": "MSFT",
	"amazon":    "AMZN",
	"tesla":     "TSLA",
	"nvidia":    "NVDA",
	"netflix":   "NFLX",
	"bitcoin":   "BTC",
	"ethereum":  "ETH",
}

// knownCustodians are location labels a rename value may plausibly refer to.
var knownCustodians = map[string]bool{
	"DBS": true, "UOB": true, "OCBC": true, "SCB": true,
	"IBKR": true, "MOOMOO": true, "TIGER": true, "SYFE": true,
	"ENDOWUS": true, "STASHAWAY": true, "COINBASE": true, "BINANCE": true,
}

type patternExtractor func(m []string, input string) *models.IntentResult

type intentPattern struct {
	intent  models.Intent
	re      *regexp.Regexp
	extract patternExtractor
}

var intentPatterns = []intentPattern{
	{
		intent: models.IntentAddHolding,
		re: regexp.MustCompile(`(?i)\b(?:add|buy|bought|purchased?)\s+([\d,.]+)\s+(?:shares?|units?)\s+(?:of\s+)?([A-Za-z][A-Za-z.&\-]*)\s+(?:at|@|for)\s+\$?([\d,.]+)`),
		extract: func(m []string, _ string) *models.IntentResult {
			qty := parseAmount(m[1])
			price := parseAmount(m[3])
			symbol := normalizeSymbol(m[2])
			return &models.IntentResult{
				Intent: models.IntentAddHolding,
				Payload: &models.ActionPayload{
					Kind: models.ActionAddHolding,
					Add: &models.AddHoldingPayload{
						Symbol:    symbol,
						Quantity:  qty,
						UnitPrice: price,
						TotalCost: models.Round2(qty * price),
					},
				},
			}
		},
	},
	{
		intent: models.IntentAddHolding,
		re: regexp.MustCompile(`(?i)\b(?:add|buy|bought|purchased?)\s+([\d,.]+)\s+(?:shares?|units?)\s+(?:of\s+)?([A-Za-z][A-Za-z.&\-]*)`),
		extract: func(m []string, _ string) *models.IntentResult {
			return &models.IntentResult{
				Intent: models.IntentAddHolding,
				Payload: &models.ActionPayload{
					Kind: models.ActionAddHolding,
					Add: &models.AddHoldingPayload{
						Symbol:   normalizeSymbol(m[2]),
						Quantity: parseAmount(m[1]),
					},
				},
			}
		},
	},
	{
		intent: models.IntentReduceHolding,
		re: regexp.MustCompile(`(?i)\b(?:sell|reduce|trim)\s+(half|all|a\s+quarter|[\d,.]+%?)\s+(?:of\s+)?(?:my\s+)?([A-Za-z][A-Za-z.\-]*)`),
		extract: func(m []string, _ string) *models.IntentResult {
			payload := &models.ReduceHoldingPayload{Symbol: normalizeSymbol(m[2])}
			switch amount := strings.ToLower(strings.Join(strings.Fields(m[1]), " ")); amount {
			case "half":
				payload.Fraction = 0.5
			case "all":
				payload.Fraction = 1.0
			case "a quarter":
				payload.Fraction = 0.25
			default:
				if strings.HasSuffix(amount, "%") {
					payload.Fraction = parseAmount(strings.TrimSuffix(amount, "%")) / 100
				} else {
					payload.Quantity = parseAmount(amount)
				}
			}
			return &models.IntentResult{
				Intent:  models.IntentReduceHolding,
				Payload: &models.ActionPayload{Kind: models.ActionReduceHolding, Reduce: payload},
			}
		},
	},
	{
		intent: models.IntentReduceHolding,
		re: regexp.MustCompile(`(?i)\bsell\s+(?:my\s+)?([A-Za-z][A-Za-z.\-]*)\b`),
		extract: func(m []string, _ string) *models.IntentResult {
			return &models.IntentResult{
				Intent: models.IntentReduceHolding,
				Payload: &models.ActionPayload{
					Kind:   models.ActionReduceHolding,
					Reduce: &models.ReduceHoldingPayload{Symbol: normalizeSymbol(m[1]), Fraction: 1.0},
				},
			}
		},
	},
	{
		intent: models.IntentDeleteHolding,
		re: regexp.MustCompile(`(?i)\b(?:delete|remove|drop)\s+(?:my\s+)?([A-Za-z][A-Za-z.\-]*)(?:\s+(?:holding|position))?`),
		extract: func(m []string, _ string) *models.IntentResult {
			return &models.IntentResult{
				Intent: models.IntentDeleteHolding,
				Payload: &models.ActionPayload{
					Kind:   models.ActionDeleteHolding,
					Delete: &models.DeleteHoldingPayload{Symbol: normalizeSymbol(m[1])},
				},
			}
		},
	},
	{
		intent: models.IntentEditHolding,
		re: regexp.MustCompile(`(?i)\brename\s+([A-Za-z][A-Za-z.\-]*)\s+to\s+([A-Za-z0-9][A-Za-z0-9.&\- ]*)`),
		extract: func(m []string, _ string) *models.IntentResult {
			return resolveRename(normalizeSymbol(m[1]), strings.TrimSpace(m[2]))
		},
	},
	{
		intent: models.IntentEditHolding,
		re: regexp.MustCompile(`(?i)\b(?:change|set|update)\s+(?:my\s+)?([A-Za-z][A-Za-z.\-]*)(?:'s)?\s+(price|quantity)\s+to\s+\$?([\d,.]+)`),
		extract: func(m []string, _ string) *models.IntentResult {
			edit := &models.EditHoldingPayload{Symbol: normalizeSymbol(m[1])}
			val := parseAmount(m[3])
			if strings.EqualFold(m[2], "price") {
				edit.NewUnitPrice = &val
			} else {
				edit.NewQuantity = &val
			}
			return &models.IntentResult{
				Intent:  models.IntentEditHolding,
				Payload: &models.ActionPayload{Kind: models.ActionEditHolding, Edit: edit},
			}
		},
	},
	{
		intent: models.IntentIncreaseHolding,
		re: regexp.MustCompile(`(?i)\b(?:increase|top\s+up)\s+(?:my\s+)?([A-Za-z][A-Za-z.\-]*)\s+by\s+([\d,.]+)(?:\s+(?:shares?|units?))?(?:\s+at\s+\$?([\d,.]+))?`),
		extract: func(m []string, _ string) *models.IntentResult {
			return &models.IntentResult{
				Intent: models.IntentIncreaseHolding,
				Payload: &models.ActionPayload{
					Kind: models.ActionIncreaseHolding,
					Increase: &models.IncreaseHoldingPayload{
						Symbol:    normalizeSymbol(m[1]),
						Quantity:  parseAmount(m[2]),
						UnitPrice: parseAmount(m[3]),
					},
				},
			}
		},
	},
	{
		intent: models.IntentAddYearlyData,
		re: regexp.MustCompile(`(?i)\b(?:in|for)?\s*(\d{4})\b.*?\b(income|earned|expenses|spent|saved|savings|net\s+worth)\b`),
		extract: func(m []string, input string) *models.IntentResult {
			year, _ := strconv.Atoi(m[1])
			payload := &models.YearlyDataPayload{Year: year}
			extractYearlyAmounts(input, payload)
			return &models.IntentResult{
				Intent:  models.IntentAddYearlyData,
				Payload: &models.ActionPayload{Kind: models.ActionAddYearlyData, YearlyData: payload},
			}
		},
	},
	{
		intent: models.IntentPortfolioAnalysis,
		re: regexp.MustCompile(`(?i)\b(?:analy[sz]e|analysis|review|performance|how\s+am\s+i\s+doing)\b`),
		extract: func(_ []string, _ string) *models.IntentResult {
			return &models.IntentResult{Intent: models.IntentPortfolioAnalysis}
		},
	},
}

// recognizeConfirmation intercepts short yes/no/cancel/undo replies before
// any pattern or LLM work.
func recognizeConfirmation(input string) (models.Intent, bool) {
	trimmed := strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!"))
	switch trimmed {
	case "yes", "y", "yeah", "yep", "confirm", "ok", "okay", "sure", "do it", "go ahead":
		return models.IntentConfirmAction, true
	case "no", "n", "nope", "cancel", "stop", "never mind", "nevermind", "don't":
		return models.IntentCancelAction, true
	case "undo", "undo that", "revert", "undo last action":
		return models.IntentUndo, true
	}
	return models.IntentUnknown, false
}

// recognizePattern runs the tier 1 patterns. Returns nil when nothing
// matched so the caller can fall back to the LLM.
func recognizePattern(input string) *models.IntentResult {
	trimmed := strings.TrimSpace(input)
	for _, p := range intentPatterns {
		m := p.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		result := p.extract(m, trimmed)
		if result == nil {
			continue
		}
		result.Source = "pattern"
		if result.Confidence == 0 {
			result.Confidence = coverageConfidence(len(m[0]), len(trimmed))
		}
		return result
	}
	return nil
}

// coverageConfidence maps the fraction of the input consumed by the match to
// a confidence score.
func coverageConfidence(matched, total int) float64 {
	if total == 0 {
		return 0.6
	}
	coverage := float64(matched) / float64(total)
	switch {
	case coverage > 0.8:
		return 0.95
	case coverage > 0.6:
		return 0.85
	case coverage > 0.4:
		return 0.75
	default:
		return 0.6
	}
}

// resolveRename decides what a rename value applies to. Short ticker-shaped
// values rename the symbol, longer descriptive values the display name, and
// known custodian labels the location. When the value plausibly fits more
// than one of these, the engine asks instead of guessing.
func resolveRename(target, value string) *models.IntentResult {
	upper := strings.ToUpper(value)
	tickerShaped := len(value) <= 5 && value == upper && regexp.MustCompile(`^[A-Z]+$`).MatchString(value)
	descriptive := strings.Contains(value, " ") || len(value) > 8 || value != upper
	custodian := knownCustodians[upper]

	plausible := 0
	for _, ok := range []bool{tickerShaped, descriptive, custodian} {
		if ok {
			plausible++
		}
	}

	edit := &models.EditHoldingPayload{Symbol: target}
	switch {
	case plausible > 1:
		return &models.IntentResult{
			Intent:  models.IntentEditHolding,
			Payload: &models.ActionPayload{Kind: models.ActionEditHolding, Edit: edit},
			Message: fmt.Sprintf("What should %q apply to?", value),
			Options: []string{
				fmt.Sprintf("Rename symbol to %s", value),
				fmt.Sprintf("Rename company name to %s", value),
				fmt.Sprintf("Rename location to %s", value),
			},
		}
	case custodian:
		edit.NewLocation = value
	case tickerShaped:
		edit.NewSymbol = upper
	default:
		edit.NewName = value
	}
	return &models.IntentResult{
		Intent:  models.IntentEditHolding,
		Payload: &models.ActionPayload{Kind: models.ActionEditHolding, Edit: edit},
	}
}

// extractYearlyAmounts picks labeled amounts out of a yearly-data sentence.
func extractYearlyAmounts(input string, payload *models.YearlyDataPayload) {
	grab := func(pattern string) *float64 {
		re := regexp.MustCompile(pattern)
		if m := re.FindStringSubmatch(input); m != nil {
			v := parseAmount(m[1])
			return &v
		}
		return nil
	}
	payload.Income = grab(`(?i)(?:income|earned)(?:\s+(?:of|was|is))?\s+\$?([\d,.]+)`)
	payload.Expenses = grab(`(?i)(?:expenses|spent)(?:\s+(?:of|was|were|is))?\s+\$?([\d,.]+)`)
	payload.Savings = grab(`(?i)(?:saved|savings)(?:\s+(?:of|was|were|is))?\s+\$?([\d,.]+)`)
	payload.NetWorth = grab(`(?i)net\s+worth(?:\s+(?:of|was|is))?\s+\$?([\d,.]+)`)
}

// normalizeSymbol maps company names to tickers and uppercases the result.
func normalizeSymbol(raw string) string {
	token := strings.TrimSpace(raw)
	if ticker, ok := companyTickers[strings.ToLower(token)]; ok {
		return ticker
	}
	return strings.ToUpper(token)
}

func parseAmount(raw string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

package agent

import (
	"context"
	"strings"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// ContextProvider assembles the read-only snapshot that accompanies every
// message: a best-effort matched holding, the full holdings list, recent
// action outcomes, and learned patterns relevant to the input. It never
// mutates anything.
type ContextProvider struct {
	learning interfaces.LearningService
	logger   *common.Logger
}

const maxRecentActions = 5

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "of": true, "to": true,
	"in": true, "at": true, "for": true, "and": true, "or": true, "is": true,
	"add": true, "buy": true, "sell": true, "delete": true, "remove": true,
	"rename": true, "edit": true, "change": true, "update": true,
	"shares": true, "share": true, "units": true, "unit": true,
	"all": true, "half": true, "some": true, "please": true,
}

func NewContextProvider(learning interfaces.LearningService, logger *common.Logger) *ContextProvider {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}
	return &ContextProvider{learning: learning, logger: logger}
}

// BuildContext produces the snapshot for one message.
func (c *ContextProvider) BuildContext(ctx context.Context, userInput string, reqCtx *interfaces.RequestContext) *models.RichContext {
	rich := &models.RichContext{
		UserInput:       userInput,
		DisplayCurrency: models.CurrencySGD,
	}
	if reqCtx != nil {
		rich.Holdings = reqCtx.Holdings
		rich.YearlyData = reqCtx.YearlyData
		rich.Profile = reqCtx.Profile
		if reqCtx.DisplayCurrency != "" {
			rich.DisplayCurrency = reqCtx.DisplayCurrency
		}
	}
	rich.MatchedHolding = matchHoldingFromInput(userInput, rich.Holdings)

	if c.learning != nil {
		recent, err := c.learning.RecentActions(ctx, maxRecentActions)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to load recent actions for context")
		} else {
			for _, r := range recent {
				rich.RecentActions = append(rich.RecentActions, *r)
			}
		}
		patterns, err := c.learning.RelevantPatterns(ctx, userInput)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to load patterns for context")
		} else {
			for _, p := range patterns {
				rich.RelevantPatterns = append(rich.RelevantPatterns, *p)
			}
		}
	}
	return rich
}

// matchHoldingFromInput scans candidate tokens against the holdings in
// priority order: exact symbol, name substring, partial symbol, location
// substring. Rename inputs check location first since the argument of a
// rename is often a custodian label.
func matchHoldingFromInput(input string, holdings []models.Holding) *models.Holding {
	tokens := candidateTokens(input)
	if len(tokens) == 0 || len(holdings) == 0 {
		return nil
	}
	isRename := strings.Contains(strings.ToLower(input), "rename")

	type pass func(token string, h *models.Holding) bool
	exactSymbol := func(token string, h *models.Holding) bool {
		return strings.EqualFold(token, h.Symbol)
	}
	nameSubstring := func(token string, h *models.Holding) bool {
		return len(token) > 2 && strings.Contains(strings.ToLower(h.Name), strings.ToLower(token))
	}
	partialSymbol := func(token string, h *models.Holding) bool {
		return len(token) > 2 && strings.Contains(strings.ToUpper(h.Symbol), strings.ToUpper(token))
	}
	locationSubstring := func(token string, h *models.Holding) bool {
		return len(token) > 2 && strings.Contains(strings.ToLower(h.Location), strings.ToLower(token))
	}

	passes := []pass{exactSymbol, nameSubstring, partialSymbol, locationSubstring}
	if isRename {
		passes = []pass{exactSymbol, locationSubstring, nameSubstring, partialSymbol}
	}
	for _, p := range passes {
		for _, token := range tokens {
			for i := range holdings {
				if p(token, &holdings[i]) {
					return &holdings[i]
				}
			}
		}
	}
	return nil
}

// candidateTokens splits the input and drops stop words, numbers, and
// currency amounts so only plausible symbol/name fragments remain.
func candidateTokens(input string) []string {
	fields := strings.Fields(input)
	var tokens []string
	for _, f := range fields {
		token := strings.Trim(f, ".,!?$()\"'")
		if token == "" || stopWords[strings.ToLower(token)] {
			continue
		}
		if isNumeric(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func isNumeric(s string) bool {
	seen := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seen = true
		case r == '.' || r == ',' || r == '%':
		default:
			return false
		}
	}
	return seen
}

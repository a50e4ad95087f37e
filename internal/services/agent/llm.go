package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// Tier 2 intent recognition: when no pattern matches, the message and the
// context snapshot are sent to the language model, which must answer with a
// single JSON object. The reply is decoded strictly; if it cannot be parsed
// the engine returns an error action rather than guessing.

type llmReply struct {
	Action               string          `json:"action"`
	Intent               string          `json:"intent"`
	Entities             json.RawMessage `json:"entities"`
	Message              string          `json:"message"`
	Confidence           float64         `json:"confidence"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
	Suggestions          []string        `json:"suggestions"`
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// recognizeLLM builds the prompt, calls the model, and decodes the reply
// into an IntentResult. Any failure surfaces as an error-action result with
// zero confidence.
func recognizeLLM(ctx context.Context, client interfaces.LLMClient, rich *models.RichContext, logger *common.Logger) *models.IntentResult {
	if client == nil {
		return errorIntent("I could not understand that request.")
	}
	raw, err := client.GenerateContent(ctx, buildPrompt(rich))
	if err != nil {
		logger.Warn().Err(err).Msg("LLM call failed")
		return errorIntent("I could not reach the language model. Please try again.")
	}
	reply, err := parseLLMReply(raw)
	if err != nil {
		logger.Warn().Err(err).Str("raw", truncate(raw, 200)).Msg("LLM reply did not parse")
		return errorIntent("I could not make sense of that request. Try rephrasing it.")
	}
	return intentFromReply(reply)
}

func errorIntent(msg string) *models.IntentResult {
	return &models.IntentResult{
		Intent:     models.IntentUnknown,
		Confidence: 0,
		Source:     "llm",
		Message:    msg,
	}
}

// parseLLMReply attempts a direct decode first, then falls back to the first
// brace-delimited block with control characters stripped.
func parseLLMReply(raw string) (*llmReply, error) {
	var reply llmReply
	if err := json.Unmarshal([]byte(raw), &reply); err == nil && reply.Action != "" {
		return &reply, nil
	}
	block := jsonBlockRe.FindString(raw)
	if block == "" {
		return nil, fmt.Errorf("no JSON object found in reply")
	}
	cleaned := stripControlChars(block)
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, fmt.Errorf("parsing extracted JSON block: %w", err)
	}
	if reply.Action == "" {
		return nil, fmt.Errorf("reply JSON missing action field")
	}
	return &reply, nil
}

func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// intentFromReply maps the decoded reply onto a typed payload.
func intentFromReply(reply *llmReply) *models.IntentResult {
	result := &models.IntentResult{
		Intent:     models.Intent(reply.Intent),
		Confidence: reply.Confidence,
		Source:     "llm",
		Message:    reply.Message,
		Options:    reply.Suggestions,
	}
	if reply.Action == "error" {
		result.Confidence = 0
		return result
	}

	payload, err := payloadFromEntities(result.Intent, reply.Entities)
	if err != nil {
		result.Intent = models.IntentUnknown
		result.Confidence = 0
		result.Message = "I could not make sense of that request. Try rephrasing it."
		return result
	}
	result.Payload = payload
	return result
}

// payloadFromEntities decodes the entity object into the variant matching
// the intent. Read-only and conversational intents carry no payload.
func payloadFromEntities(intent models.Intent, entities json.RawMessage) (*models.ActionPayload, error) {
	if len(entities) == 0 || string(entities) == "null" {
		if intentNeedsPayload(intent) {
			return nil, fmt.Errorf("intent %q requires entities", intent)
		}
		return nil, nil
	}
	switch intent {
	case models.IntentAddHolding:
		var p models.AddHoldingPayload
		if err := json.Unmarshal(entities, &p); err != nil {
			return nil, err
		}
		if p.TotalCost == 0 {
			p.TotalCost = models.Round2(p.Quantity * p.UnitPrice)
		}
		p.Symbol = normalizeSymbol(p.Symbol)
		return &models.ActionPayload{Kind: models.ActionAddHolding, Add: &p}, nil
	case models.IntentEditHolding:
		var p models.EditHoldingPayload
		if err := json.Unmarshal(entities, &p); err != nil {
			return nil, err
		}
		return &models.ActionPayload{Kind: models.ActionEditHolding, Edit: &p}, nil
	case models.IntentDeleteHolding:
		var p models.DeleteHoldingPayload
		if err := json.Unmarshal(entities, &p); err != nil {
			return nil, err
		}
		return &models.ActionPayload{Kind: models.ActionDeleteHolding, Delete: &p}, nil
	case models.IntentReduceHolding:
		var p models.ReduceHoldingPayload
		if err := json.Unmarshal(entities, &p); err != nil {
			return nil, err
		}
		return &models.ActionPayload{Kind: models.ActionReduceHolding, Reduce: &p}, nil
	case models.IntentIncreaseHolding:
		var p models.IncreaseHoldingPayload
		if err := json.Unmarshal(entities, &p); err != nil {
			return nil, err
		}
		return &models.ActionPayload{Kind: models.ActionIncreaseHolding, Increase: &p}, nil
	case models.IntentAddYearlyData:
		var p models.YearlyDataPayload
		if err := json.Unmarshal(entities, &p); err != nil {
			return nil, err
		}
		return &models.ActionPayload{Kind: models.ActionAddYearlyData, YearlyData: &p}, nil
	}
	return nil, nil
}

func intentNeedsPayload(intent models.Intent) bool {
	switch intent {
	case models.IntentAddHolding, models.IntentEditHolding, models.IntentDeleteHolding,
		models.IntentReduceHolding, models.IntentIncreaseHolding, models.IntentAddYearlyData:
		return true
	}
	return false
}

// buildPrompt renders the context snapshot into the instruction the model
// answers against.
func buildPrompt(rich *models.RichContext) string {
	var b strings.Builder

	b.WriteString("You are a portfolio assistant. Interpret the user's instruction and answer with a single JSON object, nothing else.\n\n")

	b.WriteString("Current holdings:\n")
	if len(rich.Holdings) == 0 {
		b.WriteString("  (none)\n")
	}
	for i := range rich.Holdings {
		h := &rich.Holdings[i]
		fmt.Fprintf(&b, "  %s (%s): %.0f units at %.2f %s, category %s, held at %s\n",
			h.Symbol, h.Name, h.Quantity, h.UnitPrice, h.EntryCurrency, h.Category, h.Location)
	}
	if rich.MatchedHolding != nil {
		fmt.Fprintf(&b, "\nThe instruction most likely refers to: %s (%s)\n",
			rich.MatchedHolding.Symbol, rich.MatchedHolding.Name)
	}

	if len(rich.RecentActions) > 0 {
		b.WriteString("\nRecent actions:\n")
		for _, a := range rich.RecentActions {
			outcome := "failed"
			if a.Success {
				outcome = "succeeded"
			}
			fmt.Fprintf(&b, "  %q -> %s (%s)\n", a.UserInput, a.ActionTaken, outcome)
		}
	}
	if len(rich.RelevantPatterns) > 0 {
		b.WriteString("\nInstruction templates this user has used successfully:\n")
		for _, p := range rich.RelevantPatterns {
			fmt.Fprintf(&b, "  %s (success rate %.0f%%)\n", p.Template, p.SuccessRate*100)
		}
	}

	b.WriteString(`
Supported intents: add_holding, edit_holding, delete_holding, reduce_holding, increase_holding, add_yearly_data, portfolio_analysis.

Respond with JSON of this exact shape:
{"action": "confirm|clarify|execute|error", "intent": "<intent>", "entities": {...}, "message": "<short reply to the user>", "confidence": 0.0, "requires_confirmation": true, "suggestions": []}

Entity fields by intent:
  add_holding: symbol, name, category, location, quantity, unit_price, total_cost, currency
  edit_holding: symbol, new_symbol, new_name, new_location, new_category, new_quantity, new_unit_price
  delete_holding: symbol
  reduce_holding: symbol, quantity, fraction
  increase_holding: symbol, quantity, unit_price, currency
  add_yearly_data: year, income, expenses, savings, net_worth, currency

If the instruction is not about the portfolio, use action "error" with an explanatory message. Never invent holdings the user does not have.

User instruction: `)
	b.WriteString(rich.UserInput)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

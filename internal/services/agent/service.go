package agent

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// Service orchestrates the message lifecycle: confirmation intercept, fast
// path, context assembly, intent recognition, holding matching, validation,
// and hand-off to the executor once the user confirms. It is stateless per
// request apart from the pending action held for each session.
type Service struct {
	llm      interfaces.LLMClient
	matcher  interfaces.MatcherService
	executor interfaces.ExecutorService
	learning interfaces.LearningService
	context  *ContextProvider
	validate *Validator
	logger   *common.Logger

	mu      sync.Mutex
	pending map[string]*pendingAction
}

type pendingAction struct {
	payload   *models.ActionPayload
	userInput string
}

func NewService(llm interfaces.LLMClient, matcher interfaces.MatcherService, executor interfaces.ExecutorService, learning interfaces.LearningService, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}
	return &Service{
		llm:      llm,
		matcher:  matcher,
		executor: executor,
		learning: learning,
		context:  NewContextProvider(learning, logger),
		validate: NewValidator(),
		logger:   logger,
		pending:  make(map[string]*pendingAction),
	}
}

var _ interfaces.AgentService = (*Service)(nil)

// ProcessMessage handles one free-text instruction end to end, up to the
// point where a mutation needs the user's confirmation.
func (s *Service) ProcessMessage(ctx context.Context, message string, reqCtx *interfaces.RequestContext) *models.AgentResponse {
	message = strings.TrimSpace(message)
	if message == "" {
		return &models.AgentResponse{
			Action:  models.AgentActionClarify,
			Message: "Tell me what you'd like to do with your portfolio.",
		}
	}
	session := sessionKey(reqCtx)

	// Short confirmation replies resolve the pending action before any
	// recognition work.
	if intent, ok := recognizeConfirmation(message); ok {
		switch intent {
		case models.IntentConfirmAction:
			return s.confirmPending(ctx, session)
		case models.IntentCancelAction:
			s.clearPending(session)
			return &models.AgentResponse{
				Action:     models.AgentActionAnswer,
				Message:    "Okay, cancelled. Nothing was changed.",
				Confidence: 1.0,
			}
		case models.IntentUndo:
			result := s.Undo(ctx)
			return responseFromExec(result)
		}
	}

	// Read-only questions answer straight from holdings.
	var holdings []models.Holding
	displayCurrency := models.CurrencySGD
	if reqCtx != nil {
		holdings = reqCtx.Holdings
		if reqCtx.DisplayCurrency != "" {
			displayCurrency = reqCtx.DisplayCurrency
		}
	}
	if resp := tryFastPath(message, holdings, displayCurrency); resp != nil {
		return resp
	}

	rich := s.context.BuildContext(ctx, message, reqCtx)

	intent := recognizePattern(message)
	if intent == nil {
		intent = recognizeLLM(ctx, s.llm, rich, s.logger)
	}
	s.logger.Debug().
		Str("intent", string(intent.Intent)).
		Str("source", intent.Source).
		Float64("confidence", intent.Confidence).
		Msg("Intent resolved")

	if intent.Confidence == 0 && intent.Payload == nil && len(intent.Options) == 0 {
		return &models.AgentResponse{
			Action:  models.AgentActionError,
			Message: orDefault(intent.Message, "I could not understand that request."),
		}
	}
	if len(intent.Options) > 0 {
		return &models.AgentResponse{
			Action:      models.AgentActionClarify,
			Message:     orDefault(intent.Message, "Which one did you mean?"),
			Confidence:  intent.Confidence,
			Suggestions: intent.Options,
		}
	}
	if intent.Intent == models.IntentPortfolioAnalysis {
		return answer(portfolioSummary(rich.Holdings, rich.DisplayCurrency))
	}
	if intent.Payload == nil {
		return &models.AgentResponse{
			Action:     models.AgentActionAnswer,
			Message:    orDefault(intent.Message, "Nothing to do."),
			Confidence: intent.Confidence,
		}
	}

	return s.prepareMutation(ctx, session, message, intent, rich)
}

// prepareMutation resolves the target holding, validates the payload, and
// parks it awaiting confirmation.
func (s *Service) prepareMutation(ctx context.Context, session, message string, intent *models.IntentResult, rich *models.RichContext) *models.AgentResponse {
	payload := intent.Payload

	if symbol := payload.Symbol(); symbol != "" && payload.Kind != models.ActionAddYearlyData {
		matches, err := s.matcher.FindMatches(ctx, symbol, rich.Holdings)
		if err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("Holding match failed")
			return &models.AgentResponse{
				Action:  models.AgentActionError,
				Message: "Something went wrong while matching your holdings. Please try again.",
			}
		}
		if resp := s.applyMatches(payload, matches, rich); resp != nil {
			return resp
		}
	}

	validation := s.validate.Validate(payload, rich.Holdings)
	if !validation.IsValid {
		return &models.AgentResponse{
			Action:      models.AgentActionClarify,
			Message:     "I need a bit more before I can do that: " + strings.Join(validation.Errors, "; "),
			Suggestions: validation.Suggestions,
		}
	}

	s.setPending(session, &pendingAction{payload: payload, userInput: message})

	confidence := math.Min(intent.Confidence, validation.Confidence)
	resp := &models.AgentResponse{
		Action:               models.AgentActionConfirm,
		Data:                 payload,
		Message:              describeAction(payload),
		Confidence:           confidence,
		Suggestions:          validation.Suggestions,
		RequiresConfirmation: true,
	}
	if len(validation.Warnings) > 0 {
		resp.Message += " Note: " + strings.Join(validation.Warnings, "; ") + "."
	}
	return resp
}

// applyMatches folds the matcher outcome into the payload. Returns a
// response when the flow must stop (clarify or missing holding), nil to
// continue.
func (s *Service) applyMatches(payload *models.ActionPayload, matches *models.HoldingMatches, rich *models.RichContext) *models.AgentResponse {
	switch payload.Kind {
	case models.ActionAddHolding:
		switch matches.SuggestedAction {
		case models.SuggestAddToExisting:
			payload.Kind = models.ActionAddToExisting
			payload.Add.Symbol = matches.BestMatch.Symbol
			payload.Add.HoldingID = matches.BestMatch.HoldingID
		case models.SuggestClarify:
			return clarifyMatches(matches)
		case models.SuggestCreateNew:
			if matches.Lookup != nil {
				if payload.Add.Name == "" {
					payload.Add.Name = matches.Lookup.Name
				}
				if payload.Add.Currency == "" && models.IsSupportedCurrency(matches.Lookup.Currency) {
					payload.Add.Currency = matches.Lookup.Currency
				}
			}
		}
	case models.ActionEditHolding, models.ActionDeleteHolding, models.ActionReduceHolding, models.ActionIncreaseHolding:
		// Mutations of an existing holding need a real target.
		switch matches.SuggestedAction {
		case models.SuggestAddToExisting:
			s.bindTarget(payload, matches.BestMatch, rich)
		case models.SuggestClarify:
			return clarifyMatches(matches)
		default:
			return &models.AgentResponse{
				Action:  models.AgentActionClarify,
				Message: fmt.Sprintf("You don't appear to hold %s. Check the symbol and try again.", payload.Symbol()),
			}
		}
	}
	return nil
}

// bindTarget writes the matched holding's identity into the payload and
// resolves fractional reductions into concrete quantities.
func (s *Service) bindTarget(payload *models.ActionPayload, match *models.MatchResult, rich *models.RichContext) {
	var held *models.Holding
	for i := range rich.Holdings {
		if rich.Holdings[i].ID == match.HoldingID || strings.EqualFold(rich.Holdings[i].Symbol, match.Symbol) {
			held = &rich.Holdings[i]
			break
		}
	}
	switch payload.Kind {
	case models.ActionEditHolding:
		payload.Edit.Symbol = match.Symbol
		payload.Edit.HoldingID = match.HoldingID
	case models.ActionDeleteHolding:
		payload.Delete.Symbol = match.Symbol
		payload.Delete.HoldingID = match.HoldingID
	case models.ActionReduceHolding:
		payload.Reduce.Symbol = match.Symbol
		payload.Reduce.HoldingID = match.HoldingID
		if payload.Reduce.Quantity == 0 && payload.Reduce.Fraction > 0 && held != nil {
			payload.Reduce.Quantity = models.Round2(held.Quantity * payload.Reduce.Fraction)
		}
	case models.ActionIncreaseHolding:
		payload.Increase.Symbol = match.Symbol
		payload.Increase.HoldingID = match.HoldingID
	}
}

func clarifyMatches(matches *models.HoldingMatches) *models.AgentResponse {
	suggestions := make([]string, 0, len(matches.Matches))
	for _, m := range matches.Matches {
		suggestions = append(suggestions, fmt.Sprintf("%s (%s)", m.Symbol, m.Name))
	}
	return &models.AgentResponse{
		Action:      models.AgentActionClarify,
		Message:     "Which holding did you mean?",
		Suggestions: suggestions,
	}
}

// confirmPending executes the action parked for the session, if any.
func (s *Service) confirmPending(ctx context.Context, session string) *models.AgentResponse {
	s.mu.Lock()
	pend := s.pending[session]
	delete(s.pending, session)
	s.mu.Unlock()

	if pend == nil {
		return &models.AgentResponse{
			Action:  models.AgentActionClarify,
			Message: "There's nothing waiting for confirmation.",
		}
	}
	result := s.ExecuteAction(ctx, pend.payload, pend.userInput)
	return responseFromExec(result)
}

// ExecuteAction applies a resolved payload and records the outcome for
// learning. Pattern storage is advisory; its failure never fails the action.
func (s *Service) ExecuteAction(ctx context.Context, payload *models.ActionPayload, userInput string) *models.ExecResult {
	result := s.executor.Execute(ctx, payload, userInput)

	if s.learning != nil && userInput != "" {
		template := generalizeTemplate(userInput, payload)
		if err := s.learning.StorePattern(ctx, template, userInput, result.Success); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to store pattern")
		}
	}
	return result
}

// Undo reverses the most recent recorded action.
func (s *Service) Undo(ctx context.Context) *models.ExecResult {
	recent, err := s.learning.RecentActions(ctx, 1)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load last action for undo")
		return &models.ExecResult{Message: "Could not look up the last action."}
	}
	if len(recent) == 0 {
		return &models.ExecResult{Message: "There is nothing to undo."}
	}
	return s.executor.Undo(ctx, recent[0])
}

func (s *Service) setPending(session string, pend *pendingAction) {
	s.mu.Lock()
	s.pending[session] = pend
	s.mu.Unlock()
}

func (s *Service) clearPending(session string) {
	s.mu.Lock()
	delete(s.pending, session)
	s.mu.Unlock()
}

func sessionKey(reqCtx *interfaces.RequestContext) string {
	if reqCtx != nil && reqCtx.SessionID != "" {
		return reqCtx.SessionID
	}
	return "default"
}

func responseFromExec(result *models.ExecResult) *models.AgentResponse {
	action := models.AgentActionExecute
	confidence := 1.0
	if !result.Success {
		action = models.AgentActionError
		confidence = 0
	}
	return &models.AgentResponse{
		Action:     action,
		Data:       result.Data,
		Message:    result.Message,
		Confidence: confidence,
	}
}

func describeAction(payload *models.ActionPayload) string {
	switch payload.Kind {
	case models.ActionAddHolding:
		return fmt.Sprintf("Add %.0f units of %s at %.2f. Confirm?", payload.Add.Quantity, payload.Add.Symbol, payload.Add.UnitPrice)
	case models.ActionAddToExisting:
		return fmt.Sprintf("Add %.0f units to your existing %s position at %.2f. Confirm?", payload.Add.Quantity, payload.Add.Symbol, payload.Add.UnitPrice)
	case models.ActionEditHolding:
		return fmt.Sprintf("Update your %s holding. Confirm?", payload.Edit.Symbol)
	case models.ActionDeleteHolding:
		return fmt.Sprintf("Delete your %s holding entirely. Confirm?", payload.Delete.Symbol)
	case models.ActionReduceHolding:
		return fmt.Sprintf("Reduce your %s holding by %.0f units. Confirm?", payload.Reduce.Symbol, payload.Reduce.Quantity)
	case models.ActionIncreaseHolding:
		return fmt.Sprintf("Increase your %s holding by %.0f units at %.2f. Confirm?", payload.Increase.Symbol, payload.Increase.Quantity, payload.Increase.UnitPrice)
	case models.ActionAddYearlyData:
		return fmt.Sprintf("Record financial data for %d. Confirm?", payload.YearlyData.Year)
	}
	return "Apply this change?"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

var numberRe = regexp.MustCompile(`[\d][\d,.]*`)

// generalizeTemplate turns a raw instruction into a reusable pattern by
// substituting the acted-on symbol and any numbers with placeholders.
func generalizeTemplate(input string, payload *models.ActionPayload) string {
	template := numberRe.ReplaceAllString(input, "{amount}")
	if symbol := payload.Symbol(); symbol != "" {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(symbol) + `\b`)
		template = re.ReplaceAllString(template, "{symbol}")
	}
	return strings.ToLower(template)
}

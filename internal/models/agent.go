package models

// ActionKind enumerates every mutation the agent can perform. Using a closed
// enum (rather than free strings) means the validator and executor can
// switch exhaustively.
type ActionKind string

const (
	ActionAddHolding      ActionKind = "add_holding"
	ActionAddToExisting   ActionKind = "add_to_existing"
	ActionEditHolding     ActionKind = "edit_holding"
	ActionDeleteHolding   ActionKind = "delete_holding"
	ActionReduceHolding   ActionKind = "reduce_holding"
	ActionIncreaseHolding ActionKind = "increase_holding"
	ActionAddYearlyData   ActionKind = "add_yearly_data"
)

// MutatingKinds lists every ActionKind the executor accepts.
var MutatingKinds = []ActionKind{
	ActionAddHolding,
	ActionAddToExisting,
	ActionEditHolding,
	ActionDeleteHolding,
	ActionReduceHolding,
	ActionIncreaseHolding,
	ActionAddYearlyData,
}

// IsDestructive reports whether the kind alters or removes existing capital
// and therefore always requires explicit confirmation.
func (k ActionKind) IsDestructive() bool {
	switch k {
	case ActionDeleteHolding, ActionReduceHolding, ActionEditHolding:
		return true
	}
	return false
}

// Intent identifies what the user asked for, before it is resolved into a
// concrete action. Includes read-only and conversational intents that never
// reach the executor.
type Intent string

const (
	IntentAddHolding        Intent = "add_holding"
	IntentEditHolding       Intent = "edit_holding"
	IntentDeleteHolding     Intent = "delete_holding"
	IntentReduceHolding     Intent = "reduce_holding"
	IntentIncreaseHolding   Intent = "increase_holding"
	IntentAddYearlyData     Intent = "add_yearly_data"
	IntentPortfolioAnalysis Intent = "portfolio_analysis"
	IntentConfirmAction     Intent = "confirm_action"
	IntentCancelAction      Intent = "cancel_action"
	IntentUndo              Intent = "undo"
	IntentUnknown           Intent = "unknown"
)

// AgentAction is the response-level action the caller should take.
type AgentAction string

const (
	AgentActionConfirm AgentAction = "confirm"
	AgentActionClarify AgentAction = "clarify"
	AgentActionExecute AgentAction = "execute"
	AgentActionAnswer  AgentAction = "answer"
	AgentActionError   AgentAction = "error"
)

// AgentResponse is the single produced interface to the surrounding
// application.
type AgentResponse struct {
	Action               AgentAction `json:"action"`
	Data                 any         `json:"data,omitempty"`
	Message              string      `json:"message"`
	Confidence           float64     `json:"confidence"`
	Suggestions          []string    `json:"suggestions,omitempty"`
	RequiresConfirmation bool        `json:"requires_confirmation,omitempty"`
}

// AddHoldingPayload carries the fields for creating a brand new holding or
// adding a lot to an existing one.
type AddHoldingPayload struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name,omitempty"`
	Category  string  `json:"category,omitempty"`
	Location  string  `json:"location,omitempty"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	TotalCost float64 `json:"total_cost,omitempty"` // quantity × unit price when absent
	Currency  string  `json:"currency,omitempty"`
	HoldingID string  `json:"holding_id,omitempty"` // set when targeting an existing record
}

// EditHoldingPayload carries field edits. Zero values mean "leave unchanged";
// RenameTarget disambiguates what a bare rename value applies to.
type EditHoldingPayload struct {
	Symbol       string  `json:"symbol"`
	HoldingID    string  `json:"holding_id,omitempty"`
	NewSymbol    string  `json:"new_symbol,omitempty"`
	NewName      string  `json:"new_name,omitempty"`
	NewLocation  string  `json:"new_location,omitempty"`
	NewCategory  string  `json:"new_category,omitempty"`
	NewQuantity  *float64 `json:"new_quantity,omitempty"`
	NewUnitPrice *float64 `json:"new_unit_price,omitempty"`
}

// DeleteHoldingPayload identifies the holding to remove.
type DeleteHoldingPayload struct {
	Symbol    string `json:"symbol"`
	HoldingID string `json:"holding_id,omitempty"`
}

// ReduceHoldingPayload carries a sell/reduction. Fraction is set for inputs
// like "sell half"; Quantity is resolved before execution.
type ReduceHoldingPayload struct {
	Symbol    string  `json:"symbol"`
	HoldingID string  `json:"holding_id,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	Fraction  float64 `json:"fraction,omitempty"` // 0 < f <= 1
	UnitPrice float64 `json:"unit_price,omitempty"`
}

// IncreaseHoldingPayload targets an existing holding by id for a
// weighted-average increase.
type IncreaseHoldingPayload struct {
	HoldingID string  `json:"holding_id"`
	Symbol    string  `json:"symbol,omitempty"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Currency  string  `json:"currency,omitempty"`
}

// YearlyDataPayload carries one year of financial history.
type YearlyDataPayload struct {
	Year     int      `json:"year"`
	Income   *float64 `json:"income,omitempty"`
	Expenses *float64 `json:"expenses,omitempty"`
	Savings  *float64 `json:"savings,omitempty"`
	NetWorth *float64 `json:"net_worth,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// ActionPayload is the tagged union passed from intent recognition through
// validation to execution. Exactly one variant matching Kind is non-nil.
type ActionPayload struct {
	Kind       ActionKind              `json:"kind"`
	Add        *AddHoldingPayload      `json:"add,omitempty"`
	Edit       *EditHoldingPayload     `json:"edit,omitempty"`
	Delete     *DeleteHoldingPayload   `json:"delete,omitempty"`
	Reduce     *ReduceHoldingPayload   `json:"reduce,omitempty"`
	Increase   *IncreaseHoldingPayload `json:"increase,omitempty"`
	YearlyData *YearlyDataPayload      `json:"yearly_data,omitempty"`
}

// Symbol returns the symbol the payload targets, if any.
func (p *ActionPayload) Symbol() string {
	switch p.Kind {
	case ActionAddHolding, ActionAddToExisting:
		if p.Add != nil {
			return p.Add.Symbol
		}
	case ActionEditHolding:
		if p.Edit != nil {
			return p.Edit.Symbol
		}
	case ActionDeleteHolding:
		if p.Delete != nil {
			return p.Delete.Symbol
		}
	case ActionReduceHolding:
		if p.Reduce != nil {
			return p.Reduce.Symbol
		}
	case ActionIncreaseHolding:
		if p.Increase != nil {
			return p.Increase.Symbol
		}
	}
	return ""
}

// IntentResult is the output of the intent recognition engine.
type IntentResult struct {
	Intent     Intent         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Payload    *ActionPayload `json:"payload,omitempty"`
	Source     string         `json:"source"` // "pattern" or "llm"
	Message    string         `json:"message,omitempty"`
	// Clarify options when the engine refuses to guess (e.g. rename target).
	Options []string `json:"options,omitempty"`
}

// MatchResult is one fuzzy-match candidate against existing holdings.
type MatchResult struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	HoldingID  string  `json:"holding_id,omitempty"`
}

// SuggestedAction values produced by the holding matcher.
const (
	SuggestAddToExisting = "add_to_existing"
	SuggestCreateNew     = "create_new"
	SuggestClarify       = "clarify"
)

// HoldingMatches is the full matcher output for one symbol.
type HoldingMatches struct {
	SuggestedAction string        `json:"suggested_action"`
	BestMatch       *MatchResult  `json:"best_match,omitempty"`
	Matches         []MatchResult `json:"matches,omitempty"`
	Lookup          *SymbolQuote  `json:"lookup,omitempty"` // external metadata for create_new
}

// SymbolQuote is what the external symbol-lookup collaborator returns.
type SymbolQuote struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Exchange   string  `json:"exchange"`
	Currency   string  `json:"currency"`
	Confidence float64 `json:"confidence"`
}

// ValidationResult reports field-level and cross-field validation findings.
type ValidationResult struct {
	IsValid     bool     `json:"is_valid"`
	Confidence  float64  `json:"confidence"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ExecResult is the outcome of executing or undoing one action.
type ExecResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Data         any    `json:"data,omitempty"`
	OriginalData any    `json:"original_data,omitempty"`
}

// WeightedAverageResult is the cost-basis engine output.
type WeightedAverageResult struct {
	NewQuantity      float64 `json:"new_quantity"`
	NewAvgCostBasis  float64 `json:"new_avg_cost_basis"`
	NewTotalInvested float64 `json:"new_total_invested"`
	IsNewHolding     bool    `json:"is_new_holding"`
}

// RichContext is the read-only snapshot assembled for every message.
type RichContext struct {
	UserInput        string            `json:"user_input"`
	MatchedHolding   *Holding          `json:"matched_holding,omitempty"`
	Holdings         []Holding         `json:"holdings"`
	YearlyData       []YearlyRecord    `json:"yearly_data,omitempty"`
	Profile          *FinancialProfile `json:"profile,omitempty"`
	RecentActions    []ActionHistory   `json:"recent_actions,omitempty"`
	RelevantPatterns []UserPattern     `json:"relevant_patterns,omitempty"`
	DisplayCurrency  string            `json:"display_currency"`
}

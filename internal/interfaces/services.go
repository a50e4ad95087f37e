package interfaces

import (
	"context"

	"github.com/praveensg/folioagent/internal/models"
)

// AgentService is the produced interface to the surrounding application:
// one free-text message in, one structured response out.
type AgentService interface {
	ProcessMessage(ctx context.Context, message string, reqCtx *RequestContext) *models.AgentResponse
	ExecuteAction(ctx context.Context, payload *models.ActionPayload, userInput string) *models.ExecResult
	Undo(ctx context.Context) *models.ExecResult
}

// RequestContext is the caller-supplied state accompanying each message.
type RequestContext struct {
	SessionID       string
	Holdings        []models.Holding
	YearlyData      []models.YearlyRecord
	Profile         *models.FinancialProfile
	DisplayCurrency string
}

// ExecutorService applies resolved actions against storage with
// execute/undo semantics.
type ExecutorService interface {
	Execute(ctx context.Context, payload *models.ActionPayload, userInput string) *models.ExecResult
	Undo(ctx context.Context, last *models.ActionHistory) *models.ExecResult
}

// CostBasisService computes currency-aware weighted-average cost basis.
// Must never hard-fail a user-facing add: storage or rate failures degrade
// to "treat as new holding".
type CostBasisService interface {
	CalculateWeightedAverage(ctx context.Context, symbol string, addedQty, addedUnitPrice, addedTotalCost float64, userCurrency string) (*models.WeightedAverageResult, error)
}

// LearningService records user-input→action outcomes and serves relevant
// patterns. Advisory only: its output nudges LLM prompting and never gates
// an action.
type LearningService interface {
	StorePattern(ctx context.Context, template, example string, success bool) error
	RelevantPatterns(ctx context.Context, input string) ([]*models.UserPattern, error)
	RecordAction(ctx context.Context, rec *models.ActionHistory) error
	RecentActions(ctx context.Context, limit int) ([]*models.ActionHistory, error)
}

// MatcherService fuzzy-matches a free-text symbol against holdings.
type MatcherService interface {
	FindMatches(ctx context.Context, symbol string, holdings []models.Holding) (*models.HoldingMatches, error)
}

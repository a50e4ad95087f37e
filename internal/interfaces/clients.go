package interfaces

import (
	"context"

	"github.com/praveensg/folioagent/internal/models"
)

// LLMClient is the external text-completion service. The agent treats it as
// a black box: prompt in, raw text out. Timeouts and retries belong to the
// caller; any failure here becomes an error action.
type LLMClient interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// RateClient fetches the six directed SGD/USD/INR exchange rates.
type RateClient interface {
	GetRates(ctx context.Context) (*models.ExchangeRates, error)
}

// LookupClient validates a free-text symbol against an external market-data
// provider. A nil quote with nil error means "no match" — never an error.
type LookupClient interface {
	LookupSymbol(ctx context.Context, symbol string) (*models.SymbolQuote, error)
}

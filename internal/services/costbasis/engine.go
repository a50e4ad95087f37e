// Package costbasis computes currency-aware weighted-average cost basis
package costbasis

import (
	"context"
	"math"
	"strings"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
	"github.com/praveensg/folioagent/internal/services/currency"
)

// Compile-time interface check
var _ interfaces.CostBasisService = (*Service)(nil)

// Service implements CostBasisService. It degrades rather than fails: a
// rate-provider outage falls back to the fixed default table, and a storage
// failure is treated as "no existing holding".
type Service struct {
	storage interfaces.StorageManager
	rates   interfaces.RateClient
	logger  *common.Logger
}

// NewService creates a new cost basis service. rates may be nil, in which
// case the default table is always used.
func NewService(storage interfaces.StorageManager, rates interfaces.RateClient, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		rates:   rates,
		logger:  logger,
	}
}

// fetchRates returns live rates or the fixed fallback table.
func (s *Service) fetchRates(ctx context.Context) *models.ExchangeRates {
	if s.rates == nil {
		return models.DefaultExchangeRates()
	}
	rates, err := s.rates.GetRates(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rate fetch failed, using default table")
		return models.DefaultExchangeRates()
	}
	return rates
}

// CalculateWeightedAverage combines an added lot with the current holding
// state for symbol. When multiple holdings carry the same symbol, the one
// with the largest USD valuation is the authoritative prior state.
func (s *Service) CalculateWeightedAverage(ctx context.Context, symbol string, addedQty, addedUnitPrice, addedTotalCost float64, userCurrency string) (*models.WeightedAverageResult, error) {
	userCurrency = strings.ToUpper(userCurrency)
	if addedTotalCost == 0 {
		addedTotalCost = models.Round2(addedQty * addedUnitPrice)
	}

	asNew := &models.WeightedAverageResult{
		NewQuantity:      math.Round(addedQty),
		NewAvgCostBasis:  models.Round2(addedUnitPrice),
		NewTotalInvested: models.Round2(addedTotalCost),
		IsNewHolding:     true,
	}

	rates := s.fetchRates(ctx)

	existing, err := s.storage.HoldingStore().GetBySymbol(ctx, symbol)
	if err != nil {
		// This path must never hard-fail a user-facing add.
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Holding fetch failed, treating as new holding")
		return asNew, nil
	}
	prior := selectPrior(existing)
	if prior == nil {
		return asNew, nil
	}

	// A zero-quantity or zero-price prior contributes nothing.
	if prior.Quantity <= 0 || prior.UnitPrice <= 0 {
		return asNew, nil
	}

	existingPrice := currency.Convert(prior.UnitPrice, prior.EntryCurrency, userCurrency, rates)

	newQty := prior.Quantity + addedQty
	newTotal := models.Round2(prior.Quantity*existingPrice + addedTotalCost)
	newAvg := models.Round2(newTotal / newQty)

	return &models.WeightedAverageResult{
		NewQuantity:      math.Round(newQty),
		NewAvgCostBasis:  newAvg,
		NewTotalInvested: newTotal,
		IsNewHolding:     false,
	}, nil
}

// selectPrior picks the holding with the largest USD valuation. Documented
// tie-break: highest valuation wins, not most recent lot.
func selectPrior(holdings []*models.Holding) *models.Holding {
	var best *models.Holding
	for _, h := range holdings {
		if best == nil || h.ValueUSD > best.ValueUSD {
			best = h
		}
	}
	return best
}

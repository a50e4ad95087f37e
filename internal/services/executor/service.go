// Package executor applies resolved agent actions against storage with
// execute/undo semantics. Every mutation snapshots the prior record state
// into its action history entry before writing, so undo can reverse exactly
// one action.
package executor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
	"github.com/praveensg/folioagent/internal/services/currency"
)

type handler func(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult

// Service executes and undoes mutations. Dispatch runs through a handler
// table keyed by ActionKind so an unhandled kind fails loudly instead of
// falling through a string switch.
type Service struct {
	storage   interfaces.StorageManager
	costbasis interfaces.CostBasisService
	rates     interfaces.RateClient
	logger    *common.Logger

	handlers map[models.ActionKind]handler
	now      func() time.Time
	newID    func() string
}

func NewService(storage interfaces.StorageManager, costbasis interfaces.CostBasisService, rates interfaces.RateClient, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}
	s := &Service{
		storage:   storage,
		costbasis: costbasis,
		rates:     rates,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	s.handlers = map[models.ActionKind]handler{
		models.ActionAddHolding:      s.executeAdd,
		models.ActionAddToExisting:   s.executeAddToExisting,
		models.ActionEditHolding:     s.executeEdit,
		models.ActionDeleteHolding:   s.executeDelete,
		models.ActionReduceHolding:   s.executeReduce,
		models.ActionIncreaseHolding: s.executeIncrease,
		models.ActionAddYearlyData:   s.executeYearly,
	}
	return s
}

var _ interfaces.ExecutorService = (*Service)(nil)

// Execute applies one resolved action, appends the history record with its
// undo snapshot, and reports the outcome. Failures come back as unsuccessful
// results with a human-readable message, never as a panic or raw error.
func (s *Service) Execute(ctx context.Context, payload *models.ActionPayload, userInput string) *models.ExecResult {
	if payload == nil {
		return failed("No action to execute.")
	}
	h, ok := s.handlers[payload.Kind]
	if !ok {
		return failed(fmt.Sprintf("Action %q is not supported.", payload.Kind))
	}

	snap := &models.ActionSnapshot{}
	result := h(ctx, payload, snap)
	if snap.Holding != nil {
		result.OriginalData = snap.Holding
	}

	rec := &models.ActionHistory{
		ID:          s.newID(),
		UserInput:   userInput,
		ActionTaken: payload.Kind,
		Success:     result.Success,
		Timestamp:   s.now(),
		Metadata:    snap,
	}
	if err := s.storage.ActionHistoryStore().Append(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("action", string(payload.Kind)).Msg("Failed to append action history")
	}

	s.logger.Info().
		Str("action", string(payload.Kind)).
		Bool("success", result.Success).
		Msg("Action executed")
	return result
}

// Undo reverses the given action using the snapshot retained in its history
// record. Reversal is keyed by the action kind of the original.
func (s *Service) Undo(ctx context.Context, last *models.ActionHistory) *models.ExecResult {
	if last == nil || last.Metadata == nil {
		return failed("There is nothing to undo.")
	}
	if !last.Success {
		return failed("The last action did not complete, so there is nothing to undo.")
	}
	snap := last.Metadata
	holdings := s.storage.HoldingStore()

	switch last.ActionTaken {
	case models.ActionAddHolding:
		if snap.CreatedID == "" {
			return failed("The created holding could not be identified.")
		}
		if err := holdings.Delete(ctx, snap.CreatedID); err != nil {
			return s.fail("removing the created holding", err)
		}
		return succeeded("Removed the holding that was added.")

	case models.ActionAddToExisting, models.ActionIncreaseHolding, models.ActionEditHolding:
		if snap.Holding == nil {
			return failed("No prior state was retained for that action.")
		}
		if err := holdings.Update(ctx, snap.Holding); err != nil {
			return s.fail("restoring the holding", err)
		}
		return succeeded(fmt.Sprintf("Restored %s to its previous state.", snap.Holding.Symbol))

	case models.ActionDeleteHolding:
		if snap.Holding == nil {
			return failed("The deleted holding was not retained.")
		}
		if err := holdings.Create(ctx, snap.Holding); err != nil {
			return s.fail("recreating the holding", err)
		}
		return succeeded(fmt.Sprintf("Recreated the deleted %s holding.", snap.Holding.Symbol))

	case models.ActionReduceHolding:
		if snap.Holding == nil {
			return failed("No prior state was retained for that reduction.")
		}
		// A reduce that hit zero deleted the record, so reversal must
		// recreate rather than patch.
		if snap.Cascaded {
			if err := holdings.Create(ctx, snap.Holding); err != nil {
				return s.fail("recreating the holding", err)
			}
		} else if err := holdings.Update(ctx, snap.Holding); err != nil {
			return s.fail("restoring the holding", err)
		}
		return succeeded(fmt.Sprintf("Restored %s to %.0f units.", snap.Holding.Symbol, snap.Holding.Quantity))

	case models.ActionAddYearlyData:
		yearly := s.storage.YearlyDataStore()
		if snap.YearlyCreated {
			if snap.Yearly == nil {
				return failed("The created yearly record could not be identified.")
			}
			if err := yearly.Delete(ctx, snap.Yearly.ID); err != nil {
				return s.fail("removing the yearly record", err)
			}
			return succeeded(fmt.Sprintf("Removed the %d record.", snap.Yearly.Year))
		}
		if snap.Yearly == nil {
			return failed("No prior state was retained for that yearly record.")
		}
		if err := yearly.Update(ctx, snap.Yearly); err != nil {
			return s.fail("restoring the yearly record", err)
		}
		return succeeded(fmt.Sprintf("Restored the %d record.", snap.Yearly.Year))
	}
	return failed(fmt.Sprintf("Undo is not supported for %q.", last.ActionTaken))
}

func (s *Service) executeAdd(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult {
	p := payload.Add
	rates := s.fetchRates(ctx)
	now := s.now()

	entryCurrency := strings.ToUpper(p.Currency)
	if !models.IsSupportedCurrency(entryCurrency) {
		entryCurrency = models.CurrencySGD
	}
	category := strings.ToLower(p.Category)
	if !models.IsValidCategory(category) {
		category = models.CategoryEquity
	}

	qty := math.Round(p.Quantity)
	cost := p.TotalCost
	if cost == 0 {
		cost = models.Round2(qty * p.UnitPrice)
	}
	sgd, usd, inr := currency.Valuations(cost, entryCurrency, rates)

	h := &models.Holding{
		ID:            s.newID(),
		Symbol:        strings.ToUpper(p.Symbol),
		Name:          p.Name,
		Category:      category,
		Location:      p.Location,
		Quantity:      qty,
		UnitPrice:     models.Round2(p.UnitPrice),
		CostBasis:     models.Round2(cost),
		ValueSGD:      sgd,
		ValueUSD:      usd,
		ValueINR:      inr,
		EntryCurrency: entryCurrency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.storage.HoldingStore().Create(ctx, h); err != nil {
		return s.fail("creating the holding", err)
	}
	snap.CreatedID = h.ID
	return &models.ExecResult{
		Success: true,
		Message: fmt.Sprintf("Added %.0f units of %s at %.2f %s.", h.Quantity, h.Symbol, h.UnitPrice, h.EntryCurrency),
		Data:    h,
	}
}

func (s *Service) executeAddToExisting(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult {
	p := payload.Add
	return s.addLot(ctx, snap, p.HoldingID, p.Symbol, p.Quantity, p.UnitPrice, p.TotalCost, p.Currency)
}

func (s *Service) executeIncrease(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult {
	p := payload.Increase
	return s.addLot(ctx, snap, p.HoldingID, p.Symbol, p.Quantity, p.UnitPrice, 0, p.Currency)
}

// addLot folds an added lot into an existing holding using the weighted
// average engine, then re-derives the three valuations from the new total.
func (s *Service) addLot(ctx context.Context, snap *models.ActionSnapshot, holdingID, symbol string, qty, unitPrice, totalCost float64, userCurrency string) *models.ExecResult {
	h, err := s.loadTarget(ctx, holdingID, symbol)
	if err != nil {
		return s.fail("loading the holding", err)
	}
	if h == nil {
		return failed(fmt.Sprintf("No %s holding was found.", strings.ToUpper(symbol)))
	}
	prior := *h
	snap.Holding = &prior

	if userCurrency == "" {
		userCurrency = h.EntryCurrency
	}
	if totalCost == 0 {
		totalCost = models.Round2(qty * unitPrice)
	}
	avg, err := s.costbasis.CalculateWeightedAverage(ctx, h.Symbol, qty, unitPrice, totalCost, userCurrency)
	if err != nil {
		return s.fail("computing the weighted average", err)
	}

	h.Quantity = avg.NewQuantity
	h.UnitPrice = avg.NewAvgCostBasis
	h.CostBasis = avg.NewTotalInvested
	h.EntryCurrency = strings.ToUpper(userCurrency)
	s.revalue(ctx, h)
	h.UpdatedAt = s.now()

	if err := s.storage.HoldingStore().Update(ctx, h); err != nil {
		return s.fail("updating the holding", err)
	}
	return &models.ExecResult{
		Success: true,
		Message: fmt.Sprintf("%s is now %.0f units at an average cost of %.2f.", h.Symbol, h.Quantity, h.UnitPrice),
		Data:    h,
	}
}

func (s *Service) executeEdit(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult {
	p := payload.Edit
	h, err := s.loadTarget(ctx, p.HoldingID, p.Symbol)
	if err != nil {
		return s.fail("loading the holding", err)
	}
	if h == nil {
		return failed(fmt.Sprintf("No %s holding was found.", strings.ToUpper(p.Symbol)))
	}
	prior := *h
	snap.Holding = &prior

	if p.NewSymbol != "" {
		h.Symbol = strings.ToUpper(p.NewSymbol)
	}
	if p.NewName != "" {
		h.Name = p.NewName
	}
	if p.NewLocation != "" {
		h.Location = p.NewLocation
	}
	if p.NewCategory != "" {
		h.Category = strings.ToLower(p.NewCategory)
	}
	recompute := false
	if p.NewQuantity != nil {
		h.Quantity = *p.NewQuantity
		recompute = true
	}
	if p.NewUnitPrice != nil {
		h.UnitPrice = models.Round2(*p.NewUnitPrice)
		recompute = true
	}
	if recompute {
		h.CostBasis = models.Round2(h.Quantity * h.UnitPrice)
		s.revalue(ctx, h)
	}
	h.UpdatedAt = s.now()

	if err := s.storage.HoldingStore().Update(ctx, h); err != nil {
		return s.fail("updating the holding", err)
	}
	return &models.ExecResult{
		Success: true,
		Message: fmt.Sprintf("Updated %s.", h.Symbol),
		Data:    h,
	}
}

func (s *Service) executeDelete(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult {
	p := payload.Delete
	h, err := s.loadTarget(ctx, p.HoldingID, p.Symbol)
	if err != nil {
		return s.fail("loading the holding", err)
	}
	if h == nil {
		return failed(fmt.Sprintf("No %s holding was found.", strings.ToUpper(p.Symbol)))
	}
	prior := *h
	snap.Holding = &prior

	if err := s.storage.HoldingStore().Delete(ctx, h.ID); err != nil {
		return s.fail("deleting the holding", err)
	}
	return &models.ExecResult{
		Success: true,
		Message: fmt.Sprintf("Deleted the %s holding.", h.Symbol),
	}
}

func (s *Service) executeReduce(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult {
	p := payload.Reduce
	h, err := s.loadTarget(ctx, p.HoldingID, p.Symbol)
	if err != nil {
		return s.fail("loading the holding", err)
	}
	if h == nil {
		return failed(fmt.Sprintf("No %s holding was found.", strings.ToUpper(p.Symbol)))
	}

	reduceBy := p.Quantity
	if reduceBy == 0 && p.Fraction > 0 {
		reduceBy = models.Round2(h.Quantity * p.Fraction)
	}
	if reduceBy <= 0 {
		return failed("The reduction amount must be greater than zero.")
	}
	if reduceBy > h.Quantity {
		return failed(fmt.Sprintf("You hold %.0f units of %s and cannot reduce by %.0f.", h.Quantity, h.Symbol, reduceBy))
	}

	prior := *h
	snap.Holding = &prior

	remaining := models.Round2(h.Quantity - reduceBy)
	if remaining <= 0 {
		snap.Cascaded = true
		if err := s.storage.HoldingStore().Delete(ctx, h.ID); err != nil {
			return s.fail("deleting the holding", err)
		}
		return &models.ExecResult{
			Success: true,
			Message: fmt.Sprintf("Sold all of %s; the holding was removed.", h.Symbol),
		}
	}

	h.Quantity = remaining
	h.CostBasis = models.Round2(remaining * h.UnitPrice)
	s.revalue(ctx, h)
	h.UpdatedAt = s.now()

	if err := s.storage.HoldingStore().Update(ctx, h); err != nil {
		return s.fail("updating the holding", err)
	}
	return &models.ExecResult{
		Success: true,
		Message: fmt.Sprintf("%s reduced to %.0f units.", h.Symbol, h.Quantity),
		Data:    h,
	}
}

func (s *Service) executeYearly(ctx context.Context, payload *models.ActionPayload, snap *models.ActionSnapshot) *models.ExecResult {
	p := payload.YearlyData
	store := s.storage.YearlyDataStore()
	now := s.now()

	existing, err := store.GetByYear(ctx, p.Year)
	if err != nil {
		return s.fail("loading the yearly record", err)
	}

	curr := strings.ToUpper(p.Currency)
	if !models.IsSupportedCurrency(curr) {
		curr = models.CurrencySGD
	}

	if existing == nil {
		rec := &models.YearlyRecord{
			ID:        s.newID(),
			Year:      p.Year,
			Currency:  curr,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyYearlyFields(rec, p)
		if err := store.Create(ctx, rec); err != nil {
			return s.fail("creating the yearly record", err)
		}
		snap.Yearly = rec
		snap.YearlyCreated = true
		return &models.ExecResult{
			Success: true,
			Message: fmt.Sprintf("Recorded financial data for %d.", p.Year),
			Data:    rec,
		}
	}

	prior := *existing
	snap.Yearly = &prior
	applyYearlyFields(existing, p)
	existing.UpdatedAt = now
	if err := store.Update(ctx, existing); err != nil {
		return s.fail("updating the yearly record", err)
	}
	return &models.ExecResult{
		Success: true,
		Message: fmt.Sprintf("Updated financial data for %d.", p.Year),
		Data:    existing,
	}
}

func applyYearlyFields(rec *models.YearlyRecord, p *models.YearlyDataPayload) {
	if p.Income != nil {
		rec.Income = models.Round2(*p.Income)
	}
	if p.Expenses != nil {
		rec.Expenses = models.Round2(*p.Expenses)
	}
	if p.Savings != nil {
		rec.Savings = models.Round2(*p.Savings)
	}
	if p.NetWorth != nil {
		rec.NetWorth = models.Round2(*p.NetWorth)
	}
	if p.Currency != "" && models.IsSupportedCurrency(strings.ToUpper(p.Currency)) {
		rec.Currency = strings.ToUpper(p.Currency)
	}
}

// loadTarget resolves a holding by id, or by symbol when no id was bound.
// With multiple lots of one symbol the largest USD valuation is treated as
// the authoritative record.
func (s *Service) loadTarget(ctx context.Context, id, symbol string) (*models.Holding, error) {
	store := s.storage.HoldingStore()
	if id != "" {
		return store.Get(ctx, id)
	}
	if symbol == "" {
		return nil, fmt.Errorf("no holding id or symbol given")
	}
	lots, err := store.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var best *models.Holding
	for _, lot := range lots {
		if best == nil || lot.ValueUSD > best.ValueUSD {
			best = lot
		}
	}
	return best, nil
}

// revalue re-derives the three currency valuations from the holding's
// present quantity and unit price.
func (s *Service) revalue(ctx context.Context, h *models.Holding) {
	price := h.CurrentUnitPrice
	if price == 0 {
		price = h.UnitPrice
	}
	total := models.Round2(h.Quantity * price)
	rates := s.fetchRates(ctx)
	h.ValueSGD, h.ValueUSD, h.ValueINR = currency.Valuations(total, h.EntryCurrency, rates)
}

func (s *Service) fetchRates(ctx context.Context) *models.ExchangeRates {
	if s.rates == nil {
		return models.DefaultExchangeRates()
	}
	rates, err := s.rates.GetRates(ctx)
	if err != nil || rates == nil {
		s.logger.Warn().Err(err).Msg("Rate fetch failed, using default table")
		return models.DefaultExchangeRates()
	}
	return rates
}

func failed(msg string) *models.ExecResult {
	return &models.ExecResult{Message: msg}
}

// fail logs the underlying error and returns a user-facing failure without
// leaking internals.
func (s *Service) fail(action string, err error) *models.ExecResult {
	s.logger.Error().Err(err).Str("while", action).Msg("Action step failed")
	return &models.ExecResult{Message: fmt.Sprintf("Something went wrong while %s.", action)}
}

func succeeded(msg string) *models.ExecResult {
	return &models.ExecResult{Success: true, Message: msg}
}

package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// --- In-memory stores ---

type memHoldingStore struct {
	holdings map[string]*models.Holding
}

func newMemHoldingStore() *memHoldingStore {
	return &memHoldingStore{holdings: make(map[string]*models.Holding)}
}

func (m *memHoldingStore) List(_ context.Context) ([]*models.Holding, error) {
	var out []*models.Holding
	for _, h := range m.holdings {
		out = append(out, h)
	}
	return out, nil
}
func (m *memHoldingStore) Get(_ context.Context, id string) (*models.Holding, error) {
	if h, ok := m.holdings[id]; ok {
		cp := *h
		return &cp, nil
	}
	return nil, nil
}
func (m *memHoldingStore) GetBySymbol(_ context.Context, symbol string) ([]*models.Holding, error) {
	var out []*models.Holding
	for _, h := range m.holdings {
		if strings.EqualFold(h.Symbol, symbol) {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}
func (m *memHoldingStore) Create(_ context.Context, h *models.Holding) error {
	if h.ID == "" {
		return fmt.Errorf("holding id required")
	}
	cp := *h
	m.holdings[h.ID] = &cp
	return nil
}
func (m *memHoldingStore) Update(_ context.Context, h *models.Holding) error {
	if _, ok := m.holdings[h.ID]; !ok {
		return fmt.Errorf("holding %s not found", h.ID)
	}
	cp := *h
	m.holdings[h.ID] = &cp
	return nil
}
func (m *memHoldingStore) Delete(_ context.Context, id string) error {
	if _, ok := m.holdings[id]; !ok {
		return fmt.Errorf("holding %s not found", id)
	}
	delete(m.holdings, id)
	return nil
}

type memYearlyStore struct {
	records map[string]*models.YearlyRecord
}

func newMemYearlyStore() *memYearlyStore {
	return &memYearlyStore{records: make(map[string]*models.YearlyRecord)}
}

func (m *memYearlyStore) List(_ context.Context) ([]*models.YearlyRecord, error) {
	var out []*models.YearlyRecord
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}
func (m *memYearlyStore) GetByYear(_ context.Context, year int) (*models.YearlyRecord, error) {
	for _, r := range m.records {
		if r.Year == year {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}
func (m *memYearlyStore) Create(_ context.Context, r *models.YearlyRecord) error {
	cp := *r
	m.records[r.ID] = &cp
	return nil
}
func (m *memYearlyStore) Update(_ context.Context, r *models.YearlyRecord) error {
	cp := *r
	m.records[r.ID] = &cp
	return nil
}
func (m *memYearlyStore) Delete(_ context.Context, id string) error {
	delete(m.records, id)
	return nil
}

type memHistoryStore struct {
	records []*models.ActionHistory
}

func (m *memHistoryStore) Append(_ context.Context, rec *models.ActionHistory) error {
	m.records = append(m.records, rec)
	return nil
}
func (m *memHistoryStore) Recent(_ context.Context, limit int) ([]*models.ActionHistory, error) {
	out := make([]*models.ActionHistory, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

type memStorage struct {
	holdings *memHoldingStore
	yearly   *memYearlyStore
	history  *memHistoryStore
}

func newMemStorage() *memStorage {
	return &memStorage{
		holdings: newMemHoldingStore(),
		yearly:   newMemYearlyStore(),
		history:  &memHistoryStore{},
	}
}

func (m *memStorage) HoldingStore() interfaces.HoldingStore             { return m.holdings }
func (m *memStorage) YearlyDataStore() interfaces.YearlyDataStore       { return m.yearly }
func (m *memStorage) ActionHistoryStore() interfaces.ActionHistoryStore { return m.history }
func (m *memStorage) PatternStore() interfaces.PatternStore             { return nil }
func (m *memStorage) InternalStore() interfaces.InternalStore           { return nil }
func (m *memStorage) Close() error                                      { return nil }

type stubCostBasis struct {
	result *models.WeightedAverageResult
}

func (s *stubCostBasis) CalculateWeightedAverage(_ context.Context, _ string, addedQty, addedUnitPrice, addedTotalCost float64, _ string) (*models.WeightedAverageResult, error) {
	if s.result != nil {
		return s.result, nil
	}
	return &models.WeightedAverageResult{
		NewQuantity:      addedQty,
		NewAvgCostBasis:  addedUnitPrice,
		NewTotalInvested: addedTotalCost,
		IsNewHolding:     true,
	}, nil
}

type stubRates struct{}

func (s *stubRates) GetRates(_ context.Context) (*models.ExchangeRates, error) {
	return models.DefaultExchangeRates(), nil
}

func newTestExecutor(storage *memStorage) *Service {
	svc := NewService(storage, &stubCostBasis{}, &stubRates{}, common.NewSilentLogger())
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func addPayload(symbol string, qty, price float64) *models.ActionPayload {
	return &models.ActionPayload{
		Kind: models.ActionAddHolding,
		Add: &models.AddHoldingPayload{
			Symbol: symbol, Quantity: qty, UnitPrice: price,
			Category: models.CategoryEquity, Currency: models.CurrencySGD,
		},
	}
}

// --- Tests ---

func TestExecute_AddHolding(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)

	result := svc.Execute(context.Background(), addPayload("META", 100, 300), "add 100 shares of META at $300")
	if !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}

	lots, _ := storage.holdings.GetBySymbol(context.Background(), "META")
	if len(lots) != 1 {
		t.Fatalf("holdings = %d, want 1", len(lots))
	}
	h := lots[0]
	if h.Quantity != 100 || h.UnitPrice != 300 {
		t.Errorf("holding = %+v", h)
	}
	if h.CostBasis != 30000 {
		t.Errorf("cost basis = %v, want 30000", h.CostBasis)
	}
	if h.ValueSGD != 30000 {
		t.Errorf("SGD value = %v, want 30000", h.ValueSGD)
	}
	if h.ValueUSD != models.Round2(30000*0.74) {
		t.Errorf("USD value = %v", h.ValueUSD)
	}

	if len(storage.history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(storage.history.records))
	}
	rec := storage.history.records[0]
	if rec.ActionTaken != models.ActionAddHolding || !rec.Success {
		t.Errorf("history = %+v", rec)
	}
	if rec.Metadata.CreatedID != h.ID {
		t.Errorf("snapshot created id = %q, want %q", rec.Metadata.CreatedID, h.ID)
	}
}

func TestExecute_AddThenUndoRoundTrip(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()

	if result := svc.Execute(ctx, addPayload("META", 100, 300), "add"); !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}
	last, _ := storage.history.Recent(ctx, 1)
	undo := svc.Undo(ctx, last[0])
	if !undo.Success {
		t.Fatalf("undo failed: %s", undo.Message)
	}

	remaining, _ := storage.holdings.List(ctx)
	if len(remaining) != 0 {
		t.Errorf("holdings after undo = %+v, want none", remaining)
	}
}

func TestExecute_AddToExistingUsesWeightedAverage(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()
	storage.holdings.Create(ctx, &models.Holding{
		ID: "h1", Symbol: "AAPL", Quantity: 5, UnitPrice: 140, CostBasis: 700,
		EntryCurrency: models.CurrencySGD, ValueUSD: 518,
	})
	svc.costbasis = &stubCostBasis{result: &models.WeightedAverageResult{
		NewQuantity: 10, NewAvgCostBasis: 150, NewTotalInvested: 1500,
	}}

	payload := &models.ActionPayload{
		Kind: models.ActionAddToExisting,
		Add: &models.AddHoldingPayload{
			Symbol: "AAPL", HoldingID: "h1", Quantity: 5, UnitPrice: 160,
			TotalCost: 800, Currency: models.CurrencySGD,
		},
	}
	result := svc.Execute(ctx, payload, "add 5 more AAPL at 160")
	if !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}

	h, _ := storage.holdings.Get(ctx, "h1")
	if h.Quantity != 10 || h.UnitPrice != 150 || h.CostBasis != 1500 {
		t.Errorf("holding = %+v, want 10/150/1500", h)
	}
	if h.ValueSGD != 1500 {
		t.Errorf("SGD value = %v, want 1500", h.ValueSGD)
	}

	// Undo restores the prior lot exactly.
	last, _ := storage.history.Recent(ctx, 1)
	if undo := svc.Undo(ctx, last[0]); !undo.Success {
		t.Fatalf("undo failed: %s", undo.Message)
	}
	h, _ = storage.holdings.Get(ctx, "h1")
	if h.Quantity != 5 || h.UnitPrice != 140 || h.CostBasis != 700 {
		t.Errorf("holding after undo = %+v, want 5/140/700", h)
	}
}

func TestExecute_ReduceToZeroDeletes(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()
	storage.holdings.Create(ctx, &models.Holding{
		ID: "h1", Symbol: "HIMS", Quantity: 20, UnitPrice: 12, CostBasis: 240,
		EntryCurrency: models.CurrencyUSD,
	})

	payload := &models.ActionPayload{
		Kind:   models.ActionReduceHolding,
		Reduce: &models.ReduceHoldingPayload{Symbol: "HIMS", HoldingID: "h1", Quantity: 20},
	}
	result := svc.Execute(ctx, payload, "sell all my HIMS")
	if !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}
	if h, _ := storage.holdings.Get(ctx, "h1"); h != nil {
		t.Errorf("holding survived a full reduction: %+v", h)
	}

	last, _ := storage.history.Recent(ctx, 1)
	if !last[0].Metadata.Cascaded {
		t.Error("cascade flag not recorded")
	}

	// Undo of a cascaded reduce recreates the full record.
	if undo := svc.Undo(ctx, last[0]); !undo.Success {
		t.Fatalf("undo failed: %s", undo.Message)
	}
	h, _ := storage.holdings.Get(ctx, "h1")
	if h == nil || h.Quantity != 20 {
		t.Errorf("holding after undo = %+v, want 20 units", h)
	}
}

func TestExecute_ReducePartial(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()
	storage.holdings.Create(ctx, &models.Holding{
		ID: "h1", Symbol: "HIMS", Quantity: 20, UnitPrice: 12, CostBasis: 240,
		EntryCurrency: models.CurrencyUSD,
	})

	payload := &models.ActionPayload{
		Kind:   models.ActionReduceHolding,
		Reduce: &models.ReduceHoldingPayload{Symbol: "HIMS", HoldingID: "h1", Quantity: 10},
	}
	if result := svc.Execute(ctx, payload, "sell half my HIMS"); !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}

	h, _ := storage.holdings.Get(ctx, "h1")
	if h.Quantity != 10 {
		t.Errorf("quantity = %v, want 10", h.Quantity)
	}
	if h.CostBasis != 120 {
		t.Errorf("cost basis = %v, want 120", h.CostBasis)
	}
}

func TestExecute_ReduceBeyondHeldRejected(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()
	storage.holdings.Create(ctx, &models.Holding{
		ID: "h1", Symbol: "HIMS", Quantity: 20, UnitPrice: 12, EntryCurrency: models.CurrencyUSD,
	})

	payload := &models.ActionPayload{
		Kind:   models.ActionReduceHolding,
		Reduce: &models.ReduceHoldingPayload{Symbol: "HIMS", HoldingID: "h1", Quantity: 25},
	}
	result := svc.Execute(ctx, payload, "sell 25 HIMS")
	if result.Success {
		t.Fatal("over-reduction must fail")
	}
	if !strings.Contains(result.Message, "cannot reduce") {
		t.Errorf("message = %q, want a descriptive rejection", result.Message)
	}

	h, _ := storage.holdings.Get(ctx, "h1")
	if h.Quantity != 20 {
		t.Errorf("quantity changed on a rejected reduce: %v", h.Quantity)
	}
}

func TestExecute_DeleteThenUndoRecreates(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()
	storage.holdings.Create(ctx, &models.Holding{
		ID: "h1", Symbol: "NVDA", Name: "NVIDIA", Quantity: 4, UnitPrice: 500,
		CostBasis: 2000, EntryCurrency: models.CurrencyUSD, Location: "IBKR",
	})

	payload := &models.ActionPayload{
		Kind:   models.ActionDeleteHolding,
		Delete: &models.DeleteHoldingPayload{Symbol: "NVDA", HoldingID: "h1"},
	}
	if result := svc.Execute(ctx, payload, "delete NVDA"); !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}
	if h, _ := storage.holdings.Get(ctx, "h1"); h != nil {
		t.Fatal("holding not deleted")
	}

	last, _ := storage.history.Recent(ctx, 1)
	if undo := svc.Undo(ctx, last[0]); !undo.Success {
		t.Fatalf("undo failed: %s", undo.Message)
	}
	h, _ := storage.holdings.Get(ctx, "h1")
	if h == nil || h.Name != "NVIDIA" || h.Location != "IBKR" {
		t.Errorf("recreated holding = %+v", h)
	}
}

func TestExecute_EditThenUndoRestoresFields(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()
	storage.holdings.Create(ctx, &models.Holding{
		ID: "h1", Symbol: "SCB", Name: "Standard Chartered", Quantity: 10,
		UnitPrice: 5, CostBasis: 50, EntryCurrency: models.CurrencySGD, Location: "SCB",
	})

	payload := &models.ActionPayload{
		Kind: models.ActionEditHolding,
		Edit: &models.EditHoldingPayload{Symbol: "SCB", HoldingID: "h1", NewLocation: "DBS"},
	}
	if result := svc.Execute(ctx, payload, "rename SCB to DBS"); !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}
	h, _ := storage.holdings.Get(ctx, "h1")
	if h.Location != "DBS" {
		t.Errorf("location = %q, want DBS", h.Location)
	}

	last, _ := storage.history.Recent(ctx, 1)
	if undo := svc.Undo(ctx, last[0]); !undo.Success {
		t.Fatalf("undo failed: %s", undo.Message)
	}
	h, _ = storage.holdings.Get(ctx, "h1")
	if h.Location != "SCB" {
		t.Errorf("location after undo = %q, want SCB", h.Location)
	}
}

func TestExecute_YearlyCreateAndUndo(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()

	income, expenses, savings := 120000.0, 80000.0, 40000.0
	payload := &models.ActionPayload{
		Kind: models.ActionAddYearlyData,
		YearlyData: &models.YearlyDataPayload{
			Year: 2024, Income: &income, Expenses: &expenses, Savings: &savings,
			Currency: models.CurrencySGD,
		},
	}
	if result := svc.Execute(ctx, payload, "2024 income 120000"); !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}
	rec, _ := storage.yearly.GetByYear(ctx, 2024)
	if rec == nil || rec.Income != 120000 {
		t.Fatalf("yearly record = %+v", rec)
	}

	last, _ := storage.history.Recent(ctx, 1)
	if !last[0].Metadata.YearlyCreated {
		t.Error("yearly-created flag not recorded")
	}
	if undo := svc.Undo(ctx, last[0]); !undo.Success {
		t.Fatalf("undo failed: %s", undo.Message)
	}
	if rec, _ := storage.yearly.GetByYear(ctx, 2024); rec != nil {
		t.Errorf("record survived undo: %+v", rec)
	}
}

func TestExecute_YearlyUpdatePreservesPrior(t *testing.T) {
	storage := newMemStorage()
	svc := newTestExecutor(storage)
	ctx := context.Background()
	storage.yearly.Create(ctx, &models.YearlyRecord{
		ID: "y1", Year: 2023, Income: 100000, Currency: models.CurrencySGD,
	})

	income := 110000.0
	payload := &models.ActionPayload{
		Kind:       models.ActionAddYearlyData,
		YearlyData: &models.YearlyDataPayload{Year: 2023, Income: &income},
	}
	if result := svc.Execute(ctx, payload, "update 2023 income"); !result.Success {
		t.Fatalf("execution failed: %s", result.Message)
	}

	last, _ := storage.history.Recent(ctx, 1)
	if undo := svc.Undo(ctx, last[0]); !undo.Success {
		t.Fatalf("undo failed: %s", undo.Message)
	}
	rec, _ := storage.yearly.GetByYear(ctx, 2023)
	if rec.Income != 100000 {
		t.Errorf("income after undo = %v, want 100000", rec.Income)
	}
}

func TestExecute_UnknownKindFails(t *testing.T) {
	svc := newTestExecutor(newMemStorage())

	result := svc.Execute(context.Background(), &models.ActionPayload{Kind: "explode"}, "explode")
	if result.Success {
		t.Fatal("unknown kind must fail")
	}
}

func TestUndo_FailedActionRefused(t *testing.T) {
	svc := newTestExecutor(newMemStorage())

	result := svc.Undo(context.Background(), &models.ActionHistory{
		ActionTaken: models.ActionAddHolding,
		Success:     false,
		Metadata:    &models.ActionSnapshot{CreatedID: "id-9"},
	})
	if result.Success {
		t.Fatal("undo of a failed action must be refused")
	}
}

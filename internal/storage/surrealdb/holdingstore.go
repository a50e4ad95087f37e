package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

type HoldingStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewHoldingStore(db *surrealdb.DB, logger *common.Logger) *HoldingStore {
	return &HoldingStore{
		db:     db,
		logger: logger,
	}
}

// holdingRecord mirrors models.Holding with the business id in its own
// column, keeping it clear of the SurrealDB record id.
type holdingRecord struct {
	HoldingID        string    `json:"holding_id"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	Location         string    `json:"location"`
	Quantity         float64   `json:"quantity"`
	UnitPrice        float64   `json:"unit_price"`
	CurrentUnitPrice float64   `json:"current_unit_price"`
	CostBasis        float64   `json:"cost_basis"`
	ValueSGD         float64   `json:"value_sgd"`
	ValueUSD         float64   `json:"value_usd"`
	ValueINR         float64   `json:"value_inr"`
	EntryCurrency    string    `json:"entry_currency"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toHoldingRecord(h *models.Holding) holdingRecord {
	return holdingRecord{
		HoldingID:        h.ID,
		Symbol:           h.Symbol,
		Name:             h.Name,
		Category:         h.Category,
		Location:         h.Location,
		Quantity:         h.Quantity,
		UnitPrice:        h.UnitPrice,
		CurrentUnitPrice: h.CurrentUnitPrice,
		CostBasis:        h.CostBasis,
		ValueSGD:         h.ValueSGD,
		ValueUSD:         h.ValueUSD,
		ValueINR:         h.ValueINR,
		EntryCurrency:    h.EntryCurrency,
		CreatedAt:        h.CreatedAt,
		UpdatedAt:        h.UpdatedAt,
	}
}

func (r *holdingRecord) toModel() *models.Holding {
	return &models.Holding{
		ID:               r.HoldingID,
		Symbol:           r.Symbol,
		Name:             r.Name,
		Category:         r.Category,
		Location:         r.Location,
		Quantity:         r.Quantity,
		UnitPrice:        r.UnitPrice,
		CurrentUnitPrice: r.CurrentUnitPrice,
		CostBasis:        r.CostBasis,
		ValueSGD:         r.ValueSGD,
		ValueUSD:         r.ValueUSD,
		ValueINR:         r.ValueINR,
		EntryCurrency:    r.EntryCurrency,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (s *HoldingStore) List(ctx context.Context) ([]*models.Holding, error) {
	sql := "SELECT * FROM holding ORDER BY symbol ASC"

	results, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	var mapped []*models.Holding
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, (*results)[0].Result[i].toModel())
		}
	}
	return mapped, nil
}

func (s *HoldingStore) Get(ctx context.Context, id string) (*models.Holding, error) {
	record, err := surrealdb.Select[holdingRecord](ctx, s.db, surrealmodels.NewRecordID("holding", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select holding: %w", err)
	}
	if record == nil || record.HoldingID == "" {
		return nil, nil
	}
	return record.toModel(), nil
}

func (s *HoldingStore) GetBySymbol(ctx context.Context, symbol string) ([]*models.Holding, error) {
	sql := "SELECT * FROM holding WHERE string::uppercase(symbol) = $symbol"
	vars := map[string]any{"symbol": strings.ToUpper(symbol)}

	results, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings by symbol: %w", err)
	}

	var mapped []*models.Holding
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, (*results)[0].Result[i].toModel())
		}
	}
	return mapped, nil
}

func (s *HoldingStore) Create(ctx context.Context, h *models.Holding) error {
	return s.upsert(ctx, h)
}

func (s *HoldingStore) Update(ctx context.Context, h *models.Holding) error {
	return s.upsert(ctx, h)
}

func (s *HoldingStore) upsert(ctx context.Context, h *models.Holding) error {
	if h.ID == "" {
		return fmt.Errorf("holding id is required")
	}
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("holding", h.ID),
		"record": toHoldingRecord(h),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to upsert holding after retries: %w", lastErr)
}

func (s *HoldingStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[holdingRecord](ctx, s.db, surrealmodels.NewRecordID("holding", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

var _ interfaces.HoldingStore = (*HoldingStore)(nil)

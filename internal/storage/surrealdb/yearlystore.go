package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

type YearlyStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewYearlyStore(db *surrealdb.DB, logger *common.Logger) *YearlyStore {
	return &YearlyStore{
		db:     db,
		logger: logger,
	}
}

type yearlyRecord struct {
	RecordID  string    `json:"record_id"`
	Year      int       `json:"year"`
	Income    float64   `json:"income"`
	Expenses  float64   `json:"expenses"`
	Savings   float64   `json:"savings"`
	NetWorth  float64   `json:"net_worth"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toYearlyRecord(r *models.YearlyRecord) yearlyRecord {
	return yearlyRecord{
		RecordID:  r.ID,
		Year:      r.Year,
		Income:    r.Income,
		Expenses:  r.Expenses,
		Savings:   r.Savings,
		NetWorth:  r.NetWorth,
		Currency:  r.Currency,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *yearlyRecord) toModel() *models.YearlyRecord {
	return &models.YearlyRecord{
		ID:        r.RecordID,
		Year:      r.Year,
		Income:    r.Income,
		Expenses:  r.Expenses,
		Savings:   r.Savings,
		NetWorth:  r.NetWorth,
		Currency:  r.Currency,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *YearlyStore) List(ctx context.Context) ([]*models.YearlyRecord, error) {
	sql := "SELECT * FROM yearly_data ORDER BY year ASC"

	results, err := surrealdb.Query[[]yearlyRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list yearly records: %w", err)
	}

	var mapped []*models.YearlyRecord
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, (*results)[0].Result[i].toModel())
		}
	}
	return mapped, nil
}

func (s *YearlyStore) GetByYear(ctx context.Context, year int) (*models.YearlyRecord, error) {
	sql := "SELECT * FROM yearly_data WHERE year = $year LIMIT 1"
	vars := map[string]any{"year": year}

	results, err := surrealdb.Query[[]yearlyRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query yearly record: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return (*results)[0].Result[0].toModel(), nil
	}
	return nil, nil
}

func (s *YearlyStore) Create(ctx context.Context, r *models.YearlyRecord) error {
	return s.upsert(ctx, r)
}

func (s *YearlyStore) Update(ctx context.Context, r *models.YearlyRecord) error {
	return s.upsert(ctx, r)
}

func (s *YearlyStore) upsert(ctx context.Context, r *models.YearlyRecord) error {
	if r.ID == "" {
		return fmt.Errorf("yearly record id is required")
	}
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("yearly_data", r.ID),
		"record": toYearlyRecord(r),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]yearlyRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to upsert yearly record after retries: %w", lastErr)
}

func (s *YearlyStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[yearlyRecord](ctx, s.db, surrealmodels.NewRecordID("yearly_data", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete yearly record: %w", err)
	}
	return nil
}

var _ interfaces.YearlyDataStore = (*YearlyStore)(nil)

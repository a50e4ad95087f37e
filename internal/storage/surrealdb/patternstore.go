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

type PatternStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewPatternStore(db *surrealdb.DB, logger *common.Logger) *PatternStore {
	return &PatternStore{
		db:     db,
		logger: logger,
	}
}

type patternRecord struct {
	PatternID   string    `json:"pattern_id"`
	Template    string    `json:"template"`
	SuccessRate float64   `json:"success_rate"`
	UsageCount  int       `json:"usage_count"`
	LastUsed    time.Time `json:"last_used"`
	Examples    []string  `json:"examples,omitempty"`
}

func toPatternRecord(p *models.UserPattern) patternRecord {
	return patternRecord{
		PatternID:   p.ID,
		Template:    p.Template,
		SuccessRate: p.SuccessRate,
		UsageCount:  p.UsageCount,
		LastUsed:    p.LastUsed,
		Examples:    p.Examples,
	}
}

func (r *patternRecord) toModel() *models.UserPattern {
	return &models.UserPattern{
		ID:          r.PatternID,
		Template:    r.Template,
		SuccessRate: r.SuccessRate,
		UsageCount:  r.UsageCount,
		LastUsed:    r.LastUsed,
		Examples:    r.Examples,
	}
}

func (s *PatternStore) GetByTemplate(ctx context.Context, template string) (*models.UserPattern, error) {
	sql := "SELECT * FROM user_pattern WHERE template = $template LIMIT 1"
	vars := map[string]any{"template": template}

	results, err := surrealdb.Query[[]patternRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern by template: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return (*results)[0].Result[0].toModel(), nil
	}
	return nil, nil
}

func (s *PatternStore) Upsert(ctx context.Context, p *models.UserPattern) error {
	if p.ID == "" {
		return fmt.Errorf("pattern id is required")
	}
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("user_pattern", p.ID),
		"record": toPatternRecord(p),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]patternRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to upsert pattern after retries: %w", lastErr)
}

func (s *PatternStore) List(ctx context.Context) ([]*models.UserPattern, error) {
	sql := "SELECT * FROM user_pattern ORDER BY last_used DESC"

	results, err := surrealdb.Query[[]patternRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}

	var mapped []*models.UserPattern
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, (*results)[0].Result[i].toModel())
		}
	}
	return mapped, nil
}

var _ interfaces.PatternStore = (*PatternStore)(nil)

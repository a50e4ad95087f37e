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

type HistoryStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewHistoryStore(db *surrealdb.DB, logger *common.Logger) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: logger,
	}
}

type historyRecord struct {
	HistoryID   string                 `json:"history_id"`
	UserInput   string                 `json:"user_input"`
	ActionTaken string                 `json:"action_taken"`
	Success     bool                   `json:"success"`
	PatternUsed string                 `json:"pattern_used,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    *models.ActionSnapshot `json:"metadata,omitempty"`
}

func toHistoryRecord(rec *models.ActionHistory) historyRecord {
	return historyRecord{
		HistoryID:   rec.ID,
		UserInput:   rec.UserInput,
		ActionTaken: string(rec.ActionTaken),
		Success:     rec.Success,
		PatternUsed: rec.PatternUsed,
		Timestamp:   rec.Timestamp,
		Metadata:    rec.Metadata,
	}
}

func (r *historyRecord) toModel() *models.ActionHistory {
	return &models.ActionHistory{
		ID:          r.HistoryID,
		UserInput:   r.UserInput,
		ActionTaken: models.ActionKind(r.ActionTaken),
		Success:     r.Success,
		PatternUsed: r.PatternUsed,
		Timestamp:   r.Timestamp,
		Metadata:    r.Metadata,
	}
}

func (s *HistoryStore) Append(ctx context.Context, rec *models.ActionHistory) error {
	if rec.ID == "" {
		return fmt.Errorf("history record id is required")
	}
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("action_history", rec.ID),
		"record": toHistoryRecord(rec),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]historyRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to append action history after retries: %w", lastErr)
}

func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]*models.ActionHistory, error) {
	if limit <= 0 {
		limit = 10
	}
	sql := fmt.Sprintf("SELECT * FROM action_history ORDER BY timestamp DESC LIMIT %d", limit)

	results, err := surrealdb.Query[[]historyRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent actions: %w", err)
	}

	var mapped []*models.ActionHistory
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, (*results)[0].Result[i].toModel())
		}
	}
	return mapped, nil
}

var _ interfaces.ActionHistoryStore = (*HistoryStore)(nil)

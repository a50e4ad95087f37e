// Package interfaces defines service contracts for the folio agent
package interfaces

import (
	"context"

	"github.com/praveensg/folioagent/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	HoldingStore() HoldingStore
	YearlyDataStore() YearlyDataStore
	ActionHistoryStore() ActionHistoryStore
	PatternStore() PatternStore
	InternalStore() InternalStore

	Close() error
}

// HoldingStore persists Holding records. The agent never owns these
// long-term; it reads, computes, and writes back.
type HoldingStore interface {
	List(ctx context.Context) ([]*models.Holding, error)
	Get(ctx context.Context, id string) (*models.Holding, error)
	// GetBySymbol returns all holdings matching the symbol
	// (case-insensitive). Multiple lots of one symbol may exist.
	GetBySymbol(ctx context.Context, symbol string) ([]*models.Holding, error)
	Create(ctx context.Context, h *models.Holding) error
	Update(ctx context.Context, h *models.Holding) error
	Delete(ctx context.Context, id string) error
}

// YearlyDataStore persists yearly financial history records.
type YearlyDataStore interface {
	List(ctx context.Context) ([]*models.YearlyRecord, error)
	GetByYear(ctx context.Context, year int) (*models.YearlyRecord, error)
	Create(ctx context.Context, r *models.YearlyRecord) error
	Update(ctx context.Context, r *models.YearlyRecord) error
	Delete(ctx context.Context, id string) error
}

// ActionHistoryStore is append-only storage of processed actions.
type ActionHistoryStore interface {
	Append(ctx context.Context, rec *models.ActionHistory) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*models.ActionHistory, error)
}

// PatternStore persists learned user patterns.
type PatternStore interface {
	GetByTemplate(ctx context.Context, template string) (*models.UserPattern, error)
	Upsert(ctx context.Context, p *models.UserPattern) error
	List(ctx context.Context) ([]*models.UserPattern, error)
}

// InternalStore holds system-level key-value config (API keys, defaults).
type InternalStore interface {
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error
}

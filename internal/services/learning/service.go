// Package learning records user-input→action outcomes and serves learned
// patterns back to the agent. Advisory only: nothing here gates an action.
package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// Compile-time interface check
var _ interfaces.LearningService = (*Service)(nil)

const (
	// RecencyWindow is how far back a pattern's last use may be for it to
	// still be considered relevant.
	RecencyWindow = 30 * 24 * time.Hour

	// MinSuccessRate is the floor below which a pattern is never surfaced.
	MinSuccessRate = 0.70

	// MaxRelevantPatterns bounds the patterns attached to one request.
	MaxRelevantPatterns = 10
)

// Service implements LearningService over the pattern and history stores.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing
}

// NewService creates a new learning service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// StorePattern records one observed outcome for a template, creating the
// pattern on first observation. Patterns are never deleted; stale ones age
// out of reads via the recency window.
func (s *Service) StorePattern(ctx context.Context, template, example string, success bool) error {
	if strings.TrimSpace(template) == "" {
		return nil
	}

	store := s.storage.PatternStore()
	pattern, err := store.GetByTemplate(ctx, template)
	if err != nil || pattern == nil {
		pattern = &models.UserPattern{
			ID:       uuid.New().String(),
			Template: template,
		}
	}

	pattern.RecordUse(example, success, s.now())

	if err := store.Upsert(ctx, pattern); err != nil {
		return fmt.Errorf("failed to store pattern: %w", err)
	}

	s.logger.Debug().
		Str("template", template).
		Float64("success_rate", pattern.SuccessRate).
		Int("usage_count", pattern.UsageCount).
		Msg("Pattern recorded")
	return nil
}

// RelevantPatterns returns up to MaxRelevantPatterns patterns that are
// recent, reliable, and share a keyword with the input.
func (s *Service) RelevantPatterns(ctx context.Context, input string) ([]*models.UserPattern, error) {
	patterns, err := s.storage.PatternStore().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}

	cutoff := s.now().Add(-RecencyWindow)
	inputTokens := tokenize(input)

	var relevant []*models.UserPattern
	for _, p := range patterns {
		if p.LastUsed.Before(cutoff) {
			continue
		}
		if p.SuccessRate < MinSuccessRate {
			continue
		}
		if !sharesKeyword(p, inputTokens) {
			continue
		}
		relevant = append(relevant, p)
	}

	sort.Slice(relevant, func(i, j int) bool {
		if relevant[i].SuccessRate != relevant[j].SuccessRate {
			return relevant[i].SuccessRate > relevant[j].SuccessRate
		}
		return relevant[i].UsageCount > relevant[j].UsageCount
	})

	if len(relevant) > MaxRelevantPatterns {
		relevant = relevant[:MaxRelevantPatterns]
	}
	return relevant, nil
}

// RecordAction appends one action history record.
func (s *Service) RecordAction(ctx context.Context, rec *models.ActionHistory) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	if err := s.storage.ActionHistoryStore().Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// RecentActions returns the newest limit history records.
func (s *Service) RecentActions(ctx context.Context, limit int) ([]*models.ActionHistory, error) {
	recs, err := s.storage.ActionHistoryStore().Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent actions: %w", err)
	}
	return recs, nil
}

// tokenize lowercases and splits input into word tokens, dropping
// one-character fragments.
func tokenize(input string) []string {
	fields := strings.Fields(strings.ToLower(input))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'")
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// sharesKeyword reports whether any input token appears in the pattern's
// template or examples.
func sharesKeyword(p *models.UserPattern, tokens []string) bool {
	haystack := strings.ToLower(p.Template)
	for _, e := range p.Examples {
		haystack += " " + strings.ToLower(e)
	}
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			return true
		}
	}
	return false
}

package learning

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// --- Stubs ---

type stubPatternStore struct {
	patterns map[string]*models.UserPattern
}

func newStubPatternStore() *stubPatternStore {
	return &stubPatternStore{patterns: make(map[string]*models.UserPattern)}
}

func (s *stubPatternStore) GetByTemplate(_ context.Context, template string) (*models.UserPattern, error) {
	if p, ok := s.patterns[template]; ok {
		return p, nil
	}
	return nil, nil
}
func (s *stubPatternStore) Upsert(_ context.Context, p *models.UserPattern) error {
	s.patterns[p.Template] = p
	return nil
}
func (s *stubPatternStore) List(_ context.Context) ([]*models.UserPattern, error) {
	var out []*models.UserPattern
	for _, p := range s.patterns {
		out = append(out, p)
	}
	return out, nil
}

type stubHistoryStore struct {
	records []*models.ActionHistory
}

func (s *stubHistoryStore) Append(_ context.Context, rec *models.ActionHistory) error {
	s.records = append(s.records, rec)
	return nil
}
func (s *stubHistoryStore) Recent(_ context.Context, limit int) ([]*models.ActionHistory, error) {
	if limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]*models.ActionHistory, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

type stubStorage struct {
	patterns *stubPatternStore
	history  *stubHistoryStore
}

func (s *stubStorage) HoldingStore() interfaces.HoldingStore             { return nil }
func (s *stubStorage) YearlyDataStore() interfaces.YearlyDataStore       { return nil }
func (s *stubStorage) ActionHistoryStore() interfaces.ActionHistoryStore { return s.history }
func (s *stubStorage) PatternStore() interfaces.PatternStore             { return s.patterns }
func (s *stubStorage) InternalStore() interfaces.InternalStore           { return nil }
func (s *stubStorage) Close() error                                      { return nil }

func newTestService() (*Service, *stubStorage) {
	storage := &stubStorage{patterns: newStubPatternStore(), history: &stubHistoryStore{}}
	svc := NewService(storage, common.NewSilentLogger())
	return svc, storage
}

// --- Tests ---

func TestStorePattern_IncrementalMean(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()

	// Three successes then one failure: rate should be 0.75.
	outcomes := []bool{true, true, true, false}
	for _, ok := range outcomes {
		if err := svc.StorePattern(ctx, "add {qty} shares of {symbol}", "add 100 shares of META", ok); err != nil {
			t.Fatalf("StorePattern failed: %v", err)
		}
	}

	p := storage.patterns.patterns["add {qty} shares of {symbol}"]
	if p == nil {
		t.Fatal("pattern not stored")
	}
	if p.UsageCount != 4 {
		t.Errorf("UsageCount = %d, want 4", p.UsageCount)
	}
	if math.Abs(p.SuccessRate-0.75) > 1e-9 {
		t.Errorf("SuccessRate = %v, want 0.75", p.SuccessRate)
	}
}

func TestStorePattern_BoundsExamples(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()

	examples := []string{"a one", "b two", "c three", "d four", "e five", "f six", "g seven"}
	for _, e := range examples {
		if err := svc.StorePattern(ctx, "tmpl", e, true); err != nil {
			t.Fatalf("StorePattern failed: %v", err)
		}
	}

	p := storage.patterns.patterns["tmpl"]
	if len(p.Examples) != models.MaxPatternExamples {
		t.Errorf("examples = %d, want %d", len(p.Examples), models.MaxPatternExamples)
	}
	// Oldest examples are evicted first.
	if p.Examples[0] != "c three" {
		t.Errorf("oldest retained example = %q, want %q", p.Examples[0], "c three")
	}
}

func TestRelevantPatterns_Filters(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()
	now := time.Now()

	storage.patterns.patterns["fresh-good"] = &models.UserPattern{
		Template: "rename {entity} to {new_name}", SuccessRate: 0.9, UsageCount: 5, LastUsed: now,
	}
	storage.patterns.patterns["fresh-bad"] = &models.UserPattern{
		Template: "rename {entity} badly", SuccessRate: 0.5, UsageCount: 8, LastUsed: now,
	}
	storage.patterns.patterns["stale-good"] = &models.UserPattern{
		Template: "rename {entity} staleness", SuccessRate: 0.95, UsageCount: 3,
		LastUsed: now.Add(-31 * 24 * time.Hour),
	}
	storage.patterns.patterns["unrelated"] = &models.UserPattern{
		Template: "add {qty} shares of {symbol}", SuccessRate: 0.99, UsageCount: 10, LastUsed: now,
	}

	patterns, err := svc.RelevantPatterns(ctx, "rename SCB to DBS")
	if err != nil {
		t.Fatalf("RelevantPatterns failed: %v", err)
	}

	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1: %+v", len(patterns), patterns)
	}
	if patterns[0].Template != "rename {entity} to {new_name}" {
		t.Errorf("wrong pattern surfaced: %q", patterns[0].Template)
	}
}

func TestRelevantPatterns_Bounded(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 20; i++ {
		tmpl := "sell {fraction} of {symbol} variant " + string(rune('a'+i))
		storage.patterns.patterns[tmpl] = &models.UserPattern{
			Template: tmpl, SuccessRate: 0.8, UsageCount: i, LastUsed: now,
		}
	}

	patterns, err := svc.RelevantPatterns(ctx, "sell half my HIMS")
	if err != nil {
		t.Fatalf("RelevantPatterns failed: %v", err)
	}
	if len(patterns) != MaxRelevantPatterns {
		t.Errorf("got %d patterns, want %d", len(patterns), MaxRelevantPatterns)
	}
}

func TestRecordAction_FillsDefaults(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()

	rec := &models.ActionHistory{
		UserInput:   "add 100 shares of META at $300",
		ActionTaken: models.ActionAddHolding,
		Success:     true,
	}
	if err := svc.RecordAction(ctx, rec); err != nil {
		t.Fatalf("RecordAction failed: %v", err)
	}

	stored := storage.history.records[0]
	if stored.ID == "" {
		t.Error("ID not assigned")
	}
	if stored.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}
}

func TestRecentActions_NewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, input := range []string{"first", "second", "third"} {
		if err := svc.RecordAction(ctx, &models.ActionHistory{UserInput: input, ActionTaken: models.ActionAddHolding}); err != nil {
			t.Fatalf("RecordAction failed: %v", err)
		}
	}

	recs, err := svc.RecentActions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentActions failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].UserInput != "third" || recs[1].UserInput != "second" {
		t.Errorf("wrong ordering: %q, %q", recs[0].UserInput, recs[1].UserInput)
	}
}

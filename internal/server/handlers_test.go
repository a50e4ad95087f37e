package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveensg/folioagent/internal/app"
	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// --- Stubs ---

type stubHoldingStore struct {
	holdings []*models.Holding
	listErr  error
}

func (s *stubHoldingStore) List(ctx context.Context) ([]*models.Holding, error) {
	return s.holdings, s.listErr
}

func (s *stubHoldingStore) Get(ctx context.Context, id string) (*models.Holding, error) {
	for _, h := range s.holdings {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, nil
}

func (s *stubHoldingStore) GetBySymbol(ctx context.Context, symbol string) ([]*models.Holding, error) {
	return nil, nil
}

func (s *stubHoldingStore) Create(ctx context.Context, h *models.Holding) error { return nil }
func (s *stubHoldingStore) Update(ctx context.Context, h *models.Holding) error { return nil }
func (s *stubHoldingStore) Delete(ctx context.Context, id string) error         { return nil }

type stubYearlyStore struct {
	records []*models.YearlyRecord
}

func (s *stubYearlyStore) List(ctx context.Context) ([]*models.YearlyRecord, error) {
	return s.records, nil
}

func (s *stubYearlyStore) GetByYear(ctx context.Context, year int) (*models.YearlyRecord, error) {
	return nil, nil
}

func (s *stubYearlyStore) Create(ctx context.Context, r *models.YearlyRecord) error { return nil }
func (s *stubYearlyStore) Update(ctx context.Context, r *models.YearlyRecord) error { return nil }
func (s *stubYearlyStore) Delete(ctx context.Context, id string) error              { return nil }

type stubInternalStore struct {
	kv map[string]string
}

func (s *stubInternalStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	if v, ok := s.kv[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("system KV not found: %s", key)
}

func (s *stubInternalStore) SetSystemKV(ctx context.Context, key, value string) error {
	s.kv[key] = value
	return nil
}

type stubHistoryStore struct{}

func (s *stubHistoryStore) Append(ctx context.Context, rec *models.ActionHistory) error { return nil }
func (s *stubHistoryStore) Recent(ctx context.Context, limit int) ([]*models.ActionHistory, error) {
	return nil, nil
}

type stubPatternStore struct{}

func (s *stubPatternStore) GetByTemplate(ctx context.Context, template string) (*models.UserPattern, error) {
	return nil, nil
}
func (s *stubPatternStore) Upsert(ctx context.Context, p *models.UserPattern) error { return nil }
func (s *stubPatternStore) List(ctx context.Context) ([]*models.UserPattern, error) {
	return nil, nil
}

type stubStorage struct {
	holdings *stubHoldingStore
	yearly   *stubYearlyStore
	internal *stubInternalStore
}

func (s *stubStorage) HoldingStore() interfaces.HoldingStore             { return s.holdings }
func (s *stubStorage) YearlyDataStore() interfaces.YearlyDataStore       { return s.yearly }
func (s *stubStorage) ActionHistoryStore() interfaces.ActionHistoryStore { return &stubHistoryStore{} }
func (s *stubStorage) PatternStore() interfaces.PatternStore             { return &stubPatternStore{} }
func (s *stubStorage) InternalStore() interfaces.InternalStore           { return s.internal }
func (s *stubStorage) Close() error                                      { return nil }

type stubAgent struct {
	lastMessage string
	lastReqCtx  *interfaces.RequestContext
	lastPayload *models.ActionPayload
	resp        *models.AgentResponse
	execResult  *models.ExecResult
	undoResult  *models.ExecResult
}

func (s *stubAgent) ProcessMessage(ctx context.Context, message string, reqCtx *interfaces.RequestContext) *models.AgentResponse {
	s.lastMessage = message
	s.lastReqCtx = reqCtx
	return s.resp
}

func (s *stubAgent) ExecuteAction(ctx context.Context, payload *models.ActionPayload, userInput string) *models.ExecResult {
	s.lastPayload = payload
	return s.execResult
}

func (s *stubAgent) Undo(ctx context.Context) *models.ExecResult {
	return s.undoResult
}

type stubLearning struct {
	actions []*models.ActionHistory
}

func (s *stubLearning) StorePattern(ctx context.Context, template, example string, success bool) error {
	return nil
}

func (s *stubLearning) RelevantPatterns(ctx context.Context, input string) ([]*models.UserPattern, error) {
	return nil, nil
}

func (s *stubLearning) RecordAction(ctx context.Context, rec *models.ActionHistory) error {
	return nil
}

func (s *stubLearning) RecentActions(ctx context.Context, limit int) ([]*models.ActionHistory, error) {
	if limit < len(s.actions) {
		return s.actions[:limit], nil
	}
	return s.actions, nil
}

// --- Harness ---

func newTestServer(t *testing.T) (*Server, *stubAgent, *stubStorage) {
	t.Helper()

	storage := &stubStorage{
		holdings: &stubHoldingStore{},
		yearly:   &stubYearlyStore{},
		internal: &stubInternalStore{kv: map[string]string{}},
	}
	agent := &stubAgent{
		resp:       &models.AgentResponse{Action: models.AgentActionAnswer, Message: "ok"},
		execResult: &models.ExecResult{Success: true, Message: "done"},
		undoResult: &models.ExecResult{Success: true, Message: "undone"},
	}

	a := &app.App{
		Config:   common.NewDefaultConfig(),
		Logger:   common.NewSilentLogger(),
		Storage:  storage,
		Agent:    agent,
		Learning: &stubLearning{},
	}
	return NewServer(a), agent, storage
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// --- Agent endpoint tests ---

func TestHandleAgentMessage_Valid(t *testing.T) {
	srv, agent, storage := newTestServer(t)
	storage.holdings.holdings = []*models.Holding{
		{ID: "h1", Symbol: "AAPL", Name: "Apple Inc", Quantity: 10},
	}
	agent.resp = &models.AgentResponse{
		Action:               models.AgentActionConfirm,
		Message:              "Add 10 AAPL?",
		Confidence:           0.9,
		RequiresConfirmation: true,
	}

	body := jsonBody(t, map[string]string{"message": "add 10 shares of AAPL at 150"})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/message", body)
	rec := httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.AgentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.AgentActionConfirm, resp.Action)
	assert.True(t, resp.RequiresConfirmation)

	require.NotNil(t, agent.lastReqCtx)
	assert.Equal(t, "add 10 shares of AAPL at 150", agent.lastMessage)
	require.Len(t, agent.lastReqCtx.Holdings, 1)
	assert.Equal(t, "AAPL", agent.lastReqCtx.Holdings[0].Symbol)
	assert.Equal(t, "SGD", agent.lastReqCtx.DisplayCurrency)
}

func TestHandleAgentMessage_EmptyMessage(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := jsonBody(t, map[string]string{"message": "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/message", body)
	rec := httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgentMessage_InvalidJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/agent/message", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgentMessage_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/agent/message", nil)
	rec := httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleAgentMessage_CurrencyResolution(t *testing.T) {
	srv, agent, storage := newTestServer(t)
	storage.internal.kv["display_currency"] = "INR"

	// Header beats system KV
	body := jsonBody(t, map[string]string{"message": "show my portfolio"})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/message", body)
	req.Header.Set("X-Folio-Display-Currency", "usd")
	rec := httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "USD", agent.lastReqCtx.DisplayCurrency)

	// System KV when no header
	body = jsonBody(t, map[string]string{"message": "show my portfolio"})
	req = httptest.NewRequest(http.MethodPost, "/api/agent/message", body)
	rec = httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INR", agent.lastReqCtx.DisplayCurrency)
}

func TestHandleAgentMessage_SessionFromHeader(t *testing.T) {
	srv, agent, _ := newTestServer(t)

	body := jsonBody(t, map[string]string{"message": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/message", body)
	req.Header.Set("X-Folio-Session-ID", "sess-42")
	rec := httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-42", agent.lastReqCtx.SessionID)
}

func TestHandleAgentMessage_StorageError(t *testing.T) {
	srv, _, storage := newTestServer(t)
	storage.holdings.listErr = fmt.Errorf("connection refused")

	body := jsonBody(t, map[string]string{"message": "add 10 AAPL"})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/message", body)
	rec := httptest.NewRecorder()
	srv.handleAgentMessage(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleAgentExecute_Valid(t *testing.T) {
	srv, agent, _ := newTestServer(t)

	body := jsonBody(t, ExecuteRequest{
		Payload: &models.ActionPayload{
			Kind: models.ActionAddHolding,
			Add:  &models.AddHoldingPayload{Symbol: "META", Quantity: 100, UnitPrice: 300},
		},
		UserInput: "add 100 shares of META at $300",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/execute", body)
	rec := httptest.NewRecorder()
	srv.handleAgentExecute(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, agent.lastPayload)
	assert.Equal(t, models.ActionAddHolding, agent.lastPayload.Kind)
	assert.Equal(t, "META", agent.lastPayload.Add.Symbol)
}

func TestHandleAgentExecute_MissingPayload(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := jsonBody(t, map[string]string{"user_input": "do something"})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/execute", body)
	rec := httptest.NewRecorder()
	srv.handleAgentExecute(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgentExecute_Failure(t *testing.T) {
	srv, agent, _ := newTestServer(t)
	agent.execResult = &models.ExecResult{Success: false, Message: "cannot reduce more than held"}

	body := jsonBody(t, ExecuteRequest{
		Payload: &models.ActionPayload{
			Kind:   models.ActionReduceHolding,
			Reduce: &models.ReduceHoldingPayload{Symbol: "AAPL", Quantity: 999},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/agent/execute", body)
	rec := httptest.NewRecorder()
	srv.handleAgentExecute(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleAgentUndo(t *testing.T) {
	srv, agent, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/agent/undo", nil)
	rec := httptest.NewRecorder()
	srv.handleAgentUndo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	agent.undoResult = &models.ExecResult{Success: false, Message: "nothing to undo"}
	req = httptest.NewRequest(http.MethodPost, "/api/agent/undo", nil)
	rec = httptest.NewRecorder()
	srv.handleAgentUndo(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// --- Data endpoint tests ---

func TestHandleHoldingsList(t *testing.T) {
	srv, _, storage := newTestServer(t)
	storage.holdings.holdings = []*models.Holding{
		{ID: "h1", Symbol: "AAPL"},
		{ID: "h2", Symbol: "BTC"},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/holdings", nil)
	rec := httptest.NewRecorder()
	srv.handleHoldingsList(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Holdings []models.Holding `json:"holdings"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Holdings, 2)
	assert.Equal(t, "AAPL", resp.Holdings[0].Symbol)
}

func TestHandleYearlyList(t *testing.T) {
	srv, _, storage := newTestServer(t)
	storage.yearly.records = []*models.YearlyRecord{
		{ID: "y1", Year: 2024, Income: 120000},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/yearly", nil)
	rec := httptest.NewRecorder()
	srv.handleYearlyList(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		YearlyData []models.YearlyRecord `json:"yearly_data"`
		Count      int                   `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 2024, resp.YearlyData[0].Year)
}

func TestHandleHistoryList(t *testing.T) {
	srv, _, _ := newTestServer(t)
	learning := srv.app.Learning.(*stubLearning)
	for i := 0; i < 15; i++ {
		learning.actions = append(learning.actions, &models.ActionHistory{
			ID:          fmt.Sprintf("a%d", i),
			ActionTaken: models.ActionAddHolding,
			Success:     true,
			Timestamp:   time.Now(),
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.handleHistoryList(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		History []models.ActionHistory `json:"history"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 10, resp.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/history?limit=3", nil)
	rec = httptest.NewRecorder()
	srv.handleHistoryList(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
}

// --- System endpoint tests ---

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestHandleConfig_MasksSecrets(t *testing.T) {
	srv, _, storage := newTestServer(t)
	storage.internal.kv["gemini_api_key"] = "super-secret-key-1234"

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	srv.handleConfig(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	settings := resp["runtime_settings"].(map[string]interface{})
	masked := settings["gemini_api_key"].(string)
	assert.NotContains(t, masked, "super-secret")
	assert.Contains(t, masked, "1234")
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/agent/message", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

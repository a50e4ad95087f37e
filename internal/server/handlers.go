package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

// --- Agent handlers ---

// MessageRequest is the body for POST /api/agent/message.
type MessageRequest struct {
	Message         string                   `json:"message"`
	SessionID       string                   `json:"session_id,omitempty"`
	DisplayCurrency string                   `json:"display_currency,omitempty"`
	Profile         *models.FinancialProfile `json:"profile,omitempty"`
}

func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req MessageRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "Field 'message' is required")
		return
	}

	reqCtx, err := s.buildRequestContext(r, &req)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error loading portfolio: %v", err))
		return
	}

	resp := s.app.Agent.ProcessMessage(r.Context(), req.Message, reqCtx)
	WriteJSON(w, http.StatusOK, resp)
}

// ExecuteRequest is the body for POST /api/agent/execute. Callers that manage
// their own confirmation flow submit the resolved payload directly.
type ExecuteRequest struct {
	Payload   *models.ActionPayload `json:"payload"`
	UserInput string                `json:"user_input,omitempty"`
}

func (s *Server) handleAgentExecute(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ExecuteRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Payload == nil || req.Payload.Kind == "" {
		WriteError(w, http.StatusBadRequest, "Field 'payload' with an action kind is required")
		return
	}

	result := s.app.Agent.ExecuteAction(r.Context(), req.Payload, req.UserInput)
	if !result.Success {
		WriteJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleAgentUndo(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	result := s.app.Agent.Undo(r.Context())
	if !result.Success {
		WriteJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// --- Portfolio data handlers ---

func (s *Server) handleHoldingsList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	holdings, err := s.app.Storage.HoldingStore().List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing holdings: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	})
}

func (s *Server) handleYearlyList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	records, err := s.app.Storage.YearlyDataStore().List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing yearly data: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"yearly_data": records,
		"count":       len(records),
	})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.app.Learning.RecentActions(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing action history: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": records,
		"count":   len(records),
	})
}

// --- Request context assembly ---

// buildRequestContext loads the caller's portfolio state for one message.
func (s *Server) buildRequestContext(r *http.Request, req *MessageRequest) (*interfaces.RequestContext, error) {
	ctx := r.Context()

	holdingPtrs, err := s.app.Storage.HoldingStore().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	holdings := make([]models.Holding, 0, len(holdingPtrs))
	for _, h := range holdingPtrs {
		holdings = append(holdings, *h)
	}

	yearlyPtrs, err := s.app.Storage.YearlyDataStore().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list yearly data: %w", err)
	}
	yearly := make([]models.YearlyRecord, 0, len(yearlyPtrs))
	for _, y := range yearlyPtrs {
		yearly = append(yearly, *y)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get("X-Folio-Session-ID")
	}

	currency := req.DisplayCurrency
	if currency == "" {
		currency = s.resolveDisplayCurrency(r)
	}

	return &interfaces.RequestContext{
		SessionID:       sessionID,
		Holdings:        holdings,
		YearlyData:      yearly,
		Profile:         req.Profile,
		DisplayCurrency: currency,
	}, nil
}

// resolveDisplayCurrency picks the display currency for one request:
// header override, then system KV, then config default.
func (s *Server) resolveDisplayCurrency(r *http.Request) string {
	if c := normalizeCurrency(r.Header.Get("X-Folio-Display-Currency")); c != "" {
		return c
	}
	if v, err := s.app.Storage.InternalStore().GetSystemKV(r.Context(), "display_currency"); err == nil {
		if c := normalizeCurrency(v); c != "" {
			return c
		}
	}
	return s.app.Config.DisplayCurrency
}

func normalizeCurrency(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "SGD":
		return "SGD"
	case "USD":
		return "USD"
	case "INR":
		return "INR"
	}
	return ""
}

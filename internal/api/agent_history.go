package api

import (
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/storage"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// HistoryHandler serves persisted call, decision and agent records
type HistoryHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(store storage.Store, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: logger.With().Str("component", "history_handler").Logger(),
	}
}

// dateParam reads ?date=YYYY-MM-DD, defaulting to today in UTC
func dateParam(r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return time.Now().UTC().Format("2006-01-02"), true
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", false
	}
	return date, true
}

// AgentStats returns archived daily stats for an agent
// GET /api/agents/{agentId}/history
func (h *HistoryHandler) AgentStats(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	stats, err := h.store.GetAgentDailyStats(agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to get agent daily stats")
		writeError(w, http.StatusInternalServerError, "failed to retrieve history")
		return
	}
	if stats == nil {
		stats = []types.AgentDailyStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// AgentCalls returns the calls an agent handled on a date
// GET /api/agents/{agentId}/calls?date=YYYY-MM-DD
func (h *HistoryHandler) AgentCalls(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	date, ok := dateParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.store.GetAgentCallsByDate(agentID, date)
	if err != nil {
		h.logger.Error().Err(err).
			Str("agent_id", agentID).
			Str("date", date).
			Msg("failed to get agent calls")
		writeError(w, http.StatusInternalServerError, "failed to retrieve calls")
		return
	}
	if records == nil {
		records = []types.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Calls returns every call record of a date
// GET /api/history/calls?date=YYYY-MM-DD
func (h *HistoryHandler) Calls(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.store.GetCallRecords(date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get call records")
		writeError(w, http.StatusInternalServerError, "failed to retrieve calls")
		return
	}
	if records == nil {
		records = []types.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Decisions returns every routing decision of a date
// GET /api/history/decisions?date=YYYY-MM-DD
func (h *HistoryHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.store.GetDecisionRecords(date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get decision records")
		writeError(w, http.StatusInternalServerError, "failed to retrieve decisions")
		return
	}
	if records == nil {
		records = []types.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

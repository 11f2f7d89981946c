package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dennisdiepolder/monti/callrouter/internal/router"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentActionsHandler provides REST endpoints for agent status and call completion
type AgentActionsHandler struct {
	router *router.Router
	logger zerolog.Logger
}

// NewAgentActionsHandler creates a new AgentActionsHandler
func NewAgentActionsHandler(r *router.Router, logger zerolog.Logger) *AgentActionsHandler {
	return &AgentActionsHandler{
		router: r,
		logger: logger.With().Str("component", "agent_actions").Logger(),
	}
}

// UpdateStatus handles PUT /api/agents/{agentId}/status
func (h *AgentActionsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	var req struct {
		Status types.AgentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.router.UpdateAgentStatus(agentID, req.Status); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	agent, err := h.router.GetAgentSnapshot(agentID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// CompleteCall handles POST /api/agents/{agentId}/complete. The body is an
// optional call outcome; an empty body completes the current call with the
// measured handle time.
func (h *AgentActionsHandler) CompleteCall(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	var outcome types.CallOutcome
	if err := json.NewDecoder(r.Body).Decode(&outcome); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	agent, err := h.router.CompleteCall(agentID, outcome)
	if err != nil {
		h.logger.Debug().Err(err).Str("agent_id", agentID).Msg("call completion rejected")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

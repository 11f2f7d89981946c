package api

import (
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/monti/callrouter/internal/router"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RosterHandler handles agent registration and lookup
type RosterHandler struct {
	router *router.Router
	logger zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler
func NewRosterHandler(r *router.Router, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		router: r,
		logger: logger.With().Str("component", "roster").Logger(),
	}
}

// List handles GET /api/agents
func (h *RosterHandler) List(w http.ResponseWriter, r *http.Request) {
	agents := h.router.ListAgents()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalAgents": len(agents),
		"agents":      agents,
	})
}

// Get handles GET /api/agents/{agentId}
func (h *RosterHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, err := h.router.GetAgentSnapshot(chi.URLParam(r, "agentId"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// Register handles POST /api/agents with a single agent
func (h *RosterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var agent types.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.router.RegisterAgent(agent); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	registered, err := h.router.GetAgentSnapshot(agent.ID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, registered)
}

// HandleRoster handles POST /api/agents/roster with a list of agents.
// Agents that fail validation are reported and the rest are registered.
func (h *RosterHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	var roster []types.Agent
	if err := json.NewDecoder(r.Body).Decode(&roster); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	registered := 0
	var errs []error
	for _, agent := range roster {
		if err := h.router.RegisterAgent(agent); err != nil {
			errs = append(errs, err)
			continue
		}
		registered++
	}

	h.logger.Info().Int("registered", registered).Int("rejected", len(errs)).Msg("roster received")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"registered": registered,
		"errors":     errorStrings(errs),
	})
}

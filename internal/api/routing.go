package api

import (
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/monti/callrouter/internal/router"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RoutingHandler exposes routing decisions and call lifecycle events
type RoutingHandler struct {
	router *router.Router
	logger zerolog.Logger
}

// NewRoutingHandler creates a new RoutingHandler
func NewRoutingHandler(r *router.Router, logger zerolog.Logger) *RoutingHandler {
	return &RoutingHandler{
		router: r,
		logger: logger.With().Str("component", "routing_handler").Logger(),
	}
}

// RouteCall handles POST /api/route
func (h *RoutingHandler) RouteCall(w http.ResponseWriter, r *http.Request) {
	var cc types.CallContext
	if err := json.NewDecoder(r.Body).Decode(&cc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if cc.CallerID == "" {
		writeError(w, http.StatusBadRequest, "callerId is required")
		return
	}

	writeJSON(w, http.StatusOK, h.router.RouteCall(cc))
}

// Abandon handles POST /api/calls/{callId}/abandon. Repeating it is harmless.
func (h *RoutingHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")
	removed := h.router.AbandonCall(callID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"callId":  callID,
		"removed": removed,
	})
}

// Callback handles POST /api/calls/{callId}/callback
func (h *RoutingHandler) Callback(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	d, err := h.router.RequestCallback(callID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CallMetrics handles GET /api/metrics/calls
func (h *RoutingHandler) CallMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.router.CallMetrics())
}

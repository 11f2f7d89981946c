package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/dennisdiepolder/monti/callrouter/internal/router"
	"github.com/dennisdiepolder/monti/callrouter/internal/rules"
	"github.com/dennisdiepolder/monti/callrouter/internal/storage"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
)

// AdminHandler manages routing rules, queue configuration and stored data
type AdminHandler struct {
	router    *router.Router
	store     storage.Store
	rulesFile string
	logger    zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler. rulesFile may be empty when
// the engine runs without a routing file.
func NewAdminHandler(r *router.Router, store storage.Store, rulesFile string, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		router:    r,
		store:     store,
		rulesFile: rulesFile,
		logger:    logger.With().Str("component", "admin").Logger(),
	}
}

// GetRules handles GET /api/rules
func (h *AdminHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	rs := h.router.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalRules": len(rs),
		"rules":      rs,
	})
}

// ReloadRules handles POST /api/rules/reload. A JSON array body replaces the
// rule set directly; an empty body re-reads the routing file.
func (h *AdminHandler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	var rs []types.RoutingRule
	err := json.NewDecoder(r.Body).Decode(&rs)
	switch {
	case err == nil:
		errs := h.router.ReloadRules(rs)
		h.logger.Info().Int("rules", len(rs)).Int("invalid", len(errs)).Msg("rules replaced via API")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"rules":  len(rs),
			"errors": errorStrings(errs),
		})

	case errors.Is(err, io.EOF):
		if h.rulesFile == "" {
			writeError(w, http.StatusBadRequest, "no routing file configured, send rules in the body")
			return
		}
		f, err := rules.LoadFile(h.rulesFile)
		if err != nil {
			h.logger.Error().Err(err).Str("path", h.rulesFile).Msg("routing file reload failed")
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		errs := h.router.ApplyConfig(f)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"rules":  len(f.Rules),
			"queues": len(f.Queues),
			"agents": len(f.Agents),
			"errors": errorStrings(errs),
		})

	default:
		writeError(w, http.StatusBadRequest, "invalid JSON")
	}
}

// ConfigureQueues handles PUT /api/queues
func (h *AdminHandler) ConfigureQueues(w http.ResponseWriter, r *http.Request) {
	var cfgs []callqueue.Config
	if err := json.NewDecoder(r.Body).Decode(&cfgs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	errs := h.router.ConfigureQueues(cfgs)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queues": len(cfgs),
		"errors": errorStrings(errs),
	})
}

// ResetDaily handles POST /api/admin/reset-daily
func (h *AdminHandler) ResetDaily(w http.ResponseWriter, r *http.Request) {
	n := h.router.ResetDaily()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "daily counters reset",
		"agents":  n,
	})
}

// WipeStorage handles DELETE /api/admin/storage
func (h *AdminHandler) WipeStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate DynamoDB tables")
		writeError(w, http.StatusInternalServerError, "failed to truncate: "+err.Error())
		return
	}

	h.logger.Info().Msg("DynamoDB tables truncated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "DynamoDB tables truncated",
	})
}

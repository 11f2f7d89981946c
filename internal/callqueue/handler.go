package callqueue

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves read-only queue views over HTTP
type Handler struct {
	mgr    *Manager
	logger zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(mgr *Manager, logger zerolog.Logger) *Handler {
	return &Handler{
		mgr:    mgr,
		logger: logger,
	}
}

// HandleList returns every queue
// GET /api/queues
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	queues := h.mgr.GetAll()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"totalQueues": len(queues),
		"queues":      queues,
	})
}

// HandleGet returns a single queue snapshot
// GET /api/queues/{queueId}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")
	if queueID == "" {
		http.Error(w, "missing queueId", http.StatusBadRequest)
		return
	}

	snapshot, err := h.mgr.Snapshot(queueID)
	if errors.Is(err, ErrQueueNotFound) {
		http.Error(w, "queue not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("queue_id", queueID).Msg("failed to read queue")
		http.Error(w, "failed to read queue", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

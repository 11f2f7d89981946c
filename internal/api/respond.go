package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/dennisdiepolder/monti/callrouter/internal/directory"
	"github.com/dennisdiepolder/monti/callrouter/internal/router"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, directory.ErrAgentNotFound),
		errors.Is(err, callqueue.ErrQueueNotFound),
		errors.Is(err, router.ErrCallNotQueued):
		return http.StatusNotFound
	case errors.Is(err, directory.ErrInvalidStatus),
		errors.Is(err, directory.ErrMissingID):
		return http.StatusBadRequest
	case errors.Is(err, directory.ErrInvalidTransition),
		errors.Is(err, directory.ErrCallInProgress),
		errors.Is(err, directory.ErrCallMismatch),
		errors.Is(err, directory.ErrAgentUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

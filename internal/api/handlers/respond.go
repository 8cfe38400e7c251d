package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUpstream), errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrQueueUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with {"error": msg}. Unclassified errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
		msg = "internal server error"
	} else if status >= 500 {
		log.Warn("Request failed", "status", status, "error", err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body: %w", models.ErrInvalidInput, err)
	}
	return nil
}

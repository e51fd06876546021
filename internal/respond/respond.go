package respond

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

func JSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func Message(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	JSON(w, logger, status, map[string]string{"error": message})
}

// Error writes err using the status of its domain error kind. Unclassified errors are hidden
// behind a generic message.
func Error(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "storage unavailable, retry the request"
	case http.StatusInternalServerError:
		message = "internal server error"
	}
	Message(w, logger, status, message)
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Health reports 200 while check succeeds and 503 otherwise.
func Health(logger *slog.Logger, check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if check != nil {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				JSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		JSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

package orders

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/respond"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Message(w, h.logger, http.StatusUnauthorized, "unauthenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		respond.Message(w, h.logger, http.StatusBadRequest, "missing order id")
		return
	}

	var req Transition
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Transition(r.Context(), requester, id, req)
	if err != nil {
		if respond.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("failed to update order status", "error", err, "id", id)
		}
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, order)
}

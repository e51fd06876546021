package checkout

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

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Message(w, h.logger, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Checkout(r.Context(), requester.UserID, req)
	if err != nil {
		if respond.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("checkout failed", "error", err, "user_id", requester.UserID)
		}
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, order)
}

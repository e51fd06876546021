package history

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/respond"
)

type Handler struct {
	projection *Projection
	logger     *slog.Logger
}

func NewHandler(projection *Projection, logger *slog.Logger) *Handler {
	return &Handler{
		projection: projection,
		logger:     logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Message(w, h.logger, http.StatusUnauthorized, "unauthenticated")
		return
	}

	list, err := h.projection.ListOrders(r.Context(), requester)
	if err != nil {
		if respond.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("failed to list orders", "error", err, "user_id", requester.UserID)
		}
		respond.Error(w, h.logger, err)
		return
	}

	h.logger.Info("orders listed", "count", len(list.Data), "is_admin", list.IsAdmin)
	respond.JSON(w, h.logger, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	view, err := h.projection.GetOrderSummary(r.Context(), id, requester)
	if err != nil {
		if respond.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("failed to get order", "error", err, "id", id)
		}
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, view)
}

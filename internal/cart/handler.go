package cart

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

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Message(w, h.logger, http.StatusUnauthorized, "unauthenticated")
		return
	}

	summary, err := h.service.ComputeTotals(r.Context(), requester.UserID)
	if err != nil {
		h.logger.Error("failed to compute cart totals", "error", err, "user_id", requester.UserID)
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, summary)
}

type addRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Message(w, h.logger, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.AddOrIncrement(r.Context(), requester.UserID, req.ProductID, req.Quantity); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.writeCart(w, r, requester.UserID)
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Message(w, h.logger, http.StatusUnauthorized, "unauthenticated")
		return
	}

	productID := r.PathValue("productId")

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "quantity is required")
		return
	}

	if err := h.service.SetQuantity(r.Context(), requester.UserID, productID, *req.Quantity); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.writeCart(w, r, requester.UserID)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Message(w, h.logger, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := h.service.RemoveLine(r.Context(), requester.UserID, r.PathValue("productId")); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.writeCart(w, r, requester.UserID)
}

// writeCart answers a committed mutation with the updated cart. When the cart cannot be priced
// afterwards the mutation still stands, so the reply is 204 and the client re-reads the cart.
func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, userID string) {
	summary, err := h.service.ComputeTotals(r.Context(), userID)
	if err != nil {
		h.logger.Warn("cart updated but totals unavailable", "error", err, "user_id", userID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, summary)
}

package catalog

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/respond"
)

type ProductReader interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Handler struct {
	products ProductReader
	logger   *slog.Logger
}

func NewHandler(products ProductReader, logger *slog.Logger) *Handler {
	return &Handler{
		products: products,
		logger:   logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respond.Message(w, h.logger, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, product)
}

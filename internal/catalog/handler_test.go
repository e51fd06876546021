package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type stubProducts map[string]domain.Product

func (s stubProducts) List(context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	return out, nil
}

func (s stubProducts) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, domain.NotFound("product", id)
	}
	return &p, nil
}

func newTestMux() *http.ServeMux {
	products := stubProducts{
		"PROD-001": {ID: "PROD-001", Name: "Mechanical Keyboard", Price: decimal.RequireFromString("89.90")},
	}
	handler := NewHandler(products, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/products", handler.HandleList)
	mux.HandleFunc("GET /api/v1/products/{id}", handler.HandleGet)
	return mux
}

func TestHandler_HandleList(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].ID != "PROD-001" {
		t.Errorf("unexpected products: %+v", resp.Products)
	}
}

func TestHandler_HandleGet(t *testing.T) {
	t.Run("returns product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/PROD-001", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var p domain.Product
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !p.Price.Equal(decimal.RequireFromString("89.90")) {
			t.Errorf("expected price 89.90, got %s", p.Price)
		}
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/nope", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/joao-fontenele/cartflow/internal/respond"
)

type Handler struct {
	storefrontProxy *ServiceProxy
	ordersProxy     *ServiceProxy
	logger          *slog.Logger
}

func NewHandler(storefrontProxy, ordersProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		storefrontProxy: storefrontProxy,
		ordersProxy:     ordersProxy,
		logger:          logger,
	}
}

// HandleStorefront forwards catalog, cart and checkout requests.
func (h *Handler) HandleStorefront(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storefrontProxy)
}

// HandleOrders forwards order history and status requests.
func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy) {
	path := r.URL.Path

	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			h.logger.Warn("upstream circuit open", "upstream", proxy.Name(), "path", path)
			respond.Message(w, h.logger, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		h.logger.Error("failed to forward request", "error", err, "upstream", proxy.Name(), "path", path)
		respond.Message(w, h.logger, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "upstream", proxy.Name(), "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

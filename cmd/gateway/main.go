package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/cartflow/internal/config"
	"github.com/joao-fontenele/cartflow/internal/gateway"
	"github.com/joao-fontenele/cartflow/internal/respond"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

const version = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.Load(); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	required := config.NewRequired()
	storefrontServiceURL := required.Get("STOREFRONT_SERVICE_URL")
	ordersServiceURL := required.Get("ORDERS_SERVICE_URL")
	if err := required.Err(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "gateway",
		ServiceVersion: version,
		OTLPEndpoint:   config.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	httpClient := telemetry.HTTPClient(10 * time.Second)

	storefrontProxy := gateway.NewServiceProxy("storefront", storefrontServiceURL, httpClient, logger)
	ordersProxy := gateway.NewServiceProxy("orders", ordersServiceURL, httpClient, logger)
	handler := gateway.NewHandler(storefrontProxy, ordersProxy, logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /api/v1/products", handler.HandleStorefront)
	route("GET /api/v1/products/{id}", handler.HandleStorefront)
	route("GET /api/v1/cart", handler.HandleStorefront)
	route("POST /api/v1/cart", handler.HandleStorefront)
	route("PUT /api/v1/cart/{productId}", handler.HandleStorefront)
	route("DELETE /api/v1/cart/{productId}", handler.HandleStorefront)
	route("POST /api/v1/checkout", handler.HandleStorefront)
	route("GET /api/v1/orders", handler.HandleOrders)
	route("GET /api/v1/orders/{id}", handler.HandleOrders)
	route("PUT /api/v1/orders/{id}/status", handler.HandleOrders)
	mux.Handle("GET /healthz", respond.Health(logger, nil))
	mux.Handle("GET /metrics", tel.MetricsHandler)

	port := config.Get("PORT", "8080")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      telemetry.HTTPHandler(mux, "gateway"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

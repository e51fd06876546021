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
	"github.com/joao-fontenele/cartflow/internal/email"
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

	latency, err := time.ParseDuration(config.Get("EMAIL_LATENCY", "100ms"))
	if err != nil {
		logger.Error("invalid EMAIL_LATENCY", "error", err)
		os.Exit(1)
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "email",
		ServiceVersion: version,
		OTLPEndpoint:   config.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	handler := email.NewHandler(logger, latency)

	mux := http.NewServeMux()
	mux.Handle("POST /send", telemetry.WithHTTPRoute(http.HandlerFunc(handler.HandleSend)))
	mux.Handle("GET /healthz", respond.Health(logger, nil))
	mux.Handle("GET /metrics", tel.MetricsHandler)

	port := config.Get("PORT", "8084")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      telemetry.HTTPHandler(mux, "email"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting email service", "port", port)
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

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/cartflow/internal/config"
	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/messaging"
	"github.com/joao-fontenele/cartflow/internal/respond"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
	"github.com/joao-fontenele/cartflow/internal/worker"
)

const (
	version = "0.1.0"
	groupID = "notification-worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.Load(); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	required := config.NewRequired()
	required.Get("KAFKA_BROKERS")
	emailServiceURL := required.Get("EMAIL_SERVICE_URL")
	if err := required.Err(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	brokers := config.List("KAFKA_BROKERS")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "worker",
		ServiceVersion: version,
		OTLPEndpoint:   config.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	notifications := worker.NewNotificationHandler(
		emailServiceURL,
		config.Get("EMAIL_DOMAIN", "example.com"),
		telemetry.HTTPClient(10*time.Second),
		logger,
	)

	placed := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, groupID, logger)
	defer func() { _ = placed.Close() }()
	statusChanged := messaging.NewConsumer(brokers, domain.TopicOrderStatusChanged, groupID, logger)
	defer func() { _ = statusChanged.Close() }()

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", respond.Health(logger, nil))
	mux.Handle("GET /metrics", tel.MetricsHandler)
	server := &http.Server{
		Addr:         ":" + config.Get("PORT", "8085"),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("starting notification worker", "brokers", brokers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return placed.Consume(gctx, notifications.HandleOrderPlaced)
	})
	g.Go(func() error {
		return statusChanged.Consume(gctx, notifications.HandleStatusChanged)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

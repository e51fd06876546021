package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/config"
	"github.com/joao-fontenele/cartflow/internal/history"
	"github.com/joao-fontenele/cartflow/internal/messaging"
	"github.com/joao-fontenele/cartflow/internal/orders"
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
	postgresURL := required.Get("POSTGRES_URL")
	jwtSecret := required.Get("JWT_SECRET")
	if err := required.Err(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	policy, err := orders.ParsePolicy(config.Get("ORDER_TRANSITION_POLICY", ""))
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "orders",
		ServiceVersion: version,
		OTLPEndpoint:   config.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var publisher orders.EventPublisher
	if brokers := config.List("KAFKA_BROKERS"); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	repo := orders.NewOrderRepository(db)

	orderService, err := orders.NewService(repo, orders.NewStateMachine(policy), publisher, logger)
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}

	projection := history.NewProjection(repo, catalog.NewProductRepository(db), logger)

	verifier := auth.NewVerifier(jwtSecret, logger)
	historyHandler := history.NewHandler(projection, logger)
	orderHandler := orders.NewHandler(orderService, logger)

	mux := http.NewServeMux()
	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(verifier.Wrap(h)))
	}

	private("GET /api/v1/orders", historyHandler.HandleList)
	private("GET /api/v1/orders/{id}", historyHandler.HandleGet)
	private("PUT /api/v1/orders/{id}/status", orderHandler.HandleUpdateStatus)
	mux.Handle("GET /healthz", respond.Health(logger, db.PingContext))
	mux.Handle("GET /metrics", tel.MetricsHandler)

	port := config.Get("PORT", "8082")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      telemetry.HTTPHandler(mux, "orders"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", port, "transition_policy", policy)
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

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/cart"
	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/checkout"
	"github.com/joao-fontenele/cartflow/internal/config"
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

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "storefront",
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

	var cache cart.Cache
	if addr := config.Get("REDIS_ADDR", ""); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, cart cache disabled", "error", err, "addr", addr)
		} else {
			cache = cart.NewRedisCache(client)
		}
	}

	var publisher orders.EventPublisher
	if brokers := config.List("KAFKA_BROKERS"); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	products := catalog.NewProductRepository(db)

	cartService, err := cart.NewService(cart.NewCartRepository(db), cache, products, logger)
	if err != nil {
		logger.Error("failed to create cart service", "error", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.NewPostgresUnitOfWork(db), cartService, publisher, logger)
	if err != nil {
		logger.Error("failed to create checkout service", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(jwtSecret, logger)
	catalogHandler := catalog.NewHandler(products, logger)
	cartHandler := cart.NewHandler(cartService, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, logger)

	mux := http.NewServeMux()
	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(h))
	}
	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(verifier.Wrap(h)))
	}

	public("GET /api/v1/products", catalogHandler.HandleList)
	public("GET /api/v1/products/{id}", catalogHandler.HandleGet)
	private("GET /api/v1/cart", cartHandler.HandleGet)
	private("POST /api/v1/cart", cartHandler.HandleAdd)
	private("PUT /api/v1/cart/{productId}", cartHandler.HandleSetQuantity)
	private("DELETE /api/v1/cart/{productId}", cartHandler.HandleRemove)
	private("POST /api/v1/checkout", checkoutHandler.HandleCheckout)
	mux.Handle("GET /healthz", respond.Health(logger, db.PingContext))
	mux.Handle("GET /metrics", tel.MetricsHandler)

	port := config.Get("PORT", "8081")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      telemetry.HTTPHandler(mux, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", port)
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

//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/cart"
	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/checkout"
	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/messaging"
	"github.com/joao-fontenele/cartflow/internal/testutil"
)

const checkoutRequest = `{
	"shipping_address": {"recipient": "Ada", "street": "1 Main St", "city": "London", "postal_code": "N1", "country": "UK"},
	"billing_address": {"recipient": "Ada", "street": "1 Main St", "city": "London", "postal_code": "N1", "country": "UK"},
	"payment_method": "credit_card"
}`

func TestIntegration_CheckoutSendsConfirmation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db := testutil.Postgres(ctx, t)
	brokers := testutil.Kafka(ctx, t, domain.TopicOrderPlaced)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	carts, err := cart.NewService(cart.NewCartRepository(db), nil, catalog.NewProductRepository(db), logger)
	if err != nil {
		t.Fatalf("failed to create cart service: %v", err)
	}
	checkoutService, err := checkout.NewService(checkout.NewPostgresUnitOfWork(db), carts, producer, logger)
	if err != nil {
		t.Fatalf("failed to create checkout service: %v", err)
	}
	checkoutHandler := checkout.NewHandler(checkoutService, logger)

	recorder := &emailRecorder{}
	emailServer := recorder.server(t)
	notifications := NewNotificationHandler(emailServer.URL, "example.com", &http.Client{Timeout: 10 * time.Second}, logger)

	if err := carts.AddOrIncrement(ctx, "cust-123", "PROD-003", 3); err != nil {
		t.Fatalf("failed to fill cart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutRequest))
	req = req.WithContext(auth.WithRequester(req.Context(), domain.Requester{UserID: "cust-123"}))
	rec := httptest.NewRecorder()
	checkoutHandler.HandleCheckout(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var placed domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&placed); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, "test-notifications", logger,
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithTimeout(ctx, 30*time.Second)
	defer stop()
	err = consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
		defer stop()
		return notifications.HandleOrderPlaced(ctx, payload)
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.messages) != 1 {
		t.Fatalf("expected 1 email, got %d", len(recorder.messages))
	}

	email := recorder.messages[0]
	if email.To != "cust-123@example.com" {
		t.Errorf("unexpected recipient %s", email.To)
	}
	if !strings.Contains(email.Subject, placed.ID) {
		t.Errorf("expected subject to contain order ID %s, got: %s", placed.ID, email.Subject)
	}
	// 3 × 19.99
	if !strings.Contains(email.Body, "59.97") {
		t.Errorf("expected body to state the total, got: %s", email.Body)
	}
}

//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/testutil"
)

func TestIntegration_ProducerConsumer(t *testing.T) {
	ctx := context.Background()
	brokers := testutil.Kafka(ctx, t, domain.TopicOrderPlaced, domain.TopicOrderStatusChanged)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer := NewProducer(brokers)
	t.Cleanup(func() { _ = producer.Close() })

	t.Run("delivers event with trace context", func(t *testing.T) {
		pubCtx, span := otel.Tracer("test").Start(ctx, "checkout")
		wantTrace := span.SpanContext().TraceID()
		event := domain.OrderPlacedEvent{
			OrderID:     "order-1",
			UserID:      "user-1",
			TotalAmount: decimal.RequireFromString("161.00"),
			Timestamp:   time.Now().UTC(),
		}
		err := producer.Publish(pubCtx, event.OrderID, event)
		span.End()
		if err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		consumer := NewConsumer(brokers, domain.TopicOrderPlaced, "test-placed", logger,
			WithStartOffset(kafka.FirstOffset))
		defer func() { _ = consumer.Close() }()

		consumeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		var got domain.OrderPlacedEvent
		var gotTrace trace.TraceID
		err = consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
			if err := json.Unmarshal(payload, &got); err != nil {
				return err
			}
			gotTrace = trace.SpanContextFromContext(ctx).TraceID()
			cancel()
			return nil
		})
		if err != nil {
			t.Fatalf("consume failed: %v", err)
		}

		if got.OrderID != "order-1" {
			t.Fatalf("expected order-1, got %q", got.OrderID)
		}
		if !got.TotalAmount.Equal(event.TotalAmount) {
			t.Errorf("expected total %s, got %s", event.TotalAmount, got.TotalAmount)
		}
		if gotTrace != wantTrace {
			t.Errorf("expected trace %s, got %s", wantTrace, gotTrace)
		}
	})

	t.Run("skips message after exhausting retries", func(t *testing.T) {
		for _, status := range []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusShipped} {
			event := domain.OrderStatusChangedEvent{OrderID: "order-2", Status: status, Timestamp: time.Now().UTC()}
			if err := producer.Publish(ctx, event.OrderID, event); err != nil {
				t.Fatalf("publish failed: %v", err)
			}
		}

		consumer := NewConsumer(brokers, domain.TopicOrderStatusChanged, "test-status", logger,
			WithStartOffset(kafka.FirstOffset),
			WithRetry(2, 10*time.Millisecond))
		defer func() { _ = consumer.Close() }()

		consumeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		var mu sync.Mutex
		attempts := map[domain.OrderStatus]int{}
		err := consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
			var event domain.OrderStatusChangedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			attempts[event.Status]++
			if event.Status == domain.OrderStatusProcessing {
				return errors.New("mail server down")
			}
			cancel()
			return nil
		})
		if err != nil {
			t.Fatalf("consume failed: %v", err)
		}

		if attempts[domain.OrderStatusProcessing] != 2 {
			t.Errorf("expected 2 attempts for the failing message, got %d", attempts[domain.OrderStatusProcessing])
		}
		if attempts[domain.OrderStatusShipped] != 1 {
			t.Errorf("expected the next message to be handled once, got %d", attempts[domain.OrderStatusShipped])
		}
	})
}

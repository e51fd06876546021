package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

var producerTracer = otel.Tracer("cartflow/messaging/producer")

// EventTypeHeader names the header carrying the event's topic, kept for consumers reading
// several topics from one reader.
const EventTypeHeader = "event_type"

// TopicFor maps an order event to the topic it is published on.
func TopicFor(event any) (string, error) {
	switch event.(type) {
	case domain.OrderPlacedEvent, *domain.OrderPlacedEvent:
		return domain.TopicOrderPlaced, nil
	case domain.OrderStatusChangedEvent, *domain.OrderStatusChangedEvent:
		return domain.TopicOrderStatusChanged, nil
	}
	return "", fmt.Errorf("no topic for event type %T", event)
}

// Producer publishes order events, routing each to its topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

// Publish sends event keyed by key so all events of one order land on the same partition.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	topic, err := TopicFor(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte(topic)}},
	}

	ctx, span := producerTracer.Start(ctx, "send "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, carrierFor(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

var meter = otel.Meter("cartflow/orders")

// Transitioner locks an order, hands it to apply and persists the result.
type Transitioner interface {
	Transition(ctx context.Context, id string, apply func(order *domain.Order) error) (*domain.Order, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Service struct {
	repo        Transitioner
	machine     *StateMachine
	publisher   EventPublisher
	logger      *slog.Logger
	transitions metric.Int64Counter
}

// NewService wires the admin order operations. publisher may be nil.
func NewService(repo Transitioner, machine *StateMachine, publisher EventPublisher, logger *slog.Logger) (*Service, error) {
	transitions, err := meter.Int64Counter("orders.transitions",
		metric.WithDescription("Applied order status transitions by target status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders.transitions counter: %w", err)
	}

	return &Service{
		repo:        repo,
		machine:     machine,
		publisher:   publisher,
		logger:      logger,
		transitions: transitions,
	}, nil
}

// Transition moves an order to a new status. Only admins may call it.
func (s *Service) Transition(ctx context.Context, requester domain.Requester, orderID string, t Transition) (*domain.Order, error) {
	if !requester.IsAdmin {
		return nil, fmt.Errorf("update order %s: %w", orderID, domain.ErrForbidden)
	}

	var previous domain.OrderStatus
	order, err := s.repo.Transition(ctx, orderID, func(order *domain.Order) error {
		previous = order.Status
		return s.machine.Apply(order, t)
	})
	if err != nil {
		return nil, err
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(order.Status))))
	s.logger.Info("order status updated",
		"order_id", order.ID,
		"previous_status", previous,
		"status", order.Status,
		"admin_id", requester.UserID,
	)

	s.publish(ctx, order, previous)
	return order, nil
}

func (s *Service) publish(ctx context.Context, order *domain.Order, previous domain.OrderStatus) {
	if s.publisher == nil {
		return
	}

	event := domain.OrderStatusChangedEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		PreviousStatus: previous,
		Status:         order.Status,
		Timestamp:      time.Now().UTC(),
	}
	if order.TrackingNumber != nil {
		event.TrackingNumber = *order.TrackingNumber
	}
	if order.CourierName != nil {
		event.CourierName = *order.CourierName
	}

	if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order status changed event", "error", err, "order_id", order.ID)
	}
}

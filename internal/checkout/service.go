package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/orders"
)

var meter = otel.Meter("cartflow/checkout")

type Request struct {
	ShippingAddress domain.Address       `json:"shipping_address"`
	BillingAddress  domain.Address       `json:"billing_address"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method"`
}

func (r Request) Validate() error {
	if err := r.ShippingAddress.Validate("shipping_address"); err != nil {
		return err
	}
	if err := r.BillingAddress.Validate("billing_address"); err != nil {
		return err
	}
	if r.PaymentMethod == "" {
		return domain.Invalid("payment_method", "is required")
	}
	if !r.PaymentMethod.Valid() {
		return domain.Invalid("payment_method", fmt.Sprintf("unsupported method %q", r.PaymentMethod))
	}
	return nil
}

// BuildFunc turns the locked cart lines into the order to persist.
type BuildFunc func(ctx context.Context, lines []domain.CartLine) (*domain.Order, error)

// UnitOfWork locks a user's cart, persists the order produced by build and clears the cart as one
// atomic step. When build or any write fails nothing is applied.
type UnitOfWork interface {
	PlaceOrder(ctx context.Context, userID string, build BuildFunc) (*domain.Order, error)
}

// Pricer is the part of the cart aggregator checkout depends on.
type Pricer interface {
	Price(ctx context.Context, lines []domain.CartLine) (*domain.CartSummary, error)
	Forget(userID string)
}

type Service struct {
	uow       UnitOfWork
	pricer    Pricer
	publisher orders.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
	placed    metric.Int64Counter
	failures  metric.Int64Counter
	amount    metric.Float64Counter
}

// NewService wires the checkout orchestrator. publisher may be nil.
func NewService(uow UnitOfWork, pricer Pricer, publisher orders.EventPublisher, logger *slog.Logger) (*Service, error) {
	placed, err := meter.Int64Counter("checkout.orders",
		metric.WithDescription("Orders placed through checkout"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout.orders counter: %w", err)
	}

	failures, err := meter.Int64Counter("checkout.failures",
		metric.WithDescription("Failed checkouts by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout.failures counter: %w", err)
	}

	amount, err := meter.Float64Counter("checkout.amount",
		metric.WithDescription("Total amount of placed orders"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout.amount counter: %w", err)
	}

	return &Service{
		uow:       uow,
		pricer:    pricer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		placed:    placed,
		failures:  failures,
		amount:    amount,
	}, nil
}

// Checkout converts the user's cart into a pending order priced at the current catalog prices
// and empties the cart.
func (s *Service) Checkout(ctx context.Context, userID string, req Request) (*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, s.fail(ctx, domain.Invalid("user_id", "is required"))
	}
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, err)
	}

	order, err := s.uow.PlaceOrder(ctx, userID, func(ctx context.Context, lines []domain.CartLine) (*domain.Order, error) {
		return s.build(ctx, userID, req, lines)
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.pricer.Forget(userID)
	s.placed.Add(ctx, 1)
	s.amount.Add(ctx, order.TotalAmount.InexactFloat64())
	s.logger.Info("order placed",
		"order_id", order.ID,
		"user_id", userID,
		"total_amount", order.TotalAmount.String(),
		"items", len(order.Items),
	)

	s.publish(ctx, order)
	return order, nil
}

func (s *Service) build(ctx context.Context, userID string, req Request, lines []domain.CartLine) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	summary, err := s.pricer.Price(ctx, lines)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &domain.Order{
		UserID:          userID,
		TotalAmount:     summary.Total,
		Status:          orders.InitialStatus,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		Items:           make([]domain.OrderItem, 0, len(summary.Lines)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, line := range summary.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   line.Product.ID,
			Quantity:    line.Quantity,
			PriceAtTime: line.Product.Price,
		})
	}

	return order, nil
}

func (s *Service) publish(ctx context.Context, order *domain.Order) {
	if s.publisher == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       order.Items,
		Timestamp:   order.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
	}
}

func (s *Service) fail(ctx context.Context, err error) error {
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason(err))))
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	}
	return "internal"
}

package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/orders"
)

// memoryUnitOfWork serializes checkouts per store and only applies an order once build and the
// simulated writes have succeeded.
type memoryUnitOfWork struct {
	mu        sync.Mutex
	carts     map[string][]domain.CartLine
	orders    []domain.Order
	insertErr error
}

func newMemoryUnitOfWork() *memoryUnitOfWork {
	return &memoryUnitOfWork{carts: map[string][]domain.CartLine{}}
}

func (u *memoryUnitOfWork) add(userID, productID string, quantity int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.carts[userID] = append(u.carts[userID], domain.CartLine{UserID: userID, ProductID: productID, Quantity: quantity})
}

func (u *memoryUnitOfWork) lines(userID string) []domain.CartLine {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.carts[userID]
}

func (u *memoryUnitOfWork) PlaceOrder(ctx context.Context, userID string, build BuildFunc) (*domain.Order, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	lines := append([]domain.CartLine(nil), u.carts[userID]...)
	order, err := build(ctx, lines)
	if err != nil {
		return nil, err
	}
	if u.insertErr != nil {
		return nil, u.insertErr
	}

	order.ID = uuid.New().String()
	for i := range order.Items {
		order.Items[i].ID = uuid.New().String()
		order.Items[i].OrderID = order.ID
	}
	u.orders = append(u.orders, *order)
	delete(u.carts, userID)
	return order, nil
}

type stubPricer struct {
	prices    map[string]decimal.Decimal
	forgotten []string
}

func (p *stubPricer) Price(_ context.Context, lines []domain.CartLine) (*domain.CartSummary, error) {
	summary := &domain.CartSummary{Total: decimal.Zero}
	for _, line := range lines {
		price, ok := p.prices[line.ProductID]
		if !ok {
			return nil, domain.NotFound("product", line.ProductID)
		}
		subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		summary.Lines = append(summary.Lines, domain.PricedLine{
			Product:  domain.Product{ID: line.ProductID, Price: price},
			Quantity: line.Quantity,
			Subtotal: subtotal,
		})
		summary.Total = summary.Total.Add(subtotal)
		summary.ItemCount += line.Quantity
	}
	return summary, nil
}

func (p *stubPricer) Forget(userID string) {
	p.forgotten = append(p.forgotten, userID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func address() domain.Address {
	return domain.Address{
		Recipient:  "Ada Lovelace",
		Street:     "1 Analytical St",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "UK",
	}
}

func validRequest() Request {
	return Request{
		ShippingAddress: address(),
		BillingAddress:  address(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	}
}

func newTestService(t *testing.T, uow UnitOfWork, pricer Pricer, publisher orders.EventPublisher) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(uow, pricer, publisher, logger)
	require.NoError(t, err)
	return svc
}

func catalogPricer() *stubPricer {
	return &stubPricer{prices: map[string]decimal.Decimal{
		"A": decimal.RequireFromString("50"),
		"B": decimal.RequireFromString("70"),
	}}
}

func TestService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("cart becomes pending order with snapshot prices", func(t *testing.T) {
		uow := newMemoryUnitOfWork()
		uow.add("u1", "A", 2)
		uow.add("u1", "B", 1)
		pricer := catalogPricer()
		publisher := &recordingPublisher{}
		svc := newTestService(t, uow, pricer, publisher)

		order, err := svc.Checkout(ctx, "u1", validRequest())
		require.NoError(t, err)

		assert.True(t, decimal.RequireFromString("170").Equal(order.TotalAmount), "total %s", order.TotalAmount)
		assert.Equal(t, domain.OrderStatusPending, order.Status)
		assert.Equal(t, "u1", order.UserID)
		require.Len(t, order.Items, 2)
		assert.True(t, decimal.RequireFromString("50").Equal(order.Items[0].PriceAtTime))
		assert.Equal(t, 2, order.Items[0].Quantity)
		assert.True(t, decimal.RequireFromString("70").Equal(order.Items[1].PriceAtTime))
		assert.True(t, order.TotalAmount.Equal(order.ItemsTotal()))

		assert.Empty(t, uow.lines("u1"))
		assert.Equal(t, []string{"u1"}, pricer.forgotten)

		require.Len(t, publisher.events, 1)
		event, ok := publisher.events[0].(domain.OrderPlacedEvent)
		require.True(t, ok)
		assert.Equal(t, order.ID, event.OrderID)
	})

	t.Run("later price change does not touch placed order", func(t *testing.T) {
		uow := newMemoryUnitOfWork()
		uow.add("u1", "A", 1)
		pricer := catalogPricer()
		svc := newTestService(t, uow, pricer, nil)

		order, err := svc.Checkout(ctx, "u1", validRequest())
		require.NoError(t, err)

		pricer.prices["A"] = decimal.RequireFromString("99")
		assert.True(t, decimal.RequireFromString("50").Equal(uow.orders[0].Items[0].PriceAtTime))
		assert.True(t, decimal.RequireFromString("50").Equal(order.TotalAmount))
	})

	t.Run("empty cart creates no order", func(t *testing.T) {
		uow := newMemoryUnitOfWork()
		publisher := &recordingPublisher{}
		svc := newTestService(t, uow, catalogPricer(), publisher)

		_, err := svc.Checkout(ctx, "u1", validRequest())
		assert.ErrorIs(t, err, domain.ErrEmptyCart)
		assert.Empty(t, uow.orders)
		assert.Empty(t, publisher.events)
	})

	t.Run("vanished product leaves cart intact", func(t *testing.T) {
		uow := newMemoryUnitOfWork()
		uow.add("u1", "A", 1)
		uow.add("u1", "GONE", 1)
		svc := newTestService(t, uow, catalogPricer(), nil)

		_, err := svc.Checkout(ctx, "u1", validRequest())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, uow.orders)
		assert.Len(t, uow.lines("u1"), 2)
	})

	t.Run("storage failure applies nothing", func(t *testing.T) {
		uow := newMemoryUnitOfWork()
		uow.add("u1", "A", 1)
		uow.insertErr = domain.Persistence("insert order", errors.New("disk full"))
		pricer := catalogPricer()
		svc := newTestService(t, uow, pricer, nil)

		_, err := svc.Checkout(ctx, "u1", validRequest())
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.Empty(t, uow.orders)
		assert.Len(t, uow.lines("u1"), 1)
		assert.Empty(t, pricer.forgotten)
	})

	t.Run("concurrent checkouts place exactly one order", func(t *testing.T) {
		uow := newMemoryUnitOfWork()
		uow.add("u1", "A", 2)
		svc := newTestService(t, uow, catalogPricer(), nil)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Checkout(ctx, "u1", validRequest())
			}(i)
		}
		wg.Wait()

		var placed, empty int
		for _, err := range errs {
			switch {
			case err == nil:
				placed++
			case errors.Is(err, domain.ErrEmptyCart):
				empty++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, placed)
		assert.Equal(t, 1, empty)
		assert.Len(t, uow.orders, 1)
	})
}

func TestService_CheckoutValidation(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		mutate func(r *Request)
		field  string
	}{
		{"missing user", "", func(r *Request) {}, "user_id"},
		{"missing shipping city", "u1", func(r *Request) { r.ShippingAddress.City = "" }, "shipping_address.city"},
		{"blank billing street", "u1", func(r *Request) { r.BillingAddress.Street = "  " }, "billing_address.street"},
		{"missing payment method", "u1", func(r *Request) { r.PaymentMethod = "" }, "payment_method"},
		{"unsupported payment method", "u1", func(r *Request) { r.PaymentMethod = "bitcoin" }, "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uow := newMemoryUnitOfWork()
			uow.add("u1", "A", 1)
			svc := newTestService(t, uow, catalogPricer(), nil)

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Checkout(context.Background(), tt.user, req)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, uow.orders)
			assert.Len(t, uow.lines("u1"), 1)
		})
	}
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

var meter = otel.Meter("cartflow/cart")

const sharedReadTimeout = 5 * time.Second

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// Service maintains cart quantities and prices carts against the live catalog.
type Service struct {
	store     Store
	cache     Cache
	products  ProductLookup
	logger    *slog.Logger
	sfg       singleflight.Group
	mutations metric.Int64Counter
}

// NewService builds the cart aggregator. cache may be nil.
func NewService(store Store, cache Cache, products ProductLookup, logger *slog.Logger) (*Service, error) {
	if cache == nil {
		cache = noopCache{}
	}

	mutations, err := meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart line mutations by operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cart.mutations counter: %w", err)
	}

	return &Service{
		store:     store,
		cache:     cache,
		products:  products,
		logger:    logger,
		mutations: mutations,
	}, nil
}

func (s *Service) AddOrIncrement(ctx context.Context, userID, productID string, quantity int) error {
	if err := validateKeys(userID, productID); err != nil {
		return err
	}
	if quantity < 1 {
		return domain.Invalid("quantity", "must be at least 1")
	}
	if quantity > domain.MaxLineQuantity {
		return domain.Invalid("quantity", fmt.Sprintf("must be at most %d", domain.MaxLineQuantity))
	}
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.store.Increment(ctx, userID, productID, quantity); err != nil {
		return err
	}

	s.mutated(ctx, userID, "add")
	return nil
}

// SetQuantity replaces the line's quantity. Zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if err := validateKeys(userID, productID); err != nil {
		return err
	}
	if quantity < 0 {
		return domain.Invalid("quantity", "must not be negative")
	}
	if quantity > domain.MaxLineQuantity {
		return domain.Invalid("quantity", fmt.Sprintf("must be at most %d", domain.MaxLineQuantity))
	}
	if quantity == 0 {
		return s.RemoveLine(ctx, userID, productID)
	}
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.store.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return err
	}

	s.mutated(ctx, userID, "set")
	return nil
}

// RemoveLine is a no-op for a line that is not in the cart.
func (s *Service) RemoveLine(ctx context.Context, userID, productID string) error {
	if err := validateKeys(userID, productID); err != nil {
		return err
	}

	if err := s.store.Remove(ctx, userID, productID); err != nil {
		return err
	}

	s.mutated(ctx, userID, "remove")
	return nil
}

func (s *Service) ComputeTotals(ctx context.Context, userID string) (*domain.CartSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user_id", "is required")
	}

	lines, err := s.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary, err := s.Price(ctx, lines)
	if err != nil {
		return nil, err
	}
	summary.UserID = userID

	return summary, nil
}

// Price looks up the current price of every line and sums the subtotals. A line whose product is
// gone from the catalog fails the whole pricing.
func (s *Service) Price(ctx context.Context, lines []domain.CartLine) (*domain.CartSummary, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	summary := &domain.CartSummary{
		Lines: make([]domain.PricedLine, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, domain.NotFound("product", line.ProductID)
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		summary.Lines = append(summary.Lines, domain.PricedLine{
			Product:  product,
			Quantity: line.Quantity,
			Subtotal: subtotal,
		})
		summary.Total = summary.Total.Add(subtotal)
		summary.ItemCount += line.Quantity
	}

	return summary, nil
}

// Lines reads through the cache. Concurrent misses for one user share a single store read that
// is not tied to any one caller's cancellation.
func (s *Service) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	ch := s.sfg.DoChan(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		return s.load(ctx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.CartLine), nil
	}
}

func (s *Service) load(ctx context.Context, userID string) ([]domain.CartLine, error) {
	lines, err := s.cache.Get(ctx, userID)
	if err == nil {
		return lines, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("cart cache get failed", "error", err, "user_id", userID)
	}

	version, versionErr := s.cache.Version(ctx, userID)
	if versionErr != nil {
		s.logger.Warn("cart cache version read failed", "error", versionErr, "user_id", userID)
	}

	lines, err = s.store.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	if versionErr == nil {
		switch err := s.cache.Set(ctx, userID, version, lines); {
		case errors.Is(err, ErrStaleVersion):
			s.logger.Debug("cart changed during read, not caching", "user_id", userID)
		case err != nil:
			s.logger.Warn("cart cache set failed", "error", err, "user_id", userID)
		}
	}

	return lines, nil
}

// Forget invalidates the cached lines of userID and detaches later reads from any store read
// already in flight. Checkout calls it after clearing the cart.
func (s *Service) Forget(userID string) {
	s.sfg.Forget(userID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("cart cache invalidate failed", "error", err, "user_id", userID)
	}
}

func (s *Service) mutated(ctx context.Context, userID, op string) {
	s.Forget(userID)
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	s.logger.Info("cart updated", "user_id", userID, "op", op)
}

func validateKeys(userID, productID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Invalid("user_id", "is required")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Invalid("product_id", "is required")
	}
	return nil
}

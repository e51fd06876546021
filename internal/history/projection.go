package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type OrderReader interface {
	List(ctx context.Context) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type ProductLookup interface {
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type ProductDetails struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// ItemView is an order item priced at its checkout snapshot. Product is nil when the product
// has since been removed from the catalog.
type ItemView struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	Product     *ProductDetails `json:"product"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderView is an order as one requester is allowed to see it. User is only set for admins.
type OrderView struct {
	ID              string               `json:"id"`
	User            string               `json:"user,omitempty"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	Status          domain.OrderStatus   `json:"order_status"`
	ShippingAddress domain.Address       `json:"shipping_address"`
	BillingAddress  domain.Address       `json:"billing_address"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method"`
	TrackingNumber  *string              `json:"tracking_number"`
	CourierName     *string              `json:"courier_name"`
	Items           []ItemView           `json:"items"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type OrderList struct {
	Data    []OrderView `json:"data"`
	IsAdmin bool        `json:"is_admin"`
}

// Projection renders role-scoped, read-only views of placed orders.
type Projection struct {
	orders   OrderReader
	products ProductLookup
	logger   *slog.Logger
}

func NewProjection(orders OrderReader, products ProductLookup, logger *slog.Logger) *Projection {
	return &Projection{
		orders:   orders,
		products: products,
		logger:   logger,
	}
}

// ListOrders returns every order for admins and only the requester's own orders otherwise,
// newest first.
func (p *Projection) ListOrders(ctx context.Context, requester domain.Requester) (*OrderList, error) {
	var (
		records []domain.Order
		err     error
	)
	if requester.IsAdmin {
		records, err = p.orders.List(ctx)
	} else {
		records, err = p.orders.ListByUser(ctx, requester.UserID)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	products, err := p.lookup(ctx, records...)
	if err != nil {
		return nil, err
	}

	proj := projectorFor(requester)
	views := make([]OrderView, 0, len(records))
	for _, order := range records {
		// Never render a foreign order into a customer view.
		if !requester.CanView(order.UserID) {
			continue
		}
		views = append(views, proj.render(order, products))
	}

	return &OrderList{Data: views, IsAdmin: requester.IsAdmin}, nil
}

func (p *Projection) GetOrderSummary(ctx context.Context, orderID string, requester domain.Requester) (*OrderView, error) {
	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !requester.CanView(order.UserID) {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrForbidden)
	}

	products, err := p.lookup(ctx, *order)
	if err != nil {
		return nil, err
	}

	view := projectorFor(requester).render(*order, products)
	return &view, nil
}

func (p *Projection) lookup(ctx context.Context, records ...domain.Order) (map[string]domain.Product, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, order := range records {
		for _, item := range order.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	products, err := p.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	if missing := len(ids) - len(products); missing > 0 {
		p.logger.Debug("order items reference removed products", "missing", missing)
	}

	return products, nil
}

type projector interface {
	render(order domain.Order, products map[string]domain.Product) OrderView
}

func projectorFor(requester domain.Requester) projector {
	if requester.IsAdmin {
		return fullProjector{}
	}
	return restrictedProjector{}
}

// fullProjector annotates each order with its owner.
type fullProjector struct{}

func (fullProjector) render(order domain.Order, products map[string]domain.Product) OrderView {
	view := baseView(order, products)
	view.User = order.UserID
	return view
}

type restrictedProjector struct{}

func (restrictedProjector) render(order domain.Order, products map[string]domain.Product) OrderView {
	return baseView(order, products)
}

func baseView(order domain.Order, products map[string]domain.Product) OrderView {
	view := OrderView{
		ID:              order.ID,
		TotalAmount:     order.TotalAmount,
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		PaymentMethod:   order.PaymentMethod,
		TrackingNumber:  order.TrackingNumber,
		CourierName:     order.CourierName,
		Items:           make([]ItemView, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}

	for _, item := range order.Items {
		iv := ItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
			LineTotal:   item.LineTotal(),
		}
		if product, ok := products[item.ProductID]; ok {
			iv.Product = &ProductDetails{Name: product.Name, ImageURL: product.ImageURL}
		}
		view.Items = append(view.Items, iv)
	}

	return view
}

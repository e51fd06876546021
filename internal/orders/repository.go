package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

const orderColumns = `id, user_id, status, total_amount, shipping_address, billing_address,
		payment_method, tracking_number, courier_name, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Insert writes the order and its items inside tx, assigning ids to both.
func Insert(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	order.ID = uuid.New().String()
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, order.ID, order.UserID, order.Status, order.TotalAmount, order.ShippingAddress, order.BillingAddress,
		order.PaymentMethod, order.TrackingNumber, order.CourierName, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return domain.Persistence("insert order", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price_at_time)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.PriceAtTime)
		if err != nil {
			return domain.Persistence("insert order item", err)
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{Items: []domain.OrderItem{}}
	err := row.Scan(&order.ID, &order.UserID, &order.Status, &order.TotalAmount, &order.ShippingAddress,
		&order.BillingAddress, &order.PaymentMethod, &order.TrackingNumber, &order.CourierName,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return order, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadItems(ctx context.Context, q querier, order *domain.Order) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_time
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, order.ID)
	if err != nil {
		return domain.Persistence("load order items", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtTime); err != nil {
			return domain.Persistence("scan order item", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return domain.Persistence("load order items", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NotFound("order", id)
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("order", id)
		}
		return nil, domain.Persistence("get order", err)
	}

	if err := loadItems(ctx, r.db, order); err != nil {
		return nil, err
	}

	return order, nil
}

// Transition locks the order row, lets apply mutate a loaded copy and writes back the status and
// tracking fields. Nothing is written when apply fails.
func (r *OrderRepository) Transition(ctx context.Context, id string, apply func(order *domain.Order) error) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NotFound("order", id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("begin transition", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("order", id)
		}
		return nil, domain.Persistence("lock order", err)
	}

	if err := apply(order); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1, tracking_number = $2, courier_name = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, order.Status, order.TrackingNumber, order.CourierName, id).Scan(&order.UpdatedAt)
	if err != nil {
		return nil, domain.Persistence("update order status", err)
	}

	if err := loadItems(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("commit transition", err)
	}

	return order, nil
}

// List returns every order, newest first, with items loaded in a single batched query.
func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id
	`)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Persistence("list orders", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Persistence("scan order", err)
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list orders", err)
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_time
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY product_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, domain.Persistence("list order items", err)
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtTime); err != nil {
			return nil, domain.Persistence("scan order item", err)
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, domain.Persistence("list order items", err)
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

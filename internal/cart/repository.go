package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// Store persists cart lines per user. Zero-quantity lines are never stored.
type Store interface {
	Lines(ctx context.Context, userID string) ([]domain.CartLine, error)
	Increment(ctx context.Context, userID, productID string, quantity int) error
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	Remove(ctx context.Context, userID, productID string) error
}

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, product_id, quantity, added_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at, product_id
	`, userID)
	if err != nil {
		return nil, domain.Persistence("load cart", err)
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.UserID, &line.ProductID, &line.Quantity, &line.AddedAt); err != nil {
			return nil, domain.Persistence("scan cart line", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("load cart", err)
	}

	return lines, nil
}

// Increment adds quantity to the line, creating it when absent. The update is skipped when the
// result would exceed domain.MaxLineQuantity.
func (r *CartRepository) Increment(ctx context.Context, userID, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity + EXCLUDED.quantity <= $4
	`, userID, productID, quantity, domain.MaxLineQuantity)
	if err != nil {
		return domain.Persistence("increment cart line", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.Persistence("increment cart line", err)
	}

	if rowsAffected == 0 {
		return domain.Invalid("quantity", fmt.Sprintf("line would exceed %d units", domain.MaxLineQuantity))
	}

	return nil
}

func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity == 0 {
		return r.Remove(ctx, userID, productID)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity
	`, userID, productID, quantity)
	if err != nil {
		return domain.Persistence("set cart line quantity", err)
	}

	return nil
}

func (r *CartRepository) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return domain.Persistence("remove cart line", err)
	}

	return nil
}

package checkout

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/orders"
)

// PostgresUnitOfWork runs checkout in a single transaction. The user's cart rows stay locked
// from the first read until commit, so a concurrent checkout for the same user waits and then
// finds the cart empty. Only the locked rows are cleared.
type PostgresUnitOfWork struct {
	db *sql.DB
}

func NewPostgresUnitOfWork(db *sql.DB) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

func (u *PostgresUnitOfWork) PlaceOrder(ctx context.Context, userID string, build BuildFunc) (*domain.Order, error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("begin checkout", err)
	}
	defer func() { _ = tx.Rollback() }()

	lines, err := lockLines(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	order, err := build(ctx, lines)
	if err != nil {
		return nil, err
	}

	if err := orders.Insert(ctx, tx, order); err != nil {
		return nil, err
	}

	// lines added after the lock were not priced into the order and stay in the cart
	productIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = ANY($2)
	`, userID, pq.Array(productIDs))
	if err != nil {
		return nil, domain.Persistence("clear cart", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("commit checkout", err)
	}

	return order, nil
}

func lockLines(ctx context.Context, tx *sql.Tx, userID string) ([]domain.CartLine, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, product_id, quantity, added_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at, product_id
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, domain.Persistence("lock cart", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.UserID, &line.ProductID, &line.Quantity, &line.AddedAt); err != nil {
			return nil, domain.Persistence("scan cart line", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("lock cart", err)
	}

	return lines, nil
}

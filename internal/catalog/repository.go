package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// ProductRepository is the read side of the product catalog. Catalog writes belong to another
// system.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, image_url
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, domain.Persistence("list products", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL); err != nil {
			return nil, domain.Persistence("scan product", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list products", err)
	}

	return products, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, image_url
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("product", id)
		}
		return nil, domain.Persistence("get product", err)
	}

	return p, nil
}

// GetProducts returns the products that exist among ids, keyed by id. Missing ids are absent from
// the map.
func (r *ProductRepository) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, image_url
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, domain.Persistence("get products", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL); err != nil {
			return nil, domain.Persistence("scan product", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("get products", err)
	}

	return products, nil
}

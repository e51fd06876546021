package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the units a single cart line may hold.
const MaxLineQuantity = 999

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
}

type CartLine struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type PricedLine struct {
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CartSummary is computed on every read from live product prices.
type CartSummary struct {
	UserID    string          `json:"user_id"`
	Lines     []PricedLine    `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

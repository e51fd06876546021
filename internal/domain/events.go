package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status_changed"
)

type OrderPlacedEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	Timestamp   time.Time       `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	PreviousStatus OrderStatus `json:"previous_status"`
	Status         OrderStatus `json:"order_status"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	CourierName    string      `json:"courier_name,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

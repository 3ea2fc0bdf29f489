// internal/model/order.go
package model

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

type Order struct {
	ID            string          `db:"id" json:"id"`
	OrderNumber   string          `db:"order_number" json:"orderNumber"`
	Total         float64         `db:"total" json:"total"`
	Status        OrderStatus     `db:"status" json:"status"`
	PaymentMethod string          `db:"payment_method" json:"paymentMethod,omitempty"`
	CustomerID    string          `db:"customer_id" json:"customerId"`
	OwnerID       string          `db:"owner_id" json:"ownerId"`
	Items         json.RawMessage `db:"items" json:"items"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

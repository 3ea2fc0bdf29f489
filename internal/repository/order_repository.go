package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unclebandit/crm-backend/internal/model"
)

type OrderRepositoryInterface interface {
	Create(ctx context.Context, o *model.Order) error
}

type OrderRepository struct {
	DB *sql.DB
}

// Create inserts the order; an empty Items defaults to {}.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order) error {
	if len(o.Items) == 0 {
		o.Items = []byte("{}")
	}
	o.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO orders (id, order_number, total, status, payment_method, customer_id, owner_id, items, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`
	_, err := r.DB.ExecContext(ctx, query,
		o.ID, o.OrderNumber, o.Total, o.Status, o.PaymentMethod,
		o.CustomerID, o.OwnerID, []byte(o.Items), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

var _ OrderRepositoryInterface = (*OrderRepository)(nil)

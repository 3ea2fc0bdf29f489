package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/segment"
)

// CustomerRepositoryInterface defines methods used by services
type CustomerRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	Upsert(ctx context.Context, c *model.Customer) error

	// ListBySegment returns the owner's customers matching tree, oldest first.
	ListBySegment(ctx context.Context, ownerID string, tree model.RuleTree) ([]model.Customer, error)
	CountBySegment(ctx context.Context, ownerID string, tree model.RuleTree) (int, error)
}

// CustomerRepository is the concrete implementation
type CustomerRepository struct {
	DB *sql.DB
}

func scanCustomer(row interface{ Scan(...any) error }) (*model.Customer, error) {
	var (
		c        model.Customer
		metadata []byte
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&c.City, &c.State, &c.Country, &c.PostalCode,
		&metadata, &c.OwnerID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		c.Metadata = metadata
	}
	return &c, nil
}

// GetByID fetches a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	query := `SELECT ` + segment.CustomerColumns + ` FROM customers c WHERE c.id = $1`
	c, err := scanCustomer(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("customer", id)
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// Upsert inserts the customer or, when the email is already known, updates
// the existing row. c.ID and c.CreatedAt are replaced with the stored values.
func (r *CustomerRepository) Upsert(ctx context.Context, c *model.Customer) error {
	var metadata any
	if len(c.Metadata) > 0 {
		metadata = []byte(c.Metadata)
	}

	query := `
		INSERT INTO customers (id, name, email, phone, address, metadata, owner_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    phone = EXCLUDED.phone,
		    address = EXCLUDED.address,
		    metadata = EXCLUDED.metadata,
		    owner_id = EXCLUDED.owner_id,
		    updated_at = NOW()
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.Address, metadata, c.OwnerID, time.Now().UTC(),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) ListBySegment(ctx context.Context, ownerID string, tree model.RuleTree) ([]model.Customer, error) {
	query, args, err := segment.NewQueryBuilder().BuildMembersQuery(ownerID, tree)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query segment members: %w", err)
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepository) CountBySegment(ctx context.Context, ownerID string, tree model.RuleTree) (int, error) {
	query, args, err := segment.NewQueryBuilder().BuildCountQuery(ownerID, tree)
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count segment members: %w", err)
	}
	return count, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)

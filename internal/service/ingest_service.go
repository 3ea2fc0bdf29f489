package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/repository"
)

// IngestService persists customers and orders arriving on the ingestion queues.
type IngestService struct {
	UserRepo     repository.UserRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	OrderRepo    repository.OrderRepositoryInterface
	Log          zerolog.Logger
}

func (s *IngestService) requireUser(ctx context.Context, userID string) error {
	ok, err := s.UserRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewNotFound("user", userID)
	}
	return nil
}

// UpsertCustomer creates the customer or updates the one with the same email.
func (s *IngestService) UpsertCustomer(ctx context.Context, p model.CustomerPayload) (*model.Customer, error) {
	if err := s.requireUser(ctx, p.UserID); err != nil {
		return nil, err
	}

	c := &model.Customer{
		ID:      uuid.NewString(),
		Name:    p.Name,
		Email:   p.Email,
		Phone:   p.Phone,
		Address: p.Address,
		OwnerID: p.UserID,
	}
	if p.Metadata != nil {
		metadata, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		c.Metadata = metadata
	}

	if err := s.CustomerRepo.Upsert(ctx, c); err != nil {
		return nil, err
	}

	s.Log.Debug().Str("customer_id", c.ID).Str("user_id", p.UserID).Msg("customer upserted")
	return c, nil
}

// CreateOrder records an order for an existing customer of the same user.
func (s *IngestService) CreateOrder(ctx context.Context, p model.OrderPayload) (*model.Order, error) {
	if err := s.requireUser(ctx, p.UserID); err != nil {
		return nil, err
	}
	customer, err := s.CustomerRepo.GetByID(ctx, p.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.OwnerID != p.UserID {
		return nil, appErrors.NewNotFound("customer", p.CustomerID)
	}

	items := p.Items
	if items == nil {
		items = map[string]any{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	o := &model.Order{
		ID:            uuid.NewString(),
		OrderNumber:   p.OrderNumber,
		Total:         p.Total,
		Status:        p.Status,
		PaymentMethod: p.PaymentMethod,
		CustomerID:    p.CustomerID,
		OwnerID:       p.UserID,
		Items:         itemsJSON,
	}
	if err := s.OrderRepo.Create(ctx, o); err != nil {
		return nil, err
	}

	s.Log.Debug().Str("order_id", o.ID).Str("customer_id", p.CustomerID).Msg("order created")
	return o, nil
}

// internal/model/customer.go
package model

import (
	"encoding/json"
	"time"
)

type Customer struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Email      string          `db:"email" json:"email"`
	Phone      string          `db:"phone" json:"phone,omitempty"`
	Address    string          `db:"address" json:"address,omitempty"`
	City       string          `db:"city" json:"city,omitempty"`
	State      string          `db:"state" json:"state,omitempty"`
	Country    string          `db:"country" json:"country,omitempty"`
	PostalCode string          `db:"postal_code" json:"postalCode,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	OwnerID    string          `db:"owner_id" json:"ownerId"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// internal/model/payloads.go
package model

// Queue payloads. Field names follow the JSON contract shared with the
// producers of each topic; validate tags are enforced by validate.Decode.

// CustomerPayload is a customer-queue message.
type CustomerPayload struct {
	Name     string         `json:"name" validate:"required"`
	Email    string         `json:"email" validate:"required,email"`
	Phone    string         `json:"phone,omitempty"`
	Address  string         `json:"address,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	UserID   string         `json:"userId" validate:"required"`
}

// OrderPayload is an order-queue message.
type OrderPayload struct {
	OrderNumber   string         `json:"orderNumber" validate:"required"`
	Total         float64        `json:"total" validate:"gt=0"`
	Status        OrderStatus    `json:"status" validate:"required,oneof=PENDING COMPLETED CANCELLED REFUNDED"`
	PaymentMethod string         `json:"paymentMethod,omitempty"`
	CustomerID    string         `json:"customerId" validate:"required"`
	UserID        string         `json:"userId" validate:"required"`
	Items         map[string]any `json:"items"`
}

// CampaignTask is a campaign-queue message: one send to one customer.
type CampaignTask struct {
	CampaignID   string `json:"campaignId" validate:"required"`
	CustomerID   string `json:"customerId" validate:"required"`
	Message      string `json:"message" validate:"required"`
	CustomerName string `json:"customerName" validate:"required"`
	LogID        string `json:"logId" validate:"required"`
}

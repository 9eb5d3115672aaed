// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"strconv"
)

// Intent statuses reported by the gateway
const (
	StatusSucceeded      = "succeeded"
	StatusProcessing     = "processing"
	StatusRequiresAction = "requires_action"
	StatusFailed         = "requires_payment_method"
	StatusCanceled       = "canceled"
)

// Webhook event types the order service reconciles
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Intent is the provider-neutral view of a payment intent
type Intent struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	ClientSecret  string            `json:"client_secret,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Succeeded reports whether the funds were captured
func (i *Intent) Succeeded() bool {
	return i != nil && i.Status == StatusSucceeded
}

// OrderID returns the order id stamped into the intent metadata, or 0
func (i *Intent) OrderID() uint {
	if i == nil {
		return 0
	}
	id, err := strconv.ParseUint(i.Metadata["order_id"], 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// CreateParams describes a payment to create and confirm in one call
type CreateParams struct {
	OrderID         uint
	OrderNumber     string
	Amount          int64
	Currency        string
	PaymentMethodID string
	Email           string
	IdempotencyKey  string
}

// WebhookEvent is a verified gateway notification
type WebhookEvent struct {
	ID     string
	Type   string
	Intent *Intent
}

// Gateway captures card payments
type Gateway interface {
	Name() string
	CreateAndConfirm(ctx context.Context, params CreateParams) (*Intent, error)
	Retrieve(ctx context.Context, intentID string) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

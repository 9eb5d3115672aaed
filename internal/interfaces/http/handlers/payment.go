// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"io"
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/order"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

// PaymentHandler receives payment gateway webhooks
type PaymentHandler struct {
	orderService *order.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(orderService *order.Service) *PaymentHandler {
	return &PaymentHandler{orderService: orderService}
}

// StripeWebhook handles POST /payments/webhook
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.CodeValidation, err, "failed to read webhook body"))
		return
	}

	if err := h.orderService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

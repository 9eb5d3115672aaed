// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/checkout"
	"github.com/gin-gonic/gin"
)

// CheckoutHandler handles checkout quotes
type CheckoutHandler struct {
	checkoutService *checkout.Service
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Quote handles POST /checkout/quote. Without items the caller's cart is priced.
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req checkout.QuoteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	quote, err := h.checkoutService.Quote(c.Request.Context(), checkout.Input{
		Owner:      cartOwner(c),
		Items:      req.Items,
		CouponCode: req.CouponCode,
		AutoApply:  req.AutoApply,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout quote calculated",
		"data":    quote,
	})
}

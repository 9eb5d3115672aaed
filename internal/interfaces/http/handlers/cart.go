// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/gin-gonic/gin"
)

// CartHandler handles cart endpoints for signed in users and guest sessions
type CartHandler struct {
	cartService *cart.Service
}

// itemKeyURI is the productId-size-vendorId-color path parameter of a cart line
type itemKeyURI struct {
	Key string `uri:"key" json:"key" binding:"required,cartkey"`
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	cartResponse, err := h.cartService.GetCart(c.Request.Context(), cartOwner(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    cartResponse,
	})
}

// SyncCart handles POST /cart with the client's local cart state
func (h *CartHandler) SyncCart(c *gin.Context) {
	var req cart.SyncRequest
	if !bindJSON(c, &req) {
		return
	}

	cartResponse, err := h.cartService.Sync(c.Request.Context(), cartOwner(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart synced successfully",
		"data":    cartResponse,
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req cart.ItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cartResponse, err := h.cartService.AddItem(c.Request.Context(), cartOwner(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    cartResponse,
	})
}

// UpdateCartItem handles PUT /cart/items/:key
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	var item itemKeyURI
	if !bindURI(c, &item) {
		return
	}
	var req cart.UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cartResponse, err := h.cartService.UpdateItem(c.Request.Context(), cartOwner(c), item.Key, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    cartResponse,
	})
}

// RemoveFromCart handles DELETE /cart/items/:key
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	var item itemKeyURI
	if !bindURI(c, &item) {
		return
	}

	cartResponse, err := h.cartService.RemoveItem(c.Request.Context(), cartOwner(c), item.Key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    cartResponse,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), cartOwner(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

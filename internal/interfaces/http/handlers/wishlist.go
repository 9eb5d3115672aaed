// internal/interfaces/http/handlers/wishlist.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/wishlist"
	"github.com/gin-gonic/gin"
)

// WishlistHandler handles wishlist and compare endpoints
type WishlistHandler struct {
	wishlistService *wishlist.Service
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(wishlistService *wishlist.Service) *WishlistHandler {
	return &WishlistHandler{wishlistService: wishlistService}
}

// GetWishlist handles GET /wishlist
func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req wishlist.ListRequest
	if !bindQuery(c, &req) {
		return
	}

	response, err := h.wishlistService.GetWishlist(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist retrieved successfully",
		"data":    response,
	})
}

// AddToWishlist handles POST /wishlist
func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req wishlist.AddRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.wishlistService.AddToWishlist(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product added to wishlist successfully",
		"data":    item,
	})
}

// RemoveFromWishlist handles DELETE /wishlist/:product_id?sub_product_id=
func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	subProductID, _ := strconv.ParseUint(c.Query("sub_product_id"), 10, 32)

	if err := h.wishlistService.RemoveFromWishlist(c.Request.Context(), userID, productID, uint(subProductID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product removed from wishlist successfully",
	})
}

// ClearWishlist handles DELETE /wishlist
func (h *WishlistHandler) ClearWishlist(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.wishlistService.ClearWishlist(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist cleared successfully",
	})
}

// CheckWishlistStatus handles GET /wishlist/check/:product_id
func (h *WishlistHandler) CheckWishlistStatus(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}

	inWishlist, err := h.wishlistService.IsInWishlist(c.Request.Context(), userID, productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"product_id":  productID,
			"in_wishlist": inWishlist,
		},
	})
}

// MoveToCart handles POST /wishlist/:item_id/move-to-cart
func (h *WishlistHandler) MoveToCart(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return
	}

	var req wishlist.MoveToCartRequest
	if !bindJSON(c, &req) {
		return
	}

	cartResponse, err := h.wishlistService.MoveToCart(c.Request.Context(), userID, itemID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item moved to cart successfully",
		"data":    cartResponse,
	})
}

// GetCompare handles GET /compare
func (h *WishlistHandler) GetCompare(c *gin.Context) {
	response, err := h.wishlistService.GetCompare(c.Request.Context(), compareScope(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": response,
	})
}

// AddToCompare handles POST /compare
func (h *WishlistHandler) AddToCompare(c *gin.Context) {
	var req struct {
		ProductID uint `json:"product_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.wishlistService.AddToCompare(c.Request.Context(), compareScope(c), req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product added to comparison",
		"data":    response,
	})
}

// RemoveFromCompare handles DELETE /compare/:product_id
func (h *WishlistHandler) RemoveFromCompare(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}

	response, err := h.wishlistService.RemoveFromCompare(c.Request.Context(), compareScope(c), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product removed from comparison",
		"data":    response,
	})
}

// ClearCompare handles DELETE /compare
func (h *WishlistHandler) ClearCompare(c *gin.Context) {
	if err := h.wishlistService.ClearCompare(c.Request.Context(), compareScope(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Comparison cleared",
	})
}

func compareScope(c *gin.Context) wishlist.CompareScope {
	owner := cartOwner(c)
	return wishlist.CompareScope{UserID: owner.UserID, SessionID: owner.SessionID}
}

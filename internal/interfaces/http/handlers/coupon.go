// internal/interfaces/http/handlers/coupon.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/coupon"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/gin-gonic/gin"
)

// CouponHandler handles coupon validation and admin coupon management
type CouponHandler struct {
	couponService *coupon.Service
	cartService   *cart.Service
	shippingFee   int64
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(couponService *coupon.Service, cartService *cart.Service, shippingFee int64) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
		cartService:   cartService,
		shippingFee:   shippingFee,
	}
}

// ValidateCoupon handles POST /coupons/validate.
// Without items the caller's current cart is evaluated; a bare subtotal is evaluated as is.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req coupon.ValidateRequest
	if !bindJSON(c, &req) {
		return
	}

	in, err := h.input(c, req.Items, req.Subtotal)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.couponService.Validate(c.Request.Context(), req.Code, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": result.Message,
		"data":    result,
	})
}

// AutoApply handles POST /coupons/auto-apply. data is null when nothing applies.
func (h *CouponHandler) AutoApply(c *gin.Context) {
	var req struct {
		Subtotal *int64        `json:"subtotal" binding:"omitempty,gte=0"`
		Items    []coupon.Line `json:"items" binding:"omitempty,max=100,dive"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}

	in, err := h.input(c, req.Items, req.Subtotal)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.couponService.AutoApply(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": result,
	})
}

func (h *CouponHandler) input(c *gin.Context, items []coupon.Line, subtotal *int64) (coupon.Input, error) {
	in := coupon.Input{UserID: optionalUserID(c), ShippingFee: h.shippingFee}

	switch {
	case len(items) > 0:
		in.Lines = items
		for _, l := range items {
			in.Subtotal += l.LineTotal
		}
	case subtotal != nil:
		in.Subtotal = *subtotal
	default:
		current, err := h.cartService.GetCart(c.Request.Context(), cartOwner(c))
		if err != nil {
			return in, err
		}
		in.Lines = coupon.LinesFromCart(current)
		in.Subtotal = current.Subtotal
	}
	return in, nil
}

// ListCoupons handles GET /admin/coupons
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	var req coupon.ListRequest
	if !bindQuery(c, &req) {
		return
	}

	coupons, total, err := h.couponService.List(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       coupons,
		"pagination": product.NewPagination(req.Page, req.Limit, total),
	})
}

// GetCoupon handles GET /admin/coupons/:id
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	found, err := h.couponService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": found,
	})
}

// CreateCoupon handles POST /admin/coupons
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req coupon.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.couponService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Coupon created successfully",
		"data":    created,
	})
}

// UpdateCoupon handles PUT /admin/coupons/:id
func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req coupon.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.couponService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon updated successfully",
		"data":    updated,
	})
}

// DeleteCoupon handles DELETE /admin/coupons/:id
func (h *CouponHandler) DeleteCoupon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.couponService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon deleted successfully",
	})
}

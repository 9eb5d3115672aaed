// internal/interfaces/http/handlers/order.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/order"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/middleware"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// OrderHandler handles order endpoints for customers, guests, vendors and admins
type OrderHandler struct {
	orderService *order.Service
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *order.Service) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// orderViewer describes the caller. Guests prove ownership with ?email=.
func orderViewer(c *gin.Context) order.Viewer {
	return order.Viewer{
		UserID:  optionalUserID(c),
		IsAdmin: middleware.IsAdminFromContext(c),
		Email:   c.Query("email"),
	}
}

// CreateOrder handles POST /orders (checkout)
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req order.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	owner := cartOwner(c)
	if owner.IsGuest() && req.Email == "" {
		respondError(c, apperrors.New(apperrors.CodeValidation, "email is required for guest checkout"))
		return
	}

	created, err := h.orderService.CreateOrder(c.Request.Context(), owner, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"data":    created,
	})
}

// ConfirmPayment handles POST /orders/:id
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req order.ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.PaymentIntentID == "" && req.PaymentMethodID == "" {
		respondError(c, apperrors.New(apperrors.CodeValidation, "payment_intent_id or payment_method_id is required"))
		return
	}

	paid, err := h.orderService.ConfirmPayment(c.Request.Context(), orderViewer(c), orderID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment confirmed",
		"data":    paid,
	})
}

// GetUserOrders handles GET /orders
func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req order.OrderListRequest
	if !bindQuery(c, &req) {
		return
	}

	response, err := h.orderService.GetUserOrders(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    response,
	})
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	found, err := h.orderService.GetOrder(c.Request.Context(), orderViewer(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    found,
	})
}

// GetOrderByNumber handles GET /orders/number/:orderNumber
func (h *OrderHandler) GetOrderByNumber(c *gin.Context) {
	found, err := h.orderService.GetOrderByNumber(c.Request.Context(), orderViewer(c), c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    found,
	})
}

// CancelOrder handles PUT /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req order.CancelOrderRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	viewer := orderViewer(c)
	if viewer.Email == "" {
		viewer.Email = req.Email
	}

	cancelled, err := h.orderService.CancelOrder(c.Request.Context(), viewer, orderID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully",
		"data":    cancelled,
	})
}

// GetAllOrders handles GET /admin/orders
func (h *OrderHandler) GetAllOrders(c *gin.Context) {
	var req order.OrderListRequest
	if !bindQuery(c, &req) {
		return
	}

	response, err := h.orderService.GetOrders(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    response,
	})
}

// GetVendorOrders handles GET /vendor/orders, scoped to the vendor's tenant
func (h *OrderHandler) GetVendorOrders(c *gin.Context) {
	var req order.OrderListRequest
	if !bindQuery(c, &req) {
		return
	}
	if scope := middleware.TenantIDFromContext(c); scope != nil {
		req.TenantID = *scope
	}
	req.UserID = 0

	response, err := h.orderService.GetOrders(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    response,
	})
}

// UpdateOrderStatus handles PUT /admin/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	adminID, ok := requireUserID(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req order.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.orderService.UpdateOrderStatus(c.Request.Context(), adminID, orderID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"data":    updated,
	})
}

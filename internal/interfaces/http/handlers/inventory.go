// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/inventory"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// InventoryHandler handles stock ledger and alert endpoints.
// Vendors only see their own stock; admins see every tenant.
type InventoryHandler struct {
	inventoryService *inventory.Service
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService *inventory.Service) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// GetMovements handles GET /inventory/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	var filter inventory.MovementFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = middleware.TenantIDFromContext(c)

	movements, total, err := h.inventoryService.ListMovements(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock movements retrieved successfully",
		"data": gin.H{
			"movements": movements,
			"total":     total,
			"page":      filter.Page,
			"limit":     filter.Limit,
		},
	})
}

// GetAlerts handles GET /inventory/alerts?resolved=false
func (h *InventoryHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.inventoryService.ListAlerts(c.Request.Context(), middleware.TenantIDFromContext(c), c.Query("resolved") == "true")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock alerts retrieved successfully",
		"data":    alerts,
	})
}

// ResolveAlert handles PUT /inventory/alerts/:id/resolve
func (h *InventoryHandler) ResolveAlert(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.inventoryService.ResolveAlert(c.Request.Context(), id, middleware.TenantIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert resolved successfully",
	})
}

// GetLowStock handles GET /inventory/low-stock
func (h *InventoryHandler) GetLowStock(c *gin.Context) {
	levels, err := h.inventoryService.LowStock(c.Request.Context(), middleware.TenantIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Low stock items retrieved successfully",
		"data":    levels,
	})
}

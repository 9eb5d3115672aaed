// internal/interfaces/http/handlers/flashsale.go
package handlers

import (
	"net/http"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/gin-gonic/gin"
)

// FlashSaleHandler handles flash sale endpoints
type FlashSaleHandler struct {
	flashSaleService *flashsale.Service
}

// NewFlashSaleHandler creates a new flash sale handler
func NewFlashSaleHandler(flashSaleService *flashsale.Service) *FlashSaleHandler {
	return &FlashSaleHandler{flashSaleService: flashSaleService}
}

// GetActive handles GET /flash-sales/active
func (h *FlashSaleHandler) GetActive(c *gin.Context) {
	sales, err := h.flashSaleService.ListActive(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": sales,
	})
}

// GetBySlug handles GET /flash-sales/:slug
func (h *FlashSaleHandler) GetBySlug(c *gin.Context) {
	sale, err := h.flashSaleService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": sale,
	})
}

// ListFlashSales handles GET /admin/flash-sales?status=
func (h *FlashSaleHandler) ListFlashSales(c *gin.Context) {
	sales, err := h.flashSaleService.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Flash sales retrieved successfully",
		"data":    sales,
	})
}

// GetFlashSale handles GET /admin/flash-sales/:id
func (h *FlashSaleHandler) GetFlashSale(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	sale, err := h.flashSaleService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": sale,
	})
}

// CreateFlashSale handles POST /admin/flash-sales
func (h *FlashSaleHandler) CreateFlashSale(c *gin.Context) {
	var req flashsale.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	sale, err := h.flashSaleService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Flash sale created successfully",
		"data":    sale,
	})
}

// UpdateFlashSale handles PUT /admin/flash-sales/:id
func (h *FlashSaleHandler) UpdateFlashSale(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req flashsale.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	sale, err := h.flashSaleService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Flash sale updated successfully",
		"data":    sale,
	})
}

// CancelFlashSale handles POST /admin/flash-sales/:id/cancel
func (h *FlashSaleHandler) CancelFlashSale(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.flashSaleService.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Flash sale cancelled successfully",
	})
}

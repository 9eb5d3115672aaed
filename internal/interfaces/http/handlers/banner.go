// internal/interfaces/http/handlers/banner.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/banner"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BannerHandler handles promotional banner endpoints
type BannerHandler struct {
	bannerService *banner.Service
}

// NewBannerHandler creates a new banner handler
func NewBannerHandler(bannerService *banner.Service) *BannerHandler {
	return &BannerHandler{bannerService: bannerService}
}

// GetByPlacement handles GET /banners/placement/:placement?limit=5&category_id=
func (h *BannerHandler) GetByPlacement(c *gin.Context) {
	var categoryID *uint
	if id := queryInt(c, "category_id", 0); id > 0 {
		cid := uint(id)
		categoryID = &cid
	}

	banners, err := h.bannerService.ByPlacement(c.Request.Context(), c.Param("placement"), categoryID, queryInt(c, "limit", 5))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": banners,
	})
}

// RecordImpression handles POST /banners/:id/impression
func (h *BannerHandler) RecordImpression(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.bannerService.RecordImpression(c.Request.Context(), id, interaction(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RecordClick handles POST /banners/:id/click
func (h *BannerHandler) RecordClick(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.bannerService.RecordClick(c.Request.Context(), id, interaction(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func interaction(c *gin.Context) banner.Interaction {
	return banner.Interaction{
		UserID:    optionalUserID(c),
		SessionID: middleware.SessionIDFromContext(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// ListBanners handles GET /admin/banners?placement=
func (h *BannerHandler) ListBanners(c *gin.Context) {
	banners, err := h.bannerService.List(c.Request.Context(), c.Query("placement"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Banners retrieved successfully",
		"data":    banners,
	})
}

// GetBanner handles GET /admin/banners/:id
func (h *BannerHandler) GetBanner(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	b, err := h.bannerService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": b,
	})
}

// GetBannerStats handles GET /admin/banners/:id/stats
func (h *BannerHandler) GetBannerStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	stats, err := h.bannerService.Stats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

// CreateBanner handles POST /admin/banners
func (h *BannerHandler) CreateBanner(c *gin.Context) {
	var req banner.Request
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.bannerService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Banner created successfully",
		"data":    b,
	})
}

// UpdateBanner handles PUT /admin/banners/:id
func (h *BannerHandler) UpdateBanner(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req banner.Request
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.bannerService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Banner updated successfully",
		"data":    b,
	})
}

// DeleteBanner handles DELETE /admin/banners/:id
func (h *BannerHandler) DeleteBanner(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.bannerService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Banner deleted successfully",
	})
}

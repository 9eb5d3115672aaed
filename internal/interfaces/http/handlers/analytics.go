// internal/interfaces/http/handlers/analytics.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/analytics"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler handles analytics endpoints
type AnalyticsHandler struct {
	analyticsService *analytics.Service
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// GetDashboard handles GET /admin/analytics/dashboard?days=30
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	stats, err := h.analyticsService.GetDashboardStats(c.Request.Context(), queryInt(c, "days", 30))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Dashboard statistics retrieved successfully",
		"data":    stats,
	})
}

// GetTopSearches handles GET /admin/analytics/searches?days=7&limit=20
func (h *AnalyticsHandler) GetTopSearches(c *gin.Context) {
	report, err := h.analyticsService.TopSearches(c.Request.Context(), queryInt(c, "days", 7), queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Search report retrieved successfully",
		"data":    report,
	})
}

// GetRevenueReport handles GET /admin/analytics/revenue?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AnalyticsHandler) GetRevenueReport(c *gin.Context) {
	report, err := h.analyticsService.RevenueReport(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Revenue report retrieved successfully",
		"data":    report,
	})
}

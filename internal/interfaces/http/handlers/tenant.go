// internal/interfaces/http/handlers/tenant.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/gin-gonic/gin"
)

// TenantHandler handles vendor administration
type TenantHandler struct {
	tenantService *tenant.Service
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantService *tenant.Service) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// ListTenants handles GET /admin/tenants?status=active
func (h *TenantHandler) ListTenants(c *gin.Context) {
	tenants, err := h.tenantService.ListTenants(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tenants retrieved successfully",
		"data":    tenants,
	})
}

// GetTenant handles GET /admin/tenants/:id
func (h *TenantHandler) GetTenant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	t, err := h.tenantService.GetTenant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": t,
	})
}

// CreateTenant handles POST /admin/tenants
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	var req tenant.CreateTenantRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.tenantService.CreateTenant(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Tenant created successfully",
		"data":    t,
	})
}

// UpdateTenant handles PUT /admin/tenants/:id
func (h *TenantHandler) UpdateTenant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req tenant.UpdateTenantRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.tenantService.UpdateTenant(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tenant updated successfully",
		"data":    t,
	})
}

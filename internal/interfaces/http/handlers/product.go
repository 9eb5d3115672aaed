// internal/interfaces/http/handlers/product.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/middleware"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// ProductHandler handles catalog endpoints
type ProductHandler struct {
	productService *product.Service
}

// NewProductHandler creates a new product handler
func NewProductHandler(productService *product.Service) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// SearchProducts handles GET /products/search
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	var req product.SearchRequest
	if !bindQuery(c, &req) {
		return
	}
	req.UserID = optionalUserID(c)
	req.SessionID = middleware.SessionIDFromContext(c)

	response, err := h.productService.Search(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Products retrieved successfully",
		"data":    response,
	})
}

// GetFeaturedProducts handles GET /products/featured
func (h *ProductHandler) GetFeaturedProducts(c *gin.Context) {
	products, err := h.productService.GetFeatured(c.Request.Context(), queryInt(c, "limit", 8))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": products,
	})
}

// GetProductBySlug handles GET /products/slug/:slug
func (h *ProductHandler) GetProductBySlug(c *gin.Context) {
	found, err := h.productService.GetProductBySlug(c.Request.Context(), c.Param("slug"), optionalUserID(c), middleware.SessionIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    found,
	})
}

// GetProduct handles GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	found, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    found,
	})
}

// GetRelatedProducts handles GET /products/:id/related
func (h *ProductHandler) GetRelatedProducts(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	products, err := h.productService.GetRelated(c.Request.Context(), id, queryInt(c, "limit", 4))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": products,
	})
}

// ListProducts handles GET /admin/products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var req product.ListRequest
	if !bindQuery(c, &req) {
		return
	}

	products, pagination, err := h.productService.ListProducts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       products,
		"pagination": pagination,
	})
}

// CreateProduct handles POST /admin/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req product.ProductCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"data":    created,
	})
}

// UpdateProduct handles PUT /admin/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.ProductUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.productService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"data":    updated,
	})
}

// DeleteProduct handles DELETE /admin/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
	})
}

// GetSubProduct handles GET /sub-products/:id
func (h *ProductHandler) GetSubProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	found, err := h.productService.GetSubProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": found,
	})
}

// ListVendorSubProducts handles GET /vendor/sub-products
func (h *ProductHandler) ListVendorSubProducts(c *gin.Context) {
	scope := middleware.TenantIDFromContext(c)
	tenantID := uint(queryInt(c, "tenant_id", 0))
	if scope != nil {
		tenantID = *scope
	}
	if tenantID == 0 {
		respondError(c, apperrors.New(apperrors.CodeValidation, "tenant_id is required"))
		return
	}

	subProducts, err := h.productService.ListTenantSubProducts(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": subProducts,
	})
}

// CreateSubProduct handles POST /vendor/sub-products.
// Vendors always create offers for their own tenant.
func (h *ProductHandler) CreateSubProduct(c *gin.Context) {
	var req product.SubProductCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.productService.CreateSubProduct(c.Request.Context(), middleware.TenantIDFromContext(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Sub-product created successfully",
		"data":    created,
	})
}

// UpdateSubProduct handles PUT /vendor/sub-products/:id
func (h *ProductHandler) UpdateSubProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.SubProductUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.productService.UpdateSubProduct(c.Request.Context(), middleware.TenantIDFromContext(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sub-product updated successfully",
		"data":    updated,
	})
}

// UpdateSizeStock handles PUT /vendor/sizes/:id/stock
func (h *ProductHandler) UpdateSizeStock(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}
	sizeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.StockUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	size, err := h.productService.UpdateSizeStock(c.Request.Context(), middleware.TenantIDFromContext(c), actorID, sizeID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock updated successfully",
		"data":    size,
	})
}

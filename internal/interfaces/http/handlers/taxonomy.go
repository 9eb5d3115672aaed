// internal/interfaces/http/handlers/taxonomy.go
package handlers

import (
	"net/http"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/gin-gonic/gin"
)

// TaxonomyHandler handles categories, brands and tags
type TaxonomyHandler struct {
	taxonomyService *product.TaxonomyService
}

// NewTaxonomyHandler creates a new taxonomy handler
func NewTaxonomyHandler(taxonomyService *product.TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomyService: taxonomyService}
}

// GetCategories handles GET /categories
func (h *TaxonomyHandler) GetCategories(c *gin.Context) {
	tree, err := h.taxonomyService.GetCategoryTree(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": tree,
	})
}

// GetCategoryBySlug handles GET /categories/:slug
func (h *TaxonomyHandler) GetCategoryBySlug(c *gin.Context) {
	category, err := h.taxonomyService.GetCategoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": category,
	})
}

// GetAllCategories handles GET /admin/categories, including inactive ones
func (h *TaxonomyHandler) GetAllCategories(c *gin.Context) {
	tree, err := h.taxonomyService.GetCategoryTree(c.Request.Context(), true)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": tree,
	})
}

// CreateCategory handles POST /admin/categories
func (h *TaxonomyHandler) CreateCategory(c *gin.Context) {
	var req product.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.taxonomyService.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Category created successfully",
		"data":    category,
	})
}

// UpdateCategory handles PUT /admin/categories/:id
func (h *TaxonomyHandler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.taxonomyService.UpdateCategory(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Category updated successfully",
		"data":    category,
	})
}

// DeleteCategory handles DELETE /admin/categories/:id
func (h *TaxonomyHandler) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.taxonomyService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Category deleted successfully",
	})
}

// GetBrands handles GET /brands?featured=true
func (h *TaxonomyHandler) GetBrands(c *gin.Context) {
	brands, err := h.taxonomyService.ListBrands(c.Request.Context(), c.Query("featured") == "true")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": brands,
	})
}

// CreateBrand handles POST /admin/brands
func (h *TaxonomyHandler) CreateBrand(c *gin.Context) {
	var req product.BrandRequest
	if !bindJSON(c, &req) {
		return
	}

	brand, err := h.taxonomyService.CreateBrand(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Brand created successfully",
		"data":    brand,
	})
}

// UpdateBrand handles PUT /admin/brands/:id
func (h *TaxonomyHandler) UpdateBrand(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.BrandRequest
	if !bindJSON(c, &req) {
		return
	}

	brand, err := h.taxonomyService.UpdateBrand(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Brand updated successfully",
		"data":    brand,
	})
}

// DeleteBrand handles DELETE /admin/brands/:id
func (h *TaxonomyHandler) DeleteBrand(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.taxonomyService.DeleteBrand(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Brand deleted successfully",
	})
}

// GetTags handles GET /tags
func (h *TaxonomyHandler) GetTags(c *gin.Context) {
	tags, err := h.taxonomyService.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": tags,
	})
}

// GetPopularTags handles GET /tags/popular
func (h *TaxonomyHandler) GetPopularTags(c *gin.Context) {
	tags, err := h.taxonomyService.ListPopularTags(c.Request.Context(), queryInt(c, "limit", 10))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": tags,
	})
}

// CreateTag handles POST /admin/tags
func (h *TaxonomyHandler) CreateTag(c *gin.Context) {
	var req product.TagRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := h.taxonomyService.CreateTag(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Tag created successfully",
		"data":    tag,
	})
}

// UpdateTag handles PUT /admin/tags/:id
func (h *TaxonomyHandler) UpdateTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.TagRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := h.taxonomyService.UpdateTag(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tag updated successfully",
		"data":    tag,
	})
}

// DeleteTag handles DELETE /admin/tags/:id
func (h *TaxonomyHandler) DeleteTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.taxonomyService.DeleteTag(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tag deleted successfully",
	})
}

// RecalculatePopularity handles POST /admin/taxonomy/recalculate
func (h *TaxonomyHandler) RecalculatePopularity(c *gin.Context) {
	if err := h.taxonomyService.RecalculatePopularity(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Popularity scores recalculated",
	})
}

// internal/domain/product/taxonomy_service.go
package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// TaxonomyService handles categories, brands and tags
type TaxonomyService struct {
	db      *gorm.DB
	catalog *Service
}

// NewTaxonomyService creates a new taxonomy service
func NewTaxonomyService(db *gorm.DB, catalog *Service) *TaxonomyService {
	return &TaxonomyService{
		db:      db,
		catalog: catalog,
	}
}

// CategoryRequest represents category creation or update data
type CategoryRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=255"`
	Description string `json:"description" binding:"max=500"`
	Image       string `json:"image" binding:"omitempty,url"`
	ParentID    *uint  `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

// BrandRequest represents brand creation or update data
type BrandRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"max=500"`
	Logo        string `json:"logo" binding:"omitempty,url"`
	Website     string `json:"website" binding:"omitempty,url"`
	Country     string `json:"country" binding:"max=100"`
	IsActive    *bool  `json:"is_active"`
	IsFeatured  bool   `json:"is_featured"`
}

// TagRequest represents tag creation or update data
type TagRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	IsActive *bool  `json:"is_active"`
}

// CategoryTree represents hierarchical category structure
type CategoryTree struct {
	Category
	Children []CategoryTree `json:"children,omitempty"`
}

// PopularityWeights are the factors of the popularity score
var PopularityWeights = struct {
	Sales    float64
	Views    float64
	Searches float64
}{Sales: 3, Views: 1, Searches: 2}

// Score computes the popularity score from raw counters
func Score(sales, views, searches int64) float64 {
	return PopularityWeights.Sales*float64(sales) +
		PopularityWeights.Views*float64(views) +
		PopularityWeights.Searches*float64(searches)
}

// GetCategoryTree retrieves active categories in hierarchical order
func (s *TaxonomyService) GetCategoryTree(ctx context.Context, includeInactive bool) ([]CategoryTree, error) {
	categories := []Category{}
	query := s.db.WithContext(ctx).Order("sort_order ASC, name ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}

	return buildCategoryTree(categories, nil), nil
}

func buildCategoryTree(categories []Category, parentID *uint) []CategoryTree {
	nodes := []CategoryTree{}
	for _, cat := range categories {
		if !sameParent(cat.ParentID, parentID) {
			continue
		}
		nodes = append(nodes, CategoryTree{
			Category: cat,
			Children: buildCategoryTree(categories, &cat.ID),
		})
	}
	return nodes
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// GetCategoryBySlug retrieves a category with its direct children
func (s *TaxonomyService) GetCategoryBySlug(ctx context.Context, categorySlug string) (*Category, error) {
	var category Category
	if err := s.db.WithContext(ctx).
		Preload("Children", "is_active = ?", true).
		Where("slug = ? AND is_active = ?", categorySlug, true).
		First(&category).Error; err != nil {
		return nil, apperrors.FromGorm(err, "category")
	}
	return &category, nil
}

// CreateCategory creates a category
func (s *TaxonomyService) CreateCategory(ctx context.Context, req *CategoryRequest) (*Category, error) {
	db := s.db.WithContext(ctx)

	if req.ParentID != nil {
		if err := db.First(&Category{}, *req.ParentID).Error; err != nil {
			return nil, apperrors.FromGorm(err, "parent category")
		}
	}

	categorySlug, err := s.catalog.uniqueSlug(db, &Category{}, req.Name)
	if err != nil {
		return nil, err
	}

	category := Category{
		Name:        strings.TrimSpace(req.Name),
		Slug:        categorySlug,
		Description: req.Description,
		Image:       req.Image,
		ParentID:    req.ParentID,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := db.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &category, nil
}

// UpdateCategory updates a category and guards against cycles
func (s *TaxonomyService) UpdateCategory(ctx context.Context, id uint, req *CategoryRequest) (*Category, error) {
	db := s.db.WithContext(ctx)

	var category Category
	if err := db.First(&category, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "category")
	}

	if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, apperrors.New(apperrors.CodeValidation, "category cannot be its own parent")
		}
		ancestors, err := s.ancestors(db, *req.ParentID)
		if err != nil {
			return nil, err
		}
		for _, ancestor := range ancestors {
			if ancestor == id {
				return nil, apperrors.New(apperrors.CodeValidation, "category parent would create a cycle")
			}
		}
	}

	if name := strings.TrimSpace(req.Name); name != category.Name {
		categorySlug, err := s.catalog.uniqueSlug(db, &Category{}, name)
		if err != nil {
			return nil, err
		}
		category.Name = name
		category.Slug = categorySlug
	}
	category.Description = req.Description
	category.Image = req.Image
	category.ParentID = req.ParentID
	category.SortOrder = req.SortOrder
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := db.Omit("Parent", "Children").Save(&category).Error; err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	s.catalog.invalidateSearchCache(ctx)
	return &category, nil
}

// ancestors returns all ancestor ids of a category
func (s *TaxonomyService) ancestors(db *gorm.DB, categoryID uint) ([]uint, error) {
	ids := []uint{categoryID}
	current := categoryID
	for depth := 0; depth < 32; depth++ {
		var category Category
		if err := db.Select("id", "parent_id").First(&category, current).Error; err != nil {
			return nil, apperrors.FromGorm(err, "category")
		}
		if category.ParentID == nil {
			break
		}
		ids = append(ids, *category.ParentID)
		current = *category.ParentID
	}
	return ids, nil
}

// DeleteCategory soft deletes an empty leaf category
func (s *TaxonomyService) DeleteCategory(ctx context.Context, id uint) error {
	db := s.db.WithContext(ctx)

	var productCount int64
	if err := db.Model(&Product{}).Where("category_id = ?", id).Count(&productCount).Error; err != nil {
		return fmt.Errorf("failed to count category products: %w", err)
	}
	if productCount > 0 {
		return apperrors.New(apperrors.CodeConflict, "cannot delete category with existing products")
	}

	var childCount int64
	if err := db.Model(&Category{}).Where("parent_id = ?", id).Count(&childCount).Error; err != nil {
		return fmt.Errorf("failed to count subcategories: %w", err)
	}
	if childCount > 0 {
		return apperrors.New(apperrors.CodeConflict, "cannot delete category with subcategories")
	}

	result := db.Where("id = ?", id).Delete(&Category{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete category: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("category")
	}
	return nil
}

// ListBrands lists active brands, featured first
func (s *TaxonomyService) ListBrands(ctx context.Context, featuredOnly bool) ([]Brand, error) {
	brands := []Brand{}
	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	if featuredOnly {
		query = query.Where("is_featured = ?", true)
	}
	if err := query.Order("is_featured DESC, popularity_score DESC, name ASC").Find(&brands).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve brands: %w", err)
	}
	return brands, nil
}

// CreateBrand creates a brand
func (s *TaxonomyService) CreateBrand(ctx context.Context, req *BrandRequest) (*Brand, error) {
	db := s.db.WithContext(ctx)

	brandSlug, err := s.catalog.uniqueSlug(db, &Brand{}, req.Name)
	if err != nil {
		return nil, err
	}

	brand := Brand{
		Name:        strings.TrimSpace(req.Name),
		Slug:        brandSlug,
		Description: req.Description,
		Logo:        req.Logo,
		Website:     req.Website,
		Country:     req.Country,
		IsActive:    req.IsActive == nil || *req.IsActive,
		IsFeatured:  req.IsFeatured,
	}
	if err := db.Create(&brand).Error; err != nil {
		return nil, fmt.Errorf("failed to create brand: %w", err)
	}
	return &brand, nil
}

// UpdateBrand updates a brand
func (s *TaxonomyService) UpdateBrand(ctx context.Context, id uint, req *BrandRequest) (*Brand, error) {
	db := s.db.WithContext(ctx)

	var brand Brand
	if err := db.First(&brand, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "brand")
	}

	if name := strings.TrimSpace(req.Name); name != brand.Name {
		brandSlug, err := s.catalog.uniqueSlug(db, &Brand{}, name)
		if err != nil {
			return nil, err
		}
		brand.Name = name
		brand.Slug = brandSlug
	}
	brand.Description = req.Description
	brand.Logo = req.Logo
	brand.Website = req.Website
	brand.Country = req.Country
	brand.IsFeatured = req.IsFeatured
	if req.IsActive != nil {
		brand.IsActive = *req.IsActive
	}

	if err := db.Save(&brand).Error; err != nil {
		return nil, fmt.Errorf("failed to update brand: %w", err)
	}
	s.catalog.invalidateSearchCache(ctx)
	return &brand, nil
}

// DeleteBrand soft deletes a brand without products
func (s *TaxonomyService) DeleteBrand(ctx context.Context, id uint) error {
	db := s.db.WithContext(ctx)

	var productCount int64
	if err := db.Model(&Product{}).Where("brand_id = ?", id).Count(&productCount).Error; err != nil {
		return fmt.Errorf("failed to count brand products: %w", err)
	}
	if productCount > 0 {
		return apperrors.New(apperrors.CodeConflict, "cannot delete brand with existing products")
	}

	result := db.Where("id = ?", id).Delete(&Brand{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete brand: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("brand")
	}
	return nil
}

// ListTags lists active tags alphabetically
func (s *TaxonomyService) ListTags(ctx context.Context) ([]Tag, error) {
	tags := []Tag{}
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve tags: %w", err)
	}
	return tags, nil
}

// ListPopularTags returns the highest scoring active tags
func (s *TaxonomyService) ListPopularTags(ctx context.Context, limit int) ([]Tag, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	tags := []Tag{}
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("popularity_score DESC, search_count DESC, name ASC").
		Limit(limit).
		Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve popular tags: %w", err)
	}
	return tags, nil
}

// CreateTag creates a tag, returning the existing one when the name is taken
func (s *TaxonomyService) CreateTag(ctx context.Context, req *TagRequest) (*Tag, error) {
	db := s.db.WithContext(ctx)
	name := strings.ToLower(strings.TrimSpace(req.Name))

	var existing Tag
	if err := db.Where("LOWER(name) = ?", name).First(&existing).Error; err == nil {
		return &existing, nil
	}

	tagSlug, err := s.catalog.uniqueSlug(db, &Tag{}, name)
	if err != nil {
		return nil, err
	}

	tag := Tag{
		Name:     name,
		Slug:     tagSlug,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := db.Create(&tag).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.Newf(apperrors.CodeConflict, "tag %s already exists", name)
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &tag, nil
}

// UpdateTag renames or toggles a tag
func (s *TaxonomyService) UpdateTag(ctx context.Context, id uint, req *TagRequest) (*Tag, error) {
	db := s.db.WithContext(ctx)

	var tag Tag
	if err := db.First(&tag, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "tag")
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name != tag.Name {
		tagSlug, err := s.catalog.uniqueSlug(db, &Tag{}, name)
		if err != nil {
			return nil, err
		}
		tag.Name = name
		tag.Slug = tagSlug
	}
	if req.IsActive != nil {
		tag.IsActive = *req.IsActive
	}

	if err := db.Save(&tag).Error; err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	return &tag, nil
}

// DeleteTag removes a tag and its product links
func (s *TaxonomyService) DeleteTag(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM product_tags WHERE tag_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to unlink tag: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&Tag{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete tag: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("tag")
		}
		return nil
	})
}

// RecalculatePopularity refreshes product counts and popularity scores of every taxonomy entity
func (s *TaxonomyService) RecalculatePopularity(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := recalculateGroup(tx, &Category{}, "categories",
			"SELECT category_id AS id, COUNT(*) AS products, COALESCE(SUM(sales_count), 0) AS sales FROM products WHERE deleted_at IS NULL AND status = ? AND category_id IS NOT NULL GROUP BY category_id"); err != nil {
			return err
		}
		if err := recalculateGroup(tx, &Brand{}, "brands",
			"SELECT brand_id AS id, COUNT(*) AS products, COALESCE(SUM(sales_count), 0) AS sales FROM products WHERE deleted_at IS NULL AND status = ? AND brand_id IS NOT NULL GROUP BY brand_id"); err != nil {
			return err
		}
		return recalculateGroup(tx, &Tag{}, "tags",
			"SELECT product_tags.tag_id AS id, COUNT(*) AS products, COALESCE(SUM(products.sales_count), 0) AS sales FROM product_tags JOIN products ON products.id = product_tags.product_id WHERE products.deleted_at IS NULL AND products.status = ? GROUP BY product_tags.tag_id")
	})
}

// recalculateGroup applies aggregated product counts and sales to one taxonomy table
func recalculateGroup(tx *gorm.DB, model interface{}, table, aggregateSQL string) error {
	type row struct {
		ID       uint
		Products int64
		Sales    int64
	}

	rows := []row{}
	if err := tx.Raw(aggregateSQL, StatusActive).Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to aggregate %s: %w", table, err)
	}
	byID := make(map[uint]row, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	type counters struct {
		ID          uint
		ViewCount   int64
		SearchCount int64
	}
	current := []counters{}
	if err := tx.Model(model).Select("id", "view_count", "search_count").Scan(&current).Error; err != nil {
		return fmt.Errorf("failed to load %s counters: %w", table, err)
	}

	for _, c := range current {
		agg := byID[c.ID]
		if err := tx.Model(model).Where("id = ?", c.ID).UpdateColumns(map[string]interface{}{
			"product_count":    agg.Products,
			"popularity_score": Score(agg.Sales, c.ViewCount, c.SearchCount),
		}).Error; err != nil {
			return fmt.Errorf("failed to update %s popularity: %w", table, err)
		}
	}
	return nil
}

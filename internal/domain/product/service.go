// internal/domain/product/service.go
package product

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/activity"
	redisdb "github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/redis"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/slug"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const searchCachePrefix = "search:products:"

// Service handles catalog business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	activity    *activity.Recorder
	logger      *logrus.Entry
}

// NewService creates a new product service. redisClient may be nil to disable caching.
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, recorder *activity.Recorder, logger *logrus.Entry) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		activity:    recorder,
		logger:      logger,
	}
}

// SearchRequest represents product search query parameters
type SearchRequest struct {
	Query     string   `form:"q"`
	Category  string   `form:"category"`
	Brand     string   `form:"brand"`
	Tag       string   `form:"tag"`
	Type      string   `form:"type"`
	MinPrice  int64    `form:"min_price"`
	MaxPrice  int64    `form:"max_price"`
	MinABV    *float64 `form:"min_abv"`
	MaxABV    *float64 `form:"max_abv"`
	InStock   bool     `form:"in_stock"`
	Featured  bool     `form:"featured"`
	Sort      string   `form:"sort,default=relevance"`
	Page      int      `form:"page,default=1"`
	Limit     int      `form:"limit,default=20"`
	SessionID string   `form:"-"`
	UserID    *uint    `form:"-"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPagination computes pagination info
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Facet is a count of matching products for one filter value
type Facet struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int64  `json:"count"`
}

// SearchResponse represents a page of search results with facets
type SearchResponse struct {
	Products   []Product          `json:"products"`
	Pagination Pagination         `json:"pagination"`
	Facets     map[string][]Facet `json:"facets"`
	Query      string             `json:"query,omitempty"`
}

// ProductCreateRequest represents product creation data
type ProductCreateRequest struct {
	Name             string      `json:"name" binding:"required,min=2,max=255"`
	Description      string      `json:"description"`
	ShortDescription string      `json:"short_description" binding:"max=500"`
	Type             ProductType `json:"type" binding:"required,oneof=wine beer spirit liqueur cider non_alcoholic mixer other"`
	CategoryID       *uint       `json:"category_id"`
	BrandID          *uint       `json:"brand_id"`
	TagIDs           []uint      `json:"tag_ids"`
	OriginCountry    string      `json:"origin_country"`
	Region           string      `json:"region"`
	ABV              float64     `json:"abv" binding:"abv"`
	VolumeML         int         `json:"volume_ml" binding:"gte=0"`
	IsAlcoholic      *bool       `json:"is_alcoholic"`
	Images           []string    `json:"images" binding:"max=12,dive,url"`
	Status           Status      `json:"status" binding:"omitempty,oneof=draft active archived"`
	IsFeatured       bool        `json:"is_featured"`
}

// ProductUpdateRequest represents product update data
type ProductUpdateRequest struct {
	Name             *string      `json:"name" binding:"omitempty,min=2,max=255"`
	Description      *string      `json:"description"`
	ShortDescription *string      `json:"short_description"`
	Type             *ProductType `json:"type" binding:"omitempty,oneof=wine beer spirit liqueur cider non_alcoholic mixer other"`
	CategoryID       *uint        `json:"category_id"`
	BrandID          *uint        `json:"brand_id"`
	TagIDs           []uint       `json:"tag_ids"`
	OriginCountry    *string      `json:"origin_country"`
	Region           *string      `json:"region"`
	ABV              *float64     `json:"abv" binding:"omitempty,abv"`
	VolumeML         *int         `json:"volume_ml" binding:"omitempty,gte=0"`
	IsAlcoholic      *bool        `json:"is_alcoholic"`
	Images           []string     `json:"images" binding:"omitempty,max=12,dive,url"`
	Status           *Status      `json:"status" binding:"omitempty,oneof=draft active archived"`
	IsFeatured       *bool        `json:"is_featured"`
}

// Search finds active products matching the request
func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	normalizeSearch(req)

	cacheKey := searchCachePrefix + req.cacheKey()
	if s.redisClient != nil {
		var cached SearchResponse
		if err := redisdb.GetJSON(ctx, s.redisClient, cacheKey, &cached); err == nil {
			s.trackSearch(ctx, req)
			return &cached, nil
		}
	}

	var total int64
	if err := s.searchScope(ctx, req).Model(&Product{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	products := []Product{}
	query := s.searchScope(ctx, req).
		Preload("Category").
		Preload("Brand").
		Preload("Tags")
	query = applySearchSort(query, req)

	offset := (req.Page - 1) * req.Limit
	if err := query.Offset(offset).Limit(req.Limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	facets, err := s.searchFacets(ctx, req)
	if err != nil {
		return nil, err
	}

	response := &SearchResponse{
		Products:   products,
		Pagination: NewPagination(req.Page, req.Limit, total),
		Facets:     facets,
		Query:      req.Query,
	}

	if s.redisClient != nil {
		if err := redisdb.SetJSON(ctx, s.redisClient, cacheKey, response, s.config.Marketplace.SearchCacheTTL); err != nil {
			s.logger.WithError(err).Warn("failed to cache search results")
		}
	}

	s.trackSearch(ctx, req)
	return response, nil
}

// searchScope builds a fresh filtered query for req
func (s *Service) searchScope(ctx context.Context, req *SearchRequest) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&Product{}).Where("products.status = ?", StatusActive)

	if req.Query != "" {
		like := "%" + req.Query + "%"
		query = query.Where(
			s.db.Where("LOWER(products.name) LIKE ?", like).
				Or("LOWER(products.description) LIKE ?", like).
				Or("products.brand_id IN (SELECT id FROM brands WHERE LOWER(name) LIKE ?)", like).
				Or("products.id IN (SELECT product_tags.product_id FROM product_tags JOIN tags ON tags.id = product_tags.tag_id WHERE LOWER(tags.name) LIKE ?)", like),
		)
	}

	if req.Category != "" {
		query = query.Where(
			"products.category_id IN (SELECT id FROM categories WHERE slug = ? OR parent_id IN (SELECT id FROM categories WHERE slug = ?))",
			req.Category, req.Category,
		)
	}

	if req.Brand != "" {
		query = query.Where("products.brand_id IN (SELECT id FROM brands WHERE slug = ?)", req.Brand)
	}

	if req.Tag != "" {
		query = query.Where("products.id IN (SELECT product_tags.product_id FROM product_tags JOIN tags ON tags.id = product_tags.tag_id WHERE tags.slug = ?)", req.Tag)
	}

	if req.Type != "" {
		query = query.Where("products.type = ?", req.Type)
	}

	if req.MinPrice > 0 {
		query = query.Where("products.max_price >= ?", req.MinPrice)
	}

	if req.MaxPrice > 0 {
		query = query.Where("products.min_price <= ? AND products.min_price > 0", req.MaxPrice)
	}

	if req.MinABV != nil {
		query = query.Where("products.abv >= ?", *req.MinABV)
	}

	if req.MaxABV != nil {
		query = query.Where("products.abv <= ?", *req.MaxABV)
	}

	if req.InStock {
		query = query.Where("products.total_stock > 0")
	}

	if req.Featured {
		query = query.Where("products.is_featured = ?", true)
	}

	return query
}

func applySearchSort(query *gorm.DB, req *SearchRequest) *gorm.DB {
	switch req.Sort {
	case "price_asc":
		return query.Order("products.min_price ASC").Order("products.id ASC")
	case "price_desc":
		return query.Order("products.max_price DESC").Order("products.id ASC")
	case "newest":
		return query.Order("products.created_at DESC").Order("products.id DESC")
	case "popular":
		return query.Order("products.sales_count DESC").Order("products.view_count DESC").Order("products.id ASC")
	case "name":
		return query.Order("products.name ASC").Order("products.id ASC")
	default:
		if req.Query != "" {
			query = query.Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                "CASE WHEN LOWER(products.name) LIKE ? THEN 0 WHEN LOWER(products.name) LIKE ? THEN 1 ELSE 2 END",
				Vars:               []interface{}{req.Query + "%", "%" + req.Query + "%"},
				WithoutParentheses: true,
			}})
		}
		return query.Order("products.is_featured DESC").Order("products.sales_count DESC").Order("products.id ASC")
	}
}

// searchFacets counts matching products per category and brand
func (s *Service) searchFacets(ctx context.Context, req *SearchRequest) (map[string][]Facet, error) {
	categoryFacets := []Facet{}
	if err := s.searchScope(ctx, req).
		Select("categories.id AS id, categories.name AS name, categories.slug AS slug, COUNT(products.id) AS count").
		Joins("JOIN categories ON categories.id = products.category_id").
		Group("categories.id, categories.name, categories.slug").
		Order("count DESC").
		Scan(&categoryFacets).Error; err != nil {
		return nil, fmt.Errorf("failed to compute category facets: %w", err)
	}

	brandFacets := []Facet{}
	if err := s.searchScope(ctx, req).
		Select("brands.id AS id, brands.name AS name, brands.slug AS slug, COUNT(products.id) AS count").
		Joins("JOIN brands ON brands.id = products.brand_id").
		Group("brands.id, brands.name, brands.slug").
		Order("count DESC").
		Scan(&brandFacets).Error; err != nil {
		return nil, fmt.Errorf("failed to compute brand facets: %w", err)
	}

	return map[string][]Facet{
		"categories": categoryFacets,
		"brands":     brandFacets,
	}, nil
}

// trackSearch bumps tag search counters and records the query
func (s *Service) trackSearch(ctx context.Context, req *SearchRequest) {
	if req.Query == "" {
		return
	}

	terms := strings.Fields(req.Query)
	terms = append(terms, req.Query)
	if err := s.db.WithContext(ctx).Model(&Tag{}).
		Where("LOWER(name) IN ?", terms).
		UpdateColumn("search_count", gorm.Expr("search_count + 1")).Error; err != nil {
		s.logger.WithError(err).Warn("failed to update tag search counters")
	}

	s.activity.Record(activity.Event{
		Type:      activity.TypeSearch,
		Query:     req.Query,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})
}

// ListRequest represents admin product listing parameters
type ListRequest struct {
	Status   string `form:"status"`
	Type     string `form:"type"`
	TenantID uint   `form:"tenant_id"`
	Page     int    `form:"page,default=1"`
	Limit    int    `form:"limit,default=20"`
}

// ListProducts lists products in any status for the backoffice
func (s *Service) ListProducts(ctx context.Context, req *ListRequest) ([]Product, Pagination, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&Product{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.TenantID != 0 {
		query = query.Where("id IN (SELECT product_id FROM sub_products WHERE tenant_id = ? AND deleted_at IS NULL)", req.TenantID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count products: %w", err)
	}

	products := []Product{}
	if err := query.Preload("Category").Preload("Brand").
		Order("updated_at DESC, id DESC").
		Offset((req.Page - 1) * req.Limit).
		Limit(req.Limit).
		Find(&products).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list products: %w", err)
	}

	return products, NewPagination(req.Page, req.Limit, total), nil
}

// GetProduct retrieves a single product by ID with its offers
func (s *Service) GetProduct(ctx context.Context, id uint) (*Product, error) {
	var product Product
	err := s.detailQuery(ctx).Where("products.id = ?", id).First(&product).Error
	if err != nil {
		return nil, apperrors.FromGorm(err, "product")
	}
	return &product, nil
}

// GetProductBySlug retrieves an active product by slug and counts the view
func (s *Service) GetProductBySlug(ctx context.Context, productSlug string, userID *uint, sessionID string) (*Product, error) {
	var product Product
	err := s.detailQuery(ctx).
		Where("products.slug = ? AND products.status = ?", productSlug, StatusActive).
		First(&product).Error
	if err != nil {
		return nil, apperrors.FromGorm(err, "product")
	}

	s.countView(ctx, &product)
	s.activity.Record(activity.Event{
		Type:       activity.TypeProductView,
		EntityType: activity.EntityProduct,
		EntityID:   product.ID,
		UserID:     userID,
		SessionID:  sessionID,
	})

	return &product, nil
}

func (s *Service) detailQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("Tags").
		Preload("SubProducts", "status = ?", StatusActive).
		Preload("SubProducts.Sizes", func(db *gorm.DB) *gorm.DB {
			return db.Order("volume_ml ASC, id ASC")
		})
}

func (s *Service) countView(ctx context.Context, p *Product) {
	db := s.db.WithContext(ctx)
	if err := db.Model(&Product{}).Where("id = ?", p.ID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		s.logger.WithError(err).WithField("product_id", p.ID).Warn("failed to count product view")
		return
	}
	if p.CategoryID != nil {
		db.Model(&Category{}).Where("id = ?", *p.CategoryID).UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	}
	if p.BrandID != nil {
		db.Model(&Brand{}).Where("id = ?", *p.BrandID).UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	}
	p.ViewCount++
}

// GetFeatured returns featured active products
func (s *Service) GetFeatured(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 || limit > 50 {
		limit = 12
	}
	products := []Product{}
	if err := s.db.WithContext(ctx).
		Preload("Brand").
		Where("status = ? AND is_featured = ?", StatusActive, true).
		Order("sales_count DESC, id ASC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve featured products: %w", err)
	}
	return products, nil
}

// GetRelated returns active products from the same category
func (s *Service) GetRelated(ctx context.Context, id uint, limit int) ([]Product, error) {
	if limit <= 0 || limit > 20 {
		limit = 8
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	related := []Product{}
	query := s.db.WithContext(ctx).
		Preload("Brand").
		Where("status = ? AND id <> ?", StatusActive, id)
	if p.CategoryID != nil {
		query = query.Where("category_id = ?", *p.CategoryID)
	} else {
		query = query.Where("type = ?", p.Type)
	}
	if err := query.Order("sales_count DESC, id ASC").Limit(limit).Find(&related).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve related products: %w", err)
	}
	return related, nil
}

// CreateProduct creates a new catalog product
func (s *Service) CreateProduct(ctx context.Context, req *ProductCreateRequest) (*Product, error) {
	db := s.db.WithContext(ctx)

	productSlug, err := s.uniqueSlug(db, &Product{}, req.Name)
	if err != nil {
		return nil, err
	}

	product := Product{
		Name:             strings.TrimSpace(req.Name),
		Slug:             productSlug,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Type:             req.Type,
		CategoryID:       req.CategoryID,
		BrandID:          req.BrandID,
		OriginCountry:    req.OriginCountry,
		Region:           req.Region,
		ABV:              req.ABV,
		VolumeML:         req.VolumeML,
		IsAlcoholic:      req.Type != TypeNonAlcoholic && req.Type != TypeMixer,
		Images:           req.Images,
		Status:           StatusDraft,
		IsFeatured:       req.IsFeatured,
	}
	if req.IsAlcoholic != nil {
		product.IsAlcoholic = *req.IsAlcoholic
	}
	if req.Status != "" {
		product.Status = req.Status
	}

	if err := product.ValidateAttributes(); err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, err.Error())
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags").Create(&product).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return s.replaceTags(tx, &product, req.TagIDs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSearchCache(ctx)
	return s.GetProduct(ctx, product.ID)
}

// UpdateProduct updates an existing product
func (s *Service) UpdateProduct(ctx context.Context, id uint, req *ProductUpdateRequest) (*Product, error) {
	db := s.db.WithContext(ctx)

	var product Product
	if err := db.First(&product, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "product")
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != product.Name {
		productSlug, err := s.uniqueSlug(db, &Product{}, *req.Name)
		if err != nil {
			return nil, err
		}
		product.Name = strings.TrimSpace(*req.Name)
		product.Slug = productSlug
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.ShortDescription != nil {
		product.ShortDescription = *req.ShortDescription
	}
	if req.Type != nil {
		product.Type = *req.Type
	}
	if req.CategoryID != nil {
		product.CategoryID = req.CategoryID
	}
	if req.BrandID != nil {
		product.BrandID = req.BrandID
	}
	if req.OriginCountry != nil {
		product.OriginCountry = *req.OriginCountry
	}
	if req.Region != nil {
		product.Region = *req.Region
	}
	if req.ABV != nil {
		product.ABV = *req.ABV
	}
	if req.VolumeML != nil {
		product.VolumeML = *req.VolumeML
	}
	if req.IsAlcoholic != nil {
		product.IsAlcoholic = *req.IsAlcoholic
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}

	if err := product.ValidateAttributes(); err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, err.Error())
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags", "Category", "Brand", "SubProducts").Save(&product).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		if req.TagIDs != nil {
			return s.replaceTags(tx, &product, req.TagIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSearchCache(ctx)
	return s.GetProduct(ctx, product.ID)
}

// DeleteProduct soft deletes a product
func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Product{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("product")
	}
	s.invalidateSearchCache(ctx)
	return nil
}

func (s *Service) replaceTags(tx *gorm.DB, product *Product, tagIDs []uint) error {
	tags := []Tag{}
	if len(tagIDs) > 0 {
		if err := tx.Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
			return fmt.Errorf("failed to load tags: %w", err)
		}
		if len(tags) != len(uniqueIDs(tagIDs)) {
			return apperrors.New(apperrors.CodeValidation, "one or more tags do not exist")
		}
	}
	if err := tx.Model(product).Association("Tags").Replace(tags); err != nil {
		return fmt.Errorf("failed to update product tags: %w", err)
	}
	product.Tags = tags
	return nil
}

// uniqueSlug derives a slug from name, suffixing a counter when taken
func (s *Service) uniqueSlug(db *gorm.DB, model interface{}, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		return "", apperrors.New(apperrors.CodeValidation, "name must contain letters or digits")
	}

	candidate := base
	for i := 2; i < 100; i++ {
		var count int64
		if err := db.Unscoped().Model(model).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", apperrors.New(apperrors.CodeConflict, "could not allocate a unique slug")
}

func (s *Service) invalidateSearchCache(ctx context.Context) {
	if s.redisClient == nil {
		return
	}
	if err := redisdb.DeleteByPattern(ctx, s.redisClient, searchCachePrefix+"*"); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate search cache")
	}
}

func normalizeSearch(req *SearchRequest) {
	req.Query = activity.NormalizeQuery(req.Query)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.Brand = strings.ToLower(strings.TrimSpace(req.Brand))
	req.Tag = strings.ToLower(strings.TrimSpace(req.Tag))
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}
}

func (req *SearchRequest) cacheKey() string {
	abv := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *v)
	}
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d|%s|%s|%t|%t|%s|%d|%d",
		req.Query, req.Category, req.Brand, req.Tag, req.Type,
		req.MinPrice, req.MaxPrice, abv(req.MinABV), abv(req.MaxABV),
		req.InStock, req.Featured, req.Sort, req.Page, req.Limit)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// isDuplicate reports whether err is a unique constraint violation
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

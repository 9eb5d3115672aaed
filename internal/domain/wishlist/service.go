package wishlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Service handles wishlist and compare business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	cartService *cart.Service
}

// NewService creates a new wishlist service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, cartService *cart.Service) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		cartService: cartService,
	}
}

// WishlistItemResponse represents a wishlist item with product details
type WishlistItemResponse struct {
	ID           uint                `json:"id"`
	ProductID    uint                `json:"product_id"`
	SubProductID uint                `json:"sub_product_id,omitempty"`
	Product      *product.Product    `json:"product,omitempty"`
	SubProduct   *product.SubProduct `json:"sub_product,omitempty"`
	AddedAt      time.Time           `json:"added_at"`
	IsAvailable  bool                `json:"is_available"`
	CurrentPrice int64               `json:"current_price"`
	PriceAtAdd   int64               `json:"price_at_add"`
	PriceDropped bool                `json:"price_dropped"`
}

// WishlistResponse represents a wishlist with items and pagination
type WishlistResponse struct {
	Items      []WishlistItemResponse `json:"items"`
	Pagination product.Pagination     `json:"pagination"`
	Summary    WishlistSummary        `json:"summary"`
}

// WishlistSummary provides summary information for the current page
type WishlistSummary struct {
	TotalItems       int   `json:"total_items"`
	AvailableItems   int   `json:"available_items"`
	UnavailableItems int   `json:"unavailable_items"`
	TotalValue       int64 `json:"total_value"`
	RecentlyAdded    int   `json:"recently_added"` // added in the last 7 days
}

// ListRequest represents wishlist list parameters
type ListRequest struct {
	Page      int    `form:"page,default=1" binding:"min=1"`
	Limit     int    `form:"limit,default=20" binding:"min=1,max=100"`
	SortBy    string `form:"sort_by,default=added_at" binding:"omitempty,oneof=added_at product_id"`
	SortOrder string `form:"sort_order,default=desc" binding:"omitempty,oneof=asc desc"`
}

// AddRequest represents add to wishlist request
type AddRequest struct {
	ProductID    uint `json:"product_id" binding:"required"`
	SubProductID uint `json:"sub_product_id"`
}

// MoveToCartRequest selects the offer to move into the cart
type MoveToCartRequest struct {
	SubProductID uint   `json:"sub_product_id" binding:"required"`
	Size         string `json:"size" binding:"required,max=50"`
	Color        string `json:"color" binding:"max=50"`
	Quantity     int    `json:"quantity" binding:"omitempty,min=1,max=99"`
}

// GetWishlist retrieves the wishlist for a user with pagination
func (s *Service) GetWishlist(ctx context.Context, userID uint, req *ListRequest) (*WishlistResponse, error) {
	var items []WishlistItem
	var total int64

	query := s.db.WithContext(ctx).Model(&WishlistItem{}).Where("user_id = ?", userID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count wishlist items: %w", err)
	}

	sortBy, sortOrder := req.SortBy, req.SortOrder
	if sortBy != "product_id" {
		sortBy = "added_at"
	}
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	if err := query.Order(sortBy + " " + sortOrder).
		Offset((req.Page - 1) * req.Limit).
		Limit(req.Limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve wishlist items: %w", err)
	}

	responses := make([]WishlistItemResponse, len(items))
	for i, item := range items {
		responses[i] = WishlistItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			SubProductID: item.SubProductID,
			AddedAt:      item.AddedAt,
			PriceAtAdd:   item.PriceAtAdd,
		}
	}
	if err := s.loadProductDetails(ctx, responses); err != nil {
		return nil, err
	}

	return &WishlistResponse{
		Items:      responses,
		Pagination: product.NewPagination(req.Page, req.Limit, total),
		Summary:    summarize(responses, time.Now().UTC()),
	}, nil
}

// AddToWishlist adds a product, optionally pinned to one vendor offer
func (s *Service) AddToWishlist(ctx context.Context, userID uint, req *AddRequest) (*WishlistItemResponse, error) {
	db := s.db.WithContext(ctx)

	var prod product.Product
	if err := db.Where("id = ? AND status = ?", req.ProductID, product.StatusActive).First(&prod).Error; err != nil {
		return nil, apperrors.FromGorm(err, "product")
	}

	price := prod.MinPrice
	if req.SubProductID != 0 {
		var sp product.SubProduct
		if err := db.Where("id = ? AND product_id = ? AND status = ?", req.SubProductID, req.ProductID, product.StatusActive).
			First(&sp).Error; err != nil {
			return nil, apperrors.FromGorm(err, "sub-product")
		}
		price = sp.EffectivePrice()
	}

	item := WishlistItem{
		UserID:       userID,
		ProductID:    req.ProductID,
		SubProductID: req.SubProductID,
		PriceAtAdd:   price,
		AddedAt:      time.Now().UTC(),
	}
	if err := db.Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.CodeConflict, "item already exists in wishlist")
		}
		return nil, fmt.Errorf("failed to add item to wishlist: %w", err)
	}

	responses := []WishlistItemResponse{{
		ID:           item.ID,
		ProductID:    item.ProductID,
		SubProductID: item.SubProductID,
		AddedAt:      item.AddedAt,
		PriceAtAdd:   item.PriceAtAdd,
	}}
	if err := s.loadProductDetails(ctx, responses); err != nil {
		return nil, err
	}
	return &responses[0], nil
}

// RemoveFromWishlist removes an item from the wishlist
func (s *Service) RemoveFromWishlist(ctx context.Context, userID, productID, subProductID uint) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND sub_product_id = ?", userID, productID, subProductID).
		Delete(&WishlistItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove item from wishlist: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("wishlist item")
	}
	return nil
}

// ClearWishlist removes all items from the wishlist
func (s *Service) ClearWishlist(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&WishlistItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear wishlist: %w", err)
	}
	return nil
}

// IsInWishlist checks if a product is in the user's wishlist under any offer
func (s *Service) IsInWishlist(ctx context.Context, userID, productID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&WishlistItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error
	return count > 0, err
}

// MoveToCart adds the wishlisted product to the cart and removes it from the wishlist
func (s *Service) MoveToCart(ctx context.Context, userID, itemID uint, req *MoveToCartRequest) (*cart.CartResponse, error) {
	var item WishlistItem
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
		return nil, apperrors.FromGorm(err, "wishlist item")
	}
	if item.SubProductID != 0 && item.SubProductID != req.SubProductID {
		return nil, apperrors.New(apperrors.CodeValidation, "wishlist item is pinned to a different offer")
	}

	offers, err := product.LoadOffers(s.db.WithContext(ctx), []uint{req.SubProductID})
	if err != nil {
		return nil, err
	}
	sp, ok := offers[req.SubProductID]
	if !ok || sp.ProductID != item.ProductID {
		return nil, apperrors.NotFound("sub-product")
	}

	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	resp, err := s.cartService.AddItem(ctx, cart.Owner{UserID: &userID}, &cart.ItemRequest{
		ProductID:    item.ProductID,
		SubProductID: sp.ID,
		Size:         req.Size,
		VendorID:     sp.TenantID,
		Color:        req.Color,
		Quantity:     qty,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Delete(&WishlistItem{}, item.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to remove moved wishlist item: %w", err)
	}
	return resp, nil
}

func (s *Service) loadProductDetails(ctx context.Context, items []WishlistItemResponse) error {
	if len(items) == 0 {
		return nil
	}

	productIDs := make([]uint, 0, len(items))
	subProductIDs := make([]uint, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
		if it.SubProductID != 0 {
			subProductIDs = append(subProductIDs, it.SubProductID)
		}
	}

	db := s.db.WithContext(ctx)
	var products []product.Product
	if err := db.Preload("Category").Preload("Brand").Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return fmt.Errorf("failed to load wishlist products: %w", err)
	}
	byID := make(map[uint]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	offers, err := product.LoadOffers(db, subProductIDs)
	if err != nil {
		return err
	}

	for i := range items {
		p, ok := byID[items[i].ProductID]
		if !ok {
			continue
		}
		items[i].Product = p
		items[i].IsAvailable = p.IsPurchasable() && p.TotalStock > 0
		items[i].CurrentPrice = p.MinPrice

		if items[i].SubProductID != 0 {
			sp, ok := offers[items[i].SubProductID]
			if !ok || sp.Status != product.StatusActive {
				items[i].IsAvailable = false
				continue
			}
			sp.Product = nil
			items[i].SubProduct = sp
			items[i].CurrentPrice = sp.EffectivePrice()
			inStock := false
			for _, sz := range sp.Sizes {
				if sz.Available() > 0 {
					inStock = true
					break
				}
			}
			items[i].IsAvailable = items[i].IsAvailable && inStock
		}
		items[i].PriceDropped = items[i].PriceAtAdd > 0 && items[i].CurrentPrice < items[i].PriceAtAdd
	}
	return nil
}

func summarize(items []WishlistItemResponse, now time.Time) WishlistSummary {
	summary := WishlistSummary{TotalItems: len(items)}
	recent := now.AddDate(0, 0, -7)

	for _, item := range items {
		if item.IsAvailable {
			summary.AvailableItems++
			summary.TotalValue += item.CurrentPrice
		} else {
			summary.UnavailableItems++
		}
		if item.AddedAt.After(recent) {
			summary.RecentlyAdded++
		}
	}
	return summary
}

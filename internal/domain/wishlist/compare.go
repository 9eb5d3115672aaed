package wishlist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	redisdb "github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/redis"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
)

const compareTTL = 7 * 24 * time.Hour

// CompareEntry is one column of the side-by-side comparison
type CompareEntry struct {
	ProductID     uint                `json:"product_id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Image         string              `json:"image,omitempty"`
	Type          product.ProductType `json:"type"`
	MinPrice      int64               `json:"min_price"`
	MaxPrice      int64               `json:"max_price"`
	ABV           float64             `json:"abv"`
	VolumeML      int                 `json:"volume_ml"`
	OriginCountry string              `json:"origin_country,omitempty"`
	Region        string              `json:"region,omitempty"`
	Brand         string              `json:"brand,omitempty"`
	Category      string              `json:"category,omitempty"`
	VendorCount   int                 `json:"vendor_count"`
	InStock       bool                `json:"in_stock"`
	Rating        float64             `json:"rating"`
}

// CompareResponse is the comparison set
type CompareResponse struct {
	Items []CompareEntry `json:"items"`
	Limit int            `json:"limit"`
}

// CompareScope identifies whose comparison list is addressed
type CompareScope struct {
	UserID    *uint
	SessionID string
}

func (c CompareScope) key() (string, error) {
	if c.UserID != nil {
		return "compare:user:" + strconv.FormatUint(uint64(*c.UserID), 10), nil
	}
	if c.SessionID == "" {
		return "", apperrors.New(apperrors.CodeValidation, "session id is required")
	}
	return "compare:session:" + c.SessionID, nil
}

// GetCompare returns the comparison set with current product attributes
func (s *Service) GetCompare(ctx context.Context, scope CompareScope) (*CompareResponse, error) {
	list, err := s.loadCompare(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.compareView(ctx, list.ProductIDs)
}

// AddToCompare appends a product. The list holds at most CompareLimit products.
func (s *Service) AddToCompare(ctx context.Context, scope CompareScope, productID uint) (*CompareResponse, error) {
	list, err := s.loadCompare(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, id := range list.ProductIDs {
		if id == productID {
			return s.compareView(ctx, list.ProductIDs)
		}
	}
	if len(list.ProductIDs) >= s.config.Marketplace.CompareLimit {
		return nil, apperrors.Newf(apperrors.CodeUnprocessable, "compare list is limited to %d products", s.config.Marketplace.CompareLimit)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&product.Product{}).
		Where("id = ? AND status = ?", productID, product.StatusActive).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if count == 0 {
		return nil, apperrors.NotFound("product")
	}

	list.ProductIDs = append(list.ProductIDs, productID)
	if err := s.saveCompare(ctx, scope, list); err != nil {
		return nil, err
	}
	return s.compareView(ctx, list.ProductIDs)
}

// RemoveFromCompare drops a product from the list
func (s *Service) RemoveFromCompare(ctx context.Context, scope CompareScope, productID uint) (*CompareResponse, error) {
	list, err := s.loadCompare(ctx, scope)
	if err != nil {
		return nil, err
	}
	kept := list.ProductIDs[:0]
	for _, id := range list.ProductIDs {
		if id != productID {
			kept = append(kept, id)
		}
	}
	list.ProductIDs = kept
	if err := s.saveCompare(ctx, scope, list); err != nil {
		return nil, err
	}
	return s.compareView(ctx, list.ProductIDs)
}

// ClearCompare empties the list
func (s *Service) ClearCompare(ctx context.Context, scope CompareScope) error {
	key, err := scope.key()
	if err != nil {
		return err
	}
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear compare list: %w", err)
	}
	return nil
}

func (s *Service) loadCompare(ctx context.Context, scope CompareScope) (*CompareList, error) {
	key, err := scope.key()
	if err != nil {
		return nil, err
	}
	var list CompareList
	err = redisdb.GetJSON(ctx, s.redisClient, key, &list)
	if errors.Is(err, redisdb.ErrCacheMiss) {
		return &CompareList{ProductIDs: []uint{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load compare list: %w", err)
	}
	return &list, nil
}

func (s *Service) saveCompare(ctx context.Context, scope CompareScope, list *CompareList) error {
	key, err := scope.key()
	if err != nil {
		return err
	}
	list.UpdatedAt = time.Now().UTC()
	if err := redisdb.SetJSON(ctx, s.redisClient, key, list, compareTTL); err != nil {
		return fmt.Errorf("failed to save compare list: %w", err)
	}
	return nil
}

func (s *Service) compareView(ctx context.Context, ids []uint) (*CompareResponse, error) {
	resp := &CompareResponse{Items: []CompareEntry{}, Limit: s.config.Marketplace.CompareLimit}
	if len(ids) == 0 {
		return resp, nil
	}

	var products []product.Product
	if err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("SubProducts", "status = ?", product.StatusActive).
		Where("id IN ?", ids).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load compared products: %w", err)
	}
	byID := make(map[uint]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		entry := CompareEntry{
			ProductID:     p.ID,
			Name:          p.Name,
			Slug:          p.Slug,
			Image:         p.PrimaryImage(),
			Type:          p.Type,
			MinPrice:      p.MinPrice,
			MaxPrice:      p.MaxPrice,
			ABV:           p.ABV,
			VolumeML:      p.VolumeML,
			OriginCountry: p.OriginCountry,
			Region:        p.Region,
			VendorCount:   len(p.SubProducts),
			InStock:       p.TotalStock > 0,
			Rating:        p.AverageRating,
		}
		if p.Brand != nil {
			entry.Brand = p.Brand.Name
		}
		if p.Category != nil {
			entry.Category = p.Category.Name
		}
		resp.Items = append(resp.Items, entry)
	}
	return resp, nil
}

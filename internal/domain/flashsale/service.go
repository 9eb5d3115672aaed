// internal/domain/flashsale/service.go
package flashsale

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/messaging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/slug"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrAllocationExhausted is returned when a reservation would exceed the item's cap
var ErrAllocationExhausted = apperrors.New(apperrors.CodeUnprocessable, "flash sale allocation exhausted")

// reserveScript seeds the counter from the persisted sold count and increments it
// only while the allocation cap allows. Returns -1 when the cap would be exceeded.
var reserveScript = redis.NewScript(`
local qty = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local seed = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local sold = tonumber(redis.call('GET', KEYS[1]) or seed)
if cap > 0 and sold + qty > cap then
  return -1
end
local total = sold + qty
redis.call('SET', KEYS[1], total, 'EX', ttl)
return total
`)

// releaseScript decrements the counter without going below zero
var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local left = redis.call('DECRBY', KEYS[1], ARGV[1])
if left < 0 then
  redis.call('INCRBY', KEYS[1], -left)
  left = 0
end
return left
`)

// Service handles flash sale business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	publisher   messaging.Publisher
	metrics     *metrics.Metrics
	logger      *logrus.Entry
	now         func() time.Time
}

// NewService creates a new flash sale service. redisClient may be nil.
func NewService(db *gorm.DB, redisClient *redis.Client, publisher messaging.Publisher, m *metrics.Metrics, logger *logrus.Entry) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ItemRequest describes one discounted offer
type ItemRequest struct {
	SubProductID     uint         `json:"sub_product_id" binding:"required"`
	DiscountType     DiscountType `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue    float64      `json:"discount_value" binding:"required,gt=0"`
	AllocatedStock   int          `json:"allocated_stock" binding:"gte=0"`
	PerCustomerLimit int          `json:"per_customer_limit" binding:"gte=0"`
}

// CreateRequest represents flash sale creation data
type CreateRequest struct {
	Name        string        `json:"name" binding:"required,min=3,max=200"`
	Description string        `json:"description"`
	BannerImage string        `json:"banner_image" binding:"omitempty,url"`
	StartsAt    time.Time     `json:"starts_at" binding:"required"`
	EndsAt      time.Time     `json:"ends_at" binding:"required"`
	Items       []ItemRequest `json:"items" binding:"required,min=1,max=200,dive"`
}

// UpdateRequest represents a flash sale update. Items replace the existing set.
type UpdateRequest struct {
	Name        *string       `json:"name" binding:"omitempty,min=3,max=200"`
	Description *string       `json:"description"`
	BannerImage *string       `json:"banner_image" binding:"omitempty,url"`
	StartsAt    *time.Time    `json:"starts_at"`
	EndsAt      *time.Time    `json:"ends_at"`
	Items       []ItemRequest `json:"items" binding:"omitempty,max=200,dive"`
}

// SweepResult reports status transitions made by SweepStatuses
type SweepResult struct {
	Activated int `json:"activated"`
	Ended     int `json:"ended"`
}

// Create validates and stores a new flash sale
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*FlashSale, error) {
	sale := FlashSale{
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug.Make(req.Name),
		Description: req.Description,
		BannerImage: req.BannerImage,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		Status:      StatusScheduled,
	}
	if sale.Slug == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "name must contain letters or digits")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.buildItems(tx, 0, sale.StartsAt, sale.EndsAt, req.Items)
		if err != nil {
			return err
		}
		sale.Items = items
		if s.now().After(sale.StartsAt) && s.now().Before(sale.EndsAt) {
			sale.Status = StatusActive
		}

		var taken int64
		if err := tx.Unscoped().Model(&FlashSale{}).Where("slug = ?", sale.Slug).Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check slug: %w", err)
		}
		if taken > 0 {
			sale.Slug = fmt.Sprintf("%s-%d", sale.Slug, sale.StartsAt.Unix())
		}

		if err := tx.Create(&sale).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.New(apperrors.CodeConflict, "a flash sale with this name already exists")
			}
			return fmt.Errorf("failed to create flash sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// Update changes a scheduled sale. Active sales may only change copy and end date.
func (s *Service) Update(ctx context.Context, id uint, req *UpdateRequest) (*FlashSale, error) {
	var sale FlashSale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&sale, id).Error; err != nil {
			return apperrors.FromGorm(err, "flash sale")
		}
		if sale.Status == StatusEnded || sale.Status == StatusCancelled {
			return apperrors.Newf(apperrors.CodeUnprocessable, "flash sale is %s", sale.Status)
		}
		if sale.Status == StatusActive && (req.StartsAt != nil || req.Items != nil) {
			return apperrors.New(apperrors.CodeUnprocessable, "an active flash sale cannot change its start or items")
		}

		if req.Name != nil {
			sale.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			sale.Description = *req.Description
		}
		if req.BannerImage != nil {
			sale.BannerImage = *req.BannerImage
		}
		if req.StartsAt != nil {
			sale.StartsAt = req.StartsAt.UTC()
		}
		if req.EndsAt != nil {
			sale.EndsAt = req.EndsAt.UTC()
		}

		itemReqs := req.Items
		if itemReqs == nil {
			for _, it := range sale.Items {
				itemReqs = append(itemReqs, ItemRequest{
					SubProductID:     it.SubProductID,
					DiscountType:     it.DiscountType,
					DiscountValue:    it.DiscountValue,
					AllocatedStock:   it.AllocatedStock,
					PerCustomerLimit: it.PerCustomerLimit,
				})
			}
		}
		items, err := s.buildItems(tx, sale.ID, sale.StartsAt, sale.EndsAt, itemReqs)
		if err != nil {
			return err
		}

		if err := tx.Omit("Items").Save(&sale).Error; err != nil {
			return fmt.Errorf("failed to update flash sale: %w", err)
		}
		if req.Items != nil {
			if err := tx.Where("flash_sale_id = ?", sale.ID).Delete(&FlashSaleItem{}).Error; err != nil {
				return fmt.Errorf("failed to replace flash sale items: %w", err)
			}
			for i := range items {
				items[i].FlashSaleID = sale.ID
			}
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return fmt.Errorf("failed to replace flash sale items: %w", err)
				}
			}
			sale.Items = items
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// Cancel stops a scheduled or active sale
func (s *Service) Cancel(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&FlashSale{}).
		Where("id = ? AND status IN ?", id, []Status{StatusScheduled, StatusActive}).
		Update("status", StatusCancelled)
	if result.Error != nil {
		return fmt.Errorf("failed to cancel flash sale: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeUnprocessable, "flash sale cannot be cancelled")
	}
	return nil
}

// buildItems validates item requests against prices and other sales
func (s *Service) buildItems(tx *gorm.DB, saleID uint, startsAt, endsAt time.Time, reqs []ItemRequest) ([]FlashSaleItem, error) {
	if !endsAt.After(startsAt) {
		return nil, apperrors.New(apperrors.CodeValidation, "ends_at must be after starts_at")
	}

	ids := make([]uint, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.SubProductID)
	}
	offers, err := product.LoadOffers(tx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]FlashSaleItem, 0, len(reqs))
	seen := make(map[uint]struct{}, len(reqs))
	productIDs := make([]uint, 0, len(reqs))
	for _, r := range reqs {
		sp, ok := offers[r.SubProductID]
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeValidation, "sub-product %d does not exist", r.SubProductID)
		}
		if _, dup := seen[sp.ProductID]; dup {
			return nil, apperrors.Newf(apperrors.CodeValidation, "product %d appears twice", sp.ProductID)
		}
		seen[sp.ProductID] = struct{}{}
		productIDs = append(productIDs, sp.ProductID)

		switch r.DiscountType {
		case DiscountPercentage:
			if r.DiscountValue <= 0 || r.DiscountValue >= 100 {
				return nil, apperrors.New(apperrors.CodeValidation, "percentage discount must be between 0 and 100")
			}
		case DiscountFixed:
			if lowest := sp.LowestUnitPrice(); int64(r.DiscountValue) >= lowest {
				return nil, apperrors.Newf(apperrors.CodeValidation, "fixed discount must be lower than %d, the cheapest size price of %s", lowest, sp.SKU)
			}
		default:
			return nil, apperrors.Newf(apperrors.CodeValidation, "unknown discount type %q", r.DiscountType)
		}

		items = append(items, FlashSaleItem{
			ProductID:        sp.ProductID,
			SubProductID:     sp.ID,
			DiscountType:     r.DiscountType,
			DiscountValue:    r.DiscountValue,
			AllocatedStock:   r.AllocatedStock,
			PerCustomerLimit: r.PerCustomerLimit,
		})
	}

	if len(productIDs) > 0 {
		var clashes []FlashSaleItem
		if err := tx.Joins("FlashSale").
			Where("flash_sale_items.product_id IN ?", productIDs).
			Where("flash_sale_items.flash_sale_id <> ?", saleID).
			Where("\"FlashSale\".status IN ?", []Status{StatusScheduled, StatusActive}).
			Where("\"FlashSale\".starts_at < ? AND \"FlashSale\".ends_at > ?", endsAt, startsAt).
			Find(&clashes).Error; err != nil {
			return nil, fmt.Errorf("failed to check overlapping sales: %w", err)
		}
		if len(clashes) > 0 {
			return nil, apperrors.Newf(apperrors.CodeConflict, "product %d is already in an overlapping flash sale", clashes[0].ProductID).
				WithDetails(map[string]interface{}{"flash_sale_id": clashes[0].FlashSaleID})
		}
	}

	return items, nil
}

// Get retrieves a sale by id with items
func (s *Service) Get(ctx context.Context, id uint) (*FlashSale, error) {
	var sale FlashSale
	if err := s.db.WithContext(ctx).Preload("Items").First(&sale, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "flash sale")
	}
	return &sale, nil
}

// GetBySlug retrieves a visible sale by slug
func (s *Service) GetBySlug(ctx context.Context, saleSlug string) (*FlashSale, error) {
	var sale FlashSale
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Where("slug = ? AND status IN ?", saleSlug, []Status{StatusScheduled, StatusActive}).
		First(&sale).Error; err != nil {
		return nil, apperrors.FromGorm(err, "flash sale")
	}
	return &sale, nil
}

// List returns sales for the backoffice, newest first
func (s *Service) List(ctx context.Context, status string) ([]FlashSale, error) {
	sales := []FlashSale{}
	query := s.db.WithContext(ctx).Preload("Items")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("starts_at DESC").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to list flash sales: %w", err)
	}
	return sales, nil
}

// ListActive returns sales whose window contains now
func (s *Service) ListActive(ctx context.Context, now time.Time) ([]FlashSale, error) {
	sales := []FlashSale{}
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Where("status IN ? AND starts_at <= ? AND ends_at > ?", []Status{StatusScheduled, StatusActive}, now, now).
		Order("ends_at ASC").
		Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to list active flash sales: %w", err)
	}
	return sales, nil
}

// ActiveItems returns the live flash sale item for each sub-product that has one
func (s *Service) ActiveItems(ctx context.Context, subProductIDs []uint, now time.Time) (map[uint]*FlashSaleItem, error) {
	return ActiveItemsTx(s.db.WithContext(ctx), subProductIDs, now)
}

// ActiveItemsTx is ActiveItems bound to an explicit handle
func ActiveItemsTx(db *gorm.DB, subProductIDs []uint, now time.Time) (map[uint]*FlashSaleItem, error) {
	result := make(map[uint]*FlashSaleItem)
	if len(subProductIDs) == 0 {
		return result, nil
	}

	var items []FlashSaleItem
	if err := db.Joins("FlashSale").
		Where("flash_sale_items.sub_product_id IN ?", subProductIDs).
		Where("\"FlashSale\".status IN ?", []Status{StatusScheduled, StatusActive}).
		Where("\"FlashSale\".starts_at <= ? AND \"FlashSale\".ends_at > ?", now, now).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load flash sale items: %w", err)
	}

	for i := range items {
		it := &items[i]
		if it.AllocatedStock > 0 && it.SoldCount >= it.AllocatedStock {
			continue
		}
		result[it.SubProductID] = it
	}
	return result, nil
}

// PriceFor returns the flash sale price for a sub-product, or basePrice when none applies
func (s *Service) PriceFor(ctx context.Context, subProductID uint, basePrice int64, now time.Time) (int64, *FlashSaleItem, error) {
	items, err := s.ActiveItems(ctx, []uint{subProductID}, now)
	if err != nil {
		return basePrice, nil, err
	}
	it, ok := items[subProductID]
	if !ok {
		return basePrice, nil, nil
	}
	return it.SalePrice(basePrice), it, nil
}

func soldKey(itemID uint) string {
	return "flashsale:item:" + strconv.FormatUint(uint64(itemID), 10) + ":sold"
}

// Reserve claims qty units of an item's allocation in Redis.
// Without Redis the database guard in CommitSold is the only check.
func (s *Service) Reserve(ctx context.Context, item *FlashSaleItem, qty int) error {
	if s.redisClient == nil || item.AllocatedStock == 0 {
		return nil
	}

	ttl := 7 * 24 * time.Hour
	if item.FlashSale != nil {
		if remaining := time.Until(item.FlashSale.EndsAt) + 24*time.Hour; remaining > time.Hour {
			ttl = remaining
		}
	}

	res, err := reserveScript.Run(ctx, s.redisClient, []string{soldKey(item.ID)},
		qty, item.AllocatedStock, item.SoldCount, int(ttl.Seconds())).Int64()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "failed to reserve flash sale stock")
	}
	if res < 0 {
		s.metrics.FlashSaleReservation(false)
		return ErrAllocationExhausted
	}
	s.metrics.FlashSaleReservation(true)
	return nil
}

// Release returns qty units to an item's Redis allocation
func (s *Service) Release(ctx context.Context, itemID uint, qty int) {
	if s.redisClient == nil || qty <= 0 {
		return
	}
	if err := releaseScript.Run(ctx, s.redisClient, []string{soldKey(itemID)}, qty).Err(); err != nil {
		s.logger.WithError(err).WithField("flash_sale_item_id", itemID).Warn("failed to release flash sale allocation")
	}
}

// CommitSold persists sold units inside the order transaction
func CommitSold(tx *gorm.DB, itemID uint, qty int) error {
	result := tx.Model(&FlashSaleItem{}).
		Where("id = ? AND (allocated_stock = 0 OR sold_count + ? <= allocated_stock)", itemID, qty).
		UpdateColumn("sold_count", gorm.Expr("sold_count + ?", qty))
	if result.Error != nil {
		return fmt.Errorf("failed to record flash sale sales: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAllocationExhausted
	}
	return nil
}

// RevertSold undoes CommitSold when an order is cancelled
func RevertSold(tx *gorm.DB, itemID uint, qty int) error {
	if err := tx.Model(&FlashSaleItem{}).
		Where("id = ?", itemID).
		UpdateColumn("sold_count", gorm.Expr("CASE WHEN sold_count >= ? THEN sold_count - ? ELSE 0 END", qty, qty)).Error; err != nil {
		return fmt.Errorf("failed to revert flash sale sales: %w", err)
	}
	return nil
}

// SweepStatuses moves scheduled sales to active and expired ones to ended
func (s *Service) SweepStatuses(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	db := s.db.WithContext(ctx)

	var starting []FlashSale
	if err := db.Where("status = ? AND starts_at <= ? AND ends_at > ?", StatusScheduled, now, now).Find(&starting).Error; err != nil {
		return result, fmt.Errorf("failed to load starting flash sales: %w", err)
	}
	for _, sale := range starting {
		res := db.Model(&FlashSale{}).Where("id = ? AND status = ?", sale.ID, StatusScheduled).Update("status", StatusActive)
		if res.Error != nil {
			return result, fmt.Errorf("failed to activate flash sale %d: %w", sale.ID, res.Error)
		}
		if res.RowsAffected > 0 {
			result.Activated++
			s.publish(ctx, messaging.EventFlashSaleStarted, &sale)
		}
	}

	var ending []FlashSale
	if err := db.Where("status IN ? AND ends_at <= ?", []Status{StatusScheduled, StatusActive}, now).Find(&ending).Error; err != nil {
		return result, fmt.Errorf("failed to load ending flash sales: %w", err)
	}
	for _, sale := range ending {
		res := db.Model(&FlashSale{}).Where("id = ? AND status IN ?", sale.ID, []Status{StatusScheduled, StatusActive}).Update("status", StatusEnded)
		if res.Error != nil {
			return result, fmt.Errorf("failed to end flash sale %d: %w", sale.ID, res.Error)
		}
		if res.RowsAffected > 0 {
			result.Ended++
			s.publish(ctx, messaging.EventFlashSaleEnded, &sale)
		}
	}

	return result, nil
}

func (s *Service) publish(ctx context.Context, eventType string, sale *FlashSale) {
	if s.publisher == nil {
		return
	}
	payload := map[string]interface{}{
		"flash_sale_id": sale.ID,
		"slug":          sale.Slug,
		"starts_at":     sale.StartsAt,
		"ends_at":       sale.EndsAt,
	}
	if err := s.publisher.Publish(ctx, eventType, sale.Slug, payload); err != nil {
		s.logger.WithError(err).WithField("flash_sale_id", sale.ID).Warn("failed to publish flash sale event")
	}
}

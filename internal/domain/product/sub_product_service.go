// internal/domain/product/sub_product_service.go
package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/inventory"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// SizeRequest describes one size variant of a sub-product
type SizeRequest struct {
	Size              string `json:"size" binding:"required,max=50"`
	VolumeML          int    `json:"volume_ml" binding:"gte=0"`
	Price             int64  `json:"price" binding:"gte=0"`
	Stock             int    `json:"stock" binding:"gte=0"`
	LowStockThreshold *int   `json:"low_stock_threshold" binding:"omitempty,gte=0"`
}

// SubProductCreateRequest represents a tenant offer for a catalog product
type SubProductCreateRequest struct {
	ProductID uint          `json:"product_id" binding:"required"`
	TenantID  uint          `json:"tenant_id"`
	SKU       string        `json:"sku" binding:"required,max=100"`
	BasePrice int64         `json:"base_price" binding:"required,gt=0"`
	SalePrice *int64        `json:"sale_price" binding:"omitempty,gt=0"`
	CostPrice int64         `json:"cost_price" binding:"gte=0"`
	Colors    []string      `json:"colors" binding:"max=20"`
	Sizes     []SizeRequest `json:"sizes" binding:"required,min=1,max=20,dive"`
}

// SubProductUpdateRequest represents a partial sub-product update
type SubProductUpdateRequest struct {
	BasePrice *int64   `json:"base_price" binding:"omitempty,gt=0"`
	SalePrice *int64   `json:"sale_price" binding:"omitempty,gte=0"`
	CostPrice *int64   `json:"cost_price" binding:"omitempty,gte=0"`
	Colors    []string `json:"colors" binding:"omitempty,max=20"`
	Status    *Status  `json:"status" binding:"omitempty,oneof=draft active archived"`
}

// StockUpdateRequest sets the stock position of one size
type StockUpdateRequest struct {
	Stock             *int                     `json:"stock" binding:"omitempty,gte=0"`
	Delta             *int                     `json:"delta"`
	Price             *int64                   `json:"price" binding:"omitempty,gte=0"`
	LowStockThreshold *int                     `json:"low_stock_threshold" binding:"omitempty,gte=0"`
	IsAvailable       *bool                    `json:"is_available"`
	Reason            inventory.MovementReason `json:"reason" binding:"omitempty,oneof=restock return damage adjustment"`
	Notes             string                   `json:"notes" binding:"max=500"`
}

// Offer is a priced, purchasable size of a tenant's sub-product
type Offer struct {
	Product    *Product        `json:"product"`
	SubProduct *SubProduct     `json:"sub_product"`
	Size       *SubProductSize `json:"size"`
}

// UnitPrice returns the current catalog price for the offer
func (o *Offer) UnitPrice() int64 {
	return o.Size.UnitPrice(o.SubProduct)
}

// StockChange describes a stock movement caused by an order or an operator
type StockChange struct {
	SizeID        uint
	Quantity      int
	Reason        inventory.MovementReason
	ReferenceType string
	ReferenceID   uint
	ActorID       *uint
}

// CreateSubProduct adds a tenant offer. scope restricts the tenant for vendor callers.
func (s *Service) CreateSubProduct(ctx context.Context, scope *uint, req *SubProductCreateRequest) (*SubProduct, error) {
	tenantID := req.TenantID
	if scope != nil {
		tenantID = *scope
	}
	if tenantID == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant_id is required")
	}

	if req.SalePrice != nil && *req.SalePrice >= req.BasePrice {
		return nil, apperrors.New(apperrors.CodeValidation, "sale price must be lower than base price")
	}
	if err := validateSizes(req.Sizes); err != nil {
		return nil, err
	}
	if err := validateColors(req.Colors); err != nil {
		return nil, err
	}

	var created SubProduct
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t tenant.Tenant
		if err := tx.First(&t, tenantID).Error; err != nil {
			return apperrors.FromGorm(err, "tenant")
		}
		if !t.IsActive() {
			return apperrors.New(apperrors.CodeUnprocessable, "tenant is not active")
		}

		var p Product
		if err := tx.First(&p, req.ProductID).Error; err != nil {
			return apperrors.FromGorm(err, "product")
		}

		created = SubProduct{
			ProductID: p.ID,
			TenantID:  t.ID,
			SKU:       strings.ToUpper(strings.TrimSpace(req.SKU)),
			CostPrice: req.CostPrice,
			Currency:  s.config.Marketplace.Currency,
			Colors:    req.Colors,
			Status:    StatusActive,
		}
		created.TenantPrice, created.BasePrice = listPrices(&t, req.BasePrice)
		if req.SalePrice != nil {
			_, sale := listPrices(&t, *req.SalePrice)
			created.SalePrice = &sale
		}

		for _, sz := range req.Sizes {
			size := SubProductSize{
				Size:              strings.TrimSpace(sz.Size),
				VolumeML:          sz.VolumeML,
				Stock:             sz.Stock,
				LowStockThreshold: 5,
				IsAvailable:       true,
			}
			if sz.Price > 0 {
				_, size.Price = listPrices(&t, sz.Price)
			}
			if sz.LowStockThreshold != nil {
				size.LowStockThreshold = *sz.LowStockThreshold
			}
			created.Sizes = append(created.Sizes, size)
		}

		if err := tx.Create(&created).Error; err != nil {
			if isDuplicate(err) {
				return apperrors.Newf(apperrors.CodeConflict, "sku %s already exists", created.SKU)
			}
			return fmt.Errorf("failed to create sub-product: %w", err)
		}

		for i := range created.Sizes {
			sz := &created.Sizes[i]
			if sz.Stock == 0 {
				continue
			}
			if err := inventory.RecordMovement(tx, &inventory.StockMovement{
				SubProductSizeID: sz.ID,
				SubProductID:     created.ID,
				TenantID:         created.TenantID,
				MovementType:     inventory.MovementTypeInbound,
				Reason:           inventory.ReasonRestock,
				Quantity:         sz.Stock,
				PreviousStock:    0,
				NewStock:         sz.Stock,
				ReferenceType:    "manual",
			}, sz.LowStockThreshold); err != nil {
				return err
			}
		}

		return refreshProductAggregates(tx, p.ID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSearchCache(ctx)
	return &created, nil
}

// UpdateSubProduct changes pricing or status of an offer
func (s *Service) UpdateSubProduct(ctx context.Context, scope *uint, id uint, req *SubProductUpdateRequest) (*SubProduct, error) {
	var sp SubProduct
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Sizes").First(&sp, id).Error; err != nil {
			return apperrors.FromGorm(err, "sub-product")
		}
		if scope != nil && sp.TenantID != *scope {
			return apperrors.New(apperrors.CodeForbidden, "sub-product belongs to another tenant")
		}

		var t tenant.Tenant
		if err := tx.First(&t, sp.TenantID).Error; err != nil {
			return apperrors.FromGorm(err, "tenant")
		}

		if req.BasePrice != nil {
			sp.TenantPrice, sp.BasePrice = listPrices(&t, *req.BasePrice)
		}
		if req.SalePrice != nil {
			if *req.SalePrice == 0 {
				sp.SalePrice = nil
			} else {
				_, sale := listPrices(&t, *req.SalePrice)
				sp.SalePrice = &sale
			}
		}
		if sp.SalePrice != nil && *sp.SalePrice >= sp.BasePrice {
			return apperrors.New(apperrors.CodeValidation, "sale price must be lower than base price")
		}
		if req.CostPrice != nil {
			sp.CostPrice = *req.CostPrice
		}
		if req.Colors != nil {
			if err := validateColors(req.Colors); err != nil {
				return err
			}
			sp.Colors = req.Colors
		}
		if req.Status != nil {
			sp.Status = *req.Status
		}

		if err := tx.Omit("Sizes", "Product").Save(&sp).Error; err != nil {
			return fmt.Errorf("failed to update sub-product: %w", err)
		}
		return refreshProductAggregates(tx, sp.ProductID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSearchCache(ctx)
	return &sp, nil
}

// UpdateSizeStock sets or adjusts stock on a size and records the movement
func (s *Service) UpdateSizeStock(ctx context.Context, scope *uint, actorID uint, sizeID uint, req *StockUpdateRequest) (*SubProductSize, error) {
	if req.Stock != nil && req.Delta != nil {
		return nil, apperrors.New(apperrors.CodeValidation, "provide either stock or delta, not both")
	}

	var size SubProductSize
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&size, sizeID).Error; err != nil {
			return apperrors.FromGorm(err, "size")
		}
		var sp SubProduct
		if err := tx.First(&sp, size.SubProductID).Error; err != nil {
			return apperrors.FromGorm(err, "sub-product")
		}
		if scope != nil && sp.TenantID != *scope {
			return apperrors.New(apperrors.CodeForbidden, "size belongs to another tenant")
		}

		previous := size.Stock
		switch {
		case req.Stock != nil:
			size.Stock = *req.Stock
		case req.Delta != nil:
			size.Stock += *req.Delta
		}
		if size.Stock < size.Reserved {
			return apperrors.Newf(apperrors.CodeValidation, "stock cannot drop below reserved quantity %d", size.Reserved)
		}
		if req.Price != nil {
			var t tenant.Tenant
			if err := tx.First(&t, sp.TenantID).Error; err != nil {
				return apperrors.FromGorm(err, "tenant")
			}
			if *req.Price == 0 {
				size.Price = 0
			} else {
				_, size.Price = listPrices(&t, *req.Price)
			}
		}
		if req.LowStockThreshold != nil {
			size.LowStockThreshold = *req.LowStockThreshold
		}
		if req.IsAvailable != nil {
			size.IsAvailable = *req.IsAvailable
		}

		if err := tx.Save(&size).Error; err != nil {
			return fmt.Errorf("failed to update size: %w", err)
		}

		if size.Stock != previous {
			reason := req.Reason
			if reason == "" {
				reason = inventory.ReasonAdjustment
			}
			movementType := inventory.MovementTypeAdjustment
			if req.Delta != nil && *req.Delta > 0 {
				movementType = inventory.MovementTypeInbound
			} else if req.Delta != nil {
				movementType = inventory.MovementTypeOutbound
			}
			actor := actorID
			if err := inventory.RecordMovement(tx, &inventory.StockMovement{
				SubProductSizeID: size.ID,
				SubProductID:     sp.ID,
				TenantID:         sp.TenantID,
				MovementType:     movementType,
				Reason:           reason,
				Quantity:         size.Stock - previous,
				PreviousStock:    previous,
				NewStock:         size.Stock,
				ReferenceType:    "manual",
				Notes:            req.Notes,
				CreatedBy:        &actor,
			}, size.LowStockThreshold); err != nil {
				return err
			}
		}

		return refreshProductAggregates(tx, sp.ProductID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSearchCache(ctx)
	return &size, nil
}

// GetSubProduct returns an offer with its sizes
func (s *Service) GetSubProduct(ctx context.Context, id uint) (*SubProduct, error) {
	var sp SubProduct
	if err := s.db.WithContext(ctx).Preload("Product").Preload("Sizes").First(&sp, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "sub-product")
	}
	return &sp, nil
}

// ListTenantSubProducts returns every offer of one tenant
func (s *Service) ListTenantSubProducts(ctx context.Context, tenantID uint) ([]SubProduct, error) {
	subProducts := []SubProduct{}
	if err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Sizes").
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&subProducts).Error; err != nil {
		return nil, fmt.Errorf("failed to list sub-products: %w", err)
	}
	return subProducts, nil
}

// GetOffer loads the purchasable size of a sub-product
func (s *Service) GetOffer(ctx context.Context, subProductID uint, size string) (*Offer, error) {
	offers, err := s.GetOffers(ctx, []uint{subProductID})
	if err != nil {
		return nil, err
	}
	sp, ok := offers[subProductID]
	if !ok {
		return nil, apperrors.NotFound("sub-product")
	}
	return OfferFor(sp, size)
}

// GetOffers loads sub-products with product and sizes, keyed by id
func (s *Service) GetOffers(ctx context.Context, subProductIDs []uint) (map[uint]*SubProduct, error) {
	return LoadOffers(s.db.WithContext(ctx), subProductIDs)
}

// LoadOffers is GetOffers bound to an explicit handle, for use inside transactions
func LoadOffers(db *gorm.DB, subProductIDs []uint) (map[uint]*SubProduct, error) {
	result := make(map[uint]*SubProduct, len(subProductIDs))
	ids := uniqueIDs(subProductIDs)
	if len(ids) == 0 {
		return result, nil
	}

	subProducts := []SubProduct{}
	if err := db.
		Preload("Product").
		Preload("Sizes").
		Where("id IN ?", ids).
		Find(&subProducts).Error; err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}

	for i := range subProducts {
		result[subProducts[i].ID] = &subProducts[i]
	}
	return result, nil
}

// OfferFor resolves the size of sp and checks it can be sold
func OfferFor(sp *SubProduct, size string) (*Offer, error) {
	if sp.Product == nil || !sp.Product.IsPurchasable() || sp.Status != StatusActive {
		return nil, apperrors.Newf(apperrors.CodeUnprocessable, "%s is not available", sp.SKU)
	}
	sz := sp.FindSize(size)
	if sz == nil {
		return nil, apperrors.Newf(apperrors.CodeValidation, "size %q is not offered for %s", size, sp.SKU)
	}
	return &Offer{Product: sp.Product, SubProduct: sp, Size: sz}, nil
}

// DecrementStock removes sold units from a size inside tx.
// It fails with an unprocessable error when not enough stock is available.
func DecrementStock(tx *gorm.DB, change StockChange) error {
	if change.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	result := tx.Model(&SubProductSize{}).
		Where("id = ? AND is_available = ? AND stock - reserved >= ?", change.SizeID, true, change.Quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", change.Quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeUnprocessable, "insufficient stock").
			WithDetails(map[string]interface{}{"size_id": change.SizeID, "requested": change.Quantity})
	}

	return afterStockChange(tx, change, -change.Quantity, inventory.MovementTypeOutbound)
}

// RestoreStock returns units to a size inside tx
func RestoreStock(tx *gorm.DB, change StockChange) error {
	if change.Quantity <= 0 {
		return nil
	}

	if err := tx.Model(&SubProductSize{}).
		Where("id = ?", change.SizeID).
		UpdateColumn("stock", gorm.Expr("stock + ?", change.Quantity)).Error; err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	return afterStockChange(tx, change, change.Quantity, inventory.MovementTypeInbound)
}

func afterStockChange(tx *gorm.DB, change StockChange, delta int, movementType inventory.MovementType) error {
	var size SubProductSize
	if err := tx.First(&size, change.SizeID).Error; err != nil {
		return apperrors.FromGorm(err, "size")
	}
	var sp SubProduct
	if err := tx.Unscoped().First(&sp, size.SubProductID).Error; err != nil {
		return apperrors.FromGorm(err, "sub-product")
	}

	if err := inventory.RecordMovement(tx, &inventory.StockMovement{
		SubProductSizeID: size.ID,
		SubProductID:     sp.ID,
		TenantID:         sp.TenantID,
		MovementType:     movementType,
		Reason:           change.Reason,
		Quantity:         change.Quantity,
		PreviousStock:    size.Stock - delta,
		NewStock:         size.Stock,
		ReferenceType:    change.ReferenceType,
		ReferenceID:      change.ReferenceID,
		CreatedBy:        change.ActorID,
	}, size.LowStockThreshold); err != nil {
		return err
	}

	return refreshProductAggregates(tx, sp.ProductID)
}

// AdjustSalesCount moves the sold counter of a product by delta
func AdjustSalesCount(tx *gorm.DB, productID uint, delta int) error {
	if err := tx.Model(&Product{}).
		Where("id = ?", productID).
		UpdateColumn("sales_count", gorm.Expr("sales_count + ?", delta)).Error; err != nil {
		return fmt.Errorf("failed to update sales count: %w", err)
	}
	return nil
}

// refreshProductAggregates recomputes the denormalized price range and stock of a product
func refreshProductAggregates(tx *gorm.DB, productID uint) error {
	type aggregate struct {
		MinPrice   int64
		MaxPrice   int64
		TotalStock int
	}

	subProducts := []SubProduct{}
	if err := tx.Preload("Sizes").
		Where("product_id = ? AND status = ?", productID, StatusActive).
		Find(&subProducts).Error; err != nil {
		return fmt.Errorf("failed to load offers for aggregates: %w", err)
	}

	var agg aggregate
	for i := range subProducts {
		sp := &subProducts[i]
		for j := range sp.Sizes {
			sz := &sp.Sizes[j]
			if !sz.IsAvailable {
				continue
			}
			price := sz.UnitPrice(sp)
			if agg.MinPrice == 0 || price < agg.MinPrice {
				agg.MinPrice = price
			}
			if price > agg.MaxPrice {
				agg.MaxPrice = price
			}
			agg.TotalStock += sz.Available()
		}
	}

	if err := tx.Model(&Product{}).Where("id = ?", productID).UpdateColumns(map[string]interface{}{
		"min_price":   agg.MinPrice,
		"max_price":   agg.MaxPrice,
		"total_stock": agg.TotalStock,
	}).Error; err != nil {
		return fmt.Errorf("failed to update product aggregates: %w", err)
	}
	return nil
}

// listPrices returns the tenant price and the listed price for a submitted amount
func listPrices(t *tenant.Tenant, submitted int64) (int64, int64) {
	if t.RevenueModel == tenant.RevenueModelMarkup {
		return submitted, tenant.ApplyMarkup(submitted, t.Rate())
	}
	return submitted, submitted
}

func validateSizes(sizes []SizeRequest) error {
	seen := make(map[string]struct{}, len(sizes))
	for _, sz := range sizes {
		label := strings.TrimSpace(sz.Size)
		if label == "" {
			return apperrors.New(apperrors.CodeValidation, "size label is required")
		}
		if _, dup := seen[label]; dup {
			return apperrors.Newf(apperrors.CodeValidation, "duplicate size %q", label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

// validateColors rejects color names that would break composite cart keys
func validateColors(colors []string) error {
	for _, c := range colors {
		if c == "" || strings.Contains(c, "-") {
			return apperrors.Newf(apperrors.CodeValidation, "color %q is not allowed", c)
		}
	}
	return nil
}

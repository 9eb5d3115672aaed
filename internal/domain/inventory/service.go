// internal/domain/inventory/service.go
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// Service exposes the stock ledger and alerts
type Service struct {
	db *gorm.DB
}

// NewService creates a new inventory service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// MovementFilter narrows a ledger listing
type MovementFilter struct {
	TenantID         *uint  `form:"-"`
	SubProductID     uint   `form:"sub_product_id"`
	SubProductSizeID uint   `form:"size_id"`
	Reason           string `form:"reason"`
	Page             int    `form:"page,default=1"`
	Limit            int    `form:"limit,default=50"`
}

// Level is the current stock position of one size
type Level struct {
	SubProductSizeID  uint   `json:"sub_product_size_id"`
	SubProductID      uint   `json:"sub_product_id"`
	SKU               string `json:"sku"`
	Size              string `json:"size"`
	Stock             int    `json:"stock"`
	Reserved          int    `json:"reserved"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// RecordMovement appends a ledger entry inside tx and raises or resolves alerts
func RecordMovement(tx *gorm.DB, m *StockMovement, lowStockThreshold int) error {
	if m.Quantity < 0 {
		m.Quantity = -m.Quantity
	}
	if err := tx.Create(m).Error; err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	return syncAlert(tx, m.SubProductSizeID, m.TenantID, m.NewStock, lowStockThreshold)
}

// syncAlert opens an alert when stock is low and resolves open alerts once replenished
func syncAlert(tx *gorm.DB, sizeID, tenantID uint, stock, threshold int) error {
	var open StockAlert
	err := tx.Where("sub_product_size_id = ? AND is_resolved = ?", sizeID, false).First(&open).Error
	hasOpen := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load stock alert: %w", err)
	}

	alertType := ""
	message := ""
	switch {
	case stock <= 0:
		alertType = AlertOutOfStock
		message = fmt.Sprintf("Size %d is out of stock", sizeID)
	case stock <= threshold:
		alertType = AlertLowStock
		message = fmt.Sprintf("Size %d is running low (stock: %d, threshold: %d)", sizeID, stock, threshold)
	}

	if alertType == "" {
		if !hasOpen {
			return nil
		}
		now := time.Now().UTC()
		return tx.Model(&StockAlert{}).Where("id = ?", open.ID).
			Updates(map[string]interface{}{"is_resolved": true, "resolved_at": now}).Error
	}

	if hasOpen {
		if open.AlertType == alertType {
			return nil
		}
		return tx.Model(&StockAlert{}).Where("id = ?", open.ID).
			Updates(map[string]interface{}{"alert_type": alertType, "message": message}).Error
	}

	return tx.Create(&StockAlert{
		SubProductSizeID: sizeID,
		TenantID:         tenantID,
		AlertType:        alertType,
		Message:          message,
	}).Error
}

// ListMovements returns ledger entries newest first
func (s *Service) ListMovements(ctx context.Context, f *MovementFilter) ([]StockMovement, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}

	query := s.db.WithContext(ctx).Model(&StockMovement{})
	if f.TenantID != nil {
		query = query.Where("tenant_id = ?", *f.TenantID)
	}
	if f.SubProductID != 0 {
		query = query.Where("sub_product_id = ?", f.SubProductID)
	}
	if f.SubProductSizeID != 0 {
		query = query.Where("sub_product_size_id = ?", f.SubProductSizeID)
	}
	if f.Reason != "" {
		query = query.Where("reason = ?", f.Reason)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count stock movements: %w", err)
	}

	movements := []StockMovement{}
	if err := query.Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&movements).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return movements, total, nil
}

// ListAlerts returns stock alerts, optionally scoped to a tenant
func (s *Service) ListAlerts(ctx context.Context, tenantID *uint, resolved bool) ([]StockAlert, error) {
	query := s.db.WithContext(ctx).Where("is_resolved = ?", resolved)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	alerts := []StockAlert{}
	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list stock alerts: %w", err)
	}
	return alerts, nil
}

// ResolveAlert marks an alert as handled
func (s *Service) ResolveAlert(ctx context.Context, id uint, tenantID *uint) error {
	query := s.db.WithContext(ctx).Model(&StockAlert{}).Where("id = ? AND is_resolved = ?", id, false)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	result := query.Updates(map[string]interface{}{"is_resolved": true, "resolved_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("stock alert")
	}
	return nil
}

// LowStock lists sizes at or below their threshold
func (s *Service) LowStock(ctx context.Context, tenantID *uint) ([]Level, error) {
	query := s.db.WithContext(ctx).
		Table("sub_product_sizes").
		Select("sub_product_sizes.id AS sub_product_size_id, sub_product_sizes.sub_product_id, sub_products.sku, sub_product_sizes.size, sub_product_sizes.stock, sub_product_sizes.reserved, sub_product_sizes.low_stock_threshold").
		Joins("JOIN sub_products ON sub_products.id = sub_product_sizes.sub_product_id AND sub_products.deleted_at IS NULL").
		Where("sub_product_sizes.stock - sub_product_sizes.reserved <= sub_product_sizes.low_stock_threshold")
	if tenantID != nil {
		query = query.Where("sub_products.tenant_id = ?", *tenantID)
	}

	levels := []Level{}
	if err := query.Order("sub_product_sizes.stock ASC").Scan(&levels).Error; err != nil {
		return nil, fmt.Errorf("failed to load low stock levels: %w", err)
	}
	return levels, nil
}

// internal/domain/flashsale/entity.go
package flashsale

import (
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/money"
	"gorm.io/gorm"
)

// Status represents a flash sale lifecycle state
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// DiscountType determines how an item's sale price is derived
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// FlashSale is a time-boxed promotion over a set of offers
type FlashSale struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:200" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:220" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	BannerImage string         `gorm:"size:500" json:"banner_image"`
	StartsAt    time.Time      `gorm:"not null;index" json:"starts_at"`
	EndsAt      time.Time      `gorm:"not null;index" json:"ends_at"`
	Status      Status         `gorm:"size:20;default:'scheduled';index" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Items []FlashSaleItem `gorm:"foreignKey:FlashSaleID;constraint:OnDelete:CASCADE;" json:"items,omitempty"`
}

// FlashSaleItem is one discounted offer with an optional allocation cap
type FlashSaleItem struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	FlashSaleID      uint         `gorm:"not null;index" json:"flash_sale_id"`
	ProductID        uint         `gorm:"not null;index" json:"product_id"`
	SubProductID     uint         `gorm:"not null;index" json:"sub_product_id"`
	DiscountType     DiscountType `gorm:"size:20;not null" json:"discount_type"`
	DiscountValue    float64      `gorm:"type:decimal(12,2);not null" json:"discount_value"` // percent, or cents for fixed
	AllocatedStock   int          `gorm:"default:0" json:"allocated_stock"`                  // 0 means uncapped
	SoldCount        int          `gorm:"default:0" json:"sold_count"`
	PerCustomerLimit int          `gorm:"default:0" json:"per_customer_limit"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`

	FlashSale *FlashSale `gorm:"foreignKey:FlashSaleID" json:"flash_sale,omitempty"`
}

// TableName overrides
func (FlashSale) TableName() string     { return "flash_sales" }
func (FlashSaleItem) TableName() string { return "flash_sale_items" }

// IsLive reports whether the sale window contains now
func (fs *FlashSale) IsLive(now time.Time) bool {
	if fs.Status == StatusCancelled || fs.Status == StatusEnded {
		return false
	}
	return !now.Before(fs.StartsAt) && now.Before(fs.EndsAt)
}

// Overlaps reports whether the sale window intersects [start, end)
func (fs *FlashSale) Overlaps(start, end time.Time) bool {
	return fs.StartsAt.Before(end) && start.Before(fs.EndsAt)
}

// SalePrice applies the item discount to basePrice, never going below zero
func (it *FlashSaleItem) SalePrice(basePrice int64) int64 {
	var discount int64
	switch it.DiscountType {
	case DiscountPercentage:
		discount = money.Percent(basePrice, it.DiscountValue)
	case DiscountFixed:
		discount = int64(it.DiscountValue)
	}
	if discount > basePrice {
		return 0
	}
	return basePrice - discount
}

// Remaining returns the allocation left, or -1 when uncapped
func (it *FlashSaleItem) Remaining() int {
	if it.AllocatedStock == 0 {
		return -1
	}
	if left := it.AllocatedStock - it.SoldCount; left > 0 {
		return left
	}
	return 0
}

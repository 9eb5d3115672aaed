// internal/domain/coupon/entity.go
package coupon

import (
	"time"

	"gorm.io/gorm"
)

// Type determines how a coupon discount is computed
type Type string

const (
	TypePercentage   Type = "percentage"
	TypeFixed        Type = "fixed"
	TypeFreeShipping Type = "free_shipping"
)

// Coupon is a discount code
type Coupon struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Code           string         `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Description    string         `gorm:"size:500" json:"description"`
	Type           Type           `gorm:"size:20;not null" json:"type"`
	Value          float64        `gorm:"type:decimal(12,2);default:0" json:"value"` // percent, or cents for fixed
	MaxDiscount    int64          `gorm:"default:0" json:"max_discount"`
	MinOrderAmount int64          `gorm:"default:0" json:"min_order_amount"`
	StartsAt       *time.Time     `json:"starts_at"`
	EndsAt         *time.Time     `gorm:"index" json:"ends_at"`
	UsageLimit     int            `gorm:"default:0" json:"usage_limit"` // 0 means unlimited
	PerUserLimit   int            `gorm:"default:0" json:"per_user_limit"`
	UsedCount      int            `gorm:"default:0" json:"used_count"`
	CategoryIDs    []uint         `gorm:"serializer:json;type:text" json:"category_ids,omitempty"`
	ProductIDs     []uint         `gorm:"serializer:json;type:text" json:"product_ids,omitempty"`
	TenantIDs      []uint         `gorm:"serializer:json;type:text" json:"tenant_ids,omitempty"`
	FirstOrderOnly bool           `gorm:"default:false" json:"first_order_only"`
	AutoApply      bool           `gorm:"default:false;index" json:"auto_apply"`
	IsActive       bool           `gorm:"not null;index" json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// CouponRedemption records one use of a coupon by an order
type CouponRedemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CouponID  uint      `gorm:"not null;index" json:"coupon_id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	OrderID   uint      `gorm:"not null;uniqueIndex" json:"order_id"`
	Discount  int64     `gorm:"not null" json:"discount"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides
func (Coupon) TableName() string           { return "coupons" }
func (CouponRedemption) TableName() string { return "coupon_redemptions" }

// InWindow reports whether now falls within the coupon's validity window
func (c *Coupon) InWindow(now time.Time) bool {
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && !now.Before(*c.EndsAt) {
		return false
	}
	return true
}

// Exhausted reports whether the global usage limit is reached
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit
}

// Restricted reports whether the coupon only applies to some lines
func (c *Coupon) Restricted() bool {
	return len(c.CategoryIDs) > 0 || len(c.ProductIDs) > 0 || len(c.TenantIDs) > 0
}

// Applies reports whether a line is eligible for the coupon
func (c *Coupon) Applies(l Line) bool {
	if !c.Restricted() {
		return true
	}
	if len(c.ProductIDs) > 0 && !contains(c.ProductIDs, l.ProductID) {
		return false
	}
	if len(c.TenantIDs) > 0 && !contains(c.TenantIDs, l.TenantID) {
		return false
	}
	if len(c.CategoryIDs) > 0 && (l.CategoryID == nil || !contains(c.CategoryIDs, *l.CategoryID)) {
		return false
	}
	return true
}

func contains(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

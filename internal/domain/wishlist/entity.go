package wishlist

import (
	"time"
)

// WishlistItem represents a saved product. SubProductID 0 means any vendor.
type WishlistItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_wishlist_entry" json:"user_id"`
	ProductID    uint      `gorm:"not null;uniqueIndex:idx_wishlist_entry;index" json:"product_id"`
	SubProductID uint      `gorm:"not null;default:0;uniqueIndex:idx_wishlist_entry" json:"sub_product_id"`
	PriceAtAdd   int64     `gorm:"default:0" json:"price_at_add"`
	AddedAt      time.Time `json:"added_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (WishlistItem) TableName() string {
	return "wishlist_items"
}

// CompareList is the product comparison set stored in Redis
type CompareList struct {
	ProductIDs []uint    `json:"product_ids"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// internal/domain/cart/entity.go
package cart

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxLineQuantity caps the quantity of a single cart line
const MaxLineQuantity = 99

// Cart is the persisted cart of an authenticated user
type Cart struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE;" json:"items"`
}

// CartItem is one line of a persisted cart
type CartItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CartID       uint      `gorm:"not null;uniqueIndex:idx_cart_item_key" json:"cart_id"`
	ItemKey      string    `gorm:"not null;size:200;uniqueIndex:idx_cart_item_key" json:"item_key"`
	ProductID    uint      `gorm:"not null;index" json:"product_id"`
	SubProductID uint      `gorm:"not null;index" json:"sub_product_id"`
	Size         string    `gorm:"not null;size:50" json:"size"`
	VendorID     uint      `gorm:"not null" json:"vendor_id"`
	Color        string    `gorm:"size:50" json:"color"`
	Quantity     int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName overrides
func (Cart) TableName() string     { return "carts" }
func (CartItem) TableName() string { return "cart_items" }

// Line is the storage-neutral form of a cart line
type Line struct {
	Key          string    `json:"key"`
	ProductID    uint      `json:"product_id"`
	SubProductID uint      `json:"sub_product_id"`
	Size         string    `json:"size"`
	VendorID     uint      `json:"vendor_id"`
	Color        string    `json:"color"`
	Quantity     int       `json:"quantity"`
	AddedAt      time.Time `json:"added_at"`
}

// SessionCart is the guest cart stored in Redis
type SessionCart struct {
	SessionID string    `json:"session_id"`
	Items     []Line    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// KeyParts are the components of a composite line key
type KeyParts struct {
	ProductID uint
	Size      string
	VendorID  uint
	Color     string
}

// BuildItemKey returns the composite id productId-size-vendor-color.
// Color may be empty, which leaves a trailing dash.
func BuildItemKey(productID uint, size string, vendorID uint, color string) string {
	return fmt.Sprintf("%d-%s-%d-%s", productID, size, vendorID, color)
}

// ParseItemKey splits a composite id. Sizes may contain dashes; colors may not.
func ParseItemKey(key string) (KeyParts, error) {
	parts := strings.Split(key, "-")
	if len(parts) < 4 {
		return KeyParts{}, fmt.Errorf("invalid cart item key %q", key)
	}

	productID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || productID == 0 {
		return KeyParts{}, fmt.Errorf("invalid product id in cart item key %q", key)
	}
	vendorID, err := strconv.ParseUint(parts[len(parts)-2], 10, 64)
	if err != nil || vendorID == 0 {
		return KeyParts{}, fmt.Errorf("invalid vendor id in cart item key %q", key)
	}
	size := strings.Join(parts[1:len(parts)-2], "-")
	if size == "" {
		return KeyParts{}, fmt.Errorf("missing size in cart item key %q", key)
	}

	return KeyParts{
		ProductID: uint(productID),
		Size:      size,
		VendorID:  uint(vendorID),
		Color:     parts[len(parts)-1],
	}, nil
}

// ClampQuantity bounds a requested quantity to [0, MaxLineQuantity]
func ClampQuantity(qty int) int {
	if qty < 0 {
		return 0
	}
	if qty > MaxLineQuantity {
		return MaxLineQuantity
	}
	return qty
}

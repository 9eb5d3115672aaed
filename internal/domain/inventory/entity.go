// internal/domain/inventory/entity.go
package inventory

import (
	"time"
)

// MovementType represents the direction of a stock movement
type MovementType string

const (
	MovementTypeInbound    MovementType = "inbound"    // Restock, return, cancellation
	MovementTypeOutbound   MovementType = "outbound"   // Sale, damage
	MovementTypeAdjustment MovementType = "adjustment" // Absolute correction by a vendor or admin
)

// MovementReason represents the reason for a stock movement
type MovementReason string

const (
	ReasonSale         MovementReason = "sale"
	ReasonRestock      MovementReason = "restock"
	ReasonReturn       MovementReason = "return"
	ReasonDamage       MovementReason = "damage"
	ReasonAdjustment   MovementReason = "adjustment"
	ReasonCancellation MovementReason = "cancellation"
	ReasonExpiry       MovementReason = "expiry"
)

// Alert types
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
)

// StockMovement is one entry in the per-size stock ledger
type StockMovement struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SubProductSizeID uint           `gorm:"not null;index" json:"sub_product_size_id"`
	SubProductID     uint           `gorm:"not null;index" json:"sub_product_id"`
	TenantID         uint           `gorm:"not null;index" json:"tenant_id"`
	MovementType     MovementType   `gorm:"size:20;not null" json:"movement_type"`
	Reason           MovementReason `gorm:"size:30;not null" json:"reason"`
	Quantity         int            `gorm:"not null" json:"quantity"`
	PreviousStock    int            `gorm:"not null" json:"previous_stock"`
	NewStock         int            `gorm:"not null" json:"new_stock"`
	ReferenceType    string         `gorm:"size:50" json:"reference_type,omitempty"` // "order", "manual"
	ReferenceID      uint           `gorm:"index" json:"reference_id,omitempty"`
	Notes            string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy        *uint          `gorm:"index" json:"created_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// StockAlert flags a size that is running low or sold out
type StockAlert struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SubProductSizeID uint       `gorm:"not null;index" json:"sub_product_size_id"`
	TenantID         uint       `gorm:"not null;index" json:"tenant_id"`
	AlertType        string     `gorm:"size:20;not null" json:"alert_type"`
	Message          string     `gorm:"type:text" json:"message"`
	IsResolved       bool       `gorm:"default:false;index" json:"is_resolved"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName overrides
func (StockMovement) TableName() string { return "stock_movements" }
func (StockAlert) TableName() string    { return "stock_alerts" }

// Delta returns the signed change in stock
func (m *StockMovement) Delta() int {
	return m.NewStock - m.PreviousStock
}

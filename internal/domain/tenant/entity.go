// internal/domain/tenant/entity.go
package tenant

import (
	"time"

	"gorm.io/gorm"
)

// RevenueModel determines how an order line is split between platform and tenant
type RevenueModel string

const (
	// RevenueModelCommission takes a fraction of the selling price for the platform
	RevenueModelCommission RevenueModel = "commission"
	// RevenueModelMarkup lists items above the tenant's base price and keeps the difference
	RevenueModelMarkup RevenueModel = "markup"
)

// Status represents a tenant's lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is a vendor selling through the marketplace
type Tenant struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"not null;size:150" json:"name"`
	Slug           string         `gorm:"uniqueIndex;not null;size:160" json:"slug"`
	Email          string         `gorm:"not null;size:255" json:"email"`
	Phone          string         `gorm:"size:30" json:"phone"`
	Description    string         `gorm:"type:text" json:"description"`
	LogoURL        string         `gorm:"size:500" json:"logo_url"`
	Status         Status         `gorm:"size:20;default:'pending';index" json:"status"`
	RevenueModel   RevenueModel   `gorm:"size:20;default:'commission'" json:"revenue_model"`
	CommissionRate float64        `gorm:"type:decimal(5,4);default:0.15" json:"commission_rate"`
	MarkupRate     float64        `gorm:"type:decimal(5,4);default:0" json:"markup_rate"`
	PayoutEmail    string         `gorm:"size:255" json:"payout_email"`
	LicenseNumber  string         `gorm:"size:100" json:"license_number"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Tenant) TableName() string {
	return "tenants"
}

// IsActive reports whether the tenant may sell
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Rate returns the rate that applies to the tenant's revenue model
func (t *Tenant) Rate() float64 {
	if t.RevenueModel == RevenueModelMarkup {
		return t.MarkupRate
	}
	return t.CommissionRate
}

// ReportEmail returns the address revenue reports are sent to
func (t *Tenant) ReportEmail() string {
	if t.PayoutEmail != "" {
		return t.PayoutEmail
	}
	return t.Email
}

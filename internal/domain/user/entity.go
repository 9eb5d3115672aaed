// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"gorm.io/gorm"
)

// User represents the user entity
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Email           string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password        string         `gorm:"not null;size:255" json:"-"` // Don't return in JSON
	FirstName       string         `gorm:"size:100" json:"first_name"`
	LastName        string         `gorm:"size:100" json:"last_name"`
	Phone           string         `gorm:"size:20" json:"phone"`
	DateOfBirth     *time.Time     `json:"date_of_birth"`
	Avatar          string         `gorm:"size:500" json:"avatar"`
	Role            string         `gorm:"size:20;not null;default:'customer';index" json:"role"`
	TenantID        *uint          `gorm:"index" json:"tenant_id,omitempty"` // Set for vendors only
	IsActive        bool           `gorm:"not null" json:"is_active"`
	EmailVerified   bool           `gorm:"not null" json:"email_verified"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at"`
	LastLoginAt     *time.Time     `json:"last_login_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook to handle business logic before user creation
func (u *User) BeforeCreate(tx *gorm.DB) error {
	// Email should be lowercase
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = auth.RoleCustomer
	}
	return nil
}

// GetFullName returns the user's full name
func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// GetDisplayName returns display name (full name or email)
func (u *User) GetDisplayName() string {
	fullName := u.GetFullName()
	if fullName != "" {
		return fullName
	}
	return u.Email
}

// IsAdmin reports whether the user administers the marketplace
func (u *User) IsAdmin() bool {
	return u.Role == auth.RoleAdmin
}

// Principal returns the identity carried in the user's tokens
func (u *User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, TenantID: u.TenantID}
}

// AgeOn returns the user's age in whole years on the given day
func AgeOn(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	switch role {
	case auth.RoleCustomer, auth.RoleVendor, auth.RoleAdmin:
		return true
	}
	return false
}

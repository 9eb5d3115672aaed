// internal/domain/tenant/service.go
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/slug"
	"gorm.io/gorm"
)

// Service handles tenant business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new tenant service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CreateTenantRequest represents a tenant onboarding request
type CreateTenantRequest struct {
	Name           string       `json:"name" binding:"required,min=2,max=150"`
	Email          string       `json:"email" binding:"required,email"`
	Phone          string       `json:"phone"`
	Description    string       `json:"description"`
	LogoURL        string       `json:"logo_url"`
	RevenueModel   RevenueModel `json:"revenue_model" binding:"omitempty,oneof=commission markup"`
	CommissionRate *float64     `json:"commission_rate" binding:"omitempty,gte=0,lte=1"`
	MarkupRate     *float64     `json:"markup_rate" binding:"omitempty,gte=0,lte=1"`
	PayoutEmail    string       `json:"payout_email" binding:"omitempty,email"`
	LicenseNumber  string       `json:"license_number"`
}

// UpdateTenantRequest represents a partial tenant update
type UpdateTenantRequest struct {
	Name           *string       `json:"name" binding:"omitempty,min=2,max=150"`
	Email          *string       `json:"email" binding:"omitempty,email"`
	Phone          *string       `json:"phone"`
	Description    *string       `json:"description"`
	LogoURL        *string       `json:"logo_url"`
	Status         *Status       `json:"status" binding:"omitempty,oneof=pending active suspended"`
	RevenueModel   *RevenueModel `json:"revenue_model" binding:"omitempty,oneof=commission markup"`
	CommissionRate *float64      `json:"commission_rate" binding:"omitempty,gte=0,lte=1"`
	MarkupRate     *float64      `json:"markup_rate" binding:"omitempty,gte=0,lte=1"`
	PayoutEmail    *string       `json:"payout_email" binding:"omitempty,email"`
}

// CreateTenant registers a new tenant in pending state
func (s *Service) CreateTenant(ctx context.Context, req *CreateTenantRequest) (*Tenant, error) {
	t := Tenant{
		Name:           strings.TrimSpace(req.Name),
		Slug:           slug.Make(req.Name),
		Email:          strings.ToLower(req.Email),
		Phone:          req.Phone,
		Description:    req.Description,
		LogoURL:        req.LogoURL,
		Status:         StatusPending,
		RevenueModel:   RevenueModelCommission,
		CommissionRate: s.config.Marketplace.DefaultCommissionRate,
		MarkupRate:     s.config.Marketplace.DefaultMarkupRate,
		PayoutEmail:    req.PayoutEmail,
		LicenseNumber:  req.LicenseNumber,
	}
	if req.RevenueModel != "" {
		t.RevenueModel = req.RevenueModel
	}
	if req.CommissionRate != nil {
		t.CommissionRate = *req.CommissionRate
	}
	if req.MarkupRate != nil {
		t.MarkupRate = *req.MarkupRate
	}

	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.CodeConflict, "a tenant with this name already exists")
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return &t, nil
}

// UpdateTenant applies a partial update
func (s *Service) UpdateTenant(ctx context.Context, id uint, req *UpdateTenantRequest) (*Tenant, error) {
	t, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		t.Email = strings.ToLower(*req.Email)
	}
	if req.Phone != nil {
		t.Phone = *req.Phone
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.LogoURL != nil {
		t.LogoURL = *req.LogoURL
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.RevenueModel != nil {
		t.RevenueModel = *req.RevenueModel
	}
	if req.CommissionRate != nil {
		t.CommissionRate = *req.CommissionRate
	}
	if req.MarkupRate != nil {
		t.MarkupRate = *req.MarkupRate
	}
	if req.PayoutEmail != nil {
		t.PayoutEmail = *req.PayoutEmail
	}

	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return t, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id uint) (*Tenant, error) {
	var t Tenant
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "tenant")
	}
	return &t, nil
}

// GetActiveTenants loads active tenants keyed by ID
func (s *Service) GetActiveTenants(ctx context.Context, ids []uint) (map[uint]*Tenant, error) {
	return ActiveTenantsTx(s.db.WithContext(ctx), ids)
}

// ActiveTenantsTx is GetActiveTenants bound to an explicit handle
func ActiveTenantsTx(db *gorm.DB, ids []uint) (map[uint]*Tenant, error) {
	out := make(map[uint]*Tenant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var tenants []Tenant
	if err := db.
		Where("id IN ? AND status = ?", ids, StatusActive).
		Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}
	for i := range tenants {
		out[tenants[i].ID] = &tenants[i]
	}
	return out, nil
}

// ListTenants lists tenants optionally filtered by status
func (s *Service) ListTenants(ctx context.Context, status string) ([]Tenant, error) {
	query := s.db.WithContext(ctx).Order("name ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var tenants []Tenant
	if err := query.Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

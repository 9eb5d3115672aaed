// internal/domain/coupon/service.go
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/money"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrUsageLimitReached is returned when a redemption would exceed the coupon's limits
var ErrUsageLimitReached = apperrors.New(apperrors.CodeUnprocessable, "coupon usage limit reached")

// Service handles coupon business logic
type Service struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	logger  *logrus.Entry
	now     func() time.Time
}

// NewService creates a new coupon service
func NewService(db *gorm.DB, m *metrics.Metrics, logger *logrus.Entry) *Service {
	return &Service{
		db:      db,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Line is a priced line a coupon is evaluated against
type Line struct {
	ProductID  uint  `json:"product_id" binding:"required"`
	CategoryID *uint `json:"category_id"`
	TenantID   uint  `json:"tenant_id"`
	LineTotal  int64 `json:"line_total" binding:"gte=0"`
}

// Input is the order context a coupon is evaluated against
type Input struct {
	UserID      *uint
	Subtotal    int64
	Lines       []Line
	ShippingFee int64
}

// Result is the outcome of validating a coupon
type Result struct {
	Valid        bool    `json:"valid"`
	Code         string  `json:"code,omitempty"`
	Discount     int64   `json:"discount"`
	FreeShipping bool    `json:"free_shipping"`
	Eligible     int64   `json:"eligible_subtotal"`
	Message      string  `json:"message"`
	Coupon       *Coupon `json:"coupon,omitempty"`
}

// Savings returns the total benefit including waived shipping
func (r *Result) Savings(shippingFee int64) int64 {
	if r == nil || !r.Valid {
		return 0
	}
	if r.FreeShipping {
		return r.Discount + shippingFee
	}
	return r.Discount
}

// ValidateRequest is the body of POST /api/coupons/validate
type ValidateRequest struct {
	Code     string `json:"code" binding:"required,coupon_code"`
	Subtotal *int64 `json:"subtotal" binding:"omitempty,gte=0"`
	Items    []Line `json:"items" binding:"omitempty,max=100,dive"`
}

// CreateRequest represents an admin coupon definition
type CreateRequest struct {
	Code           string     `json:"code" binding:"required,coupon_code"`
	Description    string     `json:"description" binding:"max=500"`
	Type           Type       `json:"type" binding:"required,oneof=percentage fixed free_shipping"`
	Value          float64    `json:"value" binding:"gte=0"`
	MaxDiscount    int64      `json:"max_discount" binding:"gte=0"`
	MinOrderAmount int64      `json:"min_order_amount" binding:"gte=0"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	UsageLimit     int        `json:"usage_limit" binding:"gte=0"`
	PerUserLimit   int        `json:"per_user_limit" binding:"gte=0"`
	CategoryIDs    []uint     `json:"category_ids"`
	ProductIDs     []uint     `json:"product_ids"`
	TenantIDs      []uint     `json:"tenant_ids"`
	FirstOrderOnly bool       `json:"first_order_only"`
	AutoApply      bool       `json:"auto_apply"`
	IsActive       *bool      `json:"is_active"`
}

// UpdateRequest represents a partial coupon update
type UpdateRequest struct {
	Description    *string    `json:"description" binding:"omitempty,max=500"`
	Value          *float64   `json:"value" binding:"omitempty,gte=0"`
	MaxDiscount    *int64     `json:"max_discount" binding:"omitempty,gte=0"`
	MinOrderAmount *int64     `json:"min_order_amount" binding:"omitempty,gte=0"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	UsageLimit     *int       `json:"usage_limit" binding:"omitempty,gte=0"`
	PerUserLimit   *int       `json:"per_user_limit" binding:"omitempty,gte=0"`
	CategoryIDs    []uint     `json:"category_ids"`
	ProductIDs     []uint     `json:"product_ids"`
	TenantIDs      []uint     `json:"tenant_ids"`
	FirstOrderOnly *bool      `json:"first_order_only"`
	AutoApply      *bool      `json:"auto_apply"`
	IsActive       *bool      `json:"is_active"`
}

// ListRequest represents admin list filters
type ListRequest struct {
	Active *bool  `form:"active"`
	Search string `form:"search"`
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
}

// NormalizeCode uppercases and trims a coupon code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LinesFromCart converts a priced cart into coupon lines
func LinesFromCart(c *cart.CartResponse) []Line {
	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, Line{
			ProductID:  it.ProductID,
			CategoryID: it.CategoryID,
			TenantID:   it.VendorID,
			LineTotal:  it.LineTotal,
		})
	}
	return lines
}

// Validate checks a code against the order context and computes its discount.
// Business rule failures produce an invalid result rather than an error.
func (s *Service) Validate(ctx context.Context, code string, in Input) (*Result, error) {
	return s.validate(s.db.WithContext(ctx), NormalizeCode(code), in)
}

// ValidateTx is Validate bound to an explicit handle, for use inside transactions
func (s *Service) ValidateTx(tx *gorm.DB, code string, in Input) (*Result, error) {
	return s.validate(tx, NormalizeCode(code), in)
}

func (s *Service) validate(db *gorm.DB, code string, in Input) (*Result, error) {
	var c Coupon
	err := db.Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Result{Code: code, Message: "coupon not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return s.evaluate(db, &c, in)
}

// evaluate applies every rule of c to in
func (s *Service) evaluate(db *gorm.DB, c *Coupon, in Input) (*Result, error) {
	res := &Result{Code: c.Code, Coupon: c}
	now := s.now()

	switch {
	case !c.IsActive:
		res.Message = "coupon is not active"
		return res, nil
	case !c.InWindow(now):
		if c.StartsAt != nil && now.Before(*c.StartsAt) {
			res.Message = "coupon is not yet valid"
		} else {
			res.Message = "coupon has expired"
		}
		return res, nil
	case c.Exhausted():
		res.Message = "coupon usage limit reached"
		return res, nil
	}

	if c.PerUserLimit > 0 || c.FirstOrderOnly {
		if in.UserID == nil {
			res.Message = "sign in to use this coupon"
			return res, nil
		}
	}
	if c.PerUserLimit > 0 {
		var used int64
		if err := db.Model(&CouponRedemption{}).
			Where("coupon_id = ? AND user_id = ?", c.ID, *in.UserID).
			Count(&used).Error; err != nil {
			return nil, fmt.Errorf("failed to count coupon redemptions: %w", err)
		}
		if used >= int64(c.PerUserLimit) {
			res.Message = "you have already used this coupon"
			return res, nil
		}
	}
	if c.FirstOrderOnly {
		var orders int64
		if err := db.Table("orders").
			Where("user_id = ? AND status <> ? AND deleted_at IS NULL", *in.UserID, "cancelled").
			Count(&orders).Error; err != nil {
			return nil, fmt.Errorf("failed to count orders: %w", err)
		}
		if orders > 0 {
			res.Message = "coupon is only valid on your first order"
			return res, nil
		}
	}

	eligible := eligibleSubtotal(c, in)
	res.Eligible = eligible
	if eligible <= 0 {
		res.Message = "no items in your cart are eligible for this coupon"
		return res, nil
	}
	if eligible < c.MinOrderAmount {
		res.Message = fmt.Sprintf("minimum order amount is %d", c.MinOrderAmount)
		return res, nil
	}

	res.Discount = Discount(c, eligible)
	res.FreeShipping = c.Type == TypeFreeShipping
	res.Valid = true
	res.Message = "coupon applied"
	return res, nil
}

// eligibleSubtotal sums the lines the coupon applies to. Without lines the input subtotal is used.
func eligibleSubtotal(c *Coupon, in Input) int64 {
	if len(in.Lines) == 0 {
		if c.Restricted() {
			return 0
		}
		return in.Subtotal
	}
	var total int64
	for _, l := range in.Lines {
		if c.Applies(l) {
			total += l.LineTotal
		}
	}
	return total
}

// Discount computes the discount of c over an eligible subtotal. The result never exceeds eligible.
func Discount(c *Coupon, eligible int64) int64 {
	if eligible <= 0 {
		return 0
	}
	var d int64
	switch c.Type {
	case TypePercentage:
		d = money.Percent(eligible, c.Value)
	case TypeFixed:
		d = int64(c.Value)
	default:
		return 0
	}
	if c.MaxDiscount > 0 {
		d = money.Min(d, c.MaxDiscount)
	}
	d = money.Min(d, eligible)
	if d < 0 {
		return 0
	}
	return d
}

// AutoApply returns the auto-apply coupon with the largest saving, or nil.
// Ties go to the coupon that expires first.
func (s *Service) AutoApply(ctx context.Context, in Input) (*Result, error) {
	return s.AutoApplyTx(s.db.WithContext(ctx), in)
}

// AutoApplyTx is AutoApply bound to an explicit handle
func (s *Service) AutoApplyTx(db *gorm.DB, in Input) (*Result, error) {
	var coupons []Coupon
	if err := db.
		Where("auto_apply = ? AND is_active = ?", true, true).
		Order("id ASC").
		Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to load auto-apply coupons: %w", err)
	}

	var best *Result
	for i := range coupons {
		res, err := s.evaluate(db, &coupons[i], in)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			continue
		}
		if best == nil || better(res, best, in.ShippingFee) {
			best = res
		}
	}
	return best, nil
}

func better(a, b *Result, shippingFee int64) bool {
	sa, sb := a.Savings(shippingFee), b.Savings(shippingFee)
	if sa != sb {
		return sa > sb
	}
	ea, eb := a.Coupon.EndsAt, b.Coupon.EndsAt
	switch {
	case ea == nil:
		return false
	case eb == nil:
		return true
	default:
		return ea.Before(*eb)
	}
}

// Redeem records a coupon use inside the order transaction.
// The used_count increment is guarded so concurrent orders cannot exceed the limit.
func Redeem(tx *gorm.DB, c *Coupon, userID *uint, orderID uint, discount int64) error {
	result := tx.Model(&Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", c.ID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to redeem coupon: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUsageLimitReached
	}

	if c.PerUserLimit > 0 && userID != nil {
		var used int64
		if err := tx.Model(&CouponRedemption{}).
			Where("coupon_id = ? AND user_id = ?", c.ID, *userID).
			Count(&used).Error; err != nil {
			return fmt.Errorf("failed to count coupon redemptions: %w", err)
		}
		if used >= int64(c.PerUserLimit) {
			return ErrUsageLimitReached
		}
	}

	if err := tx.Create(&CouponRedemption{
		CouponID: c.ID,
		UserID:   userID,
		OrderID:  orderID,
		Discount: discount,
	}).Error; err != nil {
		return fmt.Errorf("failed to record coupon redemption: %w", err)
	}
	return nil
}

// ReleaseRedemption undoes Redeem for a cancelled order
func ReleaseRedemption(tx *gorm.DB, orderID uint) error {
	var r CouponRedemption
	err := tx.Where("order_id = ?", orderID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load coupon redemption: %w", err)
	}

	if err := tx.Model(&Coupon{}).
		Where("id = ? AND used_count > 0", r.CouponID).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error; err != nil {
		return fmt.Errorf("failed to release coupon: %w", err)
	}
	if err := tx.Delete(&r).Error; err != nil {
		return fmt.Errorf("failed to delete coupon redemption: %w", err)
	}
	return nil
}

// RecordRedeemed updates metrics after the order transaction commits
func (s *Service) RecordRedeemed(c *Coupon) {
	s.metrics.CouponRedeemed(string(c.Type))
}

// Create adds a coupon
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Coupon, error) {
	c := &Coupon{
		Code:           NormalizeCode(req.Code),
		Description:    req.Description,
		Type:           req.Type,
		Value:          req.Value,
		MaxDiscount:    req.MaxDiscount,
		MinOrderAmount: req.MinOrderAmount,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		UsageLimit:     req.UsageLimit,
		PerUserLimit:   req.PerUserLimit,
		CategoryIDs:    req.CategoryIDs,
		ProductIDs:     req.ProductIDs,
		TenantIDs:      req.TenantIDs,
		FirstOrderOnly: req.FirstOrderOnly,
		AutoApply:      req.AutoApply,
		IsActive:       true,
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := validateCoupon(c); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Newf(apperrors.CodeConflict, "coupon %s already exists", c.Code)
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}
	return c, nil
}

// Update changes a coupon
func (s *Service) Update(ctx context.Context, id uint, req *UpdateRequest) (*Coupon, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Value != nil {
		c.Value = *req.Value
	}
	if req.MaxDiscount != nil {
		c.MaxDiscount = *req.MaxDiscount
	}
	if req.MinOrderAmount != nil {
		c.MinOrderAmount = *req.MinOrderAmount
	}
	if req.StartsAt != nil {
		c.StartsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		c.EndsAt = req.EndsAt
	}
	if req.UsageLimit != nil {
		c.UsageLimit = *req.UsageLimit
	}
	if req.PerUserLimit != nil {
		c.PerUserLimit = *req.PerUserLimit
	}
	if req.CategoryIDs != nil {
		c.CategoryIDs = req.CategoryIDs
	}
	if req.ProductIDs != nil {
		c.ProductIDs = req.ProductIDs
	}
	if req.TenantIDs != nil {
		c.TenantIDs = req.TenantIDs
	}
	if req.FirstOrderOnly != nil {
		c.FirstOrderOnly = *req.FirstOrderOnly
	}
	if req.AutoApply != nil {
		c.AutoApply = *req.AutoApply
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := validateCoupon(c); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}
	return c, nil
}

// Delete soft-deletes a coupon
func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Coupon{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete coupon: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("coupon")
	}
	return nil
}

// Get returns a coupon by id
func (s *Service) Get(ctx context.Context, id uint) (*Coupon, error) {
	var c Coupon
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "coupon")
	}
	return &c, nil
}

// List returns coupons for the admin console
func (s *Service) List(ctx context.Context, req *ListRequest) ([]Coupon, int64, error) {
	query := s.db.WithContext(ctx).Model(&Coupon{})
	if req.Active != nil {
		query = query.Where("is_active = ?", *req.Active)
	}
	if req.Search != "" {
		query = query.Where("code LIKE ?", "%"+NormalizeCode(req.Search)+"%")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count coupons: %w", err)
	}

	coupons := []Coupon{}
	if err := query.Order("created_at DESC").
		Offset((req.Page - 1) * req.Limit).
		Limit(req.Limit).
		Find(&coupons).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, total, nil
}

// DeactivateExpired switches off coupons whose window has closed
func (s *Service) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Coupon{}).
		Where("is_active = ? AND ends_at IS NOT NULL AND ends_at <= ?", true, now).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate expired coupons: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func validateCoupon(c *Coupon) error {
	switch c.Type {
	case TypePercentage:
		if c.Value <= 0 || c.Value > 100 {
			return apperrors.New(apperrors.CodeValidation, "percentage value must be in (0, 100]")
		}
	case TypeFixed:
		if c.Value <= 0 {
			return apperrors.New(apperrors.CodeValidation, "fixed value must be positive")
		}
	case TypeFreeShipping:
		c.Value = 0
	default:
		return apperrors.Newf(apperrors.CodeValidation, "unknown coupon type %q", c.Type)
	}
	if c.StartsAt != nil && c.EndsAt != nil && !c.EndsAt.After(*c.StartsAt) {
		return apperrors.New(apperrors.CodeValidation, "ends_at must be after starts_at")
	}
	if c.PerUserLimit > 0 && c.UsageLimit > 0 && c.PerUserLimit > c.UsageLimit {
		return apperrors.New(apperrors.CodeValidation, "per-user limit cannot exceed usage limit")
	}
	return nil
}

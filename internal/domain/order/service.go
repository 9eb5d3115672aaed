// internal/domain/order/service.go
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/checkout"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/coupon"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/inventory"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/payment"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/messaging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dependencies are the collaborators of the order service
type Dependencies struct {
	Checkout  *checkout.Service
	Carts     *cart.Service
	Coupons   *coupon.Service
	FlashSale *flashsale.Service
	Gateway   payment.Gateway
	Publisher messaging.Publisher
	Emails    *email.EmailService
	Metrics   *metrics.Metrics
	Logger    *logrus.Entry
}

// Service handles order business logic
type Service struct {
	db        *gorm.DB
	config    *config.Config
	checkout  *checkout.Service
	carts     *cart.Service
	coupons   *coupon.Service
	flash     *flashsale.Service
	gateway   payment.Gateway
	publisher messaging.Publisher
	emails    *email.EmailService
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	now       func() time.Time
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, deps Dependencies) *Service {
	return &Service{
		db:        db,
		config:    cfg,
		checkout:  deps.Checkout,
		carts:     deps.Carts,
		coupons:   deps.Coupons,
		flash:     deps.FlashSale,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		emails:    deps.Emails,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Viewer identifies who is reading or changing an order
type Viewer struct {
	UserID  *uint
	IsAdmin bool
	Email   string
}

// CreateOrderRequest represents order creation data
type CreateOrderRequest struct {
	Items           []checkout.LineInput `json:"items" binding:"omitempty,max=100,dive"`
	CouponCode      string               `json:"coupon_code" binding:"omitempty,coupon_code"`
	AutoApplyCoupon bool                 `json:"auto_apply_coupon"`
	Email           string               `json:"email" binding:"omitempty,email"`
	Phone           string               `json:"phone" binding:"max=30"`
	ShippingAddress Address              `json:"shipping_address" binding:"required"`
	BillingAddress  *Address             `json:"billing_address,omitempty"` // Optional, defaults to shipping
	Notes           string               `json:"notes" binding:"max=1000"`
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page      int         `form:"page,default=1"`
	Limit     int         `form:"limit,default=20"`
	Status    OrderStatus `form:"status"`
	UserID    uint        `form:"user_id"`
	TenantID  uint        `form:"tenant_id"`
	Search    string      `form:"search"`
	SortBy    string      `form:"sort_by,default=created_at"`
	SortOrder string      `form:"sort_order,default=desc"`
	DateFrom  string      `form:"date_from"`
	DateTo    string      `form:"date_to"`
}

// OrderResponse represents order response with pagination
type OrderResponse struct {
	Orders     []Order            `json:"orders"`
	Pagination product.Pagination `json:"pagination"`
}

type reservation struct {
	itemID uint
	qty    int
}

// CreateOrder turns the owner's cart (or explicit items) into a pending order
func (s *Service) CreateOrder(ctx context.Context, owner cart.Owner, req *CreateOrderRequest) (*Order, error) {
	items := req.Items
	if len(items) == 0 {
		var err error
		if items, err = s.checkout.CartItems(ctx, owner); err != nil {
			return nil, err
		}
	}
	input := checkout.Input{Owner: owner, Items: items, CouponCode: req.CouponCode, AutoApply: req.AutoApplyCoupon}

	customerEmail, err := s.customerEmail(ctx, owner, req.Email)
	if err != nil {
		return nil, err
	}

	// Price once outside the transaction to claim flash sale allocation.
	preview, err := s.checkout.Quote(ctx, input)
	if err != nil {
		return nil, err
	}
	reserved, err := s.reserveFlash(ctx, preview)
	if err != nil {
		return nil, err
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	var (
		order       *Order
		quote       *checkout.Quote
		tenantTotal int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.checkout.QuoteTx(tx, input)
		if err != nil {
			return err
		}
		quote = q

		order = &Order{
			OrderNumber:     GenerateOrderNumber(s.now()),
			UserID:          owner.UserID,
			Email:           customerEmail,
			Phone:           req.Phone,
			Status:          OrderStatusPending,
			PaymentStatus:   PaymentStatusPending,
			SubtotalAmount:  q.Subtotal,
			DiscountAmount:  q.Discount,
			ShippingAmount:  q.Shipping,
			TaxAmount:       q.Tax,
			TotalAmount:     q.Total,
			Currency:        q.Currency,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  billing,
			Notes:           req.Notes,
		}
		if q.Coupon != nil && q.Coupon.Valid {
			order.CouponCode = q.Coupon.Code
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		items, err := s.buildItems(tx, order.ID, q.Lines)
		if err != nil {
			return err
		}
		for i := range items {
			order.PlatformFeeTotal += items[i].PlatformAmount
			tenantTotal += items[i].TenantAmount
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}
		order.Items = items

		for _, it := range items {
			if err := product.DecrementStock(tx, product.StockChange{
				SizeID:        it.SizeID,
				Quantity:      it.Quantity,
				Reason:        inventory.ReasonSale,
				ReferenceType: "order",
				ReferenceID:   order.ID,
				ActorID:       owner.UserID,
			}); err != nil {
				return err
			}
			if it.FlashSaleItemID != nil {
				if err := flashsale.CommitSold(tx, *it.FlashSaleItemID, it.Quantity); err != nil {
					return err
				}
			}
			if err := product.AdjustSalesCount(tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		if q.Coupon != nil && q.Coupon.Valid && q.Coupon.Coupon != nil {
			if err := coupon.Redeem(tx, q.Coupon.Coupon, owner.UserID, order.ID, q.Discount); err != nil {
				return err
			}
		}

		if err := tx.Model(order).UpdateColumn("platform_fee_total", order.PlatformFeeTotal).Error; err != nil {
			return fmt.Errorf("failed to store platform fee: %w", err)
		}
		if err := addHistory(tx, order.ID, OrderStatusPending, "Order placed", nil); err != nil {
			return err
		}

		if owner.UserID != nil {
			return s.carts.ClearUserCart(tx, *owner.UserID)
		}
		return nil
	})
	if err != nil {
		s.releaseFlash(ctx, reserved)
		return nil, err
	}

	if owner.IsGuest() && len(req.Items) == 0 {
		if err := s.carts.Clear(ctx, owner); err != nil {
			s.logger.WithError(err).Warn("failed to clear guest cart after checkout")
		}
	}

	s.metrics.OrderCreated(order.PlatformFeeTotal, tenantTotal)
	if quote.Coupon != nil && quote.Coupon.Valid && quote.Coupon.Coupon != nil {
		s.coupons.RecordRedeemed(quote.Coupon.Coupon)
	}
	s.publish(ctx, messaging.EventOrderCreated, order)
	s.sendConfirmation(order)

	s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount,
		"items":        len(order.Items),
	}).Info("order created")

	return s.load(ctx, order.ID)
}

func (s *Service) customerEmail(ctx context.Context, owner cart.Owner, requested string) (string, error) {
	if owner.UserID == nil {
		if requested == "" {
			return "", apperrors.New(apperrors.CodeValidation, "email is required for guest checkout")
		}
		return strings.ToLower(strings.TrimSpace(requested)), nil
	}

	var row struct{ Email string }
	if err := s.db.WithContext(ctx).Table("users").Select("email").
		Where("id = ? AND deleted_at IS NULL", *owner.UserID).
		Take(&row).Error; err != nil {
		return "", apperrors.FromGorm(err, "user")
	}
	return row.Email, nil
}

// buildItems snapshots quote lines and splits their revenue between platform and tenant
func (s *Service) buildItems(tx *gorm.DB, orderID uint, lines []checkout.Line) ([]OrderItem, error) {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.VendorID)
	}
	tenants, err := tenant.ActiveTenantsTx(tx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		model, rate := tenant.RevenueModelCommission, s.config.Marketplace.DefaultCommissionRate
		if t, ok := tenants[l.VendorID]; ok {
			model, rate = t.RevenueModel, t.Rate()
		}
		split, err := tenant.Split(model, rate, l.UnitPrice, l.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to split revenue for %s: %w", l.SKU, err)
		}

		items = append(items, OrderItem{
			OrderID:         orderID,
			ProductID:       l.ProductID,
			SubProductID:    l.SubProductID,
			SizeID:          l.SizeID,
			TenantID:        l.VendorID,
			ProductName:     l.ProductName,
			SKU:             l.SKU,
			Size:            l.Size,
			Color:           l.Color,
			Image:           l.Image,
			ABV:             l.ABV,
			VolumeML:        l.VolumeML,
			Quantity:        l.Quantity,
			RegularPrice:    l.RegularPrice,
			UnitPrice:       l.UnitPrice,
			TotalPrice:      l.LineTotal,
			RevenueModel:    model,
			Rate:            rate,
			PlatformAmount:  split.PlatformAmount,
			TenantAmount:    split.TenantAmount,
			FlashSaleItemID: l.FlashSaleItemID,
		})
	}
	return items, nil
}

func (s *Service) reserveFlash(ctx context.Context, q *checkout.Quote) ([]reservation, error) {
	var subIDs []uint
	for _, l := range q.Lines {
		if l.FlashSaleItemID != nil {
			subIDs = append(subIDs, l.SubProductID)
		}
	}
	if len(subIDs) == 0 || s.flash == nil {
		return nil, nil
	}

	active, err := s.flash.ActiveItems(ctx, subIDs, s.now())
	if err != nil {
		return nil, err
	}

	var reserved []reservation
	for _, l := range q.Lines {
		it, ok := active[l.SubProductID]
		if !ok || l.FlashSaleItemID == nil || it.ID != *l.FlashSaleItemID {
			continue
		}
		if err := s.flash.Reserve(ctx, it, l.Quantity); err != nil {
			s.releaseFlash(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, reservation{itemID: it.ID, qty: l.Quantity})
	}
	return reserved, nil
}

func (s *Service) releaseFlash(ctx context.Context, reserved []reservation) {
	if s.flash == nil {
		return
	}
	for _, r := range reserved {
		s.flash.Release(ctx, r.itemID, r.qty)
	}
}

// GetOrders retrieves orders with filtering and pagination
func (s *Service) GetOrders(ctx context.Context, req *OrderListRequest) (*OrderResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&Order{})

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.TenantID > 0 {
		query = query.Where("id IN (?)", s.db.Model(&OrderItem{}).Select("order_id").Where("tenant_id = ?", req.TenantID))
	}
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if from, err := parseDate(req.DateFrom); err != nil {
		return nil, err
	} else if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if to, err := parseDate(req.DateTo); err != nil {
		return nil, err
	} else if !to.IsZero() {
		query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	orders := []Order{}
	offset := (req.Page - 1) * req.Limit
	if err := query.Preload("Items").
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Offset(offset).Limit(req.Limit).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return &OrderResponse{
		Orders:     orders,
		Pagination: product.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// GetUserOrders retrieves orders for a specific user
func (s *Service) GetUserOrders(ctx context.Context, userID uint, req *OrderListRequest) (*OrderResponse, error) {
	req.UserID = userID
	req.TenantID = 0
	return s.GetOrders(ctx, req)
}

// GetOrder retrieves a single order visible to the viewer
func (s *Service) GetOrder(ctx context.Context, viewer Viewer, id uint) (*Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, o, false) {
		return nil, apperrors.NotFound("order")
	}
	return o, nil
}

// GetOrderByNumber retrieves an order by number for its owner, an admin, or a guest quoting the order email
func (s *Service) GetOrderByNumber(ctx context.Context, viewer Viewer, orderNumber string) (*Order, error) {
	var o Order
	if err := s.preloaded(ctx).
		Where("order_number = ?", strings.ToUpper(strings.TrimSpace(orderNumber))).
		First(&o).Error; err != nil {
		return nil, apperrors.FromGorm(err, "order")
	}
	if !canView(viewer, &o, true) {
		return nil, apperrors.NotFound("order")
	}
	return &o, nil
}

// canView hides orders from other customers. Guests match on the order email;
// byNumber also lets signed-in users look up their own guest orders by email.
func canView(v Viewer, o *Order, byNumber bool) bool {
	if v.IsAdmin {
		return true
	}
	if v.UserID != nil && o.UserID != nil && *v.UserID == *o.UserID {
		return true
	}
	emailMatch := v.Email != "" && strings.EqualFold(strings.TrimSpace(v.Email), o.Email)
	if byNumber {
		return emailMatch
	}
	return o.IsGuest() && emailMatch
}

func (s *Service) load(ctx context.Context, id uint) (*Order, error) {
	var o Order
	if err := s.preloaded(ctx).First(&o, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "order")
	}
	return &o, nil
}

func (s *Service) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

func addHistory(tx *gorm.DB, orderID uint, status OrderStatus, comment string, actor *uint) error {
	if err := tx.Create(&OrderStatusHistory{
		OrderID:   orderID,
		Status:    status,
		Comment:   comment,
		CreatedBy: actor,
	}).Error; err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}
	return nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, apperrors.Newf(apperrors.CodeValidation, "invalid date %q, expected YYYY-MM-DD", v)
	}
	return t.UTC(), nil
}

func buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"total_amount": true,
		"status":       true,
		"order_number": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}
	return fmt.Sprintf("%s %s", sortBy, sortOrder)
}

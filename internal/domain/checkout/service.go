// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/coupon"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/money"
	"gorm.io/gorm"
)

// Service prices carts into order quotes
type Service struct {
	db      *gorm.DB
	config  *config.Config
	carts   *cart.Service
	coupons *coupon.Service
	now     func() time.Time
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, cfg *config.Config, carts *cart.Service, coupons *coupon.Service) *Service {
	return &Service{
		db:      db,
		config:  cfg,
		carts:   carts,
		coupons: coupons,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LineInput is a line to be priced
type LineInput struct {
	ProductID    uint   `json:"product_id" binding:"required"`
	SubProductID uint   `json:"sub_product_id" binding:"required"`
	Size         string `json:"size" binding:"required,max=50"`
	VendorID     uint   `json:"vendor_id" binding:"required"`
	Color        string `json:"color" binding:"max=50"`
	Quantity     int    `json:"quantity" binding:"required,min=1,max=99"`
}

// QuoteRequest is the body of POST /api/checkout/quote
type QuoteRequest struct {
	Items      []LineInput `json:"items" binding:"omitempty,max=100,dive"`
	CouponCode string      `json:"coupon_code" binding:"omitempty,coupon_code"`
	AutoApply  bool        `json:"auto_apply"`
}

// Input is everything needed to price an order
type Input struct {
	Owner      cart.Owner
	Items      []LineInput
	CouponCode string
	AutoApply  bool
}

// Line is a priced order line
type Line struct {
	Key              string  `json:"key"`
	ProductID        uint    `json:"product_id"`
	SubProductID     uint    `json:"sub_product_id"`
	SizeID           uint    `json:"size_id"`
	Size             string  `json:"size"`
	VendorID         uint    `json:"vendor_id"`
	Color            string  `json:"color,omitempty"`
	Quantity         int     `json:"quantity"`
	RegularPrice     int64   `json:"regular_price"`
	UnitPrice        int64   `json:"unit_price"`
	LineTotal        int64   `json:"line_total"`
	ProductName      string  `json:"product_name"`
	SKU              string  `json:"sku"`
	Image            string  `json:"image,omitempty"`
	ABV              float64 `json:"abv"`
	VolumeML         int     `json:"volume_ml"`
	CategoryID       *uint   `json:"category_id,omitempty"`
	FlashSaleItemID  *uint   `json:"flash_sale_item_id,omitempty"`
	PerCustomerLimit int     `json:"-"`
}

// Quote is a fully priced order.
// Total == Subtotal - Discount + Shipping + Tax.
type Quote struct {
	Lines        []Line         `json:"lines"`
	Subtotal     int64          `json:"subtotal"`
	Discount     int64          `json:"discount"`
	Shipping     int64          `json:"shipping"`
	Tax          int64          `json:"tax"`
	Total        int64          `json:"total"`
	Currency     string         `json:"currency"`
	FreeShipping bool           `json:"free_shipping"`
	Coupon       *coupon.Result `json:"coupon,omitempty"`
}

// CouponInput returns the coupon evaluation context of the quote
func (q *Quote) CouponInput(userID *uint) coupon.Input {
	lines := make([]coupon.Line, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, coupon.Line{
			ProductID:  l.ProductID,
			CategoryID: l.CategoryID,
			TenantID:   l.VendorID,
			LineTotal:  l.LineTotal,
		})
	}
	return coupon.Input{UserID: userID, Subtotal: q.Subtotal, Lines: lines}
}

// Quote prices the input. Without explicit items the owner's cart is used.
func (s *Service) Quote(ctx context.Context, in Input) (*Quote, error) {
	if len(in.Items) == 0 {
		items, err := s.CartItems(ctx, in.Owner)
		if err != nil {
			return nil, err
		}
		in.Items = items
	}
	return s.QuoteTx(s.db.WithContext(ctx), in)
}

// CartItems returns the owner's cart as priceable lines
func (s *Service) CartItems(ctx context.Context, owner cart.Owner) ([]LineInput, error) {
	c, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	items := make([]LineInput, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, LineInput{
			ProductID:    it.ProductID,
			SubProductID: it.SubProductID,
			Size:         it.Size,
			VendorID:     it.VendorID,
			Color:        it.Color,
			Quantity:     it.Quantity,
		})
	}
	return items, nil
}

// QuoteTx prices explicit items using db, which may be an open transaction.
// Unlike the cart it never clamps: unavailable lines fail the quote.
func (s *Service) QuoteTx(db *gorm.DB, in Input) (*Quote, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeUnprocessable, "cart is empty")
	}

	lines, err := s.priceLines(db, in)
	if err != nil {
		return nil, err
	}

	q := &Quote{Lines: lines, Currency: s.config.Marketplace.Currency}
	for _, l := range lines {
		q.Subtotal += l.LineTotal
	}

	if err := s.applyCoupon(db, q, in); err != nil {
		return nil, err
	}

	afterDiscount := q.Subtotal - q.Discount
	q.Shipping = s.shippingFee(afterDiscount, q.FreeShipping)
	q.Tax = money.Fraction(afterDiscount, s.config.Marketplace.TaxRate)
	q.Total = afterDiscount + q.Shipping + q.Tax
	return q, nil
}

func (s *Service) priceLines(db *gorm.DB, in Input) ([]Line, error) {
	ids := make([]uint, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.SubProductID)
	}
	offers, err := product.LoadOffers(db, ids)
	if err != nil {
		return nil, err
	}
	flashItems, err := flashsale.ActiveItemsTx(db, ids, s.now())
	if err != nil {
		return nil, err
	}

	merged := map[string]int{}
	lines := make([]Line, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 || it.Quantity > cart.MaxLineQuantity {
			return nil, apperrors.Newf(apperrors.CodeValidation, "quantity must be between 1 and %d", cart.MaxLineQuantity)
		}
		sp, ok := offers[it.SubProductID]
		if !ok {
			return nil, apperrors.NotFound("sub-product")
		}
		if sp.ProductID != it.ProductID || sp.TenantID != it.VendorID {
			return nil, apperrors.New(apperrors.CodeValidation, "sub-product does not match product and vendor")
		}
		if !sp.SupportsColor(it.Color) {
			return nil, apperrors.Newf(apperrors.CodeValidation, "color %q is not offered", it.Color)
		}
		offer, err := product.OfferFor(sp, it.Size)
		if err != nil {
			return nil, err
		}

		key := cart.BuildItemKey(it.ProductID, it.Size, it.VendorID, it.Color)
		if i, dup := merged[key]; dup {
			lines[i].Quantity += it.Quantity
		} else {
			merged[key] = len(lines)
			lines = append(lines, Line{
				Key:          key,
				ProductID:    it.ProductID,
				SubProductID: sp.ID,
				SizeID:       offer.Size.ID,
				Size:         it.Size,
				VendorID:     it.VendorID,
				Color:        it.Color,
				Quantity:     it.Quantity,
				RegularPrice: offer.UnitPrice(),
				ProductName:  offer.Product.Name,
				SKU:          sp.SKU,
				Image:        offer.Product.PrimaryImage(),
				ABV:          offer.Product.ABV,
				VolumeML:     offer.Size.VolumeML,
				CategoryID:   offer.Product.CategoryID,
			})
		}

		l := &lines[merged[key]]
		if l.Quantity > offer.Size.Available() {
			return nil, apperrors.Newf(apperrors.CodeUnprocessable, "only %d of %s %s available", offer.Size.Available(), offer.Product.Name, it.Size).
				WithDetails(map[string]interface{}{"key": key, "available": offer.Size.Available(), "requested": l.Quantity})
		}
	}

	// sizes of one sub-product share a flash sale item, so limits apply to their sum
	flashQty := make(map[uint]int, len(flashItems))
	for i := range lines {
		if _, ok := flashItems[lines[i].SubProductID]; ok {
			flashQty[lines[i].SubProductID] += lines[i].Quantity
		}
	}

	checked := make(map[uint]bool, len(flashQty))
	for i := range lines {
		l := &lines[i]
		l.UnitPrice = l.RegularPrice
		if fi, ok := flashItems[l.SubProductID]; ok {
			if !checked[fi.ID] {
				if err := s.checkFlashLimits(db, fi, in.Owner.UserID, flashQty[l.SubProductID], l); err != nil {
					return nil, err
				}
				checked[fi.ID] = true
			}
			l.UnitPrice = fi.SalePrice(l.RegularPrice)
			id := fi.ID
			l.FlashSaleItemID = &id
			l.PerCustomerLimit = fi.PerCustomerLimit
		}
		l.LineTotal = l.UnitPrice * int64(l.Quantity)
	}
	return lines, nil
}

// checkFlashLimits enforces the allocation and per-customer limit of a flash sale item
// against qty, the quantity of every line the item covers.
// Signed-in customers are limited across their non-cancelled orders.
func (s *Service) checkFlashLimits(db *gorm.DB, fi *flashsale.FlashSaleItem, userID *uint, qty int, l *Line) error {
	if remaining := fi.Remaining(); remaining >= 0 && qty > remaining {
		return apperrors.Newf(apperrors.CodeUnprocessable, "only %d of %s left in the flash sale", remaining, l.ProductName)
	}
	if fi.PerCustomerLimit <= 0 {
		return nil
	}

	var bought int64
	if userID != nil {
		if err := db.Table("order_items").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("orders.user_id = ? AND orders.status <> ? AND order_items.flash_sale_item_id = ?", *userID, "cancelled", fi.ID).
			Select("COALESCE(SUM(order_items.quantity), 0)").
			Scan(&bought).Error; err != nil {
			return fmt.Errorf("failed to count flash sale purchases: %w", err)
		}
	}
	if bought+int64(qty) > int64(fi.PerCustomerLimit) {
		return apperrors.Newf(apperrors.CodeUnprocessable, "flash sale limit is %d per customer", fi.PerCustomerLimit).
			WithDetails(map[string]interface{}{"key": l.Key, "already_bought": bought, "requested": qty})
	}
	return nil
}

func (s *Service) applyCoupon(db *gorm.DB, q *Quote, in Input) error {
	cin := q.CouponInput(in.Owner.UserID)
	cin.ShippingFee = s.config.Marketplace.ShippingFlatFee

	var (
		res *coupon.Result
		err error
	)
	switch {
	case in.CouponCode != "":
		res, err = s.coupons.ValidateTx(db, in.CouponCode, cin)
	case in.AutoApply:
		res, err = s.coupons.AutoApplyTx(db, cin)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	q.Coupon = res
	if res.Valid {
		q.Discount = money.Min(res.Discount, q.Subtotal)
		q.FreeShipping = res.FreeShipping
	}
	return nil
}

// shippingFee returns the flat fee unless shipping is waived
func (s *Service) shippingFee(afterDiscount int64, couponWaived bool) int64 {
	m := s.config.Marketplace
	if couponWaived {
		return 0
	}
	if m.FreeShippingThreshold > 0 && afterDiscount >= m.FreeShippingThreshold {
		return 0
	}
	return m.ShippingFlatFee
}

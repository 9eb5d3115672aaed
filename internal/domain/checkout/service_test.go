package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/coupon"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	coupons *coupon.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testdb.Open(t,
		&product.Product{}, &product.SubProduct{}, &product.SubProductSize{},
		&flashsale.FlashSale{}, &flashsale.FlashSaleItem{},
		&cart.Cart{}, &cart.CartItem{},
		&coupon.Coupon{}, &coupon.CouponRedemption{},
	)
	require.NoError(t, db.Exec(`CREATE TABLE orders (id integer primary key, user_id integer, status text, deleted_at datetime)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE order_items (id integer primary key, order_id integer, quantity integer, flash_sale_item_id integer)`).Error)

	_, rdb := testdb.Redis(t)
	cfg := &config.Config{Marketplace: config.MarketplaceConfig{
		Currency:              "USD",
		CartTTL:               24 * time.Hour,
		ShippingFlatFee:       999,
		FreeShippingThreshold: 10000,
		TaxRate:               0.08,
	}}
	logger := logging.Discard()
	carts := cart.NewService(db, rdb, cfg, logging.Component(logger, "cart"))
	coupons := coupon.NewService(db, nil, logging.Component(logger, "coupon"))

	return &fixture{db: db, svc: NewService(db, cfg, carts, coupons), coupons: coupons}
}

func (f *fixture) offer(t *testing.T, name string, price int64, stock int) *product.SubProduct {
	t.Helper()

	p := product.Product{Name: name, Slug: name, Type: product.TypeSpirit, ABV: 40, IsAlcoholic: true, Status: product.StatusActive}
	require.NoError(t, f.db.Create(&p).Error)

	sp := product.SubProduct{ProductID: p.ID, TenantID: 3, SKU: "SKU-" + name, BasePrice: price, Status: product.StatusActive,
		Sizes: []product.SubProductSize{{Size: "700ml", VolumeML: 700, Stock: stock, IsAvailable: true}}}
	require.NoError(t, f.db.Create(&sp).Error)
	return &sp
}

func line(sp *product.SubProduct, qty int) LineInput {
	return LineInput{ProductID: sp.ProductID, SubProductID: sp.ID, Size: "700ml", VendorID: sp.TenantID, Quantity: qty}
}

func uintPtr(v uint) *uint { return &v }

func TestQuoteTotals(t *testing.T) {
	f := newFixture(t)
	gin := f.offer(t, "gin", 2500, 10)
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, Input{Owner: cart.Owner{SessionID: "s1"}, Items: []LineInput{line(gin, 2)}})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), q.Subtotal)
	assert.Equal(t, int64(0), q.Discount)
	assert.Equal(t, int64(999), q.Shipping)
	assert.Equal(t, int64(400), q.Tax)
	assert.Equal(t, int64(6399), q.Total)
	assert.Equal(t, q.Subtotal-q.Discount+q.Shipping+q.Tax, q.Total)
	assert.Equal(t, "USD", q.Currency)
}

func TestQuoteFreeShippingAboveThreshold(t *testing.T) {
	f := newFixture(t)
	rum := f.offer(t, "rum", 5000, 10)

	q, err := f.svc.Quote(context.Background(), Input{Items: []LineInput{line(rum, 2)}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.Shipping)
	assert.Equal(t, int64(10800), q.Total)
}

func TestQuoteMergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	vodka := f.offer(t, "vodka", 1000, 3)

	q, err := f.svc.Quote(context.Background(), Input{Items: []LineInput{line(vodka, 1), line(vodka, 2)}})
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.Equal(t, 3, q.Lines[0].Quantity)

	_, err = f.svc.Quote(context.Background(), Input{Items: []LineInput{line(vodka, 2), line(vodka, 2)}})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))
}

func TestQuoteRejectsEmptyAndMismatchedInput(t *testing.T) {
	f := newFixture(t)
	tequila := f.offer(t, "tequila", 3000, 5)
	ctx := context.Background()

	_, err := f.svc.Quote(ctx, Input{Owner: cart.Owner{SessionID: "empty"}})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))

	wrongVendor := line(tequila, 1)
	wrongVendor.VendorID = 99
	_, err = f.svc.Quote(ctx, Input{Items: []LineInput{wrongVendor}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	wrongSize := line(tequila, 1)
	wrongSize.Size = "1L"
	_, err = f.svc.Quote(ctx, Input{Items: []LineInput{wrongSize}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestQuoteUsesCartWhenNoItems(t *testing.T) {
	f := newFixture(t)
	brandy := f.offer(t, "brandy", 4000, 5)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "guest-9"}

	_, err := f.svc.carts.AddItem(ctx, owner, &cart.ItemRequest{
		ProductID: brandy.ProductID, SubProductID: brandy.ID, Size: "700ml", VendorID: brandy.TenantID, Quantity: 1,
	})
	require.NoError(t, err)

	q, err := f.svc.Quote(ctx, Input{Owner: owner})
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.Equal(t, int64(4000), q.Subtotal)
}

func TestQuoteCoupons(t *testing.T) {
	f := newFixture(t)
	whisky := f.offer(t, "whisky", 3000, 10)
	ctx := context.Background()

	_, err := f.coupons.Create(ctx, &coupon.CreateRequest{Code: "TENOFF", Type: coupon.TypePercentage, Value: 10})
	require.NoError(t, err)
	_, err = f.coupons.Create(ctx, &coupon.CreateRequest{Code: "SHIPFREE", Type: coupon.TypeFreeShipping})
	require.NoError(t, err)

	q, err := f.svc.Quote(ctx, Input{Items: []LineInput{line(whisky, 2)}, CouponCode: "tenoff"})
	require.NoError(t, err)
	require.NotNil(t, q.Coupon)
	assert.True(t, q.Coupon.Valid)
	assert.Equal(t, int64(600), q.Discount)
	assert.Equal(t, int64(432), q.Tax)
	assert.Equal(t, int64(5400+999+432), q.Total)

	q, err = f.svc.Quote(ctx, Input{Items: []LineInput{line(whisky, 1)}, CouponCode: "SHIPFREE"})
	require.NoError(t, err)
	assert.True(t, q.FreeShipping)
	assert.Equal(t, int64(0), q.Shipping)
	assert.Equal(t, int64(3000+240), q.Total)

	q, err = f.svc.Quote(ctx, Input{Items: []LineInput{line(whisky, 1)}, CouponCode: "NOPE"})
	require.NoError(t, err)
	require.NotNil(t, q.Coupon)
	assert.False(t, q.Coupon.Valid)
	assert.Equal(t, int64(0), q.Discount)
	assert.Equal(t, int64(999), q.Shipping)
}

func TestQuoteFlashSaleLimits(t *testing.T) {
	f := newFixture(t)
	cognac := f.offer(t, "cognac", 10000, 20)
	ctx := context.Background()
	now := time.Now().UTC()

	sale := flashsale.FlashSale{Name: "Weekend", Slug: "weekend", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Status: flashsale.StatusActive}
	require.NoError(t, f.db.Create(&sale).Error)
	item := flashsale.FlashSaleItem{FlashSaleID: sale.ID, ProductID: cognac.ProductID, SubProductID: cognac.ID,
		DiscountType: flashsale.DiscountPercentage, DiscountValue: 20, AllocatedStock: 5, SoldCount: 2, PerCustomerLimit: 2}
	require.NoError(t, f.db.Create(&item).Error)

	user := uintPtr(42)
	q, err := f.svc.Quote(ctx, Input{Owner: cart.Owner{UserID: user}, Items: []LineInput{line(cognac, 1)}})
	require.NoError(t, err)
	assert.Equal(t, int64(8000), q.Lines[0].UnitPrice)
	assert.Equal(t, int64(10000), q.Lines[0].RegularPrice)
	require.NotNil(t, q.Lines[0].FlashSaleItemID)
	assert.Equal(t, item.ID, *q.Lines[0].FlashSaleItemID)

	_, err = f.svc.Quote(ctx, Input{Owner: cart.Owner{UserID: user}, Items: []LineInput{line(cognac, 3)}})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))

	require.NoError(t, f.db.Exec(`INSERT INTO orders (id, user_id, status) VALUES (1, 42, 'paid')`).Error)
	require.NoError(t, f.db.Exec(`INSERT INTO order_items (order_id, quantity, flash_sale_item_id) VALUES (1, 1, ?)`, item.ID).Error)
	require.NoError(t, f.db.Exec(`INSERT INTO orders (id, user_id, status) VALUES (2, 42, 'cancelled')`).Error)
	require.NoError(t, f.db.Exec(`INSERT INTO order_items (order_id, quantity, flash_sale_item_id) VALUES (2, 2, ?)`, item.ID).Error)

	_, err = f.svc.Quote(ctx, Input{Owner: cart.Owner{UserID: user}, Items: []LineInput{line(cognac, 2)}})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))

	_, err = f.svc.Quote(ctx, Input{Owner: cart.Owner{UserID: user}, Items: []LineInput{line(cognac, 1)}})
	assert.NoError(t, err)

	_, err = f.svc.Quote(ctx, Input{Owner: cart.Owner{SessionID: "guest"}, Items: []LineInput{line(cognac, 2)}})
	assert.NoError(t, err)
}

func TestQuoteFlashSaleLimitsSpanSizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := product.Product{Name: "vermouth", Slug: "vermouth", Type: product.TypeLiqueur, ABV: 16, IsAlcoholic: true, Status: product.StatusActive}
	require.NoError(t, f.db.Create(&p).Error)
	sp := product.SubProduct{ProductID: p.ID, TenantID: 3, SKU: "SKU-vermouth", BasePrice: 1800, Status: product.StatusActive,
		Sizes: []product.SubProductSize{
			{Size: "700ml", VolumeML: 700, Stock: 20, IsAvailable: true},
			{Size: "6-pack", VolumeML: 4200, Price: 9000, Stock: 20, IsAvailable: true},
		}}
	require.NoError(t, f.db.Create(&sp).Error)

	sale := flashsale.FlashSale{Name: "Aperitivo", Slug: "aperitivo", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Status: flashsale.StatusActive}
	require.NoError(t, f.db.Create(&sale).Error)
	item := flashsale.FlashSaleItem{FlashSaleID: sale.ID, ProductID: p.ID, SubProductID: sp.ID,
		DiscountType: flashsale.DiscountPercentage, DiscountValue: 10, AllocatedStock: 5, PerCustomerLimit: 3}
	require.NoError(t, f.db.Create(&item).Error)

	bottle := LineInput{ProductID: p.ID, SubProductID: sp.ID, Size: "700ml", VendorID: 3, Quantity: 3}
	pack := LineInput{ProductID: p.ID, SubProductID: sp.ID, Size: "6-pack", VendorID: 3, Quantity: 3}

	_, err := f.svc.Quote(ctx, Input{Owner: cart.Owner{UserID: uintPtr(7)}, Items: []LineInput{bottle, pack}})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable), "per-customer limit covers both sizes: %v", err)

	// guests are only bound by the allocation, which is shared too
	_, err = f.svc.Quote(ctx, Input{Owner: cart.Owner{SessionID: "guest"}, Items: []LineInput{bottle, pack}})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable), "allocation covers both sizes: %v", err)

	pack.Quantity = 1
	q, err := f.svc.Quote(ctx, Input{Owner: cart.Owner{UserID: uintPtr(7)}, Items: []LineInput{{ProductID: p.ID, SubProductID: sp.ID, Size: "700ml", VendorID: 3, Quantity: 2}, pack}})
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, int64(1620), q.Lines[0].UnitPrice)
	assert.Equal(t, int64(8100), q.Lines[1].UnitPrice)
}

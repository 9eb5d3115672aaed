package flashsale

import (
	"context"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/messaging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, *messaging.RecordingPublisher) {
	t.Helper()

	db := testdb.Open(t,
		&product.Product{}, &product.SubProduct{}, &product.SubProductSize{},
		&FlashSale{}, &FlashSaleItem{},
	)
	_, rdb := testdb.Redis(t)
	pub := &messaging.RecordingPublisher{}

	return NewService(db, rdb, pub, nil, logging.Component(logging.Discard(), "flashsale")), db, pub
}

func seedOffer(t *testing.T, db *gorm.DB, name string, price int64) *product.SubProduct {
	t.Helper()

	p := product.Product{Name: name, Slug: name, Type: product.TypeSpirit, ABV: 40, IsAlcoholic: true, Status: product.StatusActive}
	require.NoError(t, db.Create(&p).Error)

	sp := product.SubProduct{ProductID: p.ID, TenantID: 1, SKU: "SKU-" + name, BasePrice: price, Status: product.StatusActive,
		Sizes: []product.SubProductSize{{Size: "700ml", Stock: 50, IsAvailable: true}}}
	require.NoError(t, db.Create(&sp).Error)
	return &sp
}

func TestSalePrice(t *testing.T) {
	pct := FlashSaleItem{DiscountType: DiscountPercentage, DiscountValue: 25}
	assert.Equal(t, int64(3000), pct.SalePrice(4000))

	odd := FlashSaleItem{DiscountType: DiscountPercentage, DiscountValue: 33}
	assert.Equal(t, int64(670), odd.SalePrice(1000))

	fixed := FlashSaleItem{DiscountType: DiscountFixed, DiscountValue: 500}
	assert.Equal(t, int64(1500), fixed.SalePrice(2000))
	assert.Equal(t, int64(0), fixed.SalePrice(300))
}

func TestCreateValidatesWindowAndDiscounts(t *testing.T) {
	svc, db, _ := setup(t)
	sp := seedOffer(t, db, "rum", 2000)
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	_, err := svc.Create(ctx, &CreateRequest{Name: "Backwards", StartsAt: start, EndsAt: start.Add(-time.Minute),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountPercentage, DiscountValue: 10}}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = svc.Create(ctx, &CreateRequest{Name: "Too Deep", StartsAt: start, EndsAt: start.Add(time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountPercentage, DiscountValue: 100}}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = svc.Create(ctx, &CreateRequest{Name: "Free Rum", StartsAt: start, EndsAt: start.Add(time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountFixed, DiscountValue: 2000}}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestCreateChecksFixedDiscountAgainstCheapestSize(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	p := product.Product{Name: "mezcal", Slug: "mezcal", Type: product.TypeSpirit, ABV: 40, IsAlcoholic: true, Status: product.StatusActive}
	require.NoError(t, db.Create(&p).Error)
	sp := product.SubProduct{ProductID: p.ID, TenantID: 1, SKU: "SKU-mezcal", BasePrice: 3000, Status: product.StatusActive,
		Sizes: []product.SubProductSize{
			{Size: "700ml", Stock: 10, IsAvailable: true},
			{Size: "50ml", Price: 500, Stock: 10, IsAvailable: true},
		}}
	require.NoError(t, db.Create(&sp).Error)

	_, err := svc.Create(ctx, &CreateRequest{Name: "Mezcal Giveaway", StartsAt: start, EndsAt: start.Add(time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountFixed, DiscountValue: 1500}}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "got %v", err)

	sale, err := svc.Create(ctx, &CreateRequest{Name: "Mezcal Night", StartsAt: start, EndsAt: start.Add(time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountFixed, DiscountValue: 200}}})
	require.NoError(t, err)
	assert.Equal(t, int64(300), sale.Items[0].SalePrice(500))
}

func TestCreateRejectsOverlappingSales(t *testing.T) {
	svc, db, _ := setup(t)
	sp := seedOffer(t, db, "gin", 3000)
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	first, err := svc.Create(ctx, &CreateRequest{Name: "Gin Weekend", StartsAt: start, EndsAt: start.Add(48 * time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountPercentage, DiscountValue: 15}}})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, first.Status)
	assert.Equal(t, "gin-weekend", first.Slug)

	_, err = svc.Create(ctx, &CreateRequest{Name: "Gin Night", StartsAt: start.Add(24 * time.Hour), EndsAt: start.Add(72 * time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountPercentage, DiscountValue: 20}}})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	_, err = svc.Create(ctx, &CreateRequest{Name: "Gin Later", StartsAt: start.Add(48 * time.Hour), EndsAt: start.Add(72 * time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountPercentage, DiscountValue: 20}}})
	assert.NoError(t, err)
}

func TestPriceForAndSweep(t *testing.T) {
	svc, db, pub := setup(t)
	sp := seedOffer(t, db, "whisky", 8000)
	ctx := context.Background()
	now := time.Now().UTC()

	sale, err := svc.Create(ctx, &CreateRequest{Name: "Whisky Hour", StartsAt: now.Add(time.Minute), EndsAt: now.Add(time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountPercentage, DiscountValue: 25}}})
	require.NoError(t, err)

	price, item, err := svc.PriceFor(ctx, sp.ID, sp.BasePrice, now)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, int64(8000), price)

	later := now.Add(2 * time.Minute)
	price, item, err = svc.PriceFor(ctx, sp.ID, sp.BasePrice, later)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(6000), price)

	res, err := svc.SweepStatuses(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Activated: 1}, res)

	res, err = svc.SweepStatuses(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Ended: 1}, res)

	got, err := svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, got.Status)
	assert.Equal(t, []string{messaging.EventFlashSaleStarted, messaging.EventFlashSaleEnded}, pub.Types())
}

func TestReserveHonoursAllocation(t *testing.T) {
	svc, db, _ := setup(t)
	sp := seedOffer(t, db, "cognac", 10000)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := svc.Create(ctx, &CreateRequest{Name: "Cognac Drop", StartsAt: now.Add(-time.Minute), EndsAt: now.Add(time.Hour),
		Items: []ItemRequest{{SubProductID: sp.ID, DiscountType: DiscountFixed, DiscountValue: 1000, AllocatedStock: 5}}})
	require.NoError(t, err)

	items, err := svc.ActiveItems(ctx, []uint{sp.ID}, now)
	require.NoError(t, err)
	item := items[sp.ID]
	require.NotNil(t, item)
	require.NotNil(t, item.FlashSale)

	require.NoError(t, svc.Reserve(ctx, item, 3))
	require.NoError(t, svc.Reserve(ctx, item, 2))
	assert.ErrorIs(t, svc.Reserve(ctx, item, 1), ErrAllocationExhausted)

	svc.Release(ctx, item.ID, 2)
	require.NoError(t, svc.Reserve(ctx, item, 2))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return CommitSold(tx, item.ID, 5) }))
	assert.ErrorIs(t, db.Transaction(func(tx *gorm.DB) error { return CommitSold(tx, item.ID, 1) }), ErrAllocationExhausted)

	items, err = svc.ActiveItems(ctx, []uint{sp.ID}, now)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return RevertSold(tx, item.ID, 2) }))
	var reloaded FlashSaleItem
	require.NoError(t, db.First(&reloaded, item.ID).Error)
	assert.Equal(t, 3, reloaded.SoldCount)
}

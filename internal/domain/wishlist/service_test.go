package wishlist

import (
	"context"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testdb.Open(t,
		&product.Category{}, &product.Brand{}, &product.Product{}, &product.SubProduct{}, &product.SubProductSize{},
		&flashsale.FlashSale{}, &flashsale.FlashSaleItem{},
		&cart.Cart{}, &cart.CartItem{}, &WishlistItem{},
	)
	_, rdb := testdb.Redis(t)
	cfg := &config.Config{Marketplace: config.MarketplaceConfig{Currency: "USD", CartTTL: 7 * 24 * time.Hour, CompareLimit: 4}}
	carts := cart.NewService(db, rdb, cfg, logging.Component(logging.Discard(), "cart"))

	return NewService(db, rdb, cfg, carts), db
}

func seed(t *testing.T, db *gorm.DB, name string, price int64) *product.SubProduct {
	t.Helper()

	p := product.Product{Name: name, Slug: name, Type: product.TypeBeer, ABV: 5, VolumeML: 330, IsAlcoholic: true,
		Status: product.StatusActive, MinPrice: price, MaxPrice: price, TotalStock: 24}
	require.NoError(t, db.Create(&p).Error)

	sp := product.SubProduct{ProductID: p.ID, TenantID: 3, SKU: "SKU-" + name, BasePrice: price, Status: product.StatusActive,
		Sizes: []product.SubProductSize{{Size: "330ml", VolumeML: 330, Stock: 24, IsAvailable: true}}}
	require.NoError(t, db.Create(&sp).Error)
	return &sp
}

func TestWishlistAddIsUniquePerOffer(t *testing.T) {
	svc, db := setup(t)
	sp := seed(t, db, "stout", 450)
	ctx := context.Background()

	item, err := svc.AddToWishlist(ctx, 1, &AddRequest{ProductID: sp.ProductID})
	require.NoError(t, err)
	assert.True(t, item.IsAvailable)
	assert.Equal(t, int64(450), item.CurrentPrice)

	_, err = svc.AddToWishlist(ctx, 1, &AddRequest{ProductID: sp.ProductID})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	pinned, err := svc.AddToWishlist(ctx, 1, &AddRequest{ProductID: sp.ProductID, SubProductID: sp.ID})
	require.NoError(t, err)
	require.NotNil(t, pinned.SubProduct)

	list, err := svc.GetWishlist(ctx, 1, &ListRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, int64(2), list.Pagination.Total)
	assert.Equal(t, 2, list.Summary.RecentlyAdded)

	require.NoError(t, svc.RemoveFromWishlist(ctx, 1, sp.ProductID, 0))
	err = svc.RemoveFromWishlist(ctx, 1, sp.ProductID, 0)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestWishlistFlagsPriceDrop(t *testing.T) {
	svc, db := setup(t)
	sp := seed(t, db, "ipa", 600)
	ctx := context.Background()

	_, err := svc.AddToWishlist(ctx, 2, &AddRequest{ProductID: sp.ProductID, SubProductID: sp.ID})
	require.NoError(t, err)
	require.NoError(t, db.Model(&product.SubProduct{}).Where("id = ?", sp.ID).Update("base_price", 500).Error)

	list, err := svc.GetWishlist(ctx, 2, &ListRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(500), list.Items[0].CurrentPrice)
	assert.True(t, list.Items[0].PriceDropped)
}

func TestMoveToCart(t *testing.T) {
	svc, db := setup(t)
	sp := seed(t, db, "lager", 300)
	ctx := context.Background()

	item, err := svc.AddToWishlist(ctx, 9, &AddRequest{ProductID: sp.ProductID})
	require.NoError(t, err)

	resp, err := svc.MoveToCart(ctx, 9, item.ID, &MoveToCartRequest{SubProductID: sp.ID, Size: "330ml", Quantity: 6})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(1800), resp.Subtotal)

	in, err := svc.IsInWishlist(ctx, 9, sp.ProductID)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestCompareLimit(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	scope := CompareScope{SessionID: "cmp-1"}

	var ids []uint
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, seed(t, db, "cmp-"+name, 100).ProductID)
	}

	for _, id := range ids[:4] {
		_, err := svc.AddToCompare(ctx, scope, id)
		require.NoError(t, err)
	}
	again, err := svc.AddToCompare(ctx, scope, ids[0])
	require.NoError(t, err)
	assert.Len(t, again.Items, 4)

	_, err = svc.AddToCompare(ctx, scope, ids[4])
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))

	resp, err := svc.RemoveFromCompare(ctx, scope, ids[1])
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, ids[0], resp.Items[0].ProductID)
	assert.Equal(t, 1, resp.Items[0].VendorCount)
	assert.Equal(t, 330, resp.Items[0].VolumeML)

	require.NoError(t, svc.ClearCompare(ctx, scope))
	empty, err := svc.GetCompare(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	_, err = svc.GetCompare(ctx, CompareScope{})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

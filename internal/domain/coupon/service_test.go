package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testdb.Open(t, &Coupon{}, &CouponRedemption{})
	require.NoError(t, db.Exec(`CREATE TABLE orders (id integer primary key, user_id integer, status text, deleted_at datetime)`).Error)
	return NewService(db, nil, logging.Component(logging.Discard(), "coupon")), db
}

func uintPtr(v uint) *uint { return &v }

func TestDiscountNeverExceedsEligible(t *testing.T) {
	pct := &Coupon{Type: TypePercentage, Value: 15}
	assert.Equal(t, int64(1500), Discount(pct, 10000))

	capped := &Coupon{Type: TypePercentage, Value: 50, MaxDiscount: 2000}
	assert.Equal(t, int64(2000), Discount(capped, 10000))

	fixed := &Coupon{Type: TypeFixed, Value: 5000}
	assert.Equal(t, int64(3000), Discount(fixed, 3000))

	ship := &Coupon{Type: TypeFreeShipping}
	assert.Equal(t, int64(0), Discount(ship, 3000))
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, &CreateRequest{Code: " summer10 ", Type: TypePercentage, Value: 10})
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", c.Code)
	assert.True(t, c.IsActive)

	_, err = svc.Create(ctx, &CreateRequest{Code: "SUMMER10", Type: TypeFixed, Value: 100})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	_, err = svc.Create(ctx, &CreateRequest{Code: "HUGE", Type: TypePercentage, Value: 120})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = svc.Create(ctx, &CreateRequest{Code: "ZERO", Type: TypeFixed})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestValidateRules(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	wine := uint(4)

	_, err := svc.Create(ctx, &CreateRequest{Code: "WINE20", Type: TypePercentage, Value: 20, MinOrderAmount: 5000, CategoryIDs: []uint{wine}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{Code: "OLD", Type: TypeFixed, Value: 500, EndsAt: &past})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{Code: "WELCOME", Type: TypeFixed, Value: 1000, FirstOrderOnly: true})
	require.NoError(t, err)

	res, err := svc.Validate(ctx, "missing", Input{Subtotal: 1000})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "MISSING", res.Code)

	res, err = svc.Validate(ctx, "old", Input{Subtotal: 1000})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "coupon has expired", res.Message)

	lines := []Line{
		{ProductID: 1, CategoryID: &wine, TenantID: 1, LineTotal: 4000},
		{ProductID: 2, CategoryID: uintPtr(9), TenantID: 1, LineTotal: 6000},
	}
	res, err = svc.Validate(ctx, "wine20", Input{Subtotal: 10000, Lines: lines})
	require.NoError(t, err)
	assert.False(t, res.Valid, "eligible subtotal is below the minimum")
	assert.Equal(t, int64(4000), res.Eligible)

	lines[0].LineTotal = 6000
	res, err = svc.Validate(ctx, "wine20", Input{Subtotal: 12000, Lines: lines})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(1200), res.Discount)

	res, err = svc.Validate(ctx, "welcome", Input{Subtotal: 3000})
	require.NoError(t, err)
	assert.False(t, res.Valid, "first-order coupons need a user")

	res, err = svc.Validate(ctx, "welcome", Input{Subtotal: 3000, UserID: uintPtr(7)})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	require.NoError(t, db.Exec(`INSERT INTO orders (id, user_id, status) VALUES (1, 7, 'delivered')`).Error)
	res, err = svc.Validate(ctx, "welcome", Input{Subtotal: 3000, UserID: uintPtr(7)})
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestAutoApplyPicksLargestSaving(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(72 * time.Hour)

	_, err := svc.Create(ctx, &CreateRequest{Code: "AUTO5", Type: TypeFixed, Value: 500, AutoApply: true, EndsAt: &later})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{Code: "AUTO10", Type: TypePercentage, Value: 10, AutoApply: true, EndsAt: &later})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{Code: "AUTO10B", Type: TypePercentage, Value: 10, AutoApply: true, EndsAt: &soon})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{Code: "MANUAL", Type: TypePercentage, Value: 50})
	require.NoError(t, err)

	best, err := svc.AutoApply(ctx, Input{Subtotal: 10000})
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "AUTO10B", best.Code)
	assert.Equal(t, int64(1000), best.Discount)

	ship, err := svc.Create(ctx, &CreateRequest{Code: "FREESHIP", Type: TypeFreeShipping, AutoApply: true})
	require.NoError(t, err)
	best, err = svc.AutoApply(ctx, Input{Subtotal: 10000, ShippingFee: 1500})
	require.NoError(t, err)
	assert.Equal(t, ship.Code, best.Code)

	none, err := svc.AutoApply(ctx, Input{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRedeemHonoursLimits(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, &CreateRequest{Code: "ONCE", Type: TypeFixed, Value: 300, UsageLimit: 2, PerUserLimit: 1})
	require.NoError(t, err)

	redeem := func(userID uint, orderID uint) error {
		return db.Transaction(func(tx *gorm.DB) error { return Redeem(tx, c, &userID, orderID, 300) })
	}

	require.NoError(t, redeem(1, 100))
	assert.ErrorIs(t, redeem(1, 101), ErrUsageLimitReached)
	require.NoError(t, redeem(2, 102))
	assert.ErrorIs(t, redeem(3, 103), ErrUsageLimitReached)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)

	res, err := svc.Validate(ctx, "ONCE", Input{Subtotal: 1000, UserID: uintPtr(3)})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return ReleaseRedemption(tx, 102) }))
	got, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedCount)
	require.NoError(t, redeem(3, 103))
}

func TestDeactivateExpired(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	_, err := svc.Create(ctx, &CreateRequest{Code: "GONE", Type: TypeFixed, Value: 100, EndsAt: &past})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{Code: "OPEN", Type: TypeFixed, Value: 100})
	require.NoError(t, err)

	n, err := svc.DeactivateExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

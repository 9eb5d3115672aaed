package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommission(t *testing.T) {
	split, err := Split(RevenueModelCommission, 0.15, 2999, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(8997), split.Gross)
	assert.Equal(t, int64(1350), split.PlatformAmount) // 1349.55 rounds up
	assert.Equal(t, int64(7647), split.TenantAmount)
}

func TestSplitMarkup(t *testing.T) {
	listed := ApplyMarkup(2000, 0.20)
	assert.Equal(t, int64(2400), listed)

	split, err := Split(RevenueModelMarkup, 0.20, listed, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4800), split.Gross)
	assert.Equal(t, int64(800), split.PlatformAmount)
	assert.Equal(t, int64(4000), split.TenantAmount)
}

func TestSplitMarkupRoundsTenantBase(t *testing.T) {
	// base is 1.5 cents: the tenant's share rounds half-up
	split, err := Split(RevenueModelMarkup, 1, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), split.TenantAmount)
	assert.Equal(t, int64(1), split.PlatformAmount)

	// 999 / 1.2 = 832.5
	split, err = Split(RevenueModelMarkup, 0.2, 999, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(833), split.TenantAmount)
	assert.Equal(t, int64(166), split.PlatformAmount)
}

func TestSplitAlwaysSumsToGross(t *testing.T) {
	prices := []int64{1, 99, 1234, 4599, 100001}
	rates := []float64{0, 0.033, 0.125, 0.175, 0.3333, 1}
	for _, model := range []RevenueModel{RevenueModelCommission, RevenueModelMarkup} {
		for _, price := range prices {
			for _, rate := range rates {
				for qty := 1; qty <= 7; qty++ {
					split, err := Split(model, rate, price, qty)
					require.NoError(t, err)
					assert.Equal(t, split.Gross, split.PlatformAmount+split.TenantAmount)
					assert.GreaterOrEqual(t, split.PlatformAmount, int64(0))
					assert.GreaterOrEqual(t, split.TenantAmount, int64(0))
				}
			}
		}
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	_, err := Split(RevenueModelCommission, 1.5, 100, 1)
	assert.Error(t, err)
	_, err = Split("revenue_share", 0.1, 100, 1)
	assert.Error(t, err)
	_, err = Split(RevenueModelCommission, 0.1, -1, 1)
	assert.Error(t, err)
}

func TestTenantRate(t *testing.T) {
	commission := Tenant{RevenueModel: RevenueModelCommission, CommissionRate: 0.12, MarkupRate: 0.3}
	markup := Tenant{RevenueModel: RevenueModelMarkup, CommissionRate: 0.12, MarkupRate: 0.3}
	assert.Equal(t, 0.12, commission.Rate())
	assert.Equal(t, 0.3, markup.Rate())
	assert.Equal(t, "billing@vendor.test", (&Tenant{Email: "a@vendor.test", PayoutEmail: "billing@vendor.test"}).ReportEmail())
}

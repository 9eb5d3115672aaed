package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakes struct {
	sweptAt    time.Time
	expiredTTL time.Duration
	couponsAt  time.Time
	popularity int
	purgedAt   time.Time
	reportFrom time.Time
	reportTo   time.Time
	mailed     []email.VendorRevenueReportData
	sweepErr   error
	reportRows []tenant.RevenueRow
}

func (f *fakes) SweepStatuses(_ context.Context, now time.Time) (flashsale.SweepResult, error) {
	f.sweptAt = now
	return flashsale.SweepResult{Activated: 1}, f.sweepErr
}

func (f *fakes) ExpireStalePending(_ context.Context, olderThan time.Duration) (int, error) {
	f.expiredTTL = olderThan
	return 2, nil
}

func (f *fakes) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	f.couponsAt = now
	return 0, nil
}

func (f *fakes) RecalculatePopularity(context.Context) error {
	f.popularity++
	return nil
}

func (f *fakes) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	f.purgedAt = now
	return 3, nil
}

func (f *fakes) RevenueReport(_ context.Context, from, to time.Time) (*tenant.RevenueReport, error) {
	f.reportFrom, f.reportTo = from, to
	r := &tenant.RevenueReport{From: from, To: to, Rows: f.reportRows}
	for _, row := range f.reportRows {
		r.TotalGross += row.Gross
		r.TotalPlatform += row.PlatformAmount
	}
	return r, nil
}

func (f *fakes) SendVendorRevenueReport(_ context.Context, data email.VendorRevenueReportData) error {
	f.mailed = append(f.mailed, data)
	return nil
}

var jobNow = time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)

func jobConfig() *config.Config {
	return &config.Config{
		Marketplace: config.MarketplaceConfig{Currency: "USD", PendingOrderTTL: 45 * time.Minute},
		Jobs: config.JobsConfig{
			FlashSaleSweepInterval: time.Minute,
			PendingOrderInterval:   5 * time.Minute,
			CouponExpiryInterval:   time.Hour,
			PopularityInterval:     time.Hour,
			RevenueReportInterval:  24 * time.Hour,
			RevenueReportLookback:  24 * time.Hour,
			CartPurgeInterval:      0,
		},
	}
}

func newTestScheduler(t *testing.T, f *fakes) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	logger := logging.Component(logging.Discard(), "jobs")
	s, err := NewScheduler(logger, metrics.New(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	tasks := Tasks(jobConfig(), Dependencies{
		FlashSales: f, Orders: f, Coupons: f, Taxonomy: f, Tenants: f, Carts: f, Mailer: f,
		Logger: logger,
		Now:    func() time.Time { return jobNow },
	})
	for _, task := range tasks {
		require.NoError(t, s.Register(task))
	}
	return s, reg
}

func TestTasksDriveServices(t *testing.T) {
	f := &fakes{reportRows: []tenant.RevenueRow{{TenantName: "Cellar Co", Orders: 2, Items: 5, Gross: 12550, PlatformAmount: 1883, TenantAmount: 10667}, {Gross: 100}}}
	s, _ := newTestScheduler(t, f)
	ctx := context.Background()

	require.NoError(t, s.RunNow(ctx, FlashSaleSweep))
	assert.Equal(t, jobNow, f.sweptAt)

	require.NoError(t, s.RunNow(ctx, ExpirePendingOrders))
	assert.Equal(t, 45*time.Minute, f.expiredTTL)

	require.NoError(t, s.RunNow(ctx, DeactivateExpiredCoupons))
	require.NoError(t, s.RunNow(ctx, RecalculatePopularity))
	assert.Equal(t, 1, f.popularity)

	require.NoError(t, s.RunNow(ctx, VendorRevenueReport))
	assert.Equal(t, jobNow.Add(-24*time.Hour), f.reportFrom)
	require.Len(t, f.mailed, 1)
	mail := f.mailed[0]
	assert.Equal(t, "$126.50", mail.TotalGross)
	require.Len(t, mail.Rows, 2)
	assert.Equal(t, "Cellar Co", mail.Rows[0].TenantName)
	assert.Equal(t, "$18.83", mail.Rows[0].PlatformFee)
	assert.Equal(t, "Unknown vendor", mail.Rows[1].TenantName)

	// zero interval disables the job
	assert.Error(t, s.RunNow(ctx, PurgeExpiredCarts))
	assert.True(t, f.purgedAt.IsZero())
}

func TestFailedRunIsRecorded(t *testing.T) {
	f := &fakes{sweepErr: errors.New("db down")}
	s, reg := newTestScheduler(t, f)

	err := s.RunNow(context.Background(), FlashSaleSweep)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "drinksharbour_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPanickingTaskIsRecovered(t *testing.T) {
	s, _ := newTestScheduler(t, &fakes{})
	require.NoError(t, s.Register(Task{Name: "boom", Interval: time.Hour, Run: func(context.Context) error { panic("kaboom") }}))

	err := s.RunNow(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	assert.Error(t, s.Register(Task{Name: "boom", Interval: time.Hour, Run: func(context.Context) error { return nil }}))
}

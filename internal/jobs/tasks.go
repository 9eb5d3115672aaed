// internal/jobs/tasks.go
package jobs

import (
	"context"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/money"
	"github.com/sirupsen/logrus"
)

// Job names, also used as metric labels
const (
	FlashSaleSweep           = "flash_sale_sweep"
	ExpirePendingOrders      = "expire_pending_orders"
	DeactivateExpiredCoupons = "deactivate_expired_coupons"
	RecalculatePopularity    = "recalculate_popularity"
	VendorRevenueReport      = "vendor_revenue_report"
	PurgeExpiredCarts        = "purge_expired_carts"
)

// FlashSaleSweeper moves flash sales between scheduled, active and ended
type FlashSaleSweeper interface {
	SweepStatuses(ctx context.Context, now time.Time) (flashsale.SweepResult, error)
}

// PendingOrderExpirer cancels unpaid orders
type PendingOrderExpirer interface {
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// CouponExpirer deactivates coupons past their end date
type CouponExpirer interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// PopularityCalculator refreshes taxonomy popularity scores
type PopularityCalculator interface {
	RecalculatePopularity(ctx context.Context) error
}

// RevenueReporter aggregates per tenant revenue
type RevenueReporter interface {
	RevenueReport(ctx context.Context, from, to time.Time) (*tenant.RevenueReport, error)
}

// CartPurger removes expired persisted carts
type CartPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ReportMailer sends the revenue report
type ReportMailer interface {
	SendVendorRevenueReport(ctx context.Context, data email.VendorRevenueReportData) error
}

// Dependencies are the services the marketplace jobs drive
type Dependencies struct {
	FlashSales FlashSaleSweeper
	Orders     PendingOrderExpirer
	Coupons    CouponExpirer
	Taxonomy   PopularityCalculator
	Tenants    RevenueReporter
	Carts      CartPurger
	Mailer     ReportMailer
	Logger     *logrus.Entry
	Now        func() time.Time
}

// Tasks builds the marketplace jobs from config
func Tasks(cfg *config.Config, d Dependencies) []Task {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	log := d.Logger

	pendingTTL := cfg.Marketplace.PendingOrderTTL
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	lookback := cfg.Jobs.RevenueReportLookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	currency := cfg.Marketplace.Currency

	return []Task{
		{
			Name:     FlashSaleSweep,
			Interval: cfg.Jobs.FlashSaleSweepInterval,
			Run: func(ctx context.Context) error {
				res, err := d.FlashSales.SweepStatuses(ctx, now())
				if err != nil {
					return err
				}
				if res.Activated > 0 || res.Ended > 0 {
					log.WithFields(logrus.Fields{"job": FlashSaleSweep, "activated": res.Activated, "ended": res.Ended}).Info("flash sale statuses updated")
				}
				return nil
			},
		},
		{
			Name:     ExpirePendingOrders,
			Interval: cfg.Jobs.PendingOrderInterval,
			Run: func(ctx context.Context) error {
				n, err := d.Orders.ExpireStalePending(ctx, pendingTTL)
				if n > 0 {
					log.WithFields(logrus.Fields{"job": ExpirePendingOrders, "expired": n}).Info("stale pending orders cancelled")
				}
				return err
			},
		},
		{
			Name:     DeactivateExpiredCoupons,
			Interval: cfg.Jobs.CouponExpiryInterval,
			Run: func(ctx context.Context) error {
				n, err := d.Coupons.DeactivateExpired(ctx, now())
				if err != nil {
					return err
				}
				if n > 0 {
					log.WithFields(logrus.Fields{"job": DeactivateExpiredCoupons, "deactivated": n}).Info("expired coupons deactivated")
				}
				return nil
			},
		},
		{
			Name:     RecalculatePopularity,
			Interval: cfg.Jobs.PopularityInterval,
			Run:      d.Taxonomy.RecalculatePopularity,
		},
		{
			Name:     PurgeExpiredCarts,
			Interval: cfg.Jobs.CartPurgeInterval,
			Run: func(ctx context.Context) error {
				n, err := d.Carts.PurgeExpired(ctx, now())
				if err != nil {
					return err
				}
				if n > 0 {
					log.WithFields(logrus.Fields{"job": PurgeExpiredCarts, "carts": n}).Info("expired carts purged")
				}
				return nil
			},
		},
		{
			Name:     VendorRevenueReport,
			Interval: cfg.Jobs.RevenueReportInterval,
			Run: func(ctx context.Context) error {
				to := now()
				report, err := d.Tenants.RevenueReport(ctx, to.Add(-lookback), to)
				if err != nil {
					return err
				}
				return d.Mailer.SendVendorRevenueReport(ctx, ReportEmail(report, currency))
			},
		},
	}
}

// ReportEmail converts a revenue report into email template data
func ReportEmail(report *tenant.RevenueReport, currency string) email.VendorRevenueReportData {
	data := email.VendorRevenueReportData{
		From:          report.From.Format("2006-01-02 15:04"),
		To:            report.To.Format("2006-01-02 15:04"),
		TotalGross:    money.Format(report.TotalGross, currency),
		TotalPlatform: money.Format(report.TotalPlatform, currency),
	}
	for _, r := range report.Rows {
		name := r.TenantName
		if name == "" {
			name = "Unknown vendor"
		}
		data.Rows = append(data.Rows, email.VendorRevenueRow{
			TenantName:   name,
			Orders:       r.Orders,
			Units:        r.Items,
			Gross:        money.Format(r.Gross, currency),
			PlatformFee:  money.Format(r.PlatformAmount, currency),
			TenantPayout: money.Format(r.TenantAmount, currency),
		})
	}
	return data
}

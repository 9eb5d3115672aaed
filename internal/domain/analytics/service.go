// internal/domain/analytics/service.go
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/activity"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// excludedStatuses never count toward revenue
var excludedStatuses = []string{"cancelled", "refunded"}

// Service handles analytics business logic
type Service struct {
	db       *gorm.DB
	activity activity.Store
	tenants  *tenant.Service
	now      func() time.Time
}

// NewService creates a new analytics service
func NewService(db *gorm.DB, store activity.Store, tenants *tenant.Service) *Service {
	if store == nil {
		store = activity.NoopStore{}
	}
	return &Service{
		db:       db,
		activity: store,
		tenants:  tenants,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DashboardStats represents overall dashboard statistics. Amounts are in cents.
type DashboardStats struct {
	// Sales metrics
	TotalRevenue    int64 `json:"total_revenue"`
	PlatformRevenue int64 `json:"platform_revenue"`
	RevenueToday    int64 `json:"revenue_today"`
	RevenuePeriod   int64 `json:"revenue_period"`
	AvgOrderValue   int64 `json:"avg_order_value"`

	// Order metrics
	TotalOrders  int64        `json:"total_orders"`
	OrdersToday  int64        `json:"orders_today"`
	OrdersPeriod int64        `json:"orders_period"`
	ByStatus     []StatusData `json:"by_status"`

	// Marketplace metrics
	TotalCustomers int64 `json:"total_customers"`
	ActiveTenants  int64 `json:"active_tenants"`
	ActiveProducts int64 `json:"active_products"`
	LowStockSizes  int64 `json:"low_stock_sizes"`

	DailyRevenue []TimeSeriesData   `json:"daily_revenue"`
	TopProducts  []ProductSalesData `json:"top_products"`
	PeriodDays   int                `json:"period_days"`
}

// TimeSeriesData is one day of revenue
type TimeSeriesData struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
	Count int64  `json:"count"`
}

// ProductSalesData is a product's sales over the period
type ProductSalesData struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	TotalSold   int64  `json:"total_sold"`
	Revenue     int64  `json:"revenue"`
	OrderCount  int64  `json:"order_count"`
}

// StatusData is the order count and value for one status
type StatusData struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Value  int64  `json:"value"`
}

// SearchReport lists the most frequent storefront searches
type SearchReport struct {
	Since time.Time             `json:"since"`
	Terms []activity.SearchTerm `json:"terms"`
}

// GetDashboardStats retrieves marketplace totals plus a daily series for the last days
func (s *Service) GetDashboardStats(ctx context.Context, days int) (*DashboardStats, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))
	db := s.db.WithContext(ctx)

	stats := &DashboardStats{PeriodDays: days}

	// Orders by status, all time
	if err := db.Table("orders").
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS value").
		Where("deleted_at IS NULL").
		Group("status").
		Order("count DESC, status ASC").
		Scan(&stats.ByStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders by status: %w", err)
	}
	for _, st := range stats.ByStatus {
		stats.TotalOrders += st.Count
		if !isExcluded(st.Status) {
			stats.TotalRevenue += st.Value
		}
	}

	revenue := func() *gorm.DB {
		return db.Table("orders").Where("deleted_at IS NULL AND status NOT IN ?", excludedStatuses)
	}

	if err := revenue().Select("COALESCE(SUM(platform_fee_total), 0)").Scan(&stats.PlatformRevenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum platform revenue: %w", err)
	}

	var todayRow, periodRow struct {
		Count int64
		Value int64
	}
	if err := revenue().Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS value").
		Where("created_at >= ?", today).Scan(&todayRow).Error; err != nil {
		return nil, fmt.Errorf("failed to sum today's revenue: %w", err)
	}
	if err := revenue().Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS value").
		Where("created_at >= ?", start).Scan(&periodRow).Error; err != nil {
		return nil, fmt.Errorf("failed to sum period revenue: %w", err)
	}
	stats.OrdersToday, stats.RevenueToday = todayRow.Count, todayRow.Value
	stats.OrdersPeriod, stats.RevenuePeriod = periodRow.Count, periodRow.Value
	if stats.OrdersPeriod > 0 {
		stats.AvgOrderValue = stats.RevenuePeriod / stats.OrdersPeriod
	}

	if err := revenue().
		Select("DATE(created_at) AS date, COALESCE(SUM(total_amount), 0) AS value, COUNT(*) AS count").
		Where("created_at >= ?", start).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&stats.DailyRevenue).Error; err != nil {
		return nil, fmt.Errorf("failed to load daily revenue: %w", err)
	}

	if err := db.Table("order_items AS oi").
		Select("oi.product_id AS product_id, MAX(oi.product_name) AS product_name, SUM(oi.quantity) AS total_sold, SUM(oi.total_price) AS revenue, COUNT(DISTINCT oi.order_id) AS order_count").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.deleted_at IS NULL AND o.status NOT IN ? AND o.created_at >= ?", excludedStatuses, start).
		Group("oi.product_id").
		Order("revenue DESC, oi.product_id ASC").
		Limit(10).
		Scan(&stats.TopProducts).Error; err != nil {
		return nil, fmt.Errorf("failed to load top products: %w", err)
	}

	// Marketplace counts
	counts := []struct {
		dest  *int64
		query *gorm.DB
		what  string
	}{
		{&stats.TotalCustomers, db.Table("users").Where("role = ? AND deleted_at IS NULL", "customer"), "customers"},
		{&stats.ActiveTenants, db.Table("tenants").Where("status = ? AND deleted_at IS NULL", "active"), "tenants"},
		{&stats.ActiveProducts, db.Table("products").Where("status = ? AND deleted_at IS NULL", "active"), "products"},
		{&stats.LowStockSizes, db.Table("sub_product_sizes").Where("is_available = ? AND stock - reserved <= low_stock_threshold", true), "low stock sizes"},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.what, err)
		}
	}

	return stats, nil
}

// TopSearches returns the most frequent normalized search queries over the last days
func (s *Service) TopSearches(ctx context.Context, days, limit int) (*SearchReport, error) {
	if days <= 0 || days > 365 {
		days = 7
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	since := s.now().AddDate(0, 0, -days)
	terms, err := s.activity.TopSearches(ctx, since, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "activity log unavailable")
	}
	if terms == nil {
		terms = []activity.SearchTerm{}
	}
	return &SearchReport{Since: since, Terms: terms}, nil
}

// RevenueReport builds the per tenant report for whole days.
// from and to are YYYY-MM-DD; to is inclusive. Both default to the last 30 days.
func (s *Service) RevenueReport(ctx context.Context, from, to string) (*tenant.RevenueReport, error) {
	now := s.now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	if to != "" {
		d, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeValidation, "to must be formatted YYYY-MM-DD")
		}
		end = d.AddDate(0, 0, 1)
	}

	start := end.AddDate(0, 0, -30)
	if from != "" {
		d, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeValidation, "from must be formatted YYYY-MM-DD")
		}
		start = d
	}

	return s.tenants.RevenueReport(ctx, start, end)
}

func isExcluded(status string) bool {
	for _, st := range excludedStatuses {
		if st == status {
			return true
		}
	}
	return false
}

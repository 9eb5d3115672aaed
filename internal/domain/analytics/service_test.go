package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/activity"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type searchStore struct {
	activity.NoopStore
	terms []activity.SearchTerm
	err   error
	since time.Time
	limit int
}

func (s *searchStore) TopSearches(_ context.Context, since time.Time, limit int) ([]activity.SearchTerm, error) {
	s.since, s.limit = since, limit
	return s.terms, s.err
}

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newAnalytics(t *testing.T, store activity.Store) (*Service, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t, &tenant.Tenant{})
	for _, ddl := range []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, status TEXT, total_amount INTEGER, platform_fee_total INTEGER, created_at DATETIME, deleted_at DATETIME)`,
		`CREATE TABLE order_items (id INTEGER PRIMARY KEY, order_id INTEGER, product_id INTEGER, product_name TEXT, tenant_id INTEGER, quantity INTEGER, total_price INTEGER, platform_amount INTEGER, tenant_amount INTEGER)`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, role TEXT, deleted_at DATETIME)`,
		`CREATE TABLE products (id INTEGER PRIMARY KEY, status TEXT, deleted_at DATETIME)`,
		`CREATE TABLE sub_product_sizes (id INTEGER PRIMARY KEY, stock INTEGER, reserved INTEGER, low_stock_threshold INTEGER, is_available BOOLEAN)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	svc := NewService(db, store, tenant.NewService(db, &config.Config{}))
	svc.now = func() time.Time { return fixedNow }
	return svc, db
}

func TestDashboardStats(t *testing.T) {
	svc, db := newAnalytics(t, nil)
	ctx := context.Background()

	today := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	longAgo := today.AddDate(0, -3, 0)

	require.NoError(t, db.Exec(`INSERT INTO orders (id, status, total_amount, platform_fee_total, created_at) VALUES
		(1, 'delivered', 5000, 500, ?),
		(2, 'pending', 3000, 300, ?),
		(3, 'cancelled', 9000, 900, ?),
		(4, 'delivered', 2000, 200, ?)`, today, yesterday, today, longAgo).Error)
	require.NoError(t, db.Exec(`INSERT INTO order_items (order_id, product_id, product_name, quantity, total_price) VALUES
		(1, 10, 'Rioja Reserva', 2, 5000),
		(2, 11, 'Pale Ale', 3, 3000),
		(3, 10, 'Rioja Reserva', 9, 9000)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO users (role) VALUES ('customer'), ('customer'), ('admin')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO products (status) VALUES ('active'), ('draft')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO sub_product_sizes (stock, reserved, low_stock_threshold, is_available) VALUES (3, 0, 5, 1), (50, 0, 5, 1), (0, 0, 5, 0)`).Error)

	stats, err := svc.GetDashboardStats(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalOrders)
	assert.Equal(t, int64(10000), stats.TotalRevenue)
	assert.Equal(t, int64(1000), stats.PlatformRevenue)
	assert.Equal(t, int64(1), stats.OrdersToday)
	assert.Equal(t, int64(5000), stats.RevenueToday)
	assert.Equal(t, int64(2), stats.OrdersPeriod)
	assert.Equal(t, int64(8000), stats.RevenuePeriod)
	assert.Equal(t, int64(4000), stats.AvgOrderValue)

	require.Len(t, stats.DailyRevenue, 2)
	assert.Equal(t, "2026-05-09", stats.DailyRevenue[0].Date)
	assert.Equal(t, int64(3000), stats.DailyRevenue[0].Value)
	assert.Equal(t, "2026-05-10", stats.DailyRevenue[1].Date)

	require.Len(t, stats.TopProducts, 2)
	assert.Equal(t, "Rioja Reserva", stats.TopProducts[0].ProductName)
	assert.Equal(t, int64(2), stats.TopProducts[0].TotalSold)

	assert.Equal(t, int64(2), stats.TotalCustomers)
	assert.Equal(t, int64(1), stats.ActiveProducts)
	assert.Equal(t, int64(1), stats.LowStockSizes)

	byStatus := map[string]int64{}
	for _, st := range stats.ByStatus {
		byStatus[st.Status] = st.Count
	}
	assert.Equal(t, map[string]int64{"delivered": 2, "pending": 1, "cancelled": 1}, byStatus)
}

func TestTopSearches(t *testing.T) {
	store := &searchStore{terms: []activity.SearchTerm{{Query: "ipa", Count: 12}}}
	svc, _ := newAnalytics(t, store)

	report, err := svc.TopSearches(context.Background(), 0, 500)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(0, 0, -7), report.Since)
	assert.Equal(t, 20, store.limit)
	assert.Equal(t, "ipa", report.Terms[0].Query)

	store.err = errors.New("mongo down")
	_, err = svc.TopSearches(context.Background(), 1, 5)
	assert.True(t, apperrors.Is(err, apperrors.CodeDependency))
}

func TestRevenueReportDateParsing(t *testing.T) {
	svc, _ := newAnalytics(t, nil)
	ctx := context.Background()

	report, err := svc.RevenueReport(ctx, "2026-05-01", "2026-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), report.To)
	assert.Empty(t, report.Rows)

	report, err = svc.RevenueReport(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), report.To)
	assert.Equal(t, time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC), report.From)

	_, err = svc.RevenueReport(ctx, "May 1", "")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

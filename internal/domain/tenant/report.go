// internal/domain/tenant/report.go
package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
)

// RevenueRow is one tenant's share of order revenue over a period, in cents
type RevenueRow struct {
	TenantID       uint   `json:"tenant_id"`
	TenantName     string `json:"tenant_name"`
	Orders         int64  `json:"orders"`
	Items          int64  `json:"items"`
	Gross          int64  `json:"gross"`
	PlatformAmount int64  `json:"platform_amount"`
	TenantAmount   int64  `json:"tenant_amount"`
}

// RevenueReport summarises revenue per tenant for [From, To)
type RevenueReport struct {
	From          time.Time    `json:"from"`
	To            time.Time    `json:"to"`
	Rows          []RevenueRow `json:"rows"`
	TotalGross    int64        `json:"total_gross"`
	TotalPlatform int64        `json:"total_platform"`
	TotalTenant   int64        `json:"total_tenant"`
}

// RevenueReport aggregates order item splits per tenant.
// Cancelled and refunded orders are excluded.
func (s *Service) RevenueReport(ctx context.Context, from, to time.Time) (*RevenueReport, error) {
	if !to.After(from) {
		return nil, apperrors.New(apperrors.CodeValidation, "report end must be after its start")
	}

	var rows []RevenueRow
	err := s.db.WithContext(ctx).Table("order_items AS oi").
		Select(`oi.tenant_id AS tenant_id,
			COALESCE(t.name, '') AS tenant_name,
			COUNT(DISTINCT o.id) AS orders,
			COALESCE(SUM(oi.quantity), 0) AS items,
			COALESCE(SUM(oi.total_price), 0) AS gross,
			COALESCE(SUM(oi.platform_amount), 0) AS platform_amount,
			COALESCE(SUM(oi.tenant_amount), 0) AS tenant_amount`).
		Joins("JOIN orders o ON o.id = oi.order_id").
		Joins("LEFT JOIN tenants t ON t.id = oi.tenant_id").
		Where("o.deleted_at IS NULL AND o.status NOT IN ?", []string{"cancelled", "refunded"}).
		Where("o.created_at >= ? AND o.created_at < ?", from, to).
		Group("oi.tenant_id, t.name").
		Order("gross DESC, oi.tenant_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build revenue report: %w", err)
	}

	report := &RevenueReport{From: from, To: to, Rows: rows}
	if report.Rows == nil {
		report.Rows = []RevenueRow{}
	}
	for _, r := range rows {
		report.TotalGross += r.Gross
		report.TotalPlatform += r.PlatformAmount
		report.TotalTenant += r.TenantAmount
	}
	return report, nil
}

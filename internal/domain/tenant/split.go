package tenant

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RevenueSplit is the division of one order line between platform and tenant, in cents
type RevenueSplit struct {
	Gross          int64 `json:"gross"`
	PlatformAmount int64 `json:"platform_amount"`
	TenantAmount   int64 `json:"tenant_amount"`
}

// Split divides unitPrice*qty between platform and tenant.
// For commission the platform share is rounded half-up and the tenant receives the remainder.
// For markup the tenant's base is rounded half-up and the platform receives the remainder.
// Either way PlatformAmount+TenantAmount equals Gross.
func Split(model RevenueModel, rate float64, unitPrice int64, qty int) (RevenueSplit, error) {
	if unitPrice < 0 || qty < 0 {
		return RevenueSplit{}, fmt.Errorf("price and quantity must not be negative")
	}
	if rate < 0 || rate > 1 {
		return RevenueSplit{}, fmt.Errorf("rate %.4f out of range", rate)
	}

	gross := decimal.NewFromInt(unitPrice).Mul(decimal.NewFromInt(int64(qty)))
	r := decimal.NewFromFloat(rate)

	grossCents := gross.IntPart()

	var platformCents int64
	switch model {
	case RevenueModelCommission, "":
		platformCents = gross.Mul(r).Round(0).IntPart()
	case RevenueModelMarkup:
		// listed = base * (1 + rate), tenant keeps base
		baseCents := gross.Div(decimal.NewFromInt(1).Add(r)).Round(0).IntPart()
		platformCents = grossCents - baseCents
	default:
		return RevenueSplit{}, fmt.Errorf("unknown revenue model %q", model)
	}

	return RevenueSplit{
		Gross:          grossCents,
		PlatformAmount: platformCents,
		TenantAmount:   grossCents - platformCents,
	}, nil
}

// ApplyMarkup returns the listed price for a markup tenant's base price
func ApplyMarkup(basePrice int64, rate float64) int64 {
	return decimal.NewFromInt(basePrice).
		Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(rate))).
		Round(0).
		IntPart()
}

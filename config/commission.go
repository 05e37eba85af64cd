package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RevenueBand maps a monthly revenue range to a referrer commission percentage.
// MinRevenue is inclusive; MaxRevenue is exclusive and nil for the last,
// open-ended band.
type RevenueBand struct {
	MinRevenue decimal.Decimal  `json:"min_revenue"`
	MaxRevenue *decimal.Decimal `json:"max_revenue"`
	Percentage decimal.Decimal  `json:"percentage"`
}

// Matches reports whether the given monthly revenue falls inside this band.
func (b RevenueBand) Matches(revenue decimal.Decimal) bool {
	if revenue.LessThan(b.MinRevenue) {
		return false
	}
	if b.MaxRevenue != nil && revenue.GreaterThanOrEqual(*b.MaxRevenue) {
		return false
	}
	return true
}

// CommissionConfig is the explicit, versioned rule set the evaluator runs
// against. It is passed in rather than read from ambient state so historical
// computations can be reproduced deterministically.
type CommissionConfig struct {
	// Version tags the rule set in entry notes for auditability.
	Version string `json:"version" validate:"required"`

	// ReferrerBands is the progressive rate table for the referrer role,
	// keyed by the referrer's calendar-month revenue aggregate.
	ReferrerBands []RevenueBand `json:"referrer_bands" validate:"required,min=1"`

	// ConsultantPercentage is the flat rate for the consultant role.
	ConsultantPercentage decimal.Decimal `json:"consultant_percentage"`

	// ConsultantMinMonthlyRevenue gates consultant commissions: below this
	// monthly aggregate the consultant earns nothing for the event.
	ConsultantMinMonthlyRevenue decimal.Decimal `json:"consultant_min_monthly_revenue"`
}

// DefaultCommissionConfig returns the rule set the business runs on today:
// referrers earn on a progressive monthly-revenue scale (whole-month
// retroactive, not incremental per tier), consultants earn a flat 3% once
// their month clears R$ 20.000.
func DefaultCommissionConfig() CommissionConfig {
	band := func(min, max, pct string) RevenueBand {
		b := RevenueBand{
			MinRevenue: decimal.RequireFromString(min),
			Percentage: decimal.RequireFromString(pct),
		}
		if max != "" {
			m := decimal.RequireFromString(max)
			b.MaxRevenue = &m
		}
		return b
	}

	return CommissionConfig{
		Version: "2025-10",
		ReferrerBands: []RevenueBand{
			band("0", "20000", "0"),
			band("20000", "30000", "2"),
			band("30000", "40000", "3"),
			band("40000", "50000", "4"),
			band("50000", "60000", "5"),
			band("60000", "80000", "6"),
			band("80000", "", "10"),
		},
		ConsultantPercentage:        decimal.RequireFromString("3"),
		ConsultantMinMonthlyRevenue: decimal.RequireFromString("20000"),
	}
}

// Validate checks structural constraints and band coverage: bands must be
// ordered, non-overlapping, contiguous from zero, and end with an open-ended
// band so every non-negative revenue value resolves to exactly one band.
func (c CommissionConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("commission config invalid: %w", err)
	}

	if c.ConsultantPercentage.IsNegative() || c.ConsultantPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("commission config invalid: consultant percentage %s out of range", c.ConsultantPercentage)
	}
	if c.ConsultantMinMonthlyRevenue.IsNegative() {
		return fmt.Errorf("commission config invalid: consultant minimum monthly revenue is negative")
	}

	prevMax := decimal.Zero
	for i, b := range c.ReferrerBands {
		if b.Percentage.IsNegative() || b.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("commission config invalid: band %d percentage %s out of range", i, b.Percentage)
		}
		if !b.MinRevenue.Equal(prevMax) {
			return fmt.Errorf("commission config invalid: band %d starts at %s, expected %s (bands must be contiguous from 0)", i, b.MinRevenue, prevMax)
		}
		if b.MaxRevenue == nil {
			if i != len(c.ReferrerBands)-1 {
				return fmt.Errorf("commission config invalid: band %d is open-ended but not last", i)
			}
			return nil
		}
		if !b.MaxRevenue.GreaterThan(b.MinRevenue) {
			return fmt.Errorf("commission config invalid: band %d is empty (%s >= %s)", i, b.MinRevenue, b.MaxRevenue)
		}
		prevMax = *b.MaxRevenue
	}

	return fmt.Errorf("commission config invalid: last band must be open-ended to cover all revenue values")
}

// BandFor returns the band matching the given monthly revenue, or false when
// no band matches (only possible on an unvalidated config).
func (c CommissionConfig) BandFor(revenue decimal.Decimal) (RevenueBand, bool) {
	for _, b := range c.ReferrerBands {
		if b.Matches(revenue) {
			return b, true
		}
	}
	return RevenueBand{}, false
}

package businessflow

import (
	"fmt"

	"github.com/credfix/commission-engine/config"
	"github.com/credfix/commission-engine/models"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// RateTable resolves the commission percentage for a role given the
// beneficiary's monthly revenue. It wraps a validated CommissionConfig; an
// unresolvable lookup is a configuration error, never a silent zero.
type RateTable struct {
	cfg config.CommissionConfig
}

// NewRateTable validates the config and wraps it for lookups
func NewRateTable(cfg config.CommissionConfig) (RateTable, error) {
	if len(cfg.ReferrerBands) == 0 {
		return RateTable{}, NewBusinessError(CodeConfigurationError, "Rate table is not configured", ErrRateTableEmpty)
	}
	if err := cfg.Validate(); err != nil {
		return RateTable{}, NewBusinessError(CodeConfigurationError, "Rate table is invalid", err)
	}
	return RateTable{cfg: cfg}, nil
}

// Version returns the rule-set version tag
func (t RateTable) Version() string {
	return t.cfg.Version
}

// ConsultantMinMonthlyRevenue returns the consultant eligibility floor
func (t RateTable) ConsultantMinMonthlyRevenue() decimal.Decimal {
	return t.cfg.ConsultantMinMonthlyRevenue
}

// PercentageFor returns the commission percentage for the role at the given
// monthly revenue: the matching band percentage for referrers, the flat
// configured percentage for consultants.
func (t RateTable) PercentageFor(role models.CommissionRole, monthlyRevenue decimal.Decimal) (decimal.Decimal, error) {
	switch role {
	case models.RoleConsultant:
		return t.cfg.ConsultantPercentage, nil
	case models.RoleReferrer:
		band, ok := t.cfg.BandFor(monthlyRevenue)
		if !ok {
			return decimal.Zero, NewBusinessError(CodeConfigurationError,
				fmt.Sprintf("No revenue band covers monthly revenue %s", monthlyRevenue), ErrNoBandForRevenue)
		}
		return band.Percentage, nil
	default:
		return decimal.Zero, NewBusinessError(CodeConfigurationError,
			fmt.Sprintf("Unknown commission role %q", role), ErrUnknownRoleKind)
	}
}

// Evaluation is the result of a commission computation: the rounded payable
// amount plus the inputs that produced it.
type Evaluation struct {
	Amount      decimal.Decimal
	Percentage  decimal.Decimal
	RevenueUsed decimal.Decimal
}

// CommissionEvaluator applies the rate table to a single (event, role kind)
// pair. It is pure: no storage access, no clock access, fully deterministic
// for given inputs.
type CommissionEvaluator struct {
	rates RateTable
}

// NewCommissionEvaluator constructs an evaluator over a rate table
func NewCommissionEvaluator(rates RateTable) *CommissionEvaluator {
	return &CommissionEvaluator{rates: rates}
}

// Evaluate computes the commission for one role kind of a paid event. A nil
// result with nil error means no commission is due (missing role-holder,
// non-positive amount, consultant below the revenue floor, or a zero-percent
// band); only configuration problems surface as errors.
//
// The amount is rounded half-up to 2 decimal places as the single final step;
// all intermediate arithmetic is exact.
func (e *CommissionEvaluator) Evaluate(event *models.PayableEvent, roleKind models.RoleKind, beneficiaryID *uint, monthlyRevenue decimal.Decimal) (*Evaluation, error) {
	if beneficiaryID == nil {
		return nil, nil
	}
	if !event.Amount.IsPositive() {
		return nil, nil
	}

	role := roleKind.Role()
	if role == models.RoleConsultant && monthlyRevenue.LessThan(e.rates.ConsultantMinMonthlyRevenue()) {
		return nil, nil
	}

	pct, err := e.rates.PercentageFor(role, monthlyRevenue)
	if err != nil {
		return nil, err
	}
	if pct.IsZero() {
		return nil, nil
	}

	return &Evaluation{
		Amount:      event.Amount.Mul(pct).Div(oneHundred).Round(2),
		Percentage:  pct,
		RevenueUsed: monthlyRevenue,
	}, nil
}

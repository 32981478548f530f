// Package escrow decides how a booking's held price is divided. Nothing here
// touches storage; the ledger executes the plans it returns.
package escrow

import (
	"fmt"

	"tutorly/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Commission is amount * ratePercent / 100, rounded half-up to the minor unit.
func Commission(amountCents int64, ratePercent decimal.Decimal) int64 {
	if amountCents <= 0 || ratePercent.Sign() <= 0 {
		return 0
	}
	c := decimal.NewFromInt(amountCents).Mul(ratePercent).Div(hundred).Round(0).IntPart()
	if c > amountCents {
		return amountCents
	}
	return c
}

// Portion is total * ratio rounded half-up to the minor unit.
func Portion(totalCents int64, ratio decimal.Decimal) int64 {
	return decimal.NewFromInt(totalCents).Mul(ratio).Round(0).IntPart()
}

// ValidateRate checks a commission percentage.
func ValidateRate(ratePercent decimal.Decimal) error {
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return domain.Invalid("commission rate %s outside 0..100", ratePercent)
	}
	if ratePercent.Exponent() < -2 {
		return domain.Invalid("commission rate %s has more than two decimals", ratePercent)
	}
	return nil
}

// ParseRatio parses a split ratio in [0, 1], e.g. "0.5".
func ParseRatio(s string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.Invalid("ratio %q", s)
	}
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, domain.Invalid("ratio %s outside 0..1", r)
	}
	return r, nil
}

// Plan is one settlement decision over a booking's held price.
type Plan struct {
	ReleaseCents    int64  `json:"release_cents"` // gross, before commission
	CommissionCents int64  `json:"commission_cents"`
	RefundCents     int64  `json:"refund_cents"`
	NoShow          string `json:"no_show,omitempty"`
	Reason          string `json:"reason"`
}

// TutorNetCents is what the tutor's wallet receives.
func (p Plan) TutorNetCents() int64 { return p.ReleaseCents - p.CommissionCents }

func (p Plan) String() string {
	return fmt.Sprintf("release=%d commission=%d refund=%d no_show=%q (%s)",
		p.ReleaseCents, p.CommissionCents, p.RefundCents, p.NoShow, p.Reason)
}

// ReleaseAll pays the full price to the tutor less commission.
func ReleaseAll(totalCents int64, ratePercent decimal.Decimal, reason string) Plan {
	return Plan{
		ReleaseCents:    totalCents,
		CommissionCents: Commission(totalCents, ratePercent),
		Reason:          reason,
	}
}

// RefundAll returns the full price to the payer. No commission is taken.
func RefundAll(totalCents int64, reason string) Plan {
	return Plan{RefundCents: totalCents, Reason: reason}
}

// Split releases round_half_up(total*ratio) to the tutor, commission on that
// part only, and refunds the remainder.
func Split(totalCents int64, ratePercent decimal.Decimal, ratio decimal.Decimal, reason string) Plan {
	release := Portion(totalCents, ratio)
	return Plan{
		ReleaseCents:    release,
		CommissionCents: Commission(release, ratePercent),
		RefundCents:     totalCents - release,
		Reason:          reason,
	}
}

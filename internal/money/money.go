// Package money wraps shopspring/decimal with the rounding rules used by the
// settlement engine. Every monetary value is rounded to cents after each
// computation step; no binary floats touch amounts.
package money

import "github.com/shopspring/decimal"

// Places is the number of decimal places every stored amount carries.
const Places = 2

var (
	hundred = decimal.NewFromInt(100)

	// Tolerance is the cent-level slack accepted when comparing computed
	// totals (paid + remaining vs total, settled remainder).
	Tolerance = decimal.New(1, -Places)
)

// Round rounds d to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// MustParse parses a literal amount and panics on malformed input.
// Intended for constants and tests.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Percent returns Round(base * pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

// Mul multiplies an amount by an integer quantity and rounds.
func Mul(unit decimal.Decimal, qty int) decimal.Decimal {
	return Round(unit.Mul(decimal.NewFromInt(int64(qty))))
}

// Sum adds amounts; the result is rounded.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round(total)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	return Max(lo, Min(d, hi))
}

// WithinTolerance reports whether |a-b| <= Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// IsSettled reports whether a remaining balance is small enough to close the
// order.
func IsSettled(remaining decimal.Decimal) bool {
	return remaining.LessThanOrEqual(Tolerance)
}

// Share computes the amount owed for payShares out of remainingShares, always
// against the live remainder. Paying every remaining share returns the
// remainder itself so the last payer absorbs the rounding residue.
func Share(remaining decimal.Decimal, remainingShares, payShares int) decimal.Decimal {
	if remainingShares <= 0 || payShares <= 0 {
		return decimal.Zero
	}
	if payShares >= remainingShares {
		return remaining
	}
	per := remaining.Div(decimal.NewFromInt(int64(remainingShares)))
	return Round(per.Mul(decimal.NewFromInt(int64(payShares))))
}

// Prorate returns Round(amount * part / whole). whole must be positive.
func Prorate(amount decimal.Decimal, part, whole int) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	if part >= whole {
		return amount
	}
	return Round(amount.Mul(decimal.NewFromInt(int64(part))).Div(decimal.NewFromInt(int64(whole))))
}

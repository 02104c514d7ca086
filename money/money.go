// Package money holds the integer minor-unit arithmetic for the fund-flow
// engine. Every amount in the system is a whole number of cents; decimals
// appear only where a fee rate multiplies a cent amount, and the result is
// rounded back to cents in exactly one place (Fee).
package money

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in integer minor units. Negative values never occur
// in the fund-flow paths; boundaries reject them before arithmetic runs.
type Cents int64

// DefaultFeePercent is the platform's cut of funded allocations.
var DefaultFeePercent = decimal.NewFromInt(10)

var oneHundred = decimal.NewFromInt(100)

// FeePercent returns the configured platform fee rate in percent.
// PLATFORM_FEE_PERCENT overrides the default; a malformed or negative
// override is ignored.
func FeePercent() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("PLATFORM_FEE_PERCENT"))
	if v == "" {
		return DefaultFeePercent
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() || d.GreaterThan(oneHundred) {
		return DefaultFeePercent
	}
	return d
}

// Fee computes round_half_up(gross × ratePercent / 100). This is the only
// rounding site in the codebase.
func Fee(gross Cents, ratePercent decimal.Decimal) Cents {
	fee := decimal.NewFromInt(int64(gross)).
		Mul(ratePercent).
		Div(oneHundred).
		Round(0) // shopspring rounds half away from zero; amounts are non-negative here
	return Cents(fee.IntPart())
}

// RatePercent returns part/total × 100 clamped to [0,100], rounded to two
// decimal places, and 0 when total is 0.
func RatePercent(part, total Cents) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	rate := decimal.NewFromInt(int64(part)).
		Mul(oneHundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(oneHundred) {
		return oneHundred
	}
	return rate
}

func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

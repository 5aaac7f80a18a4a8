/*
cost.go - Cost-per-day parsing, suggestion, and period cost

PURPOSE:
  Single home for the cost-per-day grammar and the money math built on it.
  Every entry point (enrollment create/edit, reports) goes through these
  functions so parsing semantics never drift between call sites.

GRAMMAR:
  Either a plain decimal number ("5.50") or a product of non-negative
  decimal factors separated by '*' ("0.5*2*3"), composing dose x frequency x
  unit-price style inputs. Any invalid token fails the whole input with a
  validation error; a bad cost string is NEVER silently coerced to 0 and an
  enrollment is never persisted with one.

ROUNDING:
  Results are rounded to 2 decimal places, half up (currency style).

SEE ALSO:
  - report/aggregator.go: sums PeriodCost across enrollments
*/
package quota

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed-period divisors mapping a drug's unit price to a daily cost.
var calcDivisors = map[CalculationMethod]int64{
	CalcDaily:       1,
	CalcWeekly:      7,
	CalcMonthly:     30,
	CalcTwiceYearly: 182,
}

// =============================================================================
// PARSING
// =============================================================================

// NormalizeCostPerDay parses a user-entered cost-per-day expression and
// returns the normalized daily cost rounded to 2 decimal places.
func NormalizeCostPerDay(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, NewValidationError("cost_per_day", "cost expression is empty")
	}

	product := decimal.NewFromInt(1)
	for _, token := range strings.Split(trimmed, "*") {
		token = strings.TrimSpace(token)
		if token == "" {
			return decimal.Zero, NewValidationError("cost_per_day", "empty factor in cost expression")
		}
		factor, err := decimal.NewFromString(token)
		if err != nil {
			return decimal.Zero, NewValidationError("cost_per_day", "invalid number "+token)
		}
		if factor.IsNegative() {
			return decimal.Zero, NewValidationError("cost_per_day", "negative factor "+token)
		}
		product = product.Mul(factor)
	}

	if product.IsNegative() {
		return decimal.Zero, NewValidationError("cost_per_day", "cost cannot be negative")
	}

	// decimal.Round is half-away-from-zero, which is half-up for the
	// non-negative values allowed here.
	return product.Round(2), nil
}

// =============================================================================
// SUGGESTION
// =============================================================================

// SuggestCostPerDay derives a default daily cost from the drug's unit price
// and calculation method. Advisory prefill only: it never overwrites a
// user-entered value. Drugs without a calculation method suggest zero.
func SuggestCostPerDay(drug Drug) decimal.Decimal {
	divisor, ok := calcDivisors[drug.CalculationMethod]
	if !ok {
		return decimal.Zero
	}
	return drug.Price.DivRound(decimal.NewFromInt(divisor), 2)
}

// =============================================================================
// PERIOD COST
// =============================================================================

// PeriodCost returns costPerDay times the number of days the enrollment's
// prescription span overlaps the window, counting days inclusively. An
// enrollment with no end date runs open-ended to the as-of date. No overlap
// yields zero.
func PeriodCost(costPerDay decimal.Decimal, start Date, end *Date, window DateRange, asOf Date) decimal.Decimal {
	effectiveEnd := asOf
	if end != nil {
		effectiveEnd = *end
	}
	if effectiveEnd.Before(start) {
		return decimal.Zero
	}

	overlap, ok := (DateRange{Start: start, End: effectiveEnd}).Intersect(window)
	if !ok {
		return decimal.Zero
	}
	return costPerDay.Mul(decimal.NewFromInt(int64(overlap.Days())))
}

/*
compliance.go - Refill recency classification

PURPOSE:
  Classifies each enrollment's refill recency into current / due-soon /
  overdue, and flags potential defaulters: active, non-SPUB enrollments whose
  last refill was more than 180 days before the as-of date.

CUT POINTS:
  > 180 days  -> potential defaulter, red tag
  > 90 days   -> orange tag, not yet a defaulter
  <= 90 days  -> green tag
  never refilled -> "Never" tag, flagged for attention but NOT a defaulter

EXEMPTIONS:
  - Inactive enrollments are never defaulters.
  - SPUB enrollments (supply at another facility) are never defaulters:
    their refills happen elsewhere.

This is derived state. It depends on the as-of date and MUST be re-evaluated
on every read; nothing here is ever persisted.
*/
package quota

// =============================================================================
// REFILL TAGS
// =============================================================================

// RefillTag is the display bucket for last-refill recency.
type RefillTag string

const (
	RefillGreen  RefillTag = "green"  // refilled within 90 days
	RefillOrange RefillTag = "orange" // 91-180 days ago
	RefillRed    RefillTag = "red"    // more than 180 days ago
	RefillNever  RefillTag = "never"  // no refill recorded
)

// Defaulter threshold in days. More than six months without a refill.
const defaulterThresholdDays = 180

// Due-soon threshold in days.
const dueSoonThresholdDays = 90

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Compliance is the derived refill status of one enrollment as of a date.
type Compliance struct {
	PotentialDefaulter bool
	DaysSinceRefill    *int // nil when never refilled
	Tag                RefillTag
}

// Classify evaluates an enrollment's refill recency as of the given date.
func Classify(e Enrollment, asOf Date) Compliance {
	if e.LatestRefillDate == nil {
		// Never refilled: flagged for attention, distinct from defaulter.
		return Compliance{Tag: RefillNever}
	}

	days := DaysBetween(*e.LatestRefillDate, asOf)
	c := Compliance{DaysSinceRefill: &days}

	switch {
	case days > defaulterThresholdDays:
		c.Tag = RefillRed
	case days > dueSoonThresholdDays:
		c.Tag = RefillOrange
	default:
		c.Tag = RefillGreen
	}

	// Defaulter status requires an active, non-exempt enrollment on top of
	// the overdue refill.
	c.PotentialDefaulter = e.IsActive && !e.SPUB && days > defaulterThresholdDays
	return c
}

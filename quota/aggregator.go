/*
aggregator.go - Quota utilization computation

PURPOSE:
  Computes, per drug, the count of currently-active enrollments and the
  derived available-slot count and utilization percentage. Pure function of
  the current enrollment set; nothing here is stored.

THRESHOLDS:
  Two DISTINCT tier policies exist and must not be unified:
    ListUtilizationPolicy   (drug list view):  >=100 FULL, >=80 HIGH, >=50 MEDIUM, else LOW
    ReportUtilizationPolicy (report/prescriber view): >=90 FULL, >=75 HIGH, else LOW
  The divergence is deliberate carry-over behavior; which one should win is
  an open product question, so each call site names its policy explicitly.

SEE ALSO:
  - report/aggregator.go: quota utilization report rows
*/
package quota

import "math"

// =============================================================================
// QUOTA STATUS
// =============================================================================

// Tier buckets a utilization percentage for display.
type Tier string

const (
	TierFull   Tier = "FULL"
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
)

// QuotaStatus is the derived quota state of a drug.
// Invariant: Active + Available == QuotaNumber whenever Active <= QuotaNumber.
// Available may be negative when over-enrolled; that is tolerated, never an
// error.
type QuotaStatus struct {
	DrugID         DrugID
	QuotaNumber    int
	Active         int
	Available      int
	UtilizationPct int
}

// ComputeQuotaStatus derives the live quota state for a drug from its
// enrollment set. Only enrollments with IsActive and a matching DrugID are
// counted; the caller may pass an unfiltered slice.
func ComputeQuotaStatus(drug Drug, enrollments []Enrollment) QuotaStatus {
	active := 0
	for _, e := range enrollments {
		if e.DrugID == drug.ID && e.IsActive {
			active++
		}
	}
	return quotaStatusFor(drug, active)
}

// QuotaStatusFromCount derives the quota state from a pre-aggregated active
// count (e.g. a SQL COUNT).
func QuotaStatusFromCount(drug Drug, activeCount int) QuotaStatus {
	return quotaStatusFor(drug, activeCount)
}

func quotaStatusFor(drug Drug, active int) QuotaStatus {
	pct := 0
	if drug.QuotaNumber > 0 {
		pct = int(math.Round(100 * float64(active) / float64(drug.QuotaNumber)))
	}
	return QuotaStatus{
		DrugID:         drug.ID,
		QuotaNumber:    drug.QuotaNumber,
		Active:         active,
		Available:      drug.QuotaNumber - active,
		UtilizationPct: pct,
	}
}

// =============================================================================
// UTILIZATION POLICIES - Two independent threshold sets, kept separate
// =============================================================================

// UtilizationPolicy maps a utilization percentage to a display tier.
// Thresholds are inclusive lower bounds. A zero Medium threshold means the
// policy has no MEDIUM tier and falls straight through to LOW.
type UtilizationPolicy struct {
	Full   int
	High   int
	Medium int
}

// ListUtilizationPolicy is the drug-list-view threshold set.
var ListUtilizationPolicy = UtilizationPolicy{Full: 100, High: 80, Medium: 50}

// ReportUtilizationPolicy is the report/prescriber-view threshold set.
// Intentionally different from the list view; do not merge.
var ReportUtilizationPolicy = UtilizationPolicy{Full: 90, High: 75}

// Tier classifies a utilization percentage under this policy.
func (p UtilizationPolicy) Tier(utilizationPct int) Tier {
	switch {
	case utilizationPct >= p.Full:
		return TierFull
	case utilizationPct >= p.High:
		return TierHigh
	case p.Medium > 0 && utilizationPct >= p.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

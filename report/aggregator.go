/*
Package report composes the accounting engine into cross-cutting views.

PURPOSE:
  Builds the cost analysis, quota utilization, defaulter, yearly cost, and
  dashboard views consumed by the reporting screens and the spreadsheet
  exporter. Every call re-reads current state through quota.Reader and
  computes derived values fresh - no aggregate is cached between calls.

FILTERING:
  All entry points accept an optional department filter; nil means
  pass-through ("all"), never a literal value to match. Date windows default
  to the as-of calendar year.

ERROR POSTURE:
  A missing/orphaned reference skips that row; it never aborts the report.
  Guarded ratios (average with zero denominator) yield zero, never an error.

SEE ALSO:
  - quota/aggregator.go: quota status and tier policies
  - quota/compliance.go: defaulter classification
  - quota/cost.go: period cost math
*/
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/quota-engine/quota"
)

// Aggregator builds report views from the persistence collaborator.
type Aggregator struct {
	reader quota.Reader
}

// New creates an aggregator over the given reader.
func New(reader quota.Reader) *Aggregator {
	return &Aggregator{reader: reader}
}

// Filters narrows report scope. Zero values are pass-through.
type Filters struct {
	DepartmentID *quota.DepartmentID
	DateRange    *quota.DateRange // cost windows; nil = as-of calendar year
}

func (f Filters) window(asOf quota.Date) quota.DateRange {
	if f.DateRange != nil {
		return *f.DateRange
	}
	return quota.CalendarYear(asOf.Year())
}

// =============================================================================
// COST ANALYSIS - per (department, drug), manual-cost enrollments only
// =============================================================================

// CostAnalysisRow is one (department, drug) grouping. Only active
// enrollments with a manually entered cost participate; groupings with no
// such enrollment are omitted entirely.
type CostAnalysisRow struct {
	DepartmentName    string          `json:"department_name"`
	DrugName          string          `json:"drug_name"`
	PatientCount      int             `json:"patient_count"`
	TotalAnnualCost   decimal.Decimal `json:"total_annual_cost"`
	AvgCostPerPatient decimal.Decimal `json:"avg_cost_per_patient"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

// CostAnalysis aggregates enrollment costs per (department, drug) over the
// filter window.
func (a *Aggregator) CostAnalysis(ctx context.Context, filters Filters) ([]CostAnalysisRow, error) {
	asOf := quota.AsOfDate(ctx)
	window := filters.window(asOf)

	drugs, err := a.reader.ListDrugs(ctx, quota.DrugFilter{DepartmentID: filters.DepartmentID})
	if err != nil {
		return nil, err
	}
	enrollments, err := a.reader.ListEnrollments(ctx, quota.EnrollmentFilter{
		DepartmentID: filters.DepartmentID,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, err
	}

	byDrug := make(map[quota.DrugID][]quota.Enrollment)
	for _, e := range enrollments {
		byDrug[e.DrugID] = append(byDrug[e.DrugID], e)
	}

	var out []CostAnalysisRow
	for _, drug := range drugs {
		count := 0
		total := decimal.Zero
		for _, e := range byDrug[drug.ID] {
			// Enrollments without a manual cost are excluded, not zero.
			if !e.HasManualCost() {
				continue
			}
			count++
			total = total.Add(quota.PeriodCost(*e.CostPerDay, e.PrescriptionStartDate, e.PrescriptionEndDate, window, asOf))
		}
		if count == 0 {
			continue
		}
		out = append(out, CostAnalysisRow{
			DepartmentName:    drug.DepartmentName,
			DrugName:          drug.Name,
			PatientCount:      count,
			TotalAnnualCost:   total.Round(2),
			AvgCostPerPatient: total.DivRound(decimal.NewFromInt(int64(count)), 2),
			UnitPrice:         drug.Price,
		})
	}
	return out, nil
}

// =============================================================================
// QUOTA UTILIZATION - per drug, report-side thresholds
// =============================================================================

// QuotaUtilizationRow is the live quota state of one drug. The status tier
// uses ReportUtilizationPolicy (90/75), which deliberately differs from the
// drug list view's policy.
type QuotaUtilizationRow struct {
	DepartmentName string     `json:"department_name"`
	DrugName       string     `json:"drug_name"`
	QuotaNumber    int        `json:"quota_number"`
	ActivePatients int        `json:"active_patients"`
	AvailableSlots int        `json:"available_slots"`
	UtilizationPct int        `json:"utilization_percentage"`
	Status         quota.Tier `json:"status"`
}

// QuotaUtilization reports the live quota state of every drug in scope.
func (a *Aggregator) QuotaUtilization(ctx context.Context, filters Filters) ([]QuotaUtilizationRow, error) {
	drugs, err := a.reader.ListDrugs(ctx, quota.DrugFilter{DepartmentID: filters.DepartmentID})
	if err != nil {
		return nil, err
	}
	enrollments, err := a.reader.ListEnrollments(ctx, quota.EnrollmentFilter{
		DepartmentID: filters.DepartmentID,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, err
	}

	activeCounts := make(map[quota.DrugID]int)
	for _, e := range enrollments {
		activeCounts[e.DrugID]++
	}

	rows := make([]QuotaUtilizationRow, 0, len(drugs))
	for _, drug := range drugs {
		status := quota.QuotaStatusFromCount(drug, activeCounts[drug.ID])
		rows = append(rows, QuotaUtilizationRow{
			DepartmentName: drug.DepartmentName,
			DrugName:       drug.Name,
			QuotaNumber:    status.QuotaNumber,
			ActivePatients: status.Active,
			AvailableSlots: status.Available,
			UtilizationPct: status.UtilizationPct,
			Status:         quota.ReportUtilizationPolicy.Tier(status.UtilizationPct),
		})
	}
	return rows, nil
}

// =============================================================================
// DEFAULTERS - active, non-SPUB, refill overdue by more than 180 days
// =============================================================================

// DefaulterRow is one flagged enrollment.
type DefaulterRow struct {
	EnrollmentID    quota.EnrollmentID `json:"enrollment_id"`
	DepartmentName  string             `json:"department_name"`
	DrugName        string             `json:"drug_name"`
	PatientName     string             `json:"patient_name"`
	ICNumber        string             `json:"ic_number"`
	LastRefillDate  string             `json:"latest_refill_date"`
	DaysSinceRefill int                `json:"days_since_refill"`
	SPUB            bool               `json:"spub"`
}

// Defaulters lists enrollments the compliance classifier flags as potential
// defaulters, as of the injected date.
func (a *Aggregator) Defaulters(ctx context.Context, filters Filters) ([]DefaulterRow, error) {
	asOf := quota.AsOfDate(ctx)

	enrollments, err := a.reader.ListEnrollments(ctx, quota.EnrollmentFilter{
		DepartmentID: filters.DepartmentID,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, err
	}

	var rows []DefaulterRow
	for _, e := range enrollments {
		c := quota.Classify(e, asOf)
		if !c.PotentialDefaulter {
			continue
		}
		rows = append(rows, DefaulterRow{
			EnrollmentID:    e.ID,
			DepartmentName:  e.DepartmentName,
			DrugName:        e.DrugName,
			PatientName:     e.PatientName,
			ICNumber:        e.ICNumber,
			LastRefillDate:  e.LatestRefillDate.String(),
			DaysSinceRefill: *c.DaysSinceRefill,
			SPUB:            e.SPUB,
		})
	}

	// Most overdue first.
	sort.Slice(rows, func(i, j int) bool { return rows[i].DaysSinceRefill > rows[j].DaysSinceRefill })
	return rows, nil
}

// =============================================================================
// YEARLY COSTS - calendar-year clipped, active + manual cost only in totals
// =============================================================================

// YearlyCostSummary is the headline numbers of the yearly report.
// TotalEnrollments counts every matching enrollment regardless of active
// state; TotalCost and AverageCostPerEnrollment cover only active
// enrollments with a manual cost.
type YearlyCostSummary struct {
	TotalCost                decimal.Decimal `json:"totalCost"`
	TotalEnrollments         int             `json:"totalEnrollments"`
	ActiveEnrollments        int             `json:"activeEnrollments"`
	AverageCostPerEnrollment decimal.Decimal `json:"averageCostPerEnrollment"`
}

// DepartmentTotal is one department's share of the yearly cost.
type DepartmentTotal struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// YearlyCostRow is one enrollment's line in the yearly report. Enrollments
// without a contributing cost show zero here while staying excluded from
// the totals.
type YearlyCostRow struct {
	PatientName    string           `json:"patient_name"`
	ICNumber       string           `json:"ic_number"`
	DepartmentName string           `json:"department_name"`
	DrugName       string           `json:"drug_name"`
	CostPerDay     *decimal.Decimal `json:"cost_per_day"`
	YearlyCost     decimal.Decimal  `json:"calculated_yearly_cost"`
	IsActive       bool             `json:"is_active"`
}

// YearlyCostReport is the full yearly view.
type YearlyCostReport struct {
	Summary          YearlyCostSummary          `json:"summary"`
	DepartmentTotals map[string]DepartmentTotal `json:"departmentTotals"`
	Enrollments      []YearlyCostRow            `json:"enrollments"`
}

// YearlyCosts aggregates enrollment costs clipped to the given calendar year.
func (a *Aggregator) YearlyCosts(ctx context.Context, year int, departmentID *quota.DepartmentID) (*YearlyCostReport, error) {
	asOf := quota.AsOfDate(ctx)
	window := quota.CalendarYear(year)

	enrollments, err := a.reader.ListEnrollments(ctx, quota.EnrollmentFilter{DepartmentID: departmentID})
	if err != nil {
		return nil, err
	}

	report := &YearlyCostReport{
		DepartmentTotals: make(map[string]DepartmentTotal),
		Enrollments:      make([]YearlyCostRow, 0, len(enrollments)),
	}
	totalCost := decimal.Zero
	active := 0

	for _, e := range enrollments {
		report.Summary.TotalEnrollments++
		if e.IsActive {
			active++
		}

		rowCost := decimal.Zero
		if e.IsActive && e.HasManualCost() {
			rowCost = quota.PeriodCost(*e.CostPerDay, e.PrescriptionStartDate, e.PrescriptionEndDate, window, asOf)
			totalCost = totalCost.Add(rowCost)

			dt := report.DepartmentTotals[e.DepartmentName]
			dt.Total = dt.Total.Add(rowCost).Round(2)
			dt.Count++
			report.DepartmentTotals[e.DepartmentName] = dt
		}

		report.Enrollments = append(report.Enrollments, YearlyCostRow{
			PatientName:    e.PatientName,
			ICNumber:       e.ICNumber,
			DepartmentName: e.DepartmentName,
			DrugName:       e.DrugName,
			CostPerDay:     e.CostPerDay,
			YearlyCost:     rowCost.Round(2),
			IsActive:       e.IsActive,
		})
	}

	report.Summary.TotalCost = totalCost.Round(2)
	report.Summary.ActiveEnrollments = active
	// Guarded: no active enrollments means average zero, not an error.
	if active > 0 {
		report.Summary.AverageCostPerEnrollment = totalCost.DivRound(decimal.NewFromInt(int64(active)), 2)
	} else {
		report.Summary.AverageCostPerEnrollment = decimal.Zero
	}
	return report, nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard is the headline statistics card.
type Dashboard struct {
	TotalDepartments    int `json:"total_departments"`
	TotalDrugs          int `json:"total_drugs"`
	ActiveEnrollments   int `json:"active_enrollments"`
	PotentialDefaulters int `json:"potential_defaulters"`
}

// BuildDashboard computes the dashboard statistics as of the injected date.
func (a *Aggregator) BuildDashboard(ctx context.Context) (*Dashboard, error) {
	departments, err := a.reader.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	drugs, err := a.reader.ListDrugs(ctx, quota.DrugFilter{})
	if err != nil {
		return nil, err
	}
	enrollments, err := a.reader.ListEnrollments(ctx, quota.EnrollmentFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	asOf := quota.AsOfDate(ctx)
	defaulters := 0
	for _, e := range enrollments {
		if quota.Classify(e, asOf).PotentialDefaulter {
			defaulters++
		}
	}

	return &Dashboard{
		TotalDepartments:    len(departments),
		TotalDrugs:          len(drugs),
		ActiveEnrollments:   len(enrollments),
		PotentialDefaulters: defaulters,
	}, nil
}

package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/warp/quota-engine/quota"
)

// =============================================================================
// EXPORT - Tabular rows for the spreadsheet collaborator
// =============================================================================
// The exporter owns serialization; this layer only shapes already-computed
// report data into a header row plus string cells.

// ExportType selects which report feeds the export.
type ExportType string

const (
	ExportCostAnalysis     ExportType = "cost_analysis"
	ExportQuotaUtilization ExportType = "quota_utilization"
	ExportDefaulters       ExportType = "defaulters"
	ExportYearlyCosts      ExportType = "yearly_costs"
	ExportAllEnrollments   ExportType = "all_enrollments"
)

func (t ExportType) Valid() bool {
	switch t {
	case ExportCostAnalysis, ExportQuotaUtilization, ExportDefaulters,
		ExportYearlyCosts, ExportAllEnrollments:
		return true
	}
	return false
}

// Table is a header row plus data rows, ready for the exporter.
type Table struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ExportRows builds the tabular form of the named report.
func (a *Aggregator) ExportRows(ctx context.Context, reportType ExportType, filters Filters) (*Table, error) {
	switch reportType {
	case ExportCostAnalysis:
		return a.exportCostAnalysis(ctx, filters)
	case ExportQuotaUtilization:
		return a.exportQuotaUtilization(ctx, filters)
	case ExportDefaulters:
		return a.exportDefaulters(ctx, filters)
	case ExportYearlyCosts:
		return a.exportYearlyCosts(ctx, filters)
	case ExportAllEnrollments:
		return a.exportAllEnrollments(ctx, filters)
	default:
		return nil, quota.NewValidationError("report_type", fmt.Sprintf("unknown report type %q", reportType))
	}
}

func (a *Aggregator) exportCostAnalysis(ctx context.Context, filters Filters) (*Table, error) {
	rows, err := a.CostAnalysis(ctx, filters)
	if err != nil {
		return nil, err
	}
	table := &Table{
		Name:   "Cost Analysis",
		Header: []string{"Department", "Drug", "Patients", "Total Annual Cost", "Avg Cost / Patient", "Unit Price"},
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			r.DepartmentName,
			r.DrugName,
			strconv.Itoa(r.PatientCount),
			r.TotalAnnualCost.StringFixed(2),
			r.AvgCostPerPatient.StringFixed(2),
			r.UnitPrice.StringFixed(2),
		})
	}
	return table, nil
}

func (a *Aggregator) exportQuotaUtilization(ctx context.Context, filters Filters) (*Table, error) {
	rows, err := a.QuotaUtilization(ctx, filters)
	if err != nil {
		return nil, err
	}
	table := &Table{
		Name:   "Quota Utilization",
		Header: []string{"Department", "Drug", "Quota", "Active Patients", "Available Slots", "Utilization %", "Status"},
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			r.DepartmentName,
			r.DrugName,
			strconv.Itoa(r.QuotaNumber),
			strconv.Itoa(r.ActivePatients),
			strconv.Itoa(r.AvailableSlots),
			strconv.Itoa(r.UtilizationPct),
			string(r.Status),
		})
	}
	return table, nil
}

func (a *Aggregator) exportDefaulters(ctx context.Context, filters Filters) (*Table, error) {
	rows, err := a.Defaulters(ctx, filters)
	if err != nil {
		return nil, err
	}
	table := &Table{
		Name:   "Potential Defaulters",
		Header: []string{"Patient", "IC Number", "Department", "Drug", "Last Refill", "Days Since Refill"},
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			r.PatientName,
			r.ICNumber,
			r.DepartmentName,
			r.DrugName,
			r.LastRefillDate,
			strconv.Itoa(r.DaysSinceRefill),
		})
	}
	return table, nil
}

func (a *Aggregator) exportYearlyCosts(ctx context.Context, filters Filters) (*Table, error) {
	asOf := quota.AsOfDate(ctx)
	year := asOf.Year()
	if filters.DateRange != nil {
		year = filters.DateRange.Start.Year()
	}
	rep, err := a.YearlyCosts(ctx, year, filters.DepartmentID)
	if err != nil {
		return nil, err
	}
	table := &Table{
		Name:   fmt.Sprintf("Yearly Costs %d", year),
		Header: []string{"Patient", "IC Number", "Department", "Drug", "Cost / Day", "Yearly Cost", "Active"},
	}
	for _, r := range rep.Enrollments {
		costPerDay := ""
		if r.CostPerDay != nil {
			costPerDay = r.CostPerDay.StringFixed(2)
		}
		table.Rows = append(table.Rows, []string{
			r.PatientName,
			r.ICNumber,
			r.DepartmentName,
			r.DrugName,
			costPerDay,
			r.YearlyCost.StringFixed(2),
			activeLabel(r.IsActive),
		})
	}
	return table, nil
}

func (a *Aggregator) exportAllEnrollments(ctx context.Context, filters Filters) (*Table, error) {
	asOf := quota.AsOfDate(ctx)
	enrollments, err := a.reader.ListEnrollments(ctx, quota.EnrollmentFilter{DepartmentID: filters.DepartmentID})
	if err != nil {
		return nil, err
	}
	table := &Table{
		Name: "All Enrollments",
		Header: []string{
			"Patient", "IC Number", "Department", "Drug", "Dose / Day",
			"Start Date", "End Date", "Last Refill", "SPUB", "Active", "Cost / Day",
		},
	}
	for _, e := range enrollments {
		c := quota.Classify(e, asOf)
		lastRefill := "Never"
		if c.Tag != quota.RefillNever {
			lastRefill = e.LatestRefillDate.String()
		}
		endDate := ""
		if e.PrescriptionEndDate != nil {
			endDate = e.PrescriptionEndDate.String()
		}
		costPerDay := ""
		if e.CostPerDay != nil {
			costPerDay = e.CostPerDay.StringFixed(2)
		}
		table.Rows = append(table.Rows, []string{
			e.PatientName,
			e.ICNumber,
			e.DepartmentName,
			e.DrugName,
			e.DosePerDay,
			e.PrescriptionStartDate.String(),
			endDate,
			lastRefill,
			yesNo(e.SPUB),
			activeLabel(e.IsActive),
			costPerDay,
		})
	}
	return table, nil
}

func activeLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

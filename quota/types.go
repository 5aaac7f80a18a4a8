/*
Package quota provides the core enrollment and quota accounting engine.

PURPOSE:
  This package contains the domain types and pure computation for managing
  hospital quota drugs: per-drug quota utilization, refill compliance
  classification, and cost-per-day normalization. Persistence and transport
  are external collaborators; everything here is a pure function of the
  records handed to it plus an explicit as-of date.

KEY CONCEPTS IN THIS FILE (types.go):
  - Department: owns drugs
  - Drug: carries a quota ceiling and a per-unit price
  - Patient: identified by IC number (may be a passport string)
  - Enrollment: links a patient to a drug; only active enrollments count
    toward the drug's quota

DESIGN PRINCIPLES:
  1. No stored derivations: utilization, defaulter status, and costs are
     recomputed on every read from current records.
  2. Precision: money uses decimal.Decimal, never float64.
  3. Type Safety: distinct integer ID types per entity.

SEE ALSO:
  - aggregator.go: quota utilization computation
  - compliance.go: refill recency classification
  - cost.go: cost-per-day parsing and period cost
  - store.go: persistence collaborator contracts
*/
package quota

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DepartmentID int64
type DrugID int64
type PatientID int64
type EnrollmentID int64

// =============================================================================
// CALCULATION METHOD - How a drug's unit price maps to a daily cost
// =============================================================================

type CalculationMethod string

const (
	CalcDaily       CalculationMethod = "daily"
	CalcWeekly      CalculationMethod = "weekly"
	CalcMonthly     CalculationMethod = "monthly"
	CalcTwiceYearly CalculationMethod = "twice_yearly"
)

// Valid reports whether m is one of the known methods. The empty string is
// allowed: price-to-cost suggestion is optional per drug.
func (m CalculationMethod) Valid() bool {
	switch m {
	case "", CalcDaily, CalcWeekly, CalcMonthly, CalcTwiceYearly:
		return true
	}
	return false
}

// =============================================================================
// ENTITIES
// =============================================================================

// Department owns zero or more drugs.
type Department struct {
	ID   DepartmentID
	Name string
}

// Drug is a quota-controlled medication.
// Invariant: QuotaNumber >= 0 (enforced at the store).
type Drug struct {
	ID                DrugID
	Name              string
	DepartmentID      DepartmentID
	DepartmentName    string // joined for display; empty when not loaded
	QuotaNumber       int
	Price             decimal.Decimal
	CalculationMethod CalculationMethod
	Remarks           string
}

// Patient is identified by an IC number, which may be non-numeric for
// passport holders. Names are normalized to uppercase on write.
type Patient struct {
	ID        PatientID
	Name      string
	ICNumber  string
	CreatedAt Date
}

// Enrollment links a patient to a quota drug. Only active enrollments count
// toward the drug's quota; deactivation (not deletion) is the preferred
// retirement path so history survives for yearly cost reporting.
type Enrollment struct {
	ID        EnrollmentID
	PatientID PatientID
	DrugID    DrugID

	DosePerDay            string
	PrescriptionStartDate Date
	PrescriptionEndDate   *Date
	LatestRefillDate      *Date
	SPUB                  bool // supply at another facility; exempt from defaulter logic
	IsActive              bool
	CostPerDay            *decimal.Decimal // manually entered; nil means no manual cost
	Remarks               string

	// Joined display fields; populated by list queries, empty otherwise.
	PatientName    string
	ICNumber       string
	DrugName       string
	DepartmentID   DepartmentID
	DepartmentName string
}

// Duration returns the prescription length in whole days, or nil when the
// end date is unset. Kept consistent with the end date bidirectionally; see
// schedule.go.
func (e Enrollment) Duration() *int {
	if e.PrescriptionEndDate == nil {
		return nil
	}
	d := DaysBetween(e.PrescriptionStartDate, *e.PrescriptionEndDate)
	return &d
}

// HasManualCost reports whether a cost-per-day was entered for this
// enrollment. Enrollments without one are EXCLUDED from cost totals,
// not treated as zero.
func (e Enrollment) HasManualCost() bool {
	return e.CostPerDay != nil
}

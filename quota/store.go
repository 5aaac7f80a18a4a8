/*
store.go - Persistence collaborator contracts

PURPOSE:
  Defines the interface between the accounting engine and the relational
  store. The engine is synchronous and request-scoped: every report or query
  re-reads current state through Reader and computes derived values fresh;
  no aggregate is cached between calls.

INVARIANT OWNERSHIP:
  The at-most-one-active-enrollment-per-(patient, drug) invariant is owned by
  the store, via a uniqueness constraint, NOT by an application pre-check.
  Implementations must surface that constraint violation as ErrConflict.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (partial unique index)

SEE ALSO:
  - store/sqlite/sqlite.go: concrete implementation
  - report/aggregator.go: consumes Reader
*/
package quota

import (
	"context"
	"strconv"
	"strings"
)

// =============================================================================
// FILTERS
// =============================================================================

// DrugFilter narrows drug listings. A nil DepartmentID is pass-through.
type DrugFilter struct {
	DepartmentID *DepartmentID
}

// EnrollmentFilter narrows enrollment listings. Nil fields are pass-through.
type EnrollmentFilter struct {
	DrugID       *DrugID
	PatientID    *PatientID
	DepartmentID *DepartmentID
	ActiveOnly   bool
	From         *Date // prescription start on/after
	To           *Date // prescription start on/before
}

// ParseDepartmentFilter interprets the department_id query value. Empty and
// "all" mean no filter and must never be matched literally.
func ParseDepartmentFilter(value string) (*DepartmentID, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "all" {
		return nil, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, NewValidationError("department_id", "must be an id or \"all\"")
	}
	id := DepartmentID(n)
	return &id, nil
}

// =============================================================================
// READER - request-scoped reads, no caching
// =============================================================================

type Reader interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id DepartmentID) (Department, error)

	ListDrugs(ctx context.Context, filter DrugFilter) ([]Drug, error)
	GetDrug(ctx context.Context, id DrugID) (Drug, error)

	// ListPatients matches the search term against name and IC number;
	// empty term lists all.
	ListPatients(ctx context.Context, searchTerm string) ([]Patient, error)
	GetPatient(ctx context.Context, id PatientID) (Patient, error)

	// ListEnrollments returns rows joined with patient, drug, and department
	// display fields.
	ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
	GetEnrollment(ctx context.Context, id EnrollmentID) (Enrollment, error)
}

// =============================================================================
// WRITER
// =============================================================================

type Writer interface {
	CreateDepartment(ctx context.Context, name string) (Department, error)
	UpdateDepartment(ctx context.Context, id DepartmentID, name string) (Department, error)
	// DeleteDepartment cascades to the department's drugs and their
	// enrollments.
	DeleteDepartment(ctx context.Context, id DepartmentID) error

	CreateDrug(ctx context.Context, in DrugInput) (Drug, error)
	UpdateDrug(ctx context.Context, id DrugID, in DrugInput) (Drug, error)
	DeleteDrug(ctx context.Context, id DrugID) error

	CreatePatient(ctx context.Context, in PatientInput) (Patient, error)
	UpdatePatient(ctx context.Context, id PatientID, in PatientInput) (Patient, error)
	DeletePatient(ctx context.Context, id PatientID) error

	// CreateEnrollment returns ErrConflict when an active enrollment for the
	// same (patient, drug) pair already exists.
	CreateEnrollment(ctx context.Context, in EnrollmentInput) (Enrollment, error)
	UpdateEnrollment(ctx context.Context, id EnrollmentID, in EnrollmentInput) (Enrollment, error)
	PatchRefillDate(ctx context.Context, id EnrollmentID, refillDate Date) (Enrollment, error)
	// DeactivateEnrollment is the preferred retirement path: history survives
	// for yearly cost reporting.
	DeactivateEnrollment(ctx context.Context, id EnrollmentID) (Enrollment, error)
	DeleteEnrollment(ctx context.Context, id EnrollmentID) error
}

// Store combines reads and writes; the sqlite store implements both.
type Store interface {
	Reader
	Writer
}

// =============================================================================
// WRITE INPUTS - validated and normalized before they reach the store
// =============================================================================

// DrugInput carries user-entered drug fields.
type DrugInput struct {
	Name              string
	DepartmentID      DepartmentID
	QuotaNumber       int
	Price             string // decimal string; empty means zero
	CalculationMethod CalculationMethod
	Remarks           string
}

// Validate checks the drug invariants.
func (in DrugInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "drug name is required")
	}
	if in.QuotaNumber < 0 {
		return NewValidationError("quota_number", "quota cannot be negative")
	}
	if !in.CalculationMethod.Valid() {
		return NewValidationError("calculation_method", "unknown calculation method")
	}
	return nil
}

// PatientInput carries user-entered patient fields. The name is uppercased
// on write by the store.
type PatientInput struct {
	Name     string
	ICNumber string
}

func (in PatientInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "patient name is required")
	}
	if strings.TrimSpace(in.ICNumber) == "" {
		return NewValidationError("ic_number", "IC number is required")
	}
	return nil
}

// EnrollmentInput carries user-entered enrollment fields with dates and the
// cost expression still in boundary form (ISO strings, raw cost text).
type EnrollmentInput struct {
	PatientID PatientID
	DrugID    DrugID

	DosePerDay            string
	Duration              *int
	PrescriptionStartDate string  // ISO YYYY-MM-DD, required
	PrescriptionEndDate   *string // ISO; wins over Duration when both set
	LatestRefillDate      *string // ISO
	SPUB                  bool
	IsActive              bool
	CostPerDay            *string // raw cost expression; nil = no manual cost
	Remarks               string
}

// Normalize validates the input and resolves it into an Enrollment record:
// dates parsed, duration and end date reconciled, cost expression run
// through NormalizeCostPerDay. An unparseable cost string fails the whole
// write; it is never stored or coerced to zero.
func (in EnrollmentInput) Normalize() (Enrollment, error) {
	if in.PatientID == 0 {
		return Enrollment{}, NewValidationError("patient_id", "patient is required")
	}
	if in.DrugID == 0 {
		return Enrollment{}, NewValidationError("drug_id", "drug is required")
	}
	if strings.TrimSpace(in.PrescriptionStartDate) == "" {
		return Enrollment{}, NewValidationError("prescription_start_date", "start date is required")
	}

	start, err := ParseDate(in.PrescriptionStartDate)
	if err != nil {
		return Enrollment{}, NewValidationError("prescription_start_date", err.Error())
	}

	var endInput *Date
	if in.PrescriptionEndDate != nil && strings.TrimSpace(*in.PrescriptionEndDate) != "" {
		d, err := ParseDate(*in.PrescriptionEndDate)
		if err != nil {
			return Enrollment{}, NewValidationError("prescription_end_date", err.Error())
		}
		endInput = &d
	}

	end, _, err := ReconcileSchedule(start, in.Duration, endInput)
	if err != nil {
		return Enrollment{}, err
	}

	var refill *Date
	if in.LatestRefillDate != nil && strings.TrimSpace(*in.LatestRefillDate) != "" {
		d, err := ParseDate(*in.LatestRefillDate)
		if err != nil {
			return Enrollment{}, NewValidationError("latest_refill_date", err.Error())
		}
		refill = &d
	}

	e := Enrollment{
		PatientID:             in.PatientID,
		DrugID:                in.DrugID,
		DosePerDay:            strings.TrimSpace(in.DosePerDay),
		PrescriptionStartDate: start,
		PrescriptionEndDate:   end,
		LatestRefillDate:      refill,
		SPUB:                  in.SPUB,
		IsActive:              in.IsActive,
		Remarks:               strings.TrimSpace(in.Remarks),
	}

	if in.CostPerDay != nil && strings.TrimSpace(*in.CostPerDay) != "" {
		cost, err := NormalizeCostPerDay(*in.CostPerDay)
		if err != nil {
			return Enrollment{}, err
		}
		e.CostPerDay = &cost
	}

	return e, nil
}

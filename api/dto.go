/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY FIELDS:
  Decimal values travel as strings ("3.80"), never as JSON numbers, so
  clients do not lose precision to float parsing.

SEE ALSO:
  - handlers.go: Uses these types
  - report/aggregator.go: Report row types serialized directly
*/
package api

import (
	"github.com/warp/quota-engine/quota"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// DepartmentDTO represents a department in API responses.
type DepartmentDTO struct {
	ID   quota.DepartmentID `json:"id"`
	Name string             `json:"name"`
}

// DepartmentRequest is the create/update body for a department.
type DepartmentRequest struct {
	Name string `json:"name"`
}

// DepartmentSummaryDTO is the per-department overview card.
type DepartmentSummaryDTO struct {
	Department        DepartmentDTO `json:"department"`
	TotalDrugs        int           `json:"total_drugs"`
	ActiveEnrollments int           `json:"active_enrollments"`
}

// DrugDTO represents a drug with its live quota status. The status tier
// uses the list-view thresholds (100/80/50), not the report thresholds.
type DrugDTO struct {
	ID                  quota.DrugID            `json:"id"`
	Name                string                  `json:"name"`
	DepartmentID        quota.DepartmentID      `json:"department_id"`
	DepartmentName      string                  `json:"department_name"`
	QuotaNumber         int                     `json:"quota_number"`
	Price               string                  `json:"price"`
	CalculationMethod   quota.CalculationMethod `json:"calculation_method"`
	Remarks             string                  `json:"remarks,omitempty"`
	ActivePatients      int                     `json:"active_patients"`
	AvailableSlots      int                     `json:"available_slots"`
	UtilizationPct      int                     `json:"utilization_percentage"`
	Status              quota.Tier              `json:"status"`
	SuggestedCostPerDay string                  `json:"suggested_cost_per_day"`
}

// DrugRequest is the create/update body for a drug.
type DrugRequest struct {
	Name              string             `json:"name"`
	DepartmentID      quota.DepartmentID `json:"department_id"`
	QuotaNumber       int                `json:"quota_number"`
	Price             string             `json:"price"`
	CalculationMethod string             `json:"calculation_method"`
	Remarks           string             `json:"remarks"`
}

// QuotaStatusDTO is the standalone quota check for one drug.
type QuotaStatusDTO struct {
	DrugID         quota.DrugID `json:"drug_id"`
	DrugName       string       `json:"drug_name"`
	QuotaNumber    int          `json:"quota_number"`
	ActivePatients int          `json:"active_patients"`
	AvailableSlots int          `json:"available_slots"`
	UtilizationPct int          `json:"utilization_percentage"`
	Status         quota.Tier   `json:"status"`
}

// PatientDTO represents a patient in API responses.
type PatientDTO struct {
	ID        quota.PatientID `json:"id"`
	Name      string          `json:"name"`
	ICNumber  string          `json:"ic_number"`
	CreatedAt string          `json:"created_at"`
}

// PatientRequest is the create/update body for a patient.
type PatientRequest struct {
	Name     string `json:"name"`
	ICNumber string `json:"ic_number"`
}

// EnrollmentDTO is an enrollment joined with display names and the derived
// compliance fields, recomputed on every read.
type EnrollmentDTO struct {
	ID        quota.EnrollmentID `json:"id"`
	PatientID quota.PatientID    `json:"patient_id"`
	DrugID    quota.DrugID       `json:"drug_id"`

	PatientName    string             `json:"patient_name"`
	ICNumber       string             `json:"ic_number"`
	DrugName       string             `json:"drug_name"`
	DepartmentID   quota.DepartmentID `json:"department_id"`
	DepartmentName string             `json:"department_name"`

	DosePerDay            string  `json:"dose_per_day"`
	Duration              *int    `json:"duration,omitempty"`
	PrescriptionStartDate string  `json:"prescription_start_date"`
	PrescriptionEndDate   *string `json:"prescription_end_date,omitempty"`
	LatestRefillDate      *string `json:"latest_refill_date,omitempty"`
	SPUB                  bool    `json:"spub"`
	IsActive              bool    `json:"is_active"`
	CostPerDay            *string `json:"cost_per_day,omitempty"`
	Remarks               string  `json:"remarks,omitempty"`

	DaysSinceRefill    *int            `json:"days_since_refill,omitempty"`
	RefillTag          quota.RefillTag `json:"refill_tag"`
	PotentialDefaulter bool            `json:"potential_defaulter"`
}

// EnrollmentRequest is the create/update body for an enrollment. Either
// duration or prescription_end_date may be supplied; when both are present
// the end date wins and the duration is rederived.
type EnrollmentRequest struct {
	PatientID quota.PatientID `json:"patient_id"`
	DrugID    quota.DrugID    `json:"drug_id"`

	DosePerDay            string  `json:"dose_per_day"`
	Duration              *int    `json:"duration,omitempty"`
	PrescriptionStartDate string  `json:"prescription_start_date"`
	PrescriptionEndDate   *string `json:"prescription_end_date,omitempty"`
	LatestRefillDate      *string `json:"latest_refill_date,omitempty"`
	SPUB                  bool    `json:"spub"`
	IsActive              *bool   `json:"is_active,omitempty"` // default true
	CostPerDay            *string `json:"cost_per_day,omitempty"`
	Remarks               string  `json:"remarks"`
}

func (r EnrollmentRequest) toInput() quota.EnrollmentInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return quota.EnrollmentInput{
		PatientID:             r.PatientID,
		DrugID:                r.DrugID,
		DosePerDay:            r.DosePerDay,
		Duration:              r.Duration,
		PrescriptionStartDate: r.PrescriptionStartDate,
		PrescriptionEndDate:   r.PrescriptionEndDate,
		LatestRefillDate:      r.LatestRefillDate,
		SPUB:                  r.SPUB,
		IsActive:              active,
		CostPerDay:            r.CostPerDay,
		Remarks:               r.Remarks,
	}
}

// RefillRequest is the body for the refill patch. An empty date means
// "refilled today" (the request's as-of date).
type RefillRequest struct {
	LatestRefillDate string `json:"latest_refill_date"`
}

// SeedResponse reports what the demo seed created.
type SeedResponse struct {
	Departments int    `json:"departments"`
	Drugs       int    `json:"drugs"`
	Patients    int    `json:"patients"`
	Enrollments int    `json:"enrollments"`
	Message     string `json:"message"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

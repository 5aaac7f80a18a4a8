/*
seed.go - Demo dataset loader for testing and demonstrations

PURPOSE:

	Populates the database with a realistic hospital dataset for demos:
	departments, quota drugs with prices, patients, and enrollments in
	several compliance states (recent refill, overdue, SPUB, never
	refilled, deactivated history).

WHAT THE SEED DEMONSTRATES:

	- A drug at quota (FULL on the list view)
	- Refill states spanning all tags: green, orange, red, never
	- A SPUB enrollment that stays off the defaulter list despite a stale
	  refill date
	- A deactivated historical enrollment that still appears in yearly
	  cost reporting

USAGE VIA API:

	POST /api/admin/seed

NOTE:

	Seeding adds rows to whatever is already in the database; run it
	against a fresh database for the canonical demo state. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: SeedDemoData handler registration
  - store/sqlite/sqlite.go: Store the seed writes through
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/quota-engine/quota"
)

// =============================================================================
// SEED DATA
// =============================================================================

type seedDrug struct {
	name       string
	quota      int
	price      string
	calcMethod quota.CalculationMethod
	remarks    string
}

type seedEnrollment struct {
	patientIC    string
	drugName     string
	dosePerDay   string
	startDaysAgo int
	durationDays *int
	refillAgo    *int // days before as-of; nil = never refilled
	spub         bool
	active       bool
	costPerDay   *string
	remarks      string
}

var seedDepartments = map[string][]seedDrug{
	"Cardiology": {
		{name: "Ticagrelor 90mg", quota: 3, price: "3.80", calcMethod: quota.CalcDaily},
		{name: "Sacubitril/Valsartan 100mg", quota: 5, price: "7.20", calcMethod: quota.CalcDaily},
	},
	"Nephrology": {
		{name: "Sevelamer 800mg", quota: 4, price: "2.10", calcMethod: quota.CalcDaily},
		{name: "Darbepoetin 40mcg", quota: 2, price: "168.00", calcMethod: quota.CalcWeekly},
	},
	"Rheumatology": {
		{name: "Adalimumab 40mg", quota: 2, price: "1850.00", calcMethod: quota.CalcTwiceYearly,
			remarks: "Biologic; requires specialist approval"},
	},
}

var seedPatients = []quota.PatientInput{
	{Name: "Alice Tan", ICNumber: "900101-01-1234"},
	{Name: "Betty Lim", ICNumber: "910202-02-2345"},
	{Name: "Charles Wong", ICNumber: "A12345678"}, // passport holder
	{Name: "Devi Kumar", ICNumber: "850505-05-4567"},
	{Name: "Encik Rahman", ICNumber: "780808-08-5678"},
	{Name: "Farah Aziz", ICNumber: "950909-09-6789"},
}

func seedEnrollments() []seedEnrollment {
	duration180 := 180
	cost380 := "3.80"
	cost720 := "7.20"
	costBioPerDay := "10.14"
	days20 := 20
	days120 := 120
	days250 := 250
	days400 := 400

	return []seedEnrollment{
		// Ticagrelor at quota: three active enrollments fill all slots.
		{patientIC: "900101-01-1234", drugName: "Ticagrelor 90mg", dosePerDay: "1 tab BD",
			startDaysAgo: 300, durationDays: nil, refillAgo: &days20, active: true, costPerDay: &cost380},
		{patientIC: "910202-02-2345", drugName: "Ticagrelor 90mg", dosePerDay: "1 tab BD",
			startDaysAgo: 250, refillAgo: &days120, active: true, costPerDay: &cost380},
		{patientIC: "A12345678", drugName: "Ticagrelor 90mg", dosePerDay: "1 tab BD",
			startDaysAgo: 400, refillAgo: &days250, active: true, costPerDay: &cost380,
			remarks: "Overdue for refill"},

		// SPUB: stale refill but supplied elsewhere, never a defaulter.
		{patientIC: "850505-05-4567", drugName: "Sevelamer 800mg", dosePerDay: "2 tabs TDS",
			startDaysAgo: 500, refillAgo: &days400, spub: true, active: true,
			remarks: "SPUB - supplied at Hospital Kuala Lumpur"},

		// Never refilled since enrollment.
		{patientIC: "780808-08-5678", drugName: "Sacubitril/Valsartan 100mg", dosePerDay: "1 tab BD",
			startDaysAgo: 90, durationDays: &duration180, active: true, costPerDay: &cost720},

		// Biologic with a manual dose-derived cost.
		{patientIC: "950909-09-6789", drugName: "Adalimumab 40mg", dosePerDay: "40mg EOW",
			startDaysAgo: 200, refillAgo: &days20, active: true, costPerDay: &costBioPerDay},

		// Deactivated history: excluded from quota and cost totals, kept
		// in yearly report listings.
		{patientIC: "900101-01-1234", drugName: "Sevelamer 800mg", dosePerDay: "1 tab TDS",
			startDaysAgo: 700, refillAgo: &days400, active: false,
			remarks: "Completed course"},
	}
}

// =============================================================================
// SEED HANDLER
// =============================================================================

// SeedDemoData loads the demo dataset.
func (h *Handler) SeedDemoData(w http.ResponseWriter, r *http.Request) {
	resp, err := h.loadSeed(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) loadSeed(ctx context.Context) (*SeedResponse, error) {
	asOf := quota.AsOfDate(ctx)
	resp := &SeedResponse{Message: "Demo data loaded"}

	drugIDs := make(map[string]quota.DrugID)
	for deptName, drugs := range seedDepartments {
		dept, err := h.Store.CreateDepartment(ctx, deptName)
		if err != nil {
			return nil, fmt.Errorf("seed department %s: %w", deptName, err)
		}
		resp.Departments++

		for _, sd := range drugs {
			drug, err := h.Store.CreateDrug(ctx, quota.DrugInput{
				Name:              sd.name,
				DepartmentID:      dept.ID,
				QuotaNumber:       sd.quota,
				Price:             sd.price,
				CalculationMethod: sd.calcMethod,
				Remarks:           sd.remarks,
			})
			if err != nil {
				return nil, fmt.Errorf("seed drug %s: %w", sd.name, err)
			}
			drugIDs[sd.name] = drug.ID
			resp.Drugs++
		}
	}

	patientIDs := make(map[string]quota.PatientID)
	for _, in := range seedPatients {
		p, err := h.Store.CreatePatient(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("seed patient %s: %w", in.ICNumber, err)
		}
		patientIDs[in.ICNumber] = p.ID
		resp.Patients++
	}

	for _, se := range seedEnrollments() {
		in := quota.EnrollmentInput{
			PatientID:             patientIDs[se.patientIC],
			DrugID:                drugIDs[se.drugName],
			DosePerDay:            se.dosePerDay,
			Duration:              se.durationDays,
			PrescriptionStartDate: asOf.AddDays(-se.startDaysAgo).String(),
			SPUB:                  se.spub,
			IsActive:              se.active,
			CostPerDay:            se.costPerDay,
			Remarks:               se.remarks,
		}
		if se.refillAgo != nil {
			refill := asOf.AddDays(-*se.refillAgo).String()
			in.LatestRefillDate = &refill
		}
		if _, err := h.Store.CreateEnrollment(ctx, in); err != nil {
			return nil, fmt.Errorf("seed enrollment %s/%s: %w", se.patientIC, se.drugName, err)
		}
		resp.Enrollments++
	}

	return resp, nil
}

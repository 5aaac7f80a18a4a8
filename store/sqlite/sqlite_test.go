package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-engine/quota"
	"github.com/warp/quota-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedDrugAndPatient provisions one department, one drug, one patient.
func seedDrugAndPatient(t *testing.T, store *sqlite.Store) (quota.Drug, quota.Patient) {
	ctx := context.Background()

	dept, err := store.CreateDepartment(ctx, "Cardiology")
	require.NoError(t, err)

	drug, err := store.CreateDrug(ctx, quota.DrugInput{
		Name:              "Ticagrelor 90mg",
		DepartmentID:      dept.ID,
		QuotaNumber:       10,
		Price:             "3.80",
		CalculationMethod: quota.CalcDaily,
	})
	require.NoError(t, err)

	patient, err := store.CreatePatient(ctx, quota.PatientInput{
		Name:     "Alice Tan",
		ICNumber: "900101-01-1234",
	})
	require.NoError(t, err)

	return drug, patient
}

func enrollmentInput(patientID quota.PatientID, drugID quota.DrugID) quota.EnrollmentInput {
	return quota.EnrollmentInput{
		PatientID:             patientID,
		DrugID:                drugID,
		DosePerDay:            "1 tab BD",
		PrescriptionStartDate: "2025-01-01",
		IsActive:              true,
	}
}

func strPtr(s string) *string { return &s }

// =============================================================================
// UNIQUENESS INVARIANT
// =============================================================================

func TestCreateEnrollment_DuplicateActive_Rejected(t *testing.T) {
	// GIVEN: A patient actively enrolled in a drug
	// WHEN: Creating a second active enrollment for the same (patient, drug)
	// THEN: The write fails with a conflict carried up from the database index

	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	_, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)

	_, err = store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, quota.ErrConflict)

	var conflict *quota.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, patient.ID, conflict.PatientID)
	assert.Equal(t, drug.ID, conflict.DrugID)
}

func TestCreateEnrollment_AfterDeactivation_Succeeds(t *testing.T) {
	// GIVEN: An enrollment that was deactivated
	// WHEN: Re-enrolling the same patient in the same drug
	// THEN: The new active enrollment is accepted

	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	first, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)

	deactivated, err := store.DeactivateEnrollment(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	second, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.IsActive)

	// History survives: both rows are still listed without the active filter.
	all, err := store.ListEnrollments(ctx, quota.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := store.ListEnrollments(ctx, quota.EnrollmentFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestCreateEnrollment_InactiveDuplicates_Allowed(t *testing.T) {
	// The index only constrains active rows; any number of inactive
	// historical enrollments may coexist.
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	for i := 0; i < 3; i++ {
		in := enrollmentInput(patient.ID, drug.ID)
		in.IsActive = false
		_, err := store.CreateEnrollment(ctx, in)
		require.NoError(t, err)
	}
}

// =============================================================================
// NORMALIZATION AT THE WRITE BOUNDARY
// =============================================================================

func TestCreatePatient_UppercasesName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patient, err := store.CreatePatient(ctx, quota.PatientInput{
		Name:     "alice tan",
		ICNumber: "900101-01-1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "ALICE TAN", patient.Name)

	loaded, err := store.GetPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "ALICE TAN", loaded.Name)
}

func TestCreateEnrollment_BadCostExpression_RejectsWholeWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	in := enrollmentInput(patient.ID, drug.ID)
	in.CostPerDay = strPtr("1.5*abc")

	_, err := store.CreateEnrollment(ctx, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, quota.ErrValidation)

	// Nothing was stored.
	all, err := store.ListEnrollments(ctx, quota.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateEnrollment_DurationDerivesEndDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	duration := 30
	in := enrollmentInput(patient.ID, drug.ID)
	in.Duration = &duration

	created, err := store.CreateEnrollment(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, created.PrescriptionEndDate)
	assert.Equal(t, "2025-01-31", created.PrescriptionEndDate.String())

	got := created.Duration()
	require.NotNil(t, got)
	assert.Equal(t, 30, *got)
}

func TestCreateEnrollment_CostExpressionNormalized(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	in := enrollmentInput(patient.ID, drug.ID)
	in.CostPerDay = strPtr("0.5*2*3")

	created, err := store.CreateEnrollment(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, created.CostPerDay)
	assert.Equal(t, "3.00", created.CostPerDay.StringFixed(2))

	loaded, err := store.GetEnrollment(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CostPerDay)
	assert.Equal(t, "3.00", loaded.CostPerDay.StringFixed(2))
}

// =============================================================================
// REFILL PATCH
// =============================================================================

func TestPatchRefillDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	created, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)
	assert.Nil(t, created.LatestRefillDate)

	refill := quota.NewDate(2025, 3, 15)
	patched, err := store.PatchRefillDate(ctx, created.ID, refill)
	require.NoError(t, err)
	require.NotNil(t, patched.LatestRefillDate)
	assert.Equal(t, "2025-03-15", patched.LatestRefillDate.String())

	// Other fields are untouched.
	assert.Equal(t, created.DosePerDay, patched.DosePerDay)
	assert.True(t, patched.IsActive)
}

func TestPatchRefillDate_MissingEnrollment(t *testing.T) {
	store := newTestStore(t)
	_, err := store.PatchRefillDate(context.Background(), 999, quota.NewDate(2025, 3, 15))
	assert.ErrorIs(t, err, quota.ErrNotFound)
}

// =============================================================================
// CASCADES
// =============================================================================

func TestDeleteDepartment_CascadesToDrugsAndEnrollments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	_, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)

	err = store.DeleteDepartment(ctx, drug.DepartmentID)
	require.NoError(t, err)

	_, err = store.GetDrug(ctx, drug.ID)
	assert.ErrorIs(t, err, quota.ErrNotFound)

	enrollments, err := store.ListEnrollments(ctx, quota.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, enrollments)

	// The patient is not part of the cascade.
	_, err = store.GetPatient(ctx, patient.ID)
	assert.NoError(t, err)
}

func TestDeletePatient_CascadesToEnrollments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	_, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)

	err = store.DeletePatient(ctx, patient.ID)
	require.NoError(t, err)

	enrollments, err := store.ListEnrollments(ctx, quota.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, enrollments)
}

// =============================================================================
// LOOKUPS AND FILTERS
// =============================================================================

func TestListEnrollments_JoinsDisplayFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	_, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)

	list, err := store.ListEnrollments(ctx, quota.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	e := list[0]
	assert.Equal(t, "ALICE TAN", e.PatientName)
	assert.Equal(t, "900101-01-1234", e.ICNumber)
	assert.Equal(t, "Ticagrelor 90mg", e.DrugName)
	assert.Equal(t, "Cardiology", e.DepartmentName)
	assert.Equal(t, drug.DepartmentID, e.DepartmentID)
}

func TestListEnrollments_DepartmentFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	other, err := store.CreateDepartment(ctx, "Nephrology")
	require.NoError(t, err)
	otherDrug, err := store.CreateDrug(ctx, quota.DrugInput{
		Name: "Sevelamer 800mg", DepartmentID: other.ID, QuotaNumber: 5,
	})
	require.NoError(t, err)

	_, err = store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)
	_, err = store.CreateEnrollment(ctx, enrollmentInput(patient.ID, otherDrug.ID))
	require.NoError(t, err)

	filtered, err := store.ListEnrollments(ctx, quota.EnrollmentFilter{DepartmentID: &other.ID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Sevelamer 800mg", filtered[0].DrugName)
}

func TestListPatients_SearchMatchesNameAndIC(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePatient(ctx, quota.PatientInput{Name: "Alice Tan", ICNumber: "900101-01-1234"})
	require.NoError(t, err)
	_, err = store.CreatePatient(ctx, quota.PatientInput{Name: "Betty Lim", ICNumber: "910202-02-2345"})
	require.NoError(t, err)

	byName, err := store.ListPatients(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "ALICE TAN", byName[0].Name)

	byIC, err := store.ListPatients(ctx, "910202")
	require.NoError(t, err)
	require.Len(t, byIC, 1)
	assert.Equal(t, "BETTY LIM", byIC[0].Name)

	all, err := store.ListPatients(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreatePatient_DuplicateIC_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePatient(ctx, quota.PatientInput{Name: "Alice Tan", ICNumber: "900101-01-1234"})
	require.NoError(t, err)

	_, err = store.CreatePatient(ctx, quota.PatientInput{Name: "Other Alice", ICNumber: "900101-01-1234"})
	assert.ErrorIs(t, err, quota.ErrValidation)
}

func TestCreateDrug_NegativeQuota_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dept, err := store.CreateDepartment(ctx, "Cardiology")
	require.NoError(t, err)

	_, err = store.CreateDrug(ctx, quota.DrugInput{
		Name: "Ticagrelor", DepartmentID: dept.ID, QuotaNumber: -1,
	})
	assert.ErrorIs(t, err, quota.ErrValidation)
}

func TestUpdateEnrollment_IntoActiveConflict_Rejected(t *testing.T) {
	// GIVEN: One active and one inactive enrollment for the same pair
	// WHEN: Updating the inactive row to active
	// THEN: The index rejects the update

	store := newTestStore(t)
	ctx := context.Background()
	drug, patient := seedDrugAndPatient(t, store)

	_, err := store.CreateEnrollment(ctx, enrollmentInput(patient.ID, drug.ID))
	require.NoError(t, err)

	inactiveIn := enrollmentInput(patient.ID, drug.ID)
	inactiveIn.IsActive = false
	inactive, err := store.CreateEnrollment(ctx, inactiveIn)
	require.NoError(t, err)

	reactivate := enrollmentInput(patient.ID, drug.ID)
	_, err = store.UpdateEnrollment(ctx, inactive.ID, reactivate)
	assert.ErrorIs(t, err, quota.ErrConflict)
}

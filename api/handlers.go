/*
handlers.go - HTTP API handlers for the quota drug management system

PURPOSE:
  Exposes the enrollment and quota accounting engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Departments:
    GET    /api/departments               List departments
    POST   /api/departments               Create department
    GET    /api/departments/{id}          Get department
    PUT    /api/departments/{id}          Update department
    DELETE /api/departments/{id}          Delete (cascades to drugs, enrollments)
    GET    /api/departments/{id}/summary  Drug and enrollment counts

  Drugs:
    GET    /api/drugs                     List with live quota status
    POST   /api/drugs                     Create drug
    GET    /api/drugs/{id}                Get drug
    PUT    /api/drugs/{id}                Update drug
    DELETE /api/drugs/{id}                Delete (cascades to enrollments)
    GET    /api/drugs/{id}/quota-status   Standalone quota check

  Patients:
    GET    /api/patients?search=          List/search by name or IC
    POST   /api/patients                  Create (name uppercased)
    GET    /api/patients/{id}/enrollments Patient's enrollment history

  Enrollments:
    GET    /api/enrollments               List with filters
    POST   /api/enrollments               Create (409 on duplicate active)
    PATCH  /api/enrollments/{id}/refill   Record a refill
    PATCH  /api/enrollments/{id}/deactivate
    POST   /api/enrollments/{id}/move-to-defaulter
    GET    /api/enrollments/defaulters/potential
    GET    /api/enrollments/reports/yearly-costs

  Reports:
    GET    /api/reports/cost-analysis
    GET    /api/reports/quota-utilization
    GET    /api/reports/defaulters
    GET    /api/reports/dashboard
    GET    /api/reports/export/excel      Computed rows for the exporter

ERROR HANDLING:
  Domain errors map to HTTP status codes in one place (writeDomainError):
  - 400: Validation errors, invalid input
  - 404: Entity not found
  - 409: Duplicate active enrollment
  - 500: Internal errors

DERIVED VALUES:
  Quota status and compliance fields are recomputed on every read from
  current enrollments; nothing derived is stored or cached between requests.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo dataset loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/quota-engine/quota"
	"github.com/warp/quota-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   quota.Store
	Reports *report.Aggregator
}

// NewHandler creates a new handler over the given store.
func NewHandler(store quota.Store) *Handler {
	return &Handler{
		Store:   store,
		Reports: report.New(store),
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses in one place.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quota.ErrConflict):
		writeError(w, http.StatusConflict, "Patient is already enrolled in this drug", err)
	case errors.Is(err, quota.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case quota.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// departmentFilter reads the department_id query value; "" and "all" mean
// no filter.
func departmentFilter(w http.ResponseWriter, r *http.Request) (*quota.DepartmentID, bool) {
	id, err := quota.ParseDepartmentFilter(r.URL.Query().Get("department_id"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return id, true
}

// =============================================================================
// DEPARTMENT HANDLERS
// =============================================================================

func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.Store.ListDepartments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]DepartmentDTO, len(departments))
	for i, d := range departments {
		dtos[i] = DepartmentDTO{ID: d.ID, Name: d.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req DepartmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := h.Store.CreateDepartment(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DepartmentDTO{ID: d.ID, Name: d.Name})
}

func (h *Handler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid department id", err)
		return
	}
	d, err := h.Store.GetDepartment(r.Context(), quota.DepartmentID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DepartmentDTO{ID: d.ID, Name: d.Name})
}

func (h *Handler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid department id", err)
		return
	}
	var req DepartmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := h.Store.UpdateDepartment(r.Context(), quota.DepartmentID(id), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DepartmentDTO{ID: d.ID, Name: d.Name})
}

func (h *Handler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid department id", err)
		return
	}
	if err := h.Store.DeleteDepartment(r.Context(), quota.DepartmentID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Department deleted"})
}

func (h *Handler) DepartmentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid department id", err)
		return
	}
	deptID := quota.DepartmentID(id)

	d, err := h.Store.GetDepartment(r.Context(), deptID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	drugs, err := h.Store.ListDrugs(r.Context(), quota.DrugFilter{DepartmentID: &deptID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	active, err := h.Store.ListEnrollments(r.Context(), quota.EnrollmentFilter{
		DepartmentID: &deptID,
		ActiveOnly:   true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DepartmentSummaryDTO{
		Department:        DepartmentDTO{ID: d.ID, Name: d.Name},
		TotalDrugs:        len(drugs),
		ActiveEnrollments: len(active),
	})
}

// =============================================================================
// DRUG HANDLERS
// =============================================================================

// drugDTO builds the response shape, deriving quota status from the active
// count under the list-view thresholds.
func drugDTO(drug quota.Drug, activeCount int) DrugDTO {
	status := quota.QuotaStatusFromCount(drug, activeCount)
	return DrugDTO{
		ID:                  drug.ID,
		Name:                drug.Name,
		DepartmentID:        drug.DepartmentID,
		DepartmentName:      drug.DepartmentName,
		QuotaNumber:         drug.QuotaNumber,
		Price:               drug.Price.StringFixed(2),
		CalculationMethod:   drug.CalculationMethod,
		Remarks:             drug.Remarks,
		ActivePatients:      status.Active,
		AvailableSlots:      status.Available,
		UtilizationPct:      status.UtilizationPct,
		Status:              quota.ListUtilizationPolicy.Tier(status.UtilizationPct),
		SuggestedCostPerDay: quota.SuggestCostPerDay(drug).StringFixed(2),
	}
}

func (h *Handler) activeCountsByDrug(r *http.Request, departmentID *quota.DepartmentID) (map[quota.DrugID]int, error) {
	enrollments, err := h.Store.ListEnrollments(r.Context(), quota.EnrollmentFilter{
		DepartmentID: departmentID,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, err
	}
	counts := make(map[quota.DrugID]int)
	for _, e := range enrollments {
		counts[e.DrugID]++
	}
	return counts, nil
}

func (h *Handler) ListDrugs(w http.ResponseWriter, r *http.Request) {
	deptID, ok := departmentFilter(w, r)
	if !ok {
		return
	}
	drugs, err := h.Store.ListDrugs(r.Context(), quota.DrugFilter{DepartmentID: deptID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	counts, err := h.activeCountsByDrug(r, deptID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]DrugDTO, len(drugs))
	for i, d := range drugs {
		dtos[i] = drugDTO(d, counts[d.ID])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateDrug(w http.ResponseWriter, r *http.Request) {
	var req DrugRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := h.Store.CreateDrug(r.Context(), quota.DrugInput{
		Name:              req.Name,
		DepartmentID:      req.DepartmentID,
		QuotaNumber:       req.QuotaNumber,
		Price:             req.Price,
		CalculationMethod: quota.CalculationMethod(req.CalculationMethod),
		Remarks:           req.Remarks,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, drugDTO(d, 0))
}

func (h *Handler) GetDrug(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid drug id", err)
		return
	}
	drugID := quota.DrugID(id)
	d, err := h.Store.GetDrug(r.Context(), drugID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	active, err := h.Store.ListEnrollments(r.Context(), quota.EnrollmentFilter{
		DrugID:     &drugID,
		ActiveOnly: true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drugDTO(d, len(active)))
}

func (h *Handler) UpdateDrug(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid drug id", err)
		return
	}
	var req DrugRequest
	if !decodeBody(w, r, &req) {
		return
	}
	drugID := quota.DrugID(id)
	d, err := h.Store.UpdateDrug(r.Context(), drugID, quota.DrugInput{
		Name:              req.Name,
		DepartmentID:      req.DepartmentID,
		QuotaNumber:       req.QuotaNumber,
		Price:             req.Price,
		CalculationMethod: quota.CalculationMethod(req.CalculationMethod),
		Remarks:           req.Remarks,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	active, err := h.Store.ListEnrollments(r.Context(), quota.EnrollmentFilter{
		DrugID:     &drugID,
		ActiveOnly: true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drugDTO(d, len(active)))
}

func (h *Handler) DeleteDrug(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid drug id", err)
		return
	}
	if err := h.Store.DeleteDrug(r.Context(), quota.DrugID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Drug deleted"})
}

func (h *Handler) DrugQuotaStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid drug id", err)
		return
	}
	drugID := quota.DrugID(id)
	d, err := h.Store.GetDrug(r.Context(), drugID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	active, err := h.Store.ListEnrollments(r.Context(), quota.EnrollmentFilter{
		DrugID:     &drugID,
		ActiveOnly: true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := quota.QuotaStatusFromCount(d, len(active))
	writeJSON(w, http.StatusOK, QuotaStatusDTO{
		DrugID:         d.ID,
		DrugName:       d.Name,
		QuotaNumber:    status.QuotaNumber,
		ActivePatients: status.Active,
		AvailableSlots: status.Available,
		UtilizationPct: status.UtilizationPct,
		Status:         quota.ListUtilizationPolicy.Tier(status.UtilizationPct),
	})
}

// =============================================================================
// PATIENT HANDLERS
// =============================================================================

func patientDTO(p quota.Patient) PatientDTO {
	return PatientDTO{ID: p.ID, Name: p.Name, ICNumber: p.ICNumber, CreatedAt: p.CreatedAt.String()}
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.Store.ListPatients(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PatientDTO, len(patients))
	for i, p := range patients {
		dtos[i] = patientDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req PatientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.Store.CreatePatient(r.Context(), quota.PatientInput{Name: req.Name, ICNumber: req.ICNumber})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, patientDTO(p))
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid patient id", err)
		return
	}
	p, err := h.Store.GetPatient(r.Context(), quota.PatientID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patientDTO(p))
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid patient id", err)
		return
	}
	var req PatientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.Store.UpdatePatient(r.Context(), quota.PatientID(id), quota.PatientInput{Name: req.Name, ICNumber: req.ICNumber})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patientDTO(p))
}

func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid patient id", err)
		return
	}
	if err := h.Store.DeletePatient(r.Context(), quota.PatientID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Patient deleted"})
}

func (h *Handler) PatientEnrollments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid patient id", err)
		return
	}
	patientID := quota.PatientID(id)
	if _, err := h.Store.GetPatient(r.Context(), patientID); err != nil {
		writeDomainError(w, err)
		return
	}
	enrollments, err := h.Store.ListEnrollments(r.Context(), quota.EnrollmentFilter{PatientID: &patientID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.enrollmentDTOs(r, enrollments))
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

func (h *Handler) enrollmentDTO(r *http.Request, e quota.Enrollment) EnrollmentDTO {
	c := quota.Classify(e, quota.AsOfDate(r.Context()))

	dto := EnrollmentDTO{
		ID:                    e.ID,
		PatientID:             e.PatientID,
		DrugID:                e.DrugID,
		PatientName:           e.PatientName,
		ICNumber:              e.ICNumber,
		DrugName:              e.DrugName,
		DepartmentID:          e.DepartmentID,
		DepartmentName:        e.DepartmentName,
		DosePerDay:            e.DosePerDay,
		Duration:              e.Duration(),
		PrescriptionStartDate: e.PrescriptionStartDate.String(),
		SPUB:                  e.SPUB,
		IsActive:              e.IsActive,
		Remarks:               e.Remarks,
		DaysSinceRefill:       c.DaysSinceRefill,
		RefillTag:             c.Tag,
		PotentialDefaulter:    c.PotentialDefaulter,
	}
	if e.PrescriptionEndDate != nil {
		s := e.PrescriptionEndDate.String()
		dto.PrescriptionEndDate = &s
	}
	if e.LatestRefillDate != nil {
		s := e.LatestRefillDate.String()
		dto.LatestRefillDate = &s
	}
	if e.CostPerDay != nil {
		s := e.CostPerDay.StringFixed(2)
		dto.CostPerDay = &s
	}
	return dto
}

func (h *Handler) enrollmentDTOs(r *http.Request, enrollments []quota.Enrollment) []EnrollmentDTO {
	dtos := make([]EnrollmentDTO, len(enrollments))
	for i, e := range enrollments {
		dtos[i] = h.enrollmentDTO(r, e)
	}
	return dtos
}

func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	deptID, ok := departmentFilter(w, r)
	if !ok {
		return
	}
	filter := quota.EnrollmentFilter{
		DepartmentID: deptID,
		ActiveOnly:   r.URL.Query().Get("active_only") == "true",
	}
	if v := r.URL.Query().Get("drug_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid drug_id", err)
			return
		}
		id := quota.DrugID(n)
		filter.DrugID = &id
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		d, err := quota.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return
		}
		filter.From = &d
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		d, err := quota.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
		filter.To = &d
	}

	enrollments, err := h.Store.ListEnrollments(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.enrollmentDTOs(r, enrollments))
}

func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req EnrollmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := h.Store.CreateEnrollment(r.Context(), req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.enrollmentDTO(r, e))
}

func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment id", err)
		return
	}
	e, err := h.Store.GetEnrollment(r.Context(), quota.EnrollmentID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.enrollmentDTO(r, e))
}

func (h *Handler) UpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment id", err)
		return
	}
	var req EnrollmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := h.Store.UpdateEnrollment(r.Context(), quota.EnrollmentID(id), req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.enrollmentDTO(r, e))
}

func (h *Handler) DeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment id", err)
		return
	}
	if err := h.Store.DeleteEnrollment(r.Context(), quota.EnrollmentID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Enrollment deleted"})
}

// RecordRefill patches the latest refill date. An empty or missing date
// means the refill happened on the request's as-of date.
func (h *Handler) RecordRefill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment id", err)
		return
	}
	// The body is optional: an empty PATCH records a refill as of today.
	var req RefillRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && decodeErr != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", decodeErr)
		return
	}

	refill := quota.AsOfDate(r.Context())
	if req.LatestRefillDate != "" {
		refill, err = quota.ParseDate(req.LatestRefillDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid refill date", err)
			return
		}
	}

	e, err := h.Store.PatchRefillDate(r.Context(), quota.EnrollmentID(id), refill)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.enrollmentDTO(r, e))
}

func (h *Handler) DeactivateEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment id", err)
		return
	}
	e, err := h.Store.DeactivateEnrollment(r.Context(), quota.EnrollmentID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.enrollmentDTO(r, e))
}

// MoveToDefaulter deactivates the enrollment and stamps the remarks so the
// quota slot is freed while the record stays visible in history.
func (h *Handler) MoveToDefaulter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment id", err)
		return
	}
	enrollmentID := quota.EnrollmentID(id)

	e, err := h.Store.GetEnrollment(r.Context(), enrollmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	remarks := e.Remarks
	note := "Moved to defaulter list on " + quota.AsOfDate(r.Context()).String()
	if remarks != "" {
		remarks += "; " + note
	} else {
		remarks = note
	}

	updated, err := h.Store.UpdateEnrollment(r.Context(), enrollmentID, enrollmentToInput(e, false, remarks))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.enrollmentDTO(r, updated))
}

// enrollmentToInput rebuilds the write input from a stored record so a
// single field can change without losing the rest.
func enrollmentToInput(e quota.Enrollment, active bool, remarks string) quota.EnrollmentInput {
	in := quota.EnrollmentInput{
		PatientID:             e.PatientID,
		DrugID:                e.DrugID,
		DosePerDay:            e.DosePerDay,
		PrescriptionStartDate: e.PrescriptionStartDate.String(),
		SPUB:                  e.SPUB,
		IsActive:              active,
		Remarks:               remarks,
	}
	if e.PrescriptionEndDate != nil {
		s := e.PrescriptionEndDate.String()
		in.PrescriptionEndDate = &s
	}
	if e.LatestRefillDate != nil {
		s := e.LatestRefillDate.String()
		in.LatestRefillDate = &s
	}
	if e.CostPerDay != nil {
		s := e.CostPerDay.String()
		in.CostPerDay = &s
	}
	return in
}

func (h *Handler) PotentialDefaulters(w http.ResponseWriter, r *http.Request) {
	deptID, ok := departmentFilter(w, r)
	if !ok {
		return
	}
	rows, err := h.Reports.Defaulters(r.Context(), report.Filters{DepartmentID: deptID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// reportFilters reads the common report query vocabulary. The cost window
// comes from start_date/end_date when given (both required together, end
// not before start); a bare year maps to that calendar year.
func (h *Handler) reportFilters(w http.ResponseWriter, r *http.Request) (report.Filters, bool) {
	deptID, ok := departmentFilter(w, r)
	if !ok {
		return report.Filters{}, false
	}
	filters := report.Filters{DepartmentID: deptID}

	startStr := r.URL.Query().Get("start_date")
	endStr := r.URL.Query().Get("end_date")
	switch {
	case startStr != "" || endStr != "":
		if startStr == "" || endStr == "" {
			writeError(w, http.StatusBadRequest, "Invalid date range",
				quota.NewValidationError("start_date", "start_date and end_date must be given together"))
			return report.Filters{}, false
		}
		start, err := quota.ParseDate(startStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return report.Filters{}, false
		}
		end, err := quota.ParseDate(endStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return report.Filters{}, false
		}
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "Invalid date range",
				quota.NewValidationError("end_date", "end date cannot be before start date"))
			return report.Filters{}, false
		}
		filters.DateRange = &quota.DateRange{Start: start, End: end}
	case r.URL.Query().Get("year") != "":
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return report.Filters{}, false
		}
		window := quota.CalendarYear(year)
		filters.DateRange = &window
	}
	return filters, true
}

func (h *Handler) CostAnalysisReport(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.reportFilters(w, r)
	if !ok {
		return
	}
	rows, err := h.Reports.CostAnalysis(r.Context(), filters)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) QuotaUtilizationReport(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.reportFilters(w, r)
	if !ok {
		return
	}
	rows, err := h.Reports.QuotaUtilization(r.Context(), filters)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) DefaultersReport(w http.ResponseWriter, r *http.Request) {
	h.PotentialDefaulters(w, r)
}

func (h *Handler) YearlyCostsReport(w http.ResponseWriter, r *http.Request) {
	deptID, ok := departmentFilter(w, r)
	if !ok {
		return
	}
	year := quota.AsOfDate(r.Context()).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = n
	}
	rep, err := h.Reports.YearlyCosts(r.Context(), year, deptID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) DashboardReport(w http.ResponseWriter, r *http.Request) {
	dash, err := h.Reports.BuildDashboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// ExportReport hands the computed rows of the requested report to the
// client-side spreadsheet exporter. Serialization to a workbook happens on
// the other side of the wire.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.reportFilters(w, r)
	if !ok {
		return
	}
	reportType := report.ExportType(r.URL.Query().Get("report_type"))
	if reportType == "" {
		reportType = report.ExportAllEnrollments
	}
	table, err := h.Reports.ExportRows(r.Context(), reportType, filters)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

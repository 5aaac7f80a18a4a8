/*
Package sqlite provides the SQLite-backed implementation of the persistence
collaborator.

PURPOSE:
  Implements quota.Store (Reader + Writer) using SQLite. The same patterns
  apply to PostgreSQL in production - only minor SQL dialect differences.

INVARIANT ENFORCEMENT:
  The at-most-one-active-enrollment-per-(patient, drug) invariant lives in
  the database as a partial unique index:

    idx_unique_active_enrollment ON enrollments(patient_id, drug_id)
      WHERE is_active = 1

  A violation is translated into quota.ErrConflict. The application never
  relies on a check-then-write pre-check, so the invariant holds under
  concurrent writers.

KEY TABLES:
  departments:  report grouping dimension
  drugs:        quota ceiling + unit price, FK to department (CASCADE)
  patients:     names uppercased on write, unique IC number
  enrollments:  FKs to patient and drug (CASCADE), ISO dates as TEXT

CASCADES:
  Deleting a department removes its drugs and their enrollments; deleting a
  drug or patient removes dependent enrollments. Deactivation (is_active=0)
  is the preferred retirement path so history survives for cost reports.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/quota.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - quota/store.go: interface definitions
  - report: consumes the Reader side
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/quota-engine/quota"
)

// Store implements quota.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ quota.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL DEFAULT (date('now'))
	);

	CREATE TABLE IF NOT EXISTS drugs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		department_id INTEGER NOT NULL REFERENCES departments(id) ON DELETE CASCADE,
		quota_number INTEGER NOT NULL DEFAULT 0 CHECK (quota_number >= 0),
		price TEXT NOT NULL DEFAULT '0',
		calculation_method TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (date('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_drugs_department ON drugs(department_id);

	CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		ic_number TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL DEFAULT (date('now'))
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		drug_id INTEGER NOT NULL REFERENCES drugs(id) ON DELETE CASCADE,
		dose_per_day TEXT NOT NULL DEFAULT '',
		prescription_start_date TEXT NOT NULL,
		prescription_end_date TEXT,
		latest_refill_date TEXT,
		spub INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		cost_per_day TEXT,
		remarks TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (date('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_drug ON enrollments(drug_id);
	CREATE INDEX IF NOT EXISTS idx_enrollments_patient ON enrollments(patient_id);
	CREATE INDEX IF NOT EXISTS idx_enrollments_refill ON enrollments(latest_refill_date);

	-- CRITICAL: at most one ACTIVE enrollment per (patient, drug) pair.
	-- This index, not an application pre-check, is the source of truth for
	-- duplicate-active-enrollment conflicts.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_enrollment
		ON enrollments(patient_id, drug_id)
		WHERE is_active = 1;
	`

	_, err := s.db.Exec(schema)
	return err
}

// isUniqueConstraintError reports whether err is a SQLite uniqueness
// violation. Matched on the error text so this file does not depend on the
// driver's error types directly.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isActiveEnrollmentConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "enrollments.patient_id, enrollments.drug_id")
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func scanDate(s string) (quota.Date, error) {
	return quota.ParseDate(s)
}

func scanDatePtr(ns sql.NullString) (*quota.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := quota.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func dateArg(d quota.Date) string { return d.String() }

func datePtrArg(d *quota.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalPtrArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func scanDecimalPtr(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d := scanDecimal(ns.String)
	return &d
}

// =============================================================================
// DEPARTMENTS
// =============================================================================

func (s *Store) ListDepartments(ctx context.Context) ([]quota.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var departments []quota.Department
	for rows.Next() {
		var d quota.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func (s *Store) GetDepartment(ctx context.Context, id quota.DepartmentID) (quota.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d quota.Department
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM departments WHERE id = ?`, id).
		Scan(&d.ID, &d.Name)
	if err == sql.ErrNoRows {
		return quota.Department{}, &quota.NotFoundError{Entity: "department", ID: int64(id)}
	}
	if err != nil {
		return quota.Department{}, fmt.Errorf("failed to get department: %w", err)
	}
	return d, nil
}

func (s *Store) CreateDepartment(ctx context.Context, name string) (quota.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return quota.Department{}, quota.NewValidationError("name", "department name is required")
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO departments (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueConstraintError(err) {
			return quota.Department{}, quota.NewValidationError("name", "department already exists")
		}
		return quota.Department{}, fmt.Errorf("failed to create department: %w", err)
	}
	id, _ := res.LastInsertId()
	return quota.Department{ID: quota.DepartmentID(id), Name: name}, nil
}

func (s *Store) UpdateDepartment(ctx context.Context, id quota.DepartmentID, name string) (quota.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return quota.Department{}, quota.NewValidationError("name", "department name is required")
	}

	res, err := s.db.ExecContext(ctx, `UPDATE departments SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return quota.Department{}, fmt.Errorf("failed to update department: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quota.Department{}, &quota.NotFoundError{Entity: "department", ID: int64(id)}
	}
	return quota.Department{ID: id, Name: name}, nil
}

func (s *Store) DeleteDepartment(ctx context.Context, id quota.DepartmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.NotFoundError{Entity: "department", ID: int64(id)}
	}
	return nil
}

// =============================================================================
// DRUGS
// =============================================================================

const drugColumns = `d.id, d.name, d.department_id, dep.name, d.quota_number, d.price, d.calculation_method, d.remarks`

const drugJoins = `
	FROM drugs d
	JOIN departments dep ON dep.id = d.department_id`

func scanDrug(scanner interface{ Scan(...any) error }) (quota.Drug, error) {
	var d quota.Drug
	var price, method string
	if err := scanner.Scan(&d.ID, &d.Name, &d.DepartmentID, &d.DepartmentName, &d.QuotaNumber, &price, &method, &d.Remarks); err != nil {
		return quota.Drug{}, err
	}
	d.Price = scanDecimal(price)
	d.CalculationMethod = quota.CalculationMethod(method)
	return d, nil
}

func (s *Store) ListDrugs(ctx context.Context, filter quota.DrugFilter) ([]quota.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + drugColumns + drugJoins
	var args []any
	if filter.DepartmentID != nil {
		query += ` WHERE d.department_id = ?`
		args = append(args, *filter.DepartmentID)
	}
	query += ` ORDER BY dep.name, d.name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drugs: %w", err)
	}
	defer rows.Close()

	var drugs []quota.Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, err
		}
		drugs = append(drugs, d)
	}
	return drugs, rows.Err()
}

func (s *Store) GetDrug(ctx context.Context, id quota.DrugID) (quota.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getDrug(ctx, id)
}

func (s *Store) getDrug(ctx context.Context, id quota.DrugID) (quota.Drug, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+drugColumns+drugJoins+` WHERE d.id = ?`, id)
	d, err := scanDrug(row)
	if err == sql.ErrNoRows {
		return quota.Drug{}, &quota.NotFoundError{Entity: "drug", ID: int64(id)}
	}
	if err != nil {
		return quota.Drug{}, fmt.Errorf("failed to get drug: %w", err)
	}
	return d, nil
}

func (s *Store) CreateDrug(ctx context.Context, in quota.DrugInput) (quota.Drug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := in.Validate(); err != nil {
		return quota.Drug{}, err
	}
	price, err := parsePrice(in.Price)
	if err != nil {
		return quota.Drug{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drugs (name, department_id, quota_number, price, calculation_method, remarks)
		VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.Name), in.DepartmentID, in.QuotaNumber, price.String(), string(in.CalculationMethod), in.Remarks)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return quota.Drug{}, &quota.NotFoundError{Entity: "department", ID: int64(in.DepartmentID)}
		}
		return quota.Drug{}, fmt.Errorf("failed to create drug: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getDrug(ctx, quota.DrugID(id))
}

func (s *Store) UpdateDrug(ctx context.Context, id quota.DrugID, in quota.DrugInput) (quota.Drug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := in.Validate(); err != nil {
		return quota.Drug{}, err
	}
	price, err := parsePrice(in.Price)
	if err != nil {
		return quota.Drug{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE drugs SET name = ?, department_id = ?, quota_number = ?, price = ?, calculation_method = ?, remarks = ?
		WHERE id = ?`,
		strings.TrimSpace(in.Name), in.DepartmentID, in.QuotaNumber, price.String(), string(in.CalculationMethod), in.Remarks, id)
	if err != nil {
		return quota.Drug{}, fmt.Errorf("failed to update drug: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quota.Drug{}, &quota.NotFoundError{Entity: "drug", ID: int64(id)}
	}
	return s.getDrug(ctx, id)
}

func (s *Store) DeleteDrug(ctx context.Context, id quota.DrugID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM drugs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete drug: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.NotFoundError{Entity: "drug", ID: int64(id)}
	}
	return nil
}

func parsePrice(price string) (decimal.Decimal, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, quota.NewValidationError("price", "invalid price")
	}
	if d.IsNegative() {
		return decimal.Zero, quota.NewValidationError("price", "price cannot be negative")
	}
	return d, nil
}

// =============================================================================
// PATIENTS
// =============================================================================

func scanPatient(scanner interface{ Scan(...any) error }) (quota.Patient, error) {
	var p quota.Patient
	var created string
	if err := scanner.Scan(&p.ID, &p.Name, &p.ICNumber, &created); err != nil {
		return quota.Patient{}, err
	}
	d, err := scanDate(created)
	if err != nil {
		return quota.Patient{}, err
	}
	p.CreatedAt = d
	return p, nil
}

func (s *Store) ListPatients(ctx context.Context, searchTerm string) ([]quota.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, ic_number, created_at FROM patients`
	var args []any
	if term := strings.TrimSpace(searchTerm); term != "" {
		// Names are stored uppercase; IC comparison is case-insensitive too.
		query += ` WHERE name LIKE ? OR UPPER(ic_number) LIKE ?`
		like := "%" + strings.ToUpper(term) + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []quota.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (s *Store) GetPatient(ctx context.Context, id quota.PatientID) (quota.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getPatient(ctx, id)
}

func (s *Store) getPatient(ctx context.Context, id quota.PatientID) (quota.Patient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, ic_number, created_at FROM patients WHERE id = ?`, id)
	p, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return quota.Patient{}, &quota.NotFoundError{Entity: "patient", ID: int64(id)}
	}
	if err != nil {
		return quota.Patient{}, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}

func (s *Store) CreatePatient(ctx context.Context, in quota.PatientInput) (quota.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := in.Validate(); err != nil {
		return quota.Patient{}, err
	}

	// Names are normalized to uppercase on write.
	name := strings.ToUpper(strings.TrimSpace(in.Name))
	ic := strings.TrimSpace(in.ICNumber)

	res, err := s.db.ExecContext(ctx, `INSERT INTO patients (name, ic_number) VALUES (?, ?)`, name, ic)
	if err != nil {
		if isUniqueConstraintError(err) {
			return quota.Patient{}, quota.NewValidationError("ic_number", "a patient with this IC number already exists")
		}
		return quota.Patient{}, fmt.Errorf("failed to create patient: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getPatient(ctx, quota.PatientID(id))
}

func (s *Store) UpdatePatient(ctx context.Context, id quota.PatientID, in quota.PatientInput) (quota.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := in.Validate(); err != nil {
		return quota.Patient{}, err
	}

	name := strings.ToUpper(strings.TrimSpace(in.Name))
	ic := strings.TrimSpace(in.ICNumber)

	res, err := s.db.ExecContext(ctx, `UPDATE patients SET name = ?, ic_number = ? WHERE id = ?`, name, ic, id)
	if err != nil {
		if isUniqueConstraintError(err) {
			return quota.Patient{}, quota.NewValidationError("ic_number", "a patient with this IC number already exists")
		}
		return quota.Patient{}, fmt.Errorf("failed to update patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quota.Patient{}, &quota.NotFoundError{Entity: "patient", ID: int64(id)}
	}
	return s.getPatient(ctx, id)
}

func (s *Store) DeletePatient(ctx context.Context, id quota.PatientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.NotFoundError{Entity: "patient", ID: int64(id)}
	}
	return nil
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

const enrollmentColumns = `e.id, e.patient_id, e.drug_id, e.dose_per_day,
	e.prescription_start_date, e.prescription_end_date, e.latest_refill_date,
	e.spub, e.is_active, e.cost_per_day, e.remarks,
	p.name, p.ic_number, d.name, d.department_id, dep.name`

const enrollmentJoins = `
	FROM enrollments e
	JOIN patients p ON p.id = e.patient_id
	JOIN drugs d ON d.id = e.drug_id
	JOIN departments dep ON dep.id = d.department_id`

func scanEnrollment(scanner interface{ Scan(...any) error }) (quota.Enrollment, error) {
	var e quota.Enrollment
	var start string
	var end, refill, cost sql.NullString
	err := scanner.Scan(&e.ID, &e.PatientID, &e.DrugID, &e.DosePerDay,
		&start, &end, &refill,
		&e.SPUB, &e.IsActive, &cost, &e.Remarks,
		&e.PatientName, &e.ICNumber, &e.DrugName, &e.DepartmentID, &e.DepartmentName)
	if err != nil {
		return quota.Enrollment{}, err
	}

	if e.PrescriptionStartDate, err = scanDate(start); err != nil {
		return quota.Enrollment{}, err
	}
	if e.PrescriptionEndDate, err = scanDatePtr(end); err != nil {
		return quota.Enrollment{}, err
	}
	if e.LatestRefillDate, err = scanDatePtr(refill); err != nil {
		return quota.Enrollment{}, err
	}
	e.CostPerDay = scanDecimalPtr(cost)
	return e, nil
}

func (s *Store) ListEnrollments(ctx context.Context, filter quota.EnrollmentFilter) ([]quota.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + enrollmentColumns + enrollmentJoins
	var where []string
	var args []any

	if filter.DrugID != nil {
		where = append(where, `e.drug_id = ?`)
		args = append(args, *filter.DrugID)
	}
	if filter.PatientID != nil {
		where = append(where, `e.patient_id = ?`)
		args = append(args, *filter.PatientID)
	}
	if filter.DepartmentID != nil {
		where = append(where, `d.department_id = ?`)
		args = append(args, *filter.DepartmentID)
	}
	if filter.ActiveOnly {
		where = append(where, `e.is_active = 1`)
	}
	if filter.From != nil {
		where = append(where, `e.prescription_start_date >= ?`)
		args = append(args, dateArg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, `e.prescription_start_date <= ?`)
		args = append(args, dateArg(*filter.To))
	}

	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY p.name, d.name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []quota.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

func (s *Store) GetEnrollment(ctx context.Context, id quota.EnrollmentID) (quota.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getEnrollment(ctx, id)
}

func (s *Store) getEnrollment(ctx context.Context, id quota.EnrollmentID) (quota.Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+enrollmentColumns+enrollmentJoins+` WHERE e.id = ?`, id)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return quota.Enrollment{}, &quota.NotFoundError{Entity: "enrollment", ID: int64(id)}
	}
	if err != nil {
		return quota.Enrollment{}, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

func (s *Store) CreateEnrollment(ctx context.Context, in quota.EnrollmentInput) (quota.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := in.Normalize()
	if err != nil {
		return quota.Enrollment{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments
		(patient_id, drug_id, dose_per_day, prescription_start_date, prescription_end_date,
		 latest_refill_date, spub, is_active, cost_per_day, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PatientID, e.DrugID, e.DosePerDay,
		dateArg(e.PrescriptionStartDate), datePtrArg(e.PrescriptionEndDate),
		datePtrArg(e.LatestRefillDate), e.SPUB, e.IsActive,
		decimalPtrArg(e.CostPerDay), e.Remarks)
	if err != nil {
		if isActiveEnrollmentConstraint(err) {
			return quota.Enrollment{}, &quota.ConflictError{PatientID: e.PatientID, DrugID: e.DrugID}
		}
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return quota.Enrollment{}, fmt.Errorf("referenced patient or drug missing: %w", quota.ErrNotFound)
		}
		return quota.Enrollment{}, fmt.Errorf("failed to create enrollment: %w", err)
	}

	id, _ := res.LastInsertId()
	return s.getEnrollment(ctx, quota.EnrollmentID(id))
}

func (s *Store) UpdateEnrollment(ctx context.Context, id quota.EnrollmentID, in quota.EnrollmentInput) (quota.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := in.Normalize()
	if err != nil {
		return quota.Enrollment{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET
			patient_id = ?, drug_id = ?, dose_per_day = ?,
			prescription_start_date = ?, prescription_end_date = ?, latest_refill_date = ?,
			spub = ?, is_active = ?, cost_per_day = ?, remarks = ?
		WHERE id = ?`,
		e.PatientID, e.DrugID, e.DosePerDay,
		dateArg(e.PrescriptionStartDate), datePtrArg(e.PrescriptionEndDate), datePtrArg(e.LatestRefillDate),
		e.SPUB, e.IsActive, decimalPtrArg(e.CostPerDay), e.Remarks, id)
	if err != nil {
		if isActiveEnrollmentConstraint(err) {
			return quota.Enrollment{}, &quota.ConflictError{PatientID: e.PatientID, DrugID: e.DrugID}
		}
		return quota.Enrollment{}, fmt.Errorf("failed to update enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quota.Enrollment{}, &quota.NotFoundError{Entity: "enrollment", ID: int64(id)}
	}
	return s.getEnrollment(ctx, id)
}

func (s *Store) PatchRefillDate(ctx context.Context, id quota.EnrollmentID, refillDate quota.Date) (quota.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET latest_refill_date = ? WHERE id = ?`, dateArg(refillDate), id)
	if err != nil {
		return quota.Enrollment{}, fmt.Errorf("failed to update refill date: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quota.Enrollment{}, &quota.NotFoundError{Entity: "enrollment", ID: int64(id)}
	}
	return s.getEnrollment(ctx, id)
}

func (s *Store) DeactivateEnrollment(ctx context.Context, id quota.EnrollmentID) (quota.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE enrollments SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return quota.Enrollment{}, fmt.Errorf("failed to deactivate enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quota.Enrollment{}, &quota.NotFoundError{Entity: "enrollment", ID: int64(id)}
	}
	return s.getEnrollment(ctx, id)
}

func (s *Store) DeleteEnrollment(ctx context.Context, id quota.EnrollmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.NotFoundError{Entity: "enrollment", ID: int64(id)}
	}
	return nil
}

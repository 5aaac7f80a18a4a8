/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. AsOf:       Installs a single as-of date per request so every derived
                 value (compliance, period costs) sees the same day

ROUTE GROUPS:
  /api/departments/*    Department CRUD + summary
  /api/drugs/*          Drug CRUD + quota status
  /api/patients/*       Patient CRUD + search + enrollment history
  /api/enrollments/*    Enrollment lifecycle + defaulter views
  /api/reports/*        Aggregated reports + export rows
  /api/admin/*          Demo seed

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/quota-engine/quota"
)

// asOfMiddleware installs the request's as-of date into the context. An
// explicit as_of query parameter (ISO date) overrides today, which keeps
// report output reproducible in tests and demos.
func asOfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		asOf := quota.Today()
		if v := r.URL.Query().Get("as_of"); v != "" {
			d, err := quota.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
				return
			}
			asOf = d
		}
		next.ServeHTTP(w, r.WithContext(quota.WithAsOf(r.Context(), asOf)))
	})
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(asOfMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Department routes
		r.Route("/departments", func(r chi.Router) {
			r.Get("/", h.ListDepartments)
			r.Post("/", h.CreateDepartment)
			r.Get("/{id}", h.GetDepartment)
			r.Put("/{id}", h.UpdateDepartment)
			r.Delete("/{id}", h.DeleteDepartment)
			r.Get("/{id}/summary", h.DepartmentSummary)
		})

		// Drug routes
		r.Route("/drugs", func(r chi.Router) {
			r.Get("/", h.ListDrugs)
			r.Post("/", h.CreateDrug)
			r.Get("/{id}", h.GetDrug)
			r.Put("/{id}", h.UpdateDrug)
			r.Delete("/{id}", h.DeleteDrug)
			r.Get("/{id}/quota-status", h.DrugQuotaStatus)
		})

		// Patient routes
		r.Route("/patients", func(r chi.Router) {
			r.Get("/", h.ListPatients)
			r.Post("/", h.CreatePatient)
			r.Get("/{id}", h.GetPatient)
			r.Put("/{id}", h.UpdatePatient)
			r.Delete("/{id}", h.DeletePatient)
			r.Get("/{id}/enrollments", h.PatientEnrollments)
		})

		// Enrollment routes. The fixed-path routes must be registered
		// before /{id} so chi does not swallow them as ids.
		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", h.ListEnrollments)
			r.Post("/", h.CreateEnrollment)
			r.Get("/defaulters/potential", h.PotentialDefaulters)
			r.Get("/reports/yearly-costs", h.YearlyCostsReport)
			r.Get("/{id}", h.GetEnrollment)
			r.Put("/{id}", h.UpdateEnrollment)
			r.Delete("/{id}", h.DeleteEnrollment)
			r.Patch("/{id}/refill", h.RecordRefill)
			r.Patch("/{id}/deactivate", h.DeactivateEnrollment)
			r.Post("/{id}/move-to-defaulter", h.MoveToDefaulter)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/cost-analysis", h.CostAnalysisReport)
			r.Get("/quota-utilization", h.QuotaUtilizationReport)
			r.Get("/defaulters", h.DefaultersReport)
			r.Get("/dashboard", h.DashboardReport)
			r.Get("/export/excel", h.ExportReport)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.SeedDemoData)
		})
	})

	return r
}

// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"net/http"

	"github.com/d9705996/checkin/internal/api/handler"
	"github.com/d9705996/checkin/internal/api/middleware"
	"github.com/d9705996/checkin/internal/authz"
	"github.com/d9705996/checkin/internal/health"
)

// Handlers bundles the route handlers RegisterRoutes wires up.
type Handlers struct {
	Health       *health.Handler
	Auth         *handler.AuthHandler
	Onboarding   *handler.OnboardingHandler
	Employee     *handler.EmployeeHandler
	Document     *handler.DocumentHandler
	Application  *handler.ApplicationHandler
	Notification *handler.NotificationHandler
}

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, h Handlers, jwtSecret string) {
	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /api/v1/health", h.Health.ServeHealth)
	mux.HandleFunc("GET /api/v1/ready", h.Health.ServeReady)

	// Auth endpoints (no auth required)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Auth.Logout)

	// Public job application intake
	mux.HandleFunc("POST /api/v1/applications", h.Application.Create)

	// Onboarding wizard — the employee authenticates with the session token,
	// not a JWT, because their account is not active yet.
	mux.HandleFunc("POST /api/v1/onboarding/validate-token", h.Onboarding.ValidateToken)
	mux.HandleFunc("POST /api/v1/onboarding/start", h.Onboarding.Start)
	mux.HandleFunc("PUT /api/v1/onboarding/sessions/{id}", h.Onboarding.UpdateSession)
	mux.HandleFunc("POST /api/v1/onboarding/sessions/{id}/forms", h.Onboarding.SubmitForms)
	mux.HandleFunc("POST /api/v1/onboarding/sessions/{id}/signature", h.Onboarding.Sign)

	// Session read accepts either a staff JWT or the session token.
	optional := middleware.OptionalAuth(jwtSecret)
	mux.Handle("GET /api/v1/onboarding/sessions/{id}",
		optional(http.HandlerFunc(h.Onboarding.GetSession)))

	// Auth-required routes — wrap with RequireAuth middleware.
	protected := func(action authz.Action, fn http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(jwtSecret)(middleware.RequireAction(action)(fn))
	}

	mux.Handle("POST /api/v1/onboarding/sessions",
		protected(authz.ActionSessionCreate, h.Onboarding.CreateSession))
	mux.Handle("GET /api/v1/onboarding/sessions",
		protected(authz.ActionSessionList, h.Onboarding.ListSessions))
	mux.Handle("GET /api/v1/onboarding/sessions/pending-review",
		protected(authz.ActionSessionReview, h.Onboarding.PendingReviews))
	mux.Handle("POST /api/v1/onboarding/sessions/{id}/approve",
		protected(authz.ActionSessionReview, h.Onboarding.Approve))
	mux.Handle("POST /api/v1/onboarding/sessions/{id}/reject",
		protected(authz.ActionSessionReview, h.Onboarding.Reject))
	mux.Handle("POST /api/v1/onboarding/sessions/{id}/review",
		protected(authz.ActionSessionReview, h.Onboarding.Review))
	mux.Handle("POST /api/v1/onboarding/sessions/{id}/extend",
		protected(authz.ActionSessionExtend, h.Onboarding.Extend))
	mux.Handle("POST /api/v1/onboarding/sessions/{id}/cancel",
		protected(authz.ActionSessionCancel, h.Onboarding.Cancel))
	mux.Handle("POST /api/v1/onboarding/sweep-expired",
		protected(authz.ActionSessionSweep, h.Onboarding.SweepExpired))

	mux.Handle("GET /api/v1/employees",
		protected(authz.ActionEmployeeRead, h.Employee.List))
	mux.Handle("POST /api/v1/employees",
		protected(authz.ActionEmployeeWrite, h.Employee.Create))
	mux.Handle("GET /api/v1/employees/{id}",
		protected(authz.ActionEmployeeRead, h.Employee.Get))
	mux.Handle("PUT /api/v1/employees/{id}",
		protected(authz.ActionEmployeeWrite, h.Employee.Update))
	mux.Handle("POST /api/v1/employees/{id}/terminate",
		protected(authz.ActionEmployeeTerminate, h.Employee.Terminate))

	mux.Handle("GET /api/v1/employees/{id}/documents",
		protected(authz.ActionDocumentRead, h.Document.List))
	mux.Handle("POST /api/v1/employees/{id}/documents",
		protected(authz.ActionDocumentWrite, h.Document.Upload))
	mux.Handle("POST /api/v1/documents/{id}/sign",
		protected(authz.ActionDocumentWrite, h.Document.Sign))

	mux.Handle("GET /api/v1/applications",
		protected(authz.ActionApplicationList, h.Application.List))
	mux.Handle("POST /api/v1/applications/{id}/decide",
		protected(authz.ActionApplicationReview, h.Application.Decide))

	requireAuth := middleware.RequireAuth(jwtSecret)
	mux.Handle("GET /api/v1/notifications",
		requireAuth(http.HandlerFunc(h.Notification.List)))
	mux.Handle("POST /api/v1/notifications/{id}/read",
		requireAuth(http.HandlerFunc(h.Notification.MarkRead)))
	mux.Handle("POST /api/v1/announcements",
		protected(authz.ActionAnnouncementSend, h.Notification.Announce))

	// Catch-all 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}

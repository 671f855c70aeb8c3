// Package handler contains HTTP handlers grouped by resource.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/d9705996/checkin/internal/api/jsonapi"
	"github.com/d9705996/checkin/internal/authz"
	"github.com/d9705996/checkin/internal/model"
	"github.com/d9705996/checkin/internal/notify"
	"github.com/d9705996/checkin/internal/onboarding"
	"gorm.io/gorm"
)

// renderDomainError translates domain sentinels into JSON:API error
// responses. Anything unrecognised becomes a generic 500 without leaking
// internals.
func renderDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, onboarding.ErrNotFound),
		errors.Is(err, notify.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		jsonapi.RenderError(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, onboarding.ErrValidation):
		jsonapi.RenderError(w, http.StatusBadRequest, "validation_error", "Bad Request", err.Error())
	case errors.Is(err, onboarding.ErrInvalidTransition):
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_transition", "Bad Request", err.Error())
	case errors.Is(err, onboarding.ErrActiveSessionExists):
		jsonapi.RenderError(w, http.StatusConflict, "active_session_exists", "Conflict", err.Error())
	case errors.Is(err, onboarding.ErrStaleSession):
		jsonapi.RenderError(w, http.StatusConflict, "stale_write", "Conflict", err.Error())
	case errors.Is(err, authz.ErrUnauthenticated):
		jsonapi.RenderError(w, http.StatusUnauthorized, "missing_token", "Unauthorized", err.Error())
	case errors.Is(err, authz.ErrForbidden):
		jsonapi.RenderError(w, http.StatusForbidden, "forbidden", "Forbidden", err.Error())
	default:
		jsonapi.RenderError(w, http.StatusInternalServerError,
			"internal_error", "Internal Server Error", "an unexpected error occurred")
	}
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryTime parses an RFC 3339 query parameter; zero time when absent/bad.
func queryTime(r *http.Request, key string) time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sessionResource shapes an onboarding session for API responses.
func sessionResource(s *model.OnboardingSession) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type:       "onboarding_session",
		ID:         s.ID,
		Attributes: sessionAttrs(s),
		Relationships: map[string]jsonapi.Relationship{
			"employee": {Data: map[string]string{"type": "employee", "id": s.EmployeeID}},
		},
	}
}

func sessionAttrs(s *model.OnboardingSession) map[string]any {
	return map[string]any{
		"employee_id":         s.EmployeeID,
		"token":               s.Token,
		"status":              s.Status,
		"current_step":        s.CurrentStep,
		"form_data":           s.FormData,
		"form_version":        s.FormVersion,
		"language_preference": s.LanguagePreference,
		"expires_at":          s.ExpiresAt,
		"completed_at":        s.CompletedAt,
		"created_at":          s.CreatedAt,
		"updated_at":          s.UpdatedAt,
	}
}

// sessionScope extracts the org/owner pair for authorization checks.
func sessionScope(s *model.OnboardingSession) authz.Resource {
	res := authz.Resource{}
	if s.Employee != nil {
		res.OwnerUserID = s.Employee.UserID
		if s.Employee.User != nil && s.Employee.User.OrganizationID != nil {
			res.OrganizationID = *s.Employee.User.OrganizationID
		}
	}
	return res
}

func employeeResource(e *model.Employee) jsonapi.ResourceObject {
	attrs := map[string]any{
		"user_id":            e.UserID,
		"position":           e.Position,
		"hire_date":          e.HireDate,
		"activated_at":       e.ActivatedAt,
		"terminated_at":      e.TerminatedAt,
		"termination_reason": e.TerminationReason,
		"created_at":         e.CreatedAt,
		"updated_at":         e.UpdatedAt,
	}
	if e.User != nil {
		attrs["email"] = e.User.Email
		attrs["name"] = e.User.Name
		if e.User.OrganizationID != nil {
			attrs["organization_id"] = *e.User.OrganizationID
		}
	}
	return jsonapi.ResourceObject{Type: "employee", ID: e.ID, Attributes: attrs}
}

func documentResource(d *model.Document) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "document",
		ID:   d.ID,
		Attributes: map[string]any{
			"employee_id":    d.EmployeeID,
			"document_type":  d.DocumentType,
			"file_path":      d.FilePath,
			"version":        d.Version,
			"is_signed":      d.IsSigned,
			"signed_at":      d.SignedAt,
			"signature_data": d.SignatureData,
			"created_at":     d.CreatedAt,
		},
	}
}

func applicationResource(a *model.JobApplication) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "job_application",
		ID:   a.ID,
		Attributes: map[string]any{
			"organization_id": a.OrganizationID,
			"full_name":       a.FullName,
			"email":           a.Email,
			"phone":           a.Phone,
			"position":        a.Position,
			"cover_note":      a.CoverNote,
			"status":          a.Status,
			"decided_by":      a.DecidedBy,
			"decided_at":      a.DecidedAt,
			"created_at":      a.CreatedAt,
		},
	}
}

func notificationResource(n *model.Notification) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "notification",
		ID:   n.ID,
		Attributes: map[string]any{
			"type":       n.Type,
			"title":      n.Title,
			"content":    n.Content,
			"priority":   n.Priority,
			"data":       n.Data,
			"read_at":    n.ReadAt,
			"created_at": n.CreatedAt,
		},
	}
}

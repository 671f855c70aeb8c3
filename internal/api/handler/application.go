package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/d9705996/checkin/internal/api/jsonapi"
	"github.com/d9705996/checkin/internal/api/middleware"
	"github.com/d9705996/checkin/internal/authz"
	"github.com/d9705996/checkin/internal/model"
	"gorm.io/gorm"
)

// ApplicationHandler serves the job application endpoints. Submission is
// public (applicants have no account); review is staff-only.
type ApplicationHandler struct {
	db *gorm.DB
}

// NewApplicationHandler creates an ApplicationHandler.
func NewApplicationHandler(db *gorm.DB) *ApplicationHandler {
	return &ApplicationHandler{db: db}
}

// Create handles POST /api/v1/applications. Public.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizationID string `json:"organization_id"`
		FullName       string `json:"full_name"`
		Email          string `json:"email"`
		Phone          string `json:"phone"`
		Position       string `json:"position"`
		CoverNote      string `json:"cover_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}
	if req.OrganizationID == "" || req.FullName == "" || req.Email == "" || req.Position == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity,
			"missing_field", "Unprocessable Entity",
			"organization_id, full_name, email and position are required")
		return
	}

	// The org must exist; otherwise spam lands against made-up tenants.
	var org model.Organization
	if err := h.db.WithContext(r.Context()).
		First(&org, "id = ?", req.OrganizationID).Error; err != nil {
		renderDomainError(w, err)
		return
	}

	app := model.JobApplication{
		OrganizationID: req.OrganizationID,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Position:       req.Position,
		CoverNote:      req.CoverNote,
		Status:         model.ApplicationPending,
	}
	if err := h.db.WithContext(r.Context()).Create(&app).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, applicationResource(&app))
}

// List handles GET /api/v1/applications. Managers see their own org only.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	q := h.db.WithContext(r.Context()).Model(&model.JobApplication{})
	switch authz.MaxScope(claims, authz.ActionApplicationList) {
	case authz.ScopeGlobal:
		if org := r.URL.Query().Get("organization_id"); org != "" {
			q = q.Where("organization_id = ?", org)
		}
	case authz.ScopeOrganization:
		if claims.OrganizationID == "" {
			renderDomainError(w, authz.ErrForbidden)
			return
		}
		q = q.Where("organization_id = ?", claims.OrganizationID)
	default:
		renderDomainError(w, authz.ErrForbidden)
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		q = q.Where("status = ?", s)
	}

	var apps []model.JobApplication
	if err := q.Order("created_at DESC").Limit(200).Find(&apps).Error; err != nil {
		renderDomainError(w, err)
		return
	}

	data := make([]any, 0, len(apps))
	for i := range apps {
		data = append(data, applicationResource(&apps[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Decide handles POST /api/v1/applications/{id}/decide with a decision of
// accept or reject. Accepting creates the (deactivated) user account and
// employee record in the same transaction; the new hire is then ready for an
// onboarding session.
func (h *ApplicationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var app model.JobApplication
	if err := h.db.WithContext(r.Context()).
		First(&app, "id = ?", r.PathValue("id")).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	if err := authz.Authorize(claims, authz.ActionApplicationReview,
		authz.Resource{OrganizationID: app.OrganizationID}); err != nil {
		renderDomainError(w, err)
		return
	}
	if app.Status != model.ApplicationPending {
		jsonapi.RenderError(w, http.StatusConflict,
			"already_decided", "Conflict", "application has already been decided")
		return
	}

	var req struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	now := time.Now()
	var emp *model.Employee

	switch req.Decision {
	case "accept":
		err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&model.JobApplication{}).
				Where("id = ? AND status = ?", app.ID, model.ApplicationPending).
				Updates(map[string]any{
					"status":     model.ApplicationAccepted,
					"decided_by": claims.UserID,
					"decided_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			u := model.User{
				OrganizationID: &app.OrganizationID,
				Email:          app.Email,
				Name:           app.FullName,
				Roles:          model.StringSlice{model.RoleEmployee},
				DeactivatedAt:  &now, // activated by the final onboarding approval
			}
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
			emp = &model.Employee{
				UserID:   u.ID,
				User:     &u,
				Position: app.Position,
				HireDate: &now,
			}
			return tx.Create(emp).Error
		})
		if err != nil {
			renderDomainError(w, err)
			return
		}

	case "reject":
		err := h.db.WithContext(r.Context()).Model(&model.JobApplication{}).
			Where("id = ?", app.ID).
			Updates(map[string]any{
				"status":     model.ApplicationRejected,
				"decided_by": claims.UserID,
				"decided_at": now,
			}).Error
		if err != nil {
			renderDomainError(w, err)
			return
		}

	default:
		jsonapi.RenderError(w, http.StatusBadRequest,
			"invalid_decision", "Bad Request", "decision must be accept or reject")
		return
	}

	if err := h.db.WithContext(r.Context()).First(&app, "id = ?", app.ID).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	res := applicationResource(&app)
	if emp != nil {
		res.Relationships = map[string]jsonapi.Relationship{
			"employee": {Data: map[string]string{"type": "employee", "id": emp.ID}},
		}
	}
	jsonapi.RenderOne(w, http.StatusOK, res)
}

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

// EmployeeHandler serves the employee CRUD and termination endpoints.
type EmployeeHandler struct {
	db *gorm.DB
}

// NewEmployeeHandler creates an EmployeeHandler.
func NewEmployeeHandler(db *gorm.DB) *EmployeeHandler {
	return &EmployeeHandler{db: db}
}

func employeeScope(e *model.Employee) authz.Resource {
	res := authz.Resource{OwnerUserID: e.UserID}
	if e.User != nil && e.User.OrganizationID != nil {
		res.OrganizationID = *e.User.OrganizationID
	}
	return res
}

// List handles GET /api/v1/employees. Managers only see their own
// organization; the active query param filters out terminated employees.
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	q := h.db.WithContext(r.Context()).Model(&model.Employee{}).
		Joins("JOIN users ON users.id = employees.user_id").
		Preload("User")

	switch authz.MaxScope(claims, authz.ActionEmployeeRead) {
	case authz.ScopeGlobal:
		if org := r.URL.Query().Get("organization_id"); org != "" {
			q = q.Where("users.organization_id = ?", org)
		}
	case authz.ScopeOrganization:
		if claims.OrganizationID == "" {
			renderDomainError(w, authz.ErrForbidden)
			return
		}
		q = q.Where("users.organization_id = ?", claims.OrganizationID)
	default:
		renderDomainError(w, authz.ErrForbidden)
		return
	}

	if v := r.URL.Query().Get("active"); v == "true" || v == "1" {
		q = q.Where("employees.terminated_at IS NULL")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		renderDomainError(w, err)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var employees []model.Employee
	err := q.Order("employees.created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&employees).Error
	if err != nil {
		renderDomainError(w, err)
		return
	}

	data := make([]any, 0, len(employees))
	for i := range employees {
		data = append(data, employeeResource(&employees[i]))
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	jsonapi.RenderList(w, http.StatusOK, data, &jsonapi.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	})
}

// Get handles GET /api/v1/employees/{id}.
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var emp model.Employee
	if err := h.db.WithContext(r.Context()).Preload("User").
		First(&emp, "id = ?", r.PathValue("id")).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	if err := authz.Authorize(claims, authz.ActionEmployeeRead, employeeScope(&emp)); err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, employeeResource(&emp))
}

// Create handles POST /api/v1/employees: creates the user account (starting
// deactivated, pending onboarding approval) and the employee record in one
// transaction.
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req struct {
		Email              string     `json:"email"`
		Name               string     `json:"name"`
		OrganizationID     string     `json:"organization_id"`
		Position           string     `json:"position"`
		HireDate           *time.Time `json:"hire_date"`
		LanguagePreference string     `json:"language_preference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}
	if req.Email == "" || req.Name == "" || req.OrganizationID == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity,
			"missing_field", "Unprocessable Entity", "email, name and organization_id are required")
		return
	}
	if err := authz.Authorize(claims, authz.ActionEmployeeWrite,
		authz.Resource{OrganizationID: req.OrganizationID}); err != nil {
		renderDomainError(w, err)
		return
	}

	lang := req.LanguagePreference
	if lang == "" {
		lang = "en"
	}
	now := time.Now()
	emp := model.Employee{Position: req.Position, HireDate: req.HireDate}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		u := model.User{
			OrganizationID:     &req.OrganizationID,
			Email:              req.Email,
			Name:               req.Name,
			Roles:              model.StringSlice{model.RoleEmployee},
			LanguagePreference: lang,
			DeactivatedAt:      &now,
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		emp.UserID = u.ID
		emp.User = &u
		return tx.Create(&emp).Error
	})
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, employeeResource(&emp))
}

// Update handles PUT /api/v1/employees/{id}: position, hire date and the
// user's display name.
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var emp model.Employee
	if err := h.db.WithContext(r.Context()).Preload("User").
		First(&emp, "id = ?", r.PathValue("id")).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	if err := authz.Authorize(claims, authz.ActionEmployeeWrite, employeeScope(&emp)); err != nil {
		renderDomainError(w, err)
		return
	}

	var req struct {
		Name     *string    `json:"name"`
		Position *string    `json:"position"`
		HireDate *time.Time `json:"hire_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{}
		if req.Position != nil {
			fields["position"] = *req.Position
		}
		if req.HireDate != nil {
			fields["hire_date"] = *req.HireDate
		}
		if len(fields) > 0 {
			if err := tx.Model(&model.Employee{}).Where("id = ?", emp.ID).Updates(fields).Error; err != nil {
				return err
			}
		}
		if req.Name != nil {
			if err := tx.Model(&model.User{}).Where("id = ?", emp.UserID).
				Update("name", *req.Name).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		renderDomainError(w, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Preload("User").
		First(&emp, "id = ?", emp.ID).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, employeeResource(&emp))
}

// Terminate handles POST /api/v1/employees/{id}/terminate: stamps the
// employee record and deactivates the linked user account in one transaction
// so the ex-employee cannot log in with a half-terminated record.
func (h *EmployeeHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var emp model.Employee
	if err := h.db.WithContext(r.Context()).Preload("User").
		First(&emp, "id = ?", r.PathValue("id")).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	if err := authz.Authorize(claims, authz.ActionEmployeeTerminate, employeeScope(&emp)); err != nil {
		renderDomainError(w, err)
		return
	}
	if emp.TerminatedAt != nil {
		jsonapi.RenderError(w, http.StatusConflict,
			"already_terminated", "Conflict", "employee is already terminated")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	now := time.Now()
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Employee{}).Where("id = ?", emp.ID).Updates(map[string]any{
			"terminated_at":      now,
			"termination_reason": req.Reason,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ?", emp.UserID).
			Update("deactivated_at", now).Error
	})
	if err != nil {
		renderDomainError(w, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Preload("User").
		First(&emp, "id = ?", emp.ID).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, employeeResource(&emp))
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/d9705996/checkin/internal/api/jsonapi"
	"github.com/d9705996/checkin/internal/api/middleware"
	"github.com/d9705996/checkin/internal/auth"
	"github.com/d9705996/checkin/internal/authz"
	"github.com/d9705996/checkin/internal/model"
	"github.com/d9705996/checkin/internal/onboarding"
	"gorm.io/gorm"
)

// OnboardingHandler serves the onboarding session endpoints. Wizard routes
// authenticate with the session token (the employee has no account yet);
// admin and review routes authenticate with a staff JWT.
type OnboardingHandler struct {
	svc *onboarding.Service
	db  *gorm.DB
}

// NewOnboardingHandler creates an OnboardingHandler.
func NewOnboardingHandler(svc *onboarding.Service, db *gorm.DB) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, db: db}
}

// wizardToken pulls the onboarding token from the X-Onboarding-Token header
// or the token query parameter.
func wizardToken(r *http.Request) string {
	if t := r.Header.Get("X-Onboarding-Token"); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// sessionForToken authorizes a wizard request: the presented token must
// resolve to exactly the session being addressed.
func (h *OnboardingHandler) sessionForToken(w http.ResponseWriter, r *http.Request, id string) *model.OnboardingSession {
	token := wizardToken(r)
	if token == "" {
		jsonapi.RenderError(w, http.StatusUnauthorized,
			"missing_token", "Unauthorized", "onboarding token is required")
		return nil
	}
	sess, err := h.svc.Store().ByToken(r.Context(), token)
	if err != nil || sess.ID != id {
		jsonapi.RenderError(w, http.StatusForbidden,
			"forbidden", "Forbidden", "token does not grant access to this session")
		return nil
	}
	return sess
}

// ValidateToken handles POST /api/v1/onboarding/validate-token. Public: the
// wizard calls it before rendering anything. Invalid and unknown tokens are
// indistinguishable in the response.
func (h *OnboardingHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	v := h.svc.ValidateToken(r.Context(), req.Token)
	attrs := map[string]any{
		"is_valid":   v.IsValid,
		"is_expired": v.IsExpired,
	}
	if v.Session != nil {
		attrs["session_id"] = v.Session.ID
		attrs["status"] = v.Session.Status
		attrs["current_step"] = v.Session.CurrentStep
		attrs["language_preference"] = v.Session.LanguagePreference
		attrs["expires_at"] = v.Session.ExpiresAt
	}
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type:       "token_validation",
		ID:         "1",
		Attributes: attrs,
	})
}

// Start handles POST /api/v1/onboarding/start. Public, token-authenticated:
// binds the employee to their session at the first wizard visit.
func (h *OnboardingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token              string `json:"token"`
		EmployeeID         string `json:"employee_id"`
		LanguagePreference string `json:"language_preference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	sess, err := h.svc.Start(r.Context(), req.Token, req.EmployeeID, req.LanguagePreference)
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(sess))
}

// CreateSession handles POST /api/v1/onboarding/sessions.
func (h *OnboardingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req struct {
		EmployeeID         string `json:"employee_id"`
		LanguagePreference string `json:"language_preference"`
		ExpirationHours    int    `json:"expiration_hours"`
		Supersede          bool   `json:"supersede"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}
	if req.EmployeeID == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity, "missing_field", "Unprocessable Entity", "employee_id is required")
		return
	}

	// The manager may only open sessions for employees in their own org.
	var emp model.Employee
	if err := h.db.WithContext(r.Context()).Preload("User").
		First(&emp, "id = ?", req.EmployeeID).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	res := authz.Resource{OwnerUserID: emp.UserID}
	if emp.User != nil && emp.User.OrganizationID != nil {
		res.OrganizationID = *emp.User.OrganizationID
	}
	if err := authz.Authorize(claims, authz.ActionSessionCreate, res); err != nil {
		renderDomainError(w, err)
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), onboarding.CreateParams{
		EmployeeID:         req.EmployeeID,
		LanguagePreference: req.LanguagePreference,
		ExpirationHours:    req.ExpirationHours,
		Supersede:          req.Supersede,
	})
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, sessionResource(sess))
}

// GetSession handles GET /api/v1/onboarding/sessions/{id}. Accepts either a
// staff JWT (scope-checked) or the session's own token.
func (h *OnboardingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims := middleware.ClaimsFromContext(r.Context())

	sess, err := h.svc.Store().ByID(r.Context(), id)
	if err != nil {
		renderDomainError(w, err)
		return
	}

	if claims != nil {
		if err := authz.Authorize(claims, authz.ActionSessionRead, sessionScope(sess)); err != nil {
			renderDomainError(w, err)
			return
		}
	} else if token := wizardToken(r); token == "" {
		jsonapi.RenderError(w, http.StatusUnauthorized,
			"missing_token", "Unauthorized", "a staff JWT or the session token is required")
		return
	} else if token != sess.Token {
		jsonapi.RenderError(w, http.StatusForbidden,
			"forbidden", "Forbidden", "token does not grant access to this session")
		return
	}

	jsonapi.RenderOne(w, http.StatusOK, sessionResource(sess))
}

// UpdateSession handles PUT /api/v1/onboarding/sessions/{id}: the wizard
// progress update. Token-authenticated.
func (h *OnboardingHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.sessionForToken(w, r, id) == nil {
		return
	}

	var req struct {
		CurrentStep        *string        `json:"current_step"`
		LanguagePreference *string        `json:"language_preference"`
		PersonalInfo       map[string]any `json:"personal_info"`
		ExpectedVersion    int            `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	sess, err := h.svc.UpdateProgress(r.Context(), id, onboarding.Progress{
		CurrentStep:        req.CurrentStep,
		LanguagePreference: req.LanguagePreference,
		PersonalInfo:       req.PersonalInfo,
		ExpectedVersion:    req.ExpectedVersion,
	})
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(sess))
}

// SubmitForms handles POST /api/v1/onboarding/sessions/{id}/forms.
// Token-authenticated.
func (h *OnboardingHandler) SubmitForms(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.sessionForToken(w, r, id) == nil {
		return
	}

	var req struct {
		Forms           map[string]any `json:"forms"`
		ExpectedVersion int            `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	sess, err := h.svc.SubmitForms(r.Context(), id, req.Forms, req.ExpectedVersion)
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(sess))
}

// Sign handles POST /api/v1/onboarding/sessions/{id}/signature: the final
// wizard step. Token-authenticated. The client IP and user agent are recorded
// alongside the signature for the audit trail.
func (h *OnboardingHandler) Sign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.sessionForToken(w, r, id) == nil {
		return
	}

	var req struct {
		Image           string `json:"image"`
		SignerName      string `json:"signer_name"`
		ExpectedVersion int    `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	sig := model.SignatureBlock{
		Image:      req.Image,
		SignerName: req.SignerName,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	}
	sess, err := h.svc.Sign(r.Context(), id, sig, req.ExpectedVersion)
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(sess))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

// reviewBody is shared by the approve/reject/review endpoints.
type reviewBody struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

// loadForReview fetches the session and runs the org-scope check for a
// review-family action.
func (h *OnboardingHandler) loadForReview(w http.ResponseWriter, r *http.Request, action authz.Action) *model.OnboardingSession {
	claims := middleware.ClaimsFromContext(r.Context())
	sess, err := h.svc.Store().ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		renderDomainError(w, err)
		return nil
	}
	if err := authz.Authorize(claims, action, sessionScope(sess)); err != nil {
		renderDomainError(w, err)
		return nil
	}
	return sess
}

// Approve handles POST /api/v1/onboarding/sessions/{id}/approve. A completed
// session takes the manager approval; a manager_approved session takes the
// final HR approval, which only an hr_admin may give.
func (h *OnboardingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	sess := h.loadForReview(w, r, authz.ActionSessionReview)
	if sess == nil {
		return
	}
	if sess.Status == model.StatusManagerApproved && !claims.HasRole(model.RoleHRAdmin) {
		jsonapi.RenderError(w, http.StatusForbidden,
			"forbidden", "Forbidden", "final approval requires the hr_admin role")
		return
	}

	var req reviewBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // notes are optional
	}

	updated, err := h.svc.Approve(r.Context(), sess.ID, reviewer(claims, req.Notes))
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(updated))
}

// Reject handles POST /api/v1/onboarding/sessions/{id}/reject.
func (h *OnboardingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	sess := h.loadForReview(w, r, authz.ActionSessionReview)
	if sess == nil {
		return
	}

	var req reviewBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	updated, err := h.svc.Reject(r.Context(), sess.ID, reviewer(claims, req.Notes))
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(updated))
}

// Review handles POST /api/v1/onboarding/sessions/{id}/review: a single
// endpoint taking a decision of approve, reject or request_changes.
func (h *OnboardingHandler) Review(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	sess := h.loadForReview(w, r, authz.ActionSessionReview)
	if sess == nil {
		return
	}

	var req reviewBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	rev := reviewer(claims, req.Notes)
	var (
		updated *model.OnboardingSession
		err     error
	)
	switch req.Decision {
	case "approve":
		if sess.Status == model.StatusManagerApproved && !claims.HasRole(model.RoleHRAdmin) {
			jsonapi.RenderError(w, http.StatusForbidden,
				"forbidden", "Forbidden", "final approval requires the hr_admin role")
			return
		}
		updated, err = h.svc.Approve(r.Context(), sess.ID, rev)
	case "reject":
		updated, err = h.svc.Reject(r.Context(), sess.ID, rev)
	case "request_changes":
		updated, err = h.svc.RequestChanges(r.Context(), sess.ID, rev)
	default:
		jsonapi.RenderError(w, http.StatusBadRequest,
			"invalid_decision", "Bad Request",
			"decision must be one of approve, reject, request_changes")
		return
	}
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(updated))
}

// Extend handles POST /api/v1/onboarding/sessions/{id}/extend.
func (h *OnboardingHandler) Extend(w http.ResponseWriter, r *http.Request) {
	sess := h.loadForReview(w, r, authz.ActionSessionExtend)
	if sess == nil {
		return
	}

	var req struct {
		ExpirationHours int `json:"expiration_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	updated, err := h.svc.Extend(r.Context(), sess.ID, req.ExpirationHours)
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(updated))
}

// Cancel handles POST /api/v1/onboarding/sessions/{id}/cancel.
func (h *OnboardingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess := h.loadForReview(w, r, authz.ActionSessionCancel)
	if sess == nil {
		return
	}
	updated, err := h.svc.Cancel(r.Context(), sess.ID)
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, sessionResource(updated))
}

// ListSessions handles GET /api/v1/onboarding/sessions with employee_id,
// status, expired, created_from, created_to, page and limit query params.
// Managers only see their own organization regardless of filters.
func (h *OnboardingHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	f := onboarding.Filter{
		EmployeeID:  r.URL.Query().Get("employee_id"),
		CreatedFrom: queryTime(r, "created_from"),
		CreatedTo:   queryTime(r, "created_to"),
		Page:        queryInt(r, "page", 1),
		Limit:       queryInt(r, "limit", 20),
	}
	for _, s := range r.URL.Query()["status"] {
		if s != "" {
			f.Statuses = append(f.Statuses, model.SessionStatus(s))
		}
	}
	if v := r.URL.Query().Get("expired"); v != "" {
		expired := v == "true" || v == "1"
		f.Expired = &expired
	}

	switch authz.MaxScope(claims, authz.ActionSessionList) {
	case authz.ScopeGlobal:
		// no org constraint
	case authz.ScopeOrganization:
		if claims.OrganizationID == "" {
			renderDomainError(w, authz.ErrForbidden)
			return
		}
		f.OrganizationID = claims.OrganizationID
	default:
		renderDomainError(w, authz.ErrForbidden)
		return
	}

	h.renderSessionList(w, r, f)
}

// PendingReviews handles GET /api/v1/onboarding/sessions/pending-review:
// the review queue of completed and manager_approved sessions.
func (h *OnboardingHandler) PendingReviews(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	f := onboarding.Filter{
		Statuses: []model.SessionStatus{model.StatusCompleted, model.StatusManagerApproved},
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 20),
	}
	switch authz.MaxScope(claims, authz.ActionSessionReview) {
	case authz.ScopeGlobal:
	case authz.ScopeOrganization:
		if claims.OrganizationID == "" {
			renderDomainError(w, authz.ErrForbidden)
			return
		}
		f.OrganizationID = claims.OrganizationID
	default:
		renderDomainError(w, authz.ErrForbidden)
		return
	}

	h.renderSessionList(w, r, f)
}

func (h *OnboardingHandler) renderSessionList(w http.ResponseWriter, r *http.Request, f onboarding.Filter) {
	sessions, page, err := h.svc.Store().List(r.Context(), f)
	if err != nil {
		renderDomainError(w, err)
		return
	}
	data := make([]any, 0, len(sessions))
	for i := range sessions {
		data = append(data, sessionResource(&sessions[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, &jsonapi.Pagination{
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      page.Total,
		TotalPages: page.TotalPages,
		HasNext:    page.HasNext,
		HasPrev:    page.HasPrev,
	})
}

// SweepExpired handles POST /api/v1/onboarding/sweep-expired: an on-demand
// run of the expiry sweep the background worker performs periodically.
func (h *OnboardingHandler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkExpiredSessions(r.Context())
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type:       "sweep_result",
		ID:         "1",
		Attributes: map[string]any{"expired_count": n},
	})
}

func reviewer(claims *auth.Claims, notes string) onboarding.Reviewer {
	return onboarding.Reviewer{ID: claims.UserID, Name: claims.Email, Notes: notes}
}

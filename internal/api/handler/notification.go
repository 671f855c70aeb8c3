package handler

import (
	"encoding/json"
	"net/http"

	"github.com/d9705996/checkin/internal/api/jsonapi"
	"github.com/d9705996/checkin/internal/api/middleware"
	"github.com/d9705996/checkin/internal/authz"
	"github.com/d9705996/checkin/internal/notify"
	"github.com/d9705996/checkin/internal/onboarding"
)

// NotificationHandler serves the in-app notification endpoints.
type NotificationHandler struct {
	dispatcher *notify.Dispatcher
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(dispatcher *notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

// List handles GET /api/v1/notifications: the authenticated user's own
// notifications, newest first. The unread query param filters to unread.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	unread := r.URL.Query().Get("unread")

	rows, err := h.dispatcher.ListForUser(r.Context(), claims.UserID, unread == "true" || unread == "1")
	if err != nil {
		renderDomainError(w, err)
		return
	}
	data := make([]any, 0, len(rows))
	for i := range rows {
		data = append(data, notificationResource(&rows[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// MarkRead handles POST /api/v1/notifications/{id}/read. Only the owner's
// rows match; re-reading an already-read notification is a no-op.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	if err := h.dispatcher.MarkRead(r.Context(), claims.UserID, r.PathValue("id")); err != nil {
		renderDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Announce handles POST /api/v1/announcements: fans a notification out to
// every active user of an organization. Managers may only announce to their
// own org; hr_admin may target any org or broadcast globally by omitting
// organization_id.
func (h *NotificationHandler) Announce(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req struct {
		OrganizationID string         `json:"organization_id"`
		Title          string         `json:"title"`
		Content        string         `json:"content"`
		Priority       string         `json:"priority"`
		Data           map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}
	if req.Title == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity,
			"missing_field", "Unprocessable Entity", "title is required")
		return
	}

	orgID := req.OrganizationID
	switch authz.MaxScope(claims, authz.ActionAnnouncementSend) {
	case authz.ScopeGlobal:
		// any org, or global broadcast when empty
	case authz.ScopeOrganization:
		if claims.OrganizationID == "" || (orgID != "" && orgID != claims.OrganizationID) {
			renderDomainError(w, authz.ErrForbidden)
			return
		}
		orgID = claims.OrganizationID
	default:
		renderDomainError(w, authz.ErrForbidden)
		return
	}

	count, err := h.dispatcher.Announce(r.Context(), orgID, onboarding.Notification{
		Type:     "announcement",
		Title:    req.Title,
		Content:  req.Content,
		Priority: req.Priority,
		Data:     req.Data,
	})
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type:       "announcement_result",
		ID:         "1",
		Attributes: map[string]any{"recipient_count": count},
	})
}

package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d9705996/checkin/internal/api"
	"github.com/d9705996/checkin/internal/api/handler"
	"github.com/d9705996/checkin/internal/auth"
	"github.com/d9705996/checkin/internal/db"
	"github.com/d9705996/checkin/internal/health"
	"github.com/d9705996/checkin/internal/model"
	"github.com/d9705996/checkin/internal/notify"
	"github.com/d9705996/checkin/internal/onboarding"
)

const jwtSecret = "api-test-secret-at-least-32-bytes"

// env is a fully wired API over an in-memory database.
type env struct {
	t    *testing.T
	gdb  *gorm.DB
	mux  *http.ServeMux
	svc  *onboarding.Service
	orgA model.Organization
	orgB model.Organization
	mgrA model.User
	mgrB model.User
	hr   model.User
	hire model.Employee // belongs to orgA, user deactivated
}

func newEnv(t *testing.T) *env {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(gdb))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := notify.NewDispatcher(gdb)
	svc := onboarding.NewService(gdb, dispatcher, nil, log, 72*time.Hour, "http://localhost:8080")

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Handlers{
		Health:       health.New(db.NewPinger(gdb)),
		Auth:         handler.NewAuthHandler(gdb, jwtSecret, 15*time.Minute, 720*time.Hour),
		Onboarding:   handler.NewOnboardingHandler(svc, gdb),
		Employee:     handler.NewEmployeeHandler(gdb),
		Document:     handler.NewDocumentHandler(gdb),
		Application:  handler.NewApplicationHandler(gdb),
		Notification: handler.NewNotificationHandler(dispatcher),
	}, jwtSecret)

	e := &env{t: t, gdb: gdb, mux: mux, svc: svc}
	e.seed()
	return e
}

func (e *env) seed() {
	e.orgA = model.Organization{Name: "Sunset Motel", Slug: "sunset"}
	require.NoError(e.t, e.gdb.Create(&e.orgA).Error)
	e.orgB = model.Organization{Name: "Lakeside Inn", Slug: "lakeside"}
	require.NoError(e.t, e.gdb.Create(&e.orgB).Error)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	require.NoError(e.t, err)

	e.mgrA = model.User{
		OrganizationID: &e.orgA.ID, Email: "mgr-a@example.com", Name: "Manager A",
		PasswordHash: string(hash), Roles: model.StringSlice{model.RoleManager},
	}
	require.NoError(e.t, e.gdb.Create(&e.mgrA).Error)

	e.mgrB = model.User{
		OrganizationID: &e.orgB.ID, Email: "mgr-b@example.com", Name: "Manager B",
		PasswordHash: string(hash), Roles: model.StringSlice{model.RoleManager},
	}
	require.NoError(e.t, e.gdb.Create(&e.mgrB).Error)

	e.hr = model.User{
		Email: "hr@example.com", Name: "HR Admin",
		PasswordHash: string(hash), Roles: model.StringSlice{model.RoleHRAdmin},
	}
	require.NoError(e.t, e.gdb.Create(&e.hr).Error)

	deact := time.Now()
	hireUser := model.User{
		OrganizationID: &e.orgA.ID, Email: "hire@example.com", Name: "New Hire",
		Roles: model.StringSlice{model.RoleEmployee}, DeactivatedAt: &deact,
	}
	require.NoError(e.t, e.gdb.Create(&hireUser).Error)
	e.hire = model.Employee{UserID: hireUser.ID, Position: "Front Desk"}
	require.NoError(e.t, e.gdb.Create(&e.hire).Error)
}

func (e *env) tokenFor(u model.User) string {
	orgID := ""
	if u.OrganizationID != nil {
		orgID = *u.OrganizationID
	}
	tok, err := auth.IssueAccessToken(u.ID, u.Email, []string(u.Roles), orgID, jwtSecret, 15*time.Minute)
	require.NoError(e.t, err)
	return tok
}

func (e *env) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

// resource is the decoded data member of a JSON:API response.
type resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

func decodeOne(t *testing.T, w *httptest.ResponseRecorder) resource {
	t.Helper()
	var doc struct {
		Data resource `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	return doc.Data
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []resource {
	t.Helper()
	var doc struct {
		Data []resource `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	return doc.Data
}

func TestLoginAndRefresh(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "mgr-a@example.com", "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	attrs := decodeOne(t, w).Attributes
	access, _ := attrs["access_token"].(string)
	refresh, _ := attrs["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	w = e.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": refresh,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	attrs = decodeOne(t, w).Attributes
	assert.NotEmpty(t, attrs["access_token"])
	// Rotation: the old refresh token no longer works.
	w = e.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": refresh,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "mgr-a@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_DeactivatedUser(t *testing.T) {
	e := newEnv(t)
	// The new hire's account exists but is deactivated until approval.
	w := e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "hire@example.com", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSession_OrgScope(t *testing.T) {
	e := newEnv(t)
	body := map[string]any{"employee_id": e.hire.ID}

	// Manager B cannot open a session for org A's hire.
	w := e.do(http.MethodPost, "/api/v1/onboarding/sessions", e.tokenFor(e.mgrB), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Manager A can.
	w = e.do(http.MethodPost, "/api/v1/onboarding/sessions", e.tokenFor(e.mgrA), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decodeOne(t, w)
	assert.Equal(t, "onboarding_session", res.Type)
	assert.Equal(t, "in_progress", res.Attributes["status"])
	assert.NotEmpty(t, res.Attributes["token"])

	// A duplicate without supersede conflicts.
	w = e.do(http.MethodPost, "/api/v1/onboarding/sessions", e.tokenFor(e.mgrA), body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWizardFlow_TokenAuthenticated(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/v1/onboarding/sessions", e.tokenFor(e.mgrA),
		map[string]any{"employee_id": e.hire.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeOne(t, w)
	sessID := created.ID
	token, _ := created.Attributes["token"].(string)
	require.NotEmpty(t, token)

	// validate-token is public.
	w = e.do(http.MethodPost, "/api/v1/onboarding/validate-token", "",
		map[string]string{"token": token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeOne(t, w).Attributes["is_valid"])

	// No token on the wizard update: 401.
	w = e.do(http.MethodPut, "/api/v1/onboarding/sessions/"+sessID, "",
		map[string]any{"personal_info": map[string]any{"first_name": "Nadia"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// With the session token in the query string the update goes through.
	w = e.do(http.MethodPut, "/api/v1/onboarding/sessions/"+sessID+"?token="+token, "",
		map[string]any{
			"personal_info":    map[string]any{"first_name": "Nadia"},
			"expected_version": 0,
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A stale expected_version is a 409.
	w = e.do(http.MethodPut, "/api/v1/onboarding/sessions/"+sessID+"?token="+token, "",
		map[string]any{
			"personal_info":    map[string]any{"first_name": "Mallory"},
			"expected_version": 0,
		})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Forms, then signature.
	w = e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sessID+"/forms?token="+token, "",
		map[string]any{
			"forms":            map[string]any{"tax_form": map[string]any{"ok": true}},
			"expected_version": 1,
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sessID+"/signature?token="+token, "",
		map[string]any{
			"image":            "data:image/png;base64,sig",
			"signer_name":      "New Hire",
			"expected_version": 2,
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decodeOne(t, w).Attributes["status"])
}

func TestGetSession_DualAccess(t *testing.T) {
	e := newEnv(t)

	sess, err := e.svc.CreateSession(t.Context(), onboarding.CreateParams{EmployeeID: e.hire.ID})
	require.NoError(t, err)

	// Anonymous with the right token: 200.
	w := e.do(http.MethodGet, "/api/v1/onboarding/sessions/"+sess.ID+"?token="+sess.Token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Anonymous with no token: 401.
	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions/"+sess.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Anonymous with somebody else's token: 403, matching the wizard routes.
	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions/"+sess.ID+"?token=wrong", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Manager in the right org: 200. Wrong org: 403.
	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions/"+sess.ID, e.tokenFor(e.mgrA), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions/"+sess.ID, e.tokenFor(e.mgrB), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// hr_admin reaches everything.
	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions/"+sess.ID, e.tokenFor(e.hr), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func (e *env) completedSession(t *testing.T) *model.OnboardingSession {
	t.Helper()
	sess, err := e.svc.CreateSession(t.Context(), onboarding.CreateParams{EmployeeID: e.hire.ID})
	require.NoError(t, err)
	signed, err := e.svc.Sign(t.Context(), sess.ID, model.SignatureBlock{
		Image: "data:image/png;base64,sig", SignerName: "New Hire",
	}, 0)
	require.NoError(t, err)
	return signed
}

func TestApprove_TwoStageViaAPI(t *testing.T) {
	e := newEnv(t)
	sess := e.completedSession(t)

	// Stage one by the org's manager.
	w := e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sess.ID+"/approve",
		e.tokenFor(e.mgrA), map[string]string{"notes": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "manager_approved", decodeOne(t, w).Attributes["status"])

	// Stage two needs hr_admin; the manager is refused.
	w = e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sess.ID+"/approve",
		e.tokenFor(e.mgrA), map[string]string{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sess.ID+"/approve",
		e.tokenFor(e.hr), map[string]string{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decodeOne(t, w).Attributes["status"])

	// Final approval reactivated the hire's account.
	var u model.User
	require.NoError(t, e.gdb.First(&u, "id = ?", e.hire.UserID).Error)
	assert.Nil(t, u.DeactivatedAt)
}

func TestReview_RequestChanges(t *testing.T) {
	e := newEnv(t)
	sess := e.completedSession(t)

	w := e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sess.ID+"/review",
		e.tokenFor(e.mgrA), map[string]string{"decision": "request_changes", "notes": "fix tax form"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "requires_changes", decodeOne(t, w).Attributes["status"])

	w = e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sess.ID+"/review",
		e.tokenFor(e.mgrA), map[string]string{"decision": "frobnicate"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReview_CrossOrgForbidden(t *testing.T) {
	e := newEnv(t)
	sess := e.completedSession(t)

	w := e.do(http.MethodPost, "/api/v1/onboarding/sessions/"+sess.ID+"/reject",
		e.tokenFor(e.mgrB), map[string]string{"notes": "not mine to reject"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListSessions_ScopedToOrg(t *testing.T) {
	e := newEnv(t)
	e.completedSession(t)

	// Manager A sees the session; manager B sees an empty list.
	w := e.do(http.MethodGet, "/api/v1/onboarding/sessions", e.tokenFor(e.mgrA), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)

	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions", e.tokenFor(e.mgrB), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeList(t, w))

	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions", e.tokenFor(e.hr), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)

	// The pending-review queue picks up the completed session.
	w = e.do(http.MethodGet, "/api/v1/onboarding/sessions/pending-review", e.tokenFor(e.mgrA), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)
}

func TestSweepExpired_HRAdminOnly(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/v1/onboarding/sweep-expired", e.tokenFor(e.mgrA), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/v1/onboarding/sweep-expired", e.tokenFor(e.hr), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocuments_VersioningAndSignOnce(t *testing.T) {
	e := newEnv(t)
	base := "/api/v1/employees/" + e.hire.ID + "/documents"

	w := e.do(http.MethodPost, base, e.tokenFor(e.mgrA),
		map[string]string{"document_type": "tax_form", "file_path": "/files/tax-v1.pdf"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeOne(t, w).Attributes["version"])

	// Re-upload bumps the version and keeps the old row.
	w = e.do(http.MethodPost, base, e.tokenFor(e.mgrA),
		map[string]string{"document_type": "tax_form", "file_path": "/files/tax-v2.pdf"})
	require.Equal(t, http.StatusCreated, w.Code)
	doc := decodeOne(t, w)
	assert.Equal(t, float64(2), doc.Attributes["version"])

	w = e.do(http.MethodGet, base, e.tokenFor(e.mgrA), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 2)

	// Sign the latest; a second sign attempt conflicts.
	w = e.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/sign", e.tokenFor(e.mgrA),
		map[string]string{"image": "data:image/png;base64,sig", "signer_name": "New Hire"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decodeOne(t, w).Attributes["is_signed"])

	w = e.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/sign", e.tokenFor(e.mgrA),
		map[string]string{"image": "x", "signer_name": "y"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown document type is rejected.
	w = e.do(http.MethodPost, base, e.tokenFor(e.mgrA),
		map[string]string{"document_type": "diploma", "file_path": "/files/x.pdf"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEmployee_Terminate(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/v1/employees/"+e.hire.ID+"/terminate",
		e.tokenFor(e.mgrB), map[string]string{"reason": "cross-org attempt"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/v1/employees/"+e.hire.ID+"/terminate",
		e.tokenFor(e.mgrA), map[string]string{"reason": "seasonal contract ended"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeOne(t, w)
	assert.NotNil(t, res.Attributes["terminated_at"])
	assert.Equal(t, "seasonal contract ended", res.Attributes["termination_reason"])

	// The user row was deactivated in the same transaction.
	var u model.User
	require.NoError(t, e.gdb.First(&u, "id = ?", e.hire.UserID).Error)
	assert.NotNil(t, u.DeactivatedAt)

	// Terminating twice conflicts.
	w = e.do(http.MethodPost, "/api/v1/employees/"+e.hire.ID+"/terminate",
		e.tokenFor(e.mgrA), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApplications_PublicIntakeAndAccept(t *testing.T) {
	e := newEnv(t)

	// Anyone can apply, no auth header.
	w := e.do(http.MethodPost, "/api/v1/applications", "", map[string]string{
		"organization_id": e.orgA.ID,
		"full_name":       "Alex Applicant",
		"email":           "alex@example.com",
		"position":        "Housekeeping",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	app := decodeOne(t, w)
	assert.Equal(t, "pending", app.Attributes["status"])

	// Org B's manager cannot see or decide org A's applications.
	w = e.do(http.MethodGet, "/api/v1/applications", e.tokenFor(e.mgrB), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeList(t, w))

	w = e.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/decide",
		e.tokenFor(e.mgrB), map[string]string{"decision": "accept"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Accepting creates the deactivated user plus employee record.
	w = e.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/decide",
		e.tokenFor(e.mgrA), map[string]string{"decision": "accept"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accepted", decodeOne(t, w).Attributes["status"])

	var u model.User
	require.NoError(t, e.gdb.First(&u, "email = ?", "alex@example.com").Error)
	assert.NotNil(t, u.DeactivatedAt)

	var emp model.Employee
	require.NoError(t, e.gdb.First(&emp, "user_id = ?", u.ID).Error)
	assert.Equal(t, "Housekeeping", emp.Position)

	// Re-deciding conflicts.
	w = e.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/decide",
		e.tokenFor(e.mgrA), map[string]string{"decision": "reject"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnnouncements_OrgScoped(t *testing.T) {
	e := newEnv(t)

	// Manager A cannot target org B.
	w := e.do(http.MethodPost, "/api/v1/announcements", e.tokenFor(e.mgrA),
		map[string]string{"organization_id": e.orgB.ID, "title": "wrong org"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Announcing to their own org reaches its active users (manager A only;
	// the hire's account is still deactivated).
	w = e.do(http.MethodPost, "/api/v1/announcements", e.tokenFor(e.mgrA),
		map[string]string{"title": "Pool closed for maintenance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeOne(t, w).Attributes["recipient_count"])

	// The manager sees and reads their own notification.
	w = e.do(http.MethodGet, "/api/v1/notifications?unread=true", e.tokenFor(e.mgrA), nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeList(t, w)
	require.Len(t, list, 1)

	w = e.do(http.MethodPost, "/api/v1/notifications/"+list[0].ID+"/read", e.tokenFor(e.mgrA), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, "/api/v1/notifications?unread=true", e.tokenFor(e.mgrA), nil)
	assert.Empty(t, decodeList(t, w))
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRoute404(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, fmt.Sprintf("/api/v1/nope/%d", time.Now().Unix()), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

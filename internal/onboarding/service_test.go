package onboarding_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d9705996/checkin/internal/db"
	"github.com/d9705996/checkin/internal/model"
	"github.com/d9705996/checkin/internal/notify"
	"github.com/d9705996/checkin/internal/onboarding"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, gdb *gorm.DB) *onboarding.Service {
	t.Helper()
	return onboarding.NewService(gdb, notify.NewDispatcher(gdb), nil, testLogger(),
		72*time.Hour, "http://localhost:8080")
}

// fixture creates an org with one manager and one (deactivated) new hire.
type fixture struct {
	org      model.Organization
	manager  model.User
	hireUser model.User
	hire     model.Employee
}

func seedFixture(t *testing.T, gdb *gorm.DB) fixture {
	t.Helper()
	f := fixture{}

	f.org = model.Organization{Name: "Sunset Motel", Slug: "sunset-motel", Location: "Austin"}
	require.NoError(t, gdb.Create(&f.org).Error)

	f.manager = model.User{
		OrganizationID: &f.org.ID,
		Email:          "manager@sunset.example",
		Name:           "Morgan Manager",
		Roles:          model.StringSlice{model.RoleManager},
	}
	require.NoError(t, gdb.Create(&f.manager).Error)

	deactivated := time.Now()
	f.hireUser = model.User{
		OrganizationID: &f.org.ID,
		Email:          "newhire@sunset.example",
		Name:           "Nadia Newhire",
		Roles:          model.StringSlice{model.RoleEmployee},
		DeactivatedAt:  &deactivated,
	}
	require.NoError(t, gdb.Create(&f.hireUser).Error)

	f.hire = model.Employee{UserID: f.hireUser.ID, Position: "Front Desk"}
	require.NoError(t, gdb.Create(&f.hire).Error)

	return f
}

func TestCreateSession_AndValidate(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{
		EmployeeID:         f.hire.ID,
		LanguagePreference: "es",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, model.StatusInProgress, sess.Status)
	assert.Equal(t, "es", sess.LanguagePreference)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), sess.ExpiresAt, time.Minute)

	v := svc.ValidateToken(ctx, sess.Token)
	require.True(t, v.IsValid)
	assert.False(t, v.IsExpired)
	require.NotNil(t, v.Session)
	assert.Equal(t, sess.ID, v.Session.ID)
}

func TestCreateSession_CustomExpiration(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)

	sess, err := svc.CreateSession(context.Background(), onboarding.CreateParams{
		EmployeeID:      f.hire.ID,
		ExpirationHours: 24,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), sess.ExpiresAt, time.Minute)
}

func TestCreateSession_UnknownEmployee(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	seedFixture(t, gdb)

	_, err := svc.CreateSession(context.Background(), onboarding.CreateParams{
		EmployeeID: "no-such-employee",
	})
	require.ErrorIs(t, err, onboarding.ErrNotFound)
}

func TestCreateSession_DuplicateActive(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	_, err = svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.ErrorIs(t, err, onboarding.ErrActiveSessionExists)

	// Supersede cancels the first session and creates a fresh one.
	second, err := svc.CreateSession(ctx, onboarding.CreateParams{
		EmployeeID: f.hire.ID,
		Supersede:  true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := svc.Store().ByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, old.Status)
}

func TestValidateToken_FailsClosed(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	ctx := context.Background()

	v := svc.ValidateToken(ctx, "completely-unknown")
	assert.False(t, v.IsValid)
	assert.False(t, v.IsExpired)
	assert.Nil(t, v.Session)

	v = svc.ValidateToken(ctx, "")
	assert.False(t, v.IsValid)
}

func TestValidateToken_Expired(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	require.NoError(t, gdb.Model(&model.OnboardingSession{}).
		Where("id = ?", sess.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	v := svc.ValidateToken(ctx, sess.Token)
	assert.False(t, v.IsValid)
	assert.True(t, v.IsExpired)
	// An expired token leaks nothing beyond the expiry signal.
	assert.Nil(t, v.Session)
}

func TestStart_BindsEmployeeAndLanguage(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	started, err := svc.Start(ctx, sess.Token, f.hire.ID, "fr")
	require.NoError(t, err)
	assert.Equal(t, "personal_info", started.CurrentStep)
	assert.Equal(t, "fr", started.LanguagePreference)

	// A token presented with the wrong employee is rejected.
	_, err = svc.Start(ctx, sess.Token, "someone-else", "")
	require.ErrorIs(t, err, onboarding.ErrValidation)
}

func TestUpdateProgress_MergesPersonalInfo(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	step := "personal_info"
	updated, err := svc.UpdateProgress(ctx, sess.ID, onboarding.Progress{
		CurrentStep:     &step,
		PersonalInfo:    map[string]any{"first_name": "Nadia", "phone": "555-0100"},
		ExpectedVersion: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FormVersion)
	assert.Equal(t, "Nadia", updated.FormData.PersonalInfo["first_name"])

	// A second partial update merges without clobbering earlier keys.
	updated, err = svc.UpdateProgress(ctx, sess.ID, onboarding.Progress{
		PersonalInfo:    map[string]any{"phone": "555-0199"},
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Nadia", updated.FormData.PersonalInfo["first_name"])
	assert.Equal(t, "555-0199", updated.FormData.PersonalInfo["phone"])
}

func TestUpdateProgress_StaleVersion(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	_, err = svc.UpdateProgress(ctx, sess.ID, onboarding.Progress{
		PersonalInfo:    map[string]any{"first_name": "Nadia"},
		ExpectedVersion: 0,
	})
	require.NoError(t, err)

	// A writer still holding version 0 loses.
	_, err = svc.UpdateProgress(ctx, sess.ID, onboarding.Progress{
		PersonalInfo:    map[string]any{"first_name": "Mallory"},
		ExpectedVersion: 0,
	})
	require.ErrorIs(t, err, onboarding.ErrStaleSession)
}

func TestSubmitForms_NamespacedMerge(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	_, err = svc.UpdateProgress(ctx, sess.ID, onboarding.Progress{
		PersonalInfo:    map[string]any{"first_name": "Nadia"},
		ExpectedVersion: 0,
	})
	require.NoError(t, err)

	updated, err := svc.SubmitForms(ctx, sess.ID, map[string]any{
		"tax_form": map[string]any{"ssn_last4": "1234"},
	}, 1)
	require.NoError(t, err)
	// Forms land in their own namespace without touching personal info.
	assert.Equal(t, "Nadia", updated.FormData.PersonalInfo["first_name"])
	assert.Contains(t, updated.FormData.Forms, "tax_form")

	updated, err = svc.SubmitForms(ctx, sess.ID, map[string]any{
		"direct_deposit": map[string]any{"bank": "Credit Union"},
	}, 2)
	require.NoError(t, err)
	assert.Contains(t, updated.FormData.Forms, "tax_form")
	assert.Contains(t, updated.FormData.Forms, "direct_deposit")
}

func TestSubmitForms_EmptyPayload(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)

	sess, err := svc.CreateSession(context.Background(), onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	_, err = svc.SubmitForms(context.Background(), sess.ID, nil, 0)
	require.ErrorIs(t, err, onboarding.ErrValidation)
}

func signedSession(t *testing.T, svc *onboarding.Service, f fixture) *model.OnboardingSession {
	t.Helper()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	signed, err := svc.Sign(ctx, sess.ID, model.SignatureBlock{
		Image:      "data:image/png;base64,abc",
		SignerName: "Nadia Newhire",
		IPAddress:  "203.0.113.9",
	}, 0)
	require.NoError(t, err)
	return signed
}

func TestSign_CompletesSession(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)

	sess := signedSession(t, svc, f)
	assert.Equal(t, model.StatusCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)
	require.NotNil(t, sess.FormData.Signature)
	assert.Equal(t, "Nadia Newhire", sess.FormData.Signature.SignerName)
	assert.False(t, sess.FormData.Signature.SignedAt.IsZero())

	// Submitting triggers a review notification for the org's managers.
	var count int64
	require.NoError(t, gdb.Model(&model.Notification{}).
		Where("user_id = ? AND type = ?", f.manager.ID, "onboarding_submitted").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSign_Twice(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)

	sess := signedSession(t, svc, f)
	_, err := svc.Sign(context.Background(), sess.ID, model.SignatureBlock{
		Image: "x", SignerName: "y",
	}, sess.FormVersion)
	// A completed session is no longer editable.
	require.ErrorIs(t, err, onboarding.ErrInvalidTransition)
}

func TestSign_MissingFields(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)

	sess, err := svc.CreateSession(context.Background(), onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	_, err = svc.Sign(context.Background(), sess.ID, model.SignatureBlock{SignerName: "no image"}, 0)
	require.ErrorIs(t, err, onboarding.ErrValidation)
}

func TestApprove_TwoStage(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess := signedSession(t, svc, f)

	// Stage one: manager approval.
	sess, err := svc.Approve(ctx, sess.ID, onboarding.Reviewer{ID: f.manager.ID, Name: "Morgan Manager"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusManagerApproved, sess.Status)
	require.NotNil(t, sess.FormData.ManagerApproval)
	assert.Equal(t, f.manager.ID, sess.FormData.ManagerApproval.ReviewerID)

	// Stage two: HR approval activates the employee's account.
	sess, err = svc.Approve(ctx, sess.ID, onboarding.Reviewer{ID: "hr-1", Name: "Harper HR"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, sess.Status)
	require.NotNil(t, sess.FormData.HRApproval)

	var u model.User
	require.NoError(t, gdb.First(&u, "id = ?", f.hireUser.ID).Error)
	assert.Nil(t, u.DeactivatedAt)

	var emp model.Employee
	require.NoError(t, gdb.First(&emp, "id = ?", f.hire.ID).Error)
	assert.NotNil(t, emp.ActivatedAt)
}

func TestApprove_InProgressRejected(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)

	sess, err := svc.CreateSession(context.Background(), onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), sess.ID, onboarding.Reviewer{ID: "m1"})
	require.ErrorIs(t, err, onboarding.ErrInvalidTransition)
}

func TestReject_ThenApproveFails(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess := signedSession(t, svc, f)
	sess, err := svc.Reject(ctx, sess.ID, onboarding.Reviewer{ID: f.manager.ID, Notes: "incomplete paperwork"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, sess.Status)
	require.NotNil(t, sess.FormData.Rejection)

	// Rejected is terminal.
	_, err = svc.Approve(ctx, sess.ID, onboarding.Reviewer{ID: f.manager.ID})
	require.ErrorIs(t, err, onboarding.ErrInvalidTransition)
}

func TestRequestChanges_RoundTrip(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess := signedSession(t, svc, f)

	// Notes are mandatory; the employee needs to know what to fix.
	_, err := svc.RequestChanges(ctx, sess.ID, onboarding.Reviewer{ID: f.manager.ID})
	require.ErrorIs(t, err, onboarding.ErrValidation)

	sess, err = svc.RequestChanges(ctx, sess.ID, onboarding.Reviewer{
		ID: f.manager.ID, Name: "Morgan Manager", Notes: "tax form is missing a page",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRequiresChanges, sess.Status)
	require.NotNil(t, sess.FormData.ChangeRequest)
	// The stale signature is cleared so the employee signs the fixed forms.
	assert.Nil(t, sess.FormData.Signature)

	// The same session and token keep working.
	updated, err := svc.UpdateProgress(ctx, sess.ID, onboarding.Progress{
		PersonalInfo:    map[string]any{"fixed": true},
		ExpectedVersion: sess.FormVersion,
	})
	require.NoError(t, err)

	resigned, err := svc.Sign(ctx, sess.ID, model.SignatureBlock{
		Image: "data:image/png;base64,def", SignerName: "Nadia Newhire",
	}, updated.FormVersion)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, resigned.Status)
}

func TestRequestChanges_OnlyFromCompleted(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess := signedSession(t, svc, f)
	sess, err := svc.Approve(ctx, sess.ID, onboarding.Reviewer{ID: f.manager.ID})
	require.NoError(t, err)
	require.Equal(t, model.StatusManagerApproved, sess.Status)

	_, err = svc.RequestChanges(ctx, sess.ID, onboarding.Reviewer{ID: "hr-1", Notes: "nope"})
	require.ErrorIs(t, err, onboarding.ErrInvalidTransition)
}

func TestExtend_GrowsOnly(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	extended, err := svc.Extend(ctx, sess.ID, 24*7)
	require.NoError(t, err)
	assert.True(t, extended.ExpiresAt.After(sess.ExpiresAt))

	// Shrinking back below the current expiry is refused.
	_, err = svc.Extend(ctx, sess.ID, 1)
	require.ErrorIs(t, err, onboarding.ErrValidation)

	_, err = svc.Extend(ctx, sess.ID, 0)
	require.ErrorIs(t, err, onboarding.ErrValidation)
}

func TestCancel(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	// Terminal: no second cancel, no extension.
	_, err = svc.Cancel(ctx, sess.ID)
	require.ErrorIs(t, err, onboarding.ErrInvalidTransition)
	_, err = svc.Extend(ctx, sess.ID, 24)
	require.ErrorIs(t, err, onboarding.ErrInvalidTransition)
}

func TestMarkExpiredSessions_Idempotent(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{EmployeeID: f.hire.ID})
	require.NoError(t, err)
	require.NoError(t, gdb.Model(&model.OnboardingSession{}).
		Where("id = ?", sess.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	n, err := svc.MarkExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Second sweep finds nothing left to flip.
	n, err = svc.MarkExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := svc.Store().ByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)
}

func TestMarkExpiredSessions_LeavesCompletedAlone(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess := signedSession(t, svc, f)
	require.NoError(t, gdb.Model(&model.OnboardingSession{}).
		Where("id = ?", sess.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	n, err := svc.MarkExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := svc.Store().ByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

// TestFullOnboardingFlow walks a hire end to end: invitation, wizard,
// signature, two-stage approval, account activation.
func TestFullOnboardingFlow(t *testing.T) {
	gdb := testDB(t)
	svc := newService(t, gdb)
	f := seedFixture(t, gdb)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, onboarding.CreateParams{
		EmployeeID:         f.hire.ID,
		LanguagePreference: "en",
	})
	require.NoError(t, err)

	started, err := svc.Start(ctx, sess.Token, f.hire.ID, "en")
	require.NoError(t, err)

	step := "forms"
	prog, err := svc.UpdateProgress(ctx, started.ID, onboarding.Progress{
		CurrentStep:     &step,
		PersonalInfo:    map[string]any{"first_name": "Nadia", "last_name": "Newhire"},
		ExpectedVersion: started.FormVersion,
	})
	require.NoError(t, err)

	withForms, err := svc.SubmitForms(ctx, prog.ID, map[string]any{
		"tax_form":  map[string]any{"filing_status": "single"},
		"handbook":  map[string]any{"acknowledged": true},
		"emergency": map[string]any{"contact": "555-0123"},
	}, prog.FormVersion)
	require.NoError(t, err)

	signed, err := svc.Sign(ctx, withForms.ID, model.SignatureBlock{
		Image:      "data:image/png;base64,sig",
		SignerName: "Nadia Newhire",
	}, withForms.FormVersion)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, signed.Status)

	afterManager, err := svc.Approve(ctx, signed.ID, onboarding.Reviewer{
		ID: f.manager.ID, Name: "Morgan Manager", Notes: "looks good",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusManagerApproved, afterManager.Status)

	final, err := svc.Approve(ctx, afterManager.ID, onboarding.Reviewer{
		ID: "hr-1", Name: "Harper HR",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, final.Status)

	// Everything accumulated in the form data survived the whole flow.
	assert.Equal(t, "Nadia", final.FormData.PersonalInfo["first_name"])
	assert.Len(t, final.FormData.Forms, 3)
	assert.NotNil(t, final.FormData.Signature)
	assert.NotNil(t, final.FormData.ManagerApproval)
	assert.NotNil(t, final.FormData.HRApproval)

	var u model.User
	require.NoError(t, gdb.First(&u, "id = ?", f.hireUser.ID).Error)
	assert.Nil(t, u.DeactivatedAt)

	// The employee got the welcome notification.
	var count int64
	require.NoError(t, gdb.Model(&model.Notification{}).
		Where("user_id = ? AND type = ?", f.hireUser.ID, "onboarding_approved").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

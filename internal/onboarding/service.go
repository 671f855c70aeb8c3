// Package onboarding implements the onboarding session lifecycle: token
// issuance and validation, wizard progress tracking, and the two-stage
// review state machine (manager then HR sign-off).
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/d9705996/checkin/internal/model"
	"gorm.io/gorm"
)

// Notification is the payload handed to the dispatcher on state changes.
type Notification struct {
	Type     string
	Title    string
	Content  string
	Priority string
	Data     map[string]any
}

// Notifier delivers notifications to users. Delivery is best effort: the
// service logs failures and never lets them roll back a state change.
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, n Notification) error
}

// Invitation is the payload for the onboarding invitation mail sent once at
// session creation.
type Invitation struct {
	ToEmail      string
	EmployeeName string
	Position     string
	OrgName      string
	URL          string
	Token        string
	Locale       string
}

// Inviter sends onboarding invitation mail. Best effort, like Notifier.
type Inviter interface {
	SendOnboardingInvitation(ctx context.Context, inv Invitation) error
}

// Service is the onboarding workflow engine.
type Service struct {
	db         *gorm.DB
	store      *Store
	notifier   Notifier
	inviter    Inviter
	log        *slog.Logger
	defaultTTL time.Duration
	baseURL    string
}

// NewService wires a Service. notifier and inviter may be nil, which
// disables the respective side effects.
func NewService(db *gorm.DB, notifier Notifier, inviter Inviter, log *slog.Logger, defaultTTL time.Duration, baseURL string) *Service {
	return &Service{
		db:         db,
		store:      NewStore(db),
		notifier:   notifier,
		inviter:    inviter,
		log:        log,
		defaultTTL: defaultTTL,
		baseURL:    baseURL,
	}
}

// Store exposes the session store for read paths (listings, lookups).
func (s *Service) Store() *Store { return s.store }

// CreateParams configures session creation.
type CreateParams struct {
	EmployeeID         string
	LanguagePreference string
	ExpirationHours    int
	// Supersede cancels an existing active session instead of failing with
	// ErrActiveSessionExists. The cancel and create happen in one transaction.
	Supersede bool
}

// CreateSession issues a token and creates a session for the employee, then
// sends the invitation mail (best effort). At most one active in_progress
// session per employee may exist; see CreateParams.Supersede.
func (s *Service) CreateSession(ctx context.Context, p CreateParams) (*model.OnboardingSession, error) {
	if p.EmployeeID == "" {
		return nil, fmt.Errorf("%w: employee_id is required", ErrValidation)
	}

	token, expiresAt, err := IssueToken(time.Duration(p.ExpirationHours)*time.Hour, s.defaultTTL)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	lang := p.LanguagePreference
	if lang == "" {
		lang = "en"
	}

	var emp model.Employee
	sess := &model.OnboardingSession{
		EmployeeID:         p.EmployeeID,
		Token:              token,
		Status:             model.StatusInProgress,
		LanguagePreference: lang,
		ExpiresAt:          expiresAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&emp, "id = ?", p.EmployeeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("employee %s: %w", p.EmployeeID, ErrNotFound)
			}
			return err
		}

		txStore := NewStore(tx)
		active, err := txStore.ActiveByEmployee(ctx, p.EmployeeID, time.Now())
		switch {
		case err == nil:
			if !p.Supersede {
				return ErrActiveSessionExists
			}
			if err := txStore.Update(ctx, active.ID, map[string]any{
				"status": model.StatusCancelled,
			}); err != nil {
				return fmt.Errorf("cancel superseded session: %w", err)
			}
		case !errors.Is(err, ErrNotFound):
			return err
		}

		return txStore.Create(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	if s.inviter != nil && emp.User != nil {
		inv := Invitation{
			ToEmail:      emp.User.Email,
			EmployeeName: emp.User.Name,
			Position:     emp.Position,
			URL:          s.baseURL + "/onboarding?token=" + token,
			Token:        token,
			Locale:       lang,
		}
		if emp.User.OrganizationID != nil {
			var org model.Organization
			if err := s.db.WithContext(ctx).First(&org, "id = ?", *emp.User.OrganizationID).Error; err == nil {
				inv.OrgName = org.Name
			}
		}
		if err := s.inviter.SendOnboardingInvitation(ctx, inv); err != nil {
			s.log.Error("send onboarding invitation", "session_id", sess.ID, "err", err)
		}
	}

	return sess, nil
}

// Validation is the result of a token check. Session is only populated for
// valid, unexpired tokens: an expired token yields the yes/no expiry signal
// and nothing else.
type Validation struct {
	IsValid   bool
	IsExpired bool
	Session   *model.OnboardingSession
}

// ValidateToken fails closed: unknown tokens and storage errors both come
// back as IsValid=false.
func (s *Service) ValidateToken(ctx context.Context, token string) Validation {
	if token == "" {
		return Validation{}
	}
	sess, err := s.store.ByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("validate token lookup", "err", err)
		}
		return Validation{}
	}
	if time.Now().After(sess.ExpiresAt) {
		return Validation{IsExpired: true}
	}
	return Validation{IsValid: true, Session: sess}
}

// Start binds the employee to their session at the first wizard visit:
// verifies the token belongs to the employee and records the language choice.
func (s *Service) Start(ctx context.Context, token, employeeID, lang string) (*model.OnboardingSession, error) {
	v := s.ValidateToken(ctx, token)
	if !v.IsValid {
		return nil, fmt.Errorf("%w: token is invalid or expired", ErrValidation)
	}
	sess := v.Session
	if sess.EmployeeID != employeeID {
		return nil, fmt.Errorf("%w: token does not match employee", ErrValidation)
	}

	fields := map[string]any{}
	if sess.CurrentStep == "" {
		fields["current_step"] = "personal_info"
	}
	if lang != "" {
		fields["language_preference"] = lang
	}
	if len(fields) > 0 {
		if err := s.store.Update(ctx, sess.ID, fields); err != nil {
			return nil, err
		}
	}
	return s.store.ByID(ctx, sess.ID)
}

// Progress is a partial employee-facing update. Nil fields are left alone;
// PersonalInfo is shallow-merged under its namespace, never replacing other
// namespaces. ExpectedVersion must match the form version the caller read.
type Progress struct {
	CurrentStep        *string
	LanguagePreference *string
	PersonalInfo       map[string]any
	ExpectedVersion    int
}

// UpdateProgress advances the wizard. Only in_progress and requires_changes
// sessions accept progress updates.
func (s *Service) UpdateProgress(ctx context.Context, id string, p Progress) (*model.OnboardingSession, error) {
	sess, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if p.CurrentStep != nil {
		fields["current_step"] = *p.CurrentStep
	}
	if p.LanguagePreference != nil {
		fields["language_preference"] = *p.LanguagePreference
	}
	if len(p.PersonalInfo) > 0 {
		fd := sess.FormData
		if fd.PersonalInfo == nil {
			fd.PersonalInfo = map[string]any{}
		}
		for k, v := range p.PersonalInfo {
			fd.PersonalInfo[k] = v
		}
		fields["form_data"] = fd
	}
	if len(fields) == 0 {
		return sess, nil
	}

	if err := s.store.CompareAndSwap(ctx, id, p.ExpectedVersion, fields); err != nil {
		return nil, err
	}
	return s.store.ByID(ctx, id)
}

// SubmitForms shallow-merges a batch of wizard form outputs under the
// "forms" namespace, keyed by form name.
func (s *Service) SubmitForms(ctx context.Context, id string, forms map[string]any, expectedVersion int) (*model.OnboardingSession, error) {
	if len(forms) == 0 {
		return nil, fmt.Errorf("%w: forms payload is empty", ErrValidation)
	}
	sess, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}

	fd := sess.FormData
	if fd.Forms == nil {
		fd.Forms = map[string]any{}
	}
	for name, payload := range forms {
		fd.Forms[name] = payload
	}

	err = s.store.CompareAndSwap(ctx, id, expectedVersion, map[string]any{"form_data": fd})
	if err != nil {
		return nil, err
	}
	return s.store.ByID(ctx, id)
}

// Sign records the write-once e-signature and completes the session: the
// signature is the final wizard step, so the status moves to completed,
// completed_at is stamped, and the employee's reviewers are notified.
func (s *Service) Sign(ctx context.Context, id string, sig model.SignatureBlock, expectedVersion int) (*model.OnboardingSession, error) {
	if sig.Image == "" || sig.SignerName == "" {
		return nil, fmt.Errorf("%w: signature image and signer name are required", ErrValidation)
	}
	sess, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.FormData.Signature != nil {
		return nil, fmt.Errorf("%w: session is already signed", ErrValidation)
	}

	now := time.Now()
	sig.SignedAt = now
	fd := sess.FormData
	fd.Signature = &sig

	err = s.store.CompareAndSwap(ctx, id, expectedVersion, map[string]any{
		"form_data":    fd,
		"status":       model.StatusCompleted,
		"completed_at": now,
	})
	if err != nil {
		return nil, err
	}

	s.notifyReviewers(ctx, sess, Notification{
		Type:     "onboarding_submitted",
		Title:    "Onboarding submitted",
		Content:  fmt.Sprintf("%s finished their onboarding paperwork and is awaiting review.", sig.SignerName),
		Priority: "high",
		Data:     map[string]any{"session_id": sess.ID},
	})
	return s.store.ByID(ctx, id)
}

// Reviewer identifies the user acting on a review endpoint.
type Reviewer struct {
	ID    string
	Name  string
	Notes string
}

// Approve advances the two-stage sign-off: a completed session becomes
// manager_approved; a manager_approved session becomes approved (terminal)
// and, in the same transaction, the employee's user account is activated.
func (s *Service) Approve(ctx context.Context, id string, r Reviewer) (*model.OnboardingSession, error) {
	sess, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	block := &model.ReviewBlock{
		ReviewerID:   r.ID,
		ReviewerName: r.Name,
		Notes:        r.Notes,
		ReviewedAt:   time.Now(),
	}

	switch sess.Status {
	case model.StatusCompleted:
		fd := sess.FormData
		fd.ManagerApproval = block
		if err := s.flip(ctx, s.db, sess, model.StatusManagerApproved, map[string]any{"form_data": fd}); err != nil {
			return nil, err
		}
		s.notifyHRAdmins(ctx, Notification{
			Type:     "onboarding_manager_approved",
			Title:    "Onboarding awaiting final approval",
			Content:  fmt.Sprintf("Manager %s approved an onboarding session; HR sign-off is pending.", r.Name),
			Priority: "high",
			Data:     map[string]any{"session_id": sess.ID},
		})

	case model.StatusManagerApproved:
		fd := sess.FormData
		fd.HRApproval = block
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.flip(ctx, tx, sess, model.StatusApproved, map[string]any{"form_data": fd}); err != nil {
				return err
			}
			return activateEmployee(tx, sess.EmployeeID)
		})
		if err != nil {
			return nil, err
		}
		s.notifyEmployee(ctx, sess, Notification{
			Type:     "onboarding_approved",
			Title:    "Welcome aboard",
			Content:  "Your onboarding was approved and your account is now active.",
			Priority: "high",
			Data:     map[string]any{"session_id": sess.ID},
		})

	default:
		return nil, transitionError("approve", sess.Status)
	}

	return s.store.ByID(ctx, id)
}

// Reject terminates a session under review. Irreversible: a rejected
// employee needs a brand-new session.
func (s *Service) Reject(ctx context.Context, id string, r Reviewer) (*model.OnboardingSession, error) {
	sess, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusCompleted && sess.Status != model.StatusManagerApproved {
		return nil, transitionError("reject", sess.Status)
	}

	fd := sess.FormData
	fd.Rejection = &model.ReviewBlock{
		ReviewerID:   r.ID,
		ReviewerName: r.Name,
		Notes:        r.Notes,
		ReviewedAt:   time.Now(),
	}
	if err := s.flip(ctx, s.db, sess, model.StatusRejected, map[string]any{"form_data": fd}); err != nil {
		return nil, err
	}

	s.notifyEmployee(ctx, sess, Notification{
		Type:     "onboarding_rejected",
		Title:    "Onboarding not approved",
		Content:  r.Notes,
		Priority: "high",
		Data:     map[string]any{"session_id": sess.ID},
	})
	return s.store.ByID(ctx, id)
}

// RequestChanges hands a completed session back to the employee, who keeps
// working against the same session and token.
func (s *Service) RequestChanges(ctx context.Context, id string, r Reviewer) (*model.OnboardingSession, error) {
	if r.Notes == "" {
		return nil, fmt.Errorf("%w: change request notes are required", ErrValidation)
	}
	sess, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusCompleted {
		return nil, transitionError("request changes on", sess.Status)
	}

	fd := sess.FormData
	fd.ChangeRequest = &model.ReviewBlock{
		ReviewerID:   r.ID,
		ReviewerName: r.Name,
		Notes:        r.Notes,
		ReviewedAt:   time.Now(),
	}
	// The employee re-signs after fixing things up.
	fd.Signature = nil
	if err := s.flip(ctx, s.db, sess, model.StatusRequiresChanges, map[string]any{"form_data": fd}); err != nil {
		return nil, err
	}

	s.notifyEmployee(ctx, sess, Notification{
		Type:     "onboarding_changes_requested",
		Title:    "Changes requested",
		Content:  r.Notes,
		Priority: "high",
		Data:     map[string]any{"session_id": sess.ID},
	})
	return s.store.ByID(ctx, id)
}

// Extend pushes the session expiry out. The expiry may only ever grow; the
// employee-facing path can never shorten it.
func (s *Service) Extend(ctx context.Context, id string, hours int) (*model.OnboardingSession, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: expiration_hours must be positive", ErrValidation)
	}
	sess, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, transitionError("extend", sess.Status)
	}

	next := time.Now().Add(time.Duration(hours) * time.Hour)
	if !next.After(sess.ExpiresAt) {
		return nil, fmt.Errorf("%w: new expiry %s would not extend the session", ErrValidation, next.Format(time.RFC3339))
	}
	if err := s.store.Update(ctx, id, map[string]any{"expires_at": next}); err != nil {
		return nil, err
	}
	return s.store.ByID(ctx, id)
}

// Cancel terminates any non-terminal session. Irreversible.
func (s *Service) Cancel(ctx context.Context, id string) (*model.OnboardingSession, error) {
	sess, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, transitionError("cancel", sess.Status)
	}
	if err := s.flip(ctx, s.db, sess, model.StatusCancelled, nil); err != nil {
		return nil, err
	}
	return s.store.ByID(ctx, id)
}

// MarkExpiredSessions is the idempotent expiry sweep. Safe to run repeatedly
// and concurrently; terminal sessions are never touched.
func (s *Service) MarkExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.MarkExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired onboarding sessions", "count", n)
	}
	return n, nil
}

// editable loads a session and verifies the employee may still mutate it.
func (s *Service) editable(ctx context.Context, id string) (*model.OnboardingSession, error) {
	sess, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusInProgress && sess.Status != model.StatusRequiresChanges {
		return nil, transitionError("update", sess.Status)
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, fmt.Errorf("%w: session has expired", ErrValidation)
	}
	return sess, nil
}

// flip performs a guarded status transition: the UPDATE matches the status
// the caller read, so a concurrent transition makes it miss and the caller
// gets ErrInvalidTransition instead of clobbering the newer state.
func (s *Service) flip(ctx context.Context, db *gorm.DB, sess *model.OnboardingSession, to model.SessionStatus, extra map[string]any) error {
	fields := map[string]any{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	res := db.WithContext(ctx).Model(&model.OnboardingSession{}).
		Where("id = ? AND status = ?", sess.ID, sess.Status).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return transitionError(string(to), sess.Status)
	}
	return nil
}

func transitionError(event string, from model.SessionStatus) error {
	return fmt.Errorf("%w: cannot %s a session in status %q", ErrInvalidTransition, event, from)
}

// activateEmployee is the final HR approval side effect: the employee's user
// account is reactivated and the activation timestamp stamped.
func activateEmployee(tx *gorm.DB, employeeID string) error {
	var emp model.Employee
	if err := tx.First(&emp, "id = ?", employeeID).Error; err != nil {
		return fmt.Errorf("load employee for activation: %w", err)
	}
	now := time.Now()
	if err := tx.Model(&model.Employee{}).Where("id = ?", employeeID).
		Update("activated_at", now).Error; err != nil {
		return fmt.Errorf("stamp employee activation: %w", err)
	}
	if err := tx.Model(&model.User{}).Where("id = ?", emp.UserID).
		Update("deactivated_at", nil).Error; err != nil {
		return fmt.Errorf("activate user account: %w", err)
	}
	return nil
}

// notify delivers a notification to one user, swallowing failures.
func (s *Service) notify(ctx context.Context, userID string, n Notification) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.NotifyUser(ctx, userID, n); err != nil {
		s.log.Error("notification dispatch", "user_id", userID, "type", n.Type, "err", err)
	}
}

func (s *Service) notifyEmployee(ctx context.Context, sess *model.OnboardingSession, n Notification) {
	if sess.Employee != nil {
		s.notify(ctx, sess.Employee.UserID, n)
		return
	}
	var emp model.Employee
	if err := s.db.WithContext(ctx).First(&emp, "id = ?", sess.EmployeeID).Error; err != nil {
		s.log.Error("notification target lookup", "session_id", sess.ID, "err", err)
		return
	}
	s.notify(ctx, emp.UserID, n)
}

// notifyReviewers tells every manager in the employee's organization.
func (s *Service) notifyReviewers(ctx context.Context, sess *model.OnboardingSession, n Notification) {
	if sess.Employee == nil || sess.Employee.User == nil || sess.Employee.User.OrganizationID == nil {
		return
	}
	var managers []model.User
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND roles LIKE ?", *sess.Employee.User.OrganizationID, `%"`+model.RoleManager+`"%`).
		Find(&managers).Error
	if err != nil {
		s.log.Error("reviewer lookup", "session_id", sess.ID, "err", err)
		return
	}
	for _, m := range managers {
		s.notify(ctx, m.ID, n)
	}
}

// notifyHRAdmins tells every hr_admin (they are global, not org-scoped).
func (s *Service) notifyHRAdmins(ctx context.Context, n Notification) {
	var admins []model.User
	err := s.db.WithContext(ctx).
		Where("roles LIKE ?", `%"`+model.RoleHRAdmin+`"%`).
		Find(&admins).Error
	if err != nil {
		s.log.Error("hr admin lookup", "err", err)
		return
	}
	for _, a := range admins {
		s.notify(ctx, a.ID, n)
	}
}

package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d9705996/checkin/internal/model"
	"gorm.io/gorm"
)

// Store is the persistence layer for onboarding sessions.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given GORM DB.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new session row.
func (s *Store) Create(ctx context.Context, sess *model.OnboardingSession) error {
	return s.db.WithContext(ctx).Create(sess).Error
}

// ByID loads a session with its employee and user preloaded.
func (s *Store) ByID(ctx context.Context, id string) (*model.OnboardingSession, error) {
	return s.one(ctx, "onboarding_sessions.id = ?", id)
}

// ByToken loads a session by its access token.
func (s *Store) ByToken(ctx context.Context, token string) (*model.OnboardingSession, error) {
	return s.one(ctx, "onboarding_sessions.token = ?", token)
}

func (s *Store) one(ctx context.Context, query string, arg any) (*model.OnboardingSession, error) {
	var sess model.OnboardingSession
	err := s.db.WithContext(ctx).
		Preload("Employee").Preload("Employee.User").
		Where(query, arg).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ActiveByEmployee returns the employee's unexpired in_progress session, or
// ErrNotFound when none exists.
func (s *Store) ActiveByEmployee(ctx context.Context, employeeID string, now time.Time) (*model.OnboardingSession, error) {
	var sess model.OnboardingSession
	err := s.db.WithContext(ctx).
		Where("employee_id = ? AND status = ? AND expires_at > ?",
			employeeID, model.StatusInProgress, now).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Update applies a partial field update to the session row.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.OnboardingSession{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// editableStatuses are the only states the employee-facing CAS writes may
// land on. Status transitions (cancel, reject, expire) do not bump
// form_version, so the version check alone cannot fence them out.
var editableStatuses = []model.SessionStatus{
	model.StatusInProgress,
	model.StatusRequiresChanges,
}

// CompareAndSwap applies fields only if the stored form_version still equals
// expectedVersion and the session is still editable, bumping the version in
// the same statement. A concurrent form write makes the WHERE miss and the
// caller gets ErrStaleSession; a concurrent status transition yields
// ErrInvalidTransition so a terminal session is never written over.
func (s *Store) CompareAndSwap(ctx context.Context, id string, expectedVersion int, fields map[string]any) error {
	fields["form_version"] = expectedVersion + 1
	res := s.db.WithContext(ctx).Model(&model.OnboardingSession{}).
		Where("id = ? AND form_version = ? AND status IN ?", id, expectedVersion, editableStatuses).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var sess model.OnboardingSession
		err := s.db.WithContext(ctx).Select("status").
			First(&sess, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		for _, st := range editableStatuses {
			if sess.Status == st {
				return ErrStaleSession
			}
		}
		return fmt.Errorf("%w: session is %q", ErrInvalidTransition, sess.Status)
	}
	return nil
}

// Delete removes a session row.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&model.OnboardingSession{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Filter narrows a session listing. Zero values mean "no constraint".
type Filter struct {
	EmployeeID     string
	Statuses       []model.SessionStatus
	OrganizationID string
	Expired        *bool // computed against now at query time, not stored
	CreatedFrom    time.Time
	CreatedTo      time.Time
	Page           int
	Limit          int
}

// Page describes the offset pagination of a listing result.
type Page struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// List returns sessions matching f plus pagination metadata.
func (s *Store) List(ctx context.Context, f Filter) ([]model.OnboardingSession, Page, error) {
	now := time.Now()

	q := s.db.WithContext(ctx).Model(&model.OnboardingSession{})
	if f.OrganizationID != "" {
		q = q.Joins("JOIN employees ON employees.id = onboarding_sessions.employee_id").
			Joins("JOIN users ON users.id = employees.user_id").
			Where("users.organization_id = ?", f.OrganizationID)
	}
	if f.EmployeeID != "" {
		q = q.Where("onboarding_sessions.employee_id = ?", f.EmployeeID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("onboarding_sessions.status IN ?", f.Statuses)
	}
	if f.Expired != nil {
		if *f.Expired {
			q = q.Where("onboarding_sessions.expires_at <= ?", now)
		} else {
			q = q.Where("onboarding_sessions.expires_at > ?", now)
		}
	}
	if !f.CreatedFrom.IsZero() {
		q = q.Where("onboarding_sessions.created_at >= ?", f.CreatedFrom)
	}
	if !f.CreatedTo.IsZero() {
		q = q.Where("onboarding_sessions.created_at <= ?", f.CreatedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, Page{}, err
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var sessions []model.OnboardingSession
	err := q.Preload("Employee").Preload("Employee.User").
		Order("onboarding_sessions.created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, Page{}, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return sessions, Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	}, nil
}

// MarkExpired flips every in_progress session whose expiry has passed to
// expired. The statement only matches rows still in_progress, so repeated or
// concurrent sweeps are no-ops for already-flipped rows.
func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.OnboardingSession{}).
		Where("status = ? AND expires_at <= ?", model.StatusInProgress, now).
		Updates(map[string]any{"status": model.StatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

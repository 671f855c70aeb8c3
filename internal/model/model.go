// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization represents a tenant in the multi-tenancy schema — one
// property (motel/hotel) or property group.
type Organization struct {
	ID        string    `gorm:"type:text;primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	Slug      string    `gorm:"type:text;not null;uniqueIndex"`
	Location  string    `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (o *Organization) BeforeCreate(_ *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// StringSlice is a []string that GORM serialises as JSON for both SQLite
// and PostgreSQL (TEXT column).
type StringSlice []string

// Built-in role names carried in User.Roles and JWT claims.
const (
	RoleHRAdmin  = "hr_admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// User is the GORM model for the users table.
// Users created from an accepted job application start deactivated and are
// activated by the final HR approval of their onboarding session.
type User struct {
	ID                 string      `gorm:"type:text;primaryKey"`
	OrganizationID     *string     `gorm:"type:text;index"`
	Email              string      `gorm:"type:text;not null;uniqueIndex"`
	Name               string      `gorm:"type:text;not null;default:''"`
	PasswordHash       string      `gorm:"type:text;not null;default:''"`
	Roles              StringSlice `gorm:"type:text;not null;default:'[]';serializer:json"`
	LanguagePreference string      `gorm:"type:text;not null;default:'en'"`
	DeactivatedAt      *time.Time
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// RefreshToken is the GORM model for the refresh_tokens table.
type RefreshToken struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;index"`
	TokenHash string    `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (rt *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}

// Employee is the 1:1 HR extension of a User.
type Employee struct {
	ID                string `gorm:"type:text;primaryKey"`
	UserID            string `gorm:"type:text;not null;uniqueIndex"`
	User              *User  `gorm:"foreignKey:UserID"`
	Position          string `gorm:"type:text;not null;default:''"`
	HireDate          *time.Time
	ActivatedAt       *time.Time
	TerminatedAt      *time.Time
	TerminationReason string    `gorm:"type:text;not null;default:''"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (e *Employee) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// SessionStatus enumerates the onboarding session lifecycle states.
type SessionStatus string

// Session lifecycle states. Approved, rejected, expired and cancelled are
// terminal: no transition leaves them.
const (
	StatusInProgress      SessionStatus = "in_progress"
	StatusCompleted       SessionStatus = "completed"
	StatusManagerApproved SessionStatus = "manager_approved"
	StatusApproved        SessionStatus = "approved"
	StatusRejected        SessionStatus = "rejected"
	StatusRequiresChanges SessionStatus = "requires_changes"
	StatusExpired         SessionStatus = "expired"
	StatusCancelled       SessionStatus = "cancelled"
)

// Terminal reports whether no further transitions may leave s.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// SignatureBlock is the write-once e-signature audit record stored under the
// "signature" namespace of a session's form data.
type SignatureBlock struct {
	Image      string    `json:"image"`
	SignerName string    `json:"signer_name"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	SignedAt   time.Time `json:"signed_at"`
}

// ReviewBlock records a reviewer decision (approval, rejection or change
// request) appended to a session's form data.
type ReviewBlock struct {
	ReviewerID   string    `json:"reviewer_id"`
	ReviewerName string    `json:"reviewer_name"`
	Notes        string    `json:"notes,omitempty"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

// FormData is the accumulating, namespaced document holding all wizard step
// outputs and review annotations for a session. Namespaces are only ever
// added or shallow-merged, never wholesale replaced, so the session keeps
// its own audit history.
type FormData struct {
	PersonalInfo    map[string]any  `json:"personal_info,omitempty"`
	Forms           map[string]any  `json:"forms,omitempty"`
	Signature       *SignatureBlock `json:"signature,omitempty"`
	ManagerApproval *ReviewBlock    `json:"manager_approval,omitempty"`
	HRApproval      *ReviewBlock    `json:"hr_approval,omitempty"`
	Rejection       *ReviewBlock    `json:"rejection,omitempty"`
	ChangeRequest   *ReviewBlock    `json:"change_request,omitempty"`
}

// OnboardingSession is the per-hire record tracking progress through the
// onboarding wizard. Token grants the (otherwise unauthenticated) employee
// access to their own session and is immutable after creation. FormVersion
// guards form-data writes: updates carry the version they read and lose if
// another write landed in between.
type OnboardingSession struct {
	ID                 string        `gorm:"type:text;primaryKey"`
	EmployeeID         string        `gorm:"type:text;not null;index"`
	Employee           *Employee     `gorm:"foreignKey:EmployeeID"`
	Token              string        `gorm:"type:text;not null;uniqueIndex"`
	Status             SessionStatus `gorm:"type:text;not null;default:'in_progress'"`
	CurrentStep        string        `gorm:"type:text;not null;default:''"`
	FormData           FormData      `gorm:"type:text;not null;default:'{}';serializer:json"`
	FormVersion        int           `gorm:"not null;default:0"`
	LanguagePreference string        `gorm:"type:text;not null;default:'en'"`
	ExpiresAt          time.Time     `gorm:"not null"`
	CompletedAt        *time.Time
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (s *OnboardingSession) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// DocumentType is the closed enum of document kinds an employee can hold.
type DocumentType string

// Known document types.
const (
	DocumentTaxForm     DocumentType = "tax_form"
	DocumentWorkPermit  DocumentType = "work_permit"
	DocumentIdentity    DocumentType = "identity"
	DocumentInsurance   DocumentType = "insurance"
	DocumentContract    DocumentType = "contract"
	DocumentHandbookAck DocumentType = "handbook_ack"
	DocumentOther       DocumentType = "other"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTaxForm, DocumentWorkPermit, DocumentIdentity,
		DocumentInsurance, DocumentContract, DocumentHandbookAck, DocumentOther:
		return true
	}
	return false
}

// Document is an uploaded employee document. Re-uploading the same logical
// document creates a new row with Version incremented; a signed document is
// never mutated again.
type Document struct {
	ID            string       `gorm:"type:text;primaryKey"`
	EmployeeID    string       `gorm:"type:text;not null;index"`
	DocumentType  DocumentType `gorm:"type:text;not null"`
	FilePath      string       `gorm:"type:text;not null"`
	Version       int          `gorm:"not null;default:1"`
	IsSigned      bool         `gorm:"not null;default:false"`
	SignedAt      *time.Time
	SignatureData *SignatureBlock `gorm:"type:text;serializer:json"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// ApplicationStatus enumerates job application review states.
type ApplicationStatus string

// Job application states.
const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// JobApplication is a public job application awaiting manager review.
type JobApplication struct {
	ID             string            `gorm:"type:text;primaryKey"`
	OrganizationID string            `gorm:"type:text;not null;index"`
	FullName       string            `gorm:"type:text;not null"`
	Email          string            `gorm:"type:text;not null"`
	Phone          string            `gorm:"type:text;not null;default:''"`
	Position       string            `gorm:"type:text;not null"`
	CoverNote      string            `gorm:"type:text;not null;default:''"`
	Status         ApplicationStatus `gorm:"type:text;not null;default:'pending'"`
	DecidedBy      *string           `gorm:"type:text"`
	DecidedAt      *time.Time
	CreatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (a *JobApplication) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// Notification is a per-user in-app notification row.
type Notification struct {
	ID        string         `gorm:"type:text;primaryKey"`
	UserID    string         `gorm:"type:text;not null;index"`
	Type      string         `gorm:"type:text;not null"`
	Title     string         `gorm:"type:text;not null"`
	Content   string         `gorm:"type:text;not null;default:''"`
	Priority  string         `gorm:"type:text;not null;default:'normal'"`
	Data      map[string]any `gorm:"type:text;not null;default:'{}';serializer:json"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

// Package authz is the single authorization point for the API: a static
// capability table mapping (role, action) to the widest scope that role may
// act in, evaluated once per request instead of ad hoc guards per route.
package authz

import (
	"errors"

	"github.com/d9705996/checkin/internal/auth"
	"github.com/d9705996/checkin/internal/model"
)

// Action names a guarded operation.
type Action string

// Guarded operations.
const (
	ActionSessionCreate     Action = "session:create"
	ActionSessionRead       Action = "session:read"
	ActionSessionList       Action = "session:list"
	ActionSessionReview     Action = "session:review"
	ActionSessionExtend     Action = "session:extend"
	ActionSessionCancel     Action = "session:cancel"
	ActionSessionSweep      Action = "session:sweep"
	ActionEmployeeRead      Action = "employee:read"
	ActionEmployeeWrite     Action = "employee:write"
	ActionEmployeeTerminate Action = "employee:terminate"
	ActionDocumentRead      Action = "document:read"
	ActionDocumentWrite     Action = "document:write"
	ActionApplicationList   Action = "application:list"
	ActionApplicationReview Action = "application:review"
	ActionAnnouncementSend  Action = "announcement:send"
)

// Scope is the widest resource scope a role may act in for an action.
type Scope int

// Scopes, narrowest to widest.
const (
	ScopeNone Scope = iota
	ScopeSelf
	ScopeOrganization
	ScopeGlobal
)

// Sentinel errors distinguishing "no identity" from "insufficient scope".
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
)

// policy is the capability table. hr_admin is global for everything;
// manager is scoped to its own organization; employee only touches
// resources it owns (review actions are deliberately absent).
var policy = map[string]map[Action]Scope{
	model.RoleHRAdmin: {
		ActionSessionCreate:     ScopeGlobal,
		ActionSessionRead:       ScopeGlobal,
		ActionSessionList:       ScopeGlobal,
		ActionSessionReview:     ScopeGlobal,
		ActionSessionExtend:     ScopeGlobal,
		ActionSessionCancel:     ScopeGlobal,
		ActionSessionSweep:      ScopeGlobal,
		ActionEmployeeRead:      ScopeGlobal,
		ActionEmployeeWrite:     ScopeGlobal,
		ActionEmployeeTerminate: ScopeGlobal,
		ActionDocumentRead:      ScopeGlobal,
		ActionDocumentWrite:     ScopeGlobal,
		ActionApplicationList:   ScopeGlobal,
		ActionApplicationReview: ScopeGlobal,
		ActionAnnouncementSend:  ScopeGlobal,
	},
	model.RoleManager: {
		ActionSessionCreate:     ScopeOrganization,
		ActionSessionRead:       ScopeOrganization,
		ActionSessionList:       ScopeOrganization,
		ActionSessionReview:     ScopeOrganization,
		ActionSessionExtend:     ScopeOrganization,
		ActionSessionCancel:     ScopeOrganization,
		ActionEmployeeRead:      ScopeOrganization,
		ActionEmployeeWrite:     ScopeOrganization,
		ActionEmployeeTerminate: ScopeOrganization,
		ActionDocumentRead:      ScopeOrganization,
		ActionDocumentWrite:     ScopeOrganization,
		ActionApplicationList:   ScopeOrganization,
		ActionApplicationReview: ScopeOrganization,
		ActionAnnouncementSend:  ScopeOrganization,
	},
	model.RoleEmployee: {
		ActionSessionRead:  ScopeSelf,
		ActionDocumentRead: ScopeSelf,
	},
}

// Resource identifies the target of an action for scope checks.
type Resource struct {
	OrganizationID string // tenant the resource belongs to
	OwnerUserID    string // user the resource belongs to (self-scoped actions)
}

// Authorize decides whether claims may perform action on res.
// Returns ErrUnauthenticated when claims is nil, ErrForbidden when no role
// grants a wide-enough scope, nil otherwise.
func Authorize(claims *auth.Claims, action Action, res Resource) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	for _, role := range claims.Roles {
		switch policy[role][action] {
		case ScopeGlobal:
			return nil
		case ScopeOrganization:
			if claims.OrganizationID != "" && claims.OrganizationID == res.OrganizationID {
				return nil
			}
		case ScopeSelf:
			if claims.UserID != "" && claims.UserID == res.OwnerUserID {
				return nil
			}
		}
	}
	return ErrForbidden
}

// MaxScope returns the widest scope any of the roles grants for action.
// List endpoints use it to decide between unfiltered and org-filtered queries.
func MaxScope(claims *auth.Claims, action Action) Scope {
	if claims == nil {
		return ScopeNone
	}
	max := ScopeNone
	for _, role := range claims.Roles {
		if s := policy[role][action]; s > max {
			max = s
		}
	}
	return max
}

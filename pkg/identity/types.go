package identity

import (
	"errors"
	"time"
)

// Role is the effective authorization level of a local user
type Role string

const (
	RolePassenger Role = "passenger" // Default role; can file and track own complaints
	RoleStaff     Role = "staff"     // Can work assigned complaints
	RoleAdmin     Role = "admin"     // Full access, including staff management
)

// Valid reports whether the role is one of the known values
func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// User is the durable local account record.
//
// ExternalID is empty until the account is linked to a provider subject
// (pre-registered accounts awaiting first sign-in). IsAdmin/IsStaff are
// redundant with Role and kept consistent for backward compatibility with
// older clients that read the flags directly.
type User struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"external_id,omitempty"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Address     string    `json:"address,omitempty"`
	Role        Role      `json:"role"`
	IsAdmin     bool      `json:"is_admin"`
	IsStaff     bool      `json:"is_staff"`
	IsActive    bool      `json:"is_active"`
	DateJoined  time.Time `json:"date_joined"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuthContext is the per-request authorization context populated once by the
// authentication middleware and read, never re-derived, by handlers.
//
// Authenticated is true only when a credential verified AND resolved to a
// local account. SubjectVerified distinguishes "no credential" from
// "verified subject with no local account" so login-only endpoints can
// answer 404 instead of 401 for the latter.
type AuthContext struct {
	Authenticated   bool
	SubjectVerified bool
	UserID          int64
	Role            Role
	Email           string
	ExternalID      string
	User            *User
}

// Unauthenticated returns the default context for requests without a
// usable credential
func Unauthenticated() *AuthContext {
	return &AuthContext{Role: RolePassenger}
}

// IsStaff reports whether the context grants staff-level access
func (a *AuthContext) IsStaff() bool {
	return a.Authenticated && (a.Role == RoleStaff || a.Role == RoleAdmin)
}

// IsAdmin reports whether the context grants admin-level access
func (a *AuthContext) IsAdmin() bool {
	return a.Authenticated && a.Role == RoleAdmin
}

var (
	// ErrNotFound is returned by store lookups that matched no user
	ErrNotFound = errors.New("identity: user not found")

	// ErrDuplicate is returned by Create when the email or external id is
	// already taken. This is the constraint backstop concurrent creators
	// rely on; it must never be silenced into an overwrite.
	ErrDuplicate = errors.New("identity: duplicate user")

	// ErrSubjectConflict is returned when a verified subject's email is
	// already bound to a different external subject id. Relinking is a
	// policy decision, not an automatic overwrite.
	ErrSubjectConflict = errors.New("identity: email already linked to a different subject")
)

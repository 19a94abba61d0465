package idp

import (
	"context"
	"errors"
	"fmt"
)

// TokenErrorCode classifies a verification failure
type TokenErrorCode string

const (
	// TokenExpired means the credential was valid once but has expired
	TokenExpired TokenErrorCode = "EXPIRED"
	// TokenInvalid means the credential never was valid (signature, audience, format)
	TokenInvalid TokenErrorCode = "INVALID"
	// ProviderError means the provider could not be consulted (network, outage, timeout)
	ProviderError TokenErrorCode = "PROVIDER_ERROR"
)

// TokenError is a typed verification failure
type TokenError struct {
	Code  TokenErrorCode
	cause error
}

// NewTokenError creates a typed verification failure wrapping its cause
func NewTokenError(code TokenErrorCode, cause error) *TokenError {
	return &TokenError{Code: code, cause: cause}
}

func (e *TokenError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token verification failed (%s): %v", e.Code, e.cause)
	}
	return fmt.Sprintf("token verification failed (%s)", e.Code)
}

func (e *TokenError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the token error code; ok is false for non-token errors
func CodeOf(err error) (TokenErrorCode, bool) {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

// VerifiedSubject is the identity a credential proved, as asserted by the
// provider. It is ephemeral and never persisted.
type VerifiedSubject struct {
	// ExternalID is the provider-assigned stable subject identifier
	ExternalID string

	// Email may be empty for subjects registered without one
	Email string

	// Claims is the raw claim set from the verified token
	Claims map[string]interface{}
}

// PrivilegedClaim reports whether the subject carries the boolean "admin"
// custom claim, either at the top level or nested under "claims" (both
// shapes occur in the wild depending on how the claim was set).
func (s *VerifiedSubject) PrivilegedClaim() bool {
	if s == nil || s.Claims == nil {
		return false
	}
	if claimIsTrue(s.Claims["admin"]) {
		return true
	}
	if nested, ok := s.Claims["claims"].(map[string]interface{}); ok {
		return claimIsTrue(nested["admin"])
	}
	return false
}

// claimIsTrue interprets the bool-ish encodings providers use for claims
func claimIsTrue(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "1"
	case float64:
		return val == 1
	default:
		return false
	}
}

// Verifier validates an opaque bearer credential against the provider.
//
// Verify returns the verified subject, or a *TokenError classifying the
// failure. Implementations must bound the provider round-trip with their
// own timeout; a timeout is reported as ProviderError.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*VerifiedSubject, error)
}

// ErrAccountNotFound is returned by AdminClient lookups that matched nothing
var ErrAccountNotFound = errors.New("idp: account not found")

// ClaimManager is the best-effort side channel for the provider's boolean
// privileged claim. Failures here are logged, never fatal: the local role
// remains authoritative.
type ClaimManager interface {
	AdminClaim(ctx context.Context, externalID string) (bool, error)
	SetAdminClaim(ctx context.Context, externalID string, admin bool) error
}

// AccountProvisioner manages provider accounts for identities the service
// creates itself (the bootstrap administrator, staff members).
type AccountProvisioner interface {
	// LookupByEmail returns the external subject id for an email,
	// or ErrAccountNotFound
	LookupByEmail(ctx context.Context, email string) (string, error)
	// CreateAccount creates a provider account and returns its external
	// subject id
	CreateAccount(ctx context.Context, email, password string) (string, error)
}

// AdminClient is the full provider admin surface
type AdminClient interface {
	ClaimManager
	AccountProvisioner
}

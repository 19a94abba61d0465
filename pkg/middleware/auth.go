package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raildesk/raildesk/pkg/contextkeys"
	"github.com/raildesk/raildesk/pkg/httputil"
	"github.com/raildesk/raildesk/pkg/identity"
	"github.com/raildesk/raildesk/pkg/idp"
	"github.com/raildesk/raildesk/pkg/observability"
)

// Authenticator resolves the caller's identity once per request and attaches
// an identity.AuthContext for downstream handlers and guards.
//
// A request with no Authorization header (or a malformed one) proceeds
// unauthenticated; route guards decide whether that is acceptable. A request
// that presents a credential gets a definitive verdict: verified or rejected
// with a coded 401. A presented-but-bad credential never degrades to
// unauthenticated, so a client cannot bypass verification by sending garbage.
type Authenticator struct {
	verifier   idp.Verifier
	reconciler *identity.Reconciler
	allowList  *identity.AllowList
	logger     *observability.Logger
	metrics    *observability.Metrics

	// exemptPaths are prefixes served without any verification attempt
	exemptPaths []string
}

// AuthenticatorOptions carries the optional collaborators
type AuthenticatorOptions struct {
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	ExemptPaths []string
}

// NewAuthenticator creates the authentication middleware
func NewAuthenticator(verifier idp.Verifier, reconciler *identity.Reconciler, allowList *identity.AllowList, opts AuthenticatorOptions) *Authenticator {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if allowList == nil {
		allowList = identity.NewAllowList(nil)
	}
	return &Authenticator{
		verifier:    verifier,
		reconciler:  reconciler,
		allowList:   allowList,
		logger:      logger,
		metrics:     opts.Metrics,
		exemptPaths: opts.ExemptPaths,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExempt(r.URL.Path) {
			m.countOutcome("exempt")
			next.ServeHTTP(w, r.WithContext(
				contextkeys.WithAuth(r.Context(), identity.Unauthenticated())))
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			// No credential at all: pass through unauthenticated and let
			// the route guards answer
			m.countOutcome("unauthenticated")
			next.ServeHTTP(w, r.WithContext(
				contextkeys.WithAuth(r.Context(), identity.Unauthenticated())))
			return
		}

		start := time.Now()
		subject, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.rejectToken(w, err, time.Since(start))
			return
		}
		if m.metrics != nil {
			m.metrics.ObserveVerification("ok", time.Since(start))
		}

		user, _, err := m.reconciler.Reconcile(r.Context(), subject)
		if err != nil {
			m.countOutcome("rejected")
			if errors.Is(err, identity.ErrSubjectConflict) {
				httputil.WriteCodedError(w, http.StatusUnauthorized,
					"account is linked to a different identity", httputil.CodeAuthError)
				return
			}
			m.logger.WithError(err).Error("identity reconciliation failed")
			httputil.WriteCodedError(w, http.StatusUnauthorized,
				"authentication failed", httputil.CodeAuthError)
			return
		}

		if user == nil {
			// Verified at the provider but no local account: guards treat
			// this as unauthenticated, login-only endpoints can tell the
			// difference through SubjectVerified
			m.countOutcome("unauthenticated")
			authCtx := identity.Unauthenticated()
			authCtx.SubjectVerified = true
			authCtx.Email = subject.Email
			authCtx.ExternalID = subject.ExternalID
			next.ServeHTTP(w, r.WithContext(
				contextkeys.WithAuth(r.Context(), authCtx)))
			return
		}

		role := identity.ResolveRole(user, m.allowList)
		authCtx := &identity.AuthContext{
			Authenticated:   true,
			SubjectVerified: true,
			UserID:          user.ID,
			Role:            role,
			Email:           user.Email,
			ExternalID:      user.ExternalID,
			User:            user,
		}

		m.countOutcome("authenticated")
		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(user.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rejectToken maps a verification failure onto its coded 401. Provider
// outages fail closed: a credential we could not check is not a credential
// we accept.
func (m *Authenticator) rejectToken(w http.ResponseWriter, err error, elapsed time.Duration) {
	code, _ := idp.CodeOf(err)
	m.countOutcome("rejected")
	switch code {
	case idp.TokenExpired:
		m.observeVerification("expired", elapsed)
		httputil.WriteCodedError(w, http.StatusUnauthorized,
			"token has expired", httputil.CodeTokenExpired)
	case idp.ProviderError:
		m.observeVerification("provider_error", elapsed)
		m.logger.WithError(err).Error("identity provider unavailable during verification")
		httputil.WriteCodedError(w, http.StatusUnauthorized,
			"authentication service unavailable", httputil.CodeAuthError)
	default:
		m.observeVerification("invalid", elapsed)
		httputil.WriteCodedError(w, http.StatusUnauthorized,
			"invalid authentication token", httputil.CodeInvalidToken)
	}
}

func (m *Authenticator) isExempt(path string) bool {
	for _, prefix := range m.exemptPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *Authenticator) countOutcome(outcome string) {
	if m.metrics != nil {
		m.metrics.AuthRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Authenticator) observeVerification(result string, elapsed time.Duration) {
	if m.metrics != nil {
		m.metrics.ObserveVerification(result, elapsed)
	}
}

// bearerToken extracts the credential from the Authorization header.
// Format: "Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *identity.AuthContext {
	ctx := r.Context().Value(contextkeys.AuthKey)
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.(*identity.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireAuthentication rejects requests without a resolved local identity
func RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil || !authCtx.Authenticated {
			httputil.WriteCodedError(w, http.StatusUnauthorized,
				"authentication required", httputil.CodeAuthenticationRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff rejects requests below staff level. Admins pass: role
// ordering is passenger < staff < admin.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil || !authCtx.Authenticated {
			httputil.WriteCodedError(w, http.StatusUnauthorized,
				"authentication required", httputil.CodeAuthenticationRequired)
			return
		}
		if !authCtx.IsStaff() {
			httputil.WriteCodedError(w, http.StatusForbidden,
				"staff access required", httputil.CodeStaffRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests below admin level
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil || !authCtx.Authenticated {
			httputil.WriteCodedError(w, http.StatusUnauthorized,
				"authentication required", httputil.CodeAuthenticationRequired)
			return
		}
		if !authCtx.IsAdmin() {
			httputil.WriteCodedError(w, http.StatusForbidden,
				"admin access required", httputil.CodeAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

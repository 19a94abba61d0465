// Package middleware provides HTTP middleware for authentication, authorization, and rate limiting.
//
// # Overview
//
// This package implements request processing middleware: bearer token
// authentication with identity reconciliation, role guards, and rate
// limiting (in-memory and Redis-backed).
//
// # Middleware Components
//
// Authenticator: token verification plus identity resolution
//
//	authn := middleware.NewAuthenticator(verifier, reconciler, allowList, opts)
//	router.Use(authn.Handler)
//	// Verifies the bearer token, resolves the local user, derives the
//	// effective role, and attaches an identity.AuthContext to the request.
//	// Requests without credentials pass through unauthenticated.
//
// Guards: per-route authorization
//
//	router.Handle("/api/accounts/users", middleware.RequireAdmin(handler))
//	// RequireAuthentication -> 401 AUTHENTICATION_REQUIRED
//	// RequireStaff          -> 403 STAFF_REQUIRED
//	// RequireAdmin          -> 403 ADMIN_REQUIRED
//
// RateLimitMiddleware: in-memory rate limiting
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting shared
// across instances
//
// # Related Packages
//
//   - pkg/idp: token verification against the identity provider
//   - pkg/identity: user store, reconciliation, role derivation
package middleware

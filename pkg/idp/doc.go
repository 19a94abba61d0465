// Package idp is the boundary to the external identity provider.
//
// It verifies opaque bearer credentials into a VerifiedSubject, and exposes
// the provider's admin surface: the boolean "admin" custom claim side channel
// and account provisioning for staff/administrator identities.
//
// Verification failures are typed: an expired token, an invalid token, and a
// provider outage are distinct outcomes, and all three are terminal for the
// request. The provider is never failed open - an unreachable provider yields
// a provider error, not an unauthenticated pass-through.
package idp

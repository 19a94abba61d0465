// Package identity owns the durable mapping between external provider
// subjects and local user accounts, and the reconciliation algorithm that
// keeps the two convergent.
//
// # Reconciliation
//
// Every authenticated request maps its verified subject onto at most one
// local user, in strict order:
//
//  1. Lookup by external subject id (fast path; the binding wins every
//     tie-break).
//  2. Lookup by email: a hit is a linking event - the row's empty external
//     id is claimed by the current subject. An email already bound to a
//     different subject is a conflict and is rejected, never silently
//     relinked.
//  3. No match: return nothing. Authentication never mints an account;
//     creation belongs to the explicit registration flow. The bootstrap
//     administrator is the sole exception.
//
// After resolution, a privileged claim on the token or an allow-listed email
// promotes the user to admin locally, and the promotion is propagated back
// to the provider best-effort.
//
// Correctness under concurrency comes from the store's uniqueness
// constraints on email and external id; the application-level
// lookup-then-update is an optimization on top of that backstop.
package identity

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raildesk/raildesk/pkg/async"
	"github.com/raildesk/raildesk/pkg/audit"
	"github.com/raildesk/raildesk/pkg/idp"
	"github.com/raildesk/raildesk/pkg/observability"
)

// Reconciler maps a verified subject onto at most one local user and keeps
// the provider's privileged claim and the local role convergent. It never
// creates accounts; see the package doc for the algorithm.
type Reconciler struct {
	store     Store
	allowList *AllowList
	claims    idp.ClaimManager
	auditor   audit.Recorder
	logger    *observability.Logger
	metrics   *observability.Metrics

	// claimTimeout bounds the fire-and-forget provider write
	claimTimeout time.Duration
}

// NewReconciler creates a reconciler. claims and metrics may be nil; a nil
// claims manager disables claim propagation but never local promotion.
func NewReconciler(store Store, allowList *AllowList, claims idp.ClaimManager, auditor audit.Recorder, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	if allowList == nil {
		allowList = NewAllowList(nil)
	}
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Reconciler{
		store:        store,
		allowList:    allowList,
		claims:       claims,
		auditor:      auditor,
		logger:       logger,
		metrics:      metrics,
		claimTimeout: 5 * time.Second,
	}
}

// SetClaimTimeout overrides the claim propagation budget
func (r *Reconciler) SetClaimTimeout(d time.Duration) {
	if d > 0 {
		r.claimTimeout = d
	}
}

// Reconcile resolves a verified subject to its local user.
//
// Returns (nil, false, nil) when no local account matches: authentication
// does not mint accounts, and callers decide whether that is a 404 or an
// unauthenticated pass-through. created is always false here - it exists
// for contract parity with the bootstrap path, the one caller allowed to
// create.
func (r *Reconciler) Reconcile(ctx context.Context, subject *idp.VerifiedSubject) (*User, bool, error) {
	if subject == nil {
		return nil, false, fmt.Errorf("nil subject")
	}

	// Step 1: subject-id binding wins every tie-break
	if subject.ExternalID != "" {
		user, err := r.store.FindByExternalID(ctx, subject.ExternalID)
		if err == nil {
			r.countReconcile("by_external_id")
			return r.syncPrivileges(ctx, user, subject), false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	// Step 2: linking by email
	if subject.Email == "" {
		r.countReconcile("not_found")
		return nil, false, nil
	}

	user, err := r.store.FindByEmail(ctx, subject.Email)
	if errors.Is(err, ErrNotFound) {
		// Authenticated at the provider but never registered locally
		r.countReconcile("not_found")
		r.logger.WithField("email", subject.Email).
			Warn("verified subject has no local account; registration required")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if user.ExternalID != "" && user.ExternalID != subject.ExternalID {
		return nil, false, r.rejectRelink(ctx, user, subject)
	}

	if user.ExternalID == "" && subject.ExternalID != "" {
		user, err = r.link(ctx, user, subject)
		if err != nil {
			return nil, false, err
		}
	}
	r.countReconcile("linked_by_email")

	return r.syncPrivileges(ctx, user, subject), false, nil
}

// link claims the unlinked row for the subject, absorbing races with
// concurrent first sign-ins of the same identity
func (r *Reconciler) link(ctx context.Context, user *User, subject *idp.VerifiedSubject) (*User, error) {
	claimed, err := r.store.LinkExternalID(ctx, user.ID, subject.ExternalID)
	if errors.Is(err, ErrDuplicate) {
		// The subject id landed on another row between our lookups
		if existing, ferr := r.store.FindByExternalID(ctx, subject.ExternalID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if !claimed {
		// Row was linked concurrently; accept only our own binding
		fresh, err := r.store.FindByEmail(ctx, subject.Email)
		if err != nil {
			return nil, err
		}
		if fresh.ExternalID != subject.ExternalID {
			return nil, r.rejectRelink(ctx, fresh, subject)
		}
		return fresh, nil
	}

	user.ExternalID = subject.ExternalID
	r.logger.WithField("email", user.Email).
		WithField("external_id", subject.ExternalID).
		Info("linked external subject to local account")
	if err := r.auditor.Record(ctx, audit.Event{
		Type:       audit.EventTypeIdentityLinked,
		UserID:     &user.ID,
		Email:      user.Email,
		ExternalID: subject.ExternalID,
	}); err != nil {
		r.logger.WithError(err).Warn("failed to record linking audit event")
	}
	return user, nil
}

// rejectRelink records the conflict and refuses to move the binding
func (r *Reconciler) rejectRelink(ctx context.Context, user *User, subject *idp.VerifiedSubject) error {
	r.countReconcile("conflict")
	r.logger.WithField("email", user.Email).
		WithField("bound_external_id", user.ExternalID).
		WithField("presented_external_id", subject.ExternalID).
		Error("email already linked to a different subject; refusing relink")
	if err := r.auditor.Record(ctx, audit.Event{
		Type:       audit.EventTypeRelinkRejected,
		UserID:     &user.ID,
		Email:      user.Email,
		ExternalID: subject.ExternalID,
		Detail:     fmt.Sprintf("bound to %s", user.ExternalID),
	}); err != nil {
		r.logger.WithError(err).Warn("failed to record relink audit event")
	}
	return ErrSubjectConflict
}

// syncPrivileges applies allow-list and claim-driven promotion, then
// propagates the admin claim back to the provider without blocking the
// request. The local promotion stands even if the provider write fails.
func (r *Reconciler) syncPrivileges(ctx context.Context, user *User, subject *idp.VerifiedSubject) *User {
	privileged := subject.PrivilegedClaim()
	allowListed := r.allowList.Contains(user.Email)
	if !privileged && !allowListed {
		return user
	}

	if user.Role != RoleAdmin {
		promoted, err := r.store.Promote(ctx, user.ID)
		if err != nil {
			// The request proceeds with the stored role; the next
			// authentication retries the promotion
			r.logger.WithError(err).WithField("email", user.Email).
				Error("failed to promote user to admin")
			return user
		}
		if promoted {
			user.Role = RoleAdmin
			user.IsAdmin = true
			user.IsStaff = true

			source := "allow_list"
			if privileged {
				source = "claim"
			}
			if r.metrics != nil {
				r.metrics.PromotionsTotal.WithLabelValues(source).Inc()
			}
			r.logger.WithField("email", user.Email).
				WithField("source", source).
				Info("promoted user to admin")
			if err := r.auditor.Record(ctx, audit.Event{
				Type:       audit.EventTypePromotion,
				UserID:     &user.ID,
				Email:      user.Email,
				ExternalID: subject.ExternalID,
				Detail:     source,
			}); err != nil {
				r.logger.WithError(err).Warn("failed to record promotion audit event")
			}
		}
	}

	// Self-heal the provider side when it does not assert the claim yet.
	// Detached from the request context: the response never waits on, or
	// fails because of, the provider write.
	if !privileged && r.claims != nil && subject.ExternalID != "" {
		externalID := subject.ExternalID
		claims := r.claims
		async.SafeGo(context.Background(), r.claimTimeout, "admin claim propagation", func(ctx context.Context) error {
			return claims.SetAdminClaim(ctx, externalID, true)
		})
	}

	return user
}

func (r *Reconciler) countReconcile(path string) {
	if r.metrics != nil {
		r.metrics.ReconcileTotal.WithLabelValues(path).Inc()
	}
}

package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/raildesk/raildesk/pkg/audit"
	"github.com/raildesk/raildesk/pkg/idp"
	"github.com/raildesk/raildesk/pkg/observability"
)

// Bootstrapper guarantees exactly one administrator identity exists. It runs
// on every process start; idempotence is load-bearing because multiple
// workers race through it on first deployment, and the email uniqueness
// constraint is what collapses that race to a single row.
type Bootstrapper struct {
	store       Store
	provisioner idp.AccountProvisioner
	claims      idp.ClaimManager
	auditor     audit.Recorder
	logger      *observability.Logger

	adminEmail    string
	adminPassword string
}

// NewBootstrapper creates an admin bootstrapper. provisioner and claims may
// be nil; without a provisioner the admin row is created unlinked and the
// email path claims it on the admin's first sign-in.
func NewBootstrapper(store Store, provisioner idp.AccountProvisioner, claims idp.ClaimManager, auditor audit.Recorder, logger *observability.Logger, adminEmail, adminPassword string) *Bootstrapper {
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Bootstrapper{
		store:         store,
		provisioner:   provisioner,
		claims:        claims,
		auditor:       auditor,
		logger:        logger,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
	}
}

// EnsureAdmin creates the designated administrator if absent. Safe to call
// on every start; never creates a second row.
func (b *Bootstrapper) EnsureAdmin(ctx context.Context) error {
	if b.adminEmail == "" {
		return fmt.Errorf("admin email is not configured")
	}

	if _, err := b.store.FindByEmail(ctx, b.adminEmail); err == nil {
		b.logger.WithField("email", b.adminEmail).Debug("admin user already exists")
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	externalID := b.resolveProviderAccount(ctx)

	admin := &User{
		ExternalID: externalID,
		Email:      b.adminEmail,
		FullName:   "Administrator",
		Role:       RoleAdmin,
		IsAdmin:    true,
		IsStaff:    true,
		IsActive:   true,
	}

	created, err := b.store.Create(ctx, admin)
	if errors.Is(err, ErrDuplicate) {
		// Another worker won the race; the constraint did its job
		b.logger.WithField("email", b.adminEmail).Info("admin user created concurrently")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	b.logger.WithField("email", b.adminEmail).
		WithField("external_id", externalID).
		Info("created admin user")
	if err := b.auditor.Record(ctx, audit.Event{
		Type:       audit.EventTypeBootstrapCreated,
		UserID:     &created.ID,
		Email:      created.Email,
		ExternalID: externalID,
	}); err != nil {
		b.logger.WithError(err).Warn("failed to record bootstrap audit event")
	}
	return nil
}

// resolveProviderAccount finds or creates the admin's provider account so
// the admin can actually sign in. Any provider failure leaves the row
// unlinked (empty subject id): only an empty external id is claimable by
// the email-linking path, so the binding heals on the admin's first real
// sign-in instead of colliding with the token's subject.
func (b *Bootstrapper) resolveProviderAccount(ctx context.Context) string {
	if b.provisioner == nil {
		return ""
	}

	externalID, err := b.provisioner.LookupByEmail(ctx, b.adminEmail)
	if errors.Is(err, idp.ErrAccountNotFound) {
		externalID, err = b.provisioner.CreateAccount(ctx, b.adminEmail, b.adminPassword)
		if err != nil {
			b.logger.WithError(err).Warn("failed to create provider account for admin; leaving row unlinked")
			return ""
		}
		b.logger.WithField("email", b.adminEmail).Info("created provider account for admin")
	} else if err != nil {
		b.logger.WithError(err).Warn("failed to look up provider account for admin; leaving row unlinked")
		return ""
	}

	if b.claims != nil {
		if err := b.claims.SetAdminClaim(ctx, externalID, true); err != nil {
			b.logger.WithError(err).Warn("failed to set admin claim on provider account")
		}
	}
	return externalID
}

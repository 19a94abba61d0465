// Package audit records security-relevant identity events to the database:
// subject linking, admin promotions, rejected relinks, and bootstrap actions.
// The trail is what makes the "reject conflicting relink" policy reviewable.
package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeIdentityLinked   EventType = "identity.linked"
	EventTypeRelinkRejected   EventType = "identity.relink_rejected"
	EventTypePromotion        EventType = "identity.promoted"
	EventTypeClaimSyncFailed  EventType = "identity.claim_sync_failed"
	EventTypeBootstrapCreated EventType = "bootstrap.admin_created"
	EventTypeStaffCreated     EventType = "admin.staff_created"
	EventTypeAccountDeleted   EventType = "account.deleted"
)

// Event is a single audit trail entry
type Event struct {
	Type       EventType
	UserID     *int64
	Email      string
	ExternalID string
	Detail     string
}

// Recorder persists audit events
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// DBRecorder implements Recorder on PostgreSQL, writing to the
// auth_audit_log table created by the identity migrations
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a database-backed audit recorder
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBRecorder{db: db}, nil
}

// Record inserts one audit row
func (r *DBRecorder) Record(ctx context.Context, event Event) error {
	query := `
		INSERT INTO auth_audit_log (action, user_id, email, external_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		string(event.Type), event.UserID, event.Email, event.ExternalID, event.Detail)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// NopRecorder discards events; used when auditing is disabled and in tests
type NopRecorder struct{}

// Record implements Recorder
func (NopRecorder) Record(ctx context.Context, event Event) error {
	return nil
}

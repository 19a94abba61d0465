package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all identity migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					external_id VARCHAR(128) NOT NULL DEFAULT '',
					email VARCHAR(255) NOT NULL,
					full_name VARCHAR(255) NOT NULL DEFAULT '',
					phone_number VARCHAR(20) NOT NULL DEFAULT '',
					gender VARCHAR(10) NOT NULL DEFAULT '',
					address VARCHAR(255) NOT NULL DEFAULT '',
					role VARCHAR(10) NOT NULL DEFAULT 'passenger',
					is_admin BOOLEAN NOT NULL DEFAULT FALSE,
					is_staff BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					date_joined TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT users_role_check CHECK (role IN ('passenger', 'staff', 'admin'))
				);

				CREATE UNIQUE INDEX uq_users_email ON users (lower(email));
				-- Unlinked rows share the empty string, so uniqueness only
				-- applies once a subject is bound
				CREATE UNIQUE INDEX uq_users_external_id ON users (external_id)
					WHERE external_id <> '';
			`,
		},
		{
			Version:     2,
			Description: "Create auth audit log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS auth_audit_log (
					id BIGSERIAL PRIMARY KEY,
					action VARCHAR(64) NOT NULL,
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					email VARCHAR(255) NOT NULL DEFAULT '',
					external_id VARCHAR(128) NOT NULL DEFAULT '',
					detail TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_auth_audit_log_action ON auth_audit_log(action);
				CREATE INDEX idx_auth_audit_log_user_id ON auth_audit_log(user_id);
				CREATE INDEX idx_auth_audit_log_created_at ON auth_audit_log(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identity_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM identity_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO identity_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Store is the durable user mapping. All operations are atomic; Create
// surfaces ErrDuplicate rather than overwriting, and the email/external-id
// uniqueness constraints behind it are what make concurrent reconciliation
// and bootstrap safe.
type Store interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) error

	// Delete removes a user row. The audit trail keeps its entries with
	// the user reference nulled by the foreign key.
	Delete(ctx context.Context, id int64) error

	// LinkExternalID claims an unlinked row for a subject. It only
	// succeeds when the row's external id is still empty, so a lost race
	// reports claimed=false instead of overwriting the winner's binding.
	LinkExternalID(ctx context.Context, userID int64, externalID string) (claimed bool, err error)

	// Promote raises a user to admin, setting the redundant flags in the
	// same statement. Reports promoted=false when already admin.
	Promote(ctx context.Context, userID int64) (promoted bool, err error)

	// UpsertProfile creates or updates a registration by email (the
	// explicit signup flow, the one path allowed to mint accounts).
	UpsertProfile(ctx context.Context, user *User) (*User, bool, error)

	List(ctx context.Context) ([]*User, error)
}

const userColumns = `id, external_id, email, full_name, phone_number, gender, address,
	       role, is_admin, is_staff, is_active, date_joined, updated_at`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed user store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByID looks a user up by primary key
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return s.queryOne(ctx, query, id)
}

// FindByExternalID looks a user up by provider subject id
func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	if externalID == "" {
		return nil, ErrNotFound
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE external_id = $1
	`
	return s.queryOne(ctx, query, externalID)
}

// FindByEmail looks a user up by email
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, ErrNotFound
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)
	`
	return s.queryOne(ctx, query, email)
}

// Create inserts a new user row, returning ErrDuplicate on a uniqueness
// violation
func (s *PostgresStore) Create(ctx context.Context, user *User) (*User, error) {
	role := user.Role
	if role == "" {
		role = RolePassenger
	}
	query := `
		INSERT INTO users (external_id, email, full_name, phone_number, gender, address,
		                   role, is_admin, is_staff, is_active, date_joined, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING ` + userColumns + `
	`
	created, err := s.scanOne(s.db.QueryRowContext(ctx, query,
		user.ExternalID, user.Email, user.FullName, user.PhoneNumber, user.Gender,
		user.Address, role, user.IsAdmin, user.IsStaff, user.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// Update persists profile and flag fields for an existing row
func (s *PostgresStore) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET full_name = $1, phone_number = $2, gender = $3, address = $4,
		    role = $5, is_admin = $6, is_staff = $7, is_active = $8, updated_at = NOW()
		WHERE id = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		user.FullName, user.PhoneNumber, user.Gender, user.Address,
		user.Role, user.IsAdmin, user.IsStaff, user.IsActive, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user row
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkExternalID atomically claims an unlinked row for a subject. The guard
// on empty external_id plus the unique index make this safe under
// concurrent first sign-ins.
func (s *PostgresStore) LinkExternalID(ctx context.Context, userID int64, externalID string) (bool, error) {
	query := `
		UPDATE users
		SET external_id = $1, updated_at = NOW()
		WHERE id = $2 AND (external_id = '' OR external_id IS NULL)
	`
	result, err := s.db.ExecContext(ctx, query, externalID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			// Subject already linked to another row
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("failed to link external id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Promote raises a user to admin in a single statement, keeping the
// redundant flags consistent with the role
func (s *PostgresStore) Promote(ctx context.Context, userID int64) (bool, error) {
	query := `
		UPDATE users
		SET role = $1, is_admin = TRUE, is_staff = TRUE, updated_at = NOW()
		WHERE id = $2 AND role <> $1
	`
	result, err := s.db.ExecContext(ctx, query, RoleAdmin, userID)
	if err != nil {
		return false, fmt.Errorf("failed to promote user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// UpsertProfile creates or updates a registration keyed by email
func (s *PostgresStore) UpsertProfile(ctx context.Context, user *User) (*User, bool, error) {
	role := user.Role
	if role == "" {
		role = RolePassenger
	}
	query := `
		INSERT INTO users (external_id, email, full_name, phone_number, gender, address,
		                   role, is_admin, is_staff, is_active, date_joined, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, NOW(), NOW())
		ON CONFLICT (lower(email)) DO UPDATE
		SET external_id = EXCLUDED.external_id,
		    full_name = EXCLUDED.full_name,
		    phone_number = EXCLUDED.phone_number,
		    gender = EXCLUDED.gender,
		    address = EXCLUDED.address,
		    role = EXCLUDED.role,
		    is_admin = EXCLUDED.is_admin,
		    is_staff = EXCLUDED.is_staff,
		    updated_at = NOW()
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`
	row := s.db.QueryRowContext(ctx, query,
		user.ExternalID, user.Email, user.FullName, user.PhoneNumber, user.Gender,
		user.Address, role, user.IsAdmin, user.IsStaff)

	u := &User{}
	var inserted bool
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.FullName, &u.PhoneNumber, &u.Gender,
		&u.Address, &u.Role, &u.IsAdmin, &u.IsStaff, &u.IsActive, &u.DateJoined,
		&u.UpdatedAt, &inserted)
	if err != nil {
		if isUniqueViolation(err) {
			// Conflict on external_id rather than email
			return nil, false, ErrDuplicate
		}
		return nil, false, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return u, inserted, nil
}

// List returns all users ordered by signup time
func (s *PostgresStore) List(ctx context.Context) ([]*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY date_joined ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...interface{}) (*User, error) {
	user, err := s.scanOne(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*User, error) {
	return scanUser(row)
}

func scanUser(row rowScanner) (*User, error) {
	user := &User{}
	var externalID, fullName, phoneNumber, gender, address sql.NullString
	err := row.Scan(
		&user.ID, &externalID, &user.Email, &fullName, &phoneNumber, &gender,
		&address, &user.Role, &user.IsAdmin, &user.IsStaff, &user.IsActive,
		&user.DateJoined, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.ExternalID = externalID.String
	user.FullName = fullName.String
	user.PhoneNumber = phoneNumber.String
	user.Gender = gender.String
	user.Address = address.String
	return user, nil
}

// isUniqueViolation reports whether the error is a Postgres unique
// constraint violation (class 23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

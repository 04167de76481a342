package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the Identity Store.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, full_name, email, password_hash, role, phone, date_of_birth,
	medical_history, dexcom_id, created_at, updated_at`

// Create inserts a new user. Email is normalized before insert; a second
// account with the same email fails with apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RolePatient
	}

	var dob sql.NullTime
	if user.DateOfBirth != nil {
		dob = sql.NullTime{Time: *user.DateOfBirth, Valid: true}
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.FullName,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Phone,
		dob,
		user.MedicalHistory,
		user.DexcomID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// FindByEmail looks a user up by normalized email.
func (u *UserDB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: finding user by email: %w", err)
	}
	return user, nil
}

// ListByRole returns every user with the given role, ordered by name.
func (u *UserDB) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY full_name, id`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users by role %s: %w", role, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}
	return users, nil
}

// LinkDevice sets the external-device linkage id. Passing "" unlinks.
func (u *UserDB) LinkDevice(ctx context.Context, userID, dexcomID string) error {
	res, err := u.conn.ExecContext(ctx,
		`UPDATE users SET dexcom_id = ?, updated_at = ? WHERE id = ?`,
		dexcomID, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: linking device for user %s: %w", userID, err)
	}
	return requireAffected(res, "user", userID)
}

// Delete removes a user. Readings, food logs, comments and credentials go
// with it through ON DELETE CASCADE.
func (u *UserDB) Delete(ctx context.Context, id string) error {
	res, err := u.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		user model.User
		role string
		dob  sql.NullTime
	)
	err := s.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Phone,
		&dob,
		&user.MedicalHistory,
		&user.DexcomID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	if dob.Valid {
		t := dob.Time
		user.DateOfBirth = &t
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

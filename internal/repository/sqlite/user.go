package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/gatehouse/internal/apperror"
	"github.com/sakif/gatehouse/internal/model"
	"github.com/sakif/gatehouse/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, first_name, last_name, email, username, password_hash, created_at`

// Create inserts a new user. The ID is generated here with xid (sortable,
// URL-safe, 20 chars) and written back into the caller's struct along with
// CreatedAt.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		id := user.ID
		user.ID = ""
		if field, ok := uniqueViolation(err); ok {
			value := user.Username
			if field == "email" {
				value = user.Email
			}
			return apperror.Conflict(field, value)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", id, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getBy(ctx, "id", id)
}

// GetByUsername looks a user up by exact username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getBy(ctx, "username", username)
}

// GetByEmail looks a user up by exact email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getBy(ctx, "email", email)
}

// getBy runs a single-row lookup. column is always one of our constants,
// never user input, so building the WHERE clause with it is safe.
func (db *DB) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	return &u, nil
}

// uniqueViolation reports which column a UNIQUE constraint failure hit.
// SQLite phrases it as "UNIQUE constraint failed: users.email".
func uniqueViolation(err error) (string, bool) {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	// Extended codes are on by default, but fall back to the primary code
	// plus message in case a build reports only SQLITE_CONSTRAINT.
	if se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
		(se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT || !strings.Contains(se.Error(), "UNIQUE")) {
		return "", false
	}
	if strings.Contains(se.Error(), "users.email") {
		return "email", true
	}
	return "username", true
}

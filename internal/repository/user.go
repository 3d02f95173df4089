package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/accounts/accounts-go/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

const userColumns = `id, username, email, password, first_name, last_name, is_staff, last_login, date_joined`

// UserRepository handles user persistence operations.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and sets the generated ID and join date on the
// user struct. Uniqueness of username and email is enforced by the schema.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (username, email, password, first_name, last_name, is_staff, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	joined := now()
	result, err := r.db.ExecContext(ctx, query,
		nullString(user.Username), nullString(user.Email), user.PasswordHash,
		user.FirstName, user.LastName, user.IsStaff, joined,
	)
	if err != nil {
		return translateWriteError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	user.ID = id
	user.DateJoined = joined
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByUsername retrieves a user by their username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// EmailExists reports whether any user has the given email.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
}

// UsernameExists reports whether any user has the given username.
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
}

// List returns every user ordered by ID.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	return users, rows.Err()
}

// Update writes the mutable profile fields of an existing user. The
// password column is written only when PasswordHash is set.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, is_staff = ?`
	args := []any{nullString(user.Username), nullString(user.Email), user.FirstName, user.LastName, user.IsStaff}
	if user.PasswordHash != "" {
		query += `, password = ?`
		args = append(args, user.PasswordHash)
	}
	query += ` WHERE id = ?`
	args = append(args, user.ID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateWriteError(err)
	}
	return requireRow(result)
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(result)
}

// UpdateLastLogin records a successful login at the given time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`,
		at.UTC().Truncate(time.Microsecond), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return requireRow(result)
}

// Delete permanently removes a user. The user's token goes with it.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(result)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		username  sql.NullString
		email     sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID, &username, &email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsStaff, &lastLogin, &u.DateJoined,
	)
	if err != nil {
		return nil, err
	}

	u.Username = username.String
	u.Email = email.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

// requireRow maps an update or delete that matched nothing to ErrUserNotFound.
// It relies on the clientFoundRows setting applied by NewDB.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// nullString stores an absent username or email as NULL so that the unique
// indexes only apply to supplied values.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// translateWriteError maps unique key violations to sentinel errors.
func translateWriteError(err error) error {
	if !isDuplicateEntryError(err) {
		return fmt.Errorf("write user: %w", err)
	}
	var me *mysql.MySQLError
	errors.As(err, &me)
	switch {
	case strings.Contains(me.Message, "uq_users_username"):
		return ErrDuplicateUsername
	case strings.Contains(me.Message, "uq_users_email"):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("write user: %w", err)
	}
}

// isDuplicateEntryError checks if a MySQL error is a duplicate entry error (code 1062).
func isDuplicateEntryError(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

package service

import (
	"context"
	"time"

	"github.com/accounts/accounts-go/internal/model"
)

// UserStore persists user records. Implementations must enforce username
// and email uniqueness themselves and report violations with
// repository.ErrDuplicateUsername and repository.ErrDuplicateEmail. Update
// leaves the stored password alone when PasswordHash is empty.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// TokenStore keeps one bearer token per user.
type TokenStore interface {
	GetOrCreate(ctx context.Context, userID int64, key string) (*model.Token, error)
	UserByKey(ctx context.Context, key string) (*model.User, error)
	DeleteForUser(ctx context.Context, userID int64) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// ResetNotifier delivers password reset links to users.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, reset model.PasswordReset) error
}

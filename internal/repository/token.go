package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/accounts/accounts-go/internal/model"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRepository stores the bearer token of each user.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetOrCreate returns the user's token, storing key as the new token if the
// user has none. The unique index on user_id makes concurrent calls converge
// on a single token: a losing INSERT is ignored and the winner is read back.
func (r *TokenRepository) GetOrCreate(ctx context.Context, userID int64, key string) (*model.Token, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO auth_tokens (token_key, user_id, created_at) VALUES (?, ?, ?)`,
		key, userID, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}

	token := &model.Token{}
	err = r.db.QueryRowContext(ctx,
		`SELECT token_key, user_id, created_at FROM auth_tokens WHERE user_id = ?`, userID,
	).Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("select token: %w", err)
	}

	return token, nil
}

// UserByKey resolves a token key to the user that owns it.
func (r *TokenRepository) UserByKey(ctx context.Context, key string) (*model.User, error) {
	query := `SELECT u.id, u.username, u.email, u.password, u.first_name, u.last_name, u.is_staff, u.last_login, u.date_joined
		FROM auth_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token_key = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return user, nil
}

// DeleteForUser removes the user's token, if any.
func (r *TokenRepository) DeleteForUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

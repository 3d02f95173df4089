package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/accounts/accounts-go/internal/crypto"
	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/repository"
)

// AuthService handles registration, bearer tokens and passwords.
type AuthService struct {
	users     UserStore
	tokens    TokenStore
	hasher    PasswordHasher
	resets    crypto.ResetTokenGenerator
	notifier  ResetNotifier
	resetURL  string
	validator userValidator
	now       func() time.Time
	newKey    func() (string, error)
}

// NewAuthService creates a new AuthService. Reset links are built as
// resetURL/<uidb64>/<token>.
func NewAuthService(
	users UserStore,
	tokens TokenStore,
	hasher PasswordHasher,
	resets crypto.ResetTokenGenerator,
	notifier ResetNotifier,
	resetURL string,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		resets:    resets,
		notifier:  notifier,
		resetURL:  strings.TrimRight(resetURL, "/"),
		validator: userValidator{users: users},
		now:       time.Now,
		newKey:    crypto.GenerateKey,
	}
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req model.UserRequest) (model.UserResponse, error) {
	if err := s.validator.validate(ctx, req, modeCreate); err != nil {
		return model.UserResponse{}, err
	}

	hash, err := s.hasher.Hash(*req.Password)
	if err != nil {
		return model.UserResponse{}, err
	}

	user := &model.User{
		Username:     deref(req.Username),
		Email:        deref(req.Email),
		PasswordHash: hash,
		FirstName:    deref(req.FirstName),
		LastName:     deref(req.LastName),
		IsStaff:      req.IsStaff != nil && *req.IsStaff,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.UserResponse{}, uniqueViolation(err)
	}

	return user.Response(), nil
}

// Login checks the credentials and returns the user's bearer token,
// creating it if the user has none. Repeated logins return the same token
// until it is revoked by Logout.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	if req.Email == "" && req.Username == "" {
		return model.LoginResponse{}, newValidationError(MsgIdentifierRequired)
	}
	if req.Password == "" {
		return model.LoginResponse{}, &ValidationError{Fields: map[string]string{"password": MsgFieldRequired}}
	}

	var (
		user *model.User
		err  error
	)
	if req.Email != "" {
		user, err = s.users.GetByEmail(ctx, req.Email)
	} else {
		user, err = s.users.GetByUsername(ctx, req.Username)
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.LoginResponse{}, newValidationError(MsgInvalidCredentials)
		}
		return model.LoginResponse{}, err
	}

	match, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		slog.Warn("stored password hash is unusable", "user_id", user.ID, "error", err)
	}
	if !match {
		return model.LoginResponse{}, newValidationError(MsgInvalidCredentials)
	}

	key, err := s.newKey()
	if err != nil {
		return model.LoginResponse{}, err
	}
	token, err := s.tokens.GetOrCreate(ctx, user.ID, key)
	if err != nil {
		return model.LoginResponse{}, err
	}

	// Recording the login invalidates outstanding reset tokens, so it
	// happens only once the login can no longer fail.
	loggedIn := s.now().UTC().Truncate(time.Microsecond)
	if err := s.users.UpdateLastLogin(ctx, user.ID, loggedIn); err != nil {
		return model.LoginResponse{}, fmt.Errorf("record login: %w", err)
	}
	user.LastLogin = &loggedIn

	return model.LoginResponse{
		Token: token.Key,
		User:  user.Response(),
	}, nil
}

// Authenticate resolves a bearer token key to its user.
func (s *AuthService) Authenticate(ctx context.Context, key string) (*model.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.tokens.UserByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// Logout revokes the user's bearer token.
func (s *AuthService) Logout(ctx context.Context, user *model.User) error {
	return s.tokens.DeleteForUser(ctx, user.ID)
}

// RequestPasswordReset issues a reset token for the user owning email and
// hands the link to the notifier. Delivery failures are logged only.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req model.PasswordResetRequest) (model.PasswordReset, error) {
	switch {
	case req.Email == "":
		return model.PasswordReset{}, &ValidationError{Fields: map[string]string{"email": MsgFieldRequired}}
	case !validEmail(req.Email):
		return model.PasswordReset{}, &ValidationError{Fields: map[string]string{"email": MsgInvalidEmail}}
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.PasswordReset{}, newValidationError(MsgUnknownEmail)
		}
		return model.PasswordReset{}, err
	}

	uid := EncodeUID(user.ID)
	token := s.resets.Make(resetState(user), s.now())
	reset := model.PasswordReset{
		UserID: user.ID,
		Email:  user.Email,
		UIDB64: uid,
		Token:  token,
		Link:   s.resetURL + "/" + uid + "/" + token,
	}

	if err := s.notifier.SendPasswordReset(ctx, reset); err != nil {
		slog.Error("failed to deliver password reset", "user_id", user.ID, "error", err)
	}

	return reset, nil
}

// ConfirmPasswordReset sets a new password for the user identified by
// uidb64 if token is still valid for that user.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, uidb64, token, newPassword string) error {
	id, err := DecodeUID(uidb64)
	if err != nil {
		return newValidationError(MsgInvalidUserID)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newValidationError(MsgInvalidUserID)
		}
		return err
	}

	if !s.resets.Check(resetState(user), token, s.now()) {
		return newValidationError(MsgInvalidResetToken)
	}

	if utf8.RuneCountInString(newPassword) < minPasswordLength {
		return newValidationError(MsgNewPasswordShort)
	}

	return s.setPassword(ctx, user.ID, newPassword)
}

// ChangePassword replaces the password of an authenticated user. The new
// password must be present but has no minimum length here, unlike
// registration and reset.
// The user's bearer token stays valid.
func (s *AuthService) ChangePassword(ctx context.Context, user *model.User, req model.ChangePasswordRequest) error {
	match, err := s.hasher.Verify(req.OldPassword, user.PasswordHash)
	if err != nil {
		slog.Warn("stored password hash is unusable", "user_id", user.ID, "error", err)
	}
	if !match {
		return newValidationError(MsgInvalidOldPassword)
	}
	if req.NewPassword == "" {
		return &ValidationError{Fields: map[string]string{"new_password": MsgFieldRequired}}
	}

	return s.setPassword(ctx, user.ID, req.NewPassword)
}

func (s *AuthService) setPassword(ctx context.Context, id int64, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func resetState(u *model.User) crypto.ResetState {
	return crypto.ResetState{
		UserID:     u.ID,
		LastLogin:  u.LastLogin,
		DateJoined: u.DateJoined,
	}
}

// EncodeUID encodes a user id for use in a reset link.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID. Trailing padding is tolerated.
func DecodeUID(s string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// uniqueViolation turns a store-level uniqueness failure into the same
// validation error the pre-check reports.
func uniqueViolation(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return newValidationError(MsgEmailTaken)
	case errors.Is(err, repository.ErrDuplicateUsername):
		return newValidationError(MsgUsernameTaken)
	default:
		return err
	}
}

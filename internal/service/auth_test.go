package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accounts/accounts-go/internal/crypto"
	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/service/servicetest"
)

func registerReq(username, email, password string) model.UserRequest {
	req := model.UserRequest{Password: strPtr(password)}
	if username != "" {
		req.Username = strPtr(username)
	}
	if email != "" {
		req.Email = strPtr(email)
	}
	return req
}

func requireValidation(t *testing.T, err error, msg string) {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, msg, ve.Message)
}

func requireFieldError(t *testing.T, err error, field, msg string) {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, msg, ve.Fields[field], "fields: %v", ve.Fields)
}

func TestRegister(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, model.UserRequest{
		Username:  strPtr("alice"),
		Email:     strPtr("a@x.com"),
		Password:  strPtr("longenough1"),
		FirstName: strPtr("Alice"),
		LastName:  strPtr("Liddell"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.UserResponse{
		ID:        1,
		Username:  "alice",
		Email:     "a@x.com",
		FirstName: "Alice",
		LastName:  "Liddell",
	}, resp)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")

	stored, err := f.users.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "longenough1", stored.PasswordHash)
	assert.False(t, stored.DateJoined.IsZero())
	assert.Nil(t, stored.LastLogin)
}

func TestRegisterPasswordLength(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("short", "", "1234567"))
	requireValidation(t, err, MsgPasswordTooShort)

	_, err = f.auth.Register(ctx, registerReq("exact", "", "12345678"))
	assert.NoError(t, err)

	_, err = f.auth.Register(ctx, registerReq("runes", "", "ééééééé"))
	requireValidation(t, err, MsgPasswordTooShort)
}

func TestRegisterIdentifierRequired(t *testing.T) {
	f := newFixture()

	_, err := f.auth.Register(context.Background(), registerReq("", "", "longenough1"))
	requireValidation(t, err, MsgIdentifierRequired)

	_, err = f.auth.Register(context.Background(), model.UserRequest{
		Username: strPtr(""),
		Email:    strPtr(""),
		Password: strPtr("longenough1"),
	})
	requireValidation(t, err, MsgIdentifierRequired)
}

func TestRegisterDuplicates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, registerReq("alice", "other@x.com", "longenough1"))
	requireValidation(t, err, MsgUsernameTaken)

	_, err = f.auth.Register(ctx, registerReq("bob", "a@x.com", "longenough1"))
	requireValidation(t, err, MsgEmailTaken)

	// Email is checked before username.
	_, err = f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	requireValidation(t, err, MsgEmailTaken)
}

func TestRegisterUniquenessRace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	racy := NewAuthService(servicetest.RacyUsers{Users: f.users}, f.tokens, servicetest.PlainHasher{}, f.auth.resets, f.notifier, "")

	_, err = racy.Register(ctx, registerReq("alice", "new@x.com", "longenough1"))
	requireValidation(t, err, MsgUsernameTaken)

	_, err = racy.Register(ctx, registerReq("carol", "a@x.com", "longenough1"))
	requireValidation(t, err, MsgEmailTaken)
}

func TestRegisterWithoutUsernameOrEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("", "one@x.com", "longenough1"))
	require.NoError(t, err)
	_, err = f.auth.Register(ctx, registerReq("", "two@x.com", "longenough1"))
	require.NoError(t, err)
	_, err = f.auth.Register(ctx, registerReq("onlyname", "", "longenough1"))
	require.NoError(t, err)
	_, err = f.auth.Register(ctx, registerReq("othername", "", "longenough1"))
	require.NoError(t, err)
}

func TestRegisterFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   model.UserRequest
		field string
		msg   string
	}{
		{"missing password", model.UserRequest{Username: strPtr("alice")}, "password", MsgFieldRequired},
		{"blank password", registerReq("alice", "", ""), "password", MsgFieldBlank},
		{"bad email", registerReq("alice", "not-an-email", "longenough1"), "email", MsgInvalidEmail},
		{"display name email", registerReq("alice", "Alice <a@x.com>", "longenough1"), "email", MsgInvalidEmail},
		{"bad username", registerReq("al ice", "", "longenough1"), "username", MsgInvalidName},
		{"long username", registerReq(strings.Repeat("a", 151), "", "longenough1"), "username", MsgFieldTooLong},
		{"long first name", model.UserRequest{
			Username:  strPtr("alice"),
			Password:  strPtr("longenough1"),
			FirstName: strPtr(strings.Repeat("n", 151)),
		}, "first_name", MsgFieldTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.auth.Register(context.Background(), tt.req)
			requireFieldError(t, err, tt.field, tt.msg)
		})
	}
}

func TestRegisterNeverSharesIdentifiers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	names := []string{"ann", "ben", "ann", "cat", "ben", "dan"}
	emails := []string{"a@x.com", "b@x.com", "c@x.com", "a@x.com", "e@x.com", "f@x.com"}
	for i := range names {
		for j := range emails {
			_, _ = f.auth.Register(ctx, registerReq(names[i], emails[j], "longenough1"))
		}
	}

	users, err := f.users.List(ctx)
	require.NoError(t, err)
	seenName := map[string]bool{}
	seenEmail := map[string]bool{}
	for _, u := range users {
		assert.False(t, seenName[u.Username], "username %q shared", u.Username)
		assert.False(t, seenEmail[u.Email], "email %q shared", u.Email)
		seenName[u.Username] = true
		seenEmail[u.Email] = true
	}
}

func TestLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	byName, err := f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	require.NoError(t, err)
	assert.NotEmpty(t, byName.Token)
	assert.Equal(t, "alice", byName.User.Username)

	byEmail, err := f.auth.Login(ctx, model.LoginRequest{Email: "a@x.com", Password: "longenough1"})
	require.NoError(t, err)
	assert.Equal(t, byName.Token, byEmail.Token, "a live token is reused")

	stored, err := f.users.GetByID(ctx, byName.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, f.clock.Equal(*stored.LastLogin))
}

func TestLoginPrefersEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, model.LoginRequest{Email: "nobody@x.com", Username: "alice", Password: "longenough1"})
	requireValidation(t, err, MsgInvalidCredentials)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  model.LoginRequest
		msg  string
	}{
		{"no identifier", model.LoginRequest{Password: "longenough1"}, MsgIdentifierRequired},
		{"unknown username", model.LoginRequest{Username: "bob", Password: "longenough1"}, MsgInvalidCredentials},
		{"unknown email", model.LoginRequest{Email: "b@x.com", Password: "longenough1"}, MsgInvalidCredentials},
		{"wrong password", model.LoginRequest{Username: "alice", Password: "wrong-password"}, MsgInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Login(ctx, tt.req)
			requireValidation(t, err, tt.msg)
		})
	}

	assert.Zero(t, f.tokens.Len(), "failed logins issue no token")
}

func TestLoginRequiresPassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, model.LoginRequest{Username: "alice"})
	requireFieldError(t, err, "password", MsgFieldRequired)

	_, err = f.auth.Login(ctx, model.LoginRequest{Email: "a@x.com", Password: ""})
	requireFieldError(t, err, "password", MsgFieldRequired)

	assert.Zero(t, f.tokens.Len())
}

func TestLoginKeyGeneratorError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.auth.Register(ctx, registerReq("alice", "", "longenough1"))
	require.NoError(t, err)

	f.auth.newKey = func() (string, error) { return "", errors.New("no entropy") }

	_, err = f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	require.Error(t, err)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))

	stored, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, stored.LastLogin, "a failed login is not recorded")
}

func TestLoginFailureKeepsResetTokenValid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	reset, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)

	f.advance(time.Second)
	f.auth.newKey = func() (string, error) { return "", errors.New("no entropy") }
	_, err = f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	require.Error(t, err)

	assert.NoError(t, f.auth.ConfirmPasswordReset(ctx, reset.UIDB64, reset.Token, "brand-new-pass"))
}

func TestLogoutThenLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "", "longenough1"))
	require.NoError(t, err)

	first, err := f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	require.NoError(t, err)

	user, err := f.auth.Authenticate(ctx, first.Token)
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, user))

	_, err = f.auth.Authenticate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	second, err := f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	require.NoError(t, err)
	assert.NotEmpty(t, second.Token)

	again, err := f.auth.Authenticate(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestAuthenticateUnknown(t *testing.T) {
	f := newFixture()

	_, err := f.auth.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.auth.Authenticate(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	registered, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	reset, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)
	require.Len(t, f.notifier.Sent, 1)
	assert.Equal(t, reset, f.notifier.Sent[0])
	assert.Equal(t, EncodeUID(registered.ID), reset.UIDB64)
	assert.Equal(t, "http://test/reset/"+reset.UIDB64+"/"+reset.Token, reset.Link)

	f.advance(time.Hour)
	require.NoError(t, f.auth.ConfirmPasswordReset(ctx, reset.UIDB64, reset.Token, "brand-new-pass"))

	_, err = f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	requireValidation(t, err, MsgInvalidCredentials)
	_, err = f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "brand-new-pass"})
	assert.NoError(t, err)
}

func TestPasswordResetReusableUntilLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)

	reset, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)

	// Changing the password does not touch last login, so the token holds.
	require.NoError(t, f.auth.ConfirmPasswordReset(ctx, reset.UIDB64, reset.Token, "second-pass"))
	require.NoError(t, f.auth.ConfirmPasswordReset(ctx, reset.UIDB64, reset.Token, "third-pass1"))

	f.advance(time.Second)
	_, err = f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "third-pass1"})
	require.NoError(t, err)

	err = f.auth.ConfirmPasswordReset(ctx, reset.UIDB64, reset.Token, "fourth-pass")
	requireValidation(t, err, MsgInvalidResetToken)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)
	reset, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)

	f.advance(testResetTimeout + time.Second)

	err = f.auth.ConfirmPasswordReset(ctx, reset.UIDB64, reset.Token, "brand-new-pass")
	requireValidation(t, err, MsgInvalidResetToken)
}

func TestRequestPasswordResetFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "ghost@x.com"})
	requireValidation(t, err, MsgUnknownEmail)

	_, err = f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{})
	requireFieldError(t, err, "email", MsgFieldRequired)

	_, err = f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "nope"})
	requireFieldError(t, err, "email", MsgInvalidEmail)

	assert.Empty(t, f.notifier.Sent)
}

func TestRequestPasswordResetNotifierFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.notifier.Err = errors.New("smtp down")

	_, err := f.auth.Register(ctx, registerReq("", "a@x.com", "longenough1"))
	require.NoError(t, err)

	_, err = f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	assert.NoError(t, err)
	assert.Len(t, f.notifier.Sent, 1)
}

func TestConfirmPasswordResetFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	user, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)
	reset, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		uid      string
		token    string
		password string
		msg      string
	}{
		{"malformed base64", "!!!", reset.Token, "brand-new-pass", MsgInvalidUserID},
		{"not an integer", base64.RawURLEncoding.EncodeToString([]byte("abc")), reset.Token, "brand-new-pass", MsgInvalidUserID},
		{"unknown user", EncodeUID(user.ID + 100), reset.Token, "brand-new-pass", MsgInvalidUserID},
		{"wrong token", reset.UIDB64, "1-deadbeef", "brand-new-pass", MsgInvalidResetToken},
		{"empty token", reset.UIDB64, "", "brand-new-pass", MsgInvalidResetToken},
		{"short password", reset.UIDB64, reset.Token, "short", MsgNewPasswordShort},
		{"empty password", reset.UIDB64, reset.Token, "", MsgNewPasswordShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.auth.ConfirmPasswordReset(ctx, tt.uid, tt.token, tt.password)
			requireValidation(t, err, tt.msg)
		})
	}

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	ok, err := servicetest.PlainHasher{}.Verify("longenough1", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok, "failed confirmations leave the password alone")
}

func TestConfirmPasswordResetOtherUsersToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)
	bob, err := f.auth.Register(ctx, registerReq("bob", "b@x.com", "longenough1"))
	require.NoError(t, err)

	reset, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)

	err = f.auth.ConfirmPasswordReset(ctx, EncodeUID(bob.ID), reset.Token, "brand-new-pass")
	requireValidation(t, err, MsgInvalidResetToken)
}

func TestChangePassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "", "longenough1"))
	require.NoError(t, err)
	login, err := f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	require.NoError(t, err)
	user, err := f.auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)

	for _, newPassword := range []string{"", "x", "long-enough-new"} {
		err := f.auth.ChangePassword(ctx, user, model.ChangePasswordRequest{OldPassword: "wrong", NewPassword: newPassword})
		requireValidation(t, err, MsgInvalidOldPassword)
	}

	err = f.auth.ChangePassword(ctx, user, model.ChangePasswordRequest{OldPassword: "longenough1"})
	requireFieldError(t, err, "new_password", MsgFieldRequired)
	_, err = f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "longenough1"})
	require.NoError(t, err, "a rejected change keeps the old password")

	// No minimum length applies on this path.
	require.NoError(t, f.auth.ChangePassword(ctx, user, model.ChangePasswordRequest{
		OldPassword: "longenough1",
		NewPassword: "abc",
	}))

	_, err = f.auth.Authenticate(ctx, login.Token)
	assert.NoError(t, err, "token survives a password change")

	again, err := f.auth.Login(ctx, model.LoginRequest{Username: "alice", Password: "abc"})
	require.NoError(t, err)
	assert.Equal(t, login.Token, again.Token)
}

func TestUIDEncoding(t *testing.T) {
	for _, id := range []int64{1, 42, 1 << 40} {
		t.Run(fmt.Sprint(id), func(t *testing.T) {
			got, err := DecodeUID(EncodeUID(id))
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}

	assert.Equal(t, "NDI", EncodeUID(42))

	got, err := DecodeUID("NDI=")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	for _, bad := range []string{"", "!!!", base64.RawURLEncoding.EncodeToString([]byte("4x2"))} {
		_, err := DecodeUID(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestResetTokenMatchesUserState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registerReq("alice", "a@x.com", "longenough1"))
	require.NoError(t, err)
	reset, err := f.auth.RequestPasswordReset(ctx, model.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)

	user, err := f.users.GetByID(ctx, reset.UserID)
	require.NoError(t, err)

	g := crypto.NewResetTokenGenerator("test-secret", testResetTimeout, time.Second)
	assert.True(t, g.Check(resetState(user), reset.Token, f.clock))
}

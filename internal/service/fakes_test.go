package service

import (
	"time"

	"github.com/accounts/accounts-go/internal/crypto"
	"github.com/accounts/accounts-go/internal/service/servicetest"
)

type fixture struct {
	clock    time.Time
	users    *servicetest.Users
	tokens   *servicetest.Tokens
	notifier *servicetest.Notifier
	auth     *AuthService
	admin    *UserService
}

const testResetTimeout = 72 * time.Hour

func newFixture() *fixture {
	f := &fixture{clock: time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }

	f.users = servicetest.NewUsers(now)
	f.tokens = servicetest.NewTokens(f.users)
	f.notifier = &servicetest.Notifier{}

	resets := crypto.NewResetTokenGenerator("test-secret", testResetTimeout, time.Second)
	f.auth = NewAuthService(f.users, f.tokens, servicetest.PlainHasher{}, resets, f.notifier, "http://test/reset/")
	f.auth.now = now
	f.admin = NewUserService(f.users, servicetest.PlainHasher{})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

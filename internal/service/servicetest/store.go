// Package servicetest provides in-memory collaborators for exercising the
// service layer without a database.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/repository"
)

// Users is an in-memory user store with the same uniqueness guarantees as
// the MySQL schema.
type Users struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]model.User
	clock  func() time.Time
}

// NewUsers returns an empty store stamping DateJoined from clock.
func NewUsers(clock func() time.Time) *Users {
	return &Users{byID: map[int64]model.User{}, clock: clock}
}

func (m *Users) conflict(u *model.User) error {
	for id, other := range m.byID {
		if id == u.ID {
			continue
		}
		if u.Username != "" && other.Username == u.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email != "" && other.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	return nil
}

func (m *Users) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.conflict(u); err != nil {
		return err
	}
	m.nextID++
	u.ID = m.nextID
	u.DateJoined = m.clock().UTC().Truncate(time.Microsecond)
	m.byID[u.ID] = *u
	return nil
}

func (m *Users) get(match func(model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			c := u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *Users) GetByID(_ context.Context, id int64) (*model.User, error) {
	return m.get(func(u model.User) bool { return u.ID == id })
}

func (m *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.get(func(u model.User) bool { return email != "" && u.Email == email })
}

func (m *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return m.get(func(u model.User) bool { return username != "" && u.Username == username })
}

func (m *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *Users) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *Users) List(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Users) Update(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byID[u.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if err := m.conflict(u); err != nil {
		return err
	}
	old.Username, old.Email = u.Username, u.Email
	old.FirstName, old.LastName, old.IsStaff = u.FirstName, u.LastName, u.IsStaff
	if u.PasswordHash != "" {
		old.PasswordHash = u.PasswordHash
	}
	m.byID[u.ID] = old
	return nil
}

func (m *Users) modify(id int64, fn func(*model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	m.byID[id] = u
	return nil
}

func (m *Users) UpdatePassword(_ context.Context, id int64, hash string) error {
	return m.modify(id, func(u *model.User) { u.PasswordHash = hash })
}

func (m *Users) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	return m.modify(id, func(u *model.User) { u.LastLogin = &at })
}

func (m *Users) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

// RacyUsers hides existing rows from the uniqueness pre-check, as if a
// concurrent request inserted them in between.
type RacyUsers struct {
	*Users
}

func (RacyUsers) EmailExists(context.Context, string) (bool, error)    { return false, nil }
func (RacyUsers) UsernameExists(context.Context, string) (bool, error) { return false, nil }

// Tokens is an in-memory token store. Deleting a user from the backing
// Users store does not cascade; lookups of orphaned keys then fail with
// repository.ErrUserNotFound.
type Tokens struct {
	mu     sync.Mutex
	users  *Users
	byUser map[int64]string
}

// NewTokens returns an empty store resolving owners through users.
func NewTokens(users *Users) *Tokens {
	return &Tokens{users: users, byUser: map[int64]string{}}
}

func (m *Tokens) GetOrCreate(_ context.Context, userID int64, key string) (*model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byUser[userID]; ok {
		key = existing
	} else {
		m.byUser[userID] = key
	}
	return &model.Token{Key: key, UserID: userID}, nil
}

func (m *Tokens) UserByKey(ctx context.Context, key string) (*model.User, error) {
	m.mu.Lock()
	var owner int64
	for id, k := range m.byUser {
		if k == key {
			owner = id
		}
	}
	m.mu.Unlock()
	if owner == 0 {
		return nil, repository.ErrTokenNotFound
	}
	return m.users.GetByID(ctx, owner)
}

func (m *Tokens) DeleteForUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
	return nil
}

// Len returns the number of live tokens.
func (m *Tokens) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

// PlainHasher stores passwords behind a fixed prefix. It is not a hash and
// exists only to keep tests fast.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) { return "plain$" + password, nil }

func (PlainHasher) Verify(password, hash string) (bool, error) {
	stored, ok := strings.CutPrefix(hash, "plain$")
	if !ok {
		return false, errors.New("not a plain hash")
	}
	return stored == password, nil
}

// Notifier records every reset it is asked to deliver and then returns Err.
type Notifier struct {
	mu   sync.Mutex
	Sent []model.PasswordReset
	Err  error
}

func (n *Notifier) SendPasswordReset(_ context.Context, r model.PasswordReset) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, r)
	return n.Err
}

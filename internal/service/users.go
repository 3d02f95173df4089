package service

import (
	"context"
	"errors"

	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/repository"
)

// UserService administers user records. Any authenticated caller may use
// it; there is no staff check.
type UserService struct {
	users     UserStore
	hasher    PasswordHasher
	validator userValidator
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, hasher PasswordHasher) *UserService {
	return &UserService{
		users:     users,
		hasher:    hasher,
		validator: userValidator{users: users},
	}
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.UserResponse, len(users))
	for i := range users {
		result[i] = users[i].Response()
	}
	return result, nil
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, id int64) (model.UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return model.UserResponse{}, err
	}
	return user.Response(), nil
}

// Update applies the supplied fields of req to the user. A supplied
// password is hashed before it is stored.
func (s *UserService) Update(ctx context.Context, id int64, req model.UserRequest) (model.UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return model.UserResponse{}, err
	}

	if err := s.validator.validate(ctx, req, modePartial); err != nil {
		return model.UserResponse{}, err
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.IsStaff != nil {
		user.IsStaff = *req.IsStaff
	}
	// An empty hash leaves the stored password untouched.
	user.PasswordHash = ""
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return model.UserResponse{}, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.UserResponse{}, ErrNotFound
		}
		return model.UserResponse{}, uniqueViolation(err)
	}

	return user.Response(), nil
}

// Delete permanently removes the user.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	err := s.users.Delete(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	return err
}

// Profile returns the current state of the authenticated user.
func (s *UserService) Profile(ctx context.Context, user *model.User) (model.UserResponse, error) {
	return s.Get(ctx, user.ID)
}

// UpdateProfile partially updates the authenticated user.
func (s *UserService) UpdateProfile(ctx context.Context, user *model.User, req model.UserRequest) (model.UserResponse, error) {
	return s.Update(ctx, user.ID, req)
}

func (s *UserService) find(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

package model

import "time"

// User represents a user in the database.
// Username and Email are empty when the column is NULL.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsStaff      bool
	LastLogin    *time.Time
	DateJoined   time.Time
}

// Response returns the public representation of the user.
func (u *User) Response() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsStaff:   u.IsStaff,
	}
}

// UserRequest is the writable user representation used by registration and
// by partial updates. Nil fields were not supplied by the client.
type UserRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsStaff   *bool   `json:"is_staff"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token and the logged in user.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents user data safe for API responses. The password
// is write-only and never appears here.
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsStaff   bool   `json:"is_staff"`
}

// ChangePasswordRequest represents an authenticated password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// PasswordResetRequest asks for a reset link for the given email.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// ConfirmPasswordResetRequest carries the new password; the user id and
// token come from the URL.
type ConfirmPasswordResetRequest struct {
	NewPassword string `json:"new_password"`
}

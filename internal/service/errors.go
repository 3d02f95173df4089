package service

import (
	"errors"
	"sort"
	"strings"
)

// Messages reported to clients for failed checks.
const (
	MsgIdentifierRequired = "Email or username is required"
	MsgEmailTaken         = "Email is already taken"
	MsgUsernameTaken      = "Username is already taken"
	MsgPasswordTooShort   = "The password must be at least 8 characters long"
	MsgInvalidCredentials = "Invalid credentials"
	MsgUnknownEmail       = "User with this email does not exist"
	MsgInvalidUserID      = "Invalid user ID"
	MsgInvalidResetToken  = "Invalid or expired token"
	MsgNewPasswordShort   = "The new password must be at least 8 characters long"
	MsgInvalidOldPassword = "Invalid old password"

	MsgFieldRequired = "This field is required."
	MsgFieldBlank    = "This field may not be blank."
	MsgFieldTooLong  = "Ensure this field has no more than 150 characters."
	MsgInvalidEmail  = "Enter a valid email address."
	MsgEmailTooLong  = "Ensure this field has no more than 254 characters."
	MsgInvalidName   = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError reports input that breaks a rule. Message holds a rule
// spanning the whole request; Fields maps field names to their problem.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func newValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return strings.Join(parts, "; ")
}

// Details returns the error in the shape clients receive: request-wide
// messages under non_field_errors, the rest keyed by field.
func (e *ValidationError) Details() map[string][]string {
	out := make(map[string][]string, len(e.Fields)+1)
	if e.Message != "" {
		out["non_field_errors"] = []string{e.Message}
	}
	for k, v := range e.Fields {
		out[k] = []string{v}
	}
	return out
}

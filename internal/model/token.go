package model

import "time"

// Token is the opaque bearer credential of a user. A user holds at most one.
type Token struct {
	Key       string
	UserID    int64
	CreatedAt time.Time
}

// PasswordReset is a reset link addressed to a user. It is never stored:
// its validity is derived from the user's state when it is confirmed.
type PasswordReset struct {
	UserID int64
	Email  string
	UIDB64 string
	Token  string
	Link   string
}

package service

import (
	"context"
	"net/mail"
	"regexp"
	"unicode/utf8"

	"github.com/accounts/accounts-go/internal/model"
)

const (
	minPasswordLength = 8
	maxNameLength     = 150
	maxEmailLength    = 254
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

type validationMode int

const (
	// modeCreate runs field checks plus the registration rules: an
	// identifier is present, username and email are free, and the password
	// is long enough.
	modeCreate validationMode = iota
	// modePartial runs field checks on the supplied fields only.
	modePartial
)

type userValidator struct {
	users UserStore
}

func (v userValidator) validate(ctx context.Context, req model.UserRequest, mode validationMode) error {
	if fields := checkFields(req, mode); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	if mode != modeCreate {
		return nil
	}

	username, email := deref(req.Username), deref(req.Email)
	if username == "" && email == "" {
		return newValidationError(MsgIdentifierRequired)
	}

	if email != "" {
		taken, err := v.users.EmailExists(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return newValidationError(MsgEmailTaken)
		}
	}
	if username != "" {
		taken, err := v.users.UsernameExists(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			return newValidationError(MsgUsernameTaken)
		}
	}

	if utf8.RuneCountInString(deref(req.Password)) < minPasswordLength {
		return newValidationError(MsgPasswordTooShort)
	}
	return nil
}

// checkFields validates the format of each supplied field. On create an
// empty username or email counts as not supplied.
func checkFields(req model.UserRequest, mode validationMode) map[string]string {
	fields := map[string]string{}

	if req.Username != nil {
		switch u := *req.Username; {
		case u == "":
			if mode == modePartial {
				fields["username"] = MsgFieldBlank
			}
		case utf8.RuneCountInString(u) > maxNameLength:
			fields["username"] = MsgFieldTooLong
		case !usernamePattern.MatchString(u):
			fields["username"] = MsgInvalidName
		}
	}

	if req.Email != nil {
		switch e := *req.Email; {
		case e == "":
			if mode == modePartial {
				fields["email"] = MsgFieldBlank
			}
		case utf8.RuneCountInString(e) > maxEmailLength:
			fields["email"] = MsgEmailTooLong
		case !validEmail(e):
			fields["email"] = MsgInvalidEmail
		}
	}

	switch {
	case req.Password == nil:
		if mode == modeCreate {
			fields["password"] = MsgFieldRequired
		}
	case *req.Password == "":
		fields["password"] = MsgFieldBlank
	}

	if req.FirstName != nil && utf8.RuneCountInString(*req.FirstName) > maxNameLength {
		fields["first_name"] = MsgFieldTooLong
	}
	if req.LastName != nil && utf8.RuneCountInString(*req.LastName) > maxNameLength {
		fields["last_name"] = MsgFieldTooLong
	}

	return fields
}

// validEmail accepts a bare address, rejecting display names and other
// RFC 5322 forms that mail.ParseAddress would otherwise normalise.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

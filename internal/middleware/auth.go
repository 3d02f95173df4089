package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/service"
)

const authKeyword = "Bearer"

// Messages reported with a 401.
const (
	MsgNotAuthenticated = "Authentication credentials were not provided."
	MsgNoCredentials    = "Invalid token header. No credentials provided."
	MsgTokenHasSpaces   = "Invalid token header. Token string should not contain spaces."
	MsgInvalidToken     = "Invalid token."
)

type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a bearer token key to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*model.User, error)
}

// TokenAuth returns middleware that requires an "Authorization: Bearer <key>"
// header naming a live token. The token's user is stored in the request
// context for UserFromContext.
func TokenAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Fields(r.Header.Get("Authorization"))
			if len(parts) == 0 || !strings.EqualFold(parts[0], authKeyword) {
				writeUnauthorized(w, MsgNotAuthenticated)
				return
			}
			switch {
			case len(parts) == 1:
				writeUnauthorized(w, MsgNoCredentials)
				return
			case len(parts) > 2:
				writeUnauthorized(w, MsgTokenHasSpaces)
				return
			}

			user, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				if errors.Is(err, service.ErrInvalidToken) {
					writeUnauthorized(w, MsgInvalidToken)
					return
				}
				slog.Error("token lookup failed", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user authenticated by TokenAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// WithUser returns a copy of ctx carrying user, as TokenAuth does.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", authKeyword)
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.Envelope{Status: model.StatusError, Message: msg})
}

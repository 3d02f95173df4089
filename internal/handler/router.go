package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/accounts/accounts-go/internal/middleware"
)

// NewRouter mounts every endpoint under /api/v1. Routes other than
// registration, login, password reset and the health check require a
// bearer token resolved by auth.
func NewRouter(authHandler *AuthHandler, userHandler *UserHandler, auth middleware.Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HandleHealth)

		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/password-reset", authHandler.HandlePasswordReset)
		r.Post("/auth/password-reset/confirm/{uidb64}/{token}", authHandler.HandleConfirmPasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(auth))

			r.Post("/auth/logout", authHandler.HandleLogout)
			r.Post("/auth/change-password", authHandler.HandleChangePassword)

			r.Get("/users", userHandler.HandleList)
			r.Get("/users/profile", userHandler.HandleProfile)
			r.Put("/users/profile", userHandler.HandleUpdateProfile)
			r.Patch("/users/profile", userHandler.HandleUpdateProfile)
			r.Get("/users/{id}", userHandler.HandleGet)
			r.Put("/users/{id}", userHandler.HandleUpdate)
			r.Patch("/users/{id}", userHandler.HandleUpdate)
			r.Delete("/users/{id}", userHandler.HandleDelete)
		})
	})

	return r
}

// HandleHealth handles GET /api/v1/health requests.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "ok", nil)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/service"
)

// UserHandler handles HTTP requests for user administration and the
// caller's own profile.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// HandleList handles GET /api/v1/users requests.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "User details", users)
}

// HandleGet handles GET /api/v1/users/{id} requests.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "User details", user)
}

// HandleUpdate handles PUT and PATCH /api/v1/users/{id} requests. Both
// methods apply a partial update.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req model.UserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err, msgInvalidData)
		return
	}

	writeSuccess(w, "User details updated", user)
}

// HandleDelete handles DELETE /api/v1/users/{id} requests.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "User deleted", nil)
}

// HandleProfile handles GET /api/v1/users/profile requests.
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.service.Profile(r.Context(), me)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	writeSuccess(w, "User profile retrieved successfully", user)
}

// HandleUpdateProfile handles PUT and PATCH /api/v1/users/profile requests.
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.UserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), me, req)
	if err != nil {
		writeServiceError(w, r, err, msgInvalidData)
		return
	}

	writeSuccess(w, "User profile retrieved successfully", user)
}

// userID parses the {id} URL parameter. Anything that is not a positive
// integer cannot name a user and is reported as not found.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, msgUserNotFound, nil)
		return 0, false
	}
	return id, true
}

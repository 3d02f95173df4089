package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/accounts/accounts-go/internal/model"
	"github.com/accounts/accounts-go/internal/service"
)

const maxBodyBytes = 1 << 20 // 1MB

const (
	msgInvalidData   = "Invalid data"
	msgInvalidBody   = "Invalid request body"
	msgBodyTooLarge  = "Request body too large"
	msgUserNotFound  = "User not found"
	msgInternalError = "Internal server error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, model.Envelope{Status: model.StatusSuccess, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, model.Envelope{Status: model.StatusError, Message: msg, Data: data})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v
// untouched. It writes the error response itself and reports false on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge, nil)
		return false
	}
	writeError(w, http.StatusBadRequest, msgInvalidBody, nil)
	return false
}

// writeServiceError maps a service error to a response. Validation errors
// are reported under msg, or under their own message when msg is empty,
// with the details in data.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		if msg == "" {
			msg = ve.Error()
		}
		writeError(w, http.StatusBadRequest, msg, ve.Details())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound, nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError, nil)
	}
}

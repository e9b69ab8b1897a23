package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/goph-blog/internal/errs"
)

// Transport-level failures. They never leave this package.
var (
	errBadJSON = errors.New("malformed request body")
	errBadID   = errors.New("malformed post id")
)

type errorBody struct {
	Detail string `json:"detail"`
}

// statusFor maps a domain error to its HTTP status and client message.
// ok is false for errors outside the taxonomy.
func statusFor(err error) (code int, msg string, ok bool) {
	switch {
	case errors.Is(err, errBadJSON), errors.Is(err, errBadID):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, errs.ErrInvalidRole):
		return http.StatusBadRequest, "Role must be either 'reader' or 'author'", true
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusBadRequest, "Username already registered", true
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password", true
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many login attempts. Please try again later.", true
	case errors.Is(err, errs.ErrUnknownSubject):
		return http.StatusUnauthorized, "User not found", true
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized, "Invalid authentication credentials", true
	case errors.Is(err, errs.ErrAuthorRequired):
		return http.StatusForbidden, "Only authors can perform this action", true
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "Forbidden", true
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "Post not found", true
	default:
		return http.StatusInternalServerError, "Internal server error", false
	}
}

// writeError answers with the mapped status. Unmapped errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	code, msg, ok := statusFor(err)
	if !ok {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	if code == http.StatusUnauthorized && errors.Is(err, errs.ErrUnauthenticated) {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, code, errorBody{Detail: msg})
}

// writeDetail answers with an explicit message.
func writeDetail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Detail: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

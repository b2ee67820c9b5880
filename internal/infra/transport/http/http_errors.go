package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mkrupp/minisocial/internal/domain"
)

// errorStatus maps the domain error taxonomy to HTTP statuses and
// user-facing messages. Anything unmapped is a server error and reported
// without detail; the cause is logged by the handler.
//
//nolint:cyclop
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusBadRequest, "User already exists"
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusBadRequest, "Username already taken"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid credentials"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrPostNotFound):
		return http.StatusNotFound, "Post not found"
	case errors.Is(err, domain.ErrSelfFollow):
		return http.StatusBadRequest, "You cannot follow yourself"
	case errors.Is(err, domain.ErrAlreadyFollowing):
		return http.StatusBadRequest, "Already following this user"
	case errors.Is(err, domain.ErrNotFollowing):
		return http.StatusBadRequest, "Not following this user"
	case errors.Is(err, domain.ErrAlreadyLiked):
		return http.StatusBadRequest, "Post already liked"
	case errors.Is(err, domain.ErrNotLiked):
		return http.StatusBadRequest, "Post not liked yet"
	case errors.Is(err, domain.ErrNotPostAuthor):
		return http.StatusForbidden, "Not authorized to delete this post"
	case errors.Is(err, domain.ErrNoAuthToken), errors.Is(err, domain.ErrInvalidAuthToken):
		return http.StatusUnauthorized, "Please authenticate"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

// validationMessage surfaces the field-specific part of a validation error,
// e.g. "validation failed: content is required" -> "Content is required".
func validationMessage(err error) string {
	msg := err.Error()

	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}

	if msg == "" || msg == domain.ErrValidation.Error() {
		return "Validation failed"
	}

	return strings.ToUpper(msg[:1]) + msg[1:]
}

// WriteDomainError writes the JSON error envelope for a service-layer error.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	WriteError(w, status, message)
}

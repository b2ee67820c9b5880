package http

import (
	"net/http"
	"strings"

	context_ "github.com/mkrupp/minisocial/internal/infra/context"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/repo/user"
	"github.com/mkrupp/minisocial/internal/svc/authsvc/authclient"
)

// AuthorizationHeader carries the bearer token.
const AuthorizationHeader = "Authorization"

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Returns the empty string if the header is absent.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}

	token, _ := strings.CutPrefix(authHeader, "Bearer")

	return strings.TrimSpace(token)
}

// AuthorizingMiddleware creates middleware that validates bearer tokens and
// resolves them to user records. Requests are rejected with a 401 JSON
// envelope when the token is absent, unverifiable, or references a user that
// no longer exists. On success the loaded user record is added to the
// request context. Validation results are not cached.
func AuthorizingMiddleware(
	next http.Handler,
	authClient authclient.AuthClient,
	userRepo user.Repository,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			log.WarnContext(r.Context(), "no token provided")
			WriteError(w, http.StatusUnauthorized, "Please authenticate")

			return
		}

		userID, ok, err := authClient.Validate(r.Context(), token)
		if err != nil || !ok {
			log.WarnContext(r.Context(), "invalid token", "error", err)
			WriteError(w, http.StatusUnauthorized, "Please authenticate")

			return
		}

		// The token may outlive the account; treat a missing user the same
		// as an invalid token.
		usr, ok, err := userRepo.GetUserByID(r.Context(), userID)
		if err != nil || !ok {
			log.WarnContext(r.Context(), "token user not found", "error", err, "user_id", userID)
			WriteError(w, http.StatusUnauthorized, "Please authenticate")

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithUser(r.Context(), usr)))
	})
}

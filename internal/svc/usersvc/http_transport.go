package usersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkrupp/minisocial/internal/domain"
	context_ "github.com/mkrupp/minisocial/internal/infra/context"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	http_ "github.com/mkrupp/minisocial/internal/infra/transport/http"
	"github.com/mkrupp/minisocial/internal/repo/user"
	"github.com/mkrupp/minisocial/internal/svc/authsvc/authclient"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// URLUserIDParam is the URL parameter name for user IDs.
	// Default is "user_id".
	URLUserIDParam string `env:"URL_USER_ID_PARAM" default:"user_id"`
}

// HTTPTransport handles HTTP requests for profile and social-graph
// operations.
type HTTPTransport struct {
	userSvc    *UserService
	authClient authclient.AuthClient
	userRepo   user.Repository
	log        logging.Logger
	cfg        HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given
// configuration. The auth client and user repository feed the authorizing
// middleware on protected routes.
func NewHTTPTransport(
	userSvc *UserService,
	authClient authclient.AuthClient,
	userRepo user.Repository,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	return &HTTPTransport{
		userSvc:    userSvc,
		authClient: authClient,
		userRepo:   userRepo,
		log:        logging.GetLogger("svc.usersvc.http_transport"),
		cfg:        cfg,
	}
}

// Register adds the user service routes to the given mux:
// - GET /api/users/me: Caller's profile (auth)
// - PUT /api/users/me: Partial profile update (auth)
// - GET /api/users/suggested: Up to 5 non-followed users (auth)
// - GET /api/users/{user_id}: Public profile
// - POST /api/users/{user_id}/follow: Add follow edge (auth)
// - POST /api/users/{user_id}/unfollow: Remove follow edge (auth).
func (ht *HTTPTransport) Register(mux *http.ServeMux) {
	param := ht.cfg.URLUserIDParam

	mux.Handle("GET /api/users/me", ht.authorized(ht.HandleMe))
	mux.Handle("PUT /api/users/me", ht.authorized(ht.HandleUpdateProfile))
	mux.Handle("GET /api/users/suggested", ht.authorized(ht.HandleSuggested))
	mux.HandleFunc(fmt.Sprintf("GET /api/users/{%s}", param), ht.HandleGetUser)
	mux.Handle(fmt.Sprintf("POST /api/users/{%s}/follow", param), ht.authorized(ht.HandleFollow))
	mux.Handle(fmt.Sprintf("POST /api/users/{%s}/unfollow", param), ht.authorized(ht.HandleUnfollow))
}

// ServeHTTP implements http.Handler for standalone use of the transport.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	ht.Register(mux)
	mux.ServeHTTP(w, r)
}

func (ht *HTTPTransport) authorized(handler http.HandlerFunc) http.Handler {
	return http_.AuthorizingMiddleware(handler, ht.authClient, ht.userRepo, ht.log)
}

// HandleMe returns the caller's own profile projection.
func (ht *HTTPTransport) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, caller.Profile())
}

// HandleUpdateProfile applies a partial profile update to the caller.
// Expects a JSON body with any subset of {fullName, bio, profilePic}.
func (ht *HTTPTransport) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdateProfile(w, r)
}

func (ht *HTTPTransport) handleUpdateProfile(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "profile update failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	var changes domain.ProfileChanges
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		http_.WriteError(w, http.StatusBadRequest, "Invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	updated, err := ht.userSvc.UpdateProfile(r.Context(), caller.ID, changes)
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("update profile: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, updated.Profile())
}

// HandleGetUser returns the public profile of the referenced user.
// No authentication required.
func (ht *HTTPTransport) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGetUser(w, r)
}

func (ht *HTTPTransport) handleGetUser(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "get user failed", "error", err)
		}
	}(r.Context())

	usr, err := ht.userSvc.GetUser(r.Context(), r.PathValue(ht.cfg.URLUserIDParam))
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("get user: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, usr.PublicProfile())
}

// HandleFollow adds a follow edge from the caller to the referenced user.
func (ht *HTTPTransport) HandleFollow(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleEdge(w, r, ht.userSvc.Follow, "Successfully followed user")
}

// HandleUnfollow removes the follow edge from the caller to the referenced user.
func (ht *HTTPTransport) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleEdge(w, r, ht.userSvc.Unfollow, "Successfully unfollowed user")
}

func (ht *HTTPTransport) handleEdge(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, *domain.User, string) error,
	message string,
) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "follow edge update failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	if err := op(r.Context(), caller, r.PathValue(ht.cfg.URLUserIDParam)); err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("update edge: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, http_.MessageResponse{Message: message})
}

// HandleSuggested returns up to 5 users the caller does not follow yet.
func (ht *HTTPTransport) HandleSuggested(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSuggested(w, r)
}

func (ht *HTTPTransport) handleSuggested(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "suggested users failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	suggestions, err := ht.userSvc.Suggested(r.Context(), caller)
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("suggested users: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, suggestions)
}

package postsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

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

	// URLPostIDParam is the URL parameter name for post IDs.
	// Default is "post_id".
	URLPostIDParam string `env:"URL_POST_ID_PARAM" default:"post_id"`

	// MaxFeedLimit caps the limit query parameter on feed listings.
	// Default is 100.
	MaxFeedLimit int `env:"MAX_FEED_LIMIT" default:"100"`
}

// postRequest is the JSON body for creating posts and comments.
type postRequest struct {
	Content string `json:"content"`
}

// likeResponse carries the outcome message together with the new like count.
type likeResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
}

// HTTPTransport handles HTTP requests for post, feed, like and comment
// operations.
type HTTPTransport struct {
	postSvc    *PostService
	authClient authclient.AuthClient
	userRepo   user.Repository
	log        logging.Logger
	cfg        HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given
// configuration.
func NewHTTPTransport(
	postSvc *PostService,
	authClient authclient.AuthClient,
	userRepo user.Repository,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	return &HTTPTransport{
		postSvc:    postSvc,
		authClient: authClient,
		userRepo:   userRepo,
		log:        logging.GetLogger("svc.postsvc.http_transport"),
		cfg:        cfg,
	}
}

// Register adds the post service routes to the given mux:
// - POST /api/posts: Create a post (auth)
// - GET /api/posts: Feed of followed authors, newest first (auth)
// - GET /api/posts/{post_id}: Single post, auth optional
// - POST /api/posts/{post_id}/like: Like a post (auth)
// - POST /api/posts/{post_id}/unlike: Remove a like (auth)
// - POST /api/posts/{post_id}/comment: Add a comment (auth)
// - DELETE /api/posts/{post_id}: Delete own post (auth).
func (ht *HTTPTransport) Register(mux *http.ServeMux) {
	param := ht.cfg.URLPostIDParam

	mux.Handle("POST /api/posts", ht.authorized(ht.HandleCreate))
	mux.Handle("GET /api/posts", ht.authorized(ht.HandleFeed))
	mux.HandleFunc(fmt.Sprintf("GET /api/posts/{%s}", param), ht.HandleGetPost)
	mux.Handle(fmt.Sprintf("POST /api/posts/{%s}/like", param), ht.authorized(ht.HandleLike))
	mux.Handle(fmt.Sprintf("POST /api/posts/{%s}/unlike", param), ht.authorized(ht.HandleUnlike))
	mux.Handle(fmt.Sprintf("POST /api/posts/{%s}/comment", param), ht.authorized(ht.HandleComment))
	mux.Handle(fmt.Sprintf("DELETE /api/posts/{%s}", param), ht.authorized(ht.HandleDelete))
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

// HandleCreate stores a new post by the caller. Expects a JSON body with a
// non-empty content field.
func (ht *HTTPTransport) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreate(w, r)
}

func (ht *HTTPTransport) handleCreate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "create post failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	var body postRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http_.WriteError(w, http.StatusBadRequest, "Invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	view, err := ht.postSvc.Create(r.Context(), caller, body.Content)
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("create post: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, view)
}

// HandleFeed lists posts by the caller and followed users, newest first.
// Accepts optional limit and before query parameters; before is an RFC 3339
// timestamp acting as an exclusive cursor.
func (ht *HTTPTransport) HandleFeed(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleFeed(w, r)
}

func (ht *HTTPTransport) handleFeed(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "feed failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	query, err := ht.feedQuery(r)
	if err != nil {
		http_.WriteError(w, http.StatusBadRequest, "Invalid query parameter")

		return fmt.Errorf("parse feed query: %w", err)
	}

	views, err := ht.postSvc.Feed(r.Context(), caller, query)
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("feed: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, views)
}

func (ht *HTTPTransport) feedQuery(r *http.Request) (domain.FeedQuery, error) {
	var query domain.FeedQuery

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return query, fmt.Errorf("limit %q: %w", raw, domain.ErrValidation)
		}

		query.Limit = min(limit, ht.cfg.MaxFeedLimit)
	}

	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, fmt.Errorf("before %q: %w", raw, domain.ErrValidation)
		}

		query.Before = before.UnixMilli()
	}

	return query, nil
}

// HandleGetPost returns a single post view. Authentication is optional: a
// valid bearer token personalizes the liked flag, anything else renders the
// anonymous view.
func (ht *HTTPTransport) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGetPost(w, r)
}

func (ht *HTTPTransport) handleGetPost(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "get post failed", "error", err)
		}
	}(r.Context())

	view, err := ht.postSvc.Get(r.Context(), r.PathValue(ht.cfg.URLPostIDParam), ht.viewerID(r))
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("get post: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, view)
}

// viewerID resolves the caller from an optional bearer token. Missing or
// invalid tokens degrade to the anonymous viewer rather than failing the
// request.
func (ht *HTTPTransport) viewerID(r *http.Request) string {
	token := http_.BearerToken(r)
	if token == "" {
		return ""
	}

	userID, valid, err := ht.authClient.Validate(r.Context(), token)
	if err != nil || !valid {
		return ""
	}

	return userID
}

// HandleLike adds the caller to the post's like set.
func (ht *HTTPTransport) HandleLike(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLikeEdge(w, r, ht.postSvc.Like, "Post liked successfully")
}

// HandleUnlike removes the caller from the post's like set.
func (ht *HTTPTransport) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLikeEdge(w, r, ht.postSvc.Unlike, "Post unliked successfully")
}

func (ht *HTTPTransport) handleLikeEdge(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, *domain.User, string) (int, error),
	message string,
) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "like update failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	likes, err := op(r.Context(), caller, r.PathValue(ht.cfg.URLPostIDParam))
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("update like: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, likeResponse{Message: message, Likes: likes})
}

// HandleComment appends a comment by the caller to the post. Expects a JSON
// body with a non-empty content field.
func (ht *HTTPTransport) HandleComment(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleComment(w, r)
}

func (ht *HTTPTransport) handleComment(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "comment failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	var body postRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http_.WriteError(w, http.StatusBadRequest, "Invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	view, err := ht.postSvc.Comment(r.Context(), caller, r.PathValue(ht.cfg.URLPostIDParam), body.Content)
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("comment: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, view)
}

// HandleDelete removes the caller's own post together with its likes and
// comments.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "delete post failed", "error", err)
		}
	}(r.Context())

	caller, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	if err := ht.postSvc.Delete(r.Context(), caller, r.PathValue(ht.cfg.URLPostIDParam)); err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("delete post: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, http_.MessageResponse{Message: "Post deleted successfully"})
}

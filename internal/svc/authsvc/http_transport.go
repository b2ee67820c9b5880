package authsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	http_ "github.com/mkrupp/minisocial/internal/infra/transport/http"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport handles HTTP requests for the authentication service:
// registration, login and token validation.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an AuthService for handling authentication operations.
func NewHTTPTransport(
	authSvc *AuthService,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	return &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
	}
}

// Register adds the auth service routes to the given mux:
// - POST /api/users/register: Create an account, returns token + profile
// - POST /api/users/login: Login, returns token + profile
// - POST /auth/validate: Validate a bearer token, returns the user ID.
func (ht *HTTPTransport) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/register", ht.HandleRegister)
	mux.HandleFunc("POST /api/users/login", ht.HandleLogin)
	mux.HandleFunc("POST /auth/validate", ht.HandleValidate)
}

// ServeHTTP implements http.Handler for standalone use of the transport.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	ht.Register(mux)
	mux.ServeHTTP(w, r)
}

// HandleRegister processes user registration requests.
// Expects a JSON body: {username, email, password, fullName}.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "user register failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}(r.Context())

	var params RegisterParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http_.WriteError(w, http.StatusBadRequest, "Invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	resp, err := ht.authSvc.Register(r.Context(), params)
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("register user: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, resp)
}

// HandleLogin processes user login requests.
// Expects a JSON body: {email, password}.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged in")
		}
	}(r.Context())

	var params struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http_.WriteError(w, http.StatusBadRequest, "Invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	resp, err := ht.authSvc.Login(r.Context(), params.Email, params.Password)
	if err != nil {
		http_.WriteDomainError(w, err)

		return fmt.Errorf("login user: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, resp)
}

// HandleValidate processes token validation requests.
// Expects the token in the Authorization header with Bearer scheme.
// Returns the user ID the token was issued for if valid.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleValidate(w, r)
}

func (ht *HTTPTransport) handleValidate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "token validation failed", "error", err)
		} else {
			log.DebugContext(ctx, "token validated")
		}
	}(r.Context())

	tokenString := http_.BearerToken(r)
	if tokenString == "" {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return domain.ErrNoAuthToken
	}

	token, err := ht.authSvc.ValidateToken(r.Context(), tokenString)
	if err != nil {
		http_.WriteError(w, http.StatusUnauthorized, "Please authenticate")

		return fmt.Errorf("validate token: %w", err)
	}

	if _, err := w.Write([]byte(token.UserID)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}

package authsvc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/repo/user"
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/socialsvc.key"`

	// TokenDuration is the validity duration of auth tokens in seconds
	TokenDuration int64 `env:"TOKEN_DURATION" default:"86400"` // 24h

	// BcryptCost is the bcrypt work factor for password hashing
	BcryptCost int `env:"BCRYPT_COST" default:"10"`
}

// RegisterParams carries the fields of a registration request.
// All fields are required.
type RegisterParams struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// AuthService provides account creation, login and bearer-token handling.
// Passwords are stored as bcrypt hashes; tokens are RSA-PSS signed with a
// process-wide key loaded from (or generated at) the configured file.
type AuthService struct {
	Config     AuthConfig
	UserRepo   user.Repository
	Log        logging.Logger
	SigningKey *rsa.PrivateKey
}

// NewAuthService creates a new AuthService with the given user repository and
// configuration. Returns an error if the signing key cannot be loaded.
func NewAuthService(userRepo user.Repository, cfg AuthConfig) (*AuthService, error) {
	log := logging.GetLogger("svc.authsvc.auth_service")

	signingKey, err := GetPrivateKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	return &AuthService{
		Config:     cfg,
		UserRepo:   userRepo,
		Log:        log,
		SigningKey: signingKey,
	}, nil
}

// Register creates a new account, issues a token for it and returns both the
// token and the owner-facing profile. The email is pre-checked; a duplicate
// username surfaces through the store's unique constraint as
// domain.ErrUsernameTaken.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (_ *domain.AuthResponse, err error) {
	log := s.Log.With(logging.Group("user", "username", params.Username))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "register user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}()

	switch {
	case params.Username == "":
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	case params.Email == "":
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	case params.Password == "":
		return nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
	case params.FullName == "":
		return nil, fmt.Errorf("%w: full name is required", domain.ErrValidation)
	}

	if _, exists, err := s.UserRepo.GetUserByEmail(ctx, params.Email); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if exists {
		return nil, domain.ErrEmailTaken
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.Config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	usr := &domain.User{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: passwordHash,
		FullName:     params.FullName,
		AvatarURL:    domain.DefaultAvatarURL,
		Followers:    []string{},
		Following:    []string{},
	}

	if err := s.UserRepo.CreateUser(ctx, usr); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.IssueToken(usr.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &domain.AuthResponse{Token: token, User: usr.Profile()}, nil
}

// Login authenticates by email and password and issues a token. Unknown
// email and wrong password both return domain.ErrInvalidCredentials so the
// response does not reveal which check failed.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ *domain.AuthResponse, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	usr, ok, err := s.UserRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	} else if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(password)); err != nil {
		return nil, errors.Join(domain.ErrInvalidCredentials, err)
	}

	token, err := s.IssueToken(usr.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &domain.AuthResponse{Token: token, User: usr.Profile()}, nil
}

// IssueToken signs a bearer token for the given user ID with the configured
// expiry. The encoding is base64url(payload || RSA-PSS signature).
func (s *AuthService) IssueToken(userID string) (string, error) {
	now := time.Now()
	expiry := now.Add(time.Duration(s.Config.TokenDuration * int64(time.Second)))
	token := domain.AuthToken{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiry.Unix(),
	}

	tokenBytes, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}

	hashed := sha256.Sum256(tokenBytes)

	signature, err := rsa.SignPSS(rand.Reader, s.SigningKey, crypto.SHA256, hashed[:], nil)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return base64.URLEncoding.EncodeToString(append(tokenBytes, signature...)), nil
}

// ValidateToken verifies a token's signature and expiration.
// Returns the decoded token if valid, or an error wrapping
// domain.ErrInvalidAuthToken if validation fails.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (token domain.AuthToken, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "validate token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token validated", logging.Group("token",
				"sub", token.UserID,
				"exp", time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339),
				"iat", time.Unix(token.IssuedAt, 0).UTC().Format(time.RFC3339),
			))
		}
	}()

	token, err = ValidateToken(ctx, tokenString, &s.SigningKey.PublicKey)
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("validate token: %w", err)
	}

	return token, nil
}

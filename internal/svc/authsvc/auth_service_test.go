package authsvc_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/svc/authsvc"
)

// mockUserRepository implements user.Repository for testing.
type mockUserRepository struct {
	users map[string]*domain.User
	err   error
	m     sync.Mutex
}

func newMockUserRepo() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) CreateUser(_ context.Context, usr *domain.User) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	for _, existing := range m.users {
		if existing.Username == usr.Username {
			return domain.ErrUsernameTaken
		}
		if existing.Email == usr.Email {
			return domain.ErrEmailTaken
		}
	}

	usr.ID = strings.Repeat("0", 23) + string(rune('1'+len(m.users)))
	usr.CreatedAt = time.Now().Unix()
	m.users[usr.ID] = usr

	return nil
}

func (m *mockUserRepository) GetUserByID(_ context.Context, id string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}

	usr, exists := m.users[id]

	return usr, exists, nil
}

func (m *mockUserRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}

	for _, usr := range m.users {
		if usr.Email == email {
			return usr, true, nil
		}
	}

	return nil, false, nil
}

func (m *mockUserRepository) GetUsersByIDs(_ context.Context, ids []string) (map[string]*domain.User, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	result := make(map[string]*domain.User, len(ids))

	for _, id := range ids {
		if usr, exists := m.users[id]; exists {
			result[id] = usr
		}
	}

	return result, nil
}

func (m *mockUserRepository) UpdateProfile(_ context.Context, id string, changes domain.ProfileChanges) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	usr, exists := m.users[id]
	if !exists {
		return domain.ErrUserNotFound
	}

	if changes.FullName != "" {
		usr.FullName = changes.FullName
	}
	if changes.Bio != "" {
		usr.Bio = changes.Bio
	}
	if changes.AvatarURL != "" {
		usr.AvatarURL = changes.AvatarURL
	}

	return nil
}

func (m *mockUserRepository) AddFollow(_ context.Context, followerID, followeeID string) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	m.users[followerID].Following = append(m.users[followerID].Following, followeeID)
	m.users[followeeID].Followers = append(m.users[followeeID].Followers, followerID)

	return nil
}

func (m *mockUserRepository) RemoveFollow(_ context.Context, followerID, followeeID string) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	remove := func(ids []string, id string) []string {
		out := ids[:0]
		for _, existing := range ids {
			if existing != id {
				out = append(out, existing)
			}
		}
		return out
	}

	m.users[followerID].Following = remove(m.users[followerID].Following, followeeID)
	m.users[followeeID].Followers = remove(m.users[followeeID].Followers, followerID)

	return nil
}

func (m *mockUserRepository) ListSuggested(_ context.Context, excludeIDs []string, limit int) ([]*domain.User, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	var result []*domain.User

	for _, usr := range m.users {
		if _, skip := excluded[usr.ID]; skip {
			continue
		}
		if len(result) >= limit {
			break
		}
		result = append(result, usr)
	}

	return result, nil
}

func (m *mockUserRepository) Close() error {
	return m.err
}

var ErrRepoError = errors.New("repository error")

func setupTestService(t *testing.T) (*authsvc.AuthService, *mockUserRepository) {
	t.Helper()

	signingKey, err := authsvc.GeneratePrivateKey(2048)
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}

	mockRepo := newMockUserRepo()
	cfg := authsvc.AuthConfig{
		TokenDuration: 3600,
		BcryptCost:    bcrypt.MinCost,
	}

	svc := &authsvc.AuthService{
		Config:     cfg,
		UserRepo:   mockRepo,
		Log:        logging.GetLogger("test.authsvc"),
		SigningKey: signingKey,
	}

	return svc, mockRepo
}

func registerParams(username string) authsvc.RegisterParams {
	return authsvc.RegisterParams{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
		FullName: "Test User",
	}
}

//nolint:paralleltest
func TestAuthService_Register(t *testing.T) {
	svc, mockRepo := setupTestService(t)

	tests := []struct {
		name    string
		params  authsvc.RegisterParams
		repoErr error
		wantErr error
	}{
		{
			name:   "successful registration",
			params: registerParams("newuser"),
		},
		{
			name:    "duplicate email",
			params:  registerParams("existinguser"),
			wantErr: domain.ErrEmailTaken,
		},
		{
			name: "missing username",
			params: authsvc.RegisterParams{
				Email:    "nobody@example.com",
				Password: "password123",
				FullName: "No Body",
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "missing password",
			params: authsvc.RegisterParams{
				Username: "nopass",
				Email:    "nopass@example.com",
				FullName: "No Pass",
			},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "repository error",
			params:  registerParams("erroruser"),
			repoErr: ErrRepoError,
			wantErr: ErrRepoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "duplicate email" {
				_, _ = svc.Register(context.Background(), tt.params)
			}
			mockRepo.err = tt.repoErr

			resp, err := svc.Register(context.Background(), tt.params)

			if (err != nil) != (tt.wantErr != nil) {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if resp.Token == "" {
					t.Error("Register() returned empty token")
				}
				if resp.User.Username != tt.params.Username {
					t.Errorf("Register() username = %v, want %v", resp.User.Username, tt.params.Username)
				}
				if resp.User.AvatarURL != domain.DefaultAvatarURL {
					t.Errorf("Register() profilePic = %v, want %v", resp.User.AvatarURL, domain.DefaultAvatarURL)
				}
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	svc, mockRepo := setupTestService(t)

	// Create test user
	testPassword := "testpass123"
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	mockRepo.users["u1"] = &domain.User{
		ID:           "u1",
		Username:     "testuser",
		Email:        "testuser@example.com",
		PasswordHash: passwordHash,
		FullName:     "Test User",
		CreatedAt:    time.Now().Unix(),
	}

	tests := []struct {
		name     string
		email    string
		password string
		repoErr  error
		wantErr  error
	}{
		{
			name:     "successful login",
			email:    "testuser@example.com",
			password: "testpass123",
		},
		{
			name:     "wrong password",
			email:    "testuser@example.com",
			password: "wrongpass",
			wantErr:  domain.ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			email:    "nonexistent@example.com",
			password: "anypass",
			wantErr:  domain.ErrInvalidCredentials,
		},
		{
			name:     "repository error",
			email:    "testuser@example.com",
			password: "testpass123",
			repoErr:  ErrRepoError,
			wantErr:  ErrRepoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo.err = tt.repoErr
			defer func() { mockRepo.err = nil }()

			resp, err := svc.Login(context.Background(), tt.email, tt.password)

			if (err != nil) != (tt.wantErr != nil) {
				t.Errorf("Login() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Login() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				token, err := svc.ValidateToken(context.Background(), resp.Token)
				if err != nil {
					t.Errorf("Login() generated invalid token: %v", err)
				}
				if token.UserID != "u1" {
					t.Errorf("Login() token subject = %v, want u1", token.UserID)
				}
			}
		})
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()

	validToken, err := svc.IssueToken("u1")
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}

	tampered := []byte(validToken)
	tampered[len(tampered)/2] ^= 'x'

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:  "valid token",
			token: validToken,
		},
		{
			name:    "tampered token",
			token:   string(tampered),
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name:    "invalid token format",
			token:   "invalid-token",
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: domain.ErrInvalidAuthToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := svc.ValidateToken(ctx, tt.token)

			if (err != nil) != (tt.wantErr != nil) {
				t.Errorf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if token.UserID != "u1" {
					t.Errorf("ValidateToken() subject = %v, want u1", token.UserID)
				}
				if token.ExpiresAt <= time.Now().Unix() {
					t.Error("ValidateToken() token already expired")
				}
			}
		})
	}
}

func TestAuthService_ExpiredToken(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	svc.Config.TokenDuration = -60

	token, err := svc.IssueToken("u1")
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}

	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, domain.ErrInvalidAuthToken) {
		t.Errorf("ValidateToken() error = %v, want %v", err, domain.ErrInvalidAuthToken)
	}
}

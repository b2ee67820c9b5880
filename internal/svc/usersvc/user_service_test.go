package usersvc_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/svc/usersvc"
)

// mockUserRepository implements user.Repository for testing.
type mockUserRepository struct {
	users map[string]*domain.User
	order []string
	err   error
	m     sync.Mutex
}

func newMockUserRepo() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) add(usr *domain.User) {
	m.users[usr.ID] = usr
	m.order = append(m.order, usr.ID)
}

func (m *mockUserRepository) CreateUser(_ context.Context, usr *domain.User) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	m.add(usr)

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

	for _, id := range m.order {
		if _, skip := excluded[id]; skip {
			continue
		}
		if len(result) >= limit {
			break
		}
		result = append(result, m.users[id])
	}

	return result, nil
}

func (m *mockUserRepository) Close() error {
	return m.err
}

func testUser(id, username string) *domain.User {
	return &domain.User{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		FullName:  "User " + username,
		AvatarURL: domain.DefaultAvatarURL,
		Followers: []string{},
		Following: []string{},
		CreatedAt: time.Now().Unix(),
	}
}

func setupTestService(t *testing.T) (*usersvc.UserService, *mockUserRepository) {
	t.Helper()

	mockRepo := newMockUserRepo()
	svc := &usersvc.UserService{
		UserRepo: mockRepo,
		Log:      logging.GetLogger("test.usersvc"),
	}

	return svc, mockRepo
}

func TestUserService_GetUser(t *testing.T) {
	t.Parallel()

	svc, mockRepo := setupTestService(t)
	mockRepo.add(testUser("u1", "alice"))

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{
			name: "existing user",
			id:   "u1",
		},
		{
			name:    "unknown user",
			id:      "missing",
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			usr, err := svc.GetUser(context.Background(), tt.id)

			if (err != nil) != (tt.wantErr != nil) {
				t.Errorf("GetUser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("GetUser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && usr.ID != tt.id {
				t.Errorf("GetUser() id = %v, want %v", usr.ID, tt.id)
			}
		})
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()

	svc, mockRepo := setupTestService(t)

	usr := testUser("u1", "alice")
	usr.Bio = "original bio"
	mockRepo.add(usr)

	updated, err := svc.UpdateProfile(context.Background(), "u1", domain.ProfileChanges{
		FullName: "Alice Updated",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	if updated.FullName != "Alice Updated" {
		t.Errorf("UpdateProfile() fullName = %v, want Alice Updated", updated.FullName)
	}
	if updated.Bio != "original bio" {
		t.Errorf("UpdateProfile() changed omitted field bio = %v", updated.Bio)
	}

	if _, err := svc.UpdateProfile(context.Background(), "missing", domain.ProfileChanges{Bio: "x"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("UpdateProfile() error = %v, want %v", err, domain.ErrUserNotFound)
	}
}

//nolint:paralleltest
func TestUserService_FollowUnfollow(t *testing.T) {
	svc, mockRepo := setupTestService(t)

	alice := testUser("u1", "alice")
	bob := testUser("u2", "bob")
	mockRepo.add(alice)
	mockRepo.add(bob)

	ctx := context.Background()

	// Follow adds both sides of the edge.
	if err := svc.Follow(ctx, alice, "u2"); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if !slices.Contains(mockRepo.users["u1"].Following, "u2") {
		t.Error("Follow() did not add followee to following set")
	}
	if !slices.Contains(mockRepo.users["u2"].Followers, "u1") {
		t.Error("Follow() did not add follower to follower set")
	}

	// Following again fails without touching the graph.
	if err := svc.Follow(ctx, alice, "u2"); !errors.Is(err, domain.ErrAlreadyFollowing) {
		t.Errorf("Follow() error = %v, want %v", err, domain.ErrAlreadyFollowing)
	}
	if got := len(mockRepo.users["u2"].Followers); got != 1 {
		t.Errorf("Follow() follower count = %d, want 1", got)
	}

	// Unfollow restores the original sets.
	if err := svc.Unfollow(ctx, alice, "u2"); err != nil {
		t.Fatalf("Unfollow() error = %v", err)
	}
	if len(mockRepo.users["u1"].Following) != 0 || len(mockRepo.users["u2"].Followers) != 0 {
		t.Error("Unfollow() did not restore the original graph")
	}

	// Unfollowing without an edge fails.
	if err := svc.Unfollow(ctx, alice, "u2"); !errors.Is(err, domain.ErrNotFollowing) {
		t.Errorf("Unfollow() error = %v, want %v", err, domain.ErrNotFollowing)
	}
}

func TestUserService_FollowErrors(t *testing.T) {
	t.Parallel()

	svc, mockRepo := setupTestService(t)

	alice := testUser("u1", "alice")
	mockRepo.add(alice)

	tests := []struct {
		name     string
		targetID string
		wantErr  error
	}{
		{
			name:     "self follow",
			targetID: "u1",
			wantErr:  domain.ErrSelfFollow,
		},
		{
			name:     "unknown target",
			targetID: "missing",
			wantErr:  domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := svc.Follow(context.Background(), alice, tt.targetID); !errors.Is(err, tt.wantErr) {
				t.Errorf("Follow() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserService_Suggested(t *testing.T) {
	t.Parallel()

	svc, mockRepo := setupTestService(t)

	caller := testUser("u1", "alice")
	caller.Following = []string{"u2", "u3"}

	followed := testUser("u2", "bob")
	followed.Followers = []string{"u1"}

	other := testUser("u3", "carol")
	other.Followers = []string{"u1"}

	// candidate followed by u2 and u3, both of whom the caller follows
	candidate := testUser("u4", "dave")
	candidate.Followers = []string{"u2", "u3"}

	// candidate with no overlap
	stranger := testUser("u5", "erin")

	mockRepo.add(caller)
	mockRepo.add(followed)
	mockRepo.add(other)
	mockRepo.add(candidate)
	mockRepo.add(stranger)

	suggestions, err := svc.Suggested(context.Background(), caller)
	if err != nil {
		t.Fatalf("Suggested() error = %v", err)
	}

	if len(suggestions) != 2 {
		t.Fatalf("Suggested() returned %d users, want 2", len(suggestions))
	}

	byID := make(map[string]domain.SuggestedUser, len(suggestions))
	for _, s := range suggestions {
		if s.ID == "u1" || s.ID == "u2" || s.ID == "u3" {
			t.Errorf("Suggested() included excluded user %v", s.ID)
		}
		byID[s.ID] = s
	}

	if got := byID["u4"].MutualFriends; got != 2 {
		t.Errorf("Suggested() mutualFriends for u4 = %d, want 2", got)
	}
	if got := byID["u5"].MutualFriends; got != 0 {
		t.Errorf("Suggested() mutualFriends for u5 = %d, want 0", got)
	}
}

func TestUserService_SuggestedLimit(t *testing.T) {
	t.Parallel()

	svc, mockRepo := setupTestService(t)

	caller := testUser("u0", "caller")
	mockRepo.add(caller)

	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		mockRepo.add(testUser(id, "user-"+id))
	}

	suggestions, err := svc.Suggested(context.Background(), caller)
	if err != nil {
		t.Fatalf("Suggested() error = %v", err)
	}

	if len(suggestions) > usersvc.SuggestionLimit {
		t.Errorf("Suggested() returned %d users, want at most %d", len(suggestions), usersvc.SuggestionLimit)
	}
}

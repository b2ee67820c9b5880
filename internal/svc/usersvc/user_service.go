// Package usersvc implements profile and social-graph operations: profile
// read/update, follow/unfollow and the suggested-users listing.
package usersvc

import (
	"context"
	"fmt"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/repo/user"
)

// SuggestionLimit caps the suggested-users listing.
const SuggestionLimit = 5

// UserService provides profile and follow-graph operations on top of the
// user repository. It keeps no state of its own; the store is the sole
// source of truth.
type UserService struct {
	UserRepo user.Repository
	Log      logging.Logger
}

// NewUserService creates a new UserService with the given user repository.
func NewUserService(userRepo user.Repository) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Log:      logging.GetLogger("svc.usersvc.user_service"),
	}
}

// GetUser retrieves a user by ID.
// Returns domain.ErrUserNotFound if the user does not exist.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	usr, ok, err := s.UserRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	} else if !ok {
		return nil, domain.ErrUserNotFound
	}

	return usr, nil
}

// UpdateProfile overwrites the supplied non-empty profile fields of the user
// and returns the updated record. Omitted fields are left unchanged.
func (s *UserService) UpdateProfile(
	ctx context.Context,
	userID string,
	changes domain.ProfileChanges,
) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "id", userID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "profile update failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile updated")
		}
	}()

	if err := s.UserRepo.UpdateProfile(ctx, userID, changes); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return s.GetUser(ctx, userID)
}

// Follow adds the caller -> target follow edge: the target joins the
// caller's following set and the caller joins the target's follower set.
// Fails with domain.ErrSelfFollow, domain.ErrUserNotFound or
// domain.ErrAlreadyFollowing as appropriate.
func (s *UserService) Follow(ctx context.Context, caller *domain.User, targetID string) (err error) {
	log := s.Log.With(logging.Group("follow", "follower", caller.ID, "followee", targetID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "follow failed", "error", err)
		} else {
			log.DebugContext(ctx, "followed")
		}
	}()

	if targetID == caller.ID {
		return domain.ErrSelfFollow
	}

	if _, ok, err := s.UserRepo.GetUserByID(ctx, targetID); err != nil {
		return fmt.Errorf("get target: %w", err)
	} else if !ok {
		return domain.ErrUserNotFound
	}

	if caller.IsFollowing(targetID) {
		return domain.ErrAlreadyFollowing
	}

	if err := s.UserRepo.AddFollow(ctx, caller.ID, targetID); err != nil {
		return fmt.Errorf("add follow: %w", err)
	}

	return nil
}

// Unfollow removes the caller -> target follow edge, the structural inverse
// of Follow. Fails with domain.ErrUserNotFound or domain.ErrNotFollowing as
// appropriate.
func (s *UserService) Unfollow(ctx context.Context, caller *domain.User, targetID string) (err error) {
	log := s.Log.With(logging.Group("follow", "follower", caller.ID, "followee", targetID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "unfollow failed", "error", err)
		} else {
			log.DebugContext(ctx, "unfollowed")
		}
	}()

	if _, ok, err := s.UserRepo.GetUserByID(ctx, targetID); err != nil {
		return fmt.Errorf("get target: %w", err)
	} else if !ok {
		return domain.ErrUserNotFound
	}

	if !caller.IsFollowing(targetID) {
		return domain.ErrNotFollowing
	}

	if err := s.UserRepo.RemoveFollow(ctx, caller.ID, targetID); err != nil {
		return fmt.Errorf("remove follow: %w", err)
	}

	return nil
}

// Suggested returns up to SuggestionLimit users the caller does not follow
// yet, excluding the caller. MutualFriends is the size of the intersection
// between the caller's following set and the candidate's follower set.
func (s *UserService) Suggested(ctx context.Context, caller *domain.User) ([]domain.SuggestedUser, error) {
	exclude := make([]string, 0, len(caller.Following)+1)
	exclude = append(exclude, caller.ID)
	exclude = append(exclude, caller.Following...)

	candidates, err := s.UserRepo.ListSuggested(ctx, exclude, SuggestionLimit)
	if err != nil {
		return nil, fmt.Errorf("list suggested: %w", err)
	}

	following := make(map[string]struct{}, len(caller.Following))
	for _, id := range caller.Following {
		following[id] = struct{}{}
	}

	suggestions := make([]domain.SuggestedUser, 0, len(candidates))

	for _, candidate := range candidates {
		mutual := 0

		for _, followerID := range candidate.Followers {
			if _, ok := following[followerID]; ok {
				mutual++
			}
		}

		suggestions = append(suggestions, domain.SuggestedUser{
			ID:            candidate.ID,
			Username:      candidate.Username,
			FullName:      candidate.FullName,
			AvatarURL:     candidate.AvatarURL,
			MutualFriends: mutual,
		})
	}

	return suggestions, nil
}

package user

import (
	"context"

	"github.com/mkrupp/minisocial/internal/domain"
)

// Repository defines the interface for user persistence, including both
// sides of the follow graph.
type Repository interface {
	// CreateUser adds a new user and assigns its ID.
	// Returns domain.ErrUsernameTaken or domain.ErrEmailTaken when the
	// corresponding unique constraint is violated.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUserByID retrieves a user by its ID.
	// Returns the user and true if found, or nil and false if not found.
	GetUserByID(ctx context.Context, id string) (*domain.User, bool, error)

	// GetUserByEmail retrieves a user by its unique email.
	// Returns the user and true if found, or nil and false if not found.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error)

	// GetUsersByIDs retrieves the given users in one batch, keyed by ID.
	// IDs that do not resolve are absent from the result, not an error.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)

	// UpdateProfile overwrites the non-empty fields of changes on the user.
	// Returns domain.ErrUserNotFound if the user does not exist.
	UpdateProfile(ctx context.Context, id string, changes domain.ProfileChanges) error

	// AddFollow records follower -> followee: the followee is added to the
	// follower's following set and the follower to the followee's follower
	// set. Adding an existing edge is a no-op at this level; state checks
	// belong to the caller.
	AddFollow(ctx context.Context, followerID, followeeID string) error

	// RemoveFollow removes both sides of the follower -> followee edge.
	RemoveFollow(ctx context.Context, followerID, followeeID string) error

	// ListSuggested returns up to limit users whose IDs are not in excludeIDs.
	ListSuggested(ctx context.Context, excludeIDs []string, limit int) ([]*domain.User, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)

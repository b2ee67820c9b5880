package post

import (
	"context"

	"github.com/mkrupp/minisocial/internal/domain"
)

// Repository defines the interface for post persistence. Likes and comments
// mutate the owning post document; there is no independent comment entity.
type Repository interface {
	// CreatePost stores a new post and assigns its ID (and CreatedAt when
	// unset).
	CreatePost(ctx context.Context, post *domain.Post) error

	// GetPostByID retrieves a post by its ID.
	// Returns the post and true if found, or nil and false if not found.
	GetPostByID(ctx context.Context, id string) (*domain.Post, bool, error)

	// ListByAuthors returns posts authored by any of the given users,
	// newest first, bounded by the query.
	ListByAuthors(ctx context.Context, authorIDs []string, query domain.FeedQuery) ([]*domain.Post, error)

	// AddLike adds userID to the post's like set. Set semantics: adding an
	// existing like is a no-op at this level.
	// Returns domain.ErrPostNotFound if the post does not exist.
	AddLike(ctx context.Context, postID, userID string) error

	// RemoveLike removes userID from the post's like set.
	// Returns domain.ErrPostNotFound if the post does not exist.
	RemoveLike(ctx context.Context, postID, userID string) error

	// AddComment appends the comment to the post and assigns the comment ID.
	// Returns domain.ErrPostNotFound if the post does not exist.
	AddComment(ctx context.Context, postID string, comment *domain.Comment) error

	// DeletePost removes the post permanently, discarding its likes and
	// comments. Returns domain.ErrPostNotFound if the post does not exist.
	DeletePost(ctx context.Context, id string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)

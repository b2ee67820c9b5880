package domain

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrPostNotFound is returned when looking up a non-existent post.
	ErrPostNotFound = errors.New("post not found")
	// ErrNotPostAuthor is returned when a user tries to delete a post they did not write.
	ErrNotPostAuthor = errors.New("not authorized to delete this post")
	// ErrAlreadyLiked is returned when liking a post the user has already liked.
	ErrAlreadyLiked = errors.New("post already liked")
	// ErrNotLiked is returned when unliking a post the user has not liked.
	ErrNotLiked = errors.New("post not liked yet")
	// ErrValidation is returned when a required field is missing or empty.
	ErrValidation = errors.New("validation failed")
)

// Post represents a text update together with its likes and embedded
// comments. Likes has set semantics: a user ID appears at most once.
// Post and comment timestamps are unix milliseconds so feed ordering stays
// stable for posts created within the same second.
type Post struct {
	ID        string    // Unique identifier, assigned by the store
	AuthorID  string    // ID of the authoring user
	Content   string    // Post text, non-empty
	Likes     []string  // IDs of users who liked the post
	Comments  []Comment // Ordered by append time
	CreatedAt int64     // Unix milliseconds
}

// Comment is embedded in a Post and never edited or deleted independently.
type Comment struct {
	ID        string // Unique within the owning post
	AuthorID  string // ID of the commenting user
	Content   string // Comment text, non-empty
	CreatedAt int64  // Unix milliseconds
}

// IsLikedBy reports whether the given user ID is in the like set.
func (p *Post) IsLikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// FeedQuery bounds a feed listing. The zero value returns everything,
// newest first.
type FeedQuery struct {
	Limit  int   // Maximum number of posts, 0 for no limit
	Before int64 // Only posts created strictly before this unix-ms timestamp, 0 for no cursor
}

// PostAuthor is the projection of a user embedded in post and comment views.
type PostAuthor struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"profilePic"`
}

// PostView is the API representation of a post, with the author and all
// comment authors expanded to projections and the like set flattened to a
// count plus a viewer-specific flag.
type PostView struct {
	ID        string        `json:"id"`
	Author    PostAuthor    `json:"author"`
	Content   string        `json:"content"`
	Likes     int           `json:"likes"`
	Liked     bool          `json:"liked"`
	Comments  []CommentView `json:"comments"`
	Timestamp string        `json:"timestamp"`
}

// CommentView is the API representation of an embedded comment.
type CommentView struct {
	ID        string     `json:"id"`
	Author    PostAuthor `json:"author"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
}

// FormatTimestamp renders a unix-millisecond timestamp the way post and
// comment views serialize time.
func FormatTimestamp(unixMilli int64) string {
	return time.UnixMilli(unixMilli).UTC().Format(time.RFC3339)
}

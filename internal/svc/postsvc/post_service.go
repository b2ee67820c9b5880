// Package postsvc implements post operations: create, delete, feed listing,
// likes and comments. Post views expand author references to public
// projections through a batched user lookup.
package postsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/repo/post"
	"github.com/mkrupp/minisocial/internal/repo/user"
)

// PostService provides post, feed, like and comment operations. It joins
// post documents with user records at read time; the stores are the sole
// source of truth.
type PostService struct {
	PostRepo post.Repository
	UserRepo user.Repository
	Log      logging.Logger
}

// NewPostService creates a new PostService with the given repositories.
func NewPostService(postRepo post.Repository, userRepo user.Repository) *PostService {
	return &PostService{
		PostRepo: postRepo,
		UserRepo: userRepo,
		Log:      logging.GetLogger("svc.postsvc.post_service"),
	}
}

// Create stores a new post by the caller and returns its view with the
// author expanded and empty like/comment sets.
func (s *PostService) Create(ctx context.Context, caller *domain.User, content string) (_ domain.PostView, err error) {
	log := s.Log.With(logging.Group("post", "author", caller.ID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "create post failed", "error", err)
		} else {
			log.DebugContext(ctx, "post created")
		}
	}()

	if strings.TrimSpace(content) == "" {
		return domain.PostView{}, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}

	newPost := &domain.Post{
		AuthorID: caller.ID,
		Content:  content,
		Likes:    []string{},
		Comments: []domain.Comment{},
	}

	if err := s.PostRepo.CreatePost(ctx, newPost); err != nil {
		return domain.PostView{}, fmt.Errorf("create post: %w", err)
	}

	authors := map[string]*domain.User{caller.ID: caller}

	return buildPostView(newPost, authors, caller.ID), nil
}

// Feed returns the posts authored by the caller or anyone the caller
// follows, newest first, bounded by the query. Author and comment-author
// references are expanded; the liked flag reflects the caller.
func (s *PostService) Feed(
	ctx context.Context,
	caller *domain.User,
	query domain.FeedQuery,
) ([]domain.PostView, error) {
	authorIDs := make([]string, 0, len(caller.Following)+1)
	authorIDs = append(authorIDs, caller.ID)
	authorIDs = append(authorIDs, caller.Following...)

	posts, err := s.PostRepo.ListByAuthors(ctx, authorIDs, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	authors, err := s.expandAuthors(ctx, posts)
	if err != nil {
		return nil, err
	}

	views := make([]domain.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, buildPostView(p, authors, caller.ID))
	}

	return views, nil
}

// Get returns a single post view. viewerID may be empty, in which case the
// liked flag is false. Fails with domain.ErrPostNotFound if absent.
func (s *PostService) Get(ctx context.Context, postID, viewerID string) (domain.PostView, error) {
	p, ok, err := s.PostRepo.GetPostByID(ctx, postID)
	if err != nil {
		return domain.PostView{}, fmt.Errorf("get post: %w", err)
	} else if !ok {
		return domain.PostView{}, domain.ErrPostNotFound
	}

	authors, err := s.expandAuthors(ctx, []*domain.Post{p})
	if err != nil {
		return domain.PostView{}, err
	}

	return buildPostView(p, authors, viewerID), nil
}

// Like adds the caller to the post's like set and returns the new like
// count. Fails with domain.ErrPostNotFound or domain.ErrAlreadyLiked.
func (s *PostService) Like(ctx context.Context, caller *domain.User, postID string) (int, error) {
	p, ok, err := s.PostRepo.GetPostByID(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("get post: %w", err)
	} else if !ok {
		return 0, domain.ErrPostNotFound
	}

	if p.IsLikedBy(caller.ID) {
		return 0, domain.ErrAlreadyLiked
	}

	if err := s.PostRepo.AddLike(ctx, postID, caller.ID); err != nil {
		return 0, fmt.Errorf("add like: %w", err)
	}

	return len(p.Likes) + 1, nil
}

// Unlike removes the caller from the post's like set and returns the new
// like count. Fails with domain.ErrPostNotFound or domain.ErrNotLiked.
func (s *PostService) Unlike(ctx context.Context, caller *domain.User, postID string) (int, error) {
	p, ok, err := s.PostRepo.GetPostByID(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("get post: %w", err)
	} else if !ok {
		return 0, domain.ErrPostNotFound
	}

	if !p.IsLikedBy(caller.ID) {
		return 0, domain.ErrNotLiked
	}

	if err := s.PostRepo.RemoveLike(ctx, postID, caller.ID); err != nil {
		return 0, fmt.Errorf("remove like: %w", err)
	}

	return len(p.Likes) - 1, nil
}

// Comment appends an embedded comment by the caller to the post and returns
// its view. Fails with domain.ErrPostNotFound or a validation error on
// empty content.
func (s *PostService) Comment(
	ctx context.Context,
	caller *domain.User,
	postID, content string,
) (_ domain.CommentView, err error) {
	log := s.Log.With(logging.Group("comment", "post", postID, "author", caller.ID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "comment failed", "error", err)
		} else {
			log.DebugContext(ctx, "comment added")
		}
	}()

	if strings.TrimSpace(content) == "" {
		return domain.CommentView{}, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}

	if _, ok, err := s.PostRepo.GetPostByID(ctx, postID); err != nil {
		return domain.CommentView{}, fmt.Errorf("get post: %w", err)
	} else if !ok {
		return domain.CommentView{}, domain.ErrPostNotFound
	}

	comment := &domain.Comment{
		AuthorID: caller.ID,
		Content:  content,
	}

	if err := s.PostRepo.AddComment(ctx, postID, comment); err != nil {
		return domain.CommentView{}, fmt.Errorf("add comment: %w", err)
	}

	return domain.CommentView{
		ID:        comment.ID,
		Author:    postAuthor(caller),
		Content:   comment.Content,
		Timestamp: domain.FormatTimestamp(comment.CreatedAt),
	}, nil
}

// Delete removes a post permanently. Only the author may delete; others
// fail with domain.ErrNotPostAuthor. Likes and comments are discarded with
// the post.
func (s *PostService) Delete(ctx context.Context, caller *domain.User, postID string) (err error) {
	log := s.Log.With(logging.Group("post", "id", postID, "caller", caller.ID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "delete post failed", "error", err)
		} else {
			log.DebugContext(ctx, "post deleted")
		}
	}()

	p, ok, err := s.PostRepo.GetPostByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("get post: %w", err)
	} else if !ok {
		return domain.ErrPostNotFound
	}

	if p.AuthorID != caller.ID {
		return domain.ErrNotPostAuthor
	}

	if err := s.PostRepo.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	return nil
}

// expandAuthors batch-loads every user referenced as post or comment author.
func (s *PostService) expandAuthors(
	ctx context.Context,
	posts []*domain.Post,
) (map[string]*domain.User, error) {
	seen := map[string]struct{}{}
	ids := []string{}

	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	for _, p := range posts {
		add(p.AuthorID)

		for _, c := range p.Comments {
			add(c.AuthorID)
		}
	}

	authors, err := s.UserRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("expand authors: %w", err)
	}

	return authors, nil
}

func postAuthor(usr *domain.User) domain.PostAuthor {
	return domain.PostAuthor{
		ID:        usr.ID,
		Username:  usr.Username,
		FullName:  usr.FullName,
		AvatarURL: usr.AvatarURL,
	}
}

// resolveAuthor falls back to a bare reference when the author record no
// longer resolves; the post stays renderable.
func resolveAuthor(authors map[string]*domain.User, id string) domain.PostAuthor {
	if usr, ok := authors[id]; ok {
		return postAuthor(usr)
	}

	return domain.PostAuthor{ID: id}
}

func buildPostView(p *domain.Post, authors map[string]*domain.User, viewerID string) domain.PostView {
	comments := make([]domain.CommentView, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, domain.CommentView{
			ID:        c.ID,
			Author:    resolveAuthor(authors, c.AuthorID),
			Content:   c.Content,
			Timestamp: domain.FormatTimestamp(c.CreatedAt),
		})
	}

	liked := viewerID != "" && p.IsLikedBy(viewerID)

	return domain.PostView{
		ID:        p.ID,
		Author:    resolveAuthor(authors, p.AuthorID),
		Content:   p.Content,
		Likes:     len(p.Likes),
		Liked:     liked,
		Comments:  comments,
		Timestamp: domain.FormatTimestamp(p.CreatedAt),
	}
}

package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/repo/user"
)

// SQLitePostRepositoryConfig holds configuration for the SQLite post repository.
type SQLitePostRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/socialsvc.db"`
}

// SQLitePostRepository implements Repository using SQLite as the storage
// backend. Likes and comments live in relation tables keyed by post ID.
type SQLitePostRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLitePostRepository)(nil)

// SQLitePostRepositoryFactory creates a factory function that returns a new
// SQLitePostRepository. The factory function implements the RepositoryFactory type.
func SQLitePostRepositoryFactory(cfg SQLitePostRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLitePostRepository(cfg)
	}
}

// NewSQLitePostRepository creates a new SQLitePostRepository with the given
// configuration. It initializes the database connection and creates the
// schema if needed.
func NewSQLitePostRepository(cfg SQLitePostRepositoryConfig) (*SQLitePostRepository, error) {
	log := logging.GetLogger("repo.post.sqlite_post_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializePostDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLitePostRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializePostDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id         TEXT    PRIMARY KEY,
			author_id  TEXT    NOT NULL,
			content    TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS posts_author_created
			ON posts (author_id, created_at DESC);
		CREATE TABLE IF NOT EXISTS post_likes (
			post_id    TEXT    NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id    TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS post_comments (
			id         TEXT    PRIMARY KEY,
			post_id    TEXT    NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			author_id  TEXT    NOT NULL,
			content    TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// CreatePost implements Repository.CreatePost using SQLite.
func (r *SQLitePostRepository) CreatePost(ctx context.Context, post *domain.Post) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	id := user.NewID()
	createdAt := post.CreatedAt

	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO posts (id, author_id, content, created_at) VALUES (?, ?, ?, ?)",
		id, post.AuthorID, post.Content, createdAt,
	); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.ID = id
	post.CreatedAt = createdAt

	return nil
}

// GetPostByID implements Repository.GetPostByID using SQLite.
func (r *SQLitePostRepository) GetPostByID(ctx context.Context, id string) (*domain.Post, bool, error) {
	var post domain.Post

	err := r.db.QueryRowContext(ctx,
		"SELECT id, author_id, content, created_at FROM posts WHERE id = ?", id,
	).Scan(&post.ID, &post.AuthorID, &post.Content, &post.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query post: %w", err)
	}

	if err := r.attach(ctx, []*domain.Post{&post}); err != nil {
		return nil, false, err
	}

	return &post, true, nil
}

// ListByAuthors implements Repository.ListByAuthors using SQLite.
func (r *SQLitePostRepository) ListByAuthors(
	ctx context.Context,
	authorIDs []string,
	query domain.FeedQuery,
) ([]*domain.Post, error) {
	if len(authorIDs) == 0 {
		return []*domain.Post{}, nil
	}

	stmt := `SELECT id, author_id, content, created_at FROM posts
		WHERE author_id IN (?` + strings.Repeat(", ?", len(authorIDs)-1) + `)`
	args := make([]any, 0, len(authorIDs)+2)

	for _, id := range authorIDs {
		args = append(args, id)
	}

	if query.Before > 0 {
		stmt += " AND created_at < ?"
		args = append(args, query.Before)
	}

	stmt += " ORDER BY created_at DESC"

	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []*domain.Post{}

	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Content, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}

		posts = append(posts, &post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	if err := r.attach(ctx, posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// attach loads likes and comments for the given posts in two batched
// queries.
func (r *SQLitePostRepository) attach(ctx context.Context, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Post, len(posts))
	args := make([]any, 0, len(posts))

	for _, post := range posts {
		post.Likes = []string{}
		post.Comments = []domain.Comment{}
		byID[post.ID] = post
		args = append(args, post.ID)
	}

	placeholders := "?" + strings.Repeat(", ?", len(posts)-1)

	likeRows, err := r.db.QueryContext(ctx,
		`SELECT post_id, user_id FROM post_likes
		 WHERE post_id IN (`+placeholders+`) ORDER BY created_at`, args...)
	if err != nil {
		return fmt.Errorf("query likes: %w", err)
	}
	defer likeRows.Close()

	for likeRows.Next() {
		var postID, userID string
		if err := likeRows.Scan(&postID, &userID); err != nil {
			return fmt.Errorf("scan like: %w", err)
		}

		byID[postID].Likes = append(byID[postID].Likes, userID)
	}

	if err := likeRows.Err(); err != nil {
		return fmt.Errorf("iterate likes: %w", err)
	}

	commentRows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, author_id, content, created_at FROM post_comments
		 WHERE post_id IN (`+placeholders+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer commentRows.Close()

	for commentRows.Next() {
		var (
			comment domain.Comment
			postID  string
		)

		if err := commentRows.Scan(
			&comment.ID, &postID, &comment.AuthorID, &comment.Content, &comment.CreatedAt,
		); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}

		byID[postID].Comments = append(byID[postID].Comments, comment)
	}

	if err := commentRows.Err(); err != nil {
		return fmt.Errorf("iterate comments: %w", err)
	}

	return nil
}

// AddLike implements Repository.AddLike as a single edge-row insert.
func (r *SQLitePostRepository) AddLike(ctx context.Context, postID, userID string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if err := r.mustExist(ctx, postID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)",
		postID, userID, time.Now().UnixMilli(),
	); err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			// Set semantics, matching the document store's $addToSet.
			return nil
		}

		return fmt.Errorf("insert like: %w", err)
	}

	return nil
}

// RemoveLike implements Repository.RemoveLike.
func (r *SQLitePostRepository) RemoveLike(ctx context.Context, postID, userID string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if err := r.mustExist(ctx, postID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM post_likes WHERE post_id = ? AND user_id = ?",
		postID, userID,
	); err != nil {
		return fmt.Errorf("delete like: %w", err)
	}

	return nil
}

// AddComment implements Repository.AddComment.
func (r *SQLitePostRepository) AddComment(ctx context.Context, postID string, comment *domain.Comment) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if err := r.mustExist(ctx, postID); err != nil {
		return err
	}

	id := user.NewID()
	createdAt := comment.CreatedAt

	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO post_comments (id, post_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)",
		id, postID, comment.AuthorID, comment.Content, createdAt,
	); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	comment.ID = id
	comment.CreatedAt = createdAt

	return nil
}

// DeletePost implements Repository.DeletePost. Likes and comments are
// removed together with the post row.
func (r *SQLitePostRepository) DeletePost(ctx context.Context, id string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrPostNotFound
	}

	// ON DELETE CASCADE needs foreign keys enabled; clean up explicitly so
	// behavior does not depend on the pragma.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM post_likes WHERE post_id = ?", id); err != nil {
		return fmt.Errorf("delete likes: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM post_comments WHERE post_id = ?", id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}

	return nil
}

func (r *SQLitePostRepository) mustExist(ctx context.Context, postID string) error {
	var one int

	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM posts WHERE id = ?", postID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPostNotFound
		}

		return fmt.Errorf("query post: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLitePostRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

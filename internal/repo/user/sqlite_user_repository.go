package user

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
	"github.com/mkrupp/minisocial/internal/util/encoding"
	"github.com/mkrupp/minisocial/internal/util/uuid"
)

// SQLiteUserRepositoryConfig holds configuration for the SQLite user repository.
type SQLiteUserRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/socialsvc.db"`
}

// SQLiteUserRepository implements Repository using SQLite as the storage
// backend. The follow graph is a relation table keyed by (follower,
// followee), so an edge update is a single row write and atomic by
// construction.
type SQLiteUserRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteUserRepository)(nil)

// SQLiteUserRepositoryFactory creates a factory function that returns a new
// SQLiteUserRepository. The factory function implements the RepositoryFactory type.
func SQLiteUserRepositoryFactory(cfg SQLiteUserRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteUserRepository(cfg)
	}
}

// NewSQLiteUserRepository creates a new SQLiteUserRepository with the given
// configuration. It initializes the database connection and creates the
// schema if needed. Returns an error if database connection or
// initialization fails.
func NewSQLiteUserRepository(cfg SQLiteUserRepositoryConfig) (*SQLiteUserRepository, error) {
	log := logging.GetLogger("repo.user.sqlite_user_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeUserDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteUserRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeUserDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT    PRIMARY KEY,
			username      TEXT    UNIQUE NOT NULL,
			email         TEXT    UNIQUE NOT NULL,
			password_hash BLOB    NOT NULL,
			full_name     TEXT    NOT NULL,
			bio           TEXT    NOT NULL DEFAULT '',
			avatar_url    TEXT    NOT NULL,
			created_at    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(id),
			followee_id TEXT NOT NULL REFERENCES users(id),
			created_at  INTEGER NOT NULL,
			PRIMARY KEY (follower_id, followee_id)
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// NewID generates a store-assigned identifier: a Crockford-encoded UUIDv7,
// so IDs sort roughly by creation time.
func NewID() string {
	id, err := uuid.New(uuid.UUIDv7)
	if err != nil {
		panic(err) // UUIDv7 generation only fails when crypto/rand does
	}

	return encoding.EncodeCrockfordB32LC(id.Bytes())
}

// CreateUser implements Repository.CreateUser using SQLite.
func (r *SQLiteUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	id := NewID()
	createdAt := user.CreatedAt

	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, full_name, bio, avatar_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, user.Username, user.Email, user.PasswordHash,
		user.FullName, user.Bio, user.AvatarURL, createdAt,
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			if strings.Contains(liteErr.Error(), "users.username") {
				err = errors.Join(domain.ErrUsernameTaken, err)
			} else {
				err = errors.Join(domain.ErrEmailTaken, err)
			}
		}

		return fmt.Errorf("insert user: %w", err)
	}

	user.ID = id
	user.CreatedAt = createdAt

	return nil
}

// GetUserByID implements Repository.GetUserByID using SQLite.
func (r *SQLiteUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, bool, error) {
	return r.getUser(ctx, "id", id)
}

// GetUserByEmail implements Repository.GetUserByEmail using SQLite.
func (r *SQLiteUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	return r.getUser(ctx, "email", email)
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, column, value string) (*domain.User, bool, error) {
	var user domain.User

	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, full_name, bio, avatar_url, created_at
		 FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FullName, &user.Bio, &user.AvatarURL, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query user: %w", err)
	}

	if err := r.loadEdges(ctx, &user); err != nil {
		return nil, false, err
	}

	return &user, true, nil
}

func (r *SQLiteUserRepository) loadEdges(ctx context.Context, user *domain.User) error {
	followers, err := r.edgeColumn(ctx,
		"SELECT follower_id FROM follows WHERE followee_id = ? ORDER BY created_at", user.ID)
	if err != nil {
		return fmt.Errorf("query followers: %w", err)
	}

	following, err := r.edgeColumn(ctx,
		"SELECT followee_id FROM follows WHERE follower_id = ? ORDER BY created_at", user.ID)
	if err != nil {
		return fmt.Errorf("query following: %w", err)
	}

	user.Followers = followers
	user.Following = following

	return nil
}

func (r *SQLiteUserRepository) edgeColumn(ctx context.Context, query, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	ids := []string{}

	for rows.Next() {
		var edgeID string
		if err := rows.Scan(&edgeID); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}

		ids = append(ids, edgeID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}

	return ids, nil
}

// GetUsersByIDs implements Repository.GetUsersByIDs using SQLite.
func (r *SQLiteUserRepository) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	users := make(map[string]*domain.User, len(ids))

	for _, id := range ids {
		if _, seen := users[id]; seen {
			continue
		}

		user, ok, err := r.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if ok {
			users[id] = user
		}
	}

	return users, nil
}

// UpdateProfile implements Repository.UpdateProfile using SQLite.
func (r *SQLiteUserRepository) UpdateProfile(ctx context.Context, id string, changes domain.ProfileChanges) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	assignments := []string{}
	args := []any{}

	if changes.FullName != "" {
		assignments = append(assignments, "full_name = ?")
		args = append(args, changes.FullName)
	}

	if changes.Bio != "" {
		assignments = append(assignments, "bio = ?")
		args = append(args, changes.Bio)
	}

	if changes.AvatarURL != "" {
		assignments = append(assignments, "avatar_url = ?")
		args = append(args, changes.AvatarURL)
	}

	if len(assignments) == 0 {
		return nil
	}

	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(assignments, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// AddFollow implements Repository.AddFollow as a single edge-row insert.
func (r *SQLiteUserRepository) AddFollow(ctx context.Context, followerID, followeeID string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)",
		followerID, followeeID, time.Now().Unix(),
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			err = errors.Join(domain.ErrAlreadyFollowing, err)
		}

		return fmt.Errorf("insert follow: %w", err)
	}

	return nil
}

// RemoveFollow implements Repository.RemoveFollow as a single edge-row delete.
func (r *SQLiteUserRepository) RemoveFollow(ctx context.Context, followerID, followeeID string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id = ? AND followee_id = ?",
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrNotFollowing
	}

	return nil
}

// ListSuggested implements Repository.ListSuggested using SQLite.
func (r *SQLiteUserRepository) ListSuggested(ctx context.Context, excludeIDs []string, limit int) ([]*domain.User, error) {
	query := "SELECT id FROM users"
	args := make([]any, 0, len(excludeIDs)+1)

	if len(excludeIDs) > 0 {
		query += " WHERE id NOT IN (?" + strings.Repeat(", ?", len(excludeIDs)-1) + ")"

		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}

	query += " ORDER BY created_at LIMIT ?"
	args = append(args, limit)

	ids, err := func() ([]string, error) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query suggested: %w", err)
		}
		defer rows.Close()

		var ids []string

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("scan suggested: %w", err)
			}

			ids = append(ids, id)
		}

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate suggested: %w", err)
		}

		return ids, nil
	}()
	if err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(ids))

	for _, id := range ids {
		user, ok, err := r.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if ok {
			users = append(users, user)
		}
	}

	return users, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteUserRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

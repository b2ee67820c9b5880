// Seed tool: populates the social store with fake users, follows, posts,
// likes and comments through the repository layer. Reads the same
// DEMO_SOCIALSVC_* environment as the server, so it seeds whatever store the
// server is configured for.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/config"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	"github.com/mkrupp/minisocial/internal/repo/post"
	"github.com/mkrupp/minisocial/internal/repo/user"
)

const (
	appName = "demo"
	svcName = "socialsvc"
)

type Config struct {
	config.EnvConfig

	Log   logging.LoggerConfig `envPrefix:"LOG_"`
	Store struct {
		Driver string `env:"DRIVER" default:"mongo"`
	} `envPrefix:"STORE_"`

	MongoUser user.MongoUserRepositoryConfig  `envPrefix:"MONGO_"`
	MongoPost post.MongoPostRepositoryConfig  `envPrefix:"MONGO_"`
	FileUser  user.SQLiteUserRepositoryConfig `envPrefix:"SQLITE_"`
	FilePost  post.SQLitePostRepositoryConfig `envPrefix:"SQLITE_"`
}

func main() {
	var (
		numUsers     int
		postsPerUser int
		followRate   float64
		likeRate     float64
		commentRate  float64
		password     string
		randSeed     int64
	)

	flag.IntVar(&numUsers, "users", 20, "number of users to create")
	flag.IntVar(&postsPerUser, "posts", 5, "posts per user")
	flag.Float64Var(&followRate, "follow-rate", 0.3, "probability a user follows another")
	flag.Float64Var(&likeRate, "like-rate", 0.2, "probability a user likes a post")
	flag.Float64Var(&commentRate, "comment-rate", 0.1, "probability a user comments on a post")
	flag.StringVar(&password, "password", "password123", "password for all seeded users")
	flag.Int64Var(&randSeed, "seed", 0, "random seed, 0 for time-based")
	flag.Parse()

	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName, "seed"}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)
	log := logging.GetLogger("cmd.seed")

	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}

	seeder := &seeder{
		rand:         rand.New(rand.NewSource(randSeed)),
		faker:        gofakeit.New(uint64(randSeed)),
		password:     password,
		numUsers:     numUsers,
		postsPerUser: postsPerUser,
		followRate:   followRate,
		likeRate:     likeRate,
		commentRate:  commentRate,
		log:          log,
	}

	if err := seeder.run(ctx, cfg); err != nil {
		log.ErrorContext(ctx, "seed failed", "error", err)
		panic(err)
	}
}

type seeder struct {
	rand     *rand.Rand
	faker    *gofakeit.Faker
	password string

	numUsers     int
	postsPerUser int
	followRate   float64
	likeRate     float64
	commentRate  float64

	log logging.Logger
}

func (s *seeder) run(ctx context.Context, cfg Config) error {
	var (
		userFactory user.RepositoryFactory
		postFactory post.RepositoryFactory
	)

	switch cfg.Store.Driver {
	case "mongo":
		userFactory = user.MongoUserRepositoryFactory(cfg.MongoUser)
		postFactory = post.MongoPostRepositoryFactory(cfg.MongoPost)
	case "sqlite":
		userFactory = user.SQLiteUserRepositoryFactory(cfg.FileUser)
		postFactory = post.SQLitePostRepositoryFactory(cfg.FilePost)
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	userRepo, err := userFactory()
	if err != nil {
		return fmt.Errorf("new user repository: %w", err)
	}
	defer userRepo.Close()

	postRepo, err := postFactory()
	if err != nil {
		return fmt.Errorf("new post repository: %w", err)
	}
	defer postRepo.Close()

	start := time.Now()

	users, err := s.seedUsers(ctx, userRepo)
	if err != nil {
		return err
	}

	if err := s.seedFollows(ctx, userRepo, users); err != nil {
		return err
	}

	posts, err := s.seedPosts(ctx, postRepo, users)
	if err != nil {
		return err
	}

	if err := s.seedReactions(ctx, postRepo, users, posts); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "done",
		"users", len(users), "posts", len(posts), "elapsed", time.Since(start).Truncate(time.Millisecond))

	return nil
}

func (s *seeder) seedUsers(ctx context.Context, repo user.Repository) ([]*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(s.password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	users := make([]*domain.User, 0, s.numUsers)

	for i := 0; i < s.numUsers; i++ {
		usr := &domain.User{
			Username:     fmt.Sprintf("%s%d", strings.ToLower(s.faker.Username()), i),
			Email:        fmt.Sprintf("user%d.%s", i, s.faker.Email()),
			PasswordHash: hash,
			FullName:     s.faker.Name(),
			Bio:          s.faker.Sentence(8),
			AvatarURL:    domain.DefaultAvatarURL,
			Followers:    []string{},
			Following:    []string{},
			CreatedAt:    time.Now().Unix(),
		}

		if err := repo.CreateUser(ctx, usr); err != nil {
			return nil, fmt.Errorf("create user %q: %w", usr.Username, err)
		}

		users = append(users, usr)
	}

	s.log.InfoContext(ctx, "users created", "count", len(users))

	return users, nil
}

func (s *seeder) seedFollows(ctx context.Context, repo user.Repository, users []*domain.User) error {
	edges := 0

	for _, follower := range users {
		for _, followee := range users {
			if follower.ID == followee.ID || s.rand.Float64() >= s.followRate {
				continue
			}

			if err := repo.AddFollow(ctx, follower.ID, followee.ID); err != nil {
				return fmt.Errorf("follow %s -> %s: %w", follower.ID, followee.ID, err)
			}

			edges++
		}
	}

	s.log.InfoContext(ctx, "follow edges created", "count", edges)

	return nil
}

func (s *seeder) seedPosts(ctx context.Context, repo post.Repository, users []*domain.User) ([]*domain.Post, error) {
	posts := make([]*domain.Post, 0, len(users)*s.postsPerUser)

	for _, usr := range users {
		for i := 0; i < s.postsPerUser; i++ {
			p := &domain.Post{
				AuthorID: usr.ID,
				Content:  s.faker.Sentence(4 + s.rand.Intn(20)),
				Likes:    []string{},
				Comments: []domain.Comment{},
			}

			if err := repo.CreatePost(ctx, p); err != nil {
				return nil, fmt.Errorf("create post for %q: %w", usr.Username, err)
			}

			posts = append(posts, p)
		}
	}

	s.log.InfoContext(ctx, "posts created", "count", len(posts))

	return posts, nil
}

func (s *seeder) seedReactions(
	ctx context.Context,
	repo post.Repository,
	users []*domain.User,
	posts []*domain.Post,
) error {
	var likes, comments int

	for _, p := range posts {
		for _, usr := range users {
			if s.rand.Float64() < s.likeRate {
				if err := repo.AddLike(ctx, p.ID, usr.ID); err != nil {
					return fmt.Errorf("like post %s: %w", p.ID, err)
				}

				likes++
			}

			if s.rand.Float64() < s.commentRate {
				comment := &domain.Comment{
					AuthorID: usr.ID,
					Content:  s.faker.Sentence(3 + s.rand.Intn(10)),
				}

				if err := repo.AddComment(ctx, p.ID, comment); err != nil {
					return fmt.Errorf("comment on post %s: %w", p.ID, err)
				}

				comments++
			}
		}
	}

	s.log.InfoContext(ctx, "reactions created", "likes", likes, "comments", comments)

	return nil
}

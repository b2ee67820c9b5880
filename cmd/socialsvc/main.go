package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkrupp/minisocial/internal/infra/config"
	"github.com/mkrupp/minisocial/internal/infra/logging"
	http_ "github.com/mkrupp/minisocial/internal/infra/transport/http"
	"github.com/mkrupp/minisocial/internal/repo/post"
	"github.com/mkrupp/minisocial/internal/repo/user"
	"github.com/mkrupp/minisocial/internal/svc/authsvc"
	"github.com/mkrupp/minisocial/internal/svc/postsvc"
	"github.com/mkrupp/minisocial/internal/svc/usersvc"
	"github.com/mkrupp/minisocial/web"
)

const (
	appName = "demo"
	svcName = "socialsvc"
)

// StoreConfig selects the storage backend shared by all repositories.
type StoreConfig struct {
	// Driver is the storage backend, either "mongo" or "sqlite".
	Driver string `env:"DRIVER" default:"mongo"`
}

type Config struct {
	config.EnvConfig

	Log   logging.LoggerConfig `envPrefix:"LOG_"`
	Auth  authsvc.AuthConfig   `envPrefix:"AUTH_"`
	Store StoreConfig          `envPrefix:"STORE_"`

	HTTP      authsvc.HTTPTransportConfig     `envPrefix:"HTTP_"`
	UsersHTTP usersvc.HTTPTransportConfig     `envPrefix:"HTTP_"`
	PostsHTTP postsvc.HTTPTransportConfig     `envPrefix:"HTTP_"`
	MongoUser user.MongoUserRepositoryConfig  `envPrefix:"MONGO_"`
	MongoPost post.MongoPostRepositoryConfig  `envPrefix:"MONGO_"`
	FileUser  user.SQLiteUserRepositoryConfig `envPrefix:"SQLITE_"`
	FilePost  post.SQLitePostRepositoryConfig `envPrefix:"SQLITE_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func repositories(cfg Config) (user.Repository, post.Repository, error) {
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
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	userRepo, err := userFactory()
	if err != nil {
		return nil, nil, fmt.Errorf("new user repository: %w", err)
	}

	postRepo, err := postFactory()
	if err != nil {
		userRepo.Close()

		return nil, nil, fmt.Errorf("new post repository: %w", err)
	}

	return userRepo, postRepo, nil
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.socialsvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	userRepo, postRepo, err := repositories(cfg)
	if err != nil {
		return err
	}
	defer userRepo.Close()
	defer postRepo.Close()

	authSvc, err := authsvc.NewAuthService(userRepo, cfg.Auth)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}

	var (
		authClient = authsvc.NewLocalClient(authSvc)
		userSvc    = usersvc.NewUserService(userRepo)
		postSvc    = postsvc.NewPostService(postRepo, userRepo)
	)

	mux := http.NewServeMux()
	authsvc.NewHTTPTransport(authSvc, cfg.HTTP).Register(mux)
	usersvc.NewHTTPTransport(userSvc, authClient, userRepo, cfg.UsersHTTP).Register(mux)
	postsvc.NewHTTPTransport(postSvc, authClient, userRepo, cfg.PostsHTTP).Register(mux)
	mux.Handle("GET /", web.Handler())

	if err := http_.ListenAndServe(ctx, mux, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

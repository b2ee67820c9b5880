package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
)

// MongoUserRepositoryConfig holds configuration for the MongoDB user repository.
type MongoUserRepositoryConfig struct {
	// URI is the MongoDB connection string
	URI string `env:"URI" default:"mongodb://localhost:27017"`

	// Database is the database holding the users collection
	Database string `env:"DATABASE" default:"social_media_db"`

	// ConnectTimeout is the connection timeout in seconds
	ConnectTimeout int64 `env:"CONNECT_TIMEOUT" default:"10"`

	// Transactions wraps the two writes of a follow/unfollow in a session
	// transaction. Requires a replica set; with it disabled the writes run
	// sequentially and a crash between them leaves the graph asymmetric.
	Transactions bool `env:"TRANSACTIONS" default:"false"`
}

// MongoUserRepository implements Repository backed by a MongoDB collection.
// Users are stored as single documents carrying both follower and following
// reference arrays.
type MongoUserRepository struct {
	client *mongo.Client
	users  *mongo.Collection
	log    logging.Logger
	cfg    MongoUserRepositoryConfig
}

var _ Repository = (*MongoUserRepository)(nil)

type userDocument struct {
	ID           primitive.ObjectID   `bson:"_id"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	PasswordHash []byte               `bson:"passwordHash"`
	FullName     string               `bson:"fullName"`
	Bio          string               `bson:"bio"`
	AvatarURL    string               `bson:"profilePic"`
	Followers    []primitive.ObjectID `bson:"followers"`
	Following    []primitive.ObjectID `bson:"following"`
	CreatedAt    int64                `bson:"createdAt"`
}

// MongoUserRepositoryFactory creates a factory function that returns a new
// MongoUserRepository. The factory function implements the RepositoryFactory type.
func MongoUserRepositoryFactory(cfg MongoUserRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewMongoUserRepository(cfg)
	}
}

// NewMongoUserRepository connects to MongoDB and ensures the unique indexes
// on username and email. Returns an error if the connection or index
// creation fails.
func NewMongoUserRepository(cfg MongoUserRepositoryConfig) (*MongoUserRepository, error) {
	log := logging.GetLogger("repo.user.mongo_user_repository").With(
		logging.Group("db", "database", cfg.Database),
	)

	ctx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ConnectTimeout*int64(time.Second)),
	)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	users := client.Database(cfg.Database).Collection("users")

	_, err = users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_1"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_1"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &MongoUserRepository{
		client: client,
		users:  users,
		log:    log,
		cfg:    cfg,
	}, nil
}

// CreateUser implements Repository.CreateUser. The unique-index violation is
// mapped to the offending field so the handler can report it as a conflict
// rather than a generic server error.
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		FullName:     user.FullName,
		Bio:          user.Bio,
		AvatarURL:    user.AvatarURL,
		Followers:    []primitive.ObjectID{},
		Following:    []primitive.ObjectID{},
		CreatedAt:    user.CreatedAt,
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = time.Now().Unix()
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "username_1") {
				err = errors.Join(domain.ErrUsernameTaken, err)
			} else {
				err = errors.Join(domain.ErrEmailTaken, err)
			}
		}

		return fmt.Errorf("insert user: %w", err)
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = doc.CreatedAt

	return nil
}

// GetUserByID implements Repository.GetUserByID.
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false, errors.Join(domain.ErrUserNotFound, err)
	}

	return r.getUser(ctx, bson.M{"_id": oid})
}

// GetUserByEmail implements Repository.GetUserByEmail.
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	return r.getUser(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) getUser(ctx context.Context, filter bson.M) (*domain.User, bool, error) {
	var doc userDocument

	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("find user: %w", err)
	}

	return doc.toDomain(), true, nil
}

// GetUsersByIDs implements Repository.GetUsersByIDs with a single $in query.
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))

	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue // Unresolvable references are simply absent
		}

		oids = append(oids, oid)
	}

	users := make(map[string]*domain.User, len(oids))

	if len(oids) == 0 {
		return users, nil
	}

	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}

		users[doc.ID.Hex()] = doc.toDomain()
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return users, nil
}

// UpdateProfile implements Repository.UpdateProfile with a single $set.
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, changes domain.ProfileChanges) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.Join(domain.ErrUserNotFound, err)
	}

	set := bson.M{}
	if changes.FullName != "" {
		set["fullName"] = changes.FullName
	}

	if changes.Bio != "" {
		set["bio"] = changes.Bio
	}

	if changes.AvatarURL != "" {
		set["profilePic"] = changes.AvatarURL
	}

	if len(set) == 0 {
		return nil
	}

	result, err := r.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// AddFollow implements Repository.AddFollow. With transactions enabled both
// document updates commit atomically; otherwise they run as two sequential
// writes, matching the store's per-document guarantee only.
func (r *MongoUserRepository) AddFollow(ctx context.Context, followerID, followeeID string) error {
	return r.updateEdge(ctx, followerID, followeeID, "$addToSet")
}

// RemoveFollow implements Repository.RemoveFollow as the structural inverse
// of AddFollow.
func (r *MongoUserRepository) RemoveFollow(ctx context.Context, followerID, followeeID string) error {
	return r.updateEdge(ctx, followerID, followeeID, "$pull")
}

func (r *MongoUserRepository) updateEdge(ctx context.Context, followerID, followeeID, op string) error {
	follower, err := primitive.ObjectIDFromHex(followerID)
	if err != nil {
		return errors.Join(domain.ErrUserNotFound, err)
	}

	followee, err := primitive.ObjectIDFromHex(followeeID)
	if err != nil {
		return errors.Join(domain.ErrUserNotFound, err)
	}

	writes := func(ctx context.Context) error {
		if _, err := r.users.UpdateOne(ctx,
			bson.M{"_id": follower},
			bson.M{op: bson.M{"following": followee}},
		); err != nil {
			return fmt.Errorf("update follower: %w", err)
		}

		if _, err := r.users.UpdateOne(ctx,
			bson.M{"_id": followee},
			bson.M{op: bson.M{"followers": follower}},
		); err != nil {
			return fmt.Errorf("update followee: %w", err)
		}

		return nil
	}

	if !r.cfg.Transactions {
		return writes(ctx)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, writes(sc)
	})
	if err != nil {
		return fmt.Errorf("follow transaction: %w", err)
	}

	return nil
}

// ListSuggested implements Repository.ListSuggested with a $nin filter.
func (r *MongoUserRepository) ListSuggested(ctx context.Context, excludeIDs []string, limit int) ([]*domain.User, error) {
	exclude := make([]primitive.ObjectID, 0, len(excludeIDs))

	for _, id := range excludeIDs {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}

		exclude = append(exclude, oid)
	}

	cursor, err := r.users.Find(ctx,
		bson.M{"_id": bson.M{"$nin": exclude}},
		options.Find().SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*domain.User

	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}

		users = append(users, doc.toDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return users, nil
}

// Close implements Repository.Close by disconnecting the client.
func (r *MongoUserRepository) Close() error {
	if err := r.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

func (doc *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:           doc.ID.Hex(),
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		FullName:     doc.FullName,
		Bio:          doc.Bio,
		AvatarURL:    doc.AvatarURL,
		Followers:    hexIDs(doc.Followers),
		Following:    hexIDs(doc.Following),
		CreatedAt:    doc.CreatedAt,
	}
}

func hexIDs(oids []primitive.ObjectID) []string {
	ids := make([]string, len(oids))
	for i, oid := range oids {
		ids[i] = oid.Hex()
	}

	return ids
}

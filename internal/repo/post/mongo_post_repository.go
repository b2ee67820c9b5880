package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mkrupp/minisocial/internal/domain"
	"github.com/mkrupp/minisocial/internal/infra/logging"
)

// MongoPostRepositoryConfig holds configuration for the MongoDB post repository.
type MongoPostRepositoryConfig struct {
	// URI is the MongoDB connection string
	URI string `env:"URI" default:"mongodb://localhost:27017"`

	// Database is the database holding the posts collection
	Database string `env:"DATABASE" default:"social_media_db"`

	// ConnectTimeout is the connection timeout in seconds
	ConnectTimeout int64 `env:"CONNECT_TIMEOUT" default:"10"`
}

// MongoPostRepository implements Repository backed by a MongoDB collection.
// Each post is a single document embedding its like set and comment array,
// so like/comment mutations ride on the store's per-document atomicity.
type MongoPostRepository struct {
	client *mongo.Client
	posts  *mongo.Collection
	log    logging.Logger
	cfg    MongoPostRepositoryConfig
}

var _ Repository = (*MongoPostRepository)(nil)

type postDocument struct {
	ID        primitive.ObjectID   `bson:"_id"`
	Author    primitive.ObjectID   `bson:"author"`
	Content   string               `bson:"content"`
	Likes     []primitive.ObjectID `bson:"likes"`
	Comments  []commentDocument    `bson:"comments"`
	CreatedAt int64                `bson:"createdAt"`
}

type commentDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Author    primitive.ObjectID `bson:"author"`
	Content   string             `bson:"content"`
	CreatedAt int64              `bson:"createdAt"`
}

// MongoPostRepositoryFactory creates a factory function that returns a new
// MongoPostRepository. The factory function implements the RepositoryFactory type.
func MongoPostRepositoryFactory(cfg MongoPostRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewMongoPostRepository(cfg)
	}
}

// NewMongoPostRepository connects to MongoDB and ensures the feed index on
// (author, createdAt). Returns an error if the connection fails.
func NewMongoPostRepository(cfg MongoPostRepositoryConfig) (*MongoPostRepository, error) {
	log := logging.GetLogger("repo.post.mongo_post_repository").With(
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

	posts := client.Database(cfg.Database).Collection("posts")

	if _, err := posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &MongoPostRepository{
		client: client,
		posts:  posts,
		log:    log,
		cfg:    cfg,
	}, nil
}

// CreatePost implements Repository.CreatePost.
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *domain.Post) error {
	author, err := primitive.ObjectIDFromHex(post.AuthorID)
	if err != nil {
		return errors.Join(domain.ErrUserNotFound, err)
	}

	doc := postDocument{
		ID:        primitive.NewObjectID(),
		Author:    author,
		Content:   post.Content,
		Likes:     []primitive.ObjectID{},
		Comments:  []commentDocument{},
		CreatedAt: post.CreatedAt,
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = time.Now().UnixMilli()
	}

	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.ID = doc.ID.Hex()
	post.CreatedAt = doc.CreatedAt

	return nil
}

// GetPostByID implements Repository.GetPostByID.
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*domain.Post, bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false, nil // Not a valid reference, treat as absent
	}

	var doc postDocument

	if err := r.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("find post: %w", err)
	}

	return doc.toDomain(), true, nil
}

// ListByAuthors implements Repository.ListByAuthors as a single query with
// sort and optional cursor/limit.
func (r *MongoPostRepository) ListByAuthors(
	ctx context.Context,
	authorIDs []string,
	query domain.FeedQuery,
) ([]*domain.Post, error) {
	authors := make([]primitive.ObjectID, 0, len(authorIDs))

	for _, id := range authorIDs {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}

		authors = append(authors, oid)
	}

	filter := bson.M{"author": bson.M{"$in": authors}}
	if query.Before > 0 {
		filter["createdAt"] = bson.M{"$lt": query.Before}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if query.Limit > 0 {
		opts = opts.SetLimit(int64(query.Limit))
	}

	cursor, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []*domain.Post{}

	for cursor.Next(ctx) {
		var doc postDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}

		posts = append(posts, doc.toDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return posts, nil
}

// AddLike implements Repository.AddLike with $addToSet.
func (r *MongoPostRepository) AddLike(ctx context.Context, postID, userID string) error {
	return r.updateLike(ctx, postID, userID, "$addToSet")
}

// RemoveLike implements Repository.RemoveLike with $pull.
func (r *MongoPostRepository) RemoveLike(ctx context.Context, postID, userID string) error {
	return r.updateLike(ctx, postID, userID, "$pull")
}

func (r *MongoPostRepository) updateLike(ctx context.Context, postID, userID, op string) error {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return errors.Join(domain.ErrPostNotFound, err)
	}

	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Join(domain.ErrUserNotFound, err)
	}

	result, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{op: bson.M{"likes": uid}},
	)
	if err != nil {
		return fmt.Errorf("update likes: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrPostNotFound
	}

	return nil
}

// AddComment implements Repository.AddComment with $push.
func (r *MongoPostRepository) AddComment(ctx context.Context, postID string, comment *domain.Comment) error {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return errors.Join(domain.ErrPostNotFound, err)
	}

	author, err := primitive.ObjectIDFromHex(comment.AuthorID)
	if err != nil {
		return errors.Join(domain.ErrUserNotFound, err)
	}

	doc := commentDocument{
		ID:        primitive.NewObjectID(),
		Author:    author,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = time.Now().UnixMilli()
	}

	result, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"comments": doc}},
	)
	if err != nil {
		return fmt.Errorf("push comment: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrPostNotFound
	}

	comment.ID = doc.ID.Hex()
	comment.CreatedAt = doc.CreatedAt

	return nil
}

// DeletePost implements Repository.DeletePost.
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.Join(domain.ErrPostNotFound, err)
	}

	result, err := r.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	if result.DeletedCount == 0 {
		return domain.ErrPostNotFound
	}

	return nil
}

// Close implements Repository.Close by disconnecting the client.
func (r *MongoPostRepository) Close() error {
	if err := r.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

func (doc *postDocument) toDomain() *domain.Post {
	likes := make([]string, len(doc.Likes))
	for i, oid := range doc.Likes {
		likes[i] = oid.Hex()
	}

	comments := make([]domain.Comment, len(doc.Comments))
	for i, c := range doc.Comments {
		comments[i] = domain.Comment{
			ID:        c.ID.Hex(),
			AuthorID:  c.Author.Hex(),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		}
	}

	return &domain.Post{
		ID:        doc.ID.Hex(),
		AuthorID:  doc.Author.Hex(),
		Content:   doc.Content,
		Likes:     likes,
		Comments:  comments,
		CreatedAt: doc.CreatedAt,
	}
}

// Package mongo is a document store backed by a MongoDB text index, matching
// the posts/users collections of the hazard-reporting app.
package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"safekids-search/internal/store"
)

const (
	postsCollection = "posts"
	usersCollection = "users"
)

type Store struct {
	client *mongo.Client
	posts  *mongo.Collection
	users  *mongo.Collection
}

// Connect dials uri and selects database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewFromDatabase(client.Database(database)), nil
}

// NewFromDatabase wraps an existing database handle.
func NewFromDatabase(db *mongo.Database) *Store {
	return &Store{
		client: db.Client(),
		posts:  db.Collection(postsCollection),
		users:  db.Collection(usersCollection),
	}
}

// EnsureIndexes creates the text index search relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "text", Value: "text"}},
	})
	if err != nil {
		return fmt.Errorf("create text index: %w", err)
	}
	return nil
}

type postDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	Author        primitive.ObjectID `bson:"author"`
	Text          string             `bson:"text"`
	Image         string             `bson:"image,omitempty"`
	LikesCount    int                `bson:"likesCount"`
	CommentsCount int                `bson:"commentsCount"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
	Score         float64            `bson:"score,omitempty"`
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Username     string             `bson:"username"`
	ProfileImage string             `bson:"profileImage,omitempty"`
}

func (s *Store) Search(ctx context.Context, q store.Query) ([]store.Post, error) {
	terms := q.Terms()
	if len(terms) == 0 {
		return []store.Post{}, nil
	}

	filter := bson.M{"$text": bson.M{"$search": strings.Join(terms, " ")}}
	opts := options.Find().
		SetLimit(int64(q.EffectiveLimit())).
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(sortSpec(q.Sort))

	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find posts: %w", store.ErrUnavailable, err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode posts: %w", store.ErrUnavailable, err)
	}

	authors, err := s.populateAuthors(ctx, docs)
	if err != nil {
		return nil, err
	}

	posts := make([]store.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, store.Post{
			ID:            d.ID.Hex(),
			Author:        authors[d.Author],
			Text:          d.Text,
			Image:         d.Image,
			LikesCount:    d.LikesCount,
			CommentsCount: d.CommentsCount,
			CreatedAt:     d.CreatedAt,
			UpdatedAt:     d.UpdatedAt,
			Score:         d.Score,
		})
	}
	return posts, nil
}

// populateAuthors loads username and profileImage for every distinct author.
func (s *Store) populateAuthors(ctx context.Context, docs []postDoc) (map[primitive.ObjectID]store.Author, error) {
	out := make(map[primitive.ObjectID]store.Author, len(docs))
	if len(docs) == 0 {
		return out, nil
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	seen := make(map[primitive.ObjectID]struct{}, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.Author]; ok {
			continue
		}
		seen[d.Author] = struct{}{}
		ids = append(ids, d.Author)
	}

	cur, err := s.users.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1, "profileImage": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: find authors: %w", store.ErrUnavailable, err)
	}
	var users []userDoc
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("%w: decode authors: %w", store.ErrUnavailable, err)
	}

	for _, u := range users {
		out[u.ID] = store.Author{ID: u.ID.Hex(), Username: u.Username, ProfileImage: u.ProfileImage}
	}
	// a deleted author still carries its id
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = store.Author{ID: id.Hex()}
		}
	}
	return out, nil
}

func sortSpec(sort store.Sort) bson.D {
	switch sort {
	case store.SortMostLiked:
		return bson.D{{Key: "likesCount", Value: -1}, {Key: "createdAt", Value: -1}}
	case store.SortRelevance:
		return bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

// Seed upserts posts and their authors. IDs must be 24-char hex ObjectIDs.
func (s *Store) Seed(ctx context.Context, posts []store.Post) error {
	if err := s.EnsureIndexes(ctx); err != nil {
		return err
	}

	upsert := options.Replace().SetUpsert(true)
	for _, p := range posts {
		postID, err := primitive.ObjectIDFromHex(p.ID)
		if err != nil {
			return fmt.Errorf("post id %q: %w", p.ID, err)
		}
		authorID, err := primitive.ObjectIDFromHex(p.Author.ID)
		if err != nil {
			return fmt.Errorf("author id %q: %w", p.Author.ID, err)
		}

		user := userDoc{ID: authorID, Username: p.Author.Username, ProfileImage: p.Author.ProfileImage}
		if _, err := s.users.ReplaceOne(ctx, bson.M{"_id": authorID}, user, upsert); err != nil {
			return fmt.Errorf("seed user %s: %w", p.Author.ID, err)
		}

		doc := postDoc{
			ID:            postID,
			Author:        authorID,
			Text:          p.Text,
			Image:         p.Image,
			LikesCount:    p.LikesCount,
			CommentsCount: p.CommentsCount,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
		if _, err := s.posts.ReplaceOne(ctx, bson.M{"_id": postID}, doc, upsert); err != nil {
			return fmt.Errorf("seed post %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

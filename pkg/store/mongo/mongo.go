// Package mongo stores artifacts as MongoDB documents, one per artifact,
// with the alias dedup keys denormalized into an indexed array.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
)

// Defaults for Config.
const (
	DefaultDatabase   = "impactrefresh"
	DefaultCollection = "artifacts"
)

// Config selects the server and collection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store is a MongoDB-backed artifact.Store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

// document is the stored form of an artifact.
type document struct {
	artifact.Artifact `bson:",inline"`
	AliasKeys         []string `bson:"alias_keys"`
}

func toDocument(a *artifact.Artifact) document {
	return document{Artifact: *a, AliasKeys: a.AliasKeys()}
}

// Open connects to cfg.URI and ensures the indexes exist. The returned
// store owns the connection and closes it on Close.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	s := New(client.Database(cfg.Database).Collection(cfg.Collection))
	s.client, s.owned = client, true
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing collection. The caller keeps ownership of the
// client.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the alias lookup and scan-order indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "alias_keys", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*artifact.Artifact, error) {
	return s.findOne(ctx, bson.M{"_id": id}, nil)
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*artifact.Artifact, error) {
	var doc document
	err := s.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find artifact: %w", err)
	}
	a := doc.Artifact
	if a.Biblio == nil {
		a.Biblio = make(map[string]artifact.BiblioField)
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *artifact.Artifact) error {
	a.Version = 1
	if _, err := s.coll.InsertOne(ctx, toDocument(a)); err != nil {
		a.Version = 0
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create %s: %w", a.ID, artifact.ErrConflict)
		}
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, a *artifact.Artifact) error {
	next := a.Clone()
	next.Version = a.Version + 1
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": a.ID, "version": a.Version}, toDocument(next))
	if err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": a.ID})
		if err != nil {
			return fmt.Errorf("count artifact: %w", err)
		}
		if n == 0 {
			return artifact.ErrNotFound
		}
		return artifact.ErrConflict
	}
	a.Version = next.Version
	return nil
}

func (s *Store) FindByAlias(ctx context.Context, a alias.Alias) (*artifact.Artifact, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return s.findOne(ctx, bson.M{"alias_keys": a.Key()}, opts)
}

func (s *Store) Scan(ctx context.Context, fn func(*artifact.Artifact) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("scan artifacts: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decode artifact: %w", err)
		}
		a := doc.Artifact
		if err := fn(&a); err != nil {
			return err
		}
	}
	return cur.Err()
}

// Close disconnects the client when the store opened it.
func (s *Store) Close() error {
	if !s.owned || s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

var _ artifact.Store = (*Store)(nil)

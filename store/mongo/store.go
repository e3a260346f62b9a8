// Package mongo implements store.Store on MongoDB through the grove
// mongodriver. Each connector is one document in the stats collection.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/catalog"
	"github.com/xraph/fdwledger/stats"
	fdwstore "github.com/xraph/fdwledger/store"
	"github.com/xraph/fdwledger/txn"
)

// compile-time interface check
var _ fdwstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db         *grove.DB
	mdb        *mongodriver.MongoDB
	collection string

	// MongoDB has no read-only session mode; the guard always allows writes.
	guard txn.Guard
}

// New creates a new MongoDB store backed by Grove ORM. An empty collection
// uses catalog.DefaultTable.
func New(db *grove.DB, collection string) *Store {
	if collection == "" {
		collection = catalog.DefaultTable
	}
	return &Store{
		db:         db,
		mdb:        mongodriver.Unwrap(db),
		collection: collection,
		guard:      txn.Static(false),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the stats collection and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.mdb.Collection(s.collection).Indexes().CreateMany(ctx, migrationIndexes())
	if err != nil {
		return fmt.Errorf("fdwledger/mongo: migrate %s indexes: %w", s.collection, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Locator & Guard ====================

// StatsTable reports the collection name once it exists.
func (s *Store) StatsTable(ctx context.Context) (string, error) {
	names, err := s.mdb.Collection(s.collection).Database().
		ListCollectionNames(ctx, bson.M{"name": s.collection})
	if err != nil {
		return "", fmt.Errorf("fdwledger/mongo: resolve %s: %w", s.collection, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s", fdwledger.ErrStatsTableMissing, s.collection)
	}
	return s.collection, nil
}

func (s *Store) ReadOnly(ctx context.Context) (bool, error) {
	return s.guard.ReadOnly(ctx)
}

// ==================== Stats Store ====================

func (s *Store) Increment(ctx context.Context, table, fdwName string, m stats.Metric, delta int64) (int64, error) {
	col, err := m.Column()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	update := bson.M{
		"$inc":         bson.M{col: delta},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.M{col: 1})

	var doc statsModel
	err = s.mdb.Collection(table).
		FindOneAndUpdate(ctx, bson.M{"_id": fdwName}, update, opts).
		Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("fdwledger/mongo: increment %s: %w", fdwName, err)
	}

	total := fromStatsModel(&doc).Value(m)
	if total == nil {
		return 0, fmt.Errorf("fdwledger/mongo: increment %s: %s missing after update", fdwName, col)
	}
	return *total, nil
}

func (s *Store) Metadata(ctx context.Context, table, fdwName string) (json.RawMessage, error) {
	var doc statsModel
	err := s.mdb.Collection(table).
		FindOne(ctx, bson.M{"_id": fdwName}, options.FindOne().SetProjection(bson.M{"metadata": 1})).
		Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fdwledger/mongo: get metadata %s: %w", fdwName, err)
	}
	return fromStatsModel(&doc).Metadata, nil
}

func (s *Store) SetMetadata(ctx context.Context, table, fdwName string, md json.RawMessage) error {
	now := time.Now().UTC()

	update := bson.M{
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	if md == nil {
		update["$unset"] = bson.M{"metadata": ""}
	} else {
		update["$set"] = bson.M{"updated_at": now, "metadata": string(md)}
	}

	_, err := s.mdb.Collection(table).
		UpdateOne(ctx, bson.M{"_id": fdwName}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("fdwledger/mongo: set metadata %s: %w", fdwName, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, fdwName string) (*stats.Row, error) {
	var doc statsModel
	err := s.mdb.Collection(table).FindOne(ctx, bson.M{"_id": fdwName}).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fdwledger.ErrNotFound
		}
		return nil, err
	}
	return fromStatsModel(&doc), nil
}

func (s *Store) List(ctx context.Context, table string, opts stats.ListOpts) ([]*stats.Row, error) {
	filter := bson.M{}
	if opts.Prefix != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(opts.Prefix)}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.mdb.Collection(table).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}

	var docs []statsModel
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*stats.Row, len(docs))
	for i := range docs {
		result[i] = fromStatsModel(&docs[i])
	}
	return result, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the stats collection.
func migrationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	}
}

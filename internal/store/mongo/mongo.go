// Package mongo stores records as documents in a MongoDB collection.
//
// Each record is one document {date: DateTime, items: [{title, cost}]}, with a
// unique index on date so that upserts can never produce duplicates.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"expenselog/internal/core"
)

type itemDoc struct {
	Title string  `bson:"title"`
	Cost  float64 `bson:"cost"`
}

type recordDoc struct {
	Date  time.Time `bson:"date"`
	Items []itemDoc `bson:"items"`
}

// Config holds connection parameters.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store implements store.Store on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials MongoDB, verifies the connection and ensures the date index.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an existing collection. The caller owns the client.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the unique index on date.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	name, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("date_unique"),
	})
	if err != nil {
		return fmt.Errorf("create date index: %w", err)
	}
	slog.DebugContext(ctx, "MongoDB index ensured", "index", name, "collection", s.coll.Name())
	return nil
}

// Upsert implements store.Store with a single findAndModify. The pre-image
// tells whether the document already existed.
func (s *Store) Upsert(ctx context.Context, date core.Date, items []core.Item) (core.Record, bool, error) {
	rec := core.NewRecord(date, items)
	docs := make([]itemDoc, len(rec.Items))
	for i, it := range rec.Items {
		docs[i] = itemDoc{Title: it.Title, Cost: it.Cost}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)
	res := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "date", Value: date.Time}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "items", Value: docs}}}},
		opts)

	var prev recordDoc
	switch err := res.Decode(&prev); {
	case errors.Is(err, mongo.ErrNoDocuments):
		return rec, true, nil
	case err != nil:
		return core.Record{}, false, &core.StoreError{Op: "upsert", Err: err}
	}
	return rec, false, nil
}

// FindByDate implements store.Store
func (s *Store) FindByDate(ctx context.Context, date core.Date) (core.Record, error) {
	var doc recordDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "date", Value: date.Time}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Record{}, &core.NotFoundError{Date: date}
	}
	if err != nil {
		return core.Record{}, &core.StoreError{Op: "find_by_date", Err: err}
	}
	return doc.toRecord(), nil
}

// FindAll implements store.Store; documents come back in _id (insertion) order.
func (s *Store) FindAll(ctx context.Context) ([]core.Record, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, &core.StoreError{Op: "find_all", Err: err}
	}
	defer cur.Close(ctx)

	var docs []recordDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &core.StoreError{Op: "find_all", Err: err}
	}

	records := make([]core.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.toRecord())
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d recordDoc) toRecord() core.Record {
	items := make([]core.Item, len(d.Items))
	for i, it := range d.Items {
		items[i] = core.Item{Title: it.Title, Cost: it.Cost}
	}
	return core.NewRecord(core.DateOf(d.Date), items)
}

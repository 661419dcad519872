package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/go-redis/redis/v8"

	"expenselog/internal/core"
)

// Config holds connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Store keeps every record as one field of a single Redis hash: the field is
// the YYYY-MM-DD date and the value the JSON-encoded item list.
type Store struct {
	client goredis.UniversalClient
	key    string
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Key), nil
}

func New(client goredis.UniversalClient, key string) *Store {
	return &Store{client: client, key: key}
}

// Upsert implements store.Store. HSET reports the number of new fields, which
// makes create-vs-update detection part of the same atomic command.
func (s *Store) Upsert(ctx context.Context, date core.Date, items []core.Item) (core.Record, bool, error) {
	rec := core.NewRecord(date, items)
	payload, err := json.Marshal(rec.Items)
	if err != nil {
		return core.Record{}, false, &core.StoreError{Op: "upsert", Err: fmt.Errorf("encode items: %w", err)}
	}

	added, err := s.client.HSet(ctx, s.key, date.String(), string(payload)).Result()
	if err != nil {
		return core.Record{}, false, &core.StoreError{Op: "upsert", Err: err}
	}
	return rec, added == 1, nil
}

// FindByDate implements store.Store
func (s *Store) FindByDate(ctx context.Context, date core.Date) (core.Record, error) {
	raw, err := s.client.HGet(ctx, s.key, date.String()).Result()
	if errors.Is(err, goredis.Nil) {
		return core.Record{}, &core.NotFoundError{Date: date}
	}
	if err != nil {
		return core.Record{}, &core.StoreError{Op: "find_by_date", Err: err}
	}
	rec, err := decodeRecord(date.String(), raw)
	if err != nil {
		return core.Record{}, &core.StoreError{Op: "find_by_date", Err: err}
	}
	return rec, nil
}

// FindAll implements store.Store. Hashes are unordered, so records come back
// sorted by date.
func (s *Store) FindAll(ctx context.Context) ([]core.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, &core.StoreError{Op: "find_all", Err: err}
	}

	records := make([]core.Record, 0, len(fields))
	for field, raw := range fields {
		rec, err := decodeRecord(field, raw)
		if err != nil {
			return nil, &core.StoreError{Op: "find_all", Err: err}
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date.Time)
	})
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decodeRecord(field, raw string) (core.Record, error) {
	date, err := core.ParseDate(field)
	if err != nil {
		return core.Record{}, fmt.Errorf("decode date %q: %w", field, err)
	}
	var items []core.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return core.Record{}, fmt.Errorf("decode items for %s: %w", field, err)
	}
	return core.NewRecord(date, items), nil
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"expenselog/internal/amqp"
	"expenselog/internal/services"
	"expenselog/internal/storage"
	"expenselog/internal/store"
	"expenselog/internal/store/memory"
	"expenselog/internal/store/mongo"
	"expenselog/internal/store/redis"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch config.Type {
	case MongoBackend:
		st, err = f.createMongoStore(ctx, config)
	case SQLiteBackend:
		st, err = f.createSQLiteStore(config)
	case RedisBackend:
		st, err = f.createRedisStore(ctx, config)
	case MemoryBackend:
		st = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Store: st}
	closers := []io.Closer{}
	if c, ok := st.(io.Closer); ok {
		closers = append(closers, c)
	}

	if client := f.createAMQPClient(ctx, config); client != nil {
		result.Events = client
		closers = append(closers, client)
	}

	result.Cleanup = func() error {
		var errs []error
		for _, c := range closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createMongoStore(ctx context.Context, config Config) (*mongo.Store, error) {
	st, err := mongo.Connect(ctx, mongo.Config{
		URI:        config.MongoURI,
		Database:   config.MongoDatabase,
		Collection: config.MongoCollection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
	}

	f.logger.Info("Initialized MongoDB backend",
		"database", config.MongoDatabase,
		"collection", config.MongoCollection)
	return st, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createRedisStore(ctx context.Context, config Config) (*redis.Store, error) {
	st, err := redis.Connect(ctx, redis.Config{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
		Key:      config.RedisKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
	}

	f.logger.Info("Initialized Redis backend",
		"addr", config.RedisAddr,
		"key", config.RedisKey)
	return st, nil
}

// createAMQPClient connects the optional publisher. A broker that cannot be
// reached is logged and skipped; records are still stored.
func (f *DefaultFactory) createAMQPClient(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

var _ services.EventPublisher = (*amqp.Client)(nil)

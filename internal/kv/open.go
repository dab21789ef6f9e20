package kv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	MongoURI string
	MongoDB  string

	SQLDSN string

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Open builds the Store selected by cfg.Backend. Remote backends are wrapped
// in a Breaker; the memory backend is returned as is.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		store = NewRedisStore(client, cfg.RedisTTL)
	case BackendMongo:
		db, errConn := ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if errConn != nil {
			return nil, errConn
		}
		store = NewMongoStore(db)
	case BackendSQLite, BackendPostgres:
		sqlStore, errOpen := NewSQLStore(cfg.Backend, cfg.SQLDSN)
		if errOpen != nil {
			return nil, errOpen
		}
		if err = sqlStore.RunMigrations(); err != nil {
			sqlStore.Close()
			return nil, err
		}
		store = sqlStore
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.Backend)
	}

	return NewBreaker(store, BreakerSettings{
		Name:        "kv-" + cfg.Backend,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, logger), nil
}

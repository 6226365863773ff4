// Package redis shares configuration snapshots between engine instances.
// The snapshot loaded by one instance is stored under a single key so the
// others skip the backend until it expires or is invalidated.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quote-engine/core/gateway"
	"quote-engine/internal/errors"
	"quote-engine/internal/logging"
)

// DefaultKey is the snapshot key when none is configured
const DefaultKey = "quote-engine:config:snapshot"

// Config holds the Redis settings
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Key      string
}

// Client is the subset of go-redis the cache needs
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient creates a go-redis client
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
	})
}

// Source wraps another source with a shared Redis copy of its snapshot.
// Redis being unreachable degrades to loading from the wrapped source.
type Source struct {
	client Client
	next   gateway.Source
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewSource creates a caching source
func NewSource(client Client, next gateway.Source, cfg Config, logger *zap.Logger) *Source {
	s := &Source{
		client: client,
		next:   next,
		key:    cfg.Key,
		ttl:    cfg.TTL,
		logger: logging.Component(logger, "redis"),
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.ttl <= 0 {
		s.ttl = gateway.DefaultTTL
	}
	return s
}

// Load returns the shared snapshot, or loads and publishes a fresh one
func (s *Source) Load(ctx context.Context) (*gateway.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	switch {
	case err == nil:
		var snap gateway.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("discarding undecodable cached snapshot", zap.Error(err))
			break
		}
		s.logger.Debug("snapshot served from redis", zap.String("version", snap.Version))
		return &snap, nil
	case err == redis.Nil:
	default:
		s.logger.Warn("redis read failed, loading from backend", zap.Error(err))
	}

	snap, err := s.next.Load(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Internal("failed to encode snapshot", err)
	}
	if err := s.client.Set(ctx, s.key, body, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to publish snapshot to redis", zap.Error(err))
	}
	return snap, nil
}

// Invalidate deletes the shared snapshot so every instance reloads from
// the backend
func (s *Source) Invalidate(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return err
	}
	if inv, ok := s.next.(gateway.Invalidator); ok {
		return inv.Invalidate(ctx)
	}
	return nil
}

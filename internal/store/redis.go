package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"modq/internal/modq"
)

// DefaultRedisKeyPrefix namespaces table keys when no prefix is configured.
const DefaultRedisKeyPrefix = "modq:"

// RedisStore keeps each table as a single string value under <prefix><table>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStoreFromURL connects to the Redis server at redisURL and verifies
// the connection with a ping.
func NewRedisStoreFromURL(redisURL, keyPrefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, keyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (s *RedisStore) key(table string) string { return s.prefix + table }

// Load returns the table blob, or nil when the key does not exist.
func (s *RedisStore) Load(ctx context.Context, table string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key(table), err)
	}
	return data, nil
}

// Save overwrites the table blob without expiry.
func (s *RedisStore) Save(ctx context.Context, table string, data []byte) error {
	if err := s.client.Set(ctx, s.key(table), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(table), err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Compile-time check that RedisStore implements modq.Store interface
var _ modq.Store = (*RedisStore)(nil)

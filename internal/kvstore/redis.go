package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/starford/synka/internal/apperr"
)

// RedisStore keeps entries as plain redis strings under a namespace prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// OpenRedis connects to redis and verifies the connection with PING.
func OpenRedis(ctx context.Context, namespace string, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Protocol: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kvstore: ping redis %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, prefix: namespace + ":"}, nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("kvstore: redis get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key without expiry. Freshness is decided by the
// timestamp inside the value, not by redis.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("kvstore: redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("kvstore: redis del %s: %w", key, err)
	}
	return nil
}

// Status counts the keys under the namespace.
func (s *RedisStore) Status(ctx context.Context) (Status, error) {
	status := Status{Backend: string(RedisBackend)}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return status, fmt.Errorf("kvstore: redis ping: %w", err)
	}
	status.Connected = true

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		status.TotalEntries++
	}
	if err := iter.Err(); err != nil {
		return status, fmt.Errorf("kvstore: redis scan: %w", err)
	}
	return status, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

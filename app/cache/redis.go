package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

const redisKeyPrefix = "sitemap-comb:"

// RedisStore shares cache entries between several instances.
type RedisStore struct {
	client *redis.Client
}

type redisEnvelope struct {
	Payload   []byte `json:"payload"`
	CachedAt  int64  `json:"cached_at_ms"`
	TTLMillis int64  `json:"ttl_ms"`
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	redisKey := redisKey(key)

	data, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	entry, err := decodeEnvelope(key, data)
	if err != nil {
		// Invalid data format, delete and report a miss
		s.client.Del(ctx, redisKey)
		return nil, nil
	}

	return entry, nil
}

func (s *RedisStore) Set(ctx context.Context, entry Entry) error {
	data, err := encodeEnvelope(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", entry.Key, err)
	}

	// Redis expiry only reclaims memory; freshness is decided by Cache.
	if err := s.client.Set(ctx, redisKey(entry.Key), data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", entry.Key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Clear removes only this service's keys.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return keys, nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

func encodeEnvelope(entry Entry) ([]byte, error) {
	return json.Marshal(redisEnvelope{
		Payload:   entry.Payload,
		CachedAt:  entry.Timestamp.UnixMilli(),
		TTLMillis: entry.TTL.Milliseconds(),
	})
}

func decodeEnvelope(key string, data []byte) (*Entry, error) {
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Payload == nil {
		return nil, fmt.Errorf("envelope for %s has no payload", key)
	}
	return &Entry{
		Key:       key,
		Payload:   env.Payload,
		Timestamp: time.UnixMilli(env.CachedAt),
		TTL:       time.Duration(env.TTLMillis) * time.Millisecond,
	}, nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Cache keeps JSON-encoded values in a Store and enforces per-entry TTLs.
// Decoding happens here so a corrupt entry is purged and reported as a miss
// instead of surfacing as an error.
type Cache struct {
	store  Store
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func New(store Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// SetClock replaces the time source; used by tests and replays.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Load decodes the live entry for key into dest. Expired and undecodable
// entries are deleted and reported as misses.
func (c *Cache) Load(ctx context.Context, key string, dest any) bool {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
		c.misses.Add(1)
		return false
	}
	if entry == nil {
		c.misses.Add(1)
		return false
	}

	if age := c.now().Sub(entry.Timestamp); age >= entry.TTL {
		slog.Debug("Cache entry expired", "key", key, "age", age, "ttl", entry.TTL)
		c.purge(ctx, key)
		c.misses.Add(1)
		return false
	}

	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		slog.Warn("Cache entry undecodable, purging", "key", key, "error", err)
		c.purge(ctx, key)
		c.misses.Add(1)
		return false
	}

	c.hits.Add(1)
	return true
}

// Save encodes value and stores it stamped with the current time.
func (c *Cache) Save(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for key %s: %w", key, err)
	}

	err = c.store.Set(ctx, Entry{
		Key:       key,
		Payload:   payload,
		Timestamp: c.now(),
		TTL:       ttl,
	})
	if err != nil {
		return fmt.Errorf("failed to store cache value for key %s: %w", key, err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	n, err := c.store.Len(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return Stats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) purge(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		slog.Warn("Failed to purge cache entry", "key", key, "error", err)
	}
}

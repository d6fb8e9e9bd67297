package cache

import (
	"context"
	"time"
)

// Entry is one serialized value with the time it was written and the TTL
// it was written with.
type Entry struct {
	Key       string
	Payload   []byte
	Timestamp time.Time
	TTL       time.Duration
}

// Store persists entries. Get returns (nil, nil) when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

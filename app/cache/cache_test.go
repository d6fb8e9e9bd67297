package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time           { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*Cache, *MemoryStore, *fakeClock) {
	store := NewMemoryStore()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(store)
	c.SetClock(clock.Now)
	return c, store, clock
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache()

	if err := c.Save(ctx, "k", payload{Name: "a", Count: 2}, time.Minute); err != nil {
		t.Fatal(err)
	}

	var got payload
	if !c.Load(ctx, "k", &got) {
		t.Fatal("Expected cache hit")
	}
	if got.Name != "a" || got.Count != 2 {
		t.Errorf("Expected {a 2}, got %+v", got)
	}

	if c.Load(ctx, "missing", &got) {
		t.Error("Expected miss for unknown key")
	}
}

func TestLoadHonoursTTL(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache()

	if err := c.Save(ctx, "k", payload{Name: "a"}, time.Minute); err != nil {
		t.Fatal(err)
	}

	var got payload
	clock.Advance(30 * time.Second)
	if !c.Load(ctx, "k", &got) {
		t.Error("Expected hit within TTL")
	}

	clock.Advance(30 * time.Second)
	if c.Load(ctx, "k", &got) {
		t.Error("Expected miss once age reaches TTL")
	}

	if n, _ := store.Len(ctx); n != 0 {
		t.Errorf("Expected expired entry to be purged, store has %d entries", n)
	}
}

func TestLoadPurgesUndecodableEntry(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache()

	store.Set(ctx, Entry{Key: "bad", Payload: []byte("{not json"), Timestamp: clock.Now(), TTL: time.Hour})

	var got payload
	if c.Load(ctx, "bad", &got) {
		t.Error("Expected undecodable entry to be a miss")
	}

	entry, err := store.Get(ctx, "bad")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Error("Expected undecodable entry to be deleted")
	}
}

func TestClearAndStats(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache()

	c.Save(ctx, "a", payload{}, time.Hour)
	c.Save(ctx, "b", payload{}, time.Hour)

	var got payload
	c.Load(ctx, "a", &got)
	c.Load(ctx, "zzz", &got)

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 2 entries, 1 hit, 1 miss, got %+v", stats)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Load(ctx, "a", &got) {
		t.Error("Expected miss after clear")
	}
	stats, _ = c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("Expected 0 entries after clear, got %d", stats.Entries)
	}
}

func TestMemoryStoreCopiesPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	data := []byte(`{"name":"a"}`)

	store.Set(ctx, Entry{Key: "k", Payload: data, TTL: time.Hour})
	data[2] = 'X'

	entry, _ := store.Get(ctx, "k")
	if string(entry.Payload) != `{"name":"a"}` {
		t.Errorf("Expected stored payload to be isolated from caller, got %s", entry.Payload)
	}
}

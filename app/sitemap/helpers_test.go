package sitemap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeRepository struct {
	mu       sync.Mutex
	records  map[Family][]Record
	failures map[Family]error
	calls    atomic.Int32
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		records:  make(map[Family][]Record),
		failures: make(map[Family]error),
	}
}

func (f *fakeRepository) add(records ...Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.records[r.Family()] = append(f.records[r.Family()], r)
	}
}

func (f *fakeRepository) fail(family Family, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[family] = err
}

func (f *fakeRepository) FetchPage(ctx context.Context, family Family, page, pageSize int, filters Filters) (*Page, error) {
	f.calls.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failures[family]; err != nil {
		return nil, err
	}
	if filters.Status != "published" {
		return nil, errors.New("unexpected filter")
	}

	all := f.records[family]
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := min(start+pageSize, len(all))

	return &Page{
		Items:       append([]Record(nil), all[start:end]...),
		HasNextPage: end < len(all),
		Total:       len(all),
	}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://example.com"
	return cfg
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func floatPtr(f float64) *float64 {
	return &f
}

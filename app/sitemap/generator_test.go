package sitemap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/cache"
)

func newTestGenerator(t *testing.T, repo Repository, cfg Config, clock *fakeClock) *Generator {
	t.Helper()

	c := cache.New(cache.NewMemoryStore())
	c.SetClock(clock.Now)

	g, err := NewGenerator(repo, c, cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	return g
}

func populatedRepository(posts int) *fakeRepository {
	repo := newFakeRepository()
	repo.add(IndexRecord{})
	for i := 0; i < posts; i++ {
		repo.add(PostRecord{Slug: fmt.Sprintf("post-%d", i)})
	}
	return repo
}

func TestGenerateSplitsAndIndexes(t *testing.T) {
	cfg := testConfig()
	cfg.MaxURLsPerSitemap = 2

	g := newTestGenerator(t, populatedRepository(4), cfg, newFakeClock())

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(result.Sitemaps) != 3 {
		t.Fatalf("Expected 3 sitemaps, got %d", len(result.Sitemaps))
	}
	for i, expected := range []int{2, 2, 1} {
		if result.Sitemaps[i].URLCount != expected {
			t.Errorf("Sitemap %d: expected %d URLs, got %d", i, expected, result.Sitemaps[i].URLCount)
		}
	}

	if result.SitemapIndex == nil {
		t.Fatal("Expected a sitemap index")
	}
	if result.SitemapIndex.SitemapCount != 3 {
		t.Errorf("Expected index to list 3 sitemaps, got %d", result.SitemapIndex.SitemapCount)
	}
	if n := strings.Count(result.SitemapIndex.Content, "<sitemap>"); n != 3 {
		t.Errorf("Expected 3 index entries, got %d", n)
	}
	if !strings.Contains(result.SitemapIndex.Content, "https://example.com/sitemap-3.xml") {
		t.Error("Expected index to reference sitemap-3.xml")
	}
	if result.Stats.TotalURLs != 5 || result.Stats.TotalSitemaps != 3 {
		t.Errorf("Unexpected stats: %+v", result.Stats)
	}
	if result.EntryFilename() != "sitemap-index.xml" {
		t.Errorf("Expected index as entry file, got %s", result.EntryFilename())
	}
}

func TestGenerateSingleFileHasNoIndex(t *testing.T) {
	g := newTestGenerator(t, populatedRepository(3), testConfig(), newFakeClock())

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(result.Sitemaps) != 1 {
		t.Fatalf("Expected 1 sitemap, got %d", len(result.Sitemaps))
	}
	if result.SitemapIndex != nil {
		t.Error("Expected no index for a single sitemap")
	}
	if result.EntryFilename() != "sitemap.xml" {
		t.Errorf("Expected sitemap.xml as entry file, got %s", result.EntryFilename())
	}
	if len(result.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", result.Errors)
	}
}

func TestGenerateServesFromCacheWithinTTL(t *testing.T) {
	cfg := testConfig()
	cfg.CacheTTLMinutes = 1
	clock := newFakeClock()
	repo := populatedRepository(2)

	g := newTestGenerator(t, repo, cfg, clock)
	ctx := context.Background()

	first, err := g.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if first.Stats.CacheHit {
		t.Error("Expected first call to miss the cache")
	}
	calls := repo.calls.Load()

	clock.Advance(30 * time.Second)
	second, _ := g.Generate(ctx)
	if !second.Stats.CacheHit {
		t.Error("Expected call at 30s to hit the cache")
	}
	if repo.calls.Load() != calls {
		t.Error("Expected cache hit not to touch the repository")
	}
	if second.Sitemaps[0].Content != first.Sitemaps[0].Content {
		t.Error("Expected cached content to be identical")
	}

	clock.Advance(40 * time.Second)
	third, _ := g.Generate(ctx)
	if third.Stats.CacheHit {
		t.Error("Expected call at 70s to miss the cache")
	}
	if repo.calls.Load() == calls {
		t.Error("Expected expired entry to trigger a new collection")
	}
}

func TestGenerateOverridesUseSeparateCacheEntries(t *testing.T) {
	g := newTestGenerator(t, populatedRepository(3), testConfig(), newFakeClock())
	ctx := context.Background()

	if _, err := g.Generate(ctx); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	result, err := g.Generate(ctx, WithMaxURLsPerSitemap(2))
	if err != nil {
		t.Fatalf("Generate with override failed: %v", err)
	}
	if result.Stats.CacheHit {
		t.Error("Expected override to miss the cache")
	}
	if len(result.Sitemaps) != 2 {
		t.Errorf("Expected override to apply, got %d sitemaps", len(result.Sitemaps))
	}

	if g.Config().MaxURLsPerSitemap != 45000 {
		t.Error("Expected override not to leak into generator config")
	}
}

func TestGenerateFailedFamily(t *testing.T) {
	repo := newFakeRepository()
	repo.add(
		IndexRecord{},
		PostRecord{Slug: "post"},
		CategoryRecord{Slug: "news"},
		AuthorRecord{Slug: "jane"},
		TagRecord{Slug: "go"},
	)
	repo.fail(FamilyAuthors, errors.New("timeout"))

	clock := newFakeClock()
	g := newTestGenerator(t, repo, testConfig(), clock)
	ctx := context.Background()

	result, err := g.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Stats.TotalURLs != 4 {
		t.Errorf("Expected 4 URLs, got %d", result.Stats.TotalURLs)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "authors") {
		t.Errorf("Expected one error naming authors, got %v", result.Errors)
	}

	calls := repo.calls.Load()
	again, _ := g.Generate(ctx)
	if !again.Stats.CacheHit {
		t.Error("Expected partial result to be served from cache")
	}
	if repo.calls.Load() != calls {
		t.Errorf("Expected no repository reads on cache hit, got %d more", repo.calls.Load()-calls)
	}
	if len(again.Errors) != 1 {
		t.Errorf("Expected cached result to keep its errors, got %v", again.Errors)
	}

	// Partial results expire sooner than complete ones.
	clock.Advance(PartialCacheTTL)
	repo.fail(FamilyAuthors, nil)
	recovered, _ := g.Generate(ctx)
	if recovered.Stats.CacheHit {
		t.Error("Expected partial result to expire after the short TTL")
	}
	if recovered.Stats.TotalURLs != 5 || len(recovered.Errors) != 0 {
		t.Errorf("Expected recovered run with 5 URLs, got %d URLs and %v", recovered.Stats.TotalURLs, recovered.Errors)
	}
}

func TestGenerateAllFamiliesFailedNotCached(t *testing.T) {
	repo := newFakeRepository()
	for _, family := range Families {
		repo.fail(family, errors.New("unavailable"))
	}

	g := newTestGenerator(t, repo, testConfig(), newFakeClock())
	ctx := context.Background()

	first, _ := g.Generate(ctx)
	if len(first.Sitemaps) != 0 {
		t.Fatalf("Expected no sitemaps, got %d", len(first.Sitemaps))
	}

	again, _ := g.Generate(ctx)
	if again.Stats.CacheHit {
		t.Error("Expected empty result with errors not to be cached")
	}
}

func TestGenerateInvalidConfig(t *testing.T) {
	g := newTestGenerator(t, populatedRepository(1), testConfig(), newFakeClock())

	_, err := g.Generate(context.Background(), WithMaxURLsPerSitemap(0))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}

	cfg := testConfig()
	cfg.BaseURL = ""
	if _, err := NewGenerator(populatedRepository(1), nil, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected NewGenerator to reject config, got %v", err)
	}
}

type failingRenderer struct {
	panics bool
}

func (r failingRenderer) URLSet(urls []URL) (string, error) {
	if r.panics {
		panic("renderer exploded")
	}
	return "", errors.New("disk full")
}

func (r failingRenderer) Index(locs []string, lastmod time.Time) (string, error) {
	return "", nil
}

func TestGenerateSerializationFailure(t *testing.T) {
	for _, panics := range []bool{false, true} {
		g := newTestGenerator(t, populatedRepository(2), testConfig(), newFakeClock())
		g.newRenderer = func(Config) renderer { return failingRenderer{panics: panics} }

		result, err := g.Generate(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(result.Sitemaps) != 0 {
			t.Errorf("Expected no sitemaps, got %d", len(result.Sitemaps))
		}
		if result.SitemapIndex != nil {
			t.Error("Expected no index")
		}
		if result.Stats.TotalURLs != 0 {
			t.Errorf("Expected 0 URLs, got %d", result.Stats.TotalURLs)
		}
		if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "Sitemap generation failed:") {
			t.Errorf("Expected failure summary, got %v", result.Errors)
		}
		if g.Status().Stage != StageFailed {
			t.Errorf("Expected failed stage, got %s", g.Status().Stage)
		}

		stats, _ := g.CacheStats(context.Background())
		if stats.Entries != 0 {
			t.Error("Expected failed result not to be cached")
		}
	}
}

func TestGenerateStatus(t *testing.T) {
	g := newTestGenerator(t, populatedRepository(2), testConfig(), newFakeClock())

	if g.Status().Stage != StageIdle {
		t.Errorf("Expected idle before first run, got %s", g.Status().Stage)
	}

	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	status := g.Status()
	if status.Stage != StageDone {
		t.Errorf("Expected done, got %s", status.Stage)
	}
	if status.RunID == "" {
		t.Error("Expected run ID")
	}
	if status.TotalURLs != 3 || status.TotalSitemaps != 1 {
		t.Errorf("Unexpected status counts: %+v", status)
	}
}

func TestClearCache(t *testing.T) {
	g := newTestGenerator(t, populatedRepository(1), testConfig(), newFakeClock())
	ctx := context.Background()

	g.Generate(ctx)
	if err := g.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}

	result, _ := g.Generate(ctx)
	if result.Stats.CacheHit {
		t.Error("Expected miss after clearing the cache")
	}
}

func TestGenerateEmptyRepository(t *testing.T) {
	g := newTestGenerator(t, newFakeRepository(), testConfig(), newFakeClock())

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Sitemaps == nil || result.Errors == nil {
		t.Error("Expected non-nil slices")
	}
	if len(result.Sitemaps) != 0 || result.SitemapIndex != nil {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

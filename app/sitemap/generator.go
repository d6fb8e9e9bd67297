package sitemap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/sitemap-comb/app/cache"
)

type Stage string

const (
	StageIdle        Stage = "idle"
	StageCollecting  Stage = "collecting"
	StageValidating  Stage = "validating"
	StageSplitting   Stage = "splitting"
	StageSerializing Stage = "serializing"
	StageIndexing    Stage = "indexing"
	StageCached      Stage = "cached"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// PartialCacheTTL caps how long a result with family read errors is cached.
const PartialCacheTTL = 5 * time.Minute

// Recorder receives pipeline measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage Stage, d time.Duration)
	ObserveGeneration(d time.Duration, outcome string, urls, files int)
	IncCacheLookup(hit bool)
	IncCollectionError(family Family)
	AddInvalidURLs(n int)
}

type renderer interface {
	URLSet(urls []URL) (string, error)
	Index(locs []string, lastmod time.Time) (string, error)
}

// Status describes the most recent run.
type Status struct {
	RunID         string    `json:"run_id"`
	Stage         Stage     `json:"stage"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	TotalURLs     int       `json:"total_urls"`
	TotalSitemaps int       `json:"total_sitemaps"`
	ErrorCount    int       `json:"error_count"`
	CacheHit      bool      `json:"cache_hit"`
}

type Generator struct {
	repo        Repository
	cache       *cache.Cache
	cfg         Config
	now         func() time.Time
	recorder    Recorder
	newRenderer func(cfg Config) renderer

	mu     sync.RWMutex
	status Status
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(g *Generator) {
		if r != nil {
			g.recorder = r
		}
	}
}

// NewGenerator validates cfg and returns a generator owning the given cache.
// A nil cache gets a private in-memory one.
func NewGenerator(repo Repository, c *cache.Cache, cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = cache.New(cache.NewMemoryStore())
	}

	g := &Generator{
		repo:     repo,
		cache:    c,
		cfg:      cfg.clone(),
		now:      time.Now,
		recorder: noopRecorder{},
		newRenderer: func(cfg Config) renderer {
			return NewSerializer(cfg.IncludeImages, cfg.IncludeLastmod)
		},
		status: Status{Stage: StageIdle},
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *Generator) Config() Config {
	return g.cfg.clone()
}

func (g *Generator) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

func (g *Generator) ClearCache(ctx context.Context) error {
	return g.cache.Clear(ctx)
}

func (g *Generator) CacheStats(ctx context.Context) (cache.Stats, error) {
	return g.cache.Stats(ctx)
}

// Generate returns the sitemap set for the effective configuration,
// serving it from cache while fresh. The only error it returns is a
// configuration error; every other failure is reported in result.Errors.
func (g *Generator) Generate(ctx context.Context, overrides ...Override) (*GenerationResult, error) {
	cfg := g.cfg.clone()
	for _, override := range overrides {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := cfg.CacheKey()

	var cached GenerationResult
	if g.cache.Load(ctx, key, &cached) {
		g.recorder.IncCacheLookup(true)
		cached.Stats.CacheHit = true
		normalize(&cached)
		g.setStatus(Status{
			Stage:         StageDone,
			StartedAt:     g.now(),
			FinishedAt:    g.now(),
			TotalURLs:     cached.Stats.TotalURLs,
			TotalSitemaps: cached.Stats.TotalSitemaps,
			ErrorCount:    len(cached.Errors),
			CacheHit:      true,
		})
		slog.Debug("Sitemap served from cache", "key", key, "sitemaps", cached.Stats.TotalSitemaps)
		return &cached, nil
	}
	g.recorder.IncCacheLookup(false)

	return g.run(ctx, cfg, key), nil
}

type run struct {
	g          *Generator
	id         string
	start      time.Time
	stage      Stage
	stageStart time.Time
	errors     []string
}

func (r *run) enter(stage Stage) {
	now := r.g.now()
	if r.stage != StageIdle {
		r.g.recorder.ObserveStageDuration(r.stage, now.Sub(r.stageStart))
	}
	r.stage = stage
	r.stageStart = now
	r.g.setStage(stage)
	slog.Debug("Pipeline stage", "run_id", r.id, "stage", stage)
}

func (g *Generator) run(ctx context.Context, cfg Config, key string) (result *GenerationResult) {
	r := &run{g: g, id: uuid.NewString(), start: g.now(), stage: StageIdle, errors: []string{}}
	g.setStatus(Status{RunID: r.id, Stage: StageIdle, StartedAt: r.start})

	defer func() {
		if rec := recover(); rec != nil {
			result = g.fail(r, fmt.Errorf("panic in %s stage: %v", r.stage, rec))
		}
	}()

	r.enter(StageCollecting)
	collection := NewCollector(g.repo, cfg, NewCalculator(cfg.Weights, r.start)).Run(ctx)
	r.errors = append(r.errors, collection.Errors...)
	for _, family := range Families {
		if _, ok := collection.Counts[family]; !ok {
			g.recorder.IncCollectionError(family)
		}
	}

	r.enter(StageValidating)
	valid, diagnostics := Validate(collection.URLs)
	r.errors = append(r.errors, diagnostics...)
	g.recorder.AddInvalidURLs(len(collection.URLs) - len(valid))

	r.enter(StageSplitting)
	batches := split(valid, cfg.MaxURLsPerSitemap, cfg.Filename)

	r.enter(StageSerializing)
	render := g.newRenderer(cfg)
	files := make([]File, 0, len(batches))
	for _, b := range batches {
		content, err := render.URLSet(b.URLs)
		if err != nil {
			return g.fail(r, fmt.Errorf("%s: %w", b.Filename, err))
		}
		files = append(files, File{
			Filename: b.Filename,
			Content:  content,
			URLCount: len(b.URLs),
			LastMod:  r.start,
		})
	}

	result = &GenerationResult{
		Sitemaps: files,
		Errors:   r.errors,
	}

	if len(files) > 1 {
		r.enter(StageIndexing)
		locs := make([]string, len(files))
		for i, f := range files {
			locs[i] = cfg.PublicURL(f.Filename)
		}
		content, err := render.Index(locs, r.start)
		if err != nil {
			return g.fail(r, fmt.Errorf("%s: %w", cfg.IndexFilename, err))
		}
		result.SitemapIndex = &Index{
			Filename:     cfg.IndexFilename,
			Content:      content,
			SitemapCount: len(files),
		}
	}

	result.Stats = Stats{
		TotalURLs:     len(valid),
		TotalSitemaps: len(files),
	}
	result.Stats.GenerationTimeMs = g.now().Sub(r.start).Milliseconds()

	r.enter(StageCached)
	ttl := cfg.CacheTTL()
	if len(collection.Errors) > 0 {
		ttl = min(ttl, PartialCacheTTL)
	}
	// An empty result caused by read errors carries nothing worth serving.
	if len(files) > 0 || len(collection.Errors) == 0 {
		if err := g.cache.Save(ctx, key, result, ttl); err != nil {
			slog.Warn("Failed to cache sitemap result", "run_id", r.id, "error", err)
		}
	}

	r.enter(StageDone)
	g.finish(r, result)

	slog.Info("Sitemap generated",
		"run_id", r.id,
		"urls", result.Stats.TotalURLs,
		"sitemaps", result.Stats.TotalSitemaps,
		"errors", len(result.Errors),
		"duration_ms", result.Stats.GenerationTimeMs)

	return result
}

func (g *Generator) fail(r *run, err error) *GenerationResult {
	slog.Error("Sitemap generation failed", "run_id", r.id, "stage", r.stage, "error", err)
	r.enter(StageFailed)

	result := emptyResult()
	result.Errors = append(r.errors, fmt.Sprintf("Sitemap generation failed: %v", err))
	result.Stats.GenerationTimeMs = g.now().Sub(r.start).Milliseconds()

	g.finish(r, result)
	return result
}

func (g *Generator) finish(r *run, result *GenerationResult) {
	outcome := "success"
	switch {
	case r.stage == StageFailed:
		outcome = "failed"
	case len(result.Errors) > 0:
		outcome = "partial"
	}
	finished := g.now()
	g.recorder.ObserveGeneration(finished.Sub(r.start), outcome, result.Stats.TotalURLs, result.Stats.TotalSitemaps)

	g.setStatus(Status{
		RunID:         r.id,
		Stage:         r.stage,
		StartedAt:     r.start,
		FinishedAt:    finished,
		TotalURLs:     result.Stats.TotalURLs,
		TotalSitemaps: result.Stats.TotalSitemaps,
		ErrorCount:    len(result.Errors),
	})
}

func (g *Generator) setStatus(s Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = s
}

func (g *Generator) setStage(stage Stage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status.Stage = stage
}

func normalize(r *GenerationResult) {
	if r.Sitemaps == nil {
		r.Sitemaps = []File{}
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
}

type noopRecorder struct{}

func (noopRecorder) ObserveStageDuration(Stage, time.Duration)        {}
func (noopRecorder) ObserveGeneration(time.Duration, string, int, int) {}
func (noopRecorder) IncCacheLookup(bool)                               {}
func (noopRecorder) IncCollectionError(Family)                         {}
func (noopRecorder) AddInvalidURLs(int)                                {}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/lysyi3m/sitemap-comb/app/api"
	"github.com/lysyi3m/sitemap-comb/app/cache"
	"github.com/lysyi3m/sitemap-comb/app/cfg"
	"github.com/lysyi3m/sitemap-comb/app/database"
	"github.com/lysyi3m/sitemap-comb/app/feed"
	"github.com/lysyi3m/sitemap-comb/app/metrics"
	"github.com/lysyi3m/sitemap-comb/app/sitemap"
	"github.com/lysyi3m/sitemap-comb/app/submit"
	"github.com/lysyi3m/sitemap-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(appCfg); err != nil {
		slog.Error("Sitemap Comb stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	ctx := context.Background()

	slog.Info("Starting Sitemap Comb", "version", appCfg.Version, "source", appCfg.Source, "cache", appCfg.Cache)

	sitemapCfg, err := sitemap.LoadConfig(appCfg.SitemapConfig)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load sitemap settings: %w", err)
		}
		slog.Warn("Sitemap settings file not found, using defaults", "path", appCfg.SitemapConfig)
		sitemapCfg = sitemap.DefaultConfig()
	}
	if appCfg.BaseURL != "" {
		sitemapCfg.BaseURL = appCfg.BaseURL
	}

	resultCache, err := openCache(ctx, appCfg)
	if err != nil {
		return err
	}
	defer resultCache.Close()

	var (
		repo    sitemap.Repository
		counter api.FamilyCounter
		sink    tasks.FeedSink
	)

	switch appCfg.Source {
	case cfg.SourceFeed:
		feedRepo := feed.NewRepository()
		repo, counter, sink = feedRepo, feedRepo, tasks.NewSnapshotSink(feedRepo)
	default:
		db, err := database.Open(ctx, appCfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open content database: %w", err)
		}
		defer db.Close()

		contentRepo := database.NewContentRepository(db)
		repo, counter = contentRepo, contentRepo
		if appCfg.FeedURL != "" {
			sink = tasks.NewDatabaseSink(contentRepo)
		}
	}

	recorder := metrics.NewRecorder(prom.NewRegistry())
	recorder.RegisterRuntimeCollectors()

	generator, err := sitemap.NewGenerator(repo, resultCache, sitemapCfg, sitemap.WithRecorder(recorder))
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: time.Duration(appCfg.FetchTimeout) * time.Second}

	submitter := submit.NewSubmitter(sitemapCfg.Submission, httpClient, appCfg.UserAgent)
	submitter.SetRecorder(recorder)

	scheduler := tasks.NewScheduler(tasks.Settings{
		FeedURL:     appCfg.FeedURL,
		OutputDir:   appCfg.OutputDir,
		UserAgent:   appCfg.UserAgent,
		Interval:    time.Duration(appCfg.SchedulerInterval) * time.Second,
		WorkerCount: appCfg.WorkerCount,
		ImageLimit:  appCfg.ImageLimit,
		Timeout:     time.Duration(appCfg.FetchTimeout) * time.Second,
	}, generator, submitter, sink, httpClient, recorder)

	if appCfg.Once {
		return runOnce(ctx, appCfg, generator, submitter, sink, httpClient)
	}

	scheduler.Start()

	handler := api.NewHandler(generator, submitter, scheduler, counter, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey, recorder.Handler())

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "base_url", sitemapCfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Sitemap Comb shutdown complete")

	return runErr
}

// runOnce syncs, generates, writes and submits in sequence, then returns.
func runOnce(ctx context.Context, appCfg *cfg.Cfg, generator *sitemap.Generator, submitter *submit.Submitter, sink tasks.FeedSink, httpClient *http.Client) error {
	timeout := time.Duration(appCfg.FetchTimeout) * time.Second

	if sink != nil && appCfg.FeedURL != "" {
		syncTask := tasks.NewSyncFeedTask(appCfg.FeedURL, httpClient, feed.NewParser(), feed.NewImageExtractor(),
			sink, nil, nil, appCfg.UserAgent, appCfg.ImageLimit, timeout)
		syncTask.Start()
		if err := syncTask.Execute(ctx); err != nil {
			return err
		}
	}

	generateTask := tasks.NewGenerateSitemapTask(generator, nil, nil, appCfg.OutputDir, true)
	generateTask.Start()
	if err := generateTask.Execute(ctx); err != nil {
		return err
	}

	for _, e := range generateTask.Result.Errors {
		slog.Warn("Sitemap generation issue", "error", e)
	}

	entry := generateTask.Result.EntryFilename()
	if !submitter.Enabled() || entry == "" {
		return nil
	}

	submitTask := tasks.NewSubmitSitemapTask(generator.Config().PublicURL(entry), submitter)
	submitTask.Start()
	if err := submitTask.Execute(ctx); err != nil {
		// Search engines being unavailable does not invalidate the files.
		slog.Warn("Sitemap submission failed", "error", err)
	}

	return nil
}

func openCache(ctx context.Context, appCfg *cfg.Cfg) (*cache.Cache, error) {
	var store cache.Store

	switch appCfg.Cache {
	case cfg.CacheSQLite:
		s, err := cache.OpenSQLiteStore(appCfg.CacheDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		if n, err := s.ClearExpired(ctx, time.Now()); err == nil && n > 0 {
			slog.Debug("Removed expired cache entries", "count", n)
		}
		store = s
	case cfg.CacheRedis:
		s, err := cache.NewRedisStore(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = cache.NewMemoryStore()
	}

	return cache.New(store), nil
}

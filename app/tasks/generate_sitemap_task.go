package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/sitemap-comb/app/sitemap"
	"github.com/lysyi3m/sitemap-comb/app/submit"
)

type GenerateSitemapTask struct {
	Task
	generator  *sitemap.Generator
	submitter  *submit.Submitter
	scheduler  TaskSchedulerInterface
	outputDir  string
	invalidate bool

	Result *sitemap.GenerationResult
}

// NewGenerateSitemapTask builds a generation run. invalidate drops cached
// results first, for runs that follow a content change.
func NewGenerateSitemapTask(generator *sitemap.Generator, submitter *submit.Submitter, scheduler TaskSchedulerInterface, outputDir string, invalidate bool) *GenerateSitemapTask {
	return &GenerateSitemapTask{
		Task:       NewTask(TaskTypeGenerateSitemap, generator.Config().BaseURL),
		generator:  generator,
		submitter:  submitter,
		scheduler:  scheduler,
		outputDir:  outputDir,
		invalidate: invalidate,
	}
}

func (t *GenerateSitemapTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if t.invalidate {
		if err := t.generator.ClearCache(ctx); err != nil {
			slog.Warn("Failed to invalidate sitemap cache", "error", err)
		}
	}

	result, err := t.generator.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate sitemap: %w", err)
	}
	t.Result = result

	if len(result.Sitemaps) == 0 && len(result.Errors) > 0 {
		return fmt.Errorf("sitemap generation produced no files: %s", strings.Join(result.Errors, "; "))
	}

	written := 0
	if t.outputDir != "" {
		paths, err := sitemap.WriteFiles(t.outputDir, t.generator.Config(), result)
		if err != nil {
			return fmt.Errorf("failed to write sitemap files: %w", err)
		}
		written = len(paths)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"urls", result.Stats.TotalURLs,
		"sitemaps", result.Stats.TotalSitemaps,
		"errors", len(result.Errors),
		"cache_hit", result.Stats.CacheHit,
		"written", written)

	if result.Stats.CacheHit || t.scheduler == nil || t.submitter == nil || !t.submitter.Enabled() {
		return nil
	}

	entry := result.EntryFilename()
	if entry == "" {
		return nil
	}

	submitTask := NewSubmitSitemapTask(t.generator.Config().PublicURL(entry), t.submitter)
	if err := t.scheduler.EnqueueTask(submitTask); err != nil {
		slog.Warn("Failed to enqueue SubmitSitemapTask", "error", err)
	}

	return nil
}

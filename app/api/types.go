package api

import (
	"context"

	"github.com/lysyi3m/sitemap-comb/app/sitemap"
	"github.com/lysyi3m/sitemap-comb/app/submit"
	"github.com/lysyi3m/sitemap-comb/app/tasks"
)

// FamilyCounter is implemented by content sources that can report their size.
type FamilyCounter interface {
	FamilyCounts(ctx context.Context) (map[sitemap.Family]int, error)
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

// TaskFactory builds and queues background work.
type TaskFactory interface {
	tasks.TaskSchedulerInterface
	NewSyncTask() *tasks.SyncFeedTask
	NewGenerateTask(invalidate bool) *tasks.GenerateSitemapTask
}

var _ TaskFactory = (*tasks.Scheduler)(nil)

type Handler struct {
	generator *sitemap.Generator
	submitter *submit.Submitter
	scheduler TaskFactory
	counter   FamilyCounter
	version   string
}

type fileSummary struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	URLCount int    `json:"url_count"`
}

type generateResponse struct {
	Sitemaps     []fileSummary             `json:"sitemaps"`
	SitemapIndex *fileSummary              `json:"sitemap_index,omitempty"`
	Entry        string                    `json:"entry,omitempty"`
	Stats        sitemap.Stats             `json:"stats"`
	Errors       []string                  `json:"errors"`
	Result       *sitemap.GenerationResult `json:"result,omitempty"`
}

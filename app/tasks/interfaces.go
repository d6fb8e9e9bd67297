package tasks

import (
	"context"

	"github.com/lysyi3m/sitemap-comb/app/feed"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Tasks use it to chain follow-up work (sync → generate → submit).
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// FeedSink stores the content of a fetched feed.
type FeedSink interface {
	StoreFeed(ctx context.Context, metadata *feed.Metadata, items []feed.Item) error
}

// Recorder observes task outcomes.
type Recorder interface {
	IncTaskResult(taskType string, success bool)
}

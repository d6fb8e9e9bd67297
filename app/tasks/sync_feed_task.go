package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/feed"
)

type SyncFeedTask struct {
	Task
	httpClient     *http.Client
	parser         *feed.Parser
	imageExtractor *feed.ImageExtractor
	sink           FeedSink
	scheduler      TaskSchedulerInterface
	next           func() TaskInterface
	userAgent      string
	imageLimit     int
	timeout        time.Duration
}

// NewSyncFeedTask fetches feedURL into sink. Up to imageLimit items without
// an image get one from their article page. When scheduler is set, next
// builds the task enqueued after a successful sync.
func NewSyncFeedTask(feedURL string, httpClient *http.Client, parser *feed.Parser, imageExtractor *feed.ImageExtractor, sink FeedSink, scheduler TaskSchedulerInterface, next func() TaskInterface, userAgent string, imageLimit int, timeout time.Duration) *SyncFeedTask {
	return &SyncFeedTask{
		Task:           NewTask(TaskTypeSyncFeed, feedURL),
		httpClient:     httpClient,
		parser:         parser,
		imageExtractor: imageExtractor,
		sink:           sink,
		scheduler:      scheduler,
		next:           next,
		userAgent:      userAgent,
		imageLimit:     imageLimit,
		timeout:        timeout,
	}
}

func (t *SyncFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := fetch(ctx, t.httpClient, t.Target, t.userAgent, t.timeout, false)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, items, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	extracted := t.enrichImages(ctx, items)

	if err := t.sink.StoreFeed(ctx, metadata, items); err != nil {
		return fmt.Errorf("failed to store feed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.Target,
		"duration", t.GetDuration(),
		"total", len(items),
		"images_extracted", extracted)

	if t.scheduler != nil && t.next != nil {
		if err := t.scheduler.EnqueueTask(t.next()); err != nil {
			slog.Warn("Failed to enqueue follow-up task", "feed", t.Target, "error", err)
		}
	}

	return nil
}

func (t *SyncFeedTask) enrichImages(ctx context.Context, items []feed.Item) int {
	if t.imageExtractor == nil || t.imageLimit <= 0 {
		return 0
	}

	attempted := 0
	extracted := 0

	for i := range items {
		if attempted >= t.imageLimit {
			break
		}
		if items[i].ImageURL != "" || items[i].Link == "" {
			continue
		}

		select {
		case <-ctx.Done():
			return extracted
		default:
		}

		attempted++

		data, err := fetch(ctx, t.httpClient, items[i].Link, t.userAgent, t.timeout, true)
		if err != nil {
			slog.Debug("Failed to fetch article page", "url", items[i].Link, "error", err)
			continue
		}

		image, err := t.imageExtractor.Run(data, items[i].Link)
		if err != nil {
			slog.Debug("Failed to extract lead image", "url", items[i].Link, "error", err)
			continue
		}
		if image != "" {
			items[i].ImageURL = image
			extracted++
		}
	}

	return extracted
}

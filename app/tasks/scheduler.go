package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/feed"
	"github.com/lysyi3m/sitemap-comb/app/sitemap"
	"github.com/lysyi3m/sitemap-comb/app/submit"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Settings struct {
	FeedURL     string
	OutputDir   string
	UserAgent   string
	Interval    time.Duration
	WorkerCount int
	ImageLimit  int
	Timeout     time.Duration
}

type Scheduler struct {
	generator      *sitemap.Generator
	submitter      *submit.Submitter
	sink           FeedSink
	httpClient     *http.Client
	parser         *feed.Parser
	imageExtractor *feed.ImageExtractor
	recorder       Recorder
	settings       Settings
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
}

// NewScheduler wires the periodic cycle. With a sink and a feed URL every
// cycle syncs the feed first; otherwise it only regenerates.
func NewScheduler(settings Settings, generator *sitemap.Generator, submitter *submit.Submitter, sink FeedSink, httpClient *http.Client, recorder Recorder) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if settings.WorkerCount <= 0 {
		settings.WorkerCount = 1
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Hour
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}

	return &Scheduler{
		generator:      generator,
		submitter:      submitter,
		sink:           sink,
		httpClient:     httpClient,
		parser:         feed.NewParser(),
		imageExtractor: feed.NewImageExtractor(),
		recorder:       recorder,
		settings:       settings,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.settings.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.settings.Interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// NewSyncTask returns the feed sync for this scheduler, or nil when no
// feed is configured.
func (s *Scheduler) NewSyncTask() *SyncFeedTask {
	if s.sink == nil || s.settings.FeedURL == "" {
		return nil
	}

	next := func() TaskInterface {
		return s.NewGenerateTask(true)
	}

	return NewSyncFeedTask(s.settings.FeedURL, s.httpClient, s.parser, s.imageExtractor, s.sink, s, next,
		s.settings.UserAgent, s.settings.ImageLimit, s.settings.Timeout)
}

func (s *Scheduler) NewGenerateTask(invalidate bool) *GenerateSitemapTask {
	return NewGenerateSitemapTask(s.generator, s.submitter, s, s.settings.OutputDir, invalidate)
}

func (s *Scheduler) enqueueTasks() {
	var task TaskInterface
	if syncTask := s.NewSyncTask(); syncTask != nil {
		task = syncTask
	} else {
		task = s.NewGenerateTask(false)
	}

	slog.Debug("Scheduling cycle", "type", string(task.GetType()), "target", task.GetTarget())

	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue task", "type", string(task.GetType()), "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if s.recorder != nil {
		s.recorder.IncTaskResult(string(task.GetType()), err == nil)
	}

	if err != nil {
		task.RecordFailure(err)
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := task.RetryDelay()

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				case <-time.After(retryDelay):
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", task.LastError())
		}
		return
	}

	slog.Debug("Task completed", "type", string(task.GetType()), "target", task.GetTarget(), "attempt", task.GetRetryCount()+1, "duration", task.GetDuration().String())
}

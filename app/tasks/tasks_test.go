package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/database"
	"github.com/lysyi3m/sitemap-comb/app/feed"
	"github.com/lysyi3m/sitemap-comb/app/sitemap"
	"github.com/lysyi3m/sitemap-comb/app/submit"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeGenerateSitemap, "https://example.com")

	if task.GetID() == "" {
		t.Error("Expected task ID to be set")
	}
	if task.GetType() != TaskTypeGenerateSitemap {
		t.Errorf("Expected type %s, got %s", TaskTypeGenerateSitemap, task.GetType())
	}
	if task.GetDuration() != 0 {
		t.Errorf("Expected zero duration before start, got %v", task.GetDuration())
	}

	policy := PolicyFor(TaskTypeGenerateSitemap)
	if task.GetMaxRetries() != policy.MaxRetries {
		t.Errorf("Expected %d retries, got %d", policy.MaxRetries, task.GetMaxRetries())
	}
	for i := 0; i < policy.MaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, want := range expected {
		if got := policy.Delay(i + 1); got != want {
			t.Errorf("Expected delay %v for attempt %d, got %v", want, i+1, got)
		}
	}
	if got := policy.Delay(0); got != time.Second {
		t.Errorf("Expected base delay for attempt 0, got %v", got)
	}
}

func TestPolicyPerTaskType(t *testing.T) {
	submit := NewTask(TaskTypeSubmitSitemap, "https://example.com/sitemap.xml")
	generate := NewTask(TaskTypeGenerateSitemap, "https://example.com")

	if submit.GetMaxRetries() <= generate.GetMaxRetries() {
		t.Errorf("Expected submission to retry more than generation, got %d and %d",
			submit.GetMaxRetries(), generate.GetMaxRetries())
	}

	submit.IncrementRetryCount()
	generate.IncrementRetryCount()
	if submit.RetryDelay() <= generate.RetryDelay() {
		t.Errorf("Expected submission to back off longer, got %v and %v", submit.RetryDelay(), generate.RetryDelay())
	}

	unknown := NewTask(TaskType("other"), "x")
	if unknown.GetMaxRetries() != DefaultMaxRetries {
		t.Errorf("Expected default retries for unknown type, got %d", unknown.GetMaxRetries())
	}
}

func TestSyncFeedTaskStoresSnapshot(t *testing.T) {
	server := newContentServer(t)
	repo := feed.NewRepository()
	scheduler := &fakeScheduler{}

	next := func() TaskInterface {
		return &stubTask{Task: NewTask(TaskTypeGenerateSitemap, "next")}
	}

	task := NewSyncFeedTask(server.URL+"/feed.xml", server.Client(), feed.NewParser(), feed.NewImageExtractor(),
		NewSnapshotSink(repo), scheduler, next, "Sitemap Comb/1.0", 5, 5*time.Second)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	snapshot := repo.Snapshot()
	if snapshot == nil {
		t.Fatal("Expected snapshot to be stored")
	}
	if len(snapshot.Posts) != 2 {
		t.Fatalf("Expected 2 posts, got %d", len(snapshot.Posts))
	}

	images := map[string]string{}
	for _, p := range snapshot.Posts {
		if p.CoverImage != nil {
			images[p.Slug] = p.CoverImage.Loc
		}
	}
	if images["first-post"] != "https://cdn.example.com/first.jpg" {
		t.Errorf("Expected enclosure image to be kept, got %q", images["first-post"])
	}
	if images["second-post"] != server.URL+"/images/lead.png" {
		t.Errorf("Expected extracted lead image, got %q", images["second-post"])
	}

	if got := scheduler.enqueued(); len(got) != 1 || got[0].GetTarget() != "next" {
		t.Errorf("Expected follow-up task to be enqueued, got %d tasks", len(got))
	}
}

func TestSyncFeedTaskImageLimit(t *testing.T) {
	server := newContentServer(t)
	repo := feed.NewRepository()

	task := NewSyncFeedTask(server.URL+"/feed.xml", server.Client(), feed.NewParser(), feed.NewImageExtractor(),
		NewSnapshotSink(repo), nil, nil, "Sitemap Comb/1.0", 0, 5*time.Second)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, p := range repo.Snapshot().Posts {
		if p.Slug == "second-post" && p.CoverImage != nil {
			t.Errorf("Expected no extraction with zero limit, got %s", p.CoverImage.Loc)
		}
	}
}

func TestSyncFeedTaskFetchError(t *testing.T) {
	server := newContentServer(t)

	task := NewSyncFeedTask(server.URL+"/missing.xml", server.Client(), feed.NewParser(), nil,
		NewSnapshotSink(feed.NewRepository()), nil, nil, "Sitemap Comb/1.0", 0, 5*time.Second)

	err := task.Execute(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to fetch feed") {
		t.Errorf("Expected fetch error, got: %v", err)
	}
}

func TestDatabaseSinkStoresPublishedPosts(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := database.NewContentRepository(db)
	published := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	items := []feed.Item{
		{GUID: "post-1", Slug: "first-post", Title: "First", PublishedAt: &published, Author: "Jane Doe",
			Categories: []string{"Technology", "Go", "SQLite"}, ImageURL: "https://cdn.example.com/first.jpg"},
		{GUID: "", Link: "https://example.com/blog/second-post", Slug: "second-post", PublishedAt: &published},
		{GUID: "post-3", Slug: ""},
	}

	if err := NewDatabaseSink(repo).StoreFeed(ctx, &feed.Metadata{Title: "Test"}, items); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	page, err := repo.FetchPage(ctx, sitemap.FamilyPosts, 1, 10, sitemap.Filters{Status: "published"})
	if err != nil {
		t.Fatalf("Failed to fetch posts: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("Expected 2 posts, got %d", page.Total)
	}

	counts, err := repo.FamilyCounts(ctx)
	if err != nil {
		t.Fatalf("Failed to count families: %v", err)
	}
	if counts[sitemap.FamilyTags] != 2 {
		t.Errorf("Expected 2 tags, got %d", counts[sitemap.FamilyTags])
	}
	if counts[sitemap.FamilyAuthors] != 1 {
		t.Errorf("Expected 1 author, got %d", counts[sitemap.FamilyAuthors])
	}
	if counts[sitemap.FamilyCategories] != 1 {
		t.Errorf("Expected 1 category, got %d", counts[sitemap.FamilyCategories])
	}
}

func TestGenerateSitemapTaskWritesAndSubmits(t *testing.T) {
	var pings atomic.Int32
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer engine.Close()

	cfg := testConfig()
	cfg.Submission = sitemap.SubmissionConfig{
		Enabled:        true,
		Endpoints:      []string{engine.URL + "/ping?sitemap={sitemap_url}"},
		TimeoutSeconds: 5,
	}

	generator := newTestGenerator(t, loadedRepository(), cfg)
	submitter := submit.NewSubmitter(cfg.Submission, engine.Client(), "Sitemap Comb/1.0")
	scheduler := &fakeScheduler{}
	dir := t.TempDir()

	task := NewGenerateSitemapTask(generator, submitter, scheduler, dir, false)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "sitemap.xml")); err != nil {
		t.Errorf("Expected sitemap.xml to be written: %v", err)
	}

	enqueued := scheduler.enqueued()
	if len(enqueued) != 1 {
		t.Fatalf("Expected 1 submit task, got %d", len(enqueued))
	}
	submitTask, ok := enqueued[0].(*SubmitSitemapTask)
	if !ok {
		t.Fatalf("Expected SubmitSitemapTask, got %T", enqueued[0])
	}
	if submitTask.GetTarget() != "https://example.com/sitemap.xml" {
		t.Errorf("Expected public sitemap URL, got %s", submitTask.GetTarget())
	}

	if err := submitTask.Execute(context.Background()); err != nil {
		t.Errorf("Expected submission to succeed, got: %v", err)
	}
	if pings.Load() != 1 {
		t.Errorf("Expected 1 ping, got %d", pings.Load())
	}

	again := NewGenerateSitemapTask(generator, submitter, scheduler, dir, false)
	if err := again.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !again.Result.Stats.CacheHit {
		t.Error("Expected second run to be served from cache")
	}
	if len(scheduler.enqueued()) != 1 {
		t.Error("Expected cached result not to be resubmitted")
	}

	fresh := NewGenerateSitemapTask(generator, submitter, scheduler, dir, true)
	if err := fresh.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fresh.Result.Stats.CacheHit {
		t.Error("Expected invalidated run to regenerate")
	}
	if len(scheduler.enqueued()) != 2 {
		t.Error("Expected regenerated result to be submitted")
	}
}

func TestGenerateSitemapTaskFailsWithoutContent(t *testing.T) {
	generator := newTestGenerator(t, feed.NewRepository(), testConfig())

	task := NewGenerateSitemapTask(generator, nil, nil, "", false)
	err := task.Execute(context.Background())
	if err == nil {
		t.Fatal("Expected error when every family fails")
	}
	if !strings.Contains(err.Error(), "no files") {
		t.Errorf("Expected no files error, got: %v", err)
	}
}

func TestSubmitSitemapTaskFailure(t *testing.T) {
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer engine.Close()

	submitter := submit.NewSubmitter(sitemap.SubmissionConfig{
		Enabled:        true,
		Endpoints:      []string{engine.URL + "/ping?sitemap={sitemap_url}"},
		TimeoutSeconds: 5,
	}, engine.Client(), "Sitemap Comb/1.0")

	task := NewSubmitSitemapTask("https://example.com/sitemap.xml", submitter)
	err := task.Execute(context.Background())
	if err == nil {
		t.Fatal("Expected submission error")
	}
	if task.Result.Success {
		t.Error("Expected result to report failure")
	}
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	recorder := &fakeRecorder{}
	s := NewScheduler(Settings{WorkerCount: 1}, nil, nil, nil, http.DefaultClient, recorder)
	defer s.Stop()

	task := &stubTask{Task: NewTask(TaskTypeGenerateSitemap, "retry"), failures: 1}
	s.executeTask(0, task)

	if task.GetRetryCount() != 1 {
		t.Fatalf("Expected retry count 1, got %d", task.GetRetryCount())
	}
	if task.LastError() == nil || !strings.Contains(task.LastError().Error(), "attempt 1") {
		t.Errorf("Expected last error to be recorded, got %v", task.LastError())
	}

	select {
	case retried := <-s.taskQueue:
		if retried != task {
			t.Fatal("Expected the failed task to be re-enqueued")
		}
		s.executeTask(0, retried)
	case <-time.After(3 * time.Second):
		t.Fatal("Expected task to be re-enqueued after backoff")
	}

	got := recorder.get(string(TaskTypeGenerateSitemap))
	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("Expected [false true], got %v", got)
	}
}

func TestSchedulerCycleTask(t *testing.T) {
	generator := newTestGenerator(t, loadedRepository(), testConfig())

	withoutFeed := NewScheduler(Settings{}, generator, nil, nil, http.DefaultClient, nil)
	defer withoutFeed.Stop()
	if withoutFeed.NewSyncTask() != nil {
		t.Error("Expected no sync task without a feed")
	}

	withFeed := NewScheduler(Settings{FeedURL: "https://example.com/feed.xml"}, generator, nil,
		NewSnapshotSink(feed.NewRepository()), http.DefaultClient, nil)
	defer withFeed.Stop()

	syncTask := withFeed.NewSyncTask()
	if syncTask == nil {
		t.Fatal("Expected sync task with a feed")
	}
	generate, ok := syncTask.next().(*GenerateSitemapTask)
	if !ok || !generate.invalidate {
		t.Error("Expected sync to chain an invalidating generation")
	}

	withFeed.enqueueTasks()
	select {
	case queued := <-withFeed.taskQueue:
		if queued.GetType() != TaskTypeSyncFeed {
			t.Errorf("Expected sync task, got %s", queued.GetType())
		}
	default:
		t.Error("Expected cycle to enqueue a task")
	}
}

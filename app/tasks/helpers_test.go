package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/feed"
	"github.com/lysyi3m/sitemap-comb/app/sitemap"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Second Post</title>
	<meta property="og:image" content="/images/lead.png">
</head>
<body>
	<article>
		<h1>Second Post</h1>
		<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
		<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
		<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information.</p>
	</article>
</body>
</html>`

func feedXML(base string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Blog</title>
    <link>%[1]s</link>
    <description>Test Description</description>
    <item>
      <title>First Post</title>
      <link>%[1]s/blog/first-post</link>
      <guid>post-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>jane@example.com (Jane Doe)</author>
      <category>Technology</category>
      <category>Go</category>
      <enclosure url="https://cdn.example.com/first.jpg" length="1024" type="image/jpeg"/>
    </item>
    <item>
      <title>Second Post</title>
      <link>%[1]s/blog/second-post</link>
      <guid>post-2</guid>
      <pubDate>Tue, 04 Jul 2023 11:00:00 GMT</pubDate>
      <category>Technology</category>
    </item>
  </channel>
</rss>`, base)
}

func newContentServer(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(feedXML(server.URL)))
		case "/blog/second-post":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(articleHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return server
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []TaskInterface
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}

func (f *fakeScheduler) EnqueueTask(task TaskInterface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeScheduler) enqueued() []TaskInterface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TaskInterface(nil), f.tasks...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	results map[string][]bool
}

func (f *fakeRecorder) IncTaskResult(taskType string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string][]bool)
	}
	f.results[taskType] = append(f.results[taskType], success)
}

func (f *fakeRecorder) get(taskType string) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.results[taskType]...)
}

func testConfig() sitemap.Config {
	cfg := sitemap.DefaultConfig()
	cfg.BaseURL = "https://example.com"
	return cfg
}

func loadedRepository() *feed.Repository {
	published := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []feed.Item{
		{GUID: "1", Slug: "first-post", Title: "First Post", PublishedAt: &published, Categories: []string{"Go"}},
		{GUID: "2", Slug: "second-post", Title: "Second Post", PublishedAt: &published, Author: "Jane Doe"},
	}

	repo := feed.NewRepository()
	repo.Replace(feed.BuildSnapshot(feed.Metadata{Title: "Test"}, items, published))
	return repo
}

func newTestGenerator(t *testing.T, repo sitemap.Repository, cfg sitemap.Config) *sitemap.Generator {
	t.Helper()

	g, err := sitemap.NewGenerator(repo, nil, cfg)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}
	return g
}

type stubTask struct {
	Task
	mu       sync.Mutex
	failures int
	runs     int
}

func (s *stubTask) Execute(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	if s.runs <= s.failures {
		return fmt.Errorf("attempt %d failed", s.runs)
	}
	return nil
}

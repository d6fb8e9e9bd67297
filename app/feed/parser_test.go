package feed

import (
	"testing"
)

const testRSS = `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test Blog</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>en-us</language>
    <item>
      <title>Hello World</title>
      <link>https://example.com/blog/hello-world/</link>
      <guid>post-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>jane@example.com (Jane Doe)</author>
      <category>Technology</category>
      <category>Go</category>
      <category>SQLite</category>
      <enclosure url="https://cdn.example.com/hello.jpg" length="1024" type="image/jpeg"/>
    </item>
    <item>
      <title>Café Notes</title>
      <link>https://example.com/?p=42</link>
      <guid>post-2</guid>
      <pubDate>Tue, 04 Jul 2023 11:00:00 GMT</pubDate>
      <category>Technology</category>
      <media:thumbnail url="https://cdn.example.com/cafe.png"/>
    </item>
    <item>
      <title>Podcast</title>
      <link>https://example.com/blog/podcast.html</link>
      <enclosure url="https://cdn.example.com/ep1.mp3" length="2048" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

func TestParseRSS(t *testing.T) {
	parser := NewParser()
	metadata, items, err := parser.Run([]byte(testRSS))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Test Blog" {
		t.Errorf("Expected title 'Test Blog', got: %s", metadata.Title)
	}
	if metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %s", metadata.Language)
	}

	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got: %d", len(items))
	}

	first := items[0]
	if first.Slug != "hello-world" {
		t.Errorf("Expected slug 'hello-world', got: %s", first.Slug)
	}
	if first.Author != "Jane Doe" {
		t.Errorf("Expected author 'Jane Doe', got: %s", first.Author)
	}
	if len(first.Categories) != 3 || first.Categories[0] != "Technology" {
		t.Errorf("Unexpected categories: %v", first.Categories)
	}
	if first.ImageURL != "https://cdn.example.com/hello.jpg" {
		t.Errorf("Expected enclosure image, got: %s", first.ImageURL)
	}
	if first.PublishedAt == nil || first.PublishedAt.Day() != 3 {
		t.Errorf("Unexpected published date: %v", first.PublishedAt)
	}

	second := items[1]
	if second.Slug != "cafe-notes" {
		t.Errorf("Expected slug from title 'cafe-notes', got: %s", second.Slug)
	}
	if second.ImageURL != "https://cdn.example.com/cafe.png" {
		t.Errorf("Expected media thumbnail, got: %s", second.ImageURL)
	}

	third := items[2]
	if third.Slug != "podcast" {
		t.Errorf("Expected slug 'podcast', got: %s", third.Slug)
	}
	if third.ImageURL != "" {
		t.Errorf("Expected audio enclosure to be ignored, got: %s", third.ImageURL)
	}
	if third.GUID != "https://example.com/blog/podcast.html" {
		t.Errorf("Expected GUID to fall back to link, got: %s", third.GUID)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	if _, _, err := NewParser().Run([]byte("not a feed")); err == nil {
		t.Error("Expected error for invalid feed")
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":          "hello-world",
		"  Crème brûlée!  ":    "creme-brulee",
		"Go 1.24 -- released": "go-1-24-released",
		"日本語":                  "",
	}
	for input, expected := range tests {
		if got := Slugify(input); got != expected {
			t.Errorf("Slugify(%q): expected %q, got %q", input, expected, got)
		}
	}
}

package sitemap

import (
	"time"
)

// Hard protocol ceiling for URLs in a single sitemap file.
const MaxURLsPerFile = 50000

type ChangeFreq string

const (
	ChangeFreqAlways  ChangeFreq = "always"
	ChangeFreqHourly  ChangeFreq = "hourly"
	ChangeFreqDaily   ChangeFreq = "daily"
	ChangeFreqWeekly  ChangeFreq = "weekly"
	ChangeFreqMonthly ChangeFreq = "monthly"
	ChangeFreqYearly  ChangeFreq = "yearly"
	ChangeFreqNever   ChangeFreq = "never"
)

func (c ChangeFreq) Valid() bool {
	switch c {
	case ChangeFreqAlways, ChangeFreqHourly, ChangeFreqDaily, ChangeFreqWeekly,
		ChangeFreqMonthly, ChangeFreqYearly, ChangeFreqNever:
		return true
	}
	return false
}

type URL struct {
	Loc        string      `json:"loc"`
	LastMod    string      `json:"lastmod,omitempty"`
	ChangeFreq ChangeFreq  `json:"changefreq"`
	Priority   float64     `json:"priority"`
	Images     []Image     `json:"images,omitempty"`
	Alternates []Alternate `json:"alternates,omitempty"`
}

type Image struct {
	Loc     string `json:"loc"`
	Caption string `json:"caption,omitempty"`
	Title   string `json:"title,omitempty"`
}

type Alternate struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

type File struct {
	Filename string    `json:"filename"`
	Content  string    `json:"content"`
	URLCount int       `json:"url_count"`
	LastMod  time.Time `json:"lastmod"`
}

type Index struct {
	Filename     string `json:"filename"`
	Content      string `json:"content"`
	SitemapCount int    `json:"sitemap_count"`
}

type Stats struct {
	TotalURLs        int   `json:"total_urls"`
	TotalSitemaps    int   `json:"total_sitemaps"`
	GenerationTimeMs int64 `json:"generation_time_ms"`
	CacheHit         bool  `json:"cache_hit"`
}

// GenerationResult is always structurally valid: SitemapIndex is set
// only when more than one file was produced.
type GenerationResult struct {
	Sitemaps     []File   `json:"sitemaps"`
	SitemapIndex *Index   `json:"sitemap_index,omitempty"`
	Stats        Stats    `json:"stats"`
	Errors       []string `json:"errors"`
}

// File returns the produced document with the given filename, index included.
func (r *GenerationResult) File(filename string) (string, bool) {
	if r.SitemapIndex != nil && r.SitemapIndex.Filename == filename {
		return r.SitemapIndex.Content, true
	}
	for _, f := range r.Sitemaps {
		if f.Filename == filename {
			return f.Content, true
		}
	}
	return "", false
}

// EntryFilename is the file crawlers should be pointed at: the index when
// one exists, otherwise the single sitemap.
func (r *GenerationResult) EntryFilename() string {
	if r.SitemapIndex != nil {
		return r.SitemapIndex.Filename
	}
	if len(r.Sitemaps) > 0 {
		return r.Sitemaps[0].Filename
	}
	return ""
}

func emptyResult() *GenerationResult {
	return &GenerationResult{
		Sitemaps: []File{},
		Errors:   []string{},
	}
}

package sitemap

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/fanout"
)

type Collector struct {
	repo Repository
	cfg  Config
	calc *Calculator
}

type Collection struct {
	URLs   []URL
	Errors []string
	Counts map[Family]int
}

func NewCollector(repo Repository, cfg Config, calc *Calculator) *Collector {
	return &Collector{repo: repo, cfg: cfg, calc: calc}
}

// Run collects every family concurrently and merges the results in
// Families order. Static pages come first.
func (c *Collector) Run(ctx context.Context) Collection {
	tasks := make([]fanout.Task[[]URL], len(Families))
	for i, family := range Families {
		tasks[i] = func(ctx context.Context) ([]URL, error) {
			return c.collectFamily(ctx, family)
		}
	}

	outcomes := fanout.All(ctx, tasks)

	collection := Collection{
		URLs:   c.staticPages(),
		Errors: []string{},
		Counts: make(map[Family]int, len(Families)),
	}

	for i, outcome := range outcomes {
		family := Families[i]
		if outcome.Err != nil {
			slog.Warn("Family collection failed", "family", family, "error", outcome.Err)
			collection.Errors = append(collection.Errors, fmt.Sprintf("Failed to collect %s URLs: %v", family, outcome.Err))
			continue
		}
		collection.Counts[family] = len(outcome.Value)
		collection.URLs = append(collection.URLs, outcome.Value...)
	}

	return collection
}

func (c *Collector) collectFamily(ctx context.Context, family Family) ([]URL, error) {
	var urls []URL

	for page := 1; ; page++ {
		if page > c.cfg.MaxPagesPerFamily {
			return nil, fmt.Errorf("exceeded %d pages", c.cfg.MaxPagesPerFamily)
		}

		result, err := c.repo.FetchPage(ctx, family, page, c.cfg.PageSize, PublishedOnly)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		for _, record := range result.Items {
			if u, ok := c.mapRecord(record); ok {
				urls = append(urls, u)
			}
		}

		if !result.HasNextPage {
			slog.Debug("Family collected", "family", family, "pages", page, "urls", len(urls), "total", result.Total)
			return urls, nil
		}
	}
}

// mapRecord dispatches to the mapper of the record's family. Records that
// lack a slug are not publishable yet and are skipped.
func (c *Collector) mapRecord(record Record) (URL, bool) {
	switch r := record.(type) {
	case IndexRecord:
		return c.mapIndex(r), true
	case PostRecord:
		return c.mapPost(r)
	case CategoryRecord:
		return c.mapCategory(r)
	case AuthorRecord:
		return c.mapAuthor(r)
	case TagRecord:
		return c.mapTag(r)
	}
	return URL{}, false
}

func (c *Collector) mapIndex(r IndexRecord) URL {
	path := c.cfg.Routes.Index
	if r.Path != "" {
		path = strings.TrimRight(path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	}
	freq, priority := c.calc.Index()
	return URL{
		Loc:        c.absolute(path),
		LastMod:    formatLastMod(r.UpdatedAt, nil),
		ChangeFreq: freq,
		Priority:   priority,
	}
}

func (c *Collector) mapPost(r PostRecord) (URL, bool) {
	if r.Slug == "" {
		return URL{}, false
	}
	freq, priority := c.calc.Post(r)
	u := URL{
		Loc:        c.absolute(expandRoute(c.cfg.Routes.Post, r.Slug)),
		LastMod:    formatLastMod(r.UpdatedAt, r.PublishedAt),
		ChangeFreq: freq,
		Priority:   priority,
	}
	if r.CoverImage != nil && r.CoverImage.Loc != "" {
		u.Images = []Image{*r.CoverImage}
	}
	if len(r.Alternates) > 0 {
		u.Alternates = append([]Alternate(nil), r.Alternates...)
	}
	return u, true
}

func (c *Collector) mapCategory(r CategoryRecord) (URL, bool) {
	if r.Slug == "" {
		return URL{}, false
	}
	freq, priority := c.calc.Category(r)
	return URL{
		Loc:        c.absolute(expandRoute(c.cfg.Routes.Category, r.Slug)),
		LastMod:    formatLastMod(r.UpdatedAt, nil),
		ChangeFreq: freq,
		Priority:   priority,
	}, true
}

func (c *Collector) mapAuthor(r AuthorRecord) (URL, bool) {
	if r.Slug == "" {
		return URL{}, false
	}
	freq, priority := c.calc.Author()
	return URL{
		Loc:        c.absolute(expandRoute(c.cfg.Routes.Author, r.Slug)),
		LastMod:    formatLastMod(r.UpdatedAt, nil),
		ChangeFreq: freq,
		Priority:   priority,
	}, true
}

func (c *Collector) mapTag(r TagRecord) (URL, bool) {
	if r.Slug == "" {
		return URL{}, false
	}
	freq, priority := c.calc.Tag()
	return URL{
		Loc:        c.absolute(expandRoute(c.cfg.Routes.Tag, r.Slug)),
		LastMod:    formatLastMod(r.UpdatedAt, nil),
		ChangeFreq: freq,
		Priority:   priority,
	}, true
}

func (c *Collector) staticPages() []URL {
	urls := make([]URL, 0, len(c.cfg.StaticPages))
	for _, page := range c.cfg.StaticPages {
		u := URL{
			Loc:        c.absolute(page.Path),
			ChangeFreq: c.cfg.DefaultChangeFreq,
			Priority:   c.cfg.DefaultPriority,
		}
		if page.ChangeFreq != "" {
			u.ChangeFreq = page.ChangeFreq
		}
		if page.Priority != nil {
			u.Priority = clampPriority(*page.Priority)
		}
		urls = append(urls, u)
	}
	return urls
}

func (c *Collector) absolute(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func expandRoute(route, slug string) string {
	return strings.ReplaceAll(route, slugToken, url.PathEscape(slug))
}

func formatLastMod(updated, published *time.Time) string {
	switch {
	case updated != nil && !updated.IsZero():
		return updated.UTC().Format(time.RFC3339)
	case published != nil && !published.IsZero():
		return published.UTC().Format(time.RFC3339)
	}
	return ""
}

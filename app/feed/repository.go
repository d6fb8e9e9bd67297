package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/sitemap"
)

var _ sitemap.Repository = (*Repository)(nil)

var ErrNotLoaded = errors.New("feed snapshot not loaded yet")

// Snapshot is the sitemap view of one fetched feed. Every feed entry is
// public, so the status filter has nothing to exclude.
type Snapshot struct {
	Metadata   Metadata
	FetchedAt  time.Time
	Posts      []sitemap.PostRecord
	Categories []sitemap.CategoryRecord
	Authors    []sitemap.AuthorRecord
	Tags       []sitemap.TagRecord
}

// BuildSnapshot maps feed items to records. The first category of an item
// is its category; the rest become tags.
func BuildSnapshot(metadata Metadata, items []Item, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{Metadata: metadata, FetchedAt: fetchedAt}

	seenPosts := make(map[string]bool)
	categories := newTermIndex()
	authors := newTermIndex()
	tags := newTermIndex()

	for _, item := range items {
		if item.Slug == "" || seenPosts[item.Slug] {
			continue
		}
		seenPosts[item.Slug] = true

		changed := item.UpdatedAt
		if changed == nil {
			changed = item.PublishedAt
		}

		post := sitemap.PostRecord{
			Slug:        item.Slug,
			PublishedAt: item.PublishedAt,
			UpdatedAt:   item.UpdatedAt,
		}
		if item.ImageURL != "" {
			post.CoverImage = &sitemap.Image{Loc: item.ImageURL, Title: item.ImageTitle}
		}
		s.Posts = append(s.Posts, post)

		if author := Slugify(item.Author); author != "" {
			authors.touch(author, changed)
		}

		var categorySlug string
		for i, name := range item.Categories {
			slug := Slugify(name)
			if slug == "" {
				continue
			}
			if i == 0 {
				categorySlug = slug
				categories.touch(slug, changed)
				continue
			}
			if slug != categorySlug {
				tags.touch(slug, changed)
			}
		}
	}

	for _, t := range categories.ordered() {
		s.Categories = append(s.Categories, sitemap.CategoryRecord{Slug: t.slug, PostCount: t.count, UpdatedAt: t.updatedAt})
	}
	for _, t := range authors.ordered() {
		s.Authors = append(s.Authors, sitemap.AuthorRecord{Slug: t.slug, UpdatedAt: t.updatedAt})
	}
	for _, t := range tags.ordered() {
		s.Tags = append(s.Tags, sitemap.TagRecord{Slug: t.slug, UpdatedAt: t.updatedAt})
	}

	return s
}

// LatestChange is the newest publish or update time across all posts.
func (s *Snapshot) LatestChange() *time.Time {
	var latest *time.Time
	for _, p := range s.Posts {
		for _, t := range []*time.Time{p.PublishedAt, p.UpdatedAt} {
			if t != nil && (latest == nil || t.After(*latest)) {
				latest = t
			}
		}
	}
	if latest == nil {
		return s.Metadata.UpdatedAt
	}
	return latest
}

type term struct {
	slug      string
	count     int
	updatedAt *time.Time
}

type termIndex struct {
	order []string
	terms map[string]*term
}

func newTermIndex() *termIndex {
	return &termIndex{terms: make(map[string]*term)}
}

func (idx *termIndex) touch(slug string, changed *time.Time) {
	t, ok := idx.terms[slug]
	if !ok {
		t = &term{slug: slug}
		idx.terms[slug] = t
		idx.order = append(idx.order, slug)
	}
	t.count++
	if changed != nil && (t.updatedAt == nil || changed.After(*t.updatedAt)) {
		t.updatedAt = changed
	}
}

func (idx *termIndex) ordered() []*term {
	out := make([]*term, len(idx.order))
	for i, slug := range idx.order {
		out[i] = idx.terms[slug]
	}
	return out
}

// Repository serves the latest snapshot; SyncFeedTask replaces it.
type Repository struct {
	mu       sync.RWMutex
	snapshot *Snapshot
}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Replace(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = s
}

func (r *Repository) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *Repository) FetchPage(ctx context.Context, family sitemap.Family, page, pageSize int, filters sitemap.Filters) (*sitemap.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.Snapshot()
	if s == nil {
		return nil, ErrNotLoaded
	}

	var records []sitemap.Record
	switch family {
	case sitemap.FamilyIndex:
		records = []sitemap.Record{sitemap.IndexRecord{UpdatedAt: s.LatestChange()}}
	case sitemap.FamilyPosts:
		records = toRecords(s.Posts)
	case sitemap.FamilyCategories:
		records = toRecords(s.Categories)
	case sitemap.FamilyAuthors:
		records = toRecords(s.Authors)
	case sitemap.FamilyTags:
		records = toRecords(s.Tags)
	default:
		return nil, errors.New("unknown family: " + string(family))
	}

	return paginate(records, page, pageSize), nil
}

func toRecords[T sitemap.Record](items []T) []sitemap.Record {
	out := make([]sitemap.Record, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func paginate(records []sitemap.Record, page, pageSize int) *sitemap.Page {
	if page < 1 {
		page = 1
	}
	start := min((page-1)*pageSize, len(records))
	end := min(start+pageSize, len(records))

	return &sitemap.Page{
		Items:       records[start:end],
		HasNextPage: end < len(records),
		Total:       len(records),
	}
}

// FamilyCounts reports records per family in the current snapshot.
func (r *Repository) FamilyCounts(ctx context.Context) (map[sitemap.Family]int, error) {
	s := r.Snapshot()
	if s == nil {
		return nil, ErrNotLoaded
	}

	return map[sitemap.Family]int{
		sitemap.FamilyIndex:      1,
		sitemap.FamilyPosts:      len(s.Posts),
		sitemap.FamilyCategories: len(s.Categories),
		sitemap.FamilyAuthors:    len(s.Authors),
		sitemap.FamilyTags:       len(s.Tags),
	}, nil
}

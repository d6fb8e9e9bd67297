package sitemap

import (
	"context"
	"time"
)

type Family string

const (
	FamilyIndex      Family = "index"
	FamilyPosts      Family = "posts"
	FamilyCategories Family = "categories"
	FamilyAuthors    Family = "authors"
	FamilyTags       Family = "tags"
)

// Families lists the content families in merge order.
var Families = []Family{FamilyIndex, FamilyPosts, FamilyCategories, FamilyAuthors, FamilyTags}

type Filters struct {
	Status string
}

// PublishedOnly restricts repository reads to publicly visible content.
var PublishedOnly = Filters{Status: "published"}

type Page struct {
	Items       []Record
	HasNextPage bool
	Total       int
}

// Repository is the read-only content store the collector pages through.
// Implementations may fail transiently on any call.
type Repository interface {
	FetchPage(ctx context.Context, family Family, page, pageSize int, filters Filters) (*Page, error)
}

// Record is one content entry returned by a Repository. Each family has
// its own concrete type carrying only what its mapper needs.
type Record interface {
	Family() Family
}

type IndexRecord struct {
	// Path relative to the blog index route; empty for the index itself.
	Path      string
	UpdatedAt *time.Time
}

type PostRecord struct {
	Slug        string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Views       int
	CoverImage  *Image
	Alternates  []Alternate
}

type CategoryRecord struct {
	Slug      string
	PostCount int
	UpdatedAt *time.Time
}

type AuthorRecord struct {
	Slug      string
	UpdatedAt *time.Time
}

type TagRecord struct {
	Slug      string
	UpdatedAt *time.Time
}

func (IndexRecord) Family() Family    { return FamilyIndex }
func (PostRecord) Family() Family     { return FamilyPosts }
func (CategoryRecord) Family() Family { return FamilyCategories }
func (AuthorRecord) Family() Family   { return FamilyAuthors }
func (TagRecord) Family() Family      { return FamilyTags }

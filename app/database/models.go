package database

import (
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post is the write model for the posts table. ExternalID identifies the
// post in its upstream system; Slug may be empty until it is published.
type Post struct {
	ExternalID   string
	Slug         string
	Title        string
	Status       string
	Views        int
	AuthorSlug   string
	CategorySlug string
	TagSlugs     []string
	CoverImage   *Image
	Alternates   []Alternate
	PublishedAt  *time.Time
	UpdatedAt    *time.Time
}

type Image struct {
	URL     string
	Caption string
	Title   string
}

type Alternate struct {
	Lang string
	Href string
}

// Term is a category, author or tag row.
type Term struct {
	Slug      string
	Name      string
	UpdatedAt *time.Time
}

package feed

import (
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Slug        string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Author      string
	Categories  []string
	ImageURL    string
	ImageTitle  string
}

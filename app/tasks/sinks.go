package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/database"
	"github.com/lysyi3m/sitemap-comb/app/feed"
)

var (
	_ FeedSink = (*SnapshotSink)(nil)
	_ FeedSink = (*DatabaseSink)(nil)
)

// SnapshotSink serves the latest feed straight from memory.
type SnapshotSink struct {
	repo *feed.Repository
	now  func() time.Time
}

func NewSnapshotSink(repo *feed.Repository) *SnapshotSink {
	return &SnapshotSink{repo: repo, now: time.Now}
}

func (s *SnapshotSink) StoreFeed(ctx context.Context, metadata *feed.Metadata, items []feed.Item) error {
	s.repo.Replace(feed.BuildSnapshot(*metadata, items, s.now().UTC()))
	return nil
}

// DatabaseSink upserts feed items as published posts.
type DatabaseSink struct {
	repo *database.ContentRepository
}

func NewDatabaseSink(repo *database.ContentRepository) *DatabaseSink {
	return &DatabaseSink{repo: repo}
}

func (s *DatabaseSink) StoreFeed(ctx context.Context, metadata *feed.Metadata, items []feed.Item) error {
	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		post := toPost(item)
		if post.ExternalID == "" || post.Slug == "" {
			continue
		}

		if post.AuthorSlug != "" {
			err := s.repo.UpsertAuthor(ctx, database.Term{Slug: post.AuthorSlug, Name: item.Author})
			if err != nil {
				return fmt.Errorf("failed to store author: %w", err)
			}
		}

		if err := s.repo.UpsertPost(ctx, post); err != nil {
			return fmt.Errorf("failed to store item: %w", err)
		}
	}

	return nil
}

func toPost(item feed.Item) database.Post {
	externalID := item.GUID
	if externalID == "" {
		externalID = item.Link
	}

	post := database.Post{
		ExternalID:  externalID,
		Slug:        item.Slug,
		Title:       item.Title,
		Status:      database.StatusPublished,
		AuthorSlug:  feed.Slugify(item.Author),
		PublishedAt: item.PublishedAt,
		UpdatedAt:   item.UpdatedAt,
	}

	for i, name := range item.Categories {
		slug := feed.Slugify(name)
		if slug == "" {
			continue
		}
		if i == 0 {
			post.CategorySlug = slug
			continue
		}
		if slug != post.CategorySlug {
			post.TagSlugs = append(post.TagSlugs, slug)
		}
	}

	if item.ImageURL != "" {
		post.CoverImage = &database.Image{URL: item.ImageURL, Title: item.ImageTitle}
	}

	return post
}

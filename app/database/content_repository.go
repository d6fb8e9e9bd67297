package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lysyi3m/sitemap-comb/app/sitemap"
)

var _ sitemap.Repository = (*ContentRepository)(nil)

// ContentRepository serves sitemap records from the SQLite content store.
type ContentRepository struct {
	db *DB
}

func NewContentRepository(db *DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

func (r *ContentRepository) FetchPage(ctx context.Context, family sitemap.Family, page, pageSize int, filters sitemap.Filters) (*sitemap.Page, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page %d/%d", page, pageSize)
	}
	offset := (page - 1) * pageSize

	switch family {
	case sitemap.FamilyIndex:
		return r.fetchIndex(ctx, page, filters)
	case sitemap.FamilyPosts:
		return r.fetchPosts(ctx, offset, pageSize, filters)
	case sitemap.FamilyCategories:
		return r.fetchCategories(ctx, offset, pageSize, filters)
	case sitemap.FamilyAuthors:
		return r.fetchTerms(ctx, "authors", authorHasPosts, offset, pageSize, filters, func(slug string, rec termRow) sitemap.Record {
			return sitemap.AuthorRecord{Slug: slug, UpdatedAt: fromMillis(rec.updatedAt)}
		})
	case sitemap.FamilyTags:
		return r.fetchTerms(ctx, "tags", tagHasPosts, offset, pageSize, filters, func(slug string, rec termRow) sitemap.Record {
			return sitemap.TagRecord{Slug: slug, UpdatedAt: fromMillis(rec.updatedAt)}
		})
	}

	return nil, fmt.Errorf("unknown family: %s", family)
}

// fetchIndex returns the blog index as a single record stamped with the
// latest visible post change.
func (r *ContentRepository) fetchIndex(ctx context.Context, page int, filters sitemap.Filters) (*sitemap.Page, error) {
	if page > 1 {
		return &sitemap.Page{Total: 1}, nil
	}

	var latest sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(COALESCE(updated_at_ms, published_at_ms))
		FROM posts
		WHERE (? = '' OR status = ?)
	`, filters.Status, filters.Status).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get index timestamp: %w", err)
	}

	return &sitemap.Page{
		Items: []sitemap.Record{sitemap.IndexRecord{UpdatedAt: fromMillis(latest)}},
		Total: 1,
	}, nil
}

func (r *ContentRepository) fetchPosts(ctx context.Context, offset, limit int, filters sitemap.Filters) (*sitemap.Page, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE (? = '' OR status = ?)`,
		filters.Status, filters.Status).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(slug, ''), views,
		       COALESCE(cover_image_url, ''), COALESCE(cover_image_caption, ''), COALESCE(cover_image_title, ''),
		       published_at_ms, updated_at_ms
		FROM posts
		WHERE (? = '' OR status = ?)
		ORDER BY id
		LIMIT ? OFFSET ?
	`, filters.Status, filters.Status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var records []sitemap.PostRecord
	for rows.Next() {
		var id int64
		var rec sitemap.PostRecord
		var imageURL, caption, title string
		var publishedAt, updatedAt sql.NullInt64

		if err := rows.Scan(&id, &rec.Slug, &rec.Views, &imageURL, &caption, &title, &publishedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		rec.PublishedAt = fromMillis(publishedAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		if imageURL != "" {
			rec.CoverImage = &sitemap.Image{Loc: imageURL, Caption: caption, Title: title}
		}

		ids = append(ids, id)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	rows.Close()

	alternates, err := r.alternates(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]sitemap.Record, len(records))
	for i, rec := range records {
		rec.Alternates = alternates[ids[i]]
		items[i] = rec
	}

	return &sitemap.Page{
		Items:       items,
		HasNextPage: offset+len(items) < total,
		Total:       total,
	}, nil
}

func (r *ContentRepository) alternates(ctx context.Context, postIDs []int64) (map[int64][]sitemap.Alternate, error) {
	result := make(map[int64][]sitemap.Alternate)
	if len(postIDs) == 0 {
		return result, nil
	}

	// ids arrive sorted; rows for posts outside the page are ignored.
	rows, err := r.db.QueryContext(ctx, `
		SELECT post_id, lang, href
		FROM post_alternates
		WHERE post_id BETWEEN ? AND ?
		ORDER BY post_id, lang
	`, postIDs[0], postIDs[len(postIDs)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to query alternates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var alt sitemap.Alternate
		if err := rows.Scan(&postID, &alt.Lang, &alt.Href); err != nil {
			return nil, fmt.Errorf("failed to scan alternate: %w", err)
		}
		result[postID] = append(result[postID], alt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alternates: %w", err)
	}

	return result, nil
}

func (r *ContentRepository) fetchCategories(ctx context.Context, offset, limit int, filters sitemap.Filters) (*sitemap.Page, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.slug, COUNT(p.id), COALESCE(c.updated_at_ms, MAX(COALESCE(p.updated_at_ms, p.published_at_ms)))
		FROM categories c
		LEFT JOIN posts p ON p.category_id = c.id AND (? = '' OR p.status = ?)
		GROUP BY c.id
		ORDER BY c.id
		LIMIT ? OFFSET ?
	`, filters.Status, filters.Status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var items []sitemap.Record
	for rows.Next() {
		var rec sitemap.CategoryRecord
		var updatedAt sql.NullInt64
		if err := rows.Scan(&rec.Slug, &rec.PostCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		rec.UpdatedAt = fromMillis(updatedAt)
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return &sitemap.Page{
		Items:       items,
		HasNextPage: offset+len(items) < total,
		Total:       total,
	}, nil
}

// Visibility predicates over alias t. Both take the status filter twice.
const (
	authorHasPosts = `EXISTS (
		SELECT 1 FROM posts p
		WHERE p.author_id = t.id AND (? = '' OR p.status = ?)
	)`
	tagHasPosts = `EXISTS (
		SELECT 1 FROM post_tags pt
		JOIN posts p ON p.id = pt.post_id
		WHERE pt.tag_id = t.id AND (? = '' OR p.status = ?)
	)`
)

type termRow struct {
	updatedAt sql.NullInt64
}

// fetchTerms pages through the terms of a slug table that have at least one
// visible post. Table names and predicates come from a fixed set.
func (r *ContentRepository) fetchTerms(ctx context.Context, table, visible string, offset, limit int, filters sitemap.Filters, toRecord func(string, termRow) sitemap.Record) (*sitemap.Page, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` t WHERE `+visible,
		filters.Status, filters.Status).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT t.slug, t.updated_at_ms FROM `+table+` t WHERE `+visible+` ORDER BY t.id LIMIT ? OFFSET ?`,
		filters.Status, filters.Status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var items []sitemap.Record
	for rows.Next() {
		var slug string
		var row termRow
		if err := rows.Scan(&slug, &row.updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		items = append(items, toRecord(slug, row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}

	return &sitemap.Page{
		Items:       items,
		HasNextPage: offset+len(items) < total,
		Total:       total,
	}, nil
}

// FamilyCounts reports visible rows per family for the stats endpoint.
func (r *ContentRepository) FamilyCounts(ctx context.Context) (map[sitemap.Family]int, error) {
	counts := map[sitemap.Family]int{sitemap.FamilyIndex: 1}

	status := sitemap.PublishedOnly.Status
	queries := []struct {
		family sitemap.Family
		query  string
		args   []any
	}{
		{sitemap.FamilyPosts, `SELECT COUNT(*) FROM posts WHERE status = ?`, []any{status}},
		{sitemap.FamilyCategories, `SELECT COUNT(*) FROM categories`, nil},
		{sitemap.FamilyAuthors, `SELECT COUNT(*) FROM authors t WHERE ` + authorHasPosts, []any{status, status}},
		{sitemap.FamilyTags, `SELECT COUNT(*) FROM tags t WHERE ` + tagHasPosts, []any{status, status}},
	}
	for _, q := range queries {
		var n int
		if err := r.db.QueryRowContext(ctx, q.query, q.args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.family, err)
		}
		counts[q.family] = n
	}

	return counts, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (r *ContentRepository) UpsertAuthor(ctx context.Context, term Term) error {
	return r.upsertTerm(ctx, r.db.DB, "authors", term)
}

func (r *ContentRepository) UpsertCategory(ctx context.Context, term Term) error {
	return r.upsertTerm(ctx, r.db.DB, "categories", term)
}

func (r *ContentRepository) UpsertTag(ctx context.Context, term Term) error {
	return r.upsertTerm(ctx, r.db.DB, "tags", term)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *ContentRepository) upsertTerm(ctx context.Context, q execer, table string, term Term) error {
	if term.Slug == "" {
		return fmt.Errorf("%s: slug is required", table)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO `+table+` (slug, name, updated_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE name END,
			updated_at_ms = COALESCE(excluded.updated_at_ms, updated_at_ms)
	`, term.Slug, term.Name, toMillis(term.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", table, term.Slug, err)
	}

	return nil
}

func (r *ContentRepository) termID(ctx context.Context, q execer, table, slug string) (sql.NullInt64, error) {
	if slug == "" {
		return sql.NullInt64{}, nil
	}
	if err := r.upsertTerm(ctx, q, table, Term{Slug: slug}); err != nil {
		return sql.NullInt64{}, err
	}

	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE slug = ?`, slug).Scan(&id); err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to resolve %s %s: %w", table, slug, err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// UpsertPost stores a post keyed by ExternalID, creating referenced
// authors, categories and tags on the fly. Tags and alternates are
// replaced wholesale.
func (r *ContentRepository) UpsertPost(ctx context.Context, post Post) error {
	if post.ExternalID == "" {
		return errors.New("post external id is required")
	}
	status := post.Status
	if status == "" {
		status = StatusDraft
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	authorID, err := r.termID(ctx, tx, "authors", post.AuthorSlug)
	if err != nil {
		return err
	}
	categoryID, err := r.termID(ctx, tx, "categories", post.CategorySlug)
	if err != nil {
		return err
	}

	var slug sql.NullString
	if post.Slug != "" {
		slug = sql.NullString{String: post.Slug, Valid: true}
	}
	var imageURL, caption, title sql.NullString
	if post.CoverImage != nil && post.CoverImage.URL != "" {
		imageURL = sql.NullString{String: post.CoverImage.URL, Valid: true}
		caption = sql.NullString{String: post.CoverImage.Caption, Valid: post.CoverImage.Caption != ""}
		title = sql.NullString{String: post.CoverImage.Title, Valid: post.CoverImage.Title != ""}
	}

	var postID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO posts (
			external_id, slug, title, status, views, author_id, category_id,
			cover_image_url, cover_image_caption, cover_image_title,
			published_at_ms, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			slug = excluded.slug,
			title = excluded.title,
			status = excluded.status,
			views = excluded.views,
			author_id = excluded.author_id,
			category_id = excluded.category_id,
			cover_image_url = excluded.cover_image_url,
			cover_image_caption = excluded.cover_image_caption,
			cover_image_title = excluded.cover_image_title,
			published_at_ms = excluded.published_at_ms,
			updated_at_ms = excluded.updated_at_ms
		RETURNING id
	`, post.ExternalID, slug, post.Title, status, post.Views, authorID, categoryID,
		imageURL, caption, title,
		toMillis(post.PublishedAt), toMillis(post.UpdatedAt)).Scan(&postID)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.ExternalID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to clear post tags: %w", err)
	}
	for _, tagSlug := range post.TagSlugs {
		tagID, err := r.termID(ctx, tx, "tags", tagSlug)
		if err != nil {
			return err
		}
		if !tagID.Valid {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`,
			postID, tagID.Int64); err != nil {
			return fmt.Errorf("failed to tag post: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_alternates WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to clear post alternates: %w", err)
	}
	for _, alt := range post.Alternates {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO post_alternates (post_id, lang, href) VALUES (?, ?, ?)`,
			postID, alt.Lang, alt.Href); err != nil {
			return fmt.Errorf("failed to store alternate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post %s: %w", post.ExternalID, err)
	}

	return nil
}

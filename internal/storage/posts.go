package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hoanghai1803/pressroom/internal/models"
)

const postColumns = `id, tenant_id, title, content, excerpt, author, published_at,
	featured_image, tags, categories, seo_title, seo_description, slug,
	source_url, created_at, updated_at`

// CreatePost inserts a new post. An empty ID is replaced with a fresh UUID
// and the timestamps are set to now.
func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := s.now().UTC().Truncate(timeResolution)
	post.CreatedAt, post.UpdatedAt = now, now

	tags, categories, err := encodeLists(post)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.TenantID, post.Title, post.Content, post.Excerpt, post.Author,
		formatTimePtr(post.PublishedAt), post.FeaturedImage, tags, categories,
		post.SEOTitle, post.SEODescription, post.Slug, post.SourceURL,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// ImportPost inserts post unless the tenant already has a post with the same
// source URL. It reports whether a row was created.
func (s *Store) ImportPost(ctx context.Context, post *models.Post) (bool, error) {
	if post.SourceURL == "" {
		return false, errors.New("imported post has no source url")
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := s.now().UTC().Truncate(timeResolution)
	post.CreatedAt, post.UpdatedAt = now, now

	tags, categories, err := encodeLists(post)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, source_url) WHERE source_url != '' DO NOTHING`,
		post.ID, post.TenantID, post.Title, post.Content, post.Excerpt, post.Author,
		formatTimePtr(post.PublishedAt), post.FeaturedImage, tags, categories,
		post.SEOTitle, post.SEODescription, post.Slug, post.SourceURL,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("importing post %q: %w", post.SourceURL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected for import: %w", err)
	}
	return n > 0, nil
}

// GetPost returns a tenant's post by ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetPost(ctx context.Context, tenantID, id string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE tenant_id = ? AND id = ?`, tenantID, id)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting post %s: %w", id, err)
	}
	return post, nil
}

// ListPosts returns a tenant's posts, newest first.
func (s *Store) ListPosts(ctx context.Context, tenantID string, limit, offset int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE tenant_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	return posts, nil
}

// UpdatePost overwrites the editable fields of an existing post and bumps
// UpdatedAt. It returns ErrNotFound if the post does not exist.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = s.now().UTC().Truncate(timeResolution)

	tags, categories, err := encodeLists(post)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET
			title = ?, content = ?, excerpt = ?, author = ?, published_at = ?,
			featured_image = ?, tags = ?, categories = ?, seo_title = ?,
			seo_description = ?, slug = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		post.Title, post.Content, post.Excerpt, post.Author, formatTimePtr(post.PublishedAt),
		post.FeaturedImage, tags, categories, post.SEOTitle,
		post.SEODescription, post.Slug, formatTime(post.UpdatedAt),
		post.TenantID, post.ID,
	)
	if err != nil {
		return fmt.Errorf("updating post %s: %w", post.ID, err)
	}
	return requireRow(res, "post", post.ID)
}

func scanPost(row scanner) (*models.Post, error) {
	var (
		p                    models.Post
		publishedAt          sql.NullString
		tags, categories     string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&p.ID, &p.TenantID, &p.Title, &p.Content, &p.Excerpt, &p.Author, &publishedAt,
		&p.FeaturedImage, &tags, &categories, &p.SEOTitle, &p.SEODescription, &p.Slug,
		&p.SourceURL, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		p.PublishedAt = parseTimePtr(&publishedAt.String)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &p.Categories); err != nil {
		return nil, fmt.Errorf("decoding categories: %w", err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	return &p, nil
}

func encodeLists(post *models.Post) (tags, categories string, err error) {
	encode := func(v []string) (string, error) {
		if v == nil {
			v = []string{}
		}
		b, err := json.Marshal(v)
		return string(b), err
	}
	if tags, err = encode(post.Tags); err != nil {
		return "", "", fmt.Errorf("encoding tags: %w", err)
	}
	if categories, err = encode(post.Categories); err != nil {
		return "", "", fmt.Errorf("encoding categories: %w", err)
	}
	return tags, categories, nil
}

// requireRow turns a zero-row write into ErrNotFound.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

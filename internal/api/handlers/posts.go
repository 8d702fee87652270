package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hoanghai1803/pressroom/internal/feeds"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/storage"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// postBody is the editable part of a post.
type postBody struct {
	Title          string     `json:"title" validate:"required,max=500"`
	Content        string     `json:"content"`
	Excerpt        string     `json:"excerpt"`
	Author         string     `json:"author" validate:"max=200"`
	PublishedAt    *time.Time `json:"published_at"`
	FeaturedImage  string     `json:"featured_image" validate:"omitempty,url"`
	Tags           []string   `json:"tags" validate:"dive,required"`
	Categories     []string   `json:"categories" validate:"dive,required"`
	SEOTitle       string     `json:"seo_title"`
	SEODescription string     `json:"seo_description"`
	Slug           string     `json:"slug"`
}

// apply copies the body onto post. An empty slug is derived from the title.
func (b *postBody) apply(post *models.Post) {
	post.Title = strings.TrimSpace(b.Title)
	post.Content = b.Content
	post.Excerpt = b.Excerpt
	post.Author = b.Author
	post.PublishedAt = b.PublishedAt
	post.FeaturedImage = b.FeaturedImage
	post.Tags = b.Tags
	post.Categories = b.Categories
	post.SEOTitle = b.SEOTitle
	post.SEODescription = b.SEODescription
	post.Slug = b.Slug
	if post.Slug == "" {
		post.Slug = transform.Slugify(post.Title)
	}
}

// ListPosts handles GET /api/tenants/{tenantID}/posts?limit=&offset=.
func ListPosts(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := pathParam(r, "tenantID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit, err := queryInt(r, "limit", 50)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		posts, err := store.ListPosts(r.Context(), tenantID, limit, offset)
		if err != nil {
			writeServiceError(w, err, "Failed to list posts")
			return
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

// CreatePost handles POST /api/tenants/{tenantID}/posts.
func CreatePost(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := pathParam(r, "tenantID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body postBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		post := &models.Post{TenantID: tenantID}
		body.apply(post)
		if err := store.CreatePost(r.Context(), post); err != nil {
			writeServiceError(w, err, "Failed to create post")
			return
		}
		writeJSON(w, http.StatusCreated, post)
	}
}

// GetPost handles GET /api/tenants/{tenantID}/posts/{postID}.
func GetPost(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, postID, err := postParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		post, err := store.GetPost(r.Context(), tenantID, postID)
		if err != nil {
			writeServiceError(w, err, "Failed to get post")
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

// UpdatePost handles PUT /api/tenants/{tenantID}/posts/{postID}. It replaces
// the post's editable fields; remote copies change only on a later update
// publish.
func UpdatePost(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, postID, err := postParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body postBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		post, err := store.GetPost(r.Context(), tenantID, postID)
		if err != nil {
			writeServiceError(w, err, "Failed to get post")
			return
		}
		body.apply(post)
		if err := store.UpdatePost(r.Context(), post); err != nil {
			writeServiceError(w, err, "Failed to update post")
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

// ImportPosts handles POST /api/tenants/{tenantID}/posts/import. Items the
// tenant already has are skipped.
func ImportPosts(importer *feeds.Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := pathParam(r, "tenantID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			FeedURL string `json:"feed_url" validate:"required,url"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := importer.Import(r.Context(), tenantID, body.FeedURL)
		if err != nil {
			slog.Warn("feed import failed", "tenant_id", tenantID, "feed", body.FeedURL, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func postParams(r *http.Request) (tenantID, postID string, err error) {
	if tenantID, err = pathParam(r, "tenantID"); err != nil {
		return "", "", err
	}
	if postID, err = pathParam(r, "postID"); err != nil {
		return "", "", err
	}
	return tenantID, postID, nil
}

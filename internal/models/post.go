package models

import "time"

// Post is a tenant-owned blog post held locally and republished to external
// platforms.
type Post struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Excerpt        string     `json:"excerpt,omitempty"`
	Author         string     `json:"author,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FeaturedImage  string     `json:"featured_image,omitempty"`
	Tags           []string   `json:"tags"`
	Categories     []string   `json:"categories"`
	SEOTitle       string     `json:"seo_title,omitempty"`
	SEODescription string     `json:"seo_description,omitempty"`
	Slug           string     `json:"slug,omitempty"`
	SourceURL      string     `json:"source_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Package mapping decides which blog post attribute lands in which platform
// field.
package mapping

import (
	"fmt"

	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// BlogField names a blog post attribute that can be mapped.
type BlogField string

// Mappable blog post attributes.
const (
	Title          BlogField = "title"
	Content        BlogField = "content"
	Excerpt        BlogField = "excerpt"
	Author         BlogField = "author"
	PublishedAt    BlogField = "published_at"
	FeaturedImage  BlogField = "featured_image"
	Tags           BlogField = "tags"
	Categories     BlogField = "categories"
	SEOTitle       BlogField = "seo_title"
	SEODescription BlogField = "seo_description"
	Slug           BlogField = "slug"
)

// BlogFields lists every mappable attribute in auto-detection order.
var BlogFields = []BlogField{
	Title, Content, Excerpt, Author, PublishedAt, FeaturedImage,
	Tags, Categories, SEOTitle, SEODescription, Slug,
}

// Valid reports whether f is one of BlogFields.
func (f BlogField) Valid() bool {
	for _, known := range BlogFields {
		if f == known {
			return true
		}
	}
	return false
}

// FieldMapping routes one blog attribute into one platform field.
type FieldMapping struct {
	BlogField   BlogField       `json:"blogField" yaml:"blog"`
	TargetField string          `json:"targetField" yaml:"target"`
	Transform   *transform.Spec `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// Validate checks the mapping is structurally usable. It does not check the
// target against a live schema.
func (m FieldMapping) Validate() error {
	if !m.BlogField.Valid() {
		return fmt.Errorf("unknown blog field %q", m.BlogField)
	}
	if m.TargetField == "" {
		return fmt.Errorf("blog field %q has no target field", m.BlogField)
	}
	if m.Transform != nil && !m.Transform.Type.Valid() {
		return fmt.Errorf("blog field %q has unknown transform %q", m.BlogField, m.Transform.Type)
	}
	return nil
}

// ExtractValue reads the attribute named by f from post. Empty attributes
// return nil so callers can omit them from payloads. A missing slug is
// derived from the title.
func ExtractValue(post *models.Post, f BlogField) any {
	if post == nil {
		return nil
	}

	switch f {
	case Title:
		return nonEmpty(post.Title)
	case Content:
		return nonEmpty(post.Content)
	case Excerpt:
		return nonEmpty(post.Excerpt)
	case Author:
		return nonEmpty(post.Author)
	case PublishedAt:
		if post.PublishedAt == nil {
			return nil
		}
		return *post.PublishedAt
	case FeaturedImage:
		return nonEmpty(post.FeaturedImage)
	case Tags:
		if len(post.Tags) == 0 {
			return nil
		}
		return post.Tags
	case Categories:
		if len(post.Categories) == 0 {
			return nil
		}
		return post.Categories
	case SEOTitle:
		return nonEmpty(post.SEOTitle)
	case SEODescription:
		return nonEmpty(post.SEODescription)
	case Slug:
		if post.Slug != "" {
			return post.Slug
		}
		return nonEmpty(transform.Slugify(post.Title))
	}
	return nil
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

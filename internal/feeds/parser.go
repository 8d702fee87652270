package feeds

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/transform"
	"github.com/mmcdole/gofeed"
)

const excerptWords = 60

var htmlTagPattern = regexp.MustCompile("<[^>]*>")

// itemsToPosts converts gofeed items into posts owned by tenantID. Items
// without a title or link are skipped. At most maxItems posts are returned,
// in feed order; maxItems <= 0 means no limit.
func itemsToPosts(tenantID string, feed *gofeed.Feed, maxItems int) []models.Post {
	var posts []models.Post
	for _, item := range feed.Items {
		if maxItems > 0 && len(posts) >= maxItems {
			break
		}
		if strings.TrimSpace(item.Title) == "" || item.Link == "" {
			continue
		}
		posts = append(posts, itemToPost(tenantID, item))
	}
	return posts
}

func itemToPost(tenantID string, item *gofeed.Item) models.Post {
	content := item.Content
	if content == "" {
		content = item.Description
	}

	post := models.Post{
		TenantID:      tenantID,
		Title:         strings.TrimSpace(stripHTML(item.Title)),
		Content:       content,
		Excerpt:       truncateWords(stripHTML(item.Description), excerptWords),
		PublishedAt:   itemTime(item),
		FeaturedImage: itemImage(item),
		Tags:          item.Categories,
		SourceURL:     item.Link,
	}
	post.Slug = transform.Slugify(post.Title)

	if item.Author != nil {
		post.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		post.Author = item.Authors[0].Name
	}
	return post
}

func itemTime(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

// itemImage prefers the item image and falls back to the first image
// enclosure.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// stripHTML removes HTML tags from s and unescapes HTML entities.
func stripHTML(s string) string {
	clean := htmlTagPattern.ReplaceAllString(s, "")
	return html.UnescapeString(clean)
}

// truncateWords returns the first maxWords whitespace-delimited words from s.
// If s contains fewer than maxWords words, it is returned unchanged.
func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return strings.TrimSpace(s)
	}
	return strings.Join(words[:maxWords], " ")
}

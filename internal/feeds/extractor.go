package feeds

import (
	"fmt"
	"net/http"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// browserHeaders sets browser-like request headers so sites that check Accept
// or User-Agent don't reject the request with 406.
func browserHeaders(r *http.Request) {
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("User-Agent", userAgent)
}

// article is the readable part of a web page.
type article struct {
	Title       string
	Excerpt     string
	Content     string // sanitized HTML
	Image       string
	PublishedAt *time.Time
}

// extractArticle fetches the page at url and returns its main content using
// go-readability.
func extractArticle(url string, timeout time.Duration) (*article, error) {
	a, err := readability.FromURL(url, timeout, browserHeaders)
	if err != nil {
		return nil, fmt.Errorf("readability extraction: %w", err)
	}
	return &article{
		Title:       a.Title,
		Excerpt:     a.Excerpt,
		Content:     a.Content,
		Image:       a.Image,
		PublishedAt: a.PublishedTime,
	}, nil
}

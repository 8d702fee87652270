// Package feeds imports blog posts from RSS and Atom feeds.
package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; pressroom/1.0)"
	maxConcurrent  = 4
	defaultTimeout = 30 * time.Second
)

// Options controls an import.
type Options struct {
	// MaxItems caps how many feed items are imported. Zero means all.
	MaxItems int

	// ExtractFullContent fetches each item's page and replaces the feed
	// content with the readable article HTML.
	ExtractFullContent bool

	// Timeout bounds every HTTP request.
	Timeout time.Duration

	// RateLimit is the minimum delay between requests to one domain.
	RateLimit time.Duration
}

// PostStore persists imported posts. ImportPost reports false for a post
// whose source URL the tenant already has.
type PostStore interface {
	ImportPost(ctx context.Context, post *models.Post) (bool, error)
}

// FailedItem records a feed item that could not be imported.
type FailedItem struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Result summarizes an import.
type Result struct {
	FeedTitle string        `json:"feed_title"`
	Imported  []models.Post `json:"imported"`
	Skipped   int           `json:"skipped"`
	Failed    []FailedItem  `json:"failed"`
}

// Importer turns feed items into stored posts.
type Importer struct {
	store PostStore
	opts  Options

	client      *http.Client
	rateLimiter map[string]time.Time // per-domain last request time
	mu          sync.Mutex           // protects rateLimiter
}

// NewImporter creates an Importer.
func NewImporter(store PostStore, opts Options) *Importer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Importer{
		store: store,
		opts:  opts,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &userAgentTransport{base: http.DefaultTransport},
		},
		rateLimiter: make(map[string]time.Time),
	}
}

// userAgentTransport wraps an http.RoundTripper to inject a custom User-Agent
// header on every request.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	return t.base.RoundTrip(req)
}

// Import fetches feedURL and stores its items as posts of tenantID. Items
// already imported are counted as skipped; per-item failures are collected
// in the result rather than failing the import.
func (im *Importer) Import(ctx context.Context, tenantID, feedURL string) (*Result, error) {
	im.waitForRateLimit(extractDomain(feedURL))

	fp := gofeed.NewParser()
	fp.Client = im.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %q: %w", feedURL, err)
	}

	posts := itemsToPosts(tenantID, feed, im.opts.MaxItems)
	if im.opts.ExtractFullContent {
		im.enrich(ctx, posts)
	}

	res := &Result{
		FeedTitle: feed.Title,
		Imported:  []models.Post{},
		Failed:    []FailedItem{},
	}
	for i := range posts {
		created, err := im.store.ImportPost(ctx, &posts[i])
		if err != nil {
			slog.Warn("failed to store imported post", "url", posts[i].SourceURL, "error", err)
			res.Failed = append(res.Failed, FailedItem{URL: posts[i].SourceURL, Error: err.Error()})
			continue
		}
		if !created {
			res.Skipped++
			continue
		}
		res.Imported = append(res.Imported, posts[i])
	}

	slog.Info("imported feed",
		"tenant_id", tenantID,
		"feed", feedURL,
		"imported", len(res.Imported),
		"skipped", res.Skipped,
		"failed", len(res.Failed),
	)
	return res, nil
}

// enrich replaces feed content with the readable article for each post.
// Extraction failures keep the feed content.
func (im *Importer) enrich(ctx context.Context, posts []models.Post) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i := range posts {
		p := &posts[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			im.waitForRateLimit(extractDomain(p.SourceURL))

			a, err := extractArticle(p.SourceURL, im.opts.Timeout)
			if err != nil {
				slog.Warn("failed to extract article, keeping feed content",
					"url", p.SourceURL,
					"error", err,
				)
				return nil
			}
			if a.Content != "" {
				p.Content = a.Content
			}
			if p.Excerpt == "" {
				p.Excerpt = a.Excerpt
			}
			if p.FeaturedImage == "" {
				p.FeaturedImage = a.Image
			}
			if p.PublishedAt == nil && a.PublishedAt != nil {
				t := a.PublishedAt.UTC()
				p.PublishedAt = &t
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
}

// waitForRateLimit enforces the configured minimum delay between requests
// to the same domain. It blocks until the delay has elapsed.
func (im *Importer) waitForRateLimit(domain string) {
	if im.opts.RateLimit <= 0 {
		return
	}
	im.mu.Lock()
	lastReq, ok := im.rateLimiter[domain]
	if ok {
		elapsed := time.Since(lastReq)
		if elapsed < im.opts.RateLimit {
			im.mu.Unlock()
			time.Sleep(im.opts.RateLimit - elapsed)
			im.mu.Lock()
		}
	}
	im.rateLimiter[domain] = time.Now()
	im.mu.Unlock()
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

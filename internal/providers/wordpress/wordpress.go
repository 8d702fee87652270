// Package wordpress implements the content platform adapter for the
// WordPress REST API using application passwords.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// Compile-time interface check.
var _ providers.Adapter = (*Adapter)(nil)

const (
	maxResponseBytes = 4 << 20
	gmtLayout        = "2006-01-02T15:04:05"
)

// internalTypes are post types that cannot hold blog content.
var internalTypes = map[string]bool{
	"attachment":       true,
	"nav_menu_item":    true,
	"wp_block":         true,
	"wp_template":      true,
	"wp_template_part": true,
	"wp_navigation":    true,
	"wp_global_styles": true,
	"wp_font_family":   true,
	"wp_font_face":     true,
}

// postFields is the fixed field set every post type accepts.
var postFields = []providers.Field{
	{Slug: "title", DisplayName: "Title", Type: transform.FieldText, Required: true},
	{Slug: "content", DisplayName: "Content", Type: transform.FieldRichText},
	{Slug: "excerpt", DisplayName: "Excerpt", Type: transform.FieldText},
	{Slug: "slug", DisplayName: "Slug", Type: transform.FieldText},
	{Slug: "date", DisplayName: "Publish date", Type: transform.FieldDate},
}

// Adapter implements providers.Adapter for WordPress. Publishing is single
// phase: the post status decides visibility.
type Adapter struct {
	client  *http.Client
	timeout time.Duration
}

// New creates a WordPress adapter. A nil client uses http.DefaultClient.
func New(client *http.Client, timeout time.Duration) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Adapter{client: client, timeout: timeout}
}

// Platform returns the platform id.
func (a *Adapter) Platform() providers.Platform { return providers.PlatformWordPress }

// Name returns the display name.
func (a *Adapter) Name() string { return "WordPress" }

// ConfigFields returns the connection inputs.
func (a *Adapter) ConfigFields() []providers.ConfigField {
	return []providers.ConfigField{
		{Name: providers.KeySiteURL, Label: "Site URL", Type: "url", Required: true, Placeholder: "https://blog.example.com"},
		{Name: providers.KeyUsername, Label: "Username", Type: "text", Required: true, MaxLength: 60},
		{Name: providers.KeyApplicationPassword, Label: "Application password", Type: "password", Required: true, Sensitive: true, MinLength: 16},
		{Name: providers.KeyPostType, Label: "Post type", Type: "text", Pattern: `^[a-z0-9_-]+$`, Placeholder: "post"},
	}
}

type rendered struct {
	Raw      string `json:"raw,omitempty"`
	Rendered string `json:"rendered"`
}

func (r rendered) text() string {
	if r.Raw != "" {
		return r.Raw
	}
	return r.Rendered
}

type wpPost struct {
	ID          int      `json:"id"`
	Link        string   `json:"link"`
	Status      string   `json:"status"`
	Slug        string   `json:"slug"`
	ModifiedGMT string   `json:"modified_gmt"`
	DateGMT     string   `json:"date_gmt"`
	Title       rendered `json:"title"`
}

type wpType struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	RestBase string `json:"rest_base"`
}

type wpSite struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Home        string `json:"home"`
}

// ValidateConnection checks the credentials against the users/me endpoint.
func (a *Adapter) ValidateConnection(ctx context.Context, cfg providers.ConnectionConfig) error {
	var me struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := a.do(ctx, cfg, http.MethodGet, "/wp-json/wp/v2/users/me", nil, &me); err != nil {
		return fmt.Errorf("checking credentials: %w", err)
	}
	return nil
}

// TestConnection checks the site, the credentials and the post type.
func (a *Adapter) TestConnection(ctx context.Context, cfg providers.ConnectionConfig) (*providers.HealthCheck, error) {
	hc := &providers.HealthCheck{Healthy: true, SiteID: cfg.DefaultSite(), CollectionID: cfg.DefaultCollection()}

	site, err := a.site(ctx, cfg)
	if err != nil {
		hc.Fail("site", fmt.Sprintf("reading site index failed: %v", err))
		return hc, nil
	}
	hc.SiteName = site.Name
	hc.Pass("site", fmt.Sprintf("reached %q", site.Name))

	if err := a.ValidateConnection(ctx, cfg); err != nil {
		hc.Fail("credentials", err.Error())
		return hc, nil
	}
	hc.Pass("credentials", "application password accepted")

	t, err := a.postType(ctx, cfg, cfg.DefaultCollection())
	if err != nil {
		hc.Fail("post_type", fmt.Sprintf("post type %s: %v", cfg.DefaultCollection(), err))
		return hc, nil
	}
	hc.CollectionName = t.Name
	hc.Pass("post_type", fmt.Sprintf("post type %q available", t.Name))

	hc.Message = fmt.Sprintf("connected to %s", site.Name)
	return hc, nil
}

// Sites returns the single site the config points at.
func (a *Adapter) Sites(ctx context.Context, cfg providers.ConnectionConfig) ([]providers.Site, error) {
	site, err := a.site(ctx, cfg)
	if err != nil {
		return nil, err
	}

	domain := site.Home
	if u, err := url.Parse(site.Home); err == nil && u.Host != "" {
		domain = u.Host
	}
	return []providers.Site{{
		ID:     cfg.DefaultSite(),
		Name:   site.Name,
		Domain: domain,
	}}, nil
}

// Collections lists the post types that can hold content.
func (a *Adapter) Collections(ctx context.Context, cfg providers.ConnectionConfig, siteID string) ([]providers.Collection, error) {
	var types map[string]wpType
	if err := a.do(ctx, cfg, http.MethodGet, "/wp-json/wp/v2/types", nil, &types); err != nil {
		return nil, err
	}

	out := make([]providers.Collection, 0, len(types))
	for slug, t := range types {
		if internalTypes[slug] || t.RestBase == "" {
			continue
		}
		out = append(out, providers.Collection{ID: slug, SiteID: siteID, Name: t.Name, Slug: t.RestBase})
	}
	sortCollections(out)
	return out, nil
}

// FieldSchema returns the fixed post field set for a post type.
func (a *Adapter) FieldSchema(ctx context.Context, cfg providers.ConnectionConfig, collectionID string) (*providers.Collection, error) {
	t, err := a.postType(ctx, cfg, collectionID)
	if err != nil {
		return nil, err
	}
	fields := make([]providers.Field, len(postFields))
	copy(fields, postFields)
	return &providers.Collection{
		ID:     collectionID,
		SiteID: cfg.DefaultSite(),
		Name:   t.Name,
		Slug:   t.RestBase,
		Fields: fields,
	}, nil
}

// DoPublish creates the post. It is published directly when requested and
// saved as a draft otherwise.
func (a *Adapter) DoPublish(ctx context.Context, cfg providers.ConnectionConfig, req *providers.PublishRequest) (*providers.PublishResult, error) {
	res := &providers.PublishResult{Stage: providers.StageFieldsResolved, CollectionID: req.CollectionID, SiteID: cfg.DefaultSite()}

	body, err := providers.FieldValues(req.Post, req.FieldMappings, req.Schema)
	if err != nil {
		return res, err
	}
	body["status"] = status(req)

	var post wpPost
	if err := a.do(ctx, cfg, http.MethodPost, "/wp-json/wp/v2/"+req.Schema.Slug, body, &post); err != nil {
		if isTimeout(err) {
			return res, &providers.UnknownOutcomeError{Op: "create post", Err: err}
		}
		return res, fmt.Errorf("creating post: %w", err)
	}

	fillResult(res, &post)
	return res, nil
}

// DoUpdate overwrites an existing post.
func (a *Adapter) DoUpdate(ctx context.Context, cfg providers.ConnectionConfig, itemID string, req *providers.PublishRequest) (*providers.PublishResult, error) {
	res := &providers.PublishResult{Stage: providers.StageFieldsResolved, CollectionID: req.CollectionID, SiteID: cfg.DefaultSite(), ItemID: itemID}

	body, err := providers.FieldValues(req.Post, req.FieldMappings, req.Schema)
	if err != nil {
		return res, err
	}
	body["status"] = status(req)

	var post wpPost
	if err := a.do(ctx, cfg, http.MethodPost, "/wp-json/wp/v2/"+req.Schema.Slug+"/"+itemID, body, &post); err != nil {
		return res, fmt.Errorf("updating post %s: %w", itemID, err)
	}

	fillResult(res, &post)
	return res, nil
}

// Delete permanently removes a post.
func (a *Adapter) Delete(ctx context.Context, cfg providers.ConnectionConfig, collectionID, itemID string) error {
	t, err := a.postType(ctx, cfg, collectionID)
	if err != nil {
		return err
	}
	if err := a.do(ctx, cfg, http.MethodDelete, "/wp-json/wp/v2/"+t.RestBase+"/"+itemID+"?force=true", nil, nil); err != nil {
		return fmt.Errorf("deleting post %s: %w", itemID, err)
	}
	return nil
}

// Status fetches a post in edit context.
func (a *Adapter) Status(ctx context.Context, cfg providers.ConnectionConfig, collectionID, itemID string) (*providers.RemoteItem, error) {
	t, err := a.postType(ctx, cfg, collectionID)
	if err != nil {
		return nil, err
	}

	var post wpPost
	if err := a.do(ctx, cfg, http.MethodGet, "/wp-json/wp/v2/"+t.RestBase+"/"+itemID+"?context=edit", nil, &post); err != nil {
		return nil, err
	}

	item := &providers.RemoteItem{
		ID:      strconv.Itoa(post.ID),
		Title:   post.Title.text(),
		Slug:    post.Slug,
		IsDraft: post.Status != "publish",
	}
	if post.Status == "publish" {
		item.URL = post.Link
	}
	if ts, ok := parseGMT(post.ModifiedGMT); ok {
		item.LastUpdated = &ts
	}
	if ts, ok := parseGMT(post.DateGMT); ok && post.Status == "publish" {
		item.LastPublished = &ts
	}
	return item, nil
}

// PublishSite promotes drafts of the given post type to published. An
// empty collectionID means the configured post type. WordPress has no
// site-level publish step.
func (a *Adapter) PublishSite(ctx context.Context, cfg providers.ConnectionConfig, _, collectionID string, itemIDs []string) error {
	if collectionID == "" {
		collectionID = cfg.DefaultCollection()
	}
	t, err := a.postType(ctx, cfg, collectionID)
	if err != nil {
		return err
	}
	for _, id := range itemIDs {
		body := map[string]any{"status": "publish"}
		if err := a.do(ctx, cfg, http.MethodPost, "/wp-json/wp/v2/"+t.RestBase+"/"+id, body, nil); err != nil {
			return fmt.Errorf("publishing post %s: %w", id, err)
		}
	}
	return nil
}

// ItemURL returns the permalink of a published post.
func (a *Adapter) ItemURL(ctx context.Context, cfg providers.ConnectionConfig, _, collectionID, itemID string) (string, error) {
	item, err := a.Status(ctx, cfg, collectionID, itemID)
	if err != nil {
		return "", err
	}
	return item.URL, nil
}

func (a *Adapter) site(ctx context.Context, cfg providers.ConnectionConfig) (*wpSite, error) {
	var site wpSite
	if err := a.do(ctx, cfg, http.MethodGet, "/wp-json", nil, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

func (a *Adapter) postType(ctx context.Context, cfg providers.ConnectionConfig, slug string) (*wpType, error) {
	if slug == "" {
		slug = "post"
	}
	var t wpType
	if err := a.do(ctx, cfg, http.MethodGet, "/wp-json/wp/v2/types/"+url.PathEscape(slug), nil, &t); err != nil {
		return nil, err
	}
	if t.RestBase == "" {
		t.RestBase = slug
	}
	return &t, nil
}

func (a *Adapter) do(ctx context.Context, cfg providers.ConnectionConfig, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	base := strings.TrimRight(cfg.Value(providers.KeySiteURL), "/")

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	password := strings.ReplaceAll(cfg.Value(providers.KeyApplicationPassword), " ", "")
	req.SetBasicAuth(cfg.Value(providers.KeyUsername), password)

	slog.Debug("calling WordPress API", "method", method, "path", path)

	resp, err := a.client.Do(req)
	if err != nil {
		return &providers.ConnectionError{Platform: providers.PlatformWordPress, Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &providers.ConnectionError{Platform: providers.PlatformWordPress, Op: method + " " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &providers.APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func status(req *providers.PublishRequest) string {
	if req.PublishImmediately && !req.IsDraft {
		return "publish"
	}
	return "draft"
}

func fillResult(res *providers.PublishResult, post *wpPost) {
	res.Success = true
	res.ItemID = strconv.Itoa(post.ID)
	res.Stage = providers.StageItemCreated
	if post.Status == "publish" {
		res.Published = true
		res.Stage = providers.StageSitePublished
		res.ExternalURL = post.Link
	}
}

func parseGMT(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(gmtLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func sortCollections(cols []providers.Collection) {
	sort.Slice(cols, func(i, j int) bool { return cols[i].ID < cols[j].ID })
}

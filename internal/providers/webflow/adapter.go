package webflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// Compile-time interface check.
var _ providers.Adapter = (*Adapter)(nil)

const (
	titleField = "name"
	slugField  = "slug"
)

// Adapter implements providers.Adapter for Webflow. It holds only
// immutable options and a singleflight group for schema fetches.
type Adapter struct {
	opts    Options
	schemas singleflight.Group
}

// New creates a Webflow adapter.
func New(opts Options) *Adapter {
	return &Adapter{opts: opts.withDefaults()}
}

// Platform returns the platform id.
func (a *Adapter) Platform() providers.Platform { return providers.PlatformWebflow }

// Name returns the display name.
func (a *Adapter) Name() string { return "Webflow" }

// ConfigFields returns the connection inputs.
func (a *Adapter) ConfigFields() []providers.ConfigField {
	return []providers.ConfigField{
		{
			Name:        providers.KeyAPIToken,
			Label:       "API token",
			Type:        "password",
			Required:    true,
			Sensitive:   true,
			MinLength:   16,
			MaxLength:   256,
			Placeholder: "Site or workspace API token",
		},
		{
			Name:    providers.KeySiteID,
			Label:   "Site ID",
			Type:    "text",
			Pattern: `^[a-f0-9]{24}$`,
			Help:    "Required when the token can access more than one site",
		},
		{
			Name:     providers.KeyCollectionID,
			Label:    "Collection ID",
			Type:     "text",
			Required: true,
			Pattern:  `^[a-f0-9]{24}$`,
		},
	}
}

func (a *Adapter) client(cfg providers.ConnectionConfig) *Client {
	return NewClient(a.opts, cfg.Value(providers.KeyAPIToken))
}

// ValidateConnection checks the token and the configured site.
func (a *Adapter) ValidateConnection(ctx context.Context, cfg providers.ConnectionConfig) error {
	c := a.client(cfg)
	if siteID := cfg.Value(providers.KeySiteID); siteID != "" {
		if _, err := c.Site(ctx, siteID); err != nil {
			return fmt.Errorf("fetching site %s: %w", siteID, err)
		}
		return nil
	}
	if _, err := c.Sites(ctx); err != nil {
		return fmt.Errorf("listing sites: %w", err)
	}
	return nil
}

// TestConnection runs the Webflow connection test.
func (a *Adapter) TestConnection(ctx context.Context, cfg providers.ConnectionConfig) (*providers.HealthCheck, error) {
	return TestConnection(ctx, a.client(cfg), cfg.Value(providers.KeySiteID), cfg.Value(providers.KeyCollectionID)), nil
}

// Sites lists accessible sites.
func (a *Adapter) Sites(ctx context.Context, cfg providers.ConnectionConfig) ([]providers.Site, error) {
	return a.client(cfg).Sites(ctx)
}

// Collections lists a site's collections.
func (a *Adapter) Collections(ctx context.Context, cfg providers.ConnectionConfig, siteID string) ([]providers.Collection, error) {
	return a.client(cfg).Collections(ctx, siteID)
}

// FieldSchema fetches a collection with its fields. Concurrent fetches of
// the same collection with the same token share one request.
func (a *Adapter) FieldSchema(ctx context.Context, cfg providers.ConnectionConfig, collectionID string) (*providers.Collection, error) {
	key := tokenKey(cfg.Value(providers.KeyAPIToken)) + "/" + collectionID
	// The shared fetch outlives any one caller's cancellation. The client
	// still bounds it with its read timeout.
	shared := context.WithoutCancel(ctx)
	v, err, wasShared := a.schemas.Do(key, func() (any, error) {
		return a.client(cfg).Collection(shared, collectionID)
	})
	if err != nil {
		return nil, err
	}
	if wasShared {
		slog.Debug("shared collection schema fetch", "collection_id", collectionID)
	}
	col := *v.(*providers.Collection)
	col.Fields = append([]providers.Field(nil), col.Fields...)
	return &col, nil
}

// DoPublish runs the two-phase publish: create the item, then publish the
// site. The create call is never retried.
func (a *Adapter) DoPublish(ctx context.Context, cfg providers.ConnectionConfig, req *providers.PublishRequest) (*providers.PublishResult, error) {
	res := &providers.PublishResult{
		Stage:        providers.StageFieldsResolved,
		CollectionID: req.CollectionID,
	}
	c := a.client(cfg)

	siteID, err := a.resolveSite(ctx, c, req)
	if err != nil {
		return res, err
	}
	res.SiteID = siteID

	fieldData, err := BuildFieldData(req.Post, req.FieldMappings, req.Schema)
	if err != nil {
		return res, err
	}

	isDraft := !(req.PublishImmediately && !req.IsDraft)
	item, err := c.CreateItem(ctx, req.CollectionID, fieldData, isDraft)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return res, &providers.UnknownOutcomeError{Op: "create item", Err: err}
		}
		return res, fmt.Errorf("creating item: %w", err)
	}

	res.Success = true
	res.ItemID = item.ID
	res.Stage = providers.StageItemCreated
	slog.Info("created Webflow item",
		"post_id", req.PostID,
		"item_id", item.ID,
		"collection_id", req.CollectionID,
		"is_draft", isDraft,
	)

	a.goLive(ctx, c, req, res, fieldData, isDraft)
	return res, nil
}

// DoUpdate patches an existing item and publishes the site again.
func (a *Adapter) DoUpdate(ctx context.Context, cfg providers.ConnectionConfig, itemID string, req *providers.PublishRequest) (*providers.PublishResult, error) {
	res := &providers.PublishResult{
		Stage:        providers.StageFieldsResolved,
		CollectionID: req.CollectionID,
		ItemID:       itemID,
	}
	c := a.client(cfg)

	siteID, err := a.resolveSite(ctx, c, req)
	if err != nil {
		return res, err
	}
	res.SiteID = siteID

	fieldData, err := BuildFieldData(req.Post, req.FieldMappings, req.Schema)
	if err != nil {
		return res, err
	}

	isDraft := !(req.PublishImmediately && !req.IsDraft)
	if _, err := c.UpdateItem(ctx, req.CollectionID, itemID, fieldData, isDraft); err != nil {
		return res, fmt.Errorf("updating item %s: %w", itemID, err)
	}

	res.Success = true
	res.Stage = providers.StageItemCreated
	a.goLive(ctx, c, req, res, fieldData, isDraft)
	return res, nil
}

// goLive publishes the site for res.ItemID. A failure leaves the result a
// partial success: the item exists but is not live. A draft item stays at
// ITEM_CREATED since a site publish never makes it visible.
func (a *Adapter) goLive(ctx context.Context, c *Client, req *providers.PublishRequest, res *providers.PublishResult, fieldData map[string]any, isDraft bool) {
	err := c.PublishSite(ctx, res.SiteID, []string{res.ItemID})
	if isDraft {
		if err != nil {
			slog.Warn("site publish failed for draft item",
				"post_id", req.PostID,
				"item_id", res.ItemID,
				"site_id", res.SiteID,
				"error", err,
			)
		}
		res.Stage = providers.StageItemCreated
		res.Published = false
		res.ExternalURL = ""
		return
	}
	if err != nil {
		partial := &providers.PartialPublishError{ItemID: res.ItemID, SiteID: res.SiteID, Err: err}
		slog.Warn("site publish failed, item left as draft",
			"post_id", req.PostID,
			"item_id", res.ItemID,
			"site_id", res.SiteID,
			"error", err,
		)
		res.Stage = providers.StageOrphanedDraft
		res.Published = false
		res.ExternalURL = ""
		res.Error = partial.Error()
		res.ErrorCode = providers.CodeSitePublishFailed
		res.Retryable = true
		return
	}

	res.Stage = providers.StageSitePublished
	res.Published = true

	postSlug, _ := fieldData[slugField].(string)
	collectionSlug := ""
	if req.Schema != nil {
		collectionSlug = req.Schema.Slug
	}
	site, err := c.Site(ctx, res.SiteID)
	if err != nil {
		slog.Warn("fetching site for item URL failed", "site_id", res.SiteID, "error", err)
		return
	}
	res.ExternalURL = ItemURL(site, collectionSlug, postSlug)
}

// PublishSite publishes the site for the given items. Webflow publishes
// per site, so the collection is not needed.
func (a *Adapter) PublishSite(ctx context.Context, cfg providers.ConnectionConfig, siteID, _ string, itemIDs []string) error {
	return a.client(cfg).PublishSite(ctx, siteID, itemIDs)
}

// ItemURL builds the public URL of an existing item from the site domain,
// the collection slug and the item slug.
func (a *Adapter) ItemURL(ctx context.Context, cfg providers.ConnectionConfig, siteID, collectionID, itemID string) (string, error) {
	c := a.client(cfg)

	site, err := c.Site(ctx, siteID)
	if err != nil {
		return "", fmt.Errorf("fetching site %s: %w", siteID, err)
	}
	col, err := a.FieldSchema(ctx, cfg, collectionID)
	if err != nil {
		return "", fmt.Errorf("fetching collection %s: %w", collectionID, err)
	}
	item, err := c.Item(ctx, collectionID, itemID)
	if err != nil {
		return "", fmt.Errorf("fetching item %s: %w", itemID, err)
	}
	return ItemURL(site, col.Slug, item.stringField(slugField)), nil
}

// Delete removes an item.
func (a *Adapter) Delete(ctx context.Context, cfg providers.ConnectionConfig, collectionID, itemID string) error {
	if err := a.client(cfg).DeleteItem(ctx, collectionID, itemID); err != nil {
		return fmt.Errorf("deleting item %s: %w", itemID, err)
	}
	return nil
}

// Status fetches the remote view of an item.
func (a *Adapter) Status(ctx context.Context, cfg providers.ConnectionConfig, collectionID, itemID string) (*providers.RemoteItem, error) {
	item, err := a.client(cfg).Item(ctx, collectionID, itemID)
	if err != nil {
		return nil, err
	}
	return &providers.RemoteItem{
		ID:            item.ID,
		Title:         item.stringField(titleField),
		Slug:          item.stringField(slugField),
		IsDraft:       item.IsDraft,
		IsArchived:    item.IsArchived,
		LastUpdated:   item.LastUpdated,
		LastPublished: item.LastPublished,
		FieldData:     item.FieldData,
	}, nil
}

func (a *Adapter) resolveSite(ctx context.Context, c *Client, req *providers.PublishRequest) (string, error) {
	if req.SiteID != "" {
		return req.SiteID, nil
	}
	siteID, err := AutoDetectSiteID(ctx, c, req.CollectionID)
	if err != nil {
		return "", fmt.Errorf("resolving site: %w", err)
	}
	slog.Debug("auto-detected Webflow site", "site_id", siteID, "collection_id", req.CollectionID)
	return siteID, nil
}

// BuildFieldData serializes post into Webflow fieldData and fills in the
// slug Webflow requires when no mapping provided one.
func BuildFieldData(post *models.Post, mappings []mapping.FieldMapping, schema *providers.Collection) (map[string]any, error) {
	data, err := providers.FieldValues(post, mappings, schema)
	if err != nil {
		return nil, err
	}

	if _, ok := schema.Field(slugField); ok {
		if _, set := data[slugField]; !set {
			if slug := transform.Slugify(post.Title); slug != "" {
				data[slugField] = slug
			}
		}
	}
	return data, nil
}

// ItemURL builds the public URL of a published item.
func ItemURL(site *providers.Site, collectionSlug, postSlug string) string {
	if site == nil || site.Domain == "" || postSlug == "" {
		return ""
	}
	domain := strings.TrimPrefix(strings.TrimPrefix(site.Domain, "https://"), "http://")
	domain = strings.TrimRight(domain, "/")
	if collectionSlug == "" {
		return fmt.Sprintf("https://%s/%s", domain, postSlug)
	}
	return fmt.Sprintf("https://%s/%s/%s", domain, collectionSlug, postSlug)
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

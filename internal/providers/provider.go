// Package providers defines the contract every content platform adapter
// implements, the shared behavior wrapped around it, and the registry that
// hands adapters out by platform id.
package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hoanghai1803/pressroom/internal/drift"
	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
)

// Stage is a step of the two-phase publish state machine.
type Stage string

// Publish stages in order. A publish ends in SITE_PUBLISHED or
// ORPHANED_DRAFT before DONE.
const (
	StageStart          Stage = "START"
	StageSchemaFetched  Stage = "SCHEMA_FETCHED"
	StageFieldsResolved Stage = "FIELDS_RESOLVED"
	StageItemCreated    Stage = "ITEM_CREATED"
	StageSitePublished  Stage = "SITE_PUBLISHED"
	StageOrphanedDraft  Stage = "ORPHANED_DRAFT"
	StageDone           Stage = "DONE"
)

// PublishRequest describes one publish or update attempt. Schema and
// FieldMappings are filled in by Provider before the adapter sees the
// request.
type PublishRequest struct {
	PostID             string                 `json:"post_id"`
	IntegrationID      string                 `json:"integration_id"`
	TenantID           string                 `json:"tenant_id"`
	SiteID             string                 `json:"site_id,omitempty"`
	CollectionID       string                 `json:"collection_id,omitempty"`
	FieldMappings      []mapping.FieldMapping `json:"field_mappings,omitempty"`
	PublishImmediately bool                   `json:"publish_immediately"`
	IsDraft            bool                   `json:"is_draft"`

	Post   *models.Post `json:"-"`
	Schema *Collection  `json:"-"`
}

// PublishResult is the structured outcome of a publish or update. It is
// returned even when the attempt failed.
type PublishResult struct {
	Success       bool         `json:"success"`
	Published     bool         `json:"published"`
	ItemID        string       `json:"item_id,omitempty"`
	ExternalURL   string       `json:"external_url,omitempty"`
	SiteID        string       `json:"site_id,omitempty"`
	CollectionID  string       `json:"collection_id,omitempty"`
	Stage         Stage        `json:"stage"`
	MappingTier   mapping.Tier `json:"mapping_tier,omitempty"`
	DroppedFields []string     `json:"dropped_fields,omitempty"`
	Error         string       `json:"error,omitempty"`
	ErrorCode     string       `json:"error_code,omitempty"`
	Retryable     bool         `json:"retryable,omitempty"`
}

// Adapter is the platform-specific half of a provider.
type Adapter interface {
	Platform() Platform
	Name() string
	ConfigFields() []ConfigField

	// ValidateConnection returns nil when cfg can reach the platform.
	ValidateConnection(ctx context.Context, cfg ConnectionConfig) error
	TestConnection(ctx context.Context, cfg ConnectionConfig) (*HealthCheck, error)

	Sites(ctx context.Context, cfg ConnectionConfig) ([]Site, error)
	Collections(ctx context.Context, cfg ConnectionConfig, siteID string) ([]Collection, error)
	FieldSchema(ctx context.Context, cfg ConnectionConfig, collectionID string) (*Collection, error)

	// DoPublish and DoUpdate may return a partially filled result together
	// with an error; Provider normalizes both.
	DoPublish(ctx context.Context, cfg ConnectionConfig, req *PublishRequest) (*PublishResult, error)
	DoUpdate(ctx context.Context, cfg ConnectionConfig, itemID string, req *PublishRequest) (*PublishResult, error)
	Delete(ctx context.Context, cfg ConnectionConfig, collectionID, itemID string) error
	Status(ctx context.Context, cfg ConnectionConfig, collectionID, itemID string) (*RemoteItem, error)
	PublishSite(ctx context.Context, cfg ConnectionConfig, siteID, collectionID string, itemIDs []string) error
}

// ItemLocator is implemented by adapters that can rebuild the public URL of
// an item created earlier.
type ItemLocator interface {
	ItemURL(ctx context.Context, cfg ConnectionConfig, siteID, collectionID, itemID string) (string, error)
}

// Provider wraps an Adapter with the behavior shared by every platform.
type Provider struct {
	adapter  Adapter
	resolver *mapping.Resolver
	backoff  BackoffPolicy
	now      func() time.Time
}

// NewProvider creates a Provider.
func NewProvider(adapter Adapter, resolver *mapping.Resolver, backoff BackoffPolicy) *Provider {
	return &Provider{
		adapter:  adapter,
		resolver: resolver,
		backoff:  backoff,
		now:      time.Now,
	}
}

// Platform returns the adapter's platform id.
func (p *Provider) Platform() Platform { return p.adapter.Platform() }

// Name returns the adapter's display name.
func (p *Provider) Name() string { return p.adapter.Name() }

// ConfigFields returns the connection config inputs the adapter needs.
func (p *Provider) ConfigFields() []ConfigField { return p.adapter.ConfigFields() }

// ValidateConfig checks cfg against the adapter's declared fields.
func (p *Provider) ValidateConfig(cfg ConnectionConfig) *ValidationResult {
	res := ValidateFields(cfg, p.adapter.ConfigFields())
	if cfg.Platform != p.adapter.Platform() {
		res.add("platform", fmt.Sprintf("config is for %q, provider is %q", cfg.Platform, p.adapter.Platform()))
	}
	return res
}

// Connect validates cfg, checks the platform accepts it and lists sites.
// Listing sites is best effort.
func (p *Provider) Connect(ctx context.Context, cfg ConnectionConfig) *ConnectionResult {
	if err := p.ValidateConfig(cfg).Err(); err != nil {
		code, _ := Classify(err, CodeConfigInvalid)
		return &ConnectionResult{Error: err.Error(), ErrorCode: code, Sites: []Site{}}
	}

	if err := p.adapter.ValidateConnection(ctx, cfg); err != nil {
		code, _ := Classify(err, CodeConnection)
		slog.Warn("connection validation failed", "platform", p.Platform(), "error", err)
		return &ConnectionResult{Error: err.Error(), ErrorCode: code, Sites: []Site{}}
	}

	sites, err := RetryValue(ctx, p.backoff, "sites", func(ctx context.Context) ([]Site, error) {
		return p.adapter.Sites(ctx, cfg)
	})
	if err != nil {
		slog.Warn("listing sites after connect failed", "platform", p.Platform(), "error", err)
		sites = []Site{}
	}

	return &ConnectionResult{
		Success: true,
		Sites:   sites,
		Metadata: map[string]any{
			"connectedAt": p.now().UTC(),
			"provider":    string(p.Platform()),
		},
	}
}

// TestConnection validates cfg and runs the adapter's health check. It
// never returns an error; failures are reported in the HealthCheck.
func (p *Provider) TestConnection(ctx context.Context, cfg ConnectionConfig) *HealthCheck {
	start := p.now()

	if err := p.ValidateConfig(cfg).Err(); err != nil {
		hc := &HealthCheck{CheckedAt: start.UTC()}
		hc.Fail("config", err.Error())
		return hc
	}

	hc, err := p.adapter.TestConnection(ctx, cfg)
	if hc == nil {
		hc = &HealthCheck{}
	}
	if err != nil {
		hc.Fail("connection", err.Error())
	}
	hc.CheckedAt = start.UTC()
	hc.LatencyMs = p.now().Sub(start).Milliseconds()
	return hc
}

// Sites lists sites with retry.
func (p *Provider) Sites(ctx context.Context, cfg ConnectionConfig) ([]Site, error) {
	return RetryValue(ctx, p.backoff, "sites", func(ctx context.Context) ([]Site, error) {
		return p.adapter.Sites(ctx, cfg)
	})
}

// Collections lists the collections of a site with retry.
func (p *Provider) Collections(ctx context.Context, cfg ConnectionConfig, siteID string) ([]Collection, error) {
	return RetryValue(ctx, p.backoff, "collections", func(ctx context.Context) ([]Collection, error) {
		return p.adapter.Collections(ctx, cfg, siteID)
	})
}

// FieldSchema fetches a collection and its fields with retry.
func (p *Provider) FieldSchema(ctx context.Context, cfg ConnectionConfig, collectionID string) (*Collection, error) {
	return RetryValue(ctx, p.backoff, "field schema", func(ctx context.Context) (*Collection, error) {
		return p.adapter.FieldSchema(ctx, cfg, collectionID)
	})
}

// Publish creates the post on the platform. It always returns a result;
// failures are normalized into Error and ErrorCode.
func (p *Provider) Publish(ctx context.Context, cfg ConnectionConfig, req *PublishRequest) (res *PublishResult) {
	res = &PublishResult{Stage: StageStart}
	defer p.recoverInto(res, CodePublishError, "publish")

	if err := p.prepare(ctx, cfg, req, res); err != nil {
		return p.fail(res, err, CodePublishError, "publish", req)
	}

	out, err := p.adapter.DoPublish(ctx, cfg, req)
	res = merge(res, out)
	if err != nil {
		return p.fail(res, err, CodePublishError, "publish", req)
	}

	slog.Info("published post",
		"platform", p.Platform(),
		"post_id", req.PostID,
		"item_id", res.ItemID,
		"published", res.Published,
		"stage", res.Stage,
	)
	return res
}

// Update pushes the post to an existing remote item.
func (p *Provider) Update(ctx context.Context, cfg ConnectionConfig, itemID string, req *PublishRequest) (res *PublishResult) {
	res = &PublishResult{Stage: StageStart, ItemID: itemID}
	defer p.recoverInto(res, CodeUpdateError, "update")

	if itemID == "" {
		return p.fail(res, fmt.Errorf("%w: item id", ErrMissingIdentifier), CodeUpdateError, "update", req)
	}
	if err := p.prepare(ctx, cfg, req, res); err != nil {
		return p.fail(res, err, CodeUpdateError, "update", req)
	}

	out, err := p.adapter.DoUpdate(ctx, cfg, itemID, req)
	res = merge(res, out)
	if err != nil {
		return p.fail(res, err, CodeUpdateError, "update", req)
	}

	slog.Info("updated post",
		"platform", p.Platform(),
		"post_id", req.PostID,
		"item_id", res.ItemID,
		"published", res.Published,
	)
	return res
}

// PublishSite retries the site-level publish for an orphaned draft. A
// failure is returned as *PartialPublishError.
func (p *Provider) PublishSite(ctx context.Context, cfg ConnectionConfig, siteID, collectionID string, itemIDs []string) error {
	if siteID == "" {
		return fmt.Errorf("%w: site id", ErrMissingIdentifier)
	}
	if err := p.adapter.PublishSite(ctx, cfg, siteID, collectionID, itemIDs); err != nil {
		return &PartialPublishError{ItemID: strings.Join(itemIDs, ","), SiteID: siteID, Err: err}
	}
	return nil
}

// ItemURL returns the public URL of a live item, or "" when the adapter
// cannot build one.
func (p *Provider) ItemURL(ctx context.Context, cfg ConnectionConfig, siteID, collectionID, itemID string) string {
	l, ok := p.adapter.(ItemLocator)
	if !ok {
		return ""
	}
	u, err := l.ItemURL(ctx, cfg, siteID, collectionID, itemID)
	if err != nil {
		slog.Warn("building item URL failed",
			"platform", p.Platform(),
			"item_id", itemID,
			"error", err,
		)
		return ""
	}
	return u
}

// Delete removes a remote item.
func (p *Provider) Delete(ctx context.Context, cfg ConnectionConfig, collectionID, itemID string) error {
	if collectionID == "" || itemID == "" {
		return fmt.Errorf("%w: collection id and item id", ErrMissingIdentifier)
	}
	return p.adapter.Delete(ctx, cfg, collectionID, itemID)
}

// Status fetches the remote item with retry.
func (p *Provider) Status(ctx context.Context, cfg ConnectionConfig, collectionID, itemID string) (*RemoteItem, error) {
	return RetryValue(ctx, p.backoff, "item status", func(ctx context.Context) (*RemoteItem, error) {
		return p.adapter.Status(ctx, cfg, collectionID, itemID)
	})
}

// CheckSync compares local with the remote item. A missing remote item is
// reported as out of sync rather than as an error.
func (p *Provider) CheckSync(ctx context.Context, cfg ConnectionConfig, collectionID, itemID string, local drift.Snapshot) (*drift.Status, error) {
	if local.ItemID == "" {
		local.ItemID = itemID
	}

	item, err := p.Status(ctx, cfg, collectionID, itemID)
	if errors.Is(err, ErrNotFound) {
		return drift.Missing(local), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching remote item %s: %w", itemID, err)
	}

	return drift.Compare(local, drift.Snapshot{
		ItemID:    item.ID,
		Title:     item.Title,
		UpdatedAt: item.LastUpdated,
	}), nil
}

// prepare validates identifiers, fetches the schema and resolves mappings.
// On success req carries the schema and the kept mappings.
func (p *Provider) prepare(ctx context.Context, cfg ConnectionConfig, req *PublishRequest, res *PublishResult) error {
	if req == nil {
		return fmt.Errorf("%w: request", ErrMissingIdentifier)
	}
	if err := p.ValidateConfig(cfg).Err(); err != nil {
		return err
	}

	var missing []string
	if req.PostID == "" {
		missing = append(missing, "post id")
	}
	if req.Post == nil {
		missing = append(missing, "post")
	}
	if req.CollectionID == "" {
		req.CollectionID = cfg.DefaultCollection()
	}
	if req.CollectionID == "" {
		missing = append(missing, "collection id")
	}
	if req.SiteID == "" {
		req.SiteID = cfg.DefaultSite()
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingIdentifier, strings.Join(missing, ", "))
	}
	res.CollectionID = req.CollectionID
	res.SiteID = req.SiteID

	schema, err := p.FieldSchema(ctx, cfg, req.CollectionID)
	if err != nil {
		return fmt.Errorf("fetching collection schema: %w", err)
	}
	req.Schema = schema
	res.Stage = StageSchemaFetched

	var resolution *mapping.Resolution
	if len(req.FieldMappings) > 0 {
		resolution, err = mapping.FromRequest(req.TenantID, string(p.Platform()), req.FieldMappings, schema.Slugs())
	} else {
		resolution, err = p.resolver.Resolve(ctx, req.TenantID, string(p.Platform()), schema.Slugs())
	}
	if resolution != nil {
		res.MappingTier = resolution.Tier
		res.DroppedFields = resolution.DroppedTargets()
	}
	if err != nil {
		return &SchemaMismatchError{CollectionID: req.CollectionID, Dropped: res.DroppedFields, Err: err}
	}

	req.FieldMappings = resolution.Mappings
	res.Stage = StageFieldsResolved
	return nil
}

func (p *Provider) fail(res *PublishResult, err error, fallback, op string, req *PublishRequest) *PublishResult {
	code, retryable := Classify(err, fallback)
	res.Success = false
	res.Published = false
	res.ExternalURL = ""
	res.Error = err.Error()
	res.ErrorCode = code
	res.Retryable = retryable

	postID := ""
	if req != nil {
		postID = req.PostID
	}
	slog.Error(op+" failed",
		"platform", p.Platform(),
		"post_id", postID,
		"stage", res.Stage,
		"error_code", code,
		"error", err,
	)
	return res
}

func (p *Provider) recoverInto(res *PublishResult, code, op string) {
	if r := recover(); r != nil {
		slog.Error("panic in provider adapter",
			"platform", p.Platform(),
			"op", op,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		*res = PublishResult{
			Stage:     res.Stage,
			ItemID:    res.ItemID,
			Error:     fmt.Sprintf("internal error during %s", op),
			ErrorCode: code,
		}
	}
}

// merge copies the adapter's result over the provider's bookkeeping while
// keeping mapping details the adapter does not know about.
func merge(base, out *PublishResult) *PublishResult {
	if out == nil {
		return base
	}
	if out.MappingTier == "" {
		out.MappingTier = base.MappingTier
	}
	if out.DroppedFields == nil {
		out.DroppedFields = base.DroppedFields
	}
	if out.SiteID == "" {
		out.SiteID = base.SiteID
	}
	if out.CollectionID == "" {
		out.CollectionID = base.CollectionID
	}
	if out.ItemID == "" {
		out.ItemID = base.ItemID
	}
	if out.Stage == "" {
		out.Stage = base.Stage
	}
	return out
}

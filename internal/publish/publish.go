package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hoanghai1803/pressroom/internal/drift"
	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/storage"
)

// Options tunes a single publish or update.
type Options struct {
	SiteID             string                 `json:"site_id,omitempty"`
	CollectionID       string                 `json:"collection_id,omitempty"`
	FieldMappings      []mapping.FieldMapping `json:"field_mappings,omitempty"`
	PublishImmediately bool                   `json:"publish_immediately"`
	IsDraft            bool                   `json:"is_draft"`
}

// Publish creates the post on the integration's platform. Platform failures
// are reported in the returned result, which is also appended to the audit
// log; the error return is reserved for failures before the platform is
// reached (unknown post or integration, missing credentials, lock held).
func (s *Service) Publish(ctx context.Context, tenantID, postID, integrationID string, opts Options) (*providers.PublishResult, error) {
	post, c, err := s.load(ctx, tenantID, postID, integrationID)
	if err != nil {
		return nil, err
	}

	var res *providers.PublishResult
	err = s.withLock(ctx, postID, integrationID, func() error {
		req := s.request(post, c, opts)
		res = c.provider.Publish(ctx, c.config, req)
		s.record(ctx, models.ActionPublish, postID, integrationID, res)
		return nil
	})
	return res, err
}

// Update pushes the post's current content to the item created by an
// earlier publish. The earlier site and collection are reused unless opts
// names others.
func (s *Service) Update(ctx context.Context, tenantID, postID, integrationID string, opts Options) (*providers.PublishResult, error) {
	post, c, err := s.load(ctx, tenantID, postID, integrationID)
	if err != nil {
		return nil, err
	}

	var res *providers.PublishResult
	err = s.withLock(ctx, postID, integrationID, func() error {
		current, err := s.current(ctx, postID, integrationID)
		if err != nil {
			return err
		}
		if opts.SiteID == "" {
			opts.SiteID = current.SiteID
		}
		if opts.CollectionID == "" {
			opts.CollectionID = current.CollectionID
		}

		req := s.request(post, c, opts)
		res = c.provider.Update(ctx, c.config, current.ItemID, req)
		s.record(ctx, models.ActionUpdate, postID, integrationID, res)
		return nil
	})
	return res, err
}

// PublishSite retries the site-level publish for a post whose item was
// created but left as an orphaned draft.
func (s *Service) PublishSite(ctx context.Context, tenantID, postID, integrationID string) (*providers.PublishResult, error) {
	_, c, err := s.load(ctx, tenantID, postID, integrationID)
	if err != nil {
		return nil, err
	}

	var res *providers.PublishResult
	err = s.withLock(ctx, postID, integrationID, func() error {
		current, err := s.current(ctx, postID, integrationID)
		if err != nil {
			return err
		}

		res = &providers.PublishResult{
			ItemID:       current.ItemID,
			SiteID:       current.SiteID,
			CollectionID: current.CollectionID,
			ExternalURL:  current.ExternalURL,
		}
		if err := c.provider.PublishSite(ctx, c.config, current.SiteID, current.CollectionID, []string{current.ItemID}); err != nil {
			code, retryable := providers.Classify(err, providers.CodeSitePublishFailed)
			res.Success = true
			res.Stage = providers.StageOrphanedDraft
			res.Error = err.Error()
			res.ErrorCode = code
			res.Retryable = retryable
			slog.Warn("site publish retry failed",
				"post_id", postID,
				"integration_id", integrationID,
				"item_id", current.ItemID,
				"error", err,
			)
		} else {
			res.Success = true
			res.Published = true
			res.Stage = providers.StageSitePublished
			if res.ExternalURL == "" {
				res.ExternalURL = c.provider.ItemURL(ctx, c.config, current.SiteID, current.CollectionID, current.ItemID)
			}
			slog.Info("site publish retry succeeded",
				"post_id", postID,
				"integration_id", integrationID,
				"item_id", current.ItemID,
				"url", res.ExternalURL,
			)
		}
		s.record(ctx, models.ActionPublishSite, postID, integrationID, res)
		return nil
	})
	return res, err
}

// Unpublish deletes the post's remote item. An item already gone from the
// platform counts as deleted.
func (s *Service) Unpublish(ctx context.Context, tenantID, postID, integrationID string) error {
	_, c, err := s.load(ctx, tenantID, postID, integrationID)
	if err != nil {
		return err
	}

	return s.withLock(ctx, postID, integrationID, func() error {
		current, err := s.current(ctx, postID, integrationID)
		if err != nil {
			return err
		}

		res := &providers.PublishResult{
			ItemID:       current.ItemID,
			SiteID:       current.SiteID,
			CollectionID: current.CollectionID,
			Success:      true,
		}
		err = c.provider.Delete(ctx, c.config, current.CollectionID, current.ItemID)
		if errors.Is(err, providers.ErrNotFound) {
			slog.Info("remote item already deleted", "post_id", postID, "item_id", current.ItemID)
			err = nil
		}
		if err != nil {
			res.Success = false
			res.Error = err.Error()
			res.ErrorCode, res.Retryable = providers.Classify(err, providers.CodePublishError)
		}
		s.record(ctx, models.ActionDelete, postID, integrationID, res)
		if err != nil {
			return fmt.Errorf("deleting remote item %s: %w", current.ItemID, err)
		}
		return nil
	})
}

// CheckSync compares a caller-supplied local snapshot with a remote item.
func (s *Service) CheckSync(ctx context.Context, tenantID, integrationID, collectionID, itemID string, local drift.Snapshot) (*drift.Status, error) {
	c, err := s.connect(ctx, tenantID, integrationID)
	if err != nil {
		return nil, err
	}
	if collectionID == "" {
		collectionID = c.config.DefaultCollection()
	}
	return c.provider.CheckSync(ctx, c.config, collectionID, itemID, local)
}

// CheckPostSync compares a stored post with the item it was published as.
func (s *Service) CheckPostSync(ctx context.Context, tenantID, postID, integrationID string) (*drift.Status, error) {
	post, c, err := s.load(ctx, tenantID, postID, integrationID)
	if err != nil {
		return nil, err
	}
	current, err := s.current(ctx, postID, integrationID)
	if err != nil {
		return nil, err
	}

	updated := post.UpdatedAt
	local := drift.Snapshot{ItemID: current.ItemID, Title: post.Title, UpdatedAt: &updated}
	return c.provider.CheckSync(ctx, c.config, current.CollectionID, current.ItemID, local)
}

// History returns the audit log of a tenant's post, newest first. An empty
// integrationID covers all integrations.
func (s *Service) History(ctx context.Context, tenantID, postID, integrationID string) ([]models.PublishRecord, error) {
	if _, err := s.store.GetPost(ctx, tenantID, postID); err != nil {
		return nil, fmt.Errorf("loading post %s: %w", postID, err)
	}
	return s.store.ListPublishResults(ctx, postID, integrationID)
}

func (s *Service) load(ctx context.Context, tenantID, postID, integrationID string) (*models.Post, *connection, error) {
	post, err := s.store.GetPost(ctx, tenantID, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading post %s: %w", postID, err)
	}
	c, err := s.connect(ctx, tenantID, integrationID)
	if err != nil {
		return nil, nil, err
	}
	return post, c, nil
}

func (s *Service) current(ctx context.Context, postID, integrationID string) (*models.PublishRecord, error) {
	rec, err := s.store.CurrentPublication(ctx, postID, integrationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotPublished
	}
	if err != nil {
		return nil, fmt.Errorf("loading current publication: %w", err)
	}
	return rec, nil
}

func (s *Service) request(post *models.Post, c *connection, opts Options) *providers.PublishRequest {
	return &providers.PublishRequest{
		PostID:             post.ID,
		IntegrationID:      c.integration.ID,
		TenantID:           post.TenantID,
		SiteID:             opts.SiteID,
		CollectionID:       opts.CollectionID,
		FieldMappings:      opts.FieldMappings,
		PublishImmediately: opts.PublishImmediately,
		IsDraft:            opts.IsDraft,
		Post:               post,
	}
}

// record appends res to the audit log. The remote side effect has already
// happened, so a failed append is logged rather than returned.
func (s *Service) record(ctx context.Context, action, postID, integrationID string, res *providers.PublishResult) {
	rec := &models.PublishRecord{
		PostID:        postID,
		IntegrationID: integrationID,
		Action:        action,
		Success:       res.Success,
		Published:     res.Published,
		ItemID:        res.ItemID,
		SiteID:        res.SiteID,
		CollectionID:  res.CollectionID,
		ExternalURL:   res.ExternalURL,
		Stage:         string(res.Stage),
		Error:         res.Error,
		ErrorCode:     res.ErrorCode,
	}
	if err := s.store.AppendPublishResult(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("failed to record publish result",
			"post_id", postID,
			"integration_id", integrationID,
			"action", action,
			"item_id", res.ItemID,
			"error", err,
		)
	}
}

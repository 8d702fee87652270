package webflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/pressroom/internal/providers"
)

// ErrCollectionNotFound is returned when no accessible site holds the
// requested collection.
var ErrCollectionNotFound = errors.New("collection not found in any accessible site")

// ErrNoSites is returned when the token cannot access any site.
var ErrNoSites = errors.New("token has no accessible sites")

const probeConcurrency = 4

// AutoDetectSiteID picks the site for a token. A token scoped to one site
// always yields that site. Otherwise the site holding collectionID wins,
// first in site order. Several sites and no hint is ErrAmbiguousSite.
func AutoDetectSiteID(ctx context.Context, c *Client, collectionID string) (string, error) {
	sites, err := c.Sites(ctx)
	if err != nil {
		return "", fmt.Errorf("listing sites: %w", err)
	}

	site, err := detectSite(ctx, c, sites, collectionID)
	if err != nil {
		return "", err
	}
	return site.ID, nil
}

// detectSite applies the AutoDetectSiteID rules to an already fetched list.
func detectSite(ctx context.Context, c *Client, sites []providers.Site, collectionID string) (*providers.Site, error) {
	switch {
	case len(sites) == 0:
		return nil, ErrNoSites
	case len(sites) == 1:
		return &sites[0], nil
	case collectionID == "":
		return nil, fmt.Errorf("%w (%d sites)", providers.ErrAmbiguousSite, len(sites))
	}
	return findCollectionSite(ctx, c, sites, collectionID)
}

// findCollectionSite probes every site's collections concurrently and
// returns the first site, in listing order, that holds collectionID.
// Sites whose probe fails are skipped.
func findCollectionSite(ctx context.Context, c *Client, sites []providers.Site, collectionID string) (*providers.Site, error) {
	found := make([]bool, len(sites))
	probeErrs := make([]error, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)

	for i, site := range sites {
		g.Go(func() error {
			cols, err := c.Collections(gctx, site.ID)
			if err != nil {
				probeErrs[i] = err
				slog.Warn("probing site collections failed", "site_id", site.ID, "error", err)
				return nil
			}
			for _, col := range cols {
				if col.ID == collectionID {
					found[i] = true
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range sites {
		if found[i] {
			return &sites[i], nil
		}
	}

	if err := errors.Join(probeErrs...); err != nil {
		return nil, fmt.Errorf("%w: %s (some probes failed: %v)", ErrCollectionNotFound, collectionID, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
}

// TestConnection checks the token, resolves the site and verifies the
// collection when one is configured.
func TestConnection(ctx context.Context, c *Client, siteID, collectionID string) *providers.HealthCheck {
	hc := &providers.HealthCheck{Healthy: true, CollectionID: collectionID}

	sites, err := c.Sites(ctx)
	if err != nil {
		hc.Fail("token", fmt.Sprintf("listing sites failed: %v", err))
		return hc
	}
	hc.Pass("token", fmt.Sprintf("%d accessible sites", len(sites)))

	var site *providers.Site
	if siteID != "" {
		for i := range sites {
			if sites[i].ID == siteID {
				site = &sites[i]
				break
			}
		}
		if site == nil {
			hc.Fail("site", fmt.Sprintf("site %s is not accessible with this token", siteID))
			return hc
		}
	} else {
		if site, err = detectSite(ctx, c, sites, collectionID); err != nil {
			hc.Fail("site", err.Error())
			return hc
		}
	}
	hc.SiteID = site.ID
	hc.SiteName = site.Name
	hc.Pass("site", fmt.Sprintf("resolved site %q", site.Name))

	if pages, err := c.Pages(ctx, site.ID); err != nil {
		hc.Warn("pages", fmt.Sprintf("listing pages failed: %v", err))
	} else {
		hc.Pass("pages", fmt.Sprintf("%d pages", len(pages)))
	}

	if collectionID != "" {
		col, err := c.Collection(ctx, collectionID)
		if err != nil {
			hc.Fail("collection", fmt.Sprintf("collection %s: %v", collectionID, err))
			return hc
		}
		hc.CollectionName = col.Name
		hc.Pass("collection", fmt.Sprintf("collection %q has %d fields", col.Name, len(col.Fields)))
	}

	hc.Message = fmt.Sprintf("connected to %s", site.Name)
	return hc
}

package providers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// FieldValues serializes post through mappings that were already filtered
// against schema. Each value goes through the declared transform and the
// target field's type coercion; empty values are omitted. It fails when no
// title value results.
func FieldValues(post *models.Post, mappings []mapping.FieldMapping, schema *Collection) (map[string]any, error) {
	if post == nil || schema == nil {
		return nil, fmt.Errorf("%w: post and schema", ErrMissingIdentifier)
	}

	data := make(map[string]any, len(mappings)+1)
	hasTitle := false

	for _, m := range mappings {
		field, ok := schema.Field(m.TargetField)
		if !ok {
			slog.Warn("skipping mapping to unknown field", "target_field", m.TargetField)
			continue
		}

		v := mapping.ExtractValue(post, m.BlogField)
		if v == nil {
			continue
		}
		v = transform.Value(m.Transform, field.Type, v)
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}

		data[field.Slug] = v
		if m.BlogField == mapping.Title {
			hasTitle = true
		}
	}

	if !hasTitle {
		return nil, &SchemaMismatchError{CollectionID: schema.ID, Err: mapping.ErrNoTitleField}
	}
	return data, nil
}

// DefaultCollection returns the collection a config targets when a request
// does not name one.
func (c ConnectionConfig) DefaultCollection() string {
	switch {
	case c.Webflow != nil:
		return c.Webflow.CollectionID
	case c.WordPress != nil:
		if c.WordPress.PostType == "" {
			return "post"
		}
		return c.WordPress.PostType
	}
	return c.Extra[KeyCollectionID]
}

// DefaultSite returns the site a config targets when a request does not
// name one.
func (c ConnectionConfig) DefaultSite() string {
	switch {
	case c.Webflow != nil:
		return c.Webflow.SiteID
	case c.WordPress != nil:
		return c.WordPress.SiteURL
	}
	return c.Extra[KeySiteID]
}

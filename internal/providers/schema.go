package providers

import (
	"time"

	"github.com/hoanghai1803/pressroom/internal/transform"
)

// Site is a read-only mirror of a platform site.
type Site struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ShortName     string     `json:"short_name,omitempty"`
	Domain        string     `json:"domain,omitempty"`
	LastPublished *time.Time `json:"last_published,omitempty"`
}

// Collection is a content type within a site. Fields is only populated when
// the schema was requested.
type Collection struct {
	ID     string  `json:"id"`
	SiteID string  `json:"site_id,omitempty"`
	Name   string  `json:"name"`
	Slug   string  `json:"slug"`
	Fields []Field `json:"fields,omitempty"`
}

// Slugs returns the field slugs in schema order.
func (c *Collection) Slugs() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Slug)
	}
	return out
}

// Field looks up a field by slug.
func (c *Collection) Field(slug string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Slug == slug {
			return f, true
		}
	}
	return Field{}, false
}

// Field is one entry of a collection schema.
type Field struct {
	ID          string              `json:"id,omitempty"`
	Slug        string              `json:"slug"`
	DisplayName string              `json:"display_name"`
	Type        transform.FieldType `json:"type"`
	Required    bool                `json:"required"`
}

// RemoteItem is the platform's current view of a published item.
type RemoteItem struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug,omitempty"`
	IsDraft       bool           `json:"is_draft"`
	IsArchived    bool           `json:"is_archived"`
	LastUpdated   *time.Time     `json:"last_updated,omitempty"`
	LastPublished *time.Time     `json:"last_published,omitempty"`
	URL           string         `json:"url,omitempty"`
	FieldData     map[string]any `json:"field_data,omitempty"`
}

// Check is one step of a connection test.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// HealthCheck is the structured outcome of TestConnection.
type HealthCheck struct {
	Healthy        bool      `json:"healthy"`
	Message        string    `json:"message"`
	SiteID         string    `json:"site_id,omitempty"`
	SiteName       string    `json:"site_name,omitempty"`
	CollectionID   string    `json:"collection_id,omitempty"`
	CollectionName string    `json:"collection_name,omitempty"`
	Checks         []Check   `json:"checks"`
	LatencyMs      int64     `json:"latency_ms"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Pass records a passed step.
func (h *HealthCheck) Pass(name, msg string) {
	h.Checks = append(h.Checks, Check{Name: name, Passed: true, Message: msg})
}

// Warn records a failed step that does not make the check unhealthy.
func (h *HealthCheck) Warn(name, msg string) {
	h.Checks = append(h.Checks, Check{Name: name, Passed: false, Message: msg})
}

// Fail records a failed step and marks the check unhealthy.
func (h *HealthCheck) Fail(name, msg string) {
	h.Checks = append(h.Checks, Check{Name: name, Passed: false, Message: msg})
	h.Healthy = false
	h.Message = msg
}

// ConnectionResult is returned by Connect.
type ConnectionResult struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Sites     []Site         `json:"sites"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

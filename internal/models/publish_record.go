package models

import "time"

// PublishRecord is one append-only audit entry for a publish attempt, keyed
// by (PostID, IntegrationID, Attempt).
type PublishRecord struct {
	ID            int64     `json:"id"`
	PostID        string    `json:"post_id"`
	IntegrationID string    `json:"integration_id"`
	Attempt       int       `json:"attempt"`
	Action        string    `json:"action"`
	Success       bool      `json:"success"`
	Published     bool      `json:"published"`
	ItemID        string    `json:"item_id,omitempty"`
	SiteID        string    `json:"site_id,omitempty"`
	CollectionID  string    `json:"collection_id,omitempty"`
	ExternalURL   string    `json:"external_url,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Publish record actions.
const (
	ActionPublish     = "publish"
	ActionUpdate      = "update"
	ActionPublishSite = "publish_site"
	ActionDelete      = "delete"
)

package models

import "time"

// Integration statuses.
const (
	IntegrationStatusActive   = "active"
	IntegrationStatusInactive = "inactive"
	IntegrationStatusError    = "error"
	IntegrationStatusPending  = "pending"
)

// Integration health values.
const (
	HealthHealthy = "healthy"
	HealthWarning = "warning"
	HealthError   = "error"
	HealthUnknown = "unknown"
)

// Integration binds a tenant to one external content platform. Config holds
// the sealed connection config and is never serialized to API clients.
type Integration struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Platform      string     `json:"platform"`
	Name          string     `json:"name"`
	Config        string     `json:"-"`
	Status        string     `json:"status"`
	HealthStatus  string     `json:"health_status"`
	LastError     string     `json:"last_error,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasCredentials reports whether the integration still holds a sealed config.
// Disconnected integrations keep their row but lose their credentials.
func (i *Integration) HasCredentials() bool {
	return i.Config != ""
}

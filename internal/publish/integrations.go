package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/providers"
)

// IntegrationView is an integration as shown to API clients, with its
// sensitive config values masked.
type IntegrationView struct {
	models.Integration
	MaskedConfig map[string]string `json:"config,omitempty"`
}

// Connected is the outcome of creating an integration or rotating its
// credentials.
type Connected struct {
	Integration *IntegrationView            `json:"integration"`
	Connection  *providers.ConnectionResult `json:"connection"`
}

// CreateIntegration validates values, checks them against the platform and
// stores the integration with its credentials sealed. An integration whose
// credentials the platform rejects is still stored, in the error state, so
// the tenant can rotate them later. Invalid values are not stored.
func (s *Service) CreateIntegration(ctx context.Context, tenantID, platform, name string, values map[string]string) (*Connected, error) {
	p, err := s.registry.Get(providers.Platform(platform))
	if err != nil {
		return nil, err
	}

	cfg := providers.NewConnectionConfig(p.Platform(), values)
	if err := p.ValidateConfig(cfg).Err(); err != nil {
		return nil, err
	}

	conn := p.Connect(ctx, cfg)

	sealed, err := providers.MarshalSealed(s.cipher, cfg, p.ConfigFields())
	if err != nil {
		return nil, fmt.Errorf("sealing credentials: %w", err)
	}

	if name == "" {
		name = p.Name()
	}
	in := &models.Integration{
		TenantID: tenantID,
		Platform: string(p.Platform()),
		Name:     name,
		Config:   sealed,
	}
	applyConnection(in, conn)

	if err := s.store.CreateIntegration(ctx, in); err != nil {
		return nil, fmt.Errorf("storing integration: %w", err)
	}

	slog.Info("created integration",
		"tenant_id", tenantID,
		"integration_id", in.ID,
		"platform", in.Platform,
		"connected", conn.Success,
	)
	return &Connected{Integration: s.view(in, p, cfg), Connection: conn}, nil
}

// RotateCredentials replaces an integration's credentials. Values left
// empty keep their current setting, so a caller can rotate just the token.
func (s *Service) RotateCredentials(ctx context.Context, tenantID, integrationID string, values map[string]string) (*Connected, error) {
	in, err := s.store.GetIntegration(ctx, tenantID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("loading integration %s: %w", integrationID, err)
	}
	p, err := s.registry.Get(providers.Platform(in.Platform))
	if err != nil {
		return nil, err
	}

	cfg := providers.NewConnectionConfig(p.Platform(), nil)
	if in.HasCredentials() {
		if cfg, err = providers.UnmarshalSealed(s.cipher, in.Config, p.ConfigFields()); err != nil {
			return nil, fmt.Errorf("opening credentials for integration %s: %w", in.ID, err)
		}
	}
	for k, v := range values {
		if strings.TrimSpace(v) != "" {
			cfg.Set(k, v)
		}
	}
	if err := p.ValidateConfig(cfg).Err(); err != nil {
		return nil, err
	}

	conn := p.Connect(ctx, cfg)

	sealed, err := providers.MarshalSealed(s.cipher, cfg, p.ConfigFields())
	if err != nil {
		return nil, fmt.Errorf("sealing credentials: %w", err)
	}
	in.Config = sealed
	applyConnection(in, conn)

	if err := s.store.UpdateIntegrationConfig(ctx, tenantID, in.ID, in.Config, in.Status); err != nil {
		return nil, fmt.Errorf("storing rotated credentials: %w", err)
	}
	if err := s.store.RecordHealth(ctx, in.ID, in.HealthStatus, in.LastError, s.now()); err != nil {
		slog.Warn("failed to record health after rotation", "integration_id", in.ID, "error", err)
	}

	slog.Info("rotated integration credentials",
		"tenant_id", tenantID,
		"integration_id", in.ID,
		"connected", conn.Success,
	)
	return &Connected{Integration: s.view(in, p, cfg), Connection: conn}, nil
}

// Disconnect clears an integration's credentials. Publish history is kept.
func (s *Service) Disconnect(ctx context.Context, tenantID, integrationID string) error {
	if err := s.store.DisconnectIntegration(ctx, tenantID, integrationID); err != nil {
		return fmt.Errorf("disconnecting integration %s: %w", integrationID, err)
	}
	slog.Info("disconnected integration", "tenant_id", tenantID, "integration_id", integrationID)
	return nil
}

// Integration returns one integration with its config masked.
func (s *Service) Integration(ctx context.Context, tenantID, integrationID string) (*IntegrationView, error) {
	in, err := s.store.GetIntegration(ctx, tenantID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("loading integration %s: %w", integrationID, err)
	}
	return s.maskedView(in), nil
}

// Integrations lists a tenant's integrations with their configs masked.
func (s *Service) Integrations(ctx context.Context, tenantID string) ([]IntegrationView, error) {
	list, err := s.store.ListIntegrations(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]IntegrationView, 0, len(list))
	for i := range list {
		out = append(out, *s.maskedView(&list[i]))
	}
	return out, nil
}

// TestIntegration runs the provider health check for a tenant's
// integration and records the outcome.
func (s *Service) TestIntegration(ctx context.Context, tenantID, integrationID string) (*providers.HealthCheck, error) {
	in, err := s.store.GetIntegration(ctx, tenantID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("loading integration %s: %w", integrationID, err)
	}
	return s.CheckIntegration(ctx, in)
}

// CheckIntegration is TestIntegration for an already loaded integration.
func (s *Service) CheckIntegration(ctx context.Context, in *models.Integration) (*providers.HealthCheck, error) {
	c, err := s.open(in)
	if err != nil {
		return nil, err
	}

	hc := c.provider.TestConnection(ctx, c.config)

	health, lastError := healthStatus(hc)
	if err := s.store.RecordHealth(ctx, in.ID, health, lastError, hc.CheckedAt); err != nil {
		return hc, fmt.Errorf("recording health: %w", err)
	}

	slog.Info("checked integration",
		"integration_id", in.ID,
		"platform", in.Platform,
		"healthy", hc.Healthy,
		"latency_ms", hc.LatencyMs,
	)
	return hc, nil
}

// Sites lists the sites reachable through an integration.
func (s *Service) Sites(ctx context.Context, tenantID, integrationID string) ([]providers.Site, error) {
	c, err := s.connect(ctx, tenantID, integrationID)
	if err != nil {
		return nil, err
	}
	return c.provider.Sites(ctx, c.config)
}

// Collections lists the collections of a site.
func (s *Service) Collections(ctx context.Context, tenantID, integrationID, siteID string) ([]providers.Collection, error) {
	c, err := s.connect(ctx, tenantID, integrationID)
	if err != nil {
		return nil, err
	}
	return c.provider.Collections(ctx, c.config, siteID)
}

// FieldSchema returns a collection with its fields.
func (s *Service) FieldSchema(ctx context.Context, tenantID, integrationID, collectionID string) (*providers.Collection, error) {
	c, err := s.connect(ctx, tenantID, integrationID)
	if err != nil {
		return nil, err
	}
	return c.provider.FieldSchema(ctx, c.config, collectionID)
}

// Mapping returns the tenant's stored mapping for platform. It is empty
// when resolution falls back to auto-detection.
func (s *Service) Mapping(ctx context.Context, tenantID, platform string) ([]mapping.FieldMapping, error) {
	if _, err := s.registry.Get(providers.Platform(platform)); err != nil {
		return nil, err
	}
	stored, err := s.store.StoredMapping(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = []mapping.FieldMapping{}
	}
	return stored, nil
}

// SaveMapping replaces the tenant's stored mapping for platform.
func (s *Service) SaveMapping(ctx context.Context, tenantID, platform string, mappings []mapping.FieldMapping) error {
	if _, err := s.registry.Get(providers.Platform(platform)); err != nil {
		return err
	}
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return &providers.ConfigValidationError{
				Fields: map[string][]string{"mappings": {err.Error()}},
			}
		}
	}
	return s.store.SaveMapping(ctx, tenantID, platform, mappings)
}

func (s *Service) view(in *models.Integration, p *providers.Provider, cfg providers.ConnectionConfig) *IntegrationView {
	return &IntegrationView{Integration: *in, MaskedConfig: providers.MaskConfig(cfg, p.ConfigFields())}
}

// maskedView opens the stored config only to mask it. A config that cannot
// be opened is shown without values.
func (s *Service) maskedView(in *models.Integration) *IntegrationView {
	v := &IntegrationView{Integration: *in}
	if !in.HasCredentials() {
		return v
	}
	c, err := s.open(in)
	if err != nil {
		slog.Warn("cannot open integration config for display", "integration_id", in.ID, "error", err)
		return v
	}
	v.MaskedConfig = providers.MaskConfig(c.config, c.provider.ConfigFields())
	return v
}

func applyConnection(in *models.Integration, conn *providers.ConnectionResult) {
	if conn.Success {
		in.Status = models.IntegrationStatusActive
		in.HealthStatus = models.HealthHealthy
		in.LastError = ""
		return
	}
	in.Status = models.IntegrationStatusError
	in.HealthStatus = models.HealthError
	in.LastError = conn.Error
}

// healthStatus maps a check to the stored health. A healthy check with a
// failed step is a warning.
func healthStatus(hc *providers.HealthCheck) (health, lastError string) {
	for _, c := range hc.Checks {
		if !c.Passed {
			lastError = c.Name + ": " + c.Message
			break
		}
	}
	switch {
	case !hc.Healthy:
		if lastError == "" {
			lastError = "health check failed"
		}
		return models.HealthError, lastError
	case lastError != "":
		return models.HealthWarning, lastError
	}
	return models.HealthHealthy, ""
}

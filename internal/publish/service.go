// Package publish ties posts, integrations and platform providers together.
// It owns credential handling, per-post locking and the publish audit log;
// the platform work itself is delegated to providers.Provider.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/pressroom/internal/lock"
	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/storage"
)

var (
	// ErrInProgress is returned when another publish for the same post and
	// integration holds the lock.
	ErrInProgress = errors.New("a publish for this post and integration is already in progress")

	// ErrNotConnected is returned when an integration has no credentials.
	ErrNotConnected = errors.New("integration is not connected")

	// ErrNotPublished is returned by operations that need an existing remote
	// item when the post has none on the integration.
	ErrNotPublished = errors.New("post is not published to this integration")
)

// Store is the persistence the service needs. *storage.Store implements it.
type Store interface {
	GetPost(ctx context.Context, tenantID, id string) (*models.Post, error)

	CreateIntegration(ctx context.Context, in *models.Integration) error
	GetIntegration(ctx context.Context, tenantID, id string) (*models.Integration, error)
	ListIntegrations(ctx context.Context, tenantID string) ([]models.Integration, error)
	UpdateIntegrationConfig(ctx context.Context, tenantID, id, config, status string) error
	DisconnectIntegration(ctx context.Context, tenantID, id string) error
	RecordHealth(ctx context.Context, id, health, lastError string, checkedAt time.Time) error

	StoredMapping(ctx context.Context, tenantID, platform string) ([]mapping.FieldMapping, error)
	SaveMapping(ctx context.Context, tenantID, platform string, mappings []mapping.FieldMapping) error

	AppendPublishResult(ctx context.Context, rec *models.PublishRecord) error
	ListPublishResults(ctx context.Context, postID, integrationID string) ([]models.PublishRecord, error)
	CurrentPublication(ctx context.Context, postID, integrationID string) (*models.PublishRecord, error)
}

var _ Store = (*storage.Store)(nil)

// Service runs publish operations for tenants.
type Service struct {
	store    Store
	registry *providers.Registry
	cipher   providers.Cipher
	locker   lock.Locker
	lockTTL  time.Duration
	now      func() time.Time
}

// NewService creates a Service. lockTTL bounds how long a crashed publish
// can block the next one for the same post and integration.
func NewService(store Store, registry *providers.Registry, cipher providers.Cipher, locker lock.Locker, lockTTL time.Duration) *Service {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &Service{
		store:    store,
		registry: registry,
		cipher:   cipher,
		locker:   locker,
		lockTTL:  lockTTL,
		now:      time.Now,
	}
}

// Providers describes every registered platform.
func (s *Service) Providers() []providers.Descriptor {
	return s.registry.Describe()
}

// connection is an integration together with its provider and opened config.
type connection struct {
	integration *models.Integration
	provider    *providers.Provider
	config      providers.ConnectionConfig
}

// connect loads a tenant's integration and opens its credentials.
func (s *Service) connect(ctx context.Context, tenantID, integrationID string) (*connection, error) {
	in, err := s.store.GetIntegration(ctx, tenantID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("loading integration %s: %w", integrationID, err)
	}
	return s.open(in)
}

func (s *Service) open(in *models.Integration) (*connection, error) {
	p, err := s.registry.Get(providers.Platform(in.Platform))
	if err != nil {
		return nil, err
	}
	if !in.HasCredentials() {
		return nil, fmt.Errorf("integration %s: %w", in.ID, ErrNotConnected)
	}
	cfg, err := providers.UnmarshalSealed(s.cipher, in.Config, p.ConfigFields())
	if err != nil {
		return nil, fmt.Errorf("opening credentials for integration %s: %w", in.ID, err)
	}
	return &connection{integration: in, provider: p, config: cfg}, nil
}

// withLock runs fn while holding the advisory lock for (post, integration).
func (s *Service) withLock(ctx context.Context, postID, integrationID string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, lock.Key(postID, integrationID), s.lockTTL)
	if errors.Is(err, lock.ErrHeld) {
		return ErrInProgress
	}
	if err != nil {
		return fmt.Errorf("acquiring publish lock: %w", err)
	}
	defer release()
	return fn()
}

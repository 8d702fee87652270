package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hoanghai1803/pressroom/internal/mapping"
)

// Factory creates an Adapter. It is called at most once per registration.
type Factory func() Adapter

// Descriptor summarizes a registered provider for API clients.
type Descriptor struct {
	Platform     Platform      `json:"platform"`
	Name         string        `json:"name"`
	ConfigFields []ConfigField `json:"config_fields"`
}

// Registry maps platform ids to providers. Providers are created on first
// lookup and cached for the lifetime of the registry.
type Registry struct {
	mu        sync.Mutex
	factories map[Platform]Factory
	instances map[Platform]*Provider
	resolver  *mapping.Resolver
	backoff   BackoffPolicy
}

// NewRegistry creates an empty registry whose providers share resolver and
// backoff.
func NewRegistry(resolver *mapping.Resolver, backoff BackoffPolicy) *Registry {
	return &Registry{
		factories: make(map[Platform]Factory),
		instances: make(map[Platform]*Provider),
		resolver:  resolver,
		backoff:   backoff,
	}
}

// Register adds a factory. Registering the same platform again replaces the
// previous factory and its cached instance.
func (r *Registry) Register(platform Platform, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[platform]; exists {
		slog.Warn("overwriting registered provider", "platform", platform)
		delete(r.instances, platform)
	}
	r.factories[platform] = factory
}

// Get returns the provider for platform, creating it on first use.
func (r *Registry) Get(platform Platform) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[platform]; ok {
		return p, nil
	}

	factory, ok := r.factories[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}

	p := NewProvider(factory(), r.resolver, r.backoff)
	r.instances[platform] = p
	slog.Debug("created provider", "platform", platform)
	return p, nil
}

// Platforms lists registered platform ids in lexical order.
func (r *Registry) Platforms() []Platform {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Platform, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Describe returns a descriptor for every registered provider.
func (r *Registry) Describe() []Descriptor {
	platforms := r.Platforms()
	out := make([]Descriptor, 0, len(platforms))
	for _, platform := range platforms {
		p, err := r.Get(platform)
		if err != nil {
			continue
		}
		out = append(out, Descriptor{
			Platform:     platform,
			Name:         p.Name(),
			ConfigFields: p.ConfigFields(),
		})
	}
	return out
}

package mapping

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoanghai1803/pressroom/internal/transform"
	"gopkg.in/yaml.v3"
)

// ErrNoTitleField is returned when no resolved mapping targets a field for
// the post title. Publishing an untitled item is never attempted.
var ErrNoTitleField = errors.New("no field mapping resolves a title field")

// Tier identifies which resolution stage produced the mappings.
type Tier string

// Resolution tiers, in the order they are tried.
const (
	TierCustom       Tier = "custom"
	TierAutoDetected Tier = "auto-detected"
	TierDefault      Tier = "default"
	TierNone         Tier = "none"

	// TierRequest marks mappings supplied explicitly by the caller.
	TierRequest Tier = "request"
)

// Store loads tenant-defined mappings. It returns nil, nil when the tenant
// has none for the platform.
type Store interface {
	StoredMapping(ctx context.Context, tenantID, platform string) ([]FieldMapping, error)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Tier     Tier           `json:"tier"`
	Mappings []FieldMapping `json:"mappings"`
	Dropped  []FieldMapping `json:"dropped,omitempty"`
}

// HasTitle reports whether any kept mapping carries the post title.
func (r *Resolution) HasTitle() bool {
	for _, m := range r.Mappings {
		if m.BlogField == Title {
			return true
		}
	}
	return false
}

// DroppedTargets lists the target slugs that were discarded.
func (r *Resolution) DroppedTargets() []string {
	out := make([]string, 0, len(r.Dropped))
	for _, m := range r.Dropped {
		out = append(out, m.TargetField)
	}
	return out
}

//go:embed tables.yaml
var tablesYAML []byte

type platformTable struct {
	Aliases    map[BlogField][]string       `yaml:"aliases"`
	Transforms map[BlogField]transform.Spec `yaml:"transforms"`
	Defaults   []FieldMapping               `yaml:"defaults"`
}

// Tables holds alias and default tables keyed by platform identifier.
type Tables map[string]platformTable

// LoadTables parses alias/default tables from YAML.
func LoadTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing mapping tables: %w", err)
	}
	for platform, table := range t {
		for _, m := range table.Defaults {
			if err := m.Validate(); err != nil {
				return nil, fmt.Errorf("platform %q default mapping: %w", platform, err)
			}
		}
	}
	return t, nil
}

// DefaultTables returns the tables embedded in the binary.
func DefaultTables() Tables {
	t, err := LoadTables(tablesYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolver resolves field mappings for a tenant and platform through the
// custom, auto-detected and default tiers.
type Resolver struct {
	store  Store
	tables Tables
}

// NewResolver creates a Resolver. A nil store disables the custom tier.
func NewResolver(store Store, tables Tables) *Resolver {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Resolver{store: store, tables: tables}
}

type stage struct {
	tier    Tier
	resolve func(ctx context.Context, tenantID, platform string, slugs []string) []FieldMapping
}

// Resolve returns the mappings to use for a collection whose field slugs are
// collectionSlugs. The first tier yielding a non-empty list wins; its
// mappings are then filtered against the live schema. When no kept mapping
// targets the title, the resolution is returned together with
// ErrNoTitleField.
func (r *Resolver) Resolve(ctx context.Context, tenantID, platform string, collectionSlugs []string) (*Resolution, error) {
	stages := []stage{
		{TierCustom, r.custom},
		{TierAutoDetected, r.autoDetect},
		{TierDefault, r.defaults},
	}

	res := &Resolution{Tier: TierNone}
	for _, s := range stages {
		candidates := s.resolve(ctx, tenantID, platform, collectionSlugs)
		if len(candidates) == 0 {
			continue
		}
		res.Tier = s.tier
		res.Mappings, res.Dropped = filterBySchema(candidates, collectionSlugs)
		break
	}

	return finish(res, tenantID, platform)
}

// FromRequest filters caller-supplied mappings against the live schema. It
// applies the same dropping and title rules as Resolve.
func FromRequest(tenantID, platform string, mappings []FieldMapping, collectionSlugs []string) (*Resolution, error) {
	res := &Resolution{Tier: TierRequest}
	res.Mappings, res.Dropped = filterBySchema(mappings, collectionSlugs)
	return finish(res, tenantID, platform)
}

func finish(res *Resolution, tenantID, platform string) (*Resolution, error) {
	for _, m := range res.Dropped {
		slog.Warn("dropping field mapping not present in collection schema",
			"tenant_id", tenantID,
			"platform", platform,
			"blog_field", m.BlogField,
			"target_field", m.TargetField,
			"tier", res.Tier,
		)
	}

	slog.Debug("resolved field mappings",
		"tenant_id", tenantID,
		"platform", platform,
		"tier", res.Tier,
		"kept", len(res.Mappings),
		"dropped", len(res.Dropped),
	)

	if !res.HasTitle() {
		return res, ErrNoTitleField
	}
	return res, nil
}

func (r *Resolver) custom(ctx context.Context, tenantID, platform string, _ []string) []FieldMapping {
	if r.store == nil || tenantID == "" {
		return nil
	}
	stored, err := r.store.StoredMapping(ctx, tenantID, platform)
	if err != nil {
		slog.Warn("failed to load stored field mapping, falling back",
			"tenant_id", tenantID, "platform", platform, "error", err)
		return nil
	}
	return stored
}

func (r *Resolver) autoDetect(_ context.Context, _, platform string, slugs []string) []FieldMapping {
	table, ok := r.tables[platform]
	if !ok || len(slugs) == 0 {
		return nil
	}

	available := make(map[string]string, len(slugs))
	for _, s := range slugs {
		available[strings.ToLower(s)] = s
	}

	var out []FieldMapping
	claimed := make(map[string]bool)
	for _, field := range BlogFields {
		for _, alias := range table.Aliases[field] {
			slug, ok := available[strings.ToLower(alias)]
			if !ok || claimed[slug] {
				continue
			}
			m := FieldMapping{BlogField: field, TargetField: slug}
			if spec, ok := table.Transforms[field]; ok {
				spec := spec
				m.Transform = &spec
			}
			out = append(out, m)
			claimed[slug] = true
			break
		}
	}
	return out
}

func (r *Resolver) defaults(_ context.Context, _, platform string, _ []string) []FieldMapping {
	table, ok := r.tables[platform]
	if !ok {
		return nil
	}
	out := make([]FieldMapping, len(table.Defaults))
	copy(out, table.Defaults)
	return out
}

// filterBySchema keeps mappings whose target exists in slugs. Structurally
// invalid mappings are dropped as well.
func filterBySchema(candidates []FieldMapping, slugs []string) (kept, dropped []FieldMapping) {
	present := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		present[s] = true
	}
	for _, m := range candidates {
		if m.Validate() != nil || !present[m.TargetField] {
			dropped = append(dropped, m)
			continue
		}
		kept = append(kept, m)
	}
	return kept, dropped
}

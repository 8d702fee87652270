package mapping

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// fakeStore is an in-memory Store keyed by tenant/platform.
type fakeStore struct {
	mappings map[string][]FieldMapping
	err      error
	calls    int
}

func (f *fakeStore) StoredMapping(_ context.Context, tenantID, platform string) ([]FieldMapping, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.mappings[tenantID+"/"+platform], nil
}

func targets(ms []FieldMapping) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.TargetField)
	}
	return out
}

func TestResolve_CustomTierUsedVerbatim(t *testing.T) {
	store := &fakeStore{mappings: map[string][]FieldMapping{
		"t1/webflow": {
			{BlogField: Title, TargetField: "headline"},
			{BlogField: Content, TargetField: "article"},
		},
	}}
	r := NewResolver(store, nil)

	res, err := r.Resolve(context.Background(), "t1", "webflow", []string{"headline", "article", "name", "post-body"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Tier != TierCustom {
		t.Errorf("Tier = %q, want %q", res.Tier, TierCustom)
	}
	if got := targets(res.Mappings); !reflect.DeepEqual(got, []string{"headline", "article"}) {
		t.Errorf("targets = %v", got)
	}
}

func TestResolve_AutoDetectFirstAliasWins(t *testing.T) {
	r := NewResolver(&fakeStore{}, nil)

	slugs := []string{"slug", "title", "name", "body", "post-body", "main-image", "published-date"}
	res, err := r.Resolve(context.Background(), "t1", "webflow", slugs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Tier != TierAutoDetected {
		t.Fatalf("Tier = %q, want %q", res.Tier, TierAutoDetected)
	}

	got := map[BlogField]string{}
	for _, m := range res.Mappings {
		got[m.BlogField] = m.TargetField
	}
	want := map[BlogField]string{
		Title:         "name",
		Content:       "post-body",
		FeaturedImage: "main-image",
		PublishedAt:   "published-date",
		Slug:          "slug",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("auto-detected = %v, want %v", got, want)
	}

	for _, m := range res.Mappings {
		if m.BlogField == PublishedAt && (m.Transform == nil || m.Transform.Type != transform.DateFormat) {
			t.Errorf("published_at mapping should carry date-format transform, got %+v", m.Transform)
		}
	}
}

func TestResolve_DefaultTierWhenNothingDetected(t *testing.T) {
	tables := Tables{
		"custom-cms": {
			Defaults: []FieldMapping{
				{BlogField: Title, TargetField: "heading"},
				{BlogField: Content, TargetField: "missing"},
			},
		},
	}
	r := NewResolver(nil, tables)

	res, err := r.Resolve(context.Background(), "t1", "custom-cms", []string{"heading"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Tier != TierDefault {
		t.Errorf("Tier = %q, want %q", res.Tier, TierDefault)
	}
	if got := targets(res.Mappings); !reflect.DeepEqual(got, []string{"heading"}) {
		t.Errorf("kept = %v", got)
	}
	if got := res.DroppedTargets(); !reflect.DeepEqual(got, []string{"missing"}) {
		t.Errorf("dropped = %v", got)
	}
}

func TestResolve_UnknownTargetsDroppedNotFatal(t *testing.T) {
	store := &fakeStore{mappings: map[string][]FieldMapping{
		"t1/webflow": {
			{BlogField: Title, TargetField: "name"},
			{BlogField: Excerpt, TargetField: "gone"},
			{BlogField: "rating", TargetField: "name"},
		},
	}}
	r := NewResolver(store, nil)

	res, err := r.Resolve(context.Background(), "t1", "webflow", []string{"name"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Mappings) != 1 || res.Mappings[0].TargetField != "name" {
		t.Errorf("kept = %+v", res.Mappings)
	}
	if len(res.Dropped) != 2 {
		t.Errorf("dropped %d mappings, want 2", len(res.Dropped))
	}
}

func TestResolve_NoTitleIsAnError(t *testing.T) {
	store := &fakeStore{mappings: map[string][]FieldMapping{
		"t1/webflow": {{BlogField: Content, TargetField: "post-body"}},
	}}
	r := NewResolver(store, nil)

	res, err := r.Resolve(context.Background(), "t1", "webflow", []string{"post-body"})
	if !errors.Is(err, ErrNoTitleField) {
		t.Fatalf("err = %v, want ErrNoTitleField", err)
	}
	if res == nil || res.Tier != TierCustom {
		t.Errorf("resolution should still be returned, got %+v", res)
	}
}

func TestResolve_StoreErrorFallsThrough(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	r := NewResolver(store, nil)

	res, err := r.Resolve(context.Background(), "t1", "webflow", []string{"name", "slug"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Tier != TierAutoDetected {
		t.Errorf("Tier = %q, want %q", res.Tier, TierAutoDetected)
	}
	if store.calls != 1 {
		t.Errorf("store called %d times, want 1", store.calls)
	}
}

func TestResolve_UnknownPlatform(t *testing.T) {
	r := NewResolver(nil, nil)

	res, err := r.Resolve(context.Background(), "t1", "ghost", []string{"title"})
	if !errors.Is(err, ErrNoTitleField) {
		t.Fatalf("err = %v, want ErrNoTitleField", err)
	}
	if res.Tier != TierNone {
		t.Errorf("Tier = %q, want %q", res.Tier, TierNone)
	}
}

func TestDefaultTablesLoad(t *testing.T) {
	tables := DefaultTables()
	for _, platform := range []string{"webflow", "wordpress"} {
		table, ok := tables[platform]
		if !ok {
			t.Fatalf("missing table for %s", platform)
		}
		if len(table.Aliases[Title]) == 0 {
			t.Errorf("%s has no title aliases", platform)
		}
		if len(table.Defaults) == 0 {
			t.Errorf("%s has no defaults", platform)
		}
	}
}

func TestLoadTables_RejectsInvalidDefaults(t *testing.T) {
	data := []byte("x:\n  defaults:\n    - {blog: rating, target: stars}\n")
	if _, err := LoadTables(data); err == nil {
		t.Fatal("expected error for unknown blog field")
	}
}

func TestExtractValue(t *testing.T) {
	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	post := &models.Post{
		Title:       "Hello World",
		Content:     "<p>x</p>",
		Tags:        []string{"go"},
		PublishedAt: &published,
	}

	tests := []struct {
		field BlogField
		want  any
	}{
		{Title, "Hello World"},
		{Content, "<p>x</p>"},
		{Excerpt, nil},
		{Tags, []string{"go"}},
		{Categories, nil},
		{PublishedAt, published},
		{Slug, "hello-world"},
	}

	for _, tt := range tests {
		got := ExtractValue(post, tt.field)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractValue(%s) = %#v, want %#v", tt.field, got, tt.want)
		}
	}

	post.Slug = "custom"
	if got := ExtractValue(post, Slug); got != "custom" {
		t.Errorf("explicit slug = %v, want custom", got)
	}
}

func TestFieldMappingValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       FieldMapping
		wantErr bool
	}{
		{"ok", FieldMapping{BlogField: Title, TargetField: "name"}, false},
		{"unknown blog field", FieldMapping{BlogField: "rating", TargetField: "x"}, true},
		{"empty target", FieldMapping{BlogField: Title}, true},
		{"bad transform", FieldMapping{BlogField: Title, TargetField: "n", Transform: &transform.Spec{Type: "rot13"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	mappings := []FieldMapping{
		{BlogField: Title, TargetField: "name"},
		{BlogField: Content, TargetField: "nope"},
	}

	res, err := FromRequest("t1", "webflow", mappings, []string{"name", "slug"})
	if err != nil {
		t.Fatalf("FromRequest() error: %v", err)
	}
	if res.Tier != TierRequest {
		t.Errorf("Tier = %q, want %q", res.Tier, TierRequest)
	}
	if got := res.DroppedTargets(); !reflect.DeepEqual(got, []string{"nope"}) {
		t.Errorf("dropped = %v", got)
	}

	if _, err := FromRequest("t1", "webflow", mappings[1:], []string{"nope"}); !errors.Is(err, ErrNoTitleField) {
		t.Errorf("err = %v, want ErrNoTitleField", err)
	}
}

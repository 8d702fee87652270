package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hoanghai1803/pressroom/internal/drift"
	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

// fakeAdapter records calls and returns canned responses.
type fakeAdapter struct {
	schema      *Collection
	schemaErrs  []error
	sites       []Site
	sitesErr    error
	validateErr error
	publishRes  *PublishResult
	publishErr  error
	panicOn     string
	item        *RemoteItem
	itemErr     error
	siteErr     error

	schemaCalls  int
	publishCalls int
	updateCalls  int
	lastRequest  *PublishRequest
}

var _ Adapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) Platform() Platform { return PlatformWebflow }
func (f *fakeAdapter) Name() string       { return "Fake Webflow" }

func (f *fakeAdapter) ConfigFields() []ConfigField {
	return []ConfigField{
		{Name: KeyAPIToken, Label: "API token", Required: true, Sensitive: true, MinLength: 8},
		{Name: KeySiteID, Label: "Site ID"},
		{Name: KeyCollectionID, Label: "Collection ID", Pattern: `^[a-f0-9]*$`},
	}
}

func (f *fakeAdapter) ValidateConnection(context.Context, ConnectionConfig) error {
	return f.validateErr
}

func (f *fakeAdapter) TestConnection(context.Context, ConnectionConfig) (*HealthCheck, error) {
	hc := &HealthCheck{Healthy: true, Message: "ok", SiteName: "Blog"}
	hc.Pass("token", "valid")
	return hc, nil
}

func (f *fakeAdapter) Sites(context.Context, ConnectionConfig) ([]Site, error) {
	return f.sites, f.sitesErr
}

func (f *fakeAdapter) Collections(context.Context, ConnectionConfig, string) ([]Collection, error) {
	return nil, nil
}

func (f *fakeAdapter) FieldSchema(context.Context, ConnectionConfig, string) (*Collection, error) {
	f.schemaCalls++
	if len(f.schemaErrs) > 0 {
		err := f.schemaErrs[0]
		f.schemaErrs = f.schemaErrs[1:]
		return nil, err
	}
	return f.schema, nil
}

func (f *fakeAdapter) DoPublish(_ context.Context, _ ConnectionConfig, req *PublishRequest) (*PublishResult, error) {
	f.publishCalls++
	f.lastRequest = req
	if f.panicOn == "publish" {
		panic("boom")
	}
	return f.publishRes, f.publishErr
}

func (f *fakeAdapter) DoUpdate(_ context.Context, _ ConnectionConfig, itemID string, req *PublishRequest) (*PublishResult, error) {
	f.updateCalls++
	f.lastRequest = req
	return &PublishResult{Success: true, Published: true, ItemID: itemID, Stage: StageDone}, nil
}

func (f *fakeAdapter) Delete(context.Context, ConnectionConfig, string, string) error { return nil }

func (f *fakeAdapter) Status(context.Context, ConnectionConfig, string, string) (*RemoteItem, error) {
	return f.item, f.itemErr
}

func (f *fakeAdapter) PublishSite(context.Context, ConnectionConfig, string, string, []string) error {
	return f.siteErr
}

var fastBackoff = BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}

func blogSchema() *Collection {
	return &Collection{
		ID:   "col1",
		Slug: "blog",
		Fields: []Field{
			{Slug: "name", Type: transform.FieldText, Required: true},
			{Slug: "post-body", Type: transform.FieldRichText},
			{Slug: "slug", Type: transform.FieldText, Required: true},
		},
	}
}

func validConfig() ConnectionConfig {
	return NewConnectionConfig(PlatformWebflow, map[string]string{
		KeyAPIToken:     "wf_secret_token",
		KeyCollectionID: "abc123",
	})
}

func newTestProvider(a *fakeAdapter) *Provider {
	return NewProvider(a, mapping.NewResolver(nil, nil), fastBackoff)
}

func publishRequest() *PublishRequest {
	return &PublishRequest{
		PostID:        "p1",
		IntegrationID: "i1",
		TenantID:      "t1",
		Post:          &models.Post{ID: "p1", Title: "Hi", Content: "<p>x</p>"},
	}
}

func TestPublish_ResolvesMappingsAndDelegates(t *testing.T) {
	a := &fakeAdapter{
		schema:     blogSchema(),
		publishRes: &PublishResult{Success: true, Published: true, ItemID: "abc", Stage: StageDone},
	}
	p := newTestProvider(a)

	res := p.Publish(context.Background(), validConfig(), publishRequest())
	if !res.Success || res.ItemID != "abc" {
		t.Fatalf("Publish() = %+v", res)
	}
	if res.MappingTier != mapping.TierAutoDetected {
		t.Errorf("MappingTier = %q, want auto-detected", res.MappingTier)
	}
	if res.CollectionID != "abc123" {
		t.Errorf("CollectionID = %q, want collection from config", res.CollectionID)
	}
	if a.lastRequest.Schema == nil || len(a.lastRequest.FieldMappings) != 3 {
		t.Errorf("adapter got schema=%v mappings=%v", a.lastRequest.Schema, a.lastRequest.FieldMappings)
	}
}

func TestPublish_MissingIdentifiers(t *testing.T) {
	a := &fakeAdapter{schema: blogSchema()}
	p := newTestProvider(a)

	cfg := NewConnectionConfig(PlatformWebflow, map[string]string{KeyAPIToken: "wf_secret_token"})
	req := &PublishRequest{TenantID: "t1"}

	res := p.Publish(context.Background(), cfg, req)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != CodeMissingIdentifier {
		t.Errorf("ErrorCode = %q, want %q", res.ErrorCode, CodeMissingIdentifier)
	}
	for _, want := range []string{"post id", "post", "collection id"} {
		if !strings.Contains(res.Error, want) {
			t.Errorf("error %q should mention %q", res.Error, want)
		}
	}
	if a.schemaCalls != 0 || a.publishCalls != 0 {
		t.Errorf("no platform calls expected, got schema=%d publish=%d", a.schemaCalls, a.publishCalls)
	}
}

func TestPublish_NoTitleFieldFailsBeforeCreate(t *testing.T) {
	a := &fakeAdapter{schema: &Collection{ID: "col1", Fields: []Field{{Slug: "post-body", Type: transform.FieldRichText}}}}
	p := newTestProvider(a)

	res := p.Publish(context.Background(), validConfig(), publishRequest())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != CodeNoTitleField {
		t.Errorf("ErrorCode = %q, want %q", res.ErrorCode, CodeNoTitleField)
	}
	if a.publishCalls != 0 {
		t.Errorf("DoPublish called %d times, want 0", a.publishCalls)
	}
}

func TestPublish_InvalidConfig(t *testing.T) {
	a := &fakeAdapter{schema: blogSchema()}
	p := newTestProvider(a)

	cfg := NewConnectionConfig(PlatformWebflow, map[string]string{KeyAPIToken: "short", KeyCollectionID: "XYZ"})
	res := p.Publish(context.Background(), cfg, publishRequest())
	if res.ErrorCode != CodeConfigInvalid {
		t.Errorf("ErrorCode = %q, want %q", res.ErrorCode, CodeConfigInvalid)
	}
	if res.Retryable {
		t.Error("config errors are not retryable")
	}
}

func TestPublish_AdapterErrorNormalized(t *testing.T) {
	a := &fakeAdapter{
		schema:     blogSchema(),
		publishRes: &PublishResult{Stage: StageFieldsResolved},
		publishErr: errors.New("something odd"),
	}
	p := newTestProvider(a)

	res := p.Publish(context.Background(), validConfig(), publishRequest())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != CodePublishError {
		t.Errorf("ErrorCode = %q, want %q", res.ErrorCode, CodePublishError)
	}
	if res.MappingTier == "" {
		t.Error("mapping tier should survive adapter failure")
	}
}

func TestPublish_UnknownOutcomeIsRetryableWithCaution(t *testing.T) {
	a := &fakeAdapter{
		schema:     blogSchema(),
		publishErr: &UnknownOutcomeError{Op: "create item", Err: context.DeadlineExceeded},
	}
	p := newTestProvider(a)

	res := p.Publish(context.Background(), validConfig(), publishRequest())
	if res.ErrorCode != CodeOutcomeUnknown || !res.Retryable {
		t.Errorf("result = %+v, want CREATE_OUTCOME_UNKNOWN retryable", res)
	}
	if a.publishCalls != 1 {
		t.Errorf("create attempted %d times, want exactly 1", a.publishCalls)
	}
}

func TestPublish_AdapterPanicRecovered(t *testing.T) {
	a := &fakeAdapter{schema: blogSchema(), panicOn: "publish"}
	p := newTestProvider(a)

	res := p.Publish(context.Background(), validConfig(), publishRequest())
	if res == nil || res.Success || res.ErrorCode != CodePublishError {
		t.Fatalf("result = %+v, want normalized PUBLISH_ERROR", res)
	}
}

func TestPublish_SchemaFetchRetried(t *testing.T) {
	a := &fakeAdapter{
		schema:     blogSchema(),
		schemaErrs: []error{&APIError{StatusCode: http.StatusBadGateway}},
		publishRes: &PublishResult{Success: true, ItemID: "abc"},
	}
	p := newTestProvider(a)

	res := p.Publish(context.Background(), validConfig(), publishRequest())
	if !res.Success {
		t.Fatalf("Publish() = %+v", res)
	}
	if a.schemaCalls != 2 {
		t.Errorf("schema fetched %d times, want 2", a.schemaCalls)
	}
}

func TestPublish_SchemaNotFoundNotRetried(t *testing.T) {
	a := &fakeAdapter{schemaErrs: []error{&APIError{StatusCode: http.StatusNotFound}}}
	p := newTestProvider(a)

	res := p.Publish(context.Background(), validConfig(), publishRequest())
	if res.ErrorCode != CodeNotFound {
		t.Errorf("ErrorCode = %q, want %q", res.ErrorCode, CodeNotFound)
	}
	if a.schemaCalls != 1 {
		t.Errorf("schema fetched %d times, want 1", a.schemaCalls)
	}
}

func TestUpdate(t *testing.T) {
	a := &fakeAdapter{schema: blogSchema()}
	p := newTestProvider(a)

	res := p.Update(context.Background(), validConfig(), "", publishRequest())
	if res.ErrorCode != CodeMissingIdentifier {
		t.Errorf("empty item id: ErrorCode = %q", res.ErrorCode)
	}

	res = p.Update(context.Background(), validConfig(), "abc", publishRequest())
	if !res.Success || res.ItemID != "abc" || a.updateCalls != 1 {
		t.Errorf("Update() = %+v, calls=%d", res, a.updateCalls)
	}
}

func TestConnect(t *testing.T) {
	t.Run("sites failure is not fatal", func(t *testing.T) {
		a := &fakeAdapter{sitesErr: &APIError{StatusCode: http.StatusForbidden}}
		res := newTestProvider(a).Connect(context.Background(), validConfig())
		if !res.Success {
			t.Fatalf("Connect() = %+v", res)
		}
		if len(res.Sites) != 0 {
			t.Errorf("Sites = %v, want empty", res.Sites)
		}
		if res.Metadata["provider"] != "webflow" {
			t.Errorf("metadata = %v", res.Metadata)
		}
		if _, ok := res.Metadata["connectedAt"]; !ok {
			t.Error("metadata missing connectedAt")
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		a := &fakeAdapter{validateErr: &APIError{StatusCode: http.StatusUnauthorized}}
		res := newTestProvider(a).Connect(context.Background(), validConfig())
		if res.Success || res.ErrorCode != CodeUnauthorized {
			t.Errorf("Connect() = %+v", res)
		}
	})

	t.Run("bad config", func(t *testing.T) {
		res := newTestProvider(&fakeAdapter{}).Connect(context.Background(), NewConnectionConfig(PlatformWebflow, nil))
		if res.Success || res.ErrorCode != CodeConfigInvalid {
			t.Errorf("Connect() = %+v", res)
		}
	})
}

func TestTestConnection(t *testing.T) {
	p := newTestProvider(&fakeAdapter{})

	hc := p.TestConnection(context.Background(), validConfig())
	if !hc.Healthy || hc.SiteName != "Blog" {
		t.Errorf("TestConnection() = %+v", hc)
	}

	hc = p.TestConnection(context.Background(), NewConnectionConfig(PlatformWebflow, nil))
	if hc.Healthy {
		t.Error("missing token should be unhealthy")
	}
}

func TestCheckSync(t *testing.T) {
	updated := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("missing remote item", func(t *testing.T) {
		a := &fakeAdapter{itemErr: &APIError{StatusCode: http.StatusNotFound}}
		st, err := newTestProvider(a).CheckSync(context.Background(), validConfig(), "col1", "abc", drift.Snapshot{Title: "Hi"})
		if err != nil {
			t.Fatalf("CheckSync() error: %v", err)
		}
		if st.InSync || st.Remote != nil || st.Differences[0] != drift.MissingDifference {
			t.Errorf("status = %+v", st)
		}
		if st.Local.ItemID != "abc" {
			t.Errorf("local item id = %q", st.Local.ItemID)
		}
	})

	t.Run("in sync", func(t *testing.T) {
		a := &fakeAdapter{item: &RemoteItem{ID: "abc", Title: "Hi", LastUpdated: &updated}}
		st, err := newTestProvider(a).CheckSync(context.Background(), validConfig(), "col1", "abc", drift.Snapshot{Title: "Hi", UpdatedAt: &updated})
		if err != nil {
			t.Fatalf("CheckSync() error: %v", err)
		}
		if !st.InSync {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("other errors propagate", func(t *testing.T) {
		a := &fakeAdapter{itemErr: &APIError{StatusCode: http.StatusUnauthorized}}
		if _, err := newTestProvider(a).CheckSync(context.Background(), validConfig(), "col1", "abc", drift.Snapshot{}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestPublishSite(t *testing.T) {
	a := &fakeAdapter{siteErr: &APIError{StatusCode: http.StatusInternalServerError}}
	err := newTestProvider(a).PublishSite(context.Background(), validConfig(), "site1", "col1", []string{"abc"})

	var partial *PartialPublishError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialPublishError", err)
	}
	if partial.ItemID != "abc" || partial.SiteID != "site1" {
		t.Errorf("partial = %+v", partial)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      string
		wantRetryable bool
	}{
		{"config", &ConfigValidationError{}, CodeConfigInvalid, false},
		{"no title", mapping.ErrNoTitleField, CodeNoTitleField, false},
		{"ambiguous", ErrAmbiguousSite, CodeAmbiguousSite, false},
		{"unknown outcome", &UnknownOutcomeError{Err: context.DeadlineExceeded}, CodeOutcomeUnknown, true},
		{"401", &APIError{StatusCode: 401}, CodeUnauthorized, false},
		{"404", &APIError{StatusCode: 404}, CodeNotFound, false},
		{"429", &APIError{StatusCode: 429}, CodePublishError, true},
		{"400", &APIError{StatusCode: 400}, CodePublishError, false},
		{"transport", &ConnectionError{Err: errors.New("refused")}, CodeConnection, true},
		{"other", errors.New("x"), CodePublishError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, retryable := Classify(tt.err, CodePublishError)
			if code != tt.wantCode || retryable != tt.wantRetryable {
				t.Errorf("Classify() = (%q, %v), want (%q, %v)", code, retryable, tt.wantCode, tt.wantRetryable)
			}
		})
	}
}

func TestAPIErrorIsNotFound(t *testing.T) {
	if !errors.Is(&APIError{StatusCode: 404}, ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}
	if errors.Is(&APIError{StatusCode: 500}, ErrNotFound) {
		t.Error("500 should not match ErrNotFound")
	}
}

// locatingAdapter is a fakeAdapter that can also build item URLs.
type locatingAdapter struct {
	*fakeAdapter
	url string
	err error
}

func (l *locatingAdapter) ItemURL(_ context.Context, _ ConnectionConfig, siteID, collectionID, itemID string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return l.url + "/" + siteID + "/" + collectionID + "/" + itemID, nil
}

func TestItemURL(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		want    string
	}{
		{"adapter without locator", &fakeAdapter{}, ""},
		{"locator", &locatingAdapter{fakeAdapter: &fakeAdapter{}, url: "https://x.test"}, "https://x.test/s1/c1/i1"},
		{"locator error", &locatingAdapter{fakeAdapter: &fakeAdapter{}, err: errors.New("boom")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewProvider(tt.adapter, mapping.NewResolver(nil, nil), fastBackoff).ItemURL(context.Background(), validConfig(), "s1", "c1", "i1")
			if got != tt.want {
				t.Errorf("ItemURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hoanghai1803/pressroom/internal/lock"
	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/publish"
	"github.com/hoanghai1803/pressroom/internal/secrets"
	"github.com/hoanghai1803/pressroom/internal/storage"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

const testToken = "wf_token_0123456789abcdef"

// newTestStore creates an in-memory SQLite store with migrations applied. It
// registers a cleanup function to close the database when the test completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return storage.NewStore(db)
}

// stubAdapter is a webflow-shaped adapter that never leaves the process.
type stubAdapter struct {
	mu         sync.Mutex
	rejectAuth bool
	publishErr error
	published  []string
}

var _ providers.Adapter = (*stubAdapter)(nil)

func (s *stubAdapter) Platform() providers.Platform { return providers.PlatformWebflow }
func (s *stubAdapter) Name() string                 { return "Webflow" }

func (s *stubAdapter) ConfigFields() []providers.ConfigField {
	return []providers.ConfigField{
		{Name: providers.KeyAPIToken, Label: "API token", Required: true, Sensitive: true},
		{Name: providers.KeyCollectionID, Label: "Collection", Required: true},
	}
}

func (s *stubAdapter) ValidateConnection(context.Context, providers.ConnectionConfig) error {
	if s.rejectAuth {
		return &providers.APIError{Method: "GET", Path: "/token/introspect", StatusCode: http.StatusUnauthorized, Body: "invalid token"}
	}
	return nil
}

func (s *stubAdapter) TestConnection(context.Context, providers.ConnectionConfig) (*providers.HealthCheck, error) {
	hc := &providers.HealthCheck{Healthy: true}
	hc.Pass("token", "ok")
	return hc, nil
}

func (s *stubAdapter) Sites(context.Context, providers.ConnectionConfig) ([]providers.Site, error) {
	return []providers.Site{{ID: "site-1", Name: "Blog"}}, nil
}

func (s *stubAdapter) Collections(_ context.Context, _ providers.ConnectionConfig, siteID string) ([]providers.Collection, error) {
	if siteID != "site-1" {
		return nil, &providers.APIError{Method: "GET", Path: "/sites/" + siteID + "/collections", StatusCode: http.StatusNotFound}
	}
	return []providers.Collection{{ID: "col-1", SiteID: siteID, Name: "Posts", Slug: "blog"}}, nil
}

func (s *stubAdapter) FieldSchema(_ context.Context, _ providers.ConnectionConfig, collectionID string) (*providers.Collection, error) {
	return &providers.Collection{
		ID:   collectionID,
		Slug: "blog",
		Fields: []providers.Field{
			{Slug: "name", Type: transform.FieldText, Required: true},
			{Slug: "post-body", Type: transform.FieldRichText},
			{Slug: "slug", Type: transform.FieldText},
		},
	}, nil
}

func (s *stubAdapter) DoPublish(_ context.Context, _ providers.ConnectionConfig, req *providers.PublishRequest) (*providers.PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return nil, s.publishErr
	}
	s.published = append(s.published, req.PostID)
	return &providers.PublishResult{
		Success:     true,
		Published:   true,
		ItemID:      "item-1",
		SiteID:      "site-1",
		Stage:       providers.StageSitePublished,
		ExternalURL: "https://blog.example/blog/" + req.Post.Slug,
	}, nil
}

func (s *stubAdapter) DoUpdate(_ context.Context, _ providers.ConnectionConfig, itemID string, _ *providers.PublishRequest) (*providers.PublishResult, error) {
	return &providers.PublishResult{Success: true, Published: true, ItemID: itemID, Stage: providers.StageSitePublished}, nil
}

func (s *stubAdapter) Delete(context.Context, providers.ConnectionConfig, string, string) error {
	return nil
}

func (s *stubAdapter) Status(_ context.Context, _ providers.ConnectionConfig, _, itemID string) (*providers.RemoteItem, error) {
	if itemID == "gone" {
		return nil, &providers.APIError{Method: "GET", Path: "/items/gone", StatusCode: http.StatusNotFound}
	}
	updated := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return &providers.RemoteItem{ID: itemID, Title: "Remote Title", LastUpdated: &updated}, nil
}

func (s *stubAdapter) PublishSite(context.Context, providers.ConnectionConfig, string, string, []string) error {
	return nil
}

type testEnv struct {
	svc     *publish.Service
	store   *storage.Store
	adapter *stubAdapter
	locker  *lock.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newTestStore(t)
	cipher, err := secrets.New([]byte(strings.Repeat("k", secrets.KeySize)))
	if err != nil {
		t.Fatalf("creating cipher: %v", err)
	}

	adapter := &stubAdapter{}
	backoff := providers.BackoffPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 1}
	registry := providers.NewRegistry(mapping.NewResolver(store, nil), backoff)
	registry.Register(providers.PlatformWebflow, func() providers.Adapter { return adapter })

	locker := lock.NewMemory()
	return &testEnv{
		svc:     publish.NewService(store, registry, cipher, locker, time.Minute),
		store:   store,
		adapter: adapter,
		locker:  locker,
	}
}

func (e *testEnv) integration(t *testing.T, tenantID string) string {
	t.Helper()
	created, err := e.svc.CreateIntegration(context.Background(), tenantID, "webflow", "Blog", map[string]string{
		providers.KeyAPIToken:     testToken,
		providers.KeyCollectionID: "col-1",
	})
	if err != nil {
		t.Fatalf("CreateIntegration() error: %v", err)
	}
	return created.Integration.ID
}

func (e *testEnv) post(t *testing.T, tenantID, title string) *models.Post {
	t.Helper()
	p := &models.Post{TenantID: tenantID, Title: title, Content: "<p>body</p>", Slug: transform.Slugify(title)}
	if err := e.store.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}
	return p
}

// serve routes one request through a chi router holding only pattern, so
// URL parameters resolve as in production.
func serve(t *testing.T, method, pattern string, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decode(t, w, &body)
	msg, _ := body["error"].(string)
	return msg
}

var errBoom = errors.New("boom")

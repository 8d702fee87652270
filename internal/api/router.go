package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hoanghai1803/pressroom/internal/api/handlers"
	"github.com/hoanghai1803/pressroom/internal/feeds"
	"github.com/hoanghai1803/pressroom/internal/publish"
	"github.com/hoanghai1803/pressroom/internal/storage"
)

// NewRouter creates and configures the HTTP router with all API routes.
// health may be nil when no integration monitor runs.
func NewRouter(svc *publish.Service, store *storage.Store, importer *feeds.Importer, health handlers.HealthReporter) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(CORS)

	r.Get("/healthz", handlers.Healthz(store, health))

	r.Route("/api", func(api chi.Router) {
		api.Get("/providers", handlers.ListProviders(svc))

		api.Route("/tenants/{tenantID}", func(t chi.Router) {
			t.Get("/integrations", handlers.ListIntegrations(svc))
			t.Post("/integrations", handlers.CreateIntegration(svc))
			t.Route("/integrations/{id}", func(in chi.Router) {
				in.Get("/", handlers.GetIntegration(svc))
				in.Delete("/", handlers.DisconnectIntegration(svc))
				in.Put("/credentials", handlers.RotateCredentials(svc))
				in.Post("/test", handlers.TestIntegration(svc))
				in.Get("/sites", handlers.ListSites(svc))
				in.Get("/sites/{siteID}/collections", handlers.ListCollections(svc))
				in.Get("/collections/{collectionID}/fields", handlers.GetFieldSchema(svc))
				in.Post("/sync", handlers.CheckItemSync(svc))
			})

			t.Get("/mappings/{platform}", handlers.GetMapping(svc))
			t.Put("/mappings/{platform}", handlers.SaveMapping(svc))

			t.Get("/posts", handlers.ListPosts(store))
			t.Post("/posts", handlers.CreatePost(store))
			t.Post("/posts/import", handlers.ImportPosts(importer))
			t.Route("/posts/{postID}", func(p chi.Router) {
				p.Get("/", handlers.GetPost(store))
				p.Put("/", handlers.UpdatePost(store))
				p.Post("/publish", handlers.PublishPost(svc))
				p.Post("/update", handlers.UpdatePublication(svc))
				p.Post("/publish-site", handlers.PublishSite(svc))
				p.Delete("/publications/{integrationID}", handlers.Unpublish(svc))
				p.Get("/sync", handlers.PostSync(svc))
				p.Get("/history", handlers.PostHistory(svc))
			})
		})
	})

	return r
}

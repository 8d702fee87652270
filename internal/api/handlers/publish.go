package handlers

import (
	"net/http"

	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/publish"
)

// publishBody selects the integration and tunes a publish or update.
type publishBody struct {
	IntegrationID      string                 `json:"integration_id" validate:"required"`
	SiteID             string                 `json:"site_id"`
	CollectionID       string                 `json:"collection_id"`
	FieldMappings      []mapping.FieldMapping `json:"field_mappings"`
	PublishImmediately *bool                  `json:"publish_immediately"`
	IsDraft            bool                   `json:"is_draft"`
}

// options converts the body. publish_immediately defaults to true.
func (b *publishBody) options() publish.Options {
	immediately := true
	if b.PublishImmediately != nil {
		immediately = *b.PublishImmediately
	}
	return publish.Options{
		SiteID:             b.SiteID,
		CollectionID:       b.CollectionID,
		FieldMappings:      b.FieldMappings,
		PublishImmediately: immediately,
		IsDraft:            b.IsDraft,
	}
}

type publishFunc func(svc *publish.Service, r *http.Request, tenantID, postID string, body *publishBody) (*providers.PublishResult, error)

// PublishPost handles POST /api/tenants/{tenantID}/posts/{postID}/publish.
func PublishPost(svc *publish.Service) http.HandlerFunc {
	return publishHandler(svc, "Failed to publish post",
		func(svc *publish.Service, r *http.Request, tenantID, postID string, body *publishBody) (*providers.PublishResult, error) {
			return svc.Publish(r.Context(), tenantID, postID, body.IntegrationID, body.options())
		})
}

// UpdatePublication handles POST /api/tenants/{tenantID}/posts/{postID}/update.
func UpdatePublication(svc *publish.Service) http.HandlerFunc {
	return publishHandler(svc, "Failed to update publication",
		func(svc *publish.Service, r *http.Request, tenantID, postID string, body *publishBody) (*providers.PublishResult, error) {
			return svc.Update(r.Context(), tenantID, postID, body.IntegrationID, body.options())
		})
}

// PublishSite handles POST /api/tenants/{tenantID}/posts/{postID}/publish-site.
// It retries making an orphaned draft live.
func PublishSite(svc *publish.Service) http.HandlerFunc {
	return publishHandler(svc, "Failed to publish site",
		func(svc *publish.Service, r *http.Request, tenantID, postID string, body *publishBody) (*providers.PublishResult, error) {
			return svc.PublishSite(r.Context(), tenantID, postID, body.IntegrationID)
		})
}

func publishHandler(svc *publish.Service, msg string, fn publishFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, postID, err := postParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body publishBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := fn(svc, r, tenantID, postID, &body)
		if err != nil {
			writeServiceError(w, err, msg)
			return
		}
		writeJSON(w, resultStatus(res), res)
	}
}

// Unpublish handles
// DELETE /api/tenants/{tenantID}/posts/{postID}/publications/{integrationID}.
func Unpublish(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, postID, err := postParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		integrationID, err := pathParam(r, "integrationID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := svc.Unpublish(r.Context(), tenantID, postID, integrationID); err != nil {
			writeServiceError(w, err, "Failed to unpublish post")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// PostSync handles GET /api/tenants/{tenantID}/posts/{postID}/sync?integration_id=.
func PostSync(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, postID, err := postParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		integrationID := r.URL.Query().Get("integration_id")
		if integrationID == "" {
			writeError(w, http.StatusBadRequest, "missing query parameter \"integration_id\"")
			return
		}

		status, err := svc.CheckPostSync(r.Context(), tenantID, postID, integrationID)
		if err != nil {
			writeServiceError(w, err, "Failed to check sync status")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// PostHistory handles GET /api/tenants/{tenantID}/posts/{postID}/history,
// optionally filtered by ?integration_id=.
func PostHistory(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, postID, err := postParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		records, err := svc.History(r.Context(), tenantID, postID, r.URL.Query().Get("integration_id"))
		if err != nil {
			writeServiceError(w, err, "Failed to get publish history")
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

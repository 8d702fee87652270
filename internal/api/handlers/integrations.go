package handlers

import (
	"net/http"
	"time"

	"github.com/hoanghai1803/pressroom/internal/drift"
	"github.com/hoanghai1803/pressroom/internal/publish"
)

// ListProviders handles GET /api/providers.
func ListProviders(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Providers())
	}
}

// ListIntegrations handles GET /api/tenants/{tenantID}/integrations.
func ListIntegrations(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := pathParam(r, "tenantID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		list, err := svc.Integrations(r.Context(), tenantID)
		if err != nil {
			writeServiceError(w, err, "Failed to list integrations")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateIntegration handles POST /api/tenants/{tenantID}/integrations. A
// connection the platform rejected is still created and reported with 201;
// the body's connection result carries the failure.
func CreateIntegration(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := pathParam(r, "tenantID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			Platform string            `json:"platform" validate:"required"`
			Name     string            `json:"name" validate:"max=200"`
			Config   map[string]string `json:"config" validate:"required"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		created, err := svc.CreateIntegration(r.Context(), tenantID, body.Platform, body.Name, body.Config)
		if err != nil {
			writeServiceError(w, err, "Failed to create integration")
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// GetIntegration handles GET /api/tenants/{tenantID}/integrations/{id}.
func GetIntegration(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		in, err := svc.Integration(r.Context(), tenantID, id)
		if err != nil {
			writeServiceError(w, err, "Failed to get integration")
			return
		}
		writeJSON(w, http.StatusOK, in)
	}
}

// RotateCredentials handles PUT /api/tenants/{tenantID}/integrations/{id}/credentials.
func RotateCredentials(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			Config map[string]string `json:"config" validate:"required,min=1"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rotated, err := svc.RotateCredentials(r.Context(), tenantID, id, body.Config)
		if err != nil {
			writeServiceError(w, err, "Failed to rotate credentials")
			return
		}
		writeJSON(w, http.StatusOK, rotated)
	}
}

// DisconnectIntegration handles DELETE /api/tenants/{tenantID}/integrations/{id}.
func DisconnectIntegration(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := svc.Disconnect(r.Context(), tenantID, id); err != nil {
			writeServiceError(w, err, "Failed to disconnect integration")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
	}
}

// TestIntegration handles POST /api/tenants/{tenantID}/integrations/{id}/test.
func TestIntegration(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		hc, err := svc.TestIntegration(r.Context(), tenantID, id)
		if err != nil {
			writeServiceError(w, err, "Failed to test integration")
			return
		}
		writeJSON(w, http.StatusOK, hc)
	}
}

// ListSites handles GET /api/tenants/{tenantID}/integrations/{id}/sites.
func ListSites(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		sites, err := svc.Sites(r.Context(), tenantID, id)
		if err != nil {
			writeServiceError(w, err, "Failed to list sites")
			return
		}
		writeJSON(w, http.StatusOK, sites)
	}
}

// ListCollections handles
// GET /api/tenants/{tenantID}/integrations/{id}/sites/{siteID}/collections.
func ListCollections(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		siteID, err := pathParam(r, "siteID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		collections, err := svc.Collections(r.Context(), tenantID, id, siteID)
		if err != nil {
			writeServiceError(w, err, "Failed to list collections")
			return
		}
		writeJSON(w, http.StatusOK, collections)
	}
}

// GetFieldSchema handles
// GET /api/tenants/{tenantID}/integrations/{id}/collections/{collectionID}/fields.
func GetFieldSchema(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		collectionID, err := pathParam(r, "collectionID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		collection, err := svc.FieldSchema(r.Context(), tenantID, id, collectionID)
		if err != nil {
			writeServiceError(w, err, "Failed to get field schema")
			return
		}
		writeJSON(w, http.StatusOK, collection)
	}
}

// CheckItemSync handles POST /api/tenants/{tenantID}/integrations/{id}/sync.
// The body is the caller's local snapshot of a remote item.
func CheckItemSync(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, id, err := integrationParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			CollectionID string     `json:"collection_id"`
			ItemID       string     `json:"item_id" validate:"required"`
			Title        string     `json:"title"`
			UpdatedAt    *time.Time `json:"updated_at"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		local := drift.Snapshot{ItemID: body.ItemID, Title: body.Title, UpdatedAt: body.UpdatedAt}
		status, err := svc.CheckSync(r.Context(), tenantID, id, body.CollectionID, body.ItemID, local)
		if err != nil {
			writeServiceError(w, err, "Failed to check sync status")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func integrationParams(r *http.Request) (tenantID, id string, err error) {
	if tenantID, err = pathParam(r, "tenantID"); err != nil {
		return "", "", err
	}
	if id, err = pathParam(r, "id"); err != nil {
		return "", "", err
	}
	return tenantID, id, nil
}

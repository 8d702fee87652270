package handlers

import (
	"net/http"

	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/publish"
)

// GetMapping handles GET /api/tenants/{tenantID}/mappings/{platform}. An
// empty list means publishes fall back to auto-detection.
func GetMapping(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, platform, err := mappingParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		mappings, err := svc.Mapping(r.Context(), tenantID, platform)
		if err != nil {
			writeServiceError(w, err, "Failed to get field mapping")
			return
		}
		writeJSON(w, http.StatusOK, mappings)
	}
}

// SaveMapping handles PUT /api/tenants/{tenantID}/mappings/{platform}. An
// empty list clears the custom mapping.
func SaveMapping(svc *publish.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, platform, err := mappingParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			Mappings []mapping.FieldMapping `json:"mappings"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := svc.SaveMapping(r.Context(), tenantID, platform, body.Mappings); err != nil {
			writeServiceError(w, err, "Failed to save field mapping")
			return
		}
		if body.Mappings == nil {
			body.Mappings = []mapping.FieldMapping{}
		}
		writeJSON(w, http.StatusOK, body.Mappings)
	}
}

func mappingParams(r *http.Request) (tenantID, platform string, err error) {
	if tenantID, err = pathParam(r, "tenantID"); err != nil {
		return "", "", err
	}
	if platform, err = pathParam(r, "platform"); err != nil {
		return "", "", err
	}
	return tenantID, platform, nil
}

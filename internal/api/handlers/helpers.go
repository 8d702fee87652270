package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/publish"
	"github.com/hoanghai1803/pressroom/internal/storage"
)

// maxBodyBytes bounds request bodies; post content dominates.
const maxBodyBytes = 4 << 20

var validate = validator.New()

// writeJSON encodes v as JSON and writes it to the response with the given
// HTTP status code. Content-Type is always set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response with the given HTTP status code.
// The response body is {"error": "message"}.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError maps err to a status code and writes it. Unexpected
// errors are logged and reported as msg without internal detail.
func writeServiceError(w http.ResponseWriter, err error, msg string) {
	var (
		cfgErr  *providers.ConfigValidationError
		apiErr  *providers.APIError
		connErr *providers.ConnectionError
	)

	switch {
	case errors.As(err, &cfgErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error(), "fields": cfgErr.Fields})
	case errors.Is(err, providers.ErrUnknownPlatform),
		errors.Is(err, providers.ErrMissingIdentifier),
		errors.Is(err, providers.ErrAmbiguousSite):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, publish.ErrNotPublished):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, publish.ErrInProgress), errors.Is(err, publish.ErrNotConnected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, providers.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr), errors.As(err, &connErr):
		slog.Warn("platform request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// resultStatus picks the response status for a publish result. The result
// itself is always the body.
func resultStatus(res *providers.PublishResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorCode {
	case providers.CodeConfigInvalid, providers.CodeMissingIdentifier,
		providers.CodeNoTitleField, providers.CodeAmbiguousSite:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// decodeJSON reads a JSON body into v and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// pathParam returns a non-empty chi URL parameter.
func pathParam(r *http.Request, param string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, param))
	if v == "" {
		return "", fmt.Errorf("missing URL parameter %q", param)
	}
	return v, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %q parameter: must be a non-negative integer", name)
	}
	return n, nil
}

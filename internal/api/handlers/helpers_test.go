package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"github.com/hoanghai1803/pressroom/internal/publish"
	"github.com/hoanghai1803/pressroom/internal/storage"
)

func TestWriteJSON(t *testing.T) {
	t.Run("encodes and sets content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"hello": "world"}

		writeJSON(w, http.StatusOK, data)

		if w.Code != http.StatusOK {
			t.Errorf("got status %d, want %d", w.Code, http.StatusOK)
		}

		ct := w.Header().Get("Content-Type")
		if ct != "application/json" {
			t.Errorf("got Content-Type %q, want %q", ct, "application/json")
		}

		var got map[string]string
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decoding response body: %v", err)
		}
		if got["hello"] != "world" {
			t.Errorf("got %q, want %q", got["hello"], "world")
		}
	})

	t.Run("sets custom status code", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeJSON(w, http.StatusCreated, map[string]string{"ok": "true"})

		if w.Code != http.StatusCreated {
			t.Errorf("got status %d, want %d", w.Code, http.StatusCreated)
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "something went wrong")

	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := errorMessage(t, w); got != "something went wrong" {
		t.Errorf("got error %q, want %q", got, "something went wrong")
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "config validation",
			err:  &providers.ConfigValidationError{Fields: map[string][]string{"apiToken": {"required"}}},
			want: http.StatusBadRequest,
		},
		{name: "unknown platform", err: fmt.Errorf("get: %w", providers.ErrUnknownPlatform), want: http.StatusBadRequest},
		{name: "ambiguous site", err: providers.ErrAmbiguousSite, want: http.StatusBadRequest},
		{name: "local row missing", err: fmt.Errorf("loading post p1: %w", storage.ErrNotFound), want: http.StatusNotFound},
		{name: "not published", err: publish.ErrNotPublished, want: http.StatusNotFound},
		{name: "lock held", err: publish.ErrInProgress, want: http.StatusConflict},
		{name: "not connected", err: fmt.Errorf("integration i1: %w", publish.ErrNotConnected), want: http.StatusConflict},
		{
			name: "remote 404",
			err:  &providers.APIError{Method: "GET", Path: "/items/x", StatusCode: http.StatusNotFound},
			want: http.StatusNotFound,
		},
		{
			name: "remote 500",
			err:  &providers.APIError{Method: "GET", Path: "/sites", StatusCode: http.StatusInternalServerError},
			want: http.StatusBadGateway,
		},
		{
			name: "transport",
			err:  &providers.ConnectionError{Platform: providers.PlatformWebflow, Op: "sites", Err: errBoom},
			want: http.StatusBadGateway,
		},
		{name: "unexpected", err: errBoom, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, tt.err, "Failed to do thing")
			if w.Code != tt.want {
				t.Errorf("got status %d, want %d", w.Code, tt.want)
			}
		})
	}

	t.Run("unexpected errors hide detail", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeServiceError(w, errBoom, "Failed to do thing")
		if got := errorMessage(t, w); got != "Failed to do thing" {
			t.Errorf("got error %q, want generic message", got)
		}
	})

	t.Run("config errors list fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeServiceError(w, &providers.ConfigValidationError{Fields: map[string][]string{"apiToken": {"required"}}}, "x")
		var body struct {
			Fields map[string][]string `json:"fields"`
		}
		decode(t, w, &body)
		if len(body.Fields["apiToken"]) != 1 {
			t.Errorf("got fields %v, want apiToken entry", body.Fields)
		}
	})
}

func TestResultStatus(t *testing.T) {
	tests := []struct {
		name string
		res  providers.PublishResult
		want int
	}{
		{name: "success", res: providers.PublishResult{Success: true}, want: http.StatusOK},
		{name: "orphaned draft is success", res: providers.PublishResult{Success: true, Stage: providers.StageOrphanedDraft}, want: http.StatusOK},
		{name: "no title field", res: providers.PublishResult{ErrorCode: providers.CodeNoTitleField}, want: http.StatusUnprocessableEntity},
		{name: "invalid config", res: providers.PublishResult{ErrorCode: providers.CodeConfigInvalid}, want: http.StatusUnprocessableEntity},
		{name: "platform failure", res: providers.PublishResult{ErrorCode: providers.CodePublishError}, want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resultStatus(&tt.res); got != tt.want {
				t.Errorf("resultStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name  string `json:"name" validate:"required"`
		Email string `json:"email" validate:"omitempty,email"`
	}

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "valid", input: `{"name":"a","email":"a@example.com"}`},
		{name: "malformed", input: `{"name":`, wantErr: "invalid JSON body"},
		{name: "unknown field", input: `{"name":"a","extra":1}`, wantErr: "invalid JSON body"},
		{name: "missing required", input: `{"email":"a@example.com"}`, wantErr: `Name failed "required"`},
		{name: "bad email", input: `{"name":"a","email":"nope"}`, wantErr: `Email failed "email"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var b body
			err := decodeJSON(httptest.NewRecorder(), r, &b)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPathParam(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "uuid", value: "5f0c5a6e-2b1d-4d43-9b53-6f1d3c1a9e10", want: "5f0c5a6e-2b1d-4d43-9b53-6f1d3c1a9e10"},
		{name: "trimmed", value: " abc ", want: "abc"},
		{name: "empty", value: "", wantErr: true},
		{name: "blank", value: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Build a chi context with the URL param set.
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.value)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			got, err := pathParam(r, "id")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 7},
		{query: "?n=12", want: 12},
		{query: "?n=0", want: 0},
		{query: "?n=-1", wantErr: true},
		{query: "?n=abc", wantErr: true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		got, err := queryInt(r, "n", 7)
		if (err != nil) != tt.wantErr {
			t.Errorf("queryInt(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

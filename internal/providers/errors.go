package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hoanghai1803/pressroom/internal/mapping"
)

// Sentinel errors.
var (
	// ErrNotFound matches any platform 404.
	ErrNotFound = errors.New("remote item not found")

	// ErrUnknownPlatform is returned by the registry for unregistered ids.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrAmbiguousSite is returned when a token reaches several sites and
	// nothing selects one of them.
	ErrAmbiguousSite = errors.New("multiple sites accessible; specify a site id")

	// ErrMissingIdentifier is returned when a request lacks a required id.
	ErrMissingIdentifier = errors.New("missing required identifier")
)

// Machine-readable error codes carried by PublishResult.
const (
	CodePublishError      = "PUBLISH_ERROR"
	CodeUpdateError       = "UPDATE_ERROR"
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeMissingIdentifier = "MISSING_IDENTIFIER"
	CodeNoTitleField      = "NO_TITLE_FIELD"
	CodeConnection        = "CONNECTION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeAmbiguousSite     = "AMBIGUOUS_SITE"
	CodeOutcomeUnknown    = "CREATE_OUTCOME_UNKNOWN"
	CodeSitePublishFailed = "SITE_PUBLISH_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// ConfigValidationError lists user-fixable config problems by field.
type ConfigValidationError struct {
	Fields map[string][]string
}

func (e *ConfigValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "invalid connection config: " + strings.Join(parts, ", ")
}

// ConnectionError wraps a transport failure talking to a platform.
type ConnectionError struct {
	Platform Platform
	Op       string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: connection failed: %v", e.Platform, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaMismatchError reports mappings that could not be applied to the live
// collection schema. It wraps mapping.ErrNoTitleField when the title was
// among them.
type SchemaMismatchError struct {
	CollectionID string
	Dropped      []string
	Err          error
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("collection %s schema mismatch", e.CollectionID)
	if len(e.Dropped) > 0 {
		msg += fmt.Sprintf(" (dropped fields: %s)", strings.Join(e.Dropped, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// PartialPublishError reports an item that was created but not made live.
// It must be retried with a site publish, never with a fresh create.
type PartialPublishError struct {
	ItemID string
	SiteID string
	Err    error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("item %s created but site %s publish failed: %v", e.ItemID, e.SiteID, e.Err)
}

func (e *PartialPublishError) Unwrap() error { return e.Err }

// UnknownOutcomeError reports a non-idempotent call whose result is unknown,
// typically a timed-out create. The item may or may not exist.
type UnknownOutcomeError struct {
	Op  string
	Err error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("%s outcome unknown, check the platform before retrying: %v", e.Op, e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error { return e.Err }

// APIError is a non-2xx platform response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Is matches ErrNotFound for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Temporary reports whether the status is worth retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// Classify maps err to an error code and whether a retry may help. fallback
// is used for errors outside the taxonomy.
func Classify(err error, fallback string) (code string, retryable bool) {
	var (
		cfgErr     *ConfigValidationError
		connErr    *ConnectionError
		schemaErr  *SchemaMismatchError
		partialErr *PartialPublishError
		unknownErr *UnknownOutcomeError
		apiErr     *APIError
	)

	switch {
	case errors.As(err, &cfgErr):
		return CodeConfigInvalid, false
	case errors.Is(err, ErrMissingIdentifier):
		return CodeMissingIdentifier, false
	case errors.As(err, &schemaErr), errors.Is(err, mapping.ErrNoTitleField):
		return CodeNoTitleField, false
	case errors.Is(err, ErrAmbiguousSite):
		return CodeAmbiguousSite, false
	case errors.As(err, &unknownErr):
		return CodeOutcomeUnknown, true
	case errors.As(err, &partialErr):
		return CodeSitePublishFailed, true
	case errors.As(err, &apiErr):
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return CodeUnauthorized, false
		case apiErr.StatusCode == http.StatusNotFound:
			return CodeNotFound, false
		}
		return fallback, apiErr.Temporary()
	case errors.As(err, &connErr):
		return CodeConnection, true
	case errors.Is(err, context.DeadlineExceeded):
		return CodeConnection, true
	}
	return fallback, false
}

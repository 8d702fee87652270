// Package transform converts blog post field values into the representation a
// target platform field expects.
//
// Every function in this package is total: unexpected input shapes are
// returned unchanged and a warning is logged, so a malformed optional field
// never blocks a publish.
package transform

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Type names a declared value transform on a field mapping.
type Type string

// Supported transform types.
const (
	None           Type = "none"
	DateFormat     Type = "date-format"
	HTMLToMarkdown Type = "html-to-markdown"
	MarkdownToHTML Type = "markdown-to-html"
	Slug           Type = "slugify"
)

// Spec is the transform attached to a field mapping. Format is only read by
// DateFormat, where "date" selects a date-only layout.
type Spec struct {
	Type   Type   `json:"type" yaml:"type"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Valid reports whether t is a known transform type. The empty type is
// treated as None.
func (t Type) Valid() bool {
	switch t {
	case "", None, DateFormat, HTMLToMarkdown, MarkdownToHTML, Slug:
		return true
	}
	return false
}

// FieldType is the platform-neutral type of a target field.
type FieldType string

// Platform field types.
const (
	FieldText        FieldType = "text"
	FieldRichText    FieldType = "rich-text"
	FieldImage       FieldType = "image"
	FieldDate        FieldType = "date"
	FieldNumber      FieldType = "number"
	FieldBoolean     FieldType = "boolean"
	FieldOption      FieldType = "option"
	FieldMultiOption FieldType = "multi-option"
	FieldFile        FieldType = "file"
	FieldLink        FieldType = "link"
	FieldReference   FieldType = "reference"
)

const dateOnlyLayout = "2006-01-02"

// fallbackDateLayouts are tried, in order, for strings that are not already
// RFC 3339.
var fallbackDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	dateOnlyLayout,
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
}

// Apply runs the declared transform on value. A nil spec is the identity.
func Apply(spec *Spec, value any) any {
	if spec == nil || value == nil {
		return value
	}

	switch spec.Type {
	case "", None:
		return value
	case DateFormat:
		return formatDate(value, spec.Format)
	case HTMLToMarkdown:
		s, ok := value.(string)
		if !ok {
			warnShape(spec.Type, value)
			return value
		}
		return htmlToMarkdown(s)
	case MarkdownToHTML:
		s, ok := value.(string)
		if !ok {
			warnShape(spec.Type, value)
			return value
		}
		return markdownToHTML(s)
	case Slug:
		s, ok := value.(string)
		if !ok {
			warnShape(spec.Type, value)
			return value
		}
		return Slugify(s)
	default:
		slog.Warn("unknown field transform, passing value through", "transform", spec.Type)
		return value
	}
}

// Coerce shapes value for the target field type. It runs after Apply.
func Coerce(fieldType FieldType, value any) any {
	if value == nil {
		return nil
	}

	switch fieldType {
	case FieldImage, FieldFile:
		return assetRef(fieldType, value)
	case FieldRichText:
		if _, ok := value.(string); !ok {
			warnShape(Type(fieldType), value)
		}
		return value
	case FieldDate:
		return formatDate(value, "")
	default:
		return value
	}
}

// Value applies the declared transform and then the field-type coercion.
func Value(spec *Spec, fieldType FieldType, value any) any {
	return Coerce(fieldType, Apply(spec, value))
}

// formatDate renders value as ISO 8601. Strings that already parse as
// RFC 3339 are returned untouched so the transform is idempotent.
func formatDate(value any, format string) any {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return nil
		}
		t = *v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return v
		}
		if format == "" {
			if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return s
			}
		}
		parsed, ok := parseDate(s)
		if !ok {
			slog.Warn("unparseable date value, passing through", "value", s)
			return v
		}
		t = parsed
	default:
		warnShape(DateFormat, value)
		return value
	}

	if format == "date" {
		return t.UTC().Format(dateOnlyLayout)
	}
	return t.UTC().Format(time.RFC3339)
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// assetRef wraps a URL into the {url: ...} object image and file fields take.
func assetRef(fieldType FieldType, value any) any {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return map[string]any{"url": v}
	case map[string]any:
		if u, ok := v["url"].(string); ok && u != "" {
			return v
		}
	case map[string]string:
		if u := v["url"]; u != "" {
			out := make(map[string]any, len(v))
			for k, val := range v {
				out[k] = val
			}
			return out
		}
	}
	warnShape(Type(fieldType), value)
	return value
}

func warnShape(t Type, value any) {
	slog.Warn("unexpected value shape for field transform, passing through",
		"transform", string(t),
		"type", fmt.Sprintf("%T", value),
	)
}

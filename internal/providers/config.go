package providers

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Platform identifies an external content platform.
type Platform string

// Supported platforms.
const (
	PlatformWebflow   Platform = "webflow"
	PlatformWordPress Platform = "wordpress"
)

// Config keys shared by the typed variants.
const (
	KeyAPIToken            = "apiToken"
	KeySiteID              = "siteId"
	KeyCollectionID        = "collectionId"
	KeySiteURL             = "siteUrl"
	KeyUsername            = "username"
	KeyApplicationPassword = "applicationPassword"
	KeyPostType            = "postType"
)

// WebflowConfig holds Webflow credentials and target references.
type WebflowConfig struct {
	APIToken     string `json:"apiToken"`
	SiteID       string `json:"siteId,omitempty"`
	CollectionID string `json:"collectionId,omitempty"`
}

// WordPressConfig holds WordPress application-password credentials.
type WordPressConfig struct {
	SiteURL             string `json:"siteUrl"`
	Username            string `json:"username"`
	ApplicationPassword string `json:"applicationPassword"`
	PostType            string `json:"postType,omitempty"`
}

// ConnectionConfig is a tagged union keyed by Platform. Exactly one of the
// typed variants is set; Extra carries provider-specific keys that have no
// typed home.
//
// ConnectionConfig implements slog.LogValuer and fmt.Stringer so that its
// values never reach a log line.
type ConnectionConfig struct {
	Platform  Platform          `json:"platform"`
	Webflow   *WebflowConfig    `json:"webflow,omitempty"`
	WordPress *WordPressConfig  `json:"wordpress,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// NewConnectionConfig builds the variant for platform from flat key/value
// pairs as submitted by API clients. Unknown keys land in Extra.
func NewConnectionConfig(platform Platform, values map[string]string) ConnectionConfig {
	cfg := ConnectionConfig{Platform: platform}
	switch platform {
	case PlatformWebflow:
		cfg.Webflow = &WebflowConfig{}
	case PlatformWordPress:
		cfg.WordPress = &WordPressConfig{}
	}
	for k, v := range values {
		cfg.Set(k, v)
	}
	return cfg
}

// Value returns the value stored under key, or "" when absent.
func (c ConnectionConfig) Value(key string) string {
	switch {
	case c.Webflow != nil:
		switch key {
		case KeyAPIToken:
			return c.Webflow.APIToken
		case KeySiteID:
			return c.Webflow.SiteID
		case KeyCollectionID:
			return c.Webflow.CollectionID
		}
	case c.WordPress != nil:
		switch key {
		case KeySiteURL:
			return c.WordPress.SiteURL
		case KeyUsername:
			return c.WordPress.Username
		case KeyApplicationPassword:
			return c.WordPress.ApplicationPassword
		case KeyPostType:
			return c.WordPress.PostType
		}
	}
	return c.Extra[key]
}

// Set stores value under key in the typed variant when the key belongs to it,
// in Extra otherwise.
func (c *ConnectionConfig) Set(key, value string) {
	switch {
	case c.Webflow != nil:
		switch key {
		case KeyAPIToken:
			c.Webflow.APIToken = value
			return
		case KeySiteID:
			c.Webflow.SiteID = value
			return
		case KeyCollectionID:
			c.Webflow.CollectionID = value
			return
		}
	case c.WordPress != nil:
		switch key {
		case KeySiteURL:
			c.WordPress.SiteURL = value
			return
		case KeyUsername:
			c.WordPress.Username = value
			return
		case KeyApplicationPassword:
			c.WordPress.ApplicationPassword = value
			return
		case KeyPostType:
			c.WordPress.PostType = value
			return
		}
	}
	if c.Extra == nil {
		c.Extra = make(map[string]string)
	}
	c.Extra[key] = value
}

// Clone returns a deep copy.
func (c ConnectionConfig) Clone() ConnectionConfig {
	out := ConnectionConfig{Platform: c.Platform}
	if c.Webflow != nil {
		wf := *c.Webflow
		out.Webflow = &wf
	}
	if c.WordPress != nil {
		wp := *c.WordPress
		out.WordPress = &wp
	}
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// String never includes config values.
func (c ConnectionConfig) String() string {
	return fmt.Sprintf("ConnectionConfig{platform=%s, redacted}", c.Platform)
}

// LogValue never includes config values.
func (c ConnectionConfig) LogValue() slog.Value {
	return slog.GroupValue(slog.String("platform", string(c.Platform)), slog.Bool("redacted", true))
}

// ConfigField describes one connection config input.
type ConfigField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"` // text, password, url
	Required    bool   `json:"required"`
	Sensitive   bool   `json:"sensitive"`
	MinLength   int    `json:"min_length,omitempty"`
	MaxLength   int    `json:"max_length,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Help        string `json:"help,omitempty"`
}

// ValidationResult accumulates every violation, keyed by field name.
type ValidationResult struct {
	Valid  bool                `json:"valid"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func (r *ValidationResult) add(field, msg string) {
	if r.Errors == nil {
		r.Errors = make(map[string][]string)
	}
	r.Errors[field] = append(r.Errors[field], msg)
	r.Valid = false
}

// Err returns a *ConfigValidationError when the result is invalid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ConfigValidationError{Fields: r.Errors}
}

var validate = validator.New()

// ValidateFields checks cfg against the declared fields without failing
// fast: every field is checked and every violation reported.
func ValidateFields(cfg ConnectionConfig, fields []ConfigField) *ValidationResult {
	res := &ValidationResult{Valid: true}

	for _, f := range fields {
		v := strings.TrimSpace(cfg.Value(f.Name))
		if v == "" {
			if f.Required {
				res.add(f.Name, fmt.Sprintf("%s is required", labelOf(f)))
			}
			continue
		}

		if f.MinLength > 0 {
			if err := validate.Var(v, fmt.Sprintf("min=%d", f.MinLength)); err != nil {
				res.add(f.Name, fmt.Sprintf("%s must be at least %d characters", labelOf(f), f.MinLength))
			}
		}
		if f.MaxLength > 0 {
			if err := validate.Var(v, fmt.Sprintf("max=%d", f.MaxLength)); err != nil {
				res.add(f.Name, fmt.Sprintf("%s must be at most %d characters", labelOf(f), f.MaxLength))
			}
		}
		if f.Type == "url" {
			if err := validate.Var(v, "http_url"); err != nil {
				res.add(f.Name, fmt.Sprintf("%s must be an http(s) URL", labelOf(f)))
			}
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				slog.Warn("invalid config field pattern", "field", f.Name, "error", err)
				continue
			}
			if !re.MatchString(v) {
				res.add(f.Name, fmt.Sprintf("%s has an invalid format", labelOf(f)))
			}
		}
	}

	return res
}

func labelOf(f ConfigField) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

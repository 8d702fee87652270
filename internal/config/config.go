package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Security   SecurityConfig   `toml:"security"`
	Publishing PublishingConfig `toml:"publishing"`
	Webflow    WebflowConfig    `toml:"webflow"`
	WordPress  WordPressConfig  `toml:"wordpress"`
	Lock       LockConfig       `toml:"lock"`
	Health     HealthConfig     `toml:"health"`
	Importer   ImporterConfig   `toml:"importer"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds SQLite settings. An empty path means
// pressroom.db inside the data directory.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SecurityConfig holds the credential encryption key: 32 raw bytes or 64
// hex characters.
type SecurityConfig struct {
	EncryptionKey string `toml:"encryption_key"`
}

// PublishingConfig holds platform call timeouts and the retry policy.
type PublishingConfig struct {
	ReadTimeoutSeconds  int     `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int     `toml:"write_timeout_seconds"`
	RetryAttempts       int     `toml:"retry_attempts"`
	RetryBaseDelayMs    int     `toml:"retry_base_delay_ms"`
	RetryMultiplier     float64 `toml:"retry_multiplier"`
}

// ReadTimeout returns the read timeout as a duration.
func (p PublishingConfig) ReadTimeout() time.Duration {
	return time.Duration(p.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (p PublishingConfig) WriteTimeout() time.Duration {
	return time.Duration(p.WriteTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first retry delay as a duration.
func (p PublishingConfig) RetryBaseDelay() time.Duration {
	return time.Duration(p.RetryBaseDelayMs) * time.Millisecond
}

// WebflowConfig holds Webflow API settings.
type WebflowConfig struct {
	APIBaseURL string `toml:"api_base_url"`
}

// WordPressConfig holds WordPress REST API settings.
type WordPressConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LockConfig selects the publish lock backend.
type LockConfig struct {
	Backend       string `toml:"backend"` // "memory" or "redis"
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	TTLSeconds    int    `toml:"ttl_seconds"`
}

// TTL returns the lock TTL as a duration.
func (l LockConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// HealthConfig holds integration health monitor settings.
type HealthConfig struct {
	CheckIntervalMinutes int `toml:"check_interval_minutes"` // 0 disables
}

// ImporterConfig holds feed import settings.
type ImporterConfig struct {
	MaxItems           int  `toml:"max_items"`
	ExtractFullContent bool `toml:"extract_full_content"`
	TimeoutSeconds     int  `toml:"timeout_seconds"`
	RateLimitMs        int  `toml:"rate_limit_ms"`
}

const defaultConfigContent = `[server]
host = "127.0.0.1"
port = 8080

[database]
path = ""                         # Defaults to pressroom.db in the data directory

[security]
encryption_key = "%s" # Or set PRESSROOM_ENCRYPTION_KEY

[publishing]
read_timeout_seconds = 15
write_timeout_seconds = 30
retry_attempts = 3
retry_base_delay_ms = 1000
retry_multiplier = 2.0

[webflow]
api_base_url = "https://api.webflow.com/v2"

[wordpress]
timeout_seconds = 15

[lock]
backend = "memory"                # "memory" or "redis"
redis_addr = "localhost:6379"     # Or set PRESSROOM_REDIS_ADDR
ttl_seconds = 120

[health]
check_interval_minutes = 30       # 0 disables periodic checks

[importer]
max_items = 20
extract_full_content = false
timeout_seconds = 30
rate_limit_ms = 1000
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Explicit zeros such as "port = 0" are errors, not requests for the
	// default, so they are checked before defaults fill them in.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed. The file gets a freshly
// generated encryption key, so it is private to the owner.
func createDefault(path string) error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generating encryption key: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	content := fmt.Sprintf(defaultConfigContent, hex.EncodeToString(key))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	positive := []struct {
		section, key string
		value        int
	}{
		{"publishing", "read_timeout_seconds", cfg.Publishing.ReadTimeoutSeconds},
		{"publishing", "write_timeout_seconds", cfg.Publishing.WriteTimeoutSeconds},
		{"publishing", "retry_attempts", cfg.Publishing.RetryAttempts},
		{"wordpress", "timeout_seconds", cfg.WordPress.TimeoutSeconds},
		{"lock", "ttl_seconds", cfg.Lock.TTLSeconds},
		{"importer", "timeout_seconds", cfg.Importer.TimeoutSeconds},
	}
	for _, p := range positive {
		if md.IsDefined(p.section, p.key) && p.value < 1 {
			return fmt.Errorf("invalid %s.%s %d: must be >= 1", p.section, p.key, p.value)
		}
	}
	if md.IsDefined("health", "check_interval_minutes") && cfg.Health.CheckIntervalMinutes < 0 {
		return fmt.Errorf("invalid health.check_interval_minutes %d: must be >= 0", cfg.Health.CheckIntervalMinutes)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Publishing.ReadTimeoutSeconds == 0 {
		cfg.Publishing.ReadTimeoutSeconds = 15
	}
	if cfg.Publishing.WriteTimeoutSeconds == 0 {
		cfg.Publishing.WriteTimeoutSeconds = 30
	}
	if cfg.Publishing.RetryAttempts == 0 {
		cfg.Publishing.RetryAttempts = 3
	}
	if cfg.Publishing.RetryBaseDelayMs == 0 {
		cfg.Publishing.RetryBaseDelayMs = 1000
	}
	if cfg.Publishing.RetryMultiplier == 0 {
		cfg.Publishing.RetryMultiplier = 2
	}
	if cfg.Webflow.APIBaseURL == "" {
		cfg.Webflow.APIBaseURL = "https://api.webflow.com/v2"
	}
	if cfg.WordPress.TimeoutSeconds == 0 {
		cfg.WordPress.TimeoutSeconds = 15
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "memory"
	}
	if cfg.Lock.RedisAddr == "" {
		cfg.Lock.RedisAddr = "localhost:6379"
	}
	if cfg.Lock.TTLSeconds == 0 {
		cfg.Lock.TTLSeconds = 120
	}
	// health.check_interval_minutes keeps an explicit or implicit 0: the
	// generated default file enables it.
	if cfg.Importer.MaxItems == 0 {
		cfg.Importer.MaxItems = 20
	}
	if cfg.Importer.TimeoutSeconds == 0 {
		cfg.Importer.TimeoutSeconds = 30
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESSROOM_ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := os.Getenv("PRESSROOM_REDIS_ADDR"); v != "" {
		cfg.Lock.RedisAddr = v
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	switch cfg.Lock.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid lock.backend %q: must be \"memory\" or \"redis\"", cfg.Lock.Backend)
	}

	if cfg.Publishing.RetryMultiplier < 1 {
		return fmt.Errorf("invalid publishing.retry_multiplier %g: must be >= 1", cfg.Publishing.RetryMultiplier)
	}

	if cfg.Security.EncryptionKey == "" {
		return errors.New("security.encryption_key is empty: set it in the config file or via PRESSROOM_ENCRYPTION_KEY")
	}

	return nil
}

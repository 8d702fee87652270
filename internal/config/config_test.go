package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// writeTestConfig is a helper that writes a TOML config file to a temp directory
// and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PRESSROOM_ENCRYPTION_KEY", "")
	t.Setenv("PRESSROOM_REDIS_ADDR", "")
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	content := `
[server]
host = "0.0.0.0"
port = 9090

[database]
path = "/var/lib/pressroom/db.sqlite"

[security]
encryption_key = "` + testKey + `"

[publishing]
read_timeout_seconds = 5
write_timeout_seconds = 20
retry_attempts = 4
retry_base_delay_ms = 250
retry_multiplier = 3.0

[webflow]
api_base_url = "http://localhost:9999/v2"

[wordpress]
timeout_seconds = 7

[lock]
backend = "redis"
redis_addr = "redis:6379"
redis_db = 2
ttl_seconds = 60

[health]
check_interval_minutes = 5

[importer]
max_items = 10
extract_full_content = true
timeout_seconds = 12
rate_limit_ms = 500
`
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if got := cfg.Server.Addr(); got != "0.0.0.0:9090" {
		t.Errorf("Server.Addr() = %q, want %q", got, "0.0.0.0:9090")
	}
	if cfg.Database.Path != "/var/lib/pressroom/db.sqlite" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Security.EncryptionKey != testKey {
		t.Errorf("Security.EncryptionKey = %q, want test key", cfg.Security.EncryptionKey)
	}
	if cfg.Publishing.ReadTimeout() != 5*time.Second {
		t.Errorf("Publishing.ReadTimeout() = %v, want 5s", cfg.Publishing.ReadTimeout())
	}
	if cfg.Publishing.WriteTimeout() != 20*time.Second {
		t.Errorf("Publishing.WriteTimeout() = %v, want 20s", cfg.Publishing.WriteTimeout())
	}
	if cfg.Publishing.RetryAttempts != 4 {
		t.Errorf("Publishing.RetryAttempts = %d, want 4", cfg.Publishing.RetryAttempts)
	}
	if cfg.Publishing.RetryBaseDelay() != 250*time.Millisecond {
		t.Errorf("Publishing.RetryBaseDelay() = %v, want 250ms", cfg.Publishing.RetryBaseDelay())
	}
	if cfg.Publishing.RetryMultiplier != 3 {
		t.Errorf("Publishing.RetryMultiplier = %g, want 3", cfg.Publishing.RetryMultiplier)
	}
	if cfg.Webflow.APIBaseURL != "http://localhost:9999/v2" {
		t.Errorf("Webflow.APIBaseURL = %q", cfg.Webflow.APIBaseURL)
	}
	if cfg.WordPress.TimeoutSeconds != 7 {
		t.Errorf("WordPress.TimeoutSeconds = %d, want 7", cfg.WordPress.TimeoutSeconds)
	}
	if cfg.Lock.Backend != "redis" || cfg.Lock.RedisAddr != "redis:6379" || cfg.Lock.RedisDB != 2 {
		t.Errorf("Lock = %+v", cfg.Lock)
	}
	if cfg.Lock.TTL() != time.Minute {
		t.Errorf("Lock.TTL() = %v, want 1m", cfg.Lock.TTL())
	}
	if cfg.Health.CheckIntervalMinutes != 5 {
		t.Errorf("Health.CheckIntervalMinutes = %d, want 5", cfg.Health.CheckIntervalMinutes)
	}
	if cfg.Importer.MaxItems != 10 || !cfg.Importer.ExtractFullContent || cfg.Importer.TimeoutSeconds != 12 || cfg.Importer.RateLimitMs != 500 {
		t.Errorf("Importer = %+v", cfg.Importer)
	}
}

func TestLoad_MissingFile_CreatesDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config file not created at %q: %v", path, err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("default config mode = %o, want 600", perm)
	}

	if len(cfg.Security.EncryptionKey) != 64 {
		t.Errorf("generated EncryptionKey has %d chars, want 64", len(cfg.Security.EncryptionKey))
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Lock.Backend != "memory" {
		t.Errorf("Lock.Backend = %q, want memory", cfg.Lock.Backend)
	}
	if cfg.Health.CheckIntervalMinutes != 30 {
		t.Errorf("Health.CheckIntervalMinutes = %d, want 30", cfg.Health.CheckIntervalMinutes)
	}

	// Loading again reuses the generated key.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.Security.EncryptionKey != cfg.Security.EncryptionKey {
		t.Error("second Load produced a different encryption key")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	clearEnv(t)
	content := `
[security]
encryption_key = "` + testKey + `"

[server]
`
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("Server.Addr() = %q, want default", cfg.Server.Addr())
	}
	if cfg.Publishing.RetryAttempts != 3 || cfg.Publishing.RetryBaseDelay() != time.Second || cfg.Publishing.RetryMultiplier != 2 {
		t.Errorf("Publishing = %+v, want default retry policy", cfg.Publishing)
	}
	if cfg.Webflow.APIBaseURL != "https://api.webflow.com/v2" {
		t.Errorf("Webflow.APIBaseURL = %q, want default", cfg.Webflow.APIBaseURL)
	}
	if cfg.Lock.TTL() != 2*time.Minute {
		t.Errorf("Lock.TTL() = %v, want 2m", cfg.Lock.TTL())
	}
	if cfg.Health.CheckIntervalMinutes != 0 {
		t.Errorf("Health.CheckIntervalMinutes = %d, want 0 when omitted", cfg.Health.CheckIntervalMinutes)
	}
	if cfg.Importer.MaxItems != 20 || cfg.Importer.TimeoutSeconds != 30 {
		t.Errorf("Importer = %+v, want defaults", cfg.Importer)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
[security]
encryption_key = "from-config-which-is-not-used-at-all-0000000"

[lock]
redis_addr = "config:6379"
`
	path := writeTestConfig(t, content)
	t.Setenv("PRESSROOM_ENCRYPTION_KEY", testKey)
	t.Setenv("PRESSROOM_REDIS_ADDR", "env:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.Security.EncryptionKey != testKey {
		t.Errorf("EncryptionKey = %q, want value from PRESSROOM_ENCRYPTION_KEY", cfg.Security.EncryptionKey)
	}
	if cfg.Lock.RedisAddr != "env:6379" {
		t.Errorf("Lock.RedisAddr = %q, want value from PRESSROOM_REDIS_ADDR", cfg.Lock.RedisAddr)
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, "[server]\nport = 8080\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load expected error for missing encryption key, got nil")
	}
	if !strings.Contains(err.Error(), "PRESSROOM_ENCRYPTION_KEY") {
		t.Errorf("error = %v, want hint about PRESSROOM_ENCRYPTION_KEY", err)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		port string
	}{
		{name: "zero", port: "0"},
		{name: "negative", port: "-1"},
		{name: "too high", port: "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `
[security]
encryption_key = "` + testKey + `"

[server]
port = ` + tt.port + `
`
			path := writeTestConfig(t, content)

			_, err := Load(path)
			if err == nil {
				t.Fatalf("Load(%q) expected error for port %s, got nil", path, tt.port)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		section string
	}{
		{name: "zero retry attempts", section: "[publishing]\nretry_attempts = 0"},
		{name: "zero read timeout", section: "[publishing]\nread_timeout_seconds = 0"},
		{name: "multiplier below one", section: "[publishing]\nretry_multiplier = 0.5"},
		{name: "zero lock ttl", section: "[lock]\nttl_seconds = 0"},
		{name: "unknown lock backend", section: "[lock]\nbackend = \"etcd\""},
		{name: "negative health interval", section: "[health]\ncheck_interval_minutes = -5"},
		{name: "zero wordpress timeout", section: "[wordpress]\ntimeout_seconds = 0"},
		{name: "zero importer timeout", section: "[importer]\ntimeout_seconds = 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "[security]\nencryption_key = \"" + testKey + "\"\n\n" + tt.section + "\n"
			path := writeTestConfig(t, content)

			if _, err := Load(path); err == nil {
				t.Fatalf("Load expected error for %s, got nil", tt.name)
			}
		})
	}
}

func TestLoad_HealthIntervalZeroDisables(t *testing.T) {
	clearEnv(t)
	content := "[security]\nencryption_key = \"" + testKey + "\"\n\n[health]\ncheck_interval_minutes = 0\n"
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load unexpected error: %v", err)
	}
	if cfg.Health.CheckIntervalMinutes != 0 {
		t.Errorf("Health.CheckIntervalMinutes = %d, want 0", cfg.Health.CheckIntervalMinutes)
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, "[server\nport = ")

	if _, err := Load(path); err == nil {
		t.Fatal("Load expected parse error, got nil")
	}
}

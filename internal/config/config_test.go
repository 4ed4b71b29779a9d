// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:9000"
  grpc_addr: "127.0.0.1:9001"
  environment: production

database:
  driver: sqlite
  path: "./test.db"

auth:
  jwt_secret: "`+testSecret+`"
  token_lifetime: "30m"
  cookie_name: "session"
  same_site: strict
  revocation:
    enabled: true
    max_entries: 50

srp:
  group: rfc5054-2048-argon2id
  handshake_ttl: "90s"
  sweep_interval: "10s"
  max_pending: 100
  decoy_key: "decoy"

cors:
  allowed_origins:
    - "https://petitions.example.org"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9000")
	}
	if cfg.Server.GRPCAddr != "127.0.0.1:9001" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "127.0.0.1:9001")
	}
	if cfg.Server.IsLocal() {
		t.Error("Server.IsLocal() = true, want false")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Auth.TokenLifetime != 30*time.Minute {
		t.Errorf("Auth.TokenLifetime = %v, want %v", cfg.Auth.TokenLifetime, 30*time.Minute)
	}
	if cfg.Auth.CookieName != "session" {
		t.Errorf("Auth.CookieName = %q, want %q", cfg.Auth.CookieName, "session")
	}
	if !cfg.Auth.Revocation.Enabled || cfg.Auth.Revocation.MaxEntries != 50 {
		t.Errorf("Auth.Revocation = %+v, want enabled with 50 entries", cfg.Auth.Revocation)
	}
	if cfg.SRP.Group != "rfc5054-2048-argon2id" {
		t.Errorf("SRP.Group = %q", cfg.SRP.Group)
	}
	if cfg.SRP.HandshakeTTL != 90*time.Second {
		t.Errorf("SRP.HandshakeTTL = %v, want %v", cfg.SRP.HandshakeTTL, 90*time.Second)
	}
	if cfg.SRP.SweepInterval != 10*time.Second {
		t.Errorf("SRP.SweepInterval = %v, want %v", cfg.SRP.SweepInterval, 10*time.Second)
	}
	if cfg.SRP.MaxPending != 100 {
		t.Errorf("SRP.MaxPending = %d, want 100", cfg.SRP.MaxPending)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("CORS.AllowedOrigins len = %d, want 1", len(cfg.CORS.AllowedOrigins))
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:9000"

[database]
driver = "sqlite3"
path = "gateway.db"

[auth]
jwt_secret = "`+testSecret+`"
token_lifetime = "2h"

[srp]
handshake_ttl = "1m"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != DriverSQLite3 {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite3)
	}
	if cfg.Auth.TokenLifetime != 2*time.Hour {
		t.Errorf("Auth.TokenLifetime = %v, want 2h", cfg.Auth.TokenLifetime)
	}
	if cfg.SRP.HandshakeTTL != time.Minute {
		t.Errorf("SRP.HandshakeTTL = %v, want 1m", cfg.SRP.HandshakeTTL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Server.GRPCAddr != "" {
		t.Errorf("Server.GRPCAddr = %q, want empty", cfg.Server.GRPCAddr)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Auth.TokenLifetime != DefaultTokenLifetime {
		t.Errorf("Auth.TokenLifetime = %v, want %v", cfg.Auth.TokenLifetime, DefaultTokenLifetime)
	}
	if cfg.SRP.Group != "rfc5054-2048-sha256" {
		t.Errorf("SRP.Group = %q", cfg.SRP.Group)
	}
	if cfg.SRP.HandshakeTTL != DefaultHandshakeTTL {
		t.Errorf("SRP.HandshakeTTL = %v, want %v", cfg.SRP.HandshakeTTL, DefaultHandshakeTTL)
	}
	if cfg.SRP.MaxPending != DefaultMaxPending {
		t.Errorf("SRP.MaxPending = %d, want %d", cfg.SRP.MaxPending, DefaultMaxPending)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
	if cfg.Server.Environment != DefaultEnvironment {
		t.Errorf("Server.Environment = %q, want %q", cfg.Server.Environment, DefaultEnvironment)
	}
	if !cfg.Server.IsLocal() {
		t.Error("Server.IsLocal() = false, want true")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("PETITION_TEST_SECRET", testSecret)
	t.Setenv("PETITION_TEST_DB", "/var/lib/petition/test.db")

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "${PETITION_TEST_DB}"
auth:
  jwt_secret: "${PETITION_TEST_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want expanded secret", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Path != "/var/lib/petition/test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	const key = "PETITION_TEST_DOTENV_SECRET"
	t.Setenv(key, "")
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"="+testSecret+"\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	content := "database:\n  path: test.db\nauth:\n  jwt_secret: \"${" + key + "}\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want value from .env", cfg.Auth.JWTSecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", "server: [unclosed")
	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: test.db
auth:
  jwt_secret: "`+testSecret+`"
srp:
  handshake_ttl: "soon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "srp.handshake_ttl") {
		t.Errorf("error %q does not name the field", err)
	}
}

func TestServerConfig_IsLocal(t *testing.T) {
	tests := map[string]bool{
		"development": true,
		"Local":       true,
		"production":  false,
		"staging":     false,
		"qa":          false,
	}
	for env, want := range tests {
		if got := (ServerConfig{Environment: env}).IsLocal(); got != want {
			t.Errorf("IsLocal() with environment %q = %v, want %v", env, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Database: DatabaseConfig{Path: "test.db"},
			Auth:     AuthConfig{JWTSecret: testSecret},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.dsn"},
		{"postgres with dsn", func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.DSN = "postgres://localhost/petitions"
		}, ""},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"unknown group", func(c *Config) { c.SRP.Group = "rfc5054-1024-sha1" }, "srp.group"},
		{"bad same site", func(c *Config) { c.Auth.SameSite = "sometimes" }, "same_site"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"negative ttl", func(c *Config) { c.SRP.HandshakeTTL = -time.Second }, "srp durations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PETITION_TEST_A", "alpha")

	tests := []struct {
		in   string
		want string
	}{
		{"${PETITION_TEST_A}", "alpha"},
		{"x-${PETITION_TEST_A}-y", "x-alpha-y"},
		{"${PETITION_TEST_UNSET_VAR}", ""},
		{"no vars", "no vars"},
		{"$PETITION_TEST_A", "$PETITION_TEST_A"},
	}
	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPath(t *testing.T) {
	t.Setenv("PETITION_CONFIG", "/etc/petition/gateway.toml")
	if got := Path(); got != "/etc/petition/gateway.toml" {
		t.Errorf("Path() = %q", got)
	}

	t.Setenv("PETITION_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := Path(); got != filepath.Join("/tmp/xdg", "petition", "gateway.yaml") {
		t.Errorf("Path() = %q", got)
	}

	t.Setenv("XDG_DATA_HOME", "/tmp/data")
	if got := DataDir(); got != filepath.Join("/tmp/data", "petition") {
		t.Errorf("DataDir() = %q", got)
	}
}

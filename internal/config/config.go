// ABOUTME: Configuration loading and parsing for petition-gateway
// ABOUTME: Supports YAML or TOML files with .env loading, environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/petition-gateway/internal/srp"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultHTTPAddr        = "0.0.0.0:8080"
	DefaultEnvironment     = "development"
	DefaultDatabaseDriver  = "sqlite"
	DefaultTokenLifetime   = time.Hour
	DefaultHandshakeTTL    = 2 * time.Minute
	DefaultSweepInterval   = 30 * time.Second
	DefaultMaxPending      = 10000
	DefaultRevocationLimit = 10000

	// MinJWTSecretLength is the minimum HS256 key size in bytes.
	MinJWTSecretLength = 32
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
)

// Config represents the complete petition-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	SRP       SRPConfig       `yaml:"srp" toml:"srp"`
	CORS      CORSConfig      `yaml:"cors" toml:"cors"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// GRPCAddr enables the gRPC health listener when set.
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`

	// Environment names the deployment. Only "development" and "local" run
	// without Secure cookies.
	Environment string `yaml:"environment" toml:"environment"`
}

// IsLocal reports whether the server runs in local development, where
// cookies may travel over plain HTTP.
func (s ServerConfig) IsLocal() bool {
	return strings.EqualFold(s.Environment, "development") || strings.EqualFold(s.Environment, "local")
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve HTTPS on :443 with Tailscale-issued certs
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Serve publicly over Funnel (implies HTTPS)
}

// DatabaseConfig selects the credential store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite, sqlite3, postgres
	Path   string `yaml:"path" toml:"path"`     // SQLite file
	DSN    string `yaml:"dsn" toml:"dsn"`       // Postgres connection string
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret    string           `yaml:"jwt_secret" toml:"jwt_secret"`
	Issuer       string           `yaml:"issuer" toml:"issuer"`
	CookieName   string           `yaml:"cookie_name" toml:"cookie_name"`
	CookieDomain string           `yaml:"cookie_domain" toml:"cookie_domain"`
	SameSite     string           `yaml:"same_site" toml:"same_site"` // lax, strict, none
	Revocation   RevocationConfig `yaml:"revocation" toml:"revocation"`

	TokenLifetime    time.Duration `yaml:"-" toml:"-"`
	TokenLifetimeRaw string        `yaml:"token_lifetime" toml:"token_lifetime"`
}

// RevocationConfig enables the in-memory token denylist used by logout.
type RevocationConfig struct {
	Enabled    bool `yaml:"enabled" toml:"enabled"`
	MaxEntries int  `yaml:"max_entries" toml:"max_entries"`
}

// SRPConfig holds handshake configuration
type SRPConfig struct {
	Group      string `yaml:"group" toml:"group"`
	MaxPending int    `yaml:"max_pending" toml:"max_pending"`

	// DecoyKey keys the fake salts served for unknown identities. When empty
	// a random key is generated at startup, so decoys change across restarts.
	DecoyKey string `yaml:"decoy_key" toml:"decoy_key"`

	HandshakeTTL  time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	HandshakeTTLRaw  string `yaml:"handshake_ttl" toml:"handshake_ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval" toml:"sweep_interval"`
}

// CORSConfig lists browser origins allowed to send credentialed requests.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file next to the config (or in the working directory) is loaded first
// without overriding variables already set. Environment variables in the format
// ${VAR_NAME} are expanded. Files ending in .toml are parsed as TOML, everything
// else as YAML.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, formatFor(path))
}

// Format is a config file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes, defaults and validates raw configuration content.
func Parse(data []byte, format Format) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads .env files; a missing file is not an error.
func loadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.Environment == "" {
		c.Server.Environment = DefaultEnvironment
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Auth.TokenLifetime == 0 {
		c.Auth.TokenLifetime = DefaultTokenLifetime
	}
	if c.Auth.Revocation.MaxEntries == 0 {
		c.Auth.Revocation.MaxEntries = DefaultRevocationLimit
	}
	if c.SRP.Group == "" {
		c.SRP.Group = srp.DefaultGroup
	}
	if c.SRP.HandshakeTTL == 0 {
		c.SRP.HandshakeTTL = DefaultHandshakeTTL
	}
	if c.SRP.SweepInterval == 0 {
		c.SRP.SweepInterval = DefaultSweepInterval
	}
	if c.SRP.MaxPending == 0 {
		c.SRP.MaxPending = DefaultMaxPending
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverSQLite3:
		if c.Database.Path == "" {
			return errors.New("database.path is required")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not one of sqlite, sqlite3, postgres", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.TokenLifetime < 0 {
		return errors.New("auth.token_lifetime must be positive")
	}
	switch strings.ToLower(c.Auth.SameSite) {
	case "", "lax", "strict", "none":
	default:
		return fmt.Errorf("auth.same_site %q is not one of lax, strict, none", c.Auth.SameSite)
	}
	if c.Auth.Revocation.MaxEntries < 0 {
		return errors.New("auth.revocation.max_entries must be positive")
	}

	if _, err := srp.Lookup(c.SRP.Group); err != nil {
		return fmt.Errorf("srp.group %q is not registered (known: %s)", c.SRP.Group, strings.Join(srp.GroupNames(), ", "))
	}
	if c.SRP.HandshakeTTL < 0 || c.SRP.SweepInterval < 0 {
		return errors.New("srp durations must be positive")
	}
	if c.SRP.MaxPending < 0 {
		return errors.New("srp.max_pending must be positive")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_lifetime", cfg.Auth.TokenLifetimeRaw, &cfg.Auth.TokenLifetime},
		{"srp.handshake_ttl", cfg.SRP.HandshakeTTLRaw, &cfg.SRP.HandshakeTTL},
		{"srp.sweep_interval", cfg.SRP.SweepIntervalRaw, &cfg.SRP.SweepInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Path returns the path to the gateway config file.
// Priority: PETITION_CONFIG env var > XDG_CONFIG_HOME/petition/gateway.yaml > ~/.config/petition/gateway.yaml
func Path() string {
	if envPath := os.Getenv("PETITION_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(Dir(), "gateway.yaml")
}

// Dir returns the petition config directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "petition")
}

// DataDir returns the petition data directory.
// Priority: XDG_DATA_HOME/petition > ~/.local/share/petition
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "petition")
}

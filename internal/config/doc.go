// Package config handles configuration loading for petition-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PETITION_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/petition/gateway.yaml
//  3. ~/.config/petition/gateway.yaml
//
// Files ending in .toml are decoded as TOML; everything else as YAML. A .env
// file beside the config, or in the working directory, is loaded first and
// never overrides variables that are already set.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PETITION_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  grpc_addr: ""                  # gRPC health listener, disabled when empty
//	  environment: "production"      # anything but development/local forces Secure cookies
//
//	database:
//	  driver: "sqlite"               # sqlite, sqlite3, postgres
//	  path: "/var/lib/petition/gateway.db"
//	  dsn: "${DATABASE_URL}"         # postgres only
//
//	auth:
//	  jwt_secret: "${PETITION_JWT_SECRET}"   # at least 32 bytes
//	  token_lifetime: "1h"
//	  cookie_name: "jwt"
//	  same_site: "lax"
//	  revocation:
//	    enabled: false
//	    max_entries: 10000
//
//	srp:
//	  group: "rfc5054-2048-sha256"
//	  handshake_ttl: "2m"
//	  sweep_interval: "30s"
//	  max_pending: 10000
//	  decoy_key: "${PETITION_DECOY_KEY}"
//
//	cors:
//	  allowed_origins: ["https://petitions.example.org"]
//
//	tailscale:
//	  enabled: false
//	  hostname: "petition-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Durations use time.ParseDuration syntax.
package config

// ABOUTME: Interactive "init" command that writes a starter gateway config
// ABOUTME: Generates a random JWT secret and decoy key so a fresh install is usable immediately

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/petition-gateway/internal/config"
	"github.com/2389/petition-gateway/internal/srp"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(bufio.NewReader(cmd.InOrStdin()))
		},
	}
}

func runInit(reader *bufio.Reader) error {
	fmt.Println("petition-gateway configuration setup")
	fmt.Println("====================================")
	fmt.Println()

	defaultDBPath := filepath.Join(config.DataDir(), "gateway.db")

	outputFile := prompt(reader, "Config file path", resolveConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	grpcAddr := prompt(reader, "gRPC health address (empty to disable)", "")
	environment := prompt(reader, "Environment (development/production)", "development")

	fmt.Println("\n--- Database Configuration ---")
	driver := prompt(reader, "Driver (sqlite/sqlite3/postgres)", config.DefaultDatabaseDriver)
	var dbPath, dsn string
	if driver == config.DriverPostgres {
		dsn = prompt(reader, "Postgres DSN", "postgres://localhost:5432/petition?sslmode=disable")
	} else {
		dbPath = prompt(reader, "SQLite database path", defaultDBPath)
	}

	fmt.Println("\n--- SRP Configuration ---")
	group := prompt(reader, "SRP group ("+strings.Join(srp.GroupNames(), ", ")+")", srp.DefaultGroup)

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))
	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "petition-gateway")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for interactive)", "")
		tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	jwtSecret, err := randomSecret(32)
	if err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	decoyKey, err := randomSecret(32)
	if err != nil {
		return fmt.Errorf("generating decoy key: %w", err)
	}

	var cfg strings.Builder
	cfg.WriteString("# petition-gateway configuration\n")
	cfg.WriteString("# Generated by petition-gateway init\n\n")

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n", httpAddr)
	if grpcAddr != "" {
		fmt.Fprintf(&cfg, "  grpc_addr: %q\n", grpcAddr)
	}
	fmt.Fprintf(&cfg, "  environment: %q\n\n", environment)

	cfg.WriteString("database:\n")
	fmt.Fprintf(&cfg, "  driver: %q\n", driver)
	if dsn != "" {
		fmt.Fprintf(&cfg, "  dsn: %q\n\n", dsn)
	} else {
		fmt.Fprintf(&cfg, "  path: %q\n\n", dbPath)
	}

	cfg.WriteString("auth:\n")
	fmt.Fprintf(&cfg, "  jwt_secret: %q\n", jwtSecret)
	cfg.WriteString("  token_lifetime: \"1h\"\n")
	cfg.WriteString("  same_site: \"lax\"\n")
	cfg.WriteString("  revocation:\n")
	cfg.WriteString("    enabled: false\n\n")

	cfg.WriteString("srp:\n")
	fmt.Fprintf(&cfg, "  group: %q\n", group)
	fmt.Fprintf(&cfg, "  decoy_key: %q\n", decoyKey)
	cfg.WriteString("  handshake_ttl: \"2m\"\n\n")

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", tailscaleEnabled)
	if tailscaleEnabled {
		fmt.Fprintf(&cfg, "  hostname: %q\n", tsHostname)
		if tsAuthKey != "" {
			fmt.Fprintf(&cfg, "  auth_key: %q\n", tsAuthKey)
		}
		fmt.Fprintf(&cfg, "  ephemeral: %t\n", tsEphemeral)
		fmt.Fprintf(&cfg, "  funnel: %t\n", tsFunnel)
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", logLevel)
	fmt.Fprintf(&cfg, "  format: %q\n", logFormat)

	// Validate before writing so a typo never produces an unusable file
	if _, err := config.Parse([]byte(cfg.String()), config.FormatYAML); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	green := color.New(color.FgGreen)
	green.Printf("\n  ✓ Config written to %s\n", outputFile)
	fmt.Println("\nNext steps:")
	fmt.Println("  petition-gateway provision --id admin --role super-admin")
	fmt.Println("  petition-gateway serve")
	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

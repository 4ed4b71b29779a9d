// ABOUTME: Tests for the gateway binary's helpers and provision command
// ABOUTME: Provisions against a temporary SQLite config and checks the stored credential logs in

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/petition-gateway/internal/config"
	"github.com/2389/petition-gateway/internal/gateway"
	"github.com/2389/petition-gateway/internal/store"
)

func TestHealthURL(t *testing.T) {
	tests := map[string]string{
		"0.0.0.0:8080":     "http://localhost:8080",
		":9000":            "http://localhost:9000",
		"gw.internal:8080": "http://gw.internal:8080",
	}
	for addr, want := range tests {
		if got := healthURL(addr); got != want {
			t.Errorf("healthURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func plainColors(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestLogHandler_MasksCredentialAttributes(t *testing.T) {
	plainColors(t)
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(newHandler(&buf, config.LoggingConfig{Level: "info", Format: format}))

			logger.With("identity_id", "u1").WithGroup("login").Info("verified",
				"client_proof", "deadbeef", "temporary_secret", "hunter2", "role", "staff")
			logger.Debug("hidden")

			out := buf.String()
			assert.Contains(t, out, "verified")
			assert.Contains(t, out, "u1")
			assert.Contains(t, out, "staff")
			assert.Contains(t, out, redacted)
			assert.NotContains(t, out, "deadbeef")
			assert.NotContains(t, out, "hunter2")
			assert.NotContains(t, out, "hidden")
		})
	}
}

func TestSensitiveKey(t *testing.T) {
	for _, k := range []string{"secret", "temporary_secret", "client_proof", "newSalt", "serverPublicEphemeral", "token"} {
		assert.True(t, sensitiveKey(k), k)
	}
	for _, k := range []string{"token_lifetime", "ephemeral_node", "identity_id", "role", ""} {
		assert.False(t, sensitiveKey(k), k)
	}
}

func TestLogHandler_GroupPrefix(t *testing.T) {
	plainColors(t)
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, config.LoggingConfig{Level: "debug"}))

	logger.WithGroup("handshake").With("pending", 3).Debug("sweep", slog.Group("expired", "count", 2))

	out := buf.String()
	assert.Contains(t, out, "handshake.pending=3")
	assert.Contains(t, out, "handshake.expired.count=2")
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	data := []byte(`
database:
  path: "` + filepath.Join(dir, "gateway.db") + `"
auth:
  jwt_secret: "cmd-test-secret-0123456789abcdefgh"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRunProvision(t *testing.T) {
	configPath = writeTestConfig(t)
	t.Cleanup(func() { configPath = "" })

	var out bytes.Buffer
	err := runProvision(context.Background(), &out, provisionOptions{
		identityID:   "clerk",
		role:         "department-admin",
		departmentID: "roads",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "department-admin")
	assert.Contains(t, out.String(), "roads")

	secret := regexp.MustCompile(`(?m)^\s+([A-Za-z0-9_-]{24})\s*$`).FindStringSubmatch(out.String())
	require.Len(t, secret, 2, "temporary secret not printed: %s", out.String())

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	s, err := gateway.OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	identity, err := s.GetIdentity(context.Background(), "clerk")
	require.NoError(t, err)
	assert.Equal(t, store.RoleDepartmentAdmin, identity.Role)
}

func TestRunProvision_Rejects(t *testing.T) {
	configPath = writeTestConfig(t)
	t.Cleanup(func() { configPath = "" })

	var out bytes.Buffer
	err := runProvision(context.Background(), &out, provisionOptions{identityID: "x", role: "janitor"})
	assert.ErrorIs(t, err, store.ErrInvalidRole)

	err = runProvision(context.Background(), &out, provisionOptions{identityID: "x", role: "staff"})
	assert.Error(t, err, "staff needs a department")
}

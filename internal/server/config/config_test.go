package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"testbin"}, args...)
	t.Cleanup(func() { os.Args = orig })
	t.Setenv("CONFIG", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetArgs(t)

	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.MaxSessionsPerUser)
	assert.Equal(t, 10*time.Minute, cfg.SessionSweepInterval)
	assert.Equal(t, []string{"admin"}, cfg.ScopeHintRoles)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	resetArgs(t, "-a", ":9090", "-d", "postgres://x", "-t", "24", "-m", "3", "-h", "admin,user")

	cfg := LoadConfig()

	assert.Equal(t, ":9090", cfg.EndpointAddrHTTP)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.MaxSessionsPerUser)
	assert.Equal(t, []string{"admin", "user"}, cfg.ScopeHintRoles)
}

func TestLoadConfig_JsonOverlay(t *testing.T) {
	payload := map[string]any{
		"endpoint_addr_http": ":7070",
		"session_ttl":        "48h",
		"scope_hint_roles":   []string{"admin", "viewer"},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	resetArgs(t, "-c", path)

	cfg := LoadConfig()

	assert.Equal(t, ":7070", cfg.EndpointAddrHTTP)
	assert.Equal(t, 48*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"admin", "viewer"}, cfg.ScopeHintRoles)
	// untouched fields keep their defaults
	assert.Equal(t, 10, cfg.MaxSessionsPerUser)
}

func TestLoadConfig_FlagsWinOverJson(t *testing.T) {
	payload := map[string]any{"endpoint_addr_http": ":7070"}
	b, err := json.Marshal(payload)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	resetArgs(t, "-c", path, "-a", ":6060")

	cfg := LoadConfig()
	assert.Equal(t, ":6060", cfg.EndpointAddrHTTP)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
upstream:
  orchestratorHost: orchestrator.example.net
cache:
  refreshIntervalSeconds: 60
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "orchestrator.example.net", cfg.Upstream.OrchestratorHost)
	assert.Equal(t, 60, cfg.Cache.RefreshIntervalSecs)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, TransportStreamableHTTP, cfg.Server.Transport)
	assert.Equal(t, 5000, cfg.Query.MaxSorted)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
upstream:
  orchestratorHost: from-file.example.net
`), 0o600))

	t.Setenv("FABRIC_ORCHESTRATOR_HOST", "from-env.example.net")
	t.Setenv("FABRIC_MCP_PORT", "8123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.example.net", cfg.Upstream.OrchestratorHost)
	assert.Equal(t, 8123, cfg.Server.Port)
}

func TestBadIntEnvIgnored(t *testing.T) {
	t.Setenv("FABRIC_MCP_PORT", "not-a-port")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Upstream.OrchestratorHost = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Server.Transport = "carrier-pigeon"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Server.Port = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Query.MaxSorted = 0
	assert.Error(t, bad.Validate())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesManifest(t *testing.T) {
	path := writeManifest(t, `
subgraphs:
  - name: accounts
    transport: http
    url: http://localhost:4001/query
  - name: billing
    transport: grpc
    url: localhost:4002
cache:
  backend: memory
  shard_count: 16
auth:
  require_authenticated: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Subgraphs, 2)
	require.Equal(t, SubgraphConfig{Name: "accounts", Transport: TransportHTTP, URL: "http://localhost:4001/query"}, cfg.Subgraphs[0])
	require.Equal(t, SubgraphConfig{Name: "billing", Transport: TransportGRPC, URL: "localhost:4002"}, cfg.Subgraphs[1])
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, 16, cfg.Cache.ShardCount)
	require.True(t, cfg.Auth.RequireAuthenticated)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeManifest(t, "subgraphs: [this is not valid")
	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := &Config{Cache: CacheConfig{Backend: "memory"}}

	t.Setenv("FEDGATE_CACHE_BACKEND", "redis")
	t.Setenv("FEDGATE_REQUIRE_AUTHENTICATED", "1")
	ApplyEnvOverrides(cfg)

	require.Equal(t, "redis", cfg.Cache.Backend)
	require.True(t, cfg.Auth.RequireAuthenticated)
}

func TestApplyEnvOverridesLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := &Config{Cache: CacheConfig{Backend: "memory"}}
	ApplyEnvOverrides(cfg)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.False(t, cfg.Auth.RequireAuthenticated)
}

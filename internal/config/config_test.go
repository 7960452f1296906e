package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_appliesDefaultsForOmittedSections(t *testing.T) {
	path := writeConfig(t, `
resolvers:
  - 9.9.9.9:53
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"9.9.9.9:53"}, cfg.Resolvers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.Equal(t, 64, cfg.Cache.Shards)
	assert.Equal(t, PersistenceNone, cfg.Persistence.Backend)
}

func TestLoad_fullDocument(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  encoding: json
resolvers:
  - 1.1.1.1:53
  - 8.8.8.8:53
cache:
  size: 1000
  shards: 16
hosts:
  path: /tmp/hosts
persistence:
  backend: file
  path: /tmp/cache.snappy
throttle:
  qps: 200
  burst: 50
api:
  http: 127.0.0.1:9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Encoding)
	assert.Equal(t, []string{"1.1.1.1:53", "8.8.8.8:53"}, cfg.Resolvers)
	assert.Equal(t, 1000, cfg.Cache.Size)
	assert.Equal(t, "/tmp/hosts", cfg.Hosts.Path)
	assert.Equal(t, PersistenceFile, cfg.Persistence.Backend)
	assert.Equal(t, "/tmp/cache.snappy", cfg.Persistence.Path)
	assert.Equal(t, 200.0, cfg.Throttle.QPS)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.HTTP)
}

func TestLoad_rejectsEmptyResolvers(t *testing.T) {
	path := writeConfig(t, `resolvers: []`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_rejectsFileBackendWithoutPath(t *testing.T) {
	path := writeConfig(t, `
resolvers: ["1.1.1.1:53"]
persistence:
  backend: file
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_rejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
resolvers: ["1.1.1.1:53"]
bogus_field: true
`)
	_, err := Load(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTmpConfig(t, `
log:
  level: debug
global:
  metrics:
    enabled: true
    listen: ":9191"
pipes:
  - common:
      name: "ddas-ring"
    ringsource:
      transport_url: "tcp://localhost:46200"
      permitted_source_ids: [1, 2, 3]
      one_shot: true
      end_run_count: 2
    glom:
      building: true
      dt: 100
      timestamp_policy: first
    build_window: 1000000
    sink:
      type: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9191", cfg.Global.Metrics.Listen)
	require.Len(t, cfg.Pipes, 1)

	p := cfg.Pipes[0]
	assert.Equal(t, "ddas-ring", p.Common.Name)
	assert.Equal(t, []uint32{1, 2, 3}, p.RingSource.PermittedSourceIDs)
	assert.EqualValues(t, 100, p.Glom.CoincidenceDt)
}

func TestLoadDefaults(t *testing.T) {
	path := writeTmpConfig(t, `
pipes:
  - ringsource:
      transport_url: "file:///tmp/fixture.bin"
      permitted_source_ids: [7]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Global.Metrics.Enabled)
}

func TestLoadRejectsMissingTransportURL(t *testing.T) {
	path := writeTmpConfig(t, `
pipes:
  - ringsource:
      permitted_source_ids: [1]
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsEmptySourceIDs(t *testing.T) {
	path := writeTmpConfig(t, `
pipes:
  - ringsource:
      transport_url: "tcp://localhost:1"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateSourceIDs(t *testing.T) {
	path := writeTmpConfig(t, `
pipes:
  - ringsource:
      transport_url: "tcp://localhost:1"
      permitted_source_ids: [1, 1]
`)
	_, err := Load(path)
	assert.Error(t, err)
}

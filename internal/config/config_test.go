package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, defaults().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
name = "test"

[simulation]
tick_rate = "50ms"
spatial_policy = "deferred"
max_entities = 512

[persistence]
enabled = true
snapshot_interval_ticks = 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Server.Name)
	assert.Equal(t, 50*time.Millisecond, cfg.Simulation.TickRate)
	assert.Equal(t, "deferred", cfg.Simulation.SpatialPolicy)
	assert.Equal(t, 512, cfg.Simulation.MaxEntities)
	assert.Equal(t, 16, cfg.Simulation.ChunkTiles)
	assert.True(t, cfg.Persistence.Enabled)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[simulation]
chunk_hash_size = 1000
region_max_entities = 8192
spatial_policy = "later"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_hash_size")
	assert.Contains(t, err.Error(), "region_hash_size")
	assert.Contains(t, err.Error(), "spatial_policy")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

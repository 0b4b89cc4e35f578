package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("admin:\n  token: secret\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Wall.TileCount)
	assert.Equal(t, "LOCAL", cfg.Wall.Kind)
	assert.True(t, cfg.IsMuted())
	assert.Equal(t, 5*time.Second, cfg.BufferTimeout())
	assert.Equal(t, 0, cfg.Sync.GapMs)
	assert.False(t, cfg.Sync.FreeRun)
	assert.Equal(t, 0.04, cfg.Drift.Rate.SoftThreshold)
	assert.Equal(t, 0.5, cfg.Drift.Rate.HardThreshold)
	assert.Equal(t, 1.02, cfg.Drift.Rate.FastRate)
	assert.Equal(t, 0.98, cfg.Drift.Rate.SlowRate)
	assert.Equal(t, 16*time.Millisecond, cfg.Drift.Rate.Interval())
	assert.Equal(t, 0.25, cfg.Drift.Seek.SoftThreshold)
	assert.Equal(t, 1.0, cfg.Drift.Seek.HardThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Drift.Seek.Interval())
	assert.True(t, cfg.IsAutoAdvance())
	assert.False(t, cfg.Queue.LoopQueue)
}

func TestParse_ExplicitValues(t *testing.T) {
	doc := `
admin:
  token: secret
wall:
  tile_count: 9
  kind: remote
  muted: false
director:
  buffer_timeout_ms: 2500
sync:
  gap_ms: 120
  free_run: true
queue:
  auto_advance: false
  loop_queue: true
simulation:
  settings:
    buffer_delay_ms: 50
filters:
  source_ref_filter:
    enabled: true
    settings:
      allowed_extensions: [mp4]
  duplicate_source_filter:
    enabled: false
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Wall.TileCount)
	assert.Equal(t, "REMOTE", cfg.Wall.Kind)
	assert.False(t, cfg.IsMuted())
	assert.Equal(t, 2500*time.Millisecond, cfg.BufferTimeout())
	assert.Equal(t, 120, cfg.Sync.GapMs)
	assert.True(t, cfg.Sync.FreeRun)
	assert.False(t, cfg.IsAutoAdvance())
	assert.True(t, cfg.Queue.LoopQueue)
	assert.Equal(t, 50, cfg.Simulation.Settings["buffer_delay_ms"])

	assert.True(t, cfg.IsFilterEnabled("source_ref_filter"))
	assert.False(t, cfg.IsFilterEnabled("duplicate_source_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown"))

	enabled := cfg.EnabledFilters()
	require.Len(t, enabled, 1)
	assert.Equal(t, []any{"mp4"}, enabled["source_ref_filter"]["allowed_extensions"])
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing token", doc: "wall:\n  tile_count: 2\n"},
		{name: "zero tiles are defaulted but negative fail", doc: "admin: {token: x}\nwall: {tile_count: -1}\n"},
		{name: "unknown kind", doc: "admin: {token: x}\nwall: {kind: vhs}\n"},
		{name: "timeout too short", doc: "admin: {token: x}\ndirector: {buffer_timeout_ms: 10}\n"},
		{name: "negative gap", doc: "admin: {token: x}\nsync: {gap_ms: -5}\n"},
		{name: "rate soft above hard", doc: "admin: {token: x}\ndrift: {rate: {soft_threshold: 0.6}}\n"},
		{name: "seek soft equals hard", doc: "admin: {token: x}\ndrift: {seek: {soft_threshold: 1.0}}\n"},
		{name: "slow rate not below one", doc: "admin: {token: x}\ndrift: {rate: {slow_rate: 1.1}}\n"},
		{name: "broken yaml", doc: "admin: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin:\n  token: from-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Admin.Token)

	t.Setenv("WALL_ADMIN_TOKEN", "from-env")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Token)

	// The env token satisfies the required check on its own.
	require.NoError(t, os.WriteFile(path, []byte("wall:\n  tile_count: 2\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "wallserver.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Wall.TileCount)
	assert.Equal(t, "LOCAL", cfg.Wall.Kind)
	assert.True(t, cfg.IsFilterEnabled("source_ref_filter"))
	assert.True(t, cfg.IsFilterEnabled("duplicate_source_filter"))
	assert.Equal(t, 2000, cfg.Simulation.Settings["max_skew_ppm"])
}

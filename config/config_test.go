package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsZeroValue(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestSaveThenLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sync := true
	want := Config{MapSizeMB: 512, MaxDBs: 16, BinlogOn: true, Sync: &sync}
	require.NoError(t, Save(dir, want))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, want.MapSizeMB, got.MapSizeMB)
	assert.Equal(t, want.MaxDBs, got.MaxDBs)
	assert.Equal(t, want.BinlogOn, got.BinlogOn)
	require.NotNil(t, got.Sync)
	assert.True(t, *got.Sync)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, Config{MapSizeMB: 512}))

	t.Setenv("NNDB_MAP_SIZE_MB", "1024")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), cfg.MapSizeMB)
}

func TestResolve_DefaultsWhenUnset(t *testing.T) {
	resolved := Config{}.Resolve()
	assert.Equal(t, int64(2<<30), resolved.MapSize)
	assert.Equal(t, uint32(64), resolved.MaxDBs)
}

func TestResolve_OverridesDefaults(t *testing.T) {
	noSync := false
	cfg := Config{MapSizeMB: 100, MaxDBs: 8, Sync: &noSync}
	resolved := cfg.Resolve()
	assert.Equal(t, int64(100)<<20, resolved.MapSize)
	assert.Equal(t, uint32(8), resolved.MaxDBs)
	assert.False(t, resolved.Sync)
}

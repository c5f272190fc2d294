package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, ":9090", cfg.GRPC.Addr)
	assert.Equal(t, "none", cfg.Catalog.Source)
	assert.Equal(t, 30*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Clock.Tick)
	assert.Equal(t, 24*time.Hour, cfg.Clock.Horizon)
	assert.Equal(t, 1.0, cfg.Clock.Scale)
	assert.True(t, cfg.Clock.AutoStart)
	assert.Equal(t, 200*time.Millisecond, cfg.Session.HazardInterval)
	assert.Equal(t, 20, cfg.Session.PositionEvery)
	assert.Equal(t, 1.0, cfg.Hazard.CollisionKm)
	assert.Equal(t, 5.0, cfg.Hazard.CriticalKm)
	assert.Equal(t, 100.0, cfg.Hazard.ModerateKm)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.False(t, cfg.Influx.Enabled)
	assert.Equal(t, "hazards", cfg.Influx.Bucket)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orbital-guard.yaml")
	body := `
log:
  level: debug
clock:
  scale: 60
  tick: 50ms
catalog:
  source: file
  path: ./catalog.json
storage:
  type: sqlite
  sqlite:
    path: /tmp/og.db
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 60.0, cfg.Clock.Scale)
	assert.Equal(t, 50*time.Millisecond, cfg.Clock.Tick)
	assert.Equal(t, "file", cfg.Catalog.Source)
	assert.Equal(t, "./catalog.json", cfg.Catalog.Path)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "/tmp/og.db", cfg.Storage.SQLite.Path)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORBITAL_GUARD_HTTP_ADDR", ":18080")
	t.Setenv("ORBITAL_GUARD_HAZARD_MODERATEKM", "250")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":18080", cfg.HTTP.Addr)
	assert.Equal(t, 250.0, cfg.Hazard.ModerateKm)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), "/nonexistent/orbital-guard.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load(New(), "")
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"zero tick":          func(c *Config) { c.Clock.Tick = 0 },
		"negative scale":     func(c *Config) { c.Clock.Scale = -1 },
		"oversized scale":    func(c *Config) { c.Clock.Scale = 1e12 },
		"inverted bands":     func(c *Config) { c.Hazard.CriticalKm = 500 },
		"http without url":   func(c *Config) { c.Catalog.Source = "http" },
		"unknown storage":    func(c *Config) { c.Storage.Type = "mongo" },
		"remote w/o target":  func(c *Config) { c.Remote.Enabled = true },
		"zero position rate": func(c *Config) { c.Session.PositionEvery = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

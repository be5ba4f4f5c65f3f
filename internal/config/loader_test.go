package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "service:\n  name: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Service.Name)
	assert.Equal(t, 5*time.Minute, cfg.Service.DefaultTimeout)
	assert.Equal(t, 10*time.Second, cfg.Service.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Service.GracePeriod)
	assert.Equal(t, 64*1024, cfg.Service.MaxStderrBytes)
	assert.False(t, cfg.API.Enabled)
	assert.NotEmpty(t, cfg.Fingerprint)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
service:
  default_timeout: 90s
  sweep_interval: 2s
  log_level: debug
api:
  enabled: true
  listen: "127.0.0.1:9999"
  auth:
    api_key: sekret
executor:
  command: ["claude", "--print", "{{prompt}}"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Service.DefaultTimeout)
	assert.Equal(t, 2*time.Second, cfg.Service.SweepInterval)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "sekret", cfg.API.Auth.APIKey)
	assert.Equal(t, []string{"claude", "--print", "{{prompt}}"}, cfg.Executor.Command)
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `
journal:
  path: data/journal.db
profiles_dir: profiles
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "data/journal.db"), cfg.Journal.Path)
	assert.Equal(t, filepath.Join(dir, "profiles"), cfg.ProfilesDir)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("MUSTER_TEST_KEY", "from-env")
	path := writeConfig(t, `
api:
  enabled: true
  listen: "127.0.0.1:0"
  auth:
    api_key: ${MUSTER_TEST_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.API.Auth.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Service.DefaultTimeout = 0 }},
		{"zero sweep", func(c *Config) { c.Service.SweepInterval = 0 }},
		{"zero poll", func(c *Config) { c.Service.PollInterval = 0 }},
		{"zero grace", func(c *Config) { c.Service.GracePeriod = 0 }},
		{"api enabled without listen", func(c *Config) { c.API.Enabled = true; c.API.Listen = "" }},
		{"empty profiles dir", func(c *Config) { c.ProfilesDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	a := Fingerprint([]byte("alpha"))
	b := Fingerprint([]byte("alpha"))
	c := Fingerprint([]byte("beta"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/areascope/internal/records"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.data-axle.com/v1", cfg.Provider.BaseURL)
	assert.Equal(t, 150, cfg.Provider.RateRequests)
	assert.Equal(t, 10*time.Second, cfg.Provider.RateWindow)
	assert.Equal(t, 4, cfg.Orchestrator.Concurrency)
	assert.Equal(t, records.DefaultMaxPages, cfg.Fetch.MaxPages)
	assert.Equal(t, 500, cfg.Area.MaxRingPoints)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.InDelta(t, 0.30, cfg.Affluence.IncomeWeight, 1e-9)
	assert.NoError(t, cfg.Affluence.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
provider:
  token: file-token
  rate_requests: 10
orchestrator:
  concurrency: 8
affluence:
  income_weight: 0.5
  home_value_weight: 0.2
  wealth_weight: 0.2
  ownership_weight: 0.1
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Provider.Token)
	assert.Equal(t, 10, cfg.Provider.RateRequests)
	assert.Equal(t, 8, cfg.Orchestrator.Concurrency)
	assert.InDelta(t, 0.5, cfg.Affluence.IncomeWeight, 1e-9)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("AREASCOPE_PROVIDER_TOKEN", "env-token")
	t.Setenv("AREASCOPE_ORCHESTRATOR_CONCURRENCY", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Provider.Token)
	assert.Equal(t, 16, cfg.Orchestrator.Concurrency)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	dir := chdirTemp(t)
	yaml := `
affluence:
  income_weight: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestRetryConfigResilience(t *testing.T) {
	rc := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second}.Resilience()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, time.Second, rc.InitialBackoff)
	// Unset fields keep defaults.
	assert.Equal(t, 30*time.Second, rc.MaxBackoff)

	def := RetryConfig{}.Resilience()
	assert.Equal(t, 3, def.MaxAttempts)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}

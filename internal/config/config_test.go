package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "dealflow.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.exa.ai", cfg.Search.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Registry.Pacing())
	assert.Equal(t, 6*time.Second, cfg.GitHub.Pacing())
	assert.Equal(t, 2500*time.Millisecond, cfg.Hunter.Pacing())
	assert.Equal(t, 15*time.Second, cfg.Website.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Apollo.Timeout())
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(200), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 30, cfg.Discovery.LookbackDays)
	assert.Equal(t, 90, cfg.Discovery.BatchLookbackDays)
	assert.Equal(t, 50, cfg.Discovery.OnDemandLimit)
	assert.Equal(t, 5, cfg.Discovery.BatchLimit)
	assert.True(t, cfg.Enrichment.CodeHost)
	assert.Equal(t, "background", cfg.Qualification.Policy)
	assert.Equal(t, 60, cfg.Matching.Threshold)
	assert.Equal(t, 30, cfg.Matching.RecencyDays)
	assert.Equal(t, 30, cfg.Outreach.SpacingMinutes)
	assert.Equal(t, 4, cfg.Outreach.MaxAttempts)
	assert.Equal(t, 6*time.Hour, cfg.Schedule.Discovery)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.OutreachDispatch)
	assert.Equal(t, 7*24*time.Hour, cfg.Schedule.InvestorSync)
	assert.Equal(t, 6, cfg.Cleanup.StaleJobHours)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/dealflow
log:
  level: debug
  format: console
discovery:
  batch_profiles:
    fintech: ["64999", "66190"]
schedule:
  enrichment: 90m
qualification:
  policy: manual
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"64999", "66190"}, cfg.Discovery.BatchProfiles["fintech"])
	assert.Equal(t, 90*time.Minute, cfg.Schedule.Enrichment)
	assert.Equal(t, "manual", cfg.Qualification.Policy)
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.Matching.Threshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("DEALFLOW_STORE_DRIVER", "postgres")
	t.Setenv("DEALFLOW_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DEALFLOW_SERVER_PORT", "3000")
	t.Setenv("DEALFLOW_MATCHING_THRESHOLD", "70")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 70, cfg.Matching.Threshold)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "dealflow.db"
	cfg.Server.Port = 8080
	cfg.Qualification.Policy = "background"
	cfg.Matching.Threshold = 60
	cfg.Outreach.MaxAttempts = 3
	cfg.Outreach.SpacingMinutes = 30
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("store"))
	assert.NoError(t, cfg.Validate("pipeline"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_Pipeline(t *testing.T) {
	cfg := validDefaults()
	cfg.Qualification.Policy = "strict"
	cfg.Matching.Threshold = 120
	cfg.Outreach.MaxAttempts = 0

	err := cfg.Validate("pipeline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qualification.policy")
	assert.Contains(t, err.Error(), "matching.threshold must be between 0 and 100")
	assert.Contains(t, err.Error(), "outreach.max_attempts must be >= 1")

	// Store mode does not look at pipeline settings.
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

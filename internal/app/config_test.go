package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 2000.0, cfg.DefaultRadiusMeters)
	require.Equal(t, 4, cfg.Jobs.Concurrency)
	require.Equal(t, 5, cfg.Jobs.MaxAttempts)
	require.Equal(t, 30*time.Second, cfg.Jobs.RetryDelay)
	require.Equal(t, time.Minute, cfg.Oracle.RateWindow)
	require.Equal(t, "nearby-events", cfg.Redis.Channel)
	require.False(t, cfg.Temporal.client().Enabled())
	require.Equal(t, ":8080", cfg.Addr())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("ORACLE_RATE_MAX", "10")
	t.Setenv("ORACLE_RATE_WINDOW", "10s")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TEMPORAL_ADDRESS", "temporal:7233")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr())
	require.Equal(t, 8, cfg.Jobs.Concurrency)
	require.Equal(t, 10, cfg.Oracle.RateMax)
	require.Equal(t, 10*time.Second, cfg.Oracle.RateWindow)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.True(t, cfg.Temporal.client().Enabled())
}

func TestLoadConfigDotEnvDoesNotOverrideEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_RADIUS_METERS=500\nJOB_MAX_ATTEMPTS=3\n"), 0o600))
	t.Setenv("JOB_MAX_ATTEMPTS", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 500.0, cfg.DefaultRadiusMeters)
	require.Equal(t, 7, cfg.Jobs.MaxAttempts)
	// godotenv.Load sets the variable for the process
	t.Cleanup(func() { _ = os.Unsetenv("DEFAULT_RADIUS_METERS") })
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

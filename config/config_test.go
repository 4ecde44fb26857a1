package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, compliance.DefaultThresholds(), cfg.Compliance.Thresholds())
	assert.Equal(t, clinical.CountPendingAndApproved, cfg.Compliance.Policy())
	assert.Equal(t, 30, cfg.Makeup.DueInDays)
	assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Address())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, time.UTC, cfg.App.Location())
}

func TestLoadFileYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinical.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: postgres
database:
  url: postgres://localhost/clinical
compliance:
  required_total_hours: 500
  approved_only: true
scheduler:
  reconcile_schedule: "0 2 * * *"
`), 0o600))

	t.Setenv("COMPLIANCE_SIMULATION_CAP_HOURS", "120")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("APP_TIMEZONE", "America/Chicago")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 500.0, cfg.Compliance.RequiredTotalHours)
	assert.Equal(t, 120.0, cfg.Compliance.SimulationCapHours)
	assert.Equal(t, clinical.CountApprovedOnly, cfg.Compliance.Policy())
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.ReconcileSchedule)
	assert.Equal(t, "America/Chicago", cfg.App.Location().String())
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")

	t.Setenv("STORE_DRIVER", "cassandra")
	_, err = LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Store.Driver")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("APP_ENV", "production")
	_, err = LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory store is not allowed")
	assert.Contains(t, err.Error(), "HTTP_API_KEY_HASHES")
}

func TestValidateThresholds(t *testing.T) {
	t.Setenv("COMPLIANCE_SIMULATION_WARNING_HOURS", "150")
	_, err := LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulation warning hours")
}

func TestLoadDotEnvSkipsMissingFile(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CLINICAL_DOTENV_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CLINICAL_DOTENV_PROBE") })
	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("CLINICAL_DOTENV_PROBE"))
}

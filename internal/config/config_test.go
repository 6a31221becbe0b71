package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"FIINDO_API_BASE", "FIINDO_AUTH", "DATABASE_URL", "ETL_WORKERS", "ETL_INDUSTRIES",
		"HTTP_TIMEOUT", "HTTP_RETRIES", "HTTP_BACKOFF", "HTTP_RATE_LIMIT", "ETL_SCHEDULE",
		"API_PORT", "CORS_ALLOW_ORIGIN",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.test.fiindo.com", cfg.APIBaseURL)
	assert.Equal(t, "sqlite://fiindo_etl.db", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.HTTPRetries)
	assert.Nil(t, cfg.Industries)
	assert.Zero(t, cfg.APIPort, "results API is off by default")
	assert.Equal(t, "*", cfg.CORSOrigin)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("FIINDO_AUTH", "first.last")
	t.Setenv("ETL_WORKERS", "3")
	t.Setenv("ETL_INDUSTRIES", "Banks - Diversified, Consumer Electronics ,")
	t.Setenv("HTTP_TIMEOUT", "5")
	t.Setenv("HTTP_BACKOFF", "250ms")
	t.Setenv("HTTP_RATE_LIMIT", "4.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "first.last", cfg.APIToken)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"Banks - Diversified", "Consumer Electronics"}, cfg.Industries)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTPBackoff)
	assert.Equal(t, 4.5, cfg.HTTPRateLimit)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		APIBaseURL:  "https://api.test.fiindo.com",
		DatabaseURL: "sqlite://x.db",
		Workers:     0,
		HTTPRetries: -1,
		HTTPTimeout: time.Second,
		Schedule:    "every tuesday",
		APIPort:     70000,

		MaxFailureRatio: 1.5,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIINDO_AUTH is required")
	assert.Contains(t, err.Error(), "ETL_WORKERS")
	assert.Contains(t, err.Error(), "HTTP_RETRIES")
	assert.Contains(t, err.Error(), "ETL_SCHEDULE")
	assert.Contains(t, err.Error(), "API_PORT")
	assert.Contains(t, err.Error(), "ETL_MAX_FAILURE_RATIO")
	assert.Contains(t, err.Error(), "ETL_RUN_TIMEOUT")
}

func TestValidate_RunTimeoutMustBePositive(t *testing.T) {
	for _, v := range []string{"0", "0s", "-5m"} {
		t.Setenv("FIINDO_AUTH", "first.last")
		t.Setenv("ETL_RUN_TIMEOUT", v)

		cfg, err := Load()
		require.NoError(t, err, v)
		err = cfg.Validate()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "ETL_RUN_TIMEOUT must be positive", v)
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{
		APIBaseURL:  "https://api.test.fiindo.com",
		APIToken:    "first.last",
		DatabaseURL: "sqlite://x.db",
		Workers:     4,
		HTTPTimeout: time.Second,
		RunTimeout:  30 * time.Minute,
		Schedule:    "0 */6 * * *",
	}
	assert.NoError(t, cfg.Validate())

	cfg.Schedule = "@hourly"
	assert.NoError(t, cfg.Validate())
}

func TestRedaction(t *testing.T) {
	assert.Equal(t, "postgres://****@db:5432/etl", redactURL("postgres://etl:secret@db:5432/etl"))
	assert.Equal(t, "sqlite://fiindo_etl.db", redactURL("sqlite://fiindo_etl.db"))
	assert.Equal(t, "fi****st", mask("first.last"))
	assert.Equal(t, "(not set)", mask(""))
}

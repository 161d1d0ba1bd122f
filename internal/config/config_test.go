package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diegolsarmond/qchat/internal/constants"
)

// writeConfig drops a config file at a relative path inside a temp working
// directory. Config paths must be relative, absolute paths are rejected.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	require.NoError(t, os.WriteFile("config.json", []byte(content), 0600))

	// Keep ambient overrides out of the test.
	t.Setenv("QCHAT_ENV", "")
	t.Setenv("QCHAT_PROVIDER_API_URL", "")
	t.Setenv("QCHAT_WEBHOOK_SECRET", "")
	t.Setenv("QCHAT_DB_PATH", "")
	t.Setenv("QCHAT_LOG_LEVEL", "")

	return "config.json"
}

const minimalConfig = `{
	"provider": {"api_base_url": "https://api.example.com"},
	"database": {"path": "qchat.db"}
}`

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Provider.APIBaseURL)
	assert.Equal(t, "qchat.db", cfg.Database.Path)

	assert.Equal(t, time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, constants.DefaultDatabaseRetryAttempts, cfg.Provider.RetryCount)
	assert.Equal(t, constants.DefaultPollIntervalSec, cfg.Provider.PollIntervalSec)
	assert.Equal(t, constants.DefaultPollTimeoutSec, cfg.Provider.PollTimeoutSec)
	assert.Equal(t, constants.DefaultMessagePageSize, cfg.Provider.PageSize)

	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultWebhookMaxSkewSec, cfg.Server.WebhookMaxSkewSec)
	assert.Equal(t, constants.DefaultRateLimitPerMinute, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, constants.CleanupSchedulerIntervalHours, cfg.Server.CleanupIntervalHours)

	assert.Equal(t, constants.DefaultRetryBackoffMs, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, constants.DefaultMaxBackoffMs, cfg.Retry.MaxBackoffMs)
	assert.Equal(t, constants.DefaultMaxAttempts, cfg.Retry.MaxAttempts)

	assert.Equal(t, constants.DefaultRetentionDays, cfg.RetentionDays)
}

func TestLoadConfigMissingProviderURL(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "qchat.db"}}`)

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrMissingProviderURL)
}

func TestLoadConfigMissingDBPath(t *testing.T) {
	path := writeConfig(t, `{"provider": {"api_base_url": "https://api.example.com"}}`)

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	writeConfig(t, minimalConfig)

	_, err := LoadConfig("nope.json")
	require.Error(t, err)
}

func TestLoadConfigRejectsTraversalPath(t *testing.T) {
	_, err := LoadConfig("../config.json")
	require.Error(t, err)

	_, err = LoadConfig("/etc/config.json")
	require.Error(t, err)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QCHAT_PROVIDER_API_URL", "https://override.example.com")
	t.Setenv("QCHAT_WEBHOOK_SECRET", "env-secret")
	t.Setenv("QCHAT_DB_PATH", "override.db")
	t.Setenv("QCHAT_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.Provider.APIBaseURL)
	assert.Equal(t, "env-secret", cfg.Provider.WebhookSecret)
	assert.Equal(t, "override.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigPageSizeClamped(t *testing.T) {
	path := writeConfig(t, `{
		"provider": {"api_base_url": "https://api.example.com", "pageSize": 10000},
		"database": {"path": "qchat.db"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, constants.MaxMessagePageSize, cfg.Provider.PageSize)
}

func TestLoadConfigProductionRequiresWebhookSecret(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QCHAT_ENV", "production")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook secret is required")
}

func TestLoadConfigProductionRejectsWeakSecret(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QCHAT_ENV", "production")
	t.Setenv("QCHAT_WEBHOOK_SECRET", "short")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoadConfigProductionRejectsDebugLogging(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QCHAT_ENV", "production")
	t.Setenv("QCHAT_WEBHOOK_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("QCHAT_LOG_LEVEL", "debug")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debug logging")
}

func TestLoadConfigProductionWithStrongSecret(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QCHAT_ENV", "production")
	t.Setenv("QCHAT_WEBHOOK_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Provider.WebhookSecret)
}

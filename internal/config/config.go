package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/diegolsarmond/qchat/internal/constants"
	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/internal/security"
)

var (
	ErrMissingProviderURL = models.ConfigError{Message: "missing provider API URL"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	// Perform security validation after environment overrides
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Provider.APIBaseURL == "" {
		return ErrMissingProviderURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	if c.Provider.RetryCount <= 0 {
		c.Provider.RetryCount = constants.DefaultDatabaseRetryAttempts
	}
	if c.Provider.PollIntervalSec <= 0 {
		c.Provider.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if c.Provider.PollTimeoutSec <= 0 {
		c.Provider.PollTimeoutSec = constants.DefaultPollTimeoutSec
	}
	if c.Provider.PageSize <= 0 {
		c.Provider.PageSize = constants.DefaultMessagePageSize
	}
	if c.Provider.PageSize > constants.MaxMessagePageSize {
		c.Provider.PageSize = constants.MaxMessagePageSize
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.WebhookMaxSkewSec <= 0 {
		c.Server.WebhookMaxSkewSec = constants.DefaultWebhookMaxSkewSec
	}
	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = constants.DefaultRateLimitPerMinute
	}
	if c.Server.CleanupIntervalHours <= 0 {
		c.Server.CleanupIntervalHours = constants.CleanupSchedulerIntervalHours
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("QCHAT_PROVIDER_API_URL"); url != "" {
		c.Provider.APIBaseURL = url
	}

	// SECURITY: Webhook secrets should be set via environment variables
	if secret := os.Getenv("QCHAT_WEBHOOK_SECRET"); secret != "" {
		c.Provider.WebhookSecret = secret
	}

	if path := os.Getenv("QCHAT_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("QCHAT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("QCHAT_ENV") == "production"

	if isProduction {
		// In production, webhook secrets are mandatory
		if c.Provider.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set QCHAT_WEBHOOK_SECRET environment variable)"}
		}

		// Validate webhook secret strength
		if len(c.Provider.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}

		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}

		if os.Getenv("QCHAT_ENABLE_ENCRYPTION") != "true" {
			fmt.Fprintf(os.Stderr, "WARNING: credential token encryption is disabled in production. Set QCHAT_ENABLE_ENCRYPTION=true.\n")
		}
	} else {
		// In development, warn if secrets are missing
		if c.Provider.WebhookSecret == "" {
			fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set QCHAT_WEBHOOK_SECRET environment variable for security.\n")
		}
	}

	return nil
}

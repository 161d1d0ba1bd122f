package models

import "time"

// Config holds the application configuration
type Config struct {
	Provider      ProviderConfig `json:"provider"`
	Server        ServerConfig   `json:"server"`
	Database      DatabaseConfig `json:"database"`
	Retry         RetryConfig    `json:"retry"`
	Tracing       TracingConfig  `json:"tracing"`
	LogLevel      string         `json:"log_level"`
	RetentionDays int            `json:"retentionDays"`
}

// ProviderConfig holds the WhatsApp provider API configuration.
type ProviderConfig struct {
	APIBaseURL      string        `json:"api_base_url"`
	Subdomain       string        `json:"subdomain"`
	Timeout         time.Duration `json:"timeout_ms"`
	RetryCount      int           `json:"retry_count"`
	WebhookSecret   string        `json:"webhook_secret"`
	PollingEnabled  bool          `json:"pollingEnabled"`
	PollIntervalSec int           `json:"pollIntervalSec"`
	PollTimeoutSec  int           `json:"pollTimeoutSec"`
	PageSize        int           `json:"pageSize"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port                 int `json:"port"`
	CleanupIntervalHours int `json:"cleanupIntervalHours"`
	WebhookMaxSkewSec    int `json:"webhookMaxSkewSec"`
	RateLimitPerMinute   int `json:"rateLimitPerMinute"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

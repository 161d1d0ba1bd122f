package constants

// Default polling and retry configuration values
const (
	DefaultPollIntervalSec = 15
	DefaultPollTimeoutSec  = 45
	DefaultRetryBackoffMs  = 1000
	DefaultMaxBackoffMs    = 60000
	DefaultMaxAttempts     = 5
	DefaultRetentionDays   = 90
	DefaultServerPort      = 8082
)

// Circuit breaker and cleanup scheduling
const (
	DefaultBreakerMaxFailures     = 5
	DefaultBreakerTimeoutSec      = 30
	CleanupSchedulerIntervalHours = 24
)

// Default pagination values
const (
	DefaultMessagePageSize = 20
	MaxMessagePageSize     = 100
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultBackoffInitialMs      = 500
	DefaultBackoffMaxSec         = 5
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultWebhookMaxSkewSec     = 300
	DefaultRateLimitPerMinute    = 120
	ServerErrorChannelSize       = 1
)

// Validation bounds
const (
	MaxMessageIDLength   = 256
	MaxRemoteChatIDLen   = 128
	MinPhoneNumberLength = 8
	MaxLabelNameLength   = 64
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)

// Encryption key derivation
const (
	EncryptionSalt = "qchat-credential-salt-v1"
)

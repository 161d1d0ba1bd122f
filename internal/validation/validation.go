package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/diegolsarmond/qchat/internal/constants"
	"github.com/diegolsarmond/qchat/internal/errors"
)

// ValidateRemoteChatID validates a provider chat identifier such as
// "5511999999999@c.us" or a group id.
func ValidateRemoteChatID(chatID string) error {
	if chatID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "chat id cannot be empty")
	}

	if len(chatID) > constants.MaxRemoteChatIDLen {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("chat id too long (max %d characters)", constants.MaxRemoteChatIDLen))
	}

	// Check for control characters that could cause issues
	for _, char := range chatID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "chat id contains invalid characters")
		}
	}

	return nil
}

// ValidatePhoneNumber validates phone number format and length
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	// Remove common prefixes and suffixes for validation
	cleaned := strings.TrimPrefix(phone, "+")
	cleaned = strings.TrimSuffix(cleaned, "@c.us")
	cleaned = strings.TrimSuffix(cleaned, "@g.us")

	// Check length bounds
	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}

	if len(cleaned) > 20 { // Maximum international phone number length
		return errors.New(errors.ErrCodeInvalidInput, "phone number too long (max 20 digits)")
	}

	// Check that it contains only digits
	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageID validates message ID format and length
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message ID cannot be empty")
	}

	if len(messageID) > constants.MaxMessageIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message ID too long (max %d characters)", constants.MaxMessageIDLength))
	}

	// Check for control characters that could cause issues
	for _, char := range messageID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "message ID contains invalid characters")
		}
	}

	return nil
}

// ValidateLabelName validates label name format and length
func ValidateLabelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "label name cannot be empty")
	}

	if len(name) > constants.MaxLabelNameLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("label name too long (max %d characters)", constants.MaxLabelNameLength))
	}

	for _, char := range name {
		if char == '\x00' || char == '\n' || char == '\r' {
			return errors.New(errors.ErrCodeInvalidInput, "label name contains invalid characters")
		}
	}

	return nil
}

// ValidateSubdomain validates a provider subdomain identifier
func ValidateSubdomain(subdomain string) error {
	if subdomain == "" {
		return errors.New(errors.ErrCodeInvalidInput, "subdomain cannot be empty")
	}

	if len(subdomain) > 63 {
		return errors.New(errors.ErrCodeInvalidInput, "subdomain too long (max 63 characters)")
	}

	// Subdomains are alphanumeric with dashes, never leading or trailing
	for _, char := range subdomain {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput,
				"subdomain must contain only letters, numbers, and dashes")
		}
	}
	if strings.HasPrefix(subdomain, "-") || strings.HasSuffix(subdomain, "-") {
		return errors.New(errors.ErrCodeInvalidInput, "subdomain cannot start or end with a dash")
	}

	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid content length")
	}

	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}

// ValidateStringLength validates string length against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	if len(value) < minLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too short (min %d characters)", fieldName, minLength))
	}

	if len(value) > maxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, maxLength))
	}

	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too small (min %d)", fieldName, min))
	}

	if value > max {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d)", fieldName, max))
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 { // Max 1 hour
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}

// ValidateRetentionDays validates data retention period
func ValidateRetentionDays(days int) error {
	if days < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "retention days must be at least 1")
	}

	if days > 3650 { // Max 10 years
		return errors.New(errors.ErrCodeInvalidInput, "retention days too large (max 3650)")
	}

	return nil
}

package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/diegolsarmond/qchat/internal/constants"
)

// ContextKey is a package-local type to prevent context key collisions
// See staticcheck SA1029 guidance
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// SanitizeChatID masks the phone-number part of a remote chat id
// (e.g. "5511999999999@c.us") for privacy.
func SanitizeChatID(chatID string) string {
	if chatID == "" {
		return ""
	}

	local := chatID
	domain := ""
	if idx := strings.Index(chatID, "@"); idx >= 0 {
		local = chatID[:idx]
		domain = chatID[idx:]
	}

	if len(local) > constants.DefaultPhoneMaskLength {
		return "***" + local[len(local)-constants.DefaultPhoneMaskLength:] + domain
	}
	return "***" + domain
}

// SanitizeMessageID shortens remote message ids for privacy
func SanitizeMessageID(msgID string) string {
	if msgID == "" {
		return ""
	}

	if len(msgID) > constants.DefaultMessageIDLength {
		return msgID[:constants.DefaultMessageIDLength] + "..."
	}
	return msgID
}

// SanitizeContent completely hides message content for privacy
func SanitizeContent(content string) string {
	if content == "" {
		return ""
	}
	return "[hidden]"
}

// LogWithContext creates a logger entry with optional sensitive information
func LogWithContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	return logger.WithField("verbose", IsVerboseLogging(ctx))
}

// LogMessageProcessing logs message processing with appropriate privacy controls
func LogMessageProcessing(ctx context.Context, logger *logrus.Logger, msgType, chatID, msgID, sender string) {
	if IsVerboseLogging(ctx) {
		logger.WithFields(logrus.Fields{
			LogFieldMessageType: msgType,
			LogFieldChatID:      chatID,
			LogFieldMessageID:   msgID,
			"sender":            sender,
		}).Info("Processing message")
	} else {
		logger.WithFields(logrus.Fields{
			LogFieldMessageType: msgType,
			LogFieldChatID:      SanitizeChatID(chatID),
			LogFieldMessageID:   SanitizeMessageID(msgID),
			"sender":            SanitizeChatID(sender),
		}).Info("Processing message")
	}
}

package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diegolsarmond/qchat/internal/models"
)

// The provider's webhook, SSE fallback stream and polling API each shape
// messages slightly differently: field names drift, media fields live on
// the message or under a nested "media" object, booleans arrive as bools,
// numbers or strings. Each logical field is read through an ordered list of
// candidate keys, first non-empty wins, so downstream code never sees the
// variance.

var (
	chatIDKeys       = []string{"chatId", "chatid", "chat_id", "remoteJid", "remote_jid", "jid"}
	messageIDKeys    = []string{"id", "messageId", "messageid", "message_id"}
	contentKeys      = []string{"content", "text", "body", "message"}
	messageTypeKeys  = []string{"messageType", "messagetype", "message_type", "type"}
	mediaTypeKeys    = []string{"mediaType", "mediatype", "media_type", "mimetype"}
	captionKeys      = []string{"caption"}
	documentNameKeys = []string{"documentName", "fileName", "filename", "document_name"}
	mediaURLKeys     = []string{"mediaUrl", "mediaURL", "media_url", "url"}
	mediaBase64Keys  = []string{"mediaBase64", "media_base64", "base64"}
	fromMeKeys       = []string{"fromMe", "fromme", "from_me", "isFromMe"}
	senderIDKeys     = []string{"senderId", "sender", "participant", "author"}
	senderNameKeys   = []string{"senderName", "pushName", "notifyName"}
	statusKeys       = []string{"status", "ack"}
	timestampKeys    = []string{"timestamp", "messageTimestamp", "message_timestamp", "t"}
	isPrivateKeys    = []string{"isPrivate", "is_private", "internal"}
)

// NormalizeMessage converts one raw provider message into the canonical
// record. The envelope is the outer payload, consulted only when the
// message itself carries no chat identifier. Returns nil when no chat
// identifier resolves; the caller filters.
func NormalizeMessage(raw, envelope map[string]any) *models.NormalizedMessage {
	if raw == nil {
		return nil
	}

	chatID := extractChatID(raw)
	if chatID == "" {
		chatID = extractChatID(envelope)
	}
	if chatID == "" {
		return nil
	}

	timestamp := extractTimestamp(raw)

	remoteID := firstString(raw, messageIDKeys)
	if remoteID == "" {
		remoteID = fmt.Sprintf("msg_%d", timestamp)
	}

	messageType := strings.ToLower(firstString(raw, messageTypeKeys))
	if messageType == "" {
		messageType = "text"
	}

	media, _ := raw["media"].(map[string]any)

	return &models.NormalizedMessage{
		ChatID:          chatID,
		RemoteMessageID: remoteID,
		Content:         firstString(raw, contentKeys),
		MessageType:     messageType,
		MediaType:       firstStringNested(raw, media, mediaTypeKeys),
		Caption:         firstStringNested(raw, media, captionKeys),
		DocumentName:    firstStringNested(raw, media, documentNameKeys),
		MediaURL:        firstStringNested(raw, media, mediaURLKeys),
		MediaBase64:     firstStringNested(raw, media, mediaBase64Keys),
		FromMe:          firstBool(raw, fromMeKeys),
		SenderID:        firstString(raw, senderIDKeys),
		SenderName:      firstString(raw, senderNameKeys),
		Status:          extractStatus(raw),
		Timestamp:       timestamp,
		IsPrivate:       firstBool(raw, isPrivateKeys),
	}
}

// NormalizeBatch normalizes a slice of raw messages, dropping the ones
// with no resolvable chat identifier.
func NormalizeBatch(raws []map[string]any, envelope map[string]any) []models.NormalizedMessage {
	out := make([]models.NormalizedMessage, 0, len(raws))
	for _, raw := range raws {
		if msg := NormalizeMessage(raw, envelope); msg != nil {
			out = append(out, *msg)
		}
	}
	return out
}

func extractChatID(m map[string]any) string {
	if m == nil {
		return ""
	}
	if id := firstString(m, chatIDKeys); id != "" {
		return id
	}
	if chat, ok := m["chat"].(map[string]any); ok {
		return firstString(chat, []string{"id", "jid", "chatId"})
	}
	return ""
}

func extractTimestamp(m map[string]any) int64 {
	for _, key := range timestampKeys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if ts, ok := coerceTimestamp(v); ok {
			return ts
		}
	}
	return time.Now().UnixMilli()
}

// coerceTimestamp accepts a number, a numeric string or a date string.
// Values that look like epoch seconds are scaled to milliseconds; some
// provider shapes send messageTimestamp in seconds.
func coerceTimestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return scaleTimestamp(int64(t)), true
	case int64:
		return scaleTimestamp(t), true
	case int:
		return scaleTimestamp(int64(t)), true
	case string:
		if t == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return scaleTimestamp(n), true
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UnixMilli(), true
			}
		}
	}
	return 0, false
}

func scaleTimestamp(n int64) int64 {
	if n > 0 && n < 1_000_000_000_000 {
		return n * 1000
	}
	return n
}

func extractStatus(m map[string]any) string {
	for _, key := range statusKeys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return strings.ToLower(t)
			}
		case float64:
			return ackToStatus(int(t))
		case int:
			return ackToStatus(t)
		}
	}
	return ""
}

// ackToStatus maps the provider's numeric ACK levels onto status strings.
func ackToStatus(ack int) string {
	switch {
	case ack <= 0:
		return string(models.MessageStatusPending)
	case ack == 1:
		return string(models.MessageStatusSent)
	case ack == 2:
		return string(models.MessageStatusDelivered)
	default:
		return string(models.MessageStatusRead)
	}
}

func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s := stringValue(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstStringNested(m, nested map[string]any, keys []string) string {
	if s := firstString(m, keys); s != "" {
		return s
	}
	if nested != nil {
		return firstString(nested, keys)
	}
	return ""
}

func firstBool(m map[string]any, keys []string) bool {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case string:
			return t == "true" || t == "1"
		case float64:
			return t != 0
		case int:
			return t != 0
		}
	}
	return false
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

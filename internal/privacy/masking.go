// Package privacy masks customer identifiers before they reach log output.
// Masked values keep their trailing characters so operators can still
// correlate log lines against the console.
package privacy

import "strings"

// mask hides all but the last keep characters of s.
func mask(s string, keep int) string {
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keep) + s[len(s)-keep:]
}

// MaskPhoneNumber keeps the last four digits. A leading plus survives:
// "+5511999990000" becomes "+*********0000".
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(phone, "+"); ok {
		return "+" + mask(rest, 4)
	}
	return mask(phone, 4)
}

// MaskChatID hides the subscriber part of a WhatsApp chat id while
// keeping the domain: "5511999990000@c.us" becomes "*********0000@c.us".
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}
	if number, domain, ok := strings.Cut(chatID, "@"); ok {
		return mask(number, 4) + "@" + domain
	}
	return mask(chatID, 4)
}

// MaskMessageID masks the chat segment of a provider message id of the
// form "true_<chatID>_<serial>", keeping the fromMe prefix and the tail
// of the serial. Other shapes keep only their last eight characters.
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	parts := strings.SplitN(messageID, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + MaskChatID(parts[1]) + "_" + mask(parts[2], 4)
	}
	return mask(messageID, 8)
}

// MaskSubdomain hides the middle of a tenant subdomain. Hyphenated names
// keep their first segment readable: "acme-support-br123" becomes
// "acme-*******-**123".
func MaskSubdomain(subdomain string) string {
	if subdomain == "" {
		return ""
	}
	parts := strings.Split(subdomain, "-")
	if len(parts) == 1 {
		return mask(subdomain, 3)
	}
	out := make([]string, len(parts))
	out[0] = parts[0]
	for i := 1; i < len(parts)-1; i++ {
		out[i] = strings.Repeat("*", len(parts[i]))
	}
	out[len(parts)-1] = mask(parts[len(parts)-1], 3)
	return strings.Join(out, "-")
}

// MaskUserID keeps the last four characters of an agent or user id.
func MaskUserID(userID string) string {
	if userID == "" {
		return ""
	}
	return mask(userID, 4)
}

// fieldMaskers maps known log field names to their masking rule.
var fieldMaskers = map[string]func(string) string{
	"phone":        MaskPhoneNumber,
	"phone_number": MaskPhoneNumber,
	"from":         MaskPhoneNumber,
	"to":           MaskPhoneNumber,
	"chat_id":      MaskChatID,
	"chatId":       MaskChatID,
	"remote_chat_id": MaskChatID,
	"message_id":     MaskMessageID,
	"messageId":      MaskMessageID,
	"user_id":        MaskUserID,
	"userId":         MaskUserID,
	"agent_id":       MaskUserID,
	"subdomain":      MaskSubdomain,
	"tenant":         MaskSubdomain,
}

// MaskSensitiveFields returns a copy of fields with every recognized
// identifier masked. Non-string values pass through untouched.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if maskFn, ok := fieldMaskers[k]; ok {
			if s, isString := v.(string); isString {
				masked[k] = maskFn(s)
				continue
			}
		}
		masked[k] = v
	}
	return masked
}

package models

// Provider webhook event types
const (
	EventMessagesHistory = "messages/history"
	EventMessage         = "message"
	EventMessageACK      = "message.ack"
	EventConnection      = "connection.update"
)

// WebhookEnvelope is the outer webhook payload. Individual messages may
// omit the chat identifier, in which case the envelope carries it. The
// message objects themselves are kept raw because the provider's shapes
// have drifted over time; the normalizer owns field extraction.
type WebhookEnvelope struct {
	Event     string           `json:"event"`
	Subdomain string           `json:"subdomain"`
	ChatID    string           `json:"chatId"`
	Timestamp int64            `json:"timestamp"`
	Messages  []map[string]any `json:"messages"`
	Payload   map[string]any   `json:"payload"`
}

// RawMessages returns the message objects regardless of whether the
// provider nested them under payload or at the top level.
func (e *WebhookEnvelope) RawMessages() []map[string]any {
	if len(e.Messages) > 0 {
		return e.Messages
	}
	if e.Payload == nil {
		return nil
	}
	raw, ok := e.Payload["messages"].([]any)
	if !ok {
		if one, ok := e.Payload["message"].(map[string]any); ok {
			return []map[string]any{one}
		}
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		if mm, ok := m.(map[string]any); ok {
			out = append(out, mm)
		}
	}
	return out
}

// Fallback returns the envelope fields as a loose map for the normalizer's
// chat-identifier fallback resolution.
func (e *WebhookEnvelope) Fallback() map[string]any {
	fb := map[string]any{}
	if e.ChatID != "" {
		fb["chatId"] = e.ChatID
	}
	if e.Payload != nil {
		for _, k := range []string{"chatId", "chatid", "chat_id", "chat"} {
			if v, ok := e.Payload[k]; ok {
				if _, exists := fb[k]; !exists {
					fb[k] = v
				}
			}
		}
	}
	return fb
}

// ACKUpdate is a message status change pushed by the provider.
type ACKUpdate struct {
	RemoteMessageID string `json:"messageId"`
	ChatID          string `json:"chatId"`
	Status          string `json:"status"`
	Timestamp       int64  `json:"timestamp"`
}

package types

import (
	"time"
)

// ClientConfig represents the configuration for the provider client
type ClientConfig struct {
	BaseURL    string        `json:"base_url" validate:"required,url"`
	Subdomain  string        `json:"subdomain" validate:"required"`
	Token      string        `json:"token" validate:"required"`
	Timeout    time.Duration `json:"timeout" validate:"required"`
	RetryCount int           `json:"retry_count" validate:"min=1,max=10"`
}

// Chat is one entry of a /chat/find response. The provider has shipped
// several name variants over time; ResolveName applies the documented
// fallback chain.
type Chat struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DisplayName     string `json:"displayName"`
	ContactName     string `json:"contactName"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime int64  `json:"lastMessageTime"`
	UnreadCount     int    `json:"unreadCount"`
	Avatar          string `json:"avatar"`
	IsGroup         bool   `json:"isGroup"`
}

// ResolveName returns the best available display name for the chat.
func (c *Chat) ResolveName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if c.ContactName != "" {
		return c.ContactName
	}
	return "Unknown"
}

// FindChatsResponse represents the response from /chat/find
type FindChatsResponse struct {
	Chats []Chat `json:"chats"`
}

// FindMessagesRequest represents the request for /message/find. The
// provider orders results newest-first.
type FindMessagesRequest struct {
	ChatID string `json:"chatId"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// FindMessagesResponse carries raw message objects; payload shape has
// drifted over time so extraction is left to the caller.
type FindMessagesResponse struct {
	Messages []map[string]any `json:"messages"`
	HasMore  bool             `json:"hasMore"`
	Total    int              `json:"total"`
}

// SendTextRequest represents the request for /send/text
type SendTextRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

// SendMediaRequest represents the request for /send/media. Exactly one of
// URL and Base64 should be set.
type SendMediaRequest struct {
	ChatID       string `json:"chatId"`
	Caption      string `json:"caption,omitempty"`
	MediaType    string `json:"mediaType,omitempty"`
	DocumentName string `json:"documentName,omitempty"`
	URL          string `json:"url,omitempty"`
	Base64       string `json:"base64,omitempty"`
}

// SendLocationRequest represents the request for /send/location
type SendLocationRequest struct {
	ChatID    string  `json:"chatId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// SendContactRequest represents the request for /send/contact
type SendContactRequest struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// MenuOption is one selectable row of an interactive menu.
type MenuOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SendMenuRequest represents the request for /send/menu
type SendMenuRequest struct {
	ChatID  string       `json:"chatId"`
	Title   string       `json:"title"`
	Text    string       `json:"text"`
	Options []MenuOption `json:"options"`
}

// SendResponse represents the response from send operations. The returned
// message id becomes the upserted message's key.
type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// ErrorResponse represents error responses from the provider API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// StreamEvent is one event read from the SSE fallback stream.
type StreamEvent struct {
	Event string `json:"event"`
	Data  []byte `json:"-"`
}

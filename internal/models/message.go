package models

import (
	"time"
)

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeMedia       MessageType = "media"
	MessageTypeLocation    MessageType = "location"
	MessageTypeContact     MessageType = "contact"
	MessageTypeInteractive MessageType = "interactive"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is a persisted message row. Immutable once created except for
// status and media metadata backfilled after async resolution.
type Message struct {
	ID              int64     `db:"id"`
	ChatID          int64     `db:"chat_id"`
	RemoteMessageID string    `db:"remote_message_id"`
	Content         string    `db:"content"`
	MessageType     string    `db:"message_type"`
	MediaType       *string   `db:"media_type"`
	MediaURL        *string   `db:"media_url"`
	MediaBase64     *string   `db:"media_base64"`
	DocumentName    *string   `db:"document_name"`
	Caption         *string   `db:"caption"`
	FromMe          bool      `db:"from_me"`
	SenderID        string    `db:"sender_id"`
	SenderName      string    `db:"sender_name"`
	Status          string    `db:"status"`
	Timestamp       int64     `db:"timestamp"`
	IsPrivate       bool      `db:"is_private"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// NormalizedMessage is the canonical record produced from a raw provider
// payload, before storage resolution. Empty string means absent.
type NormalizedMessage struct {
	ChatID          string `json:"chatId"`
	RemoteMessageID string `json:"remoteMessageId"`
	Content         string `json:"content"`
	MessageType     string `json:"messageType"`
	MediaType       string `json:"mediaType,omitempty"`
	MediaURL        string `json:"mediaUrl,omitempty"`
	MediaBase64     string `json:"mediaBase64,omitempty"`
	DocumentName    string `json:"documentName,omitempty"`
	Caption         string `json:"caption,omitempty"`
	FromMe          bool   `json:"fromMe"`
	SenderID        string `json:"senderId,omitempty"`
	SenderName      string `json:"senderName,omitempty"`
	Status          string `json:"status,omitempty"`
	Timestamp       int64  `json:"timestamp"`
	IsPrivate       bool   `json:"isPrivate,omitempty"`
}

// StoredContent is the canonical persisted shape decided by the storage
// resolver: either a plain text message, or a media message where at most
// one of MediaURL/MediaBase64 is set.
type StoredContent struct {
	MessageType  MessageType
	Content      string
	MediaType    *string
	MediaURL     *string
	MediaBase64  *string
	DocumentName *string
	Caption      *string
}

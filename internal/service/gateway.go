package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/pkg/provider/types"
)

// Gateway maps raw provider records into storage rows and upserts them in
// batches. Re-processing the same provider page is a safe no-op apart from
// mutable-field updates: idempotence comes from the store's unique keys on
// (credential, remote chat id) and (chat, remote message id).
type Gateway struct {
	db     Storage
	logger *logrus.Logger
}

func NewGateway(db Storage, logger *logrus.Logger) *Gateway {
	return &Gateway{db: db, logger: logger}
}

// SaveChats maps a provider chat list onto storage records and upserts the
// whole batch. An empty list is a no-op.
func (g *Gateway) SaveChats(ctx context.Context, credentialID string, chats []types.Chat) error {
	if len(chats) == 0 {
		return nil
	}

	records := make([]models.ChatUpsert, 0, len(chats))
	for i := range chats {
		chat := &chats[i]
		if chat.ID == "" {
			g.logger.WithField(LogFieldCredentialID, credentialID).
				Debug("Skipping chat record: missing remote chat id")
			continue
		}
		records = append(records, models.ChatUpsert{
			RemoteChatID:  chat.ID,
			Name:          chat.ResolveName(),
			LastMessage:   chat.LastMessage,
			LastMessageAt: chat.LastMessageTime,
			UnreadCount:   chat.UnreadCount,
			AvatarURL:     chat.Avatar,
			IsGroup:       chat.IsGroup,
		})
	}
	if len(records) == 0 {
		return nil
	}

	if err := g.db.UpsertChats(ctx, credentialID, records); err != nil {
		return fmt.Errorf("failed to upsert chats: %w", err)
	}
	return nil
}

// SaveMessages resolves each normalized message into its stored shape and
// upserts the batch for one chat. Malformed records are logged and dropped
// rather than aborting the batch. Returns the number of rows upserted.
func (g *Gateway) SaveMessages(ctx context.Context, chatID int64, msgs []models.NormalizedMessage) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	rows := make([]models.Message, 0, len(msgs))
	for i := range msgs {
		msg := &msgs[i]
		if msg.RemoteMessageID == "" {
			g.logger.WithField(LogFieldChatID, chatID).
				Debug("Skipping message record: missing remote message id")
			continue
		}
		rows = append(rows, toMessageRow(chatID, msg))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := g.db.UpsertMessages(ctx, chatID, rows); err != nil {
		return 0, fmt.Errorf("failed to upsert messages: %w", err)
	}
	return len(rows), nil
}

func toMessageRow(chatID int64, msg *models.NormalizedMessage) models.Message {
	resolved := ResolveNormalized(*msg)

	timestamp := msg.Timestamp
	if timestamp <= 0 {
		timestamp = time.Now().UnixMilli()
	}

	status := msg.Status
	if status == "" {
		status = string(models.MessageStatusPending)
	}

	return models.Message{
		ChatID:          chatID,
		RemoteMessageID: msg.RemoteMessageID,
		Content:         resolved.Content,
		MessageType:     string(resolved.MessageType),
		MediaType:       resolved.MediaType,
		MediaURL:        resolved.MediaURL,
		MediaBase64:     resolved.MediaBase64,
		DocumentName:    resolved.DocumentName,
		Caption:         resolved.Caption,
		FromMe:          msg.FromMe,
		SenderID:        msg.SenderID,
		SenderName:      msg.SenderName,
		Status:          status,
		Timestamp:       timestamp,
		IsPrivate:       msg.IsPrivate,
	}
}

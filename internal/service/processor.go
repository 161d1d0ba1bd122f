package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/diegolsarmond/qchat/internal/models"
)

// IncomingProcessor persists batches of normalized messages that may span
// multiple chats. Both the webhook receiver and the stream poller feed it,
// so preview selection behaves the same regardless of which transport
// delivered the batch.
type IncomingProcessor struct {
	db       Storage
	gateway  *Gateway
	notifier Notifier
	logger   *logrus.Logger
}

func NewIncomingProcessor(db Storage, gateway *Gateway, notifier Notifier, logger *logrus.Logger) *IncomingProcessor {
	return &IncomingProcessor{
		db:       db,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

// Process groups the messages by remote chat id, persists each group and
// advances the chat's preview from the group's highest-timestamp message.
// Chats unknown to a prior sync are skipped; a failure in one group does
// not abort the others. Returns the count of messages actually persisted.
func (p *IncomingProcessor) Process(ctx context.Context, credentialID string, msgs []models.NormalizedMessage) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	groups := make(map[string][]models.NormalizedMessage)
	for _, msg := range msgs {
		groups[msg.ChatID] = append(groups[msg.ChatID], msg)
	}

	processed := 0
	for remoteChatID, group := range groups {
		count, err := p.processGroup(ctx, credentialID, remoteChatID, group)
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				LogFieldCredentialID: credentialID,
				LogFieldChatID:       SanitizeChatID(remoteChatID),
			}).Error("Failed to process message group")
			continue
		}
		processed += count
	}
	return processed, nil
}

func (p *IncomingProcessor) processGroup(ctx context.Context, credentialID, remoteChatID string, group []models.NormalizedMessage) (int, error) {
	chat, err := p.db.GetChatByRemoteID(ctx, credentialID, remoteChatID)
	if err != nil {
		return 0, err
	}
	if chat == nil {
		// Out-of-order sync is expected: the chat list sync may not have
		// seen this chat yet. Skip, a later sync will pick it up.
		p.logger.WithFields(logrus.Fields{
			LogFieldCredentialID: credentialID,
			LogFieldChatID:       SanitizeChatID(remoteChatID),
		}).Debug("Skipping message group: chat not yet synced")
		return 0, nil
	}

	count, err := p.gateway.SaveMessages(ctx, chat.ID, group)
	if err != nil {
		return 0, err
	}

	// The winning preview candidate is the highest timestamp in the group,
	// never the last array element: transports reorder batches.
	winner := &group[0]
	for i := range group {
		if group[i].Timestamp > winner.Timestamp {
			winner = &group[i]
		}
	}
	preview := ResolveNormalized(*winner).Content
	if err := p.db.UpdateChatPreview(ctx, chat.ID, preview, winner.Timestamp); err != nil {
		p.logger.WithError(err).WithField(LogFieldChatID, chat.ID).
			Error("Failed to update chat preview")
	}

	if unread := countUnread(group); unread > 0 {
		if err := p.db.IncrementChatUnread(ctx, chat.ID, unread); err != nil {
			p.logger.WithError(err).WithField(LogFieldChatID, chat.ID).
				Error("Failed to increment unread count")
		}
	}

	if p.notifier != nil {
		p.notifier.Broadcast(credentialID, "messages", map[string]any{
			"chatId":       chat.ID,
			"remoteChatId": remoteChatID,
			"count":        count,
		})
	}

	return count, nil
}

func countUnread(group []models.NormalizedMessage) int {
	unread := 0
	for i := range group {
		if !group[i].FromMe && !group[i].IsPrivate {
			unread++
		}
	}
	return unread
}

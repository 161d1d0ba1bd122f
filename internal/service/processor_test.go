package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diegolsarmond/qchat/internal/models"
)

func newProcessor(db *mockStorage, notifier Notifier) *IncomingProcessor {
	logger := newTestLogger()
	return NewIncomingProcessor(db, NewGateway(db, logger), notifier, logger)
}

func TestProcessorPersistsAndAdvancesPreview(t *testing.T) {
	db := newMockStorage()
	chat := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "a@c.us"})
	notifier := &mockNotifier{}
	processor := newProcessor(db, notifier)
	ctx := context.Background()

	// Delivered out of order: the newest message is in the middle.
	count, err := processor.Process(ctx, "cred-1", []models.NormalizedMessage{
		{ChatID: "a@c.us", RemoteMessageID: "wa-1", Content: "first", MessageType: "text", Timestamp: 1000},
		{ChatID: "a@c.us", RemoteMessageID: "wa-3", Content: "newest", MessageType: "text", Timestamp: 3000},
		{ChatID: "a@c.us", RemoteMessageID: "wa-2", Content: "middle", MessageType: "text", Timestamp: 2000},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	updated, err := db.GetChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "newest", updated.LastMessage)
	assert.Equal(t, int64(3000), updated.LastMessageAt)
	assert.Equal(t, 3, updated.UnreadCount)

	events := notifier.eventsNamed("messages")
	require.Len(t, events, 1)
	assert.Equal(t, "cred-1", events[0].CredentialID)
}

func TestProcessorMediaPreviewLabel(t *testing.T) {
	db := newMockStorage()
	chat := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "a@c.us"})
	processor := newProcessor(db, nil)
	ctx := context.Background()

	_, err := processor.Process(ctx, "cred-1", []models.NormalizedMessage{
		{ChatID: "a@c.us", RemoteMessageID: "wa-1", MessageType: "ptt", MediaBase64: "AQID", Timestamp: 1000},
	})
	require.NoError(t, err)

	updated, err := db.GetChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "[ptt]", updated.LastMessage)
}

func TestProcessorSkipsUnknownChats(t *testing.T) {
	db := newMockStorage()
	known := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "known@c.us"})
	processor := newProcessor(db, nil)
	ctx := context.Background()

	count, err := processor.Process(ctx, "cred-1", []models.NormalizedMessage{
		{ChatID: "known@c.us", RemoteMessageID: "wa-1", Content: "kept", MessageType: "text", Timestamp: 1000},
		{ChatID: "unknown@c.us", RemoteMessageID: "wa-2", Content: "dropped", MessageType: "text", Timestamp: 2000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, db.messageCount(known.ID))
}

func TestProcessorGroupFailureIsolation(t *testing.T) {
	db := newMockStorage()
	healthy := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "ok@c.us"})
	db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "broken@c.us"})
	db.getChatRemoteErrFor["broken@c.us"] = errors.New("lookup failed")
	processor := newProcessor(db, nil)

	count, err := processor.Process(context.Background(), "cred-1", []models.NormalizedMessage{
		{ChatID: "ok@c.us", RemoteMessageID: "wa-1", Content: "one", MessageType: "text", Timestamp: 1000},
		{ChatID: "broken@c.us", RemoteMessageID: "wa-2", Content: "two", MessageType: "text", Timestamp: 2000},
	})

	// One group failing does not abort the batch.
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, db.messageCount(healthy.ID))
}

func TestProcessorUnreadCounting(t *testing.T) {
	db := newMockStorage()
	chat := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "a@c.us"})
	processor := newProcessor(db, nil)
	ctx := context.Background()

	_, err := processor.Process(ctx, "cred-1", []models.NormalizedMessage{
		{ChatID: "a@c.us", RemoteMessageID: "wa-1", Content: "in", MessageType: "text", Timestamp: 1000},
		{ChatID: "a@c.us", RemoteMessageID: "wa-2", Content: "out", MessageType: "text", Timestamp: 2000, FromMe: true},
		{ChatID: "a@c.us", RemoteMessageID: "wa-3", Content: "note", MessageType: "text", Timestamp: 3000, IsPrivate: true},
	})
	require.NoError(t, err)

	updated, err := db.GetChatByID(ctx, chat.ID)
	require.NoError(t, err)
	// Own messages and private notes never count as unread.
	assert.Equal(t, 1, updated.UnreadCount)
}

func TestProcessorMultipleChats(t *testing.T) {
	db := newMockStorage()
	first := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "a@c.us"})
	second := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "b@c.us"})
	processor := newProcessor(db, nil)
	ctx := context.Background()

	count, err := processor.Process(ctx, "cred-1", []models.NormalizedMessage{
		{ChatID: "a@c.us", RemoteMessageID: "wa-1", Content: "for a", MessageType: "text", Timestamp: 1000},
		{ChatID: "b@c.us", RemoteMessageID: "wa-2", Content: "for b old", MessageType: "text", Timestamp: 2000},
		{ChatID: "b@c.us", RemoteMessageID: "wa-3", Content: "for b new", MessageType: "text", Timestamp: 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	chatA, err := db.GetChatByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "for a", chatA.LastMessage)

	chatB, err := db.GetChatByID(ctx, second.ID)
	require.NoError(t, err)
	// Each chat's preview comes from its own group's newest message.
	assert.Equal(t, "for b new", chatB.LastMessage)
	assert.Equal(t, int64(3000), chatB.LastMessageAt)
}

func TestProcessorPreviewFailureIsNotFatal(t *testing.T) {
	db := newMockStorage()
	chat := db.addChat(models.Chat{CredentialID: "cred-1", RemoteChatID: "a@c.us"})
	db.updatePreviewErr = errors.New("preview write failed")
	processor := newProcessor(db, nil)

	count, err := processor.Process(context.Background(), "cred-1", []models.NormalizedMessage{
		{ChatID: "a@c.us", RemoteMessageID: "wa-1", Content: "x", MessageType: "text", Timestamp: 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, db.messageCount(chat.ID))
}

func TestProcessorEmptyBatch(t *testing.T) {
	processor := newProcessor(newMockStorage(), nil)
	count, err := processor.Process(context.Background(), "cred-1", nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

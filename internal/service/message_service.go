package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diegolsarmond/qchat/internal/constants"
	apperrors "github.com/diegolsarmond/qchat/internal/errors"
	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/pkg/circuitbreaker"
	"github.com/diegolsarmond/qchat/pkg/pagination"
	"github.com/diegolsarmond/qchat/pkg/provider"
	"github.com/diegolsarmond/qchat/pkg/provider/types"
)

// MessageService is the operation surface consumed by the HTTP handlers
// and the stream poller: chat sync, history fetch with pagination, sends
// and webhook processing. Provider calls go through a shared circuit
// breaker so a degraded provider stops burning request deadlines.
type MessageService struct {
	db        Storage
	gateway   *Gateway
	processor *IncomingProcessor
	notifier  Notifier
	factory   ClientFactory
	breaker   *circuitbreaker.CircuitBreaker
	cfg       models.ProviderConfig
	logger    *logrus.Logger
}

func NewMessageService(db Storage, gateway *Gateway, processor *IncomingProcessor, notifier Notifier, factory ClientFactory, cfg models.ProviderConfig, logger *logrus.Logger) *MessageService {
	return &MessageService{
		db:        db,
		gateway:   gateway,
		processor: processor,
		notifier:  notifier,
		factory:   factory,
		breaker: circuitbreaker.NewWithLogger("provider",
			constants.DefaultBreakerMaxFailures,
			constants.DefaultBreakerTimeoutSec*time.Second,
			logger),
		cfg:    cfg,
		logger: logger,
	}
}

func (s *MessageService) clientFor(cred *models.Credential) provider.Client {
	return s.factory(types.ClientConfig{
		BaseURL:    s.cfg.APIBaseURL,
		Subdomain:  cred.Subdomain,
		Token:      cred.Token,
		Timeout:    s.cfg.Timeout,
		RetryCount: s.cfg.RetryCount,
	})
}

// SyncChats pulls the credential's chat list from the provider and
// upserts it. Returns the number of chats received.
func (s *MessageService) SyncChats(ctx context.Context, cred *models.Credential) (int, error) {
	client := s.clientFor(cred)

	var chats []types.Chat
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var findErr error
		chats, findErr = client.FindChats(ctx)
		return findErr
	})
	if err != nil {
		return 0, providerFailure("/chat/find", err)
	}

	if err := s.gateway.SaveChats(ctx, cred.ID, chats); err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldCredentialID: cred.ID,
		LogFieldCount:        len(chats),
	}).Info("Chat sync completed")
	return len(chats), nil
}

// FetchOptions controls one history fetch. Reset restarts from the most
// recent page, clearing the chat's unread count.
type FetchOptions struct {
	Limit  int
	Offset int
	Reset  bool
}

// MessagePage is the fetch result handed back to the console. Messages
// are newest-first, matching the provider's ordering; display-side code
// reverses for rendering.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	HasMore    bool             `json:"hasMore"`
	NextOffset int              `json:"nextOffset"`
}

// FetchMessages loads one page of a chat's history. The provider page is
// fetched and persisted first so the local read reflects it; if the
// provider is unavailable the locally persisted history still serves,
// surfacing the provider failure only when there is nothing local.
func (s *MessageService) FetchMessages(ctx context.Context, cred *models.Credential, chatID int64, opts FetchOptions) (*MessagePage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.pageSize()
	}
	if limit > constants.MaxMessagePageSize {
		limit = constants.MaxMessagePageSize
	}
	offset := opts.Offset
	if opts.Reset || offset < 0 {
		offset = 0
	}

	chat, err := s.loadChat(ctx, cred.ID, chatID)
	if err != nil {
		return nil, err
	}

	providerHasMore := false
	providerErr := s.refreshFromProvider(ctx, cred, chat, limit, offset, &providerHasMore)

	msgs, localHasMore, err := s.db.GetMessagePage(ctx, chat.ID, limit, offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get message page", err)
	}
	if providerErr != nil && len(msgs) == 0 {
		return nil, providerErr
	}

	if opts.Reset {
		if err := s.db.ResetChatUnread(ctx, chat.ID); err != nil {
			s.logger.WithError(err).WithField(LogFieldChatID, chat.ID).
				Error("Failed to reset unread count")
		}
	}

	state := pagination.Apply(
		pagination.State{Limit: limit, Offset: offset},
		len(msgs),
		pagination.Update{Reset: opts.Reset, HasMore: localHasMore || providerHasMore},
	)

	return &MessagePage{
		Messages:   msgs,
		HasMore:    state.HasMore,
		NextOffset: state.Offset,
	}, nil
}

func (s *MessageService) refreshFromProvider(ctx context.Context, cred *models.Credential, chat *models.Chat, limit, offset int, hasMore *bool) error {
	client := s.clientFor(cred)

	var resp *types.FindMessagesResponse
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var findErr error
		resp, findErr = client.FindMessages(ctx, types.FindMessagesRequest{
			ChatID: chat.RemoteChatID,
			Limit:  limit,
			Offset: offset,
		})
		return findErr
	})
	if err != nil {
		s.logger.WithError(err).WithField(LogFieldChatID, SanitizeChatID(chat.RemoteChatID)).
			Warn("Provider history fetch failed, serving local history")
		return providerFailure("/message/find", err)
	}

	*hasMore = resp.HasMore
	normalized := NormalizeBatch(resp.Messages, map[string]any{"chatId": chat.RemoteChatID})
	if _, err := s.gateway.SaveMessages(ctx, chat.ID, normalized); err != nil {
		s.logger.WithError(err).WithField(LogFieldChatID, chat.ID).
			Error("Failed to persist fetched history page")
	}
	return nil
}

// SendRequest is a send payload discriminated by MessageType. IsPrivate
// marks an internal note persisted locally and never sent to the provider.
type SendRequest struct {
	ChatID       int64              `json:"chatId"`
	MessageType  string             `json:"messageType"`
	Content      string             `json:"content"`
	MediaType    string             `json:"mediaType,omitempty"`
	MediaURL     string             `json:"mediaUrl,omitempty"`
	MediaBase64  string             `json:"mediaBase64,omitempty"`
	DocumentName string             `json:"documentName,omitempty"`
	Caption      string             `json:"caption,omitempty"`
	Latitude     float64            `json:"latitude,omitempty"`
	Longitude    float64            `json:"longitude,omitempty"`
	LocationName string             `json:"locationName,omitempty"`
	Address      string             `json:"address,omitempty"`
	ContactName  string             `json:"contactName,omitempty"`
	ContactPhone string             `json:"contactPhone,omitempty"`
	MenuTitle    string             `json:"menuTitle,omitempty"`
	MenuOptions  []types.MenuOption `json:"menuOptions,omitempty"`
	IsPrivate    bool               `json:"isPrivate,omitempty"`
}

// SendMessage delivers one outbound message and persists the result. The
// provider's returned message id keys the stored row, so a later webhook
// echo of the same send collapses onto it.
func (s *MessageService) SendMessage(ctx context.Context, cred *models.Credential, req SendRequest) (*models.Message, error) {
	if strings.TrimSpace(req.MediaURL) != "" && strings.TrimSpace(req.MediaBase64) != "" {
		return nil, apperrors.NewValidationError("media", "", "provide either mediaUrl or mediaBase64, not both")
	}

	chat, err := s.loadChat(ctx, cred.ID, req.ChatID)
	if err != nil {
		return nil, err
	}

	if req.IsPrivate {
		return s.storePrivateNote(ctx, chat, req)
	}

	remoteID, status, err := s.deliver(ctx, cred, chat, req)
	if err != nil {
		return nil, err
	}

	row := outgoingRow(chat.ID, remoteID, status, req)
	if err := s.db.UpsertMessages(ctx, chat.ID, []models.Message{row}); err != nil {
		return nil, apperrors.NewDatabaseError("upsert sent message", err)
	}
	if err := s.db.UpdateChatPreview(ctx, chat.ID, row.Content, row.Timestamp); err != nil {
		s.logger.WithError(err).WithField(LogFieldChatID, chat.ID).
			Error("Failed to update chat preview")
	}
	if s.notifier != nil {
		s.notifier.Broadcast(cred.ID, "messages", map[string]any{
			"chatId":       chat.ID,
			"remoteChatId": chat.RemoteChatID,
			"count":        1,
		})
	}

	return s.db.GetMessageByRemoteID(ctx, chat.ID, remoteID)
}

func (s *MessageService) deliver(ctx context.Context, cred *models.Credential, chat *models.Chat, req SendRequest) (remoteID, status string, err error) {
	client := s.clientFor(cred)

	var resp *types.SendResponse
	var endpoint string
	execErr := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var sendErr error
		switch req.MessageType {
		case string(models.MessageTypeMedia):
			endpoint = "/send/media"
			resp, sendErr = client.SendMedia(ctx, types.SendMediaRequest{
				ChatID:       chat.RemoteChatID,
				Caption:      req.Caption,
				MediaType:    req.MediaType,
				DocumentName: req.DocumentName,
				URL:          req.MediaURL,
				Base64:       req.MediaBase64,
			})
		case string(models.MessageTypeLocation):
			endpoint = "/send/location"
			resp, sendErr = client.SendLocation(ctx, types.SendLocationRequest{
				ChatID:    chat.RemoteChatID,
				Latitude:  req.Latitude,
				Longitude: req.Longitude,
				Name:      req.LocationName,
				Address:   req.Address,
			})
		case string(models.MessageTypeContact):
			endpoint = "/send/contact"
			resp, sendErr = client.SendContact(ctx, types.SendContactRequest{
				ChatID: chat.RemoteChatID,
				Name:   req.ContactName,
				Phone:  req.ContactPhone,
			})
		case string(models.MessageTypeInteractive):
			endpoint = "/send/menu"
			resp, sendErr = client.SendMenu(ctx, types.SendMenuRequest{
				ChatID:  chat.RemoteChatID,
				Title:   req.MenuTitle,
				Text:    req.Content,
				Options: req.MenuOptions,
			})
		default:
			endpoint = "/send/text"
			resp, sendErr = client.SendText(ctx, types.SendTextRequest{
				ChatID: chat.RemoteChatID,
				Text:   req.Content,
			})
		}
		return sendErr
	})
	if execErr != nil {
		return "", "", providerFailure(endpoint, execErr)
	}

	remoteID = resp.MessageID
	if remoteID == "" {
		remoteID = "local_" + uuid.NewString()
	}
	status = resp.Status
	if status == "" {
		status = string(models.MessageStatusSent)
	}
	return remoteID, status, nil
}

// storePrivateNote persists an internal note without touching the
// provider or the chat's preview.
func (s *MessageService) storePrivateNote(ctx context.Context, chat *models.Chat, req SendRequest) (*models.Message, error) {
	remoteID := "private_" + uuid.NewString()
	row := outgoingRow(chat.ID, remoteID, string(models.MessageStatusSent), req)
	row.IsPrivate = true

	if err := s.db.UpsertMessages(ctx, chat.ID, []models.Message{row}); err != nil {
		return nil, apperrors.NewDatabaseError("upsert private note", err)
	}
	return s.db.GetMessageByRemoteID(ctx, chat.ID, remoteID)
}

func outgoingRow(chatID int64, remoteID, status string, req SendRequest) models.Message {
	now := time.Now().UnixMilli()

	switch req.MessageType {
	case string(models.MessageTypeLocation):
		content := strings.TrimSpace(req.LocationName)
		if content == "" {
			content = strings.TrimSpace(req.Address)
		}
		if content == "" {
			content = "[location]"
		}
		return models.Message{
			ChatID:          chatID,
			RemoteMessageID: remoteID,
			Content:         content,
			MessageType:     string(models.MessageTypeLocation),
			FromMe:          true,
			Status:          status,
			Timestamp:       now,
		}
	case string(models.MessageTypeContact):
		content := strings.TrimSpace(req.ContactName)
		if content == "" {
			content = "[contact]"
		}
		return models.Message{
			ChatID:          chatID,
			RemoteMessageID: remoteID,
			Content:         content,
			MessageType:     string(models.MessageTypeContact),
			FromMe:          true,
			Status:          status,
			Timestamp:       now,
		}
	case string(models.MessageTypeInteractive):
		content := strings.TrimSpace(req.MenuTitle)
		if content == "" {
			content = "[menu]"
		}
		return models.Message{
			ChatID:          chatID,
			RemoteMessageID: remoteID,
			Content:         content,
			MessageType:     string(models.MessageTypeInteractive),
			FromMe:          true,
			Status:          status,
			Timestamp:       now,
		}
	}

	resolved := ResolveStoredContent(ContentPayload{
		Content:      req.Content,
		MessageType:  req.MessageType,
		MediaType:    req.MediaType,
		Caption:      req.Caption,
		DocumentName: req.DocumentName,
		MediaURL:     req.MediaURL,
		MediaBase64:  req.MediaBase64,
	})
	return models.Message{
		ChatID:          chatID,
		RemoteMessageID: remoteID,
		Content:         resolved.Content,
		MessageType:     string(resolved.MessageType),
		MediaType:       resolved.MediaType,
		MediaURL:        resolved.MediaURL,
		MediaBase64:     resolved.MediaBase64,
		DocumentName:    resolved.DocumentName,
		Caption:         resolved.Caption,
		FromMe:          true,
		Status:          status,
		Timestamp:       now,
	}
}

// HandleWebhook dispatches one provider event envelope. Returns the
// number of messages persisted, zero for non-message events.
func (s *MessageService) HandleWebhook(ctx context.Context, cred *models.Credential, env *models.WebhookEnvelope) (int, error) {
	switch env.Event {
	case models.EventMessagesHistory, models.EventMessage:
		normalized := NormalizeBatch(env.RawMessages(), env.Fallback())
		return s.processor.Process(ctx, cred.ID, normalized)

	case models.EventMessageACK:
		ack := ackFromEnvelope(env)
		if ack.RemoteMessageID == "" || ack.ChatID == "" {
			s.logger.WithField(LogFieldCredentialID, cred.ID).
				Debug("Skipping ack event: missing message or chat id")
			return 0, nil
		}
		return 0, s.ApplyACK(ctx, cred, ack)

	case models.EventConnection:
		status := ""
		if env.Payload != nil {
			status = firstString(env.Payload, []string{"status", "state"})
		}
		if status == "" {
			return 0, nil
		}
		return 0, s.db.UpdateCredentialStatus(ctx, cred.ID, status)

	default:
		s.logger.WithFields(logrus.Fields{
			LogFieldCredentialID: cred.ID,
			LogFieldEvent:        env.Event,
		}).Debug("Ignoring unknown webhook event")
		return 0, nil
	}
}

// ApplyACK advances a message's delivery status. Unknown chats and
// messages are skipped: acks can arrive before the history sync.
func (s *MessageService) ApplyACK(ctx context.Context, cred *models.Credential, ack models.ACKUpdate) error {
	chat, err := s.db.GetChatByRemoteID(ctx, cred.ID, ack.ChatID)
	if err != nil {
		return apperrors.NewDatabaseError("get chat for ack", err)
	}
	if chat == nil {
		return nil
	}

	if err := s.db.UpdateMessageStatus(ctx, chat.ID, ack.RemoteMessageID, ack.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.WithFields(logrus.Fields{
				LogFieldCredentialID: cred.ID,
				LogFieldMessageID:    SanitizeMessageID(ack.RemoteMessageID),
			}).Debug("Skipping ack for message not yet synced")
			return nil
		}
		return apperrors.NewDatabaseError("update message status", err)
	}

	// A status change is an update to the conversation; advance the
	// preview when the ack timestamp is at least the stored one.
	if ack.Timestamp > 0 {
		msg, err := s.db.GetMessageByRemoteID(ctx, chat.ID, ack.RemoteMessageID)
		if err != nil {
			return apperrors.NewDatabaseError("get message for ack", err)
		}
		if msg != nil {
			if err := s.db.UpdateChatPreview(ctx, chat.ID, msg.Content, ack.Timestamp); err != nil {
				s.logger.WithError(err).WithField(LogFieldChatID, chat.ID).
					Warn("Failed to advance chat preview for ack")
			}
		}
	}

	if s.notifier != nil {
		s.notifier.Broadcast(cred.ID, "ack", map[string]any{
			"chatId":    chat.ID,
			"messageId": ack.RemoteMessageID,
			"status":    ack.Status,
		})
	}
	return nil
}

// ProcessStreamEvents feeds events gathered from the SSE fallback stream
// through the same webhook dispatch path.
func (s *MessageService) ProcessStreamEvents(ctx context.Context, cred *models.Credential, events []types.StreamEvent) (int, error) {
	processed := 0
	for _, ev := range events {
		var env models.WebhookEnvelope
		if err := json.Unmarshal(ev.Data, &env); err != nil {
			s.logger.WithError(err).WithField(LogFieldCredentialID, cred.ID).
				Debug("Skipping stream event: malformed payload")
			continue
		}
		if env.Event == "" {
			env.Event = ev.Event
		}

		count, err := s.HandleWebhook(ctx, cred, &env)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				LogFieldCredentialID: cred.ID,
				LogFieldEvent:        env.Event,
			}).Error("Failed to process stream event")
			continue
		}
		processed += count
	}
	return processed, nil
}

func (s *MessageService) loadChat(ctx context.Context, credentialID string, chatID int64) (*models.Chat, error) {
	chat, err := s.db.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get chat", err)
	}
	if chat == nil || chat.CredentialID != credentialID {
		return nil, apperrors.NewNotFoundError("chat", fmt.Sprintf("%d", chatID))
	}
	return chat, nil
}

func (s *MessageService) pageSize() int {
	if s.cfg.PageSize > 0 {
		return s.cfg.PageSize
	}
	return constants.DefaultMessagePageSize
}

func ackFromEnvelope(env *models.WebhookEnvelope) models.ACKUpdate {
	payload := env.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	ack := models.ACKUpdate{
		RemoteMessageID: firstString(payload, []string{"messageId", "message_id", "id"}),
		ChatID:          firstString(payload, []string{"chatId", "chatid", "chat_id"}),
		Status:          extractStatus(payload),
		Timestamp:       env.Timestamp,
	}
	if ack.ChatID == "" {
		ack.ChatID = env.ChatID
	}
	return ack
}

// providerFailure maps a provider call error onto the app error taxonomy
// so the console can tell upstream failures from local ones.
func providerFailure(endpoint string, err error) error {
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		return apperrors.NewProviderError(endpoint, statusErr.StatusCode, err)
	}
	if circuitbreaker.IsCircuitBreakerError(err) {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeProviderAPI, "provider temporarily unavailable").
			WithContext("endpoint", endpoint).
			WithUserMessage("The messaging provider is temporarily unavailable. Please try again shortly.")
	}
	return apperrors.WrapRetryable(err, apperrors.ErrCodeProviderAPI, "provider request failed").
		WithContext("endpoint", endpoint).
		WithUserMessage("Could not reach the messaging provider. Please try again.")
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/pkg/provider"
	"github.com/diegolsarmond/qchat/pkg/provider/types"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// mockStorage is an in-memory Storage used across the service tests.
// Error injection fields force failures on specific paths.
type mockStorage struct {
	mu sync.Mutex

	creds      map[string]*models.Credential
	roles      map[string][]models.MemberRole
	chats      map[int64]*models.Chat
	nextChatID int64
	messages   map[int64]map[string]models.Message
	labels     map[int64]*models.Label
	chatLabels map[int64]map[int64]struct{}

	removedRoles []string
	broadcastLog []string
	cleanupCalls []int

	upsertMessagesErr   error
	getChatRemoteErrFor map[string]error
	updatePreviewErr    error
	getMessagePageErr   error
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		creds:               make(map[string]*models.Credential),
		roles:               make(map[string][]models.MemberRole),
		chats:               make(map[int64]*models.Chat),
		messages:            make(map[int64]map[string]models.Message),
		labels:              make(map[int64]*models.Label),
		chatLabels:          make(map[int64]map[int64]struct{}),
		getChatRemoteErrFor: make(map[string]error),
	}
}

func roleKey(credentialID, userID string) string {
	return credentialID + "|" + userID
}

func (m *mockStorage) addCredential(cred models.Credential) *models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cred
	m.creds[c.ID] = &c
	return &c
}

func (m *mockStorage) addChat(chat models.Chat) *models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChatID++
	c := chat
	c.ID = m.nextChatID
	if c.AttendanceStatus == "" {
		c.AttendanceStatus = models.AttendanceWaiting
	}
	m.chats[c.ID] = &c
	return &c
}

func (m *mockStorage) addLabel(label models.Label) *models.Label {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := label
	m.labels[l.ID] = &l
	return &l
}

func (m *mockStorage) UpsertChats(ctx context.Context, credentialID string, chats []models.ChatUpsert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range chats {
		var existing *models.Chat
		for _, c := range m.chats {
			if c.CredentialID == credentialID && c.RemoteChatID == rec.RemoteChatID {
				existing = c
				break
			}
		}
		if existing == nil {
			m.nextChatID++
			existing = &models.Chat{
				ID:               m.nextChatID,
				CredentialID:     credentialID,
				RemoteChatID:     rec.RemoteChatID,
				AttendanceStatus: models.AttendanceWaiting,
			}
			m.chats[existing.ID] = existing
		}
		existing.Name = rec.Name
		existing.LastMessage = rec.LastMessage
		existing.LastMessageAt = rec.LastMessageAt
		existing.UnreadCount = rec.UnreadCount
		existing.AvatarURL = rec.AvatarURL
		existing.IsGroup = rec.IsGroup
	}
	return nil
}

func (m *mockStorage) GetChatByRemoteID(ctx context.Context, credentialID, remoteChatID string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getChatRemoteErrFor[remoteChatID]; err != nil {
		return nil, err
	}
	for _, c := range m.chats {
		if c.CredentialID == credentialID && c.RemoteChatID == remoteChatID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockStorage) GetChatByID(ctx context.Context, id int64) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (m *mockStorage) ListChats(ctx context.Context, credentialID string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chat
	for _, c := range m.chats {
		if c.CredentialID == credentialID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStorage) UpdateChatPreview(ctx context.Context, chatID int64, lastMessage string, timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updatePreviewErr != nil {
		return m.updatePreviewErr
	}
	c, ok := m.chats[chatID]
	if !ok {
		return nil
	}
	if timestamp >= c.LastMessageAt {
		c.LastMessage = lastMessage
		c.LastMessageAt = timestamp
	}
	return nil
}

func (m *mockStorage) IncrementChatUnread(ctx context.Context, chatID int64, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[chatID]; ok {
		c.UnreadCount += delta
	}
	return nil
}

func (m *mockStorage) ResetChatUnread(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[chatID]; ok {
		c.UnreadCount = 0
	}
	return nil
}

func (m *mockStorage) SetChatAttendance(ctx context.Context, chatID int64, status models.AttendanceStatus, assignedAgentID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return fmt.Errorf("chat %d not found", chatID)
	}
	c.AttendanceStatus = status
	c.AssignedAgentID = assignedAgentID
	return nil
}

func (m *mockStorage) CountChatsAssignedTo(ctx context.Context, credentialID, agentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.chats {
		if c.CredentialID == credentialID && c.AssignedAgentID != nil && *c.AssignedAgentID == agentID {
			count++
		}
	}
	return count, nil
}

func (m *mockStorage) UpsertMessages(ctx context.Context, chatID int64, msgs []models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertMessagesErr != nil {
		return m.upsertMessagesErr
	}
	rows, ok := m.messages[chatID]
	if !ok {
		rows = make(map[string]models.Message)
		m.messages[chatID] = rows
	}
	for _, msg := range msgs {
		rows[msg.RemoteMessageID] = msg
	}
	return nil
}

func (m *mockStorage) GetMessagePage(ctx context.Context, chatID int64, limit, offset int) ([]models.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getMessagePageErr != nil {
		return nil, false, m.getMessagePageErr
	}
	var all []models.Message
	for _, msg := range m.messages[chatID] {
		all = append(all, msg)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })

	if offset >= len(all) {
		return nil, false, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], end < len(all), nil
}

func (m *mockStorage) GetMessageByRemoteID(ctx context.Context, chatID int64, remoteMessageID string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[chatID][remoteMessageID]; ok {
		copied := msg
		return &copied, nil
	}
	return nil, nil
}

func (m *mockStorage) UpdateMessageStatus(ctx context.Context, chatID int64, remoteMessageID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[chatID][remoteMessageID]
	if !ok {
		// The real store reports a zero-row update this way.
		return sql.ErrNoRows
	}
	msg.Status = status
	m.messages[chatID][remoteMessageID] = msg
	return nil
}

func (m *mockStorage) CleanupOldMessages(retentionDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupCalls = append(m.cleanupCalls, retentionDays)
	return nil
}

func (m *mockStorage) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (m *mockStorage) ListCredentialsByUser(ctx context.Context, userID string) ([]models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Credential
	for _, c := range m.creds {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockStorage) ListActiveCredentials(ctx context.Context) ([]models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Credential
	for _, c := range m.creds {
		if c.Status != "disabled" && c.Status != "disconnected" {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockStorage) UpdateCredentialStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.creds[id]; ok {
		c.Status = status
	}
	return nil
}

func (m *mockStorage) EnsureMember(ctx context.Context, credentialID, userID string, role models.MemberRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roleKey(credentialID, userID)
	for _, r := range m.roles[key] {
		if r == role {
			return nil
		}
	}
	m.roles[key] = append(m.roles[key], role)
	return nil
}

func (m *mockStorage) GetMemberRoles(ctx context.Context, credentialID, userID string) ([]models.MemberRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MemberRole(nil), m.roles[roleKey(credentialID, userID)]...), nil
}

func (m *mockStorage) RemoveMemberRole(ctx context.Context, credentialID, userID string, role models.MemberRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roleKey(credentialID, userID)
	kept := m.roles[key][:0]
	for _, r := range m.roles[key] {
		if r != role {
			kept = append(kept, r)
		}
	}
	m.roles[key] = kept
	m.removedRoles = append(m.removedRoles, key+":"+string(role))
	return nil
}

func (m *mockStorage) GetLabel(ctx context.Context, id int64) (*models.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labels[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (m *mockStorage) AddChatLabel(ctx context.Context, chatID, labelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.chatLabels[chatID]
	if !ok {
		set = make(map[int64]struct{})
		m.chatLabels[chatID] = set
	}
	set[labelID] = struct{}{}
	return nil
}

func (m *mockStorage) RemoveChatLabel(ctx context.Context, chatID, labelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chatLabels[chatID], labelID)
	return nil
}

func (m *mockStorage) GetChatLabels(ctx context.Context, chatID int64) ([]models.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Label
	for id := range m.chatLabels[chatID] {
		if l, ok := m.labels[id]; ok {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStorage) hasRole(credentialID, userID string, role models.MemberRole) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles[roleKey(credentialID, userID)] {
		if r == role {
			return true
		}
	}
	return false
}

func (m *mockStorage) messageCount(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[chatID])
}

// mockNotifier records broadcast events.
type mockNotifier struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	CredentialID string
	Event        string
	Payload      any
}

func (n *mockNotifier) Broadcast(credentialID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, broadcastEvent{CredentialID: credentialID, Event: event, Payload: payload})
}

func (n *mockNotifier) eventsNamed(name string) []broadcastEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []broadcastEvent
	for _, ev := range n.events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

// mockProviderClient is a stub provider client.
type mockProviderClient struct {
	findChatsResp    []types.Chat
	findChatsErr     error
	findMessagesResp *types.FindMessagesResponse
	findMessagesErr  error
	sendResp         *types.SendResponse
	sendErr          error
	listenEvents     []types.StreamEvent
	listenErr        error

	lastFindMessages *types.FindMessagesRequest
	lastText         *types.SendTextRequest
	lastMedia        *types.SendMediaRequest
	lastLocation     *types.SendLocationRequest
	lastContact      *types.SendContactRequest
	lastMenu         *types.SendMenuRequest
}

func (m *mockProviderClient) FindChats(ctx context.Context) ([]types.Chat, error) {
	return m.findChatsResp, m.findChatsErr
}

func (m *mockProviderClient) FindMessages(ctx context.Context, req types.FindMessagesRequest) (*types.FindMessagesResponse, error) {
	m.lastFindMessages = &req
	return m.findMessagesResp, m.findMessagesErr
}

func (m *mockProviderClient) SendText(ctx context.Context, req types.SendTextRequest) (*types.SendResponse, error) {
	m.lastText = &req
	return m.sendResp, m.sendErr
}

func (m *mockProviderClient) SendMedia(ctx context.Context, req types.SendMediaRequest) (*types.SendResponse, error) {
	m.lastMedia = &req
	return m.sendResp, m.sendErr
}

func (m *mockProviderClient) SendLocation(ctx context.Context, req types.SendLocationRequest) (*types.SendResponse, error) {
	m.lastLocation = &req
	return m.sendResp, m.sendErr
}

func (m *mockProviderClient) SendContact(ctx context.Context, req types.SendContactRequest) (*types.SendResponse, error) {
	m.lastContact = &req
	return m.sendResp, m.sendErr
}

func (m *mockProviderClient) SendMenu(ctx context.Context, req types.SendMenuRequest) (*types.SendResponse, error) {
	m.lastMenu = &req
	return m.sendResp, m.sendErr
}

func (m *mockProviderClient) Listen(ctx context.Context, timeout time.Duration) ([]types.StreamEvent, error) {
	return m.listenEvents, m.listenErr
}

func factoryFor(client provider.Client) ClientFactory {
	return func(cfg types.ClientConfig) provider.Client {
		return client
	}
}

package service

import (
	"context"

	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/pkg/provider"
	"github.com/diegolsarmond/qchat/pkg/provider/types"
)

// Storage is the persistence surface the services depend on.
type Storage interface {
	// Chats
	UpsertChats(ctx context.Context, credentialID string, chats []models.ChatUpsert) error
	GetChatByRemoteID(ctx context.Context, credentialID, remoteChatID string) (*models.Chat, error)
	GetChatByID(ctx context.Context, id int64) (*models.Chat, error)
	ListChats(ctx context.Context, credentialID string) ([]models.Chat, error)
	UpdateChatPreview(ctx context.Context, chatID int64, lastMessage string, timestamp int64) error
	IncrementChatUnread(ctx context.Context, chatID int64, delta int) error
	ResetChatUnread(ctx context.Context, chatID int64) error
	SetChatAttendance(ctx context.Context, chatID int64, status models.AttendanceStatus, assignedAgentID *string) error
	CountChatsAssignedTo(ctx context.Context, credentialID, agentID string) (int, error)

	// Messages
	UpsertMessages(ctx context.Context, chatID int64, msgs []models.Message) error
	GetMessagePage(ctx context.Context, chatID int64, limit, offset int) ([]models.Message, bool, error)
	GetMessageByRemoteID(ctx context.Context, chatID int64, remoteMessageID string) (*models.Message, error)
	UpdateMessageStatus(ctx context.Context, chatID int64, remoteMessageID, status string) error
	CleanupOldMessages(retentionDays int) error

	// Credentials and membership
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	ListCredentialsByUser(ctx context.Context, userID string) ([]models.Credential, error)
	ListActiveCredentials(ctx context.Context) ([]models.Credential, error)
	UpdateCredentialStatus(ctx context.Context, id, status string) error
	EnsureMember(ctx context.Context, credentialID, userID string, role models.MemberRole) error
	GetMemberRoles(ctx context.Context, credentialID, userID string) ([]models.MemberRole, error)
	RemoveMemberRole(ctx context.Context, credentialID, userID string, role models.MemberRole) error

	// Labels
	GetLabel(ctx context.Context, id int64) (*models.Label, error)
	AddChatLabel(ctx context.Context, chatID, labelID int64) error
	RemoveChatLabel(ctx context.Context, chatID, labelID int64) error
	GetChatLabels(ctx context.Context, chatID int64) ([]models.Label, error)
}

// Notifier relays realtime events to connected console clients. A nil
// notifier is valid and means no realtime relay.
type Notifier interface {
	Broadcast(credentialID, event string, payload any)
}

// ClientFactory builds a provider client for one credential. Injected so
// tests can substitute a fake without an HTTP server.
type ClientFactory func(cfg types.ClientConfig) provider.Client

// NewProviderClient is the default factory backed by the real HTTP client.
func NewProviderClient(cfg types.ClientConfig) provider.Client {
	return provider.NewClient(cfg)
}

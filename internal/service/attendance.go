package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	apperrors "github.com/diegolsarmond/qchat/internal/errors"
	"github.com/diegolsarmond/qchat/internal/models"
)

// AttendanceService drives the chat attendance state machine
// (waiting -> in_service -> finished) and label assignment. Role gating
// lives here, not in the handlers: the same mutations are reachable from
// multiple entry points and the gate must travel with the operation.
type AttendanceService struct {
	db       Storage
	guard    *Guard
	notifier Notifier
	logger   *logrus.Logger
}

func NewAttendanceService(db Storage, guard *Guard, notifier Notifier, logger *logrus.Logger) *AttendanceService {
	return &AttendanceService{db: db, guard: guard, notifier: notifier, logger: logger}
}

// Assign puts the chat in service under the given agent, from any prior
// status including finished (reopening a conversation is allowed). The
// agent is enrolled as a tenant member with the agent role if absent, and
// a previously assigned agent left with zero assigned chats has their
// agent role removed. Restricted to owner, admin and supervisor callers.
func (s *AttendanceService) Assign(ctx context.Context, credentialID, callerID string, chatID int64, agentID string) (*models.Chat, error) {
	if agentID == "" {
		return nil, apperrors.NewValidationError("agentId", "", "agent id is required")
	}
	if _, err := s.guard.AuthorizeManager(ctx, credentialID, callerID); err != nil {
		return nil, err
	}

	chat, err := s.loadChat(ctx, credentialID, chatID)
	if err != nil {
		return nil, err
	}
	previous := chat.AssignedAgentID

	if err := s.db.EnsureMember(ctx, credentialID, agentID, models.RoleAgent); err != nil {
		return nil, fmt.Errorf("failed to enroll agent: %w", err)
	}
	if err := s.db.SetChatAttendance(ctx, chatID, models.AttendanceInService, &agentID); err != nil {
		return nil, fmt.Errorf("failed to assign chat: %w", err)
	}

	if previous != nil && *previous != agentID {
		s.cleanupStaleAgent(ctx, credentialID, *previous)
	}

	s.broadcastAttendance(credentialID, chatID, models.AttendanceInService, &agentID)
	return s.db.GetChatByID(ctx, chatID)
}

// Finish closes the chat and clears its assignment. Restricted to owner,
// admin and supervisor callers; on rejection the chat is untouched.
func (s *AttendanceService) Finish(ctx context.Context, credentialID, callerID string, chatID int64) (*models.Chat, error) {
	if _, err := s.guard.AuthorizeManager(ctx, credentialID, callerID); err != nil {
		return nil, err
	}

	chat, err := s.loadChat(ctx, credentialID, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.db.SetChatAttendance(ctx, chatID, models.AttendanceFinished, nil); err != nil {
		return nil, fmt.Errorf("failed to finish attendance: %w", err)
	}

	if chat.AssignedAgentID != nil {
		s.cleanupStaleAgent(ctx, credentialID, *chat.AssignedAgentID)
	}

	s.broadcastAttendance(credentialID, chatID, models.AttendanceFinished, nil)
	return s.db.GetChatByID(ctx, chatID)
}

// AddLabel tags the chat. Adding an already-present label is a no-op.
// Label assignment is independent of attendance status.
func (s *AttendanceService) AddLabel(ctx context.Context, credentialID, callerID string, chatID, labelID int64) (*models.Chat, error) {
	if _, err := s.guard.Authorize(ctx, credentialID, callerID); err != nil {
		return nil, err
	}
	if _, err := s.loadChat(ctx, credentialID, chatID); err != nil {
		return nil, err
	}
	if err := s.checkLabel(ctx, credentialID, labelID); err != nil {
		return nil, err
	}

	if err := s.db.AddChatLabel(ctx, chatID, labelID); err != nil {
		return nil, fmt.Errorf("failed to add label: %w", err)
	}
	return s.db.GetChatByID(ctx, chatID)
}

// RemoveLabel untags the chat. Removing an absent label is a no-op.
func (s *AttendanceService) RemoveLabel(ctx context.Context, credentialID, callerID string, chatID, labelID int64) (*models.Chat, error) {
	if _, err := s.guard.Authorize(ctx, credentialID, callerID); err != nil {
		return nil, err
	}
	if _, err := s.loadChat(ctx, credentialID, chatID); err != nil {
		return nil, err
	}

	if err := s.db.RemoveChatLabel(ctx, chatID, labelID); err != nil {
		return nil, fmt.Errorf("failed to remove label: %w", err)
	}
	return s.db.GetChatByID(ctx, chatID)
}

func (s *AttendanceService) loadChat(ctx context.Context, credentialID string, chatID int64) (*models.Chat, error) {
	chat, err := s.db.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat == nil || chat.CredentialID != credentialID {
		return nil, apperrors.NewNotFoundError("chat", fmt.Sprintf("%d", chatID))
	}
	return chat, nil
}

func (s *AttendanceService) checkLabel(ctx context.Context, credentialID string, labelID int64) error {
	label, err := s.db.GetLabel(ctx, labelID)
	if err != nil {
		return fmt.Errorf("failed to load label: %w", err)
	}
	if label == nil || label.CredentialID != credentialID {
		return apperrors.NewNotFoundError("label", fmt.Sprintf("%d", labelID))
	}
	return nil
}

// cleanupStaleAgent removes the agent role of a member with no remaining
// assigned chats. Only the agent role is touched; owner, admin and
// supervisor memberships survive.
func (s *AttendanceService) cleanupStaleAgent(ctx context.Context, credentialID, agentID string) {
	remaining, err := s.db.CountChatsAssignedTo(ctx, credentialID, agentID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldCredentialID: credentialID,
			LogFieldAgentID:      agentID,
		}).Error("Failed to count assigned chats")
		return
	}
	if remaining > 0 {
		return
	}
	if err := s.db.RemoveMemberRole(ctx, credentialID, agentID, models.RoleAgent); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldCredentialID: credentialID,
			LogFieldAgentID:      agentID,
		}).Error("Failed to remove stale agent role")
	}
}

func (s *AttendanceService) broadcastAttendance(credentialID string, chatID int64, status models.AttendanceStatus, agentID *string) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"chatId": chatID,
		"status": string(status),
	}
	if agentID != nil {
		payload["agentId"] = *agentID
	}
	s.notifier.Broadcast(credentialID, "attendance", payload)
}

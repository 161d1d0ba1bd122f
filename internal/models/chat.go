package models

import (
	"time"
)

type AttendanceStatus string

const (
	AttendanceWaiting   AttendanceStatus = "waiting"
	AttendanceInService AttendanceStatus = "in_service"
	AttendanceFinished  AttendanceStatus = "finished"
)

// Chat is a tenant-scoped conversation, upserted by (credential, remote chat id).
type Chat struct {
	ID               int64            `db:"id"`
	CredentialID     string           `db:"credential_id"`
	RemoteChatID     string           `db:"remote_chat_id"`
	Name             string           `db:"name"`
	AvatarURL        string           `db:"avatar_url"`
	LastMessage      string           `db:"last_message"`
	LastMessageAt    int64            `db:"last_message_at"`
	UnreadCount      int              `db:"unread_count"`
	IsGroup          bool             `db:"is_group"`
	AssignedAgentID  *string          `db:"assigned_agent_id"`
	AttendanceStatus AttendanceStatus `db:"attendance_status"`
	CreatedAt        time.Time        `db:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"`

	// Labels is the materialized label set, populated on reads.
	Labels []Label `db:"-"`
}

// ChatUpsert is the storage record mapped from a raw provider chat.
type ChatUpsert struct {
	RemoteChatID  string
	Name          string
	LastMessage   string
	LastMessageAt int64
	UnreadCount   int
	AvatarURL     string
	IsGroup       bool
}

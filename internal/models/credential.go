package models

import (
	"time"
)

type MemberRole string

const (
	RoleOwner      MemberRole = "owner"
	RoleAdmin      MemberRole = "admin"
	RoleSupervisor MemberRole = "supervisor"
	RoleAgent      MemberRole = "agent"
)

// CanManageAttendance reports whether the role may assign or finish chats.
func (r MemberRole) CanManageAttendance() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleSupervisor:
		return true
	}
	return false
}

// Credential is one connected WhatsApp provider account (tenant).
type Credential struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Subdomain string    `db:"subdomain"`
	Token     string    `db:"token"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CredentialMember links a user to a credential with a role.
type CredentialMember struct {
	ID           int64      `db:"id"`
	CredentialID string     `db:"credential_id"`
	UserID       string     `db:"user_id"`
	Role         MemberRole `db:"role"`
	CreatedAt    time.Time  `db:"created_at"`
}

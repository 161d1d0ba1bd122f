package models

import "time"

// Label is a tenant-scoped tag, many-to-many with chats.
type Label struct {
	ID           int64     `db:"id"`
	CredentialID string    `db:"credential_id"`
	Name         string    `db:"name"`
	Color        string    `db:"color"`
	CreatedAt    time.Time `db:"created_at"`
}

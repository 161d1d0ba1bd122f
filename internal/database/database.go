package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/diegolsarmond/qchat/internal/migrations"
	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	// Validate database path to prevent directory traversal
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Chat operations

// UpsertChats writes a batch of chats keyed by (credential, remote chat id)
// in a single transaction. Re-processing the same batch is a no-op except
// for mutable-field updates.
func (d *Database) UpsertChats(ctx context.Context, credentialID string, chats []models.ChatUpsert) error {
	if len(chats) == 0 {
		return nil
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, upsertChatQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare chat upsert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chats {
			name := c.Name
			if name == "" {
				name = "Unknown"
			}
			if _, err := stmt.ExecContext(ctx,
				credentialID, c.RemoteChatID, name, c.AvatarURL,
				c.LastMessage, c.LastMessageAt, c.UnreadCount, c.IsGroup,
			); err != nil {
				return fmt.Errorf("failed to upsert chat %s: %w", c.RemoteChatID, err)
			}
		}

		return tx.Commit()
	}, "upsert chats")
}

func (d *Database) GetChatByRemoteID(ctx context.Context, credentialID, remoteChatID string) (*models.Chat, error) {
	row := d.db.QueryRowContext(ctx, selectChatByRemoteIDQuery, credentialID, remoteChatID)
	return scanChat(row)
}

func (d *Database) GetChatByID(ctx context.Context, id int64) (*models.Chat, error) {
	row := d.db.QueryRowContext(ctx, selectChatByIDQuery, id)
	return scanChat(row)
}

func (d *Database) ListChats(ctx context.Context, credentialID string) ([]models.Chat, error) {
	rows, err := d.db.QueryContext(ctx, selectChatsByCredentialQuery, credentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		chat, err := scanChatRows(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}

	for i := range chats {
		labels, err := d.GetChatLabels(ctx, chats[i].ID)
		if err != nil {
			return nil, err
		}
		chats[i].Labels = labels
	}

	return chats, nil
}

// UpdateChatPreview advances the chat's last-message preview. The write is
// conditional on the timestamp being >= the stored one, so stale events
// cannot regress the preview.
func (d *Database) UpdateChatPreview(ctx context.Context, chatID int64, lastMessage string, timestamp int64) error {
	_, err := d.db.ExecContext(ctx, updateChatPreviewQuery, lastMessage, timestamp, chatID, timestamp)
	if err != nil {
		return fmt.Errorf("failed to update chat preview: %w", err)
	}
	return nil
}

func (d *Database) IncrementChatUnread(ctx context.Context, chatID int64, delta int) error {
	_, err := d.db.ExecContext(ctx, incrementChatUnreadQuery, delta, chatID)
	if err != nil {
		return fmt.Errorf("failed to increment unread count: %w", err)
	}
	return nil
}

func (d *Database) ResetChatUnread(ctx context.Context, chatID int64) error {
	_, err := d.db.ExecContext(ctx, resetChatUnreadQuery, chatID)
	if err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

// SetChatAttendance updates the attendance status and assignment in one row
// write. Concurrent assigns resolve last-write-wins at the row level.
func (d *Database) SetChatAttendance(ctx context.Context, chatID int64, status models.AttendanceStatus, assignedAgentID *string) error {
	result, err := d.db.ExecContext(ctx, updateChatAttendanceQuery, string(status), assignedAgentID, chatID)
	if err != nil {
		return fmt.Errorf("failed to update chat attendance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (d *Database) CountChatsAssignedTo(ctx context.Context, credentialID, agentID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, countChatsAssignedToQuery, credentialID, agentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assigned chats: %w", err)
	}
	return count, nil
}

// Message operations

// UpsertMessages writes a batch of messages keyed by (chat, remote message
// id) in a single transaction.
func (d *Database) UpsertMessages(ctx context.Context, chatID int64, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, upsertMessageQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare message upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			if _, err := stmt.ExecContext(ctx,
				chatID, m.RemoteMessageID, m.Content, m.MessageType,
				m.MediaType, m.MediaURL, m.MediaBase64, m.DocumentName, m.Caption,
				m.FromMe, m.SenderID, m.SenderName, m.Status, m.Timestamp, m.IsPrivate,
			); err != nil {
				return fmt.Errorf("failed to upsert message %s: %w", m.RemoteMessageID, err)
			}
		}

		return tx.Commit()
	}, "upsert messages")
}

// GetMessagePage returns one page of a chat's history, newest first, plus
// whether older history remains beyond this page.
func (d *Database) GetMessagePage(ctx context.Context, chatID int64, limit, offset int) ([]models.Message, bool, error) {
	rows, err := d.db.QueryContext(ctx, selectMessagePageQuery, chatID, limit, offset)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query message page: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessageRows(rows)
		if err != nil {
			return nil, false, err
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate messages: %w", err)
	}

	var total int
	if err := d.db.QueryRowContext(ctx, countMessagesQuery, chatID).Scan(&total); err != nil {
		return nil, false, fmt.Errorf("failed to count messages: %w", err)
	}

	hasMore := offset+len(msgs) < total
	return msgs, hasMore, nil
}

func (d *Database) GetMessageByRemoteID(ctx context.Context, chatID int64, remoteMessageID string) (*models.Message, error) {
	row := d.db.QueryRowContext(ctx, selectMessageByRemoteIDQuery, chatID, remoteMessageID)
	return scanMessage(row)
}

func (d *Database) UpdateMessageStatus(ctx context.Context, chatID int64, remoteMessageID, status string) error {
	result, err := d.db.ExecContext(ctx, updateMessageStatusQuery, status, chatID, remoteMessageID)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (d *Database) CleanupOldMessages(retentionDays int) error {
	_, err := d.db.Exec(deleteOldMessagesQuery, retentionDays)
	if err != nil {
		return fmt.Errorf("failed to cleanup old messages: %w", err)
	}
	return nil
}

// Scan helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*models.Chat, error) {
	chat, err := scanChatRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return chat, err
}

func scanChatRows(row rowScanner) (*models.Chat, error) {
	chat := &models.Chat{}
	var status string
	err := row.Scan(
		&chat.ID,
		&chat.CredentialID,
		&chat.RemoteChatID,
		&chat.Name,
		&chat.AvatarURL,
		&chat.LastMessage,
		&chat.LastMessageAt,
		&chat.UnreadCount,
		&chat.IsGroup,
		&chat.AssignedAgentID,
		&status,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chat: %w", err)
	}
	chat.AttendanceStatus = models.AttendanceStatus(status)
	return chat, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	msg, err := scanMessageRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

func scanMessageRows(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	err := row.Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.RemoteMessageID,
		&msg.Content,
		&msg.MessageType,
		&msg.MediaType,
		&msg.MediaURL,
		&msg.MediaBase64,
		&msg.DocumentName,
		&msg.Caption,
		&msg.FromMe,
		&msg.SenderID,
		&msg.SenderName,
		&msg.Status,
		&msg.Timestamp,
		&msg.IsPrivate,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	return msg, nil
}

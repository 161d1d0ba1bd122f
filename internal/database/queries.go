package database

// Chat queries
const (
	upsertChatQuery = `
		INSERT INTO chats (
			credential_id, remote_chat_id, name, avatar_url,
			last_message, last_message_at, unread_count, is_group
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(credential_id, remote_chat_id) DO UPDATE SET
			name = excluded.name,
			avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE chats.avatar_url END,
			unread_count = excluded.unread_count,
			is_group = excluded.is_group,
			last_message = CASE WHEN excluded.last_message_at >= chats.last_message_at
				THEN excluded.last_message ELSE chats.last_message END,
			last_message_at = MAX(excluded.last_message_at, chats.last_message_at)
	`

	selectChatColumns = `
		id, credential_id, remote_chat_id, name, avatar_url,
		last_message, last_message_at, unread_count, is_group,
		assigned_agent_id, attendance_status, created_at, updated_at
	`

	selectChatByRemoteIDQuery = `
		SELECT ` + selectChatColumns + `
		FROM chats
		WHERE credential_id = ? AND remote_chat_id = ?
	`

	selectChatByIDQuery = `
		SELECT ` + selectChatColumns + `
		FROM chats
		WHERE id = ?
	`

	selectChatsByCredentialQuery = `
		SELECT ` + selectChatColumns + `
		FROM chats
		WHERE credential_id = ?
		ORDER BY last_message_at DESC
	`

	// Preview never regresses: the update only applies when the incoming
	// timestamp is at least the stored one.
	updateChatPreviewQuery = `
		UPDATE chats
		SET last_message = ?, last_message_at = ?
		WHERE id = ? AND last_message_at <= ?
	`

	incrementChatUnreadQuery = `
		UPDATE chats SET unread_count = unread_count + ? WHERE id = ?
	`

	resetChatUnreadQuery = `
		UPDATE chats SET unread_count = 0 WHERE id = ?
	`

	updateChatAttendanceQuery = `
		UPDATE chats SET attendance_status = ?, assigned_agent_id = ? WHERE id = ?
	`

	countChatsAssignedToQuery = `
		SELECT COUNT(*) FROM chats WHERE credential_id = ? AND assigned_agent_id = ?
	`
)

// Message queries
const (
	// Re-delivery of the same remote id updates mutable fields only.
	// Media metadata uses last-resolved-wins: an incoming non-null value
	// replaces the stored one, a null leaves it alone.
	upsertMessageQuery = `
		INSERT INTO messages (
			chat_id, remote_message_id, content, message_type,
			media_type, media_url, media_base64, document_name, caption,
			from_me, sender_id, sender_name, status, timestamp, is_private
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, remote_message_id) DO UPDATE SET
			status = CASE WHEN excluded.status != '' THEN excluded.status ELSE messages.status END,
			media_type = COALESCE(excluded.media_type, messages.media_type),
			media_url = COALESCE(excluded.media_url, messages.media_url),
			media_base64 = COALESCE(excluded.media_base64, messages.media_base64),
			document_name = COALESCE(excluded.document_name, messages.document_name),
			caption = COALESCE(excluded.caption, messages.caption)
	`

	selectMessageColumns = `
		id, chat_id, remote_message_id, content, message_type,
		media_type, media_url, media_base64, document_name, caption,
		from_me, sender_id, sender_name, status, timestamp, is_private,
		created_at, updated_at
	`

	selectMessagePageQuery = `
		SELECT ` + selectMessageColumns + `
		FROM messages
		WHERE chat_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	selectMessageByRemoteIDQuery = `
		SELECT ` + selectMessageColumns + `
		FROM messages
		WHERE chat_id = ? AND remote_message_id = ?
	`

	updateMessageStatusQuery = `
		UPDATE messages SET status = ? WHERE chat_id = ? AND remote_message_id = ?
	`

	countMessagesQuery = `
		SELECT COUNT(*) FROM messages WHERE chat_id = ?
	`

	deleteOldMessagesQuery = `
		DELETE FROM messages
		WHERE created_at < datetime('now', '-' || ? || ' days') AND is_private = FALSE
	`
)

// Credential and membership queries
const (
	insertCredentialQuery = `
		INSERT INTO credentials (id, user_id, subdomain, token, status)
		VALUES (?, ?, ?, ?, ?)
	`

	selectCredentialByIDQuery = `
		SELECT id, user_id, subdomain, token, status, created_at, updated_at
		FROM credentials
		WHERE id = ?
	`

	selectCredentialsByUserQuery = `
		SELECT c.id, c.user_id, c.subdomain, c.token, c.status, c.created_at, c.updated_at
		FROM credentials c
		WHERE c.user_id = ?
		   OR EXISTS (
			SELECT 1 FROM credential_members m
			WHERE m.credential_id = c.id AND m.user_id = ?
		   )
		ORDER BY c.created_at
	`

	selectCredentialBySubdomainQuery = `
		SELECT id, user_id, subdomain, token, status, created_at, updated_at
		FROM credentials
		WHERE subdomain = ?
	`

	selectActiveCredentialsQuery = `
		SELECT id, user_id, subdomain, token, status, created_at, updated_at
		FROM credentials
		WHERE status NOT IN ('disabled', 'disconnected')
		ORDER BY created_at
	`

	updateCredentialStatusQuery = `
		UPDATE credentials SET status = ? WHERE id = ?
	`

	insertMemberQuery = `
		INSERT OR IGNORE INTO credential_members (credential_id, user_id, role)
		VALUES (?, ?, ?)
	`

	selectMemberRolesQuery = `
		SELECT role FROM credential_members
		WHERE credential_id = ? AND user_id = ?
	`

	deleteMemberRoleQuery = `
		DELETE FROM credential_members
		WHERE credential_id = ? AND user_id = ? AND role = ?
	`
)

// Label queries
const (
	insertLabelQuery = `
		INSERT INTO labels (credential_id, name, color) VALUES (?, ?, ?)
		ON CONFLICT(credential_id, name) DO UPDATE SET color = excluded.color
	`

	selectLabelByIDQuery = `
		SELECT id, credential_id, name, color, created_at FROM labels WHERE id = ?
	`

	selectLabelsByCredentialQuery = `
		SELECT id, credential_id, name, color, created_at
		FROM labels
		WHERE credential_id = ?
		ORDER BY name
	`

	insertChatLabelQuery = `
		INSERT OR IGNORE INTO chat_labels (chat_id, label_id) VALUES (?, ?)
	`

	deleteChatLabelQuery = `
		DELETE FROM chat_labels WHERE chat_id = ? AND label_id = ?
	`

	selectChatLabelsQuery = `
		SELECT l.id, l.credential_id, l.name, l.color, l.created_at
		FROM labels l
		JOIN chat_labels cl ON cl.label_id = l.id
		WHERE cl.chat_id = ?
		ORDER BY l.name
	`
)

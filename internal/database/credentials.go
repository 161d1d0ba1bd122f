package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diegolsarmond/qchat/internal/models"
)

// Credential operations. Provider tokens are encrypted at rest when
// encryption is enabled.

func (d *Database) CreateCredential(ctx context.Context, cred *models.Credential) error {
	encryptedToken, err := d.encryptor.EncryptIfEnabled(cred.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	_, err = d.db.ExecContext(ctx, insertCredentialQuery,
		cred.ID, cred.UserID, cred.Subdomain, encryptedToken, cred.Status)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

func (d *Database) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	cred := &models.Credential{}
	var encryptedToken string
	err := d.db.QueryRowContext(ctx, selectCredentialByIDQuery, id).Scan(
		&cred.ID,
		&cred.UserID,
		&cred.Subdomain,
		&encryptedToken,
		&cred.Status,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred.Token, err = d.encryptor.DecryptIfEnabled(encryptedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return cred, nil
}

// GetCredentialBySubdomain resolves the tenant a webhook delivery belongs
// to. Returns nil when no credential matches.
func (d *Database) GetCredentialBySubdomain(ctx context.Context, subdomain string) (*models.Credential, error) {
	cred := &models.Credential{}
	var encryptedToken string
	err := d.db.QueryRowContext(ctx, selectCredentialBySubdomainQuery, subdomain).Scan(
		&cred.ID,
		&cred.UserID,
		&cred.Subdomain,
		&encryptedToken,
		&cred.Status,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential by subdomain: %w", err)
	}

	cred.Token, err = d.encryptor.DecryptIfEnabled(encryptedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return cred, nil
}

func (d *Database) ListCredentialsByUser(ctx context.Context, userID string) ([]models.Credential, error) {
	rows, err := d.db.QueryContext(ctx, selectCredentialsByUserQuery, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var cred models.Credential
		var encryptedToken string
		if err := rows.Scan(
			&cred.ID, &cred.UserID, &cred.Subdomain, &encryptedToken,
			&cred.Status, &cred.CreatedAt, &cred.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		cred.Token, err = d.encryptor.DecryptIfEnabled(encryptedToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}
	return creds, nil
}

// ListActiveCredentials returns every credential that may still receive
// provider traffic. Consumed by the stream poller.
func (d *Database) ListActiveCredentials(ctx context.Context) ([]models.Credential, error) {
	rows, err := d.db.QueryContext(ctx, selectActiveCredentialsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list active credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var cred models.Credential
		var encryptedToken string
		if err := rows.Scan(
			&cred.ID, &cred.UserID, &cred.Subdomain, &encryptedToken,
			&cred.Status, &cred.CreatedAt, &cred.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		cred.Token, err = d.encryptor.DecryptIfEnabled(encryptedToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}
	return creds, nil
}

func (d *Database) UpdateCredentialStatus(ctx context.Context, id, status string) error {
	_, err := d.db.ExecContext(ctx, updateCredentialStatusQuery, status, id)
	if err != nil {
		return fmt.Errorf("failed to update credential status: %w", err)
	}
	return nil
}

// Membership operations

// EnsureMember creates the membership row if absent. Adding the same role
// twice is a no-op.
func (d *Database) EnsureMember(ctx context.Context, credentialID, userID string, role models.MemberRole) error {
	_, err := d.db.ExecContext(ctx, insertMemberQuery, credentialID, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to ensure member: %w", err)
	}
	return nil
}

func (d *Database) GetMemberRoles(ctx context.Context, credentialID, userID string) ([]models.MemberRole, error) {
	rows, err := d.db.QueryContext(ctx, selectMemberRolesQuery, credentialID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member roles: %w", err)
	}
	defer rows.Close()

	var roles []models.MemberRole
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, models.MemberRole(role))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// RemoveMemberRole deletes one membership row. Removing an absent role is
// not an error.
func (d *Database) RemoveMemberRole(ctx context.Context, credentialID, userID string, role models.MemberRole) error {
	_, err := d.db.ExecContext(ctx, deleteMemberRoleQuery, credentialID, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to remove member role: %w", err)
	}
	return nil
}

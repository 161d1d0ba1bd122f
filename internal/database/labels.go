package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diegolsarmond/qchat/internal/models"
)

// Label operations. Chat-label assignment is idempotent in both
// directions: adding a present label and removing an absent one are no-ops.

func (d *Database) CreateLabel(ctx context.Context, label *models.Label) (int64, error) {
	result, err := d.db.ExecContext(ctx, insertLabelQuery, label.CredentialID, label.Name, label.Color)
	if err != nil {
		return 0, fmt.Errorf("failed to create label: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get label id: %w", err)
	}
	return id, nil
}

func (d *Database) GetLabel(ctx context.Context, id int64) (*models.Label, error) {
	label := &models.Label{}
	err := d.db.QueryRowContext(ctx, selectLabelByIDQuery, id).Scan(
		&label.ID, &label.CredentialID, &label.Name, &label.Color, &label.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label: %w", err)
	}
	return label, nil
}

func (d *Database) ListLabels(ctx context.Context, credentialID string) ([]models.Label, error) {
	return d.queryLabels(ctx, selectLabelsByCredentialQuery, credentialID)
}

func (d *Database) AddChatLabel(ctx context.Context, chatID, labelID int64) error {
	_, err := d.db.ExecContext(ctx, insertChatLabelQuery, chatID, labelID)
	if err != nil {
		return fmt.Errorf("failed to add chat label: %w", err)
	}
	return nil
}

func (d *Database) RemoveChatLabel(ctx context.Context, chatID, labelID int64) error {
	_, err := d.db.ExecContext(ctx, deleteChatLabelQuery, chatID, labelID)
	if err != nil {
		return fmt.Errorf("failed to remove chat label: %w", err)
	}
	return nil
}

func (d *Database) GetChatLabels(ctx context.Context, chatID int64) ([]models.Label, error) {
	return d.queryLabels(ctx, selectChatLabelsQuery, chatID)
}

func (d *Database) queryLabels(ctx context.Context, query string, arg any) ([]models.Label, error) {
	rows, err := d.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []models.Label
	for rows.Next() {
		var label models.Label
		if err := rows.Scan(&label.ID, &label.CredentialID, &label.Name, &label.Color, &label.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate labels: %w", err)
	}
	return labels, nil
}

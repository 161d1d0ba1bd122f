package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/diegolsarmond/qchat/internal/errors"
	"github.com/diegolsarmond/qchat/internal/models"
)

func TestGuardAuthorize(t *testing.T) {
	db := newMockStorage()
	db.addCredential(models.Credential{ID: "cred-1", UserID: "owner-1"})
	require.NoError(t, db.EnsureMember(context.Background(), "cred-1", "agent-1", models.RoleAgent))
	guard := NewGuard(db)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		wantErr bool
	}{
		{"owner passes", "owner-1", false},
		{"member passes", "agent-1", false},
		{"stranger rejected", "stranger", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := guard.Authorize(ctx, "cred-1", tt.userID)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, cred)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cred)
			assert.Equal(t, "cred-1", cred.ID)
		})
	}
}

func TestGuardAuthorizeManager(t *testing.T) {
	db := newMockStorage()
	db.addCredential(models.Credential{ID: "cred-1", UserID: "owner-1"})
	ctx := context.Background()
	require.NoError(t, db.EnsureMember(ctx, "cred-1", "admin-1", models.RoleAdmin))
	require.NoError(t, db.EnsureMember(ctx, "cred-1", "sup-1", models.RoleSupervisor))
	require.NoError(t, db.EnsureMember(ctx, "cred-1", "agent-1", models.RoleAgent))
	guard := NewGuard(db)

	tests := []struct {
		name    string
		userID  string
		wantErr bool
	}{
		{"owner passes", "owner-1", false},
		{"admin passes", "admin-1", false},
		{"supervisor passes", "sup-1", false},
		{"agent rejected", "agent-1", true},
		{"stranger rejected", "stranger", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guard.AuthorizeManager(ctx, "cred-1", tt.userID)
			if tt.wantErr {
				require.Error(t, err)
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, apperrors.ErrCodeAuthorization, appErr.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGuardUnknownCredential(t *testing.T) {
	guard := NewGuard(newMockStorage())

	_, err := guard.Authorize(context.Background(), "missing", "user-1")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
}

func TestGuardMissingIdentifiers(t *testing.T) {
	db := newMockStorage()
	db.addCredential(models.Credential{ID: "cred-1", UserID: "owner-1"})
	guard := NewGuard(db)
	ctx := context.Background()

	_, err := guard.Authorize(ctx, "", "owner-1")
	require.Error(t, err)

	_, err = guard.Authorize(ctx, "cred-1", "")
	require.Error(t, err)
}

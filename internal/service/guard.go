package service

import (
	"context"
	"fmt"

	apperrors "github.com/diegolsarmond/qchat/internal/errors"
	"github.com/diegolsarmond/qchat/internal/models"
)

// Guard is the tenant authorization primitive. Every server-side entry
// point resolves the caller against the credential through it before
// touching tenant data.
type Guard struct {
	db Storage
}

func NewGuard(db Storage) *Guard {
	return &Guard{db: db}
}

// Authorize verifies that the user owns the credential or holds any
// membership role on it. Returns the credential on success.
func (g *Guard) Authorize(ctx context.Context, credentialID, userID string) (*models.Credential, error) {
	cred, roles, err := g.resolve(ctx, credentialID, userID)
	if err != nil {
		return nil, err
	}
	if cred.UserID == userID || len(roles) > 0 {
		return cred, nil
	}
	return nil, apperrors.NewForbiddenError("access credential", "user is not a member of this credential")
}

// AuthorizeManager verifies that the user is the credential owner or holds
// a role allowed to manage attendance (owner, admin or supervisor). Plain
// agents are rejected.
func (g *Guard) AuthorizeManager(ctx context.Context, credentialID, userID string) (*models.Credential, error) {
	cred, roles, err := g.resolve(ctx, credentialID, userID)
	if err != nil {
		return nil, err
	}
	if cred.UserID == userID {
		return cred, nil
	}
	for _, role := range roles {
		if role.CanManageAttendance() {
			return cred, nil
		}
	}
	return nil, apperrors.NewForbiddenError("manage attendance", "requires owner, admin or supervisor role")
}

func (g *Guard) resolve(ctx context.Context, credentialID, userID string) (*models.Credential, []models.MemberRole, error) {
	if credentialID == "" {
		return nil, nil, apperrors.NewValidationError("credentialId", "", "credential id is required")
	}
	if userID == "" {
		return nil, nil, apperrors.NewForbiddenError("access credential", "caller identity is missing")
	}

	cred, err := g.db.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return nil, nil, apperrors.NewNotFoundError("credential", credentialID)
	}

	roles, err := g.db.GetMemberRoles(ctx, credentialID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load member roles: %w", err)
	}
	return cred, roles, nil
}

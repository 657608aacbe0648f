package mutation

import (
	"context"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// Target is the file or folder whose grants change. FolderID is where it is listed.
type Target struct {
	Kind     models.EntityKind `json:"kind" validate:"required,oneof=file folder"`
	ID       string            `json:"id" validate:"required"`
	FolderID string            `json:"folderId"`
}

type grantInput struct {
	Target
	GranteeID string `json:"granteeId" validate:"required"`
}

// ShareWithUser grants a user a permission. Granting the same user again overwrites the
// permission.
func (m *Mutator) ShareWithUser(ctx context.Context, t Target, principalID string, perm models.Permission) error {
	if err := check(&grantInput{Target: t, GranteeID: principalID}, permissionRule("permission", perm)); err != nil {
		return err
	}
	err := m.api.Share(ctx, t.Kind, t.ID, protocol.ShareRequest{
		PrincipalID:   principalID,
		PrincipalType: models.PrincipalTypeUser,
		Permission:    perm,
	})
	return m.afterShare("share_user", t, err)
}

// UpdateUserShare changes an existing user grant.
func (m *Mutator) UpdateUserShare(ctx context.Context, t Target, principalID string, perm models.Permission) error {
	if err := check(&grantInput{Target: t, GranteeID: principalID}, permissionRule("permission", perm)); err != nil {
		return err
	}
	return m.afterShare("update_user_share", t, m.api.UpdateShare(ctx, t.Kind, t.ID, principalID, perm))
}

// UnshareUser removes a user grant. Role grants are untouched.
func (m *Mutator) UnshareUser(ctx context.Context, t Target, principalID string) error {
	if err := check(&grantInput{Target: t, GranteeID: principalID}, nil); err != nil {
		return err
	}
	return m.afterShare("unshare_user", t, m.api.Unshare(ctx, t.Kind, t.ID, principalID))
}

// ShareWithRole grants a role a permission.
func (m *Mutator) ShareWithRole(ctx context.Context, t Target, roleID string, perm models.Permission) error {
	if err := check(&grantInput{Target: t, GranteeID: roleID}, permissionRule("permission", perm)); err != nil {
		return err
	}
	err := m.api.ShareRole(ctx, t.Kind, t.ID, protocol.ShareRoleRequest{RoleID: roleID, Permission: perm})
	return m.afterShare("share_role", t, err)
}

// UpdateRoleShare changes an existing role grant.
func (m *Mutator) UpdateRoleShare(ctx context.Context, t Target, roleID string, perm models.Permission) error {
	if err := check(&grantInput{Target: t, GranteeID: roleID}, permissionRule("permission", perm)); err != nil {
		return err
	}
	return m.afterShare("update_role_share", t, m.api.UpdateShareRole(ctx, t.Kind, t.ID, roleID, perm))
}

// UnshareRole removes a role grant. User grants are untouched.
func (m *Mutator) UnshareRole(ctx context.Context, t Target, roleID string) error {
	if err := check(&grantInput{Target: t, GranteeID: roleID}, nil); err != nil {
		return err
	}
	return m.afterShare("unshare_role", t, m.api.UnshareRole(ctx, t.Kind, t.ID, roleID))
}

// afterShare invalidates the entity's grant tables and the listing that shows its grant counts.
func (m *Mutator) afterShare(op string, t Target, err error) error {
	m.record(op, err)
	if err != nil {
		return err
	}
	m.invalidateSharing(t.Kind, t.ID)
	m.invalidateFolders(t.FolderID)
	return nil
}

package client

import (
	"context"
	"net/http"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// Both files and folders expose the same two grant tables: /share for users and
// /share-roles for roles.

func sharePath(kind models.EntityKind, id, table string) (path, route string) {
	res := kind.Resource()
	return "/" + res + "/" + escape(id) + "/" + table, "/" + res + "/:id/" + table
}

// ListShares returns the user grants of a file or folder.
func (c *Client) ListShares(ctx context.Context, kind models.EntityKind, id string) ([]models.SharedPrincipal, error) {
	path, route := sharePath(kind, id, "share")
	var resp protocol.SharesResponse
	if err := c.query(ctx, request{method: http.MethodGet, path: path, route: route}, &resp); err != nil {
		return nil, err
	}
	return resp.SharedWith, nil
}

// ListRoleShares returns the role grants of a file or folder.
func (c *Client) ListRoleShares(ctx context.Context, kind models.EntityKind, id string) ([]models.SharedRole, error) {
	path, route := sharePath(kind, id, "share-roles")
	var resp protocol.RoleSharesResponse
	if err := c.query(ctx, request{method: http.MethodGet, path: path, route: route}, &resp); err != nil {
		return nil, err
	}
	return resp.SharedWithRoles, nil
}

// Share grants a user a permission. Granting an existing principal overwrites its permission.
func (c *Client) Share(ctx context.Context, kind models.EntityKind, id string, req protocol.ShareRequest) error {
	if req.PrincipalType == "" {
		req.PrincipalType = models.PrincipalTypeUser
	}
	path, route := sharePath(kind, id, "share")
	r, err := jsonRequest(http.MethodPost, path, route, req)
	if err != nil {
		return err
	}
	return c.mutate(ctx, r, nil)
}

// UpdateShare changes the permission of an existing user grant.
func (c *Client) UpdateShare(ctx context.Context, kind models.EntityKind, id, principalID string, perm models.Permission) error {
	path, route := sharePath(kind, id, "share")
	r, err := jsonRequest(http.MethodPatch, path+"/"+escape(principalID), route+"/:principalId",
		protocol.UpdatePermissionRequest{Permission: perm})
	if err != nil {
		return err
	}
	return c.mutate(ctx, r, nil)
}

// Unshare removes a user grant.
func (c *Client) Unshare(ctx context.Context, kind models.EntityKind, id, principalID string) error {
	path, route := sharePath(kind, id, "share")
	return c.mutate(ctx, request{
		method: http.MethodDelete,
		path:   path + "/" + escape(principalID),
		route:  route + "/:principalId",
	}, nil)
}

// ShareRole grants a role a permission.
func (c *Client) ShareRole(ctx context.Context, kind models.EntityKind, id string, req protocol.ShareRoleRequest) error {
	path, route := sharePath(kind, id, "share-roles")
	r, err := jsonRequest(http.MethodPost, path, route, req)
	if err != nil {
		return err
	}
	return c.mutate(ctx, r, nil)
}

// UpdateShareRole changes the permission of an existing role grant.
func (c *Client) UpdateShareRole(ctx context.Context, kind models.EntityKind, id, roleID string, perm models.Permission) error {
	path, route := sharePath(kind, id, "share-roles")
	r, err := jsonRequest(http.MethodPatch, path+"/"+escape(roleID), route+"/:roleId",
		protocol.UpdatePermissionRequest{Permission: perm})
	if err != nil {
		return err
	}
	return c.mutate(ctx, r, nil)
}

// UnshareRole removes a role grant.
func (c *Client) UnshareRole(ctx context.Context, kind models.EntityKind, id, roleID string) error {
	path, route := sharePath(kind, id, "share-roles")
	return c.mutate(ctx, request{
		method: http.MethodDelete,
		path:   path + "/" + escape(roleID),
		route:  route + "/:roleId",
	}, nil)
}

package client

import (
	"context"
	"net/http"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// Browse fetches one page of the combined folder and file listing of q.ParentID.
// password, when non-empty, is sent as the folder access credential.
func (c *Client) Browse(ctx context.Context, q protocol.BrowseQuery, password string) (*models.BrowseResult, error) {
	var result models.BrowseResult
	err := c.query(ctx, request{
		method:   http.MethodGet,
		path:     "/folders/browse",
		route:    "/folders/browse",
		query:    q.Values(),
		password: password,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Breadcrumbs returns the ancestor chain of a folder, root first, ending with the folder itself.
func (c *Client) Breadcrumbs(ctx context.Context, folderID, password string) ([]models.Breadcrumb, error) {
	var resp protocol.BreadcrumbsResponse
	err := c.query(ctx, request{
		method:   http.MethodGet,
		path:     "/folders/" + escape(folderID) + "/breadcrumbs",
		route:    "/folders/:id/breadcrumbs",
		password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Breadcrumbs, nil
}

// ListFolders returns every folder visible to the caller.
func (c *Client) ListFolders(ctx context.Context) ([]models.Folder, error) {
	var resp protocol.FolderListResponse
	err := c.query(ctx, request{
		method: http.MethodGet,
		path:   "/folders",
		route:  "/folders",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

// CreateFolder creates a folder.
func (c *Client) CreateFolder(ctx context.Context, req protocol.CreateFolderRequest) (*models.Folder, error) {
	r, err := jsonRequest(http.MethodPost, "/folders", "/folders", req)
	if err != nil {
		return nil, err
	}
	var folder models.Folder
	if err := c.mutate(ctx, r, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// UpdateFolder patches a folder. Setting ParentID moves it.
func (c *Client) UpdateFolder(ctx context.Context, folderID string, req protocol.UpdateFolderRequest) (*models.Folder, error) {
	r, err := jsonRequest(http.MethodPatch, "/folders/"+escape(folderID), "/folders/:id", req)
	if err != nil {
		return nil, err
	}
	var folder models.Folder
	if err := c.mutate(ctx, r, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// DeleteFolder deletes a folder.
func (c *Client) DeleteFolder(ctx context.Context, folderID string) error {
	return c.mutate(ctx, request{
		method: http.MethodDelete,
		path:   "/folders/" + escape(folderID),
		route:  "/folders/:id",
	}, nil)
}

// CheckFolderPassword asks the server whether password opens the folder. An invalid-password
// 403 is reported as (false, nil); any other failure is returned as an error.
func (c *Client) CheckFolderPassword(ctx context.Context, folderID, password string) (bool, error) {
	r, err := jsonRequest(http.MethodPost, "/folders/"+escape(folderID)+"/check-password",
		"/folders/:id/check-password", protocol.CheckPasswordRequest{Password: password})
	if err != nil {
		return false, err
	}

	resp := protocol.CheckPasswordResponse{Valid: true}
	if err := c.mutate(ctx, r, &resp); err != nil {
		if IsInvalidPassword(err) {
			return false, nil
		}
		return false, err
	}
	return resp.Valid, nil
}

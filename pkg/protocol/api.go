// Package protocol defines the REST request/response types of the file manager API.
package protocol

import (
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

// APIPrefix is the versioned base path of every endpoint.
const APIPrefix = "/v1"

// FolderPasswordHeader carries a folder access password on browse and breadcrumb requests.
const FolderPasswordHeader = "X-Folder-Access-Password"

// Backend 403 messages that drive the password challenge flow. Matched exactly.
const (
	MsgPasswordRequired = "Password required to access this folder."
	MsgInvalidPassword  = "Invalid password for folder access."
)

// DateLayout is the format of startDate/endDate query parameters.
const DateLayout = "2006-01-02"

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// ItemType restricts a browse listing to files, folders or both.
type ItemType string

const (
	ItemsAll     ItemType = "all"
	ItemsFiles   ItemType = "files"
	ItemsFolders ItemType = "folders"
)

// SortOrder is the direction of a browse sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// BrowseQuery holds the parameters of GET /folders/browse.
type BrowseQuery struct {
	ParentID  string
	Search    string
	ItemType  ItemType
	FileTypes []string
	StartDate time.Time
	EndDate   time.Time
	SortBy    string
	SortOrder SortOrder
	Page      int
	Size      int
}

// Values encodes the query string. Empty fields are omitted; the root folder has no parentId.
func (q BrowseQuery) Values() url.Values {
	v := url.Values{}
	if q.ParentID != models.RootFolderID {
		v.Set("parentId", q.ParentID)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.ItemType != "" && q.ItemType != ItemsAll {
		v.Set("itemType", string(q.ItemType))
	}
	if len(q.FileTypes) > 0 {
		v.Set("fileType", strings.Join(q.FileTypes, ","))
	}
	if !q.StartDate.IsZero() {
		v.Set("startDate", q.StartDate.Format(DateLayout))
	}
	if !q.EndDate.IsZero() {
		v.Set("endDate", q.EndDate.Format(DateLayout))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", string(q.SortOrder))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}

// CreateFolderRequest is the body for POST /folders.
type CreateFolderRequest struct {
	Name            string                   `json:"name"`
	Note            string                   `json:"note,omitempty"`
	Accessibility   models.Accessibility     `json:"accessibility"`
	AccessPassword  string                   `json:"accessPassword,omitempty"`
	ParentID        string                   `json:"parentId,omitempty"`
	SharedWith      []models.SharedPrincipal `json:"sharedWith,omitempty"`
	SharedWithRoles []models.SharedRole      `json:"sharedWithRoles,omitempty"`
}

// UpdateFolderRequest is the body for PATCH /folders/{id}. Nil fields are left unchanged;
// moving a folder sets ParentID.
type UpdateFolderRequest struct {
	Name           *string               `json:"name,omitempty"`
	Note           *string               `json:"note,omitempty"`
	Accessibility  *models.Accessibility `json:"accessibility,omitempty"`
	AccessPassword *string               `json:"accessPassword,omitempty"`
	ParentID       *string               `json:"parentId,omitempty"`
}

// UpdateFileRequest is the body for PATCH /files/{id}.
type UpdateFileRequest struct {
	Name           *string `json:"name,omitempty"`
	TargetFolderID *string `json:"targetFolderId,omitempty"`
	Alt            *string `json:"alt,omitempty"`
}

// CheckPasswordRequest is the body for POST /folders/{id}/check-password.
type CheckPasswordRequest struct {
	Password string `json:"password"`
}

// CheckPasswordResponse is returned by POST /folders/{id}/check-password.
type CheckPasswordResponse struct {
	Valid bool `json:"valid"`
}

// ShareRequest is the body for POST /{files|folders}/{id}/share. Posting an existing principal
// overwrites its permission.
type ShareRequest struct {
	PrincipalID   string            `json:"principalId"`
	PrincipalType string            `json:"principalType"`
	Permission    models.Permission `json:"permission"`
}

// ShareRoleRequest is the body for POST /{files|folders}/{id}/share-roles.
type ShareRoleRequest struct {
	RoleID     string            `json:"roleId"`
	Permission models.Permission `json:"permission"`
}

// UpdatePermissionRequest is the body for PATCH .../share/{principalId} and .../share-roles/{roleId}.
type UpdatePermissionRequest struct {
	Permission models.Permission `json:"permission"`
}

// FolderListResponse is returned by GET /folders.
type FolderListResponse struct {
	Folders []models.Folder `json:"folders"`
}

// BreadcrumbsResponse is returned by GET /folders/{id}/breadcrumbs, root first.
type BreadcrumbsResponse struct {
	Breadcrumbs []models.Breadcrumb `json:"breadcrumbs"`
}

// SharesResponse is returned by GET .../share.
type SharesResponse struct {
	SharedWith []models.SharedPrincipal `json:"sharedWith"`
}

// RoleSharesResponse is returned by GET .../share-roles.
type RoleSharesResponse struct {
	SharedWithRoles []models.SharedRole `json:"sharedWithRoles"`
}

// UploadFile is one part of a multi-file upload.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// UploadRequest describes POST /files/upload-multiple. The sharing lists are sent JSON-encoded.
type UploadRequest struct {
	FolderID        string
	Files           []UploadFile
	SharedWith      []models.SharedPrincipal
	SharedWithRoles []models.SharedRole
}

// UploadResponse is returned by POST /files/upload-multiple.
type UploadResponse struct {
	Files []models.File `json:"files"`
}

// DownloadResponse is returned by GET /files/{id}/download.
type DownloadResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// Package mutation performs create, update, delete, move and share operations on files and
// folders. Inputs are validated before any request is sent, and cached listings of the affected
// folders are invalidated only after the server acknowledged the change.
package mutation

import (
	"context"
	"strings"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// API is the subset of the REST client used for mutations.
type API interface {
	CreateFolder(ctx context.Context, req protocol.CreateFolderRequest) (*models.Folder, error)
	UpdateFolder(ctx context.Context, folderID string, req protocol.UpdateFolderRequest) (*models.Folder, error)
	DeleteFolder(ctx context.Context, folderID string) error

	UploadFiles(ctx context.Context, req protocol.UploadRequest) ([]models.File, error)
	UpdateFile(ctx context.Context, fileID string, req protocol.UpdateFileRequest) (*models.File, error)
	DeleteFile(ctx context.Context, fileID string) error

	Share(ctx context.Context, kind models.EntityKind, id string, req protocol.ShareRequest) error
	UpdateShare(ctx context.Context, kind models.EntityKind, id, principalID string, perm models.Permission) error
	Unshare(ctx context.Context, kind models.EntityKind, id, principalID string) error
	ShareRole(ctx context.Context, kind models.EntityKind, id string, req protocol.ShareRoleRequest) error
	UpdateShareRole(ctx context.Context, kind models.EntityKind, id, roleID string, perm models.Permission) error
	UnshareRole(ctx context.Context, kind models.EntityKind, id, roleID string) error
}

// BrowseInvalidator drops cached listings of a folder.
type BrowseInvalidator interface {
	InvalidateFolder(folderID string) int
}

// SharingInvalidator drops cached grant tables of an entity.
type SharingInvalidator interface {
	Invalidate(kind models.EntityKind, id string)
}

// ItemRef names a file or folder together with the folder it is listed in.
type ItemRef struct {
	ID       string
	FolderID string
}

// CreateFolderInput is the folder creation form.
type CreateFolderInput struct {
	Name            string                   `json:"name" validate:"required,max=255"`
	Note            string                   `json:"note" validate:"max=1000"`
	Accessibility   models.Accessibility     `json:"accessibility" validate:"omitempty,oneof=public protected"`
	AccessPassword  string                   `json:"accessPassword" validate:"omitempty,min=8"`
	ParentID        string                   `json:"parentId"`
	SharedWith      []models.SharedPrincipal `json:"sharedWith"`
	SharedWithRoles []models.SharedRole      `json:"sharedWithRoles"`
}

// UpdateFolderInput is the folder edit form. Nil fields are left unchanged; an omitted password
// keeps the stored one, so it is only required when a public folder becomes protected.
type UpdateFolderInput struct {
	ID             string                `json:"id" validate:"required"`
	ParentID       string                `json:"parentId"`
	Name           *string               `json:"name" validate:"omitnil,min=1,max=255"`
	Note           *string               `json:"note" validate:"omitnil,max=1000"`
	Accessibility  *models.Accessibility `json:"accessibility" validate:"omitnil,oneof=public protected"`
	AccessPassword *string               `json:"accessPassword" validate:"omitnil,min=8"`
	// Current is the folder's accessibility before the edit.
	Current models.Accessibility `json:"-"`
}

// UpdateFileInput is the file edit form.
type UpdateFileInput struct {
	ID       string  `json:"id" validate:"required"`
	FolderID string  `json:"folderId"`
	Name     *string `json:"name" validate:"omitnil,min=1,max=255"`
	Alt      *string `json:"alt" validate:"omitnil,max=500"`
}

// UploadInput describes a multi-file upload.
type UploadInput struct {
	FolderID        string                   `json:"folderId"`
	Files           []protocol.UploadFile    `json:"files" validate:"gt=0"`
	SharedWith      []models.SharedPrincipal `json:"sharedWith"`
	SharedWithRoles []models.SharedRole      `json:"sharedWithRoles"`
}

// Mutator is the mutation layer.
type Mutator struct {
	api     API
	browse  BrowseInvalidator
	sharing SharingInvalidator
}

// New creates a mutator. sharing may be nil.
func New(api API, browse BrowseInvalidator, sharing SharingInvalidator) *Mutator {
	return &Mutator{api: api, browse: browse, sharing: sharing}
}

// CreateFolder validates and creates a folder. A protected folder needs a password of at least
// eight characters.
func (m *Mutator) CreateFolder(ctx context.Context, in CreateFolderInput) (*models.Folder, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Accessibility == "" {
		in.Accessibility = models.AccessPublic
	}
	if err := check(&in, createFolderRules(&in)); err != nil {
		return nil, err
	}

	req := protocol.CreateFolderRequest{
		Name:            in.Name,
		Note:            in.Note,
		Accessibility:   in.Accessibility,
		ParentID:        in.ParentID,
		SharedWith:      in.SharedWith,
		SharedWithRoles: in.SharedWithRoles,
	}
	if in.Accessibility == models.AccessProtected {
		req.AccessPassword = in.AccessPassword
	}

	folder, err := m.api.CreateFolder(ctx, req)
	m.record("create_folder", err)
	if err != nil {
		return nil, err
	}
	m.invalidateFolders(in.ParentID)
	return folder, nil
}

// UpdateFolder validates and patches a folder. Its parent listing and its own listing are
// invalidated, since a changed password or accessibility affects how it is browsed.
func (m *Mutator) UpdateFolder(ctx context.Context, in UpdateFolderInput) (*models.Folder, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := check(&in, updateFolderRules(&in)); err != nil {
		return nil, err
	}

	folder, err := m.api.UpdateFolder(ctx, in.ID, protocol.UpdateFolderRequest{
		Name:           in.Name,
		Note:           in.Note,
		Accessibility:  in.Accessibility,
		AccessPassword: in.AccessPassword,
	})
	m.record("update_folder", err)
	if err != nil {
		return nil, err
	}
	m.invalidateFolders(in.ParentID, in.ID)
	return folder, nil
}

// DeleteFolder deletes a folder.
func (m *Mutator) DeleteFolder(ctx context.Context, ref ItemRef) error {
	if err := requireID(ref); err != nil {
		return err
	}
	err := m.api.DeleteFolder(ctx, ref.ID)
	m.record("delete_folder", err)
	if err != nil {
		return err
	}
	m.invalidateFolders(ref.FolderID, ref.ID)
	m.invalidateSharing(models.KindFolder, ref.ID)
	return nil
}

// UploadFiles uploads files into a folder.
func (m *Mutator) UploadFiles(ctx context.Context, in UploadInput) ([]models.File, error) {
	if err := check(&in, nil); err != nil {
		return nil, err
	}
	files, err := m.api.UploadFiles(ctx, protocol.UploadRequest{
		FolderID:        in.FolderID,
		Files:           in.Files,
		SharedWith:      in.SharedWith,
		SharedWithRoles: in.SharedWithRoles,
	})
	m.record("upload_files", err)
	if err != nil {
		return nil, err
	}
	m.invalidateFolders(in.FolderID)
	return files, nil
}

// UpdateFile renames a file or changes its alt text.
func (m *Mutator) UpdateFile(ctx context.Context, in UpdateFileInput) (*models.File, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := check(&in, nil); err != nil {
		return nil, err
	}
	file, err := m.api.UpdateFile(ctx, in.ID, protocol.UpdateFileRequest{Name: in.Name, Alt: in.Alt})
	m.record("update_file", err)
	if err != nil {
		return nil, err
	}
	m.invalidateFolders(in.FolderID)
	return file, nil
}

// DeleteFile deletes a file.
func (m *Mutator) DeleteFile(ctx context.Context, ref ItemRef) error {
	if err := requireID(ref); err != nil {
		return err
	}
	err := m.api.DeleteFile(ctx, ref.ID)
	m.record("delete_file", err)
	if err != nil {
		return err
	}
	m.invalidateFolders(ref.FolderID)
	m.invalidateSharing(models.KindFile, ref.ID)
	return nil
}

func requireID(ref ItemRef) error {
	if strings.TrimSpace(ref.ID) == "" {
		return &ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	return nil
}

func (m *Mutator) record(op string, err error) {
	metrics.RecordMutation(op, err == nil)
	if err != nil {
		logging.Warn("mutation failed", logging.String("op", op), logging.Err(err))
		return
	}
	logging.Debug("mutation succeeded", logging.String("op", op))
}

// invalidateFolders drops cached listings of each distinct folder once.
func (m *Mutator) invalidateFolders(folderIDs ...string) {
	if m.browse == nil {
		return
	}
	seen := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		m.browse.InvalidateFolder(id)
	}
}

func (m *Mutator) invalidateSharing(kind models.EntityKind, id string) {
	if m.sharing != nil {
		m.sharing.Invalidate(kind, id)
	}
}

package filemanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/capability"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/download"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/mutation"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/notify"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/sharing"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/store"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// errNoFolderDialog is returned when submitting while the folder dialog is closed.
var errNoFolderDialog = errors.New("folder dialog is not open")

// SelectAll selects or clears every item of the current listing.
func (s *Session) SelectAll(selected bool) {
	listing := s.Listing()
	if listing == nil {
		s.store.ClearSelection()
		return
	}
	s.store.SelectAll(listing.Folders(), listing.Files(), selected)
}

// OpenCreateFolder opens the folder dialog to create a folder in the current folder.
func (s *Session) OpenCreateFolder() (store.FolderDialogState, error) {
	if err := s.require("create folders", capability.FoldersCreate); err != nil {
		return store.FolderDialogState{}, err
	}
	return s.store.OpenFolderDialog(store.ForCreate(s.store.CurrentFolder())), nil
}

// OpenEditFolder opens the folder dialog to edit folder.
func (s *Session) OpenEditFolder(folder models.Folder) (store.FolderDialogState, error) {
	if err := s.require("edit folders", capability.FoldersUpdate); err != nil {
		return store.FolderDialogState{}, err
	}
	return s.store.OpenFolderDialog(store.ForUpdate(folder)), nil
}

// SubmitFolderDialog merges patch into the open folder dialog and submits it. The dialog stays
// open when the request fails so the user can correct it.
func (s *Session) SubmitFolderDialog(ctx context.Context, patch store.FolderDraftPatch) (*models.Folder, error) {
	st, ok := s.store.MergeFolderDialog(patch)
	if !ok {
		return nil, errNoFolderDialog
	}
	d := st.Draft

	var (
		folder *models.Folder
		err    error
		done   string
	)
	switch st.Mode {
	case store.ModeCreate:
		folder, err = s.mutator.CreateFolder(ctx, mutation.CreateFolderInput{
			Name:           d.Name,
			Note:           d.Note,
			Accessibility:  d.Accessibility,
			AccessPassword: d.Password,
			ParentID:       st.ParentID,
		})
		done = "Folder created"
	case store.ModeUpdate:
		in := mutation.UpdateFolderInput{
			ID:            st.Folder.ID,
			ParentID:      st.Folder.ParentID,
			Name:          &d.Name,
			Note:          &d.Note,
			Accessibility: &d.Accessibility,
			Current:       st.Folder.Accessibility,
		}
		if d.Password != "" {
			in.AccessPassword = &d.Password
		}
		folder, err = s.mutator.UpdateFolder(ctx, in)
		done = "Folder updated"
		if err == nil && (d.Password != "" || d.Accessibility == models.AccessPublic) {
			// The cached password no longer matches what the server holds.
			s.access.ResetPassword(st.Folder.ID)
		}
	default:
		return nil, errNoFolderDialog
	}
	if err != nil {
		return nil, s.fail("Failed to save folder", err)
	}

	s.store.CloseFolderDialog()
	notify.Success(s.notifier, "%s: %s", done, folder.Name)
	s.reload(ctx)
	return folder, nil
}

// CancelFolderDialog closes the folder dialog without saving.
func (s *Session) CancelFolderDialog() {
	s.store.CloseFolderDialog()
}

// DeleteSelected deletes every selected file and folder. Items are attempted one by one and the
// outcome lists which ones failed. The selection is cleared either way.
func (s *Session) DeleteSelected(ctx context.Context) (mutation.Outcome, error) {
	sel := s.store.Selection()
	if err := s.require("delete items", selectionCaps(sel, capability.FilesDelete, capability.FoldersDelete)...); err != nil {
		return mutation.Outcome{}, err
	}

	folderID := s.store.CurrentFolder()
	out, err := s.mutator.DeleteMany(ctx, refs(sel.Files, folderID), refs(sel.Folders, folderID))
	s.store.ClearSelection()
	if err != nil {
		return out, s.bulkFailed(ctx, "delete", out, err)
	}
	notify.Success(s.notifier, "Deleted %d items", len(out.Succeeded))
	s.reload(ctx)
	return out, nil
}

// OpenMoveDialog snapshots the selection into the move dialog and returns the folders it may be
// moved into.
func (s *Session) OpenMoveDialog(ctx context.Context) (store.MoveDialogState, []models.Folder, error) {
	sel := s.store.Selection()
	if err := s.require("move items", selectionCaps(sel, capability.FilesUpdate, capability.FoldersUpdate)...); err != nil {
		return store.MoveDialogState{}, nil, err
	}
	candidates, err := s.MoveCandidates(ctx)
	if err != nil {
		return store.MoveDialogState{}, nil, err
	}
	return s.store.OpenMoveDialog(), candidates, nil
}

// MoveCandidates lists every folder except the selected ones. Moving a folder below one of its
// own descendants is rejected by the server.
func (s *Session) MoveCandidates(ctx context.Context) ([]models.Folder, error) {
	folders, err := s.api.ListFolders(ctx)
	if err != nil {
		return nil, s.fail("Failed to load folders", err)
	}

	excluded := make(map[string]bool)
	for _, id := range s.store.Selection().Folders {
		excluded[id] = true
	}
	for _, id := range s.store.MoveDialog().FolderIDs {
		excluded[id] = true
	}
	out := folders[:0]
	for _, f := range folders {
		if !excluded[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}

// MoveSelected moves the items of the move dialog, or the current selection when the dialog is
// closed, into targetFolderID. Dialog items are taken from the folder the dialog was opened in,
// even if the user navigated away since.
func (s *Session) MoveSelected(ctx context.Context, targetFolderID string) (mutation.Outcome, error) {
	st := s.store.MoveDialog()
	if !st.Open {
		sel := s.store.Selection()
		st = store.MoveDialogState{
			FileIDs:        sel.Files,
			FolderIDs:      sel.Folders,
			SourceFolderID: s.store.CurrentFolder(),
		}
	}
	sel := store.Selection{Files: st.FileIDs, Folders: st.FolderIDs}
	if err := s.require("move items", selectionCaps(sel, capability.FilesUpdate, capability.FoldersUpdate)...); err != nil {
		return mutation.Outcome{}, err
	}

	out, err := s.mutator.Move(ctx, mutation.MoveInput{
		Files:          refs(st.FileIDs, st.SourceFolderID),
		Folders:        refs(st.FolderIDs, st.SourceFolderID),
		TargetFolderID: targetFolderID,
	})
	s.store.CloseMoveDialog()
	s.store.ClearSelection()
	if err != nil {
		return out, s.bulkFailed(ctx, "move", out, err)
	}
	notify.Success(s.notifier, "Moved %d items", len(out.Succeeded))
	s.reload(ctx)
	return out, nil
}

// Upload uploads files into the current folder.
func (s *Session) Upload(ctx context.Context, files []protocol.UploadFile) ([]models.File, error) {
	if err := s.require("upload files", capability.FilesUpload); err != nil {
		return nil, err
	}
	uploaded, err := s.mutator.UploadFiles(ctx, mutation.UploadInput{
		FolderID: s.store.CurrentFolder(),
		Files:    files,
	})
	if err != nil {
		return nil, s.fail("Failed to upload files", err)
	}
	notify.Success(s.notifier, "Uploaded %d files", len(uploaded))
	s.reload(ctx)
	return uploaded, nil
}

// RenameFile renames a file of the current folder.
func (s *Session) RenameFile(ctx context.Context, fileID, name string) (*models.File, error) {
	if err := s.require("rename files", capability.FilesUpdate); err != nil {
		return nil, err
	}
	file, err := s.mutator.UpdateFile(ctx, mutation.UpdateFileInput{
		ID:       fileID,
		FolderID: s.store.CurrentFolder(),
		Name:     &name,
	})
	if err != nil {
		return nil, s.fail("Failed to rename file", err)
	}
	notify.Success(s.notifier, "File renamed to %s", file.Name)
	s.reload(ctx)
	return file, nil
}

// Download saves a file through the configured sink.
func (s *Session) Download(ctx context.Context, file models.File) (download.Result, error) {
	if err := s.require("download files", capability.FilesDownload); err != nil {
		return download.Result{}, err
	}
	res, err := s.downloads.Download(ctx, file)
	if err != nil {
		return download.Result{}, s.fail("Failed to download "+file.Name, err)
	}
	notify.Success(s.notifier, "Saved %s to %s", file.Name, res.Location)
	return res, nil
}

// Grants returns the user and role grants of a file or folder.
func (s *Session) Grants(ctx context.Context, kind models.EntityKind, id string) (sharing.Grants, error) {
	if err := s.require("view sharing", readCap(kind)); err != nil {
		return sharing.Grants{}, err
	}
	g, err := s.sharing.Grants(ctx, kind, id)
	if err != nil {
		return sharing.Grants{}, s.fail("Failed to load sharing", err)
	}
	return g, nil
}

// ShareWithUser grants a user a permission on an item of the current folder.
func (s *Session) ShareWithUser(ctx context.Context, kind models.EntityKind, id, principalID string, perm models.Permission) error {
	return s.share(ctx, kind, id, "Shared", func(t mutation.Target) error {
		return s.mutator.ShareWithUser(ctx, t, principalID, perm)
	})
}

// UpdateUserShare changes a user grant.
func (s *Session) UpdateUserShare(ctx context.Context, kind models.EntityKind, id, principalID string, perm models.Permission) error {
	return s.share(ctx, kind, id, "Permission updated", func(t mutation.Target) error {
		return s.mutator.UpdateUserShare(ctx, t, principalID, perm)
	})
}

// UnshareUser removes a user grant.
func (s *Session) UnshareUser(ctx context.Context, kind models.EntityKind, id, principalID string) error {
	return s.share(ctx, kind, id, "Access removed", func(t mutation.Target) error {
		return s.mutator.UnshareUser(ctx, t, principalID)
	})
}

// ShareWithRole grants a role a permission.
func (s *Session) ShareWithRole(ctx context.Context, kind models.EntityKind, id, roleID string, perm models.Permission) error {
	return s.share(ctx, kind, id, "Shared with role", func(t mutation.Target) error {
		return s.mutator.ShareWithRole(ctx, t, roleID, perm)
	})
}

// UpdateRoleShare changes a role grant.
func (s *Session) UpdateRoleShare(ctx context.Context, kind models.EntityKind, id, roleID string, perm models.Permission) error {
	return s.share(ctx, kind, id, "Role permission updated", func(t mutation.Target) error {
		return s.mutator.UpdateRoleShare(ctx, t, roleID, perm)
	})
}

// UnshareRole removes a role grant.
func (s *Session) UnshareRole(ctx context.Context, kind models.EntityKind, id, roleID string) error {
	return s.share(ctx, kind, id, "Role access removed", func(t mutation.Target) error {
		return s.mutator.UnshareRole(ctx, t, roleID)
	})
}

func (s *Session) share(ctx context.Context, kind models.EntityKind, id, done string, fn func(mutation.Target) error) error {
	if err := s.require("share", shareCap(kind)); err != nil {
		return err
	}
	t := mutation.Target{Kind: kind, ID: id, FolderID: s.store.CurrentFolder()}
	if err := fn(t); err != nil {
		return s.fail("Failed to update sharing", err)
	}
	notify.Success(s.notifier, "%s", done)
	s.reload(ctx)
	return nil
}

// bulkFailed reports a failed bulk operation with one toast. Items that succeeded stay applied,
// so the listing is reloaded.
func (s *Session) bulkFailed(ctx context.Context, op string, out mutation.Outcome, err error) error {
	if errors.Is(err, mutation.ErrPartialFailure) {
		notify.Error(s.notifier, "Failed to %s some items", op)
		logging.Warn("bulk operation partially failed",
			logging.String("op", op),
			logging.Int("succeeded", len(out.Succeeded)),
			logging.Strings("failed", out.FailedIDs()),
		)
		s.reload(ctx)
		return err
	}
	return s.fail(fmt.Sprintf("Failed to %s items", op), err)
}

// reload refreshes the current listing after a mutation invalidated it. Failures are already
// reported by load.
func (s *Session) reload(ctx context.Context) {
	_ = s.load(ctx, s.store.CurrentFolder())
}

func refs(ids []string, folderID string) []mutation.ItemRef {
	out := make([]mutation.ItemRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, mutation.ItemRef{ID: id, FolderID: folderID})
	}
	return out
}

func selectionCaps(sel store.Selection, forFiles, forFolders capability.Capability) []capability.Capability {
	var caps []capability.Capability
	if len(sel.Files) > 0 {
		caps = append(caps, forFiles)
	}
	if len(sel.Folders) > 0 {
		caps = append(caps, forFolders)
	}
	return caps
}

func readCap(kind models.EntityKind) capability.Capability {
	if kind == models.KindFolder {
		return capability.FoldersRead
	}
	return capability.FilesRead
}

func shareCap(kind models.EntityKind) capability.Capability {
	if kind == models.KindFolder {
		return capability.FoldersShare
	}
	return capability.FilesShare
}

package store

import "github.com/ramy-dje/madar-dashboard-sub000/pkg/models"

// DialogMode tells whether the folder dialog creates or edits.
type DialogMode int

const (
	ModeCreate DialogMode = iota + 1
	ModeUpdate
)

func (m DialogMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	default:
		return "closed"
	}
}

// FolderDialogRequest opens the folder dialog. Values only come from ForCreate and ForUpdate, so an
// update request always carries the folder being edited.
type FolderDialogRequest interface {
	mode() DialogMode
	apply(*FolderDialogState)
}

type createRequest struct {
	parentID string
}

func (createRequest) mode() DialogMode { return ModeCreate }

func (r createRequest) apply(st *FolderDialogState) {
	st.ParentID = r.parentID
	st.Draft = FolderDraft{Accessibility: models.AccessPublic}
}

type updateRequest struct {
	folder models.Folder
}

func (updateRequest) mode() DialogMode { return ModeUpdate }

func (r updateRequest) apply(st *FolderDialogState) {
	folder := r.folder
	st.Folder = &folder
	st.ParentID = folder.ParentID
	st.Draft = FolderDraft{
		Name:          folder.Name,
		Note:          folder.Note,
		Accessibility: folder.Accessibility,
	}
}

// ForCreate opens the dialog to create a folder under parentID.
func ForCreate(parentID string) FolderDialogRequest {
	return createRequest{parentID: parentID}
}

// ForUpdate opens the dialog to edit folder.
func ForUpdate(folder models.Folder) FolderDialogRequest {
	return updateRequest{folder: folder}
}

// FolderDraft holds the editable fields of the folder dialog. An empty Password on update leaves
// the stored password unchanged.
type FolderDraft struct {
	Name          string
	Note          string
	Accessibility models.Accessibility
	Password      string
}

// FolderDraftPatch carries a partial edit. Nil fields keep their current value.
type FolderDraftPatch struct {
	Name          *string
	Note          *string
	Accessibility *models.Accessibility
	Password      *string
}

// FolderDialogState is the folder dialog. Folder is set only in update mode.
type FolderDialogState struct {
	Open     bool
	Mode     DialogMode
	ParentID string
	Folder   *models.Folder
	Draft    FolderDraft
}

// MoveDialogState is the move dialog with the items it will move.
type MoveDialogState struct {
	Open      bool
	FileIDs   []string
	FolderIDs []string
	// SourceFolderID is the folder the items were selected in.
	SourceFolderID string
}

// OpenFolderDialog opens the folder dialog, replacing any previous state.
func (s *Store) OpenFolderDialog(req FolderDialogRequest) FolderDialogState {
	st := FolderDialogState{Open: true, Mode: req.mode()}
	req.apply(&st)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.folderDialog = st
	return copyFolderDialog(st)
}

// MergeFolderDialog merges a partial edit into the open dialog's draft. Fields the caller leaves
// nil are kept. It returns false when the dialog is closed.
func (s *Store) MergeFolderDialog(patch FolderDraftPatch) (FolderDialogState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.folderDialog.Open {
		return FolderDialogState{}, false
	}
	d := &s.folderDialog.Draft
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Note != nil {
		d.Note = *patch.Note
	}
	if patch.Accessibility != nil {
		d.Accessibility = *patch.Accessibility
	}
	if patch.Password != nil {
		d.Password = *patch.Password
	}
	return copyFolderDialog(s.folderDialog), true
}

// FolderDialog returns the folder dialog state.
func (s *Store) FolderDialog() FolderDialogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFolderDialog(s.folderDialog)
}

// CloseFolderDialog closes and resets the folder dialog.
func (s *Store) CloseFolderDialog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folderDialog = FolderDialogState{}
}

// OpenMoveDialog opens the move dialog for the current selection in the current folder.
func (s *Store) OpenMoveDialog() MoveDialogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moveDialog = MoveDialogState{
		Open:           true,
		FileIDs:        s.files.list(),
		FolderIDs:      s.folders.list(),
		SourceFolderID: s.currentFolder,
	}
	return copyMoveDialog(s.moveDialog)
}

// MoveDialog returns the move dialog state.
func (s *Store) MoveDialog() MoveDialogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMoveDialog(s.moveDialog)
}

// CloseMoveDialog closes the move dialog.
func (s *Store) CloseMoveDialog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moveDialog = MoveDialogState{}
}

func copyFolderDialog(st FolderDialogState) FolderDialogState {
	if st.Folder != nil {
		f := *st.Folder
		st.Folder = &f
	}
	return st
}

func copyMoveDialog(st MoveDialogState) MoveDialogState {
	st.FileIDs = append([]string(nil), st.FileIDs...)
	st.FolderIDs = append([]string(nil), st.FolderIDs...)
	return st
}

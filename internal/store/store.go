// Package store holds the session's navigation and selection state: the current folder, the
// selected file and folder ids, and the folder and move dialogs.
//
// A Store is created once per session and passed to whatever needs it. Switching folders always
// clears the selection.
package store

import (
	"sync"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

// Selection is a copy of the selected ids in selection order.
type Selection struct {
	Files   []string
	Folders []string
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.Files) == 0 && len(s.Folders) == 0
}

// Len returns the number of selected items.
func (s Selection) Len() int {
	return len(s.Files) + len(s.Folders)
}

// FolderChangeHook runs after the current folder changes.
type FolderChangeHook func(from, to string)

// Store is the selection and navigation store. It is safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	currentFolder string
	files         *idSet
	folders       *idSet
	folderDialog  FolderDialogState
	moveDialog    MoveDialogState
	hooks         []FolderChangeHook
}

// New creates a store positioned at the root folder.
func New() *Store {
	return &Store{
		currentFolder: models.RootFolderID,
		files:         newIDSet(),
		folders:       newIDSet(),
	}
}

// OnFolderChange registers a hook called after every folder switch.
func (s *Store) OnFolderChange(hook FolderChangeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// CurrentFolder returns the folder being viewed.
func (s *Store) CurrentFolder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFolder
}

// SetCurrentFolder moves to id and clears both selection sets unconditionally.
func (s *Store) SetCurrentFolder(id string) {
	s.mu.Lock()
	from := s.currentFolder
	s.currentFolder = id
	s.files.clear()
	s.folders.clear()
	hooks := append([]FolderChangeHook(nil), s.hooks...)
	s.mu.Unlock()

	if from != id {
		for _, hook := range hooks {
			hook(from, id)
		}
	}
}

// ToggleFile adds or removes a file id. Repeating a toggle is a no-op.
func (s *Store) ToggleFile(id string, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files.set(id, selected)
}

// ToggleFolder adds or removes a folder id. Repeating a toggle is a no-op.
func (s *Store) ToggleFolder(id string, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders.set(id, selected)
}

// SelectAll replaces both sets with the visible ids when selected is true, and clears them
// otherwise. Items not passed in are never part of the result.
func (s *Store) SelectAll(visibleFolders []models.Folder, visibleFiles []models.File, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files.clear()
	s.folders.clear()
	if !selected {
		return
	}
	for _, f := range visibleFolders {
		s.folders.set(f.ID, true)
	}
	for _, f := range visibleFiles {
		s.files.set(f.ID, true)
	}
}

// ClearSelection empties both sets.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files.clear()
	s.folders.clear()
}

// Selection returns the selected ids.
func (s *Store) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Selection{Files: s.files.list(), Folders: s.folders.list()}
}

// FileSelected reports whether a file is selected.
func (s *Store) FileSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files.has(id)
}

// FolderSelected reports whether a folder is selected.
func (s *Store) FolderSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folders.has(id)
}

// idSet keeps insertion order so listings and bulk calls are deterministic.
type idSet struct {
	order []string
	index map[string]struct{}
}

func newIDSet() *idSet {
	return &idSet{index: make(map[string]struct{})}
}

func (s *idSet) set(id string, present bool) {
	_, ok := s.index[id]
	switch {
	case present && !ok:
		s.index[id] = struct{}{}
		s.order = append(s.order, id)
	case !present && ok:
		delete(s.index, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *idSet) has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *idSet) clear() {
	s.order = nil
	s.index = make(map[string]struct{})
}

func (s *idSet) list() []string {
	return append([]string(nil), s.order...)
}

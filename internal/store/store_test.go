package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

func TestToggle_Idempotent(t *testing.T) {
	s := New()
	s.ToggleFile("a", true)
	s.ToggleFile("a", true)
	s.ToggleFolder("d1", true)
	s.ToggleFolder("d1", true)

	sel := s.Selection()
	assert.Equal(t, []string{"a"}, sel.Files)
	assert.Equal(t, []string{"d1"}, sel.Folders)

	s.ToggleFile("a", false)
	s.ToggleFile("a", false)
	assert.Empty(t, s.Selection().Files)
	assert.False(t, s.FileSelected("a"))
	assert.True(t, s.FolderSelected("d1"))
}

func TestSetCurrentFolder_ClearsSelection(t *testing.T) {
	s := New()
	s.ToggleFile("a", true)
	s.ToggleFolder("d1", true)
	require.False(t, s.Selection().Empty())

	s.SetCurrentFolder("X")

	assert.Equal(t, "X", s.CurrentFolder())
	assert.True(t, s.Selection().Empty())
}

func TestSetCurrentFolder_Hooks(t *testing.T) {
	s := New()
	var changes [][2]string
	s.OnFolderChange(func(from, to string) {
		changes = append(changes, [2]string{from, to})
	})

	s.SetCurrentFolder("X")
	s.SetCurrentFolder("X")
	s.SetCurrentFolder("Y")

	assert.Equal(t, [][2]string{{models.RootFolderID, "X"}, {"X", "Y"}}, changes)
}

func TestSelectAll_PageScoped(t *testing.T) {
	s := New()
	s.ToggleFile("old", true)
	s.ToggleFolder("old-dir", true)

	folders := []models.Folder{{ID: "f1"}, {ID: "f2"}}
	files := []models.File{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	s.SelectAll(folders, files, true)

	sel := s.Selection()
	assert.Equal(t, []string{"f1", "f2"}, sel.Folders)
	assert.Equal(t, []string{"a", "b", "c"}, sel.Files)

	s.SelectAll(folders, files, false)
	assert.True(t, s.Selection().Empty())
}

func TestFolderDialog_Create(t *testing.T) {
	s := New()
	st := s.OpenFolderDialog(ForCreate("X"))

	assert.True(t, st.Open)
	assert.Equal(t, ModeCreate, st.Mode)
	assert.Equal(t, "X", st.ParentID)
	assert.Nil(t, st.Folder)
	assert.Equal(t, models.AccessPublic, st.Draft.Accessibility)
}

func TestFolderDialog_UpdateCarriesFolder(t *testing.T) {
	s := New()
	folder := models.Folder{ID: "d1", Name: "Docs", Note: "team", Accessibility: models.AccessProtected, ParentID: "X"}
	st := s.OpenFolderDialog(ForUpdate(folder))

	require.NotNil(t, st.Folder)
	assert.Equal(t, ModeUpdate, st.Mode)
	assert.Equal(t, "d1", st.Folder.ID)
	assert.Equal(t, "Docs", st.Draft.Name)
	assert.Equal(t, models.AccessProtected, st.Draft.Accessibility)
	assert.Empty(t, st.Draft.Password)
}

func TestFolderDialog_MergeKeepsUnspecifiedFields(t *testing.T) {
	s := New()
	s.OpenFolderDialog(ForUpdate(models.Folder{ID: "d1", Name: "Docs", Note: "team"}))

	name := "Documents"
	st, ok := s.MergeFolderDialog(FolderDraftPatch{Name: &name})
	require.True(t, ok)
	assert.Equal(t, "Documents", st.Draft.Name)
	assert.Equal(t, "team", st.Draft.Note)

	protected := models.AccessProtected
	pass := "longpass1"
	st, _ = s.MergeFolderDialog(FolderDraftPatch{Accessibility: &protected, Password: &pass})
	assert.Equal(t, "Documents", st.Draft.Name)
	assert.Equal(t, models.AccessProtected, st.Draft.Accessibility)
	assert.Equal(t, "longpass1", st.Draft.Password)
}

func TestFolderDialog_MergeWhenClosed(t *testing.T) {
	s := New()
	name := "x"
	_, ok := s.MergeFolderDialog(FolderDraftPatch{Name: &name})
	assert.False(t, ok)

	s.OpenFolderDialog(ForCreate(""))
	s.CloseFolderDialog()
	assert.False(t, s.FolderDialog().Open)
}

func TestMoveDialog_SnapshotsSelection(t *testing.T) {
	s := New()
	s.ToggleFile("f1", true)
	s.ToggleFile("f2", true)
	s.ToggleFolder("d1", true)

	st := s.OpenMoveDialog()
	assert.Equal(t, []string{"f1", "f2"}, st.FileIDs)
	assert.Equal(t, []string{"d1"}, st.FolderIDs)

	s.ToggleFile("f3", true)
	assert.Equal(t, []string{"f1", "f2"}, s.MoveDialog().FileIDs)

	s.SetCurrentFolder("elsewhere")
	assert.Equal(t, models.RootFolderID, s.MoveDialog().SourceFolderID)
	assert.Equal(t, []string{"f1", "f2"}, s.MoveDialog().FileIDs)

	s.CloseMoveDialog()
	assert.False(t, s.MoveDialog().Open)
}

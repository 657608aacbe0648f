package mutation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

type call struct {
	op   string
	id   string
	file protocol.UpdateFileRequest
	dir  protocol.UpdateFolderRequest
}

type fakeAPI struct {
	calls   []call
	created []protocol.CreateFolderRequest
	failIDs map[string]bool
}

func (f *fakeAPI) fail(id string) error {
	if f.failIDs[id] {
		return errors.New("server error on " + id)
	}
	return nil
}

func (f *fakeAPI) CreateFolder(ctx context.Context, req protocol.CreateFolderRequest) (*models.Folder, error) {
	f.calls = append(f.calls, call{op: "create_folder"})
	f.created = append(f.created, req)
	return &models.Folder{ID: "new", Name: req.Name, Accessibility: req.Accessibility, ParentID: req.ParentID}, nil
}

func (f *fakeAPI) UpdateFolder(ctx context.Context, id string, req protocol.UpdateFolderRequest) (*models.Folder, error) {
	f.calls = append(f.calls, call{op: "update_folder", id: id, dir: req})
	if err := f.fail(id); err != nil {
		return nil, err
	}
	return &models.Folder{ID: id}, nil
}

func (f *fakeAPI) DeleteFolder(ctx context.Context, id string) error {
	f.calls = append(f.calls, call{op: "delete_folder", id: id})
	return f.fail(id)
}

func (f *fakeAPI) UploadFiles(ctx context.Context, req protocol.UploadRequest) ([]models.File, error) {
	f.calls = append(f.calls, call{op: "upload", id: req.FolderID})
	return []models.File{{ID: "u1", FolderID: req.FolderID}}, nil
}

func (f *fakeAPI) UpdateFile(ctx context.Context, id string, req protocol.UpdateFileRequest) (*models.File, error) {
	f.calls = append(f.calls, call{op: "update_file", id: id, file: req})
	if err := f.fail(id); err != nil {
		return nil, err
	}
	return &models.File{ID: id}, nil
}

func (f *fakeAPI) DeleteFile(ctx context.Context, id string) error {
	f.calls = append(f.calls, call{op: "delete_file", id: id})
	return f.fail(id)
}

func (f *fakeAPI) Share(ctx context.Context, kind models.EntityKind, id string, req protocol.ShareRequest) error {
	f.calls = append(f.calls, call{op: "share", id: id})
	return f.fail(id)
}

func (f *fakeAPI) UpdateShare(ctx context.Context, kind models.EntityKind, id, principalID string, perm models.Permission) error {
	f.calls = append(f.calls, call{op: "update_share", id: id})
	return nil
}

func (f *fakeAPI) Unshare(ctx context.Context, kind models.EntityKind, id, principalID string) error {
	f.calls = append(f.calls, call{op: "unshare", id: id})
	return nil
}

func (f *fakeAPI) ShareRole(ctx context.Context, kind models.EntityKind, id string, req protocol.ShareRoleRequest) error {
	f.calls = append(f.calls, call{op: "share_role", id: id})
	return nil
}

func (f *fakeAPI) UpdateShareRole(ctx context.Context, kind models.EntityKind, id, roleID string, perm models.Permission) error {
	f.calls = append(f.calls, call{op: "update_share_role", id: id})
	return nil
}

func (f *fakeAPI) UnshareRole(ctx context.Context, kind models.EntityKind, id, roleID string) error {
	f.calls = append(f.calls, call{op: "unshare_role", id: id})
	return nil
}

type fakeBrowse struct {
	invalidated []string
}

func (b *fakeBrowse) InvalidateFolder(id string) int {
	b.invalidated = append(b.invalidated, id)
	return 1
}

type fakeSharing struct {
	invalidated []string
}

func (s *fakeSharing) Invalidate(kind models.EntityKind, id string) {
	s.invalidated = append(s.invalidated, string(kind)+":"+id)
}

func newTestMutator() (*Mutator, *fakeAPI, *fakeBrowse, *fakeSharing) {
	api := &fakeAPI{failIDs: map[string]bool{}}
	b := &fakeBrowse{}
	s := &fakeSharing{}
	return New(api, b, s), api, b, s
}

func TestCreateFolder_ProtectedPasswordLength(t *testing.T) {
	m, api, b, _ := newTestMutator()
	ctx := context.Background()

	folder, err := m.CreateFolder(ctx, CreateFolderInput{
		Name:           "Secrets",
		Accessibility:  models.AccessProtected,
		AccessPassword: "longpass1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Secrets", folder.Name)
	require.Len(t, api.created, 1)
	assert.Equal(t, "longpass1", api.created[0].AccessPassword)
	assert.Equal(t, []string{models.RootFolderID}, b.invalidated)

	_, err = m.CreateFolder(ctx, CreateFolderInput{
		Name:           "X",
		Accessibility:  models.AccessProtected,
		AccessPassword: "short",
	})
	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, ve.Fields, "accessPassword")
	assert.Len(t, api.calls, 1, "no request for invalid input")
}

func TestCreateFolder_ProtectedNeedsPassword(t *testing.T) {
	m, api, _, _ := newTestMutator()

	_, err := m.CreateFolder(context.Background(), CreateFolderInput{Name: "X", Accessibility: models.AccessProtected})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "is required for a protected folder", ve.Fields["accessPassword"])
	assert.Empty(t, api.calls)
}

func TestCreateFolder_NameRequired(t *testing.T) {
	m, api, _, _ := newTestMutator()

	_, err := m.CreateFolder(context.Background(), CreateFolderInput{Name: "   "})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "is required", ve.Fields["name"])
	assert.Empty(t, api.calls)
}

func TestCreateFolder_PublicDropsPassword(t *testing.T) {
	m, api, _, _ := newTestMutator()

	_, err := m.CreateFolder(context.Background(), CreateFolderInput{Name: "Open", ParentID: "X", AccessPassword: "longpass1"})
	require.NoError(t, err)
	assert.Equal(t, models.AccessPublic, api.created[0].Accessibility)
	assert.Empty(t, api.created[0].AccessPassword)
}

func TestUpdateFolder_PasswordOptional(t *testing.T) {
	m, api, b, _ := newTestMutator()
	ctx := context.Background()

	name := "Renamed"
	_, err := m.UpdateFolder(ctx, UpdateFolderInput{ID: "d1", ParentID: "X", Name: &name})
	require.NoError(t, err)
	assert.Nil(t, api.calls[0].dir.AccessPassword)
	assert.ElementsMatch(t, []string{"X", "d1"}, b.invalidated)

	short := "abc"
	_, err = m.UpdateFolder(ctx, UpdateFolderInput{ID: "d1", AccessPassword: &short})
	_, ok := AsValidationError(err)
	assert.True(t, ok)
	assert.Len(t, api.calls, 1)
}

func TestUpdateFolder_ProtectingNeedsPassword(t *testing.T) {
	m, api, _, _ := newTestMutator()
	ctx := context.Background()
	protected := models.AccessProtected

	_, err := m.UpdateFolder(ctx, UpdateFolderInput{ID: "d1", Accessibility: &protected, Current: models.AccessPublic})
	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, "is required for a protected folder", ve.Fields["accessPassword"])
	assert.Empty(t, api.calls)

	// Already protected: the stored password is kept.
	_, err = m.UpdateFolder(ctx, UpdateFolderInput{ID: "d1", Accessibility: &protected, Current: models.AccessProtected})
	require.NoError(t, err)

	password := "longpass1"
	_, err = m.UpdateFolder(ctx, UpdateFolderInput{ID: "d1", Accessibility: &protected, AccessPassword: &password})
	require.NoError(t, err)
	assert.Len(t, api.calls, 2)
}

func TestDeleteFile_InvalidatesOnlyItsFolder(t *testing.T) {
	m, _, b, s := newTestMutator()

	require.NoError(t, m.DeleteFile(context.Background(), ItemRef{ID: "a", FolderID: "X"}))
	assert.Equal(t, []string{"X"}, b.invalidated)
	assert.Equal(t, []string{"file:a"}, s.invalidated)
}

func TestDeleteFile_FailureDoesNotInvalidate(t *testing.T) {
	m, api, b, _ := newTestMutator()
	api.failIDs["a"] = true

	require.Error(t, m.DeleteFile(context.Background(), ItemRef{ID: "a", FolderID: "X"}))
	assert.Empty(t, b.invalidated)
}

func TestDeleteMany_PartialFailure(t *testing.T) {
	m, api, b, _ := newTestMutator()
	api.failIDs["f2"] = true

	out, err := m.DeleteMany(context.Background(),
		[]ItemRef{{ID: "f1", FolderID: "X"}, {ID: "f2", FolderID: "X"}, {ID: "f3", FolderID: "X"}}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartialFailure))
	var be *BulkError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "delete", be.Op)

	var ids []string
	for _, c := range api.calls {
		ids = append(ids, c.id)
	}
	assert.Equal(t, []string{"f1", "f2", "f3"}, ids, "every item attempted in order")
	assert.Len(t, out.Succeeded, 2)
	assert.Equal(t, []string{"f2"}, out.FailedIDs())
	assert.Contains(t, b.invalidated, "X")
}

func TestDeleteMany_FilesBeforeFolders(t *testing.T) {
	m, api, _, _ := newTestMutator()

	_, err := m.DeleteMany(context.Background(),
		[]ItemRef{{ID: "a", FolderID: "X"}}, []ItemRef{{ID: "d1", FolderID: "X"}})
	require.NoError(t, err)

	require.Len(t, api.calls, 2)
	assert.Equal(t, "delete_file", api.calls[0].op)
	assert.Equal(t, "delete_folder", api.calls[1].op)
}

func TestMove_PatchesFilesThenFolders(t *testing.T) {
	m, api, b, _ := newTestMutator()

	out, err := m.Move(context.Background(), MoveInput{
		Files:          []ItemRef{{ID: "f1", FolderID: "X"}, {ID: "f2", FolderID: "X"}},
		Folders:        []ItemRef{{ID: "d1", FolderID: "X"}},
		TargetFolderID: "d9",
	})
	require.NoError(t, err)
	assert.True(t, out.OK())

	require.Len(t, api.calls, 3)
	for _, c := range api.calls[:2] {
		assert.Equal(t, "update_file", c.op)
		require.NotNil(t, c.file.TargetFolderID)
		assert.Equal(t, "d9", *c.file.TargetFolderID)
		assert.Nil(t, c.file.Name)
	}
	assert.Equal(t, "update_folder", api.calls[2].op)
	assert.Equal(t, "d1", api.calls[2].id)
	require.NotNil(t, api.calls[2].dir.ParentID)
	assert.Equal(t, "d9", *api.calls[2].dir.ParentID)

	assert.ElementsMatch(t, []string{"X", "d9"}, b.invalidated)
}

func TestMove_PartialFailureStillInvalidates(t *testing.T) {
	m, api, b, _ := newTestMutator()
	api.failIDs["d1"] = true

	out, err := m.Move(context.Background(), MoveInput{
		Files:          []ItemRef{{ID: "f1", FolderID: "X"}},
		Folders:        []ItemRef{{ID: "d1", FolderID: "X"}},
		TargetFolderID: "d9",
	})
	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.Len(t, out.Succeeded, 1)
	assert.ElementsMatch(t, []string{"X", "d9"}, b.invalidated)
	assert.True(t, strings.Contains(err.Error(), "1 of 2"))
}

func TestMove_EmptySelection(t *testing.T) {
	m, api, _, _ := newTestMutator()
	_, err := m.Move(context.Background(), MoveInput{TargetFolderID: "d9"})
	_, ok := AsValidationError(err)
	assert.True(t, ok)
	assert.Empty(t, api.calls)
}

func TestShare_InvalidatesGrantsAndListing(t *testing.T) {
	m, api, b, s := newTestMutator()
	target := Target{Kind: models.KindFolder, ID: "d1", FolderID: "X"}

	require.NoError(t, m.ShareWithUser(context.Background(), target, "u1", models.PermWrite))
	assert.Equal(t, []string{"folder:d1"}, s.invalidated)
	assert.Equal(t, []string{"X"}, b.invalidated)

	require.NoError(t, m.UnshareRole(context.Background(), target, "r1"))
	assert.Equal(t, "unshare_role", api.calls[len(api.calls)-1].op)
}

func TestShare_Validation(t *testing.T) {
	m, api, _, _ := newTestMutator()

	err := m.ShareWithUser(context.Background(), Target{Kind: models.KindFile, ID: "a"}, "u1", "owner")
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "permission")

	err = m.ShareWithRole(context.Background(), Target{Kind: models.KindFile}, "", models.PermRead)
	ve, ok = AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "id")
	assert.Contains(t, ve.Fields, "granteeId")
	assert.Empty(t, api.calls)
}

func TestUploadFiles_RequiresFiles(t *testing.T) {
	m, api, b, _ := newTestMutator()

	_, err := m.UploadFiles(context.Background(), UploadInput{FolderID: "X"})
	_, ok := AsValidationError(err)
	assert.True(t, ok)

	files, err := m.UploadFiles(context.Background(), UploadInput{
		FolderID: "X",
		Files:    []protocol.UploadFile{{Name: "a.txt", Content: strings.NewReader("a")}},
	})
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Len(t, api.calls, 1)
	assert.Equal(t, []string{"X"}, b.invalidated)
}

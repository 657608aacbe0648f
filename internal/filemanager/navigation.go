package filemanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/access"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/browse"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/capability"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/notify"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/client"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

// Open enters a folder. A protected folder without a cached password opens the challenge
// instead; navigation resumes from SubmitPassword.
func (s *Session) Open(ctx context.Context, folder models.Folder) error {
	if err := s.require("open folders", capability.FoldersRead); err != nil {
		return err
	}

	target := folder.ID
	granted := s.access.CheckAccess(target, folder.Accessibility, func() {
		s.store.SetCurrentFolder(target)
	})
	if !granted {
		notify.Info(s.notifier, "%q is protected, enter its password", folder.Name)
		return ErrPasswordNeeded
	}
	return s.enter(ctx, target)
}

// OpenRoot enters the root folder.
func (s *Session) OpenRoot(ctx context.Context) error {
	if err := s.require("open folders", capability.FoldersRead); err != nil {
		return err
	}
	return s.enter(ctx, models.RootFolderID)
}

// OpenByID enters a folder known only by id. Its accessibility is looked up in the current
// listing first, then in the full folder list.
func (s *Session) OpenByID(ctx context.Context, folderID string) error {
	if folderID == models.RootFolderID {
		return s.OpenRoot(ctx)
	}
	folder, err := s.lookupFolder(ctx, folderID)
	if err != nil {
		return s.fail("Failed to open folder", err)
	}
	return s.Open(ctx, folder)
}

// Up enters the parent of the current folder.
func (s *Session) Up(ctx context.Context) error {
	current := s.store.CurrentFolder()
	if current == models.RootFolderID {
		return nil
	}

	parent := models.RootFolderID
	if crumbs := s.Breadcrumbs(); len(crumbs) >= 2 {
		parent = crumbs[len(crumbs)-2].ID
	} else if len(crumbs) == 0 {
		folder, err := s.lookupFolder(ctx, current)
		if err != nil {
			return s.fail("Failed to find parent folder", err)
		}
		parent = folder.ParentID
	}
	return s.OpenByID(ctx, parent)
}

// Refresh drops the cached listing of the current folder and loads page 1 again.
func (s *Session) Refresh(ctx context.Context) error {
	folderID := s.store.CurrentFolder()
	listing, err := s.browse.Refetch(ctx, folderID, s.Filters())
	if err != nil {
		return s.browseFailed(folderID, err)
	}
	s.setListing(folderID, listing)
	return nil
}

// LoadMore appends the next page of the current listing. It does nothing when every page is
// loaded or another load is in flight.
func (s *Session) LoadMore(ctx context.Context) error {
	folderID := s.store.CurrentFolder()
	listing, err := s.browse.FetchNextPage(ctx, folderID, s.Filters())
	if err != nil {
		return s.browseFailed(folderID, err)
	}
	s.setListing(folderID, listing)
	return nil
}

// SetFilters changes the listing filters and reloads the current folder. The selection is
// cleared since the visible items change.
func (s *Session) SetFilters(ctx context.Context, f browse.Filters) error {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	s.store.ClearSelection()
	return s.load(ctx, s.store.CurrentFolder())
}

// SubmitPassword answers the open challenge and resumes navigation into its folder. With
// password pre-checking enabled a rejected password keeps the challenge open as a retry.
func (s *Session) SubmitPassword(ctx context.Context, password string) error {
	dlg := s.access.Dialog()
	if !dlg.Open {
		return access.ErrNoChallenge
	}
	if password == "" {
		return access.ErrEmptyPassword
	}

	if s.precheck {
		ok, err := s.api.CheckFolderPassword(ctx, dlg.FolderID, password)
		if err != nil {
			return s.fail("Failed to verify password", err)
		}
		if !ok {
			s.access.FlagWrongPassword(dlg.FolderID)
			notify.Error(s.notifier, "Incorrect password")
			return fmt.Errorf("%w: incorrect password", ErrPasswordNeeded)
		}
	}

	if err := s.access.SubmitPassword(password); err != nil {
		return err
	}
	// A retry challenge carries no resume callback.
	if s.store.CurrentFolder() != dlg.FolderID {
		s.store.SetCurrentFolder(dlg.FolderID)
	}
	return s.load(ctx, dlg.FolderID)
}

// ClosePasswordDialog dismisses the challenge unless it guards the folder being viewed.
func (s *Session) ClosePasswordDialog() error {
	if !s.access.Closable(s.store.CurrentFolder()) {
		return ErrDialogPinned
	}
	s.access.CloseDialog()
	return nil
}

// enter commits navigation to folderID and loads it. A challenge left open for another folder
// is abandoned.
func (s *Session) enter(ctx context.Context, folderID string) error {
	if dlg := s.access.Dialog(); dlg.Open && dlg.FolderID != folderID {
		s.access.CloseDialog()
	}
	s.store.SetCurrentFolder(folderID)
	return s.load(ctx, folderID)
}

func (s *Session) load(ctx context.Context, folderID string) error {
	listing, err := s.browse.Fetch(ctx, folderID, s.Filters())
	if err != nil {
		return s.browseFailed(folderID, err)
	}
	s.setListing(folderID, listing)
	s.loadBreadcrumbs(ctx, folderID)
	return nil
}

// setListing publishes listing unless the user navigated elsewhere meanwhile.
func (s *Session) setListing(folderID string, listing *browse.Listing) {
	if s.store.CurrentFolder() != folderID {
		return
	}
	s.mu.Lock()
	s.listing = listing
	s.mu.Unlock()
}

func (s *Session) loadBreadcrumbs(ctx context.Context, folderID string) {
	if folderID == models.RootFolderID {
		return
	}
	password, _ := s.access.Password(folderID)
	crumbs, err := s.api.Breadcrumbs(ctx, folderID, password)
	if err != nil {
		if client.IsInvalidPassword(err) {
			s.access.ResetPassword(folderID)
		}
		logging.Warn("breadcrumbs unavailable", logging.String("folder_id", folderID), logging.Err(err))
		return
	}
	if s.store.CurrentFolder() != folderID {
		return
	}
	s.mu.Lock()
	s.crumbs = crumbs
	s.mu.Unlock()
}

// browseFailed routes the password 403s to the challenge and everything else to a toast.
func (s *Session) browseFailed(folderID string, err error) error {
	switch {
	case errors.Is(err, browse.ErrChallengePending):
		return fmt.Errorf("%w: %v", ErrPasswordNeeded, err)
	case client.IsPasswordRequired(err):
		s.access.RequestPassword(folderID)
		notify.Info(s.notifier, "This folder is protected, enter its password")
		return fmt.Errorf("%w: %v", ErrPasswordNeeded, err)
	case client.IsInvalidPassword(err):
		s.access.FlagWrongPassword(folderID)
		notify.Error(s.notifier, "Incorrect password")
		return fmt.Errorf("%w: %v", ErrPasswordNeeded, err)
	}
	return s.fail("Failed to load folder", err)
}

func (s *Session) lookupFolder(ctx context.Context, folderID string) (models.Folder, error) {
	if listing := s.Listing(); listing != nil {
		for _, f := range listing.Folders() {
			if f.ID == folderID {
				return f, nil
			}
		}
	}
	folders, err := s.api.ListFolders(ctx)
	if err != nil {
		return models.Folder{}, err
	}
	for _, f := range folders {
		if f.ID == folderID {
			return f, nil
		}
	}
	return models.Folder{}, fmt.Errorf("folder %s not found", folderID)
}

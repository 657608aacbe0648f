// Package access tracks per-folder passwords and the single password challenge shown to the user.
//
// Passwords live only in memory for the lifetime of the Controller. A folder moves through
// unverified, challenged and pending-verification; the next browse request for the folder carries
// the cached password and decides between verified and a retry challenge.
package access

import (
	"errors"
	"sync"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

var (
	// ErrNoChallenge is returned when a password is submitted while no challenge is open.
	ErrNoChallenge = errors.New("no password challenge is open")
	// ErrEmptyPassword is returned for a blank submission.
	ErrEmptyPassword = errors.New("password is empty")
)

// Dialog is a snapshot of the password challenge. Only one can be open at a time.
type Dialog struct {
	Open     bool
	FolderID string
	IsRetry  bool
}

// Controller is the folder access controller. It is safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	passwords map[string]string
	dialog    Dialog
	onGranted func()
}

// New creates a controller with an empty password cache.
func New() *Controller {
	return &Controller{passwords: make(map[string]string)}
}

// CheckAccess reports whether the folder can be entered now. Public folders and folders with a
// cached password pass. Otherwise a challenge is opened with onGranted as the resume callback and
// false is returned; the caller must not navigate.
func (c *Controller) CheckAccess(folderID string, acc models.Accessibility, onGranted func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if acc != models.AccessProtected {
		return true
	}
	if _, ok := c.passwords[folderID]; ok {
		return true
	}
	c.openLocked(folderID, false, onGranted)
	return false
}

// RequestPassword opens a first-time challenge for a folder without a resume callback. Used when
// the server asks for a password the listing did not announce.
func (c *Controller) RequestPassword(folderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openLocked(folderID, false, nil)
}

// SubmitPassword caches password for the challenged folder, closes the challenge and runs its
// resume callback. The password is not verified here; the next browse request does that.
func (c *Controller) SubmitPassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	c.mu.Lock()
	if !c.dialog.Open {
		c.mu.Unlock()
		return ErrNoChallenge
	}
	folderID := c.dialog.FolderID
	c.passwords[folderID] = password
	onGranted := c.onGranted
	c.dialog = Dialog{}
	c.onGranted = nil
	c.mu.Unlock()

	logging.Debug("folder password submitted", logging.String("folder_id", folderID))
	if onGranted != nil {
		onGranted()
	}
	return nil
}

// FlagWrongPassword reopens the challenge for folderID as a retry. The rejected password stays
// cached until the user overwrites it.
func (c *Controller) FlagWrongPassword(folderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openLocked(folderID, true, nil)
}

// CloseDialog dismisses the challenge. Cached passwords are kept and the callback is dropped.
func (c *Controller) CloseDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialog = Dialog{}
	c.onGranted = nil
}

// ResetPassword evicts the cached password of a folder.
func (c *Controller) ResetPassword(folderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.passwords, folderID)
}

// Password returns the cached password of a folder.
func (c *Controller) Password(folderID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.passwords[folderID]
	return p, ok
}

// Challenging reports whether a challenge for folderID is open.
func (c *Controller) Challenging(folderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog.Open && c.dialog.FolderID == folderID
}

// Dialog returns the current challenge state.
func (c *Controller) Dialog() Dialog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog
}

// Closable reports whether the challenge may be dismissed while viewing currentFolderID.
// A challenge for the folder being viewed cannot be closed.
func (c *Controller) Closable(currentFolderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dialog.Open || c.dialog.FolderID != currentFolderID
}

func (c *Controller) openLocked(folderID string, retry bool, onGranted func()) {
	c.dialog = Dialog{Open: true, FolderID: folderID, IsRetry: retry}
	c.onGranted = onGranted
	metrics.RecordPasswordChallenge(retry)
	logging.Debug("password challenge opened",
		logging.String("folder_id", folderID),
		logging.Bool("retry", retry),
	)
}

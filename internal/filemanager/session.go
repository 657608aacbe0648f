// Package filemanager ties the file manager layers into one interactive session.
//
// A Session owns the folder access controller, the browse cache, the selection store and the
// mutation layer for the lifetime of the process. Its methods are the boundary the shell calls:
// every failure is published as a toast and also returned.
package filemanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/access"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/browse"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/capability"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/download"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/mutation"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/notify"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/sharing"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/store"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/view"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/client"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

var (
	// ErrPasswordNeeded is returned when navigation stopped at a password challenge.
	ErrPasswordNeeded = errors.New("folder password needed")
	// ErrDialogPinned is returned when closing the challenge of the folder being viewed.
	ErrDialogPinned = errors.New("password dialog cannot be closed while its folder is open")
	// ErrNotPermitted is returned when the policy denies an action.
	ErrNotPermitted = errors.New("not permitted")
)

// API is everything the session needs from the backend. *client.Client implements it.
type API interface {
	browse.Fetcher
	sharing.Lister
	mutation.API
	download.Source

	Breadcrumbs(ctx context.Context, folderID, password string) ([]models.Breadcrumb, error)
	ListFolders(ctx context.Context) ([]models.Folder, error)
	CheckFolderPassword(ctx context.Context, folderID, password string) (bool, error)
}

// Options configures a session. Zero values get defaults.
type Options struct {
	Policy   capability.Policy
	Notifier notify.Notifier
	Sink     download.Sink
	Browse   browse.Config

	// SharingTTL bounds how long grant tables are served from cache. Defaults to the browse
	// stale time.
	SharingTTL time.Duration

	// PrecheckPasswords verifies a submitted password with the server before browsing.
	PrecheckPasswords bool
}

// Session is one file manager session. It is safe for concurrent use.
type Session struct {
	api       API
	access    *access.Controller
	browse    *browse.Layer
	store     *store.Store
	mutator   *mutation.Mutator
	sharing   *sharing.Cache
	downloads *download.Downloader
	policy    capability.Policy
	notifier  notify.Notifier
	precheck  bool

	mu      sync.Mutex
	filters browse.Filters
	listing *browse.Listing
	crumbs  []models.Breadcrumb
}

// New creates a session positioned at the root folder. Nothing is fetched until the first
// navigation.
func New(api API, opts Options) *Session {
	if opts.Policy == nil {
		opts.Policy = capability.AllowAll{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewBroadcaster()
	}
	if opts.Sink == nil {
		opts.Sink = download.LocalSink{Dir: "."}
	}
	if opts.Browse.StaleTime <= 0 {
		opts.Browse.StaleTime = browse.DefaultConfig().StaleTime
	}
	if opts.SharingTTL <= 0 {
		opts.SharingTTL = opts.Browse.StaleTime
	}

	ctrl := access.New()
	layer := browse.New(api, ctrl, opts.Browse)
	grants := sharing.New(api, opts.SharingTTL)

	s := &Session{
		api:       api,
		access:    ctrl,
		browse:    layer,
		store:     store.New(),
		mutator:   mutation.New(api, layer, grants),
		sharing:   grants,
		downloads: download.New(api, opts.Sink),
		policy:    opts.Policy,
		notifier:  opts.Notifier,
		precheck:  opts.PrecheckPasswords,
	}
	s.store.OnFolderChange(func(from, to string) {
		s.mu.Lock()
		s.listing = nil
		s.crumbs = nil
		s.mu.Unlock()
		logging.Debug("folder changed", logging.String("from", from), logging.String("to", to))
	})
	return s
}

// Store returns the selection and navigation store.
func (s *Session) Store() *store.Store {
	return s.store
}

// CurrentFolder returns the id of the folder being viewed.
func (s *Session) CurrentFolder() string {
	return s.store.CurrentFolder()
}

// Listing returns the accumulated listing of the current folder, or nil before it loaded.
func (s *Session) Listing() *browse.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listing
}

// Breadcrumbs returns the ancestor chain of the current folder.
func (s *Session) Breadcrumbs() []models.Breadcrumb {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Breadcrumb(nil), s.crumbs...)
}

// Filters returns the active listing filters.
func (s *Session) Filters() browse.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// PasswordDialog returns the password challenge.
func (s *Session) PasswordDialog() access.Dialog {
	return s.access.Dialog()
}

// PasswordDialogClosable reports whether the challenge may be dismissed now.
func (s *Session) PasswordDialogClosable() bool {
	return s.access.Closable(s.store.CurrentFolder())
}

// Actions returns the action bar for the current selection.
func (s *Session) Actions() []view.Action {
	return view.Actions(s.policy, s.store.Selection())
}

// CacheStats returns the browse cache counters.
func (s *Session) CacheStats() browse.Stats {
	return s.browse.Stats()
}

// require checks the policy and publishes a toast on denial.
func (s *Session) require(action string, caps ...capability.Capability) error {
	if s.policy.HasCapabilities(capability.NewSet(caps...)) {
		return nil
	}
	notify.Error(s.notifier, "You are not allowed to %s", action)
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, string(c))
	}
	return fmt.Errorf("%s: %w (needs %s)", action, ErrNotPermitted, strings.Join(names, ", "))
}

// fail publishes err as an error toast prefixed with summary and returns it.
func (s *Session) fail(summary string, err error) error {
	msg := summary
	if ae, ok := client.AsAPIError(err); ok && ae.Message != "" {
		msg = summary + ": " + ae.Message
	} else if ve, ok := mutation.AsValidationError(err); ok {
		msg = summary + ": " + ve.Error()
	}
	notify.Error(s.notifier, "%s", msg)
	logging.Warn(summary, logging.Err(err))
	return err
}

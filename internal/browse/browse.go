// Package browse implements the paginated, filtered folder listing with its infinite-list cache.
//
// Pages of one listing accumulate under a single Key (parent folder, filters and page size; the
// page number is not part of it). Entries stay fresh for StaleTime, are bounded by an LRU, and are
// dropped by folder whenever a mutation touching that folder succeeds.
package browse

import (
	"container/list"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

// ErrChallengePending is returned instead of fetching while a password challenge for the folder
// is open.
var ErrChallengePending = errors.New("password challenge pending for folder")

// Fetcher issues one browse request.
type Fetcher interface {
	Browse(ctx context.Context, q protocol.BrowseQuery, password string) (*models.BrowseResult, error)
}

// Credentials exposes the folder password cache and the open challenge.
type Credentials interface {
	Password(folderID string) (string, bool)
	Challenging(folderID string) bool
}

// Filters narrows a listing.
type Filters struct {
	Search    string
	ItemType  protocol.ItemType
	FileTypes []string
	StartDate time.Time
	EndDate   time.Time
	SortBy    string
	SortOrder protocol.SortOrder
}

// Key identifies one infinite list.
type Key struct {
	ParentID  string
	Search    string
	ItemType  protocol.ItemType
	FileTypes string
	StartDate string
	EndDate   string
	SortBy    string
	SortOrder protocol.SortOrder
	Size      int
}

// NewKey normalizes filters into a cache key. File type order does not matter.
func NewKey(parentID string, f Filters, size int) Key {
	types := append([]string(nil), f.FileTypes...)
	sort.Strings(types)

	k := Key{
		ParentID:  parentID,
		Search:    strings.TrimSpace(f.Search),
		ItemType:  f.ItemType,
		FileTypes: strings.Join(types, ","),
		SortBy:    f.SortBy,
		SortOrder: f.SortOrder,
		Size:      size,
	}
	if k.ItemType == protocol.ItemsAll {
		k.ItemType = ""
	}
	if !f.StartDate.IsZero() {
		k.StartDate = f.StartDate.Format(protocol.DateLayout)
	}
	if !f.EndDate.IsZero() {
		k.EndDate = f.EndDate.Format(protocol.DateLayout)
	}
	return k
}

// Config holds browse layer configuration.
type Config struct {
	PageSize   int
	StaleTime  time.Duration
	MaxEntries int
}

// DefaultConfig returns the browse defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:   20,
		StaleTime:  30 * time.Second,
		MaxEntries: 256,
	}
}

// Listing is a snapshot of the pages accumulated for one key.
type Listing struct {
	Key       Key
	Pages     []models.BrowseResult
	FetchedAt time.Time
}

// Folders returns the folders of every loaded page in order.
func (l *Listing) Folders() []models.Folder {
	var out []models.Folder
	for _, p := range l.Pages {
		out = append(out, p.Folders...)
	}
	return out
}

// Files returns the files of every loaded page in order.
func (l *Listing) Files() []models.File {
	var out []models.File
	for _, p := range l.Pages {
		out = append(out, p.Files...)
	}
	return out
}

// Last returns the pagination of the newest page.
func (l *Listing) Last() models.Pagination {
	if len(l.Pages) == 0 {
		return models.Pagination{}
	}
	return l.Pages[len(l.Pages)-1].Pagination
}

// HasMore reports whether the server has further pages.
func (l *Listing) HasMore() bool {
	p := l.Last()
	return p.HasMore || (p.TotalPages > 0 && p.Page < p.TotalPages)
}

// NextPage returns the 1-based number of the page a load-more would request.
func (l *Listing) NextPage() int {
	return l.Last().Page + 1
}

type entry struct {
	key       Key
	pages     []models.BrowseResult
	fetchedAt time.Time
	elem      *list.Element

	// held while a next page is being fetched
	loading sync.Mutex
}

func (e *entry) snapshot() *Listing {
	return &Listing{
		Key:       e.key,
		Pages:     append([]models.BrowseResult(nil), e.pages...),
		FetchedAt: e.fetchedAt,
	}
}

// Stats reports cache counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// Layer is the browse query layer. It is safe for concurrent use.
type Layer struct {
	fetcher Fetcher
	creds   Credentials
	cfg     Config
	now     func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry
	lru     *list.List
	// bumped on invalidation so in-flight fetches do not repopulate dropped entries
	gen    map[string]uint64
	epoch  uint64
	hits   uint64
	misses uint64
}

// New creates a browse layer.
func New(fetcher Fetcher, creds Credentials, cfg Config) *Layer {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.StaleTime <= 0 {
		cfg.StaleTime = def.StaleTime
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &Layer{
		fetcher: fetcher,
		creds:   creds,
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[Key]*entry),
		lru:     list.New(),
		gen:     make(map[string]uint64),
	}
}

// PageSize returns the page size used for every key.
func (l *Layer) PageSize() int {
	return l.cfg.PageSize
}

// Fetch returns the first page of the listing, served from cache while fresh. A stale or missing
// entry is refetched from page 1 and replaces any accumulated pages.
func (l *Layer) Fetch(ctx context.Context, parentID string, f Filters) (*Listing, error) {
	if l.creds.Challenging(parentID) {
		return nil, ErrChallengePending
	}
	key := NewKey(parentID, f, l.cfg.PageSize)

	l.mu.Lock()
	if e, ok := l.entries[key]; ok && len(e.pages) > 0 && l.now().Sub(e.fetchedAt) < l.cfg.StaleTime {
		l.lru.MoveToFront(e.elem)
		l.hits++
		snap := e.snapshot()
		l.mu.Unlock()
		metrics.RecordBrowseLookup(true)
		return snap, nil
	}
	l.misses++
	gen, epoch := l.gen[parentID], l.epoch
	l.mu.Unlock()
	metrics.RecordBrowseLookup(false)

	page, err := l.fetchPage(ctx, key, f, 1)
	if err != nil {
		return nil, err
	}

	e := &entry{key: key, pages: []models.BrowseResult{*page}, fetchedAt: l.now()}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen[parentID] != gen || l.epoch != epoch {
		logging.Debug("browse result dropped after invalidation", logging.String("folder_id", parentID))
		return e.snapshot(), nil
	}
	l.putLocked(e)
	return e.snapshot(), nil
}

// Refetch drops the listing for key and fetches page 1 again.
func (l *Layer) Refetch(ctx context.Context, parentID string, f Filters) (*Listing, error) {
	key := NewKey(parentID, f, l.cfg.PageSize)
	l.mu.Lock()
	if e, ok := l.entries[key]; ok {
		l.removeLocked(e)
	}
	l.mu.Unlock()
	return l.Fetch(ctx, parentID, f)
}

// FetchNextPage appends the next page to the listing. It is a no-op returning the current
// snapshot when no more pages exist or another load for the same key is in flight.
func (l *Layer) FetchNextPage(ctx context.Context, parentID string, f Filters) (*Listing, error) {
	if l.creds.Challenging(parentID) {
		return nil, ErrChallengePending
	}
	key := NewKey(parentID, f, l.cfg.PageSize)

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok || len(e.pages) == 0 {
		l.mu.Unlock()
		return l.Fetch(ctx, parentID, f)
	}
	snap := e.snapshot()
	l.mu.Unlock()

	if !snap.HasMore() {
		return snap, nil
	}
	if !e.loading.TryLock() {
		logging.Debug("load more skipped, another page is in flight", logging.String("folder_id", parentID))
		return snap, nil
	}
	defer e.loading.Unlock()

	// Another loader may have appended while this one waited for the lock.
	l.mu.Lock()
	snap = e.snapshot()
	l.mu.Unlock()
	if !snap.HasMore() {
		return snap, nil
	}
	next := snap.NextPage()

	page, err := l.fetchPage(ctx, key, f, next)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.entries[key]; !ok || cur != e {
		snap.Pages = append(snap.Pages, *page)
		return snap, nil
	}
	if e.pages[len(e.pages)-1].Pagination.Page == next-1 {
		e.pages = append(e.pages, *page)
		l.lru.MoveToFront(e.elem)
	}
	return e.snapshot(), nil
}

// Peek returns the cached listing regardless of freshness without fetching.
func (l *Layer) Peek(parentID string, f Filters) (*Listing, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[NewKey(parentID, f, l.cfg.PageSize)]
	if !ok {
		return nil, false
	}
	return e.snapshot(), true
}

// InvalidateFolder drops every listing of the folder, whatever its filters, and returns how many
// entries were removed. Listings of other folders are kept.
func (l *Layer) InvalidateFolder(folderID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen[folderID]++
	n := 0
	for key, e := range l.entries {
		if key.ParentID == folderID {
			l.removeLocked(e)
			n++
		}
	}
	metrics.RecordBrowseInvalidation(n)
	logging.Debug("browse cache invalidated",
		logging.String("folder_id", folderID),
		logging.Int("entries", n),
	)
	return n
}

// InvalidateAll drops every listing.
func (l *Layer) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	l.epoch++
	l.entries = make(map[Key]*entry)
	l.lru.Init()
	metrics.RecordBrowseInvalidation(n)
}

// Stats returns cache counters.
func (l *Layer) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Entries: len(l.entries), Hits: l.hits, Misses: l.misses}
}

func (l *Layer) fetchPage(ctx context.Context, key Key, f Filters, page int) (*models.BrowseResult, error) {
	password, _ := l.creds.Password(key.ParentID)
	q := protocol.BrowseQuery{
		ParentID:  key.ParentID,
		Search:    key.Search,
		ItemType:  f.ItemType,
		FileTypes: f.FileTypes,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		SortBy:    f.SortBy,
		SortOrder: f.SortOrder,
		Page:      page,
		Size:      key.Size,
	}

	res, err := l.fetcher.Browse(ctx, q, password)
	if err != nil {
		return nil, err
	}
	metrics.RecordBrowsePage()
	if res.Pagination.Page == 0 {
		res.Pagination.Page = page
	}
	return res, nil
}

func (l *Layer) putLocked(e *entry) {
	if old, ok := l.entries[e.key]; ok {
		l.removeLocked(old)
	}
	for len(l.entries) >= l.cfg.MaxEntries {
		oldest := l.lru.Back()
		if oldest == nil {
			break
		}
		l.removeLocked(oldest.Value.(*entry))
	}
	e.elem = l.lru.PushFront(e)
	l.entries[e.key] = e
}

func (l *Layer) removeLocked(e *entry) {
	if e.elem != nil {
		l.lru.Remove(e.elem)
	}
	delete(l.entries, e.key)
}

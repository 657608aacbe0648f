package browse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
)

type fakeFetcher struct {
	mu         sync.Mutex
	calls      []protocol.BrowseQuery
	passwords  []string
	totalPages int
	err        error

	// when set, page requests matching blockPage wait on release after signalling started
	blockPage int
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeFetcher) Browse(ctx context.Context, q protocol.BrowseQuery, password string) (*models.BrowseResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.passwords = append(f.passwords, password)
	block := f.blockPage != 0 && q.Page == f.blockPage
	err := f.err
	total := f.totalPages
	f.mu.Unlock()

	if block {
		f.started <- struct{}{}
		<-f.release
	}
	if err != nil {
		return nil, err
	}
	if total == 0 {
		total = 1
	}
	return &models.BrowseResult{
		Files: []models.File{{ID: q.ParentID + "-file-p" + string(rune('0'+q.Page))}},
		Pagination: models.Pagination{
			Page:       q.Page,
			Size:       q.Size,
			TotalPages: total,
			HasMore:    q.Page < total,
		},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCreds struct {
	passwords   map[string]string
	challenging string
}

func (c *fakeCreds) Password(id string) (string, bool) {
	p, ok := c.passwords[id]
	return p, ok
}

func (c *fakeCreds) Challenging(id string) bool {
	return c.challenging != "" && c.challenging == id
}

func newTestLayer(f *fakeFetcher, creds *fakeCreds) *Layer {
	if creds == nil {
		creds = &fakeCreds{}
	}
	return New(f, creds, Config{PageSize: 2, StaleTime: time.Minute, MaxEntries: 8})
}

func TestNewKey_IgnoresFileTypeOrder(t *testing.T) {
	a := NewKey("X", Filters{FileTypes: []string{"png", "pdf"}}, 20)
	b := NewKey("X", Filters{FileTypes: []string{"pdf", "png"}, ItemType: protocol.ItemsAll}, 20)
	assert.Equal(t, a, b)

	c := NewKey("X", Filters{FileTypes: []string{"pdf"}}, 20)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, NewKey("X", Filters{FileTypes: []string{"png", "pdf"}}, 50))
}

func TestFetch_ServedFromCacheWhileFresh(t *testing.T) {
	f := &fakeFetcher{}
	l := newTestLayer(f, nil)
	now := time.Now()
	l.now = func() time.Time { return now }

	_, err := l.Fetch(context.Background(), "X", Filters{})
	require.NoError(t, err)
	_, err = l.Fetch(context.Background(), "X", Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.callCount())

	now = now.Add(2 * time.Minute)
	_, err = l.Fetch(context.Background(), "X", Filters{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.callCount())

	stats := l.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestFetch_AttachesCachedPassword(t *testing.T) {
	f := &fakeFetcher{}
	l := newTestLayer(f, &fakeCreds{passwords: map[string]string{"F1": "longpass1"}})

	_, err := l.Fetch(context.Background(), "F1", Filters{})
	require.NoError(t, err)
	_, err = l.Fetch(context.Background(), "F2", Filters{})
	require.NoError(t, err)

	assert.Equal(t, []string{"longpass1", ""}, f.passwords)
	assert.Equal(t, 1, f.calls[0].Page)
	assert.Equal(t, 2, f.calls[0].Size)
}

func TestFetch_BlockedWhileChallengeOpen(t *testing.T) {
	f := &fakeFetcher{}
	l := newTestLayer(f, &fakeCreds{challenging: "F1"})

	_, err := l.Fetch(context.Background(), "F1", Filters{})
	assert.ErrorIs(t, err, ErrChallengePending)
	_, err = l.FetchNextPage(context.Background(), "F1", Filters{})
	assert.ErrorIs(t, err, ErrChallengePending)
	assert.Equal(t, 0, f.callCount())
}

func TestFetch_ErrorNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	l := newTestLayer(f, nil)

	_, err := l.Fetch(context.Background(), "X", Filters{})
	require.Error(t, err)
	assert.Equal(t, 0, l.Stats().Entries)
}

func TestFetchNextPage_Accumulates(t *testing.T) {
	f := &fakeFetcher{totalPages: 3}
	l := newTestLayer(f, nil)

	listing, err := l.Fetch(context.Background(), "X", Filters{})
	require.NoError(t, err)
	assert.True(t, listing.HasMore())
	assert.Equal(t, 2, listing.NextPage())

	listing, err = l.FetchNextPage(context.Background(), "X", Filters{})
	require.NoError(t, err)
	listing, err = l.FetchNextPage(context.Background(), "X", Filters{})
	require.NoError(t, err)
	assert.Len(t, listing.Pages, 3)
	assert.Len(t, listing.Files(), 3)
	assert.False(t, listing.HasMore())

	// No more pages: no request.
	_, err = l.FetchNextPage(context.Background(), "X", Filters{})
	require.NoError(t, err)
	assert.Equal(t, 3, f.callCount())

	// A fresh Fetch serves all accumulated pages.
	listing, err = l.Fetch(context.Background(), "X", Filters{})
	require.NoError(t, err)
	assert.Len(t, listing.Pages, 3)
}

func TestFetchNextPage_DroppedWhileInFlight(t *testing.T) {
	f := &fakeFetcher{
		totalPages: 3,
		blockPage:  2,
		started:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	l := newTestLayer(f, nil)
	_, err := l.Fetch(context.Background(), "X", Filters{})
	require.NoError(t, err)

	done := make(chan *Listing, 1)
	go func() {
		listing, _ := l.FetchNextPage(context.Background(), "X", Filters{})
		done <- listing
	}()
	<-f.started

	listing, err := l.FetchNextPage(context.Background(), "X", Filters{})
	require.NoError(t, err)
	assert.Len(t, listing.Pages, 1, "second load-more returns the current snapshot")
	assert.Equal(t, 2, f.callCount())

	close(f.release)
	first := <-done
	assert.Len(t, first.Pages, 2)
}

func TestInvalidateFolder_Scope(t *testing.T) {
	f := &fakeFetcher{}
	l := newTestLayer(f, nil)
	ctx := context.Background()

	_, _ = l.Fetch(ctx, "X", Filters{})
	_, _ = l.Fetch(ctx, "X", Filters{Search: "report"})
	_, _ = l.Fetch(ctx, "Y", Filters{})

	n := l.InvalidateFolder("X")
	assert.Equal(t, 2, n)

	_, ok := l.Peek("X", Filters{})
	assert.False(t, ok)
	_, ok = l.Peek("X", Filters{Search: "report"})
	assert.False(t, ok)
	_, ok = l.Peek("Y", Filters{})
	assert.True(t, ok)
}

func TestInvalidateFolder_InFlightFetchNotCached(t *testing.T) {
	f := &fakeFetcher{
		blockPage: 1,
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	l := newTestLayer(f, nil)

	done := make(chan *Listing, 1)
	go func() {
		listing, _ := l.Fetch(context.Background(), "X", Filters{})
		done <- listing
	}()
	<-f.started
	l.InvalidateFolder("X")
	close(f.release)

	listing := <-done
	require.NotNil(t, listing)
	assert.Len(t, listing.Pages, 1, "caller still gets the data")
	_, ok := l.Peek("X", Filters{})
	assert.False(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	l := newTestLayer(&fakeFetcher{}, nil)
	_, _ = l.Fetch(context.Background(), "X", Filters{})
	_, _ = l.Fetch(context.Background(), "Y", Filters{})

	l.InvalidateAll()
	assert.Equal(t, 0, l.Stats().Entries)
}

func TestLRUEviction(t *testing.T) {
	f := &fakeFetcher{}
	l := New(f, &fakeCreds{}, Config{PageSize: 2, StaleTime: time.Minute, MaxEntries: 2})
	ctx := context.Background()

	_, _ = l.Fetch(ctx, "A", Filters{})
	_, _ = l.Fetch(ctx, "B", Filters{})
	_, _ = l.Fetch(ctx, "A", Filters{}) // A becomes most recent
	_, _ = l.Fetch(ctx, "C", Filters{})

	_, ok := l.Peek("B", Filters{})
	assert.False(t, ok, "least recently used entry evicted")
	_, ok = l.Peek("A", Filters{})
	assert.True(t, ok)
	_, ok = l.Peek("C", Filters{})
	assert.True(t, ok)
}

func TestRefetch_RestartsAtFirstPage(t *testing.T) {
	f := &fakeFetcher{totalPages: 3}
	l := newTestLayer(f, nil)
	ctx := context.Background()

	_, _ = l.Fetch(ctx, "X", Filters{})
	_, _ = l.FetchNextPage(ctx, "X", Filters{})

	listing, err := l.Refetch(ctx, "X", Filters{})
	require.NoError(t, err)
	assert.Len(t, listing.Pages, 1)
	assert.Equal(t, 1, f.calls[len(f.calls)-1].Page)
}

// Package sharing caches the two grant tables (users and roles) of files and folders.
package sharing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

// Lister reads the grant tables of one entity.
type Lister interface {
	ListShares(ctx context.Context, kind models.EntityKind, id string) ([]models.SharedPrincipal, error)
	ListRoleShares(ctx context.Context, kind models.EntityKind, id string) ([]models.SharedRole, error)
}

// Grants is the sharing detail of one entity.
type Grants struct {
	Users     []models.SharedPrincipal
	Roles     []models.SharedRole
	FetchedAt time.Time
}

type key struct {
	kind models.EntityKind
	id   string
}

// Cache holds sharing details per entity. It is safe for concurrent use.
type Cache struct {
	lister Lister
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[key]Grants
}

// New creates a sharing cache whose entries stay fresh for ttl.
func New(lister Lister, ttl time.Duration) *Cache {
	return &Cache{
		lister:  lister,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[key]Grants),
	}
}

// Grants returns both grant tables of an entity, fetching them when missing or stale.
func (c *Cache) Grants(ctx context.Context, kind models.EntityKind, id string) (Grants, error) {
	k := key{kind: kind, id: id}

	c.mu.Lock()
	g, ok := c.entries[k]
	c.mu.Unlock()
	if ok && c.now().Sub(g.FetchedAt) < c.ttl {
		return g, nil
	}

	users, err := c.lister.ListShares(ctx, kind, id)
	if err != nil {
		return Grants{}, fmt.Errorf("list %s %s shares: %w", kind, id, err)
	}
	roles, err := c.lister.ListRoleShares(ctx, kind, id)
	if err != nil {
		return Grants{}, fmt.Errorf("list %s %s role shares: %w", kind, id, err)
	}

	g = Grants{Users: users, Roles: roles, FetchedAt: c.now()}
	c.mu.Lock()
	c.entries[k] = g
	c.mu.Unlock()
	return g, nil
}

// Invalidate drops the cached grants of one entity.
func (c *Cache) Invalidate(kind models.EntityKind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key{kind: kind, id: id})
	logging.Debug("sharing cache invalidated",
		logging.String("kind", string(kind)),
		logging.String("id", id),
	)
}

package sharing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

type fakeLister struct {
	calls   int
	roleErr error
}

func (f *fakeLister) ListShares(ctx context.Context, kind models.EntityKind, id string) ([]models.SharedPrincipal, error) {
	f.calls++
	return []models.SharedPrincipal{{PrincipalID: "u1", PrincipalType: models.PrincipalTypeUser, Permission: models.PermRead}}, nil
}

func (f *fakeLister) ListRoleShares(ctx context.Context, kind models.EntityKind, id string) ([]models.SharedRole, error) {
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	return []models.SharedRole{{RoleID: "r1", Permission: models.PermAdmin, Name: "Managers"}}, nil
}

func TestGrants_CachedUntilInvalidated(t *testing.T) {
	l := &fakeLister{}
	c := New(l, time.Minute)
	ctx := context.Background()

	g, err := c.Grants(ctx, models.KindFolder, "d1")
	require.NoError(t, err)
	assert.Len(t, g.Users, 1)
	assert.Equal(t, "Managers", g.Roles[0].Name)

	_, _ = c.Grants(ctx, models.KindFolder, "d1")
	assert.Equal(t, 1, l.calls)

	// Same id, other kind: separate entry.
	_, _ = c.Grants(ctx, models.KindFile, "d1")
	assert.Equal(t, 2, l.calls)

	c.Invalidate(models.KindFolder, "d1")
	_, _ = c.Grants(ctx, models.KindFolder, "d1")
	assert.Equal(t, 3, l.calls)
}

func TestGrants_Stale(t *testing.T) {
	l := &fakeLister{}
	c := New(l, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, _ = c.Grants(context.Background(), models.KindFile, "f1")
	now = now.Add(time.Hour)
	_, _ = c.Grants(context.Background(), models.KindFile, "f1")
	assert.Equal(t, 2, l.calls)
}

func TestGrants_ErrorNotCached(t *testing.T) {
	l := &fakeLister{roleErr: errors.New("down")}
	c := New(l, time.Minute)

	_, err := c.Grants(context.Background(), models.KindFile, "f1")
	require.Error(t, err)

	l.roleErr = nil
	_, err = c.Grants(context.Background(), models.KindFile, "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, l.calls)
}

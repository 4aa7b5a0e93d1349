package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestJobLockSingleLeader(t *testing.T) {
	ctx := context.Background()
	client, mr := newClient(t)

	a := NewJobLock(client, "outbox", "replica-a", 10*time.Second)
	b := NewJobLock(client, "outbox", "replica-b", 10*time.Second)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b must not release a's lock
	require.NoError(t, b.Unlock(ctx))
	got, err := mr.Get("fanloyalty:job:outbox:leader")
	require.NoError(t, err)
	assert.Equal(t, "replica-a", got)

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	client, mr := newClient(t)

	a := NewJobLock(client, "reconcile", "replica-a", 10*time.Second)
	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(8 * time.Second)
	require.NoError(t, a.Refresh(ctx))
	mr.FastForward(8 * time.Second)
	assert.True(t, mr.Exists("fanloyalty:job:reconcile:leader"))

	mr.FastForward(3 * time.Second)
	assert.ErrorIs(t, a.Refresh(ctx), ErrLockExpired)
}

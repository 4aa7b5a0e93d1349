package job

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"fanloyalty/internal/infrastructure/lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestLeadershipSingleRunner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	a := &leadership{lock: lock.NewJobLock(client, "outbox", "replica-a", time.Second), logger: slog.Default()}
	b := &leadership{lock: lock.NewJobLock(client, "outbox", "replica-b", time.Second), logger: slog.Default()}

	assert.True(t, a.acquire(ctx))
	assert.False(t, b.acquire(ctx))
	assert.True(t, a.acquire(ctx), "holder refreshes its lease")

	a.release(ctx)
	assert.True(t, b.acquire(ctx))
	assert.False(t, a.acquire(ctx))

	// b stops refreshing; once the lease runs out a takes over
	mr.FastForward(2 * time.Second)
	assert.True(t, a.acquire(ctx))
	assert.False(t, b.acquire(ctx))
	assert.False(t, b.held)
}

func TestLeadershipWithoutLock(t *testing.T) {
	l := &leadership{logger: slog.Default()}
	assert.True(t, l.acquire(context.Background()))
	l.release(context.Background())
}

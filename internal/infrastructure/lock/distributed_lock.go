package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// A lock is SET key owner NX PX ttl. Release and refresh compare the owner
// first so an expired holder cannot touch a lock someone else now holds.
// Used to elect one replica for background jobs, never around balance writes.

var ErrLockExpired = errors.New("lock expired or taken over")

var (
	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts the lock once without blocking.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Refresh extends the lock by its expiration if this owner still holds it.
func (l *DistributedLock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.value, l.expiration.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockExpired
	}
	return nil
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// NewJobLock is the leader lock for one background job; owner identifies the replica.
func NewJobLock(client *redis.Client, job, owner string, ttl time.Duration) *DistributedLock {
	return NewDistributedLock(client, fmt.Sprintf("fanloyalty:job:%s:leader", job), owner, ttl)
}

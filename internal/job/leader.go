package job

import (
	"context"
	"log/slog"

	"fanloyalty/internal/infrastructure/lock"
)

// leadership keeps one replica running a job. A nil lock means this process
// is the only runner.
type leadership struct {
	lock   *lock.DistributedLock
	held   bool
	logger *slog.Logger
}

// acquire reports whether this replica may run the next tick, refreshing the
// lease it already holds or trying to take a free one.
func (l *leadership) acquire(ctx context.Context) bool {
	if l.lock == nil {
		return true
	}
	if l.held {
		if err := l.lock.Refresh(ctx); err == nil {
			return true
		}
		l.held = false
		l.logger.Warn("leadership lost")
	}
	ok, err := l.lock.TryLock(ctx)
	if err != nil {
		l.logger.Warn("leader election failed", slog.Any("err", err))
		return false
	}
	if ok {
		l.logger.Info("leadership acquired")
	}
	l.held = ok
	return ok
}

func (l *leadership) release(ctx context.Context) {
	if l.lock == nil || !l.held {
		return
	}
	if err := l.lock.Unlock(ctx); err != nil {
		l.logger.Warn("release leadership failed", slog.Any("err", err))
	}
	l.held = false
}

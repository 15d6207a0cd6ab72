package redisclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLocker is the in-process Locker used when no Redis is configured.
// It only serializes callers inside one process.
type LocalLocker struct {
	opts LockOptions

	mu    sync.Mutex
	slots map[string]*localSlot
}

// localSlot is dropped from the map once no holder or waiter references it.
type localSlot struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker(opts LockOptions) *LocalLocker {
	return &LocalLocker{
		opts:  opts.withDefaults(),
		slots: make(map[string]*localSlot),
	}
}

func (l *LocalLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	slot := l.acquire(name)
	defer l.release(name, slot)

	timer := time.NewTimer(l.opts.Wait)
	defer timer.Stop()

	select {
	case slot.sem <- struct{}{}:
	default:
		select {
		case slot.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%s: %w", lockKey(name), ErrLockNotAcquired)
		}
	}
	defer func() { <-slot.sem }()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *LocalLocker) acquire(name string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[name]
	if !ok {
		slot = &localSlot{sem: make(chan struct{}, 1)}
		l.slots[name] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalLocker) release(name string, slot *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, name)
	}
}

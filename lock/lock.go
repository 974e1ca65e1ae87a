/*
Package lock provides per-key mutual exclusion for ledger critical sections.

PURPOSE:
  A sale reads a lot, checks stock, and writes it back. The storage
  transaction already makes that atomic; holding a per-lot lock around it
  as well keeps concurrent sales on the same lot queued in the process
  (or across processes with Redis) instead of contending inside the
  database.

IMPLEMENTATIONS:
  Local: in-process keyed mutex, context-aware waiting
  Redis: bsm/redislock, for several server processes sharing one database

USAGE:
  unlock, err := locker.Lock(ctx, lock.LotKey(tenantID, lotID))
  if err != nil {
      return err
  }
  defer unlock()
*/
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotObtained is returned when the lock could not be acquired before the
// context expired or the backend gave up.
var ErrNotObtained = errors.New("lock not obtained")

// Locker acquires an exclusive lock on key. The returned func releases it
// and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LotKey is the lock key for one lot of one tenant.
func LotKey(tenantID, lotID string) string {
	return fmt.Sprintf("lot:%s:%s", tenantID, lotID)
}

// =============================================================================
// LOCAL - in-process keyed mutex
// =============================================================================

// Local hands out one channel-based mutex per key. Entries are reference
// counted and dropped when nobody holds or waits for them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // buffered(1): a token in the channel means held
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// =============================================================================
// NOOP
// =============================================================================

// Noop never blocks. Use it when the store's own row locks are sufficient.
type Noop struct{}

func (Noop) Lock(context.Context, string) (func(), error) { return func() {}, nil }

package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lot-ledger/lock"
)

func TestLotKey(t *testing.T) {
	assert.Equal(t, "lot:t1:l1", lock.LotKey("t1", "l1"))
}

func TestLocal_SerializesSameKey(t *testing.T) {
	// GIVEN: 50 goroutines incrementing a shared counter under one key
	// WHEN: Each reads, yields, then writes
	// THEN: No increment is lost and no entry is left behind
	l := lock.NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		counter int
		inside  atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			assert.Equal(t, int32(1), inside.Add(1))
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, l.Len())
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := lock.NewLocal()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := l.Lock(timeout, "b")
	require.NoError(t, err)
	unlockB()

	assert.Equal(t, 1, l.Len())
}

func TestLocal_ContextCancelWhileWaiting(t *testing.T) {
	l := lock.NewLocal()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, lock.ErrNotObtained)

	// The abandoned waiter released its reference.
	unlock()
	assert.Equal(t, 0, l.Len())

	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()
}

func TestLocal_UnlockIsIdempotent(t *testing.T) {
	l := lock.NewLocal()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	unlock()
	assert.Equal(t, 0, l.Len())
}

func TestNoop(t *testing.T) {
	var l lock.Locker = lock.Noop{}
	u1, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	u2, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	u1()
	u2()
}

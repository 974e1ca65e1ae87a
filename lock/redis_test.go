package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/warp/lot-ledger/lock"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedis_ExclusiveAcrossClients(t *testing.T) {
	// GIVEN: Two lockers sharing one Redis, as two server processes would
	// WHEN: The first holds a lot key
	// THEN: The second gives up after its wait, and succeeds once released
	rdb := newRedisClient(t)
	ctx := context.Background()
	cfg := lock.RedisConfig{TTL: 5 * time.Second, Wait: 100 * time.Millisecond, Backoff: 10 * time.Millisecond, Prefix: "test:"}

	first := lock.NewRedis(rdb, cfg, zaptest.NewLogger(t))
	second := lock.NewRedis(rdb, cfg, zaptest.NewLogger(t))
	key := lock.LotKey("tenant", "lot")

	unlock, err := first.Lock(ctx, key)
	require.NoError(t, err)

	exists, err := rdb.Exists(ctx, "test:"+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	_, err = second.Lock(ctx, key)
	assert.ErrorIs(t, err, lock.ErrNotObtained)

	unlock()

	unlock2, err := second.Lock(ctx, key)
	require.NoError(t, err)
	unlock2()
}

func TestRedis_ExpiredHolderReleaseIsHarmless(t *testing.T) {
	rdb := newRedisClient(t)
	ctx := context.Background()
	l := lock.NewRedis(rdb, lock.RedisConfig{TTL: 50 * time.Millisecond}, zaptest.NewLogger(t))

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)

	// The key expired; another holder can take it and the stale release
	// must not remove the new holder's lock.
	unlock2, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	unlock()

	exists, err := rdb.Exists(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	unlock2()
}

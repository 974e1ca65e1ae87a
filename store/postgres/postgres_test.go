package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/warp/lot-ledger/inventory/storetest"
	"github.com/warp/lot-ledger/store/postgres"
)

func TestPostgres_Contract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{ConnString: connString, MaxConns: 4})
	require.NoError(t, err)
	s := postgres.New(pool)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	// Applying the schema twice is harmless.
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))

	storetest.Run(t, s)
}

func TestNewPool_RequiresConnString(t *testing.T) {
	_, err := postgres.NewPool(context.Background(), postgres.PoolConfig{})
	require.Error(t, err)
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lot ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment
  2. Build the zap logger
  3. Open the store (SQLite, Postgres, or in-memory)
  4. Build the lot locker (in-process or Redis)
  5. Wire the ledger engine, account service, and HTTP router
  6. Start server with graceful shutdown

ENVIRONMENT:
  See config/config.go. The essentials:
    JWT_SECRET      required, at least 16 bytes
    DB_DRIVER       sqlite (default) | postgres | memory
    SQLITE_PATH     SQLite file (default: ledger.db)
    DATABASE_URL    Postgres connection string
    LOCK_BACKEND    local (default) | redis
    REDIS_ADDR      Redis address for LOCK_BACKEND=redis

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close store and Redis connections
  4. Exit

EXAMPLES:
  # Local development, data in ./ledger.db
  JWT_SECRET=dev-secret-0123456789 ./server

  # Postgres with distributed locking
  DB_DRIVER=postgres DATABASE_URL=postgres://... \
  LOCK_BACKEND=redis REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - cmd/devtoken: Issues tokens for local testing
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/lot-ledger/account"
	"github.com/warp/lot-ledger/api"
	"github.com/warp/lot-ledger/config"
	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/inventory/store"
	"github.com/warp/lot-ledger/ledger"
	"github.com/warp/lot-ledger/lock"
	"github.com/warp/lot-ledger/logging"
	"github.com/warp/lot-ledger/store/postgres"
	"github.com/warp/lot-ledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Config{Component: "ledger-server", Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.close()

	// Initialize locker
	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	engine := ledger.New(db.store,
		ledger.WithLocker(locker),
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithNumberWidth(cfg.LotNumberWidth),
	)
	accounts := account.New(db.store, account.WithLogger(logger.Named("account")))

	handler := api.NewHandler(engine, accounts, logger)
	handler.Ping = db.ping
	router := api.NewRouter(handler, api.NewAuth(cfg.JWTSecret), api.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
		Logger:         logger.Named("http"),
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db_driver", cfg.DBDriver),
			zap.String("lock_backend", cfg.LockBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

type backend struct {
	store inventory.TxStore
	ping  func(ctx context.Context) error
	close func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			ConnString: cfg.DatabaseURL,
			MaxConns:   cfg.DBMaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := postgres.New(pool)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres store ready")
		return &backend{store: s, ping: s.Ping, close: s.Close}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return &backend{store: store.NewMemory(), close: func() {}}, nil

	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("sqlite store ready", zap.String("path", cfg.SQLitePath))
		return &backend{
			store: s,
			ping:  s.Ping,
			close: func() {
				if err := s.Close(); err != nil {
					logger.Warn("close sqlite", zap.Error(err))
				}
			},
		}, nil
	}
}

func openLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewLocal(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	locker := lock.NewRedis(rdb, lock.RedisConfig{
		TTL:    cfg.LockTTL,
		Wait:   cfg.LockWait,
		Prefix: "ledger:",
	}, logger.Named("lock"))
	return locker, func() { rdb.Close() }, nil
}

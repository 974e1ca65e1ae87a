package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lot-ledger/config"
)

const secret = "0123456789abcdef"

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"JWT_SECRET": secret})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "ledger.db", cfg.SQLitePath)
	assert.Equal(t, config.LockLocal, cfg.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, 5*time.Second, cfg.LockWait)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 4, cfg.LotNumberWidth)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"JWT_SECRET":       secret,
		"PORT":             "9090",
		"DB_DRIVER":        "postgres",
		"DATABASE_URL":     "postgres://u:p@localhost/ledger",
		"DB_MAX_CONNS":     "25",
		"LOCK_BACKEND":     "redis",
		"REDIS_ADDR":       "localhost:6379",
		"LOCK_WAIT":        "250ms",
		"CORS_ORIGINS":     "https://a.example,https://b.example",
		"LOT_NUMBER_WIDTH": "6",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, 250*time.Millisecond, cfg.LockWait)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 6, cfg.LotNumberWidth)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		wantMsg string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET"},
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "at least 16 bytes"},
		{"postgres without url", map[string]string{"JWT_SECRET": secret, "DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"JWT_SECRET": secret, "DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"redis without addr", map[string]string{"JWT_SECRET": secret, "LOCK_BACKEND": "redis"}, "REDIS_ADDR"},
		{"bad width", map[string]string{"JWT_SECRET": secret, "LOT_NUMBER_WIDTH": "0"}, "LOT_NUMBER_WIDTH"},
		{"bad duration", map[string]string{"JWT_SECRET": secret, "LOCK_TTL": "soon"}, "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFrom(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/lot-ledger/logging"
)

func TestNewLogger_GCPFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.Config{Component: "ledger-server", Level: "WARN", Output: &buf})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", zap.String("lot_id", "l1"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARNING", entry["severity"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "ledger-server", entry["component"])
	assert.Equal(t, "l1", entry["lot_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := logging.NewLogger(logging.Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := zap.NewExample()
	assert.Same(t, fallback, logging.FromContext(context.Background(), fallback))
	assert.NotNil(t, logging.FromContext(context.Background(), nil))

	stored := zap.NewNop()
	ctx := logging.WithLogger(context.Background(), stored)
	assert.Same(t, stored, logging.FromContext(ctx, fallback))
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"ok", http.StatusOK, zap.InfoLevel},
		{"client error", http.StatusConflict, zap.WarnLevel},
		{"server error", http.StatusInternalServerError, zap.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			base := zap.New(core)

			var sawLogger bool
			handler := middleware.RequestID(logging.RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logging.FromContext(r.Context(), nil).Debug("inside")
				sawLogger = true
				w.WriteHeader(tt.status)
			})))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/lots", nil))
			require.True(t, sawLogger)

			entries := logs.All()
			require.Len(t, entries, 2)
			assert.Equal(t, "inside", entries[0].Message)
			assert.NotEmpty(t, entries[0].ContextMap()["request_id"])

			done := entries[1]
			assert.Equal(t, "request completed", done.Message)
			assert.Equal(t, tt.level, done.Level)
			assert.Equal(t, int64(tt.status), done.ContextMap()["status"])
			assert.Equal(t, "/api/lots", done.ContextMap()["path"])
		})
	}
}

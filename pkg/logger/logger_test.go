package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observeGlobal swaps the global logger for an observed one until the test
// ends.
func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	mu.Lock()
	prev := globalLogger
	globalLogger = zap.New(core)
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		globalLogger = prev
		mu.Unlock()
	})
	return logs
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Encoding: "console"}))
	l := Get()
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(Config{Level: "error"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
}

func TestWithContext(t *testing.T) {
	logs := observeGlobal(t)

	ctx := context.WithValue(context.Background(), PoolKey, "bullets")
	ctx = context.WithValue(ctx, RunIDKey, "run-1")
	WithContext(ctx).Info("acquired")
	WithContext(context.Background()).Info("bare")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, map[string]interface{}{"pool": "bullets", "run_id": "run-1"}, entries[0].ContextMap())
	assert.Empty(t, entries[1].ContextMap(), "no fields without context values")
}

func TestWithAddsFields(t *testing.T) {
	logs := observeGlobal(t)

	With(zap.String("command", "run")).Warn("stopping")

	stopping := logs.FilterMessage("stopping")
	require.Equal(t, 1, stopping.Len())
	assert.Equal(t, zapcore.WarnLevel, stopping.All()[0].Level)
	assert.Equal(t, "run", stopping.All()[0].ContextMap()["command"])
}

// Package testutil provides testing utilities for poolkit
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// ObservedLogger creates a logger whose entries at level or above can be
// inspected by the test.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// TestContext creates a context with a 30-second timeout that is canceled
// when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Counter is the occupancy view shared by the pool types.
type Counter interface {
	Count() int
	ActiveCount() int
	InactiveCount() int
}

// AssertBalanced fails the test unless the active and inactive items of p
// add up to its count.
func AssertBalanced(t *testing.T, p Counter) bool {
	t.Helper()
	active, inactive, count := p.ActiveCount(), p.InactiveCount(), p.Count()
	if active+inactive != count {
		t.Errorf("pool out of balance: %d active + %d inactive != %d items", active, inactive, count)
		return false
	}
	return true
}

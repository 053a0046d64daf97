// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// MockClock returns a mock clock set to now.
func MockClock(now time.Time) *clock.Mock {
	mock := clock.NewMock()
	mock.Set(now)
	return mock
}

// AdvanceUntil moves mock forward by step until ch yields, and returns
// the value. Fails the test after two seconds of wall time or when ch
// closes.
func AdvanceUntil[T any](t testing.TB, mock *clock.Mock, step time.Duration, ch <-chan T) T {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mock.Add(step)
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed")
			return v
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("timed out waiting for value")
	var zero T
	return zero
}

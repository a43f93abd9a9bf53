package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_LockoutAtThreshold(t *testing.T) {
	l := New(time.Minute, 5, time.Minute)

	for i := 0; i < 4; i++ {
		allowed, remaining := l.Record("login", "1.2.3.4")
		require.True(t, allowed)
		assert.Equal(t, 5-(i+1), remaining)
	}

	// 5th attempt trips the lockout.
	allowed, remaining := l.Record("login", "1.2.3.4")
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)

	locked, retryAfter := l.Check("login", "1.2.3.4")
	assert.True(t, locked)
	assert.Greater(t, retryAfter, 0)

	allowed, _ = l.Record("login", "1.2.3.4")
	assert.False(t, allowed)
}

func TestReset_RestoresAcceptance(t *testing.T) {
	l := New(time.Minute, 2, time.Minute)

	l.Record("login", "a@b.co")
	l.Record("login", "a@b.co")
	locked, _ := l.Check("login", "a@b.co")
	require.True(t, locked)

	l.Reset("login", "a@b.co")

	locked, _ = l.Check("login", "a@b.co")
	assert.False(t, locked)
	allowed, _ := l.Record("login", "a@b.co")
	assert.True(t, allowed)
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(time.Minute, 1, time.Minute)

	l.Record("login", "1.1.1.1")
	locked, _ := l.Check("login", "1.1.1.1")
	require.True(t, locked)

	locked, _ = l.Check("register", "1.1.1.1")
	assert.False(t, locked)
	locked, _ = l.Check("login", "2.2.2.2")
	assert.False(t, locked)
}

func TestWindowPruning(t *testing.T) {
	l := New(50*time.Millisecond, 3, time.Second)

	l.Record("login", "x")
	time.Sleep(60 * time.Millisecond)
	allowed, remaining := l.Record("login", "x")
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)
}

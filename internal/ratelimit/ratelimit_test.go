package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_Burst(t *testing.T) {
	l := New(1, 3, time.Minute)
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }

	for i := range 3 {
		assert.True(t, l.Allow("client"), "request %d", i)
	}
	assert.False(t, l.Allow("client"))
	assert.True(t, l.Allow("other"), "keys have separate buckets")
}

func TestAllow_Refill(t *testing.T) {
	l := New(2, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("k"))
}

func TestSweep(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(45 * time.Second)
	l.Allow("recent")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestReset(t *testing.T) {
	l := New(1, 1, 0)
	l.Allow("k")
	assert.False(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestNew_Defaults(t *testing.T) {
	l := New(1, 0, 0)
	assert.Equal(t, 1, l.burst)
	assert.Equal(t, 10*time.Minute, l.idle)
}

func TestRunCleanup_Stops(t *testing.T) {
	l := New(1, 1, time.Nanosecond)
	l.Allow("k")
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		l.RunCleanup(time.Millisecond, stop)
		close(done)
	}()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after stop")
	}
}

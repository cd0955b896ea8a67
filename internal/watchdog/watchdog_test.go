package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthyUntilFirstBeatGoesStale(t *testing.T) {
	w := New(time.Second)
	w.Register("sweeper", 50*time.Millisecond)

	// A component that never beat yet is not flagged; it may still be
	// starting up.
	assert.True(t, w.Healthy("sweeper"))
	w.check()
	assert.True(t, w.Healthy("sweeper"))

	w.Heartbeat("sweeper")
	w.check()
	assert.True(t, w.Healthy("sweeper"))
}

func TestStaleBeatFlipsUnhealthy(t *testing.T) {
	w := New(time.Second)
	w.Register("sweeper", 50*time.Millisecond)

	w.mu.RLock()
	c := w.components["sweeper"]
	w.mu.RUnlock()
	require.NotNil(t, c)
	atomic.StoreInt64(&c.lastBeat, time.Now().Add(-time.Minute).UnixNano())

	w.check()
	assert.False(t, w.Healthy("sweeper"))
	assert.Equal(t, map[string]bool{"sweeper": false}, w.Status())

	// A fresh beat recovers it.
	w.Heartbeat("sweeper")
	w.check()
	assert.True(t, w.Healthy("sweeper"))
}

func TestUnknownComponent(t *testing.T) {
	w := New(time.Second)
	assert.False(t, w.Healthy("ghost"))
	w.Heartbeat("ghost") // must not panic or register anything
	assert.Empty(t, w.Status())
}

func TestStartStop(t *testing.T) {
	w := New(5 * time.Millisecond)
	w.Register("sweeper", time.Hour)
	w.Start()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop")
	}
}

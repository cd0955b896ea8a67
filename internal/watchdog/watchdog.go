package watchdog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mastersh0w/citadel/internal/logging"
	"github.com/mastersh0w/citadel/internal/metrics"
)

// Watchdog tracks heartbeats from the engine's background components (decay
// scheduler, gateway) and logs when one goes quiet, along with a counter
// snapshot so operators can see what the engine was doing at the time.
type Watchdog struct {
	mu         sync.RWMutex
	components map[string]*component
	interval   time.Duration
	running    uint32
	done       chan struct{}
}

type component struct {
	name      string
	threshold time.Duration
	lastBeat  int64
	healthy   uint32
}

func New(interval time.Duration) *Watchdog {
	return &Watchdog{
		components: make(map[string]*component),
		interval:   interval,
		done:       make(chan struct{}),
	}
}

// Register adds a component; it is unhealthy if no heartbeat arrives within
// threshold.
func (w *Watchdog) Register(name string, threshold time.Duration) {
	w.mu.Lock()
	w.components[name] = &component{name: name, threshold: threshold, healthy: 1}
	w.mu.Unlock()
}

// Heartbeat records liveness for a component.
func (w *Watchdog) Heartbeat(name string) {
	w.mu.RLock()
	c := w.components[name]
	w.mu.RUnlock()
	if c != nil {
		atomic.StoreInt64(&c.lastBeat, time.Now().UnixNano())
		atomic.StoreUint32(&c.healthy, 1)
	}
}

func (w *Watchdog) Start() {
	atomic.StoreUint32(&w.running, 1)
	go w.loop()
}

func (w *Watchdog) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for atomic.LoadUint32(&w.running) == 1 {
		<-ticker.C
		w.check()
	}
}

func (w *Watchdog) check() {
	now := time.Now().UnixNano()

	w.mu.RLock()
	defer w.mu.RUnlock()
	for name, c := range w.components {
		lastBeat := atomic.LoadInt64(&c.lastBeat)
		if lastBeat == 0 {
			continue
		}
		elapsed := time.Duration(now - lastBeat)
		if elapsed > c.threshold {
			if atomic.CompareAndSwapUint32(&c.healthy, 1, 0) {
				snap := metrics.Get().Snapshot()
				logging.Error("watchdog: %s silent for %v (scored=%d cases=%d sweeps=%d)",
					name, elapsed.Round(time.Millisecond), snap.EventsScored, snap.CasesOpened, snap.SweepRuns)
			}
		}
	}
}

// Healthy reports the last known state of a component.
func (w *Watchdog) Healthy(name string) bool {
	w.mu.RLock()
	c := w.components[name]
	w.mu.RUnlock()
	return c != nil && atomic.LoadUint32(&c.healthy) == 1
}

// Status returns a name → healthy map for status reporting.
func (w *Watchdog) Status() map[string]bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]bool, len(w.components))
	for name, c := range w.components {
		out[name] = atomic.LoadUint32(&c.healthy) == 1
	}
	return out
}

func (w *Watchdog) Stop() {
	atomic.StoreUint32(&w.running, 0)
	<-w.done
}

package decay

import (
	"time"

	"github.com/mastersh0w/citadel/internal/config"
	"github.com/mastersh0w/citadel/internal/ledger"
	"github.com/mastersh0w/citadel/internal/logging"
	"github.com/mastersh0w/citadel/internal/metrics"
)

// Scheduler runs the periodic housekeeping sweep over the threat ledger:
// it ages every entry toward zero and evicts entries that have been at zero
// longer than the retention window, bounding memory for inactive actors.
// Correctness never depends on it; the ledger decays lazily on access.
type Scheduler struct {
	ledger    *ledger.Ledger
	configs   *config.Store
	interval  time.Duration
	retention time.Duration
	registry  *metrics.Registry

	// heartbeat, when set, is called after every sweep for liveness checks.
	heartbeat func()

	stop chan struct{}
	done chan struct{}
}

func NewScheduler(l *ledger.Ledger, configs *config.Store, interval, retention time.Duration) *Scheduler {
	return &Scheduler{
		ledger:    l,
		configs:   configs,
		interval:  interval,
		retention: retention,
		registry:  metrics.Get(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// OnSweep registers a callback invoked after each completed sweep.
func (s *Scheduler) OnSweep(fn func()) {
	s.heartbeat = fn
}

// Start launches the sweep loop on its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepOnce(time.Now().UTC())
		}
	}
}

// SweepOnce runs a single sweep pass. Exported for tests and for a final
// pass during shutdown.
func (s *Scheduler) SweepOnce(now time.Time) ledger.SweepResult {
	res := s.ledger.Sweep(func(scopeID string) float64 {
		return s.configs.Get(scopeID).DecayPerSecond
	}, s.retention, now)

	s.registry.IncrSweepRuns()
	s.registry.AddSweepEvictions(uint64(res.Evicted))
	s.registry.AddSweepFailures(uint64(res.Failures))

	if res.Failures > 0 {
		logging.Warn("decay sweep: %d entries failed (scanned=%d evicted=%d)",
			res.Failures, res.Scanned, res.Evicted)
	} else if res.Evicted > 0 {
		logging.Debug("decay sweep: scanned=%d evicted=%d", res.Scanned, res.Evicted)
	}

	if s.heartbeat != nil {
		s.heartbeat()
	}
	return res
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

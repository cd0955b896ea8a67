package metrics

import "sync/atomic"

// Registry holds the engine's health counters. Everything is a plain atomic
// so the scoring path can bump counters without locks.
type Registry struct {
	eventsScored    uint64
	eventsRejected  uint64
	casesOpened     uint64
	casesResolved   uint64
	capFailures     uint64
	sweepRuns       uint64
	sweepEvictions  uint64
	sweepFailures   uint64
	notifyFailures  uint64
}

// Snapshot is a point-in-time copy of the registry counters.
type Snapshot struct {
	EventsScored   uint64
	EventsRejected uint64
	CasesOpened    uint64
	CasesResolved  uint64
	CapFailures    uint64
	SweepRuns      uint64
	SweepEvictions uint64
	SweepFailures  uint64
	NotifyFailures uint64
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) IncrEventsScored()   { atomic.AddUint64(&r.eventsScored, 1) }
func (r *Registry) IncrEventsRejected() { atomic.AddUint64(&r.eventsRejected, 1) }
func (r *Registry) IncrCasesOpened()    { atomic.AddUint64(&r.casesOpened, 1) }
func (r *Registry) IncrCasesResolved()  { atomic.AddUint64(&r.casesResolved, 1) }
func (r *Registry) IncrCapFailures()    { atomic.AddUint64(&r.capFailures, 1) }
func (r *Registry) IncrSweepRuns()      { atomic.AddUint64(&r.sweepRuns, 1) }
func (r *Registry) IncrNotifyFailures() { atomic.AddUint64(&r.notifyFailures, 1) }

func (r *Registry) AddSweepEvictions(n uint64) { atomic.AddUint64(&r.sweepEvictions, n) }
func (r *Registry) AddSweepFailures(n uint64)  { atomic.AddUint64(&r.sweepFailures, n) }

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		EventsScored:   atomic.LoadUint64(&r.eventsScored),
		EventsRejected: atomic.LoadUint64(&r.eventsRejected),
		CasesOpened:    atomic.LoadUint64(&r.casesOpened),
		CasesResolved:  atomic.LoadUint64(&r.casesResolved),
		CapFailures:    atomic.LoadUint64(&r.capFailures),
		SweepRuns:      atomic.LoadUint64(&r.sweepRuns),
		SweepEvictions: atomic.LoadUint64(&r.sweepEvictions),
		SweepFailures:  atomic.LoadUint64(&r.sweepFailures),
		NotifyFailures: atomic.LoadUint64(&r.notifyFailures),
	}
}

var globalRegistry *Registry

func Init() {
	globalRegistry = NewRegistry()
}

func Get() *Registry {
	if globalRegistry == nil {
		Init()
	}
	return globalRegistry
}

package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mastersh0w/citadel/internal/config"
	"github.com/mastersh0w/citadel/internal/models"
)

// ErrUnknownActionKind is returned when a recorded action kind has no
// configured score. The action is not scored.
var ErrUnknownActionKind = errors.New("unknown action kind")

// Key identifies one actor within one scope.
type Key struct {
	ScopeID string
	ActorID string
}

func (k Key) String() string {
	return k.ScopeID + "/" + k.ActorID
}

// entry is one actor's decaying score. All fields are guarded by mu, so a
// decay+add+compare sequence is atomic per key. The evicted flag resolves
// the race between a sweep deleting the key and a Record holding a stale
// pointer: a Record that finds evicted=true retries against a fresh entry.
type entry struct {
	mu          sync.Mutex
	score       float64
	lastUpdated time.Time
	evicted     bool
}

// Ledger is the per-(actor, scope) decaying threat score accumulator.
// Decay is applied lazily on access, so an idle actor costs nothing until a
// sweep or the next action touches it. Different keys never contend.
type Ledger struct {
	entries *xsync.MapOf[Key, *entry]
}

func New() *Ledger {
	return &Ledger{entries: xsync.NewMapOf[Key, *entry]()}
}

// Record applies decay for the elapsed interval, adds the configured score
// for kind, and returns the post-update score. Unknown kinds are rejected
// without touching the entry.
func (l *Ledger) Record(actorID, scopeID string, kind models.ActionKind, cfg *config.ThreatConfig, now time.Time) (float64, error) {
	points, ok := cfg.ScoreFor(kind)
	if !ok {
		return 0, fmt.Errorf("action kind %q: %w", kind, ErrUnknownActionKind)
	}

	key := Key{ScopeID: scopeID, ActorID: actorID}
	for {
		e, _ := l.entries.LoadOrCompute(key, func() *entry {
			return &entry{lastUpdated: now}
		})
		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		e.decayLocked(cfg.DecayPerSecond, now)
		e.score += points
		e.lastUpdated = now
		score := e.score
		e.mu.Unlock()
		return score, nil
	}
}

// Score returns the actor's current score with decay applied, without
// recording anything. Reading still advances lastUpdated so decay is never
// double-applied.
func (l *Ledger) Score(actorID, scopeID string, decayPerSecond float64, now time.Time) float64 {
	e, ok := l.entries.Load(Key{ScopeID: scopeID, ActorID: actorID})
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return 0
	}
	e.decayLocked(decayPerSecond, now)
	return e.score
}

// Reset zeroes the actor's score. Used when a case resolves as restored and
// for explicit administrative resets.
func (l *Ledger) Reset(actorID, scopeID string, now time.Time) {
	e, ok := l.entries.Load(Key{ScopeID: scopeID, ActorID: actorID})
	if !ok {
		return
	}
	e.mu.Lock()
	e.score = 0
	e.lastUpdated = now
	e.mu.Unlock()
}

// Len reports the number of live entries.
func (l *Ledger) Len() int {
	return l.entries.Size()
}

// SweepResult summarizes one housekeeping pass.
type SweepResult struct {
	Scanned  int
	Evicted  int
	Failures int
}

// Sweep proactively decays every entry and evicts entries whose score
// reached zero longer than retention ago. decayFor resolves the per-scope
// decay rate at sweep time so config changes apply immediately. A panic
// while processing one entry is contained and counted, the sweep continues.
func (l *Ledger) Sweep(decayFor func(scopeID string) float64, retention time.Duration, now time.Time) SweepResult {
	var res SweepResult
	l.entries.Range(func(key Key, e *entry) bool {
		res.Scanned++
		evicted, ok := l.sweepEntry(key, e, decayFor, retention, now)
		if !ok {
			res.Failures++
		} else if evicted {
			res.Evicted++
		}
		return true
	})
	return res
}

func (l *Ledger) sweepEntry(key Key, e *entry, decayFor func(string) float64, retention time.Duration, now time.Time) (evicted, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			evicted, ok = false, false
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false, true
	}
	e.decayLocked(decayFor(key.ScopeID), now)
	if e.score == 0 && now.Sub(e.lastUpdated) >= retention {
		e.evicted = true
		l.entries.Delete(key)
		return true, true
	}
	return false, true
}

// decayLocked ages the score for the wall-clock interval since the last
// mutation, floored at zero. Caller holds e.mu. A clock that moved
// backwards applies no decay. lastUpdated only advances when decay actually
// ran, so the idle interval backing eviction is preserved.
func (e *entry) decayLocked(decayPerSecond float64, now time.Time) {
	elapsed := now.Sub(e.lastUpdated).Seconds()
	if elapsed <= 0 {
		return
	}
	e.score -= decayPerSecond * elapsed
	if e.score < 0 {
		e.score = 0
	}
	if e.score > 0 {
		e.lastUpdated = now
	}
}

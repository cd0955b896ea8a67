package detector

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mastersh0w/citadel/internal/ledger"
)

// placeholder marks a latch that is acquired but whose case is still being
// created.
const placeholder = ""

// Detector decides whether a score crossing opens a new case. It keeps a
// per-(actor, scope) latch: while a pending case exists, further crossings
// for that actor are swallowed. The latch is released on resolution, so a
// score that decays below the threshold and re-crosses later can open a new
// case only once the previous one is closed.
type Detector struct {
	pending *xsync.MapOf[ledger.Key, string]
}

func New() *Detector {
	return &Detector{pending: xsync.NewMapOf[ledger.Key, string]()}
}

// Crossed is the threshold comparison. Inclusive, a score exactly at the
// threshold is flagged.
func Crossed(score, threshold float64) bool {
	return score >= threshold
}

// TryAcquire atomically claims the latch for a key. Exactly one concurrent
// caller wins; the winner must follow up with Commit or Release.
func (d *Detector) TryAcquire(key ledger.Key) bool {
	_, loaded := d.pending.LoadOrStore(key, placeholder)
	return !loaded
}

// Commit binds the created case ID to an acquired latch.
func (d *Detector) Commit(key ledger.Key, caseID string) {
	d.pending.Store(key, caseID)
}

// Release drops the latch, allowing a future crossing to open a new case.
func (d *Detector) Release(key ledger.Key) {
	d.pending.Delete(key)
}

// PendingCase returns the case ID latched for a key, if any.
func (d *Detector) PendingCase(key ledger.Key) (string, bool) {
	id, ok := d.pending.Load(key)
	if !ok || id == placeholder {
		return "", ok
	}
	return id, true
}

// Prime installs a latch for a case loaded from storage at startup.
func (d *Detector) Prime(key ledger.Key, caseID string) {
	d.pending.Store(key, caseID)
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mastersh0w/citadel/internal/cases"
	"github.com/mastersh0w/citadel/internal/config"
	"github.com/mastersh0w/citadel/internal/detector"
	"github.com/mastersh0w/citadel/internal/ledger"
	"github.com/mastersh0w/citadel/internal/logging"
	"github.com/mastersh0w/citadel/internal/metrics"
	"github.com/mastersh0w/citadel/internal/models"
)

// Engine wires event ingestion, the threat ledger, threshold detection and
// the quarantine review workflow together.
type Engine struct {
	configs  *config.Store
	ledger   *ledger.Ledger
	detector *detector.Detector
	store    *cases.Store
	caps     Capabilities
	registry *metrics.Registry

	// resolving serializes Resolve calls per case ID. Resolves on distinct
	// cases run fully in parallel.
	resolving *xsync.MapOf[string, struct{}]

	// resolveTimeout caps the platform side effect of a Resolve whose
	// caller passed no deadline of its own. Zero disables the cap.
	resolveTimeout time.Duration
}

func New(configs *config.Store, store *cases.Store, caps Capabilities) (*Engine, error) {
	e := &Engine{
		configs:   configs,
		ledger:    ledger.New(),
		detector:  detector.New(),
		store:     store,
		caps:      caps,
		registry:  metrics.Get(),
		resolving: xsync.NewMapOf[string, struct{}](),
	}

	// Re-latch pending cases so a restart cannot open duplicates.
	pending, err := store.Pending()
	if err != nil {
		return nil, fmt.Errorf("prime pending cases: %w", err)
	}
	for _, c := range pending {
		e.detector.Prime(ledger.Key{ScopeID: c.ScopeID, ActorID: c.ActorID}, c.ID)
	}
	return e, nil
}

// SetResolveTimeout installs the default deadline applied to Resolve calls
// that arrive without one. Must be set before the engine serves requests.
func (e *Engine) SetResolveTimeout(d time.Duration) {
	e.resolveTimeout = d
}

// Ledger exposes the threat ledger for the decay scheduler.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// RecordAction scores one observed privileged action and, on a fresh
// threshold crossing, opens a quarantine case and applies the quarantine
// side effects. Downstream platform failures never fail the caller; they
// are recorded on the case instead, because losing the detection is worse
// than a degraded side effect. Returns the actor's post-update score.
func (e *Engine) RecordAction(actorID, scopeID string, kind models.ActionKind, occurredAt time.Time) (float64, error) {
	cfg := e.configs.Get(scopeID)

	if cfg.IsExempt(actorID) {
		return e.ledger.Score(actorID, scopeID, cfg.DecayPerSecond, occurredAt), nil
	}

	score, err := e.ledger.Record(actorID, scopeID, kind, cfg, occurredAt)
	if err != nil {
		e.registry.IncrEventsRejected()
		return 0, err
	}
	e.registry.IncrEventsScored()

	// Disabled scopes keep scoring so a re-enable works from live data,
	// but never open cases or touch the platform.
	if !cfg.Enabled {
		return score, nil
	}
	if !detector.Crossed(score, cfg.Threshold) {
		return score, nil
	}

	key := ledger.Key{ScopeID: scopeID, ActorID: actorID}
	if !e.detector.TryAcquire(key) {
		// A case is already pending for this actor.
		return score, nil
	}

	if err := e.openCase(key, kind, score, occurredAt); err != nil {
		e.detector.Release(key)
		return score, fmt.Errorf("open case for %s: %w", key, err)
	}
	return score, nil
}

// RecordEvent scores one observed gateway event.
func (e *Engine) RecordEvent(ev models.ActionEvent) (float64, error) {
	return e.RecordAction(ev.ActorID, ev.ScopeID, ev.Kind, ev.OccurredAt)
}

// openCase snapshots roles, persists the case and applies the quarantine
// role. Called with the detector latch held; the ledger entry lock is not.
func (e *Engine) openCase(key ledger.Key, kind models.ActionKind, score float64, now time.Time) error {
	ctx := context.Background()

	c := &cases.Case{
		ID:              uuid.NewString(),
		ScopeID:         key.ScopeID,
		ActorID:         key.ActorID,
		ReasonSummary:   fmt.Sprintf("threat score %.1f after %s", score, kind.DisplayName()),
		TriggeringScore: score,
		Status:          cases.StatusPending,
		CreatedAt:       now,
	}

	roles, err := e.caps.GetMemberRoles(ctx, key.ActorID, key.ScopeID)
	if err != nil {
		// Proceed without a snapshot rather than lose the detection; a
		// restore will have nothing to reinstate, which the note records.
		e.registry.IncrCapFailures()
		logging.Warn("role snapshot failed for %s: %v", key, err)
		c.RoleApplyFailed = true
		c.Notes = "role snapshot unavailable at quarantine time"
	} else {
		c.OriginalRoles = roles
	}

	if err := e.store.Create(c); err != nil {
		return err
	}
	e.detector.Commit(key, c.ID)
	e.registry.IncrCasesOpened()
	logging.Info("case %s opened: actor=%s scope=%s score=%.1f", c.ID, key.ActorID, key.ScopeID, score)

	if err := e.caps.ApplyQuarantineRole(ctx, key.ActorID, key.ScopeID); err != nil {
		e.registry.IncrCapFailures()
		logging.Warn("quarantine role apply failed for case %s: %v", c.ID, err)
		if dbErr := e.store.MarkRoleApplyFailed(c.ID, "quarantine role apply failed: "+err.Error()); dbErr != nil {
			logging.Error("record role apply failure for case %s: %v", c.ID, dbErr)
		}
	}

	msg := fmt.Sprintf("Quarantined <@%s>: threat score %.1f crossed threshold (case %s)", key.ActorID, score, c.ID)
	if err := e.caps.Notify(ctx, key.ScopeID, msg); err != nil {
		e.registry.IncrNotifyFailures()
		logging.Warn("notify failed for case %s: %v", c.ID, err)
	}
	return nil
}

// Resolve commits a reviewer's decision on a pending case. The platform
// side effect must succeed before the case is marked terminal; on failure
// or cancellation the case stays pending and the error is returned for
// retry.
func (e *Engine) Resolve(ctx context.Context, caseID string, decision cases.Decision, reviewedBy, notes string) (*cases.Case, error) {
	status, err := cases.StatusFor(decision)
	if err != nil {
		return nil, err
	}

	if _, loaded := e.resolving.LoadOrStore(caseID, struct{}{}); loaded {
		return nil, fmt.Errorf("case %s: %w", caseID, cases.ErrConcurrentModification)
	}
	defer e.resolving.Delete(caseID)

	if e.resolveTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.resolveTimeout)
			defer cancel()
		}
	}

	c, err := e.store.Get(caseID)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, fmt.Errorf("case %s: %w", caseID, cases.ErrAlreadyResolved)
	}

	// Side effect first, commit second. A terminal status must always mean
	// the platform action was confirmed.
	switch decision {
	case cases.DecisionBan:
		reason := fmt.Sprintf("Anti-nuke quarantine case %s: %s", c.ID, c.ReasonSummary)
		if err := e.caps.ExecuteBan(ctx, c.ActorID, c.ScopeID, reason); err != nil {
			e.registry.IncrCapFailures()
			return nil, capErr("execute_ban", err)
		}
	case cases.DecisionRestore:
		if err := e.caps.RestoreRoles(ctx, c.ActorID, c.ScopeID, c.OriginalRoles); err != nil {
			e.registry.IncrCapFailures()
			return nil, capErr("restore_roles", err)
		}
	}

	now := time.Now().UTC()
	if err := e.store.Resolve(caseID, status, reviewedBy, notes, now); err != nil {
		return nil, err
	}

	key := ledger.Key{ScopeID: c.ScopeID, ActorID: c.ActorID}
	if decision == cases.DecisionRestore && e.configs.Get(c.ScopeID).ResetOnRestore {
		// A restored actor is presumed legitimate; lingering score must not
		// re-quarantine them on their next small action.
		e.ledger.Reset(c.ActorID, c.ScopeID, now)
	}
	e.detector.Release(key)
	e.registry.IncrCasesResolved()
	logging.Info("case %s resolved as %s by %s", caseID, status, reviewedBy)

	msg := fmt.Sprintf("Case %s resolved as %s by %s", caseID, status, reviewedBy)
	if err := e.caps.Notify(ctx, c.ScopeID, msg); err != nil {
		e.registry.IncrNotifyFailures()
		logging.Warn("notify failed for case %s: %v", caseID, err)
	}

	c.Status = status
	c.ReviewedBy = reviewedBy
	c.ReviewedAt = now
	c.Notes = notes
	return c, nil
}

// GetCase returns one case by ID.
func (e *Engine) GetCase(caseID string) (*cases.Case, error) {
	return e.store.Get(caseID)
}

// ListCases returns a scope's cases, optionally filtered by status.
func (e *Engine) ListCases(scopeID string, status cases.Status) ([]*cases.Case, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status filter %q", status)
	}
	return e.store.List(scopeID, status)
}

// UpdateConfig installs a new threat config for a scope. Takes effect on
// the next recorded action or sweep.
func (e *Engine) UpdateConfig(scopeID string, cfg *config.ThreatConfig) {
	e.configs.Set(scopeID, cfg)
	logging.Info("config updated for scope %s: enabled=%v threshold=%.1f decay=%.2f/s",
		scopeID, cfg.Enabled, cfg.Threshold, cfg.DecayPerSecond)
}

// Score reports an actor's current decayed score without recording.
func (e *Engine) Score(actorID, scopeID string, now time.Time) float64 {
	cfg := e.configs.Get(scopeID)
	return e.ledger.Score(actorID, scopeID, cfg.DecayPerSecond, now)
}

// ResetActor zeroes an actor's score, for explicit administrative resets.
func (e *Engine) ResetActor(actorID, scopeID string) {
	e.ledger.Reset(actorID, scopeID, time.Now().UTC())
	logging.Info("score reset: actor=%s scope=%s", actorID, scopeID)
}

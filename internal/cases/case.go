package cases

import (
	"errors"
	"time"
)

// Status of a quarantine case. Pending is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusBanned   Status = "banned"
	StatusRestored Status = "restored"
)

func (s Status) Terminal() bool {
	return s == StatusBanned || s == StatusRestored
}

// Valid reports whether s is a known status, for list filters.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusBanned || s == StatusRestored
}

// Decision is the reviewer's choice when resolving a pending case.
type Decision string

const (
	DecisionBan     Decision = "ban"
	DecisionRestore Decision = "restore"
)

var (
	ErrCaseNotFound    = errors.New("case not found")
	ErrAlreadyResolved = errors.New("case already resolved")
	// ErrConcurrentModification guards a resolve that lost a race it should
	// not have been in. Prevented by design, surfaced defensively.
	ErrConcurrentModification = errors.New("concurrent case modification")
)

// Case is one actor's quarantine under review. Created on a threshold
// crossing, mutated exactly once by resolution, immutable thereafter.
type Case struct {
	ID              string
	ScopeID         string
	ActorID         string
	ReasonSummary   string
	TriggeringScore float64

	// OriginalRoles is the actor's role snapshot at quarantine time, needed
	// to reinstate the actor when the reviewer chooses restore.
	OriginalRoles []string

	Status Status

	// RoleApplyFailed flags a case whose quarantine role could not be
	// applied; a human needs to apply it manually.
	RoleApplyFailed bool

	CreatedAt  time.Time
	ReviewedBy string
	ReviewedAt time.Time
	Notes      string
}

// StatusFor maps a decision to the terminal status it commits.
func StatusFor(d Decision) (Status, error) {
	switch d {
	case DecisionBan:
		return StatusBanned, nil
	case DecisionRestore:
		return StatusRestored, nil
	default:
		return "", errors.New("unknown decision " + string(d))
	}
}

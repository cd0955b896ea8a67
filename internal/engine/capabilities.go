package engine

import (
	"context"
	"fmt"
)

// Capabilities is the outbound surface the engine drives. Implementations
// talk to the platform API (role edits, bans, log messages); the engine
// never does so directly. Calls may block on network I/O and are therefore
// never made while a ledger entry lock is held.
type Capabilities interface {
	ApplyQuarantineRole(ctx context.Context, actorID, scopeID string) error
	GetMemberRoles(ctx context.Context, actorID, scopeID string) ([]string, error)
	RestoreRoles(ctx context.Context, actorID, scopeID string, roles []string) error
	ExecuteBan(ctx context.Context, actorID, scopeID, reason string) error
	Notify(ctx context.Context, scopeID, message string) error
}

// CapabilityError wraps a failed outbound call with the operation name so
// the dashboard can render an actionable message.
type CapabilityError struct {
	Op  string
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

func capErr(op string, err error) error {
	return &CapabilityError{Op: op, Err: err}
}

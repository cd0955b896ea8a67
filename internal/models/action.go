package models

import "time"

// ActionKind identifies one class of privileged action observed on a scope.
type ActionKind string

const (
	ActionChannelCreate ActionKind = "channel_create"
	ActionChannelDelete ActionKind = "channel_delete"
	ActionChannelUpdate ActionKind = "channel_update"
	ActionRoleCreate    ActionKind = "role_create"
	ActionRoleDelete    ActionKind = "role_delete"
	ActionRoleUpdate    ActionKind = "role_update"
	ActionMemberBan     ActionKind = "member_ban"
	ActionMemberKick    ActionKind = "member_kick"
	ActionWebhookCreate ActionKind = "webhook_create"
	ActionWebhookDelete ActionKind = "webhook_delete"
)

// AllActionKinds lists every kind scored out of the box. Additional kinds
// can be introduced through per-scope action score overrides.
var AllActionKinds = []ActionKind{
	ActionChannelCreate,
	ActionChannelDelete,
	ActionChannelUpdate,
	ActionRoleCreate,
	ActionRoleDelete,
	ActionRoleUpdate,
	ActionMemberBan,
	ActionMemberKick,
	ActionWebhookCreate,
	ActionWebhookDelete,
}

func (k ActionKind) String() string {
	return string(k)
}

// Destructive reports whether the kind removes things from the scope.
func (k ActionKind) Destructive() bool {
	switch k {
	case ActionChannelDelete, ActionRoleDelete, ActionMemberBan, ActionMemberKick, ActionWebhookDelete:
		return true
	}
	return false
}

// DisplayName returns the label used in log channel notifications.
func (k ActionKind) DisplayName() string {
	switch k {
	case ActionChannelCreate:
		return "Channel Create"
	case ActionChannelDelete:
		return "Channel Delete"
	case ActionChannelUpdate:
		return "Channel Update"
	case ActionRoleCreate:
		return "Role Create"
	case ActionRoleDelete:
		return "Role Delete"
	case ActionRoleUpdate:
		return "Role Update"
	case ActionMemberBan:
		return "Member Ban"
	case ActionMemberKick:
		return "Member Kick"
	case ActionWebhookCreate:
		return "Webhook Create"
	case ActionWebhookDelete:
		return "Webhook Delete"
	default:
		return string(k)
	}
}

// ActionEvent is a single observed privileged action. Events are consumed
// once by the engine and are not retained beyond ledger aggregation.
type ActionEvent struct {
	ActorID    string
	ScopeID    string
	Kind       ActionKind
	OccurredAt time.Time
}

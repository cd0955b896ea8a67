package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestructiveClassification(t *testing.T) {
	destructive := map[ActionKind]bool{
		ActionChannelDelete: true,
		ActionRoleDelete:    true,
		ActionMemberBan:     true,
		ActionMemberKick:    true,
		ActionWebhookDelete: true,
	}
	for _, kind := range AllActionKinds {
		assert.Equal(t, destructive[kind], kind.Destructive(), "kind %s", kind)
	}
}

func TestDisplayNames(t *testing.T) {
	// Every built-in kind has a human label; ad-hoc kinds fall back to
	// their raw value.
	for _, kind := range AllActionKinds {
		assert.NotEqual(t, string(kind), kind.DisplayName(), "kind %s", kind)
	}
	assert.Equal(t, "emoji_yeet", ActionKind("emoji_yeet").DisplayName())
}

package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mastersh0w/citadel/internal/config"
)

// Discord implements the engine's outbound capability surface against the
// Discord API: role snapshots and edits through the session, bans through
// the fasthttp executor, notifications as embeds to the scope's log channel.
type Discord struct {
	session *discordgo.Session
	configs *config.Store
	bans    *BanExecutor
}

func NewDiscord(session *discordgo.Session, configs *config.Store, bans *BanExecutor) *Discord {
	return &Discord{session: session, configs: configs, bans: bans}
}

// GetMemberRoles snapshots the actor's current role IDs.
func (d *Discord) GetMemberRoles(ctx context.Context, actorID, scopeID string) ([]string, error) {
	member, err := d.session.GuildMember(scopeID, actorID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", actorID, err)
	}
	return append([]string(nil), member.Roles...), nil
}

// ApplyQuarantineRole strips the actor down to the scope's configured
// quarantine role, cutting off every privileged permission at once.
func (d *Discord) ApplyQuarantineRole(ctx context.Context, actorID, scopeID string) error {
	roleID := d.configs.Get(scopeID).QuarantineRoleID
	if roleID == "" {
		return fmt.Errorf("scope %s has no quarantine role configured", scopeID)
	}
	roles := []string{roleID}
	_, err := d.session.GuildMemberEdit(scopeID, actorID,
		&discordgo.GuildMemberParams{Roles: &roles}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("apply quarantine role: %w", err)
	}
	return nil
}

// RestoreRoles reinstates the role snapshot captured at quarantine time.
func (d *Discord) RestoreRoles(ctx context.Context, actorID, scopeID string, roles []string) error {
	restored := append([]string(nil), roles...)
	_, err := d.session.GuildMemberEdit(scopeID, actorID,
		&discordgo.GuildMemberParams{Roles: &restored}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("restore roles: %w", err)
	}
	return nil
}

// ExecuteBan removes the actor permanently.
func (d *Discord) ExecuteBan(ctx context.Context, actorID, scopeID, reason string) error {
	return d.bans.ExecuteBan(ctx, actorID, scopeID, reason)
}

// Notify posts an embed to the scope's log channel. Scopes without a log
// channel drop notifications silently.
func (d *Discord) Notify(ctx context.Context, scopeID, message string) error {
	channelID := d.configs.Get(scopeID).LogChannelID
	if channelID == "" {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Anti-Nuke Alert",
		Description: message,
		Color:       0xED4245,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Citadel Threat Engine"},
	}
	if _, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

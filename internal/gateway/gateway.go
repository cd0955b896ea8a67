package gateway

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mastersh0w/citadel/internal/engine"
	"github.com/mastersh0w/citadel/internal/logging"
	"github.com/mastersh0w/citadel/internal/models"
)

// Gateway bridges Discord gateway events into the threat engine. Most
// privileged events do not carry the acting user, so the actor is resolved
// from the guild audit log with a short-TTL cache in front.
type Gateway struct {
	session *discordgo.Session
	engine  *engine.Engine
	cache   *auditCache
	botID   string
}

func New(token string) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentGuildModeration |
		discordgo.IntentsGuildWebhooks

	return &Gateway{
		session: session,
		cache:   newAuditCache(5 * time.Second),
	}, nil
}

// Session exposes the underlying connection for the capability layer.
func (g *Gateway) Session() *discordgo.Session {
	return g.session
}

// Bind attaches the engine events are recorded into. Must be called before
// Open; the session is created first so the capability layer can share it.
func (g *Gateway) Bind(eng *engine.Engine) {
	g.engine = eng
}

// Open registers the event handlers and connects.
func (g *Gateway) Open() error {
	if g.engine == nil {
		return fmt.Errorf("gateway opened without an engine bound")
	}
	g.registerHandlers()
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	if g.session.State != nil && g.session.State.User != nil {
		g.botID = g.session.State.User.ID
	}
	logging.Info("gateway connected as bot %s", g.botID)
	return nil
}

func (g *Gateway) Close() error {
	return g.session.Close()
}

func (g *Gateway) registerHandlers() {
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelCreate) {
		g.record(e.GuildID, int(discordgo.AuditLogActionChannelCreate), models.ActionChannelCreate)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelDelete) {
		g.record(e.GuildID, int(discordgo.AuditLogActionChannelDelete), models.ActionChannelDelete)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelUpdate) {
		g.record(e.GuildID, int(discordgo.AuditLogActionChannelUpdate), models.ActionChannelUpdate)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleCreate) {
		g.record(e.GuildID, int(discordgo.AuditLogActionRoleCreate), models.ActionRoleCreate)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleDelete) {
		g.record(e.GuildID, int(discordgo.AuditLogActionRoleDelete), models.ActionRoleDelete)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleUpdate) {
		g.record(e.GuildID, int(discordgo.AuditLogActionRoleUpdate), models.ActionRoleUpdate)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildBanAdd) {
		g.record(e.GuildID, int(discordgo.AuditLogActionMemberBanAdd), models.ActionMemberBan)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
		// Only a kick leaves an audit trail; a voluntary leave resolves no
		// actor and is dropped.
		g.record(e.GuildID, int(discordgo.AuditLogActionMemberKick), models.ActionMemberKick)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.WebhooksUpdate) {
		g.record(e.GuildID, int(discordgo.AuditLogActionWebhookCreate), models.ActionWebhookCreate)
	})
}

func (g *Gateway) record(scopeID string, auditAction int, kind models.ActionKind) {
	actorID := g.resolveActor(scopeID, auditAction)
	if actorID == "" || actorID == g.botID {
		return
	}

	ev := models.ActionEvent{
		ActorID:    actorID,
		ScopeID:    scopeID,
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	}
	score, err := g.engine.RecordEvent(ev)
	if err != nil {
		logging.Warn("record %s by %s in %s: %v", kind, actorID, scopeID, err)
		return
	}
	if kind.Destructive() {
		logging.Info("scored %s: actor=%s scope=%s score=%.1f", kind, actorID, scopeID, score)
	} else {
		logging.Debug("scored %s: actor=%s scope=%s score=%.1f", kind, actorID, scopeID, score)
	}
}

// resolveActor finds who performed the action from the audit log.
func (g *Gateway) resolveActor(scopeID string, auditAction int) string {
	if actorID, ok := g.cache.get(scopeID, auditAction); ok {
		return actorID
	}

	audit, err := g.session.GuildAuditLog(scopeID, "", "", auditAction, 1)
	if err != nil {
		logging.Warn("audit log fetch failed for scope %s action %d: %v", scopeID, auditAction, err)
		return ""
	}
	if len(audit.AuditLogEntries) == 0 {
		return ""
	}

	entry := audit.AuditLogEntries[0]
	for _, user := range audit.Users {
		if user.ID == entry.UserID && user.Bot {
			// Bot actions are governed by their own limits; only humans and
			// compromised user tokens are scored.
			return ""
		}
	}

	g.cache.store(scopeID, auditAction, entry.UserID)
	return entry.UserID
}

// Package bot routes gateway events to the guards and commands.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/detectors"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/metrics"
	"github.com/styxgzi/nervesx-bot/internal/models"
)

type MessageGuard interface {
	OnMessage(ctx context.Context, m *discordgo.Message) detectors.Verdict
}

type JoinGuard interface {
	OnMemberJoin(ctx context.Context, m *discordgo.Member) detectors.JoinResult
	IsSuspect(ctx context.Context, guildID, userID string) bool
}

type BotJoinGuard interface {
	OnMemberJoin(ctx context.Context, m *discordgo.Member)
}

type AuditGuard interface {
	OnAuditEvent(ctx context.Context, guildID, actionType string) []models.Detection
}

type MemberUpdateGuard interface {
	OnMemberUpdate(ctx context.Context, guildID string, before, after *discordgo.Member) []models.Detection
}

type ProfileEnsurer interface {
	EnsureSecurityProfile(ctx context.Context, guildID, ownerID string) error
}

// ProfileInvalidator drops cached profile state for a guild.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, guildID string)
}

type InteractionHandler interface {
	HandleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate)
}

// Deps are the collaborators the router dispatches to. Nil guards are skipped.
type Deps struct {
	Spam      MessageGuard
	Links     MessageGuard
	Raid      JoinGuard
	BotAdd    BotJoinGuard
	Nuke      AuditGuard
	RoleGrant MemberUpdateGuard

	Profiles ProfileEnsurer
	Cache    ProfileInvalidator
	Sink     decision.LogSink
	Commands InteractionHandler

	// HandlerTimeout bounds one event's processing. Defaults to 30s.
	HandlerTimeout time.Duration
}

type Handlers struct {
	Deps
	now func() time.Time
}

func NewHandlers(deps Deps) *Handlers {
	if deps.HandlerTimeout <= 0 {
		deps.HandlerTimeout = 30 * time.Second
	}
	return &Handlers{Deps: deps, now: time.Now}
}

func (h *Handlers) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.HandlerTimeout)
}

// Register attaches every handler to the session.
func (h *Handlers) Register(s *Session) {
	s.AddHandler(h.onReady)
	s.AddHandler(h.onGuildCreate)
	s.AddHandler(h.onMessageCreate)
	s.AddHandler(h.onMessageUpdate)
	s.AddHandler(h.onMemberAdd)
	s.AddHandler(h.onMemberRemove)
	s.AddHandler(h.onMemberUpdate)
	s.AddHandler(h.onAuditLogEntry)
	s.AddHandler(h.onInteraction)
	logging.Info("[BOT] event handlers registered")
}

func (h *Handlers) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logging.Info("[BOT] ready as %s in %d guilds", r.User.Username, len(r.Guilds))
}

func (h *Handlers) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	metrics.IncrementIngress("guild_create")
	ctx, cancel := h.eventContext()
	defer cancel()

	if err := h.Profiles.EnsureSecurityProfile(ctx, g.ID, g.OwnerID); err != nil {
		logging.Error("[BOT] %v", err)
		return
	}
	if h.Cache != nil {
		h.Cache.Invalidate(ctx, g.ID)
	}
	logging.Info("[BOT] guild %s (%s) loaded, owner %s", g.Name, g.ID, g.OwnerID)
}

func (h *Handlers) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.GuildID == "" {
		return
	}
	metrics.IncrementIngress("message_create")
	defer metrics.ObserveHandler("message_create", time.Now())
	ctx, cancel := h.eventContext()
	defer cancel()

	if h.Spam != nil && h.Spam.OnMessage(ctx, m.Message) == detectors.VerdictJailed {
		return
	}
	if h.Links != nil {
		h.Links.OnMessage(ctx, m.Message)
	}
}

// onMessageUpdate catches links edited into an earlier message.
func (h *Handlers) onMessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil || m.GuildID == "" || h.Links == nil {
		return
	}
	metrics.IncrementIngress("message_update")
	ctx, cancel := h.eventContext()
	defer cancel()

	h.Links.OnMessage(ctx, m.Message)
}

func (h *Handlers) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil || m.GuildID == "" {
		return
	}
	metrics.IncrementIngress("member_add")
	defer metrics.ObserveHandler("member_add", time.Now())
	ctx, cancel := h.eventContext()
	defer cancel()

	risk := detectors.AccountRisk(m.User.ID, h.now())
	kind := "Member"
	if m.User.Bot {
		kind = "Bot"
	}
	h.Sink.SendLogMessage(ctx, m.GuildID, models.LogJoin,
		fmt.Sprintf("%s joined: <@%s> (%s), account %s, risk %d", kind, m.User.ID, m.User.Username, accountAge(m.User.ID, h.now()), risk), nil)

	if h.Raid != nil {
		h.Raid.OnMemberJoin(ctx, m.Member)
	}
	if h.BotAdd != nil && m.User.Bot {
		h.BotAdd.OnMemberJoin(ctx, m.Member)
	}
}

func (h *Handlers) onMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || m.User == nil || m.GuildID == "" {
		return
	}
	metrics.IncrementIngress("member_remove")
	ctx, cancel := h.eventContext()
	defer cancel()

	line := fmt.Sprintf("Member left: <@%s> (%s)", m.User.ID, m.User.Username)
	if h.Raid != nil && h.Raid.IsSuspect(ctx, m.GuildID, m.User.ID) {
		line += ", flagged as a suspected raid account"
	}
	h.Sink.SendLogMessage(ctx, m.GuildID, models.LogLeave, line, nil)
}

func (h *Handlers) onMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.User == nil || m.GuildID == "" || h.RoleGrant == nil {
		return
	}
	metrics.IncrementIngress("member_update")
	if m.BeforeUpdate == nil {
		logging.Debug("[BOT] member update for %s in guild %s without cached state", m.User.ID, m.GuildID)
		return
	}
	defer metrics.ObserveHandler("member_update", time.Now())
	ctx, cancel := h.eventContext()
	defer cancel()

	h.RoleGrant.OnMemberUpdate(ctx, m.GuildID, m.BeforeUpdate, m.Member)
}

func (h *Handlers) onAuditLogEntry(s *discordgo.Session, e *discordgo.GuildAuditLogEntryCreate) {
	if e.AuditLogEntry == nil || e.GuildID == "" || e.ActionType == nil || h.Nuke == nil {
		return
	}
	metrics.IncrementIngress("audit_log_entry")
	action, ok := models.ActionTypeFromAudit(*e.ActionType)
	if !ok {
		return
	}
	defer metrics.ObserveHandler("audit_log_entry", time.Now())
	ctx, cancel := h.eventContext()
	defer cancel()

	for _, d := range h.Nuke.OnAuditEvent(ctx, e.GuildID, string(action)) {
		logging.Warn("[NUKE] %s jailed in guild %s: %s", d.ActorID, d.GuildID, d.Reason)
	}
}

func (h *Handlers) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h.Commands == nil {
		return
	}
	metrics.IncrementIngress("interaction")
	defer metrics.ObserveHandler("interaction", time.Now())
	ctx, cancel := h.eventContext()
	defer cancel()

	h.Commands.HandleInteraction(ctx, s, i)
}

func accountAge(userID string, now time.Time) string {
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return "of unknown age"
	}
	age := now.Sub(created)
	switch {
	case age < time.Hour:
		return fmt.Sprintf("created %d minutes ago", int(age.Minutes()))
	case age < 48*time.Hour:
		return fmt.Sprintf("created %d hours ago", int(age.Hours()))
	}
	return fmt.Sprintf("created %d days ago", int(age.Hours()/24))
}

package detectors

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/config"
	"github.com/styxgzi/nervesx-bot/internal/counter"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

type NukeOptions struct {
	Window     time.Duration
	AuditLimit int
}

// NukeGuard counts destructive actions per guild and action type. When a
// counter reaches its threshold the audit log is consulted and every
// executor who alone reached the threshold inside the window is jailed.
type NukeGuard struct {
	window     *counter.RateWindow
	thresholds config.Thresholds
	platform   platform.Platform
	profiles   authority.ProfileSource
	punisher   Escalator
	sink       decision.LogSink
	opts       NukeOptions
	now        func() time.Time
}

func NewNukeGuard(window *counter.RateWindow, thresholds config.Thresholds, p platform.Platform, profiles authority.ProfileSource, punisher Escalator, sink decision.LogSink, opts NukeOptions) *NukeGuard {
	if opts.Window <= 0 {
		opts.Window = 60 * time.Second
	}
	if opts.AuditLimit <= 0 {
		opts.AuditLimit = 100
	}
	return &NukeGuard{
		window:     window,
		thresholds: thresholds,
		platform:   p,
		profiles:   profiles,
		punisher:   punisher,
		sink:       sink,
		opts:       opts,
		now:        time.Now,
	}
}

func (g *NukeGuard) WithClock(now func() time.Time) *NukeGuard {
	g.now = now
	return g
}

func nukeKey(guildID string, action models.ActionType) string {
	return "nuke:" + guildID + ":" + string(action)
}

// OnAuditEvent handles one audit-log event. It returns the executors that
// were escalated.
func (g *NukeGuard) OnAuditEvent(ctx context.Context, guildID, actionType string) []models.Detection {
	action, ok := models.ParseActionType(actionType)
	if !ok {
		return nil
	}
	threshold, ok := g.thresholds.For(action)
	if !ok {
		return nil
	}

	key := nukeKey(guildID, action)
	count := g.window.Hit(ctx, key, g.opts.Window)
	if count == counter.NoCount || count < threshold {
		return nil
	}
	detections.WithLabelValues(guardNuke).Inc()

	if !g.canReadAudit(ctx, guildID) {
		return nil
	}
	auditAction, ok := action.AuditAction()
	if !ok {
		return nil
	}
	entries, err := g.platform.AuditLog(ctx, guildID, auditAction, g.opts.AuditLimit)
	if err != nil {
		guardFailed(guardNuke, "audit log %s in guild %s: %v", action, guildID, err)
		return nil
	}

	executors, perExecutor := g.attribute(entries)
	if len(executors) == 0 {
		logging.Debug("[NUKE] %s burst in guild %s has no attributable entries", action, guildID)
		return nil
	}

	profile, err := g.profiles.Profile(ctx, guildID)
	if err != nil {
		guardFailed(guardNuke, "profile for guild %s: %v", guildID, err)
		return nil
	}

	var out []models.Detection
	for _, executor := range executors {
		n := perExecutor[executor]
		if n < threshold {
			continue
		}
		if authority.IsImmune(executor, g.platform.SelfID(), profile) {
			logging.Debug("[NUKE] %s by immune %s in guild %s ignored", action, executor, guildID)
			continue
		}

		reason := fmt.Sprintf("nuke: %d %s within %s", n, action, g.opts.Window)
		res, err := g.punisher.Escalate(ctx, guildID, executor, reason)
		if err != nil {
			logging.Warn("[NUKE] jail of %s in guild %s failed: %v", executor, guildID, err)
			continue
		}
		if res.Suppressed {
			continue
		}
		logging.LogIncident(logging.Incident{
			GuildID: guildID,
			ActorID: executor,
			Guard:   guardNuke,
			Action:  string(action),
			Outcome: jailOutcome(res),
			Reason:  reason,
			Count:   n,
		})
		out = append(out, models.Detection{
			GuildID:  guildID,
			ActorID:  executor,
			Guard:    guardNuke,
			Action:   action,
			Count:    n,
			Reason:   reason,
			DetectAt: g.now(),
		})
	}

	if len(out) > 0 {
		g.window.Reset(ctx, key)
	}
	return out
}

// attribute groups in-window entries by executor, preserving the order in
// which executors first appear.
func (g *NukeGuard) attribute(entries []*discordgo.AuditLogEntry) ([]string, map[string]int64) {
	now := g.now()
	var order []string
	counts := make(map[string]int64)
	for _, e := range entries {
		if e.UserID == "" || !inWindow(e.ID, now, g.opts.Window) {
			continue
		}
		if _, seen := counts[e.UserID]; !seen {
			order = append(order, e.UserID)
		}
		counts[e.UserID]++
	}
	return order, counts
}

func (g *NukeGuard) canReadAudit(ctx context.Context, guildID string) bool {
	guild, err := g.platform.Guild(ctx, guildID)
	if err != nil {
		guardFailed(guardNuke, "guild %s: %v", guildID, err)
		return false
	}
	bot, err := platform.BotMember(ctx, g.platform, guildID)
	if err != nil {
		guardFailed(guardNuke, "bot member in guild %s: %v", guildID, err)
		return false
	}
	if authority.MemberPermissions(guild, g.platform.SelfID(), bot.Roles)&discordgo.PermissionViewAuditLogs != 0 {
		return true
	}
	logging.Warn("[NUKE] missing View Audit Log in guild %s, detection skipped", guildID)
	g.sink.SendLogMessage(ctx, guildID, models.LogModerator,
		"Anti-nuke cannot attribute actions: the bot is missing the View Audit Log permission.", nil)
	return false
}

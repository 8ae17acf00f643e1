package detectors

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// RoleGrantGuard reverts grants of dangerous roles made by accounts that
// may not hand them out, and jails the granter.
type RoleGrantGuard struct {
	platform platform.Platform
	profiles authority.ProfileSource
	punisher Escalator
	sink     decision.LogSink
	window   time.Duration
	now      func() time.Time
}

func NewRoleGrantGuard(p platform.Platform, profiles authority.ProfileSource, punisher Escalator, sink decision.LogSink) *RoleGrantGuard {
	return &RoleGrantGuard{
		platform: p,
		profiles: profiles,
		punisher: punisher,
		sink:     sink,
		window:   60 * time.Second,
		now:      time.Now,
	}
}

func (g *RoleGrantGuard) WithClock(now func() time.Time) *RoleGrantGuard {
	g.now = now
	return g
}

// OnMemberUpdate inspects roles present in after but not in before. Without
// a before snapshot nothing can be diffed and the update is ignored.
func (g *RoleGrantGuard) OnMemberUpdate(ctx context.Context, guildID string, before, after *discordgo.Member) []models.Detection {
	if before == nil || after == nil || after.User == nil {
		return nil
	}
	var added []string
	for _, id := range after.Roles {
		if !slices.Contains(before.Roles, id) {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return nil
	}

	guild, err := g.platform.Guild(ctx, guildID)
	if err != nil {
		guardFailed(guardRoleGrant, "guild %s: %v", guildID, err)
		return nil
	}
	profile, err := g.profiles.Profile(ctx, guildID)
	if err != nil {
		guardFailed(guardRoleGrant, "profile for guild %s: %v", guildID, err)
		return nil
	}

	var dangerous []*discordgo.Role
	for _, id := range added {
		if role := authority.RoleByID(guild, id); authority.IsDangerousRole(role, profile) {
			dangerous = append(dangerous, role)
		}
	}
	if len(dangerous) == 0 {
		return nil
	}

	entries, err := g.platform.AuditLog(ctx, guildID, discordgo.AuditLogActionMemberRoleUpdate, 25)
	if err != nil {
		guardFailed(guardRoleGrant, "audit log in guild %s: %v", guildID, err)
		return nil
	}
	targetID := after.User.ID
	executor := findExecutor(entries, targetID, g.now(), g.window)
	if executor == "" || executor == g.platform.SelfID() {
		return nil
	}

	var executorRoles []string
	if m, err := g.platform.Member(ctx, guildID, executor); err == nil {
		executorRoles = m.Roles
	}
	tier := authority.TierOf(executor, executorRoles, profile)

	var out []models.Detection
	for _, role := range dangerous {
		d := authority.CanGrantRole(tier, role, profile)
		if d.Allowed {
			continue
		}
		detections.WithLabelValues(guardRoleGrant).Inc()
		reason := fmt.Sprintf("unauthorized grant of %s to %s: %s", role.Name, targetID, d.Reason)

		if err := g.platform.RemoveMemberRole(ctx, guildID, targetID, role.ID, "unauthorized dangerous role grant"); err != nil {
			logging.Warn("[ROLE_GRANT] could not remove %s from %s: %v", role.Name, targetID, err)
		}
		if !authority.IsImmune(executor, g.platform.SelfID(), profile) {
			if _, err := g.punisher.Escalate(ctx, guildID, executor, reason); err != nil {
				logging.Warn("[ROLE_GRANT] jail of %s in guild %s failed: %v", executor, guildID, err)
			}
		}
		g.sink.SendLogMessage(ctx, guildID, models.LogModerator,
			fmt.Sprintf("<@%s> tried to grant **%s** to <@%s>; the role was removed.", executor, role.Name, targetID), nil)

		out = append(out, models.Detection{
			GuildID:  guildID,
			ActorID:  executor,
			Guard:    guardRoleGrant,
			Action:   models.ActionMemberRoleUpdate,
			Count:    1,
			Reason:   reason,
			DetectAt: g.now(),
		})
	}
	return out
}

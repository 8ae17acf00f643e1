package decision

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

type JailResult struct {
	// Created is false when an earlier snapshot was kept and only the jail
	// role was re-applied.
	Created bool
	// Suppressed is set by Escalate when the member is still cooling down.
	Suppressed bool
	Snapshot   []string
}

type UnjailResult struct {
	Restored []string
	Skipped  []string
}

// Escalate is the guard entry point: Jail, unless the same member was
// escalated within the cooldown.
func (e *Engine) Escalate(ctx context.Context, guildID, memberID, reason string) (JailResult, error) {
	key := CooldownKey(guildID, memberID)
	if !e.cooldown.TryAcquire(key) {
		recordDecision("jail", outcomeSuppressed, guildID, memberID,
			fmt.Sprintf("%s (cooling down for %s)", reason, e.cooldown.GetRemainingCooldown(key).Round(time.Second)))
		return JailResult{Suppressed: true}, nil
	}
	return e.Jail(ctx, guildID, memberID, reason)
}

// Jail snapshots the member's roles and replaces them with the jail role.
// Jailing an already jailed member keeps the first snapshot.
func (e *Engine) Jail(ctx context.Context, guildID, memberID, reason string) (JailResult, error) {
	res, err := e.jail(ctx, guildID, memberID, reason)
	if err != nil {
		recordDecision("jail", outcomeOf(err), guildID, memberID, err.Error())
		logging.Warn("[JAIL] %s in guild %s not jailed: %v", memberID, guildID, err)
		return res, err
	}
	outcome := outcomeApplied
	if !res.Created {
		outcome = outcomeReapplied
	}
	recordDecision("jail", outcome, guildID, memberID, reason)
	return res, nil
}

func (e *Engine) jail(ctx context.Context, guildID, memberID, reason string) (JailResult, error) {
	gc, err := e.load(ctx, guildID)
	if err != nil {
		return JailResult{}, err
	}
	jailRole, err := gc.role(e.opts.JailRole)
	if err != nil {
		return JailResult{}, err
	}
	if err := e.immune(gc, memberID); err != nil {
		return JailResult{}, err
	}

	member, err := e.platform.Member(ctx, guildID, memberID)
	if err != nil {
		return JailResult{}, err
	}
	snapshot := make([]string, 0, len(member.Roles))
	for _, id := range member.Roles {
		if id == guildID || id == jailRole.ID {
			continue
		}
		snapshot = append(snapshot, id)
	}

	created, err := e.store.CreateJailRecord(ctx, &models.JailRecord{
		GuildID:  guildID,
		MemberID: memberID,
		RoleIDs:  snapshot,
		Reason:   reason,
		JailedAt: e.now(),
	})
	if err != nil {
		return JailResult{}, err
	}
	if !created {
		if rec, err := e.store.GetJailRecord(ctx, guildID, memberID); err == nil && rec != nil {
			snapshot = rec.RoleIDs
		}
	}

	if err := e.platform.SetMemberRoles(ctx, guildID, memberID, []string{jailRole.ID}, reason); err != nil {
		if created {
			if derr := e.store.DeleteJailRecord(ctx, guildID, memberID); derr != nil {
				logging.Error("[JAIL] failed to roll back jail record for %s in guild %s: %v", memberID, guildID, derr)
			}
		}
		return JailResult{}, fmt.Errorf("failed to apply jail role: %w", err)
	}

	if created {
		if err := e.platform.SendDirectMessage(ctx, memberID, "", notifier.JailNoticeEmbed(gc.guild.Name, reason)); err != nil {
			logging.Debug("[JAIL] could not DM %s: %v", memberID, err)
		}
	}
	e.sink.SendLogMessage(ctx, guildID, models.LogJail,
		fmt.Sprintf("<@%s> jailed: %s", memberID, reason),
		notifier.JailEmbed(memberID, reason, snapshot, created))

	logging.Info("[JAIL] %s jailed in guild %s (new=%t, %d roles saved): %s", memberID, guildID, created, len(snapshot), reason)
	return JailResult{Created: created, Snapshot: snapshot}, nil
}

// Unjail restores the snapshot of a jailed member. Roles that were deleted,
// are integration-managed or sit above the automation account are skipped;
// the record is removed once the restore attempt completes.
func (e *Engine) Unjail(ctx context.Context, guildID string, actor authority.Subject, memberID string) (UnjailResult, error) {
	res, err := e.unjail(ctx, guildID, actor, memberID)
	if err != nil {
		recordDecision("unjail", outcomeOf(err), guildID, memberID, err.Error())
		logging.Warn("[JAIL] %s in guild %s not released by %s: %v", memberID, guildID, actor.ID, err)
		return res, err
	}
	recordDecision("unjail", outcomeApplied, guildID, memberID, fmt.Sprintf("released by %s", actor.ID))
	return res, nil
}

func (e *Engine) unjail(ctx context.Context, guildID string, actor authority.Subject, memberID string) (UnjailResult, error) {
	gc, err := e.load(ctx, guildID)
	if err != nil {
		return UnjailResult{}, err
	}
	member, err := e.platform.Member(ctx, guildID, memberID)
	if err != nil {
		return UnjailResult{}, err
	}

	rec, err := e.store.GetJailRecord(ctx, guildID, memberID)
	if err != nil {
		return UnjailResult{}, err
	}

	// a jailed member only holds the jail role; their rank comes from the snapshot
	targetRoles := member.Roles
	if rec != nil {
		targetRoles = unionRoles(member.Roles, rec.RoleIDs)
	}
	d := authority.CanRelease(
		authority.TierOf(actor.ID, actor.RoleIDs, gc.profile), actor.ID,
		authority.TierOf(memberID, targetRoles, gc.profile), memberID)
	if !d.Allowed {
		return UnjailResult{}, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Reason)
	}
	if rec == nil {
		return UnjailResult{}, ErrNotJailed
	}

	var res UnjailResult
	for _, id := range rec.RoleIDs {
		role := authority.RoleByID(gc.guild, id)
		if role == nil || !authority.CanManageRole(gc.guild, gc.botTop, role) {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		res.Restored = append(res.Restored, id)
	}

	reason := fmt.Sprintf("released by %s", actor.ID)
	if err := e.platform.SetMemberRoles(ctx, guildID, memberID, res.Restored, reason); err != nil {
		logging.Warn("[JAIL] bulk restore for %s failed, restoring one by one: %v", memberID, err)
		res = e.restoreEach(ctx, gc.guild, member, res, reason)
	}

	if err := e.store.DeleteJailRecord(ctx, guildID, memberID); err != nil {
		return res, err
	}
	// a released member is punished again on the next offence
	e.cooldown.Reset(CooldownKey(guildID, memberID))

	e.sink.SendLogMessage(ctx, guildID, models.LogJail,
		fmt.Sprintf("<@%s> released by <@%s>", memberID, actor.ID),
		notifier.UnjailEmbed(memberID, actor.ID, res.Restored, res.Skipped))
	logging.Info("[JAIL] %s released in guild %s by %s (%d restored, %d skipped)", memberID, guildID, actor.ID, len(res.Restored), len(res.Skipped))
	return res, nil
}

// restoreEach is the fallback when the bulk role replacement fails.
func (e *Engine) restoreEach(ctx context.Context, guild *discordgo.Guild, member *discordgo.Member, planned UnjailResult, reason string) UnjailResult {
	if jailRole := authority.RoleByName(guild, e.opts.JailRole); jailRole != nil && slices.Contains(member.Roles, jailRole.ID) {
		if err := e.platform.RemoveMemberRole(ctx, guild.ID, member.User.ID, jailRole.ID, reason); err != nil {
			logging.Warn("[JAIL] failed to remove jail role from %s: %v", member.User.ID, err)
		}
	}
	res := UnjailResult{Skipped: planned.Skipped}
	for _, id := range planned.Restored {
		if err := e.platform.AddMemberRole(ctx, guild.ID, member.User.ID, id, reason); err != nil {
			logging.Warn("[JAIL] failed to restore role %s to %s: %v", id, member.User.ID, err)
			res.Skipped = append(res.Skipped, id)
			continue
		}
		res.Restored = append(res.Restored, id)
	}
	return res
}

func unionRoles(a, b []string) []string {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

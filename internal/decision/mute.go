package decision

import (
	"context"
	"fmt"
	"slices"

	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
)

// Mute ensures the mute role is present and the member is voice muted. It is
// idempotent; a voice mute failure is logged only.
func (e *Engine) Mute(ctx context.Context, guildID, memberID, reason string) error {
	err := e.setMuted(ctx, guildID, memberID, reason, true)
	e.recordToggle("mute", guildID, memberID, reason, err)
	return err
}

func (e *Engine) Unmute(ctx context.Context, guildID, memberID, reason string) error {
	err := e.setMuted(ctx, guildID, memberID, reason, false)
	e.recordToggle("unmute", guildID, memberID, reason, err)
	return err
}

func (e *Engine) recordToggle(kind, guildID, memberID, reason string, err error) {
	if err != nil {
		recordDecision(kind, outcomeOf(err), guildID, memberID, err.Error())
		logging.Warn("[MUTE] %s of %s in guild %s failed: %v", kind, memberID, guildID, err)
		return
	}
	recordDecision(kind, outcomeApplied, guildID, memberID, reason)
}

func (e *Engine) setMuted(ctx context.Context, guildID, memberID, reason string, mute bool) error {
	gc, err := e.load(ctx, guildID)
	if err != nil {
		return err
	}
	if mute {
		if err := e.immune(gc, memberID); err != nil {
			return err
		}
	}
	role, err := gc.role(e.opts.MuteRole)
	if err != nil {
		return err
	}
	member, err := e.platform.Member(ctx, guildID, memberID)
	if err != nil {
		return err
	}

	hasRole := slices.Contains(member.Roles, role.ID)
	switch {
	case mute && !hasRole:
		err = e.platform.AddMemberRole(ctx, guildID, memberID, role.ID, reason)
	case !mute && hasRole:
		err = e.platform.RemoveMemberRole(ctx, guildID, memberID, role.ID, reason)
	}
	if err != nil {
		return fmt.Errorf("failed to toggle mute role: %w", err)
	}

	if member.Mute != mute {
		if err := e.platform.SetVoiceMute(ctx, guildID, memberID, mute); err != nil {
			logging.Debug("[MUTE] voice flag for %s not changed: %v", memberID, err)
		}
	}

	verb := "muted"
	if !mute {
		verb = "unmuted"
	}
	e.sink.SendLogMessage(ctx, guildID, models.LogModerator, fmt.Sprintf("<@%s> %s: %s", memberID, verb, reason), nil)
	return nil
}

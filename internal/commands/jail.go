package commands

import (
	"context"
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

const defaultReason = "no reason given"

// handleJail handles /jail member reason
func (h *Handler) handleJail(ctx context.Context, req Request) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierModerator); err != nil {
		return Reply{}, err
	}
	target := req.id("member")
	if err := h.checkAct(ctx, req, target); err != nil {
		return Reply{}, err
	}

	reason := req.str("reason")
	if reason == "" {
		reason = defaultReason
	}
	reason = fmt.Sprintf("%s (by %s)", reason, req.Actor.ID)

	res, err := h.Punisher.Jail(ctx, req.GuildID, target, reason)
	if err != nil {
		return Reply{}, err
	}

	content := fmt.Sprintf("✅ <@%s> has been jailed.", target)
	if !res.Created {
		content = fmt.Sprintf("✅ <@%s> was already jailed, the jail role was re-applied.", target)
	}
	return Reply{Content: content, Embed: notifier.JailEmbed(target, reason, res.Snapshot, res.Created)}, nil
}

// handleUnjail handles /unjail member. The release rule is enforced by the
// punisher, which needs the target's current roles.
func (h *Handler) handleUnjail(ctx context.Context, req Request) (Reply, error) {
	target := req.id("member")
	if target == "" {
		return Reply{}, fmt.Errorf("a member is required")
	}
	res, err := h.Punisher.Unjail(ctx, req.GuildID, req.Actor, target)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Content: fmt.Sprintf("✅ <@%s> has been released.", target),
		Embed:   notifier.UnjailEmbed(target, req.Actor.ID, res.Restored, res.Skipped),
	}, nil
}

// handleMute handles /mute and /unmute
func (h *Handler) handleMute(ctx context.Context, req Request, mute bool) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierModerator); err != nil {
		return Reply{}, err
	}
	target := req.id("member")
	if err := h.checkAct(ctx, req, target); err != nil {
		return Reply{}, err
	}

	if mute {
		if err := h.Punisher.Mute(ctx, req.GuildID, target, fmt.Sprintf("muted by %s", req.Actor.ID)); err != nil {
			return Reply{}, err
		}
		return Reply{Content: fmt.Sprintf("✅ <@%s> has been muted.", target)}, nil
	}
	if err := h.Punisher.Unmute(ctx, req.GuildID, target, fmt.Sprintf("unmuted by %s", req.Actor.ID)); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("✅ <@%s> has been unmuted.", target)}, nil
}

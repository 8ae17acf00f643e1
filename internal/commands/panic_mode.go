package commands

import (
	"context"
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

// handleLockdown handles /lockdown start|end|status. A manual end cancels
// the pending automatic revert.
func (h *Handler) handleLockdown(ctx context.Context, req Request) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierAdmin); err != nil {
		return Reply{}, err
	}

	switch req.Sub {
	case "start":
		reason := req.str("reason")
		if reason == "" {
			reason = defaultReason
		}
		engaged, err := h.Lockdown.ActivateLockdown(ctx, req.GuildID, fmt.Sprintf("%s (by %s)", reason, req.Actor.ID))
		if !engaged {
			return Reply{Content: "A lockdown is already active."}, nil
		}
		if err != nil {
			return Reply{}, err
		}
		return Reply{Embed: notifier.Embed("⚠️ Lockdown Engaged", "Verification raised and slow-mode enabled on text channels.", notifier.ColorRed,
			notifier.Field("Reason", reason, false),
		)}, nil
	case "end":
		if !h.Lockdown.DeactivateLockdown(ctx, req.GuildID) {
			return Reply{Content: "No lockdown is active."}, nil
		}
		return Reply{Embed: notifier.Embed("Lockdown Lifted", "Verification and slow-mode restored to their previous values.", notifier.ColorGreen)}, nil
	case "status":
		revertAt, active := h.Lockdown.Status(req.GuildID)
		if !active {
			return Reply{Content: "No lockdown is active."}, nil
		}
		return Reply{Content: fmt.Sprintf("🔒 A lockdown is active and lifts automatically <t:%d:R>.", revertAt.Unix())}, nil
	}
	return Reply{}, fmt.Errorf("unknown subcommand: %s", req.Sub)
}

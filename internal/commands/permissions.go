package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// requireTier fails unless the actor's tier is at least min. Whitelisted
// ranks below Moderator, so it never unlocks a command.
func (h *Handler) requireTier(ctx context.Context, req Request, min authority.Tier) (authority.Tier, error) {
	tier, err := h.Resolver.Resolve(ctx, req.GuildID, req.Actor)
	if err != nil {
		return tier, err
	}
	if tier < min {
		return tier, fmt.Errorf("%w: /%s requires %s or above", decision.ErrPermissionDenied, req.Command, min)
	}
	return tier, nil
}

// subject loads the target's current roles. A member who left the guild is
// resolved by id alone.
func (h *Handler) subject(ctx context.Context, guildID, userID string) (authority.Subject, error) {
	m, err := h.Platform.Member(ctx, guildID, userID)
	if errors.Is(err, platform.ErrNotFound) {
		return authority.Subject{ID: userID}, nil
	}
	if err != nil {
		return authority.Subject{}, err
	}
	return authority.Subject{ID: userID, RoleIDs: m.Roles}, nil
}

// checkAct applies CanAct between the invoker and targetID.
func (h *Handler) checkAct(ctx context.Context, req Request, targetID string) error {
	if targetID == "" {
		return errors.New("a member is required")
	}
	target, err := h.subject(ctx, req.GuildID, targetID)
	if err != nil {
		return err
	}
	d, err := h.Resolver.Check(ctx, req.GuildID, req.Actor, target)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", decision.ErrPermissionDenied, d.Reason)
	}
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

type bound struct {
	option   string
	min, max int64
}

var antiSpamBounds = []bound{
	{option: "window", min: 1, max: 60},
	{option: "max", min: 1, max: 100},
	{option: "warnings", min: 1, max: 10},
}

// handleAntiSpam handles /antispam window max warnings. Omitted options keep
// their current value.
func (h *Handler) handleAntiSpam(ctx context.Context, req Request) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierAdmin); err != nil {
		return Reply{}, err
	}

	current := models.DefaultAntiSpamPolicy()
	if h.Policies != nil {
		p, err := h.Policies.AntiSpamPolicy(ctx, req.GuildID)
		if err != nil {
			return Reply{}, fmt.Errorf("failed to load anti-spam policy: %w", err)
		}
		current = p
	}

	values := map[string]*int{
		"window":   &current.WindowSeconds,
		"max":      &current.MaxMessagesPerWindow,
		"warnings": &current.MaxWarnings,
	}
	for _, b := range antiSpamBounds {
		v, ok := req.integer(b.option)
		if !ok {
			continue
		}
		if v < b.min || v > b.max {
			return Reply{}, fmt.Errorf("%s must be between %d and %d", b.option, b.min, b.max)
		}
		*values[b.option] = int(v)
	}

	if err := h.Store.SetAntiSpamPolicy(ctx, req.GuildID, current); err != nil {
		return Reply{}, fmt.Errorf("failed to save anti-spam policy: %w", err)
	}
	h.Cache.Invalidate(ctx, req.GuildID)

	h.Sink.SendLogMessage(ctx, req.GuildID, models.LogServer,
		fmt.Sprintf("Anti-spam policy changed by <@%s>: %d messages in %ds, %d warnings",
			req.Actor.ID, current.MaxMessagesPerWindow, current.WindowSeconds, current.MaxWarnings), nil)

	return Reply{Embed: notifier.Embed("Configuration Updated", "The anti-spam policy has been modified.", notifier.ColorBlue,
		notifier.Field("Time Window", fmt.Sprintf("`%d` seconds", current.WindowSeconds), true),
		notifier.Field("Message Limit", fmt.Sprintf("`%d` messages", current.MaxMessagesPerWindow), true),
		notifier.Field("Warnings", fmt.Sprintf("`%d` before jail", current.MaxWarnings), true),
	)}, nil
}

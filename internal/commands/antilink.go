package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

// handleAntiLink handles /antilink allow|disallow channel and /antilink list.
func (h *Handler) handleAntiLink(ctx context.Context, req Request) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierAdmin); err != nil {
		return Reply{}, err
	}

	if req.Sub == "list" {
		ids, err := h.Store.LinkAllowedChannels(ctx, req.GuildID)
		if err != nil {
			return Reply{}, err
		}
		if len(ids) == 0 {
			return Reply{Content: "Links are not allowed in any channel. Invites are always removed."}, nil
		}
		mentions := make([]string, len(ids))
		for i, id := range ids {
			mentions[i] = "<#" + id + ">"
		}
		return Reply{Embed: notifier.Embed("Link-allowed channels", strings.Join(mentions, "\n"), notifier.ColorBlue)}, nil
	}

	channelID := req.id("channel")
	if channelID == "" {
		return Reply{}, fmt.Errorf("a channel is required")
	}

	var err error
	var msg string
	switch req.Sub {
	case "allow":
		if err = h.requireChannel(ctx, req.GuildID, channelID); err != nil {
			return Reply{}, err
		}
		err = h.Store.AddLinkAllowedChannel(ctx, req.GuildID, channelID)
		msg = fmt.Sprintf("Links are now allowed in <#%s>.", channelID)
	case "disallow":
		err = h.Store.RemoveLinkAllowedChannel(ctx, req.GuildID, channelID)
		msg = fmt.Sprintf("Links are no longer allowed in <#%s>.", channelID)
	default:
		return Reply{}, fmt.Errorf("unknown subcommand: %s", req.Sub)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("failed to save configuration: %w", err)
	}

	h.Sink.SendLogMessage(ctx, req.GuildID, models.LogModerator, fmt.Sprintf("%s (by <@%s>)", msg, req.Actor.ID), nil)
	return Reply{Content: "✅ " + msg}, nil
}

func (h *Handler) requireChannel(ctx context.Context, guildID, channelID string) error {
	guild, err := h.Platform.Guild(ctx, guildID)
	if err != nil {
		return err
	}
	for _, ch := range guild.Channels {
		if ch.ID == channelID {
			return nil
		}
	}
	return fmt.Errorf("channel <#%s> is not in this server", channelID)
}

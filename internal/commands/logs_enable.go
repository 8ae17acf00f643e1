package commands

import (
	"context"
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

// handleLogs handles /logs type channel
func (h *Handler) handleLogs(ctx context.Context, req Request) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierAdmin); err != nil {
		return Reply{}, err
	}

	t := models.LogChannelType(req.str("type"))
	if !t.Valid() {
		return Reply{}, fmt.Errorf("unknown log type: %q", t)
	}
	channelID := req.id("channel")
	if channelID == "" {
		return Reply{}, fmt.Errorf("a channel is required")
	}

	guild, err := h.Platform.Guild(ctx, req.GuildID)
	if err != nil {
		return Reply{}, err
	}
	name := ""
	for _, ch := range guild.Channels {
		if ch.ID == channelID {
			name = ch.Name
			break
		}
	}
	if name == "" {
		return Reply{}, fmt.Errorf("channel <#%s> is not in this server", channelID)
	}

	if err := h.Store.SetLogChannel(ctx, &models.LogChannel{GuildID: req.GuildID, Type: t, ID: channelID, Name: name}); err != nil {
		return Reply{}, fmt.Errorf("failed to save configuration: %w", err)
	}

	test := notifier.Embed("Logging Enabled", fmt.Sprintf("This channel will now receive **%s** logs.", t), notifier.ColorGreen)
	if err := h.Platform.SendChannelMessage(ctx, channelID, "", test); err != nil {
		return Reply{}, fmt.Errorf("failed to send test message (check bot permissions): %w", err)
	}

	return Reply{Embed: notifier.Embed("Log Channel Configured", fmt.Sprintf("**%s** logs will be sent to <#%s>", t, channelID), notifier.ColorGreen)}, nil
}

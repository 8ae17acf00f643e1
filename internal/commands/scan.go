package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

// embeds hold at most 25 fields
const maxReportFields = 25

// handleScan handles /scan: a report of risky roles and public channels.
func (h *Handler) handleScan(ctx context.Context, req Request) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierAdmin); err != nil {
		return Reply{}, err
	}
	guild, err := h.Platform.Guild(ctx, req.GuildID)
	if err != nil {
		return Reply{}, err
	}
	profile, err := h.Resolver.Profile(ctx, req.GuildID)
	if err != nil {
		return Reply{}, err
	}

	risks := authority.SecurityReport(guild, profile)
	if len(risks) == 0 {
		return Reply{Embed: notifier.Embed("Security scan", "No risky roles or public channels found.", notifier.ColorGreen)}, nil
	}

	high := 0
	fields := make([]*discordgo.MessageEmbedField, 0, min(len(risks), maxReportFields))
	for _, r := range risks {
		if r.Level == authority.RiskHigh {
			high++
		}
		if len(fields) < maxReportFields {
			fields = append(fields, notifier.Field(r.Level.String()+" risk",
				fmt.Sprintf("**Issue**: %s\n**Remediation**: %s", r.Issue, r.Remediation), false))
		}
	}
	color := notifier.ColorOrange
	if high > 0 {
		color = notifier.ColorRed
	}
	summary := fmt.Sprintf("%d findings, %d high risk.", len(risks), high)
	if len(risks) > maxReportFields {
		summary += fmt.Sprintf(" Showing the first %d.", maxReportFields)
	}
	return Reply{Embed: notifier.Embed("Security scan", summary, color, fields...)}, nil
}

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
)

// handleSecurityView handles /security view
func (h *Handler) handleSecurityView(ctx context.Context, req Request) (Reply, error) {
	if _, err := h.requireTier(ctx, req, authority.TierModerator); err != nil {
		return Reply{}, err
	}
	p, err := h.Resolver.Profile(ctx, req.GuildID)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to fetch security profile: %w", err)
	}
	if p == nil {
		p = &models.SecurityProfile{GuildID: req.GuildID}
	}

	owner := "not set"
	if p.OwnerID != "" {
		owner = "<@" + p.OwnerID + ">"
	}
	fields := []*discordgo.MessageEmbedField{
		notifier.Field("Owner", owner, true),
		notifier.Field("Second Owners", mentions(p.SecondOwners, "<@%s>"), true),
		notifier.Field("Admins", joinNonEmpty(mentions(p.AdminIDs, "<@%s>"), mentions(p.AdminRoles, "<@&%s>")), false),
		notifier.Field("Moderators", joinNonEmpty(mentions(p.ModIDs, "<@%s>"), mentions(p.ModRoles, "<@&%s>")), false),
		notifier.Field("Whitelisted Users", mentions(p.WhitelistedUserIDs, "<@%s>"), false),
		notifier.Field("Dangerous Roles", mentions(p.DangerousRoleIDs, "<@&%s>"), false),
	}

	if h.Policies != nil {
		if pol, err := h.Policies.AntiSpamPolicy(ctx, req.GuildID); err == nil {
			fields = append(fields, notifier.Field("Anti-Spam",
				fmt.Sprintf("`%d` messages in `%d`s, jail after `%d` warnings", pol.MaxMessagesPerWindow, pol.WindowSeconds, pol.MaxWarnings), false))
		}
	}

	return Reply{Embed: notifier.Embed("Security Profile", "Authority configuration for this server.", notifier.ColorBlue, fields...)}, nil
}

func mentions(ids []string, format string) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf(format, id)
	}
	return strings.Join(parts, ", ")
}

func joinNonEmpty(users, roles string) string {
	switch {
	case users == "none":
		return roles
	case roles == "none":
		return users
	}
	return users + "\n" + roles
}

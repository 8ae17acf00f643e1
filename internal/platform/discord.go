package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Platform over a discordgo session. Lookups hit the
// gateway state cache first and fall back to REST.
type Discord struct {
	s       *discordgo.Session
	timeout time.Duration
}

func NewDiscord(s *discordgo.Session, timeout time.Duration) *Discord {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Discord{s: s, timeout: timeout}
}

// call bounds one REST request by the configured timeout.
func (d *Discord) call(ctx context.Context, reason string) (context.CancelFunc, []discordgo.RequestOption) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(reason))
	}
	return cancel, opts
}

func (d *Discord) SelfID() string {
	if d.s.State != nil && d.s.State.User != nil {
		return d.s.State.User.ID
	}
	return ""
}

func (d *Discord) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := d.s.State.Guild(guildID); err == nil {
		return g, nil
	}
	cancel, opts := d.call(ctx, "")
	defer cancel()
	g, err := d.s.Guild(guildID, opts...)
	return g, wrap(err, "fetch guild %s", guildID)
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := d.s.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	cancel, opts := d.call(ctx, "")
	defer cancel()
	m, err := d.s.GuildMember(guildID, userID, opts...)
	return m, wrap(err, "fetch member %s in guild %s", userID, guildID)
}

func (d *Discord) RecentMembers(ctx context.Context, guildID string, limit int) ([]*discordgo.Member, error) {
	var members []*discordgo.Member
	if g, err := d.s.State.Guild(guildID); err == nil && len(g.Members) > 0 {
		members = append(members, g.Members...)
	} else {
		cancel, opts := d.call(ctx, "")
		defer cancel()
		members, err = d.s.GuildMembers(guildID, "", 1000, opts...)
		if err != nil {
			return nil, wrap(err, "list members of guild %s", guildID)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinedAt.After(members[j].JoinedAt)
	})
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

func (d *Discord) SetMemberRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error {
	cancel, opts := d.call(ctx, reason)
	defer cancel()
	roles := append([]string{}, roleIDs...)
	_, err := d.s.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &roles}, opts...)
	return wrap(err, "set roles of %s in guild %s", userID, guildID)
}

func (d *Discord) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	cancel, opts := d.call(ctx, reason)
	defer cancel()
	return wrap(d.s.GuildMemberRoleAdd(guildID, userID, roleID, opts...), "add role %s to %s", roleID, userID)
}

func (d *Discord) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	cancel, opts := d.call(ctx, reason)
	defer cancel()
	return wrap(d.s.GuildMemberRoleRemove(guildID, userID, roleID, opts...), "remove role %s from %s", roleID, userID)
}

func (d *Discord) SetVoiceMute(ctx context.Context, guildID, userID string, mute bool) error {
	cancel, opts := d.call(ctx, "")
	defer cancel()
	return wrap(d.s.GuildMemberMute(guildID, userID, mute, opts...), "voice mute %s", userID)
}

func (d *Discord) BanMember(ctx context.Context, guildID, userID, reason string) error {
	cancel, opts := d.call(ctx, "")
	defer cancel()
	return wrap(d.s.GuildBanCreateWithReason(guildID, userID, reason, 0, opts...), "ban %s in guild %s", userID, guildID)
}

func (d *Discord) SetSlowMode(ctx context.Context, channelID string, seconds int) error {
	cancel, opts := d.call(ctx, "")
	defer cancel()
	_, err := d.s.ChannelEdit(channelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds}, opts...)
	return wrap(err, "set slowmode on channel %s", channelID)
}

func (d *Discord) SetVerificationLevel(ctx context.Context, guildID string, level discordgo.VerificationLevel) error {
	cancel, opts := d.call(ctx, "")
	defer cancel()
	_, err := d.s.GuildEdit(guildID, &discordgo.GuildParams{VerificationLevel: &level}, opts...)
	return wrap(err, "set verification level of guild %s", guildID)
}

func (d *Discord) AuditLog(ctx context.Context, guildID string, action discordgo.AuditLogAction, limit int) ([]*discordgo.AuditLogEntry, error) {
	cancel, opts := d.call(ctx, "")
	defer cancel()
	audit, err := d.s.GuildAuditLog(guildID, "", "", int(action), limit, opts...)
	if err != nil {
		return nil, wrap(err, "fetch audit log %d of guild %s", action, guildID)
	}
	return audit.AuditLogEntries, nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, content string, embed *discordgo.MessageEmbed) error {
	cancel, opts := d.call(ctx, "")
	defer cancel()
	ch, err := d.s.UserChannelCreate(userID, opts...)
	if err != nil {
		return wrap(err, "open DM with %s", userID)
	}
	return d.send(ch.ID, content, embed, opts)
}

func (d *Discord) SendChannelMessage(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) error {
	cancel, opts := d.call(ctx, "")
	defer cancel()
	return d.send(channelID, content, embed, opts)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID, reason string) error {
	cancel, opts := d.call(ctx, reason)
	defer cancel()
	return wrap(d.s.ChannelMessageDelete(channelID, messageID, opts...), "delete message %s in channel %s", messageID, channelID)
}

func (d *Discord) send(channelID, content string, embed *discordgo.MessageEmbed, opts []discordgo.RequestOption) error {
	msg := &discordgo.MessageSend{Content: content}
	if embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	}
	_, err := d.s.ChannelMessageSendComplex(channelID, msg, opts...)
	return wrap(err, "send to channel %s", channelID)
}

func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		err = fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("failed to %s: %w", fmt.Sprintf(format, args...), err)
}

// Package platform is the narrow surface of the Discord API used by the
// guards, the punishment engine and the log sink.
package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

var ErrNotFound = errors.New("not found")

// Platform is implemented by Discord and by platformtest.Fake.
type Platform interface {
	SelfID() string

	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	// RecentMembers returns up to limit members, newest join first.
	RecentMembers(ctx context.Context, guildID string, limit int) ([]*discordgo.Member, error)

	SetMemberRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
	SetVoiceMute(ctx context.Context, guildID, userID string, mute bool) error
	BanMember(ctx context.Context, guildID, userID, reason string) error

	SetSlowMode(ctx context.Context, channelID string, seconds int) error
	SetVerificationLevel(ctx context.Context, guildID string, level discordgo.VerificationLevel) error

	// AuditLog returns the most recent entries of one action type, newest first.
	AuditLog(ctx context.Context, guildID string, action discordgo.AuditLogAction, limit int) ([]*discordgo.AuditLogEntry, error)

	SendDirectMessage(ctx context.Context, userID, content string, embed *discordgo.MessageEmbed) error
	SendChannelMessage(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) error
	DeleteMessage(ctx context.Context, channelID, messageID, reason string) error
}

// BotMember looks up the automation account in guildID.
func BotMember(ctx context.Context, p Platform, guildID string) (*discordgo.Member, error) {
	return p.Member(ctx, guildID, p.SelfID())
}

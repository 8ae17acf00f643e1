package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	ColorRed    = 0xED4245
	ColorOrange = 0xE67E22
	ColorGreen  = 0x57F287
	ColorBlue   = 0x5865F2
)

const footer = "nervesx security"

func mention(id string) string {
	return fmt.Sprintf("<@%s> (`%s`)", id, id)
}

func roleList(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<@&" + id + ">"
	}
	return strings.Join(parts, ", ")
}

// Embed builds the single embed style used for every log line and DM.
func Embed(title, description string, color int, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func Field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func JailEmbed(memberID, reason string, snapshot []string, created bool) *discordgo.MessageEmbed {
	title := "Member jailed"
	if !created {
		title = "Jail role re-applied"
	}
	return Embed(title, reason, ColorRed,
		Field("Member", mention(memberID), true),
		Field("Saved roles", roleList(snapshot), false),
	)
}

func UnjailEmbed(memberID, actorID string, restored, skipped []string) *discordgo.MessageEmbed {
	e := Embed("Member released", "", ColorGreen,
		Field("Member", mention(memberID), true),
		Field("Released by", mention(actorID), true),
		Field("Restored roles", roleList(restored), false),
	)
	if len(skipped) > 0 {
		e.Fields = append(e.Fields, Field("Skipped roles", roleList(skipped), false))
	}
	return e
}

func JailNoticeEmbed(guildName, reason string) *discordgo.MessageEmbed {
	return Embed("You have been jailed", fmt.Sprintf("You were jailed in **%s**.", guildName), ColorRed,
		Field("Reason", reason, false),
	)
}

func LinkNoticeEmbed(kind string) *discordgo.MessageEmbed {
	return Embed("Message removed", fmt.Sprintf("Your message contained a %s link, which is not allowed in that channel.", kind), ColorOrange)
}

// LinkRemovedEmbed logs a deleted message. content is cut to the 1024
// characters a field can hold.
func LinkRemovedEmbed(authorID, channelID, kind, content string) *discordgo.MessageEmbed {
	if r := []rune(content); len(r) > 1024 {
		content = string(r[:1021]) + "..."
	}
	return Embed("Link removed", kind+" link deleted", ColorOrange,
		Field("User", mention(authorID), true),
		Field("Channel", "<#"+channelID+">", true),
		Field("Message Content", content, false),
	)
}

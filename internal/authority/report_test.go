package authority

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityReport(t *testing.T) {
	g := testGuild()
	g.Channels = []*discordgo.Channel{
		{ID: "general", Type: discordgo.ChannelTypeGuildText},
		{ID: "staff", Type: discordgo.ChannelTypeGuildText, PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "g1", Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		}},
		{ID: "voice", Type: discordgo.ChannelTypeGuildVoice},
	}
	// everyone cannot view by default, general opts back in
	g.Roles[0].Permissions = discordgo.PermissionSendMessages
	g.Channels[0].PermissionOverwrites = []*discordgo.PermissionOverwrite{
		{ID: "g1", Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionViewChannel},
	}

	risks := SecurityReport(g, nil)
	require.Len(t, risks, 3)
	assert.Equal(t, RiskHigh, risks[0].Level)
	assert.Contains(t, risks[0].Issue, "High")
	assert.Equal(t, RiskMedium, risks[1].Level)
	assert.Contains(t, risks[1].Issue, "Bot")
	assert.Contains(t, risks[2].Issue, "<#general>")
}

func TestEveryoneCanView(t *testing.T) {
	g := testGuild()
	ch := &discordgo.Channel{ID: "c"}
	assert.False(t, EveryoneCanView(g, ch))

	g.Roles[0].Permissions |= discordgo.PermissionViewChannel
	assert.True(t, EveryoneCanView(g, ch))

	// member overwrites do not apply to the everyone role
	ch.PermissionOverwrites = []*discordgo.PermissionOverwrite{
		{ID: "g1", Type: discordgo.PermissionOverwriteTypeMember, Deny: discordgo.PermissionViewChannel},
	}
	assert.True(t, EveryoneCanView(g, ch))

	ch.PermissionOverwrites[0].Type = discordgo.PermissionOverwriteTypeRole
	assert.False(t, EveryoneCanView(g, ch))

	g.Roles[0].Permissions = discordgo.PermissionAdministrator
	assert.True(t, EveryoneCanView(g, ch))
}

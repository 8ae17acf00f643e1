package detectors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform/platformtest"
)

func TestClassifyLinks(t *testing.T) {
	cases := []struct {
		content string
		want    LinkKind
	}{
		{"hello there", LinkNone},
		{"see file.txt or version 1.5", LinkNone},
		{"join discord.gg/abc123", LinkInvite},
		{"https://discord.com/invite/abc123", LinkInvite},
		{"https://discordapp.com/invite/abc123", LinkInvite},
		{"https://discord.com/channels/1/2", LinkWebsite},
		{"https://tenor.com/view/cat-dance-gif-123", LinkGIF},
		{"https://media.giphy.com/media/x/giphy.gif", LinkGIF},
		{"https://cdn.example.org/party.GIF", LinkGIF},
		{"check example.com/page", LinkWebsite},
		{"http://10.0.0.1/admin", LinkWebsite},
		{"a gif tenor.com/x and an invite discord.gg/y", LinkInvite},
		{"www.youtube.com/watch?v=abc and tenor.com/x", LinkWebsite},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyLinks(tc.content), tc.content)
	}
}

type staticLinkChannels struct {
	ids []string
	err error
}

func (s staticLinkChannels) LinkAllowedChannels(ctx context.Context, guildID string) ([]string, error) {
	return s.ids, s.err
}

func newLinkGuard(channels LinkChannels) (*LinkGuard, *platformtest.Fake, *recordingSink) {
	fake := platformtest.New("bot")
	sink := &recordingSink{}
	return NewLinkGuard(newResolver(), channels, fake, sink), fake, sink
}

func TestLinkGuardRemovesMemberLinks(t *testing.T) {
	g, fake, sink := newLinkGuard(staticLinkChannels{})
	m := msg("u1", "free nitro at example.com/claim")
	m.ID = "m1"

	assert.Equal(t, VerdictRemoved, g.OnMessage(context.Background(), m))
	assert.Equal(t, []string{"general:m1"}, fake.DeletedMessages())

	dms := fake.SentDMs()
	require.Len(t, dms, 1)
	assert.Equal(t, "u1", dms[0].To)
	require.NotNil(t, dms[0].Embed)
	assert.Contains(t, dms[0].Embed.Description, "website link")

	require.Len(t, sink.get(models.LogMessage), 1)
	require.Len(t, sink.embeds, 1)
	assert.Equal(t, "free nitro at example.com/claim", sink.embeds[0].Fields[2].Value)
}

func TestLinkGuardAllowedChannels(t *testing.T) {
	g, fake, _ := newLinkGuard(staticLinkChannels{ids: []string{"general"}})
	ctx := context.Background()

	assert.Equal(t, VerdictNone, g.OnMessage(ctx, msg("u1", "https://example.com")))
	assert.Empty(t, fake.DeletedMessages())

	// invites are removed even where links are allowed
	assert.Equal(t, VerdictRemoved, g.OnMessage(ctx, msg("u1", "discord.gg/raid")))
	assert.Len(t, fake.DeletedMessages(), 1)
}

func TestLinkGuardSkips(t *testing.T) {
	g, fake, _ := newLinkGuard(staticLinkChannels{})
	ctx := context.Background()

	assert.Equal(t, VerdictNone, g.OnMessage(ctx, msg("u1", "https://tenor.com/view/yes-gif-1")))
	assert.Equal(t, VerdictExempt, g.OnMessage(ctx, msg("mod", "https://example.com")))
	assert.Equal(t, VerdictExempt, g.OnMessage(ctx, msg("u2", "https://example.com", "role-mod")))

	bot := msg("other-bot", "https://example.com")
	bot.Author.Bot = true
	assert.Equal(t, VerdictNone, g.OnMessage(ctx, bot))

	hook := msg("hook", "https://example.com")
	hook.WebhookID = "w1"
	assert.Equal(t, VerdictNone, g.OnMessage(ctx, hook))

	assert.Empty(t, fake.DeletedMessages())
	assert.Zero(t, fake.CallCount("SendDirectMessage"))
}

func TestLinkGuardFailuresAreNoDetection(t *testing.T) {
	ctx := context.Background()

	g, fake, _ := newLinkGuard(staticLinkChannels{err: errors.New("database is locked")})
	assert.Equal(t, VerdictNone, g.OnMessage(ctx, msg("u1", "https://example.com")))
	assert.Empty(t, fake.DeletedMessages())

	g, fake, sink := newLinkGuard(staticLinkChannels{})
	fake.SetFail("DeleteMessage", errors.New("missing permissions"))
	assert.Equal(t, VerdictNone, g.OnMessage(ctx, msg("u1", "discord.gg/x")))
	assert.Zero(t, fake.CallCount("SendDirectMessage"))
	assert.Empty(t, sink.get(models.LogMessage))
}

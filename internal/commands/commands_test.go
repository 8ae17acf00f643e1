package commands

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform/platformtest"
)

type profileStub struct{ p *models.SecurityProfile }

func (s *profileStub) Profile(ctx context.Context, guildID string) (*models.SecurityProfile, error) {
	return s.p, nil
}

type punisherStub struct {
	jailed   []string
	released []string
	muted    []string
	unmuted  []string
}

func (p *punisherStub) Jail(ctx context.Context, guildID, memberID, reason string) (decision.JailResult, error) {
	p.jailed = append(p.jailed, memberID)
	return decision.JailResult{Created: true, Snapshot: []string{"r1"}}, nil
}

func (p *punisherStub) Unjail(ctx context.Context, guildID string, actor authority.Subject, memberID string) (decision.UnjailResult, error) {
	p.released = append(p.released, memberID)
	return decision.UnjailResult{Restored: []string{"r1"}}, nil
}

func (p *punisherStub) Mute(ctx context.Context, guildID, memberID, reason string) error {
	p.muted = append(p.muted, memberID)
	return nil
}

func (p *punisherStub) Unmute(ctx context.Context, guildID, memberID, reason string) error {
	p.unmuted = append(p.unmuted, memberID)
	return nil
}

type lockdownStub struct{ active bool }

var lockdownRevertAt = time.Unix(1_700_000_300, 0)

func (l *lockdownStub) ActivateLockdown(ctx context.Context, guildID, reason string) (bool, error) {
	if l.active {
		return false, nil
	}
	l.active = true
	return true, nil
}

func (l *lockdownStub) Status(guildID string) (time.Time, bool) {
	if !l.active {
		return time.Time{}, false
	}
	return lockdownRevertAt, true
}

func (l *lockdownStub) DeactivateLockdown(ctx context.Context, guildID string) bool {
	was := l.active
	l.active = false
	return was
}

// storeStub applies profile mutations to the shared profile.
type storeStub struct {
	profile  *models.SecurityProfile
	policy   models.AntiSpamPolicy
	channels []*models.LogChannel
	links    []string
}

func (s *storeStub) AddProfileEntry(ctx context.Context, guildID string, kind models.ProfileEntryKind, targetID string) error {
	s.profile.AddEntry(kind, targetID)
	return nil
}

func (s *storeStub) RemoveProfileEntry(ctx context.Context, guildID string, kind models.ProfileEntryKind, targetID string) error {
	switch kind {
	case models.EntryWhitelistUser:
		s.profile.WhitelistedUserIDs = remove(s.profile.WhitelistedUserIDs, targetID)
	case models.EntryModRole:
		s.profile.ModRoles = remove(s.profile.ModRoles, targetID)
	}
	return nil
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, x := range list {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func (s *storeStub) SetAntiSpamPolicy(ctx context.Context, guildID string, p models.AntiSpamPolicy) error {
	s.policy = p
	return nil
}

func (s *storeStub) AntiSpamPolicy(ctx context.Context, guildID string) (models.AntiSpamPolicy, error) {
	return s.policy, nil
}

func (s *storeStub) SetLogChannel(ctx context.Context, ch *models.LogChannel) error {
	s.channels = append(s.channels, ch)
	return nil
}

func (s *storeStub) AddLinkAllowedChannel(ctx context.Context, guildID, channelID string) error {
	s.links = append(remove(s.links, channelID), channelID)
	return nil
}

func (s *storeStub) RemoveLinkAllowedChannel(ctx context.Context, guildID, channelID string) error {
	s.links = remove(s.links, channelID)
	return nil
}

func (s *storeStub) LinkAllowedChannels(ctx context.Context, guildID string) ([]string, error) {
	return append([]string{}, s.links...), nil
}

type invalidations struct{ n int }

func (i *invalidations) Invalidate(ctx context.Context, guildID string) { i.n++ }

type sinkStub struct{ lines []string }

func (s *sinkStub) SendLogMessage(ctx context.Context, guildID string, t models.LogChannelType, text string, embed *discordgo.MessageEmbed) {
	s.lines = append(s.lines, string(t)+": "+text)
}

type fixture struct {
	h        *Handler
	fake     *platformtest.Fake
	punisher *punisherStub
	lockdown *lockdownStub
	store    *storeStub
	cache    *invalidations
	sink     *sinkStub
}

func newFixture() *fixture {
	profile := &models.SecurityProfile{
		GuildID:            "g1",
		OwnerID:            "owner",
		SecondOwners:       []string{"second"},
		AdminIDs:           []string{"admin"},
		ModRoles:           []string{"role-mod"},
		WhitelistedUserIDs: []string{"trusted"},
	}
	fake := platformtest.New("bot")
	fake.AddGuild(&discordgo.Guild{
		ID:       "g1",
		OwnerID:  "owner",
		Channels: []*discordgo.Channel{{ID: "c1", Name: "mod-log", Type: discordgo.ChannelTypeGuildText}},
	})
	for _, id := range []string{"owner", "second", "admin", "trusted", "u1", "u2"} {
		fake.AddMember("g1", &discordgo.Member{User: &discordgo.User{ID: id}})
	}
	fake.AddMember("g1", &discordgo.Member{User: &discordgo.User{ID: "mod"}, Roles: []string{"role-mod"}})

	f := &fixture{
		fake:     fake,
		punisher: &punisherStub{},
		lockdown: &lockdownStub{},
		store:    &storeStub{profile: profile, policy: models.DefaultAntiSpamPolicy()},
		cache:    &invalidations{},
		sink:     &sinkStub{},
	}
	f.h = NewHandler(Deps{
		Punisher: f.punisher,
		Lockdown: f.lockdown,
		Resolver: authority.NewResolver(&profileStub{profile}),
		Platform: fake,
		Store:    f.store,
		Cache:    f.cache,
		Policies: f.store,
		Sink:     f.sink,
	})
	return f
}

func opt(name string, v interface{}) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Value: v}
}

func request(actor, command, sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) Request {
	req := Request{
		GuildID: "g1",
		Actor:   authority.Subject{ID: actor},
		Command: command,
		Sub:     sub,
		Options: make(map[string]*discordgo.ApplicationCommandInteractionDataOption),
	}
	if actor == "mod" {
		req.Actor.RoleIDs = []string{"role-mod"}
	}
	for _, o := range opts {
		req.Options[o.Name] = o
	}
	return req
}

func TestJailByModerator(t *testing.T) {
	f := newFixture()
	reply := f.h.Dispatch(context.Background(), request("mod", "jail", "", opt("member", "u1"), opt("reason", "spam")))

	assert.Contains(t, reply.Content, "<@u1> has been jailed")
	require.NotNil(t, reply.Embed)
	assert.Equal(t, []string{"u1"}, f.punisher.jailed)
}

func TestJailRespectsHierarchy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("u1", "jail", "", opt("member", "u2")))
	assert.Contains(t, reply.Content, "❌ Error: permission denied")

	reply = f.h.Dispatch(ctx, request("mod", "jail", "", opt("member", "trusted")))
	assert.Contains(t, reply.Content, "a moderator can only act on regular members")

	reply = f.h.Dispatch(ctx, request("admin", "jail", "", opt("member", "admin")))
	assert.Contains(t, reply.Content, "you cannot act on yourself")

	// whitelisted accounts rank as members for commands
	reply = f.h.Dispatch(ctx, request("trusted", "mute", "", opt("member", "u1")))
	assert.Contains(t, reply.Content, "requires Moderator or above")

	assert.Empty(t, f.punisher.jailed)
	assert.Empty(t, f.punisher.muted)
}

func TestJailMemberWhoLeft(t *testing.T) {
	f := newFixture()
	reply := f.h.Dispatch(context.Background(), request("admin", "jail", "", opt("member", "gone")))
	assert.NotContains(t, reply.Content, "Error")
	assert.Equal(t, []string{"gone"}, f.punisher.jailed)
}

func TestUnjailDelegatesToPunisher(t *testing.T) {
	f := newFixture()
	reply := f.h.Dispatch(context.Background(), request("admin", "unjail", "", opt("member", "u1")))
	assert.Contains(t, reply.Content, "has been released")
	assert.Equal(t, []string{"u1"}, f.punisher.released)
}

func TestMuteAndUnmute(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.h.Dispatch(ctx, request("mod", "mute", "", opt("member", "u1")))
	f.h.Dispatch(ctx, request("mod", "unmute", "", opt("member", "u1")))
	assert.Equal(t, []string{"u1"}, f.punisher.muted)
	assert.Equal(t, []string{"u1"}, f.punisher.unmuted)
}

func TestSecurityMutations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("second", "security", "whitelist-add", opt("user", "u1")))
	assert.Equal(t, "✅ <@u1> added to whitelist.", reply.Content)
	assert.Contains(t, f.store.profile.WhitelistedUserIDs, "u1")
	assert.Equal(t, 1, f.cache.n)
	require.Len(t, f.sink.lines, 1)
	assert.Contains(t, f.sink.lines[0], "server: Security profile changed by <@second>")

	reply = f.h.Dispatch(ctx, request("owner", "security", "mod-remove", opt("role", "role-mod")))
	assert.Equal(t, "✅ <@&role-mod> removed from moderators.", reply.Content)
	assert.Empty(t, f.store.profile.ModRoles)

	f.h.Dispatch(ctx, request("owner", "security", "admin-add", opt("role", "r9")))
	assert.Contains(t, f.store.profile.AdminRoles, "r9")
}

func TestSecurityAuthority(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("admin", "security", "whitelist-add", opt("user", "u1")))
	assert.Contains(t, reply.Content, "requires SecondOwner or above")

	reply = f.h.Dispatch(ctx, request("second", "security", "secondowner-add", opt("user", "u1")))
	assert.Contains(t, reply.Content, "requires Owner or above")

	reply = f.h.Dispatch(ctx, request("owner", "security", "secondowner-add", opt("user", "u1")))
	assert.NotContains(t, reply.Content, "Error")
	assert.Contains(t, f.store.profile.SecondOwners, "u1")
	assert.Equal(t, 1, f.cache.n)
}

func TestSecurityTargetValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("owner", "security", "dangerous-add", opt("user", "u1")))
	assert.Contains(t, reply.Content, "dangerous roles only accepts roles")

	reply = f.h.Dispatch(ctx, request("owner", "security", "admin-add", opt("user", "u1"), opt("role", "r1")))
	assert.Contains(t, reply.Content, "not both")

	reply = f.h.Dispatch(ctx, request("owner", "security", "admin-add"))
	assert.Contains(t, reply.Content, "no user or role specified")

	reply = f.h.Dispatch(ctx, request("owner", "security", "bogus-add", opt("user", "u1")))
	assert.Contains(t, reply.Content, "unknown subcommand")

	assert.Zero(t, f.cache.n)
}

func TestSecurityView(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("mod", "security", "view"))
	require.NotNil(t, reply.Embed)
	assert.Equal(t, "Security Profile", reply.Embed.Title)
	assert.Equal(t, "<@owner>", reply.Embed.Fields[0].Value)
	assert.Equal(t, "<@admin>", reply.Embed.Fields[2].Value)
	assert.Equal(t, "<@&role-mod>", reply.Embed.Fields[3].Value)

	reply = f.h.Dispatch(ctx, request("u1", "security", "view"))
	assert.Nil(t, reply.Embed)
	assert.Contains(t, reply.Content, "permission denied")
}

func TestAntiSpamPolicy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("admin", "antispam", "", opt("window", float64(10)), opt("max", float64(20))))
	require.NotNil(t, reply.Embed)
	assert.Equal(t, models.AntiSpamPolicy{WindowSeconds: 10, MaxMessagesPerWindow: 20, MaxWarnings: 3}, f.store.policy)
	assert.Equal(t, 1, f.cache.n)

	reply = f.h.Dispatch(ctx, request("admin", "antispam", "", opt("warnings", float64(11))))
	assert.Contains(t, reply.Content, "warnings must be between 1 and 10")
	assert.Equal(t, 3, f.store.policy.MaxWarnings)

	reply = f.h.Dispatch(ctx, request("mod", "antispam", "", opt("window", float64(2))))
	assert.Contains(t, reply.Content, "requires Admin or above")
	assert.Equal(t, 10, f.store.policy.WindowSeconds)
}

func TestLogsChannel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("admin", "logs", "", opt("type", "jail"), opt("channel", "c1")))
	require.NotNil(t, reply.Embed)
	require.Len(t, f.store.channels, 1)
	assert.Equal(t, &models.LogChannel{GuildID: "g1", Type: models.LogJail, ID: "c1", Name: "mod-log"}, f.store.channels[0])

	sent := f.fake.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "c1", sent[0].To)

	reply = f.h.Dispatch(ctx, request("admin", "logs", "", opt("type", "audit"), opt("channel", "c1")))
	assert.Contains(t, reply.Content, "unknown log type")

	reply = f.h.Dispatch(ctx, request("admin", "logs", "", opt("type", "join"), opt("channel", "c404")))
	assert.Contains(t, reply.Content, "is not in this server")
	assert.Len(t, f.store.channels, 1)
}

func TestLockdownCommand(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("admin", "lockdown", "start"))
	require.NotNil(t, reply.Embed)
	assert.True(t, f.lockdown.active)

	reply = f.h.Dispatch(ctx, request("admin", "lockdown", "start"))
	assert.Equal(t, "A lockdown is already active.", reply.Content)

	reply = f.h.Dispatch(ctx, request("admin", "lockdown", "status"))
	assert.Equal(t, "🔒 A lockdown is active and lifts automatically <t:1700000300:R>.", reply.Content)

	reply = f.h.Dispatch(ctx, request("admin", "lockdown", "end"))
	require.NotNil(t, reply.Embed)
	assert.False(t, f.lockdown.active)

	reply = f.h.Dispatch(ctx, request("admin", "lockdown", "end"))
	assert.Equal(t, "No lockdown is active.", reply.Content)

	reply = f.h.Dispatch(ctx, request("admin", "lockdown", "status"))
	assert.Equal(t, "No lockdown is active.", reply.Content)
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture()
	reply := f.h.Dispatch(context.Background(), request("owner", "ping", ""))
	assert.Equal(t, "❌ Error: unknown command: ping", reply.Content)
}

func TestParseRequestFlattensSubcommand(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: []string{"r1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "security",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name:    "whitelist-add",
				Type:    discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{opt("user", "u2")},
			}},
		},
	}}

	req, ok := ParseRequest(i)
	require.True(t, ok)
	assert.Equal(t, "security", req.Command)
	assert.Equal(t, "whitelist-add", req.Sub)
	assert.Equal(t, "u2", req.id("user"))
	assert.Equal(t, []string{"r1"}, req.Actor.RoleIDs)

	i.Member = nil
	_, ok = ParseRequest(i)
	assert.False(t, ok)
}

func TestCommandDefinitions(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetAllCommands() {
		names[c.Name] = true
	}
	for _, n := range []string{"jail", "unjail", "mute", "unmute", "security", "antispam", "logs", "lockdown", "antilink", "scan"} {
		assert.True(t, names[n], n)
	}
}

func TestAntiLinkCommand(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("mod", "antilink", "allow", opt("channel", "c1")))
	assert.Contains(t, reply.Content, "requires")
	assert.Empty(t, f.store.links)

	reply = f.h.Dispatch(ctx, request("admin", "antilink", "allow", opt("channel", "nowhere")))
	assert.Contains(t, reply.Content, "not in this server")

	reply = f.h.Dispatch(ctx, request("admin", "antilink", "allow", opt("channel", "c1")))
	assert.Equal(t, "✅ Links are now allowed in <#c1>.", reply.Content)
	assert.Equal(t, []string{"c1"}, f.store.links)
	require.Len(t, f.sink.lines, 1)
	assert.Equal(t, "moderator: Links are now allowed in <#c1>. (by <@admin>)", f.sink.lines[0])

	reply = f.h.Dispatch(ctx, request("admin", "antilink", "list"))
	require.NotNil(t, reply.Embed)
	assert.Equal(t, "<#c1>", reply.Embed.Description)

	reply = f.h.Dispatch(ctx, request("owner", "antilink", "disallow", opt("channel", "c1")))
	assert.Contains(t, reply.Content, "no longer allowed")
	assert.Empty(t, f.store.links)

	reply = f.h.Dispatch(ctx, request("admin", "antilink", "list"))
	assert.Contains(t, reply.Content, "not allowed in any channel")
}

func TestScanCommand(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.h.Dispatch(ctx, request("mod", "scan", ""))
	assert.Contains(t, reply.Content, "requires")

	reply = f.h.Dispatch(ctx, request("admin", "scan", ""))
	require.NotNil(t, reply.Embed)
	assert.Equal(t, "No risky roles or public channels found.", reply.Embed.Description)

	f.fake.Guilds["g1"].Roles = append(f.fake.Guilds["g1"].Roles,
		&discordgo.Role{ID: "boss", Name: "Boss", Position: 4, Permissions: discordgo.PermissionAdministrator})

	reply = f.h.Dispatch(ctx, request("admin", "scan", ""))
	require.NotNil(t, reply.Embed)
	assert.Equal(t, "1 findings, 1 high risk.", reply.Embed.Description)
	require.Len(t, reply.Embed.Fields, 1)
	assert.Equal(t, "High risk", reply.Embed.Fields[0].Name)
	assert.Contains(t, reply.Embed.Fields[0].Value, "Boss")
}

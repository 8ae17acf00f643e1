package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform/platformtest"
)

type grantFixture struct {
	fake  *platformtest.Fake
	jail  *stubEscalator
	sink  *recordingSink
	guard *RoleGrantGuard
}

func newGrantFixture() *grantFixture {
	f := &grantFixture{fake: platformtest.New("bot"), jail: &stubEscalator{}, sink: &recordingSink{}}
	testGuild(f.fake, discordgo.PermissionViewAuditLogs|discordgo.PermissionManageRoles)
	for _, id := range []string{"mod", "admin", "trusted", "u9"} {
		f.fake.AddMember("g1", &discordgo.Member{User: &discordgo.User{ID: id}})
	}
	f.guard = NewRoleGrantGuard(f.fake, staticProfiles{testProfile()}, f.jail, f.sink).WithClock(clock)
	return f
}

// grant gives victim the role as executor and returns the before and after snapshots.
func (f *grantFixture) grant(executor, roleID string) (*discordgo.Member, *discordgo.Member) {
	id := platformtest.Snowflake(testNow.Add(-time.Second), len(f.fake.Audit["g1"]))
	f.fake.AddAuditEntry("g1", platformtest.AuditEntry(id, discordgo.AuditLogActionMemberRoleUpdate, executor, "victim"))
	f.fake.AddMember("g1", &discordgo.Member{User: &discordgo.User{ID: "victim"}, Roles: []string{"plain", roleID}})
	before := &discordgo.Member{User: &discordgo.User{ID: "victim"}, Roles: []string{"plain"}}
	after := &discordgo.Member{User: &discordgo.User{ID: "victim"}, Roles: []string{"plain", roleID}}
	return before, after
}

func TestModeratorGrantOfDangerousRoleReverted(t *testing.T) {
	f := newGrantFixture()
	before, after := f.grant("mod", "R")

	out := f.guard.OnMemberUpdate(context.Background(), "g1", before, after)
	require.Len(t, out, 1)
	assert.Equal(t, "mod", out[0].ActorID)
	assert.Contains(t, out[0].Reason, "Helpers")

	assert.Equal(t, []string{"plain"}, f.fake.Roles("g1", "victim"))
	assert.Equal(t, []string{"mod"}, f.jail.calls())
	require.Len(t, f.sink.get(models.LogModerator), 1)
}

func TestRoleWithManagePermissionIsDangerous(t *testing.T) {
	f := newGrantFixture()
	before, after := f.grant("u9", "role-mod")

	out := f.guard.OnMemberUpdate(context.Background(), "g1", before, after)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"u9"}, f.jail.calls())
	assert.NotContains(t, f.fake.Roles("g1", "victim"), "role-mod")
}

func TestSuperusersMayGrantDangerousRoles(t *testing.T) {
	for _, executor := range []string{"admin", "trusted", "owner"} {
		t.Run(executor, func(t *testing.T) {
			f := newGrantFixture()
			before, after := f.grant(executor, "R")

			assert.Empty(t, f.guard.OnMemberUpdate(context.Background(), "g1", before, after))
			assert.Contains(t, f.fake.Roles("g1", "victim"), "R")
			assert.Empty(t, f.jail.calls())
		})
	}
}

func TestRoleGrantIgnoresBenignAndSelf(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()

	before, after := f.grant("mod", "plain")
	before.Roles = nil
	assert.Empty(t, f.guard.OnMemberUpdate(ctx, "g1", before, after))
	assert.Zero(t, f.fake.CallCount("AuditLog"))

	before, after = f.grant("bot", "R")
	assert.Empty(t, f.guard.OnMemberUpdate(ctx, "g1", before, after))

	// no before snapshot
	assert.Empty(t, f.guard.OnMemberUpdate(ctx, "g1", nil, after))
	assert.Empty(t, f.jail.calls())
}

func TestRoleGrantUnattributed(t *testing.T) {
	f := newGrantFixture()
	f.fake.AddMember("g1", &discordgo.Member{User: &discordgo.User{ID: "victim"}, Roles: []string{"R"}})
	before := &discordgo.Member{User: &discordgo.User{ID: "victim"}}
	after := &discordgo.Member{User: &discordgo.User{ID: "victim"}, Roles: []string{"R"}}

	assert.Empty(t, f.guard.OnMemberUpdate(context.Background(), "g1", before, after))
	assert.Contains(t, f.fake.Roles("g1", "victim"), "R")
}

package detectors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styxgzi/nervesx-bot/internal/config"
	"github.com/styxgzi/nervesx-bot/internal/counter"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform/platformtest"
)

type nukeFixture struct {
	fake  *platformtest.Fake
	jail  *stubEscalator
	sink  *recordingSink
	guard *NukeGuard
	seq   int
}

func newNukeFixture(botPerms int64, store counter.Store) *nukeFixture {
	f := &nukeFixture{fake: platformtest.New("bot"), jail: &stubEscalator{}, sink: &recordingSink{}}
	testGuild(f.fake, botPerms)
	if store == nil {
		store = counter.NewMemStore().WithClock(clock)
	}
	thresholds := config.Thresholds{
		models.ActionChannelDelete: 1,
		models.ActionRoleCreate:    3,
	}
	f.guard = NewNukeGuard(counter.NewRateWindow(store, time.Second), thresholds, f.fake,
		staticProfiles{testProfile()}, f.jail, f.sink, NukeOptions{}).WithClock(clock)
	return f
}

// audit records an entry executed ago before testNow.
func (f *nukeFixture) audit(action discordgo.AuditLogAction, executor string, ago time.Duration) {
	f.seq++
	id := platformtest.Snowflake(testNow.Add(-ago), f.seq)
	f.fake.AddAuditEntry("g1", platformtest.AuditEntry(id, action, executor, "target"))
}

func TestNukeJailsExecutor(t *testing.T) {
	f := newNukeFixture(discordgo.PermissionViewAuditLogs, nil)
	f.audit(discordgo.AuditLogActionChannelDelete, "u1", 5*time.Second)

	out := f.guard.OnAuditEvent(context.Background(), "g1", "CHANNEL_DELETE")
	require.Len(t, out, 1)
	assert.Equal(t, "u1", out[0].ActorID)
	assert.Equal(t, models.ActionChannelDelete, out[0].Action)
	assert.Equal(t, int64(1), out[0].Count)
	assert.Equal(t, []string{"u1"}, f.jail.calls())
}

func TestNukeSkipsImmuneAndContinues(t *testing.T) {
	f := newNukeFixture(discordgo.PermissionViewAuditLogs, nil)
	f.audit(discordgo.AuditLogActionChannelDelete, "u2", 3*time.Second)
	f.audit(discordgo.AuditLogActionChannelDelete, "trusted", 2*time.Second)
	f.audit(discordgo.AuditLogActionChannelDelete, "owner", time.Second)

	out := f.guard.OnAuditEvent(context.Background(), "g1", "CHANNEL_DELETE")
	require.Len(t, out, 1)
	assert.Equal(t, "u2", out[0].ActorID)
	assert.Equal(t, []string{"u2"}, f.jail.calls())
}

func TestNukeCountsPerExecutor(t *testing.T) {
	f := newNukeFixture(discordgo.PermissionViewAuditLogs, nil)
	ctx := context.Background()
	f.audit(discordgo.AuditLogActionRoleCreate, "u1", 3*time.Second)
	f.audit(discordgo.AuditLogActionRoleCreate, "u2", 2*time.Second)
	f.audit(discordgo.AuditLogActionRoleCreate, "u1", time.Second)

	assert.Nil(t, f.guard.OnAuditEvent(ctx, "g1", "ROLE_CREATE"))
	assert.Nil(t, f.guard.OnAuditEvent(ctx, "g1", "ROLE_CREATE"))
	// three events in the guild, but no single executor reached three
	assert.Nil(t, f.guard.OnAuditEvent(ctx, "g1", "ROLE_CREATE"))
	assert.Empty(t, f.jail.calls())

	f.audit(discordgo.AuditLogActionRoleCreate, "u1", 0)
	out := f.guard.OnAuditEvent(ctx, "g1", "ROLE_CREATE")
	require.Len(t, out, 1)
	assert.Equal(t, "u1", out[0].ActorID)
	assert.Equal(t, int64(3), out[0].Count)

	// the counter was reset after the response
	assert.Nil(t, f.guard.OnAuditEvent(ctx, "g1", "ROLE_CREATE"))
	assert.Equal(t, []string{"u1"}, f.jail.calls())
}

func TestNukeIgnoresEntriesOutsideWindow(t *testing.T) {
	f := newNukeFixture(discordgo.PermissionViewAuditLogs, nil)
	f.audit(discordgo.AuditLogActionChannelDelete, "u1", 2*time.Minute)

	assert.Nil(t, f.guard.OnAuditEvent(context.Background(), "g1", "CHANNEL_DELETE"))
	assert.Empty(t, f.jail.calls())
}

func TestNukeAuditFailureTakesNoAction(t *testing.T) {
	f := newNukeFixture(discordgo.PermissionViewAuditLogs, nil)
	f.audit(discordgo.AuditLogActionChannelDelete, "u1", time.Second)
	f.fake.SetFail("AuditLog", errors.New("503 service unavailable"))

	assert.Nil(t, f.guard.OnAuditEvent(context.Background(), "g1", "CHANNEL_DELETE"))
	assert.Empty(t, f.jail.calls())
}

func TestNukeWithoutAuditPermissionWarns(t *testing.T) {
	f := newNukeFixture(0, nil)
	f.audit(discordgo.AuditLogActionChannelDelete, "u1", time.Second)

	assert.Nil(t, f.guard.OnAuditEvent(context.Background(), "g1", "CHANNEL_DELETE"))
	assert.Empty(t, f.jail.calls())
	assert.Zero(t, f.fake.CallCount("AuditLog"))

	lines := f.sink.get(models.LogModerator)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "View Audit Log")
}

func TestNukeIgnoresUnmonitoredActions(t *testing.T) {
	f := newNukeFixture(discordgo.PermissionViewAuditLogs, nil)
	ctx := context.Background()

	assert.Nil(t, f.guard.OnAuditEvent(ctx, "g1", "NOT_AN_ACTION"))
	// known action without a threshold
	assert.Nil(t, f.guard.OnAuditEvent(ctx, "g1", "EMOJI_CREATE"))
	assert.Zero(t, f.fake.CallCount("AuditLog"))
}

func TestNukeStoreDown(t *testing.T) {
	f := newNukeFixture(discordgo.PermissionViewAuditLogs, downStore{})
	f.audit(discordgo.AuditLogActionChannelDelete, "u1", time.Second)

	assert.Nil(t, f.guard.OnAuditEvent(context.Background(), "g1", "CHANNEL_DELETE"))
	assert.Empty(t, f.jail.calls())
}

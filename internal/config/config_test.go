package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"bot": {"token": "from-file"},
		"raid": {"join_threshold": 4},
		"detection": {"thresholds": {"CHANNEL_CREATE": 3}}
	}`), 0o644))
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal("from-env", cfg.Bot.Token)
	assert.Equal("redis://localhost:6379/0", cfg.Store.RedisURL)
	assert.Equal(int64(4), cfg.Raid.JoinThreshold)
	// untouched sections keep defaults
	assert.Equal(300, cfg.Raid.RevertAfterSeconds)
	assert.Equal("Jail", cfg.Punishment.JailRole)
	assert.Equal(5*time.Second, cfg.APITimeout())
	assert.Same(cfg, Get())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Raid, cfg.Raid)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bot":`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRuntimeTimeouts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"runtime": {"store_timeout_ms": 750}}`), 0o644))
	t.Setenv("HANDLER_TIMEOUT_MS", "12000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout())
	assert.Equal(t, 12*time.Second, cfg.HandlerTimeout())
	assert.Equal(t, 30*time.Second, DefaultConfig().HandlerTimeout())
}

func TestJailCooldownCoversDetectionWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Punishment.CooldownSeconds = 30
	cfg.Detection.WindowSeconds = 60
	assert.Equal(t, 60*time.Second, cfg.JailCooldown())

	cfg.Punishment.CooldownSeconds = 120
	assert.Equal(t, 120*time.Second, cfg.JailCooldown())
}

func TestBuildThresholds(t *testing.T) {
	assert := assert.New(t)

	th, err := BuildThresholds(map[string]int64{"CHANNEL_CREATE": 3, "ROLE_DELETE": 0})
	require.NoError(t, err)

	v, ok := th.For(models.ActionChannelCreate)
	assert.True(ok)
	assert.Equal(int64(3), v)

	v, _ = th.For(models.ActionRoleDelete)
	assert.Equal(int64(1), v, "zero is raised to one")

	v, _ = th.For(models.ActionChannelDelete)
	assert.Equal(int64(1), v)
	v, _ = th.For(models.ActionInviteCreate)
	assert.Equal(int64(100), v)

	// defaults are not mutated by overrides
	assert.Equal(int64(5), DefaultThresholds[models.ActionChannelCreate])

	_, err = BuildThresholds(map[string]int64{"NOT_AN_ACTION": 1})
	assert.Error(err)

	for _, a := range models.AllActionTypes() {
		_, ok := th.For(a)
		assert.True(ok, "missing threshold for %s", a)
	}
}

type countingSource struct {
	profiles int
	policies int
	fail     bool
}

func (s *countingSource) GetSecurityProfile(ctx context.Context, guildID string) (*models.SecurityProfile, error) {
	s.profiles++
	if s.fail {
		return nil, errors.New("database is locked")
	}
	return &models.SecurityProfile{GuildID: guildID, OwnerID: "owner", WhitelistedUserIDs: []string{"w1"}}, nil
}

func (s *countingSource) GetAntiSpamPolicy(ctx context.Context, guildID string) (models.AntiSpamPolicy, error) {
	s.policies++
	return models.AntiSpamPolicy{WindowSeconds: 7, MaxMessagesPerWindow: 4, MaxWarnings: 2}, nil
}

func TestProfileStoreReadThrough(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	src := &countingSource{}
	ps := NewProfileStore(src, NewMemCache(128, time.Minute))

	for i := 0; i < 3; i++ {
		p, err := ps.Profile(ctx, "g1")
		require.NoError(t, err)
		assert.Equal("owner", p.OwnerID)
		assert.Equal([]string{"w1"}, p.WhitelistedUserIDs)

		pol, err := ps.AntiSpamPolicy(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(4, pol.MaxMessagesPerWindow)
	}
	assert.Equal(1, src.profiles)
	assert.Equal(1, src.policies)

	ps.Invalidate(ctx, "g1")
	_, err := ps.Profile(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(2, src.profiles)
}

func TestProfileStoreSourceError(t *testing.T) {
	ps := NewProfileStore(&countingSource{fail: true}, NewMemCache(8, time.Minute))
	_, err := ps.Profile(context.Background(), "g1")
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "nervesx/", 5*time.Minute)

	v, err := c.Get(ctx, "antiConfig", "g1")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(c.Set(ctx, "antiConfig", "g1", `{"window_seconds":5}`))
	v, err = c.Get(ctx, "antiConfig", "g1")
	assert.NoError(err)
	assert.Equal(`{"window_seconds":5}`, v)
	assert.True(mr.Exists("nervesx/antiConfig:g1"))

	assert.NoError(c.Purge(ctx, "antiConfig", "g1"))
	assert.False(mr.Exists("nervesx/antiConfig:g1"))
}

package detectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/counter"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/dispatcher"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

type RaidOptions struct {
	JoinThreshold       int64
	JoinWindow          time.Duration
	LockdownRiskTrigger int

	SamplerWindow time.Duration
	MassJoinCount int
	RiskAlert     int
	SuspectTTL    time.Duration
}

func (o RaidOptions) withDefaults() RaidOptions {
	if o.JoinThreshold <= 0 {
		o.JoinThreshold = 2
	}
	if o.JoinWindow <= 0 {
		o.JoinWindow = 60 * time.Second
	}
	if o.LockdownRiskTrigger <= 0 {
		o.LockdownRiskTrigger = 5
	}
	if o.SamplerWindow <= 0 {
		o.SamplerWindow = 60 * time.Second
	}
	if o.MassJoinCount <= 0 {
		o.MassJoinCount = 10
	}
	if o.RiskAlert <= 0 {
		o.RiskAlert = 5
	}
	if o.SuspectTTL <= 0 {
		o.SuspectTTL = time.Hour
	}
	return o
}

// JoinResult describes what RaidGuard did for one join.
type JoinResult struct {
	Count    int64
	Risk     int
	Lockdown bool
	Sampled  bool
}

// RaidGuard counts joins per guild. During a burst a young account triggers
// the temporary lockdown and is muted; the mass-join sampler flags suspects
// in the background.
type RaidGuard struct {
	window   *counter.RateWindow
	lockdown Lockdowner
	muter    Muter
	pool     Submitter
	platform platform.Platform
	sink     decision.LogSink
	opts     RaidOptions
	now      func() time.Time
}

func NewRaidGuard(window *counter.RateWindow, lockdown Lockdowner, muter Muter, pool Submitter, p platform.Platform, sink decision.LogSink, opts RaidOptions) *RaidGuard {
	return &RaidGuard{
		window:   window,
		lockdown: lockdown,
		muter:    muter,
		pool:     pool,
		platform: p,
		sink:     sink,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

func (g *RaidGuard) WithClock(now func() time.Time) *RaidGuard {
	g.now = now
	return g
}

func (g *RaidGuard) OnMemberJoin(ctx context.Context, m *discordgo.Member) JoinResult {
	if m == nil || m.User == nil || m.GuildID == "" {
		return JoinResult{}
	}
	count := g.window.Hit(ctx, "joins:"+m.GuildID, g.opts.JoinWindow)
	res := JoinResult{Count: count}
	if count == counter.NoCount || count <= g.opts.JoinThreshold {
		return res
	}

	detections.WithLabelValues(guardRaid).Inc()
	res.Sampled = g.maybeSample(ctx, m.GuildID)

	res.Risk = AccountRisk(m.User.ID, g.now())
	if res.Risk <= g.opts.LockdownRiskTrigger {
		return res
	}

	reason := fmt.Sprintf("raid: %d joins in %s, account risk %d", count, g.opts.JoinWindow, res.Risk)
	engaged, err := g.lockdown.ActivateLockdown(ctx, m.GuildID, reason)
	if err != nil {
		guardFailed(guardRaid, "lockdown in guild %s: %v", m.GuildID, err)
	}
	res.Lockdown = engaged
	if err := g.muter.Mute(ctx, m.GuildID, m.User.ID, reason); err != nil {
		logging.Warn("[RAID] could not mute %s in guild %s: %v", m.User.ID, m.GuildID, err)
	}
	logging.LogIncident(logging.Incident{
		GuildID: m.GuildID,
		ActorID: m.User.ID,
		Guard:   guardRaid,
		Action:  "lockdown",
		Outcome: fmt.Sprintf("engaged=%t", engaged),
		Reason:  reason,
		Count:   count,
	})
	return res
}

// maybeSample schedules the mass-join sampler at most once per sampler
// window per guild. The debounce key lives in the counter store.
func (g *RaidGuard) maybeSample(ctx context.Context, guildID string) bool {
	if g.window.Hit(ctx, "raidSampler:"+guildID, g.opts.SamplerWindow) != 1 {
		return false
	}
	err := g.pool.Submit(dispatcher.Task{
		Name: "raid-sampler:" + guildID,
		Run: func(ctx context.Context) {
			g.SampleRecentJoins(ctx, guildID)
		},
	})
	if err != nil {
		guardFailed(guardRaid, "sampler for guild %s not queued: %v", guildID, err)
		return false
	}
	return true
}

// SampleRecentJoins flags risky accounts among members who joined within
// the sampler window, if there are at least MassJoinCount of them.
func (g *RaidGuard) SampleRecentJoins(ctx context.Context, guildID string) []string {
	members, err := g.platform.RecentMembers(ctx, guildID, 100)
	if err != nil {
		guardFailed(guardRaid, "recent members of guild %s: %v", guildID, err)
		return nil
	}
	now := g.now()
	var recent []*discordgo.Member
	for _, m := range members {
		if m.User != nil && now.Sub(m.JoinedAt) <= g.opts.SamplerWindow {
			recent = append(recent, m)
		}
	}
	if len(recent) < g.opts.MassJoinCount {
		return nil
	}

	var suspects []string
	for _, m := range recent {
		if AccountRisk(m.User.ID, now) <= g.opts.RiskAlert {
			continue
		}
		key := "suspectedRaidMember:" + guildID + ":" + m.User.ID
		if err := g.window.Store().Set(ctx, key, "1", g.opts.SuspectTTL); err != nil {
			guardFailed(guardRaid, "flag %s: %v", key, err)
		}
		suspects = append(suspects, m.User.ID)
	}
	if len(suspects) == 0 {
		return nil
	}

	mentions := make([]string, len(suspects))
	for i, id := range suspects {
		mentions[i] = "<@" + id + ">"
	}
	logging.Warn("[RAID] %d suspected raid accounts in guild %s", len(suspects), guildID)
	g.sink.SendLogMessage(ctx, guildID, models.LogModerator,
		fmt.Sprintf("Mass join: %d joins in %s, suspected raid accounts: %s", len(recent), g.opts.SamplerWindow, strings.Join(mentions, " ")), nil)
	return suspects
}

// IsSuspect reports whether the sampler flagged userID within the suspect TTL.
func (g *RaidGuard) IsSuspect(ctx context.Context, guildID, userID string) bool {
	_, ok, err := g.window.Store().Get(ctx, "suspectedRaidMember:"+guildID+":"+userID)
	return err == nil && ok
}

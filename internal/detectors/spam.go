package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/counter"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

type Verdict uint8

const (
	VerdictNone Verdict = iota
	VerdictWarned
	VerdictJailed
	VerdictExempt
	VerdictRemoved
)

func (v Verdict) String() string {
	switch v {
	case VerdictWarned:
		return "warned"
	case VerdictJailed:
		return "jailed"
	case VerdictExempt:
		return "exempt"
	case VerdictRemoved:
		return "removed"
	}
	return "none"
}

// PolicySource supplies per-guild anti-spam policies.
type PolicySource interface {
	AntiSpamPolicy(ctx context.Context, guildID string) (models.AntiSpamPolicy, error)
}

const (
	spamStripes = 64

	defaultSpamStoreTimeout = 2 * time.Second
)

// SpamGuard tracks per-user message bursts with escalating warnings and
// jails on broadcast mentions from unprivileged members.
type SpamGuard struct {
	store    counter.Store
	policies PolicySource
	resolver *authority.Resolver
	punisher Escalator
	platform platform.Platform

	locks        [spamStripes]sync.Mutex
	now          func() time.Time
	storeTimeout time.Duration
}

func NewSpamGuard(store counter.Store, policies PolicySource, resolver *authority.Resolver, punisher Escalator, p platform.Platform) *SpamGuard {
	return &SpamGuard{
		store:    store,
		policies: policies,
		resolver: resolver,
		punisher: punisher,
		platform: p,

		now:          time.Now,
		storeTimeout: defaultSpamStoreTimeout,
	}
}

// WithStoreTimeout bounds each SpamState read and write.
func (g *SpamGuard) WithStoreTimeout(d time.Duration) *SpamGuard {
	if d > 0 {
		g.storeTimeout = d
	}
	return g
}

func (g *SpamGuard) WithClock(now func() time.Time) *SpamGuard {
	g.now = now
	return g
}

func spamKey(guildID, userID string) string {
	return "spam:" + guildID + ":" + userID
}

func (g *SpamGuard) lock(guildID, userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(guildID))
	h.Write([]byte{':'})
	h.Write([]byte(userID))
	return &g.locks[h.Sum32()%spamStripes]
}

// OnMessage applies the broadcast-mention rule, then the rate rule.
func (g *SpamGuard) OnMessage(ctx context.Context, m *discordgo.Message) Verdict {
	if v := g.HandleBroadcastMention(ctx, m); v != VerdictNone {
		return v
	}
	return g.AnalyzeMessage(ctx, m)
}

func ignoredMessage(m *discordgo.Message) bool {
	return m == nil || m.GuildID == "" || m.Author == nil || m.Author.Bot || m.WebhookID != ""
}

func hasBroadcastMention(m *discordgo.Message) bool {
	return m.MentionEveryone || strings.Contains(m.Content, "@everyone") || strings.Contains(m.Content, "@here")
}

func (g *SpamGuard) exempt(ctx context.Context, m *discordgo.Message) (exempt bool, ok bool) {
	return exemptAuthor(ctx, g.resolver, g.platform, m, guardSpam)
}

// AnalyzeMessage runs the rate-window state machine for the author.
func (g *SpamGuard) AnalyzeMessage(ctx context.Context, m *discordgo.Message) Verdict {
	if ignoredMessage(m) {
		return VerdictNone
	}
	exempt, ok := g.exempt(ctx, m)
	if !ok {
		return VerdictNone
	}
	if exempt {
		return VerdictExempt
	}

	policy, err := g.policies.AntiSpamPolicy(ctx, m.GuildID)
	if err != nil {
		guardFailed(guardSpam, "policy lookup for guild %s failed: %v", m.GuildID, err)
		return VerdictNone
	}
	policy = policy.Normalize()
	window := time.Duration(policy.WindowSeconds) * time.Second

	mu := g.lock(m.GuildID, m.Author.ID)
	mu.Lock()
	defer mu.Unlock()

	key := spamKey(m.GuildID, m.Author.ID)
	st, err := g.load(ctx, key)
	if err != nil {
		guardFailed(guardSpam, "state load %s failed: %v", key, err)
		return VerdictNone
	}

	now := g.now().UnixMilli()
	st.Count++
	if st.WindowStartedAt == 0 || now-st.WindowStartedAt > window.Milliseconds() {
		st = models.SpamState{Count: 1, WindowStartedAt: now}
		g.save(ctx, key, st, window)
		return VerdictNone
	}

	if st.Count <= policy.MaxMessagesPerWindow {
		g.save(ctx, key, st, window)
		return VerdictNone
	}

	st.Warnings++
	detections.WithLabelValues(guardSpam).Inc()
	if st.Warnings >= policy.MaxWarnings {
		reason := fmt.Sprintf("spam: %d warnings within %ds", st.Warnings, policy.WindowSeconds)
		g.jail(ctx, m, reason)
		if err := g.reset(ctx, key); err != nil {
			guardFailed(guardSpam, "state reset %s failed: %v", key, err)
		}
		return VerdictJailed
	}

	remaining := time.Duration(st.WindowStartedAt+window.Milliseconds()-now) * time.Millisecond
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	g.save(ctx, key, st, remaining)

	warning := fmt.Sprintf("<@%s> slow down, you are sending messages too fast. Warning %d/%d", m.Author.ID, st.Warnings, policy.MaxWarnings)
	if err := g.platform.SendChannelMessage(ctx, m.ChannelID, warning, nil); err != nil {
		logging.Debug("[SPAM] warning to %s not delivered: %v", m.Author.ID, err)
	}
	logging.Info("[SPAM] %s warned in guild %s (%d/%d)", m.Author.ID, m.GuildID, st.Warnings, policy.MaxWarnings)
	return VerdictWarned
}

// HandleBroadcastMention jails an unprivileged author of @everyone or @here
// with no warning stage.
func (g *SpamGuard) HandleBroadcastMention(ctx context.Context, m *discordgo.Message) Verdict {
	if ignoredMessage(m) || !hasBroadcastMention(m) {
		return VerdictNone
	}
	exempt, ok := g.exempt(ctx, m)
	if !ok {
		return VerdictNone
	}
	if exempt {
		return VerdictExempt
	}

	detections.WithLabelValues(guardSpam).Inc()
	notice := "Mass mentions (@everyone / @here) are not allowed. You have been jailed."
	if err := g.platform.SendDirectMessage(ctx, m.Author.ID, notice, nil); err != nil {
		logging.Debug("[SPAM] could not DM %s: %v", m.Author.ID, err)
	}
	g.jail(ctx, m, "used a broadcast mention")
	return VerdictJailed
}

func (g *SpamGuard) jail(ctx context.Context, m *discordgo.Message, reason string) {
	res, err := g.punisher.Escalate(ctx, m.GuildID, m.Author.ID, reason)
	if err != nil {
		logging.Warn("[SPAM] jail of %s in guild %s failed: %v", m.Author.ID, m.GuildID, err)
		return
	}
	logging.LogIncident(logging.Incident{
		GuildID: m.GuildID,
		ActorID: m.Author.ID,
		Guard:   guardSpam,
		Action:  "jail",
		Outcome: jailOutcome(res),
		Reason:  reason,
	})
}

func (g *SpamGuard) load(ctx context.Context, key string) (models.SpamState, error) {
	ctx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	var st models.SpamState
	raw, ok, err := g.store.Get(ctx, key)
	if err != nil || !ok {
		return st, err
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		logging.Debug("[SPAM] discarding corrupt state %s: %v", key, err)
		return models.SpamState{}, nil
	}
	return st, nil
}

func (g *SpamGuard) save(ctx context.Context, key string, st models.SpamState, ttl time.Duration) {
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()
	if err := g.store.Set(ctx, key, string(raw), ttl); err != nil {
		guardFailed(guardSpam, "state save %s failed: %v", key, err)
	}
}

func (g *SpamGuard) reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()
	return g.store.Delete(ctx, key)
}

package detectors

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/database"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/dispatcher"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// BannedStore remembers accounts the bot banned.
type BannedStore interface {
	AddBannedUser(ctx context.Context, u *database.BannedUser) error
	GetBannedUser(ctx context.Context, guildID, userID string) (*database.BannedUser, error)
	RemoveBannedUser(ctx context.Context, guildID, userID string) error
}

// BotAddGuard checks who added a bot account. Bots added by anyone but the
// owner, a second owner or a whitelisted user are banned and the adder is
// jailed.
type BotAddGuard struct {
	pool     Submitter
	platform platform.Platform
	profiles authority.ProfileSource
	banned   BannedStore
	punisher Escalator
	sink     decision.LogSink
	window   time.Duration
	now      func() time.Time
}

func NewBotAddGuard(pool Submitter, p platform.Platform, profiles authority.ProfileSource, banned BannedStore, punisher Escalator, sink decision.LogSink) *BotAddGuard {
	return &BotAddGuard{
		pool:     pool,
		platform: p,
		profiles: profiles,
		banned:   banned,
		punisher: punisher,
		sink:     sink,
		window:   60 * time.Second,
		now:      time.Now,
	}
}

func (g *BotAddGuard) WithClock(now func() time.Time) *BotAddGuard {
	g.now = now
	return g
}

// OnMemberJoin queues a check for bot accounts.
func (g *BotAddGuard) OnMemberJoin(ctx context.Context, m *discordgo.Member) {
	if m == nil || m.User == nil || !m.User.Bot || m.GuildID == "" {
		return
	}
	guildID, bot := m.GuildID, m.User
	err := g.pool.Submit(dispatcher.Task{
		Name: "bot-add:" + bot.ID,
		Run: func(ctx context.Context) {
			g.CheckBotAdd(ctx, guildID, bot)
		},
	})
	if err != nil {
		guardFailed(guardBotAdd, "check for bot %s in guild %s not queued: %v", bot.ID, guildID, err)
	}
}

// CheckBotAdd attributes the addition and reacts. It reports whether the bot
// was banned.
func (g *BotAddGuard) CheckBotAdd(ctx context.Context, guildID string, bot *discordgo.User) bool {
	prior, err := g.banned.GetBannedUser(ctx, guildID, bot.ID)
	if err != nil {
		guardFailed(guardBotAdd, "banned lookup for %s: %v", bot.ID, err)
	}

	entries, err := g.platform.AuditLog(ctx, guildID, discordgo.AuditLogActionBotAdd, 10)
	if err != nil {
		guardFailed(guardBotAdd, "audit log in guild %s: %v", guildID, err)
	}
	adder := findExecutor(entries, bot.ID, g.now(), g.window)

	if adder == "" {
		if prior != nil {
			return g.ban(ctx, guildID, bot, "", "previously banned bot rejoined")
		}
		logging.Warn("[BOT_ADD] could not attribute bot %s in guild %s", bot.ID, guildID)
		return false
	}

	profile, err := g.profiles.Profile(ctx, guildID)
	if err != nil {
		guardFailed(guardBotAdd, "profile for guild %s: %v", guildID, err)
		return false
	}

	if authority.IsImmune(adder, g.platform.SelfID(), profile) {
		if prior != nil {
			if err := g.banned.RemoveBannedUser(ctx, guildID, bot.ID); err != nil {
				logging.Warn("[BOT_ADD] could not clear ban record for %s: %v", bot.ID, err)
			}
		}
		logging.Info("[BOT_ADD] bot %s added by trusted %s in guild %s", bot.Username, adder, guildID)
		g.sink.SendLogMessage(ctx, guildID, models.LogServer,
			fmt.Sprintf("Bot <@%s> (%s) added by <@%s>", bot.ID, bot.Username, adder), nil)
		return false
	}

	detections.WithLabelValues(guardBotAdd).Inc()
	reason := fmt.Sprintf("unauthorized bot add: %s (%s)", bot.Username, bot.ID)
	banned := g.ban(ctx, guildID, bot, adder, "added without authorization")
	if _, err := g.punisher.Escalate(ctx, guildID, adder, reason); err != nil {
		logging.Warn("[BOT_ADD] jail of %s in guild %s failed: %v", adder, guildID, err)
	}
	g.sink.SendLogMessage(ctx, guildID, models.LogModerator,
		fmt.Sprintf("<@%s> added bot <@%s> (%s) without authorization. The bot was banned.", adder, bot.ID, bot.Username), nil)
	return banned
}

func (g *BotAddGuard) ban(ctx context.Context, guildID string, bot *discordgo.User, adder, reason string) bool {
	if err := g.platform.BanMember(ctx, guildID, bot.ID, reason); err != nil {
		logging.Error("[BOT_ADD] failed to ban bot %s in guild %s: %v", bot.ID, guildID, err)
		return false
	}
	err := g.banned.AddBannedUser(ctx, &database.BannedUser{
		GuildID:  guildID,
		UserID:   bot.ID,
		Reason:   reason,
		BannedAt: g.now().Unix(),
		IsBot:    true,
		AddedBy:  adder,
	})
	if err != nil {
		logging.Warn("[BOT_ADD] could not record ban of %s: %v", bot.ID, err)
	}
	logging.LogIncident(logging.Incident{
		GuildID: guildID,
		ActorID: adder,
		Guard:   guardBotAdd,
		Action:  "ban_bot",
		Outcome: "banned",
		Reason:  reason,
	})
	return true
}

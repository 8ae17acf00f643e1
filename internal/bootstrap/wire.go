package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/bot"
	"github.com/styxgzi/nervesx-bot/internal/commands"
	"github.com/styxgzi/nervesx-bot/internal/config"
	"github.com/styxgzi/nervesx-bot/internal/counter"
	"github.com/styxgzi/nervesx-bot/internal/database"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/detectors"
	"github.com/styxgzi/nervesx-bot/internal/dispatcher"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/metrics"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
	"github.com/styxgzi/nervesx-bot/internal/platform"
	"github.com/styxgzi/nervesx-bot/internal/watchdog"
)

const profileCacheSize = 4096

func Wire(b *Bootstrap) error {
	logging.Info("Wiring components...")
	cfg := b.Config

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database connection not available")
	}

	c := &Components{DB: db}

	// counters and profile cache share Redis when configured
	var cache config.Cache
	if cfg.Store.RedisURL != "" {
		rs, err := counter.NewRedisStore(cfg.Store.RedisURL, cfg.Store.RedisPrefix)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		c.Redis = rs
		c.Counter = rs
		cache = config.NewRedisCache(rs.Client, cfg.Store.RedisPrefix, cfg.CacheTTL())
		logging.Info("Counter store: redis")
	} else {
		c.Counter = counter.NewMemStore()
		cache = config.NewMemCache(profileCacheSize, cfg.CacheTTL())
		logging.Info("Counter store: in-process memory")
	}
	c.Profiles = config.NewProfileStore(db, cache)

	thresholds, err := config.BuildThresholds(cfg.Detection.Thresholds)
	if err != nil {
		return err
	}

	session, err := bot.NewSession(cfg.Bot.Token)
	if err != nil {
		return err
	}
	c.Session = session
	plat := platform.NewDiscord(session.GetDiscord(), cfg.APITimeout())

	c.Sink = notifier.NewLogSink(plat, db, cfg.APITimeout())
	c.Engine = decision.NewEngine(plat, db, c.Profiles, c.Sink, decision.Options{
		JailRole: cfg.Punishment.JailRole,
		MuteRole: cfg.Punishment.MuteRole,
		Cooldown: cfg.JailCooldown(),
	})
	c.Lockdown = decision.NewLockdownManager(plat, c.Sink, decision.LockdownOptions{
		SlowmodeSeconds: cfg.Raid.SlowmodeSeconds,
		RevertAfter:     cfg.Raid.RevertAfter(),
	}).WithStore(db)
	c.Pool = dispatcher.NewPool(cfg.Runtime.WorkerCount, cfg.Runtime.QueueSize, cfg.QueueDelay())

	resolver := authority.NewResolver(c.Profiles)
	window := counter.NewRateWindow(c.Counter, cfg.APITimeout())

	spam := detectors.NewSpamGuard(c.Counter, c.Profiles, resolver, c.Engine, plat).
		WithStoreTimeout(cfg.StoreTimeout())
	raid := detectors.NewRaidGuard(window, c.Lockdown, c.Engine, c.Pool, plat, c.Sink, detectors.RaidOptions{
		JoinThreshold:       cfg.Raid.JoinThreshold,
		JoinWindow:          cfg.Raid.JoinWindow(),
		LockdownRiskTrigger: cfg.Raid.LockdownRiskTrigger,
		SamplerWindow:       cfg.Raid.SamplerWindow(),
		MassJoinCount:       cfg.Raid.MassJoinCount,
		RiskAlert:           cfg.Raid.RiskAlert,
		SuspectTTL:          cfg.Raid.SuspectTTL(),
	})
	nuke := detectors.NewNukeGuard(window, thresholds, plat, c.Profiles, c.Engine, c.Sink, detectors.NukeOptions{
		Window:     cfg.DetectionWindow(),
		AuditLimit: cfg.Detection.AuditLimit,
	})
	links := detectors.NewLinkGuard(resolver, db, plat, c.Sink)
	roleGrant := detectors.NewRoleGrantGuard(plat, c.Profiles, c.Engine, c.Sink)
	botAdd := detectors.NewBotAddGuard(c.Pool, plat, c.Profiles, db, c.Engine, c.Sink)

	c.Commands = commands.NewHandler(commands.Deps{
		Punisher: c.Engine,
		Lockdown: c.Lockdown,
		Resolver: resolver,
		Platform: plat,
		Store:    db,
		Cache:    c.Profiles,
		Policies: c.Profiles,
		Sink:     c.Sink,
	})

	c.Handlers = bot.NewHandlers(bot.Deps{
		Spam:      spam,
		Links:     links,
		Raid:      raid,
		BotAdd:    botAdd,
		Nuke:      nuke,
		RoleGrant: roleGrant,
		Profiles:  db,
		Cache:     c.Profiles,
		Sink:      c.Sink,
		Commands:  c.Commands,

		HandlerTimeout: cfg.HandlerTimeout(),
	})
	c.Handlers.Register(session)

	c.Watchdog = watchdog.NewWatchdog(30*time.Second, cfg.APITimeout())
	c.Watchdog.RegisterComponent("database", db.Ping)
	c.Watchdog.RegisterComponent("counter_store", c.Counter.Ping)
	if cfg.Metrics.Listen != "" {
		c.Exporter = metrics.NewMetricsExporter(cfg.Metrics.Listen, c.Watchdog)
	}

	b.Components = c
	logging.Info("Component wiring complete")
	return nil
}

func StartAll(cfg *config.Config, c *Components) error {
	logging.Info("Starting components...")

	c.Pool.Start()
	logging.Info("Worker pool started with %d workers", cfg.Runtime.WorkerCount)

	if err := c.Watchdog.Start(); err != nil {
		return fmt.Errorf("watchdog start failed: %w", err)
	}

	if c.Exporter != nil {
		if err := c.Exporter.Start(); err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		logging.Info("Metrics and health served on %s", cfg.Metrics.Listen)
	}

	if err := c.Session.Connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HandlerTimeout())
	n, err := c.Lockdown.Resume(ctx)
	cancel()
	if err != nil {
		logging.Error("Saved lockdowns not resumed: %v", err)
	} else if n > 0 {
		logging.Info("Resumed %d lockdowns", n)
	}

	if cfg.Bot.RegisterCommands {
		if err := c.Session.RegisterCommands(commands.GetAllCommands()); err != nil {
			return err
		}
	}

	logging.Info("All components started")
	return nil
}

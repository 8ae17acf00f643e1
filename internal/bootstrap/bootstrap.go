// Package bootstrap builds every component from the configuration and owns
// their start and stop order.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/bot"
	"github.com/styxgzi/nervesx-bot/internal/commands"
	"github.com/styxgzi/nervesx-bot/internal/config"
	"github.com/styxgzi/nervesx-bot/internal/counter"
	"github.com/styxgzi/nervesx-bot/internal/database"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/dispatcher"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/metrics"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
	"github.com/styxgzi/nervesx-bot/internal/watchdog"
)

type Bootstrap struct {
	Config      *config.Config
	Components  *Components
	initialized bool
}

type Components struct {
	DB       *database.Database
	Counter  counter.Store
	Redis    *counter.RedisStore
	Profiles *config.ProfileStore

	Session  *bot.Session
	Sink     *notifier.LogSink
	Engine   *decision.Engine
	Lockdown *decision.LockdownManager
	Pool     *dispatcher.Pool
	Handlers *bot.Handlers
	Commands *commands.Handler

	Watchdog *watchdog.Watchdog
	Exporter *metrics.MetricsExporter
}

func New(cfg *config.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

func (b *Bootstrap) Initialize() error {
	if err := b.initializeLogging(); err != nil {
		return fmt.Errorf("logging init failed: %w", err)
	}

	if err := database.Initialize(b.Config.Store.DatabasePath); err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	logging.Info("Database %s opened", b.Config.Store.DatabasePath)

	if err := Wire(b); err != nil {
		return fmt.Errorf("component wiring failed: %w", err)
	}

	b.initialized = true
	logging.Info("Bootstrap complete")
	return nil
}

func (b *Bootstrap) initializeLogging() error {
	level, err := logging.ParseLevel(b.Config.Logging.Level)
	if err != nil {
		return err
	}
	return logging.InitGlobalLogger(logging.Options{
		Level:      level,
		File:       b.Config.Logging.File,
		MaxSizeMB:  b.Config.Logging.MaxSizeMB,
		MaxBackups: b.Config.Logging.MaxBackups,
		MaxAgeDays: b.Config.Logging.MaxAgeDays,
	})
}

func (b *Bootstrap) Start() error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}
	return StartAll(b.Config, b.Components)
}

func (b *Bootstrap) Shutdown(ctx context.Context) error {
	if b.Components == nil {
		return logging.Close()
	}
	return Shutdown(ctx, b.Components)
}

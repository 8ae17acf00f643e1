package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/urfave/cli/v2"

	"github.com/styxgzi/nervesx-bot/internal/bootstrap"
	"github.com/styxgzi/nervesx-bot/internal/config"
	"github.com/styxgzi/nervesx-bot/internal/logging"
)

func main() {
	app := cli.App{
		Name:   "nervesx",
		Usage:  "Discord threat detection and automated response bot",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the JSON config file",
				Value:   "config.json",
				EnvVars: []string{"NERVESX_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Discord bot token",
				EnvVars: []string{"DISCORD_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for counters and the profile cache. Empty keeps them in memory",
				EnvVars: []string{"REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "database-path",
				Usage:   "SQLite database file",
				EnvVars: []string{"DATABASE_PATH"},
			},
			&cli.StringFlag{
				Name:    "metrics-listen",
				Usage:   "address for /metrics and /health",
				EnvVars: []string{"METRICS_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "register-commands",
				Usage:   "overwrite the global slash commands on startup",
				Value:   true,
				EnvVars: []string{"REGISTER_COMMANDS"},
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "how long to wait for queued work on shutdown",
				Value: 15 * time.Second,
			},
		},
	}
	app.RunAndExitOnError()
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	if cctx.IsSet("token") {
		cfg.Bot.Token = cctx.String("token")
	}
	if cctx.IsSet("redis-url") {
		cfg.Store.RedisURL = cctx.String("redis-url")
	}
	if cctx.IsSet("database-path") {
		cfg.Store.DatabasePath = cctx.String("database-path")
	}
	if cctx.IsSet("metrics-listen") {
		cfg.Metrics.Listen = cctx.String("metrics-listen")
	}
	if cctx.IsSet("log-level") {
		cfg.Logging.Level = cctx.String("log-level")
	}
	if cctx.IsSet("register-commands") {
		cfg.Bot.RegisterCommands = cctx.Bool("register-commands")
	}

	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("a Discord token is required (--token or DISCORD_TOKEN)")
	}
	return cfg, nil
}

func run(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}

	b := bootstrap.New(cfg)
	if err := b.Initialize(); err != nil {
		return err
	}

	if err := b.Start(); err != nil {
		logging.Error("Startup failed: %v", err)
		ctx, cancel := context.WithTimeout(context.Background(), cctx.Duration("shutdown-timeout"))
		defer cancel()
		_ = b.Shutdown(ctx)
		return err
	}

	waitForShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cctx.Duration("shutdown-timeout"))
	defer cancel()
	return b.Shutdown(ctx)
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logging.Info("Shutdown signal received: %s", sig)
}

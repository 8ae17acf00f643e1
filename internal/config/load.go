package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Bot        BotConfig        `json:"bot"`
	Store      StoreConfig      `json:"store"`
	Detection  DetectionConfig  `json:"detection"`
	Raid       RaidConfig       `json:"raid"`
	Punishment PunishmentConfig `json:"punishment"`
	Runtime    RuntimeConfig    `json:"runtime"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type BotConfig struct {
	Token            string `json:"token"`
	RegisterCommands bool   `json:"register_commands"`
}

type StoreConfig struct {
	// Empty RedisURL keeps counters and caches in process memory.
	RedisURL     string `json:"redis_url"`
	RedisPrefix  string `json:"redis_prefix"`
	DatabasePath string `json:"database_path"`
	// CacheTTLSeconds bounds how stale a cached profile or anti-spam policy may be.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

type DetectionConfig struct {
	WindowSeconds int `json:"window_seconds"`
	AuditLimit    int `json:"audit_limit"`
	// Thresholds overrides the default per-action burst thresholds, keyed by action tag.
	Thresholds map[string]int64 `json:"thresholds"`
}

type RaidConfig struct {
	JoinThreshold       int64 `json:"join_threshold"`
	JoinWindowSeconds   int   `json:"join_window_seconds"`
	RevertAfterSeconds  int   `json:"revert_after_seconds"`
	SlowmodeSeconds     int   `json:"slowmode_seconds"`
	SamplerWindowSecs   int   `json:"sampler_window_seconds"`
	MassJoinCount       int   `json:"mass_join_count"`
	RiskAlert           int   `json:"risk_alert"`
	SuspectTTLSeconds   int   `json:"suspect_ttl_seconds"`
	LockdownRiskTrigger int   `json:"lockdown_risk_trigger"`
}

type PunishmentConfig struct {
	JailRole string `json:"jail_role"`
	MuteRole string `json:"mute_role"`
	// CooldownSeconds is raised to the detection window when shorter.
	CooldownSeconds int `json:"cooldown_seconds"`
}

type RuntimeConfig struct {
	APITimeoutMs     int `json:"api_timeout_ms"`
	StoreTimeoutMs   int `json:"store_timeout_ms"`
	HandlerTimeoutMs int `json:"handler_timeout_ms"`
	WorkerCount      int `json:"worker_count"`
	QueueSize        int `json:"queue_size"`
	QueueDelayMs     int `json:"queue_delay_ms"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type MetricsConfig struct {
	// Empty Listen disables the metrics and health server.
	Listen string `json:"listen"`
}

var GlobalConfig *Config

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		c.Bot.Token = token
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Runtime.WorkerCount = n
		}
	}
	if v := os.Getenv("HANDLER_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Runtime.HandlerTimeoutMs = n
		}
	}
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			RegisterCommands: true,
		},
		Store: StoreConfig{
			RedisPrefix:     "nervesx/",
			DatabasePath:    "nervesx.db",
			CacheTTLSeconds: 300,
		},
		Detection: DetectionConfig{
			WindowSeconds: 60,
			AuditLimit:    100,
		},
		Raid: RaidConfig{
			JoinThreshold:       2,
			JoinWindowSeconds:   60,
			RevertAfterSeconds:  300,
			SlowmodeSeconds:     10,
			SamplerWindowSecs:   60,
			MassJoinCount:       10,
			RiskAlert:           5,
			SuspectTTLSeconds:   3600,
			LockdownRiskTrigger: 5,
		},
		Punishment: PunishmentConfig{
			JailRole:        "Jail",
			MuteRole:        "Muted",
			CooldownSeconds: 60,
		},
		Runtime: RuntimeConfig{
			APITimeoutMs:     5000,
			StoreTimeoutMs:   2000,
			HandlerTimeoutMs: 30000,
			WorkerCount:      4,
			QueueSize:        256,
			QueueDelayMs:     1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "nervesx.log",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
	}
}

func Get() *Config {
	if GlobalConfig == nil {
		return DefaultConfig()
	}
	return GlobalConfig
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.Runtime.APITimeoutMs) * time.Millisecond
}

func (c *Config) QueueDelay() time.Duration {
	return time.Duration(c.Runtime.QueueDelayMs) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return seconds(c.Store.CacheTTLSeconds)
}

func (c *Config) DetectionWindow() time.Duration {
	return seconds(c.Detection.WindowSeconds)
}

func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Runtime.StoreTimeoutMs) * time.Millisecond
}

func (c *Config) HandlerTimeout() time.Duration {
	return time.Duration(c.Runtime.HandlerTimeoutMs) * time.Millisecond
}

// JailCooldown is never shorter than the detection window, so one burst
// cannot jail the same executor twice.
func (c *Config) JailCooldown() time.Duration {
	return max(seconds(c.Punishment.CooldownSeconds), c.DetectionWindow())
}

func (r RaidConfig) JoinWindow() time.Duration { return seconds(r.JoinWindowSeconds) }

func (r RaidConfig) RevertAfter() time.Duration { return seconds(r.RevertAfterSeconds) }

func (r RaidConfig) SamplerWindow() time.Duration { return seconds(r.SamplerWindowSecs) }

func (r RaidConfig) SuspectTTL() time.Duration { return seconds(r.SuspectTTLSeconds) }

package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// ChannelSource resolves a guild's configured log channel. A nil channel
// means the guild has not bound one.
type ChannelSource interface {
	GetLogChannel(ctx context.Context, guildID string, t models.LogChannelType) (*models.LogChannel, error)
}

// LogSink delivers log lines to per-guild log channels without blocking the
// caller. Each guild has its own token bucket so a burst of detections
// cannot flood a channel.
type LogSink struct {
	platform platform.Platform
	channels ChannelSource
	timeout  time.Duration

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	wg       sync.WaitGroup
}

func NewLogSink(p platform.Platform, channels ChannelSource, timeout time.Duration) *LogSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LogSink{
		platform: p,
		channels: channels,
		timeout:  timeout,
		limit:    rate.Limit(5),
		burst:    10,
		limiters: make(map[string]*rate.Limiter),
	}
}

// WithRate replaces the per-guild token bucket parameters.
func (s *LogSink) WithRate(perSecond float64, burst int) *LogSink {
	s.limit = rate.Limit(perSecond)
	s.burst = burst
	return s
}

func (s *LogSink) limiter(guildID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[guildID]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[guildID] = l
	}
	return l
}

// SendLogMessage is fire-and-forget. Failures are only logged locally.
func (s *LogSink) SendLogMessage(ctx context.Context, guildID string, t models.LogChannelType, text string, embed *discordgo.MessageEmbed) {
	if s == nil || guildID == "" {
		return
	}
	if !s.limiter(guildID).Allow() {
		logDropped.WithLabelValues(string(t)).Inc()
		logging.Debug("[LOGSINK] dropped %s line for guild %s", t, guildID)
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		ch, err := s.channels.GetLogChannel(ctx, guildID, t)
		if err != nil {
			logging.Warn("[LOGSINK] failed to resolve %s channel for guild %s: %v", t, guildID, err)
			return
		}
		if ch == nil || ch.ID == "" {
			return
		}
		if err := s.platform.SendChannelMessage(ctx, ch.ID, text, embed); err != nil {
			logging.Warn("[LOGSINK] failed to send to #%s (%s) in guild %s: %v", ch.Name, ch.ID, guildID, err)
			return
		}
		logSent.WithLabelValues(string(t)).Inc()
	}()
}

// Wait blocks until in-flight deliveries finish.
func (s *LogSink) Wait() {
	s.wg.Wait()
}

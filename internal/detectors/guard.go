// Package detectors holds the guards that turn platform events into
// punishments: spam, links, raid, nuke, dangerous role grants and bot additions.
//
// Guards never return errors to the gateway handlers. A failed dependency is
// logged, counted in nervesx_guard_errors_total and treated as "no detection".
package detectors

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/dispatcher"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

var guardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_guard_errors_total",
	Help: "Guard evaluations abandoned because a dependency failed",
}, []string{"guard"})

var detections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_detections_total",
	Help: "Threshold crossings by guard",
}, []string{"guard"})

const (
	guardSpam      = "spam"
	guardRaid      = "raid"
	guardNuke      = "nuke"
	guardRoleGrant = "role_grant"
	guardBotAdd    = "bot_add"
	guardLink      = "link"
)

// Escalator jails a member unless the same member is cooling down.
type Escalator interface {
	Escalate(ctx context.Context, guildID, memberID, reason string) (decision.JailResult, error)
}

type Muter interface {
	Mute(ctx context.Context, guildID, memberID, reason string) error
}

type Lockdowner interface {
	ActivateLockdown(ctx context.Context, guildID, reason string) (bool, error)
}

type Submitter interface {
	Submit(t dispatcher.Task) error
}

func guardFailed(guard, format string, args ...interface{}) {
	guardErrors.WithLabelValues(guard).Inc()
	logging.Warn("["+strings.ToUpper(guard)+"] "+format, args...)
}

// exemptAuthor reports whether the message author is privileged or is the
// automation account. ok is false if the profile could not be loaded.
func exemptAuthor(ctx context.Context, r *authority.Resolver, p platform.Platform, m *discordgo.Message, guard string) (exempt bool, ok bool) {
	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}
	tier, err := r.Resolve(ctx, m.GuildID, authority.Subject{ID: m.Author.ID, RoleIDs: roles})
	if err != nil {
		guardFailed(guard, "profile lookup for guild %s failed: %v", m.GuildID, err)
		return false, false
	}
	return tier != authority.TierMember || m.Author.ID == p.SelfID(), true
}

// inWindow reports whether a snowflake id was minted within window of now.
func inWindow(id string, now time.Time, window time.Duration) bool {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return false
	}
	return now.Sub(t) <= window
}

// AccountRisk scores an account by the age encoded in its id: 10 under a
// day, 5 under a week, otherwise 1.
func AccountRisk(userID string, now time.Time) int {
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return 1
	}
	age := now.Sub(created)
	switch {
	case age < 24*time.Hour:
		return 10
	case age < 7*24*time.Hour:
		return 5
	}
	return 1
}

// findExecutor returns the executor of the newest entry targeting targetID
// within window, or "".
func findExecutor(entries []*discordgo.AuditLogEntry, targetID string, now time.Time, window time.Duration) string {
	for _, e := range entries {
		if e.TargetID == targetID && inWindow(e.ID, now, window) {
			return e.UserID
		}
	}
	return ""
}

func jailOutcome(res decision.JailResult) string {
	switch {
	case res.Suppressed:
		return "suppressed"
	case res.Created:
		return "jailed"
	}
	return "rejailed"
}

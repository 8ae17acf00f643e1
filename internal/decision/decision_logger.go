package decision

import (
	"github.com/styxgzi/nervesx-bot/internal/logging"
)

const (
	outcomeApplied    = "applied"
	outcomeReapplied  = "reapplied"
	outcomeSuppressed = "suppressed"
	outcomeRejected   = "rejected"
	outcomeFailed     = "failed"
)

// recordDecision counts the outcome and writes the structured incident line.
func recordDecision(kind, outcome, guildID, memberID, reason string) {
	punishments.WithLabelValues(kind, outcome).Inc()
	logging.LogIncident(logging.Incident{
		GuildID: guildID,
		ActorID: memberID,
		Guard:   "punishment",
		Action:  kind,
		Outcome: outcome,
		Reason:  reason,
	})
}

// outcomeOf maps an error from the engine to an outcome label.
func outcomeOf(err error) string {
	if isRejection(err) {
		return outcomeRejected
	}
	return outcomeFailed
}

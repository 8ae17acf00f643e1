package logging

import (
	"go.uber.org/zap"
)

// Incident is one punitive or protective decision taken by the engine.
type Incident struct {
	GuildID string
	ActorID string
	Guard   string
	Action  string
	Outcome string
	Reason  string
	Count   int64
}

// LogIncident writes i as a structured line so decisions can be reconstructed from the log file.
func LogIncident(i Incident) {
	if GlobalLogger == nil {
		return
	}
	GlobalLogger.zl.WithOptions(zap.AddCallerSkip(-2)).Info("incident",
		zap.String("guild_id", i.GuildID),
		zap.String("actor_id", i.ActorID),
		zap.String("guard", i.Guard),
		zap.String("action", i.Action),
		zap.String("outcome", i.Outcome),
		zap.String("reason", i.Reason),
		zap.Int64("count", i.Count),
	)
}

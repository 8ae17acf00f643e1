package models

import "time"

// JailRecord holds the roles a member had before being quarantined.
type JailRecord struct {
	GuildID  string
	MemberID string
	RoleIDs  []string
	Reason   string
	JailedAt time.Time
}

// SpamState is the per-user message window kept in the counter store.
type SpamState struct {
	Count           int   `json:"count"`
	WindowStartedAt int64 `json:"window_started_at"` // unix millis
	Warnings        int   `json:"warnings"`
}

type LogChannelType string

const (
	LogJail      LogChannelType = "jail"
	LogJoin      LogChannelType = "join"
	LogLeave     LogChannelType = "leave"
	LogMessage   LogChannelType = "message"
	LogModerator LogChannelType = "moderator"
	LogServer    LogChannelType = "server"
)

func (t LogChannelType) Valid() bool {
	switch t {
	case LogJail, LogJoin, LogLeave, LogMessage, LogModerator, LogServer:
		return true
	}
	return false
}

// LogChannel binds a log channel type to a concrete guild channel.
type LogChannel struct {
	GuildID string
	Type    LogChannelType
	ID      string
	Name    string
}

// Detection describes why a guard decided to act.
type Detection struct {
	GuildID  string
	ActorID  string
	Guard    string
	Action   ActionType
	Count    int64
	Reason   string
	DetectAt time.Time
}

// LockdownRecord is what a lockdown must restore. It is persisted so a
// restart during a lockdown still reverts it.
type LockdownRecord struct {
	GuildID   string
	PrevLevel int
	// Slowmode maps text channel id to its slow-mode before the lockdown.
	Slowmode map[string]int
	Reason   string
	RevertAt time.Time
}

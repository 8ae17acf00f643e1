package config

import (
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

// Thresholds maps each monitored action to the count within the detection
// window at which it is treated as a nuke attempt.
type Thresholds map[models.ActionType]int64

// DefaultThresholds keeps hard-to-reverse actions at the lowest counts.
var DefaultThresholds = Thresholds{
	models.ActionChannelCreate: 5,
	models.ActionChannelDelete: 1,
	models.ActionChannelUpdate: 5,

	models.ActionMemberKick:       2,
	models.ActionMemberBanAdd:     2,
	models.ActionMemberBanRemove:  2,
	models.ActionMemberPrune:      1,
	models.ActionMemberUpdate:     5,
	models.ActionMemberRoleUpdate: 5,

	models.ActionRoleCreate: 1,
	models.ActionRoleUpdate: 1,
	models.ActionRoleDelete: 1,

	models.ActionGuildUpdate: 1,

	models.ActionWebhookCreate: 1,
	models.ActionWebhookUpdate: 1,
	models.ActionWebhookDelete: 1,

	models.ActionBotAdd:            1,
	models.ActionIntegrationCreate: 1,
	models.ActionIntegrationUpdate: 1,
	models.ActionIntegrationDelete: 1,

	models.ActionEmojiCreate: 50,
	models.ActionEmojiUpdate: 50,
	models.ActionEmojiDelete: 50,

	models.ActionInviteCreate: 100,
	models.ActionInviteUpdate: 100,
	models.ActionInviteDelete: 100,
}

// BuildThresholds merges overrides keyed by action tag into the defaults.
// Counts below 1 are raised to 1 since a zero threshold would fire on every event.
func BuildThresholds(overrides map[string]int64) (Thresholds, error) {
	out := make(Thresholds, len(DefaultThresholds))
	for k, v := range DefaultThresholds {
		out[k] = v
	}
	for tag, v := range overrides {
		action, ok := models.ParseActionType(tag)
		if !ok {
			return nil, fmt.Errorf("unknown action type %q in thresholds", tag)
		}
		out[action] = v
	}
	for k, v := range out {
		if v < 1 {
			out[k] = 1
		}
	}
	return out, nil
}

// For returns the threshold for action and whether the action is monitored.
func (t Thresholds) For(action models.ActionType) (int64, bool) {
	v, ok := t[action]
	return v, ok
}

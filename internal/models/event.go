package models

import "github.com/bwmarrin/discordgo"

// ActionType tags a monitored destructive action. The string form is what
// event handlers pass to the nuke guard and what config overrides are keyed by.
type ActionType string

const (
	ActionChannelCreate     ActionType = "CHANNEL_CREATE"
	ActionChannelDelete     ActionType = "CHANNEL_DELETE"
	ActionChannelUpdate     ActionType = "CHANNEL_UPDATE"
	ActionMemberKick        ActionType = "MEMBER_KICK"
	ActionMemberBanAdd      ActionType = "MEMBER_BAN_ADD"
	ActionMemberBanRemove   ActionType = "MEMBER_BAN_REMOVE"
	ActionMemberPrune       ActionType = "MEMBER_PRUNE"
	ActionMemberUpdate      ActionType = "MEMBER_UPDATE"
	ActionMemberRoleUpdate  ActionType = "MEMBER_ROLE_UPDATE"
	ActionRoleCreate        ActionType = "ROLE_CREATE"
	ActionRoleUpdate        ActionType = "ROLE_UPDATE"
	ActionRoleDelete        ActionType = "ROLE_DELETE"
	ActionGuildUpdate       ActionType = "GUILD_UPDATE"
	ActionWebhookCreate     ActionType = "WEBHOOK_CREATE"
	ActionWebhookUpdate     ActionType = "WEBHOOK_UPDATE"
	ActionWebhookDelete     ActionType = "WEBHOOK_DELETE"
	ActionBotAdd            ActionType = "BOT_ADD"
	ActionIntegrationCreate ActionType = "INTEGRATION_CREATE"
	ActionIntegrationUpdate ActionType = "INTEGRATION_UPDATE"
	ActionIntegrationDelete ActionType = "INTEGRATION_DELETE"
	ActionEmojiCreate       ActionType = "EMOJI_CREATE"
	ActionEmojiUpdate       ActionType = "EMOJI_UPDATE"
	ActionEmojiDelete       ActionType = "EMOJI_DELETE"
	ActionInviteCreate      ActionType = "INVITE_CREATE"
	ActionInviteUpdate      ActionType = "INVITE_UPDATE"
	ActionInviteDelete      ActionType = "INVITE_DELETE"
)

var auditActions = map[ActionType]discordgo.AuditLogAction{
	ActionChannelCreate:     discordgo.AuditLogActionChannelCreate,
	ActionChannelDelete:     discordgo.AuditLogActionChannelDelete,
	ActionChannelUpdate:     discordgo.AuditLogActionChannelUpdate,
	ActionMemberKick:        discordgo.AuditLogActionMemberKick,
	ActionMemberBanAdd:      discordgo.AuditLogActionMemberBanAdd,
	ActionMemberBanRemove:   discordgo.AuditLogActionMemberBanRemove,
	ActionMemberPrune:       discordgo.AuditLogActionMemberPrune,
	ActionMemberUpdate:      discordgo.AuditLogActionMemberUpdate,
	ActionMemberRoleUpdate:  discordgo.AuditLogActionMemberRoleUpdate,
	ActionRoleCreate:        discordgo.AuditLogActionRoleCreate,
	ActionRoleUpdate:        discordgo.AuditLogActionRoleUpdate,
	ActionRoleDelete:        discordgo.AuditLogActionRoleDelete,
	ActionGuildUpdate:       discordgo.AuditLogActionGuildUpdate,
	ActionWebhookCreate:     discordgo.AuditLogActionWebhookCreate,
	ActionWebhookUpdate:     discordgo.AuditLogActionWebhookUpdate,
	ActionWebhookDelete:     discordgo.AuditLogActionWebhookDelete,
	ActionBotAdd:            discordgo.AuditLogActionBotAdd,
	ActionIntegrationCreate: discordgo.AuditLogActionIntegrationCreate,
	ActionIntegrationUpdate: discordgo.AuditLogActionIntegrationUpdate,
	ActionIntegrationDelete: discordgo.AuditLogActionIntegrationDelete,
	ActionEmojiCreate:       discordgo.AuditLogActionEmojiCreate,
	ActionEmojiUpdate:       discordgo.AuditLogActionEmojiUpdate,
	ActionEmojiDelete:       discordgo.AuditLogActionEmojiDelete,
	ActionInviteCreate:      discordgo.AuditLogActionInviteCreate,
	ActionInviteUpdate:      discordgo.AuditLogActionInviteUpdate,
	ActionInviteDelete:      discordgo.AuditLogActionInviteDelete,
}

var actionsByAudit = func() map[discordgo.AuditLogAction]ActionType {
	m := make(map[discordgo.AuditLogAction]ActionType, len(auditActions))
	for k, v := range auditActions {
		m[v] = k
	}
	return m
}()

// ParseActionType returns the tag for s, or false if s is not a monitored action.
func ParseActionType(s string) (ActionType, bool) {
	a := ActionType(s)
	_, ok := auditActions[a]
	return a, ok
}

// AuditAction is the platform audit-log action for a.
func (a ActionType) AuditAction() (discordgo.AuditLogAction, bool) {
	v, ok := auditActions[a]
	return v, ok
}

// ActionTypeFromAudit maps a platform audit-log action back to its tag.
func ActionTypeFromAudit(action discordgo.AuditLogAction) (ActionType, bool) {
	a, ok := actionsByAudit[action]
	return a, ok
}

// AllActionTypes lists every monitored action.
func AllActionTypes() []ActionType {
	out := make([]ActionType, 0, len(auditActions))
	for a := range auditActions {
		out = append(out, a)
	}
	return out
}

func (a ActionType) String() string {
	return string(a)
}

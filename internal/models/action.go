package models

import "slices"

// SecurityProfile is the per-guild authority configuration.
type SecurityProfile struct {
	GuildID            string   `json:"guild_id"`
	OwnerID            string   `json:"owner_id"`
	SecondOwners       []string `json:"second_owners"`
	AdminIDs           []string `json:"admin_ids"`
	ModIDs             []string `json:"mod_ids"`
	AdminRoles         []string `json:"admin_roles"`
	ModRoles           []string `json:"mod_roles"`
	WhitelistedUserIDs []string `json:"whitelisted_user_ids"`
	DangerousRoleIDs   []string `json:"dangerous_role_ids"`
}

// ProfileEntryKind names one of the list fields of a SecurityProfile.
type ProfileEntryKind string

const (
	EntrySecondOwner   ProfileEntryKind = "second_owner"
	EntryAdminUser     ProfileEntryKind = "admin_user"
	EntryModUser       ProfileEntryKind = "mod_user"
	EntryAdminRole     ProfileEntryKind = "admin_role"
	EntryModRole       ProfileEntryKind = "mod_role"
	EntryWhitelistUser ProfileEntryKind = "whitelist_user"
	EntryDangerousRole ProfileEntryKind = "dangerous_role"
)

// Valid reports whether k is a known kind.
func (k ProfileEntryKind) Valid() bool {
	switch k {
	case EntrySecondOwner, EntryAdminUser, EntryModUser, EntryAdminRole,
		EntryModRole, EntryWhitelistUser, EntryDangerousRole:
		return true
	}
	return false
}

// Entries returns the list in p that k refers to.
func (p *SecurityProfile) Entries(k ProfileEntryKind) []string {
	switch k {
	case EntrySecondOwner:
		return p.SecondOwners
	case EntryAdminUser:
		return p.AdminIDs
	case EntryModUser:
		return p.ModIDs
	case EntryAdminRole:
		return p.AdminRoles
	case EntryModRole:
		return p.ModRoles
	case EntryWhitelistUser:
		return p.WhitelistedUserIDs
	case EntryDangerousRole:
		return p.DangerousRoleIDs
	}
	return nil
}

// AddEntry appends id to the list named by k unless already present.
func (p *SecurityProfile) AddEntry(k ProfileEntryKind, id string) {
	var list *[]string
	switch k {
	case EntrySecondOwner:
		list = &p.SecondOwners
	case EntryAdminUser:
		list = &p.AdminIDs
	case EntryModUser:
		list = &p.ModIDs
	case EntryAdminRole:
		list = &p.AdminRoles
	case EntryModRole:
		list = &p.ModRoles
	case EntryWhitelistUser:
		list = &p.WhitelistedUserIDs
	case EntryDangerousRole:
		list = &p.DangerousRoleIDs
	default:
		return
	}
	if !slices.Contains(*list, id) {
		*list = append(*list, id)
	}
}

// AntiSpamPolicy configures the message-burst rule for a guild.
type AntiSpamPolicy struct {
	WindowSeconds        int `json:"window_seconds"`
	MaxMessagesPerWindow int `json:"max_messages_per_window"`
	MaxWarnings          int `json:"max_warnings"`
}

func DefaultAntiSpamPolicy() AntiSpamPolicy {
	return AntiSpamPolicy{
		WindowSeconds:        5,
		MaxMessagesPerWindow: 10,
		MaxWarnings:          3,
	}
}

// Normalize replaces non-positive fields with defaults.
func (p AntiSpamPolicy) Normalize() AntiSpamPolicy {
	d := DefaultAntiSpamPolicy()
	if p.WindowSeconds <= 0 {
		p.WindowSeconds = d.WindowSeconds
	}
	if p.MaxMessagesPerWindow <= 0 {
		p.MaxMessagesPerWindow = d.MaxMessagesPerWindow
	}
	if p.MaxWarnings <= 0 {
		p.MaxWarnings = d.MaxWarnings
	}
	return p
}

package authority

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

// DangerousPermissions are capabilities that make a role a privilege-escalation risk.
const DangerousPermissions int64 = discordgo.PermissionAdministrator |
	discordgo.PermissionManageRoles |
	discordgo.PermissionManageGuild

// IsDangerousRole reports whether granting role needs extra authority.
func IsDangerousRole(role *discordgo.Role, p *models.SecurityProfile) bool {
	if role == nil {
		return false
	}
	if p != nil && slices.Contains(p.DangerousRoleIDs, role.ID) {
		return true
	}
	return role.Permissions&DangerousPermissions != 0
}

// CanGrantRole decides whether an actor of the given tier may hand out role.
// Dangerous roles are limited to superusers: the owner, second owners, admins
// and whitelisted accounts.
func CanGrantRole(actorTier Tier, role *discordgo.Role, p *models.SecurityProfile) Decision {
	if !IsDangerousRole(role, p) {
		return allow()
	}
	switch actorTier {
	case TierOwner, TierSecondOwner, TierAdmin, TierWhitelisted:
		return allow()
	}
	return deny("%s cannot grant the dangerous role %s", actorTier, role.Name)
}

// rolesByID indexes a guild's roles.
func rolesByID(guild *discordgo.Guild) map[string]*discordgo.Role {
	m := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, r := range guild.Roles {
		m[r.ID] = r
	}
	return m
}

// HighestRole returns the highest positioned role among roleIDs, or nil.
func HighestRole(guild *discordgo.Guild, roleIDs []string) *discordgo.Role {
	byID := rolesByID(guild)
	var highest *discordgo.Role
	for _, id := range roleIDs {
		r, ok := byID[id]
		if !ok {
			continue
		}
		if highest == nil || r.Position > highest.Position {
			highest = r
		}
	}
	return highest
}

// MemberPermissions folds the guild-level permissions of the everyone role and
// the member's roles. The owner holds every permission.
func MemberPermissions(guild *discordgo.Guild, userID string, roleIDs []string) int64 {
	if userID == guild.OwnerID {
		return discordgo.PermissionAll
	}
	byID := rolesByID(guild)
	var perms int64
	if everyone, ok := byID[guild.ID]; ok {
		perms |= everyone.Permissions
	}
	for _, id := range roleIDs {
		if r, ok := byID[id]; ok {
			perms |= r.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

// CanManageRole reports whether a member whose highest role is top may assign
// or remove role. Integration-managed roles and the everyone role are never manageable.
func CanManageRole(guild *discordgo.Guild, top *discordgo.Role, role *discordgo.Role) bool {
	if role == nil || role.Managed || role.ID == guild.ID {
		return false
	}
	if top == nil {
		return false
	}
	return top.Position > role.Position
}

// RoleByName finds a role by exact name.
func RoleByName(guild *discordgo.Guild, name string) *discordgo.Role {
	for _, r := range guild.Roles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// RoleByID finds a role by id.
func RoleByID(guild *discordgo.Guild, id string) *discordgo.Role {
	for _, r := range guild.Roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

package authority

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

type RiskLevel uint8

const (
	RiskMedium RiskLevel = iota + 1
	RiskHigh
)

func (l RiskLevel) String() string {
	if l == RiskHigh {
		return "High"
	}
	return "Medium"
}

// Risk is one finding of a guild security scan.
type Risk struct {
	Level       RiskLevel
	Issue       string
	Remediation string
}

// SecurityReport lists roles holding dangerous permissions and text channels
// the everyone role can read, high risks first.
func SecurityReport(guild *discordgo.Guild, p *models.SecurityProfile) []Risk {
	risks := append(roleRisks(guild, p), channelRisks(guild)...)
	sort.SliceStable(risks, func(i, j int) bool { return risks[i].Level > risks[j].Level })
	return risks
}

func roleRisks(guild *discordgo.Guild, p *models.SecurityProfile) []Risk {
	roles := append([]*discordgo.Role{}, guild.Roles...)
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Position > roles[j].Position })

	var out []Risk
	for _, r := range roles {
		switch {
		case r.Permissions&discordgo.PermissionAdministrator != 0:
			out = append(out, Risk{
				Level:       RiskHigh,
				Issue:       fmt.Sprintf("Role %s has the Administrator permission.", r.Name),
				Remediation: fmt.Sprintf("Remove Administrator from %s unless every holder is trusted.", r.Name),
			})
		case IsDangerousRole(r, p):
			out = append(out, Risk{
				Level:       RiskMedium,
				Issue:       fmt.Sprintf("Role %s can manage roles or server settings.", r.Name),
				Remediation: fmt.Sprintf("Review who holds %s.", r.Name),
			})
		}
	}
	return out
}

func channelRisks(guild *discordgo.Guild) []Risk {
	var out []Risk
	for _, ch := range guild.Channels {
		if ch.Type != discordgo.ChannelTypeGuildText && ch.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		if !EveryoneCanView(guild, ch) {
			continue
		}
		out = append(out, Risk{
			Level:       RiskMedium,
			Issue:       fmt.Sprintf("Channel <#%s> is readable by everyone.", ch.ID),
			Remediation: fmt.Sprintf("Deny View Channel for @everyone on <#%s> if it is not meant to be public.", ch.ID),
		})
	}
	return out
}

// EveryoneCanView applies the channel's everyone overwrite to the everyone
// role's guild permissions.
func EveryoneCanView(guild *discordgo.Guild, ch *discordgo.Channel) bool {
	var perms int64
	if everyone := RoleByID(guild, guild.ID); everyone != nil {
		perms = everyone.Permissions
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, o := range ch.PermissionOverwrites {
		if o.Type == discordgo.PermissionOverwriteTypeRole && o.ID == guild.ID {
			perms &^= o.Deny
			perms |= o.Allow
		}
	}
	return perms&discordgo.PermissionViewChannel != 0
}

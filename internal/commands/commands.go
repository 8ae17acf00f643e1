package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

func memberOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        "member",
		Description: description,
		Type:        discordgo.ApplicationCommandOptionUser,
		Required:    true,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        "reason",
		Description: "Reason recorded in the logs",
		Type:        discordgo.ApplicationCommandOptionString,
	}
}

// securitySubcommands builds the add/remove pair for every profile list.
func securitySubcommands() []*discordgo.ApplicationCommandOption {
	lists := []struct {
		name  string
		users bool
		roles bool
	}{
		{"whitelist", true, false},
		{"secondowner", true, false},
		{"admin", true, true},
		{"mod", true, true},
		{"dangerous", false, true},
	}

	opts := []*discordgo.ApplicationCommandOption{{
		Name:        "view",
		Description: "Show the security profile of this server",
		Type:        discordgo.ApplicationCommandOptionSubCommand,
	}}
	for _, l := range lists {
		var targets []*discordgo.ApplicationCommandOption
		if l.users {
			targets = append(targets, &discordgo.ApplicationCommandOption{
				Name:        "user",
				Description: "User to change",
				Type:        discordgo.ApplicationCommandOptionUser,
			})
		}
		if l.roles {
			targets = append(targets, &discordgo.ApplicationCommandOption{
				Name:        "role",
				Description: "Role to change",
				Type:        discordgo.ApplicationCommandOptionRole,
			})
		}
		// a single target kind is mandatory
		if len(targets) == 1 {
			targets[0].Required = true
		}
		for _, verb := range []string{"add", "remove"} {
			opts = append(opts, &discordgo.ApplicationCommandOption{
				Name:        l.name + "-" + verb,
				Description: verb + " an entry of " + entryOps[l.name].label,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     targets,
			})
		}
	}
	return opts
}

func logTypeChoices() []*discordgo.ApplicationCommandOptionChoice {
	types := []models.LogChannelType{models.LogJail, models.LogJoin, models.LogLeave, models.LogMessage, models.LogModerator, models.LogServer}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(types))
	for i, t := range types {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{Name: string(t), Value: string(t)}
	}
	return choices
}

func intOption(name, description string, min, max int) *discordgo.ApplicationCommandOption {
	lo := float64(min)
	return &discordgo.ApplicationCommandOption{
		Name:        name,
		Description: description,
		Type:        discordgo.ApplicationCommandOptionInteger,
		MinValue:    &lo,
		MaxValue:    float64(max),
	}
}

// GetAllCommands returns all application commands
func GetAllCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "jail",
			Description: "Quarantine a member and save their roles",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to jail"), reasonOption()},
		},
		{
			Name:        "unjail",
			Description: "Release a jailed member and restore their roles",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to release")},
		},
		{
			Name:        "mute",
			Description: "Mute a member",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to mute")},
		},
		{
			Name:        "unmute",
			Description: "Unmute a member",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to unmute")},
		},
		{
			Name:        "security",
			Description: "Manage the security profile",
			Options:     securitySubcommands(),
		},
		{
			Name:        "antispam",
			Description: "Configure the anti-spam policy",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("window", "Time window in seconds", 1, 60),
				intOption("max", "Messages allowed per window", 1, 100),
				intOption("warnings", "Warnings before jail", 1, 10),
			},
		},
		{
			Name:        "logs",
			Description: "Configure logging",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "type",
					Description: "Kind of log line",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
					Choices:     logTypeChoices(),
				},
				{
					Name:         "channel",
					Description:  "Channel to send logs to",
					Type:         discordgo.ApplicationCommandOptionChannel,
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:        "lockdown",
			Description: "Raise verification and slow-mode for a while",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "start",
					Description: "Engage the lockdown",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options:     []*discordgo.ApplicationCommandOption{reasonOption()},
				},
				{
					Name:        "end",
					Description: "Lift the lockdown now",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "status",
					Description: "Show whether a lockdown is active",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
		{
			Name:        "antilink",
			Description: "Choose where members may post links",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "allow",
					Description: "Allow links in a channel",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options:     []*discordgo.ApplicationCommandOption{textChannelOption()},
				},
				{
					Name:        "disallow",
					Description: "Remove links from a channel again",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options:     []*discordgo.ApplicationCommandOption{textChannelOption()},
				},
				{
					Name:        "list",
					Description: "Show the channels where links are allowed",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
		{
			Name:        "scan",
			Description: "Report roles and channels that put the server at risk",
		},
	}
}

func textChannelOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:         "channel",
		Description:  "Text channel",
		Type:         discordgo.ApplicationCommandOptionChannel,
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

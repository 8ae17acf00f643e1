// Package decision is the punishment engine: jail and unjail with role
// snapshots, mute and unmute, and the temporary raid lockdown.
package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// JailStore persists jail records.
type JailStore interface {
	CreateJailRecord(ctx context.Context, rec *models.JailRecord) (bool, error)
	GetJailRecord(ctx context.Context, guildID, memberID string) (*models.JailRecord, error)
	DeleteJailRecord(ctx context.Context, guildID, memberID string) error
}

// LogSink receives log-channel lines. Delivery is best effort.
type LogSink interface {
	SendLogMessage(ctx context.Context, guildID string, t models.LogChannelType, text string, embed *discordgo.MessageEmbed)
}

type Options struct {
	JailRole string
	MuteRole string
	Cooldown time.Duration
}

type Engine struct {
	platform platform.Platform
	store    JailStore
	profiles authority.ProfileSource
	sink     LogSink
	opts     Options
	cooldown *CooldownManager
	now      func() time.Time
}

func NewEngine(p platform.Platform, store JailStore, profiles authority.ProfileSource, sink LogSink, opts Options) *Engine {
	if opts.JailRole == "" {
		opts.JailRole = "Jail"
	}
	if opts.MuteRole == "" {
		opts.MuteRole = "Muted"
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 60 * time.Second
	}
	return &Engine{
		platform: p,
		store:    store,
		profiles: profiles,
		sink:     sink,
		opts:     opts,
		cooldown: NewCooldownManager(opts.Cooldown),
		now:      time.Now,
	}
}

// WithClock replaces the time source of the engine and its cooldowns.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	e.cooldown.WithClock(now)
	return e
}

// guildContext is the guild plus the automation account's standing in it.
type guildContext struct {
	guild   *discordgo.Guild
	botTop  *discordgo.Role
	botPerm int64
	profile *models.SecurityProfile
}

func (e *Engine) load(ctx context.Context, guildID string) (*guildContext, error) {
	guild, err := e.platform.Guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	bot, err := platform.BotMember(ctx, e.platform, guildID)
	if err != nil {
		return nil, err
	}
	profile, err := e.profiles.Profile(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return &guildContext{
		guild:   guild,
		botTop:  authority.HighestRole(guild, bot.Roles),
		botPerm: authority.MemberPermissions(guild, e.platform.SelfID(), bot.Roles),
		profile: profile,
	}, nil
}

// role resolves a managed role by name and checks the automation account can
// assign it.
func (gc *guildContext) role(name string) (*discordgo.Role, error) {
	role := authority.RoleByName(gc.guild, name)
	if role == nil {
		return nil, fmt.Errorf("%w: %q", ErrRoleMissing, name)
	}
	if gc.botPerm&discordgo.PermissionManageRoles == 0 {
		return nil, fmt.Errorf("%w: Manage Roles", ErrBotPermission)
	}
	if !authority.CanManageRole(gc.guild, gc.botTop, role) {
		return nil, fmt.Errorf("%w: cannot manage %q", ErrBotHierarchy, name)
	}
	return role, nil
}

func (e *Engine) immune(gc *guildContext, memberID string) error {
	if authority.IsImmune(memberID, e.platform.SelfID(), gc.profile) {
		return fmt.Errorf("%w: %s", ErrImmuneTarget, memberID)
	}
	return nil
}

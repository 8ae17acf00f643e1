package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/detectors"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

type Punisher interface {
	Jail(ctx context.Context, guildID, memberID, reason string) (decision.JailResult, error)
	Unjail(ctx context.Context, guildID string, actor authority.Subject, memberID string) (decision.UnjailResult, error)
	Mute(ctx context.Context, guildID, memberID, reason string) error
	Unmute(ctx context.Context, guildID, memberID, reason string) error
}

type Lockdown interface {
	ActivateLockdown(ctx context.Context, guildID, reason string) (bool, error)
	DeactivateLockdown(ctx context.Context, guildID string) bool
	Status(guildID string) (revertAt time.Time, active bool)
}

// Store is the persistent side of the settings commands.
type Store interface {
	AddProfileEntry(ctx context.Context, guildID string, kind models.ProfileEntryKind, targetID string) error
	RemoveProfileEntry(ctx context.Context, guildID string, kind models.ProfileEntryKind, targetID string) error
	SetAntiSpamPolicy(ctx context.Context, guildID string, p models.AntiSpamPolicy) error
	SetLogChannel(ctx context.Context, ch *models.LogChannel) error

	AddLinkAllowedChannel(ctx context.Context, guildID, channelID string) error
	RemoveLinkAllowedChannel(ctx context.Context, guildID, channelID string) error
	LinkAllowedChannels(ctx context.Context, guildID string) ([]string, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, guildID string)
}

type Deps struct {
	Punisher Punisher
	Lockdown Lockdown
	Resolver *authority.Resolver
	Platform platform.Platform
	Store    Store
	Cache    Invalidator
	Policies detectors.PolicySource
	Sink     decision.LogSink
}

// Handler answers slash commands. Every command checks authority through
// the resolver before touching anything.
type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

// Request is a parsed slash command invocation.
type Request struct {
	GuildID   string
	ChannelID string
	Actor     authority.Subject
	Command   string
	// Sub is the subcommand name, empty for flat commands.
	Sub     string
	Options map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func (r Request) option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	return r.Options[name]
}

func (r Request) str(name string) string {
	if o := r.option(name); o != nil {
		if s, ok := o.Value.(string); ok {
			return s
		}
	}
	return ""
}

// id returns the snowflake of a user, role, channel or mentionable option.
func (r Request) id(name string) string {
	return r.str(name)
}

func (r Request) integer(name string) (int64, bool) {
	o := r.option(name)
	if o == nil {
		return 0, false
	}
	switch v := o.Value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Reply is what a command answers with. Replies are only shown to the invoker.
type Reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

func errorReply(err error) Reply {
	return Reply{Content: "❌ Error: " + err.Error()}
}

// ParseRequest flattens an interaction into a Request. It returns false for
// anything but a guild slash command.
func ParseRequest(i *discordgo.InteractionCreate) (Request, bool) {
	if i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand || i.Member == nil || i.Member.User == nil {
		return Request{}, false
	}
	data := i.ApplicationCommandData()
	req := Request{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Actor:     authority.Subject{ID: i.Member.User.ID, RoleIDs: i.Member.Roles},
		Command:   data.Name,
		Options:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption),
	}
	opts := data.Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		req.Sub = opts[0].Name
		opts = opts[0].Options
	}
	for _, o := range opts {
		req.Options[o.Name] = o
	}
	return req, true
}

// HandleInteraction defers the response, runs the command and edits the
// deferred response with the result.
func (h *Handler) HandleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	req, ok := ParseRequest(i)
	if !ok {
		return
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		logging.Warn("[COMMAND] could not acknowledge /%s: %v", req.Command, err)
		return
	}

	reply := h.Dispatch(ctx, req)

	edit := &discordgo.WebhookEdit{Content: &reply.Content}
	if reply.Embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{reply.Embed}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit, discordgo.WithContext(ctx)); err != nil {
		logging.Warn("[COMMAND] could not answer /%s: %v", req.Command, err)
	}
}

// Dispatch routes a request to its command.
func (h *Handler) Dispatch(ctx context.Context, req Request) Reply {
	var reply Reply
	var err error
	switch req.Command {
	case "jail":
		reply, err = h.handleJail(ctx, req)
	case "unjail":
		reply, err = h.handleUnjail(ctx, req)
	case "mute":
		reply, err = h.handleMute(ctx, req, true)
	case "unmute":
		reply, err = h.handleMute(ctx, req, false)
	case "security":
		reply, err = h.handleSecurity(ctx, req)
	case "antispam":
		reply, err = h.handleAntiSpam(ctx, req)
	case "logs":
		reply, err = h.handleLogs(ctx, req)
	case "lockdown":
		reply, err = h.handleLockdown(ctx, req)
	case "antilink":
		reply, err = h.handleAntiLink(ctx, req)
	case "scan":
		reply, err = h.handleScan(ctx, req)
	default:
		err = fmt.Errorf("unknown command: %s", req.Command)
	}

	if err != nil {
		if errors.Is(err, decision.ErrPermissionDenied) {
			logging.Info("[COMMAND] /%s %s by %s in guild %s denied: %v", req.Command, req.Sub, req.Actor.ID, req.GuildID, err)
		} else {
			logging.Error("[COMMAND] /%s %s by %s in guild %s: %v", req.Command, req.Sub, req.Actor.ID, req.GuildID, err)
		}
		return errorReply(err)
	}
	return reply
}

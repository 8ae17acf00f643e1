package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/logging"
)

// Intents covers every event the guards and commands consume. Audit-log
// entry events arrive under GuildModeration.
const Intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMembers |
	discordgo.IntentGuildModeration |
	discordgo.IntentGuildMessages |
	discordgo.IntentMessageContent |
	discordgo.IntentGuildVoiceStates

type Session struct {
	discord *discordgo.Session
}

// NewSession creates the Discord session without connecting.
func NewSession(token string) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = Intents
	// members are cached so GuildMemberUpdate carries BeforeUpdate
	dg.State.TrackMembers = true
	dg.StateEnabled = true

	return &Session{discord: dg}, nil
}

// GetDiscord returns the underlying discordgo session
func (s *Session) GetDiscord() *discordgo.Session {
	return s.discord
}

// Connect opens the Discord websocket connection
func (s *Session) Connect() error {
	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	if u := s.discord.State.User; u != nil {
		logging.Info("[BOT] connected as %s (%s)", u.Username, u.ID)
	}
	return nil
}

// Close closes the Discord connection
func (s *Session) Close() error {
	if s.discord != nil {
		return s.discord.Close()
	}
	return nil
}

// RegisterCommands overwrites the global slash commands in one call.
func (s *Session) RegisterCommands(commands []*discordgo.ApplicationCommand) error {
	if s.discord.State.User == nil {
		return fmt.Errorf("failed to register commands: session is not connected")
	}
	logging.Info("[BOT] registering %d slash commands", len(commands))

	_, err := s.discord.ApplicationCommandBulkOverwrite(s.discord.State.User.ID, "", commands)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	return nil
}

// AddHandler adds an event handler to the Discord session
func (s *Session) AddHandler(handler interface{}) func() {
	return s.discord.AddHandler(handler)
}

package detectors

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/net/publicsuffix"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/notifier"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// LinkKind orders link classes by severity.
type LinkKind uint8

const (
	LinkNone LinkKind = iota
	LinkGIF
	LinkWebsite
	LinkInvite
)

func (k LinkKind) String() string {
	switch k {
	case LinkGIF:
		return "gif"
	case LinkWebsite:
		return "website"
	case LinkInvite:
		return "invite"
	}
	return "none"
}

var urlPattern = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

var gifHosts = []string{"tenor.com", "giphy.com"}

// ClassifyLinks returns the most severe kind of link found in content.
func ClassifyLinks(content string) LinkKind {
	worst := LinkNone
	for _, raw := range urlPattern.FindAllString(content, -1) {
		if k := classifyLink(raw); k > worst {
			worst = k
		}
	}
	return worst
}

func classifyLink(raw string) LinkKind {
	explicit := strings.Contains(raw, "://")
	if !explicit {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return LinkNone
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return LinkNone
	}
	// bare text like "file.txt" or "1.5" ends in a suffix nobody registers
	if _, icann := publicsuffix.PublicSuffix(host); !icann && !explicit {
		return LinkNone
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}

	p := strings.ToLower(u.Path)
	switch {
	case domain == "discord.gg":
		return LinkInvite
	case (domain == "discord.com" || domain == "discordapp.com") && strings.HasPrefix(p, "/invite/"):
		return LinkInvite
	case slices.Contains(gifHosts, domain) || path.Ext(p) == ".gif":
		return LinkGIF
	}
	return LinkWebsite
}

// LinkChannels lists the channels of a guild where ordinary links are allowed.
type LinkChannels interface {
	LinkAllowedChannels(ctx context.Context, guildID string) ([]string, error)
}

// LinkGuard removes links posted by members. GIFs are always allowed,
// invites never are, and other links only in link-allowed channels.
type LinkGuard struct {
	resolver *authority.Resolver
	channels LinkChannels
	platform platform.Platform
	sink     decision.LogSink
}

func NewLinkGuard(resolver *authority.Resolver, channels LinkChannels, p platform.Platform, sink decision.LogSink) *LinkGuard {
	return &LinkGuard{resolver: resolver, channels: channels, platform: p, sink: sink}
}

func (g *LinkGuard) OnMessage(ctx context.Context, m *discordgo.Message) Verdict {
	if ignoredMessage(m) {
		return VerdictNone
	}
	kind := ClassifyLinks(m.Content)
	if kind <= LinkGIF {
		return VerdictNone
	}
	exempt, ok := exemptAuthor(ctx, g.resolver, g.platform, m, guardLink)
	if !ok {
		return VerdictNone
	}
	if exempt {
		return VerdictExempt
	}

	if kind == LinkWebsite {
		allowed, err := g.channels.LinkAllowedChannels(ctx, m.GuildID)
		if err != nil {
			guardFailed(guardLink, "allowed channels of guild %s: %v", m.GuildID, err)
			return VerdictNone
		}
		if slices.Contains(allowed, m.ChannelID) {
			return VerdictNone
		}
	}

	if err := g.platform.DeleteMessage(ctx, m.ChannelID, m.ID, kind.String()+" link not allowed"); err != nil {
		guardFailed(guardLink, "delete message %s in channel %s: %v", m.ID, m.ChannelID, err)
		return VerdictNone
	}
	detections.WithLabelValues(guardLink).Inc()

	if err := g.platform.SendDirectMessage(ctx, m.Author.ID, "", notifier.LinkNoticeEmbed(kind.String())); err != nil {
		logging.Debug("[LINK] could not DM %s: %v", m.Author.ID, err)
	}
	g.sink.SendLogMessage(ctx, m.GuildID, models.LogMessage, "",
		notifier.LinkRemovedEmbed(m.Author.ID, m.ChannelID, kind.String(), m.Content))
	logging.LogIncident(logging.Incident{
		GuildID: m.GuildID,
		ActorID: m.Author.ID,
		Guard:   guardLink,
		Action:  "delete_message",
		Outcome: "removed",
		Reason:  fmt.Sprintf("%s link in channel %s", kind, m.ChannelID),
	})
	return VerdictRemoved
}

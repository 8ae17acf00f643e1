// Package platformtest provides an in-memory Platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// Message is a recorded outbound message.
type Message struct {
	To      string
	Content string
	Embed   *discordgo.MessageEmbed
}

// Fake records every mutation. Set Fail[method] to make that method return
// the error.
type Fake struct {
	mu sync.Mutex

	Self     string
	Guilds   map[string]*discordgo.Guild
	Members  map[string]map[string]*discordgo.Member
	Audit    map[string][]*discordgo.AuditLogEntry
	Slowmode map[string]int
	Muted    map[string]bool
	Bans     map[string]string

	DMs      []Message
	Messages []Message
	Deleted  []string
	Calls    []string

	Fail map[string]error
}

func New(selfID string) *Fake {
	return &Fake{
		Self:     selfID,
		Guilds:   make(map[string]*discordgo.Guild),
		Members:  make(map[string]map[string]*discordgo.Member),
		Audit:    make(map[string][]*discordgo.AuditLogEntry),
		Slowmode: make(map[string]int),
		Muted:    make(map[string]bool),
		Bans:     make(map[string]string),
		Fail:     make(map[string]error),
	}
}

var _ platform.Platform = (*Fake)(nil)

// AddGuild registers a guild. The everyone role is created with the guild id.
func (f *Fake) AddGuild(g *discordgo.Guild) *discordgo.Guild {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.ContainsFunc(g.Roles, func(r *discordgo.Role) bool { return r.ID == g.ID }) {
		g.Roles = append(g.Roles, &discordgo.Role{ID: g.ID, Name: "@everyone"})
	}
	f.Guilds[g.ID] = g
	if f.Members[g.ID] == nil {
		f.Members[g.ID] = make(map[string]*discordgo.Member)
	}
	return g
}

func (f *Fake) AddMember(guildID string, m *discordgo.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.GuildID = guildID
	if f.Members[guildID] == nil {
		f.Members[guildID] = make(map[string]*discordgo.Member)
	}
	f.Members[guildID][m.User.ID] = m
}

// AddAuditEntry prepends entry so the newest entry comes first.
func (f *Fake) AddAuditEntry(guildID string, entry *discordgo.AuditLogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Audit[guildID] = append([]*discordgo.AuditLogEntry{entry}, f.Audit[guildID]...)
}

func (f *Fake) RemoveRole(guildID, roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.Guilds[guildID]
	g.Roles = slices.DeleteFunc(g.Roles, func(r *discordgo.Role) bool { return r.ID == roleID })
}

// Roles returns a copy of a member's current role ids.
func (f *Fake) Roles(guildID, userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.Members[guildID][userID]
	if m == nil {
		return nil
	}
	return append([]string{}, m.Roles...)
}

func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *Fake) record(method string) error {
	f.Calls = append(f.Calls, method)
	return f.Fail[method]
}

func (f *Fake) SelfID() string { return f.Self }

func (f *Fake) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Guild"); err != nil {
		return nil, err
	}
	g, ok := f.Guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %s: %w", guildID, platform.ErrNotFound)
	}
	cp := *g
	cp.Roles = make([]*discordgo.Role, len(g.Roles))
	for i, r := range g.Roles {
		rc := *r
		cp.Roles[i] = &rc
	}
	cp.Channels = make([]*discordgo.Channel, len(g.Channels))
	for i, ch := range g.Channels {
		cc := *ch
		cp.Channels[i] = &cc
	}
	return &cp, nil
}

func (f *Fake) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Member"); err != nil {
		return nil, err
	}
	m, ok := f.Members[guildID][userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	cp := *m
	cp.Roles = append([]string{}, m.Roles...)
	return &cp, nil
}

func (f *Fake) RecentMembers(ctx context.Context, guildID string, limit int) ([]*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RecentMembers"); err != nil {
		return nil, err
	}
	var out []*discordgo.Member
	for _, m := range f.Members[guildID] {
		cp := *m
		cp.Roles = append([]string{}, m.Roles...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) member(guildID, userID string) (*discordgo.Member, error) {
	m, ok := f.Members[guildID][userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	return m, nil
}

func (f *Fake) SetMemberRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetMemberRoles"); err != nil {
		return err
	}
	m, err := f.member(guildID, userID)
	if err != nil {
		return err
	}
	m.Roles = append([]string{}, roleIDs...)
	return nil
}

func (f *Fake) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddMemberRole"); err != nil {
		return err
	}
	m, err := f.member(guildID, userID)
	if err != nil {
		return err
	}
	if !slices.Contains(m.Roles, roleID) {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (f *Fake) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RemoveMemberRole"); err != nil {
		return err
	}
	m, err := f.member(guildID, userID)
	if err != nil {
		return err
	}
	m.Roles = slices.DeleteFunc(m.Roles, func(id string) bool { return id == roleID })
	return nil
}

func (f *Fake) SetVoiceMute(ctx context.Context, guildID, userID string, mute bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetVoiceMute"); err != nil {
		return err
	}
	f.Muted[guildID+":"+userID] = mute
	if m, ok := f.Members[guildID][userID]; ok {
		m.Mute = mute
	}
	return nil
}

func (f *Fake) BanMember(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("BanMember"); err != nil {
		return err
	}
	f.Bans[guildID+":"+userID] = reason
	delete(f.Members[guildID], userID)
	return nil
}

func (f *Fake) SetSlowMode(ctx context.Context, channelID string, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetSlowMode"); err != nil {
		return err
	}
	f.Slowmode[channelID] = seconds
	for _, g := range f.Guilds {
		for _, ch := range g.Channels {
			if ch.ID == channelID {
				ch.RateLimitPerUser = seconds
			}
		}
	}
	return nil
}

func (f *Fake) SetVerificationLevel(ctx context.Context, guildID string, level discordgo.VerificationLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetVerificationLevel"); err != nil {
		return err
	}
	g, ok := f.Guilds[guildID]
	if !ok {
		return platform.ErrNotFound
	}
	g.VerificationLevel = level
	return nil
}

func (f *Fake) AuditLog(ctx context.Context, guildID string, action discordgo.AuditLogAction, limit int) ([]*discordgo.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AuditLog"); err != nil {
		return nil, err
	}
	var out []*discordgo.AuditLogEntry
	for _, e := range f.Audit[guildID] {
		if e.ActionType != nil && *e.ActionType == action {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *Fake) SendDirectMessage(ctx context.Context, userID, content string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SendDirectMessage"); err != nil {
		return err
	}
	f.DMs = append(f.DMs, Message{To: userID, Content: content, Embed: embed})
	return nil
}

func (f *Fake) SendChannelMessage(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SendChannelMessage"); err != nil {
		return err
	}
	f.Messages = append(f.Messages, Message{To: channelID, Content: content, Embed: embed})
	return nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteMessage"); err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, channelID+":"+messageID)
	return nil
}

// DeletedMessages returns "channel:message" pairs in deletion order.
func (f *Fake) DeletedMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.Deleted...)
}

// SentMessages returns a copy of the channel messages sent so far.
func (f *Fake) SentMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message{}, f.Messages...)
}

func (f *Fake) SentDMs() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message{}, f.DMs...)
}

func (f *Fake) SetFail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Fail, method)
		return
	}
	f.Fail[method] = err
}

// Snowflake encodes t the way Discord ids do.
func Snowflake(t time.Time, seq int) string {
	return strconv.FormatInt((t.UnixMilli()-discordEpochMs)<<22|int64(seq&0xfff), 10)
}

const discordEpochMs = 1420070400000

// AuditEntry builds an entry with the given snowflake id.
func AuditEntry(id string, action discordgo.AuditLogAction, executorID, targetID string) *discordgo.AuditLogEntry {
	a := action
	return &discordgo.AuditLogEntry{ID: id, ActionType: &a, UserID: executorID, TargetID: targetID}
}

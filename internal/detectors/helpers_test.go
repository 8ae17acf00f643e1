package detectors

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/counter"
	"github.com/styxgzi/nervesx-bot/internal/decision"
	"github.com/styxgzi/nervesx-bot/internal/dispatcher"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform/platformtest"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

// oldID is an account id from 2020.
func oldID(seq int) string {
	return platformtest.Snowflake(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), seq)
}

// youngID is an account created an hour before testNow.
func youngID(seq int) string {
	return platformtest.Snowflake(testNow.Add(-time.Hour), seq)
}

type staticProfiles struct{ p *models.SecurityProfile }

func (s staticProfiles) Profile(ctx context.Context, guildID string) (*models.SecurityProfile, error) {
	return s.p, nil
}

func testProfile() *models.SecurityProfile {
	return &models.SecurityProfile{
		GuildID:            "g1",
		OwnerID:            "owner",
		SecondOwners:       []string{"second"},
		AdminIDs:           []string{"admin"},
		ModIDs:             []string{"mod"},
		ModRoles:           []string{"role-mod"},
		WhitelistedUserIDs: []string{"trusted"},
		DangerousRoleIDs:   []string{"R"},
	}
}

type stubEscalator struct {
	mu      sync.Mutex
	jailed  []string
	reasons []string
	err     error
}

func (s *stubEscalator) Escalate(ctx context.Context, guildID, memberID, reason string) (decision.JailResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return decision.JailResult{}, s.err
	}
	s.jailed = append(s.jailed, memberID)
	s.reasons = append(s.reasons, reason)
	return decision.JailResult{Created: true}, nil
}

func (s *stubEscalator) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.jailed...)
}

type stubMuter struct {
	muted []string
}

func (s *stubMuter) Mute(ctx context.Context, guildID, memberID, reason string) error {
	s.muted = append(s.muted, memberID)
	return nil
}

type stubLockdown struct {
	active bool
	calls  int
}

func (s *stubLockdown) ActivateLockdown(ctx context.Context, guildID, reason string) (bool, error) {
	s.calls++
	if s.active {
		return false, nil
	}
	s.active = true
	return true, nil
}

// inlinePool runs submitted tasks immediately.
type inlinePool struct {
	submitted []string
}

func (p *inlinePool) Submit(t dispatcher.Task) error {
	p.submitted = append(p.submitted, t.Name)
	t.Run(context.Background())
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	lines  map[models.LogChannelType][]string
	embeds []*discordgo.MessageEmbed
}

func (s *recordingSink) SendLogMessage(ctx context.Context, guildID string, t models.LogChannelType, text string, embed *discordgo.MessageEmbed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lines == nil {
		s.lines = make(map[models.LogChannelType][]string)
	}
	s.lines[t] = append(s.lines[t], text)
	if embed != nil {
		s.embeds = append(s.embeds, embed)
	}
}

func (s *recordingSink) get(t models.LogChannelType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[t]
}

var errStoreDown = errors.New("connection refused")

type downStore struct{}

func (downStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (downStore) Set(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (downStore) Delete(context.Context, string) error { return errStoreDown }
func (downStore) IncrementWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (downStore) Ping(context.Context) error { return errStoreDown }

var _ counter.Store = downStore{}

func testGuild(f *platformtest.Fake, botPerms int64) {
	f.AddGuild(&discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "R", Name: "Helpers", Position: 3},
			{ID: "plain", Name: "Artists", Position: 2},
			{ID: "role-mod", Name: "Mods", Position: 5, Permissions: discordgo.PermissionManageRoles},
			{ID: "botrole", Name: "nervesx", Position: 10, Permissions: botPerms},
		},
	})
	f.AddMember("g1", &discordgo.Member{User: &discordgo.User{ID: "bot"}, Roles: []string{"botrole"}})
}

func newResolver() *authority.Resolver {
	return authority.NewResolver(staticProfiles{testProfile()})
}

package decision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
	"github.com/styxgzi/nervesx-bot/internal/platform"
)

// Stopper is the part of *time.Timer the lockdown needs.
type Stopper interface {
	Stop() bool
}

// LockdownOptions configures the temporary raid lockdown.
type LockdownOptions struct {
	SlowmodeSeconds int
	RevertAfter     time.Duration
}

// LockdownStore persists active lockdowns across restarts.
type LockdownStore interface {
	SaveLockdown(ctx context.Context, rec *models.LockdownRecord) error
	DeleteLockdown(ctx context.Context, guildID string) error
	ListLockdowns(ctx context.Context) ([]*models.LockdownRecord, error)
}

type lockState struct {
	revertAt time.Time

	mu        sync.Mutex
	captured  bool
	prevLevel discordgo.VerificationLevel
	slowmode  map[string]int
	timer     Stopper
}

// LockdownManager raises verification and enables slow-mode for a guild,
// then reverts to the captured values after RevertAfter. At most one
// lockdown per guild is active; only the call that engages it schedules the
// revert.
type LockdownManager struct {
	platform platform.Platform
	sink     LogSink
	store    LockdownStore
	opts     LockdownOptions

	mu     sync.Mutex
	active map[string]*lockState

	schedule func(d time.Duration, f func()) Stopper
	now      func() time.Time
}

func NewLockdownManager(p platform.Platform, sink LogSink, opts LockdownOptions) *LockdownManager {
	if opts.SlowmodeSeconds <= 0 {
		opts.SlowmodeSeconds = 10
	}
	if opts.RevertAfter <= 0 {
		opts.RevertAfter = 300 * time.Second
	}
	return &LockdownManager{
		platform: p,
		sink:     sink,
		opts:     opts,
		active:   make(map[string]*lockState),
		schedule: func(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) },
		now:      time.Now,
	}
}

// WithStore persists lockdowns so Resume can finish them after a restart.
func (lm *LockdownManager) WithStore(store LockdownStore) *LockdownManager {
	lm.store = store
	return lm
}

func (lm *LockdownManager) WithClock(now func() time.Time) *LockdownManager {
	lm.now = now
	return lm
}

// WithScheduler replaces time.AfterFunc.
func (lm *LockdownManager) WithScheduler(schedule func(d time.Duration, f func()) Stopper) *LockdownManager {
	lm.schedule = schedule
	return lm
}

// Status reports whether a lockdown is active and when it reverts.
func (lm *LockdownManager) Status(guildID string) (revertAt time.Time, active bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	st, ok := lm.active[guildID]
	if !ok {
		return time.Time{}, false
	}
	return st.revertAt, true
}

// ActivateLockdown engages the lockdown. It reports false if one is already
// active for the guild.
func (lm *LockdownManager) ActivateLockdown(ctx context.Context, guildID, reason string) (bool, error) {
	lm.mu.Lock()
	if _, ok := lm.active[guildID]; ok {
		lm.mu.Unlock()
		return false, nil
	}
	st := &lockState{slowmode: make(map[string]int), revertAt: lm.now().Add(lm.opts.RevertAfter)}
	st.mu.Lock()
	defer st.mu.Unlock()
	lm.active[guildID] = st
	lm.mu.Unlock()

	st.timer = lm.schedule(lm.opts.RevertAfter, func() {
		lm.revert(context.Background(), guildID, st)
	})

	guild, err := lm.platform.Guild(ctx, guildID)
	if err != nil {
		return true, fmt.Errorf("lockdown engaged without capture: %w", err)
	}
	st.captured = true
	st.prevLevel = guild.VerificationLevel

	if err := lm.platform.SetVerificationLevel(ctx, guildID, discordgo.VerificationLevelVeryHigh); err != nil {
		logging.Warn("[LOCKDOWN] failed to raise verification in guild %s: %v", guildID, err)
	}
	for _, ch := range guild.Channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if err := lm.platform.SetSlowMode(ctx, ch.ID, lm.opts.SlowmodeSeconds); err != nil {
			logging.Warn("[LOCKDOWN] failed to set slowmode on %s: %v", ch.ID, err)
			continue
		}
		st.slowmode[ch.ID] = ch.RateLimitPerUser
	}
	lm.persist(ctx, guildID, st, reason)

	lockdowns.WithLabelValues("engaged").Inc()
	logging.Warn("[LOCKDOWN] engaged in guild %s for %s: %s", guildID, lm.opts.RevertAfter, reason)
	lm.sink.SendLogMessage(ctx, guildID, models.LogModerator,
		fmt.Sprintf("Lockdown engaged for %s: %s", lm.opts.RevertAfter, reason), nil)
	return true, nil
}

// DeactivateLockdown reverts the active lockdown now and cancels the timer.
// It reports false if nothing was active.
func (lm *LockdownManager) DeactivateLockdown(ctx context.Context, guildID string) bool {
	return lm.revert(ctx, guildID, nil)
}

// revert restores captured values. With st set, only that lockdown instance
// is reverted, so a stale timer cannot end a newer lockdown.
func (lm *LockdownManager) revert(ctx context.Context, guildID string, st *lockState) bool {
	lm.mu.Lock()
	cur, ok := lm.active[guildID]
	if !ok || (st != nil && cur != st) {
		lm.mu.Unlock()
		return false
	}
	delete(lm.active, guildID)
	lm.mu.Unlock()

	cur.mu.Lock()
	defer cur.mu.Unlock()
	if cur.timer != nil {
		cur.timer.Stop()
	}

	level := discordgo.VerificationLevelLow
	if cur.captured {
		level = cur.prevLevel
	}
	if err := lm.platform.SetVerificationLevel(ctx, guildID, level); err != nil {
		logging.Warn("[LOCKDOWN] failed to restore verification in guild %s: %v", guildID, err)
	}
	for id, prev := range cur.slowmode {
		if err := lm.platform.SetSlowMode(ctx, id, prev); err != nil {
			logging.Warn("[LOCKDOWN] failed to restore slowmode on %s: %v", id, err)
		}
	}

	if lm.store != nil {
		if err := lm.store.DeleteLockdown(ctx, guildID); err != nil {
			logging.Error("[LOCKDOWN] failed to clear saved lockdown of guild %s: %v", guildID, err)
		}
	}

	lockdowns.WithLabelValues("reverted").Inc()
	logging.Info("[LOCKDOWN] reverted in guild %s", guildID)
	lm.sink.SendLogMessage(ctx, guildID, models.LogModerator, "Lockdown lifted", nil)
	return true
}

func (lm *LockdownManager) persist(ctx context.Context, guildID string, st *lockState, reason string) {
	if lm.store == nil {
		return
	}
	err := lm.store.SaveLockdown(ctx, &models.LockdownRecord{
		GuildID:   guildID,
		PrevLevel: int(st.prevLevel),
		Slowmode:  st.slowmode,
		Reason:    reason,
		RevertAt:  st.revertAt,
	})
	if err != nil {
		logging.Error("[LOCKDOWN] guild %s will not revert after a restart: %v", guildID, err)
	}
}

// Resume picks up lockdowns saved before a restart. Overdue ones are
// reverted at once; the rest get a new timer for their remaining time. It
// returns how many were re-armed.
func (lm *LockdownManager) Resume(ctx context.Context) (int, error) {
	if lm.store == nil {
		return 0, nil
	}
	recs, err := lm.store.ListLockdowns(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load saved lockdowns: %w", err)
	}

	resumed := 0
	for _, rec := range recs {
		guildID := rec.GuildID
		st := &lockState{
			revertAt:  rec.RevertAt,
			captured:  true,
			prevLevel: discordgo.VerificationLevel(rec.PrevLevel),
			slowmode:  rec.Slowmode,
		}
		if st.slowmode == nil {
			st.slowmode = make(map[string]int)
		}

		lm.mu.Lock()
		if _, ok := lm.active[guildID]; ok {
			lm.mu.Unlock()
			continue
		}
		lm.active[guildID] = st
		lm.mu.Unlock()

		remaining := rec.RevertAt.Sub(lm.now())
		if remaining <= 0 {
			logging.Info("[LOCKDOWN] saved lockdown of guild %s is overdue, reverting", guildID)
			lm.revert(ctx, guildID, st)
			continue
		}

		st.mu.Lock()
		st.timer = lm.schedule(remaining, func() {
			lm.revert(context.Background(), guildID, st)
		})
		st.mu.Unlock()
		resumed++
		logging.Info("[LOCKDOWN] resumed lockdown of guild %s, reverting in %s", guildID, remaining.Round(time.Second))
	}
	return resumed, nil
}

package decision

import (
	"sync"
	"time"
)

// CooldownManager suppresses repeated executions of the same key within a
// fixed duration.
type CooldownManager struct {
	mu        sync.Mutex
	cooldowns map[string]time.Time
	duration  time.Duration
	now       func() time.Time
}

func NewCooldownManager(duration time.Duration) *CooldownManager {
	return &CooldownManager{
		cooldowns: make(map[string]time.Time),
		duration:  duration,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (cm *CooldownManager) WithClock(now func() time.Time) *CooldownManager {
	cm.now = now
	return cm
}

func CooldownKey(guildID, memberID string) string {
	return guildID + ":" + memberID
}

// TryAcquire records an execution for key and reports true, unless key is
// still cooling down.
func (cm *CooldownManager) TryAcquire(key string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()
	if last, ok := cm.cooldowns[key]; ok && now.Sub(last) < cm.duration {
		return false
	}
	cm.cooldowns[key] = now

	// opportunistic cleanup keeps the map bounded by the number of keys
	// touched in the last window
	if len(cm.cooldowns) > 1024 {
		for k, t := range cm.cooldowns {
			if now.Sub(t) >= cm.duration {
				delete(cm.cooldowns, k)
			}
		}
	}
	return true
}

// Reset clears key so the next TryAcquire succeeds.
func (cm *CooldownManager) Reset(key string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.cooldowns, key)
}

func (cm *CooldownManager) GetRemainingCooldown(key string) time.Duration {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	last, ok := cm.cooldowns[key]
	if !ok {
		return 0
	}
	remaining := cm.duration - cm.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

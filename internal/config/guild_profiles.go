package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
)

const (
	profileCacheName = "profile"
	policyCacheName  = "antiConfig"
)

// ProfileSource is the persistent store behind the cache.
type ProfileSource interface {
	GetSecurityProfile(ctx context.Context, guildID string) (*models.SecurityProfile, error)
	GetAntiSpamPolicy(ctx context.Context, guildID string) (models.AntiSpamPolicy, error)
}

// ProfileStore is a read-through cache of per-guild security profiles and
// anti-spam policies. Cache failures fall through to the source.
type ProfileStore struct {
	source ProfileSource
	cache  Cache
}

func NewProfileStore(source ProfileSource, cache Cache) *ProfileStore {
	return &ProfileStore{source: source, cache: cache}
}

// Profile returns the guild's security profile. The result is a private copy.
func (ps *ProfileStore) Profile(ctx context.Context, guildID string) (*models.SecurityProfile, error) {
	var p models.SecurityProfile
	if ps.cached(ctx, profileCacheName, guildID, &p) {
		return &p, nil
	}

	fresh, err := ps.source.GetSecurityProfile(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for guild %s: %w", guildID, err)
	}
	ps.store(ctx, profileCacheName, guildID, fresh)
	return fresh, nil
}

// AntiSpamPolicy returns the guild's policy, or defaults if none is stored.
func (ps *ProfileStore) AntiSpamPolicy(ctx context.Context, guildID string) (models.AntiSpamPolicy, error) {
	var p models.AntiSpamPolicy
	if ps.cached(ctx, policyCacheName, guildID, &p) {
		return p.Normalize(), nil
	}

	fresh, err := ps.source.GetAntiSpamPolicy(ctx, guildID)
	if err != nil {
		return models.AntiSpamPolicy{}, fmt.Errorf("failed to load anti-spam policy for guild %s: %w", guildID, err)
	}
	ps.store(ctx, policyCacheName, guildID, fresh)
	return fresh, nil
}

// Invalidate drops the cached profile and policy after a mutation.
func (ps *ProfileStore) Invalidate(ctx context.Context, guildID string) {
	for _, name := range []string{profileCacheName, policyCacheName} {
		if err := ps.cache.Purge(ctx, name, guildID); err != nil {
			logging.Warn("[CACHE] purge %s:%s failed: %v", name, guildID, err)
		}
	}
}

func (ps *ProfileStore) cached(ctx context.Context, name, guildID string, out interface{}) bool {
	raw, err := ps.cache.Get(ctx, name, guildID)
	if err != nil {
		logging.Warn("[CACHE] get %s:%s failed: %v", name, guildID, err)
		return false
	}
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logging.Warn("[CACHE] dropping corrupt entry %s:%s: %v", name, guildID, err)
		return false
	}
	return true
}

func (ps *ProfileStore) store(ctx context.Context, name, guildID string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := ps.cache.Set(ctx, name, guildID, string(raw)); err != nil {
		logging.Warn("[CACHE] set %s:%s failed: %v", name, guildID, err)
	}
}

package authority

import (
	"context"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

// ProfileSource supplies the security profile for a guild.
type ProfileSource interface {
	Profile(ctx context.Context, guildID string) (*models.SecurityProfile, error)
}

// Subject is an account together with the roles it currently holds.
type Subject struct {
	ID      string
	RoleIDs []string
}

// Resolver answers authority questions against the current profile of a guild.
type Resolver struct {
	profiles ProfileSource
}

func NewResolver(profiles ProfileSource) *Resolver {
	return &Resolver{profiles: profiles}
}

func (r *Resolver) Profile(ctx context.Context, guildID string) (*models.SecurityProfile, error) {
	return r.profiles.Profile(ctx, guildID)
}

// Resolve returns the tier of s in guildID.
func (r *Resolver) Resolve(ctx context.Context, guildID string, s Subject) (Tier, error) {
	p, err := r.profiles.Profile(ctx, guildID)
	if err != nil {
		return TierMember, err
	}
	return TierOf(s.ID, s.RoleIDs, p), nil
}

// Check resolves both tiers and applies CanAct.
func (r *Resolver) Check(ctx context.Context, guildID string, actor, target Subject) (Decision, error) {
	p, err := r.profiles.Profile(ctx, guildID)
	if err != nil {
		return Decision{}, err
	}
	return CanAct(TierOf(actor.ID, actor.RoleIDs, p), actor.ID, TierOf(target.ID, target.RoleIDs, p), target.ID), nil
}

// CheckRelease resolves both tiers and applies CanRelease.
func (r *Resolver) CheckRelease(ctx context.Context, guildID string, actor, target Subject) (Decision, error) {
	p, err := r.profiles.Profile(ctx, guildID)
	if err != nil {
		return Decision{}, err
	}
	return CanRelease(TierOf(actor.ID, actor.RoleIDs, p), actor.ID, TierOf(target.ID, target.RoleIDs, p), target.ID), nil
}

// Package authority decides who may act on whom inside a guild.
//
// Every punitive path (commands, guards, the role-grant check) goes through
// CanAct, CanRelease or CanGrantRole so there is exactly one ordering of
// authority in the codebase.
package authority

import (
	"fmt"
	"slices"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

type Tier uint8

const (
	TierMember Tier = iota
	TierWhitelisted
	TierModerator
	TierAdmin
	TierSecondOwner
	TierOwner
)

func (t Tier) String() string {
	switch t {
	case TierMember:
		return "Member"
	case TierWhitelisted:
		return "Whitelisted"
	case TierModerator:
		return "Moderator"
	case TierAdmin:
		return "Admin"
	case TierSecondOwner:
		return "SecondOwner"
	case TierOwner:
		return "Owner"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// TierOf classifies userID given the member's role ids.
func TierOf(userID string, roleIDs []string, p *models.SecurityProfile) Tier {
	if p == nil {
		return TierMember
	}
	switch {
	case p.OwnerID != "" && userID == p.OwnerID:
		return TierOwner
	case slices.Contains(p.SecondOwners, userID):
		return TierSecondOwner
	case slices.Contains(p.AdminIDs, userID) || intersects(roleIDs, p.AdminRoles):
		return TierAdmin
	case slices.Contains(p.ModIDs, userID) || intersects(roleIDs, p.ModRoles):
		return TierModerator
	case slices.Contains(p.WhitelistedUserIDs, userID):
		return TierWhitelisted
	}
	return TierMember
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

// Decision is the answer to "may the actor do this".
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(format string, args ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// CanAct applies the total order Owner > SecondOwner > Admin > Moderator > Member.
// Whitelisted actors are treated as Members. A Moderator may only act on plain
// Members, which keeps whitelisted targets out of a Moderator's reach.
func CanAct(actorTier Tier, actorID string, targetTier Tier, targetID string) Decision {
	if actorID != "" && actorID == targetID {
		return deny("you cannot act on yourself")
	}

	switch actorTier {
	case TierOwner:
		return allow()
	case TierSecondOwner:
		if targetTier >= TierSecondOwner {
			return deny("a second owner cannot act on the owner or another second owner")
		}
		return allow()
	case TierAdmin:
		if targetTier >= TierAdmin {
			return deny("an admin cannot act on the owner, second owners or other admins")
		}
		return allow()
	case TierModerator:
		if targetTier != TierMember {
			return deny("a moderator can only act on regular members (target is %s)", targetTier)
		}
		return allow()
	}
	return deny("%s accounts are not allowed to take moderation actions", actorTier)
}

// CanRelease gates unjail. Admin or above is required, and a whitelisted
// target may only be released by a second owner or the owner.
func CanRelease(actorTier Tier, actorID string, targetTier Tier, targetID string) Decision {
	if actorTier < TierAdmin {
		return deny("releasing a jailed member requires admin or above")
	}
	if targetTier == TierWhitelisted && actorTier < TierSecondOwner {
		return deny("only the owner or a second owner can release a whitelisted member")
	}
	return CanAct(actorTier, actorID, targetTier, targetID)
}

// IsImmune reports whether guards must never punish userID.
func IsImmune(userID, selfID string, p *models.SecurityProfile) bool {
	if userID == "" {
		return false
	}
	if selfID != "" && userID == selfID {
		return true
	}
	if p == nil {
		return false
	}
	return userID == p.OwnerID ||
		slices.Contains(p.SecondOwners, userID) ||
		slices.Contains(p.WhitelistedUserIDs, userID)
}

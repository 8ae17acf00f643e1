package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/styxgzi/nervesx-bot/internal/authority"
	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/models"
)

// entryOp describes one /security mutation. userKind or roleKind is empty
// when the list does not accept that kind of target.
type entryOp struct {
	label    string
	userKind models.ProfileEntryKind
	roleKind models.ProfileEntryKind
	min      authority.Tier
}

var entryOps = map[string]entryOp{
	"whitelist":   {label: "whitelist", userKind: models.EntryWhitelistUser, min: authority.TierSecondOwner},
	"secondowner": {label: "second owners", userKind: models.EntrySecondOwner, min: authority.TierOwner},
	"admin":       {label: "admins", userKind: models.EntryAdminUser, roleKind: models.EntryAdminRole, min: authority.TierSecondOwner},
	"mod":         {label: "moderators", userKind: models.EntryModUser, roleKind: models.EntryModRole, min: authority.TierSecondOwner},
	"dangerous":   {label: "dangerous roles", roleKind: models.EntryDangerousRole, min: authority.TierSecondOwner},
}

// handleSecurity handles /security view and the <list>-add / <list>-remove
// subcommands.
func (h *Handler) handleSecurity(ctx context.Context, req Request) (Reply, error) {
	if req.Sub == "view" {
		return h.handleSecurityView(ctx, req)
	}

	list, verb, ok := strings.Cut(req.Sub, "-")
	op, known := entryOps[list]
	if !ok || !known || (verb != "add" && verb != "remove") {
		return Reply{}, fmt.Errorf("unknown subcommand: %s", req.Sub)
	}
	if _, err := h.requireTier(ctx, req, op.min); err != nil {
		return Reply{}, err
	}

	kind, targetID, mention, err := op.target(req)
	if err != nil {
		return Reply{}, err
	}

	if verb == "add" {
		err = h.Store.AddProfileEntry(ctx, req.GuildID, kind, targetID)
	} else {
		err = h.Store.RemoveProfileEntry(ctx, req.GuildID, kind, targetID)
	}
	if err != nil {
		return Reply{}, err
	}
	h.Cache.Invalidate(ctx, req.GuildID)

	var content string
	if verb == "add" {
		content = fmt.Sprintf("✅ %s added to %s.", mention, op.label)
	} else {
		content = fmt.Sprintf("✅ %s removed from %s.", mention, op.label)
	}
	logging.Info("[COMMAND] security %s %s %s in guild %s by %s", req.Sub, kind, targetID, req.GuildID, req.Actor.ID)
	h.Sink.SendLogMessage(ctx, req.GuildID, models.LogServer,
		fmt.Sprintf("Security profile changed by <@%s>: %s", req.Actor.ID, strings.TrimPrefix(content, "✅ ")), nil)
	return Reply{Content: content}, nil
}

// target picks the user or role option. Exactly one must be given.
func (op entryOp) target(req Request) (models.ProfileEntryKind, string, string, error) {
	user, role := req.id("user"), req.id("role")
	switch {
	case user != "" && role != "":
		return "", "", "", fmt.Errorf("give either a user or a role, not both")
	case user != "" && op.userKind != "":
		return op.userKind, user, "<@" + user + ">", nil
	case role != "" && op.roleKind != "":
		return op.roleKind, role, "<@&" + role + ">", nil
	case user != "":
		return "", "", "", fmt.Errorf("%s only accepts roles", op.label)
	case role != "":
		return "", "", "", fmt.Errorf("%s only accepts users", op.label)
	}
	return "", "", "", fmt.Errorf("no user or role specified")
}

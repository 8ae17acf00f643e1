package decision

import "errors"

var (
	// ErrPermissionDenied means the acting account lacks the required tier.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrBotPermission means the automation account lacks a platform permission.
	ErrBotPermission = errors.New("bot is missing a required permission")
	// ErrBotHierarchy means the automation account's highest role cannot manage the role involved.
	ErrBotHierarchy = errors.New("bot role is not high enough")
	ErrImmuneTarget = errors.New("target is immune")
	ErrNotJailed    = errors.New("member is not jailed")
	ErrRoleMissing  = errors.New("role does not exist in this guild")
)

// isRejection reports whether err is a refusal rather than an operational failure.
func isRejection(err error) bool {
	for _, target := range []error{ErrPermissionDenied, ErrBotPermission, ErrBotHierarchy, ErrImmuneTarget, ErrNotJailed, ErrRoleMissing} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

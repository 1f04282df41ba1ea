package rbac

import "github.com/paroquia-cms/paroquia-cms/internal/shared"

// AllPermissions is the wildcard granted to administrators.
const AllPermissions = "*"

// defaultGrants is the static permission table per role.
var defaultGrants = map[shared.Role][]string{
	shared.RoleAdmin: {AllPermissions},
	shared.RoleEditor: {
		"news",
		"announcements",
		"mass-schedule",
		"parish-info",
		"dizimistas",
		"birthdays",
	},
	shared.RoleCommon: {"birthdays"},
}

// PrincipalChange describes a management action on another principal.
type PrincipalChange struct {
	// Delete is set when the target is being removed.
	Delete bool
	// NewRole is the role being assigned; empty leaves the role unchanged.
	NewRole shared.Role
}

package kernel

// Role is the canonical backend role. It is shared vocabulary across modules:
// the directory shards user storage by it, the reconciler maps provider
// assertions onto it, and the API layer authorizes with it.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleClientAdmin Role = "CLIENT_ADMIN"
	RoleUser        Role = "USER"
)

// AllRoles lists the canonical roles in privilege order, highest first. The
// order doubles as the shard probe order for subject-id lookups.
var AllRoles = []Role{RoleSuperAdmin, RoleClientAdmin, RoleUser}

func (r Role) String() string { return string(r) }

// IsValid reports whether r is one of the canonical roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleClientAdmin, RoleUser:
		return true
	}
	return false
}

// Priority returns the privilege rank of the role; higher outranks lower.
func (r Role) Priority() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleClientAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r.Priority() >= other.Priority()
}

package directory

import (
	"strings"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// DefaultSignupRole is the role provisioned for a brand-new sign-up whose
// token asserts no role. Kept as a named policy function rather than an
// inline default so the rule is independently testable.
func DefaultSignupRole() kernel.Role { return kernel.RoleClientAdmin }

// MapProviderRoles maps provider-asserted role names onto the canonical
// backend role. Recognition is case-insensitive, and when several roles are
// asserted the highest-privilege one wins. "User-Admin" is a legacy provider
// role that maps down to the regular user role. Returns false when no
// asserted name is recognized.
func MapProviderRoles(providerRoles []string) (kernel.Role, bool) {
	best := kernel.Role("")
	for _, raw := range providerRoles {
		var mapped kernel.Role
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "superadmin", "super-admin", "super_admin":
			mapped = kernel.RoleSuperAdmin
		case "clientadmin", "client-admin", "client_admin":
			mapped = kernel.RoleClientAdmin
		case "user-admin", "useradmin", "user_admin", "user":
			mapped = kernel.RoleUser
		default:
			continue
		}
		if mapped.Priority() > best.Priority() {
			best = mapped
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// Reconcile derives the effective user for one request from the stored
// record and the live token's role assertions. When the token asserts roles,
// the provider's opinion overrides the stored role in the returned copy;
// when it asserts none, the stored role is authoritative. The directory is
// never written here — the override lives only for the request.
func Reconcile(stored *User, providerRoles []string) *User {
	effective := *stored
	if role, ok := MapProviderRoles(providerRoles); ok {
		effective.Role = role
	}
	return &effective
}

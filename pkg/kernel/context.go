package kernel

// AuthContext is the authentication result injected into each request after
// identity resolution. Role is the effective role for this request: the
// reconciled outcome of the stored role and whatever the live token asserted.
// It is never written back to the directory.
type AuthContext struct {
	UserID         UserID          `json:"user_id"`
	TenantID       TenantID        `json:"tenant_id"`
	OrganizationID *OrganizationID `json:"organization_id,omitempty"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	Role           Role            `json:"role"`
	Provider       string          `json:"provider"`
}

// IsValid reports whether the context identifies a user within a tenant.
func (ac *AuthContext) IsValid() bool {
	return !ac.UserID.IsEmpty() && !ac.TenantID.IsEmpty() && ac.Role.IsValid()
}

// IsSuperAdmin reports whether the effective role is super admin.
func (ac *AuthContext) IsSuperAdmin() bool { return ac.Role == RoleSuperAdmin }

// IsAdmin reports whether the effective role is client admin or above.
func (ac *AuthContext) IsAdmin() bool { return ac.Role.AtLeast(RoleClientAdmin) }

// ContextKey is the type for values stored in request-scoped storage.
type ContextKey string

// AuthContextKey stores the *AuthContext in request locals.
const AuthContextKey ContextKey = "auth_context"

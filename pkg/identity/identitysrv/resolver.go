// Package identitysrv runs the full identity resolution pipeline for a
// request: credential verification through the dispatcher, directory lookup
// (subject-id first, email fallback), first-sign-in provisioning, domain
// based promotion, and per-request role reconciliation.
package identitysrv

import (
	"context"
	"strings"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/organization"
)

// Verifier is the credential entry point, satisfied by the dispatcher.
type Verifier interface {
	Verify(ctx context.Context, token string) (*identity.NormalizedClaims, error)
	VerifyWith(ctx context.Context, provider identity.Provider, token string) (*identity.NormalizedClaims, error)
}

// UserDirectory is the slice of the directory the resolver needs.
type UserDirectory interface {
	FindBySubjectID(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) (*directory.User, error)
	FindByEmail(ctx context.Context, tenantID kernel.TenantID, email string) (*directory.User, error)
	Create(ctx context.Context, user *directory.User) (*directory.User, error)
	ChangeRole(ctx context.Context, user *directory.User, newRole kernel.Role) error
}

// OrgProvisioner creates the empty organization backing a first sign-in.
type OrgProvisioner interface {
	EnsureForSignup(ctx context.Context, tenantID kernel.TenantID, name string) (*organization.Organization, error)
}

// Resolver turns a bearer credential into an authenticated request context.
type Resolver struct {
	verifier          Verifier
	users             UserDirectory
	orgs              OrgProvisioner
	superAdminDomains []string
}

func NewResolver(verifier Verifier, users UserDirectory, orgs OrgProvisioner, superAdminDomains []string) *Resolver {
	return &Resolver{
		verifier:          verifier,
		users:             users,
		orgs:              orgs,
		superAdminDomains: superAdminDomains,
	}
}

// Resolve authenticates a bearer token and resolves it to an effective
// request identity.
func (r *Resolver) Resolve(ctx context.Context, token string) (*kernel.AuthContext, error) {
	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return r.resolveClaims(ctx, claims)
}

// ResolveWith authenticates via an explicitly named provider, for the OAuth
// entry points where the client passes the provider in the request body.
func (r *Resolver) ResolveWith(ctx context.Context, provider identity.Provider, token string) (*kernel.AuthContext, error) {
	claims, err := r.verifier.VerifyWith(ctx, provider, token)
	if err != nil {
		return nil, err
	}
	return r.resolveClaims(ctx, claims)
}

// resolveClaims maps verified claims onto a directory user. Lookup is
// subject-id first; email is the fallback for identities seen before under
// another provider. An unseen identity is provisioned on the spot.
func (r *Resolver) resolveClaims(ctx context.Context, claims *identity.NormalizedClaims) (*kernel.AuthContext, error) {
	user, err := r.users.FindBySubjectID(ctx, claims.TenantID, kernel.NewUserID(claims.SubjectID))
	if err != nil {
		if !errx.HasCode(err, directory.CodeUserNotFound) {
			return nil, err
		}
		user, err = r.users.FindByEmail(ctx, claims.TenantID, claims.Email)
		if err != nil {
			if !errx.HasCode(err, directory.CodeUserNotFound) {
				return nil, err
			}
			user, err = r.provision(ctx, claims)
			if err != nil {
				return nil, err
			}
		}
	}

	if !user.CanAuthenticate() {
		return nil, directory.ErrUserInactive().WithDetail("status", string(user.Status))
	}

	if err := r.promoteByDomain(ctx, user); err != nil {
		return nil, err
	}

	effective := directory.Reconcile(user, claims.ProviderRoles)
	return &kernel.AuthContext{
		UserID:         effective.ID,
		TenantID:       effective.TenantID,
		OrganizationID: effective.OrganizationID,
		Email:          effective.Email,
		Name:           effective.DisplayName,
		Role:           effective.Role,
		Provider:       claims.Provider.String(),
	}, nil
}

// provision creates a directory user for a first-ever sign-in. The role
// comes from the token when it asserts one, otherwise the sign-up default;
// a defaulted client admin also gets an empty organization.
func (r *Resolver) provision(ctx context.Context, claims *identity.NormalizedClaims) (*directory.User, error) {
	role, ok := directory.MapProviderRoles(claims.ProviderRoles)
	if !ok {
		role = directory.DefaultSignupRole()
	}

	user := &directory.User{
		ID:            kernel.NewUserID(claims.SubjectID),
		TenantID:      claims.TenantID,
		Email:         directory.NormalizeEmail(claims.Email),
		DisplayName:   claims.DisplayName,
		Role:          role,
		Status:        directory.StatusActive,
		EmailVerified: claims.Provider != identity.ProviderPassword,
	}

	if role == kernel.RoleClientAdmin {
		org, err := r.orgs.EnsureForSignup(ctx, claims.TenantID, orgNameFromEmail(user.Email))
		if err != nil {
			return nil, err
		}
		user.OrganizationID = &org.ID
	}

	user, err := r.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	logx.WithFields(logx.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
		"provider":  claims.Provider,
		"role":      user.Role,
	}).Info("provisioned user on first sign-in")
	return user, nil
}

// promoteByDomain migrates users from configured email domains into the
// super-admin shard. This is a persisted role change, not a per-request
// override.
func (r *Resolver) promoteByDomain(ctx context.Context, user *directory.User) error {
	if user.Role == kernel.RoleSuperAdmin || !r.isSuperAdminDomain(user.Email) {
		return nil
	}
	if err := r.users.ChangeRole(ctx, user, kernel.RoleSuperAdmin); err != nil {
		return err
	}
	logx.WithFields(logx.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("promoted user to super admin by email domain")
	return nil
}

func (r *Resolver) isSuperAdminDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range r.superAdminDomains {
		if strings.EqualFold(domain, d) {
			return true
		}
	}
	return false
}

func orgNameFromEmail(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return email
}

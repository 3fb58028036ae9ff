package identitysrv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/organization"
)

type stubVerifier struct {
	claims *identity.NormalizedClaims
	err    error
}

func (v *stubVerifier) Verify(_ context.Context, _ string) (*identity.NormalizedClaims, error) {
	return v.claims, v.err
}

func (v *stubVerifier) VerifyWith(_ context.Context, _ identity.Provider, _ string) (*identity.NormalizedClaims, error) {
	return v.claims, v.err
}

type fakeDirectory struct {
	byID        map[string]*directory.User
	byEmail     map[string]*directory.User
	idLookups   int
	mailLookups int
	roleChanges []kernel.Role
}

func newFakeDirectory(users ...*directory.User) *fakeDirectory {
	d := &fakeDirectory{
		byID:    make(map[string]*directory.User),
		byEmail: make(map[string]*directory.User),
	}
	for _, u := range users {
		d.byID[u.ID.String()] = u
		d.byEmail[u.Email] = u
	}
	return d
}

func (d *fakeDirectory) FindBySubjectID(_ context.Context, _ kernel.TenantID, userID kernel.UserID) (*directory.User, error) {
	d.idLookups++
	if u, ok := d.byID[userID.String()]; ok {
		return u, nil
	}
	return nil, directory.ErrUserNotFound()
}

func (d *fakeDirectory) FindByEmail(_ context.Context, _ kernel.TenantID, email string) (*directory.User, error) {
	d.mailLookups++
	if u, ok := d.byEmail[directory.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, directory.ErrUserNotFound()
}

func (d *fakeDirectory) Create(_ context.Context, user *directory.User) (*directory.User, error) {
	d.byID[user.ID.String()] = user
	d.byEmail[user.Email] = user
	return user, nil
}

func (d *fakeDirectory) ChangeRole(_ context.Context, user *directory.User, newRole kernel.Role) error {
	d.roleChanges = append(d.roleChanges, newRole)
	user.Role = newRole
	return nil
}

type fakeOrgs struct {
	created int
}

func (o *fakeOrgs) EnsureForSignup(_ context.Context, tenantID kernel.TenantID, name string) (*organization.Organization, error) {
	o.created++
	return &organization.Organization{
		ID:       kernel.NewOrganizationID("org-" + name),
		TenantID: tenantID,
		Name:     name,
	}, nil
}

var resTenant = kernel.NewTenantID("tenant-1")

func entraClaims(subject, email string, roles ...string) *identity.NormalizedClaims {
	if roles == nil {
		roles = []string{}
	}
	return &identity.NormalizedClaims{
		SubjectID:     subject,
		TenantID:      resTenant,
		Email:         email,
		DisplayName:   "Test Person",
		ProviderRoles: roles,
		Provider:      identity.ProviderEntra,
	}
}

func TestResolveKnownSubject(t *testing.T) {
	stored := &directory.User{
		ID:       kernel.NewUserID("oid-1"),
		TenantID: resTenant,
		Email:    "person@example.com",
		Role:     kernel.RoleClientAdmin,
		Status:   directory.StatusActive,
	}
	dir := newFakeDirectory(stored)
	r := NewResolver(&stubVerifier{claims: entraClaims("oid-1", "person@example.com")}, dir, &fakeOrgs{}, nil)

	ac, err := r.Resolve(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, kernel.NewUserID("oid-1"), ac.UserID)

	// Token with roles=[] preserves the stored role: silence never demotes.
	assert.Equal(t, kernel.RoleClientAdmin, ac.Role)

	// Subject-id lookup hit; the email fallback never ran.
	assert.Equal(t, 1, dir.idLookups)
	assert.Equal(t, 0, dir.mailLookups)
}

func TestResolveTokenRoleOverride(t *testing.T) {
	stored := &directory.User{
		ID:       kernel.NewUserID("oid-1"),
		TenantID: resTenant,
		Email:    "person@example.com",
		Role:     kernel.RoleUser,
		Status:   directory.StatusActive,
	}
	dir := newFakeDirectory(stored)
	r := NewResolver(&stubVerifier{claims: entraClaims("oid-1", "person@example.com", "ClientAdmin")}, dir, &fakeOrgs{}, nil)

	ac, err := r.Resolve(context.Background(), "some-token")
	require.NoError(t, err)

	// The provider's asserted role wins for this request...
	assert.Equal(t, kernel.RoleClientAdmin, ac.Role)
	// ...without a persisted role change.
	assert.Empty(t, dir.roleChanges)
	assert.Equal(t, kernel.RoleUser, stored.Role)
}

func TestResolveEmailFallback(t *testing.T) {
	stored := &directory.User{
		ID:       kernel.NewUserID("internal-id"),
		TenantID: resTenant,
		Email:    "person@example.com",
		Role:     kernel.RoleUser,
		Status:   directory.StatusActive,
	}
	dir := newFakeDirectory(stored)
	// Token subject differs from the stored id: first sign-in through a new
	// provider for a user provisioned out-of-band.
	r := NewResolver(&stubVerifier{claims: entraClaims("oid-new", "person@example.com")}, dir, &fakeOrgs{}, nil)

	ac, err := r.Resolve(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, kernel.NewUserID("internal-id"), ac.UserID)
	assert.Equal(t, 1, dir.mailLookups)
}

func TestResolveProvisionsUnknownIdentity(t *testing.T) {
	dir := newFakeDirectory()
	orgs := &fakeOrgs{}
	r := NewResolver(&stubVerifier{claims: entraClaims("oid-new", "fresh@example.com")}, dir, orgs, nil)

	ac, err := r.Resolve(context.Background(), "some-token")
	require.NoError(t, err)

	// New token-less sign-ups default to client admin with a fresh org.
	assert.Equal(t, kernel.RoleClientAdmin, ac.Role)
	assert.Equal(t, 1, orgs.created)
	require.NotNil(t, ac.OrganizationID)

	created := dir.byID["oid-new"]
	require.NotNil(t, created)
	assert.Equal(t, "fresh@example.com", created.Email)
	assert.True(t, created.EmailVerified, "provider-verified identities arrive email-verified")
}

func TestResolveProvisionsWithAssertedRole(t *testing.T) {
	dir := newFakeDirectory()
	orgs := &fakeOrgs{}
	r := NewResolver(&stubVerifier{claims: entraClaims("oid-new", "fresh@example.com", "user")}, dir, orgs, nil)

	ac, err := r.Resolve(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, kernel.RoleUser, ac.Role)
	assert.Equal(t, 0, orgs.created, "only defaulted client admins get an auto-created org")
}

func TestResolveDomainPromotion(t *testing.T) {
	stored := &directory.User{
		ID:       kernel.NewUserID("oid-1"),
		TenantID: resTenant,
		Email:    "ops@corp.example",
		Role:     kernel.RoleClientAdmin,
		Status:   directory.StatusActive,
	}
	dir := newFakeDirectory(stored)
	r := NewResolver(&stubVerifier{claims: entraClaims("oid-1", "ops@corp.example")}, dir, &fakeOrgs{}, []string{"corp.example"})

	ac, err := r.Resolve(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, kernel.RoleSuperAdmin, ac.Role)
	assert.Equal(t, []kernel.Role{kernel.RoleSuperAdmin}, dir.roleChanges, "promotion is a persisted shard move")

	// A second resolve does not move again.
	_, err = r.Resolve(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Len(t, dir.roleChanges, 1)
}

func TestResolveInactiveUser(t *testing.T) {
	stored := &directory.User{
		ID:       kernel.NewUserID("oid-1"),
		TenantID: resTenant,
		Email:    "person@example.com",
		Role:     kernel.RoleUser,
		Status:   directory.StatusSuspended,
	}
	dir := newFakeDirectory(stored)
	r := NewResolver(&stubVerifier{claims: entraClaims("oid-1", "person@example.com")}, dir, &fakeOrgs{}, nil)

	_, err := r.Resolve(context.Background(), "some-token")
	assert.True(t, errx.HasCode(err, directory.CodeUserInactive))
}

func TestResolveVerifierFailurePropagates(t *testing.T) {
	r := NewResolver(&stubVerifier{err: identity.ErrTokenExpired()}, newFakeDirectory(), &fakeOrgs{}, nil)
	_, err := r.Resolve(context.Background(), "expired-token")
	assert.True(t, errx.HasCode(err, identity.CodeTokenExpired))
}

// Package directorysrv implements directory resolution over the sharded
// store: OID-first point reads, email fan-out and atomic role moves.
package directorysrv

import (
	"context"
	"time"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

type Service struct {
	store directory.Store
}

func NewService(store directory.Store) *Service {
	return &Service{store: store}
}

// FindBySubjectID resolves a user by provider subject id: a point-read
// against each role shard in fixed privilege order, short-circuiting on the
// first hit. This is the preferred lookup path — O(3) point reads, no scans.
func (s *Service) FindBySubjectID(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) (*directory.User, error) {
	for _, role := range kernel.AllRoles {
		user, err := s.store.Get(ctx, role, tenantID, userID)
		if err == nil {
			return user, nil
		}
		if !errx.HasCode(err, directory.CodeUserNotFound) {
			return nil, err
		}
	}
	return nil, directory.ErrUserNotFound().
		WithDetail("user_id", userID.String()).
		WithDetail("tenant_id", tenantID.String())
}

// FindByEmail resolves a user by normalized email, scanning all three shards
// since the role is unknown. This is the fallback path for first-ever
// sign-ins and email cross-references; subject-id lookup is preferred.
func (s *Service) FindByEmail(ctx context.Context, tenantID kernel.TenantID, email string) (*directory.User, error) {
	normalized := directory.NormalizeEmail(email)
	for _, role := range kernel.AllRoles {
		user, err := s.store.GetByEmail(ctx, role, tenantID, normalized)
		if err == nil {
			return user, nil
		}
		if !errx.HasCode(err, directory.CodeUserNotFound) {
			return nil, err
		}
	}
	return nil, directory.ErrUserNotFound().
		WithDetail("email", normalized).
		WithDetail("tenant_id", tenantID.String())
}

// Create inserts a new user. The caller must already know the role so the
// correct shard can be targeted.
func (s *Service) Create(ctx context.Context, user *directory.User) (*directory.User, error) {
	if !user.Role.IsValid() {
		return nil, directory.ErrInvalidRole().WithDetail("role", string(user.Role))
	}
	user.Email = directory.NormalizeEmail(user.Email)
	if user.Status == "" {
		user.Status = directory.StatusActive
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.store.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update rewrites a user in place within its current shard.
func (s *Service) Update(ctx context.Context, user *directory.User) error {
	user.Email = directory.NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now()
	return s.store.Update(ctx, user)
}

// ChangeRole migrates a user to a different role shard. The move is a single
// transaction in the store, so the subject ends up in exactly one shard.
func (s *Service) ChangeRole(ctx context.Context, user *directory.User, newRole kernel.Role) error {
	if !newRole.IsValid() {
		return directory.ErrInvalidRole().WithDetail("role", string(newRole))
	}
	if user.Role == newRole {
		return nil
	}

	fromRole := user.Role
	user.Role = newRole
	user.UpdatedAt = time.Now()
	if err := s.store.Move(ctx, user, fromRole); err != nil {
		user.Role = fromRole
		return err
	}
	return nil
}

// Delete removes a user from its shard. Only explicit administrative action
// reaches this.
func (s *Service) Delete(ctx context.Context, user *directory.User) error {
	return s.store.Delete(ctx, user.Role, user.TenantID, user.ID)
}

// ListByRole lists one shard for a tenant.
func (s *Service) ListByRole(ctx context.Context, role kernel.Role, tenantID kernel.TenantID) ([]*directory.User, error) {
	if !role.IsValid() {
		return nil, directory.ErrInvalidRole().WithDetail("role", string(role))
	}
	return s.store.ListByRole(ctx, role, tenantID)
}

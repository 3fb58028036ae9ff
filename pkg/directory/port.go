package directory

import (
	"context"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// Store is the persistence contract for one role-sharded directory. Each
// operation that names a role targets exactly one shard; the fan-out logic
// for unknown roles lives in the service, not here. Implementations support
// only point-read, point-write, point-delete and filtered scan — no joins.
type Store interface {
	// Get point-reads one shard by (tenant, user id).
	Get(ctx context.Context, role kernel.Role, tenantID kernel.TenantID, userID kernel.UserID) (*User, error)

	// GetByEmail scans one shard for a normalized email within a tenant.
	GetByEmail(ctx context.Context, role kernel.Role, tenantID kernel.TenantID, email string) (*User, error)

	// Insert creates the user in the shard matching user.Role.
	Insert(ctx context.Context, user *User) error

	// Update rewrites the user in the shard matching user.Role.
	Update(ctx context.Context, user *User) error

	// Delete point-deletes from one shard.
	Delete(ctx context.Context, role kernel.Role, tenantID kernel.TenantID, userID kernel.UserID) error

	// Move relocates a user between shards in a single transaction: insert
	// into the shard matching user.Role and delete from fromRole commit or
	// fail together, so the subject never exists in zero or two shards.
	Move(ctx context.Context, user *User, fromRole kernel.Role) error

	// ListByRole lists one shard for a tenant, the coarse-grained
	// authorization query role sharding exists to serve.
	ListByRole(ctx context.Context, role kernel.Role, tenantID kernel.TenantID) ([]*User, error)
}

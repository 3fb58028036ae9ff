package invitation

import (
	"context"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// Repository defines the contract for invite persistence.
type Repository interface {
	FindByToken(ctx context.Context, tenantID kernel.TenantID, token string) (*Invite, error)
	FindPendingByEmail(ctx context.Context, tenantID kernel.TenantID, email string) (*Invite, error)
	Create(ctx context.Context, invite *Invite) error
	Update(ctx context.Context, invite *Invite) error
	FindByOrganization(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID) ([]*Invite, error)
}

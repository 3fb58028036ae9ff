package organization

import (
	"context"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// Repository defines the contract for organization persistence.
type Repository interface {
	FindByID(ctx context.Context, tenantID kernel.TenantID, id kernel.OrganizationID) (*Organization, error)
	Save(ctx context.Context, org *Organization) error
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*Organization, error)
}

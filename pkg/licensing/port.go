package licensing

import (
	"context"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// LicenseRepository defines the contract for license persistence.
// UpdateWithVersion is the compare-and-swap primitive behind the seat
// engine: the write applies only when the stored version still equals
// license.Version, and on success the persisted version is bumped.
type LicenseRepository interface {
	FindByID(ctx context.Context, tenantID kernel.TenantID, id kernel.LicenseID) (*License, error)
	FindActiveByOrgAndProduct(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID, sku kernel.ProductID) (*License, error)
	Save(ctx context.Context, license *License) error
	UpdateWithVersion(ctx context.Context, license *License) error
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*License, error)
}

// UserLicenseRepository defines the contract for assignment persistence.
// Create fails with a duplicate error when the (tenant, user, license) tuple
// already exists.
type UserLicenseRepository interface {
	Find(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) (*UserLicense, error)
	Create(ctx context.Context, ul *UserLicense) error
	Delete(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) error
	FindByUser(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) ([]*UserLicense, error)
	FindByLicense(ctx context.Context, tenantID kernel.TenantID, licenseID kernel.LicenseID) ([]*UserLicense, error)
}

// Package licensinginfra is the Postgres implementation of license and
// assignment storage.
package licensinginfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing"
)

const licenseColumns = `id, tenant_id, organization_id, product_sku, license_type,
	total_seats, used_seats, assigned_user_ids, status, start_date, expires_at,
	version, created_at, updated_at`

type PostgresLicenseRepository struct {
	db *sqlx.DB
}

func NewPostgresLicenseRepository(db *sqlx.DB) licensing.LicenseRepository {
	return &PostgresLicenseRepository{db: db}
}

func (r *PostgresLicenseRepository) FindByID(ctx context.Context, tenantID kernel.TenantID, id kernel.LicenseID) (*licensing.License, error) {
	var lic licensing.License
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE tenant_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &lic, query, tenantID.String(), id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, licensing.ErrLicenseNotFound().WithDetail("license_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to read license", errx.TypeInternal)
	}
	return &lic, nil
}

func (r *PostgresLicenseRepository) FindActiveByOrgAndProduct(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID, sku kernel.ProductID) (*licensing.License, error) {
	var lic licensing.License
	query := `SELECT ` + licenseColumns + ` FROM licenses
		WHERE tenant_id = $1 AND organization_id = $2 AND product_sku = $3 AND status = $4
		ORDER BY created_at LIMIT 1`
	err := r.db.GetContext(ctx, &lic, query,
		tenantID.String(), orgID.String(), sku.String(), string(licensing.StatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, licensing.ErrLicenseNotFound().
				WithDetail("organization_id", orgID.String()).
				WithDetail("product_sku", sku.String())
		}
		return nil, errx.Wrap(err, "failed to find active license", errx.TypeInternal)
	}
	return &lic, nil
}

func (r *PostgresLicenseRepository) Save(ctx context.Context, lic *licensing.License) error {
	query := `
		INSERT INTO licenses (` + licenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(ctx, query,
		lic.ID.String(), lic.TenantID.String(), lic.OrganizationID.String(),
		lic.ProductSKU.String(), string(lic.Type), lic.TotalSeats, lic.UsedSeats,
		lic.AssignedUserIDs, string(lic.Status), lic.StartDate, lic.ExpiresAt,
		lic.Version, lic.CreatedAt, lic.UpdatedAt,
	)
	if err != nil {
		return errx.Wrap(err, "failed to save license", errx.TypeInternal)
	}
	return nil
}

// UpdateWithVersion writes the license only when the stored version still
// matches, bumping it by one. Zero rows affected means somebody else got
// there first.
func (r *PostgresLicenseRepository) UpdateWithVersion(ctx context.Context, lic *licensing.License) error {
	query := `
		UPDATE licenses SET
			used_seats = $4, assigned_user_ids = $5, status = $6,
			start_date = $7, expires_at = $8, updated_at = $9,
			version = version + 1
		WHERE tenant_id = $1 AND id = $2 AND version = $3`
	res, err := r.db.ExecContext(ctx, query,
		lic.TenantID.String(), lic.ID.String(), lic.Version,
		lic.UsedSeats, lic.AssignedUserIDs, string(lic.Status),
		lic.StartDate, lic.ExpiresAt, lic.UpdatedAt,
	)
	if err != nil {
		return errx.Wrap(err, "failed to update license", errx.TypeInternal)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return licensing.ErrVersionConflict().WithDetail("license_id", lic.ID.String())
	}
	lic.Version++
	return nil
}

func (r *PostgresLicenseRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*licensing.License, error) {
	var lics []licensing.License
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE tenant_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &lics, query, tenantID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list licenses", errx.TypeInternal)
	}
	out := make([]*licensing.License, len(lics))
	for i := range lics {
		out[i] = &lics[i]
	}
	return out, nil
}

const userLicenseColumns = `id, tenant_id, user_id, license_id, organization_id, assigned_by, created_at`

type PostgresUserLicenseRepository struct {
	db *sqlx.DB
}

func NewPostgresUserLicenseRepository(db *sqlx.DB) licensing.UserLicenseRepository {
	return &PostgresUserLicenseRepository{db: db}
}

func (r *PostgresUserLicenseRepository) Find(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) (*licensing.UserLicense, error) {
	var ul licensing.UserLicense
	query := `SELECT ` + userLicenseColumns + ` FROM user_licenses
		WHERE tenant_id = $1 AND user_id = $2 AND license_id = $3`
	err := r.db.GetContext(ctx, &ul, query, tenantID.String(), userID.String(), licenseID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, licensing.ErrAssignmentNotFound().
				WithDetail("user_id", userID.String()).
				WithDetail("license_id", licenseID.String())
		}
		return nil, errx.Wrap(err, "failed to read assignment", errx.TypeInternal)
	}
	return &ul, nil
}

func (r *PostgresUserLicenseRepository) Create(ctx context.Context, ul *licensing.UserLicense) error {
	query := `
		INSERT INTO user_licenses (` + userLicenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		ul.ID, ul.TenantID.String(), ul.UserID.String(), ul.LicenseID.String(),
		ul.OrganizationID.String(), assignedByValue(ul), ul.CreatedAt,
	)
	if err != nil {
		if isDup(err) {
			return licensing.ErrDuplicateAssignment().
				WithDetail("user_id", ul.UserID.String()).
				WithDetail("license_id", ul.LicenseID.String())
		}
		return errx.Wrap(err, "failed to create assignment", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresUserLicenseRepository) Delete(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_licenses WHERE tenant_id = $1 AND user_id = $2 AND license_id = $3`,
		tenantID.String(), userID.String(), licenseID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete assignment", errx.TypeInternal)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return licensing.ErrAssignmentNotFound().
			WithDetail("user_id", userID.String()).
			WithDetail("license_id", licenseID.String())
	}
	return nil
}

func (r *PostgresUserLicenseRepository) FindByUser(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) ([]*licensing.UserLicense, error) {
	var uls []licensing.UserLicense
	query := `SELECT ` + userLicenseColumns + ` FROM user_licenses
		WHERE tenant_id = $1 AND user_id = $2 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &uls, query, tenantID.String(), userID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list user assignments", errx.TypeInternal)
	}
	return toPtrs(uls), nil
}

func (r *PostgresUserLicenseRepository) FindByLicense(ctx context.Context, tenantID kernel.TenantID, licenseID kernel.LicenseID) ([]*licensing.UserLicense, error) {
	var uls []licensing.UserLicense
	query := `SELECT ` + userLicenseColumns + ` FROM user_licenses
		WHERE tenant_id = $1 AND license_id = $2 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &uls, query, tenantID.String(), licenseID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list license assignments", errx.TypeInternal)
	}
	return toPtrs(uls), nil
}

func toPtrs(uls []licensing.UserLicense) []*licensing.UserLicense {
	out := make([]*licensing.UserLicense, len(uls))
	for i := range uls {
		out[i] = &uls[i]
	}
	return out
}

func assignedByValue(ul *licensing.UserLicense) any {
	if ul.AssignedBy == nil {
		return nil
	}
	return ul.AssignedBy.String()
}

func isDup(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

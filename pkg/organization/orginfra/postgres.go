// Package orginfra is the Postgres implementation of organization storage.
package orginfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/organization"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) organization.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByID(ctx context.Context, tenantID kernel.TenantID, id kernel.OrganizationID) (*organization.Organization, error) {
	var org organization.Organization
	query := `SELECT id, tenant_id, name, created_at, updated_at FROM organizations WHERE tenant_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &org, query, tenantID.String(), id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, organization.ErrOrganizationNotFound().WithDetail("organization_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find organization", errx.TypeInternal)
	}
	return &org, nil
}

func (r *PostgresRepository) Save(ctx context.Context, org *organization.Organization) error {
	query := `
		INSERT INTO organizations (id, tenant_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		org.ID.String(), org.TenantID.String(), org.Name, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to save organization", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*organization.Organization, error) {
	var orgs []organization.Organization
	query := `SELECT id, tenant_id, name, created_at, updated_at FROM organizations WHERE tenant_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &orgs, query, tenantID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list organizations", errx.TypeInternal)
	}
	out := make([]*organization.Organization, len(orgs))
	for i := range orgs {
		out[i] = &orgs[i]
	}
	return out, nil
}

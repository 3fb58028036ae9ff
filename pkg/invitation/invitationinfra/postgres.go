// Package invitationinfra is the Postgres implementation of invite storage.
package invitationinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/invitation"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

const inviteColumns = `id, tenant_id, organization_id, email, role, token,
	product_id, status, invited_by, expires_at, created_at, updated_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) invitation.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByToken(ctx context.Context, tenantID kernel.TenantID, token string) (*invitation.Invite, error) {
	var inv invitation.Invite
	query := `SELECT ` + inviteColumns + ` FROM invitations WHERE tenant_id = $1 AND token = $2`
	if err := r.db.GetContext(ctx, &inv, query, tenantID.String(), token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invitation.ErrInvitationNotFound()
		}
		return nil, errx.Wrap(err, "failed to read invitation", errx.TypeInternal)
	}
	return &inv, nil
}

func (r *PostgresRepository) FindPendingByEmail(ctx context.Context, tenantID kernel.TenantID, email string) (*invitation.Invite, error) {
	var inv invitation.Invite
	query := `SELECT ` + inviteColumns + ` FROM invitations
		WHERE tenant_id = $1 AND email = $2 AND status = $3
		ORDER BY created_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &inv, query, tenantID.String(), email, string(invitation.StatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invitation.ErrInvitationNotFound().WithDetail("email", email)
		}
		return nil, errx.Wrap(err, "failed to find pending invitation", errx.TypeInternal)
	}
	return &inv, nil
}

func (r *PostgresRepository) Create(ctx context.Context, inv *invitation.Invite) error {
	query := `
		INSERT INTO invitations (` + inviteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.TenantID.String(), inv.OrganizationID.String(), inv.Email,
		string(inv.Role), inv.Token, productIDValue(inv), string(inv.Status),
		invitedByValue(inv), inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isDup(err) {
			return invitation.ErrDuplicateInvitation().WithDetail("email", inv.Email)
		}
		return errx.Wrap(err, "failed to create invitation", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, inv *invitation.Invite) error {
	query := `
		UPDATE invitations SET status = $3, expires_at = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, query,
		inv.TenantID.String(), inv.ID, string(inv.Status), inv.ExpiresAt, inv.UpdatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to update invitation", errx.TypeInternal)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return invitation.ErrInvitationNotFound().WithDetail("invite_id", inv.ID)
	}
	return nil
}

func (r *PostgresRepository) FindByOrganization(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID) ([]*invitation.Invite, error) {
	var invs []invitation.Invite
	query := `SELECT ` + inviteColumns + ` FROM invitations
		WHERE tenant_id = $1 AND organization_id = $2 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &invs, query, tenantID.String(), orgID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list invitations", errx.TypeInternal)
	}
	out := make([]*invitation.Invite, len(invs))
	for i := range invs {
		out[i] = &invs[i]
	}
	return out, nil
}

func productIDValue(inv *invitation.Invite) any {
	if inv.ProductID == nil {
		return nil
	}
	return inv.ProductID.String()
}

func invitedByValue(inv *invitation.Invite) any {
	if inv.InvitedBy == nil {
		return nil
	}
	return inv.InvitedBy.String()
}

func isDup(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

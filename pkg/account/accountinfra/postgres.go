// Package accountinfra is the Postgres implementation of verification token
// storage.
package accountinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/account"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

const tokenColumns = `id, tenant_id, user_id, email, token, expires_at, created_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) account.VerificationTokenRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByToken(ctx context.Context, tenantID kernel.TenantID, token string) (*account.VerificationToken, error) {
	var vt account.VerificationToken
	query := `SELECT ` + tokenColumns + ` FROM email_verification_tokens WHERE tenant_id = $1 AND token = $2`
	if err := r.db.GetContext(ctx, &vt, query, tenantID.String(), token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrVerificationNotFound()
		}
		return nil, errx.Wrap(err, "failed to read verification token", errx.TypeInternal)
	}
	return &vt, nil
}

func (r *PostgresRepository) Create(ctx context.Context, vt *account.VerificationToken) error {
	query := `
		INSERT INTO email_verification_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		vt.ID, vt.TenantID.String(), vt.UserID.String(), vt.Email, vt.Token,
		vt.ExpiresAt, vt.CreatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to create verification token", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tenantID kernel.TenantID, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verification_tokens WHERE tenant_id = $1 AND id = $2`,
		tenantID.String(), id)
	if err != nil {
		return errx.Wrap(err, "failed to delete verification token", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verification_tokens WHERE tenant_id = $1 AND user_id = $2`,
		tenantID.String(), userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete verification tokens", errx.TypeInternal)
	}
	return nil
}

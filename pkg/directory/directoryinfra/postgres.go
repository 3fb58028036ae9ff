// Package directoryinfra is the Postgres implementation of the role-sharded
// directory. Each canonical role owns a physically separate table; the role
// column is implied by the table a record lives in.
package directoryinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

var shardTables = map[kernel.Role]string{
	kernel.RoleSuperAdmin:  "users_super_admins",
	kernel.RoleClientAdmin: "users_client_admins",
	kernel.RoleUser:        "users_members",
}

const userColumns = `id, tenant_id, email, display_name, status, organization_id,
	password_hash, email_verified, provider_role_id, created_at, updated_at`

// PostgresStore implements directory.Store over three role-shard tables.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) directory.Store {
	return &PostgresStore{db: db}
}

type userRow struct {
	ID             string         `db:"id"`
	TenantID       string         `db:"tenant_id"`
	Email          string         `db:"email"`
	DisplayName    string         `db:"display_name"`
	Status         string         `db:"status"`
	OrganizationID sql.NullString `db:"organization_id"`
	PasswordHash   sql.NullString `db:"password_hash"`
	EmailVerified  bool           `db:"email_verified"`
	ProviderRoleID sql.NullString `db:"provider_role_id"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
}

func (r *userRow) toUser(role kernel.Role) *directory.User {
	u := &directory.User{
		ID:            kernel.NewUserID(r.ID),
		TenantID:      kernel.NewTenantID(r.TenantID),
		Email:         r.Email,
		DisplayName:   r.DisplayName,
		Role:          role,
		Status:        directory.Status(r.Status),
		EmailVerified: r.EmailVerified,
		CreatedAt:     r.CreatedAt.Time,
		UpdatedAt:     r.UpdatedAt.Time,
	}
	if r.OrganizationID.Valid {
		orgID := kernel.NewOrganizationID(r.OrganizationID.String)
		u.OrganizationID = &orgID
	}
	if r.PasswordHash.Valid {
		hash := r.PasswordHash.String
		u.PasswordHash = &hash
	}
	if r.ProviderRoleID.Valid {
		id := r.ProviderRoleID.String
		u.ProviderRoleID = &id
	}
	return u
}

func shardTable(role kernel.Role) (string, error) {
	table, ok := shardTables[role]
	if !ok {
		return "", directory.ErrInvalidRole().WithDetail("role", string(role))
	}
	return table, nil
}

func (s *PostgresStore) Get(ctx context.Context, role kernel.Role, tenantID kernel.TenantID, userID kernel.UserID) (*directory.User, error) {
	table, err := shardTable(role)
	if err != nil {
		return nil, err
	}

	var row userRow
	query := `SELECT ` + userColumns + ` FROM ` + table + ` WHERE tenant_id = $1 AND id = $2`
	if err := s.db.GetContext(ctx, &row, query, tenantID.String(), userID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrUserNotFound().WithDetail("user_id", userID.String())
		}
		return nil, errx.Wrap(err, "failed to read user shard", errx.TypeInternal).WithDetail("shard", table)
	}
	return row.toUser(role), nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, role kernel.Role, tenantID kernel.TenantID, email string) (*directory.User, error) {
	table, err := shardTable(role)
	if err != nil {
		return nil, err
	}

	var row userRow
	query := `SELECT ` + userColumns + ` FROM ` + table + ` WHERE tenant_id = $1 AND email = $2`
	if err := s.db.GetContext(ctx, &row, query, tenantID.String(), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrUserNotFound().WithDetail("email", email)
		}
		return nil, errx.Wrap(err, "failed to scan user shard by email", errx.TypeInternal).WithDetail("shard", table)
	}
	return row.toUser(role), nil
}

func (s *PostgresStore) Insert(ctx context.Context, user *directory.User) error {
	table, err := shardTable(user.Role)
	if err != nil {
		return err
	}
	if err := insertInto(ctx, s.db, table, user); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, user *directory.User) error {
	table, err := shardTable(user.Role)
	if err != nil {
		return err
	}

	query := `
		UPDATE ` + table + ` SET
			email = $3, display_name = $4, status = $5, organization_id = $6,
			password_hash = $7, email_verified = $8, provider_role_id = $9, updated_at = $10
		WHERE tenant_id = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query,
		user.TenantID.String(), user.ID.String(),
		user.Email, user.DisplayName, string(user.Status), orgIDValue(user),
		user.PasswordHash, user.EmailVerified, user.ProviderRoleID, user.UpdatedAt,
	)
	if err != nil {
		return errx.Wrap(err, "failed to update user", errx.TypeInternal).WithDetail("shard", table)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrUserNotFound().WithDetail("user_id", user.ID.String())
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, role kernel.Role, tenantID kernel.TenantID, userID kernel.UserID) error {
	table, err := shardTable(role)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE tenant_id = $1 AND id = $2`,
		tenantID.String(), userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete user", errx.TypeInternal).WithDetail("shard", table)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrUserNotFound().WithDetail("user_id", userID.String())
	}
	return nil
}

// Move relocates a user between shards inside one transaction. Insert and
// delete commit together, which is what keeps the shard-exclusivity
// invariant through crashes.
func (s *PostgresStore) Move(ctx context.Context, user *directory.User, fromRole kernel.Role) error {
	toTable, err := shardTable(user.Role)
	if err != nil {
		return err
	}
	fromTable, err := shardTable(fromRole)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin shard move", errx.TypeInternal)
	}
	defer tx.Rollback()

	if err := insertInto(ctx, tx, toTable, user); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM `+fromTable+` WHERE tenant_id = $1 AND id = $2`,
		user.TenantID.String(), user.ID.String())
	if err != nil {
		return errx.Wrap(err, "failed to remove user from old shard", errx.TypeInternal).WithDetail("shard", fromTable)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return directory.ErrUserNotFound().WithDetail("user_id", user.ID.String()).WithDetail("shard", fromTable)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit shard move", errx.TypeInternal)
	}
	return nil
}

func (s *PostgresStore) ListByRole(ctx context.Context, role kernel.Role, tenantID kernel.TenantID) ([]*directory.User, error) {
	table, err := shardTable(role)
	if err != nil {
		return nil, err
	}

	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM ` + table + ` WHERE tenant_id = $1 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &rows, query, tenantID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list user shard", errx.TypeInternal).WithDetail("shard", table)
	}

	users := make([]*directory.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toUser(role)
	}
	return users, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertInto(ctx context.Context, e execer, table string, user *directory.User) error {
	query := `
		INSERT INTO ` + table + ` (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := e.ExecContext(ctx, query,
		user.ID.String(), user.TenantID.String(), user.Email, user.DisplayName,
		string(user.Status), orgIDValue(user), user.PasswordHash, user.EmailVerified,
		user.ProviderRoleID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isDup(err) {
			return directory.ErrDuplicateUser().WithDetail("user_id", user.ID.String())
		}
		return errx.Wrap(err, "failed to insert user", errx.TypeInternal).WithDetail("shard", table)
	}
	return nil
}

func orgIDValue(user *directory.User) any {
	if user.OrganizationID == nil {
		return nil
	}
	return user.OrganizationID.String()
}

func isDup(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

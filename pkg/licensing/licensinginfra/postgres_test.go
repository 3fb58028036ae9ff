package licensinginfra

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func testLicense() *licensing.License {
	seats := 5
	return &licensing.License{
		ID:              kernel.NewLicenseID("lic-1"),
		TenantID:        kernel.NewTenantID("tenant-1"),
		OrganizationID:  kernel.NewOrganizationID("org-1"),
		ProductSKU:      kernel.NewProductID("sku-echopad"),
		Type:            licensing.TypeSeat,
		TotalSeats:      &seats,
		UsedSeats:       2,
		AssignedUserIDs: pq.StringArray{"user-1", "user-2"},
		Status:          licensing.StatusActive,
		Version:         7,
		UpdatedAt:       time.Now(),
	}
}

func TestUpdateWithVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresLicenseRepository(db)
	lic := testLicense()

	mock.ExpectExec(`UPDATE licenses SET`).
		WithArgs("tenant-1", "lic-1", int64(7),
			lic.UsedSeats, lic.AssignedUserIDs, string(lic.Status),
			lic.StartDate, lic.ExpiresAt, lic.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateWithVersion(context.Background(), lic))
	assert.Equal(t, int64(8), lic.Version, "the in-memory version tracks the bumped row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithVersionConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresLicenseRepository(db)
	lic := testLicense()

	// Zero rows affected: another writer bumped the version first.
	mock.ExpectExec(`UPDATE licenses SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateWithVersion(context.Background(), lic)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, licensing.CodeVersionConflict))
	assert.Equal(t, int64(7), lic.Version, "a rejected write must not advance the version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresLicenseRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM licenses WHERE tenant_id`).
		WithArgs("tenant-1", "lic-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), kernel.NewTenantID("tenant-1"), kernel.NewLicenseID("lic-missing"))
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, licensing.CodeLicenseNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignmentMapsUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserLicenseRepository(db)

	mock.ExpectExec(`INSERT INTO user_licenses`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "user_licenses_tenant_id_user_id_license_id_key"})

	err := repo.Create(context.Background(), &licensing.UserLicense{
		ID:             "ul-1",
		TenantID:       kernel.NewTenantID("tenant-1"),
		UserID:         kernel.NewUserID("user-1"),
		LicenseID:      kernel.NewLicenseID("lic-1"),
		OrganizationID: kernel.NewOrganizationID("org-1"),
		CreatedAt:      time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, licensing.CodeDuplicateAssignment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAssignmentNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserLicenseRepository(db)

	mock.ExpectExec(`DELETE FROM user_licenses`).
		WithArgs("tenant-1", "user-1", "lic-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), kernel.NewTenantID("tenant-1"), kernel.NewUserID("user-1"), kernel.NewLicenseID("lic-1"))
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, licensing.CodeAssignmentNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

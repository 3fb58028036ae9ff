package licensingsrv

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/ptrx"
)

// memLicenseRepo mimics the Postgres compare-and-swap: UpdateWithVersion
// only lands when the caller's version matches the stored one.
type memLicenseRepo struct {
	mu       sync.Mutex
	licenses map[string]*licensing.License
}

func newMemLicenseRepo(lics ...*licensing.License) *memLicenseRepo {
	r := &memLicenseRepo{licenses: make(map[string]*licensing.License)}
	for _, l := range lics {
		cp := *l
		r.licenses[l.ID.String()] = &cp
	}
	return r
}

func (r *memLicenseRepo) FindByID(_ context.Context, _ kernel.TenantID, id kernel.LicenseID) (*licensing.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.licenses[id.String()]
	if !ok {
		return nil, licensing.ErrLicenseNotFound()
	}
	cp := *l
	cp.AssignedUserIDs = append([]string(nil), l.AssignedUserIDs...)
	return &cp, nil
}

func (r *memLicenseRepo) FindActiveByOrgAndProduct(_ context.Context, _ kernel.TenantID, orgID kernel.OrganizationID, sku kernel.ProductID) (*licensing.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.licenses {
		if l.OrganizationID == orgID && l.ProductSKU == sku && l.Status == licensing.StatusActive {
			cp := *l
			return &cp, nil
		}
	}
	return nil, licensing.ErrLicenseNotFound()
}

func (r *memLicenseRepo) Save(_ context.Context, l *licensing.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.licenses[l.ID.String()] = &cp
	return nil
}

func (r *memLicenseRepo) UpdateWithVersion(_ context.Context, l *licensing.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.licenses[l.ID.String()]
	if !ok {
		return licensing.ErrLicenseNotFound()
	}
	if stored.Version != l.Version {
		return licensing.ErrVersionConflict()
	}
	cp := *l
	cp.Version++
	cp.AssignedUserIDs = append([]string(nil), l.AssignedUserIDs...)
	r.licenses[l.ID.String()] = &cp
	l.Version++
	return nil
}

func (r *memLicenseRepo) FindByTenant(_ context.Context, _ kernel.TenantID) ([]*licensing.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*licensing.License, 0, len(r.licenses))
	for _, l := range r.licenses {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

type memUserLicenseRepo struct {
	mu   sync.Mutex
	rows map[string]*licensing.UserLicense
}

func newMemUserLicenseRepo() *memUserLicenseRepo {
	return &memUserLicenseRepo{rows: make(map[string]*licensing.UserLicense)}
}

func ulKey(tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) string {
	return tenantID.String() + "/" + userID.String() + "/" + licenseID.String()
}

func (r *memUserLicenseRepo) Find(_ context.Context, tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) (*licensing.UserLicense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ul, ok := r.rows[ulKey(tenantID, userID, licenseID)]
	if !ok {
		return nil, licensing.ErrAssignmentNotFound()
	}
	cp := *ul
	return &cp, nil
}

func (r *memUserLicenseRepo) Create(_ context.Context, ul *licensing.UserLicense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ulKey(ul.TenantID, ul.UserID, ul.LicenseID)
	if _, exists := r.rows[key]; exists {
		return licensing.ErrDuplicateAssignment()
	}
	cp := *ul
	r.rows[key] = &cp
	return nil
}

func (r *memUserLicenseRepo) Delete(_ context.Context, tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ulKey(tenantID, userID, licenseID)
	if _, ok := r.rows[key]; !ok {
		return licensing.ErrAssignmentNotFound()
	}
	delete(r.rows, key)
	return nil
}

func (r *memUserLicenseRepo) FindByUser(_ context.Context, tenantID kernel.TenantID, userID kernel.UserID) ([]*licensing.UserLicense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*licensing.UserLicense
	for _, ul := range r.rows {
		if ul.TenantID == tenantID && ul.UserID == userID {
			cp := *ul
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memUserLicenseRepo) FindByLicense(_ context.Context, tenantID kernel.TenantID, licenseID kernel.LicenseID) ([]*licensing.UserLicense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*licensing.UserLicense
	for _, ul := range r.rows {
		if ul.TenantID == tenantID && ul.LicenseID == licenseID {
			cp := *ul
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	testTenant = kernel.NewTenantID("tenant-1")
	testOrg    = kernel.NewOrganizationID("org-1")
	testSKU    = kernel.NewProductID("echopad-pro")
)

func seatLicense(id string, totalSeats int) *licensing.License {
	now := time.Now()
	return &licensing.License{
		ID:             kernel.NewLicenseID(id),
		TenantID:       testTenant,
		OrganizationID: testOrg,
		ProductSKU:     testSKU,
		Type:           licensing.TypeSeat,
		TotalSeats:     ptrx.Int(totalSeats),
		Status:         licensing.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestAssignAndRevoke(t *testing.T) {
	ctx := context.Background()
	lics := newMemLicenseRepo(seatLicense("lic-1", 1))
	uls := newMemUserLicenseRepo()
	svc := NewService(lics, uls, 5)

	u1 := kernel.NewUserID("user-1")
	u2 := kernel.NewUserID("user-2")

	// First user takes the only seat.
	ul, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, u1, ul.UserID)

	lic, err := lics.FindByID(ctx, testTenant, kernel.NewLicenseID("lic-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, lic.UsedSeats)
	assert.True(t, lic.HasAssignedUser(u1))

	// Second user is refused.
	_, err = svc.Assign(ctx, testTenant, testOrg, u2, kernel.NewLicenseID("lic-1"), nil)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, licensing.CodeNoAvailableSeats))

	// Revoking the first frees the seat for the second.
	require.NoError(t, svc.Revoke(ctx, testTenant, u1, kernel.NewLicenseID("lic-1")))

	lic, err = lics.FindByID(ctx, testTenant, kernel.NewLicenseID("lic-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, lic.UsedSeats)
	assert.False(t, lic.HasAssignedUser(u1))

	_, err = svc.Assign(ctx, testTenant, testOrg, u2, kernel.NewLicenseID("lic-1"), nil)
	require.NoError(t, err)
}

func TestAssignIdempotent(t *testing.T) {
	ctx := context.Background()
	lics := newMemLicenseRepo(seatLicense("lic-1", 1))
	uls := newMemUserLicenseRepo()
	svc := NewService(lics, uls, 5)

	u1 := kernel.NewUserID("user-1")
	first, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
	require.NoError(t, err)

	// Assigning again is a no-op success and does not double-count the seat.
	second, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	lic, err := lics.FindByID(ctx, testTenant, kernel.NewLicenseID("lic-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, lic.UsedSeats)
}

func TestAssignPreconditions(t *testing.T) {
	ctx := context.Background()
	u1 := kernel.NewUserID("user-1")

	t.Run("license not found", func(t *testing.T) {
		svc := NewService(newMemLicenseRepo(), newMemUserLicenseRepo(), 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("missing"), nil)
		assert.True(t, errx.HasCode(err, licensing.CodeLicenseNotFound))
	})

	t.Run("organization mismatch", func(t *testing.T) {
		svc := NewService(newMemLicenseRepo(seatLicense("lic-1", 1)), newMemUserLicenseRepo(), 5)
		otherOrg := kernel.NewOrganizationID("org-other")
		_, err := svc.Assign(ctx, testTenant, otherOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		assert.True(t, errx.HasCode(err, licensing.CodeOrganizationMismatch))
	})

	t.Run("license suspended", func(t *testing.T) {
		lic := seatLicense("lic-1", 1)
		lic.Status = licensing.StatusSuspended
		svc := NewService(newMemLicenseRepo(lic), newMemUserLicenseRepo(), 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		require.True(t, errx.HasCode(err, licensing.CodeLicenseNotActive))
		var e *errx.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "SUSPENDED", e.Details["status"])
	})

	t.Run("license expired by date", func(t *testing.T) {
		lic := seatLicense("lic-1", 1)
		lic.ExpiresAt = ptrx.Time(time.Now().Add(-time.Hour))
		svc := NewService(newMemLicenseRepo(lic), newMemUserLicenseRepo(), 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		assert.True(t, errx.HasCode(err, licensing.CodeLicenseOutOfDateRange))
	})

	t.Run("license not yet started", func(t *testing.T) {
		lic := seatLicense("lic-1", 1)
		lic.StartDate = ptrx.Time(time.Now().Add(time.Hour))
		svc := NewService(newMemLicenseRepo(lic), newMemUserLicenseRepo(), 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		assert.True(t, errx.HasCode(err, licensing.CodeLicenseOutOfDateRange))
	})
}

func TestAssignUnlimitedLicense(t *testing.T) {
	ctx := context.Background()
	lic := seatLicense("lic-1", 0)
	lic.Type = licensing.TypeUnlimited
	lic.TotalSeats = nil
	lics := newMemLicenseRepo(lic)
	svc := NewService(lics, newMemUserLicenseRepo(), 5)

	for i := 0; i < 50; i++ {
		uid := kernel.NewUserID(fmt.Sprintf("user-%d", i))
		_, err := svc.Assign(ctx, testTenant, testOrg, uid, kernel.NewLicenseID("lic-1"), nil)
		require.NoError(t, err)
	}
}

func TestAssignContendedLastSeat(t *testing.T) {
	ctx := context.Background()
	lics := newMemLicenseRepo(seatLicense("lic-1", 1))
	uls := newMemUserLicenseRepo()
	svc := NewService(lics, uls, 50)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := kernel.NewUserID("racer-" + string(rune('a'+i)))
			_, results[i] = svc.Assign(ctx, testTenant, testOrg, uid, kernel.NewLicenseID("lic-1"), nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t,
			errx.HasCode(err, licensing.CodeNoAvailableSeats) ||
				errx.HasCode(err, licensing.CodeAssignmentRetryExhausted),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins, "exactly one racer should claim the last seat")

	lic, err := lics.FindByID(ctx, testTenant, kernel.NewLicenseID("lic-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, lic.UsedSeats, "seat counter must never exceed capacity")
}

func TestRevokeUnknownAssignment(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemLicenseRepo(seatLicense("lic-1", 1)), newMemUserLicenseRepo(), 5)
	err := svc.Revoke(ctx, testTenant, kernel.NewUserID("ghost"), kernel.NewLicenseID("lic-1"))
	assert.True(t, errx.HasCode(err, licensing.CodeAssignmentNotFound))
}

func TestHasActiveProductAccess(t *testing.T) {
	ctx := context.Background()
	u1 := kernel.NewUserID("user-1")

	t.Run("assigned user on valid license", func(t *testing.T) {
		lics := newMemLicenseRepo(seatLicense("lic-1", 1))
		uls := newMemUserLicenseRepo()
		svc := NewService(lics, uls, 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		require.NoError(t, err)

		ok, err := svc.HasActiveProductAccess(ctx, testTenant, u1, testSKU)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no assignment", func(t *testing.T) {
		svc := NewService(newMemLicenseRepo(seatLicense("lic-1", 1)), newMemUserLicenseRepo(), 5)
		ok, err := svc.HasActiveProductAccess(ctx, testTenant, u1, testSKU)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong product", func(t *testing.T) {
		lics := newMemLicenseRepo(seatLicense("lic-1", 1))
		uls := newMemUserLicenseRepo()
		svc := NewService(lics, uls, 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		require.NoError(t, err)

		ok, err := svc.HasActiveProductAccess(ctx, testTenant, u1, kernel.NewProductID("other-product"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("license suspended after assignment", func(t *testing.T) {
		lic := seatLicense("lic-1", 1)
		lics := newMemLicenseRepo(lic)
		uls := newMemUserLicenseRepo()
		svc := NewService(lics, uls, 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		require.NoError(t, err)

		stored, err := lics.FindByID(ctx, testTenant, lic.ID)
		require.NoError(t, err)
		stored.Status = licensing.StatusSuspended
		require.NoError(t, lics.UpdateWithVersion(ctx, stored))

		ok, err := svc.HasActiveProductAccess(ctx, testTenant, u1, testSKU)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("full license keeps access for its holders", func(t *testing.T) {
		lics := newMemLicenseRepo(seatLicense("lic-1", 1))
		uls := newMemUserLicenseRepo()
		svc := NewService(lics, uls, 5)
		_, err := svc.Assign(ctx, testTenant, testOrg, u1, kernel.NewLicenseID("lic-1"), nil)
		require.NoError(t, err)

		// used == total is full, not over capacity.
		ok, err := svc.HasActiveProductAccess(ctx, testTenant, u1, testSKU)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestReconcileSeatCounts(t *testing.T) {
	ctx := context.Background()
	lic := seatLicense("lic-1", 5)
	lics := newMemLicenseRepo(lic)
	uls := newMemUserLicenseRepo()
	svc := NewService(lics, uls, 5)

	u1 := kernel.NewUserID("user-1")
	u2 := kernel.NewUserID("user-2")
	_, err := svc.Assign(ctx, testTenant, testOrg, u1, lic.ID, nil)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, testTenant, testOrg, u2, lic.ID, nil)
	require.NoError(t, err)

	// Drift the counter and the legacy array behind the assignment rows.
	stored, err := lics.FindByID(ctx, testTenant, lic.ID)
	require.NoError(t, err)
	stored.UsedSeats = 5
	stored.AssignedUserIDs = []string{"user-1", "stale-user"}
	require.NoError(t, lics.UpdateWithVersion(ctx, stored))

	healed, err := svc.ReconcileSeatCounts(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, healed)

	stored, err = lics.FindByID(ctx, testTenant, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsedSeats)
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, []string(stored.AssignedUserIDs))

	// A second pass finds nothing to heal.
	healed, err = svc.ReconcileSeatCounts(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, healed)
}

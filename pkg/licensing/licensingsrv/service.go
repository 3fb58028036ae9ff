// Package licensingsrv implements the seat engine: assignment and revocation
// under the seat-capacity invariant, product access checks, and the seat
// reconciliation pass.
//
// Seat mutation is an optimistic compare-and-swap loop against the license's
// version token. The seat is claimed on the license row first and the
// UserLicense row written second; a failure in between releases the seat by
// a compensating swap, and anything that still slips through is healed by
// ReconcileSeatCounts, which treats the UserLicense collection as the source
// of truth.
package licensingsrv

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
)

const defaultMaxRetries = 5

type Service struct {
	licenses   licensing.LicenseRepository
	userLics   licensing.UserLicenseRepository
	maxRetries int
	now        func() time.Time
}

func NewService(licenses licensing.LicenseRepository, userLics licensing.UserLicenseRepository, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Service{
		licenses:   licenses,
		userLics:   userLics,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Assign grants one seat of the license to the user. Preconditions are
// checked in a fixed order, each with its own failure; assigning a user who
// already holds the license is a no-op success returning the existing
// record.
func (s *Service) Assign(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID, userID kernel.UserID, licenseID kernel.LicenseID, assignedBy *kernel.UserID) (*licensing.UserLicense, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		license, err := s.licenses.FindByID(ctx, tenantID, licenseID)
		if err != nil {
			return nil, err
		}

		if license.OrganizationID != orgID {
			return nil, licensing.ErrOrganizationMismatch().
				WithDetail("license_organization_id", license.OrganizationID.String()).
				WithDetail("requested_organization_id", orgID.String())
		}
		if license.Status != licensing.StatusActive {
			return nil, licensing.ErrLicenseNotActive(license.Status)
		}
		if !license.InDateRange(s.now()) {
			return nil, licensing.ErrLicenseOutOfDateRange()
		}

		existing, err := s.userLics.Find(ctx, tenantID, userID, licenseID)
		if err == nil {
			return existing, nil
		}
		if !errx.HasCode(err, licensing.CodeAssignmentNotFound) {
			return nil, err
		}

		if !license.HasAvailableSeat() {
			return nil, licensing.ErrNoAvailableSeats().
				WithDetail("total_seats", *license.TotalSeats).
				WithDetail("used_seats", license.UsedSeats)
		}

		// Claim the seat. The version check makes this the linearization
		// point: of two racing assignments for the last seat, exactly one
		// swap lands.
		license.UsedSeats++
		license.AddAssignedUser(userID)
		license.UpdatedAt = s.now()
		if err := s.licenses.UpdateWithVersion(ctx, license); err != nil {
			if errx.HasCode(err, licensing.CodeVersionConflict) {
				continue
			}
			return nil, err
		}

		ul := &licensing.UserLicense{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			UserID:         userID,
			LicenseID:      licenseID,
			OrganizationID: orgID,
			AssignedBy:     assignedBy,
			CreatedAt:      s.now(),
		}
		if err := s.userLics.Create(ctx, ul); err != nil {
			s.releaseSeat(ctx, tenantID, licenseID, userID)
			if errx.HasCode(err, licensing.CodeDuplicateAssignment) {
				return s.userLics.Find(ctx, tenantID, userID, licenseID)
			}
			return nil, err
		}
		return ul, nil
	}
	return nil, licensing.ErrAssignmentRetryExhausted().WithDetail("license_id", licenseID.String())
}

// AssignByProduct resolves the organization's active license for a product
// and assigns a seat on it. Used by invitation redemption, where the inviter
// names a product rather than a specific license.
func (s *Service) AssignByProduct(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID, userID kernel.UserID, sku kernel.ProductID, assignedBy *kernel.UserID) (*licensing.UserLicense, error) {
	license, err := s.licenses.FindActiveByOrgAndProduct(ctx, tenantID, orgID, sku)
	if err != nil {
		return nil, err
	}
	return s.Assign(ctx, tenantID, orgID, userID, license.ID, assignedBy)
}

// Revoke removes the user's assignment and releases the seat.
func (s *Service) Revoke(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, licenseID kernel.LicenseID) error {
	if _, err := s.userLics.Find(ctx, tenantID, userID, licenseID); err != nil {
		return err
	}
	if err := s.userLics.Delete(ctx, tenantID, userID, licenseID); err != nil {
		return err
	}
	s.releaseSeat(ctx, tenantID, licenseID, userID)
	return nil
}

// releaseSeat decrements the seat counter (floored at zero) and drops the
// user from the legacy array, retrying on version conflicts. A release that
// ultimately fails is logged, not surfaced: the reconciliation pass heals it.
func (s *Service) releaseSeat(ctx context.Context, tenantID kernel.TenantID, licenseID kernel.LicenseID, userID kernel.UserID) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		license, err := s.licenses.FindByID(ctx, tenantID, licenseID)
		if err != nil {
			break
		}
		if license.UsedSeats > 0 {
			license.UsedSeats--
		}
		license.RemoveAssignedUser(userID)
		license.UpdatedAt = s.now()
		err = s.licenses.UpdateWithVersion(ctx, license)
		if err == nil {
			return
		}
		if !errx.HasCode(err, licensing.CodeVersionConflict) {
			break
		}
	}
	logx.WithFields(logx.Fields{
		"license_id": licenseID,
		"user_id":    userID,
		"tenant_id":  tenantID,
	}).Warn("seat release did not apply; counter will heal on reconciliation")
}

// HasActiveProductAccess reports whether any of the user's assignments
// resolves to a currently valid license for the product. A user may hold
// grants through more than one license; any one of them passing suffices.
func (s *Service) HasActiveProductAccess(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, sku kernel.ProductID) (bool, error) {
	assignments, err := s.userLics.FindByUser(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}

	now := s.now()
	for _, ul := range assignments {
		license, err := s.licenses.FindByID(ctx, tenantID, ul.LicenseID)
		if err != nil {
			if errx.HasCode(err, licensing.CodeLicenseNotFound) {
				continue
			}
			return false, err
		}
		if license.ProductSKU != sku {
			continue
		}
		if license.Status != licensing.StatusActive {
			continue
		}
		if !license.InDateRange(now) {
			continue
		}
		if !license.WithinCapacity() {
			continue
		}
		return true, nil
	}
	return false, nil
}

// Get loads one license.
func (s *Service) Get(ctx context.Context, tenantID kernel.TenantID, licenseID kernel.LicenseID) (*licensing.License, error) {
	return s.licenses.FindByID(ctx, tenantID, licenseID)
}

// List lists a tenant's licenses.
func (s *Service) List(ctx context.Context, tenantID kernel.TenantID) ([]*licensing.License, error) {
	return s.licenses.FindByTenant(ctx, tenantID)
}

// ListAssignments lists the assignments against one license.
func (s *Service) ListAssignments(ctx context.Context, tenantID kernel.TenantID, licenseID kernel.LicenseID) ([]*licensing.UserLicense, error) {
	return s.userLics.FindByLicense(ctx, tenantID, licenseID)
}

// ReconcileSeatCounts recomputes every license's seat counter and legacy
// assignment array from the UserLicense collection. Returns the number of
// licenses that needed healing.
func (s *Service) ReconcileSeatCounts(ctx context.Context, tenantID kernel.TenantID) (int, error) {
	licenses, err := s.licenses.FindByTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	healed := 0
	for _, lic := range licenses {
		changed, err := s.reconcileOne(ctx, tenantID, lic.ID)
		if err != nil {
			return healed, err
		}
		if changed {
			healed++
		}
	}
	return healed, nil
}

func (s *Service) reconcileOne(ctx context.Context, tenantID kernel.TenantID, licenseID kernel.LicenseID) (bool, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		license, err := s.licenses.FindByID(ctx, tenantID, licenseID)
		if err != nil {
			return false, err
		}
		assignments, err := s.userLics.FindByLicense(ctx, tenantID, licenseID)
		if err != nil {
			return false, err
		}

		userIDs := make([]string, len(assignments))
		for i, ul := range assignments {
			userIDs[i] = ul.UserID.String()
		}

		if license.UsedSeats == len(assignments) && equalSets(license.AssignedUserIDs, userIDs) {
			return false, nil
		}

		license.UsedSeats = len(assignments)
		license.AssignedUserIDs = userIDs
		license.UpdatedAt = s.now()
		err = s.licenses.UpdateWithVersion(ctx, license)
		if err == nil {
			logx.WithFields(logx.Fields{
				"license_id": licenseID,
				"used_seats": license.UsedSeats,
			}).Info("healed drifted seat counter")
			return true, nil
		}
		if !errx.HasCode(err, licensing.CodeVersionConflict) {
			return false, err
		}
	}
	return false, licensing.ErrAssignmentRetryExhausted().WithDetail("license_id", licenseID.String())
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}

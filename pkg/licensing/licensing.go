// Package licensing holds the license and assignment entities and the
// failure modes of the seat engine.
package licensing

import (
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// Type distinguishes seat-counted licenses from unlimited ones.
type Type string

const (
	TypeSeat      Type = "SEAT"
	TypeUnlimited Type = "UNLIMITED"
)

// Status is a license's lifecycle status.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusSuspended Status = "SUSPENDED"
)

// License is a grant of seats of one product to one organization.
// TotalSeats is nil for unlimited licenses. AssignedUserIDs is a legacy
// denormalized mirror of the UserLicense collection; the UserLicense rows are
// the reconciliation source of truth and the array heals toward them.
// Version is the optimistic-concurrency token: every counter mutation is a
// compare-and-swap against it.
type License struct {
	ID              kernel.LicenseID      `db:"id" json:"id"`
	TenantID        kernel.TenantID       `db:"tenant_id" json:"tenant_id"`
	OrganizationID  kernel.OrganizationID `db:"organization_id" json:"organization_id"`
	ProductSKU      kernel.ProductID      `db:"product_sku" json:"product_sku"`
	Type            Type                  `db:"license_type" json:"license_type"`
	TotalSeats      *int                  `db:"total_seats" json:"total_seats,omitempty"`
	UsedSeats       int                   `db:"used_seats" json:"used_seats"`
	AssignedUserIDs pq.StringArray        `db:"assigned_user_ids" json:"assigned_user_ids"`
	Status          Status                `db:"status" json:"status"`
	StartDate       *time.Time            `db:"start_date" json:"start_date,omitempty"`
	ExpiresAt       *time.Time            `db:"expires_at" json:"expires_at,omitempty"`
	Version         int64                 `db:"version" json:"version"`
	CreatedAt       time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time             `db:"updated_at" json:"updated_at"`
}

// IsSeatBased reports whether the license counts seats.
func (l *License) IsSeatBased() bool {
	return l.Type == TypeSeat && l.TotalSeats != nil
}

// HasAvailableSeat reports whether one more seat can be assigned.
func (l *License) HasAvailableSeat() bool {
	if !l.IsSeatBased() {
		return true
	}
	return l.UsedSeats < *l.TotalSeats
}

// WithinCapacity reports whether the seat counter respects the capacity
// invariant. Unlimited licenses are always within capacity.
func (l *License) WithinCapacity() bool {
	if !l.IsSeatBased() {
		return true
	}
	return l.UsedSeats <= *l.TotalSeats
}

// InDateRange reports whether now falls inside [StartDate, ExpiresAt];
// either bound may be absent.
func (l *License) InDateRange(now time.Time) bool {
	if l.StartDate != nil && now.Before(*l.StartDate) {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	return true
}

// HasAssignedUser reports whether the legacy array mentions the user.
func (l *License) HasAssignedUser(userID kernel.UserID) bool {
	for _, id := range l.AssignedUserIDs {
		if id == userID.String() {
			return true
		}
	}
	return false
}

// AddAssignedUser appends to the legacy array if absent.
func (l *License) AddAssignedUser(userID kernel.UserID) {
	if !l.HasAssignedUser(userID) {
		l.AssignedUserIDs = append(l.AssignedUserIDs, userID.String())
	}
}

// RemoveAssignedUser removes from the legacy array.
func (l *License) RemoveAssignedUser(userID kernel.UserID) {
	out := l.AssignedUserIDs[:0]
	for _, id := range l.AssignedUserIDs {
		if id != userID.String() {
			out = append(out, id)
		}
	}
	l.AssignedUserIDs = out
}

// UserLicense binds one user to one license within one organization. At most
// one exists per (tenant, user, license) tuple.
type UserLicense struct {
	ID             string                `db:"id" json:"id"`
	TenantID       kernel.TenantID       `db:"tenant_id" json:"tenant_id"`
	UserID         kernel.UserID         `db:"user_id" json:"user_id"`
	LicenseID      kernel.LicenseID      `db:"license_id" json:"license_id"`
	OrganizationID kernel.OrganizationID `db:"organization_id" json:"organization_id"`
	AssignedBy     *kernel.UserID        `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
}

var ErrRegistry = errx.NewRegistry("LICENSING")

var (
	CodeLicenseNotFound = ErrRegistry.Register("LICENSE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound,
		"License not found")
	CodeOrganizationMismatch = ErrRegistry.Register("ORGANIZATION_MISMATCH", errx.TypeAuthorization, http.StatusForbidden,
		"License belongs to a different organization")
	CodeLicenseNotActive = ErrRegistry.Register("LICENSE_NOT_ACTIVE", errx.TypeBusiness, http.StatusUnprocessableEntity,
		"License is not active")
	CodeLicenseOutOfDateRange = ErrRegistry.Register("LICENSE_OUT_OF_DATE_RANGE", errx.TypeBusiness, http.StatusUnprocessableEntity,
		"License is outside its validity period")
	CodeNoAvailableSeats = ErrRegistry.Register("NO_AVAILABLE_SEATS", errx.TypeBusiness, http.StatusUnprocessableEntity,
		"No seats available on this license")
	CodeAssignmentNotFound = ErrRegistry.Register("ASSIGNMENT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound,
		"License assignment not found")
	CodeVersionConflict = ErrRegistry.Register("VERSION_CONFLICT", errx.TypeConflict, http.StatusConflict,
		"License was modified concurrently")
	CodeDuplicateAssignment = ErrRegistry.Register("DUPLICATE_ASSIGNMENT", errx.TypeConflict, http.StatusConflict,
		"Assignment already exists for this user and license")
	CodeAssignmentRetryExhausted = ErrRegistry.Register("ASSIGNMENT_RETRY_EXHAUSTED", errx.TypeConflict, http.StatusConflict,
		"Could not apply seat change after repeated conflicts")
)

func ErrLicenseNotFound() *errx.Error      { return ErrRegistry.New(CodeLicenseNotFound) }
func ErrOrganizationMismatch() *errx.Error { return ErrRegistry.New(CodeOrganizationMismatch) }
func ErrLicenseOutOfDateRange() *errx.Error {
	return ErrRegistry.New(CodeLicenseOutOfDateRange)
}
func ErrNoAvailableSeats() *errx.Error   { return ErrRegistry.New(CodeNoAvailableSeats) }
func ErrAssignmentNotFound() *errx.Error { return ErrRegistry.New(CodeAssignmentNotFound) }
func ErrVersionConflict() *errx.Error { return ErrRegistry.New(CodeVersionConflict) }
func ErrDuplicateAssignment() *errx.Error { return ErrRegistry.New(CodeDuplicateAssignment) }

// ErrLicenseNotActive reports the actual status so the admin UI can explain
// why assignment was refused.
func ErrLicenseNotActive(status Status) *errx.Error {
	return ErrRegistry.New(CodeLicenseNotActive).WithDetail("status", string(status))
}

func ErrAssignmentRetryExhausted() *errx.Error {
	return ErrRegistry.New(CodeAssignmentRetryExhausted)
}

// Package invitation holds the single-use invite entity and its lifecycle.
package invitation

import (
	"net/http"
	"time"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// Status is an invite's lifecycle state. Pending is the only non-terminal
// state; Accepted, Expired and Cancelled are all terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// DefaultTTL is how long a fresh invite stays redeemable.
const DefaultTTL = 7 * 24 * time.Hour

// Invite is a single-use invitation token. Role records what the inviter
// intended and is kept for audit and display; redemption always provisions
// the lowest-privilege role regardless. ProductID, when set, asks redemption
// to also claim a seat on the organization's license for that product.
type Invite struct {
	ID             string                `db:"id" json:"id"`
	TenantID       kernel.TenantID       `db:"tenant_id" json:"tenant_id"`
	OrganizationID kernel.OrganizationID `db:"organization_id" json:"organization_id"`
	Email          string                `db:"email" json:"email"`
	Role           kernel.Role           `db:"role" json:"role"`
	Token          string                `db:"token" json:"-"`
	ProductID      *kernel.ProductID     `db:"product_id" json:"product_id,omitempty"`
	Status         Status                `db:"status" json:"status"`
	InvitedBy      *kernel.UserID        `db:"invited_by" json:"invited_by,omitempty"`
	ExpiresAt      time.Time             `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time             `db:"updated_at" json:"updated_at"`
}

// IsPending reports whether the invite is still redeemable, ignoring expiry.
func (i *Invite) IsPending() bool {
	return i.Status == StatusPending
}

// IsExpired reports whether the invite's deadline has passed.
func (i *Invite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

var ErrRegistry = errx.NewRegistry("INVITATION")

var (
	CodeInvitationNotFound = ErrRegistry.Register("INVITATION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound,
		"Invitation not found")
	CodeInvitationNotAvailable = ErrRegistry.Register("INVITATION_NOT_AVAILABLE", errx.TypeBusiness, http.StatusUnprocessableEntity,
		"Invitation has already been used or cancelled")
	CodeInvitationExpired = ErrRegistry.Register("INVITATION_EXPIRED", errx.TypeBusiness, http.StatusUnprocessableEntity,
		"Invitation has expired")
	CodeEmailMismatch = ErrRegistry.Register("EMAIL_MISMATCH", errx.TypeAuthorization, http.StatusForbidden,
		"Invitation was issued for a different email")
	CodeDuplicateInvitation = ErrRegistry.Register("DUPLICATE_INVITATION", errx.TypeConflict, http.StatusConflict,
		"A pending invitation already exists for this email")
)

func ErrInvitationNotFound() *errx.Error { return ErrRegistry.New(CodeInvitationNotFound) }
func ErrInvitationNotAvailable(status Status) *errx.Error {
	return ErrRegistry.New(CodeInvitationNotAvailable).WithDetail("status", string(status))
}
func ErrInvitationExpired() *errx.Error   { return ErrRegistry.New(CodeInvitationExpired) }
func ErrEmailMismatch() *errx.Error       { return ErrRegistry.New(CodeEmailMismatch) }
func ErrDuplicateInvitation() *errx.Error { return ErrRegistry.New(CodeDuplicateInvitation) }

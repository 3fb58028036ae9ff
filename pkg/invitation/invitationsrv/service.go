// Package invitationsrv implements the invitation lifecycle: issuing
// single-use tokens, lazy expiry, and redemption that provisions (or reuses)
// a directory user and optionally claims a license seat.
package invitationsrv

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/invitation"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
)

// UserDirectory is the slice of the directory the invitation machine needs.
type UserDirectory interface {
	FindByEmail(ctx context.Context, tenantID kernel.TenantID, email string) (*directory.User, error)
	Create(ctx context.Context, user *directory.User) (*directory.User, error)
}

// SeatAssigner claims a seat for a redeemed invite that names a product.
type SeatAssigner interface {
	AssignByProduct(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID, userID kernel.UserID, sku kernel.ProductID, assignedBy *kernel.UserID) (*licensing.UserLicense, error)
}

// Mailer delivers the invitation email. Delivery is fire-and-forget: the
// returned flag reaches the response, but a failure never rolls back the
// invite.
type Mailer interface {
	SendInvitationEmail(ctx context.Context, email, token, inviterName string) bool
}

type Service struct {
	repo      invitation.Repository
	users     UserDirectory
	seats     SeatAssigner
	mailer    Mailer
	inviteTTL time.Duration
	now       func() time.Time
}

func NewService(repo invitation.Repository, users UserDirectory, seats SeatAssigner, mailer Mailer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = invitation.DefaultTTL
	}
	return &Service{
		repo:      repo,
		users:     users,
		seats:     seats,
		mailer:    mailer,
		inviteTTL: ttl,
		now:       time.Now,
	}
}

// CreateResult reports the created invite and whether the email went out.
type CreateResult struct {
	Invite    *invitation.Invite `json:"invite"`
	EmailSent bool               `json:"email_sent"`
}

// Create issues a new invite for an email address. A still-pending,
// unexpired invite for the same email blocks a second one.
func (s *Service) Create(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID, email string, role kernel.Role, productID *kernel.ProductID, invitedBy *kernel.UserID, inviterName string) (*CreateResult, error) {
	if !role.IsValid() {
		return nil, directory.ErrInvalidRole().WithDetail("role", string(role))
	}
	email = directory.NormalizeEmail(email)

	if existing, err := s.repo.FindPendingByEmail(ctx, tenantID, email); err == nil {
		if !existing.IsExpired(s.now()) {
			return nil, invitation.ErrDuplicateInvitation().WithDetail("email", email)
		}
		s.expire(ctx, existing)
	} else if !errx.HasCode(err, invitation.CodeInvitationNotFound) {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, errx.Wrap(err, "failed to generate invitation token", errx.TypeInternal)
	}

	now := s.now()
	inv := &invitation.Invite{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          token,
		ProductID:      productID,
		Status:         invitation.StatusPending,
		InvitedBy:      invitedBy,
		ExpiresAt:      now.Add(s.inviteTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	sent := s.mailer.SendInvitationEmail(ctx, email, token, inviterName)
	if !sent {
		logx.WithFields(logx.Fields{
			"invite_id": inv.ID,
			"email":     email,
		}).Warn("invitation email was not delivered")
	}
	return &CreateResult{Invite: inv, EmailSent: sent}, nil
}

// AcceptResult reports the user the invite resolved to and whether that user
// already existed.
type AcceptResult struct {
	User         *directory.User `json:"user"`
	ExistingUser bool            `json:"existing_user"`
}

// Accept redeems an invite. The (token, email) pair must both match the
// stored record; a Pending invite read past its deadline transitions to
// Expired as a side effect and the redemption fails. An email that already
// has a directory user marks the invite Accepted and returns that user
// unchanged. Otherwise a new user is provisioned with the lowest-privilege
// role regardless of what the invite nominally asked for, email-verified
// only when the redeeming credential proves mailbox ownership.
func (s *Service) Accept(ctx context.Context, tenantID kernel.TenantID, token, email string, via identity.Provider) (*AcceptResult, error) {
	email = directory.NormalizeEmail(email)

	inv, err := s.repo.FindByToken(ctx, tenantID, token)
	if err != nil {
		return nil, err
	}
	if inv.Email != email {
		return nil, invitation.ErrEmailMismatch()
	}
	if !inv.IsPending() {
		return nil, invitation.ErrInvitationNotAvailable(inv.Status)
	}
	if inv.IsExpired(s.now()) {
		s.expire(ctx, inv)
		return nil, invitation.ErrInvitationExpired()
	}

	user, err := s.users.FindByEmail(ctx, tenantID, email)
	switch {
	case err == nil:
		if err := s.markAccepted(ctx, inv); err != nil {
			return nil, err
		}
		s.claimSeat(ctx, inv, user.ID)
		return &AcceptResult{User: user, ExistingUser: true}, nil
	case errx.HasCode(err, directory.CodeUserNotFound):
		// fall through to provisioning
	default:
		return nil, err
	}

	user = &directory.User{
		ID:             kernel.NewUserID(uuid.NewString()),
		TenantID:       tenantID,
		Email:          email,
		Role:           kernel.RoleUser,
		Status:         directory.StatusActive,
		OrganizationID: &inv.OrganizationID,
		EmailVerified:  via != identity.ProviderPassword,
	}
	user, err = s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.markAccepted(ctx, inv); err != nil {
		return nil, err
	}
	s.claimSeat(ctx, inv, user.ID)

	logx.WithFields(logx.Fields{
		"invite_id": inv.ID,
		"user_id":   user.ID,
		"tenant_id": tenantID,
	}).Info("invitation redeemed")
	return &AcceptResult{User: user, ExistingUser: false}, nil
}

// Cancel terminates a pending invite.
func (s *Service) Cancel(ctx context.Context, tenantID kernel.TenantID, token string) error {
	inv, err := s.repo.FindByToken(ctx, tenantID, token)
	if err != nil {
		return err
	}
	if !inv.IsPending() {
		return invitation.ErrInvitationNotAvailable(inv.Status)
	}
	inv.Status = invitation.StatusCancelled
	inv.UpdatedAt = s.now()
	return s.repo.Update(ctx, inv)
}

// Validate checks an invite without redeeming it, applying lazy expiry.
func (s *Service) Validate(ctx context.Context, tenantID kernel.TenantID, token, email string) (*invitation.Invite, error) {
	inv, err := s.repo.FindByToken(ctx, tenantID, token)
	if err != nil {
		return nil, err
	}
	if inv.Email != directory.NormalizeEmail(email) {
		return nil, invitation.ErrEmailMismatch()
	}
	if !inv.IsPending() {
		return nil, invitation.ErrInvitationNotAvailable(inv.Status)
	}
	if inv.IsExpired(s.now()) {
		s.expire(ctx, inv)
		return nil, invitation.ErrInvitationExpired()
	}
	return inv, nil
}

// ListByOrganization lists an organization's invites.
func (s *Service) ListByOrganization(ctx context.Context, tenantID kernel.TenantID, orgID kernel.OrganizationID) ([]*invitation.Invite, error) {
	return s.repo.FindByOrganization(ctx, tenantID, orgID)
}

func (s *Service) markAccepted(ctx context.Context, inv *invitation.Invite) error {
	inv.Status = invitation.StatusAccepted
	inv.UpdatedAt = s.now()
	return s.repo.Update(ctx, inv)
}

// expire applies the lazy expiry transition. Best effort: the read already
// decided the outcome, a failed write just means the next read repeats it.
func (s *Service) expire(ctx context.Context, inv *invitation.Invite) {
	inv.Status = invitation.StatusExpired
	inv.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, inv); err != nil {
		logx.WithError(err).WithField("invite_id", inv.ID).Warn("failed to persist invite expiry")
	}
}

// claimSeat assigns a seat for invites that carry a product. Seat problems
// are logged, never fatal to the redemption: the user exists either way and
// an admin can assign manually.
func (s *Service) claimSeat(ctx context.Context, inv *invitation.Invite, userID kernel.UserID) {
	if inv.ProductID == nil {
		return
	}
	_, err := s.seats.AssignByProduct(ctx, inv.TenantID, inv.OrganizationID, userID, *inv.ProductID, inv.InvitedBy)
	if err != nil {
		logx.WithError(err).WithFields(logx.Fields{
			"invite_id":  inv.ID,
			"user_id":    userID,
			"product_id": *inv.ProductID,
		}).Warn("seat assignment on invite redemption failed")
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

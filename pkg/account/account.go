// Package account covers the internal email/password account lifecycle:
// sign-up, sign-in and the out-of-band email verification flow.
package account

import (
	"net/http"
	"time"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// MinPasswordLength is the floor enforced at sign-up.
const MinPasswordLength = 8

// DefaultVerificationTTL is how long an email verification token lives.
const DefaultVerificationTTL = 24 * time.Hour

// VerificationToken is a single-use email verification token. Expired tokens
// are not hard failures: verification silently mints a replacement and
// resends the email.
type VerificationToken struct {
	ID        string          `db:"id" json:"id"`
	TenantID  kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	UserID    kernel.UserID   `db:"user_id" json:"user_id"`
	Email     string          `db:"email" json:"email"`
	Token     string          `db:"token" json:"-"`
	ExpiresAt time.Time       `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// IsExpired reports whether the token's deadline has passed.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

var ErrRegistry = errx.NewRegistry("ACCOUNT")

var (
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized,
		"Email or password is incorrect")
	CodeWeakPassword = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest,
		"Password does not meet the minimum requirements")
	CodeVerificationNotFound = ErrRegistry.Register("VERIFICATION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound,
		"Verification token not found")
	CodeAlreadyVerified = ErrRegistry.Register("ALREADY_VERIFIED", errx.TypeBusiness, http.StatusUnprocessableEntity,
		"Email address is already verified")
)

func ErrInvalidCredentials() *errx.Error   { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrWeakPassword() *errx.Error         { return ErrRegistry.New(CodeWeakPassword) }
func ErrVerificationNotFound() *errx.Error { return ErrRegistry.New(CodeVerificationNotFound) }
func ErrAlreadyVerified() *errx.Error      { return ErrRegistry.New(CodeAlreadyVerified) }

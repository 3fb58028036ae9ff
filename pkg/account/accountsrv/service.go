// Package accountsrv implements password sign-up, sign-in and the email
// verification flow.
package accountsrv

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/account"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/organization"
)

// UserDirectory is the slice of the directory the account flows need.
type UserDirectory interface {
	FindByEmail(ctx context.Context, tenantID kernel.TenantID, email string) (*directory.User, error)
	Create(ctx context.Context, user *directory.User) (*directory.User, error)
	Update(ctx context.Context, user *directory.User) error
}

// OrgProvisioner creates the empty organization backing a first sign-up.
type OrgProvisioner interface {
	EnsureForSignup(ctx context.Context, tenantID kernel.TenantID, name string) (*organization.Organization, error)
}

// TokenIssuer mints the access token handed back at sign-up and sign-in.
type TokenIssuer interface {
	Issue(userID kernel.UserID, tenantID kernel.TenantID, email, name string) (string, error)
}

// Mailer delivers the verification email. Fire-and-forget: the flag reaches
// the response, failures never fail the flow.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token, name string) bool
}

type Service struct {
	users           UserDirectory
	orgs            OrgProvisioner
	tokens          TokenIssuer
	verifications   account.VerificationTokenRepository
	mailer          Mailer
	verificationTTL time.Duration
	now             func() time.Time
}

func NewService(users UserDirectory, orgs OrgProvisioner, tokens TokenIssuer, verifications account.VerificationTokenRepository, mailer Mailer, verificationTTL time.Duration) *Service {
	if verificationTTL <= 0 {
		verificationTTL = account.DefaultVerificationTTL
	}
	return &Service{
		users:           users,
		orgs:            orgs,
		tokens:          tokens,
		verifications:   verifications,
		mailer:          mailer,
		verificationTTL: verificationTTL,
		now:             time.Now,
	}
}

// AuthResult is what sign-up and sign-in hand back.
type AuthResult struct {
	User        *directory.User `json:"user"`
	AccessToken string          `json:"access_token"`
	EmailSent   bool            `json:"email_sent,omitempty"`
}

// SignUp provisions a new password account. The first sign-up gets the
// default role and an auto-created empty organization; the email starts
// unverified and a verification token goes out by mail.
func (s *Service) SignUp(ctx context.Context, tenantID kernel.TenantID, email, password, displayName string) (*AuthResult, error) {
	email = directory.NormalizeEmail(email)
	if len(password) < account.MinPasswordLength {
		return nil, account.ErrWeakPassword().WithDetail("min_length", account.MinPasswordLength)
	}

	if _, err := s.users.FindByEmail(ctx, tenantID, email); err == nil {
		return nil, directory.ErrDuplicateUser().WithDetail("email", email)
	} else if !errx.HasCode(err, directory.CodeUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}

	org, err := s.orgs.EnsureForSignup(ctx, tenantID, orgNameFromEmail(email))
	if err != nil {
		return nil, err
	}

	hashStr := string(hash)
	user := &directory.User{
		ID:             kernel.NewUserID(uuid.NewString()),
		TenantID:       tenantID,
		Email:          email,
		DisplayName:    displayName,
		Role:           directory.DefaultSignupRole(),
		Status:         directory.StatusActive,
		OrganizationID: &org.ID,
		PasswordHash:   &hashStr,
		EmailVerified:  false,
	}
	user, err = s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	sent := s.issueVerification(ctx, user)

	token, err := s.tokens.Issue(user.ID, tenantID, user.Email, user.DisplayName)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: token, EmailSent: sent}, nil
}

// SignIn authenticates a password account. Unknown email and wrong password
// report the same failure.
func (s *Service) SignIn(ctx context.Context, tenantID kernel.TenantID, email, password string) (*AuthResult, error) {
	email = directory.NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, tenantID, email)
	if err != nil {
		if errx.HasCode(err, directory.CodeUserNotFound) {
			return nil, account.ErrInvalidCredentials()
		}
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, directory.ErrUserInactive().WithDetail("status", string(user.Status))
	}
	if user.PasswordHash == nil {
		// External identity with no password set.
		return nil, account.ErrInvalidCredentials()
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, account.ErrInvalidCredentials()
	}

	token, err := s.tokens.Issue(user.ID, tenantID, user.Email, user.DisplayName)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: token}, nil
}

// VerifyResult reports the outcome of a verification attempt. Verified and
// EmailResent are mutually exclusive: an expired token resends instead of
// verifying.
type VerifyResult struct {
	Verified    bool            `json:"verified"`
	EmailResent bool            `json:"email_resent"`
	User        *directory.User `json:"user,omitempty"`
}

// VerifyEmail redeems a verification token. A valid token flips the user's
// emailVerified flag and is consumed. An expired token silently mints a
// replacement and resends the email rather than hard-failing, so a stale
// link still moves the user forward.
func (s *Service) VerifyEmail(ctx context.Context, tenantID kernel.TenantID, token string) (*VerifyResult, error) {
	vt, err := s.verifications.FindByToken(ctx, tenantID, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, tenantID, vt.Email)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		s.discard(ctx, vt)
		return nil, account.ErrAlreadyVerified()
	}

	if vt.IsExpired(s.now()) {
		s.discard(ctx, vt)
		sent := s.issueVerification(ctx, user)
		return &VerifyResult{EmailResent: sent}, nil
	}

	user.EmailVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.discard(ctx, vt)

	logx.WithFields(logx.Fields{
		"user_id":   user.ID,
		"tenant_id": tenantID,
	}).Info("email address verified")
	return &VerifyResult{Verified: true, User: user}, nil
}

// ResendVerification mints a fresh token for a still-unverified account.
func (s *Service) ResendVerification(ctx context.Context, tenantID kernel.TenantID, email string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, tenantID, directory.NormalizeEmail(email))
	if err != nil {
		return false, err
	}
	if user.EmailVerified {
		return false, account.ErrAlreadyVerified()
	}
	if err := s.verifications.DeleteByUser(ctx, tenantID, user.ID); err != nil {
		logx.WithError(err).WithField("user_id", user.ID).Warn("failed to drop stale verification tokens")
	}
	return s.issueVerification(ctx, user), nil
}

// issueVerification mints, stores and mails a verification token. Returns
// whether the email went out.
func (s *Service) issueVerification(ctx context.Context, user *directory.User) bool {
	raw, err := newToken()
	if err != nil {
		logx.WithError(err).Error("failed to generate verification token")
		return false
	}

	vt := &account.VerificationToken{
		ID:        uuid.NewString(),
		TenantID:  user.TenantID,
		UserID:    user.ID,
		Email:     user.Email,
		Token:     raw,
		ExpiresAt: s.now().Add(s.verificationTTL),
		CreatedAt: s.now(),
	}
	if err := s.verifications.Create(ctx, vt); err != nil {
		logx.WithError(err).WithField("user_id", user.ID).Error("failed to store verification token")
		return false
	}

	sent := s.mailer.SendVerificationEmail(ctx, user.Email, raw, user.DisplayName)
	if !sent {
		logx.WithField("user_id", user.ID).Warn("verification email was not delivered")
	}
	return sent
}

func (s *Service) discard(ctx context.Context, vt *account.VerificationToken) {
	if err := s.verifications.Delete(ctx, vt.TenantID, vt.ID); err != nil {
		logx.WithError(err).WithField("verification_id", vt.ID).Warn("failed to delete verification token")
	}
}

// orgNameFromEmail defaults the auto-provisioned organization's name from
// the admin's email domain.
func orgNameFromEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return email
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

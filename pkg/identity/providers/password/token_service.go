// Package password implements the internal email/password provider's token
// side: issuing HMAC-signed access tokens at sign-in and verifying them on
// subsequent requests.
package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

const audience = "echopad-api"

// TokenService issues and verifies the access tokens backing the internal
// email/password identities.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService builds the service from provider configuration. A missing
// secret leaves the provider disabled: every call fails with a
// misconfiguration error rather than signing with an empty key.
func NewTokenService(cfg config.PasswordConfig) *TokenService {
	ttl := cfg.AccessTokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
	}
}

type accessClaims struct {
	TenantID string `json:"tid"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// Issue signs an access token for the given user.
func (s *TokenService) Issue(userID kernel.UserID, tenantID kernel.TenantID, email, name string) (string, error) {
	if len(s.secret) == 0 {
		return "", identity.ErrMisconfiguredProvider().WithDetail("provider", identity.ProviderPassword.String())
	}

	now := time.Now()
	claims := accessClaims{
		TenantID: tenantID.String(),
		Email:    email,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", identity.ErrTokenInvalid().WithCause(err)
	}
	return signed, nil
}

// Verify validates an internally issued access token. The resulting claim
// set carries no provider roles: internal tokens never assert a role, so the
// directory's stored role stays authoritative.
func (s *TokenService) Verify(_ context.Context, token string) (*identity.NormalizedClaims, error) {
	if len(s.secret) == 0 {
		return nil, identity.ErrMisconfiguredProvider().WithDetail("provider", identity.ProviderPassword.String())
	}

	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, identity.ErrTokenExpired().WithCause(err)
		}
		return nil, identity.ErrTokenInvalid().WithCause(err)
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return nil, identity.ErrTokenInvalid()
	}

	return &identity.NormalizedClaims{
		SubjectID:     claims.Subject,
		TenantID:      kernel.NewTenantID(claims.TenantID),
		Email:         claims.Email,
		DisplayName:   claims.Name,
		ProviderRoles: []string{},
		Provider:      identity.ProviderPassword,
	}, nil
}

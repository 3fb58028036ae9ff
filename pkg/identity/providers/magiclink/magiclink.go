// Package magiclink implements single-use sign-in link tokens. A link token
// is an HMAC-signed JWT whose jti is parked in redis at issuance; redemption
// consumes the jti atomically, so a link verifies exactly once.
package magiclink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

const audience = "echopad-magic-link"

func redisKey(jti string) string { return "magiclink:jti:" + jti }

// Service issues and verifies magic-link tokens.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	rdb    *redis.Client
}

func NewService(cfg config.MagicLinkConfig, rdb *redis.Client) *Service {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		rdb:    rdb,
	}
}

type linkClaims struct {
	TenantID string `json:"tid"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// Issue creates a single-use link token for the given email. Subject is the
// user id when the account already exists; for first-time sign-ins it is
// empty and resolution falls back to the email lookup.
func (s *Service) Issue(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, email, name string) (string, error) {
	if len(s.secret) == 0 {
		return "", identity.ErrMisconfiguredProvider().WithDetail("provider", identity.ProviderMagicLink.String())
	}

	now := time.Now()
	jti := uuid.NewString()
	claims := linkClaims{
		TenantID: tenantID.String(),
		Email:    email,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   userID.String(),
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", identity.ErrTokenInvalid().WithCause(err)
	}

	if err := s.rdb.Set(ctx, redisKey(jti), email, s.ttl).Err(); err != nil {
		return "", identity.ErrProviderUnavailable().WithCause(err)
	}
	return signed, nil
}

// Verify validates a link token and consumes its jti. A second redemption of
// the same link fails as invalid even while the signature is still good.
func (s *Service) Verify(ctx context.Context, token string) (*identity.NormalizedClaims, error) {
	if len(s.secret) == 0 {
		return nil, identity.ErrMisconfiguredProvider().WithDetail("provider", identity.ProviderMagicLink.String())
	}

	parsed, err := jwt.ParseWithClaims(token, &linkClaims{}, func(t *jwt.Token) (any, error) {
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

	claims, ok := parsed.Claims.(*linkClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, identity.ErrTokenInvalid()
	}

	// Consume the jti. GetDel is atomic: exactly one redemption wins.
	stored, err := s.rdb.GetDel(ctx, redisKey(claims.ID)).Result()
	if err == redis.Nil {
		return nil, identity.ErrTokenInvalid().WithDetail("reason", "link already used or revoked")
	}
	if err != nil {
		return nil, identity.ErrProviderUnavailable().WithCause(err)
	}
	if stored != claims.Email {
		return nil, identity.ErrTokenInvalid().WithDetail("reason", "email mismatch")
	}

	return &identity.NormalizedClaims{
		SubjectID:     claims.Subject,
		TenantID:      kernel.NewTenantID(claims.TenantID),
		Email:         claims.Email,
		DisplayName:   claims.Name,
		ProviderRoles: []string{},
		Provider:      identity.ProviderMagicLink,
	}, nil
}

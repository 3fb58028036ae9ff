package magiclink

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

const testSecret = "magic-link-test-secret"

func testService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(config.MagicLinkConfig{
		Secret: testSecret,
		Issuer: "echopad-magic",
		TTL:    15 * time.Minute,
	}, rdb)
	return svc, mr
}

func TestIssueAndRedeemOnce(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, identity.ProviderMagicLink, claims.Provider)

	// The jti was consumed: the same link never redeems twice.
	_, err = svc.Verify(ctx, token)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestVerifyRejectsExpiredLink(t *testing.T) {
	svc, mr := testService(t)
	ctx := context.Background()

	now := time.Now().Add(-time.Hour)
	jti := "expired-link-jti"
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, linkClaims{
		TenantID: "tenant-1",
		Email:    "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    "echopad-magic",
			Subject:   "user-1",
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	require.NoError(t, mr.Set(redisKey(jti), "alice@example.com"))

	_, err = svc.Verify(ctx, signed)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenExpired))
}

func TestVerifyRejectsTamperedLink(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, linkClaims{
		Email: "mallory@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "forged-jti",
			Issuer:    "echopad-magic",
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, forged)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestVerifyRejectsEmailMismatch(t *testing.T) {
	svc, mr := testService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	require.NoError(t, err)

	// Rebind the parked jti to a different address.
	for _, key := range mr.Keys() {
		require.NoError(t, mr.Set(key, "mallory@example.com"))
	}

	_, err = svc.Verify(ctx, token)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestVerifyRejectsRevokedLink(t *testing.T) {
	svc, mr := testService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	require.NoError(t, err)

	mr.FlushAll()

	_, err = svc.Verify(ctx, token)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestDisabledWithoutSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(config.MagicLinkConfig{Issuer: "echopad-magic"}, rdb)

	_, err := svc.Issue(context.Background(), kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	assert.True(t, errx.HasCode(err, identity.CodeMisconfiguredProvider))
}

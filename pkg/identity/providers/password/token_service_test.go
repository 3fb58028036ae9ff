package password

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

func testService(ttl time.Duration) *TokenService {
	return NewTokenService(config.PasswordConfig{
		Secret:         "test-signing-secret",
		Issuer:         "echopad",
		AccessTokenTTL: ttl,
	})
}

func TestIssueAndVerify(t *testing.T) {
	svc := testService(time.Hour)

	token, err := svc.Issue(kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, "tenant-1", claims.TenantID.String())
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, identity.ProviderPassword, claims.Provider)
	assert.Empty(t, claims.ProviderRoles, "internal tokens never assert roles")
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := testService(-time.Minute)

	token, err := svc.Issue(kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenExpired))
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuing := testService(time.Hour)
	verifying := NewTokenService(config.PasswordConfig{Secret: "different-secret", Issuer: "echopad"})

	token, err := issuing.Issue(kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	require.NoError(t, err)

	_, err = verifying.Verify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	issuing := NewTokenService(config.PasswordConfig{Secret: "test-signing-secret", Issuer: "someone-else"})
	verifying := testService(time.Hour)

	token, err := issuing.Issue(kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	require.NoError(t, err)

	_, err = verifying.Verify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := testService(time.Hour)
	_, err := svc.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestDisabledWithoutSecret(t *testing.T) {
	svc := NewTokenService(config.PasswordConfig{Issuer: "echopad"})

	_, err := svc.Issue(kernel.NewUserID("user-1"), kernel.NewTenantID("tenant-1"), "alice@example.com", "Alice")
	assert.True(t, errx.HasCode(err, identity.CodeMisconfiguredProvider))

	_, err = svc.Verify(context.Background(), "anything")
	assert.True(t, errx.HasCode(err, identity.CodeMisconfiguredProvider))
}

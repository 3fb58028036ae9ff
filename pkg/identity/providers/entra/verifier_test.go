package entra

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
)

type fakeToken struct {
	claims entraClaims
}

func (t *fakeToken) Claims(v any) error {
	raw, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type fakeRawVerifier struct {
	token *fakeToken
	err   error
}

func (f *fakeRawVerifier) Verify(_ context.Context, _ string) (rawToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func testVerifier(raw rawVerifier, discoveryErr error) *Verifier {
	v := NewVerifier(config.EntraConfig{TenantID: "tenant-1", ClientID: "client-1"})
	v.newVerifier = func(_ context.Context) (rawVerifier, error) {
		if discoveryErr != nil {
			return nil, discoveryErr
		}
		return raw, nil
	}
	return v
}

func TestVerifyNormalizesClaims(t *testing.T) {
	v := testVerifier(&fakeRawVerifier{token: &fakeToken{claims: entraClaims{
		OID:   "object-id-1",
		Sub:   "pairwise-sub",
		TID:   "tenant-1",
		Email: "alice@example.com",
		Name:  "Alice Example",
		Roles: []string{"ClientAdmin"},
	}}}, nil)

	claims, err := v.Verify(context.Background(), "raw-token")
	require.NoError(t, err)

	assert.Equal(t, "object-id-1", claims.SubjectID, "oid is preferred over the pairwise sub")
	assert.Equal(t, "tenant-1", claims.TenantID.String())
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice Example", claims.DisplayName)
	assert.Equal(t, []string{"ClientAdmin"}, claims.ProviderRoles)
	assert.Equal(t, identity.ProviderEntra, claims.Provider)
}

func TestVerifyFallbacks(t *testing.T) {
	v := testVerifier(&fakeRawVerifier{token: &fakeToken{claims: entraClaims{
		Sub:               "pairwise-sub",
		TID:               "tenant-1",
		PreferredUsername: "alice@example.com",
	}}}, nil)

	claims, err := v.Verify(context.Background(), "raw-token")
	require.NoError(t, err)

	assert.Equal(t, "pairwise-sub", claims.SubjectID)
	assert.Equal(t, "alice@example.com", claims.Email, "preferred_username stands in for a missing email claim")
	assert.NotNil(t, claims.ProviderRoles)
	assert.Empty(t, claims.ProviderRoles)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := testVerifier(&fakeRawVerifier{err: &oidc.TokenExpiredError{}}, nil)

	_, err := v.Verify(context.Background(), "raw-token")
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenExpired))
}

func TestVerifyBadSignature(t *testing.T) {
	v := testVerifier(&fakeRawVerifier{err: errors.New("failed to verify signature")}, nil)

	_, err := v.Verify(context.Background(), "raw-token")
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeTokenInvalid))
}

func TestVerifyDiscoveryFailure(t *testing.T) {
	v := testVerifier(nil, errors.New("jwks endpoint unreachable"))

	_, err := v.Verify(context.Background(), "raw-token")
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeProviderUnavailable))
}

func TestVerifyDiscoveryRunsOnce(t *testing.T) {
	calls := 0
	v := NewVerifier(config.EntraConfig{TenantID: "tenant-1", ClientID: "client-1"})
	v.newVerifier = func(_ context.Context) (rawVerifier, error) {
		calls++
		return &fakeRawVerifier{token: &fakeToken{claims: entraClaims{OID: "object-id-1", TID: "tenant-1"}}}, nil
	}

	_, err := v.Verify(context.Background(), "raw-token")
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestVerifyDisabledWithoutTenant(t *testing.T) {
	v := NewVerifier(config.EntraConfig{})
	_, err := v.Verify(context.Background(), "raw-token")
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, identity.CodeMisconfiguredProvider))
}

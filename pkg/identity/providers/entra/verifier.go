// Package entra verifies Microsoft Entra ID tokens. Signature validation
// runs against the tenant's live JWKS via OIDC discovery; audience and issuer
// are pinned to the configured client and tenant.
package entra

import (
	"context"
	"errors"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// rawToken is the slice of *oidc.IDToken the normalizer needs.
type rawToken interface {
	Claims(v any) error
}

// rawVerifier abstracts *oidc.IDTokenVerifier so tests can substitute a
// deterministic implementation.
type rawVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (rawToken, error)
}

type oidcVerifier struct {
	inner *oidc.IDTokenVerifier
}

func (v *oidcVerifier) Verify(ctx context.Context, raw string) (rawToken, error) {
	return v.inner.Verify(ctx, raw)
}

// Verifier validates Entra ID tokens. OIDC discovery (and with it the JWKS
// fetch) is deferred to the first verification so a misconfigured or
// unreachable tenant does not block startup; the remote key set caches keys
// across requests.
type Verifier struct {
	cfg config.EntraConfig

	mu       sync.Mutex
	verifier rawVerifier

	// newVerifier is swapped in tests.
	newVerifier func(ctx context.Context) (rawVerifier, error)
}

func NewVerifier(cfg config.EntraConfig) *Verifier {
	v := &Verifier{cfg: cfg}
	v.newVerifier = v.discover
	return v
}

func (v *Verifier) discover(ctx context.Context) (rawVerifier, error) {
	provider, err := oidc.NewProvider(ctx, v.cfg.Issuer())
	if err != nil {
		return nil, err
	}
	return &oidcVerifier{inner: provider.Verifier(&oidc.Config{ClientID: v.cfg.ClientID})}, nil
}

type entraClaims struct {
	OID               string   `json:"oid"`
	Sub               string   `json:"sub"`
	TID               string   `json:"tid"`
	Email             string   `json:"email"`
	PreferredUsername string   `json:"preferred_username"`
	Name              string   `json:"name"`
	Roles             []string `json:"roles"`
}

// Verify validates the token and extracts the normalized claim set.
func (v *Verifier) Verify(ctx context.Context, token string) (*identity.NormalizedClaims, error) {
	if !v.cfg.Enabled() {
		return nil, identity.ErrMisconfiguredProvider().WithDetail("provider", identity.ProviderEntra.String())
	}

	verifier, err := v.ensureVerifier(ctx)
	if err != nil {
		return nil, identity.ErrProviderUnavailable().WithCause(err)
	}

	raw, err := verifier.Verify(ctx, token)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, identity.ErrTokenExpired().WithCause(err)
		}
		return nil, identity.ErrTokenInvalid().WithCause(err)
	}

	var claims entraClaims
	if err := raw.Claims(&claims); err != nil {
		return nil, identity.ErrTokenInvalid().WithCause(err)
	}

	return normalize(claims), nil
}

func (v *Verifier) ensureVerifier(ctx context.Context) (rawVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}
	verifier, err := v.newVerifier(ctx)
	if err != nil {
		return nil, err
	}
	v.verifier = verifier
	return verifier, nil
}

// normalize maps Entra claims onto the canonical set. The object id is the
// preferred subject identifier; sub is only a fallback since it is pairwise
// per application.
func normalize(c entraClaims) *identity.NormalizedClaims {
	subject := c.OID
	if subject == "" {
		subject = c.Sub
	}
	email := c.Email
	if email == "" {
		email = c.PreferredUsername
	}
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}
	return &identity.NormalizedClaims{
		SubjectID:     subject,
		TenantID:      kernel.NewTenantID(c.TID),
		Email:         email,
		DisplayName:   c.Name,
		ProviderRoles: roles,
		Provider:      identity.ProviderEntra,
	}
}

// Package identity defines the provider-agnostic identity contracts: the
// normalized claim set every credential verifier produces, the verifier port
// itself, and the authentication error registry shared by all providers.
package identity

import (
	"context"
	"net/http"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// Provider tags which identity provider a credential came from.
type Provider string

const (
	ProviderEntra     Provider = "MICROSOFT"
	ProviderGoogle    Provider = "GOOGLE"
	ProviderPassword  Provider = "PASSWORD"
	ProviderMagicLink Provider = "MAGIC_LINK"
)

func (p Provider) String() string { return string(p) }

// ParseProvider maps the wire names used by the OAuth entry points
// ("microsoft", "google") onto provider tags.
func ParseProvider(s string) (Provider, bool) {
	switch s {
	case "microsoft", "MICROSOFT", "entra":
		return ProviderEntra, true
	case "google", "GOOGLE":
		return ProviderGoogle, true
	case "password", "PASSWORD":
		return ProviderPassword, true
	case "magic_link", "MAGIC_LINK", "magiclink":
		return ProviderMagicLink, true
	}
	return "", false
}

// NormalizedClaims is the canonical claim set extracted from a verified
// credential, regardless of provider. SubjectID is the provider's stable
// subject identifier (Entra's oid). For Google the subject id doubles as the
// tenant id since Google has no tenant concept. ProviderRoles is empty when
// the provider asserts no opinion about roles; the reconciler treats silence
// as "keep the stored role".
type NormalizedClaims struct {
	SubjectID     string
	TenantID      kernel.TenantID
	Email         string
	DisplayName   string
	ProviderRoles []string
	Provider      Provider
}

// CredentialVerifier validates one provider's bearer credentials. A verifier
// performs full cryptographic validation regardless of how it was selected:
// dispatch is a routing hint, never a security boundary.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (*NormalizedClaims, error)
}

var ErrRegistry = errx.NewRegistry("IDENTITY")

var (
	CodeTokenExpired = ErrRegistry.Register("TOKEN_EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized,
		"Token has expired")
	CodeTokenInvalid = ErrRegistry.Register("TOKEN_INVALID", errx.TypeAuthorization, http.StatusUnauthorized,
		"Token signature or format is invalid")
	CodeProviderUnavailable = ErrRegistry.Register("PROVIDER_UNAVAILABLE", errx.TypeExternal, http.StatusBadGateway,
		"Identity provider is unreachable")
	CodeMisconfiguredProvider = ErrRegistry.Register("MISCONFIGURED_PROVIDER", errx.TypeInternal, http.StatusInternalServerError,
		"Identity provider is not configured")
	CodeAuthenticationFailed = ErrRegistry.Register("AUTHENTICATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized,
		"Authentication failed")
	CodeUnauthenticated = ErrRegistry.Register("UNAUTHENTICATED", errx.TypeAuthorization, http.StatusUnauthorized,
		"Missing bearer credentials")
)

func ErrTokenExpired() *errx.Error          { return ErrRegistry.New(CodeTokenExpired) }
func ErrTokenInvalid() *errx.Error          { return ErrRegistry.New(CodeTokenInvalid) }
func ErrProviderUnavailable() *errx.Error   { return ErrRegistry.New(CodeProviderUnavailable) }
func ErrMisconfiguredProvider() *errx.Error { return ErrRegistry.New(CodeMisconfiguredProvider) }
func ErrAuthenticationFailed() *errx.Error  { return ErrRegistry.New(CodeAuthenticationFailed) }
func ErrUnauthenticated() *errx.Error       { return ErrRegistry.New(CodeUnauthenticated) }

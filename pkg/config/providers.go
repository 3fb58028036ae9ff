package config

import (
	"fmt"
	"time"
)

// ProvidersConfig holds the configuration of the four identity providers.
// A provider whose required values are absent is disabled; its verifier
// rejects every token with a misconfiguration error instead of guessing.
type ProvidersConfig struct {
	Entra     EntraConfig
	Google    GoogleConfig
	Password  PasswordConfig
	MagicLink MagicLinkConfig
}

// EntraConfig configures Microsoft Entra ID token verification. The OIDC
// issuer (and through it the JWKS endpoint) is implied by the tenant id.
type EntraConfig struct {
	TenantID string
	ClientID string
}

// Enabled reports whether Entra verification is configured.
func (c EntraConfig) Enabled() bool { return c.TenantID != "" && c.ClientID != "" }

// Issuer returns the v2.0 issuer URL for the configured tenant.
func (c EntraConfig) Issuer() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", c.TenantID)
}

// GoogleConfig configures Google access-token verification.
type GoogleConfig struct {
	ClientID         string
	TokenInfoURL     string
	UserInfoURL      string
	IntrospectionTTL time.Duration
}

// Enabled reports whether Google verification is configured.
func (c GoogleConfig) Enabled() bool { return c.ClientID != "" }

// PasswordConfig configures the internal email/password token service.
type PasswordConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// Enabled reports whether the email/password provider is configured.
func (c PasswordConfig) Enabled() bool { return c.Secret != "" }

// MagicLinkConfig configures single-use magic-link tokens.
type MagicLinkConfig struct {
	Secret  string
	Issuer  string
	TTL     time.Duration
	BaseURL string
}

// Enabled reports whether the magic-link provider is configured.
func (c MagicLinkConfig) Enabled() bool { return c.Secret != "" }

func loadProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Entra: EntraConfig{
			TenantID: getEnv("ENTRA_TENANT_ID", ""),
			ClientID: getEnv("ENTRA_CLIENT_ID", ""),
		},
		Google: GoogleConfig{
			ClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
			TokenInfoURL:     getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
			UserInfoURL:      getEnv("GOOGLE_USERINFO_URL", "https://openidconnect.googleapis.com/v1/userinfo"),
			IntrospectionTTL: getEnvDuration("GOOGLE_INTROSPECTION_TTL", 5*time.Minute),
		},
		Password: PasswordConfig{
			Secret:         getEnv("AUTH_TOKEN_SECRET", ""),
			Issuer:         getEnv("AUTH_TOKEN_ISSUER", "echopad"),
			AccessTokenTTL: getEnvDuration("AUTH_ACCESS_TOKEN_TTL", time.Hour),
		},
		MagicLink: MagicLinkConfig{
			Secret:  getEnv("MAGIC_LINK_SECRET", ""),
			Issuer:  getEnv("MAGIC_LINK_ISSUER", "echopad-magic"),
			TTL:     getEnvDuration("MAGIC_LINK_TTL", 15*time.Minute),
			BaseURL: getEnv("MAGIC_LINK_BASE_URL", "http://localhost:8080/auth/magic-link/redeem"),
		},
	}
}
